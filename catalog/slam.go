package catalog

import "github.com/sarchlab/bbos/schema"

func slamDefinitions() []schema.Definition {
	return []schema.Definition{
		schema.ConfigDef{
			Name: "slam",
			Fields: []schema.ConfigField{
				schema.Literal("maps_dir", ".maps"),
				schema.Literal("history_len", 10),
			},
		},

		schema.State("slam_trigger", schema.Fields(
			schema.NewField("relocalize", schema.Bool),
			schema.NewField("save_map", schema.Bool),
		)),

		// pos is x, y, z and quat is x, y, z, w.
		schema.Realtime("slam_pose", 70, schema.Fields(
			schema.NewField("pos", schema.Float32, 3),
			schema.NewField("quat", schema.Float32, 4),
		)),

		schema.Realtime("slam_debug", 70,
			withConfig("stereo", func(c *schema.Config) []schema.Field {
				return []schema.Field{
					schema.NewField("img", schema.Uint8,
						c.Int("height"), c.Int("width")/2, 3),
				}
			})),
	}
}
