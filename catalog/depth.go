package catalog

import "github.com/sarchlab/bbos/schema"

func depthDefinitions() []schema.Definition {
	return []schema.Definition{
		schema.ConfigDef{
			Name:     "depth",
			Requires: []string{"stereo"},
			Fields: []schema.ConfigField{
				schema.Literal("block_size", 23),
				schema.Literal("max_disp", 160),
				schema.Literal("num_disp", 128),
				schema.Literal("min_disp", -32),
				schema.Literal("uniqueness", 7),
				schema.Literal("speckle_w_size", 150),
				schema.Literal("speckle_range", 1),
				schema.Literal("prefilter_cap", 21),
				schema.Literal("downsample", 4),

				// One eye of the stereo frame, downsampled.
				schema.Derived("height", func(v *schema.ConfigView) any {
					return v.Config("stereo").Int("height") / v.Int("downsample")
				}),
				schema.Derived("width", func(v *schema.ConfigView) any {
					return v.Config("stereo").Int("width") / 2 / v.Int("downsample")
				}),
			},
		},

		schema.Realtime("camera_depth", 10,
			withConfig("depth", func(c *schema.Config) []schema.Field {
				return []schema.Field{
					schema.NewField("depth", schema.Uint16, c.Int("height"), c.Int("width")),
				}
			}),
			schema.WithPriority(CtrlMed), schema.WithCores(0, 1)),

		schema.Realtime("camera_points", 10,
			withConfig("depth", func(c *schema.Config) []schema.Field {
				h, w := c.Int("height"), c.Int("width")

				return []schema.Field{
					schema.NewField("points", schema.Float64, h, w, 3),
					schema.NewField("colors", schema.Uint8, h, w, 3),
				}
			}),
			schema.WithPriority(CtrlMed), schema.WithCores(0, 1)),
	}
}
