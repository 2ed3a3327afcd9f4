package catalog

import (
	"math"

	"github.com/sarchlab/bbos/schema"
)

func cameraDefinitions() []schema.Definition {
	return []schema.Definition{
		schema.ConfigDef{
			Name: "stereo",
			Fields: []schema.ConfigField{
				schema.Literal("rate", 20),
				schema.Literal("dev", 0),
				schema.Literal("width", 2560),
				schema.Literal("height", 720),
				schema.Literal("fov_diag", 180),
				schema.Derived("r", func(v *schema.ConfigView) any {
					half := float64(v.Int("width")) / 2
					h := float64(v.Int("height"))

					return math.Sqrt(half*half + h*h)
				}),
				schema.Literal("xfov", 180),
				schema.Literal("yfov", 83),
				schema.Literal("f_x", 1500),
				schema.Literal("jpeg_buflen", 1<<21),
			},
		},

		schema.Realtime("camera_jpeg", 70,
			withConfig("stereo", func(c *schema.Config) []schema.Field {
				return []schema.Field{
					schema.NewField("bytesused", schema.Uint32),
					schema.NewField("jpeg", schema.Uint8, c.Int("jpeg_buflen")),
				}
			})),
	}
}
