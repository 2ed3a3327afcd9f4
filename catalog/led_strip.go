package catalog

import "github.com/sarchlab/bbos/schema"

func ledStripDefinitions() []schema.Definition {
	return []schema.Definition{
		schema.ConfigDef{
			Name: "led_strip",
			Fields: []schema.ConfigField{
				schema.Literal("num_leds", 15),
				schema.Literal("spi_device", "/dev/spidev0.0"),
				schema.Literal("spi_speed", 800),
			},
		},

		schema.Realtime("led_strip_ctrl", 100,
			withConfig("led_strip", func(c *schema.Config) []schema.Field {
				return []schema.Field{
					schema.NewField("rgb", schema.Uint8, c.Int("num_leds"), 3),
				}
			})),
	}
}
