package catalog

import "github.com/sarchlab/bbos/schema"

// Audio periods follow the default chunk durations.
const (
	speakerMs = 100
	micMs     = 100
)

func chunkSize(rate, ms string) func(v *schema.ConfigView) any {
	return func(v *schema.ConfigView) any {
		return v.Int(rate) / 1000 * v.Int(ms)
	}
}

func speakerphoneDefinitions() []schema.Definition {
	return []schema.Definition{
		schema.ConfigDef{
			Name: "speakerphone",
			Fields: []schema.ConfigField{
				schema.Literal("speaker_device", "ReSpeaker Lite"),
				schema.Literal("mic_device", "ReSpeaker Lite"),
				schema.Literal("speaker_sample_rate", 16000),
				schema.Literal("speaker_channels", 1),
				schema.Literal("mic_sample_rate", 16000),
				schema.Literal("mic_channels", 1),
				schema.Literal("speaker_ms", speakerMs),
				schema.Literal("mic_ms", micMs),
				schema.Derived("speaker_chunk_size",
					chunkSize("speaker_sample_rate", "speaker_ms")),
				schema.Derived("mic_chunk_size",
					chunkSize("mic_sample_rate", "mic_ms")),
				schema.Literal("mic_volume", 2.0),
				schema.Literal("speaker_volume", 0.3),
			},
		},

		// The speaker runs a little slower than it plays so that its
		// buffer never starves.
		schema.Realtime("speakerphone_speaker", 10+speakerMs,
			withConfig("speakerphone", func(c *schema.Config) []schema.Field {
				return []schema.Field{
					schema.NewField("audio", schema.Int16,
						c.Int("speaker_chunk_size"), c.Int("speaker_channels")),
				}
			})),
		schema.Realtime("speakerphone_mic", micMs,
			withConfig("speakerphone", func(c *schema.Config) []schema.Field {
				return []schema.Field{
					schema.NewField("audio", schema.Int16,
						c.Int("mic_chunk_size"), c.Int("mic_channels")),
				}
			})),
	}
}
