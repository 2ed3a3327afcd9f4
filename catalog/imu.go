package catalog

import "github.com/sarchlab/bbos/schema"

func imuDefinitions() []schema.Definition {
	return []schema.Definition{
		schema.ConfigDef{
			Name: "imu",
			Fields: []schema.ConfigField{
				schema.Literal("i2c_bus", 1),
				schema.Literal("i2c_address", 0x69),
				schema.Literal("accel_range", 4),
				schema.Literal("sample_rate", 100),
				schema.Literal("gyro_range", 2000),
				schema.Literal("enable_temperature", true),
				schema.Literal("enable_filter", true),
				schema.Literal("filter_beta", 0.008),
				schema.Literal("filter_zeta", 0.0),
			},
		},

		// accel in m/s², gyro in rad/s, temp in °C.
		schema.Realtime("imu_data", 10, schema.Fields(
			schema.NewField("accel", schema.Float32, 3),
			schema.NewField("gyro", schema.Float32, 3),
			schema.NewField("temp", schema.Float32),
		)),

		// quaternion is w, x, y, z.
		schema.Realtime("imu_orientation", 10, schema.Fields(
			schema.NewField("quaternion", schema.Float32, 4),
		)),
	}
}
