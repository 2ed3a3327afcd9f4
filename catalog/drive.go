package catalog

import "github.com/sarchlab/bbos/schema"

func driveDefinitions() []schema.Definition {
	return []schema.Definition{
		schema.ConfigDef{
			Name: "drive",
			Fields: []schema.ConfigField{
				schema.Literal("rate_status", 1),
				schema.Literal("rate_state", 50),
				schema.Literal("robot_width", 0.21),
			},
		},
		schema.ConfigDef{
			Name: "odrive",
			Fields: []schema.ConfigField{
				schema.Literal("serial_port", "/dev/ttyS2"),
				schema.Literal("baudrate", 115200),
				schema.Literal("timeout", 15),
				schema.Literal("left_axis", 0),
				schema.Literal("right_axis", 1),
				schema.Literal("axis_state_closed_loop", 8),
				schema.Literal("dir_left", 1),
				schema.Literal("dir_right", -1),
				schema.Literal("wheel_diam", 0.165),
				schema.Literal("torque_bias", 0.05),
			},
		},

		// twist is linear, angular.
		schema.Realtime("drive_ctrl", 30, schema.Fields(
			schema.NewField("twist", schema.Float32, 2),
		)),
		schema.Realtime("drive_state", 30, schema.Fields(
			schema.NewField("pos", schema.Float32, 2),
			schema.NewField("vel", schema.Float32, 2),
			schema.NewField("torque", schema.Float32, 2),
		)),
		schema.Realtime("drive_status", 1000, schema.Fields(
			schema.NewField("voltage", schema.Float32),
		)),
	}
}
