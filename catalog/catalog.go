// Package catalog defines the types and configs of the robot. Importing it
// registers them into schema.Default.
package catalog

import "github.com/sarchlab/bbos/schema"

// Scheduling priorities of real-time writers.
const (
	CtrlLow  = 51
	CtrlMed  = 52
	CtrlHigh = 53
)

// Definitions returns every type and config of the catalog.
func Definitions() []schema.Definition {
	var defs []schema.Definition

	defs = append(defs, driveDefinitions()...)
	defs = append(defs, imuDefinitions()...)
	defs = append(defs, cameraDefinitions()...)
	defs = append(defs, depthDefinitions()...)
	defs = append(defs, ledStripDefinitions()...)
	defs = append(defs, speakerphoneDefinitions()...)
	defs = append(defs, slamDefinitions()...)

	return defs
}

// Register inserts the catalog into r.
func Register(r *schema.Registry) error {
	for _, d := range Definitions() {
		if err := r.Register(d); err != nil {
			return err
		}
	}

	return nil
}

func init() {
	schema.Default().MustRegister(Definitions()...)
}

// withConfig builds the fields of a type from one resolved config.
func withConfig(
	name string,
	build func(c *schema.Config) []schema.Field,
) schema.BuildFunc {
	return func(cfgs schema.Configs) ([]schema.Field, error) {
		c, err := cfgs.LookupConfig(name)
		if err != nil {
			return nil, err
		}

		return build(c), nil
	}
}
