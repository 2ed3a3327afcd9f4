package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/bbos/schema"
)

var envFiles []string

// loadCatalog applies the .env overrides and resolves the catalog.
func loadCatalog() (*schema.Registry, error) {
	reg := schema.Default()

	if err := reg.LoadEnv(envFiles...); err != nil {
		return nil, err
	}

	if err := reg.Resolve(); err != nil {
		return nil, err
	}

	return reg, nil
}

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "Print the resolved type catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg, err := loadCatalog()
		if err != nil {
			return err
		}

		out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(out, "TYPE\tPERIOD\tPRIORITY\tCORES\tSIZE\tDTYPE")

		for _, name := range reg.TypeNames() {
			typ, err := reg.LookupType(name)
			if err != nil {
				return err
			}

			layout, err := typ.Layout()
			if err != nil {
				return err
			}

			dtype, err := json.Marshal(layout.Descriptor())
			if err != nil {
				return err
			}

			period := "state"
			if typ.HasPeriod() {
				period = fmt.Sprintf("%dms", typ.PeriodMs)
			}

			fmt.Fprintf(out, "%s\t%s\t%d\t%v\t%d\t%s\n",
				name, period, typ.Priority, typ.Cores, layout.Size(), dtype)
		}

		return out.Flush()
	},
}

var configCmd = &cobra.Command{
	Use:   "config [name]",
	Short: "Print resolved configs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadCatalog()
		if err != nil {
			return err
		}

		names := reg.ConfigNames()
		if len(args) == 1 {
			names = args
		}

		out := cmd.OutOrStdout()

		for _, name := range names {
			cfg, err := reg.LookupConfig(name)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "[%s]\n", name)

			for _, k := range cfg.Keys() {
				v, _ := cfg.Get(k)
				fmt.Fprintf(out, "%s = %v\n", k, v)
			}
		}

		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{typesCmd, configCmd} {
		c.Flags().StringSliceVar(&envFiles, "env", []string{".env"},
			"dotenv files with BBOS_<CONFIG>_<FIELD> overrides")
		rootCmd.AddCommand(c)
	}
}
