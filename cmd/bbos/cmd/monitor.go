package cmd

import (
	"log/slog"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/sarchlab/bbos/monitoring"
)

var (
	monitorPort   int
	monitorOpen   bool
	monitorAssets string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Serve the channels of the host over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := interruptible(cmd)
		defer cancel()

		m := monitoring.NewMonitor().
			WithPortNumber(monitorPort).
			WithAssetDir(monitorAssets)
		m.StartServer()

		if monitorOpen {
			if err := browser.OpenURL(m.URL()); err != nil {
				slog.Warn("bbos/monitor: cannot open a browser", "error", err)
			}
		}

		<-ctx.Done()

		return m.Close()
	},
}

func init() {
	monitorCmd.Flags().IntVar(&monitorPort, "port", 0,
		"port to listen on, random when 0")
	monitorCmd.Flags().BoolVar(&monitorOpen, "open", false,
		"open the page in a browser")
	monitorCmd.Flags().StringVar(&monitorAssets, "assets", "",
		"serve the page from this directory instead of the binary")
	rootCmd.AddCommand(monitorCmd)
}
