// Package cmd provides the command-line interface of bbos.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	// The robot catalog.
	_ "github.com/sarchlab/bbos/catalog"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bbos",
	Short: "bbos inspects and records the channels of a robot.",
	Long: `bbos inspects and records the channels of a robot. It lists the ` +
		`live writers of the host with their telemetry, prints the type and ` +
		`config catalog, echoes or records channels, and serves a monitor.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

// interruptible returns a context cancelled by SIGINT or SIGTERM.
func interruptible(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
