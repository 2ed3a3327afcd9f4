package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/bbos/datarecording"
	"github.com/sarchlab/bbos/ipc"
	"github.com/sarchlab/bbos/loop"
	"github.com/sarchlab/bbos/telemetry"
)

var (
	recordOut      string
	recordDuration time.Duration
)

var recordCmd = &cobra.Command{
	Use:   "record <channels...>",
	Short: "Record channels and their telemetry into SQLite",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := interruptible(cmd)
		defer cancel()

		if recordDuration > 0 {
			var stop context.CancelFunc
			ctx, stop = context.WithTimeout(ctx, recordDuration)
			defer stop()
		}

		recorder := datarecording.New(recordOut)
		samples := datarecording.NewChannelRecorder(recorder)
		windows := datarecording.NewTelemetryRecorder(recorder)

		s := loop.MakeBuilder().Build()
		builder := ipc.MakeReaderBuilder().
			WithScheduler(s).
			WithTelemetry(telemetry.MakeBuilder().WithSink(windows))

		readers := make([]*ipc.Reader, 0, len(args))
		for _, name := range args {
			r := builder.Build(name)
			r.AcceptHook(samples)
			readers = append(readers, r)
		}

		for ctx.Err() == nil {
			for _, r := range readers {
				r.Ready()
			}
		}

		for _, r := range readers {
			r.Close()
		}

		slog.Info("bbos/record: done", "samples", samples.Count())

		return recorder.Close()
	},
}

func init() {
	recordCmd.Flags().StringVarP(&recordOut, "out", "o", "",
		"recording file without the .sqlite3 extension, generated when empty")
	recordCmd.Flags().DurationVar(&recordDuration, "duration", 0,
		"stop after this long, 0 to record until interrupted")
	rootCmd.AddCommand(recordCmd)
}
