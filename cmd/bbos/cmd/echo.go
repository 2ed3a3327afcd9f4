package cmd

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/bbos/ipc"
)

var (
	echoCount   int
	echoTimeout time.Duration
)

type echoLine struct {
	Channel   string         `json:"channel"`
	Timestamp int64          `json:"timestamp"`
	Fields    map[string]any `json:"fields"`
}

var echoCmd = &cobra.Command{
	Use:   "echo <channel>",
	Short: "Print fresh samples of a channel as JSON lines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := interruptible(cmd)
		defer cancel()

		r := ipc.MakeReaderBuilder().WithoutPacing().Build(args[0])
		defer r.Close()

		enc := json.NewEncoder(cmd.OutOrStdout())
		deadline := time.Now().Add(echoTimeout)

		for n := 0; echoCount <= 0 || n < echoCount; {
			if ctx.Err() != nil {
				return nil
			}

			if !r.WaitReady(100 * time.Millisecond) {
				if echoTimeout > 0 && time.Now().After(deadline) {
					return ipc.ErrChannelUnavailable
				}

				continue
			}

			deadline = time.Now().Add(echoTimeout)

			err := enc.Encode(echoLine{
				Channel:   r.Name(),
				Timestamp: r.Data().Timestamp(),
				Fields:    r.Data().Map(),
			})
			if err != nil {
				return err
			}

			n++
		}

		return nil
	},
}

func init() {
	echoCmd.Flags().IntVarP(&echoCount, "number", "n", 0,
		"stop after this many samples, 0 for no limit")
	echoCmd.Flags().DurationVar(&echoTimeout, "timeout", 0,
		"give up when no sample arrives for this long, 0 to wait forever")
	rootCmd.AddCommand(echoCmd)
}
