package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/bbos/presence"
	"github.com/sarchlab/bbos/telemetry"
)

var listTimeout time.Duration

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the live writers of the host and their consumers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		entries, err := presence.Scan()
		if err != nil {
			return err
		}

		out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(out, "CHANNEL\tOWNER\tPID\tPERIOD\tCALLER\tDTYPE")

		for _, e := range presence.Channels(entries) {
			printWriter(out, e)

			for _, c := range presence.Consumers(entries, e.Channel) {
				printConsumer(out, c)
			}
		}

		return out.Flush()
	},
}

func printWriter(out *tabwriter.Writer, e presence.Entry) {
	payload, err := presence.Fetch(e.Identity, listTimeout)
	if err != nil {
		fmt.Fprintf(out, "%s\t?\t?\t?\t%v\t\n", e.Channel, err)
		return
	}

	rec, err := presence.DecodeRecord(payload)
	if err != nil {
		fmt.Fprintf(out, "%s\t?\t?\t?\t%v\t\n", e.Channel, err)
		return
	}

	dtype, _ := json.Marshal(rec.DType)

	period := "-"
	if rec.Period > 0 {
		period = fmt.Sprintf("%dms", rec.Period)
	}

	fmt.Fprintf(out, "%s\t%s\t%d\t%s\t%s\t%s\n",
		e.Channel, rec.Owner, rec.PID, period, rec.Caller, dtype)
}

func printConsumer(out *tabwriter.Writer, e presence.Entry) {
	line := "  └ " + e.Consumer

	payload, err := presence.Fetch(e.Identity, listTimeout)
	if err != nil || len(payload) == 0 {
		fmt.Fprintf(out, "%s\t\t\t\t\t\n", line)
		return
	}

	stats, err := telemetry.DecodeStats(payload)
	if err != nil {
		fmt.Fprintf(out, "%s\t\t\t\t%v\t\n", line, err)
		return
	}

	fmt.Fprintf(out, "%s\t\t\t%s\t\t\n", line, strings.Join([]string{
		fmt.Sprintf("mean %.2fms", stats.MeanMs),
		fmt.Sprintf("std %.2fms", stats.StdMs),
		fmt.Sprintf("max %.2fms", stats.MaxMs),
	}, " "))
}

func init() {
	listCmd.Flags().DurationVar(&listTimeout, "timeout", 200*time.Millisecond,
		"how long to wait for each writer to answer")
	rootCmd.AddCommand(listCmd)
}
