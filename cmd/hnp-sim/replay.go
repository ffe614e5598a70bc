package main

import (
	"time"

	"github.com/spf13/cobra"

	"hnp-sim/internal/logging"
	"hnp-sim/internal/sink"
)

var (
	replayInput     string
	replayDelay     time.Duration
	replayPrintOnly bool
	replayJSON      bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a trial statistics export",
	Long:  "replay feeds trial rows from a JSONL export back into GreptimeDB or STDOUT.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, ctx, err := setup(cmd)
		if err != nil {
			return err
		}
		log := logging.FromContext(ctx)
		writer, _, cleanup, err := newWriters(cfg, log, writerOptions{
			printOnly: replayPrintOnly,
			json:      replayJSON,
		})
		if err != nil {
			return err
		}
		defer cleanup()
		n, err := sink.ReplayStatsFile(ctx, replayInput, writer, replayDelay)
		log.Info("replay finished", "rows", n, "input", replayInput)
		return err
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to trial statistics export (JSONL)")
	replayCmd.Flags().DurationVar(&replayDelay, "delay", 0, "Pause between rows (e.g. 500ms)")
	replayCmd.Flags().BoolVar(&replayPrintOnly, "print-only", false, "Print rows to STDOUT instead of writing to DB")
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "Print rows as JSON lines")
	replayCmd.MarkFlagRequired("input")
}
