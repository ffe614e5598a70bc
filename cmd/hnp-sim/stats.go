package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"hnp-sim/internal/config"
	"hnp-sim/internal/logging"
	"hnp-sim/internal/shell"
	"hnp-sim/internal/sink"
	"hnp-sim/internal/stats"
	"hnp-sim/internal/trace"
)

var (
	statsSource    string
	statsConfigDir string
	statsPrintOnly bool
	statsJSON      bool
	statsLogFile   string
)

var statsCmd = &cobra.Command{
	Use:   "stats <results-root>",
	Short: "Compute per-trial ping statistics from archived captures",
	Long: "stats walks every trial directory under the results root, decodes the capture of each " +
		"node and emits one row per trial, highest sensitivity first.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, ctx, err := setup(cmd)
		if err != nil {
			return err
		}
		log := logging.FromContext(ctx)
		src, err := newTraceSource(cfg, statsSource, log)
		if err != nil {
			return err
		}
		configDir := firstNonEmpty(statsConfigDir, cfg.Trace.ConfigDir)
		ex := stats.NewExtractor(src, configDir)

		rows, err := ex.ExtractAll(ctx, args[0])
		if err != nil {
			return err
		}
		log.Info("trial statistics extracted", "trials", len(rows), "root", args[0])

		writer, _, cleanup, err := newWriters(cfg, log, writerOptions{
			printOnly: statsPrintOnly || cfg.Output.PrintOnly,
			json:      statsJSON || cfg.Output.JSON,
			logStats:  true,
			logFile:   firstNonEmpty(statsLogFile, cfg.Output.LogFile),
		})
		if err != nil {
			return err
		}
		defer cleanup()
		return sink.WriteAllStats(writer, rows)
	},
}

// newTraceSource picks the capture decoder; name overrides the configured one.
func newTraceSource(cfg *config.Config, name string, logger *slog.Logger) (trace.Source, error) {
	switch firstNonEmpty(name, cfg.Trace.Source) {
	case config.SourceTshark:
		src := trace.NewTsharkSource(shell.NewExecutor(logger, false))
		if cfg.Trace.Tshark != "" {
			src.Binary = cfg.Trace.Tshark
		}
		if cfg.Trace.Filter != "" {
			src.Filter = cfg.Trace.Filter
		}
		return src, nil
	case config.SourcePcap:
		return trace.PcapSource{}, nil
	default:
		return nil, fmt.Errorf("unknown trace source %q", firstNonEmpty(name, cfg.Trace.Source))
	}
}

func init() {
	statsCmd.Flags().StringVar(&statsSource, "source", "", "Capture decoder: tshark or pcap (overrides config)")
	statsCmd.Flags().StringVar(&statsConfigDir, "config-dir", "", "Directory holding the rendered trial configs (overrides config)")
	statsCmd.Flags().BoolVar(&statsPrintOnly, "print-only", false, "Print rows to STDOUT instead of writing to DB")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Print rows as JSON lines")
	statsCmd.Flags().StringVar(&statsLogFile, "log-file", "", "Path to export trial rows (JSONL)")
}
