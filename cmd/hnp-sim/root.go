package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hnp-sim/internal/config"
	"hnp-sim/internal/logging"
)

var (
	configPath string
	schemaPath string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "hnp-sim",
	Short: "Hidden Node Problem sweep toolkit",
	Long: "hnp-sim drives the Whitefield simulator through a sensitivity and spacing sweep " +
		"looking for the Hidden Node Problem, and turns archived captures into trial statistics.",
	SilenceUsage: true,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/sweep.yaml", "Path to sweep configuration YAML")
	rootCmd.PersistentFlags().StringVar(&schemaPath, "schema", "schemas/sweep.cue", "Path to CUE schema file (empty skips validation)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format override (text, json)")

	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(scaleCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(dashboardCmd)
}

// setup loads the configuration and returns a context carrying the logger.
func setup(cmd *cobra.Command) (*config.Config, context.Context, error) {
	cfg, err := config.Load(configPath, schemaPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config load failed: %w", err)
	}
	if logLevel != "" {
		cfg.Session.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.Session.LogFormat = logFormat
	}
	logger := logging.New(cfg.Session.LogLevel, cfg.Session.LogFormat)
	return cfg, logging.NewContext(cmd.Context(), logger), nil
}
