package main

import (
	"github.com/spf13/cobra"

	"hnp-sim/internal/dashboard"
	"hnp-sim/internal/logging"
)

var dashboardOut string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Render Grafana dashboards for the GreptimeDB tables",
	Long:  "dashboard writes Grafana JSON models querying the trial statistics and sweep event tables. GREPTIMEDB_DATASOURCE_UID must be set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, ctx, err := setup(cmd)
		if err != nil {
			return err
		}
		tables := dashboard.Tables{Stats: cfg.Output.StatsTable, Events: cfg.Output.DetectionTable}
		if err := dashboard.Render(dashboardOut, tables); err != nil {
			return err
		}
		logging.FromContext(ctx).Info("dashboards rendered", "dir", dashboardOut)
		return nil
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardOut, "out", "build", "Output directory")
}
