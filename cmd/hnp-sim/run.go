package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"hnp-sim/internal/detect"
	"hnp-sim/internal/logging"
	"hnp-sim/internal/topology"
)

var (
	runSensitivity int
	runScale       int
	runDryRun      bool
	runJSON        bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run and classify a single trial",
	Long: "run renders one config for the given sensitivity and scale factor, runs the simulator " +
		"to completion, archives its output and reports whether hidden node drops were logged.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, ctx, err := setup(cmd)
		if err != nil {
			return err
		}
		log := logging.FromContext(ctx)
		plan := cfg.Plan()
		sens := plan.SensitivityStart
		if cmd.Flags().Changed("sensitivity") {
			sens = runSensitivity
		}
		topo, err := topology.Scale(plan.Baseline, runScale)
		if err != nil {
			return err
		}
		tc := plan.Trial(sens, runScale)

		dry := runDryRun || cfg.Simulator.DryRun
		var rec detect.Recorder
		if !dry {
			runLog, err := detect.OpenRunLog(cfg.Session.LogDir, time.Now(), "")
			if err != nil {
				return err
			}
			defer runLog.Close()
			rec = runLog
		}
		stack := newTrialStack(cfg, log, dry, rec)

		path, err := stack.renderer.Render(ctx, tc, topo)
		if err != nil {
			return err
		}
		if dry {
			env := cfg.Environment()
			log.Info("dry-run: simulator not started", "config", path, "dir", env.Root, "start", env.StartCommand)
			return nil
		}

		arts, err := stack.manager.Run(ctx, path)
		if err != nil {
			return err
		}
		res, err := stack.detector.Inspect(detect.Evidence{Sensitivity: sens, Topology: topo, Iteration: runScale, Artifacts: arts})
		if err != nil {
			return err
		}
		if runJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		verdict := "no hidden node drops"
		if res.Detected {
			verdict = "HNP detected"
		}
		fmt.Printf("s=%d x=%d topology=%s: %s\n", sens, runScale, topo, verdict)
		for _, p := range arts.AbsPaths() {
			fmt.Printf("  %s\n", p)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().IntVarP(&runSensitivity, "sensitivity", "s", 0, "Receiver sensitivity in dBm (defaults to the sweep start)")
	runCmd.Flags().IntVarP(&runScale, "scale", "x", 1, "Topology scale factor along y")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Render the config and log commands without starting the simulator")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the verdict as JSON")
}
