package main

import (
	"log/slog"

	"hnp-sim/internal/config"
	"hnp-sim/internal/detect"
	"hnp-sim/internal/shell"
	"hnp-sim/internal/sweep"
	"hnp-sim/internal/whitefield"
)

// trialStack is everything needed to run and classify one trial.
type trialStack struct {
	renderer *sweep.ScriptRenderer
	manager  *whitefield.Manager
	detector *detect.Detector
}

func newTrialStack(cfg *config.Config, logger *slog.Logger, dryRun bool, rec detect.Recorder) *trialStack {
	exec := shell.NewExecutor(logger, dryRun)
	r := sweep.NewScriptRenderer(exec)
	r.Dir = cfg.Renderer.Dir
	r.Script = cfg.Renderer.Script
	r.Template = cfg.Renderer.Template
	r.OutputDir = cfg.Renderer.OutputDir
	r.Prefix = cfg.Renderer.Prefix
	return &trialStack{
		renderer: r,
		manager:  whitefield.NewManager(cfg.Environment(), exec, cfg.Simulator.PollInterval.Duration),
		detector: detect.NewDetector(cfg.Simulator.EventLog, rec),
	}
}
