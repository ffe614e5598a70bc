package main

import (
	"log/slog"
	"os"

	"golang.org/x/term"

	"hnp-sim/internal/config"
	"hnp-sim/internal/sink"
	"hnp-sim/internal/sweep"
)

// isTerminal reports whether stdout can host the TUI.
var isTerminal = func() bool { return term.IsTerminal(int(os.Stdout.Fd())) }

// writerOptions select the sinks of one command. logStats and logEvents name the
// streams the command produces; only those are exported under logFile.
type writerOptions struct {
	printOnly bool
	json      bool
	logFile   string
	logStats  bool
	logEvents bool
	tui       bool
	plan      *sweep.Plan
	session   string
}

// newWriters sets up stats and event writers based on flags and config. It
// returns the writers and a cleanup function to close any resources.
func newWriters(cfg *config.Config, logger *slog.Logger, opts writerOptions) (sink.StatsWriter, sink.EventWriter, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	sw, ew, closer, err := baseWriters(cfg, logger, opts)
	if err != nil {
		return nil, nil, nil, err
	}
	if closer != nil {
		closers = append(closers, closer)
	}
	if opts.logFile == "" || (!opts.logStats && !opts.logEvents) {
		return sw, ew, cleanup, nil
	}

	statsPath, eventPath := "", ""
	sws, ews := []sink.StatsWriter{sw}, []sink.EventWriter{ew}
	if opts.logStats {
		statsPath = opts.logFile
	}
	if opts.logEvents {
		eventPath = opts.logFile + ".events"
	}
	fw, err := sink.NewFileWriter(statsPath, eventPath)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	closers = append(closers, fw.Close)
	if opts.logStats {
		sws = append(sws, fw)
	}
	if opts.logEvents {
		ews = append(ews, fw)
	}
	mw := sink.NewMultiWriter(sws, ews)
	return mw, mw, cleanup, nil
}

// baseWriters chooses the underlying writer: the TUI when requested and stdout is
// a terminal, STDOUT when print-only or no GreptimeDB endpoint is configured,
// GreptimeDB otherwise.
func baseWriters(cfg *config.Config, logger *slog.Logger, opts writerOptions) (sink.StatsWriter, sink.EventWriter, func() error, error) {
	if opts.tui && isTerminal() {
		plan := cfg.Plan()
		if opts.plan != nil {
			plan = *opts.plan
		}
		w := sink.NewTUIWriter(plan, opts.session)
		return w, w, w.Close, nil
	}
	if opts.printOnly || cfg.Output.Endpoint == "" {
		if opts.json {
			w := sink.NewJSONStdoutWriter()
			return w, w, nil, nil
		}
		w := sink.NewStdoutWriter(opts.plan)
		return w, w, nil, nil
	}
	w, err := sink.NewGreptimeDBWriter(cfg.Output.Endpoint, cfg.Output.Database, cfg.Output.StatsTable, cfg.Output.DetectionTable, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return w, w, nil, nil
}
