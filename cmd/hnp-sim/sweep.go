package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"hnp-sim/internal/admin"
	"hnp-sim/internal/detect"
	"hnp-sim/internal/logging"
	"hnp-sim/internal/sink"
	"hnp-sim/internal/sweep"
)

var (
	sweepPrintOnly bool
	sweepJSON      bool
	sweepLogFile   string
	sweepNoTUI     bool
	sweepAdminAddr string
	sweepFrom      int
	sweepTo        int
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Search each sensitivity for the spacing that triggers the Hidden Node Problem",
	Long: "sweep walks the sensitivities from start to end. At each one the baseline topology is " +
		"stretched along y until the simulator reports hidden node drops or the iteration budget runs out.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, ctx, err := setup(cmd)
		if err != nil {
			return err
		}
		plan := cfg.Plan()
		if cmd.Flags().Changed("from") {
			plan.SensitivityStart = sweepFrom
		}
		if cmd.Flags().Changed("to") {
			plan.SensitivityEnd = sweepTo
		}
		if err := plan.Validate(); err != nil {
			return err
		}
		session := uuid.NewString()
		opts := writerOptions{
			printOnly: sweepPrintOnly || cfg.Output.PrintOnly,
			json:      sweepJSON || cfg.Output.JSON,
			logEvents: true,
			logFile:   firstNonEmpty(sweepLogFile, cfg.Output.LogFile),
			tui:       cfg.Output.TUI && !sweepNoTUI,
			plan:      &plan,
			session:   session,
		}

		log := logging.FromContext(ctx)
		if opts.tui && isTerminal() {
			// Log lines would tear the alternate screen, so they go to a file.
			f, err := openSessionLog(cfg.Session.LogDir, session)
			if err != nil {
				return err
			}
			defer f.Close()
			log = logging.NewWithWriter(f, cfg.Session.LogLevel, cfg.Session.LogFormat)
			ctx = logging.NewContext(ctx, log)
		}

		_, events, cleanup, err := newWriters(cfg, log, opts)
		if err != nil {
			return err
		}
		defer cleanup()

		runLog, err := detect.OpenRunLog(cfg.Session.LogDir, time.Now(), session)
		if err != nil {
			return err
		}
		defer runLog.Close()
		log.Info("run log opened", "path", runLog.Path())

		if cfg.Simulator.DryRun {
			log.Warn("simulator.dry_run is only honoured by the run command")
		}
		stack := newTrialStack(cfg, log, false, runLog)
		ctrl := sweep.NewController(plan, stack.renderer, stack.manager, stack.detector, runLog,
			sweep.WithEvents(events), sweep.WithSession(session))
		stack.manager.OnPoll(ctrl.Poll)

		addr := firstNonEmpty(sweepAdminAddr, cfg.Session.AdminAddr)
		adminCtx, stopAdmin := context.WithCancel(ctx)
		defer stopAdmin()
		if addr != "" {
			srv := admin.NewServer(ctrl, log)
			ready := func() {
				if aw, ok := events.(sink.AdminStatusWriter); ok {
					aw.SetAdminStatus(true)
				}
			}
			go func() {
				if err := srv.Start(adminCtx, addr, ready); err != nil {
					log.Error("admin server failed", "addr", addr, "err", err)
				}
			}()
		}

		rep, err := ctrl.Run(ctx)
		detected := 0
		for _, o := range rep.Outcomes {
			if o.Detected {
				detected++
			}
		}
		log.Info("sweep summary", "session", rep.Session, "sensitivities", len(rep.Outcomes),
			"detections", detected, "trials", rep.Trials(), "run_log", runLog.Path())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func openSessionLog(dir, session string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, fmt.Sprintf("hnp-sim-%s.log", session))
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepPrintOnly, "print-only", false, "Print events to STDOUT instead of writing to DB")
	sweepCmd.Flags().BoolVar(&sweepJSON, "json", false, "Print events as JSON lines")
	sweepCmd.Flags().StringVar(&sweepLogFile, "log-file", "", "Path to export sweep events (JSONL, written to <path>.events)")
	sweepCmd.Flags().BoolVar(&sweepNoTUI, "no-tui", false, "Disable the terminal UI")
	sweepCmd.Flags().StringVar(&sweepAdminAddr, "admin-addr", "", "Admin status endpoint address (overrides config)")
	sweepCmd.Flags().IntVar(&sweepFrom, "from", 0, "First sensitivity (overrides config)")
	sweepCmd.Flags().IntVar(&sweepTo, "to", 0, "Last sensitivity (overrides config)")
}
