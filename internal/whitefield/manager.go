package whitefield

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"hnp-sim/internal/logging"
	"hnp-sim/internal/shell"
	"hnp-sim/internal/trial"
)

// TimestampLayout stamps archive folders and run logs.
const TimestampLayout = "2006_01_02-15_04_05"

// ErrLaunch is matched by every *LaunchError.
var ErrLaunch = errors.New("simulator launch failed")

// LaunchError reports a start command whose output lacked the success marker.
type LaunchError struct {
	Config string
	Output string
	Err    error
}

func (e *LaunchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("launch %s: %v", e.Config, e.Err)
	}
	return fmt.Sprintf("launch %s: success marker missing (config file not found?)", e.Config)
}

func (e *LaunchError) Unwrap() error { return e.Err }

func (e *LaunchError) Is(target error) bool { return target == ErrLaunch }

// Completion tells how AwaitCompletion returned.
type Completion int

const (
	CompletionStopped Completion = iota
	CompletionCancelled
)

func (c Completion) String() string {
	if c == CompletionCancelled {
		return "cancelled"
	}
	return "stopped"
}

// Manager owns the simulator process lifecycle for one trial at a time.
type Manager struct {
	env      Environment
	runner   shell.Runner
	interval time.Duration
	now      func() time.Time
	wait     func(ctx context.Context, d time.Duration)
	progress func(attempt int)
	rename   func(oldpath, newpath string) error
}

// NewManager creates a Manager polling every interval.
func NewManager(env Environment, runner shell.Runner, interval time.Duration) *Manager {
	return &Manager{
		env:      env,
		runner:   runner,
		interval: interval,
		now:      time.Now,
		wait:     sleepCtx,
		rename:   os.Rename,
	}
}

// Environment returns the simulator environment.
func (m *Manager) Environment() Environment { return m.env }

// OnPoll registers a hook called before every status query.
func (m *Manager) OnPoll(fn func(attempt int)) { m.progress = fn }

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (m *Manager) configArg(configPath string) string {
	if filepath.IsAbs(configPath) {
		return configPath
	}
	return m.env.ConfigPrefix + configPath
}

// Launch starts the simulator with configPath. A missing success marker is
// reported as a *LaunchError; the caller decides whether to continue.
func (m *Manager) Launch(ctx context.Context, configPath string) error {
	log := logging.FromContext(ctx)
	if len(m.env.StartCommand) == 0 {
		return &LaunchError{Config: configPath, Err: errors.New("no start command configured")}
	}
	arg := m.configArg(configPath)
	log.Info("invoking simulator", "config", arg)
	args := append(append([]string{}, m.env.StartCommand[1:]...), arg)
	out, err := m.runner.Run(ctx, m.env.Root, m.env.StartCommand[0], args...)
	if out = strings.TrimRight(out, "\r\n "); out != "" {
		log.Info("simulator start output", "output", out)
	}
	if err != nil {
		return &LaunchError{Config: arg, Output: out, Err: err}
	}
	if !strings.Contains(out, m.env.StartedMarker) {
		return &LaunchError{Config: arg, Output: out}
	}
	return nil
}

// Status queries the simulator and returns its output lines.
func (m *Manager) Status(ctx context.Context) ([]string, error) {
	if len(m.env.StatusCommand) == 0 {
		return nil, errors.New("no status command configured")
	}
	out, err := m.runner.Run(ctx, m.env.statusDir(), m.env.StatusCommand[0], m.env.StatusCommand[1:]...)
	if err != nil {
		return nil, fmt.Errorf("simulator status: %w", err)
	}
	return shell.Lines(out), nil
}

func (m *Manager) stopped(lines []string) bool {
	for _, l := range lines {
		if strings.Contains(l, m.env.StoppedMarker) {
			return true
		}
	}
	return false
}

// AwaitCompletion polls the simulator status until it reports stopped or ctx is
// cancelled. Cancellation is observed once per iteration, before the next query.
func (m *Manager) AwaitCompletion(ctx context.Context, interval time.Duration) (Completion, error) {
	log := logging.FromContext(ctx)
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			log.Info("polling cancelled", "attempts", attempt)
			return CompletionCancelled, nil
		}
		if m.progress != nil {
			m.progress(attempt)
		}
		// An in-flight query is allowed to finish; cancellation is checked above.
		lines, err := m.Status(context.WithoutCancel(ctx))
		if err != nil {
			return CompletionStopped, err
		}
		if m.stopped(lines) {
			log.Debug("simulator stopped", "attempts", attempt+1)
			return CompletionStopped, nil
		}
		m.wait(ctx, interval)
	}
}

// Stop issues the explicit stop command.
func (m *Manager) Stop(ctx context.Context) error {
	if len(m.env.StopCommand) == 0 {
		return errors.New("no stop command configured")
	}
	out, err := m.runner.Run(ctx, m.env.Root, m.env.StopCommand[0], m.env.StopCommand[1:]...)
	if out = strings.TrimRight(out, "\r\n "); out != "" {
		logging.FromContext(ctx).Info("simulator stop output", "output", out)
	}
	if err != nil {
		return fmt.Errorf("stop simulator: %w", err)
	}
	return nil
}

// Destinations computes one timestamped archive folder per kind:
// <output-root>/<config-stem>/<kind>_<timestamp>.
func (m *Manager) Destinations(configPath string, kinds ...string) Artifacts {
	if len(kinds) == 0 {
		kinds = DefaultKinds
	}
	stem := trial.Stem(configPath)
	out := make(Artifacts, 0, len(kinds))
	for _, kind := range kinds {
		dir := kind + "_" + m.now().Format(TimestampLayout)
		out = append(out, Artifact{Kind: kind, Path: filepath.Join(m.env.OutputRoot, stem, dir)})
	}
	return out
}

// Archive moves the simulator's output folders into their trial archive. Every
// source is checked before anything moves; a missing folder fails the trial. When
// a later folder fails to move, the ones already moved are put back.
func (m *Manager) Archive(ctx context.Context, configPath string, kinds ...string) (Artifacts, error) {
	log := logging.FromContext(ctx)
	dests := m.Destinations(configPath, kinds...)
	for _, d := range dests {
		src := m.env.folder(d.Kind)
		info, err := os.Stat(src)
		if err != nil {
			return nil, &ArchiveError{Kind: d.Kind, Source: src, Err: err}
		}
		if !info.IsDir() {
			return nil, &ArchiveError{Kind: d.Kind, Source: src, Err: errors.New("not a directory")}
		}
	}
	for i, d := range dests {
		src := m.env.folder(d.Kind)
		err := os.MkdirAll(filepath.Dir(d.Path), 0o755)
		if err == nil {
			err = m.move(src, d.Path)
		}
		if err != nil {
			m.restore(log, dests[:i])
			return nil, &ArchiveError{Kind: d.Kind, Source: src, Err: err}
		}
		log.Info("archived simulator output", "kind", d.Kind, "dest", d.Path)
	}
	return dests, nil
}

// move relocates src to dst. Across filesystems the tree is copied and the source
// removed, so no source remains either way.
func (m *Manager) move(src, dst string) error {
	err := m.rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if err := os.CopyFS(dst, os.DirFS(src)); err != nil {
		os.RemoveAll(dst)
		return fmt.Errorf("copy %s across filesystems: %w", src, err)
	}
	return os.RemoveAll(src)
}

func (m *Manager) restore(log *slog.Logger, moved Artifacts) {
	for i := len(moved) - 1; i >= 0; i-- {
		src := m.env.folder(moved[i].Kind)
		if err := m.move(moved[i].Path, src); err != nil {
			log.Error("could not restore simulator output", "kind", moved[i].Kind, "from", moved[i].Path, "err", err)
		}
	}
}

// Run executes one trial end to end. Launch failures are logged and the trial
// proceeds; Stop is attempted exactly once whatever the polling outcome.
func (m *Manager) Run(ctx context.Context, configPath string) (Artifacts, error) {
	log := logging.FromContext(ctx).With("config", configPath)
	ctx = logging.NewContext(ctx, log)

	if err := m.Launch(ctx, configPath); err != nil {
		log.Error("simulator launch failed", "err", err)
	}
	completion, awaitErr := m.AwaitCompletion(ctx, m.interval)
	// The stop command must go out even when ctx was cancelled.
	if err := m.Stop(context.WithoutCancel(ctx)); err != nil {
		log.Warn("simulator stop failed", "err", err)
	}
	if awaitErr != nil {
		return nil, awaitErr
	}
	log.Info("simulator finished", "completion", completion)
	return m.Archive(ctx, configPath)
}
