// Package shell runs external programs from a fixed working directory and captures
// their standard output.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Runner executes a command in dir and returns its captured stdout.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (string, error)
}

// Executor is the os/exec backed Runner.
type Executor struct {
	DryRun bool
	Logger *slog.Logger
}

// NewExecutor creates an Executor. A nil logger falls back to slog.Default().
func NewExecutor(logger *slog.Logger, dryRun bool) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{DryRun: dryRun, Logger: logger}
}

// Run executes name with args from dir. Stderr is folded into the error when the
// command exits non-zero.
func (e *Executor) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	line := strings.TrimSpace(name + " " + strings.Join(args, " "))
	if e.DryRun {
		e.Logger.Info("dry-run", "dir", dir, "cmd", line)
		return fmt.Sprintf("[DRY-RUN] Would execute: %s", line), nil
	}

	e.Logger.Debug("executing", "dir", dir, "cmd", line)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return stdout.String(), fmt.Errorf("%s: %w: %s", line, err, msg)
		}
		return stdout.String(), fmt.Errorf("%s: %w", line, err)
	}
	return stdout.String(), nil
}

// Lines splits captured output into right-trimmed lines, dropping a trailing empty one.
func Lines(out string) []string {
	out = strings.TrimRight(out, "\r\n")
	if out == "" {
		return nil
	}
	raw := strings.Split(out, "\n")
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	return lines
}
