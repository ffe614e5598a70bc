package sweep

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"hnp-sim/internal/logging"
	"hnp-sim/internal/shell"
	"hnp-sim/internal/trial"
)

// Renderer writes the simulator config of one trial and returns its path.
type Renderer interface {
	Render(ctx context.Context, cfg trial.Config, topology string) (string, error)
}

// ScriptRenderer drives the external config-editor script:
//
//	./config-editor.sh -n 3 -t 1 -s -99 -x "[0,0,0] [0,10,0]" -p 83 -i <template> -o <out>
type ScriptRenderer struct {
	Runner    shell.Runner
	Dir       string
	Script    string
	Template  string
	OutputDir string
	Prefix    string
}

// NewScriptRenderer returns a renderer with the reference script layout.
func NewScriptRenderer(runner shell.Runner) *ScriptRenderer {
	return &ScriptRenderer{
		Runner:    runner,
		Dir:       ".",
		Script:    "./config-editor.sh",
		Template:  "../config/wf_ot_v1_8.cfg",
		OutputDir: "../config/",
		Prefix:    "wf_ot",
	}
}

func formatParam(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Render runs the script and returns the path of the rendered config.
func (r *ScriptRenderer) Render(ctx context.Context, cfg trial.Config, topology string) (string, error) {
	out := filepath.Join(r.OutputDir, trial.FileName(r.Prefix, cfg))
	args := []string{
		"-n", formatParam(cfg.Nodes),
		"-t", formatParam(cfg.Duration),
		"-s", formatParam(cfg.Sensitivity),
		"-x", topology,
		"-p", formatParam(cfg.Ping),
		"-i", r.Template,
		"-o", out,
	}
	stdout, err := r.Runner.Run(ctx, r.Dir, r.Script, args...)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", out, err)
	}
	if s := strings.TrimSpace(stdout); s != "" {
		logging.FromContext(ctx).Debug("config editor output", "output", s)
	}
	return out, nil
}
