// StdoutWriter prints human-friendly, colorized statistics and events to STDOUT.
package sink

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"hnp-sim/internal/stats"
	"hnp-sim/internal/sweep"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
)

// StdoutWriter prints rows using ANSI colors.
type StdoutWriter struct {
	plan *sweep.Plan
	out  io.Writer
	once sync.Once
	mu   sync.Mutex
}

// NewStdoutWriter creates a StdoutWriter writing to os.Stdout. plan may be nil;
// when set it is printed once before the first row.
func NewStdoutWriter(plan *sweep.Plan) *StdoutWriter {
	return &StdoutWriter{plan: plan, out: os.Stdout}
}

func (w *StdoutWriter) printOverview() {
	if w.plan == nil {
		return
	}
	fmt.Fprintln(w.out, "Sweep Plan:")
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Sensitivities:\t%d .. %d\n", w.plan.SensitivityStart, w.plan.SensitivityEnd)
	fmt.Fprintf(tw, "Baseline Topology:\t%s\n", w.plan.Baseline)
	fmt.Fprintf(tw, "Ping:\t%g\n", w.plan.Ping)
	fmt.Fprintf(tw, "Nodes:\t%g\n", w.plan.Nodes)
	fmt.Fprintf(tw, "Max Iterations:\t%d\n", sweep.MaxIterations)
	tw.Flush()
	fmt.Fprintln(w.out)
}

func efficiencyColor(pct float64) string {
	switch {
	case pct >= 90:
		return colorGreen
	case pct >= 50:
		return colorYellow
	default:
		return colorRed
	}
}

// WriteStats prints one trial on a single line.
func (w *StdoutWriter) WriteStats(s stats.TrialStats) error {
	w.once.Do(w.printOverview)
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, "%strial=%s%s ", colorBlue, s.Trial, colorReset)
	fmt.Fprintf(w.out, "%ss=%g x=%g%s ", colorMagenta, s.Sensitivity, s.Scale, colorReset)
	fmt.Fprintf(w.out, "sent=%d unique=%d replies=%d/%d ", s.TotalPacketsSent, s.TotalUniquePacketsSent, s.RepliesFromCentralNode, s.MaxTheoretical)
	fmt.Fprintf(w.out, "%sresponded=%.2f%%%s ", efficiencyColor(s.Responded), s.Responded, colorReset)
	fmt.Fprintf(w.out, "%sefficiency=%.2f%%%s\n", efficiencyColor(s.NetworkEfficiency), s.NetworkEfficiency, colorReset)
	return nil
}

// WriteStatsBatch prints trials as a table.
func (w *StdoutWriter) WriteStatsBatch(rows []stats.TrialStats) error {
	w.once.Do(w.printOverview)
	w.mu.Lock()
	defer w.mu.Unlock()
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Trial\ts\tx\tSent\tUnique\tReplies\tMax\t%%Responded\t%%Efficiency\n")
	for _, s := range rows {
		fmt.Fprintf(tw, "%s\t%g\t%g\t%d\t%d\t%d\t%d\t%.2f\t%.2f\n",
			s.Trial, s.Sensitivity, s.Scale, s.TotalPacketsSent, s.TotalUniquePacketsSent,
			s.RepliesFromCentralNode, s.MaxTheoretical, s.Responded, s.NetworkEfficiency)
	}
	return tw.Flush()
}

// WriteEvent prints a sweep event. Poll ticks are skipped.
func (w *StdoutWriter) WriteEvent(e sweep.Event) error {
	if e.Kind == sweep.EventPoll {
		return nil
	}
	w.once.Do(w.printOverview)
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, "%s[%s]%s ", colorGray, e.Time.Format(time.RFC3339), colorReset)
	switch e.Kind {
	case sweep.EventDetected:
		fmt.Fprintf(w.out, "%sHNP DETECTED%s s=%d iteration=%d topology=%s\n", colorRed, colorReset, e.Sensitivity, e.Iteration, e.Topology)
		for _, a := range e.Artifacts {
			fmt.Fprintf(w.out, "  %s%s%s\n", colorGray, a, colorReset)
		}
	case sweep.EventExhausted:
		fmt.Fprintf(w.out, "%sEXHAUSTED%s s=%d after %d iterations\n", colorYellow, colorReset, e.Sensitivity, e.Iteration)
	case sweep.EventTrialStarted:
		fmt.Fprintf(w.out, "%sTRIAL%s s=%d iteration=%d topology=%s config=%s\n", colorCyan, colorReset, e.Sensitivity, e.Iteration, e.Topology, e.ConfigPath)
	case sweep.EventTrialFinished:
		status := colorGreen + "clear" + colorReset
		if e.Err != "" {
			status = colorRed + "error: " + e.Err + colorReset
		} else if e.Detected {
			status = colorRed + "hidden node" + colorReset
		}
		fmt.Fprintf(w.out, "%sDONE%s s=%d iteration=%d %s\n", colorBlue, colorReset, e.Sensitivity, e.Iteration, status)
	default:
		line := fmt.Sprintf("%s%s%s session=%s", colorMagenta, strings.ToUpper(string(e.Kind)), colorReset, e.Session)
		if e.Err != "" {
			line += fmt.Sprintf(" %serror=%s%s", colorRed, e.Err, colorReset)
		}
		fmt.Fprintln(w.out, line)
	}
	return nil
}

// WriteEvents prints multiple events.
func (w *StdoutWriter) WriteEvents(rows []sweep.Event) error {
	for _, e := range rows {
		_ = w.WriteEvent(e)
	}
	return nil
}
