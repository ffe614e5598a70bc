package detect

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RunLogLayout stamps run log names and headers.
const RunLogLayout = "2006_01_02-15_04_05"

// RunLog is the append-only, human-readable log of one sweep session.
type RunLog struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// OpenRunLog creates <dir>/sim_runs_<timestamp>.log and writes its header.
func OpenRunLog(dir string, startedAt time.Time, session string) (*RunLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	stamp := startedAt.Format(RunLogLayout)
	path := filepath.Join(dir, "sim_runs_"+stamp+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	rl := &RunLog{f: f, path: path}
	header := "Results from simulation runs started at: " + stamp
	if session != "" {
		header += "\nSession: " + session
	}
	if err := rl.write(header); err != nil {
		f.Close()
		return nil, err
	}
	return rl, nil
}

// Path returns the log file location.
func (l *RunLog) Path() string { return l.path }

func (l *RunLog) write(s string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.f.WriteString(s); err != nil {
		return err
	}
	return l.f.Sync()
}

// RecordDetection appends the evidence of a positive verdict.
func (l *RunLog) RecordDetection(r Result) error {
	paths, err := json.MarshalIndent(r.Evidence.Artifacts.AbsPaths(), "", "    ")
	if err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString("\nHidden Node Problem detected at:")
	b.WriteString("\ndetectedAt=" + r.Time.Format(time.RFC3339))
	b.WriteString("\nrxSensitivity=" + strconv.Itoa(r.Evidence.Sensitivity))
	b.WriteString("\nnodePosition=" + r.Evidence.Topology)
	b.WriteString("\n")
	b.WriteString("\nThe simulations output directories:")
	b.Write(paths)
	b.WriteString("\n")
	return l.write(b.String())
}

// RecordExhausted notes a sensitivity whose trial budget ran out.
func (l *RunLog) RecordExhausted(iterations int) error {
	return l.write(fmt.Sprintf("\nHidden Node problem not detected after %d iterations.", iterations))
}

// RecordNote appends a free-form line, e.g. a sensitivity header.
func (l *RunLog) RecordNote(note string) error {
	return l.write("\n" + note)
}

// Close closes the file.
func (l *RunLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}
