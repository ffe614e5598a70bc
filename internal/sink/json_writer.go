package sink

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"hnp-sim/internal/stats"
	"hnp-sim/internal/sweep"
)

// JSONStdoutWriter prints statistics and events as JSON lines to STDOUT.
type JSONStdoutWriter struct {
	out io.Writer
	mu  sync.Mutex
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
func NewJSONStdoutWriter() *JSONStdoutWriter {
	return &JSONStdoutWriter{out: os.Stdout}
}

func (w *JSONStdoutWriter) print(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = fmt.Fprintln(w.out, string(data))
	return err
}

// WriteStats outputs a trial in JSON format.
func (w *JSONStdoutWriter) WriteStats(s stats.TrialStats) error { return w.print(s) }

// WriteEvent outputs a sweep event in JSON format.
func (w *JSONStdoutWriter) WriteEvent(e sweep.Event) error { return w.print(e) }

// WriteEvents outputs multiple events in JSON format.
func (w *JSONStdoutWriter) WriteEvents(rows []sweep.Event) error {
	for _, e := range rows {
		if err := w.WriteEvent(e); err != nil {
			return err
		}
	}
	return nil
}
