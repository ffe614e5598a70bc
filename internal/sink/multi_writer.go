package sink

import (
	"hnp-sim/internal/stats"
	"hnp-sim/internal/sweep"
)

// MultiWriter fan-outs statistics and events to multiple writers.
type MultiWriter struct {
	statWriters  []StatsWriter
	eventWriters []EventWriter
}

// NewMultiWriter creates a new MultiWriter. Nil entries are dropped.
func NewMultiWriter(sws []StatsWriter, ews []EventWriter) *MultiWriter {
	mw := &MultiWriter{}
	for _, w := range sws {
		if w != nil {
			mw.statWriters = append(mw.statWriters, w)
		}
	}
	for _, w := range ews {
		if w != nil {
			mw.eventWriters = append(mw.eventWriters, w)
		}
	}
	return mw
}

// WriteStats sends a trial to all stats writers.
func (mw *MultiWriter) WriteStats(s stats.TrialStats) error {
	for _, w := range mw.statWriters {
		if err := w.WriteStats(s); err != nil {
			return err
		}
	}
	return nil
}

// WriteStatsBatch sends multiple trials to all writers, using batch if supported.
func (mw *MultiWriter) WriteStatsBatch(rows []stats.TrialStats) error {
	for _, w := range mw.statWriters {
		if err := WriteAllStats(w, rows); err != nil {
			return err
		}
	}
	return nil
}

// WriteEvent sends an event to all event writers. Every writer is tried; the
// first error is returned.
func (mw *MultiWriter) WriteEvent(e sweep.Event) error {
	var first error
	for _, w := range mw.eventWriters {
		if err := w.WriteEvent(e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// WriteEvents sends multiple events to all writers, using batch if supported.
func (mw *MultiWriter) WriteEvents(rows []sweep.Event) error {
	for _, w := range mw.eventWriters {
		if bw, ok := w.(batchEventWriter); ok {
			if err := bw.WriteEvents(rows); err != nil {
				return err
			}
			continue
		}
		for _, r := range rows {
			if err := w.WriteEvent(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetAdminStatus forwards the admin endpoint status to writers that show it.
func (mw *MultiWriter) SetAdminStatus(listening bool) {
	seen := map[any]bool{}
	forward := func(w any) {
		if aw, ok := w.(AdminStatusWriter); ok && !seen[w] {
			seen[w] = true
			aw.SetAdminStatus(listening)
		}
	}
	for _, w := range mw.statWriters {
		forward(w)
	}
	for _, w := range mw.eventWriters {
		forward(w)
	}
}
