// Package sink fans trial statistics and sweep events out to terminals, files,
// GreptimeDB and the TUI.
package sink

import (
	"hnp-sim/internal/stats"
	"hnp-sim/internal/sweep"
)

// StatsWriter receives per-trial statistics.
type StatsWriter interface {
	WriteStats(stats.TrialStats) error
}

// EventWriter receives sweep events.
type EventWriter = sweep.EventWriter

// Optional: stats writers may support batch mode
type batchStatsWriter interface {
	WriteStatsBatch([]stats.TrialStats) error
}

// Optional: event writers may support batch mode
type batchEventWriter interface {
	WriteEvents([]sweep.Event) error
}

// AdminStatusWriter allows writers to receive admin endpoint status updates.
type AdminStatusWriter interface {
	SetAdminStatus(listening bool)
}

// WriteAllStats sends rows to w, in one batch when w supports it.
func WriteAllStats(w StatsWriter, rows []stats.TrialStats) error {
	if bw, ok := w.(batchStatsWriter); ok {
		return bw.WriteStatsBatch(rows)
	}
	for _, r := range rows {
		if err := w.WriteStats(r); err != nil {
			return err
		}
	}
	return nil
}
