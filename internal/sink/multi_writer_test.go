package sink

import (
	"errors"
	"testing"

	"hnp-sim/internal/stats"
	"hnp-sim/internal/sweep"
)

type collectWriter struct {
	rows    []stats.TrialStats
	batches int
	events  []sweep.Event
	admin   *bool
	err     error
}

func (c *collectWriter) WriteStats(s stats.TrialStats) error {
	c.rows = append(c.rows, s)
	return c.err
}

func (c *collectWriter) WriteEvent(e sweep.Event) error {
	c.events = append(c.events, e)
	return c.err
}

func (c *collectWriter) SetAdminStatus(on bool) { c.admin = &on }

type batchCollector struct{ collectWriter }

func (b *batchCollector) WriteStatsBatch(rows []stats.TrialStats) error {
	b.batches++
	b.rows = append(b.rows, rows...)
	return nil
}

func TestMultiWriterFanOut(t *testing.T) {
	plain, batch := &collectWriter{}, &batchCollector{}
	mw := NewMultiWriter([]StatsWriter{plain, batch, nil}, []EventWriter{plain})

	rows := []stats.TrialStats{sampleStats(), sampleStats()}
	if err := mw.WriteStatsBatch(rows); err != nil {
		t.Fatalf("WriteStatsBatch: %v", err)
	}
	if len(plain.rows) != 2 || len(batch.rows) != 2 || batch.batches != 1 {
		t.Fatalf("unexpected fan-out: plain=%d batch=%d batches=%d", len(plain.rows), len(batch.rows), batch.batches)
	}
	if err := mw.WriteEvent(sweep.Event{Kind: sweep.EventDetected}); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}
	if len(plain.events) != 1 {
		t.Fatalf("event not forwarded")
	}
}

func TestMultiWriterEventErrorsDoNotStarveOthers(t *testing.T) {
	boom := errors.New("db down")
	failing, ok := &collectWriter{err: boom}, &collectWriter{}
	mw := NewMultiWriter(nil, []EventWriter{failing, ok})
	if err := mw.WriteEvent(sweep.Event{Kind: sweep.EventPoll}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if len(ok.events) != 1 {
		t.Fatalf("second writer skipped after first failed")
	}
}

func TestMultiWriterSetAdminStatus(t *testing.T) {
	w := &collectWriter{}
	mw := NewMultiWriter([]StatsWriter{w}, []EventWriter{w})
	mw.SetAdminStatus(true)
	if w.admin == nil || !*w.admin {
		t.Fatalf("admin status not forwarded")
	}
}
