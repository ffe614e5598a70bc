package sink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"

	"hnp-sim/internal/stats"
)

// ReplayStats feeds TrialStats rows from a JSONL stream to writer, waiting delay
// between rows. It returns the number of rows written.
func ReplayStats(ctx context.Context, r io.Reader, writer StatsWriter, delay time.Duration) (int, error) {
	dec := json.NewDecoder(r)
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		var row stats.TrialStats
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, err
		}
		if n > 0 && delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return n, ctx.Err()
			case <-t.C:
			}
		}
		if err := writer.WriteStats(row); err != nil {
			return n, err
		}
		n++
	}
}

// ReplayStatsFile opens a file and replays its rows.
func ReplayStatsFile(ctx context.Context, path string, writer StatsWriter, delay time.Duration) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return ReplayStats(ctx, f, writer, delay)
}
