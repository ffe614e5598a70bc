package sink

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"hnp-sim/internal/stats"
	"hnp-sim/internal/sweep"
)

func TestFileWriter(t *testing.T) {
	dir := t.TempDir()
	statsPath := filepath.Join(dir, "stats.jsonl")
	eventPath := filepath.Join(dir, "events.jsonl")
	fw, err := NewFileWriter(statsPath, eventPath)
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	if err := fw.WriteStatsBatch([]stats.TrialStats{sampleStats(), sampleStats()}); err != nil {
		t.Fatalf("WriteStatsBatch: %v", err)
	}
	if err := fw.WriteEvent(sweep.Event{Kind: sweep.EventExhausted, Sensitivity: -100, Iteration: 50}); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(statsPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	n := 0
	for sc.Scan() {
		var got stats.TrialStats
		if err := json.Unmarshal(sc.Bytes(), &got); err != nil {
			t.Fatalf("decode stats: %v", err)
		}
		if got.Trial != sampleStats().Trial || got.Sensitivity != -99 || len(got.SequenceNumbers0) != 3 {
			t.Fatalf("unexpected stats: %#v", got)
		}
		n++
	}
	if n != 2 {
		t.Fatalf("expected 2 stats rows, got %d", n)
	}

	data, err := os.ReadFile(eventPath)
	if err != nil {
		t.Fatal(err)
	}
	var ev sweep.Event
	if err := json.Unmarshal(data, &ev); err != nil || ev.Sensitivity != -100 {
		t.Fatalf("unexpected event: %s (%v)", data, err)
	}
}

func TestFileWriterSkipsDisabledLogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	fw, err := NewFileWriter("", path)
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	defer fw.Close()
	if err := fw.WriteStats(sampleStats()); err != nil {
		t.Fatalf("disabled stats log must be a no-op: %v", err)
	}
}

func TestFileWriterBadPath(t *testing.T) {
	if _, err := NewFileWriter(filepath.Join(t.TempDir(), "missing", "stats.jsonl"), ""); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
