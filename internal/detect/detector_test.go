package detect

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hnp-sim/internal/whitefield"
)

func writeLog(t *testing.T, dir, body string) whitefield.Artifacts {
	t.Helper()
	logDir := filepath.Join(dir, "log_2026_10_15-09_30_00")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(logDir, "airline.log"), []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return whitefield.Artifacts{
		{Kind: whitefield.KindLog, Path: logDir},
		{Kind: whitefield.KindPcap, Path: filepath.Join(dir, "pcap_2026_10_15-09_30_00")},
	}
}

func TestDetect(t *testing.T) {
	cases := []struct {
		name string
		body string
		want bool
	}{
		{"empty", "", false},
		{"clean", "INFO rx ok\nINFO tx ok\n", false},
		{"marker", "INFO rx ok\n[PHY] snr <= snr_min, dropped pkt from 2\n", true},
		{"repeated", strings.Repeat("snr <= snr_min, dropped\n", 5), true},
		{"near miss", "snr < snr_min, dropped\n", false},
	}
	d := NewDetector("airline.log", nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			arts := writeLog(t, t.TempDir(), tc.body)
			path, err := d.EventLogPath(arts)
			if err != nil {
				t.Fatalf("EventLogPath: %v", err)
			}
			got, err := d.Detect(path)
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Detect = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDetectMissingLog(t *testing.T) {
	d := NewDetector("airline.log", nil)
	if _, err := d.Detect(filepath.Join(t.TempDir(), "airline.log")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	if _, err := d.Inspect(Evidence{}); err == nil {
		t.Fatalf("expected error without log artifact")
	}
}

type recorder struct{ results []Result }

func (r *recorder) RecordDetection(res Result) error {
	r.results = append(r.results, res)
	return nil
}

func TestInspectRecordsOnlyDetections(t *testing.T) {
	rec := &recorder{}
	d := NewDetector("airline.log", rec)

	clean := Evidence{Sensitivity: -99, Topology: "[0,0,0]", Artifacts: writeLog(t, t.TempDir(), "ok")}
	res, err := d.Inspect(clean)
	if err != nil || res.Detected {
		t.Fatalf("clean trial: res=%+v err=%v", res, err)
	}
	hit := Evidence{Sensitivity: -100, Topology: "[0,0,0] [0,15,0]", Artifacts: writeLog(t, t.TempDir(), Marker)}
	res, err = d.Inspect(hit)
	if err != nil || !res.Detected {
		t.Fatalf("hnp trial: res=%+v err=%v", res, err)
	}
	if len(rec.results) != 1 || rec.results[0].Evidence.Sensitivity != -100 {
		t.Fatalf("unexpected recordings %+v", rec.results)
	}
}

func TestRunLog(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	rl, err := OpenRunLog(filepath.Join(dir, "logs"), start, "abc")
	if err != nil {
		t.Fatalf("OpenRunLog: %v", err)
	}
	arts := whitefield.Artifacts{{Kind: "log", Path: "/out/log_x"}, {Kind: "pcap", Path: "/out/pcap_x"}}
	res := Result{Detected: true, Time: start, Evidence: Evidence{Sensitivity: -101, Topology: "[0,0,0] [0,20,0]", Artifacts: arts}}
	if err := rl.RecordDetection(res); err != nil {
		t.Fatalf("RecordDetection: %v", err)
	}
	if err := rl.RecordExhausted(50); err != nil {
		t.Fatalf("RecordExhausted: %v", err)
	}
	if err := rl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if filepath.Base(rl.Path()) != "sim_runs_2026_10_15-09_30_00.log" {
		t.Fatalf("unexpected log name %s", rl.Path())
	}
	data, err := os.ReadFile(rl.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		"Results from simulation runs started at: 2026_10_15-09_30_00",
		"Hidden Node Problem detected at:",
		"rxSensitivity=-101",
		"nodePosition=[0,0,0] [0,20,0]",
		"Hidden Node problem not detected after 50 iterations.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("run log missing %q:\n%s", want, out)
		}
	}
	block := out[strings.Index(out, "directories:")+len("directories:"):]
	block = block[:strings.Index(block, "]")+1]
	var paths []string
	if err := json.Unmarshal([]byte(block), &paths); err != nil {
		t.Fatalf("paths block is not JSON: %v", err)
	}
	if len(paths) != 2 || paths[0] != "/out/log_x" {
		t.Fatalf("unexpected paths %v", paths)
	}
}
