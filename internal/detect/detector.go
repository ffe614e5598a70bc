// Package detect classifies a trial from the simulator's event log and keeps the
// sweep session's run log.
package detect

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"time"

	"hnp-sim/internal/whitefield"
)

// Marker is logged by the simulator's radio model when a frame arrives below the
// receiver's minimum SNR, the signature of colliding hidden transmitters.
const Marker = "snr <= snr_min, dropped"

// Evidence is the context a verdict is reported with.
type Evidence struct {
	Sensitivity int                  `json:"sensitivity"`
	Topology    string               `json:"topology"`
	Iteration   int                  `json:"iteration"`
	Artifacts   whitefield.Artifacts `json:"artifacts"`
}

// Result is a trial verdict. There is no partial state.
type Result struct {
	Detected bool      `json:"detected"`
	Evidence Evidence  `json:"evidence"`
	Time     time.Time `json:"time"`
}

// Recorder receives detections. *RunLog implements it.
type Recorder interface {
	RecordDetection(Result) error
}

// Detector scans event logs for Marker.
type Detector struct {
	marker   []byte
	eventLog string
	rec      Recorder
	now      func() time.Time
}

// NewDetector creates a Detector reading <log artifact>/<eventLog>. rec may be nil.
func NewDetector(eventLog string, rec Recorder) *Detector {
	return &Detector{marker: []byte(Marker), eventLog: eventLog, rec: rec, now: time.Now}
}

// Detect reports whether the marker occurs anywhere in the log at path.
func (d *Detector) Detect(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	return bytes.Contains(data, d.marker), nil
}

// EventLogPath resolves the simulator event log inside a trial's artifacts.
func (d *Detector) EventLogPath(arts whitefield.Artifacts) (string, error) {
	dir := arts.Path(whitefield.KindLog)
	if dir == "" {
		return "", errors.New("trial produced no log artifact")
	}
	return filepath.Join(dir, d.eventLog), nil
}

// Inspect classifies a trial and records it when HNP was detected.
func (d *Detector) Inspect(ev Evidence) (Result, error) {
	path, err := d.EventLogPath(ev.Artifacts)
	if err != nil {
		return Result{}, err
	}
	found, err := d.Detect(path)
	if err != nil {
		return Result{}, err
	}
	res := Result{Detected: found, Evidence: ev, Time: d.now()}
	if found && d.rec != nil {
		if err := d.rec.RecordDetection(res); err != nil {
			return res, err
		}
	}
	return res, nil
}
