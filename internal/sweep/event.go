package sweep

import "time"

// EventKind names a step of the sweep.
type EventKind string

const (
	EventSweepStarted  EventKind = "sweep_started"
	EventSweepFinished EventKind = "sweep_finished"
	EventTrialStarted  EventKind = "trial_started"
	EventTrialFinished EventKind = "trial_finished"
	EventPoll          EventKind = "poll"
	EventDetected      EventKind = "detected"
	EventExhausted     EventKind = "exhausted"
)

// Event is emitted to an EventWriter as the sweep progresses.
type Event struct {
	Kind        EventKind `json:"kind"`
	Session     string    `json:"session"`
	Sensitivity int       `json:"sensitivity"`
	Iteration   int       `json:"iteration"`
	Attempt     int       `json:"attempt,omitempty"`
	Topology    string    `json:"topology,omitempty"`
	ConfigPath  string    `json:"config_path,omitempty"`
	Detected    bool      `json:"detected"`
	Artifacts   []string  `json:"artifacts,omitempty"`
	Err         string    `json:"error,omitempty"`
	Time        time.Time `json:"time"`
}

// EventWriter consumes sweep events.
type EventWriter interface {
	WriteEvent(Event) error
}

// Detection summarises one positive verdict for status reporting.
type Detection struct {
	Sensitivity int       `json:"sensitivity"`
	Iteration   int       `json:"iteration"`
	Topology    string    `json:"topology"`
	Artifacts   []string  `json:"artifacts"`
	Time        time.Time `json:"time"`
}

// State is a point-in-time snapshot of a running sweep.
type State struct {
	Session     string      `json:"session"`
	Running     bool        `json:"running"`
	Sensitivity int         `json:"sensitivity"`
	Iteration   int         `json:"iteration"`
	Polls       int         `json:"polls"`
	Topology    string      `json:"topology"`
	ConfigPath  string      `json:"config_path"`
	Trials      int         `json:"trials"`
	Detections  []Detection `json:"detections"`
	Exhausted   []int       `json:"exhausted"`
	Err         string      `json:"error,omitempty"`
	StartedAt   time.Time   `json:"started_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (s State) clone() State {
	s.Detections = append([]Detection(nil), s.Detections...)
	s.Exhausted = append([]int(nil), s.Exhausted...)
	return s
}
