// Package whitefield drives the external Whitefield simulator through one trial:
// launch, poll until stopped, stop, and move its output folders into a
// per-trial archive.
package whitefield

import "path/filepath"

// Artifact kinds produced by the simulator.
const (
	KindLog  = "log"
	KindPcap = "pcap"
)

// DefaultKinds are archived after every trial, in this order.
var DefaultKinds = []string{KindLog, KindPcap}

// Environment describes where the simulator lives and how to talk to it. The
// simulator only works when invoked from Root.
type Environment struct {
	Root          string
	ConfigPrefix  string
	OutputRoot    string
	Folders       map[string]string
	StartCommand  []string
	StatusCommand []string
	StatusDir     string
	StopCommand   []string
	StartedMarker string
	StoppedMarker string
	EventLog      string
}

// DefaultEnvironment mirrors the layout of a Whitefield checkout next to the
// results generator.
func DefaultEnvironment() Environment {
	return Environment{
		Root:          "../../whitefield/",
		ConfigPrefix:  "../ot-wf-results-gen/cascoda/",
		OutputRoot:    "../simulation_outputs",
		Folders:       map[string]string{KindLog: "log", KindPcap: "pcap"},
		StartCommand:  []string{"./invoke_whitefield.sh"},
		StatusCommand: []string{"./whitefield_status.sh"},
		StatusDir:     "scripts",
		StopCommand:   []string{"./scripts/wfshell", "stop_whitefield"},
		StartedMarker: "Started OK",
		StoppedMarker: "Whitefield stopped",
		EventLog:      "airline.log",
	}
}

// folder returns the simulator working folder for kind.
func (e Environment) folder(kind string) string {
	rel := kind
	if f, ok := e.Folders[kind]; ok && f != "" {
		rel = f
	}
	return filepath.Join(e.Root, rel)
}

func (e Environment) statusDir() string {
	return filepath.Join(e.Root, e.StatusDir)
}
