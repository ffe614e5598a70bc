package sink

import (
	"encoding/json"
	"os"
	"sync"

	"hnp-sim/internal/stats"
	"hnp-sim/internal/sweep"
)

// FileWriter writes statistics and events to JSONL files.
type FileWriter struct {
	mu        sync.Mutex
	statsFile *os.File
	eventFile *os.File
	statsEnc  *json.Encoder
	eventEnc  *json.Encoder
}

// NewFileWriter creates a FileWriter. Either path may be empty to skip that log.
func NewFileWriter(statsPath, eventPath string) (*FileWriter, error) {
	fw := &FileWriter{}
	if statsPath != "" {
		f, err := os.Create(statsPath)
		if err != nil {
			return nil, err
		}
		fw.statsFile = f
		fw.statsEnc = json.NewEncoder(f)
	}
	if eventPath != "" {
		f, err := os.Create(eventPath)
		if err != nil {
			fw.Close()
			return nil, err
		}
		fw.eventFile = f
		fw.eventEnc = json.NewEncoder(f)
	}
	return fw, nil
}

// WriteStats logs a single trial, if enabled.
func (f *FileWriter) WriteStats(s stats.TrialStats) error {
	if f.statsEnc == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statsEnc.Encode(s)
}

// WriteStatsBatch logs multiple trials.
func (f *FileWriter) WriteStatsBatch(rows []stats.TrialStats) error {
	for _, r := range rows {
		if err := f.WriteStats(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteEvent logs a sweep event, if enabled.
func (f *FileWriter) WriteEvent(e sweep.Event) error {
	if f.eventEnc == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.eventEnc.Encode(e)
}

// WriteEvents logs multiple events.
func (f *FileWriter) WriteEvents(rows []sweep.Event) error {
	for _, e := range rows {
		if err := f.WriteEvent(e); err != nil {
			return err
		}
	}
	return nil
}

// Close closes any underlying files.
func (f *FileWriter) Close() error {
	var err error
	for _, file := range []*os.File{f.statsFile, f.eventFile} {
		if file == nil {
			continue
		}
		if e := file.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
