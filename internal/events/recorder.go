package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LogName is the audit log filename inside a feature directory.
const LogName = "events.log"

// Recorder appends events to a feature's audit log.
type Recorder struct {
	path string
}

// NewRecorder creates a recorder for the feature directory.
func NewRecorder(dir string) *Recorder {
	return &Recorder{path: filepath.Join(dir, LogName)}
}

// Record appends one event as a JSON line. Append mode keeps the log
// valid across independent phase-runner invocations.
func (r *Recorder) Record(e Event) error {
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Read returns every event in the log, oldest first.
func (r *Recorder) Read() ([]Event, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read event log: %w", err)
	}

	var out []Event
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var e Event
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("decode event log: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}
