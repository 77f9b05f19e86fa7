package runlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Unix-seconds timestamp, matching the float values of the original result files.
type unixSeconds time.Time

func (u unixSeconds) MarshalJSON() ([]byte, error) {
	t := time.Time(u)
	return []byte(fmt.Sprintf("%.6f", float64(t.UnixNano())/1e9)), nil
}

type messageJSON struct {
	Timestamp unixSeconds `json:"timestamp"`
	Message   string      `json:"message"`
	Status    Outcome     `json:"status"`
	SID       string      `json:"sid,omitempty"`
	From      *string     `json:"from,omitempty"`
	To        string      `json:"to,omitempty"`
}

type errorJSON struct {
	Timestamp unixSeconds `json:"timestamp"`
	Error     string      `json:"error"`
	Message   string      `json:"message"`
	Kind      ErrorKind   `json:"kind,omitempty"`
}

type reportJSON struct {
	MessagesSent     int           `json:"messages_sent"`
	MessagesReceived int           `json:"messages_received"`
	TestMessages     []messageJSON `json:"test_messages"`
	Errors           []errorJSON   `json:"errors"`
}

// MarshalJSON renders the persisted artifact schema.
func (r Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.wire())
}

func (r Report) wire() reportJSON {
	out := reportJSON{
		MessagesSent:     r.Sent,
		MessagesReceived: r.Received,
		TestMessages:     make([]messageJSON, 0, len(r.Entries)),
		Errors:           make([]errorJSON, 0, len(r.Errors)),
	}
	for _, entry := range r.Entries {
		switch e := entry.(type) {
		case OutboundAttempt:
			out.TestMessages = append(out.TestMessages, messageJSON{
				Timestamp: unixSeconds(e.Timestamp),
				Message:   e.Body,
				Status:    e.Outcome,
				SID:       e.SID,
				To:        e.To,
			})
		case InboundEvent:
			from := e.From
			out.TestMessages = append(out.TestMessages, messageJSON{
				Timestamp: unixSeconds(e.Timestamp),
				Message:   e.Body,
				Status:    OutcomeReceived,
				From:      &from,
			})
		}
	}
	for _, rec := range r.Errors {
		out.Errors = append(out.Errors, errorJSON{
			Timestamp: unixSeconds(rec.Timestamp),
			Error:     rec.Error,
			Message:   rec.Message,
			Kind:      rec.Kind,
		})
	}
	return out
}

// Encode returns the indented JSON document for the report. Non-ASCII text
// and markup characters are written verbatim.
func (r Report) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r.wire()); err != nil {
		return nil, fmt.Errorf("runlog: encode report: %w", err)
	}
	return buf.Bytes(), nil
}

// Persist writes the current snapshot to path. The log is only read.
func (l *RunLog) Persist(path string) ([]byte, error) {
	data, err := l.Snapshot().Encode()
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return nil, err
	}
	return data, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".runlog-*.json")
	if err != nil {
		return fmt.Errorf("runlog: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("runlog: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("runlog: close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("runlog: chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("runlog: rename to %s: %w", path, err)
	}
	return nil
}
