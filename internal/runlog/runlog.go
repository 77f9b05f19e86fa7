// Package runlog holds the append-only record of one harness run: every
// outbound attempt, every inbound callback, the running counters, and the
// error list. Dispatcher and listener share a single *RunLog.
package runlog

import (
	"sync"
	"time"
)

// Outcome is the status recorded for an entry.
type Outcome string

const (
	OutcomeSent     Outcome = "sent"
	OutcomeFailed   Outcome = "failed"
	OutcomeReceived Outcome = "received"
)

// ErrorKind separates send failures from inbound payload problems.
type ErrorKind string

const (
	ErrorKindTransport  ErrorKind = "transport"
	ErrorKindExtraction ErrorKind = "extraction"
)

// Entry is either an OutboundAttempt or an InboundEvent.
type Entry interface {
	When() time.Time
	Status() Outcome
	Text() string
}

// OutboundAttempt records one call to the transport client.
type OutboundAttempt struct {
	Timestamp time.Time
	Body      string
	To        string
	Outcome   Outcome
	SID       string
	Error     string
}

func (a OutboundAttempt) When() time.Time { return a.Timestamp }
func (a OutboundAttempt) Status() Outcome { return a.Outcome }
func (a OutboundAttempt) Text() string    { return a.Body }

// InboundEvent records one accepted provider callback.
type InboundEvent struct {
	Timestamp time.Time
	Body      string
	From      string
}

func (e InboundEvent) When() time.Time { return e.Timestamp }
func (e InboundEvent) Status() Outcome { return OutcomeReceived }
func (e InboundEvent) Text() string    { return e.Body }

// ErrorRecord is one entry of the error list.
type ErrorRecord struct {
	Timestamp time.Time
	Kind      ErrorKind
	Error     string
	Message   string
}

// Report is a point-in-time copy of a RunLog.
type Report struct {
	Sent     int
	Received int
	Errored  int
	Entries  []Entry
	Errors   []ErrorRecord
}

// RunLog is safe for concurrent use. Entries are never removed or mutated.
type RunLog struct {
	mu       sync.Mutex
	now      func() time.Time
	entries  []Entry
	errors   []ErrorRecord
	sent     int
	received int
	errored  int
}

// Option configures a RunLog.
type Option func(*RunLog)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *RunLog) {
		if now != nil {
			l.now = now
		}
	}
}

// New returns an empty RunLog.
func New(opts ...Option) *RunLog {
	l := &RunLog{now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RecordSent appends a successful OutboundAttempt and increments sent.
func (l *RunLog) RecordSent(body, to, sid string) OutboundAttempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	attempt := OutboundAttempt{
		Timestamp: l.now(),
		Body:      body,
		To:        to,
		Outcome:   OutcomeSent,
		SID:       sid,
	}
	l.entries = append(l.entries, attempt)
	l.sent++
	return attempt
}

// RecordFailed appends a failed OutboundAttempt plus its error record and
// increments errored.
func (l *RunLog) RecordFailed(body, to string, cause error) OutboundAttempt {
	msg := errorText(cause)
	l.mu.Lock()
	defer l.mu.Unlock()
	ts := l.now()
	attempt := OutboundAttempt{
		Timestamp: ts,
		Body:      body,
		To:        to,
		Outcome:   OutcomeFailed,
		Error:     msg,
	}
	l.entries = append(l.entries, attempt)
	l.errors = append(l.errors, ErrorRecord{
		Timestamp: ts,
		Kind:      ErrorKindTransport,
		Error:     msg,
		Message:   body,
	})
	l.errored++
	return attempt
}

// RecordReceived appends an InboundEvent and increments received. A non-nil
// extractErr is kept in the error list; the event is recorded regardless.
func (l *RunLog) RecordReceived(body, from string, extractErr error) InboundEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	ts := l.now()
	event := InboundEvent{Timestamp: ts, Body: body, From: from}
	l.entries = append(l.entries, event)
	l.received++
	if extractErr != nil {
		l.errors = append(l.errors, ErrorRecord{
			Timestamp: ts,
			Kind:      ErrorKindExtraction,
			Error:     errorText(extractErr),
			Message:   body,
		})
	}
	return event
}

// Snapshot returns a copy of the current state.
func (l *RunLog) Snapshot() Report {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := make([]Entry, len(l.entries))
	copy(entries, l.entries)
	errs := make([]ErrorRecord, len(l.errors))
	copy(errs, l.errors)
	return Report{
		Sent:     l.sent,
		Received: l.received,
		Errored:  l.errored,
		Entries:  entries,
		Errors:   errs,
	}
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
