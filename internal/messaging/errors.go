package messaging

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidMessage is returned before any network call when a message is
// missing its body or an address.
var ErrInvalidMessage = errors.New("messaging: invalid message")

// TransportError is a failed send: network failure, auth failure, or a
// provider-side rejection.
type TransportError struct {
	Provider   string
	StatusCode int
	Code       int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Code != 0:
		return fmt.Sprintf("%s send failed: status %d code %d: %s", e.Provider, e.StatusCode, e.Code, e.Message)
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s send failed: status %d: %s", e.Provider, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s send failed: status %d", e.Provider, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s send failed: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s send failed: %s", e.Provider, e.Message)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable reports whether the provider signalled a transient condition.
// The harness never retries; the dispatcher logs the flag with the failure.
func (e *TransportError) Retryable() bool {
	if e.StatusCode == 0 {
		return e.Err != nil
	}
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// ExtractionError describes an inbound callback whose fields could not all be
// read. The callback is still accepted with empty strings for missing fields.
type ExtractionError struct {
	Missing []string
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("messaging: failed to parse callback form: %v", e.Err)
	}
	return fmt.Sprintf("messaging: callback missing fields: %s", strings.Join(e.Missing, ", "))
}

func (e *ExtractionError) Unwrap() error { return e.Err }
