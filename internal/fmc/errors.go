package fmc

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoEvents is returned when an endpoint answered successfully but the
// requested window held no connection events.
var ErrNoEvents = errors.New("no connection events in window")

// AuthenticationError reports a failed token request. StatusCode is zero
// when the request never produced a response.
type AuthenticationError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthenticationError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("authentication failed: status %d: %v", e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("authentication error: %v", e.Err)
	case e.Body != "":
		return fmt.Sprintf("authentication failed: status %d: %s", e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("authentication failed: status %d", e.StatusCode)
	}
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// RetrievalError reports that every retrieval strategy was tried without
// producing an items collection.
type RetrievalError struct {
	Attempts []Attempt
}

func (e *RetrievalError) Error() string {
	if len(e.Attempts) == 0 {
		return "no retrieval strategies configured"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.String())
	}
	return fmt.Sprintf("all %d connection event requests failed: %s", len(e.Attempts), strings.Join(parts, "; "))
}

// Unwrap exposes the transport errors of the individual attempts.
func (e *RetrievalError) Unwrap() []error {
	var errs []error
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}

// EmptyResultError reports an endpoint that answered with an empty items
// collection. It matches ErrNoEvents with errors.Is.
type EmptyResultError struct {
	Method   string
	Endpoint string
	Attempts []Attempt
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Endpoint, ErrNoEvents)
}

func (e *EmptyResultError) Unwrap() error { return ErrNoEvents }

// AttemptsOf returns the strategies tried before err was produced, or nil
// when err carries none.
func AttemptsOf(err error) []Attempt {
	var retrievalErr *RetrievalError
	if errors.As(err, &retrievalErr) {
		return retrievalErr.Attempts
	}
	var emptyErr *EmptyResultError
	if errors.As(err, &emptyErr) {
		return emptyErr.Attempts
	}
	return nil
}
