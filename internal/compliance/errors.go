package compliance

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthExpired signals that the credential is missing, invalid or expired.
	ErrAuthExpired = errors.New("authentication expired")
	// ErrRequestFailed is the class of network and server failures.
	ErrRequestFailed = errors.New("request failed")
	// ErrNotFound reports a missing request or company.
	ErrNotFound = errors.New("not found")
)

// RequestError describes a failed call to the data source.
type RequestError struct {
	Op     string
	Status int
	Detail string
	Err    error
}

func (e *RequestError) Error() string {
	msg := e.Op
	if e.Status > 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap lets errors.Is match both ErrRequestFailed and the transport cause.
func (e *RequestError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrRequestFailed, e.Err}
	}
	return []error{ErrRequestFailed}
}
