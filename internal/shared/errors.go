package shared

import "errors"

var (
	// ErrCSRFTokenMissing occurs when a form arrives without a token.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when the submitted token differs from the session's.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
