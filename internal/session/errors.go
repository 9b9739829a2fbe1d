package session

import (
	"fmt"

	"github.com/hlopes/crawld/pkg/failure"
)

type SessionErrorCause int

const (
	ErrCauseUnknownToken SessionErrorCause = iota
	ErrCauseInvalidSeed
	ErrCauseBadFilterConfig
	ErrCauseStoreFailure
)

// SessionError is always fatal: it wraps configuration errors (bad seed,
// unknown resume token, bad regex) and store failures while opening or
// resuming a session, all of which stop the run before any worker starts.
type SessionError struct {
	Message string
	Cause   SessionErrorCause
	Err     error
}

func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("session: %s", e.Message)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

func (e *SessionError) Severity() failure.Severity {
	return failure.SeverityFatal
}

var _ failure.ClassifiedError = (*SessionError)(nil)

func newSessionError(cause SessionErrorCause, message string, err error) *SessionError {
	return &SessionError{Message: message, Cause: cause, Err: err}
}
