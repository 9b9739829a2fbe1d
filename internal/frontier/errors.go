package frontier

import (
	"fmt"

	"github.com/hlopes/crawld/pkg/failure"
)

// StoreErrorCause classifies a frontier store failure for observability.
type StoreErrorCause string

const (
	ErrCauseUnexpectedDB  StoreErrorCause = "unexpected db error"
	ErrCauseTokenNotFound StoreErrorCause = "token not found"
)

// StoreError wraps an unexpected frontier failure. Store failures surface
// to the caller; the core does not define recovery beyond that.
type StoreError struct {
	Message string
	Cause   StoreErrorCause
	Err     error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("frontier: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("frontier: %s", e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Severity is always fatal to the caller: the core has no recovery path
// for a store failure, only the obligation to leave on-disk state valid.
func (e *StoreError) Severity() failure.Severity {
	return failure.SeverityFatal
}

var _ failure.ClassifiedError = (*StoreError)(nil)

func newStoreError(message string, cause StoreErrorCause, err error) *StoreError {
	return &StoreError{Message: message, Cause: cause, Err: err}
}
