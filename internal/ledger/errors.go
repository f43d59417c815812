package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrWritesDisabled is returned when the writes_enabled setting is off.
	ErrWritesDisabled = errors.New("writes_enabled is FALSE in Settings")

	// ErrNotFound is returned when an update targets an unknown movement id.
	ErrNotFound = errors.New("movement id not found")
)

// ValidationError reports a missing or malformed input field. It surfaces to
// the caller verbatim as the error message.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StructuralError reports a backing store missing an expected table or
// column. It is fatal for the request: a partial summary is worse than a
// visible failure for a financial tool.
type StructuralError struct {
	Table string
	Err   error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("structural error in %s: %v", e.Table, e.Err)
}

func (e *StructuralError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStructural reports whether err is a structural store failure.
func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}
