package pipeline

import (
	"errors"
	"fmt"
)

// ErrJobBusy is returned when another stage holds the job lock
var ErrJobBusy = errors.New("job is busy with another stage")

// ValidationError reports a request the job's current state cannot accept.
// Nothing is mutated and nothing is recorded on the job.
type ValidationError struct {
	Op     string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(op, format string, args ...interface{}) error {
	return &ValidationError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// ExternalServiceError wraps a failed call to a collaborator
type ExternalServiceError struct {
	Service string
	Op      string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Service, e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

func external(service, op string, err error) error {
	return &ExternalServiceError{Service: service, Op: op, Err: err}
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsExternal reports whether err is an ExternalServiceError
func IsExternal(err error) bool {
	var ee *ExternalServiceError
	return errors.As(err, &ee)
}
