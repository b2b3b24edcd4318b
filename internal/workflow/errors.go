package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUserCancelled signals an explicit clean termination by the user. It is
// not a failure.
var ErrUserCancelled = errors.New("cancelled by user")

// ErrInvalidRequest is returned by RunWorkflow before any stage runs when the
// request itself is malformed.
var ErrInvalidRequest = errors.New("invalid feature request")

// ValidationError reports that the judgment oracle found the request
// incomplete or not confident enough. It is recoverable through RETRY.
type ValidationError struct {
	IsComplete bool
	Confidence float64
	Threshold  float64
	Issues     []string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("validation confidence %.2f below %.2f", e.Confidence, e.Threshold)
	if e.Confidence >= e.Threshold && !e.IsComplete {
		msg = "request judged incomplete"
	}
	if len(e.Issues) > 0 {
		msg += ": " + strings.Join(e.Issues, "; ")
	}
	return msg
}

// OracleUnavailableError wraps a timeout or transport failure from an oracle
// or gate. It degrades to a fallback or a RETRY and never escapes a stage.
type OracleUnavailableError struct {
	Op  string
	Err error
}

func (e *OracleUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Op, e.Err)
}

func (e *OracleUnavailableError) Unwrap() error {
	return e.Err
}

// PanicError carries a panic recovered at a stage boundary.
type PanicError struct {
	Stage Stage
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Stage, e.Value)
}
