package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/josephgoksu/FeatureWing/internal/ledger"
	"github.com/josephgoksu/FeatureWing/internal/workflow"
)

// Event names.
const (
	EventCommandExecuted  = "command_executed"
	EventFeatureRequested = "feature_requested"
	EventServerStarted    = "mcp_server_started"
)

// CommandProps describes one CLI invocation. Only the command path is sent,
// never its arguments.
func CommandProps(command string, elapsed time.Duration, err error) Properties {
	props := Properties{
		"command":     command,
		"duration_ms": elapsed.Milliseconds(),
		"success":     err == nil,
	}
	if err != nil {
		props["error_type"] = errorType(err)
	}
	return props
}

// RequestProps describes a finished workflow run.
func RequestProps(outcome, featureType, gate string, retries, candidates int, elapsed time.Duration) Properties {
	return Properties{
		"outcome":         outcome,
		"feature_type":    featureType,
		"gate":            gate,
		"retry_count":     retries,
		"candidate_count": candidates,
		"duration_ms":     elapsed.Milliseconds(),
	}
}

// errorType classifies err without leaking its message, which may carry
// paths or feature text.
func errorType(err error) string {
	var (
		storageErr    *ledger.StorageError
		validationErr *workflow.ValidationError
		oracleErr     *workflow.OracleUnavailableError
	)
	switch {
	case errors.Is(err, workflow.ErrUserCancelled), errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, workflow.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ledger.ErrNotFound):
		return "not_found"
	case errors.Is(err, ledger.ErrInvalidTransition):
		return "invalid_transition"
	case errors.As(err, &storageErr):
		return "storage"
	case errors.As(err, &validationErr):
		return "validation"
	case errors.As(err, &oracleErr):
		return "oracle_unavailable"
	default:
		return "error"
	}
}
