package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/josephgoksu/FeatureWing/internal/app"
	"github.com/josephgoksu/FeatureWing/internal/config"
	"github.com/josephgoksu/FeatureWing/internal/ledger"
	"github.com/josephgoksu/FeatureWing/internal/ui"
	"github.com/josephgoksu/FeatureWing/internal/workflow"
	"github.com/spf13/viper"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitInterrupted = 130
)

// PrintError prints an error message without exiting, allowing for recovery.
func PrintError(userMsg string, technicalErr error) {
	if viper.GetBool("verbose") && technicalErr != nil {
		// In verbose mode, print the detailed, underlying technical error.
		fmt.Fprintf(os.Stderr, "Error: %v\n", technicalErr)
	} else {
		fmt.Fprintln(os.Stderr, userMsg)
	}
}

// LogError logs an error without printing to stderr if verbose mode is off.
func LogError(msg string, err error) {
	if viper.GetBool("verbose") {
		if err != nil {
			fmt.Fprintf(os.Stderr, "[DEBUG] %s: %v\n", msg, err)
		} else {
			fmt.Fprintf(os.Stderr, "[DEBUG] %s\n", msg)
		}
	}
}

func isInterrupt(err error) bool {
	return errors.Is(err, workflow.ErrUserCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, ui.ErrPromptCancelled)
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case isInterrupt(err):
		return ExitInterrupted
	default:
		return ExitFailure
	}
}

// userMessage turns well-known errors into a hint the user can act on.
func userMessage(err error) string {
	switch {
	case errors.Is(err, config.ErrNotInitialized):
		return "Error: this project has no FeatureWing ledger yet. Run 'featurewing init' first."
	case errors.Is(err, app.ErrNoLLM):
		return "Error: no LLM provider is usable. Set llm.provider and the provider's API key (e.g. OPENAI_API_KEY)."
	case errors.Is(err, ledger.ErrSchemaInvalid):
		return fmt.Sprintf("Error: %v (the ledger was written by an incompatible version; export it and re-run 'featurewing init' in a fresh directory)", err)
	case errors.Is(err, ledger.ErrInvalidTransition):
		return fmt.Sprintf("Error: %v (statuses only move forward; superseded is final)", err)
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}

// reportedError marks an error the command already rendered.
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func reportError(err error) {
	var shown *reportedError
	if errors.As(err, &shown) {
		return
	}
	if isInterrupt(err) {
		fmt.Fprintln(os.Stderr, "Cancelled.")
		return
	}
	PrintError(userMessage(err), err)
}
