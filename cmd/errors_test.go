package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/josephgoksu/FeatureWing/internal/app"
	"github.com/josephgoksu/FeatureWing/internal/config"
	"github.com/josephgoksu/FeatureWing/internal/ledger"
	"github.com/josephgoksu/FeatureWing/internal/ui"
	"github.com/josephgoksu/FeatureWing/internal/workflow"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

type testError struct {
	msg string
}

func (e *testError) Error() string {
	return e.msg
}

// captureStderr runs fn with os.Stderr redirected and returns what it wrote.
func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	original := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stderr = w
	defer func() { os.Stderr = original }()

	fn()

	_ = w.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	return strings.TrimSpace(buf.String())
}

func TestPrintError(t *testing.T) {
	tests := []struct {
		name         string
		userMsg      string
		technicalErr error
		verbose      bool
		expectedOut  string
	}{
		{
			name:        "normal mode without technical error",
			userMsg:     "User friendly message",
			expectedOut: "User friendly message",
		},
		{
			name:         "verbose mode with error",
			userMsg:      "User friendly message",
			technicalErr: &testError{msg: "technical details"},
			verbose:      true,
			expectedOut:  "Error: technical details",
		},
		{
			name:         "normal mode with technical error",
			userMsg:      "User friendly message",
			technicalErr: &testError{msg: "technical details"},
			expectedOut:  "User friendly message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Set("verbose", tt.verbose)
			defer viper.Set("verbose", false)

			output := captureStderr(t, func() { PrintError(tt.userMsg, tt.technicalErr) })
			assert.Contains(t, output, tt.expectedOut)
		})
	}
}

func TestLogError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		verbose     bool
		shouldPrint bool
	}{
		{name: "verbose mode with error", err: &testError{msg: "error details"}, verbose: true, shouldPrint: true},
		{name: "verbose mode without error", verbose: true, shouldPrint: true},
		{name: "non-verbose mode", err: &testError{msg: "error details"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Set("verbose", tt.verbose)
			defer viper.Set("verbose", false)

			output := captureStderr(t, func() { LogError("Debug message", tt.err) })
			if tt.shouldPrint {
				assert.Contains(t, output, "[DEBUG] Debug message")
			} else {
				assert.Empty(t, output)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "success", err: nil, want: ExitOK},
		{name: "user cancelled", err: workflow.ErrUserCancelled, want: ExitInterrupted},
		{name: "wrapped cancel", err: fmt.Errorf("approval: %w", workflow.ErrUserCancelled), want: ExitInterrupted},
		{name: "signal", err: context.Canceled, want: ExitInterrupted},
		{name: "prompt cancelled", err: ui.ErrPromptCancelled, want: ExitInterrupted},
		{name: "reported cancel", err: &reportedError{err: workflow.ErrUserCancelled}, want: ExitInterrupted},
		{name: "not found", err: ledger.ErrNotFound, want: ExitFailure},
		{name: "plain failure", err: errors.New("boom"), want: ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestUserMessage(t *testing.T) {
	assert.Contains(t, userMessage(config.ErrNotInitialized), "featurewing init")
	assert.Contains(t, userMessage(fmt.Errorf("judge: %w", app.ErrNoLLM)), "llm.provider")
	assert.Contains(t, userMessage(ledger.ErrInvalidTransition), "only move forward")
	assert.Contains(t, userMessage(fmt.Errorf("open ledger: %w", ledger.ErrSchemaInvalid)), "incompatible version")
	assert.Equal(t, "Error: boom", userMessage(errors.New("boom")))
}

func TestReportError(t *testing.T) {
	viper.Set("verbose", false)

	out := captureStderr(t, func() { reportError(workflow.ErrUserCancelled) })
	assert.Equal(t, "Cancelled.", out)

	out = captureStderr(t, func() { reportError(&reportedError{err: errors.New("shown already")}) })
	assert.Empty(t, out)

	out = captureStderr(t, func() { reportError(errors.New("disk full")) })
	assert.Equal(t, "Error: disk full", out)
}
