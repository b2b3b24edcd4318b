package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// Transition records one step of a run.
type Transition struct {
	From       Stage     `json:"from"`
	To         Stage     `json:"to"`
	When       string    `json:"when"`
	RetryCount int       `json:"retry_count"`
	At         time.Time `json:"at"`
}

// RunRecord is the audit trail of one workflow run.
type RunRecord struct {
	RunID       string         `json:"run_id"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	Request     Request        `json:"request"`
	Transitions []Transition   `json:"transitions"`
	Final       *WorkflowState `json:"final_state"`
}

// AuditSink persists run records.
type AuditSink interface {
	Record(ctx context.Context, rec RunRecord) error
}

// FileAudit writes each run as <dir>/<run_id>.json.
type FileAudit struct {
	Fs  afero.Fs
	Dir string
}

// Record writes rec as indented JSON.
func (a FileAudit) Record(_ context.Context, rec RunRecord) error {
	if err := a.Fs.MkdirAll(a.Dir, 0o755); err != nil {
		return fmt.Errorf("create runs dir: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}
	path := filepath.Join(a.Dir, rec.RunID+".json")
	if err := afero.WriteFile(a.Fs, path, data, 0o644); err != nil {
		return fmt.Errorf("write run record: %w", err)
	}
	return nil
}

// LoadRun reads a run record written by FileAudit.
func (a FileAudit) LoadRun(runID string) (*RunRecord, error) {
	data, err := afero.ReadFile(a.Fs, filepath.Join(a.Dir, runID+".json"))
	if err != nil {
		return nil, fmt.Errorf("read run record: %w", err)
	}
	var rec RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse run record: %w", err)
	}
	return &rec, nil
}
