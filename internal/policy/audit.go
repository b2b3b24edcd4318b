package policy

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditStore persists policy decisions for compliance and audit trail.
// It shares the ledger's SQLite database (table policy_decisions).
type AuditStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewAuditStore creates a new audit store using an existing database connection.
func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// SaveDecision persists a policy decision.
// If DecisionID is empty, a new UUID will be generated.
func (s *AuditStore) SaveDecision(decision *PolicyDecision) error {
	if decision == nil {
		return fmt.Errorf("decision is nil")
	}
	if decision.DecisionID == "" {
		decision.DecisionID = uuid.New().String()
	}
	if decision.EvaluatedAt.IsZero() {
		decision.EvaluatedAt = s.now()
	}

	_, err := s.db.Exec(`
		INSERT INTO policy_decisions (
			decision_id, policy_path, result, violations, input_json, run_id, evaluated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		decision.DecisionID,
		decision.PolicyPath,
		decision.Result,
		decision.ViolationsJSON(),
		decision.InputJSON(),
		nullString(decision.RunID),
		decision.EvaluatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert policy decision: %w", err)
	}
	return nil
}

const decisionColumns = `id, decision_id, policy_path, result, violations, input_json, run_id, evaluated_at`

// GetDecision retrieves a policy decision by its UUID.
func (s *AuditStore) GetDecision(decisionID string) (*PolicyDecision, error) {
	row := s.db.QueryRow(`SELECT `+decisionColumns+` FROM policy_decisions WHERE decision_id = ?`, decisionID)
	d, err := scanDecision(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("decision not found: %s", decisionID)
	}
	return d, err
}

// ListDecisionsOptions provides filtering options for ListDecisions.
type ListDecisionsOptions struct {
	RunID  string
	Result string    // "allow" or "deny"
	Since  time.Time // evaluated_at >= Since
	Limit  int       // 0 = no limit
}

// ListDecisions retrieves policy decisions, newest first.
func (s *AuditStore) ListDecisions(opts ListDecisionsOptions) ([]*PolicyDecision, error) {
	query := `SELECT ` + decisionColumns + ` FROM policy_decisions WHERE 1=1`
	args := []any{}

	if opts.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, opts.RunID)
	}
	if opts.Result != "" {
		query += " AND result = ?"
		args = append(args, opts.Result)
	}
	if !opts.Since.IsZero() {
		query += " AND evaluated_at >= ?"
		args = append(args, opts.Since.UTC().Format(time.RFC3339))
	}
	query += " ORDER BY evaluated_at DESC, id DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query policy decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var decisions []*PolicyDecision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// CountViolations returns the number of deny decisions since the given time.
func (s *AuditStore) CountViolations(since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM policy_decisions WHERE result = 'deny' AND evaluated_at >= ?`,
		since.UTC().Format(time.RFC3339)).Scan(&count)
	return count, err
}

// PruneOldDecisions removes decisions older than the specified duration.
func (s *AuditStore) PruneOldDecisions(olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan)
	result, err := s.db.Exec(
		"DELETE FROM policy_decisions WHERE evaluated_at < ?",
		cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("prune old decisions: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecision(row rowScanner) (*PolicyDecision, error) {
	var d PolicyDecision
	var violationsJSON, inputJSON, runID sql.NullString
	var evaluatedAt string

	err := row.Scan(&d.ID, &d.DecisionID, &d.PolicyPath, &d.Result,
		&violationsJSON, &inputJSON, &runID, &evaluatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan policy decision: %w", err)
	}

	d.Violations = ParseViolations(violationsJSON.String)
	if inputJSON.String != "" && inputJSON.String != "{}" {
		var input any
		if err := json.Unmarshal([]byte(inputJSON.String), &input); err == nil {
			d.Input = input
		}
	}
	d.RunID = runID.String
	d.EvaluatedAt, _ = time.Parse(time.RFC3339, evaluatedAt)
	return &d, nil
}

// nullString converts an empty string to sql.NullString.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
