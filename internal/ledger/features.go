package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

const featureColumns = `feature_id, type, status, title, description, keywords, date_created,
	date_implemented, date_superseded, commit_hash, changed_files`

// AddFeature allocates the next feature id, inserts the feature with status
// requested, and inserts any supplied relations and initial document, all in
// one transaction. When in.IdempotencyKey matches an existing feature, that
// feature's id is returned and nothing is written.
func (s *Store) AddFeature(ctx context.Context, in FeatureInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", storageErr("add feature", err)
	}

	keywordsJSON, err := marshalStrings(normalizeKeywords(in.Keywords))
	if err != nil {
		return "", storageErr("add feature", fmt.Errorf("marshal keywords: %w", err))
	}

	var featureID string
	var reused bool
	err = s.withTx(ctx, func(tx txExecutor) error {
		featureID, reused = "", false

		if in.IdempotencyKey != "" {
			var existing string
			err := tx.QueryRowContext(ctx,
				`SELECT feature_id FROM features WHERE idempotency_key = ?`, in.IdempotencyKey).Scan(&existing)
			if err == nil {
				featureID, reused = existing, true
				return nil
			}
			if err != sql.ErrNoRows {
				return fmt.Errorf("lookup idempotency key: %w", err)
			}
		}

		seq, err := nextSequence(ctx, tx, s.prefix)
		if err != nil {
			return err
		}
		id := FormatFeatureID(s.prefix, seq)
		now := formatTime(s.now())

		_, err = tx.ExecContext(ctx, `
			INSERT INTO features (feature_id, type, status, title, description, keywords, date_created, idempotency_key)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, id, in.Type, StatusRequested, strings.TrimSpace(in.Title), in.Description, keywordsJSON, now,
			nullString(in.IdempotencyKey))
		if err != nil {
			return fmt.Errorf("insert feature: %w", err)
		}

		for _, r := range in.Relations {
			if err := insertRelationTx(ctx, tx, id, r.Type, r.TargetID); err != nil {
				return err
			}
		}

		if in.InitialDocument != nil {
			if err := upsertDocumentTx(ctx, tx, id, in.InitialDocument.Type, in.InitialDocument.Content, now); err != nil {
				return err
			}
		}

		featureID = id
		return nil
	})
	if err != nil {
		return "", storageErr("add feature", err)
	}

	if reused {
		slog.Info("feature already recorded for idempotency key", "feature_id", featureID)
		return featureID, nil
	}
	if in.InitialDocument != nil {
		s.mirrorDocument(ctx, featureID, in.InitialDocument.Type)
	}
	slog.Debug("feature added", "feature_id", featureID, "relations", len(in.Relations))
	return featureID, nil
}

// nextSequence returns max(numeric suffix)+1 for ids with the given prefix.
// It must run inside the write transaction that inserts the new id.
func nextSequence(ctx context.Context, tx txExecutor, prefix string) (int, error) {
	var maxSeq sql.NullInt64
	err := tx.QueryRowContext(ctx, `
		SELECT MAX(CAST(SUBSTR(feature_id, ?) AS INTEGER))
		FROM features
		WHERE feature_id LIKE ?
	`, len(prefix)+2, prefix+"-%").Scan(&maxSeq)
	if err != nil {
		return 0, fmt.Errorf("scan max feature id: %w", err)
	}
	if !maxSeq.Valid {
		return 1, nil
	}
	return int(maxSeq.Int64) + 1, nil
}

// GetFeatureByID returns the feature with its relations and documents, or nil
// when no feature has that id.
func (s *Store) GetFeatureByID(ctx context.Context, id string) (*Feature, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+featureColumns+` FROM features WHERE feature_id = ?`, id)
	f, err := scanFeature(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query feature: %w", err)
	}

	if f.Relations, err = s.queryRelations(ctx, `WHERE feature_id = ?`, id); err != nil {
		return nil, err
	}
	if f.IncomingRelations, err = s.queryRelations(ctx, `WHERE target_id = ?`, id); err != nil {
		return nil, err
	}
	if f.Documents, err = s.listDocuments(ctx, id); err != nil {
		return nil, err
	}
	return f, nil
}

// GetFeaturesByStatus returns features in a status, newest first.
func (s *Store) GetFeaturesByStatus(ctx context.Context, status Status) ([]Feature, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid status %q", status)
	}
	return s.ListFeatures(ctx, ListFilter{Status: status})
}

// ListFeatures returns features matching the filter, newest first.
func (s *Store) ListFeatures(ctx context.Context, filter ListFilter) ([]Feature, error) {
	var where []string
	var args []any
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, filter.Type)
	}

	query := `SELECT ` + featureColumns + ` FROM features`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date_created DESC, rowid DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	return s.queryFeatures(ctx, query, args...)
}

// likeEscaper makes LIKE wildcards in search terms match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// KeywordSearch returns features whose title, description, or keywords
// contain any of the terms (case-insensitive), newest first.
func (s *Store) KeywordSearch(ctx context.Context, terms []string) ([]Feature, error) {
	var clauses []string
	var args []any
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		pattern := "%" + likeEscaper.Replace(t) + "%"
		clauses = append(clauses, `(title LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\' OR keywords LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}
	if len(clauses) == 0 {
		return nil, nil
	}
	query := `SELECT ` + featureColumns + ` FROM features WHERE ` + strings.Join(clauses, " OR ") +
		` ORDER BY date_created DESC, rowid DESC`
	return s.queryFeatures(ctx, query, args...)
}

// UpdateFeatureStatus sets the status of a feature and, when stamp is set,
// stamps the matching date column. It returns false without writing when the
// feature does not exist.
func (s *Store) UpdateFeatureStatus(ctx context.Context, id string, status Status, stamp TimestampField) (bool, error) {
	return s.updateStatus(ctx, id, status, stamp, nil)
}

// MarkFeatureImplemented moves a feature to validated, stamps
// date_implemented and records the commit details.
func (s *Store) MarkFeatureImplemented(ctx context.Context, id, commitHash string, changedFiles []string) (bool, error) {
	filesJSON, err := marshalStrings(changedFiles)
	if err != nil {
		return false, storageErr("mark implemented", fmt.Errorf("marshal changed files: %w", err))
	}
	return s.updateStatus(ctx, id, StatusValidated, StampImplemented, func(tx txExecutor) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE features SET commit_hash = ?, changed_files = ? WHERE feature_id = ?`,
			nullString(commitHash), filesJSON, id)
		return err
	})
}

// MarkFeatureSuperseded moves a feature to superseded and stamps date_superseded.
func (s *Store) MarkFeatureSuperseded(ctx context.Context, id string) (bool, error) {
	return s.updateStatus(ctx, id, StatusSuperseded, StampSuperseded, nil)
}

func (s *Store) updateStatus(ctx context.Context, id string, status Status, stamp TimestampField, extra func(tx txExecutor) error) (bool, error) {
	if !status.Valid() {
		return false, storageErr("update status", fmt.Errorf("invalid status %q", status))
	}
	switch stamp {
	case StampNone, StampImplemented, StampSuperseded:
	default:
		return false, storageErr("update status", fmt.Errorf("invalid timestamp field %q", stamp))
	}

	found := false
	err := s.withTx(ctx, func(tx txExecutor) error {
		found = false
		var current Status
		err := tx.QueryRowContext(ctx, `SELECT status FROM features WHERE feature_id = ?`, id).Scan(&current)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read status: %w", err)
		}
		found = true

		if !CanTransition(current, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
		}

		query := `UPDATE features SET status = ? WHERE feature_id = ?`
		args := []any{status, id}
		if stamp != StampNone {
			// stamp is one of two fixed column names, checked above
			query = fmt.Sprintf(`UPDATE features SET status = ?, %s = ? WHERE feature_id = ?`, stamp)
			args = []any{status, formatTime(s.now()), id}
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if extra != nil {
			return extra(tx)
		}
		return nil
	})
	if err != nil {
		return false, storageErr("update status", err)
	}
	if found {
		slog.Debug("feature status updated", "feature_id", id, "status", status)
	}
	return found, nil
}

// GetFeatureStatistics aggregates feature counts by status and type.
func (s *Store) GetFeatureStatistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{
		ByStatus: make(map[Status]int),
		ByType:   make(map[FeatureType]int),
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, type, COUNT(1) FROM features GROUP BY status, type`)
	if err != nil {
		return nil, fmt.Errorf("query statistics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var status Status
		var typ FeatureType
		var n int
		if err := rows.Scan(&status, &typ, &n); err != nil {
			return nil, fmt.Errorf("scan statistics: %w", err)
		}
		stats.ByStatus[status] += n
		stats.ByType[typ] += n
		stats.Total += n
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeature(row rowScanner) (*Feature, error) {
	var f Feature
	var description, keywords, implemented, superseded, commit, changed sql.NullString
	var created string
	err := row.Scan(&f.ID, &f.Type, &f.Status, &f.Title, &description, &keywords, &created,
		&implemented, &superseded, &commit, &changed)
	if err != nil {
		return nil, err
	}
	f.Description = description.String
	f.Keywords = unmarshalStrings(keywords)
	f.DateCreated = parseTime(created)
	f.DateImplemented = parseNullTime(implemented)
	f.DateSuperseded = parseNullTime(superseded)
	f.CommitHash = commit.String
	f.ChangedFiles = unmarshalStrings(changed)
	return &f, nil
}

func (s *Store) queryFeatures(ctx context.Context, query string, args ...any) ([]Feature, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query features: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var features []Feature
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		features = append(features, *f)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return features, nil
}
