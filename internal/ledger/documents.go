package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// AddFeatureDocument creates or replaces the document of the given type for a
// feature. created_at is kept from the first write; updated_at is bumped on
// every write. It returns false when the feature does not exist.
func (s *Store) AddFeatureDocument(ctx context.Context, featureID string, docType DocumentType, content string) (bool, error) {
	if !docType.Valid() {
		return false, storageErr("add document", fmt.Errorf("invalid document type %q", docType))
	}

	found := false
	err := s.withTx(ctx, func(tx txExecutor) error {
		found = false
		if err := requireFeatureTx(ctx, tx, featureID); err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		found = true
		if err := upsertDocumentTx(ctx, tx, featureID, docType, content, formatTime(s.now())); err != nil {
			return err
		}
		// The stored vector no longer describes the new content.
		_, err := tx.ExecContext(ctx,
			`DELETE FROM feature_embeddings WHERE feature_id = ? AND document_type = ?`, featureID, docType)
		return err
	})
	if err != nil {
		return false, storageErr("add document", err)
	}
	if found {
		s.mirrorDocument(ctx, featureID, docType)
		slog.Debug("document saved", "feature_id", featureID, "document_type", docType)
	}
	return found, nil
}

func upsertDocumentTx(ctx context.Context, tx txExecutor, featureID string, docType DocumentType, content, now string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO feature_documents (feature_id, document_type, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(feature_id, document_type) DO UPDATE SET
			content = excluded.content,
			updated_at = excluded.updated_at
	`, featureID, docType, content, now, now)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// GetFeatureDocument returns one document, or nil when it does not exist.
func (s *Store) GetFeatureDocument(ctx context.Context, featureID string, docType DocumentType) (*Document, error) {
	var d Document
	var created, updated string
	err := s.db.QueryRowContext(ctx, `
		SELECT feature_id, document_type, content, created_at, updated_at
		FROM feature_documents WHERE feature_id = ? AND document_type = ?
	`, featureID, docType).Scan(&d.FeatureID, &d.Type, &d.Content, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query document: %w", err)
	}
	d.CreatedAt = parseTime(created)
	d.UpdatedAt = parseTime(updated)
	return &d, nil
}

func (s *Store) listDocuments(ctx context.Context, featureID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT feature_id, document_type, content, created_at, updated_at
		FROM feature_documents WHERE feature_id = ? ORDER BY id
	`, featureID)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []Document
	for rows.Next() {
		var d Document
		var created, updated string
		if err := rows.Scan(&d.FeatureID, &d.Type, &d.Content, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.CreatedAt = parseTime(created)
		d.UpdatedAt = parseTime(updated)
		docs = append(docs, d)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return docs, nil
}

// CountDocuments returns the number of document rows for a feature and type.
func (s *Store) CountDocuments(ctx context.Context, featureID string, docType DocumentType) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM feature_documents WHERE feature_id = ? AND document_type = ?`,
		featureID, docType).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// mirrorDocument writes the stored document to the markdown mirror, if any.
// Mirror failures are logged and never fail the write that triggered them.
func (s *Store) mirrorDocument(ctx context.Context, featureID string, docType DocumentType) {
	if s.mirror == nil {
		return
	}
	f, err := s.GetFeatureByID(ctx, featureID)
	if err != nil || f == nil {
		slog.Warn("markdown mirror skipped", "feature_id", featureID, "error", err)
		return
	}
	for _, d := range f.Documents {
		if d.Type != docType {
			continue
		}
		if err := s.mirror.WriteDocument(*f, d); err != nil {
			slog.Warn("markdown mirror failed", "feature_id", featureID, "error", err)
		}
	}
}
