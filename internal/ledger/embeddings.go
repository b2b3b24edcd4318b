package ledger

import (
	"context"
	"fmt"
)

// SearchDocument is a document joined with its feature summary and, when one
// has been computed, its embedding.
type SearchDocument struct {
	FeatureID    string
	DocumentType DocumentType
	Content      string
	Title        string
	Description  string
	Type         FeatureType
	Status       Status
	Model        string
	Vector       []float32
}

// UpsertEmbedding stores the vector for a feature document.
func (s *Store) UpsertEmbedding(ctx context.Context, featureID string, docType DocumentType, model string, vector []float32) error {
	if len(vector) == 0 {
		return storageErr("upsert embedding", fmt.Errorf("empty vector"))
	}
	err := s.withTx(ctx, func(tx txExecutor) error {
		if err := requireFeatureTx(ctx, tx, featureID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO feature_embeddings (feature_id, document_type, model, embedding, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(feature_id, document_type) DO UPDATE SET
				model = excluded.model,
				embedding = excluded.embedding,
				updated_at = excluded.updated_at
		`, featureID, docType, model, encodeVector(vector), formatTime(s.now()))
		if err != nil {
			return fmt.Errorf("upsert embedding: %w", err)
		}
		return nil
	})
	return storageErr("upsert embedding", err)
}

// ListSearchDocuments returns every document of the given type (all types
// when empty) with its feature summary and optional embedding.
func (s *Store) ListSearchDocuments(ctx context.Context, docType DocumentType) ([]SearchDocument, error) {
	query := `
		SELECT d.feature_id, d.document_type, d.content, f.title, COALESCE(f.description, ''),
		       f.type, f.status, COALESCE(e.model, ''), e.embedding
		FROM feature_documents d
		JOIN features f ON f.feature_id = d.feature_id
		LEFT JOIN feature_embeddings e
		       ON e.feature_id = d.feature_id AND e.document_type = d.document_type`
	var args []any
	if docType != "" {
		query += ` WHERE d.document_type = ?`
		args = append(args, docType)
	}
	query += ` ORDER BY f.date_created DESC, f.rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query search documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []SearchDocument
	for rows.Next() {
		var d SearchDocument
		var blob []byte
		if err := rows.Scan(&d.FeatureID, &d.DocumentType, &d.Content, &d.Title, &d.Description,
			&d.Type, &d.Status, &d.Model, &blob); err != nil {
			return nil, fmt.Errorf("scan search document: %w", err)
		}
		if len(blob) > 0 {
			d.Vector = decodeVector(blob)
		}
		docs = append(docs, d)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return docs, nil
}
