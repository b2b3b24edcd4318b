package ledger

import (
	"context"
	"fmt"
	"log/slog"
)

// AddRelation records a directed relation between two existing features.
func (s *Store) AddRelation(ctx context.Context, featureID string, relType RelationType, targetID string) error {
	if !relType.Valid() {
		return storageErr("add relation", fmt.Errorf("invalid relation type %q", relType))
	}
	err := s.withTx(ctx, func(tx txExecutor) error {
		if err := requireFeatureTx(ctx, tx, featureID); err != nil {
			return err
		}
		return insertRelationTx(ctx, tx, featureID, relType, targetID)
	})
	if err != nil {
		return storageErr("add relation", err)
	}
	slog.Debug("relation added", "feature_id", featureID, "relation", relType, "target_id", targetID)
	return nil
}

func insertRelationTx(ctx context.Context, tx txExecutor, featureID string, relType RelationType, targetID string) error {
	if !relType.Valid() {
		return fmt.Errorf("invalid relation type %q", relType)
	}
	if featureID == targetID {
		return fmt.Errorf("feature %s cannot relate to itself", featureID)
	}
	if err := requireFeatureTx(ctx, tx, targetID); err != nil {
		return fmt.Errorf("relation target: %w", err)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO feature_relations (feature_id, relation_type, target_id)
		VALUES (?, ?, ?)
		ON CONFLICT(feature_id, relation_type, target_id) DO NOTHING
	`, featureID, relType, targetID)
	if err != nil {
		return fmt.Errorf("insert relation: %w", err)
	}
	return nil
}

func requireFeatureTx(ctx context.Context, tx txExecutor, id string) error {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM features WHERE feature_id = ?`, id).Scan(&n); err != nil {
		return fmt.Errorf("check feature %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("feature %s: %w", id, ErrNotFound)
	}
	return nil
}

// queryRelations lists relations matching a WHERE clause over feature_relations.
func (s *Store) queryRelations(ctx context.Context, where string, args ...any) ([]Relation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, feature_id, relation_type, target_id FROM feature_relations `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query relations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var relations []Relation
	for rows.Next() {
		var r Relation
		if err := rows.Scan(&r.ID, &r.FeatureID, &r.Type, &r.TargetID); err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		relations = append(relations, r)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return relations, nil
}
