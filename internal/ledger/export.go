package ledger

import (
	"context"
	"fmt"
	"time"
)

// Snapshot is a full, read-only copy of the ledger for export.
type Snapshot struct {
	Prefix     string      `json:"prefix" yaml:"prefix"`
	ExportedAt time.Time   `json:"exported_at" yaml:"exported_at"`
	Statistics *Statistics `json:"statistics" yaml:"statistics"`
	Features   []Feature   `json:"features" yaml:"features"`
}

// Export loads every feature with its relations and documents, oldest first.
func (s *Store) Export(ctx context.Context) (*Snapshot, error) {
	summaries, err := s.ListFeatures(ctx, ListFilter{})
	if err != nil {
		return nil, err
	}
	stats, err := s.GetFeatureStatistics(ctx)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Prefix:     s.prefix,
		ExportedAt: s.now(),
		Statistics: stats,
		Features:   make([]Feature, 0, len(summaries)),
	}
	for i := len(summaries) - 1; i >= 0; i-- {
		f, err := s.GetFeatureByID(ctx, summaries[i].ID)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", summaries[i].ID, err)
		}
		if f != nil {
			snap.Features = append(snap.Features, *f)
		}
	}
	return snap, nil
}
