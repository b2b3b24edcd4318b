package oracle

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/josephgoksu/FeatureWing/internal/ledger"
)

// EmbeddingStore persists document vectors.
type EmbeddingStore interface {
	DocumentSource
	UpsertEmbedding(ctx context.Context, featureID string, docType ledger.DocumentType, model string, vector []float32) error
}

// Indexer computes and stores document embeddings.
type Indexer struct {
	store    EmbeddingStore
	embedder embedding.Embedder
	model    string
}

// NewIndexer creates an Indexer writing vectors tagged with model.
func NewIndexer(store EmbeddingStore, embedder embedding.Embedder, model string) *Indexer {
	return &Indexer{store: store, embedder: embedder, model: model}
}

// IndexDocument embeds content and stores it for (featureID, docType).
func (ix *Indexer) IndexDocument(ctx context.Context, featureID string, docType ledger.DocumentType, content string) error {
	vec, err := Embed(ctx, ix.embedder, content)
	if err != nil {
		return err
	}
	return ix.store.UpsertEmbedding(ctx, featureID, docType, ix.model, vec)
}

// IndexStats summarises an IndexAll run.
type IndexStats struct {
	Indexed int
	Skipped int
	Failed  int
}

// IndexAll embeds every document of docType. Documents that already carry a
// vector from the current model are skipped unless force is set.
func (ix *Indexer) IndexAll(ctx context.Context, docType ledger.DocumentType, force bool) (IndexStats, error) {
	var stats IndexStats
	docs, err := ix.store.ListSearchDocuments(ctx, docType)
	if err != nil {
		return stats, fmt.Errorf("list documents: %w", err)
	}
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if !force && len(d.Vector) > 0 && d.Model == ix.model {
			stats.Skipped++
			continue
		}
		if err := ix.IndexDocument(ctx, d.FeatureID, d.DocumentType, d.Content); err != nil {
			stats.Failed++
			continue
		}
		stats.Indexed++
	}
	return stats, nil
}
