package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/josephgoksu/FeatureWing/internal/ledger"
)

// DocumentSource lists the documents a similarity search ranks.
type DocumentSource interface {
	ListSearchDocuments(ctx context.Context, docType ledger.DocumentType) ([]ledger.SearchDocument, error)
}

// LedgerSimilarity implements SimilarityOracle over the ledger's documents.
// Documents with a stored embedding from the same model are ranked by cosine
// similarity; everything else falls back to keyword overlap.
type LedgerSimilarity struct {
	docs     DocumentSource
	embedder embedding.Embedder
	model    string
}

// NewLedgerSimilarity creates a similarity oracle. embedder may be nil, in
// which case only keyword similarity is used.
func NewLedgerSimilarity(docs DocumentSource, embedder embedding.Embedder, model string) *LedgerSimilarity {
	return &LedgerSimilarity{docs: docs, embedder: embedder, model: model}
}

// FindSimilar ranks documents of docType against text.
func (s *LedgerSimilarity) FindSimilar(ctx context.Context, text string, docType ledger.DocumentType, threshold float64, maxResults int) ([]SimilarFeature, error) {
	docs, err := s.docs.ListSearchDocuments(ctx, docType)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	var query []float32
	if s.embedder != nil {
		query, err = Embed(ctx, s.embedder, text)
		if err != nil {
			slog.Warn("query embedding failed, using keyword similarity", "error", err)
			query = nil
		}
	}

	// One hit per feature: the best-scoring document wins.
	best := make(map[string]SimilarFeature)
	for _, d := range docs {
		score := s.score(query, text, d)
		if score < threshold {
			continue
		}
		if prev, ok := best[d.FeatureID]; ok && prev.Similarity >= score {
			continue
		}
		best[d.FeatureID] = SimilarFeature{
			FeatureID:   d.FeatureID,
			Similarity:  score,
			Title:       d.Title,
			Description: d.Description,
			Type:        d.Type,
			Status:      d.Status,
		}
	}

	results := make([]SimilarFeature, 0, len(best))
	for _, r := range best {
		results = append(results, r)
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].FeatureID < results[j].FeatureID
	})
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

func (s *LedgerSimilarity) score(query []float32, text string, d ledger.SearchDocument) float64 {
	if query != nil && len(d.Vector) == len(query) && d.Model == s.model {
		return clamp01(float64(CosineSimilarity(query, d.Vector)))
	}
	return TextSimilarity(text, d.Content)
}

// Embed returns the embedding of a single text as float32.
func Embed(ctx context.Context, embedder embedding.Embedder, text string) ([]float32, error) {
	vectors, err := embedder.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("generate embedding: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	out := make([]float32, len(vectors[0]))
	for i, v := range vectors[0] {
		out[i] = float32(v)
	}
	return out, nil
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "being": true, "have": true, "has": true, "had": true,
	"do": true, "does": true, "did": true, "will": true, "would": true, "could": true,
	"should": true, "may": true, "might": true, "must": true, "can": true,
	"it": true, "its": true, "this": true, "that": true, "these": true, "those": true,
	"which": true, "who": true, "where": true, "when": true, "why": true, "how": true,
	"all": true, "each": true, "more": true, "some": true, "such": true, "not": true,
	"only": true, "than": true, "too": true, "very": true, "also": true, "then": true,
}

func wordTokens(s string) map[string]bool {
	tokens := make(map[string]bool)
	s = strings.ToLower(s)
	s = strings.NewReplacer("-", " ", "_", " ", ".", " ", ",", " ", ";", " ", ":", " ", "!", " ", "?", " ").Replace(s)
	for _, w := range strings.Fields(s) {
		if len(w) > 2 && !stopWords[w] {
			tokens[w] = true
		}
	}
	return tokens
}

// TextSimilarity is the Jaccard index of the significant words of a and b.
func TextSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	tokensA, tokensB := wordTokens(a), wordTokens(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0.0
	}

	intersection := 0
	for token := range tokensA {
		if tokensB[token] {
			intersection++
		}
	}
	union := len(tokensA) + len(tokensB) - intersection
	return float64(intersection) / float64(union)
}
