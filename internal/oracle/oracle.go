/*
Package oracle defines the external judgment and similarity services the
feature request workflow consults, plus their LLM-, embedding- and
keyword-backed implementations.
*/
package oracle

import (
	"context"
	"errors"

	"github.com/josephgoksu/FeatureWing/internal/ledger"
)

// RelationshipType is the judgment oracle's verdict on how a new request
// relates to an existing feature.
type RelationshipType string

const (
	RelDuplicate     RelationshipType = "duplicate"
	RelSupersedes    RelationshipType = "supersedes"
	RelBuildsOn      RelationshipType = "builds_on"
	RelFixes         RelationshipType = "fixes"
	RelConflictsWith RelationshipType = "conflicts_with"
	RelNone          RelationshipType = "none"
)

// RelationshipTypes lists every verdict in prompt order.
var RelationshipTypes = []RelationshipType{
	RelDuplicate, RelSupersedes, RelBuildsOn, RelFixes, RelConflictsWith, RelNone,
}

// Valid reports whether r is a known verdict.
func (r RelationshipType) Valid() bool {
	for _, v := range RelationshipTypes {
		if r == v {
			return true
		}
	}
	return false
}

// NeedsConfirmation reports whether a verdict requires a human decision
// before the request can be stored.
func (r RelationshipType) NeedsConfirmation() bool {
	return r == RelDuplicate || r == RelConflictsWith
}

// SimilarFeature is one similarity search hit.
type SimilarFeature struct {
	FeatureID   string             `json:"feature_id"`
	Similarity  float64            `json:"similarity"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Type        ledger.FeatureType `json:"type"`
	Status      ledger.Status      `json:"status"`
}

// Validation is the judgment oracle's completeness assessment.
type Validation struct {
	IsComplete  bool     `json:"is_complete"`
	Confidence  float64  `json:"confidence_score"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

// SimilarityOracle ranks stored documents by similarity to a text.
// Results are sorted by descending similarity and pre-filtered at threshold.
type SimilarityOracle interface {
	FindSimilar(ctx context.Context, text string, docType ledger.DocumentType, threshold float64, maxResults int) ([]SimilarFeature, error)
}

// JudgmentOracle makes natural-language judgments about feature requests.
type JudgmentOracle interface {
	Validate(ctx context.Context, title, description string, featureType ledger.FeatureType, projectContext string) (*Validation, error)
	ClassifyRelationship(ctx context.Context, newText, candidateText string, similarity float64) (RelationshipType, error)
}

// ErrNoModel is returned by oracles that were built without a backing model.
var ErrNoModel = errors.New("no model configured")
