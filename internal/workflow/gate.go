package workflow

import (
	"context"

	"github.com/josephgoksu/FeatureWing/internal/ledger"
	"github.com/josephgoksu/FeatureWing/internal/oracle"
)

// ValidationSummary is what an approval gate is shown about the request.
type ValidationSummary struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Type        ledger.FeatureType `json:"type"`
	Confidence  float64            `json:"confidence_score"`
	Issues      []string           `json:"issues,omitempty"`
	Suggestions []string           `json:"suggestions,omitempty"`
}

// ApprovalGate is the human-in-the-loop pause point. The confirmed map in the
// returned Decision is stored verbatim.
type ApprovalGate interface {
	Confirm(ctx context.Context, summary ValidationSummary, candidates []Candidate) (Decision, error)
}

// GateFunc adapts a function to ApprovalGate.
type GateFunc func(ctx context.Context, summary ValidationSummary, candidates []Candidate) (Decision, error)

// Confirm calls f.
func (f GateFunc) Confirm(ctx context.Context, summary ValidationSummary, candidates []Candidate) (Decision, error) {
	return f(ctx, summary, candidates)
}

// AutoApprove approves every request and confirms the storable relationships.
type AutoApprove struct{}

// Confirm approves.
func (AutoApprove) Confirm(_ context.Context, _ ValidationSummary, candidates []Candidate) (Decision, error) {
	return Decision{Approved: true, ConfirmedRelationships: DefaultConfirmation(candidates)}, nil
}

// Deny rejects every request. Used when no human is available.
type Deny struct{}

// Confirm rejects.
func (Deny) Confirm(context.Context, ValidationSummary, []Candidate) (Decision, error) {
	return Decision{Approved: false}, nil
}

// storable maps oracle verdicts onto ledger relation types. duplicate,
// conflicts_with and none have no ledger representation.
var storable = map[oracle.RelationshipType]ledger.RelationType{
	oracle.RelSupersedes: ledger.RelationSupersedes,
	oracle.RelBuildsOn:   ledger.RelationBuildsOn,
	oracle.RelFixes:      ledger.RelationFixes,
}

// Storable reports whether r can be written as a ledger relation.
func Storable(r oracle.RelationshipType) bool {
	_, ok := storable[r]
	return ok
}

// DefaultConfirmation keeps the candidates whose verdict is storable. The
// first verdict for a feature wins.
func DefaultConfirmation(candidates []Candidate) map[string]oracle.RelationshipType {
	out := make(map[string]oracle.RelationshipType)
	for _, c := range candidates {
		if !Storable(c.RelationshipType) {
			continue
		}
		if _, seen := out[c.FeatureID]; seen {
			continue
		}
		out[c.FeatureID] = c.RelationshipType
	}
	return out
}
