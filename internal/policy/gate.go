package policy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/josephgoksu/FeatureWing/internal/workflow"
)

// Gate is a non-interactive approval gate. A request is approved when no
// deny rule fires; approved requests confirm every storable relationship.
type Gate struct {
	engine *Engine
	audit  *AuditStore
}

// NewGate returns a gate over engine. audit is optional.
func NewGate(engine *Engine, audit *AuditStore) *Gate {
	return &Gate{engine: engine, audit: audit}
}

// Confirm implements workflow.ApprovalGate.
func (g *Gate) Confirm(ctx context.Context, summary workflow.ValidationSummary, candidates []workflow.Candidate) (workflow.Decision, error) {
	decision, err := g.engine.Evaluate(ctx, NewApprovalInput(summary, candidates))
	if err != nil {
		return workflow.Decision{}, fmt.Errorf("evaluate approval policy: %w", err)
	}
	decision.RunID = workflow.RunIDFromContext(ctx)

	if g.audit != nil {
		if err := g.audit.SaveDecision(decision); err != nil {
			slog.Warn("policy decision not recorded", "decision_id", decision.DecisionID, "error", err)
		}
	}
	for _, w := range decision.Warnings {
		slog.Warn("approval policy warning", "warning", w)
	}

	if decision.IsDenied() {
		slog.Info("approval denied by policy", "violations", decision.Violations)
		return workflow.Decision{Approved: false}, nil
	}
	return workflow.Decision{
		Approved:               true,
		ConfirmedRelationships: workflow.DefaultConfirmation(candidates),
	}, nil
}
