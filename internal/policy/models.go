// Package policy decides feature request approvals with OPA (Open Policy
// Agent). Teams write Rego rules over the validated request and its
// relationship candidates; any deny message rejects the request.
package policy

import (
	"encoding/json"
	"time"

	"github.com/josephgoksu/FeatureWing/internal/workflow"
)

// PolicyDecision is the outcome of evaluating the loaded policies against one
// input. Decisions are persisted in the policy_decisions table.
type PolicyDecision struct {
	ID          int64     `json:"id"`
	DecisionID  string    `json:"decisionId"`
	PolicyPath  string    `json:"policyPath"` // Rego package, e.g. "featurewing.approval"
	Result      string    `json:"result"`
	Violations  []string  `json:"violations,omitempty"`
	Warnings    []string  `json:"warnings,omitempty"`
	Input       any       `json:"input"`
	RunID       string    `json:"runId,omitempty"`
	EvaluatedAt time.Time `json:"evaluatedAt"`
}

// PolicyResult constants.
const (
	PolicyResultAllow = "allow"
	PolicyResultDeny  = "deny"
)

// IsAllowed returns true if the policy decision was "allow".
func (d *PolicyDecision) IsAllowed() bool {
	return d.Result == PolicyResultAllow
}

// IsDenied returns true if the policy decision was "deny".
func (d *PolicyDecision) IsDenied() bool {
	return d.Result == PolicyResultDeny
}

// ViolationsJSON returns the violations as a JSON string for storage.
func (d *PolicyDecision) ViolationsJSON() string {
	if len(d.Violations) == 0 {
		return "[]"
	}
	b, err := json.Marshal(d.Violations)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// InputJSON returns the input as a JSON string for storage.
func (d *PolicyDecision) InputJSON() string {
	if d.Input == nil {
		return "{}"
	}
	b, err := json.Marshal(d.Input)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// ParseViolations parses a JSON string into a slice of violations.
func ParseViolations(s string) []string {
	if s == "" || s == "[]" {
		return nil
	}
	var v []string
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil
	}
	return v
}

// ApprovalInput is what Rego policies receive as `input`.
//
//	{
//	  "request":    { "title": "...", "description": "...", "type": "new_feature" },
//	  "validation": { "confidence_score": 0.9, "issues": [...], "suggestions": [...] },
//	  "candidates": [ { "feature_id": "UP-001", "relationship_type": "duplicate", "confidence_score": 0.93 } ]
//	}
type ApprovalInput struct {
	Request    RequestInput     `json:"request"`
	Validation ValidationInput  `json:"validation"`
	Candidates []CandidateInput `json:"candidates"`
}

// RequestInput is the feature request under review.
type RequestInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// ValidationInput carries the judgment oracle's verdict.
type ValidationInput struct {
	Confidence  float64  `json:"confidence_score"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

// CandidateInput is one classified relationship to an existing feature.
type CandidateInput struct {
	FeatureID        string  `json:"feature_id"`
	RelationshipType string  `json:"relationship_type"`
	Confidence       float64 `json:"confidence_score"`
	Title            string  `json:"title"`
}

// NewApprovalInput builds the policy input from what the approval gate is shown.
func NewApprovalInput(summary workflow.ValidationSummary, candidates []workflow.Candidate) ApprovalInput {
	in := ApprovalInput{
		Request: RequestInput{
			Title:       summary.Title,
			Description: summary.Description,
			Type:        string(summary.Type),
		},
		Validation: ValidationInput{
			Confidence:  summary.Confidence,
			Issues:      nonNil(summary.Issues),
			Suggestions: nonNil(summary.Suggestions),
		},
		Candidates: make([]CandidateInput, 0, len(candidates)),
	}
	for _, c := range candidates {
		in.Candidates = append(in.Candidates, CandidateInput{
			FeatureID:        c.FeatureID,
			RelationshipType: string(c.RelationshipType),
			Confidence:       c.Confidence,
			Title:            c.Title,
		})
	}
	return in
}

// nonNil keeps Rego iteration over empty lists defined.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
