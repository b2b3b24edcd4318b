package workflow

import "fmt"

// Thresholds gate the confidence-driven transitions.
type Thresholds struct {
	Validate float64
	Confirm  float64
}

// Rule is one row of the transition table. Rules for a stage are tried in
// order and the first whose guard holds wins.
type Rule struct {
	From    Stage
	When    string
	To      Stage
	Outcome Outcome
	guard   func(s *WorkflowState, th Thresholds) bool
}

func always(*WorkflowState, Thresholds) bool { return true }

func retriesLeft(s *WorkflowState) bool { return s.RetryCount < s.MaxRetries }

func validationPassed(s *WorkflowState, th Thresholds) bool {
	return s.ErrorMessage == "" && s.IsValid && s.Confidence >= th.Validate
}

func approved(s *WorkflowState) bool { return s.Decision != nil && s.Decision.Approved }

func interrupted(s *WorkflowState) bool { return s.Decision != nil && s.Decision.Interrupted }

var table = []Rule{
	{From: StageValidate, When: "valid and confidence >= threshold", To: StageSearchSimilar,
		guard: validationPassed},
	{From: StageValidate, When: "error or low confidence, retries left", To: StageRetry,
		guard: func(s *WorkflowState, _ Thresholds) bool { return retriesLeft(s) }},
	{From: StageValidate, When: "otherwise", To: StageEnd, Outcome: OutcomeFailure, guard: always},

	{From: StageSearchSimilar, When: "always", To: StageClassify, guard: always},

	{From: StageClassify, When: "high-confidence duplicate or conflict", To: StageConfirm,
		guard: func(s *WorkflowState, th Thresholds) bool { return s.needsConfirmation(th.Confirm) }},
	{From: StageClassify, When: "otherwise", To: StageStore, guard: always},

	{From: StageConfirm, When: "user interrupts", To: StageEnd, Outcome: OutcomeCancelled,
		guard: func(s *WorkflowState, _ Thresholds) bool { return interrupted(s) }},
	{From: StageConfirm, When: "user approves", To: StageStore,
		guard: func(s *WorkflowState, _ Thresholds) bool { return approved(s) }},
	{From: StageConfirm, When: "user rejects, retries left", To: StageRetry,
		guard: func(s *WorkflowState, _ Thresholds) bool { return retriesLeft(s) }},
	{From: StageConfirm, When: "user rejects, retries exhausted", To: StageEnd, Outcome: OutcomeCancelled,
		guard: always},

	{From: StageStore, When: "commit succeeds", To: StageEnd, Outcome: OutcomeSuccess,
		guard: func(s *WorkflowState, _ Thresholds) bool { return s.FeatureID != "" && s.ErrorMessage == "" }},
	{From: StageStore, When: "commit fails", To: StageEnd, Outcome: OutcomeFailure, guard: always},

	{From: StageRetry, When: "always", To: StageValidate, guard: always},
}

// Rules returns a copy of the transition table.
func Rules() []Rule {
	out := make([]Rule, len(table))
	copy(out, table)
	return out
}

// Next picks the transition for the state's current stage. It does not
// mutate s.
func Next(s *WorkflowState, th Thresholds) (Rule, error) {
	for _, r := range table {
		if r.From == s.Stage && r.guard(s, th) {
			return r, nil
		}
	}
	return Rule{}, fmt.Errorf("no transition from %s", s.Stage)
}
