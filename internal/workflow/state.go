package workflow

import (
	"github.com/josephgoksu/FeatureWing/internal/ledger"
	"github.com/josephgoksu/FeatureWing/internal/oracle"
)

// Stage is the discriminator of WorkflowState.
type Stage string

const (
	StageValidate      Stage = "VALIDATE"
	StageSearchSimilar Stage = "SEARCH_SIMILAR"
	StageClassify      Stage = "CLASSIFY_RELATIONSHIPS"
	StageConfirm       Stage = "CONFIRM_WITH_USER"
	StageStore         Stage = "STORE"
	StageRetry         Stage = "RETRY"
	StageEnd           Stage = "END"
)

// Outcome is the result of a terminated workflow.
type Outcome string

const (
	OutcomePending   Outcome = ""
	OutcomeSuccess   Outcome = "success"
	OutcomeFailure   Outcome = "failure"
	OutcomeCancelled Outcome = "cancelled"
)

// Candidate is a classified relationship between the request and an
// existing feature.
type Candidate struct {
	FeatureID        string                  `json:"feature_id"`
	RelationshipType oracle.RelationshipType `json:"relationship_type"`
	Confidence       float64                 `json:"confidence_score"`
	Title            string                  `json:"title"`
	Description      string                  `json:"description"`
}

// Decision is the approval gate's answer.
type Decision struct {
	Approved               bool                               `json:"approved"`
	ConfirmedRelationships map[string]oracle.RelationshipType `json:"confirmed_relationships,omitempty"`

	// Interrupted marks an explicit user abort rather than a rejection.
	Interrupted bool `json:"interrupted,omitempty"`
}

// WorkflowState is the single mutable record of one workflow run.
type WorkflowState struct {
	Stage   Stage   `json:"stage"`
	Outcome Outcome `json:"outcome,omitempty"`

	Title          string             `json:"title"`
	Description    string             `json:"description"`
	Type           ledger.FeatureType `json:"type"`
	Keywords       []string           `json:"keywords,omitempty"`
	IdempotencyKey string             `json:"idempotency_key,omitempty"`
	ProjectContext string             `json:"-"`

	IsValid     bool     `json:"is_valid"`
	Confidence  float64  `json:"confidence_score"`
	Issues      []string `json:"validation_issues,omitempty"`
	Suggestions []string `json:"validation_suggestions,omitempty"`

	Similar    []oracle.SimilarFeature `json:"similar_features,omitempty"`
	Candidates []Candidate             `json:"candidates,omitempty"`
	Decision   *Decision               `json:"decision,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	FeatureID    string `json:"feature_id,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	// err is the typed cause behind ErrorMessage for the current stage.
	err error
}

// NewState returns the initial state for a request.
func NewState(req Request, maxRetries int) *WorkflowState {
	return &WorkflowState{
		Stage:          StageValidate,
		Title:          req.Title,
		Description:    req.Description,
		Type:           req.Type,
		Keywords:       req.Keywords,
		IdempotencyKey: req.IdempotencyKey,
		MaxRetries:     maxRetries,
	}
}

// Terminal reports whether the machine has stopped.
func (s *WorkflowState) Terminal() bool {
	return s.Stage == StageEnd
}

// Err returns the typed cause of the current error, if any.
func (s *WorkflowState) Err() error {
	return s.err
}

func (s *WorkflowState) fail(msg string, err error) {
	s.ErrorMessage = msg
	s.err = err
}

func (s *WorkflowState) clearError() {
	s.ErrorMessage = ""
	s.err = nil
}

// needsConfirmation reports whether any candidate is a high-confidence
// duplicate or conflict.
func (s *WorkflowState) needsConfirmation(threshold float64) bool {
	for _, c := range s.Candidates {
		if c.RelationshipType.NeedsConfirmation() && c.Confidence >= threshold {
			return true
		}
	}
	return false
}
