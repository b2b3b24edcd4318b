package oracle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/josephgoksu/FeatureWing/internal/ledger"
)

// ParseFailureValidation is returned when the model answer cannot be parsed.
func ParseFailureValidation() *Validation {
	return &Validation{
		IsComplete:  false,
		Confidence:  0.3,
		Issues:      []string{"Failed to parse validation response"},
		Suggestions: []string{"Please review feature request manually"},
	}
}

type validationPayload struct {
	IsComplete  *bool    `json:"is_complete"`
	Confidence  *float64 `json:"confidence_score"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

func parseValidation(content string) (*Validation, error) {
	p, err := ParseJSON[validationPayload](content)
	if err != nil {
		slog.Debug("validation response unparseable", "error", err)
		return ParseFailureValidation(), nil
	}
	v := &Validation{Confidence: 0.5, Issues: p.Issues, Suggestions: p.Suggestions}
	if p.IsComplete != nil {
		v.IsComplete = *p.IsComplete
	}
	if p.Confidence != nil {
		v.Confidence = clamp01(*p.Confidence)
	}
	return v, nil
}

// LLMJudge implements JudgmentOracle on top of an Eino chat model.
type LLMJudge struct {
	validate *Chain[*Validation]
	classify *Chain[RelationshipType]
}

// NewLLMJudge compiles the validation and classification chains.
func NewLLMJudge(ctx context.Context, chatModel model.BaseChatModel) (*LLMJudge, error) {
	if chatModel == nil {
		return nil, ErrNoModel
	}
	validate, err := NewChain(ctx, "validate_request", chatModel, validationPrompt, parseValidation)
	if err != nil {
		return nil, err
	}
	classify, err := NewChain(ctx, "classify_relationship", chatModel, classificationPrompt,
		func(content string) (RelationshipType, error) { return ParseRelationship(content), nil })
	if err != nil {
		return nil, err
	}
	return &LLMJudge{validate: validate, classify: classify}, nil
}

// Validate asks the model whether a request is complete enough to design.
func (j *LLMJudge) Validate(ctx context.Context, title, description string, featureType ledger.FeatureType, projectContext string) (*Validation, error) {
	v, err := j.validate.Invoke(ctx, map[string]any{
		"Title":       title,
		"Description": description,
		"Type":        string(featureType),
		"Context":     projectContext,
	})
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	return v, nil
}

// ClassifyRelationship asks the model how newText relates to candidateText.
func (j *LLMJudge) ClassifyRelationship(ctx context.Context, newText, candidateText string, similarity float64) (RelationshipType, error) {
	r, err := j.classify.Invoke(ctx, map[string]any{
		"New":        newText,
		"Existing":   candidateText,
		"Similarity": similarity,
	})
	if err != nil {
		return RelNone, fmt.Errorf("classify: %w", err)
	}
	return r, nil
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
