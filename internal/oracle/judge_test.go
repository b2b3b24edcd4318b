package oracle

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/josephgoksu/FeatureWing/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockChatModel implements model.BaseChatModel for testing
type MockChatModel struct {
	Response string
	Err      error
	Prompts  []string
}

func (m *MockChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	for _, msg := range input {
		m.Prompts = append(m.Prompts, msg.Content)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return schema.AssistantMessage(m.Response, nil), nil
}

func (m *MockChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func TestNewLLMJudge_NilModel(t *testing.T) {
	_, err := NewLLMJudge(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoModel)
}

func TestLLMJudge_Validate(t *testing.T) {
	mock := &MockChatModel{Response: "```json\n{\"is_complete\": true, \"confidence_score\": 0.9, \"issues\": [], \"suggestions\": [\"state cooldown\"]}\n```"}
	judge, err := NewLLMJudge(context.Background(), mock)
	require.NoError(t, err)

	v, err := judge.Validate(context.Background(), "Add dash ability", "Player can dash forward", ledger.TypeNewFeature, "A platformer.")
	require.NoError(t, err)
	assert.True(t, v.IsComplete)
	assert.InDelta(t, 0.9, v.Confidence, 1e-9)
	assert.Equal(t, []string{"state cooldown"}, v.Suggestions)

	require.Len(t, mock.Prompts, 1)
	prompt := mock.Prompts[0]
	assert.Contains(t, prompt, "FEATURE TITLE: Add dash ability")
	assert.Contains(t, prompt, "FEATURE TYPE: new_feature")
	assert.Contains(t, prompt, "PROJECT CONTEXT:\nA platformer.")
}

func TestLLMJudge_ValidateWithoutContext(t *testing.T) {
	mock := &MockChatModel{Response: `{"is_complete": false, "confidence_score": 0.4}`}
	judge, err := NewLLMJudge(context.Background(), mock)
	require.NoError(t, err)

	_, err = judge.Validate(context.Background(), "t", "d", ledger.TypeBugFix, "")
	require.NoError(t, err)
	assert.False(t, strings.Contains(mock.Prompts[0], "PROJECT CONTEXT"))
}

func TestLLMJudge_ValidateUnparseable(t *testing.T) {
	judge, err := NewLLMJudge(context.Background(), &MockChatModel{Response: "Looks fine to me!"})
	require.NoError(t, err)

	v, err := judge.Validate(context.Background(), "t", "d", ledger.TypeRefactor, "")
	require.NoError(t, err)
	assert.False(t, v.IsComplete)
	assert.InDelta(t, 0.3, v.Confidence, 1e-9)
	assert.Equal(t, []string{"Failed to parse validation response"}, v.Issues)
}

func TestLLMJudge_ModelError(t *testing.T) {
	judge, err := NewLLMJudge(context.Background(), &MockChatModel{Err: errors.New("connection refused")})
	require.NoError(t, err)

	_, err = judge.Validate(context.Background(), "t", "d", ledger.TypeRefactor, "")
	assert.ErrorContains(t, err, "connection refused")

	r, err := judge.ClassifyRelationship(context.Background(), "a", "b", 0.85)
	assert.Error(t, err)
	assert.Equal(t, RelNone, r)
}

func TestLLMJudge_ClassifyRelationship(t *testing.T) {
	mock := &MockChatModel{Response: " Duplicate\n"}
	judge, err := NewLLMJudge(context.Background(), mock)
	require.NoError(t, err)

	r, err := judge.ClassifyRelationship(context.Background(), "dash move", "dodge roll", 0.876)
	require.NoError(t, err)
	assert.Equal(t, RelDuplicate, r)
	assert.Contains(t, mock.Prompts[0], "Similarity Score: 0.88")
	assert.Contains(t, mock.Prompts[0], "NEW FEATURE:\ndash move")
}
