package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string   `json:"name"`
	Score float64  `json:"score"`
	Tags  []string `json:"tags"`
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    sample
		wantErr bool
	}{
		{
			name:  "plain object",
			input: `{"name":"a","score":0.5,"tags":["x"]}`,
			want:  sample{Name: "a", Score: 0.5, Tags: []string{"x"}},
		},
		{
			name:  "markdown fence with trailing prose",
			input: "```json\n{\"name\":\"b\",\"score\":1}\n```",
			want:  sample{Name: "b", Score: 1},
		},
		{
			name:  "leading prose",
			input: "Here is my answer: {\"name\":\"c\"} hope it helps",
			want:  sample{Name: "c"},
		},
		{
			name:  "trailing comma repaired",
			input: `{"name":"d","tags":["x","y",],}`,
			want:  sample{Name: "d", Tags: []string{"x", "y"}},
		},
		{
			name:  "literal newline in string repaired",
			input: "{\"name\":\"line1\nline2\"}",
			want:  sample{Name: "line1\nline2"},
		},
		{
			name:  "truncated output closed",
			input: `{"name":"e","tags":["x"`,
			want:  sample{Name: "e", Tags: []string{"x"}},
		},
		{name: "no json", input: "I cannot help with that", wantErr: true},
		{name: "empty", input: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJSON[sample](tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseValidation(t *testing.T) {
	v, err := parseValidation(`{"is_complete": true, "confidence_score": 0.92, "issues": [], "suggestions": ["add metrics"]}`)
	require.NoError(t, err)
	assert.True(t, v.IsComplete)
	assert.InDelta(t, 0.92, v.Confidence, 1e-9)
	assert.Equal(t, []string{"add metrics"}, v.Suggestions)

	v, err = parseValidation(`{"is_complete": true}`)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, v.Confidence, 1e-9)

	v, err = parseValidation(`{"confidence_score": 7}`)
	require.NoError(t, err)
	assert.False(t, v.IsComplete)
	assert.InDelta(t, 1.0, v.Confidence, 1e-9)

	v, err = parseValidation("not json at all")
	require.NoError(t, err)
	assert.Equal(t, ParseFailureValidation(), v)
}
