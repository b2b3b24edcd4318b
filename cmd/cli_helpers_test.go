package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Nil(t, splitList(" , ,"))
	assert.Equal(t, []string{"player.go", "dash.go"}, splitList("player.go, dash.go,"))
}

func TestNormalizeID(t *testing.T) {
	tests := map[string]string{
		"up-1":     "UP-001",
		"UP-001":   "UP-001",
		" sm-42 ":  "SM-042",
		"UP-1234":  "UP-1234",
		"up-x1":    "UP-X1",
		"nodash":   "NODASH",
		"UP-":      "UP-",
		"abcde-01": "ABCDE-001",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeID(in), in)
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"total": 2}))
	assert.Equal(t, "{\n  \"total\": 2\n}\n", buf.String())
}
