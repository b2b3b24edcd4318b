package git

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockCommander is a test double for Commander that records calls and returns configured responses.
type MockCommander struct {
	Calls     []string
	Responses map[string]MockResponse
}

// MockResponse holds the output and error for a mocked command.
type MockResponse struct {
	Output string
	Error  error
}

func NewMockCommander() *MockCommander {
	return &MockCommander{Responses: make(map[string]MockResponse)}
}

func (m *MockCommander) RunInDir(dir, name string, args ...string) (string, error) {
	key := name + " " + strings.Join(args, " ")
	m.Calls = append(m.Calls, key)
	if resp, ok := m.Responses[key]; ok {
		return resp.Output, resp.Error
	}
	return "", nil
}

func (m *MockCommander) SetResponse(cmd string, output string, err error) {
	m.Responses[cmd] = MockResponse{Output: output, Error: err}
}

const head = "0123456789abcdef0123456789abcdef01234567"

func TestHeadCommit(t *testing.T) {
	mock := NewMockCommander()
	mock.SetResponse("git rev-parse HEAD", head, nil)

	got, err := NewClientWithCommander("/repo", mock).HeadCommit()
	require.NoError(t, err)
	assert.Equal(t, head, got)
}

func TestHeadCommit_NotRepository(t *testing.T) {
	mock := NewMockCommander()
	mock.SetResponse("git rev-parse --is-inside-work-tree", "", errors.New("fatal: not a git repository"))

	_, err := NewClientWithCommander("/tmp", mock).HeadCommit()
	assert.ErrorIs(t, err, ErrNotGitRepository)
}

func TestChangedFiles(t *testing.T) {
	mock := NewMockCommander()
	mock.SetResponse("git diff-tree --no-commit-id --name-only -r --root "+head, "player.go\n\ndash/dash.go\n", nil)

	files, err := NewClientWithCommander("/repo", mock).ChangedFiles(head)
	require.NoError(t, err)
	assert.Equal(t, []string{"player.go", "dash/dash.go"}, files)

	_, err = NewClientWithCommander("/repo", mock).ChangedFiles("")
	assert.Error(t, err)
}

func TestResolveCommit(t *testing.T) {
	mock := NewMockCommander()
	mock.SetResponse("git rev-parse HEAD", head, nil)
	mock.SetResponse("git diff-tree --no-commit-id --name-only -r --root "+head, "player.go", nil)
	c := NewClientWithCommander("/repo", mock)

	commit, files, err := c.ResolveCommit("", nil)
	require.NoError(t, err)
	assert.Equal(t, head, commit)
	assert.Equal(t, []string{"player.go"}, files)

	mock.Calls = nil
	commit, files, err = c.ResolveCommit("abc1234", []string{"inventory.go"})
	require.NoError(t, err)
	assert.Equal(t, "abc1234", commit)
	assert.Equal(t, []string{"inventory.go"}, files)
	assert.Empty(t, mock.Calls)
}

func TestShortHash(t *testing.T) {
	assert.Equal(t, "0123456", ShortHash(head))
	assert.Equal(t, "abc", ShortHash("abc"))
}
