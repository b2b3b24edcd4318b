// Package git resolves commit metadata for implemented features by shelling
// out to the git CLI, so the user's own git configuration applies.
package git

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var (
	ErrGitNotInstalled  = errors.New("git is not installed or not in PATH")
	ErrNotGitRepository = errors.New("not a git repository")
)

// Commander is an interface for executing commands.
// This allows mocking in tests.
type Commander interface {
	RunInDir(dir, name string, args ...string) (string, error)
}

// ShellCommander executes real shell commands.
type ShellCommander struct{}

// RunInDir executes a command in the specified directory.
func (c *ShellCommander) RunInDir(dir, name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Client wraps the git queries FeatureWing needs.
type Client struct {
	commander Commander
	workDir   string
}

func NewClient(workDir string) *Client {
	return &Client{commander: &ShellCommander{}, workDir: workDir}
}

// NewClientWithCommander creates a client with a custom commander (for testing).
func NewClientWithCommander(workDir string, commander Commander) *Client {
	return &Client{commander: commander, workDir: workDir}
}

// IsRepository checks if the working directory is a git repository.
func (c *Client) IsRepository() bool {
	_, err := c.commander.RunInDir(c.workDir, "git", "rev-parse", "--is-inside-work-tree")
	return err == nil
}

// HeadCommit returns the full hash of HEAD.
func (c *Client) HeadCommit() (string, error) {
	if !c.IsRepository() {
		return "", ErrNotGitRepository
	}
	out, err := c.commander.RunInDir(c.workDir, "git", "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return out, nil
}

// ChangedFiles lists the paths touched by commit.
func (c *Client) ChangedFiles(commit string) ([]string, error) {
	if commit == "" {
		return nil, errors.New("commit is required")
	}
	out, err := c.commander.RunInDir(c.workDir, "git", "diff-tree", "--no-commit-id", "--name-only", "-r", "--root", commit)
	if err != nil {
		return nil, fmt.Errorf("list files for %s: %w", ShortHash(commit), err)
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// ResolveCommit fills in whatever the caller left empty: HEAD for the commit,
// and that commit's changed files for the file list.
func (c *Client) ResolveCommit(commit string, files []string) (string, []string, error) {
	if commit == "" {
		head, err := c.HeadCommit()
		if err != nil {
			return "", nil, err
		}
		commit = head
	}
	if len(files) == 0 {
		changed, err := c.ChangedFiles(commit)
		if err != nil {
			return "", nil, err
		}
		files = changed
	}
	return commit, files, nil
}

// ShortHash abbreviates a commit hash for display.
func ShortHash(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}
