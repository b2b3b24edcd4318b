package workflow

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/afero"
)

// ContextRunes caps how much project context is sent to the judgment oracle.
const ContextRunes = 2000

// ContextProvider supplies background text for validation.
type ContextProvider interface {
	ProjectContext(ctx context.Context) string
}

// FileContext reads project context from a file, typically docs/gdd.md.
// A missing file yields no context.
type FileContext struct {
	Fs   afero.Fs
	Path string
}

// ProjectContext returns the first ContextRunes characters of the file.
func (f FileContext) ProjectContext(context.Context) string {
	if f.Path == "" {
		return ""
	}
	data, err := afero.ReadFile(f.Fs, f.Path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Debug("project context unreadable", "path", f.Path, "error", err)
		}
		return ""
	}
	r := []rune(string(data))
	if len(r) > ContextRunes {
		r = r[:ContextRunes]
	}
	return string(r)
}

// StaticContext is a fixed project context.
type StaticContext string

// ProjectContext returns s.
func (s StaticContext) ProjectContext(context.Context) string { return string(s) }

type runIDKey struct{}

func withRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the id of the workflow run that issued ctx, or "".
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
