package cmd

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/josephgoksu/FeatureWing/internal/app"
	"github.com/josephgoksu/FeatureWing/internal/config"
	"github.com/josephgoksu/FeatureWing/internal/ledger"
	"github.com/josephgoksu/FeatureWing/internal/llm"
	"github.com/josephgoksu/FeatureWing/internal/oracle"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

type stubJudge struct {
	verdict oracle.RelationshipType
}

func (stubJudge) Validate(context.Context, string, string, ledger.FeatureType, string) (*oracle.Validation, error) {
	return &oracle.Validation{IsComplete: true, Confidence: 0.9}, nil
}

func (s stubJudge) ClassifyRelationship(context.Context, string, string, float64) (oracle.RelationshipType, error) {
	if s.verdict == "" {
		return oracle.RelBuildsOn, nil
	}
	return s.verdict, nil
}

// newTestApp opens a ledger in a temp data dir with a stub judge.
func newTestApp(t *testing.T) *app.Context {
	t.Helper()
	dir := t.TempDir()
	viper.Reset()
	viper.Set("project.dir", dir)
	t.Cleanup(viper.Reset)

	store, err := ledger.Open(dir, "UP")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	c := app.NewContext(store, &config.ProjectFile{ProjectName: "Untitled Project", ProjectInitials: "UP"}, llm.Config{})
	c.Fs = afero.NewOsFs()
	c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	c.Judge = stubJudge{}
	return c
}

func seedFeature(t *testing.T, c *app.Context, title, description string) string {
	t.Helper()
	id, err := c.Store.AddFeature(context.Background(), ledger.FeatureInput{
		Type:            ledger.TypeNewFeature,
		Title:           title,
		Description:     description,
		InitialDocument: &ledger.DocumentInput{Type: ledger.DocFeatureRequest, Content: description},
	})
	require.NoError(t, err)
	return id
}
