package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/josephgoksu/FeatureWing/internal/app"
	"github.com/josephgoksu/FeatureWing/internal/config"
	"github.com/josephgoksu/FeatureWing/internal/ledger"
	"github.com/spf13/afero"
)

// openApp loads the project identity, opens the ledger and builds the app
// context. The returned closer releases the database.
func openApp() (*app.Context, func(), error) {
	fs := afero.NewOsFs()
	dataDir := config.GetDataDir()

	proj, err := config.LoadProjectFile(fs, dataDir)
	if err != nil {
		return nil, nil, err
	}

	llmCfg, err := config.LoadLLMConfig()
	if err != nil {
		return nil, nil, err
	}

	store, err := ledger.Open(dataDir, proj.Initials(),
		ledger.WithMarkdownMirror(ledger.NewMarkdownMirror(fs, config.GetFeaturesDir())),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("open ledger at %s: %w", dataDir, err)
	}
	if err := store.ValidateSchema(context.Background()); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("open ledger at %s: %w", dataDir, err)
	}

	c := app.NewContext(store, proj, llmCfg)
	c.Fs = fs
	c.Logger = slog.Default()
	return c, func() { _ = store.Close() }, nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// splitList splits a comma separated flag value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeID upper-cases a feature id typed as e.g. "up-1" or "up-001".
func normalizeID(id string) string {
	id = strings.ToUpper(strings.TrimSpace(id))
	prefix, num, ok := strings.Cut(id, "-")
	if !ok || num == "" {
		return id
	}
	for _, r := range num {
		if r < '0' || r > '9' {
			return id
		}
	}
	if len(num) < 3 {
		num = strings.Repeat("0", 3-len(num)) + num
	}
	return prefix + "-" + num
}
