// Package app provides the application layer that orchestrates business logic.
// This layer sits between CLI/MCP handlers and the ledger, workflow and oracle
// packages, so both front ends share one implementation of every operation.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/spf13/afero"

	"github.com/josephgoksu/FeatureWing/internal/config"
	"github.com/josephgoksu/FeatureWing/internal/ledger"
	"github.com/josephgoksu/FeatureWing/internal/llm"
	"github.com/josephgoksu/FeatureWing/internal/oracle"
)

// Context holds shared dependencies for all app services.
type Context struct {
	Store   *ledger.Store
	Project *config.ProjectFile
	LLMCfg  llm.Config
	Fs      afero.Fs
	Logger  *slog.Logger

	// Judge and Embedder override the oracles built from LLMCfg.
	Judge    oracle.JudgmentOracle
	Embedder embedding.Embedder

	embedderResolved bool
}

// NewContext creates an app context. LLM clients are created lazily so
// read-only commands work without a configured provider.
func NewContext(store *ledger.Store, project *config.ProjectFile, llmCfg llm.Config) *Context {
	return &Context{
		Store:   store,
		Project: project,
		LLMCfg:  llmCfg,
		Fs:      afero.NewOsFs(),
		Logger:  slog.Default(),
	}
}

// ErrNoLLM is returned when an operation needs a chat model and none can be
// created from the configuration.
var ErrNoLLM = errors.New("no LLM provider configured")

// judge returns the judgment oracle, building an LLM judge on first use.
func (c *Context) judge(ctx context.Context) (oracle.JudgmentOracle, error) {
	if c.Judge != nil {
		return c.Judge, nil
	}
	chat, err := llm.NewChatModel(ctx, c.LLMCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoLLM, err)
	}
	j, err := oracle.NewLLMJudge(ctx, chat)
	if err != nil {
		return nil, fmt.Errorf("build judge: %w", err)
	}
	c.Judge = j
	return j, nil
}

// embedder returns the embedder or nil when the provider has none. Similarity
// then falls back to keyword overlap.
func (c *Context) embedder(ctx context.Context) embedding.Embedder {
	if c.Embedder != nil || c.embedderResolved {
		return c.Embedder
	}
	c.embedderResolved = true
	if c.LLMCfg.Provider == "" {
		return nil
	}
	e, err := llm.NewEmbedder(ctx, c.LLMCfg)
	if err != nil {
		c.Logger.Debug("embeddings unavailable, using keyword similarity", "provider", c.LLMCfg.Provider, "error", err)
		return nil
	}
	c.Embedder = e
	return e
}

// similarity returns the ledger-backed similarity oracle.
func (c *Context) similarity(ctx context.Context) *oracle.LedgerSimilarity {
	return oracle.NewLedgerSimilarity(c.Store, c.embedder(ctx), c.LLMCfg.EmbeddingModel)
}

// indexer returns a document indexer, or nil without an embedder.
func (c *Context) indexer(ctx context.Context) *oracle.Indexer {
	e := c.embedder(ctx)
	if e == nil {
		return nil
	}
	return oracle.NewIndexer(c.Store, e, c.LLMCfg.EmbeddingModel)
}
