package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/josephgoksu/FeatureWing/internal/ledger"
	"github.com/josephgoksu/FeatureWing/internal/oracle"
)

// Related feature search defaults.
const (
	RelatedThreshold  = 0.8
	RelatedMaxResults = 20
)

// ErrInvalidFeatureID is returned for ids that are not PREFIX-NNN.
var ErrInvalidFeatureID = errors.New("invalid feature id")

// FeatureApp provides ledger read and lifecycle operations.
type FeatureApp struct {
	ctx *Context
}

// NewFeatureApp creates a feature application service.
func NewFeatureApp(ctx *Context) *FeatureApp {
	return &FeatureApp{ctx: ctx}
}

func checkID(id string) error {
	if !ledger.ValidFeatureID(id) {
		return fmt.Errorf("%w %q (expected e.g. UP-001)", ErrInvalidFeatureID, id)
	}
	return nil
}

// List returns features matching filter, newest first.
func (a *FeatureApp) List(ctx context.Context, filter ledger.ListFilter) ([]ledger.Feature, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("invalid status %q", filter.Status)
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, fmt.Errorf("invalid type %q", filter.Type)
	}
	return a.ctx.Store.ListFeatures(ctx, filter)
}

// Get returns one feature with relations and documents.
func (a *FeatureApp) Get(ctx context.Context, id string) (*ledger.Feature, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	f, err := a.ctx.Store.GetFeatureByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("feature %s: %w", id, ledger.ErrNotFound)
	}
	return f, nil
}

// SetStatus moves a feature to status.
func (a *FeatureApp) SetStatus(ctx context.Context, id string, status ledger.Status) error {
	if err := checkID(id); err != nil {
		return err
	}
	if !status.Valid() {
		return fmt.Errorf("invalid status %q (one of %s)", status, joinStatuses())
	}

	var (
		ok  bool
		err error
	)
	switch status {
	case ledger.StatusSuperseded:
		ok, err = a.ctx.Store.MarkFeatureSuperseded(ctx, id)
	default:
		ok, err = a.ctx.Store.UpdateFeatureStatus(ctx, id, status, ledger.StampNone)
	}
	return notFoundIfFalse(id, ok, err)
}

// Implement marks a feature validated with its commit and changed files.
func (a *FeatureApp) Implement(ctx context.Context, id, commit string, files []string) error {
	if err := checkID(id); err != nil {
		return err
	}
	ok, err := a.ctx.Store.MarkFeatureImplemented(ctx, id, commit, files)
	return notFoundIfFalse(id, ok, err)
}

// Supersede marks a feature superseded.
func (a *FeatureApp) Supersede(ctx context.Context, id string) error {
	return a.SetStatus(ctx, id, ledger.StatusSuperseded)
}

func notFoundIfFalse(id string, ok bool, err error) error {
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("feature %s: %w", id, ledger.ErrNotFound)
	}
	return nil
}

func joinStatuses() string {
	names := make([]string, len(ledger.Statuses))
	for i, s := range ledger.Statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// SetDocument upserts a document. feature_request documents are re-embedded
// when an embedder is available.
func (a *FeatureApp) SetDocument(ctx context.Context, id string, docType ledger.DocumentType, content string) error {
	if err := checkID(id); err != nil {
		return err
	}
	if !docType.Valid() {
		return fmt.Errorf("invalid document type %q", docType)
	}
	ok, err := a.ctx.Store.AddFeatureDocument(ctx, id, docType, content)
	if err := notFoundIfFalse(id, ok, err); err != nil {
		return err
	}
	if docType == ledger.DocFeatureRequest {
		if ix := a.ctx.indexer(ctx); ix != nil {
			if err := ix.IndexDocument(ctx, id, docType, content); err != nil {
				a.ctx.Logger.Warn("document embedding failed", "feature_id", id, "error", err)
			}
		}
	}
	return nil
}

// GetDocument returns one document.
func (a *FeatureApp) GetDocument(ctx context.Context, id string, docType ledger.DocumentType) (*ledger.Document, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	if !docType.Valid() {
		return nil, fmt.Errorf("invalid document type %q", docType)
	}
	d, err := a.ctx.Store.GetFeatureDocument(ctx, id, docType)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("document %s/%s: %w", id, docType, ledger.ErrNotFound)
	}
	return d, nil
}

// Link records a relation from id to target.
func (a *FeatureApp) Link(ctx context.Context, id string, rel ledger.RelationType, target string) error {
	if err := checkID(id); err != nil {
		return err
	}
	if err := checkID(target); err != nil {
		return err
	}
	if id == target {
		return fmt.Errorf("a feature cannot relate to itself")
	}
	return a.ctx.Store.AddRelation(ctx, id, rel, target)
}

// Search runs a keyword search over titles, descriptions and keywords.
func (a *FeatureApp) Search(ctx context.Context, terms []string) ([]ledger.Feature, error) {
	return a.ctx.Store.KeywordSearch(ctx, terms)
}

// RelatedFeature is a similarity hit for an existing feature.
type RelatedFeature struct {
	oracle.SimilarFeature
	Suggested oracle.RelationshipType `json:"suggested_relationship"`
}

// Related finds features similar to an existing one and suggests a
// relationship for each using the fallback classifier.
func (a *FeatureApp) Related(ctx context.Context, id string) ([]RelatedFeature, error) {
	f, err := a.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	text := f.Description
	for _, d := range f.Documents {
		if d.Type == ledger.DocFeatureRequest && strings.TrimSpace(d.Content) != "" {
			text = d.Content
			break
		}
	}

	hits, err := a.ctx.similarity(ctx).FindSimilar(ctx, text, ledger.DocFeatureRequest, RelatedThreshold, RelatedMaxResults+1)
	if err != nil {
		return nil, err
	}
	out := make([]RelatedFeature, 0, len(hits))
	for _, h := range hits {
		if h.FeatureID == id {
			continue
		}
		out = append(out, RelatedFeature{SimilarFeature: h, Suggested: oracle.FallbackClassify(h.Similarity)})
		if len(out) == RelatedMaxResults {
			break
		}
	}
	return out, nil
}

// Stats returns ledger counts.
func (a *FeatureApp) Stats(ctx context.Context) (*ledger.Statistics, error) {
	return a.ctx.Store.GetFeatureStatistics(ctx)
}

// Export returns a full snapshot of the ledger.
func (a *FeatureApp) Export(ctx context.Context) (*ledger.Snapshot, error) {
	return a.ctx.Store.Export(ctx)
}

// Index (re)builds embeddings for every feature_request document.
func (a *FeatureApp) Index(ctx context.Context, force bool) (oracle.IndexStats, error) {
	ix := a.ctx.indexer(ctx)
	if ix == nil {
		return oracle.IndexStats{}, fmt.Errorf("%w: provider %q has no embedding model", ErrNoLLM, a.ctx.LLMCfg.Provider)
	}
	return ix.IndexAll(ctx, ledger.DocFeatureRequest, force)
}
