/*
Package workflow drives a feature request from validation to storage.

The engine is a bounded state machine (see Rules) over a single
WorkflowState. Each stage consults the injected oracles or approval gate and
only STORE writes to the ledger, inside one transaction.
*/
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/josephgoksu/FeatureWing/internal/ledger"
	"github.com/josephgoksu/FeatureWing/internal/oracle"
)

// FeatureStore is the subset of the ledger the engine writes to.
type FeatureStore interface {
	AddFeature(ctx context.Context, in ledger.FeatureInput) (string, error)
}

// DocumentIndexer embeds stored documents for later similarity search.
type DocumentIndexer interface {
	IndexDocument(ctx context.Context, featureID string, docType ledger.DocumentType, content string) error
}

// Deps are the collaborators injected into an Engine. Store, Similarity,
// Judgment and Gate are required.
type Deps struct {
	Store      FeatureStore
	Similarity oracle.SimilarityOracle
	Judgment   oracle.JudgmentOracle
	Gate       ApprovalGate

	Context ContextProvider
	Indexer DocumentIndexer
	Audit   AuditSink
	Logger  *slog.Logger
	Now     func() time.Time
	NewID   func() string
}

// Options tune the engine.
type Options struct {
	MaxRetries        int
	ValidateThreshold float64
	ConfirmThreshold  float64
	SearchThreshold   float64
	MaxResults        int

	// OracleTimeout bounds every oracle call. Zero means no bound.
	OracleTimeout time.Duration
	// GateTimeout bounds the approval gate. Zero means wait for the human.
	GateTimeout time.Duration
}

// DefaultOptions returns the standard thresholds and limits.
func DefaultOptions() Options {
	return Options{
		MaxRetries:        3,
		ValidateThreshold: 0.7,
		ConfirmThreshold:  0.8,
		SearchThreshold:   0.7,
		MaxResults:        10,
		OracleTimeout:     60 * time.Second,
	}
}

// Request is a caller's feature request.
type Request struct {
	Title          string             `json:"title"`
	Description    string             `json:"description"`
	Type           ledger.FeatureType `json:"type"`
	Keywords       []string           `json:"keywords,omitempty"`
	IdempotencyKey string             `json:"idempotency_key,omitempty"`
}

// Result is the final outcome of RunWorkflow.
type Result struct {
	RunID                  string                             `json:"run_id"`
	Outcome                Outcome                            `json:"outcome"`
	FeatureID              string                             `json:"feature_id,omitempty"`
	ErrorMessage           string                             `json:"error_message,omitempty"`
	Confidence             float64                            `json:"confidence_score"`
	ValidationIssues       []string                           `json:"validation_issues,omitempty"`
	Suggestions            []string                           `json:"suggestions,omitempty"`
	Candidates             []Candidate                        `json:"candidates,omitempty"`
	ConfirmedRelationships map[string]oracle.RelationshipType `json:"confirmed_relationships,omitempty"`
	RetryCount             int                                `json:"retry_count"`
	Transitions            []Transition                       `json:"transitions,omitempty"`

	cause error
}

// Err converts the outcome into an error: nil on success, ErrUserCancelled
// when cancelled, and the typed cause otherwise.
func (r *Result) Err() error {
	switch r.Outcome {
	case OutcomeSuccess:
		return nil
	case OutcomeCancelled:
		return ErrUserCancelled
	default:
		if r.cause != nil {
			return fmt.Errorf("%s: %w", r.ErrorMessage, r.cause)
		}
		return errors.New(r.ErrorMessage)
	}
}

// Engine runs feature request workflows. It holds no per-run state and is
// safe for concurrent use.
type Engine struct {
	deps Deps
	opts Options
	th   Thresholds
	log  *slog.Logger
}

// NewEngine validates deps and opts and returns an Engine.
func NewEngine(deps Deps, opts Options) (*Engine, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("workflow: store is required")
	case deps.Similarity == nil:
		return nil, errors.New("workflow: similarity oracle is required")
	case deps.Judgment == nil:
		return nil, errors.New("workflow: judgment oracle is required")
	case deps.Gate == nil:
		return nil, errors.New("workflow: approval gate is required")
	}
	if opts.MaxRetries < 0 {
		return nil, fmt.Errorf("workflow: max retries must be >= 0, got %d", opts.MaxRetries)
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultOptions().MaxResults
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	return &Engine{
		deps: deps,
		opts: opts,
		th:   Thresholds{Validate: opts.ValidateThreshold, Confirm: opts.ConfirmThreshold},
		log:  deps.Logger,
	}, nil
}

// RunWorkflow drives one request to a terminal state. The returned error is
// non-nil only for a malformed request; every other failure is reported in
// the Result.
func (e *Engine) RunWorkflow(ctx context.Context, req Request) (*Result, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if req.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidRequest)
	}
	if req.Description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalidRequest)
	}
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidRequest, req.Type)
	}

	runID := e.deps.NewID()
	ctx = withRunID(ctx, runID)
	log := e.log.With("run_id", runID)
	started := e.deps.Now()

	st := NewState(req, e.opts.MaxRetries)
	if e.deps.Context != nil {
		st.ProjectContext = e.deps.Context.ProjectContext(ctx)
	}

	var transitions []Transition
	// Every loop through the graph visits at most six stages.
	limit := (e.opts.MaxRetries + 1) * 6
	for step := 0; !st.Terminal(); step++ {
		if step > limit {
			st.fail("transition limit exceeded", fmt.Errorf("stopped after %d steps", step))
			st.Stage, st.Outcome = StageEnd, OutcomeFailure
			break
		}
		if err := ctx.Err(); err != nil {
			st.fail("workflow interrupted", err)
			transitions = append(transitions, Transition{From: st.Stage, To: StageEnd, When: "context cancelled", RetryCount: st.RetryCount, At: e.deps.Now()})
			st.Stage, st.Outcome = StageEnd, OutcomeCancelled
			break
		}

		e.runStage(ctx, log, st)

		rule, err := Next(st, e.th)
		if err != nil {
			st.fail("invalid workflow state", err)
			st.Stage, st.Outcome = StageEnd, OutcomeFailure
			break
		}
		log.Debug("transition", "from", rule.From, "to", rule.To, "when", rule.When, "retry", st.RetryCount)
		transitions = append(transitions, Transition{From: rule.From, To: rule.To, When: rule.When, RetryCount: st.RetryCount, At: e.deps.Now()})
		st.Stage = rule.To
		if rule.To == StageEnd {
			st.Outcome = rule.Outcome
		}
	}

	e.finalize(st)
	res := e.result(runID, st, transitions)

	if e.deps.Audit != nil {
		rec := RunRecord{RunID: runID, StartedAt: started, FinishedAt: e.deps.Now(), Request: req, Transitions: transitions, Final: st}
		if err := e.deps.Audit.Record(context.WithoutCancel(ctx), rec); err != nil {
			log.Warn("audit record failed", "error", err)
		}
	}

	log.Info("workflow finished", "outcome", res.Outcome, "feature_id", res.FeatureID, "retries", res.RetryCount)
	return res, nil
}

// runStage executes the current stage's action. Panics are converted into
// a stage error so they never cross a transition.
func (e *Engine) runStage(ctx context.Context, log *slog.Logger, st *WorkflowState) {
	stage := st.Stage
	defer func() {
		if r := recover(); r != nil {
			log.Error("stage panicked", "stage", stage, "panic", r)
			perr := &PanicError{Stage: stage, Value: r}
			st.fail(perr.Error(), perr)
			switch stage {
			case StageValidate:
				st.IsValid, st.Confidence = false, 0
			case StageConfirm:
				st.Decision = &Decision{Approved: false}
			case StageStore:
				st.FeatureID = ""
			}
		}
	}()

	switch stage {
	case StageValidate:
		e.validate(ctx, log, st)
	case StageSearchSimilar:
		e.searchSimilar(ctx, log, st)
	case StageClassify:
		e.classify(ctx, log, st)
	case StageConfirm:
		e.confirm(ctx, log, st)
	case StageStore:
		e.store(ctx, log, st)
	case StageRetry:
		st.RetryCount++
		st.clearError()
		st.Similar, st.Candidates, st.Decision = nil, nil, nil
	}
}

func (e *Engine) oracleCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.opts.OracleTimeout > 0 {
		return context.WithTimeout(ctx, e.opts.OracleTimeout)
	}
	return context.WithCancel(ctx)
}

func (e *Engine) validate(ctx context.Context, log *slog.Logger, st *WorkflowState) {
	octx, cancel := e.oracleCtx(ctx)
	defer cancel()

	v, err := e.deps.Judgment.Validate(octx, st.Title, st.Description, st.Type, st.ProjectContext)
	if err == nil && v == nil {
		err = errors.New("empty validation result")
	}
	if err != nil {
		log.Warn("validation oracle failed", "retry", st.RetryCount, "error", err)
		st.IsValid, st.Confidence = false, 0
		oerr := &OracleUnavailableError{Op: "validate", Err: err}
		st.fail("Validation failed: "+err.Error(), oerr)
		return
	}

	st.IsValid = v.IsComplete
	st.Confidence = v.Confidence
	st.Issues = v.Issues
	st.Suggestions = v.Suggestions
	if !v.IsComplete || v.Confidence < e.opts.ValidateThreshold {
		// Recoverable; ErrorMessage stays empty until the run terminates.
		st.err = &ValidationError{IsComplete: v.IsComplete, Confidence: v.Confidence, Threshold: e.opts.ValidateThreshold, Issues: v.Issues}
	}
}

func (e *Engine) searchSimilar(ctx context.Context, log *slog.Logger, st *WorkflowState) {
	octx, cancel := e.oracleCtx(ctx)
	defer cancel()

	similar, err := e.deps.Similarity.FindSimilar(octx, st.Description, ledger.DocFeatureRequest, e.opts.SearchThreshold, e.opts.MaxResults)
	if err != nil {
		log.Warn("similarity search failed, continuing without candidates", "error", err)
		similar = nil
	}
	st.Similar = similar
}

func (e *Engine) classify(ctx context.Context, log *slog.Logger, st *WorkflowState) {
	candidates := make([]Candidate, 0, len(st.Similar))
	for _, sf := range st.Similar {
		rel := e.classifyOne(ctx, log, st.Description, sf)
		if rel == oracle.RelNone {
			continue
		}
		candidates = append(candidates, Candidate{
			FeatureID:        sf.FeatureID,
			RelationshipType: rel,
			Confidence:       sf.Similarity,
			Title:            sf.Title,
			Description:      sf.Description,
		})
	}
	st.Candidates = candidates
}

func (e *Engine) classifyOne(ctx context.Context, log *slog.Logger, text string, sf oracle.SimilarFeature) (rel oracle.RelationshipType) {
	octx, cancel := e.oracleCtx(ctx)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			log.Warn("classification panicked, using fallback", "feature_id", sf.FeatureID, "panic", r)
			rel = oracle.FallbackClassify(sf.Similarity)
		}
	}()

	rel, err := e.deps.Judgment.ClassifyRelationship(octx, text, sf.Description, sf.Similarity)
	if err != nil || !rel.Valid() {
		log.Warn("classification unavailable, using fallback", "feature_id", sf.FeatureID, "error", err)
		return oracle.FallbackClassify(sf.Similarity)
	}
	return rel
}

func (e *Engine) confirm(ctx context.Context, log *slog.Logger, st *WorkflowState) {
	gctx, cancel := ctx, context.CancelFunc(func() {})
	if e.opts.GateTimeout > 0 {
		gctx, cancel = context.WithTimeout(ctx, e.opts.GateTimeout)
	}
	defer cancel()

	summary := ValidationSummary{
		Title:       st.Title,
		Description: st.Description,
		Type:        st.Type,
		Confidence:  st.Confidence,
		Issues:      st.Issues,
		Suggestions: st.Suggestions,
	}
	decision, err := e.deps.Gate.Confirm(gctx, summary, st.Candidates)
	switch {
	case errors.Is(err, ErrUserCancelled) || errors.Is(err, context.Canceled):
		log.Info("approval interrupted")
		st.Decision = &Decision{Interrupted: true}
		st.fail("Feature request cancelled by user", ErrUserCancelled)
	case err != nil:
		log.Warn("approval gate failed, treating as rejection", "error", err)
		st.Decision = &Decision{Approved: false}
		st.err = &OracleUnavailableError{Op: "approval gate", Err: err}
	default:
		st.Decision = &decision
	}
}

func (e *Engine) store(ctx context.Context, log *slog.Logger, st *WorkflowState) {
	in := ledger.FeatureInput{
		Type:           st.Type,
		Title:          st.Title,
		Description:    st.Description,
		Keywords:       st.Keywords,
		IdempotencyKey: st.IdempotencyKey,
		InitialDocument: &ledger.DocumentInput{
			Type:    ledger.DocFeatureRequest,
			Content: st.Description,
		},
	}
	if st.Decision != nil {
		targets := make([]string, 0, len(st.Decision.ConfirmedRelationships))
		for id := range st.Decision.ConfirmedRelationships {
			targets = append(targets, id)
		}
		sort.Strings(targets)
		for _, id := range targets {
			in.Relations = append(in.Relations, ledger.RelationInput{
				Type:     ledger.RelationType(st.Decision.ConfirmedRelationships[id]),
				TargetID: id,
			})
		}
	}

	id, err := e.deps.Store.AddFeature(ctx, in)
	if err != nil {
		log.Error("store failed", "error", err)
		st.FeatureID = ""
		st.fail("Storage failed: "+err.Error(), err)
		return
	}
	st.FeatureID = id

	if e.deps.Indexer != nil {
		octx, cancel := e.oracleCtx(context.WithoutCancel(ctx))
		defer cancel()
		if err := e.deps.Indexer.IndexDocument(octx, id, ledger.DocFeatureRequest, st.Description); err != nil {
			log.Warn("embedding new feature failed", "feature_id", id, "error", err)
		}
	}
}

// finalize fills ErrorMessage for terminal states that ended without one.
func (e *Engine) finalize(st *WorkflowState) {
	if st.Outcome == OutcomeSuccess {
		st.clearError()
		return
	}
	if st.ErrorMessage != "" {
		return
	}
	switch st.Outcome {
	case OutcomeCancelled:
		st.fail("Feature request cancelled by user", ErrUserCancelled)
	default:
		cause := st.err
		if cause == nil {
			cause = &ValidationError{IsComplete: st.IsValid, Confidence: st.Confidence, Threshold: e.opts.ValidateThreshold, Issues: st.Issues}
		}
		st.fail(fmt.Sprintf("Validation failed after %d retries: %v", st.RetryCount, cause), cause)
	}
}

func (e *Engine) result(runID string, st *WorkflowState, transitions []Transition) *Result {
	res := &Result{
		RunID:            runID,
		Outcome:          st.Outcome,
		FeatureID:        st.FeatureID,
		ErrorMessage:     st.ErrorMessage,
		Confidence:       st.Confidence,
		ValidationIssues: st.Issues,
		Suggestions:      st.Suggestions,
		Candidates:       st.Candidates,
		RetryCount:       st.RetryCount,
		Transitions:      transitions,
		cause:            st.err,
	}
	if st.Decision != nil && st.Outcome == OutcomeSuccess {
		res.ConfirmedRelationships = st.Decision.ConfirmedRelationships
	}
	return res
}
