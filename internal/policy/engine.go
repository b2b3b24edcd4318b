package policy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/types"
	"github.com/spf13/afero"

	"github.com/josephgoksu/FeatureWing/internal/ledger"
)

// DefaultPolicyPackage is the Rego package queried for approval rules.
const DefaultPolicyPackage = "featurewing.approval"

// FeatureStatusBuiltin is the custom function policies can call to look up
// an existing feature: featurewing.feature_status("UP-001") -> "requested".
// It is undefined for unknown ids.
const FeatureStatusBuiltin = "featurewing.feature_status"

// FeatureLookup resolves existing features for the feature_status built-in.
type FeatureLookup interface {
	GetFeatureByID(ctx context.Context, id string) (*ledger.Feature, error)
}

// Engine wraps OPA for policy evaluation. All evaluation happens locally.
// It is safe for concurrent use; Reload swaps the policy set atomically.
type Engine struct {
	mu       sync.RWMutex
	policies []*PolicyFile

	fs            afero.Fs
	policiesDir   string
	policyPackage string
	features      FeatureLookup
	now           func() time.Time
}

// EngineConfig holds configuration for creating an Engine.
type EngineConfig struct {
	// PoliciesDir is the directory containing .rego policy files.
	PoliciesDir string

	// PolicyPackage is the Rego package to query.
	// If empty, defaults to "featurewing.approval"
	PolicyPackage string

	// Fs is the filesystem to use for loading policies.
	// If nil, uses the OS filesystem.
	Fs afero.Fs

	// Features backs featurewing.feature_status. Optional.
	Features FeatureLookup
}

// NewEngine creates a policy engine and loads policies from cfg.PoliciesDir.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.PolicyPackage == "" {
		cfg.PolicyPackage = DefaultPolicyPackage
	}

	e := &Engine{
		fs:            cfg.Fs,
		policiesDir:   cfg.PoliciesDir,
		policyPackage: cfg.PolicyPackage,
		features:      cfg.Features,
		now:           func() time.Time { return time.Now().UTC() },
	}
	if err := e.Reload(); err != nil {
		return nil, err
	}
	return e, nil
}

// NewEngineWithPolicies creates an engine with explicitly provided policies.
func NewEngineWithPolicies(policies []*PolicyFile, features FeatureLookup) *Engine {
	return &Engine{
		policies:      policies,
		fs:            afero.NewMemMapFs(),
		policyPackage: DefaultPolicyPackage,
		features:      features,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// PolicyCount returns the number of loaded policies.
func (e *Engine) PolicyCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.policies)
}

// PolicyNames returns the names of all loaded policies.
func (e *Engine) PolicyNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, len(e.policies))
	for i, p := range e.policies {
		names[i] = p.Name
	}
	return names
}

// Package returns the queried Rego package.
func (e *Engine) Package() string {
	return e.policyPackage
}

// Dir returns the directory policies are loaded from.
func (e *Engine) Dir() string {
	return e.policiesDir
}

// Reload re-reads policies from disk. Every policy is compiled first; on any
// error the current set is kept.
func (e *Engine) Reload() error {
	if e.policiesDir == "" {
		return nil
	}
	policies, err := NewLoader(e.fs, e.policiesDir).LoadAll()
	if err != nil {
		return fmt.Errorf("load policies: %w", err)
	}
	for _, p := range policies {
		if err := ValidatePolicy(p.Content); err != nil {
			return fmt.Errorf("%s: %w", p.Path, err)
		}
	}

	e.mu.Lock()
	e.policies = policies
	e.mu.Unlock()
	return nil
}

// AddPolicy adds a policy to the engine at runtime.
func (e *Engine) AddPolicy(name, content string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policies = append(e.policies, &PolicyFile{
		Name:    name,
		Path:    name + ".rego",
		Content: content,
	})
}

// Evaluate runs all loaded policies against input.
//
// The "deny" rule of the policy package yields violations that reject the
// request; the "warn" rule yields warnings that are recorded but never block.
// With no policies loaded everything is allowed.
func (e *Engine) Evaluate(ctx context.Context, input any) (*PolicyDecision, error) {
	e.mu.RLock()
	policies := e.policies
	e.mu.RUnlock()

	decision := &PolicyDecision{
		DecisionID:  uuid.New().String(),
		PolicyPath:  e.policyPackage,
		Result:      PolicyResultAllow,
		Input:       input,
		EvaluatedAt: e.now(),
	}
	if len(policies) == 0 {
		return decision, nil
	}

	modules := make([]func(*rego.Rego), 0, len(policies)+1)
	for _, p := range policies {
		modules = append(modules, rego.Module(p.Path, p.Content))
	}
	modules = append(modules, e.featureStatusFunc())

	violations, err := e.querySet(ctx, input, "deny", modules)
	if err != nil {
		return nil, fmt.Errorf("query deny rules: %w", err)
	}
	warnings, err := e.querySet(ctx, input, "warn", modules)
	if err != nil {
		return nil, fmt.Errorf("query warn rules: %w", err)
	}

	decision.Warnings = warnings
	if len(violations) > 0 {
		decision.Result = PolicyResultDeny
		decision.Violations = violations
	}
	return decision, nil
}

// querySet queries a set-generating rule (like deny or warn) and returns all
// string values. An undefined rule yields nothing.
func (e *Engine) querySet(ctx context.Context, input any, ruleName string, modules []func(*rego.Rego)) ([]string, error) {
	opts := []func(*rego.Rego){
		rego.Query(fmt.Sprintf("data.%s.%s", e.policyPackage, ruleName)),
		rego.Input(input),
	}
	opts = append(opts, modules...)

	rs, err := rego.New(opts...).Eval(ctx)
	if err != nil {
		return nil, err
	}

	var results []string
	for _, result := range rs {
		for _, expr := range result.Expressions {
			set, ok := expr.Value.([]any)
			if !ok {
				continue
			}
			for _, item := range set {
				if s, ok := item.(string); ok {
					results = append(results, s)
				}
			}
		}
	}
	return results, nil
}

// featureStatusFunc binds featurewing.feature_status to this engine's lookup.
// The function is declared even without a lookup so policies always compile.
func (e *Engine) featureStatusFunc() func(*rego.Rego) {
	return rego.Function1(
		&rego.Function{
			Name:    FeatureStatusBuiltin,
			Decl:    types.NewFunction(types.Args(types.S), types.S),
			Memoize: true,
		},
		func(bctx rego.BuiltinContext, a *ast.Term) (*ast.Term, error) {
			id, ok := a.Value.(ast.String)
			if !ok || e.features == nil {
				return nil, nil
			}
			f, err := e.features.GetFeatureByID(bctx.Context, string(id))
			if err != nil || f == nil {
				return nil, nil
			}
			return ast.StringTerm(string(f.Status)), nil
		},
	)
}

// ValidatePolicy checks if a policy has valid Rego syntax.
func ValidatePolicy(content string) error {
	_, err := rego.New(
		rego.Query("data"),
		rego.Module("validation.rego", content),
		rego.Function1(
			&rego.Function{Name: FeatureStatusBuiltin, Decl: types.NewFunction(types.Args(types.S), types.S)},
			func(rego.BuiltinContext, *ast.Term) (*ast.Term, error) { return nil, nil },
		),
	).PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}
	return nil
}
