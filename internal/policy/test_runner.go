package policy

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/tester"
	"github.com/open-policy-agent/opa/v1/topdown"
	"github.com/spf13/afero"
)

// TestResult represents the result of running a single OPA test.
type TestResult struct {
	// Name is the test rule, e.g. "test_deny_low_confidence".
	Name     string        `json:"name"`
	Package  string        `json:"package"`
	Passed   bool          `json:"passed"`
	Failed   bool          `json:"failed"`
	Skipped  bool          `json:"skipped"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	// Output contains trace notes from the test.
	Output []string `json:"output,omitempty"`
}

// TestSummary summarizes the results of running multiple tests.
type TestSummary struct {
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
	Errored  int           `json:"errored"`
	Total    int           `json:"total"`
	Duration time.Duration `json:"duration"`
	Results  []*TestResult `json:"results"`
}

// TestRunner runs the Rego unit tests (test_* rules) found next to the
// approval policies. featurewing.feature_status is not available to tests;
// mock it with the `with` keyword on a helper rule instead.
type TestRunner struct {
	fs          afero.Fs
	policiesDir string
	timeout     time.Duration
}

// NewTestRunner creates a new test runner.
func NewTestRunner(fs afero.Fs, policiesDir string) *TestRunner {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &TestRunner{fs: fs, policiesDir: policiesDir, timeout: 30 * time.Second}
}

// Run executes all tests in the policies directory.
func (r *TestRunner) Run(ctx context.Context) (*TestSummary, error) {
	start := time.Now()

	modules, err := r.loadModules()
	if err != nil {
		return nil, fmt.Errorf("load modules: %w", err)
	}
	if len(modules) == 0 {
		return &TestSummary{Duration: time.Since(start), Results: []*TestResult{}}, nil
	}

	compiler := ast.NewCompiler()
	compiler.Compile(modules)
	if compiler.Failed() {
		var errMsgs []string
		for _, err := range compiler.Errors {
			errMsgs = append(errMsgs, err.Error())
		}
		return nil, fmt.Errorf("compile policies: %s", strings.Join(errMsgs, "; "))
	}

	runner := tester.NewRunner().
		SetCompiler(compiler).
		SetModules(modules).
		EnableTracing(true).
		SetTimeout(r.timeout)

	ch, err := runner.RunTests(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("run tests: %w", err)
	}

	summary := &TestSummary{Results: []*TestResult{}}
	for tr := range ch {
		result := &TestResult{
			Name:     tr.Name,
			Package:  tr.Package,
			Duration: tr.Duration,
		}
		switch {
		case tr.Skip:
			result.Skipped = true
			summary.Skipped++
		case tr.Error != nil:
			result.Error = tr.Error.Error()
			summary.Errored++
		case tr.Fail:
			result.Failed = true
			summary.Failed++
		default:
			result.Passed = true
			summary.Passed++
		}
		for _, evt := range tr.Trace {
			if evt.Op == topdown.NoteOp && evt.Message != "" {
				result.Output = append(result.Output, evt.Message)
			}
		}
		summary.Total++
		summary.Results = append(summary.Results, result)
	}
	summary.Duration = time.Since(start)
	return summary, nil
}

// loadModules parses every .rego file, tests included, keyed by path
// relative to the policies directory.
func (r *TestRunner) loadModules() (map[string]*ast.Module, error) {
	paths, err := NewLoader(r.fs, r.policiesDir).ListFiles()
	if err != nil {
		return nil, err
	}

	modules := make(map[string]*ast.Module, len(paths))
	for _, path := range paths {
		content, err := afero.ReadFile(r.fs, path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		module, err := ast.ParseModule(path, string(content))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		rel, err := filepath.Rel(r.policiesDir, path)
		if err != nil || rel == "" {
			rel = path
		}
		modules[rel] = module
	}
	return modules, nil
}

// HasTests returns true if there are any *_test.rego files.
func (r *TestRunner) HasTests() (bool, error) {
	paths, err := NewLoader(r.fs, r.policiesDir).ListFiles()
	if err != nil {
		return false, err
	}
	for _, p := range paths {
		if isTestFile(filepath.Base(p)) {
			return true, nil
		}
	}
	return false, nil
}

// FormatSummary returns a human-readable summary of test results.
func (s *TestSummary) FormatSummary() string {
	if s.Total == 0 {
		return "No tests found.\n"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "\n%d tests, %d passed", s.Total, s.Passed)
	if s.Failed > 0 {
		fmt.Fprintf(&sb, ", %d failed", s.Failed)
	}
	if s.Errored > 0 {
		fmt.Fprintf(&sb, ", %d errored", s.Errored)
	}
	if s.Skipped > 0 {
		fmt.Fprintf(&sb, ", %d skipped", s.Skipped)
	}
	fmt.Fprintf(&sb, " in %s\n", s.Duration.Round(time.Millisecond))
	return sb.String()
}

// AllPassed returns true if all tests passed (no failures or errors).
func (s *TestSummary) AllPassed() bool {
	return s.Failed == 0 && s.Errored == 0
}
