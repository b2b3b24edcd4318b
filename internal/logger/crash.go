package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
)

const (
	// CrashLogDir is the crash log directory inside the data directory.
	CrashLogDir = "crash_logs"

	// MaxCrashLogs is how many crash logs are kept.
	MaxCrashLogs = 10
)

// crashState is what the crash handler knows about the running command.
type crashState struct {
	mu          sync.RWMutex
	fs          afero.Fs
	basePath    string
	version     string
	command     string
	lastRequest string
	runID       string
}

var crash = &crashState{fs: afero.NewOsFs()}

// SetBasePath sets the data directory crash logs are written under.
func SetBasePath(path string) {
	crash.mu.Lock()
	defer crash.mu.Unlock()
	crash.basePath = path
}

// SetVersion records the CLI version.
func SetVersion(version string) {
	crash.mu.Lock()
	defer crash.mu.Unlock()
	crash.version = version
}

// SetCommand records the command being executed.
func SetCommand(cmd string) {
	crash.mu.Lock()
	defer crash.mu.Unlock()
	crash.command = cmd
}

// SetLastRequest records the title of the feature request in flight.
func SetLastRequest(title string) {
	crash.mu.Lock()
	defer crash.mu.Unlock()
	crash.lastRequest = truncateForLog(strings.TrimSpace(title), 500)
}

// SetRunID records the workflow run in flight.
func SetRunID(runID string) {
	crash.mu.Lock()
	defer crash.mu.Unlock()
	crash.runID = runID
}

func truncateForLog(value string, maxLen int) string {
	r := []rune(value)
	if len(r) <= maxLen {
		return value
	}
	return string(r[:maxLen]) + "... [truncated]"
}

// CrashLog is one crash record, stored as JSON.
type CrashLog struct {
	Timestamp   time.Time `json:"timestamp"`
	Version     string    `json:"version"`
	Command     string    `json:"command"`
	RunID       string    `json:"run_id,omitempty"`
	LastRequest string    `json:"last_request,omitempty"`
	PanicValue  string    `json:"panic_value"`
	StackTrace  string    `json:"stack_trace"`
	GoVersion   string    `json:"go_version"`
	OS          string    `json:"os"`
	Arch        string    `json:"arch"`
}

// HandlePanic recovers a panic, writes a crash log and exits with status 1.
// Usage: defer logger.HandlePanic()
func HandlePanic() {
	if r := recover(); r != nil {
		path, err := Record(r)
		report(os.Stderr, r, path, err)
		os.Exit(1)
	}
}

// Record writes a crash log for panicValue and returns its path.
func Record(panicValue any) (string, error) {
	log := newCrashLog(panicValue)
	return writeCrashLog(log)
}

func report(w io.Writer, r any, path string, err error) {
	if err != nil {
		_, _ = fmt.Fprintf(w, "\n[CRASH] Failed to write crash log: %v\n", err)
		_, _ = fmt.Fprintf(w, "[CRASH] Panic: %v\n%s\n", r, debug.Stack())
		return
	}
	_, _ = fmt.Fprintf(w, "\nFeatureWing encountered an unexpected error.\n")
	_, _ = fmt.Fprintf(w, "A crash log has been saved to:\n  %s\n\n", path)
	_, _ = fmt.Fprintf(w, "Please report this issue at:\n  https://github.com/josephgoksu/FeatureWing/issues\n\n")
}

func newCrashLog(panicValue any) CrashLog {
	crash.mu.RLock()
	defer crash.mu.RUnlock()

	return CrashLog{
		Timestamp:   time.Now(),
		Version:     crash.version,
		Command:     crash.command,
		RunID:       crash.runID,
		LastRequest: crash.lastRequest,
		PanicValue:  fmt.Sprintf("%v", panicValue),
		StackTrace:  string(debug.Stack()),
		GoVersion:   runtime.Version(),
		OS:          runtime.GOOS,
		Arch:        runtime.GOARCH,
	}
}

func writeCrashLog(log CrashLog) (string, error) {
	fs, dir := crashDir()
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create crash log dir: %w", err)
	}

	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal crash log: %w", err)
	}
	path := filepath.Join(dir, crashLogName(log.Timestamp))
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return "", fmt.Errorf("write crash log: %w", err)
	}

	if err := pruneCrashLogs(fs, dir); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "[WARN] Failed to clean old crash logs: %v\n", err)
	}
	return path, nil
}

func crashDir() (afero.Fs, string) {
	crash.mu.RLock()
	defer crash.mu.RUnlock()

	base := crash.basePath
	if base == "" {
		base = ".featurewing"
	}
	return crash.fs, filepath.Join(base, CrashLogDir)
}

func crashLogName(t time.Time) string {
	return fmt.Sprintf("crash_%s.json", t.UTC().Format("20060102_150405.000000000"))
}

func isCrashLog(name string) bool {
	return strings.HasPrefix(name, "crash_") && strings.HasSuffix(name, ".json")
}

// pruneCrashLogs keeps the MaxCrashLogs newest logs. Names sort by time.
func pruneCrashLogs(fs afero.Fs, dir string) error {
	names, err := crashLogNames(fs, dir)
	if err != nil || len(names) <= MaxCrashLogs {
		return err
	}
	for _, name := range names[:len(names)-MaxCrashLogs] {
		if err := fs.Remove(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("remove old crash log %s: %w", name, err)
		}
	}
	return nil
}

func crashLogNames(fs afero.Fs, dir string) ([]string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && isCrashLog(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// ListCrashLogs returns crash log paths, oldest first.
func ListCrashLogs() ([]string, error) {
	fs, dir := crashDir()
	names, err := crashLogNames(fs, dir)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
	}
	return paths, nil
}

// ReadCrashLog loads one crash log.
func ReadCrashLog(path string) (*CrashLog, error) {
	fs, _ := crashDir()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	var log CrashLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("parse crash log: %w", err)
	}
	return &log, nil
}
