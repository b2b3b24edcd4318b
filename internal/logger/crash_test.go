package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetCrashState(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	crash = &crashState{fs: fs, basePath: "/proj/.featurewing"}
	t.Cleanup(func() { crash = &crashState{fs: afero.NewOsFs()} })
	return fs
}

func TestSetContext(t *testing.T) {
	resetCrashState(t)

	SetVersion("1.0.0-test")
	SetCommand("request")
	SetLastRequest("  Add dash ability  ")
	SetRunID("run-42")

	log := newCrashLog("boom")
	assert.Equal(t, "1.0.0-test", log.Version)
	assert.Equal(t, "request", log.Command)
	assert.Equal(t, "Add dash ability", log.LastRequest)
	assert.Equal(t, "run-42", log.RunID)
	assert.Equal(t, "boom", log.PanicValue)
	assert.Contains(t, log.StackTrace, "goroutine")
}

func TestSetLastRequest_Truncation(t *testing.T) {
	resetCrashState(t)

	SetLastRequest(strings.Repeat("é", 800))
	log := newCrashLog(nil)
	assert.True(t, strings.HasSuffix(log.LastRequest, "[truncated]"))
	assert.Equal(t, 500+len("... [truncated]"), len([]rune(log.LastRequest)))
}

func TestRecord(t *testing.T) {
	fs := resetCrashState(t)
	SetCommand("feature show")

	path, err := Record(errors.New("nil map write"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/proj/.featurewing", CrashLogDir), filepath.Dir(path))

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	var stored CrashLog
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, "nil map write", stored.PanicValue)
	assert.Equal(t, "feature show", stored.Command)

	read, err := ReadCrashLog(path)
	require.NoError(t, err)
	assert.Equal(t, stored.PanicValue, read.PanicValue)
}

func TestPruneCrashLogs(t *testing.T) {
	fs := resetCrashState(t)
	dir := filepath.Join("/proj/.featurewing", CrashLogDir)
	require.NoError(t, fs.MkdirAll(dir, 0o755))

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < MaxCrashLogs+5; i++ {
		name := crashLogName(base.Add(time.Duration(i) * time.Hour))
		require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, name), []byte("{}"), 0o644))
	}
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, "notes.txt"), []byte("keep"), 0o644))

	require.NoError(t, pruneCrashLogs(fs, dir))

	logs, err := ListCrashLogs()
	require.NoError(t, err)
	require.Len(t, logs, MaxCrashLogs)
	assert.Equal(t, crashLogName(base.Add(5*time.Hour)), filepath.Base(logs[0]))

	exists, err := afero.Exists(fs, filepath.Join(dir, "notes.txt"))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestListCrashLogs_MissingDir(t *testing.T) {
	resetCrashState(t)
	logs, err := ListCrashLogs()
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	report(&buf, "boom", "/proj/.featurewing/crash_logs/crash_x.json", nil)
	assert.Contains(t, buf.String(), "crash_x.json")

	buf.Reset()
	report(&buf, "boom", "", fmt.Errorf("read-only"))
	assert.Contains(t, buf.String(), "Failed to write crash log: read-only")
	assert.Contains(t, buf.String(), "Panic: boom")
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Options{})
	l.Info("hidden")
	l.Warn("shown", "feature_id", "UP-001")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "feature_id=UP-001")

	buf.Reset()
	l = New(&buf, Options{Verbose: true, Format: "json"})
	l.Debug("stage", "stage", "VALIDATE")
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "VALIDATE", rec["stage"])
	assert.Equal(t, "DEBUG", rec["level"])
}
