package policy

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// PolicyFile represents a loaded Rego policy file.
type PolicyFile struct {
	// Path is the path the file was loaded from.
	Path string `json:"path"`
	// Name is the base name of the file without extension.
	Name string `json:"name"`
	// Content is the raw Rego source code.
	Content string `json:"content"`
}

// isTestFile reports whether a .rego file holds OPA unit tests. Tests are
// run by TestRunner and never loaded into the approval engine.
func isTestFile(name string) bool {
	return strings.HasSuffix(name, "_test.rego")
}

// Loader scans and loads .rego policy files from a directory.
// It uses an afero.Fs interface for filesystem operations, enabling
// easy testing with in-memory filesystems.
type Loader struct {
	fs      afero.Fs
	baseDir string
}

// NewLoader creates a new policy loader using the provided filesystem.
func NewLoader(fs afero.Fs, baseDir string) *Loader {
	return &Loader{
		fs:      fs,
		baseDir: baseDir,
	}
}

// LoadAll loads all non-test .rego files from the directory, recursively,
// sorted by path. A missing directory means no policies.
func (l *Loader) LoadAll() ([]*PolicyFile, error) {
	paths, err := l.walk(func(name string) bool { return !isTestFile(name) })
	if err != nil {
		return nil, err
	}

	policies := make([]*PolicyFile, 0, len(paths))
	for _, path := range paths {
		policy, err := l.loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load policy %s: %w", path, err)
		}
		policies = append(policies, policy)
	}
	return policies, nil
}

// ListFiles returns the paths of all .rego files, tests included.
func (l *Loader) ListFiles() ([]string, error) {
	return l.walk(func(string) bool { return true })
}

// Exists checks if the policies directory exists.
func (l *Loader) Exists() (bool, error) {
	return afero.DirExists(l.fs, l.baseDir)
}

func (l *Loader) walk(keep func(name string) bool) ([]string, error) {
	exists, err := afero.DirExists(l.fs, l.baseDir)
	if err != nil {
		return nil, fmt.Errorf("check policies directory: %w", err)
	}
	if !exists {
		return []string{}, nil
	}

	var paths []string
	err = afero.Walk(l.fs, l.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".rego") {
			return nil
		}
		if keep(info.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk policies directory: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// loadFile reads a policy file and returns its content.
func (l *Loader) loadFile(path string) (*PolicyFile, error) {
	file, err := l.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return &PolicyFile{
		Path:    path,
		Name:    strings.TrimSuffix(filepath.Base(path), ".rego"),
		Content: string(content),
	}, nil
}
