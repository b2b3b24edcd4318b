package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/josephgoksu/FeatureWing/internal/ledger"
	"github.com/spf13/afero"
)

// ErrNotInitialized is returned when the data directory has no project.json.
var ErrNotInitialized = errors.New("project not initialized (run 'featurewing init')")

// ProjectFile is the project identity stored in .featurewing/project.json.
type ProjectFile struct {
	ProjectName     string    `json:"project_name"`
	ProjectInitials string    `json:"project_initials"`
	CreatedAt       time.Time `json:"created_at"`
}

// Initials returns the configured initials or DefaultInitials.
func (p *ProjectFile) Initials() string {
	if p.ProjectInitials == "" {
		return DefaultInitials
	}
	return p.ProjectInitials
}

// LoadProjectFile reads project.json from dataDir.
func LoadProjectFile(fs afero.Fs, dataDir string) (*ProjectFile, error) {
	data, err := afero.ReadFile(fs, filepath.Join(dataDir, ProjectFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotInitialized
		}
		return nil, fmt.Errorf("read project file: %w", err)
	}

	var p ProjectFile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse project file: %w", err)
	}
	if p.ProjectInitials != "" && !ledger.ValidInitials(p.ProjectInitials) {
		return nil, fmt.Errorf("invalid project_initials %q: must be 1 to 4 uppercase letters", p.ProjectInitials)
	}
	return &p, nil
}

// SaveProjectFile writes project.json into dataDir, creating it if needed.
func SaveProjectFile(fs afero.Fs, dataDir string, p *ProjectFile) error {
	if p.ProjectInitials != "" && !ledger.ValidInitials(p.ProjectInitials) {
		return fmt.Errorf("invalid project_initials %q: must be 1 to 4 uppercase letters", p.ProjectInitials)
	}
	if err := fs.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal project file: %w", err)
	}
	return afero.WriteFile(fs, filepath.Join(dataDir, ProjectFileName), data, 0o644)
}

// DeriveInitials builds initials from the first letter of up to four words
// in name. It falls back to DefaultInitials.
func DeriveInitials(name string) string {
	var b strings.Builder
	for _, word := range strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		r := []rune(word)[0]
		if r > unicode.MaxASCII || !unicode.IsLetter(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
		if b.Len() == 4 {
			break
		}
	}
	if b.Len() == 0 {
		return DefaultInitials
	}
	return b.String()
}
