package ledger

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// MarkdownMirror writes human-readable copies of feature documents to
// <dir>/<feature_id>/<document_type>.md. The database stays authoritative.
type MarkdownMirror struct {
	fs  afero.Fs
	dir string
}

// NewMarkdownMirror creates a mirror rooted at dir on the given filesystem.
func NewMarkdownMirror(fs afero.Fs, dir string) *MarkdownMirror {
	return &MarkdownMirror{fs: fs, dir: dir}
}

// PathFor returns the mirror file path of a document.
func (m *MarkdownMirror) PathFor(featureID string, docType DocumentType) string {
	return filepath.Join(m.dir, featureID, string(docType)+".md")
}

// WriteDocument renders one document with a small feature header.
func (m *MarkdownMirror) WriteDocument(f Feature, d Document) error {
	featureDir := filepath.Join(m.dir, f.ID)
	if err := m.fs.MkdirAll(featureDir, 0755); err != nil {
		return fmt.Errorf("create feature dir: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s: %s\n\n", f.ID, f.Title))
	sb.WriteString(fmt.Sprintf("- **Type:** %s\n", f.Type))
	sb.WriteString(fmt.Sprintf("- **Status:** %s\n", f.Status))
	sb.WriteString(fmt.Sprintf("- **Created:** %s\n", f.DateCreated.Format("2006-01-02")))
	if len(f.Keywords) > 0 {
		sb.WriteString(fmt.Sprintf("- **Keywords:** %s\n", strings.Join(f.Keywords, ", ")))
	}
	if len(f.Relations) > 0 {
		sb.WriteString("\n## Relations\n\n")
		for _, r := range f.Relations {
			sb.WriteString(fmt.Sprintf("- %s %s\n", r.Type, r.TargetID))
		}
	}
	sb.WriteString(fmt.Sprintf("\n## %s\n\n", docTitle(d.Type)))
	sb.WriteString(strings.TrimSpace(d.Content))
	sb.WriteString("\n")

	return afero.WriteFile(m.fs, m.PathFor(f.ID, d.Type), []byte(sb.String()), 0644)
}

func docTitle(t DocumentType) string {
	switch t {
	case DocFeatureRequest:
		return "Feature Request"
	case DocTechnicalSpec:
		return "Technical Architecture Specification"
	case DocImplementationPlan:
		return "Implementation Plan"
	default:
		return string(t)
	}
}
