// Package project provides detection and context for project boundaries.
//
// The ledger lives in a .featurewing directory at the project root. The root
// is found by walking up from the working directory:
//  1. Explicit context (.featurewing/): highest priority.
//  2. Language manifests: go.mod, package.json, Cargo.toml, etc.
//  3. VCS root (.git/): fallback.
//  4. CWD: used if unanchored.
package project

import "github.com/spf13/afero"

// DataDirName is the per-project data directory.
const DataDirName = ".featurewing"

// MarkerType represents the type of project marker that was detected.
type MarkerType int

const (
	// MarkerNone indicates no project marker was found.
	MarkerNone MarkerType = iota

	// MarkerFeatureWing indicates a .featurewing directory was found.
	MarkerFeatureWing

	MarkerGoMod
	MarkerPackageJSON
	MarkerCargoToml
	MarkerPomXML
	MarkerPyProjectToml

	// MarkerGit indicates a .git directory was found.
	MarkerGit
)

// String returns a human-readable name for the marker type.
func (m MarkerType) String() string {
	switch m {
	case MarkerNone:
		return "none"
	case MarkerFeatureWing:
		return DataDirName
	case MarkerGoMod:
		return "go.mod"
	case MarkerPackageJSON:
		return "package.json"
	case MarkerCargoToml:
		return "Cargo.toml"
	case MarkerPomXML:
		return "pom.xml"
	case MarkerPyProjectToml:
		return "pyproject.toml"
	case MarkerGit:
		return ".git"
	default:
		return "unknown"
	}
}

// Priority returns the detection priority for this marker type.
// Higher values indicate higher priority.
func (m MarkerType) Priority() int {
	switch m {
	case MarkerFeatureWing:
		return 100
	case MarkerGoMod, MarkerPackageJSON, MarkerCargoToml, MarkerPomXML, MarkerPyProjectToml:
		return 50
	case MarkerGit:
		return 10
	default:
		return 0
	}
}

// Context contains information about the detected project boundary.
type Context struct {
	// RootPath is the absolute path to the detected project root.
	RootPath string

	// MarkerType indicates which marker was used to identify the project root.
	MarkerType MarkerType
}

// HasDataDir returns true if the project already has a .featurewing directory.
func (c *Context) HasDataDir() bool {
	return c.MarkerType == MarkerFeatureWing
}

// Detector finds the project root starting from a path.
type Detector interface {
	Detect(startPath string) (*Context, error)
}

type detector struct {
	fs afero.Fs
}

// NewDetector creates a new Detector using the provided filesystem.
// Use afero.NewMemMapFs() for testing.
func NewDetector(fs afero.Fs) Detector {
	return &detector{fs: fs}
}

// Detect detects the project root from the given path using the real
// operating system filesystem.
func Detect(startPath string) (*Context, error) {
	return NewDetector(afero.NewOsFs()).Detect(startPath)
}
