package project

import (
	"path/filepath"

	"github.com/spf13/afero"
)

// markerFiles defines the files/directories to check for project detection.
// Order matters for same-directory precedence within priority tiers.
var markerFiles = []struct {
	name       string
	markerType MarkerType
}{
	{DataDirName, MarkerFeatureWing},

	{"go.mod", MarkerGoMod},
	{"package.json", MarkerPackageJSON},
	{"Cargo.toml", MarkerCargoToml},
	{"pom.xml", MarkerPomXML},
	{"pyproject.toml", MarkerPyProjectToml},

	{".git", MarkerGit},
}

// Detect walks up the directory tree from startPath looking for project
// markers. A .featurewing directory wins immediately. Otherwise the nearest
// language manifest wins over the nearest .git. If nothing is found the
// start path itself is returned with MarkerNone.
func (d *detector) Detect(startPath string) (*Context, error) {
	absPath, err := filepath.Abs(startPath)
	if err != nil {
		return nil, err
	}

	best := &Context{RootPath: absPath, MarkerType: MarkerNone}
	dir := absPath
	for {
		for _, m := range markerFiles {
			exists, err := afero.Exists(d.fs, filepath.Join(dir, m.name))
			if err != nil || !exists {
				continue
			}
			if m.markerType == MarkerFeatureWing {
				return &Context{RootPath: dir, MarkerType: MarkerFeatureWing}, nil
			}
			if m.markerType.Priority() > best.MarkerType.Priority() {
				best = &Context{RootPath: dir, MarkerType: m.markerType}
			}
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return best, nil
}
