package config

import (
	"os"
	"path/filepath"

	"github.com/josephgoksu/FeatureWing/internal/project"
	"github.com/spf13/viper"
)

// Names inside the project data directory.
const (
	ProjectFileName = "project.json"
	ConfigFileName  = "config.yaml"
	PoliciesDirName = "policies"
	RunsDirName     = "runs"
	FeaturesDirName = "features"
	CrashLogsDir    = "crash_logs"
)

// GetGlobalConfigDir returns the path to the global configuration directory (~/.featurewing).
// It's a variable to allow overriding in tests.
var GetGlobalConfigDir = func() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, project.DataDirName), nil
}

// GetDataDir returns the project data directory.
// Resolution order (first match wins):
// 1. Explicit config via "project.dir" (Viper/env/flag)
// 2. <detected project root>/.featurewing
// 3. ./.featurewing
func GetDataDir() string {
	if dir := viper.GetString("project.dir"); dir != "" {
		return dir
	}

	cwd, err := os.Getwd()
	if err != nil {
		return project.DataDirName
	}
	ctx, err := project.Detect(cwd)
	if err != nil {
		return filepath.Join(cwd, project.DataDirName)
	}
	return filepath.Join(ctx.RootPath, project.DataDirName)
}

// GetProjectRoot returns the directory that holds the data directory.
func GetProjectRoot() string {
	return filepath.Dir(GetDataDir())
}

// GetPolicyDir returns the policy directory, honoring "policy.dir".
func GetPolicyDir() string {
	if dir := viper.GetString("policy.dir"); dir != "" {
		return dir
	}
	return filepath.Join(GetDataDir(), PoliciesDirName)
}

// GetRunsDir returns the directory holding workflow audit records.
func GetRunsDir() string {
	return filepath.Join(GetDataDir(), RunsDirName)
}

// GetFeaturesDir returns the directory holding markdown document mirrors.
func GetFeaturesDir() string {
	return filepath.Join(GetDataDir(), FeaturesDirName)
}

// GetContextFilePath resolves workflow.contextFile against the project root.
func GetContextFilePath() string {
	p := viper.GetString("workflow.contextFile")
	if p == "" {
		p = DefaultContextFile
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(GetProjectRoot(), p)
}
