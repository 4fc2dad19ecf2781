package descriptor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProjectFileName is the optional per-project options file, read from the
// source directory. Flags override anything set here.
const ProjectFileName = "lofty.yml"

// ProjectOptions are per-project deployment defaults.
type ProjectOptions struct {
	Runtime string            `yaml:"runtime"`
	Handler string            `yaml:"handler"`
	Memory  int32             `yaml:"memory"`
	Timeout int32             `yaml:"timeout"`
	Env     map[string]string `yaml:"env"`
	// Ignore lists glob patterns excluded from the artifact, in addition
	// to the packager's built-in exclusions.
	Ignore []string `yaml:"ignore"`
}

// LoadProjectOptions reads lofty.yml from sourceDir. A missing file yields
// zero-valued options, not an error.
func LoadProjectOptions(sourceDir string) (*ProjectOptions, error) {
	data, err := os.ReadFile(filepath.Join(sourceDir, ProjectFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &ProjectOptions{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", ProjectFileName, err)
	}
	var opts ProjectOptions
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ProjectFileName, err)
	}
	return &opts, nil
}
