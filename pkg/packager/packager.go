// Package packager turns a source tree into an uploadable zip artifact,
// staged under a per-run temp directory so concurrent invocations never
// collide.
package packager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Options controls artifact construction.
type Options struct {
	// Ignore lists additional glob patterns (matched against the path
	// relative to the source root) excluded from the artifact.
	Ignore []string
}

// Artifact is a packaged deployment archive plus the staging directory that
// holds it. The caller owns cleanup.
type Artifact struct {
	// Path is the zip file location inside the staging directory.
	Path string

	// StagingDir is the per-run scratch directory.
	StagingDir string
}

// Cleanup removes the staging directory and everything in it.
func (a *Artifact) Cleanup() error {
	if a == nil || a.StagingDir == "" {
		return nil
	}
	return os.RemoveAll(a.StagingDir)
}

// Builder produces a deployable artifact from a source directory.
type Builder interface {
	Build(ctx context.Context, sourceDir string, opts Options) (*Artifact, error)
}

// ZipBuilder packages a source tree into a zip archive.
type ZipBuilder struct{}

// NewZipBuilder creates a ZipBuilder.
func NewZipBuilder() *ZipBuilder {
	return &ZipBuilder{}
}

// Build stages and archives sourceDir. The descriptor, project options
// file, dot-directories and any pattern in opts.Ignore are excluded.
func (b *ZipBuilder) Build(ctx context.Context, sourceDir string, opts Options) (*Artifact, error) {
	info, err := os.Stat(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", sourceDir)
	}

	stagingDir := filepath.Join(os.TempDir(), "lofty-"+uuid.NewString())
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}

	artifactPath := filepath.Join(stagingDir, filepath.Base(absOrSelf(sourceDir))+".zip")
	if err := writeZip(ctx, artifactPath, sourceDir, opts.Ignore); err != nil {
		// Staging is removed on failure here; the pipeline-level cleanup
		// never sees a half-written artifact.
		_ = os.RemoveAll(stagingDir)
		return nil, err
	}
	return &Artifact{Path: artifactPath, StagingDir: stagingDir}, nil
}

func absOrSelf(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
