package deploy

import (
	"github.com/lofty-sh/lofty/pkg/cloud"
	"github.com/lofty-sh/lofty/pkg/packager"
	"github.com/lofty-sh/lofty/pkg/telemetry"
)

// Context is the transient state one pipeline run accumulates while its
// stages execute. It is owned exclusively by that run, never persisted, and
// discarded (with staging cleanup) at pipeline end regardless of outcome.
type Context struct {
	Role            *cloud.ExecutionRole
	RoleCreated     bool
	FunctionArn     string
	FunctionVersion string
	OwnerAccountID  string
	Partition       string
	StagingDir      string
	ArtifactPath    string
	StorageKey      string

	artifact     *packager.Artifact
	keepArtifact bool
}

// Cleanup removes the run's local staging artifacts. When the caller asked
// to keep the artifact, deletion is skipped and its location reported
// instead. Runs on success and failure paths alike.
func (c *Context) Cleanup(reporter telemetry.Reporter) {
	if c.artifact == nil {
		return
	}
	if c.keepArtifact {
		reporter.Substage(StageCleanup, "artifact kept at "+c.ArtifactPath)
		return
	}
	if err := c.artifact.Cleanup(); err != nil {
		reporter.Warn(StageCleanup, err)
	}
}
