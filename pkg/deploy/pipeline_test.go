package deploy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lofty-sh/lofty/pkg/cloud"
	"github.com/lofty-sh/lofty/pkg/descriptor"
	"github.com/lofty-sh/lofty/pkg/packager"
	"github.com/lofty-sh/lofty/pkg/telemetry"
)

type harness struct {
	identity    *mockIdentity
	functions   *mockFunctions
	gateway     *mockGateway
	objectStore *mockObjectStore
	store       *descriptor.Store
	builder     *recordingBuilder
	pipeline    *Pipeline
}

// recordingBuilder packages for real but remembers the artifact so tests
// can inspect the staging directory after the run.
type recordingBuilder struct {
	inner packager.Builder
	last  *packager.Artifact
}

func (b *recordingBuilder) Build(ctx context.Context, sourceDir string, opts packager.Options) (*packager.Artifact, error) {
	artifact, err := b.inner.Build(ctx, sourceDir, opts)
	b.last = artifact
	return artifact, err
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		identity:    newMockIdentity(),
		functions:   newMockFunctions(),
		gateway:     newMockGateway(),
		objectStore: &mockObjectStore{},
		store:       descriptor.NewStore(filepath.Join(t.TempDir(), "lofty.json")),
		builder:     &recordingBuilder{inner: packager.NewZipBuilder()},
	}
	h.pipeline = New(Services{
		Identity:    h.identity,
		Functions:   h.functions,
		Gateway:     h.gateway,
		ObjectStore: h.objectStore,
		Caller:      testCaller(),
	}, h.builder, h.store, telemetry.NopReporter{},
		WithCreateRetry(time.Millisecond, 5))
	return h
}

func sourceDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.js"), []byte("exports.handler = async () => 'ok';"), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func baseRequest(t *testing.T) CreateRequest {
	return CreateRequest{
		SourceDir:    sourceDir(t),
		FunctionName: "uploads-handler",
		Region:       "us-east-1",
		Runtime:      "nodejs22.x",
		Handler:      "index.handler",
	}
}

func TestCreate_ValidationRejectsHandlerWithApiModule(t *testing.T) {
	h := newHarness(t)
	req := baseRequest(t)
	req.APIModule = "api.json"

	_, err := h.pipeline.Create(context.Background(), req)

	if !IsValidation(err) {
		t.Fatalf("expected validation error, got: %v", err)
	}
	if len(h.identity.calls) != 0 || len(h.functions.calls) != 0 {
		t.Errorf("validation failure must precede any remote call: identity=%v functions=%v",
			h.identity.calls, h.functions.calls)
	}
}

func TestCreate_ValidationRequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateRequest)
	}{
		{"missing function name", func(r *CreateRequest) { r.FunctionName = "" }},
		{"missing region", func(r *CreateRequest) { r.Region = "" }},
		{"missing runtime", func(r *CreateRequest) { r.Runtime = "" }},
		{"neither handler nor api module", func(r *CreateRequest) { r.Handler = "" }},
		{"reserved label", func(r *CreateRequest) { r.Label = LatestLabel }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			req := baseRequest(t)
			tt.mutate(&req)
			_, err := h.pipeline.Create(context.Background(), req)
			if !IsValidation(err) {
				t.Fatalf("expected validation error, got: %v", err)
			}
		})
	}
}

func TestCreate_FreshRoleThenRetriedFunctionCreation(t *testing.T) {
	h := newHarness(t)
	// First two creation attempts hit the propagation window.
	h.functions.createFailures = 2

	result, err := h.pipeline.Create(context.Background(), baseRequest(t))
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if got := h.identity.calls; len(got) != 2 || got[0] != "CreateRole" || got[1] != "PutInlinePolicy" {
		t.Errorf("identity calls = %v", got)
	}
	creates := 0
	for _, c := range h.functions.calls {
		if c == "Create" {
			creates++
		}
	}
	if creates != 3 {
		t.Errorf("expected 3 creation attempts, got %d", creates)
	}
	if h.functions.aliases[LatestLabel] != "1" {
		t.Errorf("latest alias = %q, want version 1", h.functions.aliases[LatestLabel])
	}
	if result.Config.Function.SharedRole {
		t.Error("freshly created role must not be marked shared")
	}

	saved, err := h.store.Load()
	if err != nil {
		t.Fatalf("descriptor not persisted: %v", err)
	}
	if saved.Function.ExecutionRoleName != "uploads-handler-executor" {
		t.Errorf("persisted role = %q", saved.Function.ExecutionRoleName)
	}
}

func TestCreate_ReferencedRoleArnSkipsIdentityCalls(t *testing.T) {
	h := newHarness(t)
	req := baseRequest(t)
	req.RoleRef = "arn:aws:iam::123456789012:role/shared-executor"

	result, err := h.pipeline.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if len(h.identity.calls) != 0 {
		t.Errorf("fully qualified role reference must skip identity calls, got %v", h.identity.calls)
	}
	if h.functions.created.RoleArn != req.RoleRef {
		t.Errorf("function created with role %q", h.functions.created.RoleArn)
	}
	if !result.Config.Function.SharedRole {
		t.Error("referenced role must be marked shared")
	}
	if result.Config.Function.ExecutionRoleName != "shared-executor" {
		t.Errorf("persisted role name = %q", result.Config.Function.ExecutionRoleName)
	}
}

func TestCreate_ReferencedRoleByNamePolicyFailureIsNonFatal(t *testing.T) {
	h := newHarness(t)
	h.identity.roles["shared-executor"] = &cloud.ExecutionRole{
		Name: "shared-executor",
		Arn:  "arn:aws:iam::123456789012:role/shared-executor",
	}
	h.identity.policyErr = errors.New("access denied")
	req := baseRequest(t)
	req.RoleRef = "shared-executor"

	_, err := h.pipeline.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("policy attach failure on a referenced role must not fail the run: %v", err)
	}
}

func TestCreate_FreshRolePolicyFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	h.identity.policyErr = errors.New("access denied")

	_, err := h.pipeline.Create(context.Background(), baseRequest(t))
	if err == nil {
		t.Fatal("policy attach failure on a fresh role must fail the run")
	}
	if len(h.functions.calls) != 0 {
		t.Errorf("pipeline must halt before function creation, got %v", h.functions.calls)
	}
}

func TestCreate_TerminalProviderErrorPreservesCode(t *testing.T) {
	h := newHarness(t)
	h.functions.createErr = &apiError{code: "ResourceConflictException"}

	_, err := h.pipeline.Create(context.Background(), baseRequest(t))
	if !IsPermanent(err) {
		t.Fatalf("expected permanent error, got: %v", err)
	}
	if Code(err) != "ResourceConflictException" {
		t.Errorf("classification code = %q", Code(err))
	}
}

func TestCreate_UserLabelBoundAlongsideLatest(t *testing.T) {
	h := newHarness(t)
	req := baseRequest(t)
	req.Label = "prod"

	_, err := h.pipeline.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if h.functions.aliases[LatestLabel] != "1" || h.functions.aliases["prod"] != "1" {
		t.Errorf("aliases = %v, want latest and prod at version 1", h.functions.aliases)
	}
}

func TestCreate_UserLabelBindFailureKeepsRunAlive(t *testing.T) {
	h := newHarness(t)
	h.functions.aliasFailLabel = "prod"
	req := baseRequest(t)
	req.Label = "prod"

	_, err := h.pipeline.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("user label failure after latest must not fail the run: %v", err)
	}
	if h.functions.aliases[LatestLabel] != "1" {
		t.Errorf("latest alias = %q, want version 1", h.functions.aliases[LatestLabel])
	}
	if _, bound := h.functions.aliases["prod"]; bound {
		t.Error("prod alias must not be bound after its create failed")
	}
	if _, err := h.store.Load(); err != nil {
		t.Errorf("descriptor must still be persisted: %v", err)
	}
}

func TestCreate_LatestBindFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	h.functions.aliasFailLabel = LatestLabel

	_, err := h.pipeline.Create(context.Background(), baseRequest(t))
	if err == nil {
		t.Fatal("latest bind failure must fail the run")
	}
	if _, err := h.store.Load(); !errors.Is(err, descriptor.ErrNoDeployment) {
		t.Errorf("descriptor must not be persisted on a failed run, got: %v", err)
	}
}

func TestCreate_WithApiModule(t *testing.T) {
	h := newHarness(t)
	dir := sourceDir(t)
	specPath := filepath.Join(dir, "app.json")
	spec := `{"routes": {"": ["ANY"], "greet": ["GET"]}}`
	if err := os.WriteFile(specPath, []byte(spec), 0644); err != nil {
		t.Fatal(err)
	}
	req := baseRequest(t)
	req.SourceDir = dir
	req.Handler = ""
	req.APIModule = specPath

	result, err := h.pipeline.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if h.functions.created.Handler != "app.handler" {
		t.Errorf("derived handler = %q", h.functions.created.Handler)
	}
	if result.Config.Gateway == nil || result.Config.Gateway.ID != "api-uploads-handler" {
		t.Errorf("gateway block = %+v", result.Config.Gateway)
	}
	if len(h.gateway.deployments) != 1 || h.gateway.deployments[0] != LatestLabel {
		t.Errorf("deployed stages = %v", h.gateway.deployments)
	}
	if vars := h.gateway.stageVars[LatestLabel]; vars["lambdaVersion"] != LatestLabel {
		t.Errorf("stage variables = %v", vars)
	}
	if result.ApiURL == "" {
		t.Error("expected an API URL in the result")
	}
}

func TestCreate_StagingCleanup(t *testing.T) {
	t.Run("removed after success", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.pipeline.Create(context.Background(), baseRequest(t))
		if err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		if h.builder.last == nil {
			t.Fatal("no artifact was built")
		}
		if _, err := os.Stat(h.builder.last.StagingDir); !os.IsNotExist(err) {
			t.Errorf("staging dir %s still present after success", h.builder.last.StagingDir)
		}
	})

	t.Run("removed after function creation failure", func(t *testing.T) {
		h := newHarness(t)
		h.functions.createErr = &apiError{code: "ResourceConflictException"}

		_, err := h.pipeline.Create(context.Background(), baseRequest(t))
		if err == nil {
			t.Fatal("expected the run to fail")
		}
		if h.builder.last == nil {
			t.Fatal("no artifact was built")
		}
		if _, err := os.Stat(h.builder.last.StagingDir); !os.IsNotExist(err) {
			t.Errorf("staging dir %s still present after failure", h.builder.last.StagingDir)
		}
	})

	t.Run("keep-artifact preserves the archive", func(t *testing.T) {
		h := newHarness(t)
		req := baseRequest(t)
		req.KeepArtifact = true

		result, err := h.pipeline.Create(context.Background(), req)
		if err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		defer os.RemoveAll(h.builder.last.StagingDir)

		if _, err := os.Stat(h.builder.last.Path); err != nil {
			t.Errorf("artifact missing: %v", err)
		}
		if result.ArtifactPath != h.builder.last.Path {
			t.Errorf("reported artifact path = %q, want %q", result.ArtifactPath, h.builder.last.Path)
		}
	})
}

func TestEnsureAlias_IdempotentUpsert(t *testing.T) {
	h := newHarness(t)
	mgr := NewAliasManager(h.functions)
	ctx := context.Background()

	if err := mgr.Ensure(ctx, "fn", "1", LatestLabel); err != nil {
		t.Fatalf("first Ensure: %v", err)
	}
	if err := mgr.Ensure(ctx, "fn", "1", LatestLabel); err != nil {
		t.Fatalf("second Ensure must succeed via update: %v", err)
	}
	if len(h.functions.aliases) != 1 || h.functions.aliases[LatestLabel] != "1" {
		t.Errorf("aliases = %v, want exactly one latest->1", h.functions.aliases)
	}
}

func TestEnsureAlias_OtherCreateErrorsPropagateUnchanged(t *testing.T) {
	h := newHarness(t)
	h.functions.aliasCreateErr = &apiError{code: "ServiceException"}
	mgr := NewAliasManager(h.functions)

	err := mgr.Ensure(context.Background(), "fn", "1", LatestLabel)
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected the raw provider error, got: %v", err)
	}
}
