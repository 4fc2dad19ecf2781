package descriptor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testConfig() *DeploymentConfig {
	return &DeploymentConfig{
		Function: FunctionConfig{
			Name:              "uploads-handler",
			ExecutionRoleName: "uploads-handler-executor",
			Region:            "us-east-1",
		},
	}
}

func TestStore_SaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lofty.json")
	store := NewStore(path)

	cfg := testConfig()
	cfg.Gateway = &GatewayConfig{ID: "a1b2c3", ModuleRef: "api.json"}
	cfg.StorageKey = "arn:aws:kms:us-east-1:123456789012:key/abc"

	if err := store.Save(cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.Function.Name != "uploads-handler" || loaded.Function.Region != "us-east-1" {
		t.Errorf("function block = %+v", loaded.Function)
	}
	if loaded.Gateway == nil || loaded.Gateway.ID != "a1b2c3" {
		t.Errorf("gateway block = %+v", loaded.Gateway)
	}
	if loaded.StorageKey != cfg.StorageKey {
		t.Errorf("storageKey = %q", loaded.StorageKey)
	}
}

func TestStore_LoadMissingFileReportsNoDeployment(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "absent.json"))

	_, err := store.Load()
	if !errors.Is(err, ErrNoDeployment) {
		t.Fatalf("expected ErrNoDeployment, got: %v", err)
	}
}

func TestStore_LoadUnparseableFileReportsNoDeployment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lofty.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewStore(path).Load()
	if !errors.Is(err, ErrNoDeployment) {
		t.Fatalf("expected ErrNoDeployment, got: %v", err)
	}
}

func TestStore_SaveRejectsNameOrRegionChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lofty.json")
	store := NewStore(path)
	if err := store.Save(testConfig()); err != nil {
		t.Fatal(err)
	}

	changed := testConfig()
	changed.Function.Region = "eu-west-1"
	if err := store.Save(changed); err == nil {
		t.Fatal("expected immutability violation, got nil")
	}

	// Updating mutable fields of the same deployment is allowed.
	updated := testConfig()
	updated.Gateway = &GatewayConfig{ID: "new-api"}
	if err := store.Save(updated); err != nil {
		t.Fatalf("updating mutable fields failed: %v", err)
	}
}

func TestStore_SaveRejectsInvalidDescriptor(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "lofty.json"))
	err := store.Save(&DeploymentConfig{Function: FunctionConfig{Name: "x"}})
	if err == nil {
		t.Fatal("expected validation error for missing role and region")
	}
}

func TestLoadProjectOptions(t *testing.T) {
	dir := t.TempDir()

	opts, err := LoadProjectOptions(dir)
	if err != nil {
		t.Fatalf("missing file must not be an error, got: %v", err)
	}
	if opts.Runtime != "" {
		t.Errorf("expected zero options, got %+v", opts)
	}

	content := "runtime: nodejs22.x\nhandler: index.handler\nmemory: 256\nenv:\n  STAGE: dev\nignore:\n  - '*.md'\n"
	if err := os.WriteFile(filepath.Join(dir, ProjectFileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	opts, err = LoadProjectOptions(dir)
	if err != nil {
		t.Fatalf("LoadProjectOptions() error: %v", err)
	}
	if opts.Runtime != "nodejs22.x" || opts.Handler != "index.handler" || opts.Memory != 256 {
		t.Errorf("options = %+v", opts)
	}
	if opts.Env["STAGE"] != "dev" || len(opts.Ignore) != 1 {
		t.Errorf("env/ignore = %v %v", opts.Env, opts.Ignore)
	}
}
