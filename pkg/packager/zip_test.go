package packager

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeSource(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func archiveNames(t *testing.T, path string) []string {
	t.Helper()
	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("opening artifact: %v", err)
	}
	defer r.Close()
	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

func TestZipBuilder_Build(t *testing.T) {
	src := writeSource(t, map[string]string{
		"index.js":        "exports.handler = async () => 'ok';",
		"lib/util.js":     "module.exports = {};",
		"lofty.json":      `{"function":{}}`,
		"lofty.yml":       "runtime: nodejs22.x",
		".git/HEAD":       "ref: refs/heads/main",
		"notes/draft.tmp": "scratch",
	})

	b := NewZipBuilder()
	artifact, err := b.Build(context.Background(), src, Options{Ignore: []string{"*.tmp"}})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	defer artifact.Cleanup()

	got := archiveNames(t, artifact.Path)
	want := []string{"index.js", "lib/util.js"}
	if len(got) != len(want) {
		t.Fatalf("archive entries = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestZipBuilder_StagingDirIsPerRun(t *testing.T) {
	src := writeSource(t, map[string]string{"index.js": "x"})
	b := NewZipBuilder()

	a1, err := b.Build(context.Background(), src, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer a1.Cleanup()
	a2, err := b.Build(context.Background(), src, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer a2.Cleanup()

	if a1.StagingDir == a2.StagingDir {
		t.Errorf("two runs shared staging directory %s", a1.StagingDir)
	}
}

func TestZipBuilder_MissingSourceFails(t *testing.T) {
	b := NewZipBuilder()
	_, err := b.Build(context.Background(), filepath.Join(t.TempDir(), "nope"), Options{})
	if err == nil {
		t.Fatal("expected error for missing source directory")
	}
}

func TestArtifact_Cleanup(t *testing.T) {
	src := writeSource(t, map[string]string{"index.js": "x"})
	artifact, err := NewZipBuilder().Build(context.Background(), src, Options{})
	if err != nil {
		t.Fatal(err)
	}

	if err := artifact.Cleanup(); err != nil {
		t.Fatalf("Cleanup() error: %v", err)
	}
	if _, err := os.Stat(artifact.StagingDir); !os.IsNotExist(err) {
		t.Errorf("staging directory still present after cleanup")
	}

	var nilArtifact *Artifact
	if err := nilArtifact.Cleanup(); err != nil {
		t.Errorf("nil artifact cleanup must be a no-op, got: %v", err)
	}
}
