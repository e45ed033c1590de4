package filediscovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, id string) {
	t.Helper()
	pluginDir := filepath.Join(dir, id)
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatal(err)
	}
	content := `
id: ` + id + `
version: 1.0.0
rest:
  basePath: /v1
  routes:
    - method: GET
      path: /hello
      handler: h.js#default
`
	if err := os.WriteFile(filepath.Join(pluginDir, "manifest.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(pluginDir, "h.js"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestProvider_Scan_FindsManifests(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "p1")
	writeManifest(t, dir, "p2")

	p := New(dir)
	snap, err := p.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(snap.Manifests) != 2 {
		t.Fatalf("expected 2 manifests, got %d", len(snap.Manifests))
	}
}

func TestProvider_Scan_MissingDirReturnsEmptySnapshot(t *testing.T) {
	p := New(filepath.Join(t.TempDir(), "does-not-exist"))
	snap, err := p.Scan(context.Background())
	if err != nil {
		t.Fatalf("expected no error for missing dir, got %v", err)
	}
	if len(snap.Manifests) != 0 {
		t.Errorf("expected 0 manifests")
	}
}

func TestProvider_Scan_MalformedManifestRecordedAsError(t *testing.T) {
	dir := t.TempDir()
	pluginDir := filepath.Join(dir, "bad")
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(pluginDir, "manifest.yaml"), []byte("{not: valid: yaml"), 0644); err != nil {
		t.Fatal(err)
	}

	p := New(dir)
	snap, err := p.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan should not abort on malformed manifest: %v", err)
	}
	if len(snap.Errors) != 1 {
		t.Fatalf("expected 1 discovery error, got %d", len(snap.Errors))
	}
	if !snap.Corrupted {
		t.Error("expected Corrupted=true")
	}
}
