package openapi

import (
	"testing"

	"github.com/kb-labs/plugin-gateway/internal/mount"
)

func TestGenerate_BuildsPathsFromRoutes(t *testing.T) {
	routes := []mount.MountedRoute{
		{Method: "GET", FullPath: "/api/v1/plugins/p1/hello", PluginID: "p1"},
	}

	doc := Generate("gateway", "v1", routes)

	ops, ok := doc.Paths["/api/v1/plugins/p1/hello"]
	if !ok {
		t.Fatal("expected path to be present")
	}
	if _, ok := ops["get"]; !ok {
		t.Fatal("expected get operation to be present")
	}
}

func TestETag_DerivedFromRev(t *testing.T) {
	if got := ETag(42); got != `"rev-42"` {
		t.Errorf("ETag = %q", got)
	}
}
