package mount

import (
	"context"
	"testing"
	"time"

	"github.com/kb-labs/plugin-gateway/internal/events"
	"github.com/kb-labs/plugin-gateway/internal/manifest"
	"github.com/kb-labs/plugin-gateway/internal/metrics"
	"github.com/kb-labs/plugin-gateway/internal/readiness"
	"github.com/kb-labs/plugin-gateway/internal/registry"
)

func newTestOrchestrator() *Orchestrator {
	return New("/api/v1", []string{"net:external"}, 30*time.Second,
		metrics.New(), readiness.New(), events.New())
}

func manifestWithRoute(id, path string, handler string) registry.ManifestEntry {
	return registry.ManifestEntry{
		PluginID: id,
		Manifest: manifest.ManifestV3{
			ID: id, Version: "1.0.0",
			Rest: &manifest.Rest{
				Routes: []manifest.RestRoute{
					{Method: manifest.MethodGet, Path: path, Handler: handler},
				},
			},
		},
	}
}

// E2E scenario 1: happy mount.
func TestMount_HappyPath_MountsBothRoutes(t *testing.T) {
	o := newTestOrchestrator()
	snap := &registry.Snapshot{Manifests: []registry.ManifestEntry{
		manifestWithRoute("p1", "/hello", "h.js#default"),
		manifestWithRoute("p2", "/echo", "e.js#echoHandler"),
	}}

	stats := o.Mount(context.Background(), snap)

	if stats.MountedRoutes != 2 {
		t.Fatalf("MountedRoutes = %d, want 2", stats.MountedRoutes)
	}
	if stats.Errors != 0 {
		t.Fatalf("Errors = %d, want 0", stats.Errors)
	}

	if _, ok := o.Lookup("GET", "/api/v1/plugins/p1/hello"); !ok {
		t.Error("expected route for p1 to be mounted")
	}
}

// R2: applying the same snapshot twice results in zero newly mounted routes
// on the second application.
func TestMount_Idempotent_SecondApplicationMountsNothingNew(t *testing.T) {
	o := newTestOrchestrator()
	snap := &registry.Snapshot{Manifests: []registry.ManifestEntry{
		manifestWithRoute("p1", "/hello", "h.js#default"),
	}}

	first := o.Mount(context.Background(), snap)
	second := o.Mount(context.Background(), snap)

	if first.MountedRoutes != second.MountedRoutes {
		t.Errorf("expected same route count, got %d vs %d", first.MountedRoutes, second.MountedRoutes)
	}
	if len(o.Routes()) != 1 {
		t.Errorf("expected 1 mounted route total, got %d", len(o.Routes()))
	}
}

// I5: a manifest whose every route fails validation yields exactly one
// rest_validation_failed failure and mounts no routes.
func TestMount_AllRoutesInvalid_RecordsValidationFailure(t *testing.T) {
	o := newTestOrchestrator()
	snap := &registry.Snapshot{Manifests: []registry.ManifestEntry{
		{
			PluginID: "bad",
			Manifest: manifest.ManifestV3{
				ID: "bad", Version: "1.0.0",
				Rest: &manifest.Rest{
					Routes: []manifest.RestRoute{{Method: "TRACE", Path: "/x", Handler: "h.js#default"}},
				},
			},
		},
	}}

	stats := o.Mount(context.Background(), snap)

	if stats.MountedRoutes != 0 {
		t.Errorf("expected 0 mounted routes, got %d", stats.MountedRoutes)
	}
	if len(stats.Records) != 1 || len(stats.Records[0].Failures) != 1 {
		t.Fatalf("expected 1 failure record, got %+v", stats.Records)
	}
	if got := stats.Records[0].Failures[0].Error; len(got) < len("rest_validation_failed") || got[:len("rest_validation_failed")] != "rest_validation_failed" {
		t.Errorf("expected rest_validation_failed prefix, got %q", got)
	}
}

func TestMount_NoRoutesManifestIsNoOp(t *testing.T) {
	o := newTestOrchestrator()
	snap := &registry.Snapshot{Manifests: []registry.ManifestEntry{
		{PluginID: "empty", Manifest: manifest.ManifestV3{ID: "empty", Version: "1.0.0"}},
	}}

	stats := o.Mount(context.Background(), snap)
	if stats.MountedRoutes != 0 || stats.Errors != 0 {
		t.Errorf("expected no-op stats, got %+v", stats)
	}
}

// Tie-break: conflicting routes across plugins: first writer wins, the
// later one is recorded as a failure.
func manifestWithSharedBasePath(id, path, handler string) registry.ManifestEntry {
	return registry.ManifestEntry{
		PluginID: id,
		Manifest: manifest.ManifestV3{
			ID: id, Version: "1.0.0",
			Rest: &manifest.Rest{
				BasePath: "/v1",
				Routes: []manifest.RestRoute{
					{Method: manifest.MethodGet, Path: path, Handler: handler},
				},
			},
		},
	}
}

func TestMount_RouteConflict_FirstWriterWins(t *testing.T) {
	o := newTestOrchestrator()

	// Mount p1 alone first so its route table entry exists deterministically.
	o.Mount(context.Background(), &registry.Snapshot{
		Manifests: []registry.ManifestEntry{manifestWithSharedBasePath("p1", "/shared", "a.js#h")},
	})

	stats := o.Mount(context.Background(), &registry.Snapshot{
		Manifests: []registry.ManifestEntry{manifestWithSharedBasePath("p2", "/shared", "b.js#h")},
	})

	if stats.Errors == 0 {
		t.Error("expected a rest_route_conflict failure to be recorded")
	}
	route, ok := o.Lookup("GET", "/api/v1/shared")
	if !ok || route.PluginID != "p1" {
		t.Errorf("expected p1's route to remain mounted, got %+v ok=%v", route, ok)
	}
}

// §3 RestRoute.path "may include :param" — Match must extract param values
// from the concrete request path against the mounted pattern.
func TestMatch_ExtractsPathParams(t *testing.T) {
	o := newTestOrchestrator()
	snap := &registry.Snapshot{Manifests: []registry.ManifestEntry{
		manifestWithRoute("p1", "/items/:id", "h.js#default"),
	}}
	o.Mount(context.Background(), snap)

	route, params, ok := o.Match("GET", "/api/v1/plugins/p1/items/abc123")
	if !ok {
		t.Fatal("expected route to match")
	}
	if route.PluginID != "p1" {
		t.Errorf("PluginID = %q, want p1", route.PluginID)
	}
	if params["id"] != "abc123" {
		t.Errorf("params[id] = %q, want abc123", params["id"])
	}
}

func TestMatch_NoMatchForDifferentSegmentCount(t *testing.T) {
	o := newTestOrchestrator()
	snap := &registry.Snapshot{Manifests: []registry.ManifestEntry{
		manifestWithRoute("p1", "/items/:id", "h.js#default"),
	}}
	o.Mount(context.Background(), snap)

	if _, _, ok := o.Match("GET", "/api/v1/plugins/p1/items"); ok {
		t.Error("expected no match for a shorter path")
	}
}
