package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func validManifest() ManifestV3 {
	return ManifestV3{
		ID:      "p1",
		Version: "1.0.0",
		Rest: &Rest{
			BasePath: "/v1",
			Routes: []RestRoute{
				{Method: MethodGet, Path: "/hello", Handler: "h.js#default"},
			},
		},
	}
}

func TestValidate_GoodManifest(t *testing.T) {
	res := Validate(validManifest())
	if !res.Valid {
		t.Fatalf("expected valid, got errors: %v", res.Errors)
	}
	if len(res.SurvivingRoutes) != 1 {
		t.Fatalf("expected 1 surviving route, got %d", len(res.SurvivingRoutes))
	}
}

func TestValidate_BadVersionRejected(t *testing.T) {
	m := validManifest()
	m.Version = "not-semver"
	res := Validate(m)
	if res.Valid {
		t.Error("expected invalid manifest for bad version")
	}
}

func TestValidate_BadBasePathRejected(t *testing.T) {
	m := validManifest()
	m.Rest.BasePath = "/bad"
	res := Validate(m)
	if res.Valid {
		t.Error("expected invalid manifest for bad basePath")
	}
}

// I5: for a manifest whose every route fails validation, no route survives.
func TestValidate_AllRoutesFail(t *testing.T) {
	m := validManifest()
	m.Rest.Routes = []RestRoute{
		{Method: "TRACE", Path: "/x", Handler: "h.js#default"},
	}
	res := Validate(m)
	if res.Valid {
		t.Error("expected invalid when all routes fail")
	}
	if len(res.SurvivingRoutes) != 0 {
		t.Errorf("expected 0 surviving routes, got %d", len(res.SurvivingRoutes))
	}
}

// Partial validation failure: one bad route among good ones is dropped, the
// rest survive — the plugin itself is not rejected.
func TestValidate_PartialFailureDropsOnlyBadRoute(t *testing.T) {
	m := validManifest()
	m.Rest.Routes = append(m.Rest.Routes, RestRoute{
		Method: MethodPost, Path: "/broken", Handler: "missing-no-hash",
	})
	res := Validate(m)
	if !res.Valid {
		t.Fatalf("expected plugin to remain valid with one good route, errors: %v", res.Errors)
	}
	if len(res.SurvivingRoutes) != 1 {
		t.Fatalf("expected 1 surviving route, got %d", len(res.SurvivingRoutes))
	}
}

func TestValidate_HandlerFileMissingDropsRoute(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "h.js"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	m := validManifest()
	m.PluginRoot = dir
	m.Rest.Routes = append(m.Rest.Routes, RestRoute{
		Method: MethodGet, Path: "/missing", Handler: "missing.js#default",
	})

	res := Validate(m)
	if !res.Valid {
		t.Fatalf("expected plugin to remain valid, errors: %v", res.Errors)
	}
	if len(res.SurvivingRoutes) != 1 || res.SurvivingRoutes[0].Path != "/hello" {
		t.Fatalf("expected only /hello to survive, got %+v", res.SurvivingRoutes)
	}
}

func TestValidate_NoRestIsNoOp(t *testing.T) {
	m := ManifestV3{ID: "p2", Version: "1.0.0"}
	res := Validate(m)
	if !res.Valid {
		t.Errorf("manifest without rest should be valid, errors: %v", res.Errors)
	}
	if len(res.SurvivingRoutes) != 0 {
		t.Errorf("expected no routes")
	}
}

func TestCollidesWithinPlugin(t *testing.T) {
	routes := []RestRoute{
		{Method: MethodGet, Path: "/a"},
		{Method: MethodGet, Path: "/a"},
	}
	_, _, collides := CollidesWithinPlugin(routes)
	if !collides {
		t.Error("expected collision to be detected")
	}
}
