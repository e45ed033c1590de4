package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func bootedServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(testConfig(t, t.TempDir()))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := s.boot(context.Background()); err != nil {
		t.Fatalf("boot returned error: %v", err)
	}
	t.Cleanup(func() { s.background.stop() })
	return s
}

func TestLivez_AlwaysReportsAlive(t *testing.T) {
	s := bootedServer(t)

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestReadyz_ReportsReadyAfterBoot(t *testing.T) {
	s := bootedServer(t)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
}

func TestRoutes_EmptyRegistryReportsNoRoutes(t *testing.T) {
	s := bootedServer(t)

	req := httptest.NewRequest(http.MethodGet, s.cfg.BasePath+"/routes", nil)
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
}

func TestDispatch_UnknownRouteReturns404Envelope(t *testing.T) {
	s := bootedServer(t)

	req := httptest.NewRequest(http.MethodGet, s.cfg.BasePath+"/plugins/does-not-exist/items", nil)
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body=%s", w.Code, w.Body.String())
	}
}

func TestMethodRestriction_RejectsTrace(t *testing.T) {
	s := bootedServer(t)

	req := httptest.NewRequest(http.MethodTrace, "/livez", nil)
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body=%s", w.Code, w.Body.String())
	}
}
