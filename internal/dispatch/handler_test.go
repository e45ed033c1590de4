package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kb-labs/plugin-gateway/internal/apperr"
	"github.com/kb-labs/plugin-gateway/internal/metrics"
	"github.com/kb-labs/plugin-gateway/internal/mount"
)

type fakeResolver struct {
	route *mount.MountedRoute
}

func (f fakeResolver) Match(method, requestPath string) (*mount.MountedRoute, map[string]string, bool) {
	if f.route == nil {
		return nil, nil, false
	}
	return f.route, map[string]string{}, true
}

type fakeBackend struct {
	result ExecuteResult
	err    error
}

func (f fakeBackend) Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error) {
	return f.result, f.err
}

func newTestContext(method, path string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, nil)
	return c, w
}

func TestServeHTTP_UnresolvedRouteReturns404Envelope(t *testing.T) {
	c, w := newTestContext(http.MethodGet, "/api/v1/unknown")
	h := NewHandler(fakeResolver{}, fakeBackend{}, metrics.New(), "v1")

	h.ServeHTTP(c)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestServeHTTP_BackendSuccessWritesResponse(t *testing.T) {
	route := &mount.MountedRoute{Method: "GET", FullPath: "/api/v1/plugins/p1/hello", PluginID: "p1", Handle: "p1:file#export"}
	c, w := newTestContext(http.MethodGet, "/api/v1/plugins/p1/hello")

	backend := fakeBackend{result: ExecuteResult{Status: http.StatusOK, BodyBytes: []byte(`{"hi":true}`)}}
	h := NewHandler(fakeResolver{route: route}, backend, metrics.New(), "v1")

	h.ServeHTTP(c)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != `{"hi":true}` {
		t.Fatalf("body = %q", w.Body.String())
	}
}

func TestServeHTTP_BackendErrorMapsToEnvelope(t *testing.T) {
	route := &mount.MountedRoute{Method: "GET", FullPath: "/api/v1/plugins/p1/hello", PluginID: "p1"}
	c, w := newTestContext(http.MethodGet, "/api/v1/plugins/p1/hello")

	backend := fakeBackend{err: &BackendError{Err: apperr.BadRequest("bad input")}}
	h := NewHandler(fakeResolver{route: route}, backend, metrics.New(), "v1")

	h.ServeHTTP(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
