package dispatch

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kb-labs/plugin-gateway/internal/apperr"
	"github.com/kb-labs/plugin-gateway/internal/logger"
	"github.com/kb-labs/plugin-gateway/internal/metrics"
	"github.com/kb-labs/plugin-gateway/internal/middleware"
	"github.com/kb-labs/plugin-gateway/internal/mount"
)

// RouteResolver resolves the mounted route for an incoming (method, path),
// extracting any ":param" values along the way. internal/mount.Orchestrator
// satisfies this signature, passed as an interface rather than imported as a
// concrete dependency so the wildcard handler can be tested against a fake
// table.
type RouteResolver interface {
	Match(method, requestPath string) (*mount.MountedRoute, map[string]string, bool)
}

// Handler is the Request Dispatcher's single gin entrypoint (§4.11), bound
// to the wildcard route the core registers for every method it forwards.
type Handler struct {
	resolver   RouteResolver
	backend    ExecuteBackend
	metrics    *metrics.Collector
	apiVersion string
}

// NewHandler builds the wildcard dispatch handler.
func NewHandler(resolver RouteResolver, backend ExecuteBackend, m *metrics.Collector, apiVersion string) *Handler {
	return &Handler{resolver: resolver, backend: backend, metrics: m, apiVersion: apiVersion}
}

// ServeHTTP matches the request against the mounted route table, builds an
// ExecuteRequest, and invokes the backend (§4.11 steps 1-6). An unmatched
// route or a backend error is written as a failure envelope; a successful
// backend result is written as returned (its status, headers and body),
// without a success envelope.
func (h *Handler) ServeHTTP(c *gin.Context) {
	route, params, ok := h.resolver.Match(c.Request.Method, c.Request.URL.Path)
	if !ok {
		middleware.Failure(c, h.apiVersion, apperr.NotFound("route"))
		return
	}

	middleware.SetPluginID(c, route.PluginID)
	middleware.SetRoutePattern(c, route.FullPath)

	var body []byte
	if c.Request.Body != nil {
		body, _ = io.ReadAll(c.Request.Body)
	}

	req := ExecuteRequest{
		Method:         route.Method,
		Route:          route.FullPath,
		Handle:         route.Handle,
		Params:         params,
		Query:          c.Request.URL.Query(),
		Headers:        CleanHeaders(c.Request.Header),
		BodyReader:     bytes.NewReader(body),
		TenantID:       TenantID(c.Request.Header),
		Actor:          Actor(c.Request.Header),
		IdempotencyKey: IdempotencyKey(c.Request.Header),
		Capabilities:   route.Capabilities,
		TimeoutMs:      route.TimeoutMs,
		RequestID:      middleware.GetRequestID(c),
		PluginID:       route.PluginID,
	}

	result, err := h.backend.Execute(c.Request.Context(), req)
	if err != nil {
		h.handleBackendError(c, err)
		return
	}

	for k, vs := range result.Headers {
		for _, v := range vs {
			c.Writer.Header().Add(k, v)
		}
	}
	c.Data(result.Status, contentTypeOrDefault(result.Headers), result.BodyBytes)
}

func contentTypeOrDefault(h http.Header) string {
	if ct := h.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/json"
}

func (h *Handler) handleBackendError(c *gin.Context, err error) {
	if ctx := c.Request.Context(); ctx.Err() == context.DeadlineExceeded {
		middleware.Failure(c, h.apiVersion, apperr.Timeout("plugin handler exceeded its timeout budget"))
		return
	}

	logger.Dispatch().Error().Err(err).Str("route", c.Request.URL.Path).Msg("backend execution failed")

	if be, ok := err.(*BackendError); ok {
		middleware.Failure(c, h.apiVersion, be.Err)
		return
	}

	middleware.Failure(c, h.apiVersion, apperr.BackendUnavailable("plugin handler"))
}

// BackendError lets a backend return a typed *apperr.Error while still
// satisfying the plain `error` interface expected by ExecuteBackend.
type BackendError struct {
	Err *apperr.Error
}

func (b *BackendError) Error() string { return b.Err.Error() }
