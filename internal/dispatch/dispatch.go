// Package dispatch implements the Request Dispatcher (C11): it matches an
// incoming request to a mounted route, enforces the per-route timeout
// budget, invokes the ExecuteBackend capability, and maps the result back
// onto the envelope. ExecuteBackend is the external collaborator interface
// (§1 "plugin execution sandbox itself ... invoked only through
// ExecuteBackend"); the core never performs dynamic code loading itself.
package dispatch

import (
	"context"
	"io"
	"net/http"
)

// ExecuteRequest is the normalized request handed to a backend (§4.11).
type ExecuteRequest struct {
	Method         string
	Route          string
	Handle         string
	Params         map[string]string
	Query          map[string][]string
	Headers        http.Header
	BodyReader     io.Reader
	TenantID       string
	Actor          string
	IdempotencyKey string
	Capabilities   []string
	TimeoutMs      int64
	RequestID      string
	PluginID       string
}

// ExecuteResult is a backend's response (§4.11).
type ExecuteResult struct {
	Status    int
	Headers   http.Header
	BodyBytes []byte
}

// ExecuteBackend is the external collaborator that actually runs a plugin
// handler. Implementations must cooperatively honor ctx cancellation, which
// fires on client disconnect or on the per-route timeout.
type ExecuteBackend interface {
	Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error)
}

// hopByHopHeaders are stripped from the inbound request before it's handed
// to a backend, per §4.11 "headers (minus hop-by-hop)".
var hopByHopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// CleanHeaders returns a copy of h with hop-by-hop headers removed.
func CleanHeaders(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		if hopByHopHeaders[k] {
			continue
		}
		out[k] = v
	}
	return out
}

// TenantID extracts the tenant identifier from X-Tenant-Id.
func TenantID(h http.Header) string {
	return h.Get("X-Tenant-Id")
}

// Actor extracts the acting-user identifier from the first of
// X-User-Id, X-Actor, X-User to be present.
func Actor(h http.Header) string {
	for _, name := range []string{"X-User-Id", "X-Actor", "X-User"} {
		if v := h.Get(name); v != "" {
			return v
		}
	}
	return ""
}

// IdempotencyKey extracts the idempotency key from Idempotency-Key or
// X-Idempotency-Key.
func IdempotencyKey(h http.Header) string {
	if v := h.Get("Idempotency-Key"); v != "" {
		return v
	}
	return h.Get("X-Idempotency-Key")
}
