package handlerfile

import (
	"context"
	"net/http"
	"testing"

	"github.com/kb-labs/plugin-gateway/internal/dispatch"
)

func TestBackend_ExecuteResolvesRegisteredEntry(t *testing.T) {
	b := NewBackend()
	handle := EntryKey("p1", "h.js", "default")

	b.RegisterEntry("p1", "h.js", "default", func(ctx context.Context, req dispatch.ExecuteRequest) (dispatch.ExecuteResult, error) {
		return dispatch.ExecuteResult{Status: http.StatusOK, BodyBytes: []byte("ok")}, nil
	})

	res, err := b.Execute(context.Background(), dispatch.ExecuteRequest{Handle: handle})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != http.StatusOK || string(res.BodyBytes) != "ok" {
		t.Errorf("res = %+v", res)
	}
}

func TestBackend_ExecuteUnregisteredReturnsNotFound(t *testing.T) {
	b := NewBackend()
	_, err := b.Execute(context.Background(), dispatch.ExecuteRequest{Handle: "missing"})
	if err == nil {
		t.Fatal("expected error for unregistered handle")
	}
}

func TestCleanHeaders_StripsHopByHop(t *testing.T) {
	h := http.Header{}
	h.Set("Connection", "keep-alive")
	h.Set("X-Custom", "value")

	cleaned := dispatch.CleanHeaders(h)
	if cleaned.Get("Connection") != "" {
		t.Error("expected Connection header to be stripped")
	}
	if cleaned.Get("X-Custom") != "value" {
		t.Error("expected X-Custom header to survive")
	}
}

func TestIdempotencyKey_PrefersCanonicalHeader(t *testing.T) {
	h := http.Header{}
	h.Set("Idempotency-Key", "abc")
	h.Set("X-Idempotency-Key", "def")
	if got := dispatch.IdempotencyKey(h); got != "abc" {
		t.Errorf("got %q, want abc", got)
	}
}
