// Package handlerfile is the reference ExecuteBackend (§4.11, §9): it
// resolves (file, export) tuples declared by a manifest's RestRoute.handler
// through a build-time side-table populated by RegisterEntry, rather than
// ever reaching for Go's plugin package or any other dynamic-loading
// primitive — the concrete implementation of §9's "reflection/dynamic
// handler loading" re-architecture note.
package handlerfile

import (
	"context"
	"fmt"
	"sync"

	"github.com/kb-labs/plugin-gateway/internal/apperr"
	"github.com/kb-labs/plugin-gateway/internal/dispatch"
)

// Entry is one registered (file, export) handler function.
type Entry func(ctx context.Context, req dispatch.ExecuteRequest) (dispatch.ExecuteResult, error)

// Backend resolves "file#export" tuples through an in-memory side-table.
// Plugin builds register their entries at init() time via RegisterEntry;
// the core never loads code dynamically.
type Backend struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewBackend returns an empty side-table-backed backend.
func NewBackend() *Backend {
	return &Backend{entries: make(map[string]Entry)}
}

func key(pluginID, file, export string) string {
	return pluginID + ":" + file + "#" + export
}

// RegisterEntry binds a (pluginID, file, export) tuple to the function that
// implements it. Intended to be called from plugin build-generated init()
// functions, never from request-handling code.
func (b *Backend) RegisterEntry(pluginID, file, export string, fn Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[key(pluginID, file, export)] = fn
}

// Execute resolves req.Handle (the side-table key, see EntryKey) to its
// registered entry and invokes it.
func (b *Backend) Execute(ctx context.Context, req dispatch.ExecuteRequest) (dispatch.ExecuteResult, error) {
	b.mu.RLock()
	fn, ok := b.entries[req.Handle]
	b.mu.RUnlock()

	if !ok {
		return dispatch.ExecuteResult{}, apperr.NotFound(fmt.Sprintf("handler %q", req.Handle))
	}

	return fn(ctx, req)
}

// Lookup resolves whether an entry is registered for the given handle.
func (b *Backend) Lookup(handle string) (Entry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	fn, ok := b.entries[handle]
	return fn, ok
}

// EntryKey computes the side-table key for a (pluginID, file, export)
// tuple — exported so the mount orchestrator can compute the same handle it
// later asks Execute to dispatch against.
func EntryKey(pluginID, file, export string) string {
	return key(pluginID, file, export)
}
