package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kb-labs/plugin-gateway/internal/apperr"
	"github.com/kb-labs/plugin-gateway/internal/cache"
	"github.com/kb-labs/plugin-gateway/internal/logger"
	"github.com/kb-labs/plugin-gateway/internal/registry"
)

// ChangeHandler is invoked whenever the client installs a new snapshot that
// differs from the previous one.
type ChangeHandler func(ChangeSet)

// RedisRoleHealth mirrors cache.RoleHealth for discovery's redisStatus().
type RedisRoleHealth struct {
	Enabled    bool
	Healthy    bool
	Publisher  string
	Subscriber string
	Cache      string
}

// Client is the core-owned Plugin Discovery Client (C8): it consumes a
// Provider, owns the registry.Store, serializes refresh() calls, and
// notifies registered change handlers.
type Client struct {
	provider  Provider
	store     *registry.Store
	cache     *cache.Cache
	namespace string

	mu       sync.Mutex
	handlers []ChangeHandler
	nextRev  uint64

	refreshMu   sync.Mutex
	refreshOnce sync.Once
	inFlight    *refreshCall

	cancelWatch context.CancelFunc
}

// New builds a Client around provider. c may be nil (cache disabled); in
// that case redisStatus always reports disabled.
func New(provider Provider, c *cache.Cache, namespace string) *Client {
	return &Client{
		provider:  provider,
		store:     registry.NewStore(),
		cache:     c,
		namespace: namespace,
		nextRev:   1,
	}
}

// Initialize blocks until the first snapshot is installed or the initial
// scan fails.
func (d *Client) Initialize(ctx context.Context) error {
	if err := d.doRefresh(ctx); err != nil {
		return apperr.DiscoveryError(fmt.Sprintf("initial discovery scan failed: %v", err))
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	d.cancelWatch = cancel
	go func() {
		if err := d.provider.Watch(watchCtx, func() {
			_ = d.Refresh(watchCtx)
		}); err != nil {
			logger.Discovery().Warn().Err(err).Msg("discovery watch loop exited")
		}
	}()

	if d.cache != nil {
		go d.subscribeCacheChannel(watchCtx)
	}

	return nil
}

// Snapshot returns the currently installed registry snapshot.
func (d *Client) Snapshot() *registry.Snapshot {
	return d.store.Current()
}

// ListPlugins returns the {id, version} pairs known in the current snapshot.
func (d *Client) ListPlugins() []PluginIdentity {
	cur := d.store.Current()
	out := make([]PluginIdentity, 0, len(cur.Manifests))
	for _, m := range cur.Manifests {
		out = append(out, PluginIdentity{ID: m.Manifest.ID, Version: m.Manifest.Version})
	}
	return out
}

// OnChange registers a handler invoked when a Refresh installs a snapshot
// that differs from the prior one.
func (d *Client) OnChange(h ChangeHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, h)
}

// refreshCall is one in-flight refresh; err is set before done is closed.
type refreshCall struct {
	done chan struct{}
	err  error
}

// Refresh forces re-discovery, installing a new snapshot if different.
// Concurrent callers are serialized onto the same in-flight result (§5).
func (d *Client) Refresh(ctx context.Context) error {
	d.refreshMu.Lock()
	if d.inFlight != nil {
		call := d.inFlight
		d.refreshMu.Unlock()
		<-call.done
		return call.err
	}
	call := &refreshCall{done: make(chan struct{})}
	d.inFlight = call
	d.refreshMu.Unlock()

	call.err = d.doRefresh(ctx)

	d.refreshMu.Lock()
	d.inFlight = nil
	d.refreshMu.Unlock()
	close(call.done)

	return call.err
}

func (d *Client) doRefresh(ctx context.Context) error {
	prev := d.store.Current()

	next, err := d.provider.Scan(ctx)
	if err != nil {
		return err
	}

	checksum := registry.ComputeChecksum(next.Manifests)
	if prev.Rev != 0 && !prev.Stale && checksum == prev.Checksum &&
		next.Partial == prev.Partial && next.Corrupted == prev.Corrupted {
		return nil
	}

	d.mu.Lock()
	rev := d.nextRev
	d.nextRev++
	d.mu.Unlock()

	next.Rev = rev
	next.GeneratedAt = time.Now().UTC()
	next.PreviousChecksum = prev.Checksum
	next.Checksum = checksum

	installed := d.store.CompareAndReplace(next)
	if !installed {
		return nil
	}

	diff := DiffSnapshots(prev.Manifests, next.Manifests)
	if diff.IsEmpty() && prev.Rev != 0 {
		return nil
	}

	d.mu.Lock()
	handlers := make([]ChangeHandler, len(d.handlers))
	copy(handlers, d.handlers)
	d.mu.Unlock()

	for _, h := range handlers {
		h(diff)
	}

	if d.cache != nil {
		_ = d.cache.Publish(ctx, d.channelName(), next.Rev)
	}

	return nil
}

func (d *Client) channelName() string {
	if d.namespace == "" {
		d.namespace = "gateway"
	}
	return cache.SnapshotChannel(d.namespace)
}

func (d *Client) subscribeCacheChannel(ctx context.Context) {
	pubsub, err := d.cache.Subscribe(ctx, d.channelName())
	if err != nil {
		logger.Discovery().Warn().Err(err).Msg("failed to subscribe to registry change channel")
		return
	}
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			_ = d.Refresh(ctx)
		}
	}
}

// RedisStatus reports the shared cache client's publisher/subscriber/cache
// role health, or a disabled report when no cache is configured.
func (d *Client) RedisStatus(ctx context.Context) RedisRoleHealth {
	if d.cache == nil || !d.cache.IsEnabled() {
		return RedisRoleHealth{Enabled: false}
	}
	roles := d.cache.Ping(ctx)
	healthy := roles.Publisher == "ok" && roles.Subscriber == "ok" && roles.Cache == "ok"
	return RedisRoleHealth{
		Enabled:    true,
		Healthy:    healthy,
		Publisher:  roles.Publisher,
		Subscriber: roles.Subscriber,
		Cache:      roles.Cache,
	}
}

// InvalidateIfExpired marks the current snapshot stale when its TTL has
// elapsed and no fresher snapshot has arrived (§4.7, §9 "mark stale +
// schedule background refresh").
func (d *Client) InvalidateIfExpired() {
	cur := d.store.Current()
	if cur.ExpiresAt == nil {
		return
	}
	if time.Now().UTC().After(*cur.ExpiresAt) {
		d.store.Invalidate()
	}
}

// Dispose releases the provider and stops the watch loop.
func (d *Client) Dispose() error {
	if d.cancelWatch != nil {
		d.cancelWatch()
	}
	return d.provider.Close()
}
