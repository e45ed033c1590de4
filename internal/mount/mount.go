// Package mount implements the Mount Orchestrator (C9): consumes a
// snapshot, validates manifests via internal/manifest, mounts routes in
// bounded parallel via golang.org/x/sync/errgroup (the idiomatic replacement
// for the teacher's "fire N goroutines, don't wait" EventBus.Emit pattern
// when the orchestrator does need to await every mount before declaring the
// cycle complete), and updates Readiness and Metrics.
//
// Rather than registering routes directly on *gin.Engine per mount cycle
// (which panics on route re-registration and cannot be torn down), the
// orchestrator owns its own route table behind an atomic snapshot pointer;
// a single wildcard gin route (wired in internal/server) consults it at
// request time. This is what makes incremental re-mount (§4.8, §9) and
// R2/I6's idempotent-remount requirement possible without restarting the
// HTTP listener.
package mount

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kb-labs/plugin-gateway/internal/events"
	"github.com/kb-labs/plugin-gateway/internal/logger"
	"github.com/kb-labs/plugin-gateway/internal/manifest"
	"github.com/kb-labs/plugin-gateway/internal/metrics"
	"github.com/kb-labs/plugin-gateway/internal/pathutil"
	"github.com/kb-labs/plugin-gateway/internal/readiness"
	"github.com/kb-labs/plugin-gateway/internal/registry"
)

// MountedRoute is one live entry in the orchestrator's route table.
type MountedRoute struct {
	Method       string
	FullPath     string
	PluginID     string
	Handle       string
	Capabilities []string
	TimeoutMs    int64
}

type routeTable struct {
	byKey map[string]*MountedRoute
}

func key(method, fullPath string) string { return method + " " + fullPath }

// Orchestrator is the Mount Orchestrator (C9).
type Orchestrator struct {
	basePath            string
	grantedCapabilities []string
	requestTimeout      time.Duration

	metrics   *metrics.Collector
	readiness *readiness.State
	bus       *events.Bus

	table atomic.Pointer[routeTable]
}

// New builds an Orchestrator. grantedCapabilities is the global allow-list
// ANDed with each manifest's declared permissions (§4.9 step 5, the "manifest
// permissions ∩ config grants" resolution of §9's open question).
func New(basePath string, grantedCapabilities []string, requestTimeout time.Duration,
	m *metrics.Collector, r *readiness.State, bus *events.Bus) *Orchestrator {

	o := &Orchestrator{
		basePath:            basePath,
		grantedCapabilities: grantedCapabilities,
		requestTimeout:      requestTimeout,
		metrics:             m,
		readiness:           r,
		bus:                 bus,
	}
	o.table.Store(&routeTable{byKey: make(map[string]*MountedRoute)})
	return o
}

// Lookup resolves a MountedRoute for (method, fullPath) by exact match,
// used by callers (metrics budget lookups) that already hold the literal
// mounted pattern.
func (o *Orchestrator) Lookup(method, fullPath string) (*MountedRoute, bool) {
	t := o.table.Load()
	r, ok := t.byKey[key(method, fullPath)]
	return r, ok
}

// Match resolves a MountedRoute for an incoming (method, requestPath),
// supporting ":param" segments the way manifest routes declare them (§3
// RestRoute.path "may include :param"). Since routes are mounted behind a
// single wildcard gin route rather than gin's own router (to allow hot
// re-mount without re-registering routes), this reimplements segment-wise
// matching rather than relying on gin's param extraction.
func (o *Orchestrator) Match(method, requestPath string) (*MountedRoute, map[string]string, bool) {
	t := o.table.Load()
	reqSegs := splitPath(requestPath)

	for _, r := range t.byKey {
		if r.Method != method {
			continue
		}
		patSegs := splitPath(r.FullPath)
		if len(patSegs) != len(reqSegs) {
			continue
		}
		params := make(map[string]string)
		matched := true
		for i, seg := range patSegs {
			if len(seg) > 0 && seg[0] == ':' {
				params[seg[1:]] = reqSegs[i]
				continue
			}
			if seg != reqSegs[i] {
				matched = false
				break
			}
		}
		if matched {
			return r, params, true
		}
	}
	return nil, nil, false
}

func splitPath(p string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(p); i++ {
		if i == len(p) || p[i] == '/' {
			if i > start {
				out = append(out, p[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// Routes returns every currently mounted (method, fullPath) pair in no
// particular order (callers such as the debug routes endpoint, §6
// GET {basePath}/routes, sort them).
func (o *Orchestrator) Routes() []MountedRoute {
	t := o.table.Load()
	out := make([]MountedRoute, 0, len(t.byKey))
	for _, r := range t.byKey {
		out = append(out, *r)
	}
	return out
}

func intersectCapabilities(declared, granted []string) []string {
	grantedSet := make(map[string]bool, len(granted))
	for _, g := range granted {
		grantedSet[g] = true
	}
	var out []string
	for _, d := range declared {
		if grantedSet[d] {
			out = append(out, d)
		}
	}
	return out
}

func declaredCapabilities(p manifest.Permissions) []string {
	var caps []string
	caps = append(caps, p.AllowedDomains...)
	caps = append(caps, p.AllowedCommands...)
	caps = append(caps, p.StateNamespaces...)
	return caps
}

func pluginBasePath(globalBasePath string, m manifest.ManifestV3) string {
	if m.Rest != nil && m.Rest.BasePath != "" {
		// Replace the leading /vN segment with the configured global base path.
		rest := m.Rest.BasePath
		for i := 1; i < len(rest); i++ {
			if rest[i] == '/' {
				return globalBasePath + rest[i:]
			}
		}
		return globalBasePath
	}
	return fmt.Sprintf("%s/plugins/%s", globalBasePath, m.ID)
}

func shortReason(err error) string {
	msg := err.Error()
	const maxLen = 120
	if len(msg) <= maxLen {
		return msg
	}
	return msg[:maxLen-3] + "..."
}

// Stats is the aggregated outcome of one mount cycle (§4.9 step 6).
type Stats struct {
	MountedRoutes int
	Errors        int
	Records       []registry.MountRecord
}

// pluginResult is the per-manifest outcome computed inside the bounded
// parallel mount loop.
type pluginResult struct {
	record  registry.MountRecord
	routes  []*MountedRoute
	failed  bool
	reason  string
}

func boundedConcurrency(n int) int {
	limit := runtime.NumCPU() * 4
	if n < limit {
		return n
	}
	return limit
}

// Mount runs one full mount cycle over every manifest in snapshot that
// declares rest.routes, per the algorithm in §4.9.
func (o *Orchestrator) Mount(ctx context.Context, snap *registry.Snapshot) Stats {
	log := logger.Mount()
	start := time.Now()

	o.readiness.BeginMount()
	o.metrics.ResetPluginRouteBudgets()

	if snap.Partial || snap.Stale {
		log.Warn().Bool("partial", snap.Partial).Bool("stale", snap.Stale).Msg("mounting from a degraded snapshot")
	}

	var withRoutes []registry.ManifestEntry
	for _, me := range snap.Manifests {
		if me.Manifest.Rest != nil && len(me.Manifest.Rest.Routes) > 0 {
			withRoutes = append(withRoutes, me)
		}
	}

	if len(withRoutes) == 0 {
		o.finish(start, Stats{})
		return Stats{}
	}

	handle := o.metrics.BeginPluginMount()

	results := make([]pluginResult, len(withRoutes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(boundedConcurrency(len(withRoutes)))

	for i, me := range withRoutes {
		i, me := i, me
		g.Go(func() error {
			results[i] = o.mountOne(gctx, me, handle)
			return nil
		})
	}
	_ = g.Wait() // per-plugin failures are captured in results, never abort siblings

	newTable := &routeTable{byKey: make(map[string]*MountedRoute)}
	oldTable := o.table.Load()
	for k, v := range oldTable.byKey {
		newTable.byKey[k] = v
	}

	var stats Stats
	for _, res := range results {
		stats.Records = append(stats.Records, res.record)
		stats.Errors += len(res.record.Failures)
		for _, route := range res.routes {
			rk := key(route.Method, route.FullPath)
			if existing, collide := newTable.byKey[rk]; collide && existing.PluginID != route.PluginID {
				handle.RecordFailure(route.PluginID, "rest_route_conflict "+rk)
				stats.Errors++
				continue
			}
			newTable.byKey[rk] = route
			stats.MountedRoutes++
			o.metrics.RegisterRouteBudget(route.Method, route.FullPath, route.TimeoutMs, route.PluginID)
		}
	}

	o.table.Store(newTable)
	o.metrics.CompletePluginMount(handle)
	o.finish(start, stats)

	return stats
}

func (o *Orchestrator) mountOne(ctx context.Context, me registry.ManifestEntry, handle *metrics.MountHandle) pluginResult {
	mountStart := time.Now()
	m := me.Manifest

	validation := manifest.Validate(m)
	if !validation.Valid {
		reason := "rest_validation_failed"
		if len(validation.Errors) > 0 {
			reason = "rest_validation_failed " + validation.Errors[0]
		}
		handle.RecordFailure(m.ID, truncateReason(reason))
		return pluginResult{
			record: registry.MountRecord{
				PluginID: m.ID,
				Failures: []registry.MountFailure{{PluginID: m.ID, Error: truncateReason(reason)}},
			},
			failed: true,
		}
	}

	base := pluginBasePath(o.basePath, m)
	granted := intersectCapabilities(declaredCapabilities(m.Permissions), o.grantedCapabilities)

	var mounted []*MountedRoute
	var failures []registry.MountFailure
	var skipped int

	for _, route := range validation.SurvivingRoutes {
		file, export, ok := route.HandlerParts()
		if !ok {
			skipped++
			continue
		}

		fullPath := pathutil.Join(base, route.Path)
		timeout := route.TimeoutMs
		if timeout == 0 {
			timeout = o.requestTimeout.Milliseconds()
		}

		mounted = append(mounted, &MountedRoute{
			Method:       string(route.Method),
			FullPath:     fullPath,
			PluginID:     m.ID,
			Handle:       pluginHandle(m.ID, file, export),
			Capabilities: granted,
			TimeoutMs:    timeout,
		})
	}

	durationMs := time.Since(mountStart).Milliseconds()
	handle.RecordSuccess(m.ID, len(mounted), durationMs)

	return pluginResult{
		record: registry.MountRecord{
			PluginID:      m.ID,
			RoutesMounted: len(mounted),
			RoutesSkipped: skipped,
			Failures:      failures,
			DurationMs:    durationMs,
		},
		routes: mounted,
	}
}

func pluginHandle(pluginID, file, export string) string {
	return pluginID + ":" + file + "#" + export
}

func truncateReason(s string) string {
	const maxLen = 120
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func (o *Orchestrator) finish(start time.Time, stats Stats) {
	var failures []readiness.RouteFailure
	for _, rec := range stats.Records {
		for _, f := range rec.Failures {
			failures = append(failures, readiness.RouteFailure{PluginID: f.PluginID, Error: f.Error})
		}
	}

	success := stats.Errors == 0
	o.readiness.CompleteMount(success, stats.MountedRoutes, stats.Errors, failures, time.Now().UnixMilli(), time.Since(start).Milliseconds())

	if o.bus != nil {
		snap := o.readiness.Snapshot()
		o.bus.Publish(events.HealthEvent{
			Type:                       events.TypeHealth,
			Status:                     healthStatus(snap),
			Ts:                         time.Now().UTC().Format(time.RFC3339),
			Ready:                     snap.Ready(),
			Reason:                     string(snap.ResolveReason()),
			RegistryPartial:            snap.RegistryPartial,
			RegistryStale:              snap.RegistryStale,
			RegistryLoaded:             snap.RegistryLoaded,
			PluginMountInProgress:      snap.MountInProgress,
			PluginRoutesMounted:        snap.PluginRoutesMounted,
			PluginsMounted:             countSuccesses(stats.Records),
			PluginsFailed:              stats.Errors,
			LastPluginMountTs:          snap.LastMountTs,
			PluginRoutesLastDurationMs: snap.LastMountDurationMs,
			RedisEnabled:               snap.RedisEnabled,
			RedisHealthy:               snap.RedisConnected,
		})
	}
}

func countSuccesses(records []registry.MountRecord) int {
	n := 0
	for _, r := range records {
		if len(r.Failures) == 0 {
			n++
		}
	}
	return n
}

func healthStatus(snap readiness.Snapshot) string {
	if snap.Ready() {
		return "healthy"
	}
	return "degraded"
}
