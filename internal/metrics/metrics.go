// Package metrics implements the Metrics Collector (C2): thread-safe
// counters, per-route histograms, per-plugin aggregates, mount-cycle
// snapshots, and route budgets — backed by github.com/prometheus/client_golang
// registered against a private prometheus.Registry, grounded on the
// gateway-instrumentation pattern shared by the 99souls-ariadne and
// jordigilh-kubernaut example repos.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Bucket ladder fixed by §4.2, used verbatim as HistogramOpts.Buckets.
var latencyBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

// RouteBudget is the timeout (and owning plugin) registered for a mounted
// route (§3 RouteBudget).
type RouteBudget struct {
	Method     string
	FullPath   string
	TimeoutMs  int64
	PluginID   string
}

type pluginAggregate struct {
	total         int64
	totalDuration int64
	statusesByCode map[int]int64
}

// Collector is the thread-safe metrics collector.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	mu              sync.Mutex
	budgets         map[string]RouteBudget // key: method+" "+fullPath
	pluginAggs      map[string]*pluginAggregate
	lastMount       *MountSnapshot
}

// MountOutcome is one plugin's outcome within a mount-cycle snapshot.
type MountOutcome struct {
	PluginID   string
	Success    bool
	RouteCount int
	DurationMs int64
	Reason     string
}

// MountSnapshot is the sealed result of one mount cycle (§4.2
// getLastPluginMountSnapshot).
type MountSnapshot struct {
	Succeeded int
	Failed    int
	PerPlugin []MountOutcome
}

// New builds a Collector with its own private prometheus.Registry so the
// gateway's metrics never collide with a host process's default registry.
func New() *Collector {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_requests_total",
		Help: "Total HTTP requests processed by the gateway, by method/route/status class.",
	}, []string{"method", "route", "status_class"})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_duration_ms",
		Help:    "Request duration in milliseconds, per route.",
		Buckets: latencyBuckets,
	}, []string{"method", "route"})

	registry.MustRegister(requestsTotal, requestDuration)

	return &Collector{
		registry:        registry,
		requestsTotal:   requestsTotal,
		requestDuration: requestDuration,
		budgets:         make(map[string]RouteBudget),
		pluginAggs:      make(map[string]*pluginAggregate),
	}
}

// Registry exposes the private prometheus.Registry for promhttp.HandlerFor.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}

// RecordRequest updates global counters, the per-route histogram, and (if
// pluginID is non-empty) the per-plugin aggregate.
func (c *Collector) RecordRequest(method, matchedRoutePattern string, statusCode int, durationMs int64, pluginID string) {
	c.requestsTotal.WithLabelValues(method, matchedRoutePattern, statusClass(statusCode)).Inc()
	c.requestDuration.WithLabelValues(method, matchedRoutePattern).Observe(float64(durationMs))

	if pluginID == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	agg, ok := c.pluginAggs[pluginID]
	if !ok {
		agg = &pluginAggregate{statusesByCode: make(map[int]int64)}
		c.pluginAggs[pluginID] = agg
	}
	agg.total++
	agg.totalDuration += durationMs
	agg.statusesByCode[statusCode]++
}

func budgetKey(method, fullPath string) string {
	return method + " " + fullPath
}

// RegisterRouteBudget records the timeout and owning plugin for a mounted
// route, consumed by the dispatcher's timeout middleware and by I2.
func (c *Collector) RegisterRouteBudget(method, fullPath string, timeoutMs int64, pluginID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.budgets[budgetKey(method, fullPath)] = RouteBudget{
		Method: method, FullPath: fullPath, TimeoutMs: timeoutMs, PluginID: pluginID,
	}
}

// ResetPluginRouteBudgets clears the route-budget registry ahead of a new
// mount cycle (§4.9 step 1).
func (c *Collector) ResetPluginRouteBudgets() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.budgets = make(map[string]RouteBudget)
}

// BudgetFor resolves the registered timeout for a route, if any — the
// BudgetLookup the timeout middleware consumes.
func (c *Collector) BudgetFor(method, fullPath string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.budgets[budgetKey(method, fullPath)]
	if !ok {
		return 0, false
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond, true
}

// PluginForRoute resolves the owning plugin ID for a registered route, used
// by I2's uniqueness check.
func (c *Collector) PluginForRoute(method, fullPath string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.budgets[budgetKey(method, fullPath)]
	if !ok {
		return "", false
	}
	return b.PluginID, true
}

// AllBudgets returns a snapshot of the current route-budget registry.
func (c *Collector) AllBudgets() []RouteBudget {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]RouteBudget, 0, len(c.budgets))
	for _, b := range c.budgets {
		out = append(out, b)
	}
	return out
}

// MountHandle tracks per-plugin outcomes across one mount cycle.
type MountHandle struct {
	mu      sync.Mutex
	outcomes []MountOutcome
}

// BeginPluginMount returns a handle for recording outcomes across one mount
// cycle (§4.2).
func (c *Collector) BeginPluginMount() *MountHandle {
	return &MountHandle{}
}

func (h *MountHandle) RecordSuccess(pluginID string, routeCount int, durationMs int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outcomes = append(h.outcomes, MountOutcome{
		PluginID: pluginID, Success: true, RouteCount: routeCount, DurationMs: durationMs,
	})
}

func (h *MountHandle) RecordFailure(pluginID, shortReason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outcomes = append(h.outcomes, MountOutcome{
		PluginID: pluginID, Success: false, Reason: shortReason,
	})
}

// CompletePluginMount seals the cycle into the collector's last-mount
// snapshot.
func (c *Collector) CompletePluginMount(h *MountHandle) MountSnapshot {
	h.mu.Lock()
	outcomes := make([]MountOutcome, len(h.outcomes))
	copy(outcomes, h.outcomes)
	h.mu.Unlock()

	snap := MountSnapshot{PerPlugin: outcomes}
	for _, o := range outcomes {
		if o.Success {
			snap.Succeeded++
		} else {
			snap.Failed++
		}
	}

	c.mu.Lock()
	c.lastMount = &snap
	c.mu.Unlock()

	return snap
}

// GetLastPluginMountSnapshot returns the most recently sealed mount-cycle
// snapshot, if any.
func (c *Collector) GetLastPluginMountSnapshot() *MountSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastMount
}

// PluginStats is the read view of a per-plugin aggregate for /plugins/health.
type PluginStats struct {
	PluginID       string
	Total          int64
	TotalDuration  int64
	StatusesByCode map[int]int64
}

// GetMetrics returns a snapshot of per-plugin aggregates for callers.
func (c *Collector) GetMetrics() []PluginStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]PluginStats, 0, len(c.pluginAggs))
	for id, agg := range c.pluginAggs {
		codes := make(map[int]int64, len(agg.statusesByCode))
		for code, n := range agg.statusesByCode {
			codes[code] = n
		}
		out = append(out, PluginStats{
			PluginID:       id,
			Total:          agg.total,
			TotalDuration:  agg.totalDuration,
			StatusesByCode: codes,
		})
	}
	return out
}
