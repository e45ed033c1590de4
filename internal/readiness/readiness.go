// Package readiness implements the Readiness State (C3): a singleton,
// single-writer-per-field struct behind sync.RWMutex, matching the teacher's
// Hub/Runtime locking idiom. The mount orchestrator and the discovery
// change callback are the only mutators; all other components read through
// Snapshot().
package readiness

import "sync"

// Reason is the single enum readers derive from the readiness fields.
type Reason string

const (
	ReasonReady                    Reason = "ready"
	ReasonCLIAPINotInitialized     Reason = "cli_api_not_initialized"
	ReasonRegistryNotLoaded        Reason = "registry_not_loaded"
	ReasonRegistryPartial          Reason = "registry_partial"
	ReasonRegistrySnapshotStale    Reason = "registry_snapshot_stale"
	ReasonRedisUnavailable         Reason = "redis_unavailable"
	ReasonPluginMountInProgress    Reason = "plugin_mount_in_progress"
)

// RedisRoleStates reports health-check outcomes per Redis role.
type RedisRoleStates struct {
	Publisher  string
	Subscriber string
	Cache      string
}

// RouteFailure is one mount failure surfaced to readers of readiness.
type RouteFailure struct {
	PluginID string
	Error    string
}

// State is the mutable readiness struct (§3 ReadinessState). All fields are
// protected by mu; callers must go through the accessor methods.
type State struct {
	mu sync.RWMutex

	cliInitialized      bool
	registryLoaded      bool
	registryPartial     bool
	registryStale       bool
	pluginRoutesMounted bool
	mountInProgress     bool
	routesCount         int
	routeErrors         int
	routeFailures       []RouteFailure
	lastMountTs         *int64
	lastMountDurationMs *int64
	redisEnabled        bool
	redisConnected      bool
	redisStates         RedisRoleStates
}

func New() *State {
	return &State{}
}

func (s *State) SetCLIInitialized(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cliInitialized = v
}

func (s *State) SetRegistryLoaded(loaded, partial, stale bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registryLoaded = loaded
	s.registryPartial = partial
	s.registryStale = stale
}

func (s *State) SetRegistryStale(stale bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registryStale = stale
}

func (s *State) BeginMount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mountInProgress = true
	s.pluginRoutesMounted = false
}

func (s *State) CompleteMount(success bool, routesCount, routeErrors int, failures []RouteFailure, tsUnixMs, durationMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mountInProgress = false
	s.pluginRoutesMounted = success
	s.routesCount = routesCount
	s.routeErrors = routeErrors
	s.routeFailures = failures
	s.lastMountTs = &tsUnixMs
	s.lastMountDurationMs = &durationMs
}

func (s *State) SetRedis(enabled, connected bool, states RedisRoleStates) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redisEnabled = enabled
	s.redisConnected = connected
	s.redisStates = states
}

// Snapshot is a read-only copy of the readiness fields for consumers (SSE,
// health endpoint, dispatcher).
type Snapshot struct {
	CLIInitialized      bool
	RegistryLoaded      bool
	RegistryPartial     bool
	RegistryStale       bool
	PluginRoutesMounted bool
	MountInProgress     bool
	RoutesCount         int
	RouteErrors         int
	RouteFailures       []RouteFailure
	LastMountTs         *int64
	LastMountDurationMs *int64
	RedisEnabled        bool
	RedisConnected      bool
	RedisStates         RedisRoleStates
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		CLIInitialized:      s.cliInitialized,
		RegistryLoaded:      s.registryLoaded,
		RegistryPartial:     s.registryPartial,
		RegistryStale:       s.registryStale,
		PluginRoutesMounted: s.pluginRoutesMounted,
		MountInProgress:     s.mountInProgress,
		RoutesCount:         s.routesCount,
		RouteErrors:         s.routeErrors,
		RouteFailures:       s.routeFailures,
		LastMountTs:         s.lastMountTs,
		LastMountDurationMs: s.lastMountDurationMs,
		RedisEnabled:        s.redisEnabled,
		RedisConnected:      s.redisConnected,
		RedisStates:         s.redisStates,
	}
}

// Ready reports whether the system is ready to serve traffic (§3).
func (snap Snapshot) Ready() bool {
	return snap.ResolveReason() == ReasonReady
}

// ResolveReason derives the single Reason enum from the readiness fields,
// per §9's "readiness flags as quasi-enum" strategy.
func (snap Snapshot) ResolveReason() Reason {
	if !snap.CLIInitialized {
		return ReasonCLIAPINotInitialized
	}
	if !snap.RegistryLoaded {
		return ReasonRegistryNotLoaded
	}
	if snap.MountInProgress {
		return ReasonPluginMountInProgress
	}
	if snap.RegistryPartial {
		return ReasonRegistryPartial
	}
	if snap.RegistryStale {
		return ReasonRegistrySnapshotStale
	}
	if snap.RedisEnabled && !snap.RedisConnected {
		return ReasonRedisUnavailable
	}
	return ReasonReady
}
