// Package registry implements the Registry Snapshot Store (C7): an
// immutable RegistrySnapshot value object with a lock-free single-writer
// atomic.Pointer swap, the Go-native equivalent of the teacher's
// mutex-guarded registry pattern.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync/atomic"
	"time"

	"github.com/kb-labs/plugin-gateway/internal/manifest"
)

// ManifestEntry pairs a validated manifest with its discovery provenance.
type ManifestEntry struct {
	PluginID   string             `json:"pluginId"`
	Manifest   manifest.ManifestV3 `json:"manifest"`
	PluginRoot string             `json:"pluginRoot"`
	Source     string             `json:"source"`
}

// DiscoveryError records a per-plugin discovery failure.
type DiscoveryError struct {
	PluginID string `json:"pluginId"`
	Error    string `json:"error"`
}

// Snapshot is the immutable registry value identifying the fleet of
// manifests known at a point in time (§3 RegistrySnapshot).
type Snapshot struct {
	Rev              uint64           `json:"rev"`
	GeneratedAt      time.Time        `json:"generatedAt"`
	ExpiresAt        *time.Time       `json:"expiresAt,omitempty"`
	TTLMs            *int64           `json:"ttlMs,omitempty"`
	Checksum         string           `json:"checksum,omitempty"`
	PreviousChecksum string           `json:"previousChecksum,omitempty"`
	Partial          bool             `json:"partial"`
	Stale            bool             `json:"stale"`
	Corrupted        bool             `json:"corrupted"`
	Manifests        []ManifestEntry  `json:"manifests"`
	Errors           []DiscoveryError `json:"errors"`
}

// ComputeChecksum returns the sha256 of a canonical (id-sorted) serialization
// of manifests, ignoring timestamps, so checksum equality implies structural
// equality as required by §3.
func ComputeChecksum(entries []ManifestEntry) string {
	sorted := make([]ManifestEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PluginID < sorted[j].PluginID })

	data, err := json.Marshal(sorted)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Store is a single-writer pointer to the current Snapshot with lock-free
// reads (atomic.Pointer).
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore returns an empty store with rev 0 and no manifests.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(&Snapshot{Rev: 0, GeneratedAt: time.Time{}})
	return s
}

// Current returns the currently installed snapshot. Lock-free.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// CompareAndReplace installs next iff next.Rev > current.Rev, per §4.7.
// Returns true if the snapshot was installed.
func (s *Store) CompareAndReplace(next *Snapshot) bool {
	for {
		cur := s.current.Load()
		if next.Rev <= cur.Rev {
			return false
		}
		if s.current.CompareAndSwap(cur, next) {
			return true
		}
	}
}

// Invalidate marks the current snapshot stale without changing its rev —
// used when the TTL expires and no fresh snapshot has arrived (§4.7).
func (s *Store) Invalidate() {
	for {
		cur := s.current.Load()
		if cur.Stale {
			return
		}
		next := *cur
		next.Stale = true
		if s.current.CompareAndSwap(cur, &next) {
			return
		}
	}
}

// MountFailure records one plugin-or-route mount failure (§3 MountRecord).
type MountFailure struct {
	PluginID string `json:"id"`
	Error    string `json:"error"`
}

// MountRecord is the per-plugin mount outcome owned by the Mount Orchestrator.
type MountRecord struct {
	PluginID      string         `json:"pluginId"`
	RoutesMounted int            `json:"routesMounted"`
	RoutesSkipped int            `json:"routesSkipped"`
	Failures      []MountFailure `json:"failures"`
	DurationMs    int64          `json:"durationMs"`
}
