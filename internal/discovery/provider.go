// Package discovery implements the Plugin Discovery Client (C8): a core-side
// consumer of an external DiscoveryProvider, exposing snapshot(), onChange,
// refresh(), listPlugins(), and optional redisStatus(). This repo ships one
// concrete provider, filediscovery, which walks a directory of manifest
// files — the Go-native analogue of the teacher's filesystem plugin scan.
package discovery

import (
	"context"

	"github.com/kb-labs/plugin-gateway/internal/registry"
)

// Provider is the external collaborator the core consumes (§1 "consumed via
// stable interfaces"). It performs one discovery pass and returns a fresh
// snapshot; the Client layer owns comparison against the current revision,
// serialized refresh, and change diffing.
type Provider interface {
	// Scan performs one discovery pass, returning a freshly built snapshot.
	// The returned snapshot's Rev is ignored by the caller — Client assigns
	// monotonically increasing revisions itself.
	Scan(ctx context.Context) (*registry.Snapshot, error)

	// Watch starts watching for external changes (e.g. filesystem events)
	// and invokes onSignal whenever a re-scan may be warranted. Watch must
	// return promptly; the watch loop itself runs until ctx is cancelled.
	// Providers that have no push-based change signal may implement this as
	// a no-op returning nil.
	Watch(ctx context.Context, onSignal func()) error

	// Close releases any resources the provider holds (file watchers,
	// network connections).
	Close() error
}

// PluginIdentity is the {id, version} pair returned by ListPlugins.
type PluginIdentity struct {
	ID      string `json:"id"`
	Version string `json:"version"`
}

// ChangeSet describes which plugin IDs changed between two snapshots, fed to
// OnChange handlers and to the Mount Orchestrator's incremental re-mount.
type ChangeSet struct {
	Added   []string
	Removed []string
	Changed []string
}

// IsEmpty reports whether no plugin changed.
func (c ChangeSet) IsEmpty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Changed) == 0
}

// DiffSnapshots computes the ChangeSet between two manifest sets, keyed by
// plugin ID; a plugin is "changed" if it exists in both sets with a
// different manifest checksum.
func DiffSnapshots(prev, next []registry.ManifestEntry) ChangeSet {
	prevByID := make(map[string]registry.ManifestEntry, len(prev))
	for _, m := range prev {
		prevByID[m.PluginID] = m
	}
	nextByID := make(map[string]registry.ManifestEntry, len(next))
	for _, m := range next {
		nextByID[m.PluginID] = m
	}

	var cs ChangeSet
	for id, nm := range nextByID {
		pm, existed := prevByID[id]
		if !existed {
			cs.Added = append(cs.Added, id)
			continue
		}
		if registry.ComputeChecksum([]registry.ManifestEntry{pm}) != registry.ComputeChecksum([]registry.ManifestEntry{nm}) {
			cs.Changed = append(cs.Changed, id)
		}
	}
	for id := range prevByID {
		if _, stillThere := nextByID[id]; !stillThere {
			cs.Removed = append(cs.Removed, id)
		}
	}
	return cs
}
