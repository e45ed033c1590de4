// Package cache provides Redis-based caching for the plugin gateway.
//
// This file defines cache key and pub/sub channel naming conventions used by
// the discovery client's optional cross-process coordination (see
// internal/discovery) and by the registry-snapshot cache capability.
package cache

import "fmt"

// Key prefixes for different resource types.
const (
	PrefixSnapshot = "snapshot"
	PrefixManifest = "manifest"
	PrefixRoute    = "route"
)

// SnapshotKey caches the serialized RegistrySnapshot under a namespace so
// multiple gateway processes sharing the same Redis instance can avoid
// redundant discovery scans.
func SnapshotKey(namespace string) string {
	return fmt.Sprintf("%s:%s:current", PrefixSnapshot, namespace)
}

// ManifestKey caches a single plugin's manifest by plugin id.
func ManifestKey(namespace, pluginID string) string {
	return fmt.Sprintf("%s:%s:%s", PrefixManifest, namespace, pluginID)
}

// RouteBudgetPattern matches every cached route-budget entry for a namespace,
// used for bulk invalidation after a mount cycle.
func RouteBudgetPattern(namespace string) string {
	return fmt.Sprintf("%s:%s:*", PrefixRoute, namespace)
}

// SnapshotChannel is the Redis Pub/Sub channel name registry-change
// notifications are relayed on when config.redis.url is set. Subscribers in
// other processes use this to learn a fresh snapshot is available without
// re-scanning the discovery provider themselves.
func SnapshotChannel(namespace string) string {
	return fmt.Sprintf("%s:%s:changes", PrefixSnapshot, namespace)
}
