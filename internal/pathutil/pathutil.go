// Package pathutil implements the path resolver (§4.1): base-path
// normalization and mount-path computation used by the mount orchestrator.
package pathutil

import "strings"

// Normalize strips a trailing slash; "" and "/" both collapse to "".
func Normalize(basePath string) string {
	if basePath == "" || basePath == "/" {
		return ""
	}
	return strings.TrimSuffix(basePath, "/")
}

// Resolve returns the ordered, de-duplicated set of absolute paths a route
// should be mounted under: the bare route always, plus the base-prefixed
// form when basePath is non-empty. Order is significant — callers that need
// a single canonical path use index 0.
func Resolve(basePath, route string) []string {
	base := Normalize(basePath)
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}

	if base == "" {
		return []string{route}
	}

	prefixed := base + route
	if prefixed == route {
		return []string{route}
	}
	return []string{route, prefixed}
}

// Join concatenates a base path and a route into a single mount path,
// collapsing a duplicated slash at the seam.
func Join(basePath, route string) string {
	base := Normalize(basePath)
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	if base == "" {
		return route
	}
	return base + route
}
