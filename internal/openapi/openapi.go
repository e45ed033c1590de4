// Package openapi implements the OpenAPI Generator (C15): a minimal
// OpenAPI 3.0 document built by walking the mounted route set, serialized
// with encoding/json (§4.15).
package openapi

import (
	"fmt"

	"github.com/kb-labs/plugin-gateway/internal/mount"
)

// Document is a minimal OpenAPI 3.0 document.
type Document struct {
	OpenAPI string                          `json:"openapi"`
	Info    Info                            `json:"info"`
	Paths   map[string]map[string]Operation `json:"paths"`
}

type Info struct {
	Title   string `json:"title"`
	Version string `json:"version"`
}

type Operation struct {
	OperationID string   `json:"operationId"`
	Tags        []string `json:"tags,omitempty"`
	Responses   map[string]Response `json:"responses"`
}

type Response struct {
	Description string `json:"description"`
}

// Generate builds a Document from the currently mounted routes.
func Generate(title, apiVersion string, routes []mount.MountedRoute) *Document {
	doc := &Document{
		OpenAPI: "3.0.3",
		Info:    Info{Title: title, Version: apiVersion},
		Paths:   make(map[string]map[string]Operation),
	}

	for _, r := range routes {
		methods, ok := doc.Paths[r.FullPath]
		if !ok {
			methods = make(map[string]Operation)
			doc.Paths[r.FullPath] = methods
		}
		methods[toLowerMethod(r.Method)] = Operation{
			OperationID: fmt.Sprintf("%s_%s", r.PluginID, sanitize(r.FullPath)),
			Tags:        []string{r.PluginID},
			Responses: map[string]Response{
				"200": {Description: "Successful response"},
			},
		}
	}

	return doc
}

func toLowerMethod(m string) string {
	out := make([]byte, len(m))
	for i := 0; i < len(m); i++ {
		c := m[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

func sanitize(path string) string {
	out := make([]byte, len(path))
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '/' || c == ':' {
			c = '_'
		}
		out[i] = c
	}
	return string(out)
}

// ETag derives the document's cache validator from a snapshot revision
// (§6 "ETag derived from snapshot rev").
func ETag(rev uint64) string {
	return fmt.Sprintf(`"rev-%d"`, rev)
}
