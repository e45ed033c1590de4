// Package manifest defines ManifestV3 (§3) and the two-phase validator (C6):
// a structural schema check followed by a handler-file existence check.
// Grounded on the teacher's filesystem existence-checking idiom in its
// plugin discovery code, generalized to the gateway's manifest shape.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Method is an allowed HTTP method for a RestRoute.
type Method string

const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodDelete  Method = "DELETE"
	MethodPatch   Method = "PATCH"
	MethodHead    Method = "HEAD"
	MethodOptions Method = "OPTIONS"
)

var allowedMethods = map[Method]bool{
	MethodGet: true, MethodPost: true, MethodPut: true, MethodDelete: true,
	MethodPatch: true, MethodHead: true, MethodOptions: true,
}

// RateLimitOverride is a per-route rate-limit override (§3 RestRoute).
type RateLimitOverride struct {
	RequestsPerSecond float64 `yaml:"requestsPerSecond" json:"requestsPerSecond"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// RestRoute is one route contributed by a plugin's REST surface.
type RestRoute struct {
	Method     Method             `yaml:"method" json:"method"`
	Path       string             `yaml:"path" json:"path"`
	Handler    string             `yaml:"handler" json:"handler"`
	TimeoutMs  int64              `yaml:"timeoutMs" json:"timeoutMs,omitempty"`
	RateLimit  *RateLimitOverride `yaml:"rateLimit" json:"rateLimit,omitempty"`
}

// HandlerParts splits "file#export" into its two halves.
func (r RestRoute) HandlerParts() (file, export string, ok bool) {
	parts := strings.SplitN(r.Handler, "#", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// Rest is a plugin's optional REST surface.
type Rest struct {
	BasePath string      `yaml:"basePath" json:"basePath,omitempty"`
	Routes   []RestRoute `yaml:"routes" json:"routes,omitempty"`
}

// Permissions are the capability grants a plugin declares for itself.
type Permissions struct {
	ReadGlobs        []string `yaml:"readGlobs" json:"readGlobs,omitempty"`
	WriteGlobs       []string `yaml:"writeGlobs" json:"writeGlobs,omitempty"`
	AllowedDomains   []string `yaml:"allowedDomains" json:"allowedDomains,omitempty"`
	AllowedCommands  []string `yaml:"allowedCommands" json:"allowedCommands,omitempty"`
	StateNamespaces  []string `yaml:"stateNamespaces" json:"stateNamespaces,omitempty"`
}

// Studio is opaque UI metadata surfaced by the studio registry endpoint.
type Studio map[string]interface{}

// ManifestV3 identifies a plugin and the surface it contributes (§3).
type ManifestV3 struct {
	ID          string      `yaml:"id" json:"id"`
	Version     string      `yaml:"version" json:"version"`
	PluginRoot  string      `yaml:"-" json:"pluginRoot"`
	Permissions Permissions `yaml:"permissions" json:"permissions"`
	Rest        *Rest       `yaml:"rest" json:"rest,omitempty"`
	Studio      Studio      `yaml:"studio" json:"studio,omitempty"`
}

var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+([-+].+)?$`)
var basePathPattern = regexp.MustCompile(`^/v\d+(/.*)?$`)

// ValidationResult carries the outcome of structural validation for one
// manifest, and the surviving routes after handler-presence checks.
type ValidationResult struct {
	Valid          bool
	Errors         []string
	SurvivingRoutes []RestRoute
}

// Validate runs both phases of C6 against m. m.PluginRoot is the filesystem
// root used to resolve relative handler file paths; when it is "" the
// handler-presence phase is skipped (useful for unit tests with in-memory
// manifests).
func Validate(m ManifestV3) ValidationResult {
	var errs []string

	if strings.TrimSpace(m.ID) == "" {
		errs = append(errs, "id must be non-empty")
	}
	if !semverPattern.MatchString(m.Version) {
		errs = append(errs, fmt.Sprintf("version %q is not semver-shaped", m.Version))
	}

	if m.Rest == nil {
		return ValidationResult{Valid: len(errs) == 0, Errors: errs}
	}

	if m.Rest.BasePath != "" && !basePathPattern.MatchString(m.Rest.BasePath) {
		errs = append(errs, fmt.Sprintf("basePath %q must start with /vN", m.Rest.BasePath))
	}
	manifestErrs := len(errs)

	if len(m.Rest.Routes) == 0 {
		errs = append(errs, "rest declared but routes is empty")
		return ValidationResult{Valid: false, Errors: errs}
	}

	var surviving []RestRoute
	for i, route := range m.Rest.Routes {
		if !allowedMethods[route.Method] {
			errs = append(errs, fmt.Sprintf("route[%d]: method %q not allowed", i, route.Method))
			continue
		}
		if _, _, ok := route.HandlerParts(); !ok {
			errs = append(errs, fmt.Sprintf("route[%d]: handler %q must be file#export", i, route.Handler))
			continue
		}
		if route.Path == "" {
			errs = append(errs, fmt.Sprintf("route[%d]: path must be non-empty", i))
			continue
		}

		if m.PluginRoot != "" {
			file, _, _ := route.HandlerParts()
			if _, statErr := os.Stat(filepath.Join(m.PluginRoot, file)); statErr != nil {
				errs = append(errs, fmt.Sprintf("route[%d]: handler file %q not found", i, file))
				continue
			}
		}

		surviving = append(surviving, route)
	}

	if len(surviving) == 0 || manifestErrs > 0 {
		return ValidationResult{Valid: false, Errors: errs}
	}

	return ValidationResult{
		Valid:           true,
		Errors:          errs,
		SurvivingRoutes: surviving,
	}
}

// CollidesWithinPlugin reports whether any two routes in routes share the
// same (method, path) pair.
func CollidesWithinPlugin(routes []RestRoute) (method Method, path string, collides bool) {
	seen := make(map[string]bool, len(routes))
	for _, r := range routes {
		key := string(r.Method) + " " + r.Path
		if seen[key] {
			return r.Method, r.Path, true
		}
		seen[key] = true
	}
	return "", "", false
}
