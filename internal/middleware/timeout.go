// Package middleware: request timeout enforcement (§4.10(d)). Each route
// carries an optional budget registered by the Mount Orchestrator; requests
// against a route with no registered budget fall back to the configured
// global timeout.
//
// Implementation notes:
// - Uses context.WithTimeout for cancellation propagation into handlers.
// - Runs the handler in a goroutine to detect timeout vs. completion,
//   matching the teacher's slowloris-mitigation idiom.
// - On expiry the response is the DispatchError "Timeout" mapping (504,
//   code REQUEST_TIMEOUT) per §7, not a generic 408 — the budget exists to
//   bound plugin execution time, not merely to shed slow clients.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// BudgetLookup resolves the registered timeout for a mounted route. The
// Metrics Collector (internal/metrics) implements this signature; it is
// passed in rather than imported directly so the middleware chain stays
// wired through explicit constructor arguments instead of a global.
type BudgetLookup func(method, fullPath string) (timeout time.Duration, ok bool)

// TimeoutConfig holds configuration for request timeouts.
type TimeoutConfig struct {
	// Default is the timeout applied when no route budget is registered.
	Default time.Duration

	// Budget resolves a per-route override; may be nil to always use Default.
	Budget BudgetLookup
}

// DefaultTimeoutConfig returns the default configuration: a 30s global
// timeout and no per-route budget source.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{Default: 30 * time.Second}
}

// Timeout enforces a deadline on each request, preferring the route's
// registered budget over the configured global default.
func Timeout(config TimeoutConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		timeout := config.Default
		if config.Budget != nil {
			if t, ok := config.Budget(c.Request.Method, c.Request.URL.Path); ok {
				timeout = t
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		finished := make(chan struct{})

		go func() {
			c.Next()
			close(finished)
		}()

		select {
		case <-finished:
			return
		case <-ctx.Done():
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{
				"ok": false,
				"error": gin.H{
					"code":    "REQUEST_TIMEOUT",
					"message": "the request exceeded its timeout budget",
				},
				"meta": gin.H{
					"requestId": GetRequestID(c),
				},
			})
			return
		}
	}
}

// TimeoutWithDuration creates a timeout middleware with a fixed duration and
// no per-route budget lookup, for contexts where the Metrics Collector is
// not yet available (e.g. before the first mount cycle completes).
func TimeoutWithDuration(timeout time.Duration) gin.HandlerFunc {
	config := DefaultTimeoutConfig()
	config.Default = timeout
	return Timeout(config)
}
