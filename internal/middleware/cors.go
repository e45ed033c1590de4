// Package middleware: CORS per-profile (§4.10(b)). dev defaults to
// localhost origins when none are configured; preview/prod require
// explicit origins and otherwise disable CORS entirely.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kb-labs/plugin-gateway/internal/config"
)

var devDefaultOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

func resolveOrigins(cfg config.CORSConfig) []string {
	if len(cfg.Origins) > 0 {
		return cfg.Origins
	}
	if cfg.Profile == config.CORSDev {
		return devDefaultOrigins
	}
	return nil
}

func originAllowed(origins []string, origin string) bool {
	for _, o := range origins {
		if o == origin || o == "*" {
			return true
		}
	}
	return false
}

// CORS returns a middleware enforcing the configured CORS profile. When the
// resolved origin list is empty (preview/prod with no explicit origins),
// CORS is disabled outright — no headers are set and cross-origin requests
// rely on same-origin browser defaults.
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	origins := resolveOrigins(cfg)

	return func(c *gin.Context) {
		if len(origins) == 0 {
			c.Next()
			return
		}

		origin := c.GetHeader("Origin")
		if origin != "" && originAllowed(origins, origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			if cfg.AllowCredentials {
				c.Header("Access-Control-Allow-Credentials", "true")
			}
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS")
			c.Header("Access-Control-Allow-Headers", strings.Join([]string{
				"Content-Type", "Authorization", RequestIDHeader,
				"X-Tenant-Id", "X-User-Id", "X-Actor", "X-User",
				"Idempotency-Key", "X-Idempotency-Key",
			}, ", "))
			c.Header("Access-Control-Expose-Headers", strings.Join([]string{
				RequestIDHeader, "X-Schema-Version", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After",
			}, ", "))
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
