// Package middleware: request metrics wrapper (§4.10(e)), recording every
// response into internal/metrics.Collector keyed by the matched gin route
// pattern (not the raw path, to keep cardinality bounded) and, when the
// request was dispatched to a plugin, by plugin ID.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kb-labs/plugin-gateway/internal/metrics"
)

const (
	pluginIDContextKey = "gateway.pluginID"
	routePatternKey    = "gateway.routePattern"
)

// SetPluginID tags the current request with the plugin that served it, read
// back by MetricsRecorder after the handler chain completes.
func SetPluginID(c *gin.Context, pluginID string) {
	c.Set(pluginIDContextKey, pluginID)
}

// SetRoutePattern tags the current request with the mounted route pattern
// (e.g. "/api/v1/plugins/p1/items/:id") that matched it, so the recorder
// labels metrics by pattern rather than by the gin wildcard catch-all's own
// FullPath (which would collapse every plugin route into one label).
func SetRoutePattern(c *gin.Context, pattern string) {
	c.Set(routePatternKey, pattern)
}

// MetricsRecorder wraps every request, forwarding method/route/status/
// duration/pluginID to the collector once the response has been written.
func MetricsRecorder(collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route, _ := c.Get(routePatternKey)
		routeStr, _ := route.(string)
		if routeStr == "" {
			routeStr = c.FullPath()
		}
		if routeStr == "" {
			routeStr = c.Request.URL.Path
		}

		pluginID, _ := c.Get(pluginIDContextKey)
		pluginIDStr, _ := pluginID.(string)

		collector.RecordRequest(
			c.Request.Method,
			routeStr,
			c.Writer.Status(),
			time.Since(start).Milliseconds(),
			pluginIDStr,
		)
	}
}
