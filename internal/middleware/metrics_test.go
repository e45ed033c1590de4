package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kb-labs/plugin-gateway/internal/metrics"
)

func TestMetricsRecorder_UsesRoutePatternOverFullPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	collector := metrics.New()

	r := gin.New()
	r.Use(MetricsRecorder(collector))
	r.Any("/*proxyPath", func(c *gin.Context) {
		SetPluginID(c, "p1")
		SetRoutePattern(c, "/api/v1/plugins/p1/items/:id")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plugins/p1/items/abc", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	stats := collector.GetMetrics()
	if len(stats) != 1 || stats[0].PluginID != "p1" {
		t.Fatalf("expected one plugin aggregate for p1, got %+v", stats)
	}
}
