package server

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kb-labs/plugin-gateway/internal/apperr"
	"github.com/kb-labs/plugin-gateway/internal/dispatch"
	"github.com/kb-labs/plugin-gateway/internal/manifest"
	"github.com/kb-labs/plugin-gateway/internal/middleware"
	"github.com/kb-labs/plugin-gateway/internal/openapi"
	"github.com/kb-labs/plugin-gateway/internal/readiness"
	"github.com/kb-labs/plugin-gateway/internal/sse"
)

func (s *Server) buildEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(middleware.Recovery(s.cfg.APIVersion))
	r.Use(middleware.RequestID())
	r.Use(middleware.AllowedHTTPMethods(s.cfg.APIVersion))
	r.Use(middleware.CORS(s.cfg.CORS))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.DefaultSizeLimiter())
	r.Use(middleware.StructuredLogger())
	r.Use(middleware.GzipWithExclusions(middleware.DefaultCompression, []string{s.cfg.BasePath + "/events/registry"}))

	limiter := middleware.NewRateLimiter(s.cfg.RateLimit.Max/s.cfg.RateLimit.TimeWindow.Seconds(), int(s.cfg.RateLimit.Max))
	r.Use(limiter.Middleware())

	r.Use(middleware.Timeout(middleware.TimeoutConfig{Default: s.cfg.Timeouts.RequestTimeout, Budget: s.metrics.BudgetFor}))
	r.Use(middleware.MetricsRecorder(s.metrics))
	r.Use(middleware.EnvelopeWriter(s.cfg.APIVersion))

	s.registerCoreRoutes(r)
	s.registerDispatchRoute(r)

	return r
}

func (s *Server) registerCoreRoutes(r *gin.Engine) {
	base := s.cfg.BasePath

	r.GET(base+"/events/registry", sse.Handler(s.bus, s.discovery.Snapshot, s.readiness.Snapshot, sse.AuthConfig{
		Token:      s.cfg.Events.Registry.Token,
		HeaderName: s.cfg.Events.Registry.HeaderName,
		QueryParam: s.cfg.Events.Registry.QueryParam,
	}))

	r.GET(base+"/plugins/registry", s.handlePluginsRegistry)
	r.GET(base+"/plugins/health", s.handlePluginsHealth)
	r.GET(base+"/studio/registry", s.handleStudioRegistry)
	r.POST(base+"/cache/invalidate", s.handleCacheInvalidate)
	r.GET(base+"/routes", s.handleRoutes)

	r.GET("/openapi.json", s.handleOpenAPI)
	r.GET(base+"/openapi.json", s.handleOpenAPI)

	r.GET("/livez", s.handleLivez)
	r.GET("/readyz", s.handleReadyz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))
}

// registerDispatchRoute binds the single wildcard handler that consults the
// orchestrator's own route table (see internal/mount's package doc for why
// routes aren't registered on *gin.Engine directly).
func (s *Server) registerDispatchRoute(r *gin.Engine) {
	handler := dispatch.NewHandler(s.mount, s.backend, s.metrics, s.cfg.APIVersion)
	r.NoRoute(func(c *gin.Context) {
		handler.ServeHTTP(c)
	})
}

func (s *Server) handlePluginsRegistry(c *gin.Context) {
	snap := s.discovery.Snapshot()

	type manifestEntryView struct {
		PluginID   string                    `json:"pluginId"`
		Manifest   manifest.ManifestV3       `json:"manifest"`
		PluginRoot string                    `json:"pluginRoot"`
		Source     string                    `json:"source"`
		Validation manifest.ValidationResult `json:"validation"`
	}

	entries := make([]manifestEntryView, 0, len(snap.Manifests))
	for _, me := range snap.Manifests {
		entries = append(entries, manifestEntryView{
			PluginID:   me.PluginID,
			Manifest:   me.Manifest,
			PluginRoot: me.PluginRoot,
			Source:     me.Source,
			Validation: manifest.Validate(me.Manifest),
		})
	}

	middleware.Success(c, s.cfg.APIVersion, http.StatusOK, gin.H{
		"manifests":   entries,
		"apiBasePath": s.cfg.BasePath,
	})
}

func (s *Server) handlePluginsHealth(c *gin.Context) {
	snap := s.discovery.Snapshot()
	readySnap := s.readiness.Snapshot()

	var issues []string
	for _, me := range snap.Manifests {
		v := manifest.Validate(me.Manifest)
		issues = append(issues, v.Errors...)
	}

	middleware.Success(c, s.cfg.APIVersion, http.StatusOK, gin.H{
		"snapshot": gin.H{
			"rev":      snap.Rev,
			"checksum": snap.Checksum,
			"partial":  snap.Partial,
			"stale":    snap.Stale,
		},
		"discovery": gin.H{"errors": snap.Errors},
		"validation": gin.H{"issues": issues},
		"ready":      readySnap.Ready(),
		"reason":     readySnap.ResolveReason(),
		"message":    healthMessage(readySnap),
	})
}

func healthMessage(snap readiness.Snapshot) string {
	if snap.Ready() {
		return "all systems nominal"
	}
	return fmt.Sprintf("not ready: %s", snap.ResolveReason())
}

func (s *Server) handleStudioRegistry(c *gin.Context) {
	snap := s.discovery.Snapshot()

	type studioEntry struct {
		PluginID string          `json:"pluginId"`
		Studio   manifest.Studio `json:"studio"`
	}

	var out []studioEntry
	for _, me := range snap.Manifests {
		if me.Manifest.Studio != nil {
			out = append(out, studioEntry{PluginID: me.PluginID, Studio: me.Manifest.Studio})
		}
	}

	middleware.Success(c, s.cfg.APIVersion, http.StatusOK, gin.H{"plugins": out})
}

func (s *Server) handleCacheInvalidate(c *gin.Context) {
	prev := s.discovery.Snapshot()
	start := time.Now()

	if err := s.discovery.Refresh(c.Request.Context()); err != nil {
		middleware.Failure(c, s.cfg.APIVersion, apperr.DiscoveryError(err.Error()))
		return
	}

	next := s.discovery.Snapshot()
	middleware.Success(c, s.cfg.APIVersion, http.StatusOK, gin.H{
		"previousRev":       prev.Rev,
		"newRev":            next.Rev,
		"pluginsDiscovered": len(next.Manifests),
		"durationMs":        time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleRoutes(c *gin.Context) {
	routes := s.mount.Routes()
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].FullPath != routes[j].FullPath {
			return routes[i].FullPath < routes[j].FullPath
		}
		return routes[i].Method < routes[j].Method
	})

	type routeView struct {
		Method string `json:"method"`
		URL    string `json:"url"`
	}
	out := make([]routeView, 0, len(routes))
	for _, r := range routes {
		out = append(out, routeView{Method: r.Method, URL: r.FullPath})
	}

	middleware.Success(c, s.cfg.APIVersion, http.StatusOK, gin.H{"routes": out})
}

func (s *Server) handleOpenAPI(c *gin.Context) {
	doc := openapi.Generate("plugin-gateway", s.cfg.APIVersion, s.mount.Routes())
	etag := openapi.ETag(s.discovery.Snapshot().Rev)

	c.Header("ETag", etag)
	c.Header("Cache-Control", "public, max-age=3600")
	c.JSON(http.StatusOK, doc)
}

func (s *Server) handleLivez(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) handleReadyz(c *gin.Context) {
	snap := s.readiness.Snapshot()
	status := http.StatusOK
	if !snap.Ready() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ready": snap.Ready(), "reason": snap.ResolveReason()})
}
