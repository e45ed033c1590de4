// Package server implements the Server Lifecycle (C12): boots config,
// platform capabilities, discovery, the first mount cycle, background
// tasks, and the HTTP listener in order; shuts them down in reverse on
// SIGTERM/SIGINT. Uses the same security-timeout http.Server construction
// and signal-driven graceful shutdown as a conventional gin API server.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kb-labs/plugin-gateway/internal/cache"
	"github.com/kb-labs/plugin-gateway/internal/config"
	"github.com/kb-labs/plugin-gateway/internal/dispatch"
	"github.com/kb-labs/plugin-gateway/internal/dispatch/handlerfile"
	"github.com/kb-labs/plugin-gateway/internal/discovery"
	"github.com/kb-labs/plugin-gateway/internal/discovery/filediscovery"
	"github.com/kb-labs/plugin-gateway/internal/events"
	"github.com/kb-labs/plugin-gateway/internal/logger"
	"github.com/kb-labs/plugin-gateway/internal/metrics"
	"github.com/kb-labs/plugin-gateway/internal/mount"
	"github.com/kb-labs/plugin-gateway/internal/platform"
	"github.com/kb-labs/plugin-gateway/internal/readiness"
)

// ShutdownGrace is the default in-flight request grace period (§4.12).
const ShutdownGrace = 5 * time.Second

// Server wires every domain package into the bound HTTP listener.
type Server struct {
	cfg *config.Config

	engine   *gin.Engine
	http     *http.Server
	services *platform.Services

	discovery  *discovery.Client
	mount      *mount.Orchestrator
	metrics    *metrics.Collector
	readiness  *readiness.State
	bus        *events.Bus
	backend    *handlerfile.Backend
	redisCache *cache.Cache

	background *backgroundTasks
}

// New builds a Server and wires the full middleware chain + core-owned
// HTTP surface, but does not bind the listener yet.
func New(cfg *config.Config) (*Server, error) {
	logger.Initialize(cfg.Logging.Level, cfg.Logging.Pretty)

	var redisCache *cache.Cache
	if cfg.Redis.URL != "" {
		cacheCfg, err := redisConfigFromURL(cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		cacheCfg.Enabled = true
		c, err := cache.NewCache(cacheCfg)
		if err != nil {
			logger.GetLogger().Warn().Err(err).Msg("redis unavailable, continuing without cache capability")
		} else {
			redisCache = c
		}
	}

	bus := events.New()
	readinessState := readiness.New()
	metricsCollector := metrics.New()
	backend := handlerfile.NewBackend()

	provider := filediscovery.New(cfg.Discovery.Dir)
	discoveryClient := discovery.New(provider, redisCache, cfg.Redis.Namespace)

	orchestrator := mount.New(cfg.BasePath, cfg.Plugins.GrantedCapabilities,
		cfg.Timeouts.RequestTimeout, metricsCollector, readinessState, bus)

	services := platform.New(*logger.GetLogger(), redisCache, bus)

	s := &Server{
		cfg:        cfg,
		services:   services,
		discovery:  discoveryClient,
		mount:      orchestrator,
		metrics:    metricsCollector,
		readiness:  readinessState,
		bus:        bus,
		backend:    backend,
		redisCache: redisCache,
	}

	s.engine = s.buildEngine()
	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.engine,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	if cfg.SSL.CertPath != "" && cfg.SSL.KeyPath != "" {
		s.http.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	s.background = newBackgroundTasks(s)

	return s, nil
}

func redisConfigFromURL(raw string) (cache.Config, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return cache.Config{}, fmt.Errorf("parsing redis.url: %w", err)
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "6379"
	}
	password, _ := u.User.Password()
	db := 0
	if len(u.Path) > 1 {
		if n, err := strconv.Atoi(u.Path[1:]); err == nil {
			db = n
		}
	}
	return cache.Config{Host: host, Port: port, Password: password, DB: db}, nil
}

// Run executes the full boot sequence (§4.12), blocks until ctx is
// cancelled or a termination signal arrives, then runs the ordered
// shutdown. Returns nil on clean shutdown, non-nil on startup failure.
func (s *Server) Run(ctx context.Context) error {
	if err := s.boot(ctx); err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		var err error
		if s.http.TLSConfig != nil {
			err = s.http.ListenAndServeTLS(s.cfg.SSL.CertPath, s.cfg.SSL.KeyPath)
		} else {
			err = s.http.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	logger.GetLogger().Info().Str("addr", s.http.Addr).Msg("listening")

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	return s.shutdown()
}

func (s *Server) boot(ctx context.Context) error {
	if err := s.discovery.Initialize(ctx); err != nil {
		return err
	}
	s.readiness.SetRegistryLoaded(true, s.discovery.Snapshot().Partial, s.discovery.Snapshot().Stale)
	s.readiness.SetCLIInitialized(true)

	s.mount.Mount(ctx, s.discovery.Snapshot())

	s.discovery.OnChange(func(diff discovery.ChangeSet) {
		snap := s.discovery.Snapshot()
		s.readiness.SetRegistryLoaded(true, snap.Partial, snap.Stale)
		s.mount.Mount(context.Background(), snap)
		s.bus.Publish(events.RegistryEvent{
			Type:             events.TypeRegistry,
			Rev:              snap.Rev,
			GeneratedAt:      snap.GeneratedAt.Format(time.RFC3339),
			Partial:          snap.Partial,
			Stale:            snap.Stale,
			Checksum:         snap.Checksum,
			PreviousChecksum: snap.PreviousChecksum,
		})
	})

	s.background.start(s.cfg.CacheTTL())

	return nil
}

func (s *Server) shutdown() error {
	log := logger.GetLogger()
	log.Info().Msg("shutdown: stopping new connections")

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownGrace)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http server forced to shutdown")
	}

	s.background.stop()

	if err := s.discovery.Dispose(); err != nil {
		log.Warn().Err(err).Msg("discovery dispose failed")
	}

	if s.redisCache != nil {
		if err := s.redisCache.Close(); err != nil {
			log.Warn().Err(err).Msg("redis cache close failed")
		}
	}

	log.Info().Msg("shutdown complete")
	return nil
}

// Backend exposes the reference ExecuteBackend so callers (tests, a plugin
// SDK) can register handler entries before Run is called.
func (s *Server) Backend() *handlerfile.Backend { return s.backend }

// Engine exposes the underlying gin.Engine, mainly for tests.
func (s *Server) Engine() *gin.Engine { return s.engine }

var _ dispatch.ExecuteBackend = (*handlerfile.Backend)(nil)
