package server

import (
	"context"
	"testing"
	"time"

	"github.com/kb-labs/plugin-gateway/internal/config"
)

func testConfig(t *testing.T, pluginDir string) *config.Config {
	t.Helper()
	return &config.Config{
		Port:       0,
		Host:       "127.0.0.1",
		BasePath:   "/api/v1",
		APIVersion: "v1",
		Env:        "dev",
		Timeouts: config.TimeoutsConfig{
			RequestTimeout: 5 * time.Second,
			BodyLimit:      1 << 20,
		},
		CORS: config.CORSConfig{Profile: config.CORSDev},
		RateLimit: config.RateLimitConfig{
			Max:        50,
			TimeWindow: time.Minute,
		},
		Cache: config.CacheConfig{TTLMs: (10 * time.Minute).Milliseconds()},
		Discovery: config.DiscoveryConfig{
			Dir: pluginDir,
		},
		Logging: config.LoggingConfig{Level: "error"},
	}
}

func TestNew_BuildsServerWithoutBinding(t *testing.T) {
	s, err := New(testConfig(t, t.TempDir()))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if s.Engine() == nil {
		t.Fatal("expected a non-nil gin engine")
	}
	if s.Backend() == nil {
		t.Fatal("expected a non-nil reference backend")
	}
}

func TestBoot_InitializesDiscoveryAndMountsEmptyRegistry(t *testing.T) {
	s, err := New(testConfig(t, t.TempDir()))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if err := s.boot(context.Background()); err != nil {
		t.Fatalf("boot returned error: %v", err)
	}
	defer s.background.stop()

	if !s.readiness.Snapshot().RegistryLoaded {
		t.Error("expected registry to be marked loaded after boot")
	}
	if len(s.mount.Routes()) != 0 {
		t.Errorf("expected no mounted routes for an empty plugin directory, got %d", len(s.mount.Routes()))
	}
}
