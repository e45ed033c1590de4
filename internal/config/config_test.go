package config

import "testing"

func TestLoad_DefaultsWhenNoFileAndNoEnv(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.BasePath != "/api/v1" {
		t.Errorf("BasePath = %q", cfg.BasePath)
	}
	if cfg.CORS.Profile != CORSDev {
		t.Errorf("CORS.Profile = %q, want dev", cfg.CORS.Profile)
	}
	if cfg.CacheTTL().Minutes() != 10 {
		t.Errorf("dev CacheTTL = %v, want 10m", cfg.CacheTTL())
	}
}

func TestLoad_ProdDefaultsToOneHourTTL(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.CacheTTL().Hours() != 1 {
		t.Errorf("prod CacheTTL = %v, want 1h", cfg.CacheTTL())
	}
}

func TestLoad_EnvOverridesPort(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("API_PORT", "9090")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
}

func TestLoad_RejectsInvalidPort(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("API_PORT", "0")
	if _, err := Load(""); err == nil {
		t.Error("expected error for invalid port")
	}
}
