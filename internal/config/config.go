// Package config implements the configuration loader (§4.14/§6): environment
// variables plus an optional YAML overlay, following the teacher's
// YAML-first, JSON-second convention for config-adjacent files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kb-labs/plugin-gateway/internal/apperr"
)

type CORSProfile string

const (
	CORSDev     CORSProfile = "dev"
	CORSPreview CORSProfile = "preview"
	CORSProd    CORSProfile = "prod"
)

type TimeoutsConfig struct {
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	BodyLimit      int64         `yaml:"bodyLimit"`
}

type CORSConfig struct {
	Profile          CORSProfile `yaml:"profile"`
	Origins          []string    `yaml:"origins"`
	AllowCredentials bool        `yaml:"allowCredentials"`
}

type RateLimitConfig struct {
	Max        float64       `yaml:"max"`
	TimeWindow time.Duration `yaml:"timeWindow"`
}

type RegistryEventsConfig struct {
	Token      string `yaml:"token"`
	HeaderName string `yaml:"headerName"`
	QueryParam string `yaml:"queryParam"`
}

type EventsConfig struct {
	Registry RegistryEventsConfig `yaml:"registry"`
}

type HTTP2Config struct {
	Enabled     bool `yaml:"enabled"`
	AllowHTTP1  bool `yaml:"allowHTTP1"`
}

type SSLConfig struct {
	KeyPath  string `yaml:"keyPath"`
	CertPath string `yaml:"certPath"`
}

type PluginsConfig struct {
	GrantedCapabilities []string `yaml:"grantedCapabilities"`
}

type RedisConfig struct {
	URL       string `yaml:"url"`
	Namespace string `yaml:"namespace"`
}

type CacheConfig struct {
	TTLMs int64 `yaml:"ttlMs"`
}

type DiscoveryConfig struct {
	Dir string `yaml:"dir"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Config is the full recognized configuration surface (§6, §4.14).
type Config struct {
	Port       int    `yaml:"port"`
	Host       string `yaml:"host"`
	BasePath   string `yaml:"basePath"`
	APIVersion string `yaml:"apiVersion"`
	Env        string `yaml:"-"`

	Timeouts  TimeoutsConfig  `yaml:"timeouts"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Events    EventsConfig    `yaml:"events"`
	HTTP2     HTTP2Config     `yaml:"http2"`
	SSL       SSLConfig       `yaml:"ssl"`
	Plugins   PluginsConfig   `yaml:"plugins"`
	Redis     RedisConfig     `yaml:"redis"`
	Cache     CacheConfig     `yaml:"cache"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Logging   LoggingConfig   `yaml:"logging"`

	WorkspaceRoot  string `yaml:"-"`
	RepoRoot       string `yaml:"-"`
	StateDaemonURL string `yaml:"-"`
}

func defaults(env string) Config {
	cacheTTL := time.Hour
	corsProfile := CORSProd
	if env == "dev" || env == "development" {
		cacheTTL = 10 * time.Minute
		corsProfile = CORSDev
	}

	return Config{
		Port:       8000,
		Host:       "0.0.0.0",
		BasePath:   "/api/v1",
		APIVersion: "v1",
		Env:        env,
		Timeouts: TimeoutsConfig{
			RequestTimeout: 30 * time.Second,
			BodyLimit:      10 << 20,
		},
		CORS: CORSConfig{
			Profile: corsProfile,
		},
		RateLimit: RateLimitConfig{
			Max:        100,
			TimeWindow: time.Minute,
		},
		Events: EventsConfig{
			Registry: RegistryEventsConfig{
				HeaderName: "authorization",
				QueryParam: "access_token",
			},
		},
		Cache: CacheConfig{
			TTLMs: cacheTTL.Milliseconds(),
		},
		Discovery: DiscoveryConfig{
			Dir: "plugins",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds a Config from environment variable defaults, an optional YAML
// overlay at configPath (if it exists), and finally explicit environment
// variable overrides — mirroring the teacher's precedence of file-then-env.
func Load(configPath string) (*Config, error) {
	env := firstNonEmpty(os.Getenv("APP_ENV"), "production")
	cfg := defaults(env)

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, apperr.ConfigError(fmt.Sprintf("parsing config file %s: %v", configPath, err))
			}
		} else if !os.IsNotExist(err) {
			return nil, apperr.ConfigError(fmt.Sprintf("reading config file %s: %v", configPath, err))
		}
	}

	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("API_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := os.Getenv("API_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("API_BASE_PATH"); v != "" {
		cfg.BasePath = v
	}
	if v := os.Getenv("API_VERSION"); v != "" {
		cfg.APIVersion = v
	}
	if v := os.Getenv("PLUGIN_DIR"); v != "" {
		cfg.Discovery.Dir = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		cfg.Logging.Pretty = v == "true"
	}
	if v := os.Getenv("CORS_PROFILE"); v != "" {
		cfg.CORS.Profile = CORSProfile(v)
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORS.Origins = strings.Split(v, ",")
	}
	if v := os.Getenv("SSL_CERT_PATH"); v != "" {
		cfg.SSL.CertPath = v
	}
	if v := os.Getenv("SSL_KEY_PATH"); v != "" {
		cfg.SSL.KeyPath = v
	}
	if v := os.Getenv("EVENTS_REGISTRY_TOKEN"); v != "" {
		cfg.Events.Registry.Token = v
	}

	cfg.WorkspaceRoot = os.Getenv("KB_LABS_WORKSPACE_ROOT")
	cfg.RepoRoot = os.Getenv("KB_LABS_REPO_ROOT")
	cfg.StateDaemonURL = os.Getenv("KB_STATE_DAEMON_URL")
}

func validate(cfg *Config) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return apperr.ConfigError(fmt.Sprintf("invalid port %d", cfg.Port))
	}
	switch cfg.CORS.Profile {
	case CORSDev, CORSPreview, CORSProd:
	default:
		return apperr.ConfigError(fmt.Sprintf("invalid cors.profile %q", cfg.CORS.Profile))
	}
	if (cfg.CORS.Profile == CORSPreview || cfg.CORS.Profile == CORSProd) && len(cfg.CORS.Origins) == 0 {
		// CORS is disabled outright for these profiles per §4.10(b); not fatal.
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// CacheTTL returns the configured discovery-snapshot TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMs) * time.Millisecond
}

// IsDev reports whether APP_ENV names a development environment.
func (c *Config) IsDev() bool {
	return c.Env == "dev" || c.Env == "development"
}
