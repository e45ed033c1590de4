// Package platform implements Platform Services (C13): a dependency-
// injected capability bundle (Logger, Cache, Storage, LLM, Analytics,
// EventBus) threaded through constructors rather than reached via globals
// (§9 "global platform singleton" re-architecture note). Storage, LLM, and
// Analytics are documented interfaces only — concrete production backends
// are out of core scope per §1 — matching the teacher's adapter-layer
// pattern of DI'd capability interfaces.
package platform

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/kb-labs/plugin-gateway/internal/cache"
	"github.com/kb-labs/plugin-gateway/internal/events"
)

// Logger is a thin capability wrapper over zerolog.Logger.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}

type zerologLogger struct {
	log zerolog.Logger
}

func (z zerologLogger) withFields(e *zerolog.Event, fields map[string]interface{}) *zerolog.Event {
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	return e
}

func (z zerologLogger) Info(msg string, fields map[string]interface{}) {
	z.withFields(z.log.Info(), fields).Msg(msg)
}

func (z zerologLogger) Warn(msg string, fields map[string]interface{}) {
	z.withFields(z.log.Warn(), fields).Msg(msg)
}

func (z zerologLogger) Error(msg string, err error, fields map[string]interface{}) {
	z.withFields(z.log.Error().Err(err), fields).Msg(msg)
}

// NewLogger adapts a zerolog.Logger into the platform Logger capability.
func NewLogger(l zerolog.Logger) Logger {
	return zerologLogger{log: l}
}

// Cache is the narrow capability interface Mount/Dispatch are granted — the
// Redis-backed internal/cache.Cache already satisfies this interface.
type Cache interface {
	Get(ctx context.Context, key string, target interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Storage is a documented capability interface; no concrete production
// backend ships with the core (§1 Non-goals / out-of-scope collaborators).
type Storage interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// LLM is a documented capability interface for the optional Q&A proxy
// endpoint (§6 GET {basePath}/plugins/:id/ask).
type LLM interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// Analytics is a documented capability interface for event sinks external
// to the core.
type Analytics interface {
	Track(ctx context.Context, event string, properties map[string]interface{})
}

// Services bundles every platform capability, constructed once in the
// server lifecycle (C12) and threaded through Mount/Dispatch constructors.
type Services struct {
	Logger    Logger
	Cache     Cache
	Storage   Storage
	LLM       LLM
	Analytics Analytics
	EventBus  *events.Bus
}

// New builds a Services bundle. cacheImpl may be nil if Redis is
// unconfigured — callers must handle a nil Cache/Storage/LLM/Analytics as
// "capability absent" (e.g. the Q&A proxy route is not bound when LLM is nil).
func New(log zerolog.Logger, cacheImpl *cache.Cache, bus *events.Bus) *Services {
	var c Cache
	if cacheImpl != nil {
		c = cacheImpl
	}
	return &Services{
		Logger:   NewLogger(log),
		Cache:    c,
		EventBus: bus,
	}
}
