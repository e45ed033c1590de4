package platform

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/kb-labs/plugin-gateway/internal/events"
)

func TestNew_NilCacheLeavesCapabilityAbsent(t *testing.T) {
	svc := New(zerolog.Nop(), nil, events.New())
	if svc.Cache != nil {
		t.Error("expected Cache capability to be absent when no cache is configured")
	}
	if svc.Logger == nil {
		t.Error("expected Logger capability to always be present")
	}
}

func TestZerologLogger_DoesNotPanicOnNilErrOrFields(t *testing.T) {
	log := NewLogger(zerolog.Nop())
	log.Info("hello", nil)
	log.Warn("hello", map[string]interface{}{"k": "v"})
	log.Error("boom", errors.New("x"), nil)
}
