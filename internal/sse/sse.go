// Package sse implements the SSE Endpoint (C5): GET {basePath}/events/registry.
// Built on github.com/gin-gonic/gin and its transitive
// github.com/gin-contrib/sse for wire-format framing, promoted here to a
// direct, exercised dependency per the gateway's own CORS/handshake
// conventions.
package sse

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	ginsse "github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kb-labs/plugin-gateway/internal/events"
	"github.com/kb-labs/plugin-gateway/internal/logger"
	"github.com/kb-labs/plugin-gateway/internal/readiness"
	"github.com/kb-labs/plugin-gateway/internal/registry"
)

// AuthConfig is the optional SSE token-gate configuration (§4.5).
type AuthConfig struct {
	Token      string
	HeaderName string
	QueryParam string
}

func (a AuthConfig) required() bool { return a.Token != "" }

func extractToken(c *gin.Context, a AuthConfig) string {
	header := a.HeaderName
	if header == "" {
		header = "authorization"
	}
	if v := c.GetHeader(header); v != "" {
		if strings.HasPrefix(strings.ToLower(v), "bearer ") {
			return v[7:]
		}
		return v
	}
	param := a.QueryParam
	if param == "" {
		param = "access_token"
	}
	return c.Query(param)
}

// Handler builds the gin.HandlerFunc for GET {basePath}/events/registry.
func Handler(bus *events.Bus, snapshots func() *registry.Snapshot, readinessState func() readiness.Snapshot, auth AuthConfig) gin.HandlerFunc {
	log := logger.SSE()

	return func(c *gin.Context) {
		if auth.required() {
			token := extractToken(c, auth)
			if token != auth.Token {
				c.JSON(http.StatusUnauthorized, gin.H{
					"ok": false,
					"error": gin.H{
						"code":    "UNAUTHORIZED",
						"message": "invalid or missing SSE token",
					},
				})
				return
			}
		}

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache, no-transform")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.WriteHeaderNow()

		if _, err := c.Writer.WriteString(": connected\n\n"); err != nil {
			return
		}
		c.Writer.Flush()

		connID := uuid.NewString()
		log.Info().Str("conn_id", connID).Str("remote", c.ClientIP()).Msg("sse connection opened")

		ch, unsubscribe := bus.Subscribe()
		defer func() {
			unsubscribe()
			log.Info().Str("conn_id", connID).Msg("sse connection closed")
		}()

		// Initial replay (§4.5 Lifecycle, §8-I4): registry then health.
		snap := snapshots()
		if err := writeEvent(c, events.RegistryEvent{
			Type:     events.TypeRegistry,
			Rev:      snap.Rev,
			Partial:  snap.Partial,
			Stale:    snap.Stale,
			Checksum: snap.Checksum,
		}); err != nil {
			return
		}

		readySnap := readinessState()
		if err := writeEvent(c, events.HealthEvent{
			Type:            events.TypeHealth,
			Status:          statusFor(readySnap),
			Ts:              time.Now().UTC().Format(time.RFC3339),
			Ready:           readySnap.Ready(),
			Reason:          string(readySnap.ResolveReason()),
			RegistryPartial: readySnap.RegistryPartial,
			RegistryStale:   readySnap.RegistryStale,
			RegistryLoaded:  readySnap.RegistryLoaded,
		}); err != nil {
			return
		}
		c.Writer.Flush()

		notify := c.Request.Context().Done()

		for {
			select {
			case <-notify:
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if err := writeEvent(c, evt); err != nil {
					log.Warn().Err(err).Msg("sse write failed, tearing down stream")
					return
				}
				c.Writer.Flush()
			}
		}
	}
}

func statusFor(snap readiness.Snapshot) string {
	if snap.Ready() {
		return "healthy"
	}
	return "degraded"
}

func writeEvent(c *gin.Context, evt events.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return ginsse.Encode(c.Writer, ginsse.Event{
		Event: evt.EventName(),
		Data:  string(data),
	})
}

// CORSOrigins returns the dev allow-list for the SSE endpoint when no
// explicit origins are configured (§4.5 CORS).
func CORSOrigins(configured []string) []string {
	if len(configured) > 0 {
		return configured
	}
	return []string{"http://localhost:3000", "http://localhost:5173"}
}
