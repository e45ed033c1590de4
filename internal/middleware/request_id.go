// Package middleware provides the HTTP middleware chain mounted ahead of
// every core-owned and plugin-contributed route.
//
// This file implements request-ID assignment (§4.10(a)): each request is
// tagged with a correlation ID that is echoed on the response header and
// threaded into the envelope's meta.requestId, structured logs, and metrics.
package middleware

import (
	"crypto/rand"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
)

const (
	// RequestIDHeader is the header name carrying the request correlation ID,
	// accepted inbound and always echoed on the response.
	RequestIDHeader = "X-Request-Id"

	// RequestIDKey is the Gin context key the ID is stored under.
	RequestIDKey = "request_id"
)

// newRequestID mints a ULID-style 128-bit token: lexically sortable by
// generation time, which makes log correlation across a mount cycle easier
// than a random UUIDv4 would. crypto/rand.Reader is safe for concurrent use
// across request goroutines, unlike a shared math/rand source.
func newRequestID() string {
	ms := ulid.Timestamp(time.Now())
	id, err := ulid.New(ms, rand.Reader)
	if err != nil {
		return ulid.Make().String()
	}
	return id.String()
}

// RequestID accepts an inbound X-Request-Id header, or generates a fresh
// ULID-style token otherwise, and echoes the chosen value on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = newRequestID()
		}

		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()
	}
}

// GetRequestID retrieves the request ID from the Gin context.
func GetRequestID(c *gin.Context) string {
	if requestID, exists := c.Get(RequestIDKey); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}
