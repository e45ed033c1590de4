// Package middleware: rate limiting (§4.10(c)). Token-bucket per client IP.
// RouteRateLimiter keeps separate per-route buckets, but the server's chain
// wires only the global per-IP limiter: a plugin's RestRoute.rateLimit is
// not applied to its mounted routes.
package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func rateLimitedResponse(c *gin.Context, limit rate.Limit, retryAfter time.Duration) {
	c.Header("X-RateLimit-Limit", strconv.FormatFloat(float64(limit), 'f', -1, 64))
	c.Header("X-RateLimit-Remaining", "0")
	c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	c.JSON(http.StatusTooManyRequests, gin.H{
		"ok": false,
		"error": gin.H{
			"code":    "RATE_LIMITED",
			"message": "too many requests",
		},
		"meta": gin.H{
			"requestId": GetRequestID(c),
		},
	})
	c.Abort()
}

// RateLimiter implements per-client-IP rate limiting using a token bucket.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
	cleanup  time.Duration
}

// NewRateLimiter creates a rate limiter accepting requestsPerSecond with the
// given burst. A background routine drops all per-IP buckets at once
// whenever more than 10000 are held.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		cleanup:  CleanupInterval,
	}

	go rl.cleanupRoutine()

	return rl
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[key]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
		rl.mu.Unlock()
	}

	return limiter
}

func (rl *RateLimiter) cleanupRoutine() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		if len(rl.limiters) > 10000 {
			rl.limiters = make(map[string]*rate.Limiter)
		}
		rl.mu.Unlock()
	}
}

// Middleware returns a Gin middleware that rate limits requests by client IP.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := rl.getLimiter(c.ClientIP())

		if !limiter.Allow() {
			rateLimitedResponse(c, rl.rate, time.Second)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatFloat(float64(rl.rate), 'f', -1, 64))
		c.Next()
	}
}

// RouteRateLimiter implements per-(route, client-IP) rate limiting for a
// route whose manifest declares a rate-limit override distinct from the
// server's global bucket. Keyed by method+path so two plugins mounting the
// same path under different base paths don't share a bucket.
type RouteRateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
}

// NewRouteRateLimiter creates an empty per-route limiter registry.
func NewRouteRateLimiter() *RouteRateLimiter {
	return &RouteRateLimiter{limiters: make(map[string]*rate.Limiter)}
}

// Middleware rate-limits a specific mounted route at requestsPerSecond with
// the given burst, independent of the global per-IP limiter.
func (rrl *RouteRateLimiter) Middleware(routeKey string, requestsPerSecond float64, burst int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := routeKey + ":" + c.ClientIP()

		rrl.mu.RLock()
		limiter, exists := rrl.limiters[key]
		rrl.mu.RUnlock()

		if !exists {
			rrl.mu.Lock()
			limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
			rrl.limiters[key] = limiter
			rrl.mu.Unlock()
		}

		if !limiter.Allow() {
			rateLimitedResponse(c, rate.Limit(requestsPerSecond), time.Second)
			return
		}

		c.Next()
	}
}
