// Package middleware: the envelope writer (§4.10(f)). Success and Failure
// write the success and failure envelopes, with meta.requestId and
// meta.durationMs filled in; EnvelopeWriter translates an error recorded on
// the gin context (apperr.Error, or any other error) into the failure
// envelope when the handler wrote no response. A response the handler wrote
// itself is left as written, without an envelope.
package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kb-labs/plugin-gateway/internal/apperr"
	"github.com/kb-labs/plugin-gateway/internal/logger"
)

const startTimeKey = "__envelope_start"

// Meta is the envelope's meta object (§3 Envelope).
type Meta struct {
	RequestID  string `json:"requestId"`
	DurationMs int64  `json:"durationMs"`
	APIVersion string `json:"apiVersion"`
}

// Envelope is the standard success/failure response wrapper.
type Envelope struct {
	OK    bool                 `json:"ok"`
	Data  interface{}          `json:"data,omitempty"`
	Error *apperr.EnvelopeError `json:"error,omitempty"`
	Meta  Meta                  `json:"meta"`
}

func buildMeta(c *gin.Context, apiVersion string) Meta {
	duration := int64(0)
	if start, ok := c.Get(startTimeKey); ok {
		if t, ok := start.(time.Time); ok {
			duration = time.Since(t).Milliseconds()
		}
	}
	return Meta{
		RequestID:  GetRequestID(c),
		DurationMs: duration,
		APIVersion: apiVersion,
	}
}

// EnvelopeWriter starts the per-request clock used for meta.durationMs and,
// after the handler chain runs, maps any error recorded on the Gin context
// into a failure envelope. Successful responses that already wrote their own
// body (via c.JSON et al.) are left untouched — handlers that want the
// automatic wrapping call Success/Failure below instead.
func EnvelopeWriter(apiVersion string) gin.HandlerFunc {
	log := logger.Dispatch()

	return func(c *gin.Context) {
		c.Set(startTimeKey, time.Now())

		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		appErr, ok := err.(*apperr.Error)
		if !ok {
			appErr = apperr.InternalError(err)
		}

		if appErr.StatusCode >= 500 {
			log.Error().Str("code", appErr.Code).Str("details", appErr.Details).Msg(appErr.Message)
		} else {
			log.Warn().Str("code", appErr.Code).Msg(appErr.Message)
		}

		envErr := appErr.ToEnvelopeError()
		c.JSON(appErr.StatusCode, Envelope{
			OK:    false,
			Error: &envErr,
			Meta:  buildMeta(c, apiVersion),
		})
	}
}

// Success writes the standard success envelope.
func Success(c *gin.Context, apiVersion string, status int, data interface{}) {
	c.JSON(status, Envelope{OK: true, Data: data, Meta: buildMeta(c, apiVersion)})
}

// Failure writes the standard failure envelope for a given error, recording
// it on the Gin context so downstream logging middleware sees it too.
func Failure(c *gin.Context, apiVersion string, err error) {
	appErr, ok := err.(*apperr.Error)
	if !ok {
		appErr = apperr.InternalError(err)
	}
	c.Error(appErr)
	envErr := appErr.ToEnvelopeError()
	c.AbortWithStatusJSON(appErr.StatusCode, Envelope{
		OK:    false,
		Error: &envErr,
		Meta:  buildMeta(c, apiVersion),
	})
}

// Recovery recovers from panics in any handler and converts them into an
// InternalError failure envelope rather than letting the connection drop.
func Recovery(apiVersion string) gin.HandlerFunc {
	log := logger.Dispatch()

	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("recovered from panic")
				if !c.Writer.Written() {
					Failure(c, apiVersion, apperr.Wrap(apperr.CodeInternalError, http.StatusInternalServerError,
						"internal server error", nil))
				}
				c.Abort()
			}
		}()

		c.Next()
	}
}
