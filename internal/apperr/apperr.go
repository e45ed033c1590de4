// Package apperr implements the error taxonomy of §7: typed errors carrying
// a statusCode/code/message triple that the envelope writer (internal/middleware)
// maps onto the standard failure envelope, replacing ad hoc
// gin.H{"error": ...} literals so arbitrary plugin-contributed handlers can
// fail in a uniform, machine-readable way.
package apperr

import (
	"fmt"
	"net/http"
)

// Kind groups errors by the stage of the pipeline that raised them.
type Kind string

const (
	KindConfig     Kind = "config"     // invalid config, unreadable file — fatal at startup
	KindDiscovery  Kind = "discovery"  // discovery provider failure or corrupted snapshot
	KindValidation Kind = "validation" // manifest structural or handler-presence failure
	KindMount      Kind = "mount"      // backend refused to register a route
	KindDispatch   Kind = "dispatch"   // request-time failure, see the Code constants below
	KindStream     Kind = "stream"     // SSE write failure
)

// Machine-readable error codes. DispatchError is subdivided per §7 into the
// seven codes below; the remaining kinds each carry one code of their own.
const (
	CodeNotFound            = "NOT_FOUND"
	CodeBadRequest           = "BAD_REQUEST"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeRateLimited          = "RATE_LIMITED"
	CodeRequestTimeout       = "REQUEST_TIMEOUT"
	CodeBackendUnavailable   = "BACKEND_UNAVAILABLE"
	CodeInternalError        = "INTERNAL_ERROR"
	CodeConfigError          = "CONFIG_ERROR"
	CodeDiscoveryError       = "DISCOVERY_ERROR"
	CodeValidationError      = "VALIDATION_ERROR"
	CodeMountError           = "MOUNT_ERROR"
	CodeStreamError          = "STREAM_ERROR"
)

// Error is a typed application error carrying everything the envelope writer
// needs to map it onto an HTTP response.
type Error struct {
	Kind       Kind
	Code       string
	Message    string
	Details    string
	StatusCode int
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// EnvelopeError is the {code, message, details?} shape embedded in a failure
// envelope (§3 Envelope).
type EnvelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ToEnvelopeError converts the error to the envelope's error sub-object.
func (e *Error) ToEnvelopeError() EnvelopeError {
	return EnvelopeError{Code: e.Code, Message: e.Message, Details: e.Details}
}

func newError(kind Kind, code string, status int, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message, StatusCode: status}
}

// --- DispatchError constructors (§7.5) ---

func NotFound(resource string) *Error {
	return newError(KindDispatch, CodeNotFound, http.StatusNotFound, fmt.Sprintf("%s not found", resource))
}

func BadRequest(message string) *Error {
	return newError(KindDispatch, CodeBadRequest, http.StatusBadRequest, message)
}

func Unauthorized(message string) *Error {
	return newError(KindDispatch, CodeUnauthorized, http.StatusUnauthorized, message)
}

func RateLimited(message string) *Error {
	return newError(KindDispatch, CodeRateLimited, http.StatusTooManyRequests, message)
}

func Timeout(message string) *Error {
	return newError(KindDispatch, CodeRequestTimeout, http.StatusGatewayTimeout, message)
}

func BackendUnavailable(dependency string) *Error {
	return newError(KindDispatch, CodeBackendUnavailable, http.StatusServiceUnavailable,
		fmt.Sprintf("%s is currently unavailable", dependency))
}

func InternalError(err error) *Error {
	e := newError(KindDispatch, CodeInternalError, http.StatusInternalServerError, "internal server error")
	if err != nil {
		e.Details = err.Error()
	}
	return e
}

// --- Non-dispatch kinds ---

// ConfigError is fatal at startup; the server surfaces it at shutdown.
func ConfigError(message string) *Error {
	return newError(KindConfig, CodeConfigError, http.StatusInternalServerError, message)
}

// DiscoveryError is non-fatal: the core continues with the last-good
// snapshot, if any, and readiness reflects the degradation.
func DiscoveryError(message string) *Error {
	return newError(KindDiscovery, CodeDiscoveryError, http.StatusInternalServerError, message)
}

// ValidationError is per-route recoverable; the offending route is dropped,
// never fatal to sibling routes.
func ValidationError(message string) *Error {
	return newError(KindValidation, CodeValidationError, http.StatusBadRequest, message)
}

// MountError records a backend's refusal to register a route.
func MountError(message string) *Error {
	return newError(KindMount, CodeMountError, http.StatusInternalServerError, message)
}

// StreamError models an SSE write failure; the stream is torn down silently
// and this value is logged only, never written to the (already-upgraded)
// response.
func StreamError(message string) *Error {
	return newError(KindStream, CodeStreamError, 0, message)
}

// Wrap builds a dispatch-kind Error from an arbitrary Go error. The error's
// text is kept in Details, which the failure envelope passes to the client
// unredacted.
func Wrap(code string, status int, message string, err error) *Error {
	e := newError(KindDispatch, code, status, message)
	if err != nil {
		e.Details = err.Error()
	}
	return e
}
