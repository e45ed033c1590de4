// Package middleware provides the HTTP middleware chain mounted ahead of
// every core-owned and plugin-contributed route.
//
// This file restricts incoming requests to commonly-used HTTP methods,
// rejecting TRACE/TRACK/CONNECT and anything else outside the standard verb
// set before a request reaches routing or dispatch.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kb-labs/plugin-gateway/internal/apperr"
)

var allowedHTTPMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
	http.MethodHead:    true,
}

// AllowedHTTPMethods rejects any request whose method isn't in the standard
// GET/POST/PUT/PATCH/DELETE/OPTIONS/HEAD set.
func AllowedHTTPMethods(apiVersion string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !allowedHTTPMethods[c.Request.Method] {
			c.Header("Allow", "GET, POST, PUT, PATCH, DELETE, OPTIONS, HEAD")
			Failure(c, apiVersion, apperr.BadRequest("method "+c.Request.Method+" is not allowed"))
			c.Abort()
			return
		}
		c.Next()
	}
}
