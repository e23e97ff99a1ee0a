// Package demo provides a read-only mode for public demonstration
// deployments: browsing the catalog works, but uploads, requests and admin
// actions are blocked.
package demo

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Middleware blocks write operations in read-only mode. GET requests are
// always allowed; a small allowlist keeps the login flow working.
type Middleware struct {
	enabled bool
}

// NewMiddleware creates a read-only mode middleware.
func NewMiddleware(enabled bool) *Middleware {
	return &Middleware{enabled: enabled}
}

// IsEnabled returns whether read-only mode is active.
func (m *Middleware) IsEnabled() bool {
	return m.enabled
}

// Handler returns a Gin middleware that blocks write operations.
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.enabled {
			c.Next()
			return
		}

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		if m.isAllowedPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		m.respondBlocked(c)
	}
}

// isAllowedPath checks if a path accepts writes even in read-only mode.
// Intentionally restrictive: only the session endpoints pass through.
func (m *Middleware) isAllowedPath(path string) bool {
	allowedPaths := []string{
		"/login",
		"/logout",
	}

	for _, allowed := range allowedPaths {
		if strings.HasPrefix(path, allowed) {
			return true
		}
	}
	return false
}

func (m *Middleware) respondBlocked(c *gin.Context) {
	message := "This action is disabled in read-only demo mode"

	if strings.Contains(c.GetHeader("Accept"), "application/json") ||
		strings.HasPrefix(c.Request.URL.Path, "/api/") {
		c.JSON(http.StatusForbidden, gin.H{
			"error":     message,
			"demo_mode": true,
		})
		c.Abort()
		return
	}

	c.String(http.StatusForbidden, message)
	c.Abort()
}
