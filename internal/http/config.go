package http

import (
	"github.com/kitabu-club/kitabu/internal/auth"
	"github.com/kitabu-club/kitabu/internal/catalog"
	"github.com/kitabu-club/kitabu/internal/config"
	"github.com/kitabu-club/kitabu/internal/database"
	"github.com/kitabu-club/kitabu/internal/database/audit"
	"github.com/kitabu-club/kitabu/internal/database/profiles"
	"github.com/kitabu-club/kitabu/internal/fulfillment"
	"github.com/kitabu-club/kitabu/internal/tasks"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router. This replaces the long parameter list
// in NewRouter for better maintainability.
type RouterConfig struct {
	// Core dependencies
	Database    *database.Database
	Catalog     *catalog.Service
	Fulfillment *fulfillment.Service
	Profiles    *profiles.Repository
	Audit       *audit.Repository

	// Authentication
	AuthService    *auth.Service
	AuthMiddleware *auth.Middleware
	SessionManager *auth.SessionManager
	AuthConfig     config.Auth
	CSRFSecret     []byte
	SecureCookies  bool

	// UI paths
	TemplatesPath string
	StaticPath    string

	// Task queue client (optional)
	TaskClient *tasks.Client

	// Read-only demo mode
	ReadOnly bool

	// Application info
	Version string
}
