package http

import (
	"html/template"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kitabu-club/kitabu/internal/auth"
	"github.com/kitabu-club/kitabu/internal/demo"
	"github.com/kitabu-club/kitabu/internal/entities"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Uses RouterConfig to receive all dependencies, improving testability
// and reducing parameter count.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Apply security headers to all responses
	router.Use(auth.SecurityHeadersMiddleware())

	// Read-only demo mode blocks writes before any handler runs
	router.Use(demo.NewMiddleware(cfg.ReadOnly).Handler())

	// Apply CSRF protection if auth is enabled
	// CSRF must run before session so that session context is preserved
	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies))
	}

	// Session runs after CSRF so session context isn't overwritten by
	// CSRF's request replacement
	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.SessionLoadSave())
	}

	if cfg.AuthMiddleware != nil {
		router.Use(cfg.AuthMiddleware.Handler())
	} else {
		// No auth - inject default user ID
		router.Use(func(c *gin.Context) {
			c.Set(auth.ContextKeyUserID, auth.DefaultUserID)
			c.Set(auth.ContextKeyAuthType, auth.AuthTypeNone)
			c.Next()
		})
	}

	// Inject auth data for templates
	router.Use(AuthContextMiddleware(cfg.AuthConfig.Mode))

	if cfg.TemplatesPath != "" {
		funcMap := template.FuncMap{
			"whatsappLink": func(p entities.Profile) string {
				return p.WhatsAppLink("")
			},
			"formatDate": func(t time.Time) string {
				return t.Format("2 Jan 2006")
			},
		}
		// A deployment without templates runs as a JSON-only API.
		tmpl, err := template.New("").Funcs(funcMap).ParseGlob(cfg.TemplatesPath + "/*.html")
		if err == nil {
			router.SetHTMLTemplate(tmpl)
		}
	}
	if cfg.StaticPath != "" {
		router.Static("/static", cfg.StaticPath)
	}

	// Register auth routes if auth service is available
	if cfg.AuthService != nil && cfg.AuthService.IsAuthEnabled() {
		authController, err := auth.NewAuthController(cfg.AuthService, cfg.SessionManager, cfg.TemplatesPath, cfg.AuthConfig)
		if err == nil {
			authController.RegisterRoutes(router)
		}
	}

	health := NewHealthController(cfg.Database, cfg.Version)
	booksController := NewBooksController(cfg.Catalog, cfg.Audit)
	requestsController := NewRequestsController(cfg.Fulfillment, cfg.Profiles, cfg.Audit)
	profilesController := NewProfilesController(cfg.Profiles)
	adminController := NewAdminController(cfg.Fulfillment, cfg.Audit, cfg.TaskClient)

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// Catalog endpoints
	router.GET("/api/books", booksController.GetAllBooks)
	router.POST("/api/books", booksController.Upload)
	router.GET("/api/books/:id", booksController.GetBook)
	router.GET("/api/books/:id/download", booksController.Download)
	router.GET("/api/books/:id/cover", booksController.Cover)

	// Request lifecycle endpoints
	router.GET("/api/requests", requestsController.CommunityRequests)
	router.POST("/api/requests", requestsController.Create)
	router.GET("/api/requests/mine", requestsController.MyRequests)
	router.GET("/api/requests/:id", requestsController.GetRequest)
	router.POST("/api/requests/:id/fulfill", requestsController.FulfillViaUpload)

	// Own profile endpoints
	router.GET("/api/profile", profilesController.GetMyProfile)
	router.POST("/api/profile", profilesController.UpdateMyProfile)

	// Moderation endpoints; admin role is enforced when auth is enabled
	admin := router.Group("/api/admin")
	if cfg.AuthMiddleware != nil {
		admin.Use(cfg.AuthMiddleware.RequireRole(entities.UserRoleAdmin))
	}
	admin.GET("/requests", adminController.ListRequests)
	admin.POST("/requests/bulk-fulfill", adminController.BulkFulfill)
	admin.POST("/requests/:id/fulfill", adminController.FulfillWithExisting)
	admin.POST("/requests/:id/reject", adminController.Reject)
	admin.POST("/requests/:id/contact", adminController.Contact)
	admin.GET("/profiles/:id", profilesController.GetProfile)
	admin.POST("/profiles/:id/deactivate", profilesController.DeactivateProfile)
	admin.POST("/covers/resolve", adminController.ResolveCovers)
	admin.GET("/audit", adminController.AuditEvents)

	return router
}
