package entrypoint

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kitabu-club/kitabu/internal/auth"
	"github.com/kitabu-club/kitabu/internal/catalog"
	"github.com/kitabu-club/kitabu/internal/config"
	"github.com/kitabu-club/kitabu/internal/covers"
	"github.com/kitabu-club/kitabu/internal/database"
	auditrepo "github.com/kitabu-club/kitabu/internal/database/audit"
	booksrepo "github.com/kitabu-club/kitabu/internal/database/books"
	"github.com/kitabu-club/kitabu/internal/database/profiles"
	requestsrepo "github.com/kitabu-club/kitabu/internal/database/requests"
	"github.com/kitabu-club/kitabu/internal/fulfillment"
	http_controllers "github.com/kitabu-club/kitabu/internal/http"
	"github.com/kitabu-club/kitabu/internal/scheduler"
	"github.com/kitabu-club/kitabu/internal/storage"
	"github.com/kitabu-club/kitabu/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		// service connections
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown
	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Call shutdown callback first (e.g., to stop task queue)
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

// NewFileStore builds the configured storage backend.
func NewFileStore(cfg config.Storage) (storage.FileStore, error) {
	switch cfg.Backend {
	case config.StorageBackendMinio:
		return storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	case config.StorageBackendLocal, "":
		return storage.NewLocalStore(cfg.Dir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// NewCoverResolver wires the Google Books lookup and the PDF page-render
// fallback. The fallback is skipped when pdftoppm is not installed or
// rendering is disabled.
func NewCoverResolver(cfg config.Covers, files storage.FileStore) *covers.Resolver {
	searcher := covers.NewGoogleBooksClient(cfg.LookupBaseURL, cfg.LookupTimeout)

	var renderer covers.PageRenderer
	if cfg.RenderDisabled {
		log.Printf("Cover rendering: disabled by configuration")
	} else if popplerRenderer, err := covers.NewPopplerRenderer(); err != nil {
		log.Printf("Cover rendering: unavailable (%v)", err)
	} else {
		renderer = popplerRenderer
	}

	return covers.NewResolver(searcher, renderer, files, cfg.FetchTimeout, cfg.RenderDPI)
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting Kitabu v%s", version)

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	// Initialize file storage
	files, err := NewFileStore(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	log.Printf("Storage backend: %s", cfg.Storage.Backend)

	// Repositories
	bookRepo := booksrepo.NewRepository(db.DB)
	requestRepo := requestsrepo.NewRepository(db.DB)
	profileRepo := profiles.NewRepository(db.DB)
	auditRepo := auditrepo.NewRepository(db.DB)

	// Cover resolution and catalog
	resolver := NewCoverResolver(cfg.Covers, files)
	catalogService := catalog.NewService(bookRepo, files, resolver)
	fulfillmentService := fulfillment.NewService(requestRepo, catalogService)

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskCfg := tasks.Config{
			Workers:           cfg.Tasks.Workers,
			MaxRetries:        cfg.Tasks.MaxRetries,
			RetryDelay:        cfg.Tasks.RetryDelay,
			TaskTimeout:       cfg.Tasks.TaskTimeout,
			ReleaseAfter:      cfg.Tasks.ReleaseAfter,
			CleanupInterval:   cfg.Tasks.CleanupInterval,
			RetentionDuration: cfg.Tasks.RetentionDuration,
		}

		taskClient, err = tasks.NewClient(cfg.Database.Path, taskCfg)
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		// Register task queues
		taskClient.Register(
			tasks.NewResolveCoverQueue(catalogService),
			tasks.NewResolveMissingCoversQueue(catalogService),
			tasks.NewCleanupAuditEventsQueue(auditRepo),
		)

		// Start task workers in background
		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
	}

	// Nightly retry for books that missed cover resolution
	sweepScheduler := scheduler.NewCoverSweepScheduler(catalogService, cfg.Covers.SweepSchedule)
	if err := sweepScheduler.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start cover sweep scheduler: %v", err)
	}

	// Initialize authentication if enabled
	var authService *auth.Service
	var authMiddleware *auth.Middleware
	var sessionManager *auth.SessionManager
	var csrfSecret []byte

	if cfg.Auth.Mode == config.AuthModeLocal {
		log.Printf("Authentication mode: local")

		authService = auth.NewService(db.DB, profileRepo, cfg.Auth)

		// Get underlying SQL DB for session store
		sqlDB, err := db.DB.DB()
		if err != nil {
			log.Fatalf("Failed to get SQL DB for sessions: %v", err)
		}

		sessionManager, err = auth.NewSessionManager(sqlDB, cfg.Auth)
		if err != nil {
			log.Fatalf("Failed to initialize session manager: %v", err)
		}

		authMiddleware = auth.NewMiddleware(authService, sessionManager, cfg.Auth)

		// Generate or use configured CSRF secret
		if cfg.Auth.SessionSecret != "" {
			csrfSecret, err = hex.DecodeString(cfg.Auth.SessionSecret)
			if err != nil {
				// Not hex, use as raw bytes
				csrfSecret = []byte(cfg.Auth.SessionSecret)
			}
		} else {
			secret, err := auth.GenerateSessionSecret()
			if err != nil {
				log.Fatalf("Failed to generate CSRF secret: %v", err)
			}
			csrfSecret, _ = hex.DecodeString(secret)
			log.Printf("Generated session secret (set AUTH_SESSION_SECRET to persist)")
		}

		hasUsers, _ := authService.HasUsers()
		if !hasUsers {
			log.Printf("No accounts yet. The first signup at /signup becomes the administrator.")
		}
	} else {
		log.Printf("Authentication mode: none (no authentication required)")
	}

	// Build router configuration with all dependencies
	routerCfg := http_controllers.RouterConfig{
		Database:       db,
		Catalog:        catalogService,
		Fulfillment:    fulfillmentService,
		Profiles:       profileRepo,
		Audit:          auditRepo,
		AuthService:    authService,
		AuthMiddleware: authMiddleware,
		SessionManager: sessionManager,
		AuthConfig:     cfg.Auth,
		CSRFSecret:     csrfSecret,
		SecureCookies:  cfg.Auth.SecureCookies,
		TemplatesPath:  cfg.UI.TemplatesPath,
		StaticPath:     cfg.UI.StaticPath,
		TaskClient:     taskClient,
		ReadOnly:       cfg.Demo.ReadOnly,
		Version:        version,
	}

	if cfg.Demo.ReadOnly {
		log.Println("Read-only demo mode enabled: write operations are blocked")
	}

	router := http_controllers.NewRouter(routerCfg)

	// Shutdown callback for graceful cleanup
	onShutdown := func(ctx context.Context) {
		sweepScheduler.Stop()
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}
