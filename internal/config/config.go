package config

import (
	"time"

	"github.com/spf13/viper"
)

type AuthMode string

const (
	AuthModeNone  AuthMode = "none"  // No authentication required
	AuthModeLocal AuthMode = "local" // Local user database with sessions (default)
)

type StorageBackend string

const (
	StorageBackendLocal StorageBackend = "local" // Files on local disk
	StorageBackendMinio StorageBackend = "minio" // S3-compatible object storage
)

type (
	Config struct {
		HTTP
		Global
		Database
		Storage
		UI
		Covers
		Tasks
		Auth
		Demo
	}

	HTTP struct {
		Port int32
		Host string
	}

	Global struct {
		ShutdownTimeoutInSeconds int
	}

	Database struct {
		Path string
	}

	Storage struct {
		Backend StorageBackend

		// Local backend
		Dir string

		// MinIO backend
		MinioEndpoint  string
		MinioAccessKey string
		MinioSecretKey string
		MinioBucket    string
		MinioUseSSL    bool
	}

	UI struct {
		TemplatesPath string
		StaticPath    string
	}

	Covers struct {
		LookupBaseURL  string        // Google Books volumes endpoint
		LookupTimeout  time.Duration // Per metadata search call
		FetchTimeout   time.Duration // Per thumbnail download
		RenderDPI      int           // Raster resolution for the PDF fallback
		RenderDisabled bool          // Force-disable the PDF fallback even if pdftoppm exists
		SweepSchedule  string        // Cron schedule for the missing-covers sweep; empty disables it
	}

	Tasks struct {
		Enabled           bool
		Workers           int
		MaxRetries        int
		RetryDelay        time.Duration
		TaskTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}

	Demo struct {
		ReadOnly bool // Block all write operations; for public demo deployments
	}

	Auth struct {
		Mode            AuthMode
		SessionSecret   string
		SessionLifetime time.Duration
		BcryptCost      int
		LockoutDuration time.Duration
		SecureCookies   bool // Set to false for local dev without HTTPS
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8288)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)

	// Storage defaults
	v.SetDefault("storage_backend", "local")
	v.SetDefault("storage_dir", DefaultStorageDir)
	v.SetDefault("minio_endpoint", "localhost:9000")
	v.SetDefault("minio_access_key", "")
	v.SetDefault("minio_secret_key", "")
	v.SetDefault("minio_bucket", "kitabu")
	v.SetDefault("minio_use_ssl", false)

	// UI defaults
	v.SetDefault("ui_templates_path", "./templates")
	v.SetDefault("ui_static_path", "./static")

	// Cover resolution defaults
	v.SetDefault("covers_lookup_base_url", DefaultLookupBaseURL)
	v.SetDefault("covers_lookup_timeout", "10s")
	v.SetDefault("covers_fetch_timeout", "10s")
	v.SetDefault("covers_render_dpi", 150)
	v.SetDefault("covers_render_disabled", false)
	v.SetDefault("covers_sweep_schedule", "0 3 * * *") // Nightly at 03:00

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_max_retries", 3)
	v.SetDefault("task_retry_delay", "1m")
	v.SetDefault("task_timeout", "5m")
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	v.SetDefault("demo_read_only", false)

	// Auth defaults
	v.SetDefault("auth_mode", "local")
	v.SetDefault("auth_session_secret", "") // Auto-generated if empty
	v.SetDefault("auth_session_lifetime", "24h")
	v.SetDefault("auth_bcrypt_cost", 12)
	v.SetDefault("auth_lockout_duration", "30m")
	v.SetDefault("auth_secure_cookies", true)

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Storage: Storage{
			Backend:        StorageBackend(v.GetString("STORAGE_BACKEND")),
			Dir:            v.GetString("STORAGE_DIR"),
			MinioEndpoint:  v.GetString("MINIO_ENDPOINT"),
			MinioAccessKey: v.GetString("MINIO_ACCESS_KEY"),
			MinioSecretKey: v.GetString("MINIO_SECRET_KEY"),
			MinioBucket:    v.GetString("MINIO_BUCKET"),
			MinioUseSSL:    v.GetBool("MINIO_USE_SSL"),
		},
		UI: UI{
			TemplatesPath: v.GetString("UI_TEMPLATES_PATH"),
			StaticPath:    v.GetString("UI_STATIC_PATH"),
		},
		Covers: Covers{
			LookupBaseURL:  v.GetString("COVERS_LOOKUP_BASE_URL"),
			LookupTimeout:  v.GetDuration("COVERS_LOOKUP_TIMEOUT"),
			FetchTimeout:   v.GetDuration("COVERS_FETCH_TIMEOUT"),
			RenderDPI:      v.GetInt("COVERS_RENDER_DPI"),
			RenderDisabled: v.GetBool("COVERS_RENDER_DISABLED"),
			SweepSchedule:  v.GetString("COVERS_SWEEP_SCHEDULE"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			MaxRetries:        v.GetInt("TASK_MAX_RETRIES"),
			RetryDelay:        v.GetDuration("TASK_RETRY_DELAY"),
			TaskTimeout:       v.GetDuration("TASK_TIMEOUT"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		Demo: Demo{
			ReadOnly: v.GetBool("DEMO_READ_ONLY"),
		},
		Auth: Auth{
			Mode:            AuthMode(v.GetString("AUTH_MODE")),
			SessionSecret:   v.GetString("AUTH_SESSION_SECRET"),
			SessionLifetime: v.GetDuration("AUTH_SESSION_LIFETIME"),
			BcryptCost:      v.GetInt("AUTH_BCRYPT_COST"),
			LockoutDuration: v.GetDuration("AUTH_LOCKOUT_DURATION"),
			SecureCookies:   v.GetBool("AUTH_SECURE_COOKIES"),
		},
	}
}
