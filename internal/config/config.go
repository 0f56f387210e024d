// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// ErrInsecureProductionConfig is returned when production runs without secure cookies.
var ErrInsecureProductionConfig = errors.New("production requires SESSION_COOKIE_SECURE=true")

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	AppPort     int    `env:"APP_PORT" envDefault:"8080"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"false"`

	// Site identity used in templates, mail and the sitemap
	SiteName string `env:"SITE_NAME" envDefault:"MyFreeHousePlans"`
	SiteURL  string `env:"SITE_URL" envDefault:"http://localhost:8080"`

	// Database (PostgreSQL)
	DatabaseURL       string        `env:"DATABASE_URL,required,notEmpty"`
	DBMaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns        int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`

	// Cache, sessions and the request log stream (Redis)
	RedisURL          string        `env:"REDIS_URL,required,notEmpty"`
	RedisPoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	RedisMinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	RedisPoolTimeout  time.Duration `env:"REDIS_POOL_TIMEOUT" envDefault:"4s"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Pagination
	PlansPerPage     int `env:"PLANS_PER_PAGE" envDefault:"12"`
	OrdersPerPage    int `env:"ORDERS_PER_PAGE" envDefault:"20"`
	BlogPostsPerPage int `env:"BLOG_POSTS_PER_PAGE" envDefault:"9"`

	// Request body limits in bytes
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
	MaxUploadSize      int64 `env:"MAX_UPLOAD_SIZE" envDefault:"16777216"`

	// Uploads. Images are public, plan PDFs live in the protected folder.
	UploadDir               string   `env:"UPLOAD_DIR" envDefault:"uploads"`
	ProtectedUploadDir      string   `env:"PROTECTED_UPLOAD_DIR" envDefault:"protected_uploads"`
	AllowedUploadExtensions []string `env:"ALLOWED_UPLOAD_EXTENSIONS" envSeparator:"," envDefault:"png,jpg,jpeg,gif,webp,pdf,dwg,doc,docx"`

	// Extra img-src origins for the Content-Security-Policy
	ImageSources []string `env:"CSP_IMAGE_SOURCES" envSeparator:","`

	// Admin sessions
	SessionTTL          time.Duration `env:"SESSION_TTL" envDefault:"12h"`
	SessionCookieSecure bool          `env:"SESSION_COOKIE_SECURE" envDefault:"false"`

	// Bootstrap admin, created at startup when set
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	// Mail (SMTP). An empty server disables delivery.
	MailServer        string `env:"MAIL_SERVER" envDefault:"smtp.gmail.com"`
	MailPort          int    `env:"MAIL_PORT" envDefault:"587"`
	MailUseTLS        bool   `env:"MAIL_USE_TLS" envDefault:"true"`
	MailUsername      string `env:"MAIL_USERNAME"`
	MailPassword      string `env:"MAIL_PASSWORD"`
	MailDefaultSender string `env:"MAIL_DEFAULT_SENDER"`

	// Visit tracking reporter
	VisitTrackingEnabled  bool          `env:"VISIT_TRACKING_ENABLED" envDefault:"false"`
	VisitTrackingAPI      string        `env:"VISIT_TRACKING_API"`
	VisitTrackingInterval time.Duration `env:"VISIT_TRACKING_INTERVAL" envDefault:"1800s"`
	VisitTrackingSecret   string        `env:"VISIT_TRACKING_SECRET"`

	// Gumroad sale ping shared secret
	GumroadWebhookToken string `env:"GUMROAD_WEBHOOK_TOKEN"`

	// Rate limiting
	RateLimitEnabled        bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitContactPerHour int  `env:"RATE_LIMIT_CONTACT_PER_HOUR" envDefault:"5"`
	RateLimitLoginPerMinute int  `env:"RATE_LIMIT_LOGIN_PER_MINUTE" envDefault:"10"`
	RateLimitAPIPerMinute   int  `env:"RATE_LIMIT_API_PER_MINUTE" envDefault:"120"`

	// Cache
	PlanCacheTTL      time.Duration `env:"PLAN_CACHE_TTL" envDefault:"5m"`
	ViewFlushInterval time.Duration `env:"VIEW_FLUSH_INTERVAL" envDefault:"30s"`

	// Request logs (Redis stream -> request_logs table)
	RequestLogEnabled      bool          `env:"REQUEST_LOG_ENABLED" envDefault:"true"`
	RequestLogBatchSize    int           `env:"REQUEST_LOG_BATCH_SIZE" envDefault:"100"`
	RequestLogBlockTimeout time.Duration `env:"REQUEST_LOG_BLOCK_TIMEOUT" envDefault:"5s"`
	RequestLogRetention    time.Duration `env:"REQUEST_LOG_RETENTION" envDefault:"720h"`

	// CORS configuration for /api routes
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MailEnabled reports whether outbound mail is configured.
func (c *Config) MailEnabled() bool {
	return strings.TrimSpace(c.MailServer) != ""
}

// BootstrapAdmin reports whether an admin account should be ensured at startup.
func (c *Config) BootstrapAdmin() bool {
	return c.AdminUsername != "" && c.AdminPassword != ""
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	if c.PlansPerPage <= 0 || c.OrdersPerPage <= 0 || c.BlogPostsPerPage <= 0 {
		return errors.New("page sizes must be positive")
	}
	if c.VisitTrackingEnabled && strings.TrimSpace(c.VisitTrackingAPI) == "" {
		return errors.New("VISIT_TRACKING_API is required when VISIT_TRACKING_ENABLED=true")
	}
	if c.VisitTrackingEnabled && c.VisitTrackingInterval <= 0 {
		return errors.New("VISIT_TRACKING_INTERVAL must be positive")
	}
	if c.SessionTTL < time.Minute {
		return errors.New("SESSION_TTL must be at least 1m")
	}
	if c.IsProduction() && !c.SessionCookieSecure {
		return ErrInsecureProductionConfig
	}
	return nil
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing or inconsistent.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
