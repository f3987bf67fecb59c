package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/vetlink/vetlink/internal/validation"
)

type Config struct {
	// Application
	AppName string
	AppEnv  string
	AppURL  string
	Port    string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Security
	JWTSecret string
	JWTExpiry time.Duration

	// Observability (optional)
	SentryDSN string

	// Uploads
	UploadDir              string // profile photos
	UploadURLPrefix        string
	FeedUploadDir          string // feed post images
	FeedUploadURLPrefix    string
	UploadMaxSize          int64
	UploadDiskSafetyMargin int64
	UploadStrictTypeMatch  bool
	UploadRateLimit        int
	UploadRateWindow       time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName: envString("APP_NAME", "VetLink"),
		AppEnv:  envRequired("APP_ENV"), // Required: 'development' or 'production'
		AppURL:  envRequired("APP_URL"),
		Port:    envString("PORT", "8090"),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/vetlink.db?_pragma=journal_mode(WAL)"),

		// Security
		JWTSecret: envRequired("JWT_SECRET"),
		JWTExpiry: envDuration("JWT_EXPIRY", 168*time.Hour), // 7 days

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),

		// Uploads
		UploadDir:              envString("UPLOAD_DIR", "./data/uploads/fotos"),
		UploadURLPrefix:        envString("UPLOAD_URL_PREFIX", "/uploads/"),
		FeedUploadDir:          envString("FEED_UPLOAD_DIR", "./data/uploads/feed"),
		FeedUploadURLPrefix:    envString("FEED_UPLOAD_URL_PREFIX", "/feed-uploads/"),
		UploadMaxSize:          envInt64("UPLOAD_MAX_SIZE", 5<<20),              // 5 MiB
		UploadDiskSafetyMargin: envInt64("UPLOAD_DISK_SAFETY_MARGIN", 100<<20), // 100 MiB
		UploadStrictTypeMatch:  envBool("UPLOAD_STRICT_TYPE_MATCH", true),
		UploadRateLimit:        int(envInt64("UPLOAD_RATE_LIMIT", 10)),
		UploadRateWindow:       envDuration("UPLOAD_RATE_WINDOW", time.Minute),
	}

	return cfg
}

// ImagePolicy builds the immutable upload policy from the upload settings.
func (c *Config) ImagePolicy() (*validation.ImagePolicy, error) {
	return validation.NewImagePolicy(
		validation.WithMaxSize(c.UploadMaxSize),
		validation.WithDiskSafetyMargin(c.UploadDiskSafetyMargin),
		validation.WithStrictKindMatch(c.UploadStrictTypeMatch),
	)
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		slog.Warn("config invalid integer, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Sanitized returns a copy of the config with only public/safe fields.
// Safe to expose in ctx and templates.
func (c *Config) Sanitized() *Config {
	return &Config{
		AppName:             c.AppName,
		AppEnv:              c.AppEnv,
		AppURL:              c.AppURL,
		Port:                c.Port,
		UploadURLPrefix:     c.UploadURLPrefix,
		FeedUploadURLPrefix: c.FeedUploadURLPrefix,
		UploadMaxSize:       c.UploadMaxSize,
	}
}
