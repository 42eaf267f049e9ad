// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/GideonLangenhoven/CKACashups/internal/notify"
)

// Config holds all configuration values for the API server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:3000"]. Set CORS_ORIGINS to a
	// comma-separated list to override.
	CORSOrigins []string

	// JWTSecret signs and verifies bearer tokens (HS256). Required.
	JWTSecret string

	// MaxBodyBytes caps request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64

	// AdminEmails receive reports, invoices and disputes.
	AdminEmails []string

	// AlertEmails receive operational alerts. Falls back to AdminEmails.
	AlertEmails []string

	// SMTP configures outgoing mail. EMAIL_ENABLED=false (the default) uses a no-op mailer.
	SMTP notify.SMTPConfig

	// DisplayLocation is the business time zone, used for the admin
	// earnings week and the "today" bucket. Defaults to Africa/Johannesburg.
	DisplayLocation *time.Location

	// ReportTimeout bounds synchronous report generation. Defaults to 60s.
	ReportTimeout time.Duration

	// RunMigrations applies embedded migrations at startup. Defaults to true.
	RunMigrations bool
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set, or the
// first variable that could not be parsed.
func Load() (Config, error) {
	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		AdminEmails: splitCSV(os.Getenv("ADMIN_EMAILS")),
	}
	cfg.AlertEmails = splitCSV(os.Getenv("ALERT_EMAILS"))
	if len(cfg.AlertEmails) == 0 {
		cfg.AlertEmails = cfg.AdminEmails
	}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	var err error
	if cfg.MaxBodyBytes, err = getInt64("MAX_BODY_BYTES", 1<<20); err != nil {
		return Config{}, err
	}
	if cfg.ReportTimeout, err = getDuration("REPORT_TIMEOUT", 60*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.RunMigrations, err = getBool("RUN_MIGRATIONS", true); err != nil {
		return Config{}, err
	}

	tz := getEnv("DISPLAY_TZ", "Africa/Johannesburg")
	if cfg.DisplayLocation, err = time.LoadLocation(tz); err != nil {
		return Config{}, fmt.Errorf("DISPLAY_TZ: %w", err)
	}

	emailEnabled, err := getBool("EMAIL_ENABLED", false)
	if err != nil {
		return Config{}, err
	}
	port, err := getInt64("SMTP_PORT", 587)
	if err != nil {
		return Config{}, err
	}
	cfg.SMTP = notify.SMTPConfig{
		Enabled:  emailEnabled,
		Host:     os.Getenv("SMTP_HOST"),
		Port:     int(port),
		User:     os.Getenv("SMTP_USER"),
		Password: os.Getenv("SMTP_PASS"),
		From:     getEnv("EMAIL_FROM", os.Getenv("SMTP_USER")),
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration such as 60s, got %q", key, v)
	}
	return d, nil
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
