package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port int

	// sqlite3 or postgres
	DBDriver string
	DBDSN    string

	LogLevel slog.Level

	SessionLifetime time.Duration
	CORSOrigins     []string

	// How often registration deadlines are checked
	RegistrationSweep time.Duration

	Archive ArchiveConfig
}

// ArchiveConfig points at the R2 bucket final standings are archived to.
// Archiving is disabled when Bucket is empty.
type ArchiveConfig struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	PublicURL       string
}

func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

// Load reads the environment, loading .env first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBDriver:    getEnv("DB_DRIVER", "sqlite3"),
		DBDSN:       getEnv("DB_DSN", "op_tournaments.db?_journal_mode=WAL"),
		CORSOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		Archive: ArchiveConfig{
			AccountID:       os.Getenv("R2_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
			Bucket:          os.Getenv("R2_BUCKET_NAME"),
			PublicURL:       os.Getenv("R2_PUBLIC_URL"),
		},
	}

	if cfg.DBDriver != "sqlite3" && cfg.DBDriver != "postgres" {
		return nil, fmt.Errorf("DB_DRIVER must be sqlite3 or postgres, got %q", cfg.DBDriver)
	}

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("PORT must be between 1 and 65535, got %d", port)
	}
	cfg.Port = port

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL environment variable: %w", err)
	}

	if cfg.SessionLifetime, err = time.ParseDuration(getEnv("SESSION_LIFETIME", "24h")); err != nil {
		return nil, fmt.Errorf("invalid SESSION_LIFETIME environment variable: %w", err)
	}
	if cfg.RegistrationSweep, err = time.ParseDuration(getEnv("REGISTRATION_SWEEP_INTERVAL", "1m")); err != nil {
		return nil, fmt.Errorf("invalid REGISTRATION_SWEEP_INTERVAL environment variable: %w", err)
	}
	if cfg.RegistrationSweep <= 0 {
		return nil, fmt.Errorf("REGISTRATION_SWEEP_INTERVAL must be positive, got %s", cfg.RegistrationSweep)
	}

	if cfg.Archive.Enabled() && (cfg.Archive.AccountID == "" || cfg.Archive.AccessKeyID == "" || cfg.Archive.AccessKeySecret == "") {
		return nil, fmt.Errorf("R2_BUCKET_NAME is set but R2 credentials are incomplete")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
