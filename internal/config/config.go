package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

const defaultSQLitePath = "./data/cayxanh.db"

type Config struct {
	HTTPPort    string
	DatabaseURL string // Postgres DSN; empty means local SQLite
	SQLitePath  string
	JWTSecret   string
	CORSOrigins string
	ImageDir    string // uploaded plant images
	MaxUploadMB int
	PageSize    int
	LogLevel    string
	LogFormat   string // "console" or "json"
	DBLog       bool
}

func Load() *Config {
	cfg := &Config{
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", defaultSQLitePath),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		CORSOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		ImageDir:    getEnv("IMAGE_DIR", "./plant-images"),
		MaxUploadMB: getEnvInt("MAX_UPLOAD_MB", 16),
		PageSize:    getEnvInt("PAGE_SIZE", 50),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "console"),
		DBLog:       getEnvBool("DB_LOG", false),
	}

	// Serverless hosts only allow writes under /tmp.
	if os.Getenv("VERCEL") != "" && os.Getenv("SQLITE_PATH") == "" {
		cfg.SQLitePath = "/tmp/cayxanh.db"
	}

	return cfg
}

// UsesPostgres reports whether the network database is selected.
func (c *Config) UsesPostgres() bool {
	return strings.TrimSpace(c.DatabaseURL) != ""
}

// ValidateServer checks the settings the HTTP server cannot run without.
func (c *Config) ValidateServer() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	if c.CORSOrigins == "http://localhost:5173" {
		log.Warn().Msg("CORS_ALLOWED_ORIGINS uses the development default")
	}
	if !c.UsesPostgres() {
		log.Warn().Str("path", c.SQLitePath).Msg("DATABASE_URL is empty, using local SQLite store")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid integer, using default")
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
