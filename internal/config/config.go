// Package config reads the client's settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting. It is read once at startup.
type Config struct {
	// API
	APIURL       string
	APITimeout   time.Duration
	APIRateLimit float64
	APIRateBurst int

	// Local state
	DBPath   string
	CacheTTL time.Duration

	// Redis replaces SQLite for snapshots and settings when RedisAddr is set.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Logging
	LogFile  string
	LogLevel string

	// MetricsAddr is where `watch` serves /metrics. Empty disables it.
	MetricsAddr string
}

// Load reads a .env file from the working directory if there is one, then
// the environment. Variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		APIURL:        getEnvString("GARDEROBA_API_URL", "http://localhost:8000"),
		APITimeout:    getEnvDuration("GARDEROBA_API_TIMEOUT", 0),
		APIRateLimit:  getEnvFloat("GARDEROBA_API_RATE_LIMIT", 0),
		APIRateBurst:  getEnvInt("GARDEROBA_API_RATE_BURST", 1),
		DBPath:        getEnvString("GARDEROBA_DB", defaultDBPath()),
		CacheTTL:      getEnvDuration("GARDEROBA_CACHE_TTL", 5*time.Minute),
		RedisAddr:     getEnvString("REDIS_ADDR", ""),
		RedisPassword: getEnvString("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		LogFile:       getEnvString("GARDEROBA_LOG_FILE", ""),
		LogLevel:      getEnvString("GARDEROBA_LOG_LEVEL", "info"),
		MetricsAddr:   getEnvString("GARDEROBA_METRICS_ADDR", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail later and less clearly.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid API URL %q", c.APIURL)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %s", c.CacheTTL)
	}
	if c.APITimeout < 0 {
		return fmt.Errorf("API timeout must not be negative, got %s", c.APITimeout)
	}
	if c.APIRateLimit < 0 {
		return fmt.Errorf("API rate limit must not be negative, got %v", c.APIRateLimit)
	}
	return nil
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "garderoba.db"
	}
	return filepath.Join(dir, "garderoba", "garderoba.db")
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
