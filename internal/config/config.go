package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port      string
	Env       string
	JWTSecret string

	Auth   AuthConfig
	DB     DatabaseConfig
	Redis  RedisConfig
	Cache  CacheConfig
	Shopee ShopeeConfig
	Worker WorkerConfig
	CORS   CORSConfig
}

// AuthConfig holds the single curator account allowed to obtain write tokens.
// PasswordHash is a bcrypt hash; an empty hash disables login.
type AuthConfig struct {
	Username     string
	PasswordHash string
	TokenTTL     time.Duration
}

// DatabaseConfig contains the embedded SQLite store parameters.
type DatabaseConfig struct {
	Path            string
	ReadOnly        bool
	LockWaitTimeout time.Duration
	MaxRetries      int
	RetryBaseDelay  time.Duration
	MaxOpenConns    int
}

// RedisConfig contains Redis connection parameters. An empty Addr means the
// search cache stays in-process.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CacheConfig controls the catalog search result cache.
type CacheConfig struct {
	TTL time.Duration
}

// ShopeeConfig contains credentials for the affiliate GraphQL API.
type ShopeeConfig struct {
	AppID         string
	Secret        string
	BaseURL       string
	RatePerMinute int
}

// WorkerConfig contains configuration for the catalog sync worker.
type WorkerConfig struct {
	SyncInterval    time.Duration
	SyncKeywords    []string
	SyncLimit       int
	SyncConcurrency int
}

// CORSConfig lists allowed origins; "*" allows any.
type CORSConfig struct {
	AllowedOrigins []string
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Load .env if present; serverless deployments rely on real env vars only.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")
	cfg.JWTSecret = getEnv("JWT_SECRET", "")

	var err error

	// Curator login
	cfg.Auth = AuthConfig{
		Username:     getEnv("ADMIN_USERNAME", "admin"),
		PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
	}
	if cfg.Auth.TokenTTL, err = parseDurationEnv("JWT_TTL", "12h"); err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL: %w", err)
	}

	// Database
	cfg.DB = DatabaseConfig{
		Path:         getEnv("DB_PATH", "data/products.db"),
		ReadOnly:     getEnvBool("DB_READ_ONLY", false),
		MaxRetries:   getEnvInt("DB_MAX_RETRIES", 3),
		MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 4),
	}
	if cfg.DB.LockWaitTimeout, err = parseMillisEnv("DB_LOCK_WAIT_TIMEOUT_MS", 5000); err != nil {
		return nil, fmt.Errorf("invalid DB_LOCK_WAIT_TIMEOUT_MS: %w", err)
	}
	if cfg.DB.RetryBaseDelay, err = parseMillisEnv("DB_RETRY_BASE_DELAY_MS", 500); err != nil {
		return nil, fmt.Errorf("invalid DB_RETRY_BASE_DELAY_MS: %w", err)
	}

	// Redis
	cfg.Redis = RedisConfig{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	if cfg.Cache.TTL, err = parseDurationEnv("CACHE_TTL", "5m"); err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}

	// Shopee affiliate API
	cfg.Shopee = ShopeeConfig{
		AppID:         getEnv("SHOPEE_APP_ID", ""),
		Secret:        getEnv("SHOPEE_SECRET", ""),
		BaseURL:       getEnv("SHOPEE_BASE_URL", "https://open-api.affiliate.shopee.com.br/graphql"),
		RatePerMinute: getEnvInt("SHOPEE_RATE_PER_MINUTE", 60),
	}

	// Worker
	if cfg.Worker.SyncInterval, err = parseDurationEnv("SYNC_INTERVAL", "0s"); err != nil {
		return nil, fmt.Errorf("invalid SYNC_INTERVAL: %w", err)
	}
	cfg.Worker.SyncKeywords = getEnvList("SYNC_KEYWORDS")
	cfg.Worker.SyncLimit = getEnvInt("SYNC_LIMIT", 50)
	cfg.Worker.SyncConcurrency = getEnvInt("SYNC_CONCURRENCY", 2)

	cfg.CORS.AllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS")
	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = []string{"*"}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Auth.PasswordHash != "" && c.JWTSecret == "" {
		return errors.New("ADMIN_PASSWORD_HASH requires JWT_SECRET")
	}
	if c.DB.Path == "" {
		return errors.New("database configuration incomplete: DB_PATH must be set")
	}
	if c.DB.MaxRetries < 0 {
		return errors.New("DB_MAX_RETRIES must be >= 0")
	}
	if c.DB.MaxOpenConns <= 0 {
		return errors.New("DB_MAX_OPEN_CONNS must be > 0")
	}
	if c.Shopee.RatePerMinute <= 0 {
		return errors.New("SHOPEE_RATE_PER_MINUTE must be > 0")
	}
	if c.Worker.SyncLimit <= 0 || c.Worker.SyncConcurrency <= 0 {
		return errors.New("SYNC_LIMIT and SYNC_CONCURRENCY must be > 0")
	}
	return nil
}

// SyncEnabled reports whether the periodic catalog sync should run.
func (c *Config) SyncEnabled() bool {
	return !c.DB.ReadOnly && c.Worker.SyncInterval > 0 && len(c.Worker.SyncKeywords) > 0
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
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

// getEnvList splits a comma separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}

// parseMillisEnv reads an integer millisecond count.
func parseMillisEnv(key string, def int) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return time.Duration(def) * time.Millisecond, nil
	}
	ms, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if ms < 0 {
		return 0, fmt.Errorf("milliseconds must be >= 0")
	}
	return time.Duration(ms) * time.Millisecond, nil
}
