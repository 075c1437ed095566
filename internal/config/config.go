package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const PROD_STRING = "prod"

const (
	DraftStorePostgres = "postgres"
	DraftStoreRedis    = "redis"
)

// Config holds all application configuration loaded from environment.
type Config struct {
	IsProduction bool
	ProdOrigins  string
	HTTPAddr     string

	// Venue time zone for past-date and started-slot checks
	Location *time.Location

	// Upstream booking REST API
	BackendBaseURL string
	BackendTimeout time.Duration

	JWTSecret string

	// Draft persistence
	DraftStore    string
	DBDSN         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DraftTTL      time.Duration

	// Background slot releases
	ReleaseWorkers   int
	ReleaseQueueSize int

	RateLimitRPS   float64
	RateLimitBurst int

	OTelEndpoint string
}

// Load loads configuration from .env (optional) and environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		log.Printf("failed to load .env file: %v", err)
	}

	cfg := &Config{}

	cfg.ProdOrigins = getEnv("PROD_ORIGINS", "")
	cfg.IsProduction = getEnv("APP_ENV", "dev") == PROD_STRING
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")
	if cfg.IsProduction && cfg.ProdOrigins == "" {
		return nil, fmt.Errorf("PROD_ORIGINS is required when APP_ENV=%s", PROD_STRING)
	}

	tz := getEnv("TIME_ZONE", "Local")
	cfg.Location, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIME_ZONE %q: %w", tz, err)
	}

	// Backend base URL is required, every flow step talks to it
	cfg.BackendBaseURL = os.Getenv("BACKEND_BASE_URL")
	if cfg.BackendBaseURL == "" {
		return nil, fmt.Errorf("BACKEND_BASE_URL is required")
	}

	cfg.BackendTimeout, err = getEnvAsDuration("BACKEND_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	// JWT secret is required for validating the tokens issued by the backend
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	cfg.DraftStore = getEnv("DRAFT_STORE", DraftStorePostgres)
	switch cfg.DraftStore {
	case DraftStorePostgres:
		cfg.DBDSN = os.Getenv("DB_DSN")
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("DB_DSN is required when DRAFT_STORE=%s", DraftStorePostgres)
		}
	case DraftStoreRedis:
		cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
		cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
		cfg.RedisDB, err = getEnvAsInt("REDIS_DB", 0)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("invalid DRAFT_STORE %q: must be %s or %s", cfg.DraftStore, DraftStorePostgres, DraftStoreRedis)
	}

	// Drafts idle longer than this are dropped by the store (Redis TTL / Postgres purge)
	cfg.DraftTTL, err = getEnvAsDuration("DRAFT_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	cfg.ReleaseWorkers, err = getEnvAsInt("RELEASE_WORKERS", 4)
	if err != nil {
		return nil, err
	}
	cfg.ReleaseQueueSize, err = getEnvAsInt("RELEASE_QUEUE_SIZE", 256)
	if err != nil {
		return nil, err
	}

	rpsStr := getEnv("RATE_LIMIT_RPS", "5")
	cfg.RateLimitRPS, err = strconv.ParseFloat(rpsStr, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}
	cfg.RateLimitBurst, err = getEnvAsInt("RATE_LIMIT_BURST", 10)
	if err != nil {
		return nil, err
	}

	// Tracing is disabled when empty
	cfg.OTelEndpoint = getEnv("OTEL_ENDPOINT", "")

	return cfg, nil
}

// getEnv returns the value of the environment variable if set,
// otherwise returns the provided default value.
func getEnv(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer.
// It returns the default value if the variable is not set.
// It returns an error if the variable is set but is not a valid integer.
func getEnvAsInt(key string, defaultValue int) (int, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(valStr)
	if err != nil {
		return 0, fmt.Errorf("env %s value %q is not a valid integer: %w", key, valStr, err)
	}

	return val, nil
}

// getEnvAsDuration parses a time.Duration (e.g. "15m", "1h") from the environment.
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(valStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return val, nil
}
