package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures everything the server reads from the environment so main
// stays lean. Values the workflow core consumes (bulk limits, cache TTL) are
// plain data here; the mechanism is always HABITAT_* env vars.
type Config struct {
	Addr          string
	DatabaseURL   string
	JWTSigningKey string

	Redis RedisConfig

	// Workflow limits.
	MaxBulkFlats       int
	MaxUnitNumberLen   int
	MaxBuildingNameLen int
	RequestCacheTTL    time.Duration
}

// RedisConfig carries connection settings for the registration cache. An empty
// URL disables the cache entirely.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables with defaults suitable
// for local development.
func FromEnv() Config {
	return Config{
		Addr:          envString("HABITAT_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("HABITAT_DATABASE_URL"),
		JWTSigningKey: envString("HABITAT_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		Redis: RedisConfig{
			URL:          os.Getenv("HABITAT_REDIS_URL"),
			PoolSize:     envInt("HABITAT_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("HABITAT_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("HABITAT_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("HABITAT_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("HABITAT_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		MaxBulkFlats:       envInt("HABITAT_MAX_BULK_FLATS", 200),
		MaxUnitNumberLen:   envInt("HABITAT_MAX_UNIT_NUMBER_LEN", 10),
		MaxBuildingNameLen: envInt("HABITAT_MAX_BUILDING_NAME_LEN", 100),
		RequestCacheTTL:    envDuration("HABITAT_REQUEST_CACHE_TTL", 30*time.Second),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
