package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	DBSource    string
	StoreDriver string
	Port        string
	Env         string
	LogLevel    string
	JWTSecret   string
	TokenTTL    time.Duration
	SessionIdle time.Duration
}

func Load() (*Config, error) {
	// A missing .env file is fine; real environments set variables directly.
	_ = godotenv.Load()

	driver := getEnv("STORE_DRIVER", DriverPostgres)
	if driver != DriverPostgres && driver != DriverMemory {
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, driver)
	}

	dbSource := os.Getenv("DB_SOURCE")
	if dbSource == "" && driver == DriverPostgres {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	env := getEnv("ENVIRONMENT", "development")
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		if env == "production" {
			return nil, fmt.Errorf("JWT_SECRET environment variable is required in production")
		}
		secret = "dev-secret-change-me"
	}

	ttl, err := getDuration("TOKEN_TTL", 12*time.Hour)
	if err != nil {
		return nil, err
	}
	idle, err := getDuration("SESSION_IDLE", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 || idle <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL and SESSION_IDLE must be positive")
	}

	return &Config{
		DBSource:    dbSource,
		StoreDriver: driver,
		Port:        getEnv("SERVER_PORT", "8080"),
		Env:         env,
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		JWTSecret:   secret,
		TokenTTL:    ttl,
		SessionIdle: idle,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
