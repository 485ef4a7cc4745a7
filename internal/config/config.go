// Package config loads server settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is everything the server needs to start.
type Config struct {
	Addr string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MediaWorkerURL string
	CatalogBaseURL string

	PollInterval    time.Duration
	PollMaxAttempts int
}

// Load reads .env if present, then the environment. Missing required
// keys are an error; tunables fall back to defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:            getenv("ADDR", ":8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisAddr:       getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		MediaWorkerURL:  os.Getenv("MEDIA_WORKER_URL"),
		CatalogBaseURL:  getenv("CATALOG_BASE_URL", "https://api.manana.kr/karaoke"),
		PollInterval:    3 * time.Second,
		PollMaxAttempts: 100,
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.MediaWorkerURL == "" {
		return Config{}, fmt.Errorf("MEDIA_WORKER_URL is required")
	}

	var err error
	if cfg.RedisDB, err = intEnv("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("POLL_INTERVAL: %w", err)
		}
		cfg.PollInterval = d
	}
	if cfg.PollMaxAttempts, err = intEnv("POLL_MAX_ATTEMPTS", cfg.PollMaxAttempts); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
