package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config carries the process configuration, assembled from .env and
// environment variables.
type Config struct {
	Port          string
	DatabaseURL   string
	CheckpointDir string
}

// Load reads .env if present and assembles the configuration. DATABASE_URL
// wins; otherwise the URL is constructed from the DB_* variables.
func Load() (Config, error) {
	// A missing .env is fine; plain environment variables still apply.
	_ = godotenv.Load()

	cfg := Config{
		Port:          envOr("PORT", "8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		CheckpointDir: envOr("CHECKPOINT_DIR", ".checkpoints"),
	}

	if cfg.DatabaseURL == "" {
		dbUsername := os.Getenv("DB_USERNAME")
		dbPassword := os.Getenv("DB_PASSWORD")
		dbHost := os.Getenv("DB_HOST")
		dbPort := os.Getenv("DB_PORT")
		dbName := os.Getenv("DB_NAME")
		if dbUsername == "" || dbPassword == "" || dbHost == "" || dbPort == "" || dbName == "" {
			return Config{}, fmt.Errorf("DATABASE_URL or complete DB_* env vars (DB_USERNAME, DB_PASSWORD, DB_HOST, DB_PORT, DB_NAME) required")
		}
		cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			dbUsername, dbPassword, dbHost, dbPort, dbName)
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
