package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Addr      string // LEADTRACK_ADDR, default ":8080"
	DBPath    string // LEADTRACK_DB, default "leadtrack.db"
	AuthToken string // LEADTRACK_AUTH_TOKEN, optional
}

// Load reads configuration from environment variables with sensible
// defaults, merging in a .env file first when one exists in the working
// directory. Real environment variables win over .env entries.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:      envOr("LEADTRACK_ADDR", ":8080"),
		DBPath:    envOr("LEADTRACK_DB", "leadtrack.db"),
		AuthToken: os.Getenv("LEADTRACK_AUTH_TOKEN"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
