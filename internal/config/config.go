package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration values.
type Config struct {
	Secret   string
	HTTPPort string
	DataDir  string
	ReportDB string
}

// Load reads configuration from environment variables with reasonable
// defaults. A .env file is applied when present.
func Load() Config {
	_ = godotenv.Load()

	secret := os.Getenv("SECRET")
	if secret == "" {
		secret = "dev_secret"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	reportDB := os.Getenv("REPORT_DB")
	if reportDB == "" {
		reportDB = "data/reports.db"
	}

	// Validate that port is numeric.
	if _, err := strconv.Atoi(port); err != nil {
		log.Printf("invalid HTTP_PORT value %q, defaulting to 8080", port)
		port = "8080"
	}

	return Config{Secret: secret, HTTPPort: port, DataDir: dataDir, ReportDB: reportDB}
}
