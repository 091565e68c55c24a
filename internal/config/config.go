package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	DBSource       string
	Port           string
	Env            string
	StoreDriver    string
	UploadURL      string
	UploadPreset   string
	RequestTimeout time.Duration
	AutoMigrate    bool
	// SeedUsers is how many demo users the memory store starts with.
	SeedUsers      int
}

// Load reads the configuration from the environment. Variables from the file
// named by ENV_FILE (default .env) are loaded first without overriding ones
// already set; a missing file is not an error.
func Load() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	driver := getEnv("STORE_DRIVER", DriverPostgres)
	if driver != DriverPostgres && driver != DriverMemory {
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, driver)
	}

	dbSource := os.Getenv("DB_SOURCE")
	if dbSource == "" && driver == DriverPostgres {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	timeout, err := time.ParseDuration(getEnv("REQUEST_TIMEOUT", "10s"))
	if err != nil || timeout <= 0 {
		return nil, fmt.Errorf("REQUEST_TIMEOUT must be a positive duration")
	}

	autoMigrate, err := strconv.ParseBool(getEnv("AUTO_MIGRATE", "false"))
	if err != nil {
		return nil, fmt.Errorf("AUTO_MIGRATE must be a boolean: %w", err)
	}

	seedUsers, err := strconv.Atoi(getEnv("SEED_USERS", "1000"))
	if err != nil || seedUsers < 0 {
		return nil, fmt.Errorf("SEED_USERS must be a non-negative integer")
	}

	return &Config{
		DBSource:       dbSource,
		Port:           getEnv("SERVER_PORT", "8080"),
		Env:            getEnv("ENVIRONMENT", "development"),
		StoreDriver:    driver,
		UploadURL:      os.Getenv("UPLOAD_URL"),
		UploadPreset:   os.Getenv("UPLOAD_PRESET"),
		RequestTimeout: timeout,
		AutoMigrate:    autoMigrate,
		SeedUsers:      seedUsers,
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
