// Package config loads application settings from environment variables
// (populated by the .env file in main.go).
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the connection and batching settings for one sync run.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresOptions  string

	ElasticHost string
	ElasticPort string

	BatchSize int
}

// LoadConfig reads settings from the environment. Connection credentials
// are required; the rest fall back to defaults.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		PostgresHost:    getEnv("PG_HOST", "localhost"),
		PostgresPort:    getEnv("PG_PORT", "5432"),
		PostgresOptions: os.Getenv("PG_OPTIONS"),
		ElasticHost:     getEnv("ES_HOST", "localhost"),
		ElasticPort:     getEnv("ES_PORT", "9200"),
		BatchSize:       100,
	}

	for _, req := range []struct {
		key  string
		dest *string
	}{
		{"PG_DBNAME", &cfg.PostgresDB},
		{"PG_USER", &cfg.PostgresUser},
		{"PG_PASSWORD", &cfg.PostgresPassword},
	} {
		v := os.Getenv(req.key)
		if v == "" {
			return nil, fmt.Errorf("%s environment variable not set", req.key)
		}
		*req.dest = v
	}

	if v := os.Getenv("TRANSFER_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid TRANSFER_BATCH_SIZE %q", v)
		}
		cfg.BatchSize = n
	}

	return cfg, nil
}

// PostgresDSN renders the lib/pq connection string. The session timezone
// is pinned to UTC so the watermark, which is rendered in UTC, compares
// against timestamptz columns in the same zone regardless of the server's
// TimeZone setting.
func (c *Config) PostgresDSN() string {
	dsn := fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=disable timezone=UTC",
		c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresUser, c.PostgresPassword)
	if c.PostgresOptions != "" {
		dsn += " options=" + c.PostgresOptions
	}
	return dsn
}

// ElasticAddress renders the sink URL.
func (c *Config) ElasticAddress() string {
	return fmt.Sprintf("http://%s:%s", c.ElasticHost, c.ElasticPort)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
