// Package config loads process configuration from the environment and the
// engine tuning parameters from an optional TOML file.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"fincast/internal/log"
)

// ScheduleParser parses six-field cron specs with a leading seconds field.
var ScheduleParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type Config struct {
	// Database
	SQLiteDBPath string

	// AMQP (optional)
	AMQPURL               string
	AMQPExchange          string
	AMQPIngestQueue       string
	AMQPResultsRoutingKey string

	// Batch recompute
	BatchSchedule     string
	RecomputeOnIngest bool

	// Engine tuning file (optional)
	EngineConfigFile string

	// Forecast cache
	CacheMaxEntries      int
	CacheCleanupInterval time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Query API (optional)
	HTTPAddr           string
	HTTPRateLimit      int
	HTTPRequestTimeout time.Duration
	HTTPTrustedProxies []string

	// Google Sheets export (optional)
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

func Load() *Config {
	cfg := &Config{
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/fincast.db"),

		AMQPURL:               getEnv("AMQP_URL", ""),
		AMQPExchange:          getEnv("AMQP_EXCHANGE", "fincast"),
		AMQPIngestQueue:       getEnv("AMQP_INGEST_QUEUE", "transactions_ingested"),
		AMQPResultsRoutingKey: getEnv("AMQP_RESULTS_ROUTING_KEY", "forecast_computed"),

		BatchSchedule:     getEnv("BATCH_SCHEDULE", "0 30 2 * * *"),
		RecomputeOnIngest: getEnvBool("RECOMPUTE_ON_INGEST", false),

		EngineConfigFile: getEnv("ENGINE_CONFIG_FILE", ""),

		CacheMaxEntries:      getEnvInt("CACHE_MAX_ENTRIES", 1000),
		CacheCleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", 5*time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		HTTPAddr:           getEnv("HTTP_ADDR", ""),
		HTTPRateLimit:      getEnvInt("HTTP_RATE_LIMIT", 120),
		HTTPRequestTimeout: getEnvDuration("HTTP_REQUEST_TIMEOUT", 30*time.Second),
		HTTPTrustedProxies: getEnvList("HTTP_TRUSTED_PROXIES"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Resilience"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate SQLite configuration
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}

		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPIngestQueue == "" {
			errors = append(errors, "AMQP ingest queue name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPResultsRoutingKey == "" {
			errors = append(errors, "AMQP results routing key cannot be empty when AMQP URL is provided")
		}
	}

	// Validate batch schedule
	if _, err := ScheduleParser.Parse(c.BatchSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid batch schedule '%s': %v", c.BatchSchedule, err))
	}

	// Validate engine file if provided
	if c.EngineConfigFile != "" {
		if _, err := os.Stat(c.EngineConfigFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("engine config file does not exist: %s", c.EngineConfigFile))
		}
	}

	// Validate cache configuration
	if c.CacheMaxEntries < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache max entries %d: must be at least 1", c.CacheMaxEntries))
	}
	if c.CacheCleanupInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache cleanup interval %v: must be at least 1 second", c.CacheCleanupInterval))
	} else if c.CacheCleanupInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid cache cleanup interval %v: must be at most 24 hours", c.CacheCleanupInterval))
	}

	// Validate logging
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Validate query API if enabled
	if c.HTTPAddr != "" {
		if _, _, err := net.SplitHostPort(c.HTTPAddr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid HTTP address '%s': %v", c.HTTPAddr, err))
		}
		if c.HTTPRateLimit < 1 {
			errors = append(errors, fmt.Sprintf("invalid HTTP rate limit %d: must be at least 1 request per minute", c.HTTPRateLimit))
		}
		if c.HTTPRequestTimeout < time.Second {
			errors = append(errors, fmt.Sprintf("invalid HTTP request timeout %v: must be at least 1 second", c.HTTPRequestTimeout))
		}
		for _, cidr := range c.HTTPTrustedProxies {
			if _, _, err := net.ParseCIDR(cidr); err != nil {
				errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
			}
		}
	}

	// Validate Google Sheets export if enabled
	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when GOOGLE_SPREADSHEET_ID is set")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasFile && c.GoogleServiceAccountJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets export")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// SheetsEnabled reports whether report export to Google Sheets is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// HTTPEnabled reports whether the query API should be served.
func (c *Config) HTTPEnabled() bool {
	return c.HTTPAddr != ""
}

// AMQPEnabled reports whether an AMQP broker is configured.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
