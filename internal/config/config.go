package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dompet/internal/core"
)

type Config struct {
	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Rollover
	RolloverInterval   time.Duration
	RolloverMaxWindows int

	// Locale
	Timezone     string
	CurrencyCode string

	// Logging
	LogLevel  string
	LogFormat string

	// Report export
	GoogleSpreadsheetID      string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
	ExportDir                string
}

func Load() *Config {
	cfg := &Config{
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/dompet.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "dompet"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "budget_rollover"),

		RolloverInterval:   getEnvDuration("ROLLOVER_INTERVAL", time.Hour),
		RolloverMaxWindows: getEnvInt("ROLLOVER_MAX_WINDOWS", 400),

		Timezone:     getEnv("TIMEZONE", "UTC"),
		CurrencyCode: getEnv("CURRENCY_CODE", core.IDR.Code),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		ExportDir:                getEnv("EXPORT_DIR", "./exports"),
	}

	return cfg
}

// Location resolves Timezone. Budget windows start at midnight in this zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Currency returns the display policy of CurrencyCode.
func (c *Config) Currency() (core.Currency, error) {
	return core.LookupCurrency(c.CurrencyCode)
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		// Check if directory exists or can be created
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
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RolloverInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid rollover interval %v: must be at least 1 second", c.RolloverInterval))
	} else if c.RolloverInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid rollover interval %v: must be at most 24 hours", c.RolloverInterval))
	}
	if c.RolloverMaxWindows < 1 {
		errors = append(errors, fmt.Sprintf("invalid rollover max windows %d: must be at least 1", c.RolloverMaxWindows))
	}

	if _, err := c.Location(); err != nil {
		errors = append(errors, err.Error())
	}
	if _, err := c.Currency(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid currency code '%s': %v", c.CurrencyCode, err))
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !oneOf(validLevels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLevels))
	}
	validFormats := []string{"text", "json"}
	if !oneOf(validFormats, strings.ToLower(c.LogFormat)) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validFormats))
	}

	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// HasSheets reports whether Google Sheets export is configured.
func (c *Config) HasSheets() bool {
	return c.GoogleSpreadsheetID != ""
}

func oneOf(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
