package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is read once at process start and passed into constructors.
// Nothing reads it as ambient global state afterwards.
type Config struct {
	// HTTP gateway
	Port         string
	GatewayToken string

	// Database
	SQLiteDBPath string

	// Domain
	Timezone     string
	AdminIDs     []int64
	AdminHandles []string
	SeedRates    map[string]decimal.Decimal

	// AMQP (optional for the API binary, required for the worker)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Export worker
	ExportDir      string
	ExportInterval time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8082"),
		GatewayToken: getEnv("GATEWAY_TOKEN", ""),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/piecework.db"),

		Timezone:     getEnv("TIMEZONE", "Europe/Moscow"),
		AdminIDs:     parseIDList(os.Getenv("ADMIN_IDS")),
		AdminHandles: parseHandleList(os.Getenv("ADMIN_USERNAMES")),
		SeedRates:    parseSeedRates(os.Getenv("SEED_RATES")),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "piecework"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "entry_committed"),

		ExportDir:      getEnv("EXPORT_DIR", "./data/exports"),
		ExportInterval: getEnvDuration("EXPORT_INTERVAL", 5*time.Minute),
	}

	return cfg
}

// Validate checks the configuration and returns an aggregate error.
// A missing gateway token is fatal here: starting without the shared
// credential would leave the whole API open.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.GatewayToken == "" {
		errs = append(errs, "GATEWAY_TOKEN must be set")
	}

	if c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty")
	} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ExportInterval < time.Second {
		errs = append(errs, fmt.Sprintf("invalid export interval %v: must be at least 1 second", c.ExportInterval))
	} else if c.ExportInterval > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid export interval %v: must be at most 24 hours", c.ExportInterval))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}

	return nil
}

// Location resolves the configured time zone. Call after Validate.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

// parseIDList parses "42,7" into ids, skipping blanks and garbage.
func parseIDList(s string) []int64 {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// parseHandleList parses "@boss,lead" into raw handles; normalization
// (case folding, "@" stripping) belongs to the authorizer.
func parseHandleList(s string) []string {
	var handles []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			handles = append(handles, part)
		}
	}
	return handles
}

// parseSeedRates parses "Gloves=3.5;Boxes=1,25" into the default rate
// table. Pairs are semicolon-separated so rate values may use a decimal
// comma. Malformed pairs are skipped.
func parseSeedRates(s string) map[string]decimal.Decimal {
	seeds := make(map[string]decimal.Decimal)
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		rate, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(value), ",", "."))
		if err != nil || rate.IsNegative() {
			continue
		}
		seeds[name] = rate
	}
	return seeds
}
