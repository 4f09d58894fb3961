package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// Zendesk
	ZendeskURL     string
	ZendeskEmail   string
	Throttle       time.Duration
	RequestTimeout time.Duration
	SearchPageSize int

	// Storage
	StorageType string // "sqlite", "postgres" or "none"
	SQLitePath  string
	PostgresURL string

	// Export
	OutputDir    string
	ExportFormat string // "csv" or "xlsx"

	// API Server
	APIPort                string
	APIHost                string
	MetricsRefreshInterval time.Duration

	// CLI
	APIEndpoint string

	// Logging
	LogLevel    string
	Environment string
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	return &Config{
		Throttle:               time.Second,
		RequestTimeout:         30 * time.Second,
		SearchPageSize:         1000,
		StorageType:            "sqlite",
		SQLitePath:             "./metrics.db",
		OutputDir:              "./data",
		ExportFormat:           "csv",
		APIPort:                "8080",
		APIHost:                "localhost",
		APIEndpoint:            "http://localhost:8080",
		MetricsRefreshInterval: 30 * time.Second,
		LogLevel:               "info",
		Environment:            "local",
	}
}

// Load loads the configuration. Precedence: environment (including .env),
// then the YAML file at path (or the first default file found), then
// defaults.
func Load(path string) (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := Defaults()

	var fc *FileConfig
	var err error
	if path != "" {
		fc, err = LoadFile(path)
	} else {
		fc, _, err = AutoLoadFile()
	}
	if err != nil {
		return nil, err
	}
	if err := fc.Apply(cfg); err != nil {
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(c *Config) error {
	if sub := getEnv("ZENDESK_SUBDOMAIN", ""); sub != "" {
		c.ZendeskURL = SubdomainURL(sub)
	}
	c.ZendeskURL = getEnv("ZENDESK_URL", c.ZendeskURL)
	c.ZendeskEmail = getEnv("ZENDESK_EMAIL", c.ZendeskEmail)
	c.StorageType = getEnv("STORAGE_TYPE", c.StorageType)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.PostgresURL = getEnv("POSTGRES_URL", c.PostgresURL)
	c.OutputDir = getEnv("OUTPUT_DIR", c.OutputDir)
	c.ExportFormat = getEnv("EXPORT_FORMAT", c.ExportFormat)
	c.APIPort = getEnv("API_PORT", c.APIPort)
	c.APIHost = getEnv("API_HOST", c.APIHost)
	c.APIEndpoint = getEnv("API_ENDPOINT", c.APIEndpoint)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)

	var err error
	if c.Throttle, err = getDuration("THROTTLE_INTERVAL", c.Throttle); err != nil {
		return err
	}
	if c.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", c.RequestTimeout); err != nil {
		return err
	}
	if c.MetricsRefreshInterval, err = getDuration("METRICS_REFRESH_INTERVAL", c.MetricsRefreshInterval); err != nil {
		return err
	}
	if v := getEnv("SEARCH_PAGE_SIZE", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &ConfigError{Field: "SEARCH_PAGE_SIZE", Message: "must be an integer"}
		}
		c.SearchPageSize = n
	}
	return nil
}

// SubdomainURL returns the API base URL of a Zendesk subdomain
func SubdomainURL(subdomain string) string {
	return "https://" + strings.TrimSpace(subdomain) + ".zendesk.com"
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := parseDuration(v)
	if err != nil {
		return 0, &ConfigError{Field: key, Message: "invalid duration " + strconv.Quote(v)}
	}
	return d, nil
}

// parseDuration accepts Go durations and bare seconds
func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.StorageType {
	case "sqlite", "postgres", "none":
	default:
		return &ConfigError{Field: "STORAGE_TYPE", Message: "must be 'sqlite', 'postgres' or 'none'"}
	}
	if c.StorageType == "postgres" && c.PostgresURL == "" {
		return &ConfigError{Field: "POSTGRES_URL", Message: "PostgreSQL URL is required when STORAGE_TYPE is 'postgres'"}
	}
	if c.StorageType == "sqlite" && c.SQLitePath == "" {
		return &ConfigError{Field: "SQLITE_PATH", Message: "SQLite path is required when STORAGE_TYPE is 'sqlite'"}
	}
	if c.ExportFormat != "csv" && c.ExportFormat != "xlsx" {
		return &ConfigError{Field: "EXPORT_FORMAT", Message: "must be 'csv' or 'xlsx'"}
	}
	if c.Throttle <= 0 {
		return &ConfigError{Field: "THROTTLE_INTERVAL", Message: "must be positive"}
	}
	if c.RequestTimeout <= 0 {
		return &ConfigError{Field: "REQUEST_TIMEOUT", Message: "must be positive"}
	}
	if c.SearchPageSize <= 0 || c.SearchPageSize > 1000 {
		return &ConfigError{Field: "SEARCH_PAGE_SIZE", Message: "must be between 1 and 1000"}
	}
	if c.MetricsRefreshInterval <= 0 {
		return &ConfigError{Field: "METRICS_REFRESH_INTERVAL", Message: "must be positive"}
	}
	return nil
}

// ValidateCollector checks the settings needed to reach the helpdesk API
func (c *Config) ValidateCollector() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ZendeskURL == "" {
		return &ConfigError{Field: "ZENDESK_URL", Message: "Zendesk URL or ZENDESK_SUBDOMAIN is required"}
	}
	if !strings.HasPrefix(c.ZendeskURL, "https://") && !strings.HasPrefix(c.ZendeskURL, "http://") {
		return &ConfigError{Field: "ZENDESK_URL", Message: "must start with http:// or https://"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
