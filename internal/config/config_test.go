package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"ZENDESK_URL", "ZENDESK_SUBDOMAIN", "ZENDESK_EMAIL", "THROTTLE_INTERVAL", "REQUEST_TIMEOUT",
	"SEARCH_PAGE_SIZE", "STORAGE_TYPE", "SQLITE_PATH", "POSTGRES_URL", "OUTPUT_DIR", "EXPORT_FORMAT",
	"API_HOST", "API_PORT", "API_ENDPOINT", "LOG_LEVEL", "ENVIRONMENT", "METRICS_REFRESH_INTERVAL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	t.Setenv("HOME", t.TempDir())
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
	assert.Equal(t, time.Second, cfg.Throttle)
	assert.Equal(t, 1000, cfg.SearchPageSize)
	require.NoError(t, cfg.Validate())

	var cfgErr *ConfigError
	require.ErrorAs(t, cfg.ValidateCollector(), &cfgErr)
	assert.Equal(t, "ZENDESK_URL", cfgErr.Field)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
zendesk:
  subdomain: acme
  email: agent@acme.test
  throttle: 500ms
  page_size: 200
storage:
  type: postgres
  postgres_url: postgres://localhost/helpdesk
export:
  format: xlsx
api:
  metrics_refresh_interval: 1m
`)
	t.Setenv("THROTTLE_INTERVAL", "2")
	t.Setenv("API_PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://acme.zendesk.com", cfg.ZendeskURL)
	assert.Equal(t, "agent@acme.test", cfg.ZendeskEmail)
	assert.Equal(t, 2*time.Second, cfg.Throttle, "environment wins over file")
	assert.Equal(t, 200, cfg.SearchPageSize)
	assert.Equal(t, "postgres", cfg.StorageType)
	assert.Equal(t, "xlsx", cfg.ExportFormat)
	assert.Equal(t, time.Minute, cfg.MetricsRefreshInterval)
	assert.Equal(t, "9090", cfg.APIPort)
	require.NoError(t, cfg.ValidateCollector())
}

func TestZendeskURLWinsOverSubdomain(t *testing.T) {
	clearEnv(t)
	t.Setenv("ZENDESK_SUBDOMAIN", "acme")
	t.Setenv("ZENDESK_URL", "http://127.0.0.1:9999")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9999", cfg.ZendeskURL)
}

func TestAutoLoadFile(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.WriteFile(DefaultConfigFileYAML, []byte("export:\n  output_dir: ./out\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "./out", cfg.OutputDir)
}

func TestLoadInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("REQUEST_TIMEOUT", "soon")
	_, err := Load("")
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "REQUEST_TIMEOUT", cfgErr.Field)

	clearEnv(t)
	_, err = Load(writeFile(t, "zendesk:\n  throttle: often\n"))
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "zendesk.throttle", cfgErr.Field)

	_, err = Load(writeFile(t, "zendesk: [\n"))
	assert.ErrorContains(t, err, "failed to parse config file")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{name: "bad storage", mutate: func(c *Config) { c.StorageType = "mysql" }, field: "STORAGE_TYPE"},
		{name: "postgres without url", mutate: func(c *Config) { c.StorageType = "postgres" }, field: "POSTGRES_URL"},
		{name: "bad format", mutate: func(c *Config) { c.ExportFormat = "json" }, field: "EXPORT_FORMAT"},
		{name: "negative throttle", mutate: func(c *Config) { c.Throttle = -time.Second }, field: "THROTTLE_INTERVAL"},
		{name: "page size too large", mutate: func(c *Config) { c.SearchPageSize = 5000 }, field: "SEARCH_PAGE_SIZE"},
		{name: "zero timeout", mutate: func(c *Config) { c.RequestTimeout = 0 }, field: "REQUEST_TIMEOUT"},
		{name: "no storage is valid", mutate: func(c *Config) { c.StorageType = "none" }},
		{name: "zero throttle", mutate: func(c *Config) { c.Throttle = 0 }, field: "THROTTLE_INTERVAL"},
		{name: "sub-second throttle", mutate: func(c *Config) { c.Throttle = 250 * time.Millisecond }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("1.5")
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)

	d, err = parseDuration("250ms")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)
}
