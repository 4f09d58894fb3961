package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFileYAML is the canonical config filename.
	DefaultConfigFileYAML = ".helpdesk-metrics.yaml"
	// DefaultConfigFileYML is a compatible alternate config filename.
	DefaultConfigFileYML = ".helpdesk-metrics.yml"
)

// FileConfig represents values loaded from a .helpdesk-metrics.yaml file.
// Credentials are never read from the file.
type FileConfig struct {
	Zendesk struct {
		URL            string `yaml:"url"`
		Subdomain      string `yaml:"subdomain"`
		Email          string `yaml:"email"`
		Throttle       string `yaml:"throttle"`
		RequestTimeout string `yaml:"request_timeout"`
		PageSize       *int   `yaml:"page_size"`
	} `yaml:"zendesk"`
	Storage struct {
		Type        string `yaml:"type"`
		SQLitePath  string `yaml:"sqlite_path"`
		PostgresURL string `yaml:"postgres_url"`
	} `yaml:"storage"`
	Export struct {
		OutputDir string `yaml:"output_dir"`
		Format    string `yaml:"format"`
	} `yaml:"export"`
	API struct {
		Host            string `yaml:"host"`
		Port            string `yaml:"port"`
		Endpoint        string `yaml:"endpoint"`
		MetricsInterval string `yaml:"metrics_refresh_interval"`
	} `yaml:"api"`
	Log struct {
		Level       string `yaml:"level"`
		Environment string `yaml:"environment"`
	} `yaml:"log"`
}

// Apply copies every set value onto cfg
func (fc *FileConfig) Apply(cfg *Config) error {
	if fc == nil {
		return nil
	}

	if sub := strings.TrimSpace(fc.Zendesk.Subdomain); sub != "" {
		cfg.ZendeskURL = SubdomainURL(sub)
	}
	setString(&cfg.ZendeskURL, fc.Zendesk.URL)
	setString(&cfg.ZendeskEmail, fc.Zendesk.Email)
	setString(&cfg.StorageType, fc.Storage.Type)
	setString(&cfg.SQLitePath, fc.Storage.SQLitePath)
	setString(&cfg.PostgresURL, fc.Storage.PostgresURL)
	setString(&cfg.OutputDir, fc.Export.OutputDir)
	setString(&cfg.ExportFormat, fc.Export.Format)
	setString(&cfg.APIHost, fc.API.Host)
	setString(&cfg.APIPort, fc.API.Port)
	setString(&cfg.APIEndpoint, fc.API.Endpoint)
	setString(&cfg.LogLevel, fc.Log.Level)
	setString(&cfg.Environment, fc.Log.Environment)
	if fc.Zendesk.PageSize != nil {
		cfg.SearchPageSize = *fc.Zendesk.PageSize
	}

	durations := []struct {
		field string
		value string
		dst   *time.Duration
	}{
		{"zendesk.throttle", fc.Zendesk.Throttle, &cfg.Throttle},
		{"zendesk.request_timeout", fc.Zendesk.RequestTimeout, &cfg.RequestTimeout},
		{"api.metrics_refresh_interval", fc.API.MetricsInterval, &cfg.MetricsRefreshInterval},
	}
	for _, d := range durations {
		v := strings.TrimSpace(d.value)
		if v == "" {
			continue
		}
		parsed, err := parseDuration(v)
		if err != nil {
			return &ConfigError{Field: d.field, Message: "invalid duration " + strconv.Quote(v)}
		}
		*d.dst = parsed
	}
	return nil
}

// AutoLoadFile discovers and loads the first available config file.
func AutoLoadFile() (*FileConfig, string, error) {
	candidates := []string{
		DefaultConfigFileYAML,
		DefaultConfigFileYML,
	}

	if homeDir, err := os.UserHomeDir(); err == nil && strings.TrimSpace(homeDir) != "" {
		candidates = append(candidates,
			filepath.Join(homeDir, DefaultConfigFileYAML),
			filepath.Join(homeDir, DefaultConfigFileYML),
		)
	}

	return LoadFirstExistingFile(candidates)
}

// LoadFirstExistingFile loads the first config file that exists in paths.
func LoadFirstExistingFile(paths []string) (*FileConfig, string, error) {
	for _, path := range paths {
		candidate := strings.TrimSpace(path)
		if candidate == "" {
			continue
		}

		info, err := os.Stat(candidate)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, "", fmt.Errorf("failed to access config file %q: %w", candidate, err)
		}
		if info.IsDir() {
			return nil, "", fmt.Errorf("config path %q is a directory, expected a file", candidate)
		}

		cfg, err := LoadFile(candidate)
		if err != nil {
			return nil, "", err
		}
		return cfg, candidate, nil
	}

	return nil, "", nil
}

// LoadFile loads config values from a specific YAML file path.
func LoadFile(path string) (*FileConfig, error) {
	filename := strings.TrimSpace(path)
	if filename == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", filename, err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", filename, err)
	}
	return &fc, nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
