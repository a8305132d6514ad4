package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Environment variables overriding file values.
const (
	EnvBackendURL = "TGDECK_BACKEND_URL"
	EnvLogLevel   = "TGDECK_LOG_LEVEL"
)

// Config holds all configurable tgdeck settings.
type Config struct {
	BackendURL          string `json:"backend_url"`
	PageSize            int    `json:"page_size"`
	StorageBackend      string `json:"storage_backend"` // "file" | "sqlite"
	DataDir             string `json:"data_dir"`        // empty means the XDG data dir
	RequestTimeout      string `json:"request_timeout"` // Go duration, e.g. "30s"
	LogLevel            string `json:"log_level"`
	DefaultExportFormat string `json:"default_export_format"` // "csv" | "json"
	Timezone            string `json:"timezone"`              // for scheduled scrapes
}

// Defaults returns sensible default configuration values.
func Defaults() Config {
	return Config{
		BackendURL:          "http://localhost:8001",
		PageSize:            20,
		StorageBackend:      "file",
		RequestTimeout:      "30s",
		LogLevel:            "warn",
		DefaultExportFormat: "csv",
		Timezone:            "Local",
	}
}

// LoadGlobal reads ~/.config/tgdeck/config.json.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(home, ".config", "tgdeck", "config.json")
	return loadFile(path, true)
}

// LoadProject reads .tgdeckconfig in the current working directory.
// Returns nil (no error) if the file is absent.
func LoadProject() (*Config, error) {
	return loadFile(".tgdeckconfig", false)
}

// Load merges global and project files and applies environment overrides.
func Load() (Config, error) {
	global, err := LoadGlobal()
	if err != nil {
		return Config{}, err
	}
	project, err := LoadProject()
	if err != nil {
		return Config{}, err
	}
	cfg := Merge(global, project)
	ApplyEnv(&cfg, os.Getenv)
	return cfg, nil
}

// loadFile reads and parses a JSON config file at path.
// If returnDefaults is true, returns defaults when the file is absent.
// If returnDefaults is false, returns nil when the file is absent.
func loadFile(path string, returnDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults.
func Merge(global, project *Config) Config {
	result := Defaults()
	overlay(&result, global)
	overlay(&result, project)
	return result
}

// overlay copies every set field of src onto dst.
func overlay(dst, src *Config) {
	if src == nil {
		return
	}
	if src.BackendURL != "" {
		dst.BackendURL = src.BackendURL
	}
	if src.PageSize > 0 {
		dst.PageSize = src.PageSize
	}
	if src.StorageBackend != "" {
		dst.StorageBackend = src.StorageBackend
	}
	if src.DataDir != "" {
		dst.DataDir = src.DataDir
	}
	if src.RequestTimeout != "" {
		dst.RequestTimeout = src.RequestTimeout
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.DefaultExportFormat != "" {
		dst.DefaultExportFormat = src.DefaultExportFormat
	}
	if src.Timezone != "" {
		dst.Timezone = src.Timezone
	}
}

// ApplyEnv overrides cfg from the environment as read by getenv.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvBackendURL)); v != "" {
		cfg.BackendURL = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		cfg.LogLevel = v
	}
}

// Timeout parses RequestTimeout.
func (c Config) Timeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid request_timeout %q: %w", c.RequestTimeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid request_timeout %q: must be positive", c.RequestTimeout)
	}
	return d, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if !strings.HasPrefix(c.BackendURL, "http://") && !strings.HasPrefix(c.BackendURL, "https://") {
		return fmt.Errorf("invalid backend_url %q: must start with http:// or https://", c.BackendURL)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("invalid page_size %d: must be positive", c.PageSize)
	}
	switch c.StorageBackend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("invalid storage_backend %q: use file or sqlite", c.StorageBackend)
	}
	switch c.DefaultExportFormat {
	case "csv", "json":
	default:
		return fmt.Errorf("invalid default_export_format %q: use csv or json", c.DefaultExportFormat)
	}
	if _, err := c.Timeout(); err != nil {
		return err
	}
	return nil
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
