// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable Load reads.
const EnvVar = "RECORDAPI_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Store configures where the configuration document lives.
	Store StoreConfig `yaml:"store"`

	// Database configures the application database whose tables and
	// views are offered as resources.
	Database DatabaseConfig `yaml:"database"`

	// Validation configures access rule checking.
	Validation ValidationConfig `yaml:"validation"`

	// Logging configures diagnostic output.
	Logging LoggingConfig `yaml:"logging"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Store      *StoreConfig      `yaml:"store,omitempty"`
	Database   *DatabaseConfig   `yaml:"database,omitempty"`
	Validation *ValidationConfig `yaml:"validation,omitempty"`
	Logging    *LoggingConfig    `yaml:"logging,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for recordapi data.
	Root string `yaml:"root"`
}

// StoreConfig configures the configuration document store.
type StoreConfig struct {
	// Backend is "sqlite", "file" or "memory". Empty infers it from
	// the path extension.
	Backend string `yaml:"backend"`

	// Path is the SQLite database or JSON document.
	// Default: ${RECORDAPI_ROOT}/config.db
	Path string `yaml:"path"`

	// Retain is how many revisions the SQLite backend keeps.
	// Default: 50 (development), 500 (production)
	Retain int `yaml:"retain"`
}

// DatabaseConfig configures the application database.
type DatabaseConfig struct {
	// Path is the SQLite database to introspect.
	// Default: ${RECORDAPI_ROOT}/main.db
	Path string `yaml:"path"`
}

// ValidationConfig configures access rule checking.
type ValidationConfig struct {
	// Quiescence is how long a rule must stay unedited before it is
	// checked in the background. Default: 500ms
	Quiescence string `yaml:"quiescence"`

	// Timeout bounds one check. Default: 5s
	Timeout string `yaml:"timeout"`

	// CacheTTL bounds how long a parse verdict is reused. "0s"
	// disables the cache. Default: 5m
	CacheTTL string `yaml:"cache_ttl"`

	// ParserPoolSize is the number of parser connections. Default: 2
	ParserPoolSize int `yaml:"parser_pool_size"`
}

// LoggingConfig configures diagnostic output.
type LoggingConfig struct {
	// Level is debug, info, warn or error. Default: info
	Level string `yaml:"level"`

	// Format is "auto" (text on a terminal, JSON otherwise), "text" or
	// "json". Default: auto (development), json (production)
	Format string `yaml:"format"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".local", "share", "recordapi")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root: defaultRoot,
		},
		Store: StoreConfig{
			Backend: "sqlite",
			Path:    filepath.Join(defaultRoot, "config.db"),
			Retain:  50,
		},
		Database: DatabaseConfig{
			Path: filepath.Join(defaultRoot, "main.db"),
		},
		Validation: ValidationConfig{
			Quiescence:     "500ms",
			Timeout:        "5s",
			CacheTTL:       "5m",
			ParserPoolSize: 2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads configuration from the RECORDAPI_CONFIG environment
// variable. If it is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your recordapi.yaml config file, or use --config flag", EnvVar)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// Paths left unset in the file are derived from paths.root, so a file
// that only sets the root moves everything with it.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	cfg.Store.Path = ""
	cfg.Database.Path = ""

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = "${RECORDAPI_ROOT}/config.db"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "${RECORDAPI_ROOT}/main.db"
	}

	// Apply environment-specific overrides (development/staging/production sections in the file).
	cfg.applyEnvironmentOverrides()

	// Expand ${HOME} and similar variables in paths for portability.
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: machine-readable logs, longer history.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Store:   &StoreConfig{Retain: 500},
				Logging: &LoggingConfig{Format: "json"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Store != nil {
		if overrides.Store.Backend != "" {
			c.Store.Backend = overrides.Store.Backend
		}
		if overrides.Store.Path != "" {
			c.Store.Path = overrides.Store.Path
		}
		if overrides.Store.Retain != 0 {
			c.Store.Retain = overrides.Store.Retain
		}
	}

	if overrides.Database != nil && overrides.Database.Path != "" {
		c.Database.Path = overrides.Database.Path
	}

	if overrides.Validation != nil {
		if overrides.Validation.Quiescence != "" {
			c.Validation.Quiescence = overrides.Validation.Quiescence
		}
		if overrides.Validation.Timeout != "" {
			c.Validation.Timeout = overrides.Validation.Timeout
		}
		if overrides.Validation.CacheTTL != "" {
			c.Validation.CacheTTL = overrides.Validation.CacheTTL
		}
		if overrides.Validation.ParserPoolSize != 0 {
			c.Validation.ParserPoolSize = overrides.Validation.ParserPoolSize
		}
	}

	if overrides.Logging != nil {
		if overrides.Logging.Level != "" {
			c.Logging.Level = overrides.Logging.Level
		}
		if overrides.Logging.Format != "" {
			c.Logging.Format = overrides.Logging.Format
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"RECORDAPI_ROOT": c.Paths.Root,
		"HOME":           os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["RECORDAPI_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Store.Path = expandVars(c.Store.Path, vars)
	c.Database.Path = expandVars(c.Database.Path, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	backends := []string{"", "sqlite", "file", "memory"}
	if !slices.Contains(backends, c.Store.Backend) {
		errs = append(errs, fmt.Errorf("store.backend must be one of: sqlite, file, memory"))
	}
	if c.Store.Backend != "memory" && c.Store.Path == "" {
		errs = append(errs, fmt.Errorf("store.path is required"))
	}

	for name, value := range map[string]string{
		"validation.quiescence": c.Validation.Quiescence,
		"validation.timeout":    c.Validation.Timeout,
		"validation.cache_ttl":  c.Validation.CacheTTL,
	} {
		if _, err := parseDuration(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.Validation.ParserPoolSize < 0 {
		errs = append(errs, fmt.Errorf("validation.parser_pool_size must not be negative"))
	}

	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	formats := []string{"", "auto", "text", "json"}
	if !slices.Contains(formats, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of: auto, text, json"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// QuiescenceDuration returns validation.quiescence as a duration.
func (c *ValidationConfig) QuiescenceDuration() time.Duration {
	d, _ := parseDuration(c.Quiescence)
	return d
}

// TimeoutDuration returns validation.timeout as a duration.
func (c *ValidationConfig) TimeoutDuration() time.Duration {
	d, _ := parseDuration(c.Timeout)
	return d
}

// CacheTTLDuration returns validation.cache_ttl as a duration. An
// explicit zero is returned as a negative value, which disables the
// verdict cache.
func (c *ValidationConfig) CacheTTLDuration() time.Duration {
	d, _ := parseDuration(c.CacheTTL)
	if c.CacheTTL != "" && d == 0 {
		return -1
	}
	return d
}

// LogLevel parses logging.level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if c.Logging.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

// EnsurePaths creates the directories holding the configured files.
func (c *Config) EnsurePaths() error {
	paths := []string{c.Paths.Root}
	if c.Store.Backend != "memory" && c.Store.Path != "" {
		paths = append(paths, filepath.Dir(c.Store.Path))
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}

func parseDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative: %s", value)
	}
	return d, nil
}
