// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/recordapi/lib/config"
)

// ConfigOptions carries the flags every command that touches the
// configuration store shares. It implements [FlagBinder], so embedding
// it in a params struct adds --config, --store, --database and
// --log-level.
type ConfigOptions struct {
	// ConfigPath is the YAML configuration file. Empty falls back to
	// RECORDAPI_CONFIG, then to built-in defaults.
	ConfigPath string

	// StorePath overrides store.path.
	StorePath string

	// DatabasePath overrides database.path.
	DatabasePath string

	// LogLevel overrides logging.level.
	LogLevel string
}

// AddFlags registers the shared flags.
func (o *ConfigOptions) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&o.ConfigPath, "config", "", "configuration file (default: $"+config.EnvVar+")")
	flagSet.StringVar(&o.StorePath, "store", "", "configuration store: SQLite database or .json/.jsonc file (overrides store.path)")
	flagSet.StringVar(&o.DatabasePath, "database", "", "application database to introspect (overrides database.path)")
	flagSet.StringVar(&o.LogLevel, "log-level", "", "log level: debug, info, warn, error (overrides logging.level)")
}

// Load resolves the configuration: --config, then RECORDAPI_CONFIG,
// then defaults. Flag overrides are applied last and the result is
// validated.
func (o *ConfigOptions) Load() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case o.ConfigPath != "":
		cfg, err = config.LoadFile(o.ConfigPath)
	case os.Getenv(config.EnvVar) != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	if o.StorePath != "" {
		cfg.Store.Path = o.StorePath
		// An explicit path selects its backend by extension.
		cfg.Store.Backend = ""
	}
	if o.DatabasePath != "" {
		cfg.Database.Path = o.DatabasePath
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Logger builds the command logger from the resolved configuration.
func Logger(cfg *config.Config) *slog.Logger {
	level, _ := cfg.LogLevel()
	return NewCommandLogger(level, cfg.Logging.Format)
}
