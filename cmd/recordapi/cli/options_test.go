// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bureau-foundation/recordapi/lib/config"
)

func TestConfigOptions_Flags(t *testing.T) {
	type params struct {
		ConfigOptions
	}
	var p params
	flagSet := FlagsFromParams("test", &p)

	err := flagSet.Parse([]string{"--config", "/etc/recordapi.yaml", "--store", "config.jsonc", "--log-level", "debug"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.ConfigPath != "/etc/recordapi.yaml" || p.StorePath != "config.jsonc" || p.LogLevel != "debug" {
		t.Errorf("options = %+v", p.ConfigOptions)
	}
}

func TestConfigOptions_LoadDefaultsWithOverrides(t *testing.T) {
	t.Setenv(config.EnvVar, "")
	store := filepath.Join(t.TempDir(), "config.jsonc")

	options := ConfigOptions{StorePath: store, LogLevel: "warn"}
	cfg, err := options.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Path != store || cfg.Store.Backend != "" {
		t.Errorf("store = %+v, want path %s with inferred backend", cfg.Store, store)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("logging.level = %q", cfg.Logging.Level)
	}
}

func TestConfigOptions_LoadFromEnvironment(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "recordapi.yaml")
	if err := os.WriteFile(configPath, []byte("paths:\n  root: /srv/recordapi\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv(config.EnvVar, configPath)

	cfg, err := (&ConfigOptions{}).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Path != "/srv/recordapi/config.db" {
		t.Errorf("store.path = %q", cfg.Store.Path)
	}
}

func TestConfigOptions_LoadRejectsInvalid(t *testing.T) {
	t.Setenv(config.EnvVar, "")
	if _, err := (&ConfigOptions{LogLevel: "loud"}).Load(); err == nil {
		t.Fatal("Load accepted an invalid log level")
	}
}
