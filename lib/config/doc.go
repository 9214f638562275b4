// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the recordapi
// tool.
//
// Configuration is loaded from a single file specified by either the
// RECORDAPI_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no automatic file search. Commands
// that run without a file use [Default].
//
// The configuration file supports environment-specific sections
// (development, staging, production) that override base values when
// [Config].Environment matches. Production defaults are stricter:
// logs are JSON and the revision history is kept longer.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${RECORDAPI_ROOT}, and ${VAR:-default} patterns are
// expanded. No other environment variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with Paths, Store, Database, Validation, Logging
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other packages in this module.
package config
