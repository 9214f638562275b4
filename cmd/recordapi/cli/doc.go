// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the recordapi
// tool.
//
// The central type is [Command], which represents a named subcommand with
// optional nested [Command.Subcommands], a flag set built from a params
// struct ([BindFlags]) or a [pflag.FlagSet] factory, and a Run function.
// Commands are assembled into a tree in cmd/recordapi/commands and
// dispatched via [Command.Execute], which handles flag parsing,
// subcommand routing, and structured help output with examples.
//
// When a user types an unknown subcommand or flag, the framework computes
// Levenshtein edit distance against all known names and suggests the
// closest match (threshold: distance <= 3).
//
// Shared pieces used by every subcommand:
//
//   - [ConfigOptions]: --config/--store/--database/--log-level, resolved
//     into a validated config.Config by [ConfigOptions.Load].
//   - [JSONOutput]: the --json flag and [JSONOutput.EmitJSON].
//   - [NewCommandLogger]: slog text output on a terminal, JSON otherwise.
//   - [ExitError]: a non-zero exit without an extra error line.
package cli
