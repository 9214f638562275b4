// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewCommandLogger creates a structured logger for CLI command operations
// at the given level.
//
// Format "text" and "json" select the handler directly. Format "auto"
// (or empty) uses slog.TextHandler when stderr is a terminal and
// slog.JSONHandler when stderr is piped or redirected (CI, scripts,
// tests), so machine consumers always get parseable output.
//
// Callers scope the logger with command-specific context via With():
//
//	logger := cli.NewCommandLogger(slog.LevelInfo, "auto").With(
//	    "command", "enable",
//	    "resource", resource.Name,
//	)
func NewCommandLogger(level slog.Level, format string) *slog.Logger {
	logger, err := newLogger(os.Stderr, level, format, term.IsTerminal(int(os.Stderr.Fd())))
	if err != nil {
		// Config validation rejects unknown formats before we get here.
		logger, _ = newLogger(os.Stderr, level, "json", false)
	}
	return logger
}

func newLogger(w io.Writer, level slog.Level, format string, terminal bool) (*slog.Logger, error) {
	options := &slog.HandlerOptions{Level: level}
	switch format {
	case "", "auto":
		if terminal {
			return slog.New(slog.NewTextHandler(w, options)), nil
		}
		return slog.New(slog.NewJSONHandler(w, options)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, options)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, options)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
