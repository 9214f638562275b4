// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package configstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/bureau-foundation/recordapi/lib/clock"
	"github.com/bureau-foundation/recordapi/lib/schema/recordapi"
)

// ErrNoDocument is returned by Get when nothing has been stored yet.
var ErrNoDocument = errors.New("configstore: no configuration document")

// Backend is implemented by every store in this package.
type Backend interface {
	Get(ctx context.Context) (*recordapi.Config, error)
	Set(ctx context.Context, document *recordapi.Config) error
	Close() error
}

// Kind selects a backend.
type Kind string

const (
	KindSQLite Kind = "sqlite"
	KindFile   Kind = "file"
	KindMemory Kind = "memory"
)

// OpenConfig holds the parameters for Open.
type OpenConfig struct {
	// Kind selects the backend. Empty infers it from Path: ".json"
	// and ".jsonc" select the file backend, anything else SQLite.
	Kind Kind

	// Path is the database or document file. Unused for memory.
	Path string

	// Retain bounds the SQLite revision history. Zero selects
	// DefaultRetain.
	Retain int

	Clock  clock.Clock
	Logger *slog.Logger
}

// Open opens the configured backend.
func Open(cfg OpenConfig) (Backend, error) {
	kind := cfg.Kind
	if kind == "" {
		switch filepath.Ext(cfg.Path) {
		case ".json", ".jsonc":
			kind = KindFile
		default:
			kind = KindSQLite
		}
	}

	switch kind {
	case KindSQLite:
		return OpenSQLite(SQLiteConfig{
			Path:   cfg.Path,
			Retain: cfg.Retain,
			Clock:  cfg.Clock,
			Logger: cfg.Logger,
		})
	case KindFile:
		return NewFile(FileConfig{Path: cfg.Path, Logger: cfg.Logger})
	case KindMemory:
		return NewMemory(nil), nil
	default:
		return nil, fmt.Errorf("configstore: unknown backend %q (must be sqlite, file or memory)", kind)
	}
}

// checkWritable rejects documents that must not be stored.
func checkWritable(document *recordapi.Config) error {
	if document == nil {
		return fmt.Errorf("configstore: nil document")
	}
	if err := document.Validate(); err != nil {
		return fmt.Errorf("configstore: refusing to store invalid document: %w", err)
	}
	return nil
}
