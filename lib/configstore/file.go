// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/recordapi/lib/schema/recordapi"
)

// FileConfig holds the parameters for NewFile.
type FileConfig struct {
	// Path is the document file. Required. The parent directory must
	// exist.
	Path string

	Logger *slog.Logger
}

// File stores the document as a JSON file. Comments and trailing
// commas are accepted on read and dropped on write.
type File struct {
	path   string
	logger *slog.Logger
}

// NewFile returns a store backed by the file at cfg.Path. The file
// need not exist yet.
func NewFile(cfg FileConfig) (*File, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("configstore: file path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Info("configuration store opened", "backend", "file", "path", cfg.Path)
	return &File{path: cfg.Path, logger: logger}, nil
}

// Get reads and parses the file.
func (f *File) Get(ctx context.Context) (*recordapi.Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoDocument
		}
		return nil, fmt.Errorf("configstore: reading %s: %w", f.path, err)
	}
	document, err := ParseJSONC(data)
	if err != nil {
		return nil, fmt.Errorf("configstore: %s: %w", f.path, err)
	}
	return document, nil
}

// Set writes the document to a temporary file in the same directory
// and renames it over the target.
func (f *File) Set(ctx context.Context, document *recordapi.Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkWritable(document); err != nil {
		return err
	}
	data, err := MarshalJSON(document)
	if err != nil {
		return fmt.Errorf("configstore: %w", err)
	}
	if err := writeFileAtomic(f.path, data); err != nil {
		return fmt.Errorf("configstore: %w", err)
	}
	f.logger.Debug("configuration file written", "path", f.path, "entries", len(document.RecordAPIs))
	return nil
}

// Close is a no-op.
func (f *File) Close() error { return nil }

// ParseJSONC parses a JSON document that may carry comments and
// trailing commas.
func ParseJSONC(data []byte) (*recordapi.Config, error) {
	var document recordapi.Config
	if err := json.Unmarshal(jsonc.ToJSON(data), &document); err != nil {
		return nil, fmt.Errorf("parsing configuration document: %w", err)
	}
	return &document, nil
}

// MarshalJSON renders a document as indented JSON with a trailing
// newline.
func MarshalJSON(document *recordapi.Config) ([]byte, error) {
	data, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding configuration document: %w", err)
	}
	return append(data, '\n'), nil
}

func writeFileAtomic(path string, data []byte) error {
	temporary, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	temporaryPath := temporary.Name()
	defer os.Remove(temporaryPath)

	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		return fmt.Errorf("writing %s: %w", temporaryPath, err)
	}
	if err := temporary.Sync(); err != nil {
		temporary.Close()
		return fmt.Errorf("syncing %s: %w", temporaryPath, err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", temporaryPath, err)
	}
	if err := os.Chmod(temporaryPath, 0o644); err != nil {
		return fmt.Errorf("setting mode on %s: %w", temporaryPath, err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
