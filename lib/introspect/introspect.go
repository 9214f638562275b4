// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package introspect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/recordapi/lib/schema/recordapi"
	"github.com/bureau-foundation/recordapi/lib/sqlitepool"
)

// ErrNotFound is returned by Lookup for a name that is neither a table
// nor a view.
var ErrNotFound = errors.New("no such table or view")

// Internal tables (sqlite_*) and the schema itself are never exposed.
const listQuery = `
SELECT name, type FROM sqlite_schema
WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite\_%' ESCAPE '\'
ORDER BY name`

const lookupQuery = `
SELECT name, type FROM sqlite_schema
WHERE type IN ('table', 'view') AND name = ?`

// Config holds the parameters for Open.
type Config struct {
	// Path is the database to inspect. Required.
	Path string

	Logger *slog.Logger
}

// Inspector reads resource descriptors from a database.
type Inspector struct {
	pool *sqlitepool.Pool
}

// Open opens the database read-only.
func Open(cfg Config) (*Inspector, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("introspect: Path is required")
	}
	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, fmt.Errorf("introspect: %w", err)
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: 1,
		Pragmas:  sqlitepool.ReadOnlyPragmas,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("introspect: %w", err)
	}
	return &Inspector{pool: pool}, nil
}

// List returns every table and view, ordered by name.
func (i *Inspector) List(ctx context.Context) ([]recordapi.Resource, error) {
	conn, err := i.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("introspect: %w", err)
	}
	defer i.pool.Put(conn)

	var resources []recordapi.Resource
	err = sqlitex.Execute(conn, listQuery, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			resource, err := scanResource(stmt)
			if err != nil {
				return err
			}
			resources = append(resources, resource)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("introspect: listing schema: %w", err)
	}
	return resources, nil
}

// Lookup returns the descriptor for one table or view.
func (i *Inspector) Lookup(ctx context.Context, name string) (recordapi.Resource, error) {
	conn, err := i.pool.Take(ctx)
	if err != nil {
		return recordapi.Resource{}, fmt.Errorf("introspect: %w", err)
	}
	defer i.pool.Put(conn)

	var (
		resource recordapi.Resource
		found    bool
	)
	err = sqlitex.Execute(conn, lookupQuery, &sqlitex.ExecOptions{
		Args: []any{name},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			var err error
			resource, err = scanResource(stmt)
			found = err == nil
			return err
		},
	})
	if err != nil {
		return recordapi.Resource{}, fmt.Errorf("introspect: looking up %q: %w", name, err)
	}
	if !found {
		return recordapi.Resource{}, fmt.Errorf("introspect: %q: %w", name, ErrNotFound)
	}
	return resource, nil
}

// Close closes the database.
func (i *Inspector) Close() error {
	return i.pool.Close()
}

func scanResource(stmt *sqlite.Stmt) (recordapi.Resource, error) {
	kind, err := recordapi.ParseResourceKind(stmt.ColumnText(1))
	if err != nil {
		return recordapi.Resource{}, err
	}
	return recordapi.Resource{Name: stmt.ColumnText(0), Kind: kind}, nil
}
