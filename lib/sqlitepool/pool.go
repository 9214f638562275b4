// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// DefaultPragmas are applied to every connection when Config.Pragmas
// is nil.
var DefaultPragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
	"PRAGMA temp_store=MEMORY",
}

// ReadOnlyPragmas suit databases owned by another process.
var ReadOnlyPragmas = []string{
	"PRAGMA query_only=ON",
	"PRAGMA busy_timeout=5000",
}

// Config holds the parameters for opening a pool. Path is required.
type Config struct {
	// Path is the database file or an SQLite URI. Plain ":memory:" is
	// rejected by the pool; "file::memory:?mode=memory" gives every
	// connection its own independent empty database.
	Path string

	// PoolSize defaults to 4 when zero or negative.
	PoolSize int

	// Pragmas replaces DefaultPragmas when non-nil.
	Pragmas []string

	// Logger receives open/close messages. Nil discards them.
	Logger *slog.Logger

	// OnConnect runs once per connection after the pragmas. An error
	// discards the connection and is returned from Take.
	OnConnect func(conn *sqlite.Conn) error
}

// Pool is a fixed-size pool of SQLite connections. The pool is safe
// for concurrent use; individual connections are not.
type Pool struct {
	inner  *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// Open creates the pool. Connections are initialized lazily on first
// Take. The caller must Close the pool.
func Open(cfg Config) (*Pool, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlitepool: Path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pragmas := cfg.Pragmas
	if pragmas == nil {
		pragmas = DefaultPragmas
	}

	inner, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			return prepareConnection(conn, pragmas, cfg.OnConnect)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: opening %s: %w", cfg.Path, err)
	}

	logger.Debug("sqlite pool opened", "path", cfg.Path, "pool_size", poolSize)

	return &Pool{inner: inner, logger: logger, path: cfg.Path}, nil
}

// Take borrows a connection, blocking until one is free or ctx is
// done. Return it with Put:
//
//	conn, err := pool.Take(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Put(conn)
func (p *Pool) Take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := p.inner.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: take: %w", err)
	}
	return conn, nil
}

// Put returns a connection to the pool. Nil is a no-op.
func (p *Pool) Put(conn *sqlite.Conn) {
	p.inner.Put(conn)
}

// Path returns the database path the pool was opened with.
func (p *Pool) Path() string {
	return p.path
}

// Close closes every connection, waiting for borrowed ones to be
// returned.
func (p *Pool) Close() error {
	if err := p.inner.Close(); err != nil {
		p.logger.Error("sqlite pool close failed", "path", p.path, "error", err)
		return fmt.Errorf("sqlitepool: closing %s: %w", p.path, err)
	}
	p.logger.Debug("sqlite pool closed", "path", p.path)
	return nil
}

func prepareConnection(conn *sqlite.Conn, pragmas []string, onConnect func(*sqlite.Conn) error) error {
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlitepool: %s: %w", pragma, err)
		}
	}
	if onConnect != nil {
		if err := onConnect(conn); err != nil {
			return fmt.Errorf("sqlitepool: OnConnect: %w", err)
		}
	}
	return nil
}
