// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package configstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/recordapi/lib/clock"
	"github.com/bureau-foundation/recordapi/lib/schema/recordapi"
	"github.com/bureau-foundation/recordapi/lib/sqlitepool"
)

// DefaultRetain is the number of revisions kept by the SQLite store
// when SQLiteConfig.Retain is zero.
const DefaultRetain = 50

const schemaSQL = `
CREATE TABLE IF NOT EXISTS config_revisions (
	revision   INTEGER PRIMARY KEY AUTOINCREMENT,
	written_at INTEGER NOT NULL,
	digest     TEXT    NOT NULL,
	entries    INTEGER NOT NULL,
	size       INTEGER NOT NULL,
	snapshot   BLOB    NOT NULL
);
`

// SQLiteConfig holds the parameters for OpenSQLite.
type SQLiteConfig struct {
	// Path is the database file. Required.
	Path string

	// Retain bounds the number of revisions kept. Zero selects
	// DefaultRetain; negative keeps everything.
	Retain int

	// PoolSize is passed to the connection pool.
	PoolSize int

	// Clock timestamps revisions. Nil uses the real clock.
	Clock clock.Clock

	Logger *slog.Logger
}

// Revision describes one stored write.
type Revision struct {
	Number    int64     `json:"revision"`
	WrittenAt time.Time `json:"written_at"`
	Digest    string    `json:"digest"`
	Entries   int       `json:"entries"`
	Size      int       `json:"size"`
}

// SQLite stores the document as an append-only revision log.
type SQLite struct {
	pool   *sqlitepool.Pool
	retain int
	clock  clock.Clock
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the revision database.
func OpenSQLite(cfg SQLiteConfig) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("configstore: SQLite path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	retain := cfg.Retain
	if retain == 0 {
		retain = DefaultRetain
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schemaSQL, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("configstore: %w", err)
	}

	logger.Info("configuration store opened", "backend", "sqlite", "path", cfg.Path, "retain", retain)

	return &SQLite{pool: pool, retain: retain, clock: clk, logger: logger}, nil
}

// Get returns the most recent revision.
func (s *SQLite) Get(ctx context.Context) (*recordapi.Config, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("configstore: %w", err)
	}
	defer s.pool.Put(conn)

	document, found, err := readRevision(conn,
		"SELECT snapshot, size FROM config_revisions ORDER BY revision DESC LIMIT 1")
	if err != nil {
		return nil, fmt.Errorf("configstore: reading latest revision: %w", err)
	}
	if !found {
		return nil, ErrNoDocument
	}
	return document, nil
}

// Revision returns a specific revision.
func (s *SQLite) Revision(ctx context.Context, number int64) (*recordapi.Config, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("configstore: %w", err)
	}
	defer s.pool.Put(conn)

	document, found, err := readRevision(conn,
		"SELECT snapshot, size FROM config_revisions WHERE revision = ?", number)
	if err != nil {
		return nil, fmt.Errorf("configstore: reading revision %d: %w", number, err)
	}
	if !found {
		return nil, fmt.Errorf("configstore: revision %d: %w", number, ErrNoDocument)
	}
	return document, nil
}

// Set appends a new revision and prunes revisions beyond the retention
// bound, in one transaction.
func (s *SQLite) Set(ctx context.Context, document *recordapi.Config) (err error) {
	if err := checkWritable(document); err != nil {
		return err
	}
	snap, err := encodeSnapshot(document)
	if err != nil {
		return fmt.Errorf("configstore: %w", err)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("configstore: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("configstore: beginning transaction: %w", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn,
		`INSERT INTO config_revisions (written_at, digest, entries, size, snapshot)
		 VALUES (?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				s.clock.Now().UnixNano(),
				snap.digest,
				len(document.RecordAPIs),
				snap.size,
				snap.compressed,
			},
		})
	if err != nil {
		return fmt.Errorf("configstore: inserting revision: %w", err)
	}
	revision := conn.LastInsertRowID()

	if s.retain > 0 {
		err = sqlitex.Execute(conn,
			"DELETE FROM config_revisions WHERE revision <= ?",
			&sqlitex.ExecOptions{Args: []any{revision - int64(s.retain)}})
		if err != nil {
			return fmt.Errorf("configstore: pruning revisions: %w", err)
		}
	}

	s.logger.Debug("configuration revision written",
		"revision", revision,
		"digest", snap.digest,
		"entries", len(document.RecordAPIs),
	)
	return nil
}

// History returns up to limit revisions, newest first. A limit of zero
// or less returns all retained revisions.
func (s *SQLite) History(ctx context.Context, limit int) ([]Revision, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("configstore: %w", err)
	}
	defer s.pool.Put(conn)

	if limit <= 0 {
		limit = -1
	}

	var revisions []Revision
	err = sqlitex.Execute(conn,
		`SELECT revision, written_at, digest, entries, size
		 FROM config_revisions ORDER BY revision DESC LIMIT ?`,
		&sqlitex.ExecOptions{
			Args: []any{limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				revisions = append(revisions, Revision{
					Number:    stmt.ColumnInt64(0),
					WrittenAt: time.Unix(0, stmt.ColumnInt64(1)).UTC(),
					Digest:    stmt.ColumnText(2),
					Entries:   stmt.ColumnInt(3),
					Size:      stmt.ColumnInt(4),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("configstore: reading history: %w", err)
	}
	return revisions, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.pool.Close()
}

func readRevision(conn *sqlite.Conn, query string, args ...any) (*recordapi.Config, bool, error) {
	var (
		document *recordapi.Config
		found    bool
	)
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			compressed := make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, compressed)
			decoded, err := decodeSnapshot(compressed, stmt.ColumnInt(1))
			if err != nil {
				return err
			}
			document = decoded
			found = true
			return nil
		},
	})
	if err != nil {
		return nil, false, err
	}
	return document, found, nil
}
