// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/recordapi/lib/sqlitepool"
)

func openTestPool(t *testing.T, cfg sqlitepool.Config) *sqlitepool.Pool {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "test.db")
	}
	pool, err := sqlitepool.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return pool
}

func TestDefaultPragmas(t *testing.T) {
	pool := openTestPool(t, sqlitepool.Config{PoolSize: 1})

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)

	var journalMode string
	err = sqlitex.Execute(conn, "PRAGMA journal_mode", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			journalMode = stmt.ColumnText(0)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %q, want wal", journalMode)
	}

	var foreignKeys int
	err = sqlitex.Execute(conn, "PRAGMA foreign_keys", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			foreignKeys = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if foreignKeys != 1 {
		t.Errorf("foreign_keys = %d, want 1", foreignKeys)
	}
}

func TestOnConnect(t *testing.T) {
	pool := openTestPool(t, sqlitepool.Config{
		PoolSize: 1,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, `CREATE TABLE IF NOT EXISTS notes (body TEXT NOT NULL);`, nil)
		},
	})

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)

	if err := sqlitex.Execute(conn, "INSERT INTO notes (body) VALUES (?)", &sqlitex.ExecOptions{
		Args: []any{"hello"},
	}); err != nil {
		t.Fatalf("INSERT: %v", err)
	}
}

func TestReadOnlyPragmas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "owned.db")
	writer := openTestPool(t, sqlitepool.Config{
		Path:     path,
		PoolSize: 1,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, `CREATE TABLE IF NOT EXISTS items (id INTEGER PRIMARY KEY);`, nil)
		},
	})
	conn, err := writer.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	writer.Put(conn)

	reader := openTestPool(t, sqlitepool.Config{
		Path:     path,
		PoolSize: 1,
		Pragmas:  sqlitepool.ReadOnlyPragmas,
	})
	conn, err = reader.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer reader.Put(conn)

	err = sqlitex.Execute(conn, "INSERT INTO items (id) VALUES (1)", nil)
	if err == nil || !strings.Contains(strings.ToLower(err.Error()), "readonly") {
		t.Errorf("INSERT on query_only connection: err = %v, want readonly error", err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := sqlitepool.Open(sqlitepool.Config{}); err == nil {
		t.Error("Open with empty path succeeded")
	}
}

func TestPrivateMemoryConnections(t *testing.T) {
	pool := openTestPool(t, sqlitepool.Config{
		Path:     "file::memory:?mode=memory",
		PoolSize: 2,
		Pragmas:  []string{},
	})
	ctx := context.Background()

	first, err := pool.Take(ctx)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(first)
	second, err := pool.Take(ctx)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(second)

	if err := sqlitex.ExecuteTransient(first, "CREATE TABLE scratch (id INTEGER)", nil); err != nil {
		t.Fatalf("CREATE TABLE: %v", err)
	}

	var tables int
	err = sqlitex.ExecuteTransient(second, "SELECT count(*) FROM sqlite_schema", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			tables = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("counting tables: %v", err)
	}
	if tables != 0 {
		t.Errorf("second connection sees %d tables, want its own empty database", tables)
	}
}
