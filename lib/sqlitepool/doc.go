// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool is the shared SQLite connection pool. Three
// components use it: the revision-history configuration store, the
// access rule parser (a pool of empty in-memory databases used only to
// prepare statements), and schema introspection of the application
// database.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool. Callers [Pool.Take]
// a connection, use it from a single goroutine, and [Pool.Put] it back.
//
// # Pragmas
//
// Unless [Config].Pragmas is set, every connection runs:
//
//   - journal_mode=WAL: readers never block the single writer.
//   - synchronous=NORMAL: commits survive a process crash.
//   - busy_timeout=5000: wait for a contended write lock.
//   - foreign_keys=ON: the store's tables reference each other.
//   - temp_store=MEMORY.
//
// Callers opening a database they do not own (introspection) pass
// [ReadOnlyPragmas] instead, which never changes the file's journal
// mode.
//
// Usage:
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   path,
//	    Logger: logger,
//	    OnConnect: func(conn *sqlite.Conn) error {
//	        return sqlitex.ExecuteScript(conn, schema, nil)
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
package sqlitepool
