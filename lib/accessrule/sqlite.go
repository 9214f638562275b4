// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package accessrule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bureau-foundation/recordapi/lib/sqlitepool"
)

// scratchPath opens a private, empty in-memory database per
// connection. Plain ":memory:" is refused for multi-connection pools.
const scratchPath = "file::memory:?mode=memory"

// resolutionErrors prefix the SQLite prepare failures raised after
// parsing succeeded: binding names to the (empty) schema, and checking
// function arity and aggregate placement. They say nothing about
// syntax, so the parser accepts them. They are matched against the
// start of SQLite's own message, never the echoed expression text.
var resolutionErrors = []string{
	"no such column",
	"no such table",
	"no such function",
	"wrong number of arguments to function",
	"misuse of aggregate",
	"misuse of window function",
}

// logicErrorPrefix precedes SQLite's message in a prepare error,
// after the "sqlite: prepare: L:C: " wrapper.
const logicErrorPrefix = "SQL logic error: "

// syntaxMarkers locate the start of SQLite's own message when the
// wrapper has no logicErrorPrefix.
var syntaxMarkers = []string{
	"near \"",
	"incomplete input",
	"unrecognized token",
}

// SQLiteParser checks expression syntax with SQLite's parser. Each
// pooled connection is an empty in-memory database; statements are
// prepared and finalized, never stepped.
type SQLiteParser struct {
	pool *sqlitepool.Pool
}

// SQLiteParserConfig holds the parameters for NewSQLiteParser.
type SQLiteParserConfig struct {
	// PoolSize is the number of scratch connections. Defaults to 2.
	PoolSize int

	// Logger is passed to the pool. Nil discards messages.
	Logger *slog.Logger
}

// NewSQLiteParser opens the scratch connection pool. Close releases it.
func NewSQLiteParser(cfg SQLiteParserConfig) (*SQLiteParser, error) {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 2
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     scratchPath,
		PoolSize: poolSize,
		Pragmas:  []string{"PRAGMA query_only=ON"},
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("accessrule: %w", err)
	}
	return &SQLiteParser{pool: pool}, nil
}

// Close closes the scratch pool.
func (p *SQLiteParser) Close() error {
	return p.pool.Close()
}

// Parse prepares "SELECT (expression)". A syntax failure returns a
// *SyntaxError carrying SQLite's message.
func (p *SQLiteParser) Parse(ctx context.Context, expression string) error {
	conn, err := p.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer p.pool.Put(conn)

	// The newline keeps a trailing "--" comment from swallowing the
	// closing parenthesis.
	stmt, trailing, err := conn.PrepareTransient("SELECT (" + expression + "\n)")
	if err != nil {
		return classifyPrepareError(err)
	}
	defer stmt.Finalize()

	if trailing > 0 {
		return &SyntaxError{Diagnostic: "unexpected text after expression"}
	}
	return nil
}

// classifyPrepareError maps a prepare failure to nil (name resolution
// only) or a *SyntaxError.
func classifyPrepareError(err error) error {
	message := sqliteMessage(err.Error())
	lower := strings.ToLower(message)
	for _, resolution := range resolutionErrors {
		if strings.HasPrefix(lower, resolution) {
			return nil
		}
	}
	return &SyntaxError{Diagnostic: message}
}

// sqliteMessage strips the driver's wrapper from a prepare error and
// returns SQLite's own message. A syntax message ends at "syntax
// error"; anything after it is echoed statement text.
func sqliteMessage(message string) string {
	start := -1
	if index := strings.Index(message, logicErrorPrefix); index >= 0 {
		start = index + len(logicErrorPrefix)
	} else {
		for _, marker := range syntaxMarkers {
			if index := strings.Index(message, marker); index >= 0 && (start < 0 || index < start) {
				start = index
			}
		}
	}
	if start < 0 {
		if _, rest, found := strings.Cut(message, "prepare: "); found {
			// Drop the "L:C: " position the driver adds.
			if position, text, ok := strings.Cut(rest, ": "); ok && strings.Contains(position, ":") {
				rest = text
			}
			return rest
		}
		return message
	}
	diagnostic := message[start:]
	if strings.HasPrefix(diagnostic, "near \"") {
		if end := strings.Index(diagnostic, "\": syntax error"); end >= 0 {
			diagnostic = diagnostic[:end+len("\": syntax error")]
		}
	}
	return diagnostic
}
