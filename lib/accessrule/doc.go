// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package accessrule checks Record API access rule expressions.
//
// A rule is a boolean SQL expression such as
//
//	_ROW_.owner = _USER_.id
//	EXISTS (SELECT 1 FROM members WHERE grp = _ROW_.grp AND usr = _USER_.id)
//
// [Validator.Validate] accepts an empty expression (the slot is unset)
// and otherwise runs three checks in order:
//
//  1. A lexical scan rejects unterminated strings and comments,
//     unbalanced parentheses, statement separators, and references to
//     namespace identifiers the rule kind may not see (a create rule
//     cannot reference _ROW_; a schema rule sees only _USER_).
//  2. The [Parser] checks syntax. [SQLiteParser] prepares
//     "SELECT (expr)" against an empty in-memory database: SQLite's
//     parser reports syntax errors before name resolution, so unknown
//     tables and columns are accepted and syntax errors are not.
//  3. Parser verdicts are cached by expression for the configured TTL.
//
// Nothing is evaluated and no runtime data is consulted.
//
// Editors call the validator as the operator types. [Scheduler] wraps
// it with a quiescence delay (500ms by default) and per-field
// supersession: a new request for a field cancels the pending one,
// and a result that arrives after being superseded is dropped.
package accessrule
