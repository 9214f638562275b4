// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package introspect lists the tables and views of a SQLite database
// as Record API resources. The database is opened read-only; it
// usually belongs to another process.
package introspect
