// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package configstore persists the configuration document.
//
// Every backend offers the same two operations: Get returns the
// current document, Set replaces it. Set is all-or-nothing; a failed
// Set leaves the previous document in place. There is no
// compare-and-swap: two editors that read, modify and write
// concurrently race, and the later Set wins. Callers are expected to
// re-read immediately before each mutation to keep that window small.
//
// Backends:
//
//   - [SQLite] keeps every write as a numbered revision (CBOR,
//     zstd-compressed, fingerprinted with BLAKE3) and serves the latest.
//     History and Revision expose older revisions.
//   - [File] reads a JSON document, tolerating comments and trailing
//     commas (JSONC), and replaces it by atomic rename.
//   - [Memory] holds the document in process, for dry runs and tests.
//
// Get on a store that has never been written returns ErrNoDocument.
package configstore
