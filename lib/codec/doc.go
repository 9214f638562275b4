// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the module's CBOR configuration.
//
// JSON is the external format: configuration document files, CLI
// output, import/export. CBOR is the internal one: the revision
// snapshots the SQLite configuration store keeps. Types carry json
// struct tags only; fxamacker/cbor falls back to them, so one set of
// tags serves both formats.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same document always encodes to the same bytes. The store relies on
// that to fingerprint revisions.
//
//	data, err := codec.Marshal(document)
//	err = codec.Unmarshal(data, &document)
package codec
