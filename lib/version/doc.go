// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the recordapi
// binary.
//
// Four package-level variables are injected at build time via
// -ldflags -X:
//
//	go build -ldflags "-X github.com/bureau-foundation/recordapi/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// They default to "unknown" / "0.1.0-dev" during development builds
// and test runs. [Info] formats them for --version, [Full] adds the Go
// toolchain and platform, and [Fields] returns them for JSON output.
package version
