// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by this module's tests.
//
// [RequireReceive] and [RequireNoReceive] wrap the select-with-timeout
// pattern for channels fed by background goroutines (validation
// results, shell signals), so tests never hang and never sleep.
// [Logger] routes slog output through t.Log.
//
// Helpers call t.Fatalf on failure.
package testutil
