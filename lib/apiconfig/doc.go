// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package apiconfig edits the Record API section of the configuration
// document.
//
// The document functions (Find, FindAll, Upsert, RemoveAll) are pure:
// they never modify their input and return copies. Persisting the
// result is the caller's job.
//
// Lookup and mutation use different keys. Find and RemoveAll match on
// the table name, Upsert matches on the API name. Renaming an entry
// and upserting it therefore appends a second entry for the same
// table instead of replacing the first:
//
//	doc := &recordapi.Config{RecordAPIs: []recordapi.RecordAPIConfig{{Name: "t", TableName: "t"}}}
//	doc = apiconfig.Upsert(doc, recordapi.RecordAPIConfig{Name: "t2", TableName: "t"})
//	// doc now holds both entries; Find(doc, "t") returns {Name: "t"}.
//
// FindAll surfaces such duplicates and RemoveAll clears all of them.
//
// A [Session] drives one operator editing one resource through the
// Absent, Draft and Enabled states, validating access rules as they
// are typed and writing the whole document back on submit.
package apiconfig
