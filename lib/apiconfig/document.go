// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package apiconfig

import (
	"github.com/bureau-foundation/recordapi/lib/schema/recordapi"
)

// Find returns a copy of the first entry exposing tableName.
func Find(document *recordapi.Config, tableName string) (recordapi.RecordAPIConfig, bool) {
	if document == nil {
		return recordapi.RecordAPIConfig{}, false
	}
	for i := range document.RecordAPIs {
		if document.RecordAPIs[i].TableName == tableName {
			return document.RecordAPIs[i].Clone(), true
		}
	}
	return recordapi.RecordAPIConfig{}, false
}

// FindAll returns copies of every entry exposing tableName, in
// document order.
func FindAll(document *recordapi.Config, tableName string) []recordapi.RecordAPIConfig {
	if document == nil {
		return nil
	}
	var matches []recordapi.RecordAPIConfig
	for i := range document.RecordAPIs {
		if document.RecordAPIs[i].TableName == tableName {
			matches = append(matches, document.RecordAPIs[i].Clone())
		}
	}
	return matches
}

// Upsert returns a copy of document with entry in place of the entry
// of the same name, or appended when no entry has that name. The table
// name is not consulted. A nil document is treated as empty.
func Upsert(document *recordapi.Config, entry recordapi.RecordAPIConfig) *recordapi.Config {
	result := cloneOrEmpty(document)
	for i := range result.RecordAPIs {
		if result.RecordAPIs[i].Name == entry.Name {
			result.RecordAPIs[i] = entry.Clone()
			return result
		}
	}
	result.RecordAPIs = append(result.RecordAPIs, entry.Clone())
	return result
}

// RemoveAll returns a copy of document without any entry exposing
// tableName. With no matches the copy equals the input.
func RemoveAll(document *recordapi.Config, tableName string) *recordapi.Config {
	result := cloneOrEmpty(document)
	kept := result.RecordAPIs[:0]
	for _, entry := range result.RecordAPIs {
		if entry.TableName != tableName {
			kept = append(kept, entry)
		}
	}
	if len(kept) == 0 {
		kept = nil
	}
	result.RecordAPIs = kept
	return result
}

func cloneOrEmpty(document *recordapi.Config) *recordapi.Config {
	if document == nil {
		return &recordapi.Config{Version: recordapi.ConfigVersion}
	}
	return document.Clone()
}
