// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recordapi

import (
	"fmt"
	"maps"
)

// ConfigVersion is the document format version written by this code.
// A document with a higher version may carry fields this code does
// not know; see [Config.CanModify].
const ConfigVersion = 1

// Config is the configuration document. RecordAPIs is ordered: lookup
// returns the first match and updates preserve position. Settings
// carries every other top-level section of the document untouched;
// this package never interprets it.
type Config struct {
	Version    int               `json:"version" yaml:"version"`
	RecordAPIs []RecordAPIConfig `json:"record_apis" yaml:"record_apis"`
	Settings   map[string]any    `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// Clone returns a deep copy of the entry list. Settings values are
// shared, which is safe because nothing in this module mutates them.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := &Config{
		Version:  c.Version,
		Settings: maps.Clone(c.Settings),
	}
	if c.RecordAPIs != nil {
		clone.RecordAPIs = make([]RecordAPIConfig, len(c.RecordAPIs))
		for i := range c.RecordAPIs {
			clone.RecordAPIs[i] = c.RecordAPIs[i].Clone()
		}
	}
	return clone
}

// Equal compares the entry lists in order. Settings are not compared.
func (c *Config) Equal(other *Config) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.Version != other.Version || len(c.RecordAPIs) != len(other.RecordAPIs) {
		return false
	}
	for i := range c.RecordAPIs {
		if !c.RecordAPIs[i].Equal(other.RecordAPIs[i]) {
			return false
		}
	}
	return true
}

// Validate checks document-level invariants: every entry has a name
// and table name, and names are unique. Per-kind checks need schema
// information and are done by [RecordAPIConfig.Validate].
func (c *Config) Validate() error {
	if c.Version < 0 {
		return fmt.Errorf("config: negative version %d", c.Version)
	}
	seen := make(map[string]int, len(c.RecordAPIs))
	for i := range c.RecordAPIs {
		entry := &c.RecordAPIs[i]
		if entry.Name == "" {
			return fmt.Errorf("config: record_apis[%d]: %w", i, ErrMissingName)
		}
		if entry.TableName == "" {
			return fmt.Errorf("config: record_apis[%d] (%q): %w", i, entry.Name, ErrMissingTableName)
		}
		if previous, exists := seen[entry.Name]; exists {
			return fmt.Errorf("config: record_apis[%d]: name %q already used by record_apis[%d]", i, entry.Name, previous)
		}
		seen[entry.Name] = i
		for _, audience := range []Audience{AudienceWorld, AudienceAuthenticated} {
			for _, flag := range entry.ACL(audience) {
				if !flag.IsKnown() {
					return fmt.Errorf("config: record_apis[%d] (%q): %w", i, entry.Name,
						&IllegalPermissionFlagError{Flag: flag, Audience: audience})
				}
			}
		}
	}
	return nil
}

// CanModify reports whether this code may read-modify-write the
// document without dropping fields it does not understand.
func (c *Config) CanModify() error {
	if c.Version > ConfigVersion {
		return fmt.Errorf(
			"config version %d exceeds supported version %d: "+
				"modification would lose fields added in newer versions",
			c.Version, ConfigVersion,
		)
	}
	return nil
}
