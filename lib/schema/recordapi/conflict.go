// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recordapi

import (
	"fmt"
	"strings"
)

// ConflictResolutionStrategy selects how a write that violates a
// uniqueness constraint is handled. It maps onto SQLite's ON CONFLICT
// clause and only applies to table-backed entries.
//
// The zero value [ConflictUndefined] is its own state: the entry does
// not choose a strategy and the server's default applies. It is never
// treated as one of the five named strategies.
type ConflictResolutionStrategy string

const (
	// ConflictUndefined means no strategy is configured.
	ConflictUndefined ConflictResolutionStrategy = ""

	ConflictAbort    ConflictResolutionStrategy = "ABORT"
	ConflictRollback ConflictResolutionStrategy = "ROLLBACK"
	ConflictFail     ConflictResolutionStrategy = "FAIL"
	ConflictIgnore   ConflictResolutionStrategy = "IGNORE"
	ConflictReplace  ConflictResolutionStrategy = "REPLACE"
)

// ConflictStrategies lists the configurable strategies in display
// order. ConflictUndefined is deliberately absent.
var ConflictStrategies = []ConflictResolutionStrategy{
	ConflictAbort,
	ConflictRollback,
	ConflictFail,
	ConflictIgnore,
	ConflictReplace,
}

// IsKnown reports whether s is ConflictUndefined or one of the five
// strategies.
func (s ConflictResolutionStrategy) IsKnown() bool {
	switch s {
	case ConflictUndefined, ConflictAbort, ConflictRollback, ConflictFail, ConflictIgnore, ConflictReplace:
		return true
	}
	return false
}

// IsSet reports whether a strategy other than ConflictUndefined is
// selected.
func (s ConflictResolutionStrategy) IsSet() bool {
	return s != ConflictUndefined
}

// ConflictStrategyLabel returns the display label for a strategy.
// Total over every value: ConflictUndefined and unrecognized values
// both render as "Undefined".
func ConflictStrategyLabel(strategy ConflictResolutionStrategy) string {
	switch strategy {
	case ConflictAbort:
		return "Abort"
	case ConflictRollback:
		return "Rollback"
	case ConflictFail:
		return "Fail"
	case ConflictIgnore:
		return "Ignore"
	case ConflictReplace:
		return "Replace"
	default:
		return "Undefined"
	}
}

// String returns the display label.
func (s ConflictResolutionStrategy) String() string {
	return ConflictStrategyLabel(s)
}

// ParseConflictResolutionStrategy accepts a strategy name in any case.
// "", "undefined" and "none" select ConflictUndefined.
func ParseConflictResolutionStrategy(name string) (ConflictResolutionStrategy, error) {
	normalized := strings.ToUpper(strings.TrimSpace(name))
	switch normalized {
	case "", "UNDEFINED", "NONE":
		return ConflictUndefined, nil
	}
	strategy := ConflictResolutionStrategy(normalized)
	if !strategy.IsKnown() {
		return ConflictUndefined, fmt.Errorf("unknown conflict resolution strategy %q (must be one of abort, rollback, fail, ignore, replace, undefined)", name)
	}
	return strategy, nil
}
