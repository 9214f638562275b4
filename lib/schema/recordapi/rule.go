// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recordapi

import (
	"fmt"
	"slices"
	"strings"
)

// RuleKind names one of the five access rule slots on an entry. Each
// slot gates the operation of the same name.
type RuleKind string

const (
	RuleRead   RuleKind = "read"
	RuleCreate RuleKind = "create"
	RuleUpdate RuleKind = "update"
	RuleDelete RuleKind = "delete"
	RuleSchema RuleKind = "schema"
)

// Variable is a namespace identifier an access rule may reference.
// Matching against rule text is case-insensitive.
type Variable string

const (
	// VariableUser is the authenticated caller (its id column, or
	// NULL for anonymous callers).
	VariableUser Variable = "_USER_"

	// VariableRow is the record being read, updated or deleted.
	VariableRow Variable = "_ROW_"

	// VariableRequest is the decoded request body.
	VariableRequest Variable = "_REQ_"
)

// Variables lists every namespace identifier.
var Variables = []Variable{VariableUser, VariableRow, VariableRequest}

// tableRuleKinds and viewRuleKinds are the slots each resource kind
// exposes, in display order.
var (
	tableRuleKinds = []RuleKind{RuleRead, RuleCreate, RuleUpdate, RuleDelete, RuleSchema}
	viewRuleKinds  = []RuleKind{RuleRead, RuleSchema}
)

// RuleKinds returns the rule slots a resource kind exposes. Views have
// no create, update or delete slots.
func RuleKinds(kind ResourceKind) []RuleKind {
	switch kind {
	case KindTable:
		return slices.Clone(tableRuleKinds)
	case KindView:
		return slices.Clone(viewRuleKinds)
	}
	return nil
}

// IsKnown reports whether k is one of the five slots.
func (k RuleKind) IsKnown() bool {
	return slices.Contains(tableRuleKinds, k)
}

// ParseRuleKind parses a slot name in any case.
func ParseRuleKind(name string) (RuleKind, error) {
	kind := RuleKind(strings.ToLower(strings.TrimSpace(name)))
	if !kind.IsKnown() {
		return "", fmt.Errorf("unknown access rule kind %q (must be one of read, create, update, delete, schema)", name)
	}
	return kind, nil
}

// Namespace returns the identifiers a rule of this kind may reference.
//
//	read, update, delete: _USER_, _ROW_, _REQ_
//	create:               _USER_, _REQ_ (no row exists yet)
//	schema:               _USER_
func (k RuleKind) Namespace() []Variable {
	switch k {
	case RuleRead, RuleUpdate, RuleDelete:
		return []Variable{VariableUser, VariableRow, VariableRequest}
	case RuleCreate:
		return []Variable{VariableUser, VariableRequest}
	case RuleSchema:
		return []Variable{VariableUser}
	}
	return nil
}

// Permits reports whether a rule of this kind may reference v.
func (k RuleKind) Permits(v Variable) bool {
	return slices.Contains(k.Namespace(), v)
}

// Flag returns the permission flag the rule gates.
func (k RuleKind) Flag() PermissionFlag {
	switch k {
	case RuleRead:
		return PermissionRead
	case RuleCreate:
		return PermissionCreate
	case RuleUpdate:
		return PermissionUpdate
	case RuleDelete:
		return PermissionDelete
	case RuleSchema:
		return PermissionSchema
	}
	return ""
}

// Description is the help text shown next to a rule field.
func (k RuleKind) Description() string {
	switch k {
	case RuleRead:
		return "Row- and request-level read access (_USER_, _ROW_, _REQ_), e.g. '_ROW_.owner = _USER_.id'"
	case RuleCreate:
		return "Request-level create access (_USER_, _REQ_)"
	case RuleUpdate:
		return "Row- and request-level update access (_USER_, _ROW_, _REQ_)"
	case RuleDelete:
		return "Row- and request-level delete access (_USER_, _ROW_, _REQ_)"
	case RuleSchema:
		return "Schema access (_USER_)"
	}
	return ""
}
