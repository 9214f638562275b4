// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recordapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// PermissionFlag names one operation a caller may perform through a
// Record API. Values serialize directly as their upper-case names.
type PermissionFlag string

const (
	// PermissionCreate allows inserting new records.
	PermissionCreate PermissionFlag = "CREATE"

	// PermissionRead allows reading and listing records.
	PermissionRead PermissionFlag = "READ"

	// PermissionUpdate allows modifying existing records.
	PermissionUpdate PermissionFlag = "UPDATE"

	// PermissionDelete allows deleting records.
	PermissionDelete PermissionFlag = "DELETE"

	// PermissionSchema allows reading the API's JSON schema.
	PermissionSchema PermissionFlag = "SCHEMA"
)

// allFlags lists every flag in canonical order. PermissionSet keeps
// its members in this order.
var allFlags = []PermissionFlag{
	PermissionCreate,
	PermissionRead,
	PermissionUpdate,
	PermissionDelete,
	PermissionSchema,
}

// IsKnown reports whether f is one of the defined flags.
func (f PermissionFlag) IsKnown() bool {
	return f.rank() >= 0
}

// rank returns the canonical position of f, or -1 for unknown flags.
func (f PermissionFlag) rank() int {
	return slices.Index(allFlags, f)
}

// ParsePermissionFlag parses a flag name. Matching is case-insensitive
// so that command-line input like "read" is accepted.
func ParsePermissionFlag(name string) (PermissionFlag, error) {
	flag := PermissionFlag(strings.ToUpper(strings.TrimSpace(name)))
	if !flag.IsKnown() {
		return "", fmt.Errorf("unknown permission flag %q (must be one of CREATE, READ, UPDATE, DELETE, SCHEMA)", name)
	}
	return flag, nil
}

// ResourceKind distinguishes tables from views. Views have no write
// path, which restricts their legal flags and rule slots.
type ResourceKind string

const (
	// KindTable is a regular table.
	KindTable ResourceKind = "table"

	// KindView is a view. Views only support READ and SCHEMA.
	KindView ResourceKind = "view"
)

// IsKnown reports whether k is table or view.
func (k ResourceKind) IsKnown() bool {
	switch k {
	case KindTable, KindView:
		return true
	}
	return false
}

// ParseResourceKind parses "table" or "view".
func ParseResourceKind(name string) (ResourceKind, error) {
	kind := ResourceKind(strings.ToLower(strings.TrimSpace(name)))
	if !kind.IsKnown() {
		return "", fmt.Errorf("unknown resource kind %q (must be \"table\" or \"view\")", name)
	}
	return kind, nil
}

// Resource describes a table or view that may carry a Record API
// entry. Schema introspection supplies these; the configuration model
// only reads Name and Kind.
type Resource struct {
	Name string       `json:"name" yaml:"name"`
	Kind ResourceKind `json:"kind" yaml:"kind"`
}

// LegalFlags returns the permission flags a Record API over a
// resource of the given kind may grant. Unknown kinds get an empty set.
func LegalFlags(kind ResourceKind) PermissionSet {
	switch kind {
	case KindTable:
		return PermissionSet{PermissionCreate, PermissionRead, PermissionUpdate, PermissionDelete, PermissionSchema}
	case KindView:
		return PermissionSet{PermissionRead, PermissionSchema}
	}
	return nil
}

// Audience selects which of an entry's two ACLs is addressed.
type Audience string

const (
	// AudienceWorld is every caller, authenticated or not.
	AudienceWorld Audience = "world"

	// AudienceAuthenticated is callers with a valid session.
	AudienceAuthenticated Audience = "authenticated"
)

// IsKnown reports whether a is world or authenticated.
func (a Audience) IsKnown() bool {
	switch a {
	case AudienceWorld, AudienceAuthenticated:
		return true
	}
	return false
}

// ErrIllegalPermissionFlag is matched by [IllegalPermissionFlagError]
// via errors.Is.
var ErrIllegalPermissionFlag = errors.New("illegal permission flag")

// IllegalPermissionFlagError reports a flag outside [LegalFlags] for
// the resource kind, or a flag that is not a known value at all.
type IllegalPermissionFlagError struct {
	Flag     PermissionFlag
	Audience Audience
	Kind     ResourceKind
}

func (e *IllegalPermissionFlagError) Error() string {
	if !e.Flag.IsKnown() {
		return fmt.Sprintf("%s acl: unknown permission flag %q", e.Audience, e.Flag)
	}
	return fmt.Sprintf("%s acl: permission %s is not allowed on a %s", e.Audience, e.Flag, e.Kind)
}

// Is matches ErrIllegalPermissionFlag.
func (e *IllegalPermissionFlagError) Is(target error) bool {
	return target == ErrIllegalPermissionFlag
}

// PermissionSet is an unordered set of permission flags. The slice
// representation is kept canonical: no duplicates, flags in the order
// CREATE, READ, UPDATE, DELETE, SCHEMA. Two sets with the same members
// compare equal with [PermissionSet.Equal] regardless of how they were
// built. The nil set is the empty set.
//
// On the wire a set is a JSON (or CBOR) array of flag names.
type PermissionSet []PermissionFlag

// NewPermissionSet builds a canonical set from flags. Duplicates are
// collapsed. Unknown flags are an error.
func NewPermissionSet(flags ...PermissionFlag) (PermissionSet, error) {
	var set PermissionSet
	for _, flag := range flags {
		if !flag.IsKnown() {
			return nil, fmt.Errorf("unknown permission flag %q", flag)
		}
		set = set.With(flag)
	}
	return set, nil
}

// Has reports whether flag is a member of s.
func (s PermissionSet) Has(flag PermissionFlag) bool {
	return slices.Contains(s, flag)
}

// With returns a set containing the members of s plus flag. The
// receiver is not modified.
func (s PermissionSet) With(flag PermissionFlag) PermissionSet {
	if s.Has(flag) {
		return s.Clone()
	}
	result := append(s.Clone(), flag)
	result.sort()
	return result
}

// Without returns a set containing the members of s except flag.
func (s PermissionSet) Without(flag PermissionFlag) PermissionSet {
	result := make(PermissionSet, 0, len(s))
	for _, member := range s {
		if member != flag {
			result = append(result, member)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// Union returns the members of either set.
func (s PermissionSet) Union(other PermissionSet) PermissionSet {
	result := s.Clone()
	for _, flag := range other {
		result = result.With(flag)
	}
	return result
}

// SubsetOf reports whether every member of s is also in other.
func (s PermissionSet) SubsetOf(other PermissionSet) bool {
	for _, flag := range s {
		if !other.Has(flag) {
			return false
		}
	}
	return true
}

// Equal reports set equality. Order and duplicates are ignored.
func (s PermissionSet) Equal(other PermissionSet) bool {
	return s.SubsetOf(other) && other.SubsetOf(s)
}

// Clone returns a copy of s in canonical form.
func (s PermissionSet) Clone() PermissionSet {
	if len(s) == 0 {
		return nil
	}
	result := make(PermissionSet, 0, len(s))
	for _, flag := range s {
		if !slices.Contains(result, flag) {
			result = append(result, flag)
		}
	}
	result.sort()
	return result
}

// String returns the members joined with ",", or "-" for the empty set.
func (s PermissionSet) String() string {
	if len(s) == 0 {
		return "-"
	}
	names := make([]string, len(s))
	for i, flag := range s.Clone() {
		names[i] = string(flag)
	}
	return strings.Join(names, ",")
}

// UnmarshalJSON decodes an array of flag names. Unknown names are
// rejected and duplicates collapsed.
func (s *PermissionSet) UnmarshalJSON(data []byte) error {
	var flags []PermissionFlag
	if err := json.Unmarshal(data, &flags); err != nil {
		return err
	}
	set, err := NewPermissionSet(flags...)
	if err != nil {
		return err
	}
	*s = set
	return nil
}

// sort orders members canonically. Unknown flags sort last.
func (s PermissionSet) sort() {
	slices.SortFunc(s, func(a, b PermissionFlag) int {
		rankA, rankB := a.rank(), b.rank()
		if rankA < 0 {
			rankA = len(allFlags)
		}
		if rankB < 0 {
			rankB = len(allFlags)
		}
		return rankA - rankB
	})
}
