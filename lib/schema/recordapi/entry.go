// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recordapi

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingName is returned when an entry has no API name.
	ErrMissingName = errors.New("api name missing")

	// ErrMissingTableName is returned when an entry does not name the
	// table or view it exposes.
	ErrMissingTableName = errors.New("table name missing")

	// ErrNotSupportedOnView is returned for settings that only make
	// sense on a table: create/update/delete rules, a conflict
	// resolution strategy, and user id autofill.
	ErrNotSupportedOnView = errors.New("not supported on a view")
)

// RecordAPIConfig is one Record API entry: the exposure settings for a
// single table or view.
type RecordAPIConfig struct {
	// Name is the API-facing identifier. It appears in request paths
	// and must be unique within a [Config]. Defaults to TableName.
	Name string `json:"name" yaml:"name"`

	// TableName is the table or view the API exposes. It does not
	// change once an entry exists for a resource.
	TableName string `json:"table_name" yaml:"table_name"`

	// ACLWorld is granted to every caller, including anonymous ones.
	ACLWorld PermissionSet `json:"acl_world,omitempty" yaml:"acl_world,omitempty"`

	// ACLAuthenticated is granted to callers with a valid session,
	// in addition to ACLWorld.
	ACLAuthenticated PermissionSet `json:"acl_authenticated,omitempty" yaml:"acl_authenticated,omitempty"`

	// Access rules. Nil means the slot is unset and does not restrict
	// access beyond the ACLs.
	ReadAccessRule   *string `json:"read_access_rule,omitempty" yaml:"read_access_rule,omitempty"`
	CreateAccessRule *string `json:"create_access_rule,omitempty" yaml:"create_access_rule,omitempty"`
	UpdateAccessRule *string `json:"update_access_rule,omitempty" yaml:"update_access_rule,omitempty"`
	DeleteAccessRule *string `json:"delete_access_rule,omitempty" yaml:"delete_access_rule,omitempty"`
	SchemaAccessRule *string `json:"schema_access_rule,omitempty" yaml:"schema_access_rule,omitempty"`

	// ConflictResolution applies to tables only.
	ConflictResolution ConflictResolutionStrategy `json:"conflict_resolution,omitempty" yaml:"conflict_resolution,omitempty"`

	// AutofillMissingUserIDColumns fills user id columns absent from
	// a CREATE request with the authenticated caller's id. Tables
	// only. Most deployments leave this off and have clients send ids
	// explicitly; it exists for clients that cannot run logic, such
	// as plain HTML forms.
	AutofillMissingUserIDColumns bool `json:"autofill_missing_user_id_columns,omitempty" yaml:"autofill_missing_user_id_columns,omitempty"`
}

// Option adjusts an entry under construction by [NewRecordAPIConfig].
type Option func(entry *RecordAPIConfig, kind ResourceKind) error

// WithName overrides the default API name.
func WithName(name string) Option {
	return func(entry *RecordAPIConfig, _ ResourceKind) error {
		entry.Name = name
		return nil
	}
}

// WithACL grants flags to an audience. Flags outside LegalFlags for the
// resource kind fail construction with ErrIllegalPermissionFlag.
func WithACL(audience Audience, flags ...PermissionFlag) Option {
	return func(entry *RecordAPIConfig, kind ResourceKind) error {
		for _, flag := range flags {
			if err := entry.Grant(kind, audience, flag); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithRule sets an access rule expression.
func WithRule(rule RuleKind, expression string) Option {
	return func(entry *RecordAPIConfig, kind ResourceKind) error {
		return entry.SetRule(kind, rule, expression)
	}
}

// WithConflictResolution selects a conflict strategy.
func WithConflictResolution(strategy ConflictResolutionStrategy) Option {
	return func(entry *RecordAPIConfig, kind ResourceKind) error {
		return entry.SetConflictResolution(kind, strategy)
	}
}

// WithAutofillMissingUserIDColumns toggles user id autofill.
func WithAutofillMissingUserIDColumns(enabled bool) Option {
	return func(entry *RecordAPIConfig, kind ResourceKind) error {
		return entry.SetAutofillMissingUserIDColumns(kind, enabled)
	}
}

// NewRecordAPIConfig returns the default entry for a resource: name and
// table name both set to the resource name, empty ACLs, no rules, no
// conflict strategy, autofill off. Options are applied in order and
// checked against the resource kind.
func NewRecordAPIConfig(resource Resource, options ...Option) (RecordAPIConfig, error) {
	entry := RecordAPIConfig{
		Name:      resource.Name,
		TableName: resource.Name,
	}
	if !resource.Kind.IsKnown() {
		return RecordAPIConfig{}, fmt.Errorf("resource %q: unknown kind %q", resource.Name, resource.Kind)
	}
	for _, option := range options {
		if err := option(&entry, resource.Kind); err != nil {
			return RecordAPIConfig{}, fmt.Errorf("resource %q: %w", resource.Name, err)
		}
	}
	return entry, nil
}

// ACL returns the permission set for an audience.
func (c *RecordAPIConfig) ACL(audience Audience) PermissionSet {
	switch audience {
	case AudienceWorld:
		return c.ACLWorld
	case AudienceAuthenticated:
		return c.ACLAuthenticated
	}
	return nil
}

// SetACL replaces an audience's permission set. Every flag must be in
// LegalFlags(kind); on error the entry is unchanged.
func (c *RecordAPIConfig) SetACL(kind ResourceKind, audience Audience, set PermissionSet) error {
	if !audience.IsKnown() {
		return fmt.Errorf("unknown acl audience %q", audience)
	}
	if err := checkFlags(kind, audience, set); err != nil {
		return err
	}
	switch audience {
	case AudienceWorld:
		c.ACLWorld = set.Clone()
	case AudienceAuthenticated:
		c.ACLAuthenticated = set.Clone()
	}
	return nil
}

// Grant adds one flag to an audience's permission set.
func (c *RecordAPIConfig) Grant(kind ResourceKind, audience Audience, flag PermissionFlag) error {
	return c.SetACL(kind, audience, c.ACL(audience).With(flag))
}

// Revoke removes one flag from an audience's permission set. Revoking
// is always legal.
func (c *RecordAPIConfig) Revoke(audience Audience, flag PermissionFlag) error {
	if !audience.IsKnown() {
		return fmt.Errorf("unknown acl audience %q", audience)
	}
	switch audience {
	case AudienceWorld:
		c.ACLWorld = c.ACLWorld.Without(flag)
	case AudienceAuthenticated:
		c.ACLAuthenticated = c.ACLAuthenticated.Without(flag)
	}
	return nil
}

// Rule returns the expression in a rule slot, or "" when unset.
func (c *RecordAPIConfig) Rule(rule RuleKind) string {
	if slot := c.ruleSlot(rule); slot != nil && *slot != nil {
		return **slot
	}
	return ""
}

// SetRule stores an expression in a rule slot. An empty expression
// clears the slot. Views reject create, update and delete rules. The
// expression is not syntax-checked here; see lib/accessrule.
func (c *RecordAPIConfig) SetRule(kind ResourceKind, rule RuleKind, expression string) error {
	slot := c.ruleSlot(rule)
	if slot == nil {
		return fmt.Errorf("unknown access rule kind %q", rule)
	}
	if expression == "" {
		*slot = nil
		return nil
	}
	if kind == KindView && rule != RuleRead && rule != RuleSchema {
		return fmt.Errorf("%s access rule: %w", rule, ErrNotSupportedOnView)
	}
	*slot = &expression
	return nil
}

// SetConflictResolution selects a strategy. Views only accept
// ConflictUndefined.
func (c *RecordAPIConfig) SetConflictResolution(kind ResourceKind, strategy ConflictResolutionStrategy) error {
	if !strategy.IsKnown() {
		return fmt.Errorf("unknown conflict resolution strategy %q", string(strategy))
	}
	if kind == KindView && strategy.IsSet() {
		return fmt.Errorf("conflict resolution: %w", ErrNotSupportedOnView)
	}
	c.ConflictResolution = strategy
	return nil
}

// SetAutofillMissingUserIDColumns toggles autofill. Views only accept
// false.
func (c *RecordAPIConfig) SetAutofillMissingUserIDColumns(kind ResourceKind, enabled bool) error {
	if kind == KindView && enabled {
		return fmt.Errorf("autofill missing user id columns: %w", ErrNotSupportedOnView)
	}
	c.AutofillMissingUserIDColumns = enabled
	return nil
}

// Validate checks the entry against the kind of the resource it
// exposes. It does not check rule syntax.
func (c *RecordAPIConfig) Validate(kind ResourceKind) error {
	if c.Name == "" {
		return ErrMissingName
	}
	if c.TableName == "" {
		return fmt.Errorf("api %q: %w", c.Name, ErrMissingTableName)
	}
	if !kind.IsKnown() {
		return fmt.Errorf("api %q: unknown resource kind %q", c.Name, kind)
	}
	if err := checkFlags(kind, AudienceWorld, c.ACLWorld); err != nil {
		return fmt.Errorf("api %q: %w", c.Name, err)
	}
	if err := checkFlags(kind, AudienceAuthenticated, c.ACLAuthenticated); err != nil {
		return fmt.Errorf("api %q: %w", c.Name, err)
	}
	if !c.ConflictResolution.IsKnown() {
		return fmt.Errorf("api %q: unknown conflict resolution strategy %q", c.Name, string(c.ConflictResolution))
	}
	if kind == KindView {
		for _, rule := range []RuleKind{RuleCreate, RuleUpdate, RuleDelete} {
			if c.Rule(rule) != "" {
				return fmt.Errorf("api %q: %s access rule: %w", c.Name, rule, ErrNotSupportedOnView)
			}
		}
		if c.ConflictResolution.IsSet() {
			return fmt.Errorf("api %q: conflict resolution: %w", c.Name, ErrNotSupportedOnView)
		}
		if c.AutofillMissingUserIDColumns {
			return fmt.Errorf("api %q: autofill missing user id columns: %w", c.Name, ErrNotSupportedOnView)
		}
	}
	return nil
}

// Permits reports whether the ACLs grant flag to a caller. World flags
// apply to everyone; authenticated callers also get ACLAuthenticated.
// Access rules are evaluated separately by the server.
func (c *RecordAPIConfig) Permits(flag PermissionFlag, authenticated bool) bool {
	if c.ACLWorld.Has(flag) {
		return true
	}
	return authenticated && c.ACLAuthenticated.Has(flag)
}

// Clone returns a deep copy.
func (c RecordAPIConfig) Clone() RecordAPIConfig {
	clone := c
	clone.ACLWorld = c.ACLWorld.Clone()
	clone.ACLAuthenticated = c.ACLAuthenticated.Clone()
	for _, rule := range tableRuleKinds {
		source := c.ruleSlot(rule)
		if *source != nil {
			expression := **source
			*clone.ruleSlot(rule) = &expression
		}
	}
	return clone
}

// Equal reports whether two entries hold the same settings. ACLs
// compare as sets; rule slots compare by expression.
func (c RecordAPIConfig) Equal(other RecordAPIConfig) bool {
	if c.Name != other.Name ||
		c.TableName != other.TableName ||
		c.ConflictResolution != other.ConflictResolution ||
		c.AutofillMissingUserIDColumns != other.AutofillMissingUserIDColumns {
		return false
	}
	if !c.ACLWorld.Equal(other.ACLWorld) || !c.ACLAuthenticated.Equal(other.ACLAuthenticated) {
		return false
	}
	for _, rule := range tableRuleKinds {
		if c.Rule(rule) != other.Rule(rule) {
			return false
		}
	}
	return true
}

// ruleSlot returns the field backing a rule kind, or nil for unknown
// kinds.
func (c *RecordAPIConfig) ruleSlot(rule RuleKind) **string {
	switch rule {
	case RuleRead:
		return &c.ReadAccessRule
	case RuleCreate:
		return &c.CreateAccessRule
	case RuleUpdate:
		return &c.UpdateAccessRule
	case RuleDelete:
		return &c.DeleteAccessRule
	case RuleSchema:
		return &c.SchemaAccessRule
	}
	return nil
}

// checkFlags returns an IllegalPermissionFlagError for the first flag
// in set that LegalFlags(kind) does not contain.
func checkFlags(kind ResourceKind, audience Audience, set PermissionSet) error {
	legal := LegalFlags(kind)
	for _, flag := range set {
		if !legal.Has(flag) {
			return &IllegalPermissionFlagError{Flag: flag, Audience: audience, Kind: kind}
		}
	}
	return nil
}
