// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package recordapi defines the Record API configuration types: the
// per-resource entry ([RecordAPIConfig]), the permission vocabulary
// ([PermissionFlag], [PermissionSet]), the access rule slots
// ([RuleKind]), conflict resolution strategies, and the configuration
// document ([Config]) that holds the entries.
//
// A Record API exposes one table or view. Two permission sets control
// who may do what: ACLWorld applies to every caller, ACLAuthenticated
// to callers with a valid session. Tables accept all five flags;
// views are read-only and accept only READ and SCHEMA.
//
// Access rules are optional boolean SQL expressions evaluated per
// request. Each rule kind sees a different set of namespace
// identifiers (_USER_, _ROW_, _REQ_); see [RuleKind.Namespace]. This
// package only records the rules. Syntax checking lives in
// lib/accessrule.
//
// Entries are keyed two ways. Lookup goes by TableName, the resource
// the entry exposes. Updates go by Name, the API-facing identifier.
// Renaming an entry during an edit therefore leaves the old entry in
// place and appends a new one for the same table. lib/apiconfig
// documents and tests that behavior rather than hiding it.
//
// This package depends on no other packages in this module.
package recordapi
