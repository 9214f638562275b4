// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package accessrule

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/recordapi/lib/schema/recordapi"
)

// ErrInvalidRule is matched by every *ValidationError.
var ErrInvalidRule = errors.New("invalid access rule")

// ValidationError reports why an expression was rejected. Diagnostic
// is suitable for display next to the field.
type ValidationError struct {
	Kind       recordapi.RuleKind
	Expression string
	Diagnostic string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s access rule: %s", e.Kind, e.Diagnostic)
}

// Is matches ErrInvalidRule.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRule
}

// SyntaxError is returned by a Parser for an expression that does not
// parse. Any other Parser error is treated as an operational failure
// (the parser is unavailable) rather than a verdict on the expression.
type SyntaxError struct {
	Diagnostic string
}

func (e *SyntaxError) Error() string {
	return e.Diagnostic
}
