// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package apiconfig

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingBaseConfiguration is returned when the store holds no
	// document to apply a mutation to. The mutation is abandoned
	// without writing anything.
	ErrMissingBaseConfiguration = errors.New("no base configuration document to modify")

	// ErrInvalidTransition is returned when an operation is not
	// available in the session's current state.
	ErrInvalidTransition = errors.New("invalid session transition")
)

// PersistenceError reports that the store could not be read or did not
// accept the new document. The previous document is intact and the
// session's draft is preserved, so the operation can be retried.
type PersistenceError struct {
	// Op is "get" or "set".
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("configuration store %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Retryable reports whether retrying may succeed. Store failures are
// always treated as transient.
func (e *PersistenceError) Retryable() bool { return true }

func transitionError(operation string, state State) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, operation, state)
}
