// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package configstore

import (
	"context"
	"sync"

	"github.com/bureau-foundation/recordapi/lib/schema/recordapi"
)

// Memory holds the document in process. Get and Set copy, so callers
// never share state with the store.
type Memory struct {
	mu       sync.Mutex
	document *recordapi.Config
	writes   int
}

// NewMemory returns a store holding initial, or an empty store when
// initial is nil.
func NewMemory(initial *recordapi.Config) *Memory {
	return &Memory{document: initial.Clone()}
}

func (m *Memory) Get(ctx context.Context) (*recordapi.Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.document == nil {
		return nil, ErrNoDocument
	}
	return m.document.Clone(), nil
}

func (m *Memory) Set(ctx context.Context, document *recordapi.Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkWritable(document); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.document = document.Clone()
	m.writes++
	return nil
}

// Writes returns the number of successful Set calls.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *Memory) Close() error { return nil }
