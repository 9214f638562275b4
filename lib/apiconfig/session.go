// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package apiconfig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/recordapi/lib/accessrule"
	"github.com/bureau-foundation/recordapi/lib/configstore"
	"github.com/bureau-foundation/recordapi/lib/schema/recordapi"
)

// Store reads and replaces the whole configuration document. A Get
// that finds nothing returns configstore.ErrNoDocument or a nil
// document.
type Store interface {
	Get(ctx context.Context) (*recordapi.Config, error)
	Set(ctx context.Context, document *recordapi.Config) error
}

// RuleValidator checks one access rule expression.
// *accessrule.Validator implements it.
type RuleValidator interface {
	Validate(ctx context.Context, kind recordapi.RuleKind, expression string) error
}

// RuleScheduler defers rule validation until an edit settles.
// *accessrule.Scheduler implements it.
type RuleScheduler interface {
	Request(field string, kind recordapi.RuleKind, expression string, deliver func(accessrule.Result)) uint64
	Cancel(field string)
}

// Shell is the editor hosting a session. The session signals it and
// never decides navigation itself.
type Shell interface {
	// MarkDirty is called when the draft starts to differ from the
	// values the edit began with.
	MarkDirty()

	// Close is called after a successful submit or disable.
	Close()
}

// FieldObserver is an optional extension of Shell. A shell that
// implements it is told when a scheduled rule validation completes.
// err is nil for a valid expression.
type FieldObserver interface {
	FieldValidated(kind recordapi.RuleKind, err error)
}

// State is a session's position in the edit lifecycle.
type State int

const (
	// StateAbsent means the resource has no Record API entry.
	StateAbsent State = iota

	// StateDraft means an edit is in progress and not yet persisted.
	StateDraft

	// StateEnabled means the resource has an entry in the last
	// document this session read or wrote.
	StateEnabled
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateDraft:
		return "draft"
	case StateEnabled:
		return "enabled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// SessionConfig holds the parameters for Open.
type SessionConfig struct {
	// Store holds the configuration document. Required.
	Store Store

	// Resource is the table or view being configured. Required.
	Resource recordapi.Resource

	// Validator checks every rule on Submit. Required.
	Validator RuleValidator

	// Scheduler validates rules in the background as they are set.
	// Nil defers all rule validation to Submit.
	Scheduler RuleScheduler

	// Shell receives dirty and close signals. Nil discards them.
	Shell Shell

	Logger *slog.Logger
}

// Session is one operator's edit of one resource's Record API entry.
// Methods are safe for concurrent use; rule validation results arrive
// from other goroutines.
type Session struct {
	store     Store
	resource  recordapi.Resource
	validator RuleValidator
	scheduler RuleScheduler
	shell     Shell
	logger    *slog.Logger

	mu        sync.Mutex
	state     State
	persisted *recordapi.RecordAPIConfig
	baseline  recordapi.RecordAPIConfig
	draft     recordapi.RecordAPIConfig
	dirty     bool

	// pending maps a rule slot to the generation of its outstanding
	// background validation. A delivered result whose generation does
	// not match is stale and dropped.
	pending     map[recordapi.RuleKind]uint64
	fieldErrors map[recordapi.RuleKind]error
}

type noopShell struct{}

func (noopShell) MarkDirty() {}
func (noopShell) Close()     {}

// Open reads the current document and positions the session at
// StateEnabled when the resource has an entry, StateAbsent otherwise.
// A store with no document yet opens as StateAbsent; the missing
// document is reported when a mutation is attempted.
func Open(ctx context.Context, cfg SessionConfig) (*Session, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("apiconfig: Store is required")
	}
	if cfg.Validator == nil {
		return nil, fmt.Errorf("apiconfig: Validator is required")
	}
	if cfg.Resource.Name == "" {
		return nil, fmt.Errorf("apiconfig: Resource.Name is required")
	}
	if !cfg.Resource.Kind.IsKnown() {
		return nil, fmt.Errorf("apiconfig: resource %q has unknown kind %q", cfg.Resource.Name, cfg.Resource.Kind)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("resource", cfg.Resource.Name, "kind", string(cfg.Resource.Kind))

	shell := cfg.Shell
	if shell == nil {
		shell = noopShell{}
	}

	session := &Session{
		store:       cfg.Store,
		resource:    cfg.Resource,
		validator:   cfg.Validator,
		scheduler:   cfg.Scheduler,
		shell:       shell,
		logger:      logger,
		pending:     make(map[recordapi.RuleKind]uint64),
		fieldErrors: make(map[recordapi.RuleKind]error),
	}

	document, err := readDocument(ctx, cfg.Store)
	switch {
	case errors.Is(err, ErrMissingBaseConfiguration):
		logger.Warn("configuration store has no document")
	case err != nil:
		return nil, err
	default:
		if matches := FindAll(document, cfg.Resource.Name); len(matches) > 1 {
			names := make([]string, len(matches))
			for i := range matches {
				names[i] = matches[i].Name
			}
			logger.Warn("resource has more than one record api entry, editing the first", "names", names)
		}
		if entry, found := Find(document, cfg.Resource.Name); found {
			session.persisted = &entry
			session.state = StateEnabled
		}
	}

	logger.Debug("edit session opened", "state", session.state.String())
	return session, nil
}

// Resource returns the resource this session configures.
func (s *Session) Resource() recordapi.Resource { return s.resource }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Persisted returns the entry as last read or written, if any.
func (s *Session) Persisted() (recordapi.RecordAPIConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persisted == nil {
		return recordapi.RecordAPIConfig{}, false
	}
	return s.persisted.Clone(), true
}

// Draft returns a copy of the entry being edited. Outside StateDraft
// it returns false.
func (s *Session) Draft() (recordapi.RecordAPIConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateDraft {
		return recordapi.RecordAPIConfig{}, false
	}
	return s.draft.Clone(), true
}

// Action names what Submit will do: "Enable" for a resource with no
// persisted entry, "Update" otherwise.
func (s *Session) Action() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persisted == nil {
		return "Enable"
	}
	return "Update"
}

// CanDisable reports whether there is a persisted entry to remove.
func (s *Session) CanDisable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persisted != nil && s.state != StateAbsent
}

// Dirty reports whether the draft differs from the values the edit
// began with.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// FieldError returns the latest validation outcome for a rule slot:
// nil when valid, unset, or not yet checked.
func (s *Session) FieldError(kind recordapi.RuleKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fieldErrors[kind]
}

// Validating reports whether a background validation for the rule
// slot has not completed.
func (s *Session) Validating(kind recordapi.RuleKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.pending[kind]
	return exists
}

// Edit starts a draft. From StateEnabled the draft starts from the
// persisted entry; from StateAbsent it starts from the defaults for
// the resource.
func (s *Session) Edit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateEnabled:
		s.draft = s.persisted.Clone()
	case StateAbsent:
		entry, err := recordapi.NewRecordAPIConfig(s.resource)
		if err != nil {
			return fmt.Errorf("apiconfig: %w", err)
		}
		s.draft = entry
	default:
		return transitionError("edit", s.state)
	}
	s.baseline = s.draft.Clone()
	s.dirty = false
	clear(s.fieldErrors)
	s.state = StateDraft
	return nil
}

// Discard abandons the draft and returns to StateEnabled or
// StateAbsent according to the persisted entry.
func (s *Session) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateDraft {
		return transitionError("discard", s.state)
	}
	s.endDraftLocked()
	return nil
}

// SetName changes the API name. The table name is fixed.
func (s *Session) SetName(name string) error {
	return s.mutate("set name", func(entry *recordapi.RecordAPIConfig) error {
		entry.Name = name
		return nil
	})
}

// SetACL replaces an audience's permission set.
func (s *Session) SetACL(audience recordapi.Audience, set recordapi.PermissionSet) error {
	return s.mutate("set acl", func(entry *recordapi.RecordAPIConfig) error {
		return entry.SetACL(s.resource.Kind, audience, set)
	})
}

// Grant adds one flag to an audience.
func (s *Session) Grant(audience recordapi.Audience, flag recordapi.PermissionFlag) error {
	return s.mutate("grant", func(entry *recordapi.RecordAPIConfig) error {
		return entry.Grant(s.resource.Kind, audience, flag)
	})
}

// Revoke removes one flag from an audience.
func (s *Session) Revoke(audience recordapi.Audience, flag recordapi.PermissionFlag) error {
	return s.mutate("revoke", func(entry *recordapi.RecordAPIConfig) error {
		return entry.Revoke(audience, flag)
	})
}

// SetConflictResolution sets the conflict strategy. Tables only.
func (s *Session) SetConflictResolution(strategy recordapi.ConflictResolutionStrategy) error {
	return s.mutate("set conflict resolution", func(entry *recordapi.RecordAPIConfig) error {
		return entry.SetConflictResolution(s.resource.Kind, strategy)
	})
}

// SetAutofill toggles user id autofill. Tables only.
func (s *Session) SetAutofill(enabled bool) error {
	return s.mutate("set autofill", func(entry *recordapi.RecordAPIConfig) error {
		return entry.SetAutofillMissingUserIDColumns(s.resource.Kind, enabled)
	})
}

// SetRule sets a rule slot; an empty expression clears it. The new
// expression is validated in the background when a Scheduler is
// configured. A result for an earlier expression in the same slot is
// never applied once a newer one has been set.
func (s *Session) SetRule(kind recordapi.RuleKind, expression string) error {
	var observe func()

	err := s.mutate("set rule", func(entry *recordapi.RecordAPIConfig) error {
		if err := entry.SetRule(s.resource.Kind, kind, expression); err != nil {
			return err
		}
		delete(s.fieldErrors, kind)

		field := s.fieldKey(kind)
		if s.scheduler == nil {
			return nil
		}
		if expression == "" {
			s.scheduler.Cancel(field)
			delete(s.pending, kind)
			if observer, ok := s.shell.(FieldObserver); ok {
				observe = func() { observer.FieldValidated(kind, nil) }
			}
			return nil
		}
		s.pending[kind] = s.scheduler.Request(field, kind, expression, func(result accessrule.Result) {
			s.deliver(kind, result)
		})
		return nil
	})
	if observe != nil {
		observe()
	}
	return err
}

// Submit validates the draft, applies it to a fresh read of the
// document with Upsert, and writes the document back.
//
// An invalid draft stays in StateDraft with per-field errors available
// from FieldError. A store without a document yields
// ErrMissingBaseConfiguration and nothing is written. A failed read or
// write yields a *PersistenceError and the draft is preserved for a
// retry. On success the session moves to StateEnabled and the shell is
// closed.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	closeShell := false
	defer func() {
		s.mu.Unlock()
		if closeShell {
			s.shell.Close()
		}
	}()

	if s.state != StateDraft {
		return transitionError("submit", s.state)
	}

	entry := s.draft.Clone()
	if err := entry.Validate(s.resource.Kind); err != nil {
		return fmt.Errorf("apiconfig: %w", err)
	}
	if err := s.validateRulesLocked(ctx, entry); err != nil {
		return err
	}

	document, err := readDocument(ctx, s.store)
	if err != nil {
		if errors.Is(err, ErrMissingBaseConfiguration) {
			s.logger.Error("submit abandoned: configuration store has no document")
		}
		return err
	}
	if err := document.CanModify(); err != nil {
		return fmt.Errorf("apiconfig: %w", err)
	}

	updated := Upsert(document, entry)
	if err := s.store.Set(ctx, updated); err != nil {
		s.logger.Warn("configuration write failed, draft preserved", "error", err)
		return &PersistenceError{Op: "set", Err: err}
	}

	action := "record api enabled"
	if s.persisted != nil {
		action = "record api updated"
	}
	s.logger.Info(action, "name", entry.Name, "entries", len(updated.RecordAPIs))

	s.persisted = &entry
	s.endDraftLocked()
	closeShell = true
	return nil
}

// Disable removes every entry for the resource from a fresh read of
// the document and writes it back, discarding any draft. Failure
// leaves the state unchanged.
func (s *Session) Disable(ctx context.Context) error {
	s.mu.Lock()
	closeShell := false
	defer func() {
		s.mu.Unlock()
		if closeShell {
			s.shell.Close()
		}
	}()

	if s.state == StateAbsent {
		return transitionError("disable", s.state)
	}

	document, err := readDocument(ctx, s.store)
	if err != nil {
		if errors.Is(err, ErrMissingBaseConfiguration) {
			s.logger.Error("disable abandoned: configuration store has no document")
		}
		return err
	}
	if err := document.CanModify(); err != nil {
		return fmt.Errorf("apiconfig: %w", err)
	}

	removed := len(FindAll(document, s.resource.Name))
	updated := RemoveAll(document, s.resource.Name)
	if err := s.store.Set(ctx, updated); err != nil {
		s.logger.Warn("configuration write failed", "error", err)
		return &PersistenceError{Op: "set", Err: err}
	}

	s.logger.Info("record api disabled", "removed_entries", removed)

	s.persisted = nil
	s.endDraftLocked()
	closeShell = true
	return nil
}

// mutate applies change to a copy of the draft under the session lock
// and keeps the copy if change succeeds. The shell is signalled after
// the lock is released, when the draft first becomes dirty.
func (s *Session) mutate(operation string, change func(entry *recordapi.RecordAPIConfig) error) error {
	s.mu.Lock()
	if s.state != StateDraft {
		state := s.state
		s.mu.Unlock()
		return transitionError(operation, state)
	}

	candidate := s.draft.Clone()
	if err := change(&candidate); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("apiconfig: %w", err)
	}
	s.draft = candidate

	wasDirty := s.dirty
	s.dirty = !s.draft.Equal(s.baseline)
	becameDirty := s.dirty && !wasDirty
	s.mu.Unlock()

	if becameDirty {
		s.shell.MarkDirty()
	}
	return nil
}

// deliver records a background validation result if it is still the
// latest request for its slot.
func (s *Session) deliver(kind recordapi.RuleKind, result accessrule.Result) {
	s.mu.Lock()
	generation, exists := s.pending[kind]
	if !exists || generation != result.Generation || s.state != StateDraft {
		s.mu.Unlock()
		s.logger.Debug("stale rule validation dropped", "rule", string(kind), "generation", result.Generation)
		return
	}
	delete(s.pending, kind)
	if result.Err != nil {
		s.fieldErrors[kind] = result.Err
	} else {
		delete(s.fieldErrors, kind)
	}
	s.mu.Unlock()

	if observer, ok := s.shell.(FieldObserver); ok {
		observer.FieldValidated(kind, result.Err)
	}
}

// validateRulesLocked checks every rule synchronously, replacing any
// outstanding background validation. Invalid rules are recorded as
// field errors and returned joined.
func (s *Session) validateRulesLocked(ctx context.Context, entry recordapi.RecordAPIConfig) error {
	s.cancelPendingLocked()

	var errs []error
	for _, kind := range recordapi.RuleKinds(s.resource.Kind) {
		expression := entry.Rule(kind)
		if expression == "" {
			delete(s.fieldErrors, kind)
			continue
		}
		err := s.validator.Validate(ctx, kind, expression)
		if err == nil {
			delete(s.fieldErrors, kind)
			continue
		}
		if !errors.Is(err, accessrule.ErrInvalidRule) {
			return fmt.Errorf("apiconfig: validating %s rule: %w", kind, err)
		}
		s.fieldErrors[kind] = err
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Session) cancelPendingLocked() {
	for kind := range s.pending {
		if s.scheduler != nil {
			s.scheduler.Cancel(s.fieldKey(kind))
		}
		delete(s.pending, kind)
	}
}

// endDraftLocked discards the draft and settles on the state implied
// by the persisted entry.
func (s *Session) endDraftLocked() {
	s.cancelPendingLocked()
	clear(s.fieldErrors)
	s.draft = recordapi.RecordAPIConfig{}
	s.baseline = recordapi.RecordAPIConfig{}
	s.dirty = false
	if s.persisted != nil {
		s.state = StateEnabled
	} else {
		s.state = StateAbsent
	}
}

// fieldKey scopes scheduler fields to this resource so sessions can
// share one Scheduler.
func (s *Session) fieldKey(kind recordapi.RuleKind) string {
	return s.resource.Name + "." + string(kind)
}

// readDocument maps a missing document to ErrMissingBaseConfiguration
// and store failures to *PersistenceError.
func readDocument(ctx context.Context, store Store) (*recordapi.Config, error) {
	document, err := store.Get(ctx)
	if errors.Is(err, configstore.ErrNoDocument) || (err == nil && document == nil) {
		return nil, ErrMissingBaseConfiguration
	}
	if err != nil {
		return nil, &PersistenceError{Op: "get", Err: err}
	}
	return document, nil
}
