// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package apiconfig_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/recordapi/lib/accessrule"
	"github.com/bureau-foundation/recordapi/lib/apiconfig"
	"github.com/bureau-foundation/recordapi/lib/clock"
	"github.com/bureau-foundation/recordapi/lib/configstore"
	"github.com/bureau-foundation/recordapi/lib/schema/recordapi"
	"github.com/bureau-foundation/recordapi/lib/testutil"
)

// recordingShell counts shell signals and forwards validation results.
type recordingShell struct {
	mu     sync.Mutex
	dirty  int
	closed int
	fields chan fieldResult
}

type fieldResult struct {
	kind recordapi.RuleKind
	err  error
}

func newRecordingShell() *recordingShell {
	return &recordingShell{fields: make(chan fieldResult, 16)}
}

func (s *recordingShell) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty++
}

func (s *recordingShell) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
}

func (s *recordingShell) FieldValidated(kind recordapi.RuleKind, err error) {
	s.fields <- fieldResult{kind: kind, err: err}
}

func (s *recordingShell) counts() (dirty, closed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty, s.closed
}

// flakyStore wraps a Memory store and fails writes while setErr is set.
type flakyStore struct {
	*configstore.Memory

	mu     sync.Mutex
	setErr error
}

func (s *flakyStore) failWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setErr = err
}

func (s *flakyStore) Set(ctx context.Context, document *recordapi.Config) error {
	s.mu.Lock()
	err := s.setErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Memory.Set(ctx, document)
}

// testValidator rejects any expression containing "!!" as a syntax
// error, on top of the namespace checks.
func testValidator(t *testing.T) *accessrule.Validator {
	t.Helper()
	validator, err := accessrule.NewValidator(accessrule.ValidatorConfig{
		Parser: accessrule.ParserFunc(func(_ context.Context, expression string) error {
			if strings.Contains(expression, "!!") {
				return &accessrule.SyntaxError{Diagnostic: `near "!": syntax error`}
			}
			return nil
		}),
		CacheTTL: -1,
	})
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return validator
}

func emptyDocument() *recordapi.Config {
	return &recordapi.Config{Version: recordapi.ConfigVersion}
}

type sessionFixture struct {
	store *flakyStore
	shell *recordingShell
	cfg   apiconfig.SessionConfig
}

func newFixture(t *testing.T, resource recordapi.Resource, initial *recordapi.Config) *sessionFixture {
	t.Helper()
	store := &flakyStore{Memory: configstore.NewMemory(initial)}
	shell := newRecordingShell()
	return &sessionFixture{
		store: store,
		shell: shell,
		cfg: apiconfig.SessionConfig{
			Store:     store,
			Resource:  resource,
			Validator: testValidator(t),
			Shell:     shell,
			Logger:    testutil.Logger(t),
		},
	}
}

func (f *sessionFixture) open(t *testing.T) *apiconfig.Session {
	t.Helper()
	session, err := apiconfig.Open(context.Background(), f.cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return session
}

func (f *sessionFixture) document(t *testing.T) *recordapi.Config {
	t.Helper()
	document, err := f.store.Get(context.Background())
	if err != nil {
		t.Fatalf("store.Get: %v", err)
	}
	return document
}

func TestSessionEnableNewResource(t *testing.T) {
	ctx := context.Background()
	fixture := newFixture(t, table("posts"), emptyDocument())
	session := fixture.open(t)

	if session.State() != apiconfig.StateAbsent {
		t.Fatalf("initial state = %s, want absent", session.State())
	}
	if session.Action() != "Enable" {
		t.Errorf("Action() = %q, want Enable", session.Action())
	}
	if session.CanDisable() {
		t.Error("CanDisable() = true for an absent resource")
	}

	if err := session.Edit(); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	draft, ok := session.Draft()
	if !ok {
		t.Fatal("Draft() returned false in draft state")
	}
	if draft.Name != "posts" || draft.TableName != "posts" || len(draft.ACLWorld) != 0 {
		t.Fatalf("default draft = %+v", draft)
	}
	if session.Dirty() {
		t.Error("fresh draft reported dirty")
	}

	if err := session.Grant(recordapi.AudienceWorld, recordapi.PermissionRead); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if err := session.Grant(recordapi.AudienceAuthenticated, recordapi.PermissionCreate); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if err := session.SetRule(recordapi.RuleCreate, "_REQ_.owner = _USER_.id"); err != nil {
		t.Fatalf("SetRule: %v", err)
	}
	if err := session.SetConflictResolution(recordapi.ConflictReplace); err != nil {
		t.Fatalf("SetConflictResolution: %v", err)
	}

	if !session.Dirty() {
		t.Error("edited draft not dirty")
	}
	if dirty, _ := fixture.shell.counts(); dirty != 1 {
		t.Errorf("MarkDirty called %d times, want 1", dirty)
	}

	if err := session.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if session.State() != apiconfig.StateEnabled {
		t.Fatalf("state after submit = %s, want enabled", session.State())
	}
	if session.Dirty() {
		t.Error("session dirty after submit")
	}
	if _, closed := fixture.shell.counts(); closed != 1 {
		t.Errorf("shell closed %d times, want 1", closed)
	}
	if session.Action() != "Update" || !session.CanDisable() {
		t.Errorf("after submit: Action=%q CanDisable=%v", session.Action(), session.CanDisable())
	}

	stored, found := apiconfig.Find(fixture.document(t), "posts")
	if !found {
		t.Fatal("entry not persisted")
	}
	if !stored.Permits(recordapi.PermissionRead, false) || !stored.Permits(recordapi.PermissionCreate, true) {
		t.Errorf("persisted ACLs = world %v, authenticated %v", stored.ACLWorld, stored.ACLAuthenticated)
	}
	if stored.Rule(recordapi.RuleCreate) != "_REQ_.owner = _USER_.id" {
		t.Errorf("persisted create rule = %q", stored.Rule(recordapi.RuleCreate))
	}
	if stored.ConflictResolution != recordapi.ConflictReplace {
		t.Errorf("persisted conflict resolution = %q", stored.ConflictResolution)
	}
}

func TestSessionEditSeedsFromPersistedEntry(t *testing.T) {
	existing := entryFor(t, table("posts"),
		recordapi.WithName("articles"),
		recordapi.WithACL(recordapi.AudienceWorld, recordapi.PermissionRead),
		recordapi.WithRule(recordapi.RuleRead, "_ROW_.public"),
	)
	fixture := newFixture(t, table("posts"), &recordapi.Config{
		Version:    recordapi.ConfigVersion,
		RecordAPIs: []recordapi.RecordAPIConfig{existing},
	})
	session := fixture.open(t)

	if session.State() != apiconfig.StateEnabled {
		t.Fatalf("state = %s, want enabled", session.State())
	}
	if err := session.Edit(); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	draft, _ := session.Draft()
	if !draft.Equal(existing) {
		t.Fatalf("draft = %+v, want %+v", draft, existing)
	}

	// A change that is then reverted leaves the draft clean again.
	if err := session.Revoke(recordapi.AudienceWorld, recordapi.PermissionRead); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if !session.Dirty() {
		t.Fatal("draft not dirty after revoke")
	}
	if err := session.Grant(recordapi.AudienceWorld, recordapi.PermissionRead); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if session.Dirty() {
		t.Fatal("draft still dirty after reverting the change")
	}

	if err := session.Discard(); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if session.State() != apiconfig.StateEnabled {
		t.Fatalf("state after discard = %s, want enabled", session.State())
	}
	if _, ok := session.Draft(); ok {
		t.Fatal("Draft() returned true after discard")
	}
}

func TestSessionRejectsMutationOutsideDraft(t *testing.T) {
	fixture := newFixture(t, table("posts"), emptyDocument())
	session := fixture.open(t)

	checks := map[string]error{
		"SetName":  session.SetName("x"),
		"Grant":    session.Grant(recordapi.AudienceWorld, recordapi.PermissionRead),
		"SetRule":  session.SetRule(recordapi.RuleRead, "true"),
		"Submit":   session.Submit(context.Background()),
		"Discard":  session.Discard(),
		"Disable":  session.Disable(context.Background()),
		"Autofill": session.SetAutofill(true),
	}
	for name, err := range checks {
		if !errors.Is(err, apiconfig.ErrInvalidTransition) {
			t.Errorf("%s in absent state: got %v, want ErrInvalidTransition", name, err)
		}
	}

	if err := session.Edit(); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if err := session.Edit(); !errors.Is(err, apiconfig.ErrInvalidTransition) {
		t.Errorf("Edit in draft state: got %v, want ErrInvalidTransition", err)
	}
}

func TestSessionViewRejectsTableOnlySettings(t *testing.T) {
	fixture := newFixture(t, recordapi.Resource{Name: "feed", Kind: recordapi.KindView}, emptyDocument())
	session := fixture.open(t)
	if err := session.Edit(); err != nil {
		t.Fatalf("Edit: %v", err)
	}

	for _, flag := range []recordapi.PermissionFlag{recordapi.PermissionCreate, recordapi.PermissionUpdate, recordapi.PermissionDelete} {
		for _, audience := range []recordapi.Audience{recordapi.AudienceWorld, recordapi.AudienceAuthenticated} {
			err := session.Grant(audience, flag)
			if !errors.Is(err, recordapi.ErrIllegalPermissionFlag) {
				t.Errorf("Grant(%s, %s) on view: got %v, want ErrIllegalPermissionFlag", audience, flag, err)
			}
		}
	}
	if err := session.SetRule(recordapi.RuleDelete, "true"); !errors.Is(err, recordapi.ErrNotSupportedOnView) {
		t.Errorf("SetRule(delete) on view: got %v", err)
	}
	if err := session.SetConflictResolution(recordapi.ConflictAbort); !errors.Is(err, recordapi.ErrNotSupportedOnView) {
		t.Errorf("SetConflictResolution on view: got %v", err)
	}

	if session.Dirty() {
		t.Error("rejected mutations dirtied the draft")
	}
	if dirty, _ := fixture.shell.counts(); dirty != 0 {
		t.Errorf("MarkDirty called %d times after rejected mutations", dirty)
	}

	if err := session.Grant(recordapi.AudienceWorld, recordapi.PermissionRead); err != nil {
		t.Fatalf("Grant(READ) on view: %v", err)
	}
	if err := session.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
}

func TestSessionSubmitInvalidRuleStaysDraft(t *testing.T) {
	fixture := newFixture(t, table("posts"), emptyDocument())
	session := fixture.open(t)
	if err := session.Edit(); err != nil {
		t.Fatalf("Edit: %v", err)
	}

	// _ROW_ does not exist before a record is created.
	if err := session.SetRule(recordapi.RuleCreate, "_row_.owner = _user_"); err != nil {
		t.Fatalf("SetRule(create): %v", err)
	}
	if err := session.SetRule(recordapi.RuleRead, "_row_.owner = _user_"); err != nil {
		t.Fatalf("SetRule(read): %v", err)
	}
	if err := session.SetRule(recordapi.RuleUpdate, "_ROW_.x = !!"); err != nil {
		t.Fatalf("SetRule(update): %v", err)
	}

	err := session.Submit(context.Background())
	if !errors.Is(err, accessrule.ErrInvalidRule) {
		t.Fatalf("Submit: got %v, want ErrInvalidRule", err)
	}
	if session.State() != apiconfig.StateDraft {
		t.Fatalf("state = %s, want draft", session.State())
	}
	if session.FieldError(recordapi.RuleCreate) == nil {
		t.Error("create rule has no field error")
	}
	if session.FieldError(recordapi.RuleUpdate) == nil {
		t.Error("update rule has no field error")
	}
	if err := session.FieldError(recordapi.RuleRead); err != nil {
		t.Errorf("read rule has field error %v", err)
	}
	if fixture.store.Writes() != 0 {
		t.Errorf("store written %d times", fixture.store.Writes())
	}

	// Fixing the rules makes the draft submittable.
	if err := session.SetRule(recordapi.RuleCreate, "_REQ_.owner = _USER_.id"); err != nil {
		t.Fatalf("SetRule(create): %v", err)
	}
	if err := session.SetRule(recordapi.RuleUpdate, ""); err != nil {
		t.Fatalf("SetRule(update): %v", err)
	}
	if err := session.Submit(context.Background()); err != nil {
		t.Fatalf("Submit after fix: %v", err)
	}
}

func TestSessionSubmitMissingBaseConfiguration(t *testing.T) {
	fixture := newFixture(t, table("posts"), nil)
	session := fixture.open(t)

	if session.State() != apiconfig.StateAbsent {
		t.Fatalf("state = %s, want absent", session.State())
	}
	if err := session.Edit(); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if err := session.Grant(recordapi.AudienceWorld, recordapi.PermissionRead); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	err := session.Submit(context.Background())
	if !errors.Is(err, apiconfig.ErrMissingBaseConfiguration) {
		t.Fatalf("Submit: got %v, want ErrMissingBaseConfiguration", err)
	}
	if fixture.store.Writes() != 0 {
		t.Fatal("store written despite missing base configuration")
	}
	if session.State() != apiconfig.StateDraft {
		t.Fatalf("state = %s, want draft", session.State())
	}
}

func TestSessionPersistenceFailurePreservesDraft(t *testing.T) {
	ctx := context.Background()
	fixture := newFixture(t, table("posts"), emptyDocument())
	session := fixture.open(t)
	if err := session.Edit(); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if err := session.Grant(recordapi.AudienceWorld, recordapi.PermissionRead); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	unavailable := errors.New("connection refused")
	fixture.store.failWrites(unavailable)

	err := session.Submit(ctx)
	var persistence *apiconfig.PersistenceError
	if !errors.As(err, &persistence) {
		t.Fatalf("Submit: got %v, want *PersistenceError", err)
	}
	if !persistence.Retryable() || !errors.Is(err, unavailable) {
		t.Errorf("PersistenceError = %+v", persistence)
	}
	if session.State() != apiconfig.StateDraft || !session.Dirty() {
		t.Fatalf("after failed submit: state=%s dirty=%v", session.State(), session.Dirty())
	}
	draft, _ := session.Draft()
	if !draft.ACLWorld.Has(recordapi.PermissionRead) {
		t.Fatal("draft lost its edits")
	}
	if _, found := apiconfig.Find(fixture.document(t), "posts"); found {
		t.Fatal("failed submit changed the stored document")
	}
	if _, closed := fixture.shell.counts(); closed != 0 {
		t.Fatal("shell closed after failed submit")
	}

	fixture.store.failWrites(nil)
	if err := session.Submit(ctx); err != nil {
		t.Fatalf("retry Submit: %v", err)
	}
	if session.State() != apiconfig.StateEnabled {
		t.Fatalf("state after retry = %s", session.State())
	}
}

func TestSessionDisableRemovesEveryEntry(t *testing.T) {
	ctx := context.Background()
	fixture := newFixture(t, table("posts"), &recordapi.Config{
		Version: recordapi.ConfigVersion,
		RecordAPIs: []recordapi.RecordAPIConfig{
			{Name: "posts", TableName: "posts"},
			{Name: "users", TableName: "users"},
			{Name: "posts_v2", TableName: "posts"},
		},
	})
	session := fixture.open(t)
	if !session.CanDisable() {
		t.Fatal("CanDisable() = false for an enabled resource")
	}

	if err := session.Edit(); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if err := session.SetName("renamed"); err != nil {
		t.Fatalf("SetName: %v", err)
	}

	if err := session.Disable(ctx); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if session.State() != apiconfig.StateAbsent {
		t.Fatalf("state = %s, want absent", session.State())
	}
	if _, ok := session.Draft(); ok {
		t.Fatal("draft survived disable")
	}
	if _, closed := fixture.shell.counts(); closed != 1 {
		t.Errorf("shell closed %d times, want 1", closed)
	}

	document := fixture.document(t)
	if len(document.RecordAPIs) != 1 || document.RecordAPIs[0].Name != "users" {
		t.Fatalf("remaining entries = %+v", document.RecordAPIs)
	}
}

func TestSessionDisableFailureKeepsState(t *testing.T) {
	fixture := newFixture(t, table("posts"), &recordapi.Config{
		Version:    recordapi.ConfigVersion,
		RecordAPIs: []recordapi.RecordAPIConfig{{Name: "posts", TableName: "posts"}},
	})
	session := fixture.open(t)

	fixture.store.failWrites(errors.New("disk full"))
	var persistence *apiconfig.PersistenceError
	if err := session.Disable(context.Background()); !errors.As(err, &persistence) {
		t.Fatalf("Disable: got %v, want *PersistenceError", err)
	}
	if session.State() != apiconfig.StateEnabled {
		t.Fatalf("state = %s, want enabled", session.State())
	}
}

// Renaming through a session appends a second entry for the table; the
// old entry is left in place and is what Find returns.
func TestSessionRenameAppendsEntry(t *testing.T) {
	fixture := newFixture(t, table("t"), &recordapi.Config{
		Version:    recordapi.ConfigVersion,
		RecordAPIs: []recordapi.RecordAPIConfig{{Name: "t", TableName: "t"}},
	})
	session := fixture.open(t)
	if err := session.Edit(); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if err := session.SetName("t2"); err != nil {
		t.Fatalf("SetName: %v", err)
	}
	if err := session.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	document := fixture.document(t)
	if len(document.RecordAPIs) != 2 {
		t.Fatalf("entries = %+v, want both t and t2", document.RecordAPIs)
	}
	if found, _ := apiconfig.Find(document, "t"); found.Name != "t" {
		t.Fatalf("Find(t) = %q, want the original entry", found.Name)
	}
}

func TestSessionBackgroundValidation(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	fixture := newFixture(t, table("posts"), emptyDocument())
	scheduler := accessrule.NewScheduler(accessrule.SchedulerConfig{
		Checker: fixture.cfg.Validator,
		Clock:   fake,
	})
	defer scheduler.Close()
	fixture.cfg.Scheduler = scheduler

	session := fixture.open(t)
	if err := session.Edit(); err != nil {
		t.Fatalf("Edit: %v", err)
	}

	if err := session.SetRule(recordapi.RuleSchema, "_ROW_.x"); err != nil {
		t.Fatalf("SetRule: %v", err)
	}
	fake.WaitForTimers(1)
	fake.Advance(accessrule.DefaultQuiescence)

	result := testutil.RequireReceive(t, fixture.shell.fields, 5*time.Second, "schema rule result")
	if result.kind != recordapi.RuleSchema || !errors.Is(result.err, accessrule.ErrInvalidRule) {
		t.Fatalf("result = %+v", result)
	}
	if !errors.Is(session.FieldError(recordapi.RuleSchema), accessrule.ErrInvalidRule) {
		t.Fatalf("FieldError(schema) = %v", session.FieldError(recordapi.RuleSchema))
	}

	// Two quick edits: only the second is validated and delivered.
	if err := session.SetRule(recordapi.RuleSchema, "_ROW_.y"); err != nil {
		t.Fatalf("SetRule: %v", err)
	}
	if err := session.SetRule(recordapi.RuleSchema, "_USER_.admin"); err != nil {
		t.Fatalf("SetRule: %v", err)
	}
	if session.FieldError(recordapi.RuleSchema) != nil {
		t.Fatal("stale field error survived a new edit")
	}
	if !session.Validating(recordapi.RuleSchema) {
		t.Fatal("Validating(schema) = false with a pending request")
	}
	fake.WaitForTimers(1)
	fake.Advance(accessrule.DefaultQuiescence)

	result = testutil.RequireReceive(t, fixture.shell.fields, 5*time.Second, "superseding result")
	if result.err != nil {
		t.Fatalf("superseding result error = %v", result.err)
	}
	testutil.RequireNoReceive(t, fixture.shell.fields, 50*time.Millisecond, "superseded result")
	if session.Validating(recordapi.RuleSchema) {
		t.Error("Validating(schema) = true after delivery")
	}

	// Clearing a slot reports it valid without scheduling.
	if err := session.SetRule(recordapi.RuleSchema, ""); err != nil {
		t.Fatalf("SetRule(empty): %v", err)
	}
	result = testutil.RequireReceive(t, fixture.shell.fields, 5*time.Second, "cleared slot")
	if result.err != nil || fake.PendingCount() != 0 {
		t.Fatalf("clearing: result=%+v pending timers=%d", result, fake.PendingCount())
	}
}
