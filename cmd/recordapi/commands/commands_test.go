// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/recordapi/cmd/recordapi/cli"
	"github.com/bureau-foundation/recordapi/lib/accessrule"
	"github.com/bureau-foundation/recordapi/lib/apiconfig"
	"github.com/bureau-foundation/recordapi/lib/config"
	"github.com/bureau-foundation/recordapi/lib/configstore"
	"github.com/bureau-foundation/recordapi/lib/schema/recordapi"
	"github.com/bureau-foundation/recordapi/lib/sqlitepool"
)

const fixtureSchema = `
CREATE TABLE posts (id INTEGER PRIMARY KEY AUTOINCREMENT, owner BLOB, body TEXT);
CREATE TABLE users (id BLOB PRIMARY KEY, email TEXT);
CREATE VIEW public_posts AS SELECT id, body FROM posts;
`

// workspace is an isolated store and application database.
type workspace struct {
	store    string
	database string
}

func newWorkspace(t *testing.T, storeName string) workspace {
	t.Helper()
	directory := t.TempDir()
	t.Setenv("HOME", directory)
	t.Setenv(config.EnvVar, "")

	database := filepath.Join(directory, "main.db")
	pool, err := sqlitepool.Open(sqlitepool.Config{Path: database, PoolSize: 1})
	if err != nil {
		t.Fatalf("sqlitepool.Open: %v", err)
	}
	defer pool.Close()
	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)
	if err := sqlitex.ExecuteScript(conn, fixtureSchema, nil); err != nil {
		t.Fatalf("creating fixture schema: %v", err)
	}

	return workspace{store: filepath.Join(directory, storeName), database: database}
}

// run executes the command tree against the workspace and returns
// stdout.
func (w workspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	full := append(args, "--store", w.store, "--database", w.database, "--log-level", "error")
	var runErr error
	output := captureStdout(t, func() {
		runErr = Root().Execute(context.Background(), full)
	})
	return output, runErr
}

func (w workspace) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	output, err := w.run(t, args...)
	if err != nil {
		t.Fatalf("recordapi %s: %v", strings.Join(args, " "), err)
	}
	return output
}

// document reads the store directly.
func (w workspace) document(t *testing.T) *recordapi.Config {
	t.Helper()
	store, err := configstore.Open(configstore.OpenConfig{Path: w.store})
	if err != nil {
		t.Fatalf("configstore.Open: %v", err)
	}
	defer store.Close()
	document, err := store.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return document
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	original := os.Stdout
	reader, writer, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = writer

	fn()

	writer.Close()
	os.Stdout = original

	var buffer bytes.Buffer
	io.Copy(&buffer, reader)
	reader.Close()

	return buffer.String()
}

func exitCode(err error) int {
	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return -1
}

func TestInitCreatesEmptyDocument(t *testing.T) {
	w := newWorkspace(t, "config.db")
	w.mustRun(t, "init")

	output := w.mustRun(t, "list")
	if !strings.Contains(output, "No Record APIs configured") {
		t.Errorf("list output = %q", output)
	}

	document := w.document(t)
	if document.Version != recordapi.ConfigVersion || len(document.RecordAPIs) != 0 {
		t.Errorf("document = %+v, want empty at version %d", document, recordapi.ConfigVersion)
	}

	// A second init leaves the document alone.
	w.mustRun(t, "enable", "posts", "--world", "READ")
	w.mustRun(t, "init")
	if got := len(w.document(t).RecordAPIs); got != 1 {
		t.Errorf("entries after second init = %d, want 1", got)
	}
	w.mustRun(t, "init", "--force")
	if got := len(w.document(t).RecordAPIs); got != 0 {
		t.Errorf("entries after init --force = %d, want 0", got)
	}
}

func TestEnableNewTable(t *testing.T) {
	w := newWorkspace(t, "config.jsonc")
	w.mustRun(t, "init")

	output := w.mustRun(t, "enable", "posts",
		"--world", "READ,SCHEMA",
		"--authenticated", "create,read,update",
		"--update-rule", "_ROW_.owner = _USER_.id",
		"--conflict", "replace",
	)
	if !strings.Contains(output, `Enabled Record API "posts" for table "posts"`) {
		t.Errorf("enable output = %q", output)
	}

	entry, found := apiconfig.Find(w.document(t), "posts")
	if !found {
		t.Fatal("no entry for posts after enable")
	}
	if !entry.ACLWorld.Equal(recordapi.PermissionSet{recordapi.PermissionRead, recordapi.PermissionSchema}) {
		t.Errorf("ACLWorld = %v", entry.ACLWorld)
	}
	if !entry.ACLAuthenticated.Equal(recordapi.PermissionSet{
		recordapi.PermissionCreate, recordapi.PermissionRead, recordapi.PermissionUpdate,
	}) {
		t.Errorf("ACLAuthenticated = %v", entry.ACLAuthenticated)
	}
	if got := entry.Rule(recordapi.RuleUpdate); got != "_ROW_.owner = _USER_.id" {
		t.Errorf("update rule = %q", got)
	}
	if entry.ConflictResolution != recordapi.ConflictReplace {
		t.Errorf("ConflictResolution = %q", entry.ConflictResolution)
	}
}

func TestEnableUpdateKeepsUnmentionedSettings(t *testing.T) {
	w := newWorkspace(t, "config.db")
	w.mustRun(t, "init")
	w.mustRun(t, "enable", "posts", "--world", "READ", "--read-rule", "_USER_.id IS NOT NULL")

	output := w.mustRun(t, "enable", "posts", "--authenticated", "CREATE")
	if !strings.Contains(output, "Updated") {
		t.Errorf("second enable output = %q, want Updated", output)
	}

	entry, _ := apiconfig.Find(w.document(t), "posts")
	if !entry.ACLWorld.Equal(recordapi.PermissionSet{recordapi.PermissionRead}) {
		t.Errorf("ACLWorld = %v, want READ kept", entry.ACLWorld)
	}
	if got := entry.Rule(recordapi.RuleRead); got != "_USER_.id IS NOT NULL" {
		t.Errorf("read rule = %q, want kept", got)
	}

	// Clearing a rule with an empty value.
	w.mustRun(t, "enable", "posts", "--read-rule", "")
	entry, _ = apiconfig.Find(w.document(t), "posts")
	if entry.ReadAccessRule != nil {
		t.Errorf("read rule = %q, want unset", *entry.ReadAccessRule)
	}
}

func TestEnableRejectsInvalidRuleWithoutWriting(t *testing.T) {
	w := newWorkspace(t, "config.jsonc")
	w.mustRun(t, "init")

	_, err := w.run(t, "enable", "posts", "--create-rule", "_ROW_.owner = _USER_.id")
	if !errors.Is(err, accessrule.ErrInvalidRule) {
		t.Fatalf("enable error = %v, want ErrInvalidRule", err)
	}
	if got := len(w.document(t).RecordAPIs); got != 0 {
		t.Errorf("entries = %d after rejected enable, want 0", got)
	}

	_, err = w.run(t, "enable", "posts", "--read-rule", "_ROW_.owner = = 1")
	if !errors.Is(err, accessrule.ErrInvalidRule) {
		t.Fatalf("enable error = %v, want ErrInvalidRule for syntax error", err)
	}
}

func TestEnableViewRestrictions(t *testing.T) {
	w := newWorkspace(t, "config.jsonc")
	w.mustRun(t, "init")

	_, err := w.run(t, "enable", "public_posts", "--world", "CREATE")
	if !errors.Is(err, recordapi.ErrIllegalPermissionFlag) {
		t.Errorf("CREATE on view: error = %v, want ErrIllegalPermissionFlag", err)
	}
	_, err = w.run(t, "enable", "public_posts", "--update-rule", "true")
	if !errors.Is(err, recordapi.ErrNotSupportedOnView) {
		t.Errorf("update rule on view: error = %v, want ErrNotSupportedOnView", err)
	}

	w.mustRun(t, "enable", "public_posts", "--world", "READ")
	entry, found := apiconfig.Find(w.document(t), "public_posts")
	if !found || !entry.ACLWorld.Equal(recordapi.PermissionSet{recordapi.PermissionRead}) {
		t.Errorf("view entry = %+v, found = %v", entry, found)
	}
}

func TestEnableRequiresDocument(t *testing.T) {
	w := newWorkspace(t, "config.jsonc")

	_, err := w.run(t, "enable", "posts", "--world", "READ")
	if !errors.Is(err, apiconfig.ErrMissingBaseConfiguration) {
		t.Fatalf("enable error = %v, want ErrMissingBaseConfiguration", err)
	}
	if _, statErr := os.Stat(w.store); !errors.Is(statErr, os.ErrNotExist) {
		t.Errorf("store file exists after failed enable: %v", statErr)
	}
}

func TestEnableUnknownResource(t *testing.T) {
	w := newWorkspace(t, "config.jsonc")
	w.mustRun(t, "init")

	if _, err := w.run(t, "enable", "missing", "--world", "READ"); err == nil {
		t.Fatal("enable of a resource not in the database succeeded")
	}
	w.mustRun(t, "enable", "missing", "--kind", "table", "--world", "READ")
	if _, found := apiconfig.Find(w.document(t), "missing"); !found {
		t.Error("--kind did not allow configuring a resource outside the database")
	}
}

func TestEnableDryRun(t *testing.T) {
	w := newWorkspace(t, "config.db")
	w.mustRun(t, "init")

	output := w.mustRun(t, "enable", "posts", "--world", "READ", "--dry-run", "--json")
	var entry recordapi.RecordAPIConfig
	if err := json.Unmarshal([]byte(output), &entry); err != nil {
		t.Fatalf("parsing --json output %q: %v", output, err)
	}
	if entry.Name != "posts" || !entry.ACLWorld.Has(recordapi.PermissionRead) {
		t.Errorf("dry-run entry = %+v", entry)
	}
	if got := len(w.document(t).RecordAPIs); got != 0 {
		t.Errorf("entries = %d after dry run, want 0", got)
	}
}

func TestRenameAppendsAndDisableRemovesAll(t *testing.T) {
	w := newWorkspace(t, "config.jsonc")
	w.mustRun(t, "init")
	w.mustRun(t, "enable", "posts", "--world", "READ")
	w.mustRun(t, "enable", "posts", "--name", "articles")

	entries := apiconfig.FindAll(w.document(t), "posts")
	if len(entries) != 2 || entries[0].Name != "posts" || entries[1].Name != "articles" {
		t.Fatalf("entries after rename = %+v, want [posts articles]", entries)
	}

	output := w.mustRun(t, "show", "posts")
	if !strings.Contains(output, `shadowed entry "articles"`) {
		t.Errorf("show output does not mention the shadowed entry: %q", output)
	}

	w.mustRun(t, "enable", "users", "--authenticated", "READ")
	output = w.mustRun(t, "disable", "posts")
	if !strings.Contains(output, "Removed 2 Record API entries") {
		t.Errorf("disable output = %q", output)
	}

	document := w.document(t)
	if len(apiconfig.FindAll(document, "posts")) != 0 {
		t.Error("posts entries remain after disable")
	}
	if _, found := apiconfig.Find(document, "users"); !found {
		t.Error("disable removed an unrelated entry")
	}

	if _, err := w.run(t, "disable", "posts"); err == nil {
		t.Error("disable of a resource without an entry succeeded")
	}
}

func TestShowAbsentExitsOne(t *testing.T) {
	w := newWorkspace(t, "config.jsonc")
	w.mustRun(t, "init")

	_, err := w.run(t, "show", "posts")
	if code := exitCode(err); code != 1 {
		t.Errorf("show of absent resource: exit code %d (err %v), want 1", code, err)
	}
}

func TestResources(t *testing.T) {
	w := newWorkspace(t, "config.jsonc")
	w.mustRun(t, "init")
	w.mustRun(t, "enable", "posts", "--world", "READ")

	output := w.mustRun(t, "resources", "--json")
	var rows []resourceRow
	if err := json.Unmarshal([]byte(output), &rows); err != nil {
		t.Fatalf("parsing --json output %q: %v", output, err)
	}
	want := map[string]bool{"posts": true, "public_posts": false, "users": false}
	if len(rows) != len(want) {
		t.Fatalf("rows = %+v, want %d resources", rows, len(want))
	}
	for _, row := range rows {
		enabled, known := want[row.Name]
		if !known {
			t.Errorf("unexpected resource %q", row.Name)
			continue
		}
		if row.Enabled != enabled {
			t.Errorf("%s: Enabled = %v, want %v", row.Name, row.Enabled, enabled)
		}
	}
}

func TestValidate(t *testing.T) {
	w := newWorkspace(t, "config.jsonc")

	output := w.mustRun(t, "validate", "create", "_REQ_.owner = _USER_.id")
	if !strings.Contains(output, "accepted") {
		t.Errorf("validate output = %q", output)
	}

	tests := []struct {
		name string
		args []string
	}{
		{"row in create rule", []string{"validate", "create", "_ROW_.owner = _USER_.id"}},
		{"request in schema rule", []string{"validate", "schema", "_REQ_.x = 1"}},
		{"syntax error", []string{"validate", "read", "_USER_.id = ="}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := w.run(t, test.args...)
			if code := exitCode(err); code != 1 {
				t.Errorf("exit code %d (err %v), want 1", code, err)
			}
		})
	}

	if _, err := w.run(t, "validate", "insert", "true"); err == nil || exitCode(err) == 1 {
		t.Errorf("unknown rule kind: err = %v, want a usage error", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	source := newWorkspace(t, "config.db")
	source.mustRun(t, "init")
	source.mustRun(t, "enable", "posts", "--world", "READ", "--delete-rule", "_ROW_.owner = _USER_.id")
	source.mustRun(t, "enable", "public_posts", "--authenticated", "READ,SCHEMA")

	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			exported := filepath.Join(t.TempDir(), "export."+format)
			source.mustRun(t, "export", "--format", format, "--output", exported)

			target := workspace{store: filepath.Join(t.TempDir(), "imported.jsonc"), database: source.database}
			target.mustRun(t, "import", exported)

			if !target.document(t).Equal(source.document(t)) {
				t.Errorf("imported document differs:\n got %+v\nwant %+v", target.document(t), source.document(t))
			}
		})
	}

	output := source.mustRun(t, "export", "--format", "cbor-diag")
	if !strings.Contains(output, `"record_apis"`) {
		t.Errorf("cbor-diag output = %q", output)
	}
}

func TestImportRejectsDuplicateNames(t *testing.T) {
	w := newWorkspace(t, "config.jsonc")
	w.mustRun(t, "init")

	path := filepath.Join(t.TempDir(), "bad.jsonc")
	content := `{
		// two entries with one name
		"version": 1,
		"record_apis": [
			{"name": "posts", "table_name": "posts"},
			{"name": "posts", "table_name": "users"},
		],
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := w.run(t, "import", path); err == nil {
		t.Fatal("import of duplicate names succeeded")
	}
	if got := len(w.document(t).RecordAPIs); got != 0 {
		t.Errorf("entries = %d after rejected import, want 0", got)
	}
}

func TestHistory(t *testing.T) {
	w := newWorkspace(t, "config.db")
	w.mustRun(t, "init")
	w.mustRun(t, "enable", "posts", "--world", "READ")
	w.mustRun(t, "disable", "posts")

	output := w.mustRun(t, "history", "--json")
	var revisions []configstore.Revision
	if err := json.Unmarshal([]byte(output), &revisions); err != nil {
		t.Fatalf("parsing --json output %q: %v", output, err)
	}
	if len(revisions) != 3 {
		t.Fatalf("revisions = %d, want 3", len(revisions))
	}
	if revisions[0].Entries != 0 || revisions[1].Entries != 1 {
		t.Errorf("entry counts newest first = %d, %d; want 0, 1", revisions[0].Entries, revisions[1].Entries)
	}

	enabled := revisions[1].Number
	w.mustRun(t, "history", "--restore", strconv.FormatInt(enabled, 10))
	if _, found := apiconfig.Find(w.document(t), "posts"); !found {
		t.Error("restore did not bring back the posts entry")
	}

	file := newWorkspace(t, "config.jsonc")
	file.mustRun(t, "init")
	if _, err := file.run(t, "history"); err == nil {
		t.Error("history on a file store succeeded")
	}
}

func TestUnknownFlagSuggestion(t *testing.T) {
	w := newWorkspace(t, "config.jsonc")
	_, err := w.run(t, "enable", "posts", "--wrld", "READ")
	if err == nil || !strings.Contains(err.Error(), "--world") {
		t.Errorf("error = %v, want a suggestion of --world", err)
	}
}
