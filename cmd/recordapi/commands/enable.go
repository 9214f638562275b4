// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/recordapi/cmd/recordapi/cli"
	"github.com/bureau-foundation/recordapi/lib/accessrule"
	"github.com/bureau-foundation/recordapi/lib/apiconfig"
	"github.com/bureau-foundation/recordapi/lib/configstore"
	"github.com/bureau-foundation/recordapi/lib/schema/recordapi"
)

type enableParams struct {
	cli.ConfigOptions
	cli.JSONOutput

	Kind          string                               `json:"kind"          flag:"kind"          desc:"resource kind (table or view); looked up in the database when omitted"`
	Name          string                               `json:"name"          flag:"name"          desc:"API name (default: the table name, or the existing API name)"`
	World         recordapi.PermissionSet              `json:"world"         flag:"world"         desc:"permissions for every caller, e.g. READ,SCHEMA (replaces the current set; \"\" clears it)"`
	Authenticated recordapi.PermissionSet              `json:"authenticated" flag:"authenticated" desc:"permissions for signed-in callers (replaces the current set; \"\" clears it)"`
	ReadRule      string                               `json:"read_rule"     flag:"read-rule"     desc:"read access rule (\"\" clears it)"`
	CreateRule    string                               `json:"create_rule"   flag:"create-rule"   desc:"create access rule (\"\" clears it)"`
	UpdateRule    string                               `json:"update_rule"   flag:"update-rule"   desc:"update access rule (\"\" clears it)"`
	DeleteRule    string                               `json:"delete_rule"   flag:"delete-rule"   desc:"delete access rule (\"\" clears it)"`
	SchemaRule    string                               `json:"schema_rule"   flag:"schema-rule"   desc:"schema access rule (\"\" clears it)"`
	Conflict      recordapi.ConflictResolutionStrategy `json:"conflict"      flag:"conflict"      desc:"conflict resolution: abort, rollback, fail, ignore, replace, or \"\" for the database default"`
	Autofill      bool                                 `json:"autofill"      flag:"autofill"      desc:"fill missing user id columns on create with the caller's id"`
	DryRun        bool                                 `json:"dry_run"       flag:"dry-run"       desc:"validate and print the resulting entry without writing it"`
}

// ruleFlag pairs a rule slot with its flag name and bound value.
type ruleFlag struct {
	kind  recordapi.RuleKind
	flag  string
	value *string
}

func (p *enableParams) ruleFlags() []ruleFlag {
	return []ruleFlag{
		{recordapi.RuleRead, "read-rule", &p.ReadRule},
		{recordapi.RuleCreate, "create-rule", &p.CreateRule},
		{recordapi.RuleUpdate, "update-rule", &p.UpdateRule},
		{recordapi.RuleDelete, "delete-rule", &p.DeleteRule},
		{recordapi.RuleSchema, "schema-rule", &p.SchemaRule},
	}
}

func enableCommand() *cli.Command {
	var (
		params  enableParams
		flagSet *pflag.FlagSet
	)

	return &cli.Command{
		Name:    "enable",
		Summary: "Create or update the Record API for a table or view",
		Description: `Expose a table or view as a Record API, or change the settings of the
existing one. Only the settings named by flags change; everything else
keeps its current value (or its default for a new API).

Access rules are SQL expressions over _USER_, _ROW_ and _REQ_. Which
names a rule may use depends on its kind: create rules cannot see
_ROW_, schema rules only see _USER_. Every rule is checked before
anything is written; a rejected rule leaves the store untouched.

Views only support READ and SCHEMA permissions and read and schema
rules.

Changing --name on an existing API appends a second entry for the same
table rather than renaming the first. Use "recordapi disable" to remove
all entries for a table.`,
		Usage: "recordapi enable <table-or-view> [flags]",
		Examples: []cli.Example{
			{
				Description: "Public read-only API over a table",
				Command:     "recordapi enable articles --world READ,SCHEMA",
			},
			{
				Description: "Owners may update their own rows",
				Command:     "recordapi enable posts --authenticated CREATE,READ,UPDATE --update-rule '_ROW_.owner = _USER_.id'",
			},
			{
				Description: "Preview the result without writing",
				Command:     "recordapi enable posts --conflict replace --dry-run",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet = cli.FlagsFromParams("enable", &params)
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: recordapi enable <table-or-view> [flags]")
			}
			env, err := openEnvironment(&params.ConfigOptions, "enable")
			if err != nil {
				return err
			}
			defer env.Close()

			resource, err := env.resolveResource(ctx, args[0], params.Kind)
			if err != nil {
				return err
			}

			store, err := sessionStore(ctx, env, params.DryRun)
			if err != nil {
				return err
			}

			validator, closeValidator, err := env.newValidator()
			if err != nil {
				return err
			}
			defer closeValidator()
			scheduler := env.newScheduler(validator)
			defer scheduler.Close()

			session, err := apiconfig.Open(ctx, apiconfig.SessionConfig{
				Store:     store,
				Resource:  resource,
				Validator: validator,
				Scheduler: scheduler,
				Shell:     loggingShell{logger: env.logger},
				Logger:    env.logger,
			})
			if err != nil {
				return err
			}
			action := session.Action()

			if err := session.Edit(); err != nil {
				return err
			}
			if err := applyEnableFlags(session, &params, flagSet); err != nil {
				return err
			}

			if action == "Update" && !session.Dirty() {
				if err := session.Discard(); err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "No changes to the Record API for %s %q.\n", resource.Kind, resource.Name)
				return nil
			}

			if err := session.Submit(ctx); err != nil {
				return describeSubmitError(err)
			}

			entry, _ := session.Persisted()
			if done, err := params.EmitJSON(entry); done {
				return err
			}

			verb := map[string]string{"Enable": "Enabled", "Update": "Updated"}[action]
			if params.DryRun {
				verb = "Dry run: would have " + strings.ToLower(verb)
			}
			fmt.Printf("%s Record API %q for %s %q\n", verb, entry.Name, resource.Kind, resource.Name)
			printEntry(os.Stdout, entry)
			return nil
		},
	}
}

// sessionStore returns the store a session writes to. A dry run works
// against an in-memory copy of the current document.
func sessionStore(ctx context.Context, env *environment, dryRun bool) (apiconfig.Store, error) {
	if !dryRun {
		return env.store, nil
	}
	document, err := env.store.Get(ctx)
	if errors.Is(err, configstore.ErrNoDocument) {
		return configstore.NewMemory(nil), nil
	}
	if err != nil {
		return nil, err
	}
	return configstore.NewMemory(document), nil
}

// applyEnableFlags applies every flag the operator set to the draft.
// Flags left at their defaults are not applied, so existing settings
// survive an update that does not mention them.
func applyEnableFlags(session *apiconfig.Session, params *enableParams, flagSet *pflag.FlagSet) error {
	changed := func(name string) bool {
		return flagSet != nil && flagSet.Changed(name)
	}

	if changed("name") {
		if err := session.SetName(params.Name); err != nil {
			return err
		}
	}

	for _, acl := range []struct {
		flag     string
		audience recordapi.Audience
		set      recordapi.PermissionSet
	}{
		{"world", recordapi.AudienceWorld, params.World},
		{"authenticated", recordapi.AudienceAuthenticated, params.Authenticated},
	} {
		if !changed(acl.flag) {
			continue
		}
		if err := session.SetACL(acl.audience, acl.set); err != nil {
			return err
		}
	}

	for _, rule := range params.ruleFlags() {
		if !changed(rule.flag) {
			continue
		}
		if err := session.SetRule(rule.kind, *rule.value); err != nil {
			return err
		}
	}

	if changed("conflict") {
		if err := session.SetConflictResolution(params.Conflict); err != nil {
			return err
		}
	}

	if changed("autofill") {
		if err := session.SetAutofill(params.Autofill); err != nil {
			return err
		}
	}
	return nil
}

// describeSubmitError adds operator guidance to the errors a submit
// can end with.
func describeSubmitError(err error) error {
	var persistence *apiconfig.PersistenceError
	switch {
	case errors.Is(err, accessrule.ErrInvalidRule):
		return fmt.Errorf("nothing was written: %w", err)
	case errors.Is(err, apiconfig.ErrMissingBaseConfiguration):
		return fmt.Errorf("%w (run 'recordapi init' first)", err)
	case errors.As(err, &persistence):
		return fmt.Errorf("%w (the store was not changed; retry the command)", err)
	}
	return err
}
