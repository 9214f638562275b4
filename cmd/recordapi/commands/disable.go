// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/recordapi/cmd/recordapi/cli"
	"github.com/bureau-foundation/recordapi/lib/apiconfig"
)

type disableParams struct {
	cli.ConfigOptions
	Kind   string `json:"kind"    flag:"kind"    desc:"resource kind (table or view); looked up in the database when omitted"`
	DryRun bool   `json:"dry_run" flag:"dry-run" desc:"report what would be removed without writing"`
}

func disableCommand() *cli.Command {
	var params disableParams

	return &cli.Command{
		Name:    "disable",
		Summary: "Remove the Record API for a table or view",
		Description: `Remove every Record API entry for a table or view, including shadowed
duplicates left behind by renames. Other entries and the rest of the
document are kept unchanged.`,
		Usage:  "recordapi disable <table-or-view> [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: recordapi disable <table-or-view> [flags]")
			}
			env, err := openEnvironment(&params.ConfigOptions, "disable")
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

			session, err := apiconfig.Open(ctx, apiconfig.SessionConfig{
				Store:     store,
				Resource:  resource,
				Validator: validator,
				Shell:     loggingShell{logger: env.logger},
				Logger:    env.logger,
			})
			if err != nil {
				return err
			}
			if !session.CanDisable() {
				return fmt.Errorf("%s %q has no Record API", resource.Kind, resource.Name)
			}

			document, err := store.Get(ctx)
			if err != nil {
				return err
			}
			removed := len(apiconfig.FindAll(document, resource.Name))

			if err := session.Disable(ctx); err != nil {
				return describeSubmitError(err)
			}

			verb := "Removed"
			if params.DryRun {
				verb = "Dry run: would remove"
			}
			fmt.Printf("%s %d Record API entr%s for %s %q\n",
				verb, removed, plural(removed, "y", "ies"), resource.Kind, resource.Name)
			return nil
		},
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
