// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the recordapi command tree.
package commands

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/recordapi/cmd/recordapi/cli"
	"github.com/bureau-foundation/recordapi/lib/version"
)

// Root builds and returns the complete command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "recordapi",
		Description: `recordapi: Record API access-control configuration.

Expose SQLite tables and views as Record APIs and control who may
create, read, update, delete and inspect their records: permission
flags for anonymous and signed-in callers, and access rule
expressions evaluated per row and request.

The configuration document lives in a store (SQLite with revision
history, or a JSON file). Every change reads the whole document,
applies the edit and writes the whole document back.`,
		Subcommands: []*cli.Command{
			initCommand(),
			resourcesCommand(),
			listCommand(),
			showCommand(),
			enableCommand(),
			disableCommand(),
			validateCommand(),
			exportCommand(),
			importCommand(),
			historyCommand(),
			versionCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Create an empty configuration document",
				Command:     "recordapi init --store ./config.db",
			},
			{
				Description: "See which tables and views could be exposed",
				Command:     "recordapi resources --database ./main.db",
			},
			{
				Description: "Expose posts: anyone reads, owners update",
				Command:     `recordapi enable posts --world READ --authenticated CREATE,READ,UPDATE --update-rule "_ROW_.owner = _USER_.id"`,
			},
			{
				Description: "Check a rule before using it",
				Command:     `recordapi validate create '_REQ_.owner = _USER_.id'`,
			},
		},
	}
}

type versionParams struct {
	cli.JSONOutput
}

func versionCommand() *cli.Command {
	var params versionParams

	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Params:  func() any { return &params },
		Run: func(_ context.Context, args []string) error {
			if done, err := params.EmitJSON(version.Fields()); done {
				return err
			}
			fmt.Printf("recordapi %s\n", version.Full())
			return nil
		},
	}
}
