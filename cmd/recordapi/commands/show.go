// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/bureau-foundation/recordapi/cmd/recordapi/cli"
	"github.com/bureau-foundation/recordapi/lib/apiconfig"
	"github.com/bureau-foundation/recordapi/lib/schema/recordapi"
)

type showParams struct {
	cli.ConfigOptions
	cli.JSONOutput
}

func showCommand() *cli.Command {
	var params showParams

	return &cli.Command{
		Name:    "show",
		Summary: "Show the Record API for a table or view",
		Description: `Print the Record API entry for a table or view. Exits 1 when the
resource has no entry.

When a table has several entries only the first is used for lookup;
the others are listed as shadowed.`,
		Usage:  "recordapi show <table-or-view> [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: recordapi show <table-or-view> [flags]")
			}
			env, err := openEnvironment(&params.ConfigOptions, "show")
			if err != nil {
				return err
			}
			defer env.Close()

			document, err := env.document(ctx)
			if err != nil {
				return err
			}

			entries := apiconfig.FindAll(document, args[0])
			if len(entries) == 0 {
				fmt.Fprintf(os.Stderr, "%q has no Record API\n", args[0])
				return &cli.ExitError{Code: 1}
			}

			if done, err := params.EmitJSON(entries[0]); done {
				return err
			}

			printEntry(os.Stdout, entries[0])
			for _, shadowed := range entries[1:] {
				fmt.Fprintf(os.Stdout, "\nshadowed entry %q (never used for lookup)\n", shadowed.Name)
			}
			return nil
		},
	}
}

// printEntry writes an entry as aligned key/value lines.
func printEntry(w io.Writer, entry recordapi.RecordAPIConfig) {
	writer := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(writer, "  name:\t%s\n", entry.Name)
	fmt.Fprintf(writer, "  table:\t%s\n", entry.TableName)
	fmt.Fprintf(writer, "  world:\t%s\n", entry.ACLWorld)
	fmt.Fprintf(writer, "  authenticated:\t%s\n", entry.ACLAuthenticated)
	for _, kind := range recordapi.RuleKinds(recordapi.KindTable) {
		if rule := entry.Rule(kind); rule != "" {
			fmt.Fprintf(writer, "  %s rule:\t%s\n", kind, rule)
		}
	}
	fmt.Fprintf(writer, "  conflict resolution:\t%s\n", recordapi.ConflictStrategyLabel(entry.ConflictResolution))
	fmt.Fprintf(writer, "  autofill user ids:\t%t\n", entry.AutofillMissingUserIDColumns)
	writer.Flush()
}
