// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/bureau-foundation/recordapi/cmd/recordapi/cli"
	"github.com/bureau-foundation/recordapi/lib/apiconfig"
	"github.com/bureau-foundation/recordapi/lib/schema/recordapi"
)

type listParams struct {
	cli.ConfigOptions
	cli.JSONOutput
}

func listCommand() *cli.Command {
	var params listParams

	return &cli.Command{
		Name:    "list",
		Summary: "List configured Record APIs",
		Usage:   "recordapi list [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string) error {
			env, err := openEnvironment(&params.ConfigOptions, "list")
			if err != nil {
				return err
			}
			defer env.Close()

			document, err := env.document(ctx)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(document.RecordAPIs); done {
				return err
			}

			if len(document.RecordAPIs) == 0 {
				fmt.Println("No Record APIs configured.")
				return nil
			}

			writer := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(writer, "NAME\tTABLE\tWORLD\tAUTHENTICATED\tRULES\tCONFLICT\n")
			for _, entry := range document.RecordAPIs {
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\n",
					entry.Name,
					entry.TableName,
					entry.ACLWorld,
					entry.ACLAuthenticated,
					ruleSummary(entry),
					recordapi.ConflictStrategyLabel(entry.ConflictResolution),
				)
			}
			if err := writer.Flush(); err != nil {
				return err
			}

			for _, table := range duplicatedTables(document) {
				fmt.Fprintf(os.Stderr, "warning: table %q has %d Record API entries; only the first is used for lookup\n",
					table, len(apiconfig.FindAll(document, table)))
			}
			return nil
		},
	}
}

// ruleSummary lists the rule slots an entry sets, e.g. "read,update".
func ruleSummary(entry recordapi.RecordAPIConfig) string {
	var kinds []string
	for _, kind := range recordapi.RuleKinds(recordapi.KindTable) {
		if entry.Rule(kind) != "" {
			kinds = append(kinds, string(kind))
		}
	}
	if len(kinds) == 0 {
		return "-"
	}
	return strings.Join(kinds, ",")
}

// duplicatedTables returns table names with more than one entry, in
// order of first appearance.
func duplicatedTables(document *recordapi.Config) []string {
	counts := make(map[string]int)
	var order []string
	for _, entry := range document.RecordAPIs {
		if counts[entry.TableName] == 0 {
			order = append(order, entry.TableName)
		}
		counts[entry.TableName]++
	}
	var duplicated []string
	for _, table := range order {
		if counts[table] > 1 {
			duplicated = append(duplicated, table)
		}
	}
	return duplicated
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
