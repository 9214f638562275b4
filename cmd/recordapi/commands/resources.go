// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/bureau-foundation/recordapi/cmd/recordapi/cli"
	"github.com/bureau-foundation/recordapi/lib/apiconfig"
	"github.com/bureau-foundation/recordapi/lib/configstore"
	"github.com/bureau-foundation/recordapi/lib/introspect"
	"github.com/bureau-foundation/recordapi/lib/schema/recordapi"
)

type resourcesParams struct {
	cli.ConfigOptions
	cli.JSONOutput
}

// resourceRow is one line of "recordapi resources" output.
type resourceRow struct {
	Name    string                 `json:"name"`
	Kind    recordapi.ResourceKind `json:"kind"`
	Enabled bool                   `json:"enabled"`
	APIs    []string               `json:"apis,omitempty"`
}

func resourcesCommand() *cli.Command {
	var params resourcesParams

	return &cli.Command{
		Name:    "resources",
		Summary: "List tables and views and whether they have a Record API",
		Description: `List the tables and views of the application database, and for each
the Record API names currently configured for it.

A resource listed with more than one API name has duplicate entries,
typically from renaming an API; "recordapi disable" removes all of them.`,
		Usage:  "recordapi resources [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string) error {
			env, err := openEnvironment(&params.ConfigOptions, "resources")
			if err != nil {
				return err
			}
			defer env.Close()

			inspector, err := introspect.Open(introspect.Config{Path: env.cfg.Database.Path, Logger: env.logger})
			if err != nil {
				return err
			}
			defer inspector.Close()

			resources, err := inspector.List(ctx)
			if err != nil {
				return err
			}

			document, err := env.store.Get(ctx)
			if errors.Is(err, configstore.ErrNoDocument) {
				document = nil
			} else if err != nil {
				return err
			}

			rows := make([]resourceRow, 0, len(resources))
			for _, resource := range resources {
				row := resourceRow{Name: resource.Name, Kind: resource.Kind}
				for _, entry := range apiconfig.FindAll(document, resource.Name) {
					row.APIs = append(row.APIs, entry.Name)
				}
				row.Enabled = len(row.APIs) > 0
				rows = append(rows, row)
			}

			if done, err := params.EmitJSON(rows); done {
				return err
			}

			writer := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(writer, "RESOURCE\tKIND\tRECORD API\n")
			for _, row := range rows {
				apis := "-"
				if row.Enabled {
					apis = joinNames(row.APIs)
				}
				fmt.Fprintf(writer, "%s\t%s\t%s\n", row.Name, row.Kind, apis)
			}
			return writer.Flush()
		},
	}
}
