// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/bureau-foundation/recordapi/cmd/recordapi/cli"
	"github.com/bureau-foundation/recordapi/lib/configstore"
)

type historyParams struct {
	cli.ConfigOptions
	cli.JSONOutput
	Limit   int    `json:"limit"   flag:"limit,n" default:"20" desc:"number of revisions to list (0 lists all)"`
	Show    int64  `json:"show"    flag:"show"    desc:"print the document stored at this revision"`
	Format  string `json:"format"  flag:"format"  default:"json" desc:"format for --show: json, yaml, or cbor-diag"`
	Restore int64  `json:"restore" flag:"restore" desc:"write the document stored at this revision as a new revision"`
}

func historyCommand() *cli.Command {
	var params historyParams

	return &cli.Command{
		Name:    "history",
		Summary: "List, show or restore stored revisions",
		Description: `The SQLite store keeps every write as a numbered revision, pruning
the oldest beyond store.retain. List recent revisions, print the
document at one, or restore one by writing it again as the newest
revision.

File stores keep no history.`,
		Usage: "recordapi history [flags]",
		Examples: []cli.Example{
			{
				Description: "Undo the last change",
				Command:     "recordapi history --limit 2 && recordapi history --restore <previous>",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("history takes no arguments")
			}
			if params.Show != 0 && params.Restore != 0 {
				return fmt.Errorf("--show and --restore are mutually exclusive")
			}
			env, err := openEnvironment(&params.ConfigOptions, "history")
			if err != nil {
				return err
			}
			defer env.Close()

			store, ok := env.store.(*configstore.SQLite)
			if !ok {
				return fmt.Errorf("%s is not a SQLite store; only SQLite stores keep history", env.cfg.Store.Path)
			}

			switch {
			case params.Show != 0:
				document, err := store.Revision(ctx, params.Show)
				if err != nil {
					return err
				}
				data, err := encodeDocument(document, params.Format)
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(data)
				return err

			case params.Restore != 0:
				document, err := store.Revision(ctx, params.Restore)
				if err != nil {
					return err
				}
				if err := store.Set(ctx, document); err != nil {
					return err
				}
				env.logger.Info("revision restored", "revision", params.Restore)
				fmt.Printf("Restored revision %d\n", params.Restore)
				return nil
			}

			revisions, err := store.History(ctx, params.Limit)
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(revisions); done {
				return err
			}
			if len(revisions) == 0 {
				fmt.Println("No revisions.")
				return nil
			}

			writer := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(writer, "REVISION\tWRITTEN\tAPIS\tSIZE\tDIGEST\n")
			for _, revision := range revisions {
				fmt.Fprintf(writer, "%d\t%s\t%d\t%d\t%s\n",
					revision.Number,
					revision.WrittenAt.Local().Format(time.DateTime),
					revision.Entries,
					revision.Size,
					revision.Digest[:min(12, len(revision.Digest))],
				)
			}
			return writer.Flush()
		},
	}
}
