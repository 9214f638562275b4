// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/recordapi/cmd/recordapi/cli"
	"github.com/bureau-foundation/recordapi/lib/configstore"
	"github.com/bureau-foundation/recordapi/lib/schema/recordapi"
)

type initParams struct {
	cli.ConfigOptions
	Force bool `json:"force" flag:"force" desc:"replace an existing document with an empty one"`
}

func initCommand() *cli.Command {
	var params initParams

	return &cli.Command{
		Name:    "init",
		Summary: "Create an empty configuration document",
		Description: `Write an empty configuration document (no Record APIs) to the store.

Every other mutating command requires a document to exist; they refuse
to invent one. An existing document is left alone unless --force is
given.`,
		Usage:  "recordapi init [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("init takes no arguments")
			}
			env, err := openEnvironment(&params.ConfigOptions, "init")
			if err != nil {
				return err
			}
			defer env.Close()

			existing, err := env.store.Get(ctx)
			switch {
			case err == nil && !params.Force:
				fmt.Printf("%s already holds a document with %d record API(s); use --force to replace it\n",
					env.cfg.Store.Path, len(existing.RecordAPIs))
				return nil
			case err != nil && !errors.Is(err, configstore.ErrNoDocument):
				return err
			}

			if err := env.store.Set(ctx, &recordapi.Config{Version: recordapi.ConfigVersion}); err != nil {
				return err
			}
			env.logger.Info("configuration document initialized", "store", env.cfg.Store.Path)
			fmt.Printf("Initialized %s\n", env.cfg.Store.Path)
			return nil
		},
	}
}
