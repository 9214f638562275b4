// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/recordapi/cmd/recordapi/cli"
	"github.com/bureau-foundation/recordapi/lib/configstore"
	"github.com/bureau-foundation/recordapi/lib/schema/recordapi"
)

type importParams struct {
	cli.ConfigOptions
	DryRun bool `json:"dry_run" flag:"dry-run" desc:"validate the file without writing it"`
}

func importCommand() *cli.Command {
	var params importParams

	return &cli.Command{
		Name:    "import",
		Summary: "Replace the configuration document from a file",
		Description: `Read a configuration document from a JSON (comments and trailing
commas allowed) or YAML file, validate it, and write it to the store,
replacing the current document wholesale.

The file is rejected if any entry is invalid for its own settings or
if two entries share an API name.`,
		Usage:  "recordapi import <file> [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: recordapi import <file> [flags]")
			}
			document, err := readDocumentFile(args[0])
			if err != nil {
				return err
			}
			if err := document.Validate(); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if err := document.CanModify(); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			if params.DryRun {
				fmt.Printf("%s is valid: %d Record API(s)\n", args[0], len(document.RecordAPIs))
				return nil
			}

			env, err := openEnvironment(&params.ConfigOptions, "import")
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.store.Set(ctx, document); err != nil {
				return err
			}
			env.logger.Info("configuration imported", "source", args[0], "entries", len(document.RecordAPIs))
			fmt.Printf("Imported %d Record API(s) from %s\n", len(document.RecordAPIs), args[0])
			return nil
		},
	}
}

// readDocumentFile parses a document file by extension: .yaml and .yml
// as YAML, anything else as JSONC.
func readDocumentFile(path string) (*recordapi.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		// YAML goes through the JSON decoder so permission sets are
		// canonicalized and unknown flags rejected the same way.
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		if generic == nil {
			return nil, fmt.Errorf("parsing %s: empty document", path)
		}
		converted, err := json.Marshal(generic)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		data = converted
	}

	document, err := configstore.ParseJSONC(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return document, nil
}
