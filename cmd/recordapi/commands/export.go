// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/recordapi/cmd/recordapi/cli"
	"github.com/bureau-foundation/recordapi/lib/codec"
	"github.com/bureau-foundation/recordapi/lib/configstore"
	"github.com/bureau-foundation/recordapi/lib/schema/recordapi"
)

type exportParams struct {
	cli.ConfigOptions
	Format string `json:"format" flag:"format,f" default:"json" desc:"output format: json, yaml, or cbor-diag"`
	Output string `json:"output" flag:"output,o" desc:"write to this file instead of stdout"`
}

func exportCommand() *cli.Command {
	var params exportParams

	return &cli.Command{
		Name:    "export",
		Summary: "Write the configuration document",
		Description: `Write the whole configuration document, including sections other than
record_apis, in JSON, YAML or CBOR diagnostic notation. JSON and YAML
output can be read back with "recordapi import".`,
		Usage:  "recordapi export [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("export takes no arguments")
			}
			env, err := openEnvironment(&params.ConfigOptions, "export")
			if err != nil {
				return err
			}
			defer env.Close()

			document, err := env.document(ctx)
			if err != nil {
				return err
			}

			data, err := encodeDocument(document, params.Format)
			if err != nil {
				return err
			}

			if params.Output == "" {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(params.Output, data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", params.Output, err)
			}
			env.logger.Info("configuration exported", "path", params.Output, "format", params.Format)
			return nil
		},
	}
}

// encodeDocument renders a document in one of the export formats.
func encodeDocument(document *recordapi.Config, format string) ([]byte, error) {
	switch format {
	case "json":
		return configstore.MarshalJSON(document)
	case "yaml":
		return yaml.Marshal(document)
	case "cbor-diag":
		encoded, err := codec.Marshal(document)
		if err != nil {
			return nil, fmt.Errorf("encoding document: %w", err)
		}
		diagnostic, err := codec.Diagnose(encoded)
		if err != nil {
			return nil, fmt.Errorf("diagnosing document: %w", err)
		}
		return []byte(diagnostic + "\n"), nil
	}
	return nil, fmt.Errorf("unknown format %q (must be json, yaml, or cbor-diag)", format)
}
