// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bureau-foundation/recordapi/cmd/recordapi/cli"
	"github.com/bureau-foundation/recordapi/lib/accessrule"
	"github.com/bureau-foundation/recordapi/lib/schema/recordapi"
)

type validateParams struct {
	cli.ConfigOptions
	cli.JSONOutput
}

// validationResult is the --json output of "recordapi validate".
type validationResult struct {
	Kind       recordapi.RuleKind `json:"kind"`
	Expression string             `json:"expression"`
	Valid      bool               `json:"valid"`
	Diagnostic string             `json:"diagnostic,omitempty"`
}

func validateCommand() *cli.Command {
	var params validateParams

	return &cli.Command{
		Name:    "validate",
		Summary: "Check an access rule expression",
		Description: `Check that an access rule parses as a SQL expression and only uses
the names its kind allows:

  read, update, delete   _USER_, _ROW_, _REQ_
  create                 _USER_, _REQ_
  schema                 _USER_

Exits 0 when the rule is accepted and 1 when it is rejected. Nothing is
read from or written to the configuration store.`,
		Usage: "recordapi validate <kind> <expression> [flags]",
		Examples: []cli.Example{
			{
				Description: "A create rule comparing the request to the caller",
				Command:     "recordapi validate create '_REQ_.owner = _USER_.id'",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("usage: recordapi validate <kind> <expression> [flags]")
			}
			kind, err := recordapi.ParseRuleKind(args[0])
			if err != nil {
				return err
			}
			expression := strings.Join(args[1:], " ")

			cfg, err := params.Load()
			if err != nil {
				return err
			}
			env := &environment{cfg: cfg, logger: cli.Logger(cfg).With("command", "validate")}

			validator, closeValidator, err := env.newValidator()
			if err != nil {
				return err
			}
			defer closeValidator()

			result := validationResult{Kind: kind, Expression: expression, Valid: true}
			var validationErr *accessrule.ValidationError
			err = validator.Validate(ctx, kind, expression)
			switch {
			case err == nil:
			case errors.As(err, &validationErr):
				result.Valid = false
				result.Diagnostic = validationErr.Diagnostic
			default:
				return err
			}

			if done, err := params.EmitJSON(result); done {
				if err == nil && !result.Valid {
					return &cli.ExitError{Code: 1}
				}
				return err
			}

			if !result.Valid {
				fmt.Fprintf(os.Stderr, "%s rule rejected: %s\n", kind, result.Diagnostic)
				return &cli.ExitError{Code: 1}
			}
			fmt.Printf("%s rule accepted\n", kind)
			return nil
		},
	}
}
