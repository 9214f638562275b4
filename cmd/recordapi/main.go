// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Command recordapi manages the Record API access-control configuration
// of an application database.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/recordapi/cmd/recordapi/commands"
)

func main() {
	if err := run(); err != nil {
		// Commands that report their own outcome (like validate) return
		// an error carrying the exit code. Don't print a redundant
		// "error:" line for those.
		var coder interface{ ExitCode() int }
		if errors.As(err, &coder) {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return commands.Root().Execute(ctx, os.Args[1:])
}
