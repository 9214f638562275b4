// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/recordapi/cmd/recordapi/cli"
	"github.com/bureau-foundation/recordapi/lib/accessrule"
	"github.com/bureau-foundation/recordapi/lib/clock"
	"github.com/bureau-foundation/recordapi/lib/config"
	"github.com/bureau-foundation/recordapi/lib/configstore"
	"github.com/bureau-foundation/recordapi/lib/introspect"
	"github.com/bureau-foundation/recordapi/lib/schema/recordapi"
)

// environment is the per-invocation state shared by commands: the
// resolved configuration, a scoped logger and the open store.
type environment struct {
	cfg    *config.Config
	logger *slog.Logger
	store  configstore.Backend
}

// openEnvironment loads configuration and opens the configuration
// store. The caller must Close the result.
func openEnvironment(options *cli.ConfigOptions, command string) (*environment, error) {
	cfg, err := options.Load()
	if err != nil {
		return nil, err
	}
	logger := cli.Logger(cfg).With("command", command)

	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}

	store, err := configstore.Open(configstore.OpenConfig{
		Kind:   configstore.Kind(cfg.Store.Backend),
		Path:   cfg.Store.Path,
		Retain: cfg.Store.Retain,
		Clock:  clock.Real(),
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	return &environment{cfg: cfg, logger: logger, store: store}, nil
}

func (e *environment) Close() {
	if err := e.store.Close(); err != nil {
		e.logger.Warn("closing configuration store", "error", err)
	}
}

// document reads the current document, mapping an empty store to a
// hint about "recordapi init".
func (e *environment) document(ctx context.Context) (*recordapi.Config, error) {
	document, err := e.store.Get(ctx)
	if errors.Is(err, configstore.ErrNoDocument) {
		return nil, fmt.Errorf("%s holds no configuration document (run 'recordapi init' first)", e.cfg.Store.Path)
	}
	return document, err
}

// newValidator builds a rule validator backed by the SQLite parser.
// The returned close function releases the parser.
func (e *environment) newValidator() (*accessrule.Validator, func(), error) {
	parser, err := accessrule.NewSQLiteParser(accessrule.SQLiteParserConfig{
		PoolSize: e.cfg.Validation.ParserPoolSize,
		Logger:   e.logger,
	})
	if err != nil {
		return nil, nil, err
	}
	validator, err := accessrule.NewValidator(accessrule.ValidatorConfig{
		Parser:   parser,
		CacheTTL: e.cfg.Validation.CacheTTLDuration(),
		Logger:   e.logger,
	})
	if err != nil {
		parser.Close()
		return nil, nil, err
	}
	return validator, func() { parser.Close() }, nil
}

// newScheduler builds a background rule scheduler over validator using
// the configured quiescence and timeout.
func (e *environment) newScheduler(validator *accessrule.Validator) *accessrule.Scheduler {
	quiescence := e.cfg.Validation.QuiescenceDuration()
	if quiescence == 0 {
		quiescence = -1
	}
	return accessrule.NewScheduler(accessrule.SchedulerConfig{
		Checker:    validator,
		Clock:      clock.Real(),
		Quiescence: quiescence,
		Timeout:    e.cfg.Validation.TimeoutDuration(),
		Logger:     e.logger,
	})
}

// resolveResource determines a resource's kind: from --kind when
// given, otherwise by looking the name up in the application database.
func (e *environment) resolveResource(ctx context.Context, name, kind string) (recordapi.Resource, error) {
	if kind != "" {
		parsed, err := recordapi.ParseResourceKind(kind)
		if err != nil {
			return recordapi.Resource{}, err
		}
		return recordapi.Resource{Name: name, Kind: parsed}, nil
	}

	inspector, err := introspect.Open(introspect.Config{Path: e.cfg.Database.Path, Logger: e.logger})
	if err != nil {
		return recordapi.Resource{}, fmt.Errorf("cannot determine whether %q is a table or a view: %w (pass --kind)", name, err)
	}
	defer inspector.Close()

	resource, err := inspector.Lookup(ctx, name)
	if err != nil {
		return recordapi.Resource{}, fmt.Errorf("%w (pass --kind to configure a resource not in %s)", err, e.cfg.Database.Path)
	}
	return resource, nil
}

// loggingShell reports session signals through the logger. A command
// line has no navigation to guard, so dirtiness is informational.
type loggingShell struct {
	logger *slog.Logger
}

func (s loggingShell) MarkDirty() {
	s.logger.Debug("draft differs from persisted entry")
}

func (s loggingShell) Close() {
	s.logger.Debug("edit session closed")
}

func (s loggingShell) FieldValidated(kind recordapi.RuleKind, err error) {
	if err != nil {
		s.logger.Debug("access rule rejected", "rule", string(kind), "error", err)
		return
	}
	s.logger.Debug("access rule accepted", "rule", string(kind))
}
