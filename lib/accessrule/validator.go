// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package accessrule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pmylund/go-cache"

	"github.com/bureau-foundation/recordapi/lib/schema/recordapi"
)

// Parser checks the syntax of a single SQL expression. Parse returns
// nil when the expression parses, a *SyntaxError when it does not,
// and any other error when the parser itself failed.
type Parser interface {
	Parse(ctx context.Context, expression string) error
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(ctx context.Context, expression string) error

// Parse calls f.
func (f ParserFunc) Parse(ctx context.Context, expression string) error {
	return f(ctx, expression)
}

// DefaultCacheTTL is how long a parser verdict is reused when
// ValidatorConfig.CacheTTL is zero.
const DefaultCacheTTL = 5 * time.Minute

// ValidatorConfig holds the parameters for NewValidator.
type ValidatorConfig struct {
	// Parser checks syntax. Required.
	Parser Parser

	// CacheTTL bounds how long a verdict is reused. Zero selects
	// DefaultCacheTTL; negative disables caching.
	CacheTTL time.Duration

	// Logger receives debug messages. Nil discards them.
	Logger *slog.Logger
}

// Validator checks access rule expressions for a rule kind. It is
// safe for concurrent use.
type Validator struct {
	parser Parser
	cache  *cache.Cache
	logger *slog.Logger
}

// verdict is the cached outcome of a parse. A nil diagnostic means
// the expression parsed.
type verdict struct {
	diagnostic *string
}

// NewValidator creates a Validator.
func NewValidator(cfg ValidatorConfig) (*Validator, error) {
	if cfg.Parser == nil {
		return nil, fmt.Errorf("accessrule: Parser is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	validator := &Validator{parser: cfg.Parser, logger: logger}
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	if ttl > 0 {
		validator.cache = cache.New(ttl, 2*ttl)
	}
	return validator, nil
}

// Validate checks expression as a rule of the given kind. Empty or
// whitespace-only expressions are valid. A rejected expression yields
// a *ValidationError; other errors mean the check could not run
// (cancelled context, parser failure).
func (v *Validator) Validate(ctx context.Context, kind recordapi.RuleKind, expression string) error {
	if !kind.IsKnown() {
		return fmt.Errorf("accessrule: unknown rule kind %q", kind)
	}
	if strings.TrimSpace(expression) == "" {
		return nil
	}

	references, err := scan(expression)
	if err != nil {
		return &ValidationError{Kind: kind, Expression: expression, Diagnostic: err.Error()}
	}
	for _, ref := range references {
		if !kind.Permits(ref.variable) {
			return &ValidationError{
				Kind:       kind,
				Expression: expression,
				Diagnostic: fmt.Sprintf("%s is not available in %s rules (allowed: %s)",
					ref.variable, kind, joinVariables(kind.Namespace())),
			}
		}
	}

	diagnostic, err := v.parse(ctx, expression)
	if err != nil {
		return err
	}
	if diagnostic != nil {
		return &ValidationError{Kind: kind, Expression: expression, Diagnostic: *diagnostic}
	}
	return nil
}

// parse returns the parser's syntax diagnostic for expression, nil when
// it parses, consulting the cache first.
func (v *Validator) parse(ctx context.Context, expression string) (*string, error) {
	if v.cache != nil {
		if cached, found := v.cache.Get(expression); found {
			return cached.(verdict).diagnostic, nil
		}
	}

	err := v.parser.Parse(ctx, expression)
	var result verdict
	if err != nil {
		var syntax *SyntaxError
		if !errors.As(err, &syntax) {
			return nil, fmt.Errorf("accessrule: parser: %w", err)
		}
		diagnostic := syntax.Diagnostic
		result.diagnostic = &diagnostic
	}

	if v.cache != nil {
		v.cache.Set(expression, result, cache.DefaultExpiration)
	}
	v.logger.Debug("access rule parsed", "expression", expression, "valid", result.diagnostic == nil)
	return result.diagnostic, nil
}

func joinVariables(variables []recordapi.Variable) string {
	names := make([]string, len(variables))
	for i, variable := range variables {
		names[i] = string(variable)
	}
	return strings.Join(names, ", ")
}
