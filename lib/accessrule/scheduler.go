// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package accessrule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/recordapi/lib/clock"
	"github.com/bureau-foundation/recordapi/lib/schema/recordapi"
)

// DefaultQuiescence is how long a field must stay unedited before its
// expression is validated.
const DefaultQuiescence = 500 * time.Millisecond

// Checker is the validation call the Scheduler defers. *Validator
// implements it.
type Checker interface {
	Validate(ctx context.Context, kind recordapi.RuleKind, expression string) error
}

// Result is a completed validation. Generation matches the value
// Request returned for the request that produced it.
type Result struct {
	Field      string
	Generation uint64
	Kind       recordapi.RuleKind
	Expression string
	Err        error
}

// SchedulerConfig holds the parameters for NewScheduler.
type SchedulerConfig struct {
	// Checker runs the validation. Required.
	Checker Checker

	// Clock drives the quiescence delay. Required.
	Clock clock.Clock

	// Quiescence is the delay after the last request for a field
	// before validation starts. Zero selects DefaultQuiescence;
	// negative validates immediately.
	Quiescence time.Duration

	// Timeout bounds a single validation. Zero means no bound.
	Timeout time.Duration

	// Logger receives debug messages. Nil discards them.
	Logger *slog.Logger
}

// Scheduler defers validation until a field is quiet, and guarantees
// that each field only ever delivers the result of its latest request.
// A request supersedes the pending one for the same field: its timer
// is stopped, its context cancelled, and a result it still produces is
// dropped.
type Scheduler struct {
	checker    Checker
	clock      clock.Clock
	quiescence time.Duration
	timeout    time.Duration
	logger     *slog.Logger

	mu         sync.Mutex
	generation uint64
	pending    map[string]*pendingRequest
	closed     bool
}

type pendingRequest struct {
	generation uint64
	timer      *clock.Timer
	cancel     context.CancelFunc
}

// NewScheduler creates a Scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Checker == nil {
		panic("accessrule: SchedulerConfig.Checker is required")
	}
	if cfg.Clock == nil {
		panic("accessrule: SchedulerConfig.Clock is required")
	}
	quiescence := cfg.Quiescence
	if quiescence == 0 {
		quiescence = DefaultQuiescence
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		checker:    cfg.Checker,
		clock:      cfg.Clock,
		quiescence: quiescence,
		timeout:    cfg.Timeout,
		logger:     logger,
		pending:    make(map[string]*pendingRequest),
	}
}

// Request schedules validation of expression for field and returns the
// request's generation. deliver is called at most once, from another
// goroutine, and only if no later Request or Cancel for field happened
// first. After Close, Request returns 0 and never delivers.
func (s *Scheduler) Request(field string, kind recordapi.RuleKind, expression string, deliver func(Result)) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0
	}
	s.supersedeLocked(field)

	s.generation++
	generation := s.generation
	ctx, cancel := context.WithCancel(context.Background())
	request := &pendingRequest{generation: generation, cancel: cancel}
	s.pending[field] = request

	start := func() {
		go s.run(ctx, field, generation, kind, expression, deliver)
	}
	if s.quiescence < 0 {
		start()
	} else {
		request.timer = s.clock.AfterFunc(s.quiescence, start)
	}
	return generation
}

// Cancel drops the pending request for field, if any.
func (s *Scheduler) Cancel(field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supersedeLocked(field)
}

// Pending reports whether field has a request whose result has not
// been delivered.
func (s *Scheduler) Pending(field string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.pending[field]
	return exists
}

// Close cancels every pending request. Later Requests are ignored.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for field := range s.pending {
		s.supersedeLocked(field)
	}
	s.closed = true
}

func (s *Scheduler) supersedeLocked(field string) {
	request, exists := s.pending[field]
	if !exists {
		return
	}
	if request.timer != nil {
		request.timer.Stop()
	}
	request.cancel()
	delete(s.pending, field)
	s.logger.Debug("validation superseded", "field", field, "generation", request.generation)
}

func (s *Scheduler) run(ctx context.Context, field string, generation uint64, kind recordapi.RuleKind, expression string, deliver func(Result)) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	err := s.checker.Validate(ctx, kind, expression)

	s.mu.Lock()
	request, exists := s.pending[field]
	current := exists && request.generation == generation
	if current {
		request.cancel()
		delete(s.pending, field)
	}
	s.mu.Unlock()

	if !current {
		s.logger.Debug("stale validation result dropped", "field", field, "generation", generation)
		return
	}
	deliver(Result{
		Field:      field,
		Generation: generation,
		Kind:       kind,
		Expression: expression,
		Err:        err,
	})
}
