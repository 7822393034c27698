// Package supervisor runs the per-bus watcher sessions as a group and
// decides when a session failure takes the daemon down.
package supervisor

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kennep/killjoy/errors"
	"github.com/kennep/killjoy/health"
	"github.com/kennep/killjoy/unit"
)

// Runner is one supervised session.
type Runner interface {
	Run(ctx context.Context) error
	Scope() unit.BusScope
}

// Supervisor runs its sessions concurrently until the context is canceled.
// A single failed session is logged and survived so the other bus keeps
// being watched; the supervisor fails only when every session is down.
type Supervisor struct {
	runners []Runner
	logger  *slog.Logger
	monitor *health.Monitor
}

// Option configures a Supervisor.
type Option func(*Supervisor) error

// WithLogger sets the supervisor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		s.logger = logger
		return nil
	}
}

// WithHealthMonitor attaches a health monitor the supervisor reports
// session failures into.
func WithHealthMonitor(m *health.Monitor) Option {
	return func(s *Supervisor) error {
		s.monitor = m
		return nil
	}
}

// New creates a supervisor over at least one session.
func New(runners []Runner, opts ...Option) (*Supervisor, error) {
	if len(runners) == 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("no sessions to supervise"), "Supervisor", "New", "validate arguments")
	}

	s := &Supervisor{
		runners: runners,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, errors.WrapInvalid(err, "Supervisor", "New", "apply option")
		}
	}
	return s, nil
}

// Run starts every session and blocks until all of them return. It returns
// nil when the context was canceled, and an error when every session
// failed on its own.
func (s *Supervisor) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	failures := make([]error, len(s.runners))

	for i, runner := range s.runners {
		wg.Add(1)
		go func(i int, runner Runner) {
			defer wg.Done()

			scope := runner.Scope()
			s.logger.Info("starting session", "bus", scope.String())

			err := runner.Run(ctx)
			if err != nil {
				failures[i] = fmt.Errorf("%s bus session: %w", scope, err)
				s.logger.Error("session failed", "bus", scope.String(), "error", err)
				if s.monitor != nil {
					s.monitor.Update("session-"+scope.String(),
						health.FromError("session-"+scope.String(), err))
				}
				return
			}
			s.logger.Info("session stopped", "bus", scope.String())
		}(i, runner)
	}

	wg.Wait()

	if ctx.Err() != nil {
		return nil
	}

	var errs []error
	for _, err := range failures {
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(s.runners) {
		return errors.WrapFatal(stderrors.Join(errs...),
			"Supervisor", "Run", "all sessions failed")
	}
	return nil
}
