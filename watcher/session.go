package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kennep/killjoy/config"
	"github.com/kennep/killjoy/errors"
	"github.com/kennep/killjoy/health"
	"github.com/kennep/killjoy/metric"
	"github.com/kennep/killjoy/pkg/retry"
	"github.com/kennep/killjoy/unit"
)

// Bus is the slice of the D-Bus client a session drives. Production code
// passes a dbusclient.Client; tests substitute a fake.
type Bus interface {
	Connect(ctx context.Context) error
	Close() error
	SubscribeManager(ctx context.Context) error
	Events() <-chan unit.BusEvent
	ListUnits(ctx context.Context) ([]unit.Status, error)
	UnitProperties(ctx context.Context, name string) (unit.Properties, error)
	WatchUnit(ctx context.Context, name string) error
	UnwatchUnit(ctx context.Context, name string) error
}

// BusFactory builds a fresh Bus. A session calls it once per connection
// attempt; a lost connection is never reused.
type BusFactory func() (Bus, error)

// Dispatcher consumes the transition events a session produces.
type Dispatcher interface {
	OnTransition(ctx context.Context, ev unit.TransitionEvent) error
}

// Session status gauge values.
const (
	statusDown       = 0
	statusConnecting = 1
	statusWatching   = 2
)

// Session watches the units matching its rules on one bus. It owns the
// connection lifecycle: discovery, signal consumption, and bounded
// reconnection after a lost connection.
type Session struct {
	scope      unit.BusScope
	rules      []config.Rule
	factory    BusFactory
	dispatcher Dispatcher
	registry   *Registry

	logger   *slog.Logger
	metrics  *metric.Metrics
	monitor  *health.Monitor
	retryCfg retry.Config

	// now is swapped in tests for deterministic event times.
	now func() time.Time
}

// NewSession creates a session for one bus scope. The rules must all be
// bound to that scope and must come from validated settings.
func NewSession(scope unit.BusScope, rules []config.Rule, factory BusFactory,
	dispatcher Dispatcher, opts ...Option) (*Session, error) {
	if factory == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("nil bus factory"), "Session", "New", "validate arguments")
	}
	if dispatcher == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("nil dispatcher"), "Session", "New", "validate arguments")
	}
	for i := range rules {
		if rules[i].BusScope != scope {
			return nil, errors.WrapInvalid(
				fmt.Errorf("rule %d is bound to bus %q", i, rules[i].BusScope),
				"Session", "New", "validate arguments")
		}
	}

	s := &Session{
		scope:      scope,
		rules:      rules,
		factory:    factory,
		dispatcher: dispatcher,
		registry:   NewRegistry(scope),
		logger:     slog.Default(),
		retryCfg:   errors.DefaultRetryConfig().ToRetryConfig(),
		now:        time.Now,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, errors.WrapInvalid(err, "Session", "New", "apply option")
		}
	}
	s.logger = s.logger.With("bus", scope.String())
	return s, nil
}

// Scope returns the bus scope this session watches.
func (s *Session) Scope() unit.BusScope {
	return s.scope
}

// Component returns the session's name in health reporting.
func (s *Session) Component() string {
	return "session-" + s.scope.String()
}

// Run connects to the bus and processes unit lifecycle events until the
// context is canceled. A lost connection clears the registry and reconnects
// with backoff; Run returns an error only when the retry budget is
// exhausted or the initial configuration is unusable.
func (s *Session) Run(ctx context.Context) error {
	for {
		s.setStatus(statusConnecting)
		s.reportDegraded("connecting to bus")

		bus, err := retry.DoWithResult(ctx, s.retryCfg, func() (Bus, error) {
			return s.connect(ctx)
		})
		if err != nil {
			s.setStatus(statusDown)
			if ctx.Err() != nil {
				s.reportDegraded("shutting down")
				return nil
			}
			s.reportUnhealthy(err)
			s.recordError("connect")
			return errors.WrapFatal(
				fmt.Errorf("%w: %v", errors.ErrMaxRetriesExceeded, err),
				"Session", "Run", "connect to bus")
		}

		s.setStatus(statusWatching)
		s.reportHealthy()
		s.logger.Info("watching units", "count", s.registry.Len())

		lost := s.consume(ctx, bus)
		_ = bus.Close()
		s.registry.Clear()
		s.updateWatchedGauge()

		if !lost {
			s.setStatus(statusDown)
			s.reportDegraded("shutting down")
			return nil
		}

		s.logger.Warn("bus connection lost, reconnecting")
		s.recordReconnect()
	}
}

// connect builds a fresh bus, subscribes to manager signals, and runs
// initial discovery. On any failure the bus is closed and the error
// returned for the retry loop.
func (s *Session) connect(ctx context.Context) (Bus, error) {
	bus, err := s.factory()
	if err != nil {
		return nil, errors.Wrap(err, "Session", "connect", "build bus client")
	}

	if err := bus.Connect(ctx); err != nil {
		_ = bus.Close()
		return nil, err
	}
	if err := bus.SubscribeManager(ctx); err != nil {
		_ = bus.Close()
		return nil, err
	}
	if err := s.discover(ctx, bus); err != nil {
		_ = bus.Close()
		return nil, err
	}
	return bus, nil
}

// discover enumerates loaded units and starts watching every unit matched
// by a rule expression. Matching ignores the rule's active-state set: a
// unit is watched whenever its name matches, so later transitions into the
// set are not missed.
func (s *Session) discover(ctx context.Context, bus Bus) error {
	statuses, err := bus.ListUnits(ctx)
	if err != nil {
		return err
	}

	for _, status := range statuses {
		if !s.matches(status.Name) {
			continue
		}
		if err := s.adopt(ctx, bus, status.Name); err != nil {
			return err
		}
	}

	s.updateWatchedGauge()
	return nil
}

// adopt starts watching one unit: installs its signal match, primes its
// state from the bus, and dispatches the discovery event.
func (s *Session) adopt(ctx context.Context, bus Bus, name string) error {
	if err := bus.WatchUnit(ctx, name); err != nil {
		return err
	}

	props, err := bus.UnitProperties(ctx, name)
	if err != nil {
		// The unit may have unloaded between the signal and the read.
		// Keep the watch; a later signal re-primes it.
		s.logger.Warn("cannot read unit properties", "unit", name, "error", err)
		s.recordError("properties")
		return nil
	}

	s.apply(ctx, name, props)
	return nil
}

// consume drains the bus event stream. It returns true when the stream
// closed underneath us (connection loss) and false on context cancellation.
func (s *Session) consume(ctx context.Context, bus Bus) bool {
	events := bus.Events()
	for {
		select {
		case <-ctx.Done():
			return false
		case ev, open := <-events:
			if !open {
				return true
			}
			s.handle(ctx, bus, ev)
		}
	}
}

func (s *Session) handle(ctx context.Context, bus Bus, ev unit.BusEvent) {
	switch {
	case ev.New != nil:
		if !s.matches(ev.New.Name) {
			return
		}
		if err := s.adopt(ctx, bus, ev.New.Name); err != nil {
			s.logger.Warn("cannot watch new unit", "unit", ev.New.Name, "error", err)
			s.recordError("watch")
			return
		}
		s.updateWatchedGauge()

	case ev.Removed != nil:
		// Match on the name, not on registry state: a unit whose property
		// read failed at adoption is watched but never tracked, and its
		// match must still be removed.
		if !s.matches(ev.Removed.Name) {
			return
		}
		if err := bus.UnwatchUnit(ctx, ev.Removed.Name); err != nil {
			s.logger.Warn("cannot unwatch removed unit", "unit", ev.Removed.Name, "error", err)
			s.recordError("unwatch")
		}
		if s.registry.Evict(ev.Removed.Name) {
			s.updateWatchedGauge()
		}
		s.logger.Debug("unit removed", "unit", ev.Removed.Name)

	case ev.Changed != nil:
		s.apply(ctx, ev.Changed.Name, unit.Properties{
			Active:    ev.Changed.State,
			Timestamp: ev.Changed.Timestamp,
		})
	}
}

// apply runs one observation through the registry and dispatches the
// resulting transition, if any.
func (s *Session) apply(ctx context.Context, name string, props unit.Properties) {
	ev, outcome := s.registry.Apply(name, props, s.now())
	switch outcome {
	case OutcomeStale:
		s.logger.Debug("dropping stale observation", "unit", name, "state", props.Active.String())
		s.recordDropped("stale")
		return
	case OutcomeDuplicate:
		return
	}

	s.updateWatchedGauge()
	s.recordTransition(ev.New.String())
	s.logger.Info("unit transition",
		"unit", ev.Name,
		"previous", ev.Previous.String(),
		"new", ev.New.String(),
		"discovery", !ev.HasPrevious())

	if err := s.dispatcher.OnTransition(ctx, ev); err != nil {
		s.logger.Error("dispatch failed", "unit", ev.Name, "error", err)
		s.recordError("dispatch")
	}
}

// matches reports whether any rule expression selects the unit name.
func (s *Session) matches(name string) bool {
	for i := range s.rules {
		if s.rules[i].Matcher().Matches(name) {
			return true
		}
	}
	return false
}

func (s *Session) setStatus(status int) {
	if s.metrics != nil {
		s.metrics.RecordSessionStatus(s.scope.String(), status)
	}
}

func (s *Session) updateWatchedGauge() {
	if s.metrics != nil {
		s.metrics.RecordUnitsWatched(s.scope.String(), s.registry.Len())
	}
}

func (s *Session) recordTransition(state string) {
	if s.metrics != nil {
		s.metrics.RecordTransition(s.scope.String(), state)
	}
}

func (s *Session) recordDropped(reason string) {
	if s.metrics != nil {
		s.metrics.RecordSignalDropped(s.scope.String(), reason)
	}
}

func (s *Session) recordReconnect() {
	if s.metrics != nil {
		s.metrics.RecordReconnect(s.scope.String())
	}
}

func (s *Session) recordError(kind string) {
	if s.metrics != nil {
		s.metrics.RecordError(s.Component(), kind)
	}
}

func (s *Session) reportHealthy() {
	if s.monitor != nil {
		s.monitor.UpdateHealthy(s.Component(),
			fmt.Sprintf("watching %d units", s.registry.Len()))
	}
	if s.metrics != nil {
		s.metrics.RecordHealthStatus(s.Component(), true)
	}
}

func (s *Session) reportDegraded(message string) {
	if s.monitor != nil {
		s.monitor.UpdateDegraded(s.Component(), message)
	}
	if s.metrics != nil {
		s.metrics.RecordHealthStatus(s.Component(), false)
	}
}

func (s *Session) reportUnhealthy(err error) {
	if s.monitor != nil {
		s.monitor.Update(s.Component(), health.FromError(s.Component(), err))
	}
	if s.metrics != nil {
		s.metrics.RecordHealthStatus(s.Component(), false)
	}
}
