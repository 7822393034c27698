// Package dispatch evaluates rules against transition events and delivers
// notifications to the configured notifier services.
package dispatch

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kennep/killjoy/config"
	"github.com/kennep/killjoy/errors"
	"github.com/kennep/killjoy/health"
	"github.com/kennep/killjoy/metric"
	"github.com/kennep/killjoy/unit"
)

// Sender delivers one notification to a notifier service on a bus.
type Sender interface {
	Notify(ctx context.Context, scope unit.BusScope, busName string,
		timestampMicros uint64, unitName string, activeStates []string) error
}

// Engine matches transition events against the configured rules and sends a
// notification per matching rule-notifier pair. Rules are evaluated
// independently: overlapping rules naming the same notifier produce
// duplicate notifications, and one failed send never blocks the others.
type Engine struct {
	rules     []config.Rule
	notifiers map[string]config.Notifier
	sender    Sender

	logger  *slog.Logger
	metrics *metric.Metrics
	monitor *health.Monitor

	// now is swapped in tests for deterministic latency measurement.
	now func() time.Time
}

// NewEngine creates an engine over validated settings.
func NewEngine(settings *config.Settings, sender Sender, opts ...Option) (*Engine, error) {
	if settings == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("nil settings"), "Engine", "New", "validate arguments")
	}
	if sender == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("nil sender"), "Engine", "New", "validate arguments")
	}

	e := &Engine{
		rules:     settings.Rules,
		notifiers: settings.Notifiers,
		sender:    sender,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, errors.WrapInvalid(err, "Engine", "New", "apply option")
		}
	}
	return e, nil
}

// OnTransition evaluates every rule against the event and notifies the
// notifiers of each matching rule. It returns the joined errors of all
// failed sends; a non-nil return still means every deliverable
// notification was attempted.
func (e *Engine) OnTransition(ctx context.Context, ev unit.TransitionEvent) error {
	states := e.stateList(ev)

	var failures []error
	matched := false
	for i := range e.rules {
		rule := &e.rules[i]
		if rule.BusScope != ev.Scope {
			continue
		}
		if !rule.WantsState(ev.New) {
			continue
		}
		if !rule.Matcher().Matches(ev.Name) {
			continue
		}
		matched = true

		for _, name := range rule.Notifiers {
			notifier, ok := e.notifiers[name]
			if !ok {
				// Unreachable after settings validation.
				failures = append(failures, fmt.Errorf("%w: %q", errors.ErrUnknownNotifier, name))
				continue
			}
			if err := e.send(ctx, ev, name, notifier, states); err != nil {
				failures = append(failures, err)
			}
		}
	}

	if !matched {
		return nil
	}
	if len(failures) > 0 {
		err := stderrors.Join(failures...)
		e.reportUnhealthy(err)
		return errors.Wrap(err, "Engine", "OnTransition", "deliver notifications")
	}
	e.reportHealthy()
	return nil
}

// stateList builds the active-state argument, newest state first. Discovery
// events carry only the new state.
func (e *Engine) stateList(ev unit.TransitionEvent) []string {
	states := []string{ev.New.String()}
	if ev.HasPrevious() {
		states = append(states, ev.Previous.String())
	}
	return states
}

func (e *Engine) send(ctx context.Context, ev unit.TransitionEvent,
	name string, notifier config.Notifier, states []string) error {
	start := e.now()
	err := e.sender.Notify(ctx, notifier.BusScope, notifier.BusName, ev.Timestamp, ev.Name, states)
	elapsed := e.now().Sub(start)

	if e.metrics != nil {
		e.metrics.RecordNotifyDuration(notifier.BusScope.String(), elapsed)
	}

	if err != nil {
		e.logger.Error("notification failed",
			"notifier", name,
			"bus_name", notifier.BusName,
			"unit", ev.Name,
			"error", err)
		if e.metrics != nil {
			e.metrics.RecordNotificationFailed(notifier.BusScope.String(), name)
			e.metrics.RecordError("dispatcher", "notify")
		}
		return fmt.Errorf("notifier %q: %w", name, err)
	}

	e.logger.Info("notification sent",
		"notifier", name,
		"unit", ev.Name,
		"state", ev.New.String())
	if e.metrics != nil {
		e.metrics.RecordNotificationSent(notifier.BusScope.String(), name)
	}
	return nil
}

func (e *Engine) reportHealthy() {
	if e.monitor != nil {
		e.monitor.UpdateHealthy("dispatcher", "notifications flowing")
	}
	if e.metrics != nil {
		e.metrics.RecordHealthStatus("dispatcher", true)
	}
}

func (e *Engine) reportUnhealthy(err error) {
	if e.monitor != nil {
		e.monitor.Update("dispatcher", health.FromError("dispatcher", err))
	}
	if e.metrics != nil {
		e.metrics.RecordHealthStatus("dispatcher", false)
	}
}
