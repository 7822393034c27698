package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennep/killjoy/config"
	"github.com/kennep/killjoy/unit"
)

// fakeSender records notifications and fails the bus names listed in fail.
type fakeSender struct {
	mu   sync.Mutex
	sent []sentNotification
	fail map[string]error
}

type sentNotification struct {
	scope     unit.BusScope
	busName   string
	timestamp uint64
	unitName  string
	states    []string
}

func newFakeSender() *fakeSender {
	return &fakeSender{fail: make(map[string]error)}
}

func (f *fakeSender) Notify(_ context.Context, scope unit.BusScope, busName string,
	timestampMicros uint64, unitName string, activeStates []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fail[busName]; ok {
		return err
	}
	f.sent = append(f.sent, sentNotification{
		scope:     scope,
		busName:   busName,
		timestamp: timestampMicros,
		unitName:  unitName,
		states:    activeStates,
	})
	return nil
}

func (f *fakeSender) notifications() []sentNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentNotification(nil), f.sent...)
}

func validSettings(t *testing.T) *config.Settings {
	t.Helper()
	settings := &config.Settings{
		Version: config.SchemaVersion,
		Rules: []config.Rule{
			{
				ActiveStates:   []unit.ActiveState{unit.StateFailed},
				BusScope:       unit.ScopeSession,
				Expression:     "syncthing.service",
				ExpressionType: config.ExprUnitName,
				Notifiers:      []string{"desktop"},
			},
			{
				ActiveStates:   []unit.ActiveState{unit.StateActive, unit.StateFailed},
				BusScope:       unit.ScopeSession,
				Expression:     ".timer",
				ExpressionType: config.ExprUnitType,
				Notifiers:      []string{"desktop", "pager"},
			},
			{
				ActiveStates:   []unit.ActiveState{unit.StateFailed},
				BusScope:       unit.ScopeSystem,
				Expression:     "^nginx",
				ExpressionType: config.ExprRegex,
				Notifiers:      []string{"pager"},
			},
		},
		Notifiers: map[string]config.Notifier{
			"desktop": {BusScope: unit.ScopeSession, BusName: "com.example.Desktop"},
			"pager":   {BusScope: unit.ScopeSystem, BusName: "com.example.Pager"},
		},
	}
	require.NoError(t, settings.Validate())
	return settings
}

func newTestEngine(t *testing.T, sender Sender) *Engine {
	t.Helper()
	e, err := NewEngine(validSettings(t), sender)
	require.NoError(t, err)
	return e
}

func TestEngine_MatchingRuleNotifies(t *testing.T) {
	sender := newFakeSender()
	e := newTestEngine(t, sender)

	err := e.OnTransition(context.Background(), unit.TransitionEvent{
		Scope:     unit.ScopeSession,
		Name:      "syncthing.service",
		Previous:  unit.StateActive,
		New:       unit.StateFailed,
		Timestamp: 987654,
	})
	require.NoError(t, err)

	sent := sender.notifications()
	require.Len(t, sent, 1)
	assert.Equal(t, unit.ScopeSession, sent[0].scope)
	assert.Equal(t, "com.example.Desktop", sent[0].busName)
	assert.Equal(t, uint64(987654), sent[0].timestamp)
	assert.Equal(t, "syncthing.service", sent[0].unitName)
	assert.Equal(t, []string{"failed", "active"}, sent[0].states, "newest state first")
}

func TestEngine_StateOutsideRuleSetIgnored(t *testing.T) {
	sender := newFakeSender()
	e := newTestEngine(t, sender)

	err := e.OnTransition(context.Background(), unit.TransitionEvent{
		Scope:    unit.ScopeSession,
		Name:     "syncthing.service",
		Previous: unit.StateFailed,
		New:      unit.StateActive,
	})
	require.NoError(t, err)
	assert.Empty(t, sender.notifications())
}

func TestEngine_ScopeMismatchIgnored(t *testing.T) {
	sender := newFakeSender()
	e := newTestEngine(t, sender)

	// The name matches the session rule but the event is from the system
	// bus.
	err := e.OnTransition(context.Background(), unit.TransitionEvent{
		Scope:    unit.ScopeSystem,
		Name:     "syncthing.service",
		Previous: unit.StateActive,
		New:      unit.StateFailed,
	})
	require.NoError(t, err)
	assert.Empty(t, sender.notifications())
}

func TestEngine_TypeSuffixRuleFansOut(t *testing.T) {
	sender := newFakeSender()
	e := newTestEngine(t, sender)

	err := e.OnTransition(context.Background(), unit.TransitionEvent{
		Scope:    unit.ScopeSession,
		Name:     "backup.timer",
		Previous: unit.StateInactive,
		New:      unit.StateActive,
	})
	require.NoError(t, err)

	sent := sender.notifications()
	require.Len(t, sent, 2)
	assert.Equal(t, "com.example.Desktop", sent[0].busName)
	assert.Equal(t, "com.example.Pager", sent[1].busName)
	// Notifier scope comes from the notifier, not the event.
	assert.Equal(t, unit.ScopeSystem, sent[1].scope)
}

func TestEngine_OverlappingRulesSendDuplicates(t *testing.T) {
	settings := &config.Settings{
		Version: config.SchemaVersion,
		Rules: []config.Rule{
			{
				ActiveStates:   []unit.ActiveState{unit.StateFailed},
				BusScope:       unit.ScopeSession,
				Expression:     "backup.timer",
				ExpressionType: config.ExprUnitName,
				Notifiers:      []string{"desktop"},
			},
			{
				ActiveStates:   []unit.ActiveState{unit.StateFailed},
				BusScope:       unit.ScopeSession,
				Expression:     ".timer",
				ExpressionType: config.ExprUnitType,
				Notifiers:      []string{"desktop"},
			},
		},
		Notifiers: map[string]config.Notifier{
			"desktop": {BusScope: unit.ScopeSession, BusName: "com.example.Desktop"},
		},
	}
	require.NoError(t, settings.Validate())

	sender := newFakeSender()
	e, err := NewEngine(settings, sender)
	require.NoError(t, err)

	err = e.OnTransition(context.Background(), unit.TransitionEvent{
		Scope:    unit.ScopeSession,
		Name:     "backup.timer",
		Previous: unit.StateActive,
		New:      unit.StateFailed,
	})
	require.NoError(t, err)

	// Both rules fire independently; the notifier is called twice.
	assert.Len(t, sender.notifications(), 2)
}

func TestEngine_DiscoveryEventSendsSingleState(t *testing.T) {
	sender := newFakeSender()
	e := newTestEngine(t, sender)

	err := e.OnTransition(context.Background(), unit.TransitionEvent{
		Scope:    unit.ScopeSession,
		Name:     "syncthing.service",
		Previous: unit.StateUnknown,
		New:      unit.StateFailed,
	})
	require.NoError(t, err)

	sent := sender.notifications()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"failed"}, sent[0].states)
}

func TestEngine_FailedSendIsIsolated(t *testing.T) {
	sender := newFakeSender()
	sender.fail["com.example.Desktop"] = fmt.Errorf("no such name")
	e := newTestEngine(t, sender)

	err := e.OnTransition(context.Background(), unit.TransitionEvent{
		Scope:    unit.ScopeSession,
		Name:     "backup.timer",
		Previous: unit.StateActive,
		New:      unit.StateFailed,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "desktop")

	// The pager still got its notification.
	sent := sender.notifications()
	require.Len(t, sent, 1)
	assert.Equal(t, "com.example.Pager", sent[0].busName)
}

func TestEngine_RegexRuleOnSystemBus(t *testing.T) {
	sender := newFakeSender()
	e := newTestEngine(t, sender)

	err := e.OnTransition(context.Background(), unit.TransitionEvent{
		Scope:    unit.ScopeSystem,
		Name:     "nginx.service",
		Previous: unit.StateActive,
		New:      unit.StateFailed,
	})
	require.NoError(t, err)

	sent := sender.notifications()
	require.Len(t, sent, 1)
	assert.Equal(t, "com.example.Pager", sent[0].busName)
}

func TestEngine_MeasuresSendLatency(t *testing.T) {
	sender := newFakeSender()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	e, err := NewEngine(validSettings(t), sender, withClock(func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * 10 * time.Millisecond)
	}))
	require.NoError(t, err)

	err = e.OnTransition(context.Background(), unit.TransitionEvent{
		Scope:    unit.ScopeSession,
		Name:     "syncthing.service",
		Previous: unit.StateActive,
		New:      unit.StateFailed,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "one clock read before and one after the send")
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := NewEngine(nil, newFakeSender())
	assert.Error(t, err)

	_, err = NewEngine(validSettings(t), nil)
	assert.Error(t, err)
}
