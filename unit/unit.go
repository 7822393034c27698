// Package unit holds the shared domain types of the killjoy pipeline: bus
// scopes, unit active states, transition events, and the systemd object-path
// encoding. Every other package depends on it; it depends on nothing.
package unit

import (
	"fmt"
	"strings"
	"time"
)

// BusScope identifies one of the independent D-Bus buses a unit or notifier
// is reachable on.
type BusScope string

// The closed set of supported bus scopes.
const (
	ScopeSession BusScope = "session"
	ScopeSystem  BusScope = "system"
)

// ParseBusScope decodes a bus scope string from configuration.
func ParseBusScope(s string) (BusScope, error) {
	switch BusScope(s) {
	case ScopeSession:
		return ScopeSession, nil
	case ScopeSystem:
		return ScopeSystem, nil
	default:
		return "", fmt.Errorf("unknown bus type %q (expected %q or %q)", s, ScopeSession, ScopeSystem)
	}
}

// String returns the wire form of the scope.
func (s BusScope) String() string {
	return string(s)
}

// ActiveState is systemd's enumerated lifecycle state for a unit, as exposed
// through the ActiveState property on org.freedesktop.systemd1.Unit.
type ActiveState string

// Known active states, plus StateUnknown for values outside the enumeration.
// An unrecognized state from the bus is recorded as unknown and logged; it
// never crashes a session.
const (
	StateActivating   ActiveState = "activating"
	StateActive       ActiveState = "active"
	StateDeactivating ActiveState = "deactivating"
	StateFailed       ActiveState = "failed"
	StateInactive     ActiveState = "inactive"
	StateUnknown      ActiveState = "unknown"
)

// ParseActiveState decodes an active state string from configuration. Only
// the five real systemd states are valid in a rule; "unknown" is internal.
func ParseActiveState(s string) (ActiveState, error) {
	switch ActiveState(s) {
	case StateActivating, StateActive, StateDeactivating, StateFailed, StateInactive:
		return ActiveState(s), nil
	default:
		return "", fmt.Errorf("unknown active state %q", s)
	}
}

// DecodeActiveState maps a state string received from the bus to an
// ActiveState, falling back to StateUnknown for unrecognized values.
func DecodeActiveState(s string) ActiveState {
	if st, err := ParseActiveState(s); err == nil {
		return st
	}
	return StateUnknown
}

// String returns the wire form of the state.
func (s ActiveState) String() string {
	return string(s)
}

// TypeSuffixes lists the eleven unit type suffixes systemd defines. A
// type-suffix expression must be one of these.
var TypeSuffixes = []string{
	".service",
	".socket",
	".device",
	".mount",
	".automount",
	".swap",
	".target",
	".path",
	".timer",
	".slice",
	".scope",
}

// IsTypeSuffix reports whether s is one of the known unit type suffixes.
func IsTypeSuffix(s string) bool {
	for _, suffix := range TypeSuffixes {
		if s == suffix {
			return true
		}
	}
	return false
}

// MonotonicTimestampProperty returns the name of the unit property carrying
// the monotonic timestamp at which the given state was most recently
// entered. Unknown states share the inactive timestamp; callers treat a
// missing property as timestamp zero.
func MonotonicTimestampProperty(state ActiveState) string {
	switch state {
	case StateActivating:
		return "InactiveExitTimestampMonotonic"
	case StateActive:
		return "ActiveEnterTimestampMonotonic"
	case StateDeactivating:
		return "ActiveExitTimestampMonotonic"
	default:
		return "InactiveEnterTimestampMonotonic"
	}
}

// Status is one row of the manager's unit enumeration.
type Status struct {
	Name   string
	Active ActiveState
}

// Properties is the subset of a unit's D-Bus properties the watcher reads:
// the active state and the monotonic timestamp at which it was entered.
type Properties struct {
	Active    ActiveState
	Timestamp uint64
}

// TransitionEvent records one observed state change of one unit. Produced by
// a watcher session, consumed once by the dispatch engine, never persisted.
// Previous is StateUnknown when the unit was first discovered (startup or
// post-reconnect resync).
type TransitionEvent struct {
	Scope     BusScope
	Name      string
	Previous  ActiveState
	New       ActiveState
	Timestamp uint64
	At        time.Time
}

// HasPrevious reports whether the event carries a real prior state, as
// opposed to a first-discovery event.
func (e TransitionEvent) HasPrevious() bool {
	return e.Previous != StateUnknown
}

// ValidUnitName reports whether name looks like a unit name: non-empty, and
// carrying one of the known type suffixes.
func ValidUnitName(name string) bool {
	if name == "" {
		return false
	}
	for _, suffix := range TypeSuffixes {
		if strings.HasSuffix(name, suffix) && len(name) > len(suffix) {
			return true
		}
	}
	return false
}
