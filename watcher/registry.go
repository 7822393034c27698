package watcher

import (
	"sort"
	"time"

	"github.com/kennep/killjoy/unit"
)

// ApplyOutcome classifies what the registry did with an observation.
type ApplyOutcome int

const (
	// OutcomeApplied means the observation changed tracked state and a
	// transition event was produced.
	OutcomeApplied ApplyOutcome = iota
	// OutcomeDuplicate means the observation matched the tracked state; no
	// event is produced.
	OutcomeDuplicate
	// OutcomeStale means the observation carried an older monotonic
	// timestamp than the tracked state; no event is produced.
	OutcomeStale
)

// String returns a label suitable for metrics and logs.
func (o ApplyOutcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeStale:
		return "stale"
	default:
		return "unknown"
	}
}

type trackedUnit struct {
	state     unit.ActiveState
	timestamp uint64
}

// Registry tracks the last observed state of every watched unit on one bus.
// It is confined to the owning session goroutine and needs no locking.
type Registry struct {
	scope unit.BusScope
	units map[string]trackedUnit
}

// NewRegistry creates an empty registry for one bus scope.
func NewRegistry(scope unit.BusScope) *Registry {
	return &Registry{
		scope: scope,
		units: make(map[string]trackedUnit),
	}
}

// Apply records one observation of a unit's state and reports whether it
// produced a transition event.
//
// A unit seen for the first time always produces an event with
// Previous set to unknown, marking a discovery rather than a transition.
// An observation that repeats the tracked state is suppressed as a
// duplicate, though a newer timestamp is still recorded. A state change is
// rejected as stale unless its timestamp is strictly newer than the tracked
// one; a zero timestamp on either side means no timing information is
// available and the change is accepted.
func (r *Registry) Apply(name string, props unit.Properties, at time.Time) (unit.TransitionEvent, ApplyOutcome) {
	cur, tracked := r.units[name]
	if !tracked {
		r.units[name] = trackedUnit{state: props.Active, timestamp: props.Timestamp}
		return unit.TransitionEvent{
			Scope:     r.scope,
			Name:      name,
			Previous:  unit.StateUnknown,
			New:       props.Active,
			Timestamp: props.Timestamp,
			At:        at,
		}, OutcomeApplied
	}

	if props.Active == cur.state {
		if props.Timestamp > cur.timestamp {
			cur.timestamp = props.Timestamp
			r.units[name] = cur
		}
		return unit.TransitionEvent{}, OutcomeDuplicate
	}

	if props.Timestamp != 0 && cur.timestamp != 0 && props.Timestamp <= cur.timestamp {
		return unit.TransitionEvent{}, OutcomeStale
	}

	ev := unit.TransitionEvent{
		Scope:     r.scope,
		Name:      name,
		Previous:  cur.state,
		New:       props.Active,
		Timestamp: props.Timestamp,
		At:        at,
	}
	r.units[name] = trackedUnit{state: props.Active, timestamp: props.Timestamp}
	return ev, OutcomeApplied
}

// Evict drops a unit from tracking, reporting whether it was tracked.
func (r *Registry) Evict(name string) bool {
	if _, ok := r.units[name]; !ok {
		return false
	}
	delete(r.units, name)
	return true
}

// Tracked reports whether the unit is currently tracked.
func (r *Registry) Tracked(name string) bool {
	_, ok := r.units[name]
	return ok
}

// State returns the tracked state of a unit.
func (r *Registry) State(name string) (unit.ActiveState, bool) {
	cur, ok := r.units[name]
	return cur.state, ok
}

// Len returns the number of tracked units.
func (r *Registry) Len() int {
	return len(r.units)
}

// Names returns the tracked unit names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.units))
	for name := range r.units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear drops all tracked units. Called after a connection loss so every
// unit is rediscovered against the reconnected bus.
func (r *Registry) Clear() {
	r.units = make(map[string]trackedUnit)
}
