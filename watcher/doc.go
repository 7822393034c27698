// Package watcher runs one session per configured bus, tracking the state of
// every unit selected by a rule expression and producing transition events
// for the dispatch engine.
//
// # Session Lifecycle
//
// A Session connects to its bus through a BusFactory, subscribes to the
// systemd manager's unit lifecycle signals, and enumerates loaded units to
// find the ones its rules select. Matching considers only the unit name;
// the rule's active-state set filters notifications later, in dispatch, so
// a unit idling outside the set is still watched and its eventual entry
// into the set is not missed.
//
// Each selected unit gets a per-unit signal match and a one-time property
// read that primes the session's registry. The priming observation is
// dispatched as a discovery event, with Previous set to unknown.
//
// # State Tracking
//
// The Registry holds the last observed state and monotonic timestamp per
// unit. It is confined to the session goroutine. Observations that repeat
// the tracked state are suppressed; a state change is dropped as stale
// unless its timestamp is strictly newer than the tracked one, except that
// a zero timestamp carries no timing information and is always accepted.
//
// # Reconnection
//
// The bus event stream closes when the connection is lost. The session
// then discards all tracked state, reconnects with bounded exponential
// backoff, and re-runs discovery, so every surviving unit is re-announced
// as a discovery event. When the retry budget is exhausted the session
// fails; the supervisor decides whether the daemon survives it.
package watcher
