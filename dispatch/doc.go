// Package dispatch turns transition events into notifier method calls.
//
// The Engine receives every transition a watcher session produces and
// evaluates the full rule list against it: a rule fires when its bus scope
// matches the event's, its expression matches the unit name, and the new
// state is in its active-state set. Each firing rule notifies every
// notifier it names. There is no deduplication: two rules naming the same
// notifier produce two calls, preserving rule independence.
//
// Notifications carry the event's monotonic timestamp in microseconds, the
// bus scope the unit lives on, the unit name, and the unit's known active
// states ordered newest first. A discovery event has no previous state and
// sends a single-element list.
//
// Send failures are isolated per notifier call: a dead notifier never
// blocks delivery to the others, and the engine reports the joined
// failures to its caller, which logs them and moves on.
//
// BusSender is the production Sender. It opens one bus connection per
// scope on first use and keeps it for subsequent sends; a connection-level
// failure discards the connection so the next send redials, while
// notifier-level failures (timeout, unknown receiver) leave it open.
package dispatch
