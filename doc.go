// Package killjoy documents the architecture of the killjoy daemon.
//
// Killjoy monitors systemd units over D-Bus and contacts notifiers when units
// of interest enter states of interest. Units are the resources systemd knows
// how to manage: the nginx web server is likely nginx.service, the /boot
// mount point is likely boot.mount. Killjoy watches a configurable list of
// events, such as "nginx.service failed" or "backup.service is activating,
// active, or deactivating", and responds by sending a D-Bus message to each
// notifier bound to the matching rule. Notifiers are independent processes;
// killjoy knows nothing about what a notifier does, only how to address it.
//
// # Architecture
//
// The daemon is a pipeline of small packages:
//
//   - config loads and validates the settings file: watch rules and notifier
//     endpoints. Settings are immutable after load and shared by reference.
//   - dbusclient owns one D-Bus connection per bus scope (session or system)
//     and exposes the systemd manager API plus a normalized signal stream.
//   - watcher runs one Session per scope: discovers units matched by the
//     rules, tracks their active state in a Registry, and emits transition
//     events. Each registry is confined to its session's goroutine.
//   - dispatch evaluates every transition against the rule set and sends one
//     notification per matching rule and notifier label. Send failures are
//     isolated; they never stall the pipeline.
//   - supervisor starts the sessions and aggregates their lifetimes. A single
//     failed scope is reported and survived; the process exits only when all
//     scopes have failed or on a shutdown signal.
//
// The unit package holds the shared domain types (bus scopes, active states,
// transition events, systemd object-path escaping). The errors, health,
// metric, and pkg/retry packages provide the ambient infrastructure used
// throughout: classified errors, health statuses, prometheus metrics, and
// bounded reconnect backoff.
//
// # Concurrency
//
// Concurrency comes from exactly one place: one goroutine per bus session.
// The dispatch engine is invoked inline from session goroutines and holds
// only immutable state, so it needs no locking. Outbound notifier sends are
// serialized per scope connection.
package killjoy
