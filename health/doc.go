// Package health provides thread-safe health tracking and aggregation for
// the daemon's components: watcher sessions, the notification dispatcher,
// and the bus connections they depend on.
//
// # Health States
//
// The package supports three health states:
//   - Healthy: component operating normally
//   - Degraded: component operating with reduced functionality, such as a
//     session mid-reconnect
//   - Unhealthy: component not functioning, such as a bus that stayed
//     unreachable past the retry budget
//
// # Core Components
//
// Status: individual component health state containing status level,
// descriptive message, timestamp, optional metrics, and hierarchical
// sub-statuses.
//
// Monitor: thread-safe centralized tracking of multiple component statuses
// with automatic timestamp management.
//
// Handler: an http.Handler serving the monitor's aggregate as JSON, returning
// 503 when the aggregate is unhealthy so it plugs into liveness probes
// directly.
//
// # Basic Usage
//
//	monitor := health.NewMonitor()
//
//	monitor.UpdateHealthy("session-system", "watching 12 units")
//	monitor.UpdateDegraded("session-session", "reconnecting, attempt 2")
//
//	if status, ok := monitor.Get("session-system"); ok && status.IsHealthy() {
//	    log.Println("system bus session is healthy")
//	}
//
// Errors feed into the monitor through FromError, which sanitizes the error
// text before it can reach the health endpoint:
//
//	monitor.Update("session-session", health.FromError("session-session", err))
//
// # Aggregation
//
// AggregateHealth combines all tracked components into one status. A single
// unhealthy component makes the aggregate unhealthy; otherwise a single
// degraded component makes it degraded. Sub-statuses are ordered by component
// name so endpoint output is stable.
//
//	mux.Handle("/healthz", health.Handler(monitor, "killjoy"))
//
// # Message Sanitization
//
// Messages built from errors pass through sanitization that replaces URLs,
// bus socket addresses, file paths, IP addresses, ports, and anything that
// looks like a credential with placeholder tokens. The health endpoint is
// unauthenticated local HTTP, so raw error strings never reach it.
package health
