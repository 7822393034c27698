// Package metric provides Prometheus-based metrics collection and an HTTP
// server for daemon observability.
//
// The package offers a centralized metrics registry managing both core daemon
// metrics (session status, unit transitions, notification outcomes) and
// custom component-specific metrics. It includes an HTTP server exposing
// metrics in Prometheus format.
//
// # Basic Usage
//
// Setting up metrics collection and the HTTP server:
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil {
//	        log.Printf("metrics server error: %v", err)
//	    }
//	}()
//	defer server.Stop()
//
//	core := registry.CoreMetrics()
//	core.RecordSessionStatus("session", 2)
//	core.RecordTransition("session", "failed")
//	core.RecordNotificationSent("session", "desktop popup")
//
// # Core Metrics
//
// The registry automatically registers daemon metrics under the "killjoy"
// namespace:
//
//   - killjoy_session_status{bus} - watcher session state (0=down, 1=connecting, 2=watching)
//   - killjoy_units_watched{bus} - tracked unit count per bus
//   - killjoy_units_transitions_total{bus,state} - observed state transitions
//   - killjoy_bus_signals_dropped_total{bus,reason} - stale or undecodable signals
//   - killjoy_bus_reconnects_total{bus} - reconnect attempts
//   - killjoy_notifications_sent_total{bus,notifier} - delivered notifications
//   - killjoy_notifications_failed_total{bus,notifier} - failed sends
//   - killjoy_notifications_duration_seconds{bus} - notifier call latency
//   - killjoy_errors_total{component,type} and killjoy_health_status{component}
//
// Go runtime and process collectors are registered as well.
//
// # Component-Specific Metrics
//
// Components register custom metrics through the MetricsRegistrar interface,
// which the registry implements. Registration is thread-safe and rejects
// duplicate names; metric recording itself is lock-free.
package metric
