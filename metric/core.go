package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all daemon-level metrics (not rule-specific)
type Metrics struct {
	// Watcher metrics
	SessionStatus     *prometheus.GaugeVec
	UnitsWatched      *prometheus.GaugeVec
	TransitionsTotal  *prometheus.CounterVec
	SignalsDropped    *prometheus.CounterVec
	ReconnectsTotal   *prometheus.CounterVec
	HealthCheckStatus *prometheus.GaugeVec
	ErrorsTotal       *prometheus.CounterVec

	// Dispatch metrics
	NotificationsSent   *prometheus.CounterVec
	NotificationsFailed *prometheus.CounterVec
	NotifyDuration      *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all daemon metrics
func NewMetrics() *Metrics {
	return &Metrics{
		SessionStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "killjoy",
				Subsystem: "session",
				Name:      "status",
				Help:      "Watcher session status (0=down, 1=connecting, 2=watching)",
			},
			[]string{"bus"},
		),

		UnitsWatched: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "killjoy",
				Subsystem: "units",
				Name:      "watched",
				Help:      "Number of units currently tracked per bus",
			},
			[]string{"bus"},
		),

		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "killjoy",
				Subsystem: "units",
				Name:      "transitions_total",
				Help:      "Total number of observed unit state transitions",
			},
			[]string{"bus", "state"},
		),

		SignalsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "killjoy",
				Subsystem: "bus",
				Name:      "signals_dropped_total",
				Help:      "Total number of bus signals dropped as stale or undecodable",
			},
			[]string{"bus", "reason"},
		),

		ReconnectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "killjoy",
				Subsystem: "bus",
				Name:      "reconnects_total",
				Help:      "Total number of bus reconnect attempts",
			},
			[]string{"bus"},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "killjoy",
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=healthy)",
			},
			[]string{"component"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "killjoy",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"component", "type"},
		),

		NotificationsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "killjoy",
				Subsystem: "notifications",
				Name:      "sent_total",
				Help:      "Total number of notifications delivered",
			},
			[]string{"bus", "notifier"},
		),

		NotificationsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "killjoy",
				Subsystem: "notifications",
				Name:      "failed_total",
				Help:      "Total number of notification sends that failed",
			},
			[]string{"bus", "notifier"},
		),

		NotifyDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "killjoy",
				Subsystem: "notifications",
				Name:      "duration_seconds",
				Help:      "Notifier method call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"bus"},
		),
	}
}

// RecordSessionStatus updates a session's status gauge
func (c *Metrics) RecordSessionStatus(bus string, status int) {
	c.SessionStatus.WithLabelValues(bus).Set(float64(status))
}

// RecordUnitsWatched sets the tracked unit count for a bus
func (c *Metrics) RecordUnitsWatched(bus string, count int) {
	c.UnitsWatched.WithLabelValues(bus).Set(float64(count))
}

// RecordTransition increments the transition counter
func (c *Metrics) RecordTransition(bus, state string) {
	c.TransitionsTotal.WithLabelValues(bus, state).Inc()
}

// RecordSignalDropped increments the dropped-signal counter
func (c *Metrics) RecordSignalDropped(bus, reason string) {
	c.SignalsDropped.WithLabelValues(bus, reason).Inc()
}

// RecordReconnect increments the reconnect counter
func (c *Metrics) RecordReconnect(bus string) {
	c.ReconnectsTotal.WithLabelValues(bus).Inc()
}

// RecordHealthStatus updates health check status
func (c *Metrics) RecordHealthStatus(component string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.HealthCheckStatus.WithLabelValues(component).Set(value)
}

// RecordError increments error counter
func (c *Metrics) RecordError(component, errorType string) {
	c.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// RecordNotificationSent increments the delivered-notification counter
func (c *Metrics) RecordNotificationSent(bus, notifier string) {
	c.NotificationsSent.WithLabelValues(bus, notifier).Inc()
}

// RecordNotificationFailed increments the failed-notification counter
func (c *Metrics) RecordNotificationFailed(bus, notifier string) {
	c.NotificationsFailed.WithLabelValues(bus, notifier).Inc()
}

// RecordNotifyDuration records one notifier call duration
func (c *Metrics) RecordNotifyDuration(bus string, duration time.Duration) {
	c.NotifyDuration.WithLabelValues(bus).Observe(duration.Seconds())
}
