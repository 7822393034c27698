package dispatch

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kennep/killjoy/health"
	"github.com/kennep/killjoy/metric"
)

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		e.logger = logger
		return nil
	}
}

// WithMetrics attaches daemon metrics to the engine.
func WithMetrics(m *metric.Metrics) Option {
	return func(e *Engine) error {
		e.metrics = m
		return nil
	}
}

// WithHealthMonitor attaches a health monitor the engine reports into.
func WithHealthMonitor(m *health.Monitor) Option {
	return func(e *Engine) error {
		e.monitor = m
		return nil
	}
}

// withClock overrides the engine clock. Tests only.
func withClock(now func() time.Time) Option {
	return func(e *Engine) error {
		e.now = now
		return nil
	}
}
