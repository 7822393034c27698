package watcher

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kennep/killjoy/health"
	"github.com/kennep/killjoy/metric"
	"github.com/kennep/killjoy/pkg/retry"
)

// Option configures a Session.
type Option func(*Session) error

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		s.logger = logger
		return nil
	}
}

// WithMetrics attaches daemon metrics to the session.
func WithMetrics(m *metric.Metrics) Option {
	return func(s *Session) error {
		s.metrics = m
		return nil
	}
}

// WithHealthMonitor attaches a health monitor the session reports into.
func WithHealthMonitor(m *health.Monitor) Option {
	return func(s *Session) error {
		s.monitor = m
		return nil
	}
}

// WithRetryConfig overrides the reconnect backoff configuration.
func WithRetryConfig(cfg retry.Config) Option {
	return func(s *Session) error {
		if cfg.MaxAttempts < 1 {
			return fmt.Errorf("retry config needs at least one attempt")
		}
		s.retryCfg = cfg
		return nil
	}
}

// withClock overrides the session clock. Tests only.
func withClock(now func() time.Time) Option {
	return func(s *Session) error {
		s.now = now
		return nil
	}
}
