package dbusclient

import (
	"fmt"
	"log/slog"
	"time"
)

// Option is a functional option for configuring the Client
type Option func(*Client) error

// WithLogger sets a custom logger for the client
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// WithNotifyTimeout bounds each notifier method call. A receiver that does
// not answer within the timeout counts as a failed send.
func WithNotifyTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("notify timeout must be positive, got %v", d)
		}
		c.notifyTimeout = d
		return nil
	}
}

// WithEventBuffer sets the capacity of the signal and event channels.
func WithEventBuffer(n int) Option {
	return func(c *Client) error {
		if n < 1 {
			return fmt.Errorf("event buffer must be at least 1, got %d", n)
		}
		c.eventBuffer = n
		return nil
	}
}

// withDialer substitutes the bus dialer, for tests.
func withDialer(dial func() (busConn, error)) Option {
	return func(c *Client) error {
		c.dial = dial
		return nil
	}
}
