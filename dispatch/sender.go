package dispatch

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kennep/killjoy/dbusclient"
	"github.com/kennep/killjoy/errors"
	"github.com/kennep/killjoy/unit"
)

// notifyConn is the slice of dbusclient.Client the sender uses per bus.
type notifyConn interface {
	Connect(ctx context.Context) error
	Notify(ctx context.Context, busName string, timestampMicros uint64,
		unitName string, activeStates []string) error
	Close() error
}

// BusSender delivers notifications over lazily opened bus connections, one
// per scope. Connections are opened on first use and replaced after a
// connection-level failure; a notifier that merely rejects or times out the
// call does not cost the connection. Sends on one connection never
// interleave: each scope entry carries its own send lock.
type BusSender struct {
	logger *slog.Logger

	// dial is swapped in tests to avoid a real bus.
	dial func(scope unit.BusScope) (notifyConn, error)

	mu    sync.Mutex
	conns map[unit.BusScope]*scopeConn
}

// scopeConn pairs one bus connection with its send lock.
type scopeConn struct {
	mu   sync.Mutex
	conn notifyConn
}

// SenderOption configures a BusSender.
type SenderOption func(*BusSender) error

// WithSenderLogger sets the sender logger.
func WithSenderLogger(logger *slog.Logger) SenderOption {
	return func(s *BusSender) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		s.logger = logger
		return nil
	}
}

// withSenderDialer overrides connection construction. Tests only.
func withSenderDialer(dial func(scope unit.BusScope) (notifyConn, error)) SenderOption {
	return func(s *BusSender) error {
		s.dial = dial
		return nil
	}
}

// NewBusSender creates a sender with no open connections.
func NewBusSender(opts ...SenderOption) (*BusSender, error) {
	s := &BusSender{
		logger: slog.Default(),
		conns:  make(map[unit.BusScope]*scopeConn),
	}
	s.dial = func(scope unit.BusScope) (notifyConn, error) {
		return dbusclient.New(scope, dbusclient.WithLogger(s.logger))
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, errors.WrapInvalid(err, "BusSender", "New", "apply option")
		}
	}
	return s, nil
}

// Notify delivers one notification on the given scope, opening the scope's
// connection if needed. Sends on the same scope are serialized.
func (s *BusSender) Notify(ctx context.Context, scope unit.BusScope, busName string,
	timestampMicros uint64, unitName string, activeStates []string) error {
	entry, err := s.connFor(ctx, scope)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	err = entry.conn.Notify(ctx, busName, timestampMicros, unitName, activeStates)
	entry.mu.Unlock()

	if err != nil && s.connectionLost(err) {
		s.drop(scope, entry)
	}
	return err
}

// connFor returns the scope's connection entry, dialing one on first use.
func (s *BusSender) connFor(ctx context.Context, scope unit.BusScope) (*scopeConn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.conns[scope]; ok {
		return entry, nil
	}

	conn, err := s.dial(scope)
	if err != nil {
		return nil, errors.WrapTransient(err, "BusSender", "connFor", "build bus client")
	}
	if err := conn.Connect(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	s.logger.Debug("opened notification connection", "bus", scope.String())
	entry := &scopeConn{conn: conn}
	s.conns[scope] = entry
	return entry, nil
}

// drop discards a failed connection so the next send redials. The map entry
// is removed only if it still holds the failed connection, so a concurrent
// redial is not undone.
func (s *BusSender) drop(scope unit.BusScope, entry *scopeConn) {
	s.mu.Lock()
	if s.conns[scope] == entry {
		delete(s.conns, scope)
	}
	s.mu.Unlock()

	_ = entry.conn.Close()
	s.logger.Warn("notification connection lost", "bus", scope.String())
}

// connectionLost reports whether the error means the connection itself is
// unusable, as opposed to a notifier-level failure.
func (s *BusSender) connectionLost(err error) bool {
	return stderrors.Is(err, errors.ErrNotConnected) ||
		stderrors.Is(err, errors.ErrConnectionLost)
}

// Close tears down all open connections.
func (s *BusSender) Close() error {
	s.mu.Lock()
	conns := s.conns
	s.conns = make(map[unit.BusScope]*scopeConn)
	s.mu.Unlock()

	var firstErr error
	for scope, entry := range conns {
		if err := entry.conn.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "BusSender", "Close",
				fmt.Sprintf("close %s bus connection", scope))
		}
	}
	return firstErr
}
