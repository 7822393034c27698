// Package dbusclient provides a client for one D-Bus connection to a systemd
// manager: subscription to unit lifecycle signals, unit enumeration and
// property reads, and notifier method calls.
package dbusclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/kennep/killjoy/errors"
	"github.com/kennep/killjoy/unit"
)

const (
	systemdBusName   = "org.freedesktop.systemd1"
	systemdPath      = dbus.ObjectPath("/org/freedesktop/systemd1")
	managerInterface = "org.freedesktop.systemd1.Manager"
	unitInterface    = "org.freedesktop.systemd1.Unit"
	propsInterface   = "org.freedesktop.DBus.Properties"
)

// Client manages one connection to a session or system bus. A Client is
// either connected or closed; losing the connection closes the event stream
// and the owner builds a fresh Client to reconnect.
type Client struct {
	scope         unit.BusScope
	logger        *slog.Logger
	notifyTimeout time.Duration
	eventBuffer   int

	// dial is swapped in tests to avoid a real bus.
	dial func() (busConn, error)

	mu      sync.Mutex
	conn    busConn
	events  chan unit.BusEvent
	watched map[string]bool
	closed  atomic.Bool

	// done is closed by Close so the pump never blocks on an event stream
	// nobody reads anymore.
	done chan struct{}
}

// busConn is the slice of *dbus.Conn the client uses. Tests substitute a
// fake; production code always talks to a real connection.
type busConn interface {
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
	AddMatchSignal(options ...dbus.MatchOption) error
	RemoveMatchSignal(options ...dbus.MatchOption) error
	Signal(ch chan<- *dbus.Signal)
	Close() error
}

// New creates a client for the given bus scope with optional configuration.
func New(scope unit.BusScope, opts ...Option) (*Client, error) {
	c := &Client{
		scope:         scope,
		logger:        slog.Default(),
		notifyTimeout: 5 * time.Second,
		eventBuffer:   256,
		watched:       make(map[string]bool),
		done:          make(chan struct{}),
	}
	c.dial = func() (busConn, error) {
		switch scope {
		case unit.ScopeSession:
			return dbus.ConnectSessionBus()
		case unit.ScopeSystem:
			return dbus.ConnectSystemBus()
		default:
			return nil, fmt.Errorf("unknown bus scope %q", scope)
		}
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "New", "apply option")
		}
	}

	c.logger = c.logger.With("bus", scope.String())
	return c, nil
}

// Scope returns the bus scope this client talks to.
func (c *Client) Scope() unit.BusScope {
	return c.scope
}

// Connect establishes the bus connection.
func (c *Client) Connect(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return errors.ErrShuttingDown
	}
	if c.conn != nil {
		return errors.ErrAlreadyStarted
	}

	conn, err := c.dial()
	if err != nil {
		return errors.WrapTransient(err, "Client", "Connect", "dial bus")
	}
	c.conn = conn

	c.logger.Debug("connected to bus")
	return nil
}

// Close tears down the connection. Closing also closes the event stream.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil {
		return errors.Wrap(err, "Client", "Close", "close connection")
	}
	return nil
}

// SubscribeManager asks the systemd manager to emit signals and installs
// the match rules for unit lifecycle events. The UnitRemoved match is
// installed before the UnitNew match so a unit can never be discovered
// through a signal without its removal also being observable.
func (c *Client) SubscribeManager(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return errors.ErrNotConnected
	}
	if c.events != nil {
		return errors.ErrAlreadyStarted
	}

	manager := c.conn.Object(systemdBusName, systemdPath)
	if call := manager.CallWithContext(ctx, managerInterface+".Subscribe", 0); call.Err != nil {
		return errors.WrapTransient(call.Err, "Client", "SubscribeManager", "manager Subscribe call")
	}

	for _, member := range []string{"UnitRemoved", "UnitNew"} {
		err := c.conn.AddMatchSignal(
			dbus.WithMatchSender(systemdBusName),
			dbus.WithMatchObjectPath(systemdPath),
			dbus.WithMatchInterface(managerInterface),
			dbus.WithMatchMember(member),
		)
		if err != nil {
			return errors.WrapTransient(
				fmt.Errorf("%w: %s: %v", errors.ErrSubscriptionFailed, member, err),
				"Client", "SubscribeManager", "add match rule")
		}
	}

	signals := make(chan *dbus.Signal, c.eventBuffer)
	c.conn.Signal(signals)

	c.events = make(chan unit.BusEvent, c.eventBuffer)
	go c.pump(signals, c.events)

	return nil
}

// Events returns the normalized event stream. The channel is closed when
// the underlying connection is lost or the client is closed; a closed
// stream is the reconnect trigger for the owning session. Valid only after
// SubscribeManager.
func (c *Client) Events() <-chan unit.BusEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events
}

// pump converts raw bus signals to BusEvents. It exits, closing the event
// stream, when the signal channel is closed by the connection or the client
// is closed while a delivery is pending.
func (c *Client) pump(signals <-chan *dbus.Signal, events chan<- unit.BusEvent) {
	defer close(events)

	for sig := range signals {
		ev, err := decodeSignal(sig)
		if err != nil {
			c.logger.Warn("dropping undecodable signal", "signal", sig.Name, "error", err)
			continue
		}
		if ev == nil {
			continue
		}
		select {
		case events <- *ev:
		case <-c.done:
			return
		}
	}
	c.logger.Debug("signal stream closed")
}

// WatchUnit installs a per-unit match for PropertiesChanged signals. The
// call is idempotent.
func (c *Client) WatchUnit(_ context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return errors.ErrNotConnected
	}
	if c.watched[name] {
		return nil
	}

	err := c.conn.AddMatchSignal(
		dbus.WithMatchSender(systemdBusName),
		dbus.WithMatchObjectPath(dbus.ObjectPath(unit.ObjectPath(name))),
		dbus.WithMatchInterface(propsInterface),
		dbus.WithMatchMember("PropertiesChanged"),
	)
	if err != nil {
		return errors.WrapTransient(
			fmt.Errorf("%w: %s: %v", errors.ErrSubscriptionFailed, name, err),
			"Client", "WatchUnit", "add match rule")
	}

	c.watched[name] = true
	return nil
}

// UnwatchUnit removes the per-unit match installed by WatchUnit.
func (c *Client) UnwatchUnit(_ context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return errors.ErrNotConnected
	}
	if !c.watched[name] {
		return nil
	}
	delete(c.watched, name)

	err := c.conn.RemoveMatchSignal(
		dbus.WithMatchSender(systemdBusName),
		dbus.WithMatchObjectPath(dbus.ObjectPath(unit.ObjectPath(name))),
		dbus.WithMatchInterface(propsInterface),
		dbus.WithMatchMember("PropertiesChanged"),
	)
	if err != nil {
		return errors.WrapTransient(err, "Client", "UnwatchUnit", "remove match rule")
	}
	return nil
}

// Watched returns the names with an installed per-unit match.
func (c *Client) Watched() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.watched))
	for name := range c.watched {
		names = append(names, name)
	}
	return names
}

// listedUnit mirrors the wire layout of one ListUnits result row.
type listedUnit struct {
	Name        string
	Description string
	LoadState   string
	ActiveState string
	SubState    string
	Following   string
	Path        dbus.ObjectPath
	JobID       uint32
	JobType     string
	JobPath     dbus.ObjectPath
}

// ListUnits enumerates the units currently loaded by the manager.
func (c *Client) ListUnits(ctx context.Context) ([]unit.Status, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil, errors.ErrNotConnected
	}

	var rows []listedUnit
	manager := conn.Object(systemdBusName, systemdPath)
	if err := manager.CallWithContext(ctx, managerInterface+".ListUnits", 0).Store(&rows); err != nil {
		return nil, errors.WrapTransient(err, "Client", "ListUnits", "manager ListUnits call")
	}

	statuses := make([]unit.Status, 0, len(rows))
	for _, row := range rows {
		statuses = append(statuses, unit.Status{
			Name:   row.Name,
			Active: unit.DecodeActiveState(row.ActiveState),
		})
	}
	return statuses, nil
}

// UnitProperties reads the active state of one unit together with the
// monotonic timestamp at which that state was entered. The unit object path
// is computed locally from the name.
func (c *Client) UnitProperties(ctx context.Context, name string) (unit.Properties, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return unit.Properties{}, errors.ErrNotConnected
	}

	var raw map[string]dbus.Variant
	obj := conn.Object(systemdBusName, dbus.ObjectPath(unit.ObjectPath(name)))
	if err := obj.CallWithContext(ctx, propsInterface+".GetAll", 0, unitInterface).Store(&raw); err != nil {
		return unit.Properties{}, errors.WrapTransient(err, "Client", "UnitProperties", "properties GetAll call")
	}

	return decodeUnitProperties(raw)
}
