package dbusclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/kennep/killjoy/errors"
)

// NotifierInterface is the D-Bus interface a notification receiver must
// implement.
const NotifierInterface = "com.kennep.KilljoyNotifier1"

// notifyMember is the single method of NotifierInterface.
const notifyMember = "Notify"

// NotifierPath derives a receiver's object path from its bus name by
// replacing dots with slashes. A receiver owning com.example.Notifier
// serves its object at /com/example/Notifier.
func NotifierPath(busName string) dbus.ObjectPath {
	return dbus.ObjectPath("/" + strings.ReplaceAll(busName, ".", "/"))
}

// Notify calls the Notify method on the named receiver. The call carries
// the event timestamp in microseconds, the originating bus scope, the unit
// name, and the unit's known active states ordered newest first. Each call
// is bounded by the client's notify timeout.
func (c *Client) Notify(
	ctx context.Context,
	busName string,
	timestampMicros uint64,
	unitName string,
	activeStates []string,
) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return errors.ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, c.notifyTimeout)
	defer cancel()

	obj := conn.Object(busName, NotifierPath(busName))
	call := obj.CallWithContext(ctx, NotifierInterface+"."+notifyMember, 0,
		timestampMicros, c.scope.String(), unitName, activeStates)
	if call.Err != nil {
		if ctx.Err() != nil {
			return errors.WrapTransient(errors.ErrNotifyTimeout, "Client", "Notify", "call "+busName)
		}
		if connectionClosed(call.Err) {
			return errors.WrapTransient(
				fmt.Errorf("%w: %v", errors.ErrConnectionLost, call.Err),
				"Client", "Notify", "call "+busName)
		}
		return errors.WrapTransient(call.Err, "Client", "Notify", "call "+busName)
	}
	return nil
}

// connectionClosed reports whether a call error means the connection itself
// is gone, as opposed to the receiver failing the call. godbus surfaces a
// torn-down connection as ErrClosed or a transport-level read error, neither
// of which carries our sentinels.
func connectionClosed(err error) bool {
	if stderrors.Is(err, dbus.ErrClosed) ||
		stderrors.Is(err, io.EOF) ||
		stderrors.Is(err, net.ErrClosed) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "use of closed network connection")
}
