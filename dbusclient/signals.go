package dbusclient

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/kennep/killjoy/errors"
	"github.com/kennep/killjoy/unit"
)

// decodeSignal normalizes one raw bus signal into a BusEvent. Signals the
// daemon does not care about decode to (nil, nil); signals with a
// recognized name but a broken body return an error.
func decodeSignal(sig *dbus.Signal) (*unit.BusEvent, error) {
	switch sig.Name {
	case managerInterface + ".UnitNew":
		name, err := unitNameFromBody(sig.Body)
		if err != nil {
			return nil, err
		}
		return &unit.BusEvent{New: &unit.UnitNew{Name: name}}, nil

	case managerInterface + ".UnitRemoved":
		name, err := unitNameFromBody(sig.Body)
		if err != nil {
			return nil, err
		}
		return &unit.BusEvent{Removed: &unit.UnitRemoved{Name: name}}, nil

	case propsInterface + ".PropertiesChanged":
		return decodePropertiesChanged(sig)

	default:
		return nil, nil
	}
}

// unitNameFromBody extracts the unit name from a UnitNew/UnitRemoved body
// of (name string, path object_path).
func unitNameFromBody(body []any) (string, error) {
	if len(body) < 1 {
		return "", fmt.Errorf("%w: empty body", errors.ErrMalformedSignal)
	}
	name, ok := body[0].(string)
	if !ok || name == "" {
		return "", fmt.Errorf("%w: unit name is %T", errors.ErrMalformedSignal, body[0])
	}
	return name, nil
}

// decodePropertiesChanged turns a per-unit PropertiesChanged signal into a
// StateChanged event. Signals for interfaces other than the systemd unit
// interface, or without an ActiveState entry, decode to nil. The monotonic
// timestamp matching the new state is taken from the same signal when
// present; zero means the signal did not carry it.
func decodePropertiesChanged(sig *dbus.Signal) (*unit.BusEvent, error) {
	name, err := unit.NameFromObjectPath(string(sig.Path))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedSignal, err)
	}

	if len(sig.Body) < 2 {
		return nil, fmt.Errorf("%w: body has %d fields", errors.ErrMalformedSignal, len(sig.Body))
	}
	iface, ok := sig.Body[0].(string)
	if !ok {
		return nil, fmt.Errorf("%w: interface is %T", errors.ErrMalformedSignal, sig.Body[0])
	}
	if iface != unitInterface {
		return nil, nil
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("%w: changed properties are %T", errors.ErrMalformedSignal, sig.Body[1])
	}

	stateVar, ok := changed["ActiveState"]
	if !ok {
		return nil, nil
	}
	stateStr, ok := stateVar.Value().(string)
	if !ok {
		return nil, fmt.Errorf("%w: ActiveState is %T", errors.ErrMalformedSignal, stateVar.Value())
	}
	state := unit.DecodeActiveState(stateStr)

	var timestamp uint64
	if tsVar, ok := changed[unit.MonotonicTimestampProperty(state)]; ok {
		if ts, ok := tsVar.Value().(uint64); ok {
			timestamp = ts
		}
	}

	return &unit.BusEvent{Changed: &unit.StateChanged{
		Name:      name,
		State:     state,
		Timestamp: timestamp,
	}}, nil
}

// decodeUnitProperties extracts the active state and its entry timestamp
// from a full unit property map.
func decodeUnitProperties(raw map[string]dbus.Variant) (unit.Properties, error) {
	stateVar, ok := raw["ActiveState"]
	if !ok {
		return unit.Properties{}, fmt.Errorf("%w: no ActiveState property", errors.ErrMalformedSignal)
	}
	stateStr, ok := stateVar.Value().(string)
	if !ok {
		return unit.Properties{}, fmt.Errorf("%w: ActiveState is %T", errors.ErrMalformedSignal, stateVar.Value())
	}
	state := unit.DecodeActiveState(stateStr)

	var timestamp uint64
	if tsVar, ok := raw[unit.MonotonicTimestampProperty(state)]; ok {
		if ts, ok := tsVar.Value().(uint64); ok {
			timestamp = ts
		}
	}

	return unit.Properties{Active: state, Timestamp: timestamp}, nil
}
