package dbusclient

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennep/killjoy/unit"
)

func TestDecodeSignal_UnitNew(t *testing.T) {
	ev, err := decodeSignal(&dbus.Signal{
		Name: "org.freedesktop.systemd1.Manager.UnitNew",
		Path: systemdPath,
		Body: []any{"nginx.service", dbus.ObjectPath("/org/freedesktop/systemd1/unit/nginx_2eservice")},
	})
	require.NoError(t, err)
	require.NotNil(t, ev)
	require.NotNil(t, ev.New)
	assert.Equal(t, "nginx.service", ev.New.Name)
}

func TestDecodeSignal_UnitRemoved(t *testing.T) {
	ev, err := decodeSignal(&dbus.Signal{
		Name: "org.freedesktop.systemd1.Manager.UnitRemoved",
		Path: systemdPath,
		Body: []any{"nginx.service", dbus.ObjectPath("/org/freedesktop/systemd1/unit/nginx_2eservice")},
	})
	require.NoError(t, err)
	require.NotNil(t, ev)
	require.NotNil(t, ev.Removed)
	assert.Equal(t, "nginx.service", ev.Removed.Name)
}

func TestDecodeSignal_MalformedLifecycleBody(t *testing.T) {
	for _, body := range [][]any{nil, {}, {42}, {""}} {
		_, err := decodeSignal(&dbus.Signal{
			Name: "org.freedesktop.systemd1.Manager.UnitNew",
			Body: body,
		})
		assert.Error(t, err, "body %v should not decode", body)
	}
}

func TestDecodeSignal_PropertiesChanged(t *testing.T) {
	ev, err := decodeSignal(&dbus.Signal{
		Name: "org.freedesktop.DBus.Properties.PropertiesChanged",
		Path: dbus.ObjectPath("/org/freedesktop/systemd1/unit/nginx_2eservice"),
		Body: []any{
			unitInterface,
			map[string]dbus.Variant{
				"ActiveState":                     dbus.MakeVariant("failed"),
				"InactiveEnterTimestampMonotonic": dbus.MakeVariant(uint64(123456)),
			},
			[]string{},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, ev)
	require.NotNil(t, ev.Changed)
	assert.Equal(t, "nginx.service", ev.Changed.Name)
	assert.Equal(t, unit.StateFailed, ev.Changed.State)
	assert.Equal(t, uint64(123456), ev.Changed.Timestamp)
}

func TestDecodeSignal_PropertiesChangedWithoutTimestamp(t *testing.T) {
	ev, err := decodeSignal(&dbus.Signal{
		Name: "org.freedesktop.DBus.Properties.PropertiesChanged",
		Path: dbus.ObjectPath("/org/freedesktop/systemd1/unit/a_2eservice"),
		Body: []any{
			unitInterface,
			map[string]dbus.Variant{"ActiveState": dbus.MakeVariant("active")},
			[]string{},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, ev.Changed)
	assert.Equal(t, unit.StateActive, ev.Changed.State)
	assert.Zero(t, ev.Changed.Timestamp)
}

func TestDecodeSignal_PropertiesChangedUnknownState(t *testing.T) {
	// A state outside the enumeration decodes to StateUnknown, not an error.
	ev, err := decodeSignal(&dbus.Signal{
		Name: "org.freedesktop.DBus.Properties.PropertiesChanged",
		Path: dbus.ObjectPath("/org/freedesktop/systemd1/unit/a_2eservice"),
		Body: []any{
			unitInterface,
			map[string]dbus.Variant{"ActiveState": dbus.MakeVariant("refreshing")},
			[]string{},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, ev.Changed)
	assert.Equal(t, unit.StateUnknown, ev.Changed.State)
}

func TestDecodeSignal_PropertiesChangedIgnored(t *testing.T) {
	tests := []struct {
		name string
		sig  *dbus.Signal
	}{
		{
			"other interface",
			&dbus.Signal{
				Name: "org.freedesktop.DBus.Properties.PropertiesChanged",
				Path: dbus.ObjectPath("/org/freedesktop/systemd1/unit/a_2eservice"),
				Body: []any{"org.freedesktop.systemd1.Service", map[string]dbus.Variant{}, []string{}},
			},
		},
		{
			"no ActiveState entry",
			&dbus.Signal{
				Name: "org.freedesktop.DBus.Properties.PropertiesChanged",
				Path: dbus.ObjectPath("/org/freedesktop/systemd1/unit/a_2eservice"),
				Body: []any{unitInterface, map[string]dbus.Variant{"SubState": dbus.MakeVariant("dead")}, []string{}},
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ev, err := decodeSignal(test.sig)
			require.NoError(t, err)
			assert.Nil(t, ev)
		})
	}
}

func TestDecodeSignal_UnrelatedSignal(t *testing.T) {
	ev, err := decodeSignal(&dbus.Signal{
		Name: "org.freedesktop.DBus.NameOwnerChanged",
		Body: []any{"com.example", "", ":1.5"},
	})
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestDecodeUnitProperties(t *testing.T) {
	props, err := decodeUnitProperties(map[string]dbus.Variant{
		"ActiveState":                   dbus.MakeVariant("active"),
		"ActiveEnterTimestampMonotonic": dbus.MakeVariant(uint64(777)),
	})
	require.NoError(t, err)
	assert.Equal(t, unit.StateActive, props.Active)
	assert.Equal(t, uint64(777), props.Timestamp)
}

func TestDecodeUnitProperties_MissingState(t *testing.T) {
	_, err := decodeUnitProperties(map[string]dbus.Variant{})
	assert.Error(t, err)
}

func TestNotifierPath(t *testing.T) {
	assert.Equal(t,
		dbus.ObjectPath("/com/kennep/KilljoyNotifierNotification1"),
		NotifierPath("com.kennep.KilljoyNotifierNotification1"))
	assert.Equal(t,
		dbus.ObjectPath("/com/example/App"),
		NotifierPath("com.example.App"))
}
