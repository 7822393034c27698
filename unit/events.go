package unit

// BusEvent is one normalized signal from a bus connection's inbound stream.
// Exactly one of the pointer fields is set. The stream is single-pass and
// unbounded; it ends only when the underlying connection is lost or closed.
type BusEvent struct {
	New     *UnitNew
	Removed *UnitRemoved
	Changed *StateChanged
}

// UnitNew reports that the manager loaded a unit.
type UnitNew struct {
	Name string
}

// UnitRemoved reports that the manager unloaded a unit.
type UnitRemoved struct {
	Name string
}

// StateChanged reports a PropertiesChanged signal that carried a new
// ActiveState for a watched unit, along with the monotonic timestamp at
// which the state was entered (zero when the signal lacked it).
type StateChanged struct {
	Name      string
	State     ActiveState
	Timestamp uint64
}
