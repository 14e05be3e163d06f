package diagstack

// Frame is the universal unit exchanged across every layer of the stack:
// J1939 on the wire, ISO-TP above it, and whatever raw CAN/CAN-FD controller
// sits underneath a Port.
type Frame struct {
	ID         uint32
	Data       []byte
	Timestamp  int64 // monotonic milliseconds
	IsExtended bool
	IsFD       bool
}

// NewFrame builds a standard (non-extended, non-FD) classic CAN frame.
func NewFrame(id uint32, data []byte) Frame {
	return Frame{ID: id, Data: data}
}

// NewExtendedFrame builds a 29-bit identifier classic CAN frame, the form
// every J1939 frame takes on the wire.
func NewExtendedFrame(id uint32, data []byte) Frame {
	return Frame{ID: id, Data: data, IsExtended: true}
}

// Valid checks the identifier-width and payload-length invariants: a
// non-extended frame's ID must fit 11 bits, an extended one 29 bits, and a
// non-FD frame's payload must fit 8 bytes.
func (f Frame) Valid() bool {
	if !f.IsExtended && f.ID >= 1<<11 {
		return false
	}
	if f.IsExtended && f.ID >= 1<<29 {
		return false
	}
	if !f.IsFD && len(f.Data) > 8 {
		return false
	}
	return len(f.Data) <= 64
}
