// Package socketcan adapts github.com/brutella/can's Linux SocketCAN bus to
// the diagstack.Port contract. The core engines never import it; cmd/diagtool
// wires it in as one of two selectable Port backends.
package socketcan

import (
	"time"

	sockcan "github.com/brutella/can"
	"golang.org/x/sys/unix"

	"github.com/diagstack/diagstack"
)

// Port is a diagstack.Port backed by a real Linux SocketCAN interface.
// brutella/can is callback-driven (Subscribe/Handle); this type bridges that
// push model to the blocking pull model every layer above a Port expects.
type Port struct {
	ifname  string
	bus     *sockcan.Bus
	frames  chan diagstack.Frame
	timeout time.Duration
}

// New builds a socketcan Port for the named interface (e.g. "can0", "vcan0").
// It does nothing hardware-facing until Open is called.
func New(ifname string) *Port {
	return &Port{
		ifname:  ifname,
		frames:  make(chan diagstack.Frame, 64),
		timeout: time.Second,
	}
}

// Open binds the named SocketCAN interface and starts publishing received
// frames into the internal queue.
func (p *Port) Open() error {
	bus, err := sockcan.NewBusForInterfaceWithName(p.ifname)
	if err != nil {
		return diagstack.Wrap(diagstack.KindPort, "open socketcan interface "+p.ifname, err)
	}
	p.bus = bus
	bus.Subscribe(p)
	go func() {
		_ = bus.ConnectAndPublish()
	}()
	return nil
}

// Close disconnects from the SocketCAN interface.
func (p *Port) Close() error {
	if p.bus == nil {
		return nil
	}
	return p.bus.Disconnect()
}

// SendFrame publishes frame onto the bus.
func (p *Port) SendFrame(frame diagstack.Frame) error {
	if p.bus == nil {
		return diagstack.ErrNotInitialized
	}
	id := frame.ID & unix.CAN_SFF_MASK
	if frame.IsExtended {
		id = (frame.ID & unix.CAN_EFF_MASK) | unix.CAN_EFF_FLAG
	}
	out := sockcan.Frame{ID: id, Length: uint8(len(frame.Data))}
	copy(out.Data[:], frame.Data)
	return p.bus.Publish(out)
}

// ReceiveFrame blocks for the next frame published by Handle, up to the
// configured timeout.
func (p *Port) ReceiveFrame() (diagstack.Frame, error) {
	select {
	case frame := <-p.frames:
		return frame, nil
	case <-time.After(p.timeout):
		return diagstack.Frame{}, diagstack.ErrTimeout
	}
}

// SetTimeout adjusts how long ReceiveFrame waits for the next frame.
func (p *Port) SetTimeout(d time.Duration) {
	p.timeout = d
}

// Handle implements brutella/can's receive callback, converting its Frame
// into a diagstack.Frame and queueing it for ReceiveFrame.
func (p *Port) Handle(frame sockcan.Frame) {
	data := make([]byte, frame.Length)
	copy(data, frame.Data[:frame.Length])
	extended := frame.ID&unix.CAN_EFF_FLAG != 0
	id := frame.ID & unix.CAN_SFF_MASK
	if extended {
		id = frame.ID & unix.CAN_EFF_MASK
	}
	select {
	case p.frames <- diagstack.Frame{
		ID:         id,
		Data:       data,
		Timestamp:  time.Now().UnixMilli(),
		IsExtended: extended,
	}:
	default:
		// Drop the frame under backpressure rather than block the bus
		// callback goroutine.
	}
}
