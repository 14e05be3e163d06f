// Package virtualport provides an in-memory loopback pair of diagstack.Port
// implementations, used by every engine's tests to drive a real Port
// without hardware. The Port contract is a single-owner blocking pipe, not
// a broadcast bus, so a pair of buffered channels wired end to end is all
// that is needed.
package virtualport

import (
	"time"

	"github.com/diagstack/diagstack"
)

// Port is one end of an in-memory loopback pair.
type Port struct {
	out     chan diagstack.Frame
	in      chan diagstack.Frame
	timeout time.Duration
}

// NewPair returns two connected Ports: frames sent on a are received on b
// and vice versa.
func NewPair() (a, b *Port) {
	c1 := make(chan diagstack.Frame, 64)
	c2 := make(chan diagstack.Frame, 64)
	a = &Port{out: c1, in: c2, timeout: time.Second}
	b = &Port{out: c2, in: c1, timeout: time.Second}
	return a, b
}

func (p *Port) Open() error  { return nil }
func (p *Port) Close() error { return nil }

// SendFrame blocks until the peer has queue space, up to the configured
// timeout, matching the blocking send contract of a real Port.
func (p *Port) SendFrame(frame diagstack.Frame) error {
	select {
	case p.out <- frame:
		return nil
	case <-time.After(p.timeout):
		return diagstack.NewError(diagstack.KindBufferOverflow, "virtual port tx queue full")
	}
}

func (p *Port) ReceiveFrame() (diagstack.Frame, error) {
	select {
	case frame := <-p.in:
		return frame, nil
	case <-time.After(p.timeout):
		return diagstack.Frame{}, diagstack.ErrTimeout
	}
}

func (p *Port) SetTimeout(d time.Duration) {
	p.timeout = d
}
