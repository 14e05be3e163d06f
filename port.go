package diagstack

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// Port is the hardware abstraction every layer above it is built on: a
// blocking frame pipe with a settable receive timeout. Concrete
// implementations (socketcan, a serial/TCP bridge, an in-memory loopback for
// tests) live outside the core stack; the core only depends on this
// interface.
//
// A Port is owned exclusively by the layer directly above it. No interior
// locking is required or provided.
type Port interface {
	Open() error
	Close() error
	SendFrame(frame Frame) error
	ReceiveFrame() (Frame, error)
	SetTimeout(d time.Duration)
}

// PortManager is a thin wrapper around a raw Port adding frame validation,
// error wrapping and logging. It does not fan out received frames: every
// layer in this stack owns its Port exclusively and reads it directly, so no
// broadcast/listener registry is needed. It also remembers the last timeout
// set, so callers that need to lower it temporarily (address claim does) can
// put it back afterwards.
type PortManager struct {
	port    Port
	timeout time.Duration
	logger  *log.Entry
}

// NewPortManager wraps a Port with logging.
func NewPortManager(port Port) *PortManager {
	return &PortManager{
		port:    port,
		timeout: time.Second,
		logger:  log.WithField("component", "port"),
	}
}

func (m *PortManager) Send(frame Frame) error {
	if !frame.Valid() {
		return NewError(KindInvalidParameter, "frame fails width invariants")
	}
	err := m.port.SendFrame(frame)
	if err != nil {
		m.logger.WithError(err).Warn("send frame failed")
		return Wrap(KindPort, "send frame", err)
	}
	return nil
}

func (m *PortManager) Receive() (Frame, error) {
	frame, err := m.port.ReceiveFrame()
	if err != nil {
		return Frame{}, err
	}
	return frame, nil
}

func (m *PortManager) SetTimeout(d time.Duration) {
	m.timeout = d
	m.port.SetTimeout(d)
}

// Timeout returns the last timeout passed to SetTimeout.
func (m *PortManager) Timeout() time.Duration {
	return m.timeout
}

func (m *PortManager) Open() error {
	if err := m.port.Open(); err != nil {
		return Wrap(KindPort, "open port", err)
	}
	return nil
}

func (m *PortManager) Close() error {
	return m.port.Close()
}
