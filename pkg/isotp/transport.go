package isotp

import (
	"time"

	"github.com/diagstack/diagstack"
	log "github.com/sirupsen/logrus"
)

// Transport drives a Port according to ISO 15765-2: segmentation on send,
// reassembly on receive, both governed by Flow Control. It exclusively owns
// the Port beneath it and is not safe for concurrent use.
type Transport struct {
	port   *diagstack.PortManager
	cfg    Config
	logger *log.Entry
}

// NewTransport wraps a raw Port with ISO-TP framing.
func NewTransport(port diagstack.Port, cfg Config) *Transport {
	return &Transport{
		port:   diagstack.NewPortManager(port),
		cfg:    cfg,
		logger: log.WithField("component", "isotp"),
	}
}

func (t *Transport) effectiveTxID() uint32 {
	if t.cfg.Address.Mode == AddressMixed {
		return (t.cfg.Address.TxID &^ 0xFF) | uint32(t.cfg.Address.AddressExtension)
	}
	return t.cfg.Address.TxID
}

func (t *Transport) pad(data []byte) []byte {
	if !t.cfg.UsePadding || len(data) >= 8 {
		return data
	}
	padded := make([]byte, 8)
	copy(padded, data)
	for i := len(data); i < 8; i++ {
		padded[i] = t.cfg.PaddingValue
	}
	return padded
}

func (t *Transport) sendFrame(payload []byte) error {
	return t.port.Send(diagstack.NewFrame(t.effectiveTxID(), t.pad(payload)))
}

// stripExtension strips the address-extension prefix (Extended mode) from
// an incoming frame's data, returning the bytes that start with the PCI byte
// and verifying the extension matches our configuration.
func (t *Transport) stripExtension(data []byte) ([]byte, error) {
	if t.cfg.Address.Mode != AddressExtended {
		return data, nil
	}
	if len(data) < 1 {
		return nil, isotpErr("frame too short for address extension")
	}
	if data[0] != t.cfg.Address.AddressExtension {
		return nil, isotpErr("address extension mismatch")
	}
	return data[1:], nil
}

func (t *Transport) withExtension(pci []byte) []byte {
	if t.cfg.Address.Mode != AddressExtended {
		return pci
	}
	out := make([]byte, 0, len(pci)+1)
	out = append(out, t.cfg.Address.AddressExtension)
	out = append(out, pci...)
	return out
}

func isFlowControlWith(frame diagstack.Frame, rxID uint32) bool {
	return frame.ID == rxID
}

// SetReceiveTimeout overrides the deadline for the first frame of every
// later Receive call, until it is set again. Callers (e.g. the UDS engine)
// use it to wait longer than usual for a reply, such as after a 0x78
// pending response.
func (t *Transport) SetReceiveTimeout(d time.Duration) {
	t.cfg.ReceiveTimeout = d
}
