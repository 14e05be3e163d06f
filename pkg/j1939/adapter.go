package j1939

import (
	"github.com/diagstack/diagstack"
	log "github.com/sirupsen/logrus"
)

// unclaimed is a sentinel value for Node.address before a successful claim.
const unclaimed = -1

// Config holds the J1939 node identity: its NAME, the address it tries to
// claim first, and an optional fallback range to arbitrate within.
type Config struct {
	Name             Name
	PreferredAddress uint8
	AddressRangeLow  uint8
	AddressRangeHigh uint8
}

// Node is a J1939 network adapter: it exclusively owns a Port, arbitrates
// for an address on Open, and encodes/decodes 29-bit frames for Send/
// Receive.
type Node struct {
	port    *diagstack.PortManager
	cfg     Config
	address int
	logger  *log.Entry
}

// New wraps a raw Port with J1939 framing. The node owns no address until
// Open succeeds.
func New(port diagstack.Port, cfg Config) *Node {
	return &Node{
		port:    diagstack.NewPortManager(port),
		cfg:     cfg,
		address: unclaimed,
		logger:  log.WithField("component", "j1939"),
	}
}

// Open runs address-claim arbitration for the node's preferred address.
func (n *Node) Open() error {
	if err := n.port.Open(); err != nil {
		return err
	}
	addr, err := claimAddress(n.port, n.cfg.Name, n.cfg.PreferredAddress, n.cfg.AddressRangeLow, n.cfg.AddressRangeHigh)
	if err != nil {
		n.logger.WithError(err).Warn("address claim failed")
		return err
	}
	n.address = int(addr)
	n.logger.WithField("address", addr).Debug("address claimed")
	return nil
}

// Close releases the port. The node forgets its claimed address.
func (n *Node) Close() error {
	n.address = unclaimed
	return n.port.Close()
}

// ClaimedAddress returns the node's address and whether one has been
// successfully claimed.
func (n *Node) ClaimedAddress() (uint8, bool) {
	if n.address == unclaimed {
		return 0, false
	}
	return uint8(n.address), true
}

// Send transmits data to destination under pgn/priority. It fails until an
// address has been claimed.
func (n *Node) Send(priority uint8, pgn uint32, destination uint8, data []byte) error {
	if n.address == unclaimed {
		return j1939Err("no address claimed")
	}
	addr := Address{Priority: priority, PGN: pgn, Source: uint8(n.address), Destination: destination}
	return n.port.Send(diagstack.NewExtendedFrame(EncodeID(addr), data))
}

// Receive blocks for the next frame and decodes it into a Message.
func (n *Node) Receive() (Message, error) {
	frame, err := n.port.Receive()
	if err != nil {
		return Message{}, err
	}
	return Message{
		Address:   DecodeID(frame.ID),
		Data:      frame.Data,
		Timestamp: frame.Timestamp,
	}, nil
}
