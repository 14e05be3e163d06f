package isotp

import "github.com/diagstack/diagstack"

// AddressMode selects where the ISO-TP address extension byte lives, per
// ISO 15765-2.
type AddressMode uint8

const (
	AddressNormal AddressMode = iota
	AddressExtended
	AddressMixed
)

// Address is the pair of CAN identifiers (plus addressing extras) that
// identify one direction of an ISO-TP conversation.
type Address struct {
	TxID             uint32
	RxID             uint32
	Mode             AddressMode
	AddressExtension uint8
}

// payloadOffset returns how many leading bytes of every frame are consumed
// by the address extension before the PCI byte begins.
func (a Address) payloadOffset() int {
	if a.Mode == AddressExtended {
		return 1
	}
	return 0
}

// budgets returns the maximum payload size (after PCI/extension) for SF, FF
// first-frame data, and CF frames under this address mode.
func (a Address) budgets() (sf, ff, cf int) {
	switch a.Mode {
	case AddressExtended:
		return 6, 5, 6
	default: // Normal and Mixed share the same budgets; Mixed carries its
		// extension in the CAN ID, not the payload.
		return 7, 6, 7
	}
}

func isotpErr(msg string) error {
	return diagstack.NewError(diagstack.KindIsoTp, msg)
}
