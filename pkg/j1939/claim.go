package j1939

import (
	"encoding/binary"
	"time"

	"github.com/diagstack/diagstack"
)

// addressClaimedPGN is PGN 0xEE00 (Address Claimed / Cannot Claim), always
// sent at priority 6 per SAE J1939-81.
const addressClaimedPGN = 0xEE00

// claimPriority is the fixed priority used for ADDRESS_CLAIMED/CANNOT_CLAIM
// traffic.
const claimPriority = 6

// cannotClaimSource is the null source address used when a node loses
// arbitration and gives up its preferred address.
const cannotClaimSource = 0xFE

// claimListenWindow is how long a node listens for a competing claim before
// considering an address its own.
const claimListenWindow = 250 * time.Millisecond

// Name is a J1939 NAME: a 64-bit identity compared, big-endian unsigned, to
// arbitrate address claims. Lower NAME wins.
type Name uint64

func encodeClaimFrame(source uint8, name Name) diagstack.Frame {
	addr := Address{Priority: claimPriority, PGN: addressClaimedPGN, Source: source, Destination: BroadcastDestination}
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, uint64(name))
	return diagstack.NewExtendedFrame(EncodeID(addr), data)
}

// maxJ1939Address is the highest address a J1939 node may claim; 254/255
// are reserved (CANNOT_CLAIM source / global/broadcast).
const maxJ1939Address = 253

// candidateAddresses returns the ordered list of addresses claimAddress
// should try: preferred first, then every other address in
// [rangeLow, rangeHigh] (skipping preferred and clipped to
// maxJ1939Address), giving a node configured with an address_range a
// fallback when its preferred address is contested. A node with no range
// configured (rangeHigh == 0) only ever tries preferred.
func candidateAddresses(preferred, rangeLow, rangeHigh uint8) []uint8 {
	candidates := []uint8{preferred}
	if rangeHigh == 0 {
		return candidates
	}
	if rangeHigh > maxJ1939Address {
		rangeHigh = maxJ1939Address
	}
	for a := rangeLow; a <= rangeHigh; a++ {
		if a != preferred {
			candidates = append(candidates, a)
		}
	}
	return candidates
}

// claimAddress runs the open-time arbitration: try the preferred address,
// falling back across the configured address range if it is contested. Each
// attempt emits our own ADDRESS_CLAIMED, listens for competitors for
// claimListenWindow, and keeps the address only if no lower NAME contests
// it. The caller's port timeout is restored before returning, win or lose.
func claimAddress(port *diagstack.PortManager, name Name, preferred, rangeLow, rangeHigh uint8) (uint8, error) {
	prev := port.Timeout()
	defer port.SetTimeout(prev)

	var lastErr error
	for _, candidate := range candidateAddresses(preferred, rangeLow, rangeHigh) {
		addr, err := tryClaim(port, name, candidate)
		if err == nil {
			return addr, nil
		}
		lastErr = err
	}
	return 0, lastErr
}

// tryClaim runs one claim attempt for a single candidate address.
func tryClaim(port *diagstack.PortManager, name Name, preferred uint8) (uint8, error) {
	if err := port.Send(encodeClaimFrame(preferred, name)); err != nil {
		return 0, err
	}

	port.SetTimeout(claimListenWindow)
	deadline := time.Now().Add(claimListenWindow)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return preferred, nil
		}
		port.SetTimeout(remaining)

		frame, err := port.Receive()
		if err != nil {
			// Timeout while listening means no contender appeared in time.
			return preferred, nil
		}

		addr := DecodeID(frame.ID)
		if addr.PGN != addressClaimedPGN || addr.Source != preferred {
			continue
		}
		if len(frame.Data) < 8 {
			continue
		}
		contender := Name(binary.BigEndian.Uint64(frame.Data))
		if contender == name {
			// Our own echoed claim, ignore.
			continue
		}
		if contender < name {
			_ = port.Send(encodeClaimFrame(cannotClaimSource, name))
			return 0, j1939Err("lost address claim arbitration")
		}
		// Contender's NAME is higher than ours: we keep arbitrating for the
		// remainder of the window since its claim will itself be contested.
	}
}
