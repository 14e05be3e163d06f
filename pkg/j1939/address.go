// Package j1939 implements SAE J1939's 29-bit extended-CAN addressing and
// NAME-based address-claim arbitration atop a raw Port.
package j1939

import "github.com/diagstack/diagstack"

// BroadcastDestination is the destination byte used for PDU2 (broadcast)
// messages.
const BroadcastDestination = 0xFF

// Address is a decoded J1939 identifier: priority, Parameter Group Number,
// source, and (for PDU1 groups) destination.
type Address struct {
	Priority    uint8
	PGN         uint32
	Source      uint8
	Destination uint8
}

// isPDU1 reports whether the PGN's PDU Format byte selects point-to-point
// (destination-specific) addressing, per SAE J1939-21.
func isPDU1(pgn uint32) bool {
	pf := (pgn >> 8) & 0xFF
	return pf < 240
}

// EncodeID packs addr into a 29-bit CAN identifier.
//
//	id = (priority & 7) << 26 | (pgn & 0x3FFFF) << 8 | source
//
// For PDU1 (point-to-point) groups the destination is folded into the low
// byte of the PGN field before packing; PDU2 (broadcast) groups are packed
// with their PGN unchanged (the low byte is the group extension) and
// addr.Destination is not encoded.
func EncodeID(addr Address) uint32 {
	pgn := addr.PGN & 0x3FFFF
	if isPDU1(pgn) {
		pgn = (pgn &^ 0xFF) | uint32(addr.Destination)
	}
	return (uint32(addr.Priority)&0x7)<<26 | pgn<<8 | uint32(addr.Source)
}

// DecodeID unpacks a 29-bit CAN identifier into an Address. For PDU1 groups
// Destination is the PGN field's low byte, which is cleared from the
// returned PGN; for PDU2 groups Destination is always BroadcastDestination.
func DecodeID(id uint32) Address {
	priority := uint8((id >> 26) & 0x7)
	pgn := (id >> 8) & 0x3FFFF
	source := uint8(id & 0xFF)

	addr := Address{Priority: priority, PGN: pgn, Source: source}
	if isPDU1(pgn) {
		addr.PGN = pgn &^ 0xFF
		addr.Destination = uint8(pgn & 0xFF)
	} else {
		addr.Destination = BroadcastDestination
	}
	return addr
}

// Message is a decoded J1939 application payload delivered to a receiver.
type Message struct {
	Address   Address
	Data      []byte
	Timestamp int64
}

func j1939Err(msg string) error {
	return diagstack.NewError(diagstack.KindJ1939, msg)
}
