package isotp

import "time"

// Timing holds the four ISO-TP protocol timers.
type Timing struct {
	NAs time.Duration // sender-to-L2
	NAr time.Duration // receiver-to-L2
	NBs time.Duration // sender-wait-FC
	NCr time.Duration // receiver-wait-CF
}

// DefaultTiming sets all four timers to one second.
func DefaultTiming() Timing {
	return Timing{
		NAs: 1 * time.Second,
		NAr: 1 * time.Second,
		NBs: 1 * time.Second,
		NCr: 1 * time.Second,
	}
}

// Config collects everything one ISO-TP conversation needs: addressing,
// flow-control parameters offered to the peer, padding, and timers.
type Config struct {
	Address        Address
	BlockSize      uint8
	STmin          time.Duration
	UsePadding     bool
	PaddingValue   byte
	Timing         Timing
	ReceiveTimeout time.Duration
}

// DefaultConfig returns a Normal-addressing, unpadded configuration with no
// flow-control windowing (BlockSize 0 means "send everything, no waiting").
func DefaultConfig(txID, rxID uint32) Config {
	return Config{
		Address: Address{
			TxID: txID,
			RxID: rxID,
			Mode: AddressNormal,
		},
		BlockSize:      0,
		STmin:          0,
		UsePadding:     false,
		PaddingValue:   0xAA,
		Timing:         DefaultTiming(),
		ReceiveTimeout: 2 * time.Second,
	}
}
