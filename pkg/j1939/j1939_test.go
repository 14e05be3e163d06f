package j1939_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/diagstack/diagstack"
	"github.com/diagstack/diagstack/pkg/j1939"
	"github.com/diagstack/diagstack/pkg/transport/virtualport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDCodecRoundTrip(t *testing.T) {
	cases := []j1939.Address{
		{Priority: 3, PGN: 0xFEF1, Source: 0x20, Destination: j1939.BroadcastDestination}, // PDU2
		{Priority: 6, PGN: 0xEA00, Source: 0x01, Destination: 0x02},                       // PDU1
		{Priority: 7, PGN: 0x0000, Source: 0xFE, Destination: 0x00},
	}
	for _, addr := range cases {
		id := j1939.EncodeID(addr)
		assert.Equal(t, addr, j1939.DecodeID(id))
	}
}

func TestIDCodecRandomPDU1RoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		addr := j1939.Address{
			Priority:    uint8(r.Intn(8)),
			PGN:         uint32(r.Intn(240)) << 8, // PF < 240 => PDU1
			Source:      uint8(r.Intn(256)),
			Destination: uint8(r.Intn(256)),
		}
		id := j1939.EncodeID(addr)
		assert.Equal(t, addr, j1939.DecodeID(id))
	}
}

func TestNodeClaimsAddressAlone(t *testing.T) {
	portA, portB := virtualport.NewPair()
	defer portB.Close()

	node := j1939.New(portA, j1939.Config{Name: 0x1000, PreferredAddress: 0x20})
	require.NoError(t, node.Open())

	addr, ok := node.ClaimedAddress()
	require.True(t, ok)
	assert.Equal(t, uint8(0x20), addr)

	// The node must have announced its claim on the bus.
	portB.SetTimeout(100 * time.Millisecond)
	frame, err := portB.ReceiveFrame()
	require.NoError(t, err)
	claimed := j1939.DecodeID(frame.ID)
	assert.EqualValues(t, 0xEE00, claimed.PGN)
	assert.Equal(t, uint8(0x20), claimed.Source)
}

func TestNodeLosesToLowerName(t *testing.T) {
	portA, portB := virtualport.NewPair()
	defer portB.Close()

	done := make(chan error, 1)
	go func() {
		node := j1939.New(portA, j1939.Config{Name: 0x5000, PreferredAddress: 0x20})
		done <- node.Open()
	}()

	// Read the node's own ADDRESS_CLAIMED announcement, then contest it with
	// a strictly lower NAME.
	portB.SetTimeout(time.Second)
	_, err := portB.ReceiveFrame()
	require.NoError(t, err)

	contenderID := j1939.EncodeID(j1939.Address{Priority: 6, PGN: 0xEE00, Source: 0x20, Destination: j1939.BroadcastDestination})
	require.NoError(t, portB.SendFrame(diagstack.NewExtendedFrame(contenderID, encodeName(0x0001))))

	err = <-done
	assert.Error(t, err)
}

// TestNodeFallsBackWithinAddressRange contests the preferred address once
// with a lower NAME, then leaves the bus quiet: the node should retry within
// its configured address_range and claim the next address instead of
// failing outright.
func TestNodeFallsBackWithinAddressRange(t *testing.T) {
	portA, portB := virtualport.NewPair()
	defer portB.Close()

	done := make(chan struct {
		addr uint8
		err  error
	}, 1)
	go func() {
		node := j1939.New(portA, j1939.Config{
			Name:             0x5000,
			PreferredAddress: 0x20,
			AddressRangeLow:  0x20,
			AddressRangeHigh: 0x22,
		})
		err := node.Open()
		addr, _ := node.ClaimedAddress()
		done <- struct {
			addr uint8
			err  error
		}{addr, err}
	}()

	// Contest the preferred address (0x20) with a strictly lower NAME.
	portB.SetTimeout(time.Second)
	_, err := portB.ReceiveFrame()
	require.NoError(t, err)
	contenderID := j1939.EncodeID(j1939.Address{Priority: 6, PGN: 0xEE00, Source: 0x20, Destination: j1939.BroadcastDestination})
	require.NoError(t, portB.SendFrame(diagstack.NewExtendedFrame(contenderID, encodeName(0x0001))))

	// Losing the attempt first emits a CANNOT_CLAIM for 0x20, then the node
	// retries with the next address in its range (0x21), uncontested.
	_, err = portB.ReceiveFrame()
	require.NoError(t, err)
	frame, err := portB.ReceiveFrame()
	require.NoError(t, err)
	assert.Equal(t, uint8(0x21), j1939.DecodeID(frame.ID).Source)

	result := <-done
	require.NoError(t, result.err)
	assert.Equal(t, uint8(0x21), result.addr)
}

func encodeName(n uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(n)
		n >>= 8
	}
	return b
}

func TestSendFailsBeforeAddressClaimed(t *testing.T) {
	portA, _ := virtualport.NewPair()
	node := j1939.New(portA, j1939.Config{Name: 1, PreferredAddress: 0x10})
	err := node.Send(3, 0xFEF1, j1939.BroadcastDestination, []byte{0x01})
	assert.Error(t, err)
}
