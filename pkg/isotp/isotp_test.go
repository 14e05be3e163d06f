package isotp_test

import (
	"bytes"
	"testing"

	"github.com/diagstack/diagstack"
	"github.com/diagstack/diagstack/pkg/isotp"
	"github.com/diagstack/diagstack/pkg/transport/virtualport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pairedTransports(t *testing.T, mutate func(*isotp.Config)) (*isotp.Transport, *isotp.Transport) {
	t.Helper()
	portA, portB := virtualport.NewPair()

	cfgSend := isotp.DefaultConfig(0x7E0, 0x7E8)
	cfgRecv := isotp.DefaultConfig(0x7E8, 0x7E0)
	if mutate != nil {
		mutate(&cfgSend)
		mutate(&cfgRecv)
	}
	sender := isotp.NewTransport(portA, cfgSend)
	receiver := isotp.NewTransport(portB, cfgRecv)
	return sender, receiver
}

func TestSingleFrameRoundTrip(t *testing.T) {
	sender, receiver := pairedTransports(t, nil)

	go func() {
		_ = sender.Send([]byte{0x10})
	}()

	got, err := receiver.Receive()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x10}, got)
}

func TestMultiFrameRoundTripLength20(t *testing.T) {
	sender, receiver := pairedTransports(t, nil)
	payload := bytes.Repeat([]byte{0x10}, 20)

	errCh := make(chan error, 1)
	go func() { errCh <- sender.Send(payload) }()

	got, err := receiver.Receive()
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	assert.Equal(t, payload, got)
}

func TestRoundTripAllLengthsIgnoringPacing(t *testing.T) {
	for _, length := range []int{1, 6, 7, 8, 20, 100, 255, 4095} {
		length := length
		t.Run("", func(t *testing.T) {
			sender, receiver := pairedTransports(t, func(c *isotp.Config) {
				c.BlockSize = 0
				c.STmin = 0
			})
			payload := make([]byte, length)
			for i := range payload {
				payload[i] = byte(i)
			}
			errCh := make(chan error, 1)
			go func() { errCh <- sender.Send(payload) }()

			got, err := receiver.Receive()
			require.NoError(t, err)
			require.NoError(t, <-errCh)
			assert.Equal(t, payload, got)
		})
	}
}

func TestRoundTripWithBlockSizeWindow(t *testing.T) {
	sender, receiver := pairedTransports(t, func(c *isotp.Config) {
		c.BlockSize = 2
	})
	payload := bytes.Repeat([]byte{0x42}, 50)

	errCh := make(chan error, 1)
	go func() { errCh <- sender.Send(payload) }()

	got, err := receiver.Receive()
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	assert.Equal(t, payload, got)
}

func TestReceiveRejectsOutOfOrderConsecutiveFrame(t *testing.T) {
	portA, portB := virtualport.NewPair()
	receiver := isotp.NewTransport(portB, isotp.DefaultConfig(0x7E8, 0x7E0))

	// Manually drive portA like a misbehaving sender: FF for 20 bytes, then a
	// CF whose sequence counter is wrong (should be 1, send 2).
	ff := diagstack.NewFrame(0x7E0, []byte{0x10, 0x14, 1, 2, 3, 4, 5, 6})
	require.NoError(t, portA.SendFrame(ff))
	bad := diagstack.NewFrame(0x7E0, []byte{0x22, 7, 8, 9, 10, 11, 12, 13})
	require.NoError(t, portA.SendFrame(bad))

	_, err := receiver.Receive()
	require.Error(t, err)
}

func TestWireFormatSingleFrame(t *testing.T) {
	portA, portB := virtualport.NewPair()
	sender := isotp.NewTransport(portA, isotp.DefaultConfig(0x7E0, 0x7E8))

	go func() { _ = sender.Send([]byte{0x10}) }()

	frame, err := portB.ReceiveFrame()
	require.NoError(t, err)
	assert.EqualValues(t, 0x7E0, frame.ID)
	assert.Equal(t, []byte{0x01, 0x10}, frame.Data)
}

func TestWireFormatMultiFrameLength20(t *testing.T) {
	portA, portB := virtualport.NewPair()
	cfg := isotp.DefaultConfig(0x7E0, 0x7E8)
	sender := isotp.NewTransport(portA, cfg)
	payload := bytes.Repeat([]byte{0x10}, 20)

	go func() { _ = sender.Send(payload) }()

	ff, err := portB.ReceiveFrame()
	require.NoError(t, err)
	assert.Equal(t, append([]byte{0x10, 0x14}, bytes.Repeat([]byte{0x10}, 6)...), ff.Data)

	// Act as the peer: issue Flow Control CTS with BS=0, STmin=0.
	require.NoError(t, portB.SendFrame(diagstack.NewFrame(0x7E8, []byte{0x30, 0x00, 0x00})))

	cf1, err := portB.ReceiveFrame()
	require.NoError(t, err)
	assert.Equal(t, append([]byte{0x21}, bytes.Repeat([]byte{0x10}, 7)...), cf1.Data)

	cf2, err := portB.ReceiveFrame()
	require.NoError(t, err)
	assert.Equal(t, append([]byte{0x22}, bytes.Repeat([]byte{0x10}, 7)...), cf2.Data)
}

func TestAddressExtensionMismatchRejected(t *testing.T) {
	cfg := isotp.DefaultConfig(0x7E0, 0x7E8)
	cfg.Address.Mode = isotp.AddressExtended
	cfg.Address.AddressExtension = 0x01

	portA, portB := virtualport.NewPair()
	receiver := isotp.NewTransport(portB, cfg)

	wrongExtension := diagstack.NewFrame(0x7E0, []byte{0x02, 0x00, 0x10})
	require.NoError(t, portA.SendFrame(wrongExtension))

	_, err := receiver.Receive()
	require.Error(t, err)
}
