package obd_test

import (
	"testing"

	"github.com/diagstack/diagstack/pkg/isotp"
	"github.com/diagstack/diagstack/pkg/obd"
	"github.com/diagstack/diagstack/pkg/transport/virtualport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pairedAdapter returns an Adapter talking through portA, and an ISO-TP
// transport on portB playing the ECU side (rx_id/tx_id swapped), so tests
// can reply with realistic SF or multi-frame traffic.
func pairedAdapter(t *testing.T) (*obd.Adapter, *isotp.Transport) {
	t.Helper()
	portA, portB := virtualport.NewPair()
	t.Cleanup(func() { portB.Close() })

	clientCfg := isotp.DefaultConfig(0x7E0, 0x7E8)
	ecuCfg := isotp.DefaultConfig(0x7E8, 0x7E0)

	adapterTransport := isotp.NewTransport(portA, clientCfg)
	ecuTransport := isotp.NewTransport(portB, ecuCfg)

	return obd.New(adapterTransport), ecuTransport
}

// respondAsEcu drains the adapter's request off ecu, then replies with
// data, using full ISO-TP framing (SF or FF/FC/CF as needed).
func respondAsEcu(t *testing.T, ecu *isotp.Transport, data []byte) {
	t.Helper()
	_, err := ecu.Receive()
	require.NoError(t, err)
	require.NoError(t, ecu.Send(data))
}

func TestReadSensorDataRPM(t *testing.T) {
	adapter, ecu := pairedAdapter(t)

	type result struct {
		r   obd.Reading
		err error
	}
	done := make(chan result, 1)
	go func() {
		r, err := adapter.ReadSensorData(0x0C)
		done <- result{r, err}
	}()

	respondAsEcu(t, ecu, []byte{0x41, 0x0C, 0x1B, 0x56})

	got := <-done
	require.NoError(t, got.err)
	assert.Equal(t, "EngineRpm", got.r.Name)
	assert.InDelta(t, 1749.5, got.r.Value, 0.001)
}

func TestReadStoredDTCs(t *testing.T) {
	adapter, ecu := pairedAdapter(t)

	type result struct {
		codes []string
		err   error
	}
	done := make(chan result, 1)
	go func() {
		codes, err := adapter.ReadStoredDTCs()
		done <- result{codes, err}
	}()

	respondAsEcu(t, ecu, []byte{0x43, 0x01, 0x33, 0x02, 0x44})

	got := <-done
	require.NoError(t, got.err)
	assert.Equal(t, []string{"P0133", "P0244"}, got.codes)
}

func TestReadVIN(t *testing.T) {
	adapter, ecu := pairedAdapter(t)

	type result struct {
		vin string
		err error
	}
	done := make(chan result, 1)
	go func() {
		vin, err := adapter.ReadVIN()
		done <- result{vin, err}
	}()

	vin := "1HGCM82633A004352"
	payload := append([]byte{0x49, 0x02, 0x01}, []byte(vin)...)
	respondAsEcu(t, ecu, payload)

	got := <-done
	require.NoError(t, got.err)
	assert.Equal(t, vin, got.vin)
}

func TestDecodeDTCsDirect(t *testing.T) {
	codes, err := obd.DecodeDTCs([]byte{0x01, 0x33, 0x02, 0x44})
	require.NoError(t, err)
	assert.Equal(t, []string{"P0133", "P0244"}, codes)
}

// The top two bits of the first byte select the category letter.
func TestDecodeDTCsAllLetters(t *testing.T) {
	codes, err := obd.DecodeDTCs([]byte{
		0x01, 0x33, // 00 -> P
		0x41, 0x23, // 01 -> C
		0x81, 0x23, // 10 -> B
		0xC1, 0x23, // 11 -> U
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"P0133", "C0123", "B0123", "U0123"}, codes)
}

func TestDecodeDTCsOddLengthRejected(t *testing.T) {
	_, err := obd.DecodeDTCs([]byte{0x01, 0x33, 0x02})
	require.Error(t, err)
}

func TestReadSensorDataUnsupportedPID(t *testing.T) {
	adapter, _ := pairedAdapter(t)
	_, err := adapter.ReadSensorData(0xFF)
	assert.Error(t, err)
}
