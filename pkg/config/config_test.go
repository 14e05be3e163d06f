package config_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagstack/diagstack/pkg/config"
	"github.com/diagstack/diagstack/pkg/isotp"
)

func TestDefaultProfile(t *testing.T) {
	p := config.DefaultProfile(0x7E0, 0x7E8)
	assert.Equal(t, uint32(0x7E0), p.IsoTP.Address.TxID)
	assert.Equal(t, uint32(0x7E8), p.IsoTP.Address.RxID)
	assert.Equal(t, isotp.AddressNormal, p.IsoTP.Address.Mode)
	assert.False(t, p.IsoTP.UsePadding)
}

func TestParseOverridesDefaults(t *testing.T) {
	raw := []byte(`
[isotp]
tx_id = 2016
rx_id = 2024
address_mode = extended
address_extension = 170
block_size = 8
st_min_ms = 10
use_padding = true
padding_value = 204

[uds]
p2_timeout_ms = 60
s3_client_timeout_ms = 4000

[j1939]
name = 1234567890
preferred_address = 128

[obd]
timeout_ms = 250
auto_format = false
`)
	p, err := config.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, uint32(2016), p.IsoTP.Address.TxID)
	assert.Equal(t, uint32(2024), p.IsoTP.Address.RxID)
	assert.Equal(t, isotp.AddressExtended, p.IsoTP.Address.Mode)
	assert.Equal(t, uint8(170), p.IsoTP.Address.AddressExtension)
	assert.Equal(t, uint8(8), p.IsoTP.BlockSize)
	assert.Equal(t, 10*time.Millisecond, p.IsoTP.STmin)
	assert.True(t, p.IsoTP.UsePadding)
	assert.Equal(t, uint8(204), p.IsoTP.PaddingValue)

	assert.Equal(t, 60*time.Millisecond, p.UDS.P2Timeout)
	assert.Equal(t, 4000*time.Millisecond, p.UDS.S3ClientTimeout)

	assert.Equal(t, uint64(1234567890), uint64(p.J1939.Name))
	assert.Equal(t, uint8(128), p.J1939.PreferredAddress)

	assert.Equal(t, 250*time.Millisecond, p.OBD.Timeout)
	assert.False(t, p.OBD.AutoFormat)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.ini")

	want := config.DefaultProfile(0x600, 0x601)
	want.IsoTP.BlockSize = 4
	want.J1939.Name = 42

	require.NoError(t, want.Save(path))

	got, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, want.IsoTP.Address, got.IsoTP.Address)
	assert.Equal(t, want.IsoTP.BlockSize, got.IsoTP.BlockSize)
	assert.Equal(t, want.J1939.Name, got.J1939.Name)
}
