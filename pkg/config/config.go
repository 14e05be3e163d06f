// Package config loads and saves the stack's configuration (ISO-TP
// addressing/timing, UDS timeouts, J1939 identity, OBD-II timeout) as an
// INI-formatted profile. Programmatic construction (DefaultProfile) is
// always available too: tests never need a file on disk.
package config

import (
	"fmt"
	"time"

	"gopkg.in/ini.v1"

	"github.com/diagstack/diagstack/pkg/isotp"
	"github.com/diagstack/diagstack/pkg/j1939"
	"github.com/diagstack/diagstack/pkg/obd"
	"github.com/diagstack/diagstack/pkg/uds"
)

// Profile bundles the configuration surface of every layer in the stack
// behind one handle.
type Profile struct {
	IsoTP isotp.Config
	UDS   uds.Config
	J1939 j1939.Config
	OBD   obd.Config
}

// DefaultProfile returns a profile built entirely from the per-layer
// defaults, addressed for the given ISO-TP tx/rx CAN IDs.
func DefaultProfile(txID, rxID uint32) Profile {
	return Profile{
		IsoTP: isotp.DefaultConfig(txID, rxID),
		UDS:   uds.DefaultConfig(),
		J1939: j1939.Config{PreferredAddress: 0xF9, AddressRangeLow: 0x80, AddressRangeHigh: 0xF8},
		OBD:   obd.DefaultConfig(),
	}
}

// Load reads an INI-formatted profile from path. Missing sections or keys
// fall back to the matching DefaultProfile value.
func Load(path string) (*Profile, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}
	return fromFile(file)
}

// Parse reads an INI-formatted profile from raw bytes (used by tests that
// don't want to touch a filesystem).
func Parse(raw []byte) (*Profile, error) {
	file, err := ini.Load(raw)
	if err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	return fromFile(file)
}

func fromFile(file *ini.File) (*Profile, error) {
	p := DefaultProfile(0x7E0, 0x7E8)

	isoTPSec := file.Section("isotp")
	p.IsoTP.Address.TxID = uint32(isoTPSec.Key("tx_id").MustUint(uint(p.IsoTP.Address.TxID)))
	p.IsoTP.Address.RxID = uint32(isoTPSec.Key("rx_id").MustUint(uint(p.IsoTP.Address.RxID)))
	p.IsoTP.Address.Mode = parseAddressMode(isoTPSec.Key("address_mode").MustString("normal"))
	p.IsoTP.Address.AddressExtension = uint8(isoTPSec.Key("address_extension").MustUint(0))
	p.IsoTP.BlockSize = uint8(isoTPSec.Key("block_size").MustUint(uint(p.IsoTP.BlockSize)))
	p.IsoTP.STmin = time.Duration(isoTPSec.Key("st_min_ms").MustInt(int(p.IsoTP.STmin/time.Millisecond))) * time.Millisecond
	p.IsoTP.UsePadding = isoTPSec.Key("use_padding").MustBool(p.IsoTP.UsePadding)
	p.IsoTP.PaddingValue = uint8(isoTPSec.Key("padding_value").MustUint(uint(p.IsoTP.PaddingValue)))
	p.IsoTP.ReceiveTimeout = time.Duration(isoTPSec.Key("timeout_ms").MustInt(int(p.IsoTP.ReceiveTimeout/time.Millisecond))) * time.Millisecond
	p.IsoTP.Timing.NAs = msKey(isoTPSec, "n_as_ms", p.IsoTP.Timing.NAs)
	p.IsoTP.Timing.NAr = msKey(isoTPSec, "n_ar_ms", p.IsoTP.Timing.NAr)
	p.IsoTP.Timing.NBs = msKey(isoTPSec, "n_bs_ms", p.IsoTP.Timing.NBs)
	p.IsoTP.Timing.NCr = msKey(isoTPSec, "n_cr_ms", p.IsoTP.Timing.NCr)

	udsSec := file.Section("uds")
	p.UDS.P2Timeout = msKey(udsSec, "p2_timeout_ms", p.UDS.P2Timeout)
	p.UDS.P2StarTimeout = msKey(udsSec, "p2_star_timeout_ms", p.UDS.P2StarTimeout)
	p.UDS.S3ClientTimeout = msKey(udsSec, "s3_client_timeout_ms", p.UDS.S3ClientTimeout)
	p.UDS.TesterPresentInterval = msKey(udsSec, "tester_present_interval_ms", p.UDS.TesterPresentInterval)

	j1939Sec := file.Section("j1939")
	p.J1939.Name = j1939.Name(j1939Sec.Key("name").MustUint64(uint64(p.J1939.Name)))
	p.J1939.PreferredAddress = uint8(j1939Sec.Key("preferred_address").MustUint(uint(p.J1939.PreferredAddress)))
	p.J1939.AddressRangeLow = uint8(j1939Sec.Key("address_range_low").MustUint(uint(p.J1939.AddressRangeLow)))
	p.J1939.AddressRangeHigh = uint8(j1939Sec.Key("address_range_high").MustUint(uint(p.J1939.AddressRangeHigh)))

	obdSec := file.Section("obd")
	p.OBD.Timeout = msKey(obdSec, "timeout_ms", p.OBD.Timeout)
	p.OBD.AutoFormat = obdSec.Key("auto_format").MustBool(p.OBD.AutoFormat)

	return &p, nil
}

// Save writes the profile out as an INI file at path, the inverse of Load.
func (p *Profile) Save(path string) error {
	file := ini.Empty()

	isoTPSec, _ := file.NewSection("isotp")
	isoTPSec.NewKey("tx_id", fmt.Sprintf("%d", p.IsoTP.Address.TxID))
	isoTPSec.NewKey("rx_id", fmt.Sprintf("%d", p.IsoTP.Address.RxID))
	isoTPSec.NewKey("address_mode", addressModeString(p.IsoTP.Address.Mode))
	isoTPSec.NewKey("address_extension", fmt.Sprintf("%d", p.IsoTP.Address.AddressExtension))
	isoTPSec.NewKey("block_size", fmt.Sprintf("%d", p.IsoTP.BlockSize))
	isoTPSec.NewKey("st_min_ms", fmt.Sprintf("%d", p.IsoTP.STmin/time.Millisecond))
	isoTPSec.NewKey("use_padding", fmt.Sprintf("%t", p.IsoTP.UsePadding))
	isoTPSec.NewKey("padding_value", fmt.Sprintf("%d", p.IsoTP.PaddingValue))
	isoTPSec.NewKey("timeout_ms", fmt.Sprintf("%d", p.IsoTP.ReceiveTimeout/time.Millisecond))
	isoTPSec.NewKey("n_as_ms", fmt.Sprintf("%d", p.IsoTP.Timing.NAs/time.Millisecond))
	isoTPSec.NewKey("n_ar_ms", fmt.Sprintf("%d", p.IsoTP.Timing.NAr/time.Millisecond))
	isoTPSec.NewKey("n_bs_ms", fmt.Sprintf("%d", p.IsoTP.Timing.NBs/time.Millisecond))
	isoTPSec.NewKey("n_cr_ms", fmt.Sprintf("%d", p.IsoTP.Timing.NCr/time.Millisecond))

	udsSec, _ := file.NewSection("uds")
	udsSec.NewKey("p2_timeout_ms", fmt.Sprintf("%d", p.UDS.P2Timeout/time.Millisecond))
	udsSec.NewKey("p2_star_timeout_ms", fmt.Sprintf("%d", p.UDS.P2StarTimeout/time.Millisecond))
	udsSec.NewKey("s3_client_timeout_ms", fmt.Sprintf("%d", p.UDS.S3ClientTimeout/time.Millisecond))
	udsSec.NewKey("tester_present_interval_ms", fmt.Sprintf("%d", p.UDS.TesterPresentInterval/time.Millisecond))

	j1939Sec, _ := file.NewSection("j1939")
	j1939Sec.NewKey("name", fmt.Sprintf("%d", uint64(p.J1939.Name)))
	j1939Sec.NewKey("preferred_address", fmt.Sprintf("%d", p.J1939.PreferredAddress))
	j1939Sec.NewKey("address_range_low", fmt.Sprintf("%d", p.J1939.AddressRangeLow))
	j1939Sec.NewKey("address_range_high", fmt.Sprintf("%d", p.J1939.AddressRangeHigh))

	obdSec, _ := file.NewSection("obd")
	obdSec.NewKey("timeout_ms", fmt.Sprintf("%d", p.OBD.Timeout/time.Millisecond))
	obdSec.NewKey("auto_format", fmt.Sprintf("%t", p.OBD.AutoFormat))

	return file.SaveTo(path)
}

func msKey(sec *ini.Section, name string, fallback time.Duration) time.Duration {
	return time.Duration(sec.Key(name).MustInt(int(fallback/time.Millisecond))) * time.Millisecond
}

func parseAddressMode(s string) isotp.AddressMode {
	switch s {
	case "extended":
		return isotp.AddressExtended
	case "mixed":
		return isotp.AddressMixed
	default:
		return isotp.AddressNormal
	}
}

func addressModeString(m isotp.AddressMode) string {
	switch m {
	case isotp.AddressExtended:
		return "extended"
	case isotp.AddressMixed:
		return "mixed"
	default:
		return "normal"
	}
}
