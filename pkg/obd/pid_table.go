// Package obd implements a thin OBD-II service adapter: Mode/PID request
// construction and response decoding over the same transport UDS uses.
package obd

import "github.com/diagstack/diagstack"

// Mode is an OBD-II service mode (the first request byte).
type Mode byte

const (
	ModeCurrentData   Mode = 0x01
	ModeFreezeFrame   Mode = 0x02
	ModeStoredDTCs    Mode = 0x03
	ModeClearDTCs     Mode = 0x04
	ModePendingDTCs   Mode = 0x07
	ModePermanentDTCs Mode = 0x0A
	ModeVehicleInfo   Mode = 0x09
)

// Reading is a decoded response to a Mode 1/2 PID request.
type Reading struct {
	Name  string
	Value float64
	Unit  string
}

// decodeFunc converts a raw PID response payload into a typed Reading.
type decodeFunc func(data []byte) (Reading, error)

// pidEntry describes one supported PID: its expected payload length and how
// to decode it.
type pidEntry struct {
	name   string
	length int
	decode decodeFunc
}

// pidTable is the fixed PID -> (length, decode) mapping. It is
// intentionally small and stateless: every entry is pure data plus a pure
// function.
var pidTable = map[byte]pidEntry{
	0x04: {"EngineLoad", 1, decodePercent},
	0x05: {"CoolantTemperature", 1, decodeTemperature},
	0x0C: {"EngineRpm", 2, decodeRPM},
	0x0D: {"VehicleSpeed", 1, decodeSpeed},
	0x0F: {"IntakeAirTemperature", 1, decodeTemperature},
	0x10: {"MafAirFlowRate", 2, decodeMAF},
	0x11: {"ThrottlePosition", 1, decodePercent},
	0x2F: {"FuelLevel", 1, decodePercent},
	0x5C: {"EngineOilTemperature", 1, decodeTemperatureOffset40},
}

// lookup returns the table entry for pid, or false if the PID is not
// recognized.
func lookup(pid byte) (pidEntry, bool) {
	e, ok := pidTable[pid]
	return e, ok
}

func obdErr(msg string) error {
	return diagstack.NewError(diagstack.KindObd, msg)
}
