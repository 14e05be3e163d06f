package obd

import (
	"github.com/diagstack/diagstack"
	"github.com/diagstack/diagstack/pkg/isotp"
)

// positiveResponseOffset is added to a request Mode to form its positive
// response Mode, mirroring UDS's SID+0x40 convention.
const positiveResponseOffset = 0x40

// Adapter issues Mode/PID requests over an ISO-TP transport and decodes the
// responses. It is stateless beyond the transport it borrows, and
// exclusively owns that transport.
type Adapter struct {
	transport *isotp.Transport
}

// New wraps an ISO-TP transport with OBD-II framing.
func New(transport *isotp.Transport) *Adapter {
	return &Adapter{transport: transport}
}

func (a *Adapter) request(mode Mode, pid byte, withPID bool) ([]byte, error) {
	var req []byte
	if withPID {
		req = []byte{byte(mode), pid}
	} else {
		req = []byte{byte(mode)}
	}
	if err := a.transport.Send(req); err != nil {
		return nil, err
	}
	resp, err := a.transport.Receive()
	if err != nil {
		return nil, err
	}
	if len(resp) < 1 || resp[0] != byte(mode)+positiveResponseOffset {
		return nil, diagstack.NewError(diagstack.KindObd, "unexpected response mode")
	}
	if withPID && (len(resp) < 2 || resp[1] != pid) {
		return nil, diagstack.NewError(diagstack.KindObd, "pid echo mismatch")
	}
	return resp, nil
}

// ReadSensorData issues a Mode 1 (current data) request for pid and decodes
// it using the fixed PID table.
func (a *Adapter) ReadSensorData(pid byte) (Reading, error) {
	entry, ok := lookup(pid)
	if !ok {
		return Reading{}, obdErr("unsupported pid")
	}
	resp, err := a.request(ModeCurrentData, pid, true)
	if err != nil {
		return Reading{}, err
	}
	payload := resp[2:]
	if len(payload) < entry.length {
		return Reading{}, obdErr("short PID payload")
	}
	reading, err := entry.decode(payload)
	if err != nil {
		return Reading{}, err
	}
	reading.Name = entry.name
	return reading, nil
}

// ReadStoredDTCs issues Mode 3 and decodes the stored DTC list.
func (a *Adapter) ReadStoredDTCs() ([]string, error) {
	resp, err := a.request(ModeStoredDTCs, 0, false)
	if err != nil {
		return nil, err
	}
	return DecodeDTCs(resp[1:])
}

// ReadPendingDTCs issues Mode 7 and decodes the pending DTC list.
func (a *Adapter) ReadPendingDTCs() ([]string, error) {
	resp, err := a.request(ModePendingDTCs, 0, false)
	if err != nil {
		return nil, err
	}
	return DecodeDTCs(resp[1:])
}

// ReadPermanentDTCs issues Mode 0x0A and decodes the permanent DTC list.
func (a *Adapter) ReadPermanentDTCs() ([]string, error) {
	resp, err := a.request(ModePermanentDTCs, 0, false)
	if err != nil {
		return nil, err
	}
	return DecodeDTCs(resp[1:])
}

// ClearDTCs issues Mode 4, clearing stored and pending DTCs.
func (a *Adapter) ClearDTCs() error {
	_, err := a.request(ModeClearDTCs, 0, false)
	return err
}

// vinPID is the Mode 9 PID for Vehicle Identification Number.
const vinPID = 0x02

// ReadVIN issues Mode 9 PID 0x02 and decodes the ASCII VIN. The response
// carries a data-item count byte before the ASCII payload, which this
// strips.
func (a *Adapter) ReadVIN() (string, error) {
	resp, err := a.request(ModeVehicleInfo, vinPID, true)
	if err != nil {
		return "", err
	}
	payload := resp[2:]
	if len(payload) < 1 {
		return "", obdErr("missing VIN data item count")
	}
	return string(payload[1:]), nil
}
