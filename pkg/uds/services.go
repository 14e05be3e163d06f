package uds

import (
	"encoding/binary"

	"github.com/diagstack/diagstack"
)

// ChangeSession issues DiagnosticSessionControl and updates the local
// session status on a positive response.
func (e *Engine) ChangeSession(session SessionType) error {
	resp, err := e.request(SIDDiagnosticSessionControl, []byte{byte(session)})
	if err != nil {
		return err
	}
	if len(resp) < 2 || SessionType(resp[1]) != session {
		return diagstack.NewError(diagstack.KindInvalidParameter, "session echo mismatch")
	}
	e.session.SessionType = session
	if session == SessionDefault {
		e.session.SecurityLevel = 0
	}
	e.session.touch(e.now())
	return nil
}

// ECUReset issues ECUReset with the given reset type.
func (e *Engine) ECUReset(resetType byte) error {
	resp, err := e.request(SIDECUReset, []byte{resetType})
	if err != nil {
		return err
	}
	if len(resp) < 2 || resp[1] != resetType {
		return diagstack.NewError(diagstack.KindInvalidParameter, "reset echo mismatch")
	}
	return nil
}

// ReadDataByIdentifier reads the data associated with did.
func (e *Engine) ReadDataByIdentifier(did uint16) ([]byte, error) {
	req := make([]byte, 2)
	binary.BigEndian.PutUint16(req, did)
	resp, err := e.request(SIDReadDataByIdentifier, req)
	if err != nil {
		return nil, err
	}
	if len(resp) < 3 || binary.BigEndian.Uint16(resp[1:3]) != did {
		return nil, diagstack.NewError(diagstack.KindInvalidParameter, "did echo mismatch")
	}
	return resp[3:], nil
}

// WriteDataByIdentifier writes data to did.
func (e *Engine) WriteDataByIdentifier(did uint16, data []byte) error {
	req := make([]byte, 2, 2+len(data))
	binary.BigEndian.PutUint16(req, did)
	req = append(req, data...)
	resp, err := e.request(SIDWriteDataByIdentifier, req)
	if err != nil {
		return err
	}
	if len(resp) < 3 || binary.BigEndian.Uint16(resp[1:3]) != did {
		return diagstack.NewError(diagstack.KindInvalidParameter, "did echo mismatch")
	}
	return nil
}

// SeedToKey computes a security key from a seed supplied by the ECU.
type SeedToKey func(seed []byte) []byte

// SecurityAccess runs the RequestSeed/SendKey handshake for the given
// level using the caller-supplied pure function.
func (e *Engine) SecurityAccess(level uint8, seedToKey SeedToKey) error {
	seedResp, err := e.request(SIDSecurityAccess, []byte{2*level - 1})
	if err != nil {
		return err
	}
	if len(seedResp) < 2 {
		return diagstack.NewError(diagstack.KindInvalidParameter, "missing seed")
	}
	seed := seedResp[2:]
	key := seedToKey(seed)

	keyReq := append([]byte{2 * level}, key...)
	_, err = e.request(SIDSecurityAccess, keyReq)
	if err != nil {
		return err
	}
	e.session.SecurityLevel = level
	return nil
}

// RoutineControl starts/stops/requests-results-of a routine.
func (e *Engine) RoutineControl(sub byte, routineID uint16, data []byte) ([]byte, error) {
	req := make([]byte, 3, 3+len(data))
	req[0] = sub
	binary.BigEndian.PutUint16(req[1:3], routineID)
	req = append(req, data...)
	resp, err := e.request(SIDRoutineControl, req)
	if err != nil {
		return nil, err
	}
	if len(resp) < 4 || resp[1] != sub || binary.BigEndian.Uint16(resp[2:4]) != routineID {
		return nil, diagstack.NewError(diagstack.KindInvalidParameter, "routine echo mismatch")
	}
	return resp[4:], nil
}

// IOControlByIdentifier controls an input/output DID.
func (e *Engine) IOControlByIdentifier(did uint16, controlParam byte, state []byte) ([]byte, error) {
	req := make([]byte, 3, 3+len(state))
	binary.BigEndian.PutUint16(req, did)
	req[2] = controlParam
	req = append(req, state...)
	resp, err := e.request(SIDInputOutputControlByID, req)
	if err != nil {
		return nil, err
	}
	if len(resp) < 3 || binary.BigEndian.Uint16(resp[1:3]) != did {
		return nil, diagstack.NewError(diagstack.KindInvalidParameter, "did echo mismatch")
	}
	return resp[3:], nil
}

// ReadMemoryByAddress reads size bytes from addr. addrFmt/sizeFmt are the
// ISO 14229 address-and-length-format bytes (nibble-packed byte counts).
func (e *Engine) ReadMemoryByAddress(addrFmt, sizeFmt byte, addr, size []byte) ([]byte, error) {
	req := append([]byte{addrFmt, sizeFmt}, addr...)
	req = append(req, size...)
	resp, err := e.request(SIDReadMemoryByAddress, req)
	if err != nil {
		return nil, err
	}
	return resp[1:], nil
}

// WriteMemoryByAddress writes data to addr.
func (e *Engine) WriteMemoryByAddress(addrFmt, sizeFmt byte, addr, size, data []byte) error {
	req := append([]byte{addrFmt, sizeFmt}, addr...)
	req = append(req, size...)
	req = append(req, data...)
	resp, err := e.request(SIDWriteMemoryByAddress, req)
	if err != nil {
		return err
	}
	if len(resp) < 2+len(addr)+len(size) {
		return diagstack.NewError(diagstack.KindInvalidParameter, "write echo too short")
	}
	return nil
}

// TesterPresent sends TesterPresent. When suppressPositive is true (the
// usual cadence-holding case) the ECU is instructed not to answer and this
// call never blocks on a response.
func (e *Engine) TesterPresent(suppressPositive bool) error {
	if !e.open {
		return diagstack.Wrap(diagstack.KindNotInitialized, "engine not open", nil)
	}
	sub := byte(0x00)
	if suppressPositive {
		sub = 0x80
	}
	e.session.touch(e.now())
	if suppressPositive {
		if err := e.transport.Send([]byte{SIDTesterPresent, sub}); err != nil {
			return err
		}
		e.session.TesterPresentSent = true
		return nil
	}
	resp, err := e.request(SIDTesterPresent, []byte{sub})
	if err != nil {
		return err
	}
	if len(resp) < 1 {
		return diagstack.NewError(diagstack.KindInvalidParameter, "missing tester present response")
	}
	e.session.TesterPresentSent = true
	return nil
}

// ClearDiagnosticInformation clears stored DTCs matching groupOfDTC (a
// 3-byte group, 0xFFFFFF for all).
func (e *Engine) ClearDiagnosticInformation(groupOfDTC [3]byte) error {
	_, err := e.request(SIDClearDiagnosticInformation, groupOfDTC[:])
	return err
}

// ReadDTCInformation issues reportDTCByStatusMask (sub-function 0x02) and
// returns the raw DTC-and-status records.
func (e *Engine) ReadDTCInformation(statusMask byte) ([]byte, error) {
	resp, err := e.request(SIDReadDTCInformation, []byte{0x02, statusMask})
	if err != nil {
		return nil, err
	}
	if len(resp) < 3 {
		return nil, diagstack.NewError(diagstack.KindInvalidParameter, "short ReadDTCInformation response")
	}
	return resp[3:], nil
}
