// Package uds implements the ISO 14229 request/response service engine atop
// an ISO-TP transport: session lifecycle, response-pending retransmission,
// security access, and multi-block download.
package uds

import (
	"fmt"

	"github.com/diagstack/diagstack"
)

// Service identifiers (SIDs).
const (
	SIDDiagnosticSessionControl      byte = 0x10
	SIDECUReset                      byte = 0x11
	SIDClearDiagnosticInformation    byte = 0x14
	SIDReadDTCInformation            byte = 0x19
	SIDReadDataByIdentifier          byte = 0x22
	SIDReadMemoryByAddress           byte = 0x23
	SIDSecurityAccess                byte = 0x27
	SIDWriteDataByIdentifier         byte = 0x2E
	SIDInputOutputControlByID        byte = 0x2F
	SIDRoutineControl                byte = 0x31
	SIDRequestDownload               byte = 0x34
	SIDTransferData                  byte = 0x36
	SIDRequestTransferExit           byte = 0x37
	SIDWriteMemoryByAddress          byte = 0x3D
	SIDTesterPresent                 byte = 0x3E

	negativeResponseSID byte = 0x7F
	positiveResponseBit byte = 0x40
)

// NRC is a single-byte Negative Response Code.
type NRC byte

const (
	NRCGeneralReject              NRC = 0x10
	NRCServiceNotSupported        NRC = 0x11
	NRCSubFunctionNotSupported    NRC = 0x12
	NRCIncorrectMessageLength     NRC = 0x13
	NRCConditionsNotCorrect       NRC = 0x22
	NRCRequestSequenceError       NRC = 0x24
	NRCRequestOutOfRange          NRC = 0x31
	NRCSecurityAccessDenied       NRC = 0x33
	NRCInvalidKey                 NRC = 0x35
	NRCExceededNumberOfAttempts   NRC = 0x36
	NRCResponsePending            NRC = 0x78
)

var nrcNames = map[NRC]string{
	NRCGeneralReject:            "generalReject",
	NRCServiceNotSupported:      "serviceNotSupported",
	NRCSubFunctionNotSupported:  "subFunctionNotSupported",
	NRCIncorrectMessageLength:   "incorrectMessageLengthOrInvalidFormat",
	NRCConditionsNotCorrect:     "conditionsNotCorrect",
	NRCRequestSequenceError:     "requestSequenceError",
	NRCRequestOutOfRange:        "requestOutOfRange",
	NRCSecurityAccessDenied:     "securityAccessDenied",
	NRCInvalidKey:               "invalidKey",
	NRCExceededNumberOfAttempts: "exceededNumberOfAttempts",
	NRCResponsePending:          "responsePending",
}

func (n NRC) String() string {
	if name, ok := nrcNames[n]; ok {
		return name
	}
	return fmt.Sprintf("NRC(x%02x)", byte(n))
}

func udsErr(msg string) error {
	return diagstack.NewError(diagstack.KindUds, msg)
}

// isPositiveResponse reports whether resp is a positive response to sid.
func isPositiveResponse(resp []byte, sid byte) bool {
	return len(resp) >= 1 && resp[0] == sid+positiveResponseBit
}

// negativeResponseNRC returns the NRC carried by a 0x7F negative response,
// and whether resp is in fact a negative response to sid.
func negativeResponseNRC(resp []byte, sid byte) (NRC, bool) {
	if len(resp) < 3 || resp[0] != negativeResponseSID || resp[1] != sid {
		return 0, false
	}
	return NRC(resp[2]), true
}
