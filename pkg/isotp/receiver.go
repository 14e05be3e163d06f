package isotp

import (
	"github.com/diagstack/diagstack"
	"github.com/diagstack/diagstack/internal/ringbuf"
)

// Receive reassembles one ISO-TP payload from the Port, issuing Flow
// Control as required: classify the inbound PCI, allocate the destination
// buffer once the length is known, then accept a windowed stream of
// consecutive frames, re-arming flow control at each block boundary. It
// blocks until a full payload arrives or a timeout/protocol fault aborts
// reassembly.
func (t *Transport) Receive() ([]byte, error) {
	t.port.SetTimeout(t.cfg.ReceiveTimeout)
	frame, err := t.port.Receive()
	if err != nil {
		return nil, diagstack.ErrTimeout
	}
	data, err := t.stripExtension(frame.Data)
	if err != nil {
		return nil, err
	}
	if len(data) < 1 {
		return nil, isotpErr("empty frame")
	}

	switch pciType(data[0] >> 4) {
	case pciSingleFrame:
		return t.receiveSingleFrame(data)
	case pciFirstFrame:
		return t.receiveMultiFrame(data)
	default:
		return nil, isotpErr("unexpected PCI for new transfer")
	}
}

func (t *Transport) receiveSingleFrame(data []byte) ([]byte, error) {
	length := int(data[0] & 0xF)
	if length == 0 || len(data)-1 < length {
		return nil, isotpErr("invalid single frame length")
	}
	return append([]byte(nil), data[1:1+length]...), nil
}

func (t *Transport) receiveMultiFrame(data []byte) ([]byte, error) {
	if len(data) < 2 {
		return nil, isotpErr("short first frame")
	}
	totalLength := decodeFF(data[0], data[1])
	if totalLength < 1 || totalLength > 4095 {
		return nil, isotpErr("invalid first frame length")
	}

	staging := ringbuf.New(totalLength + 1)
	ffPayload := data[2:]
	n := staging.Write(ffPayload)

	if err := t.sendFlowControl(flowContinueToSend); err != nil {
		return nil, err
	}

	expectedSeq := byte(1)
	sinceBlock := 0

	for n < totalLength {
		t.port.SetTimeout(t.cfg.Timing.NCr)
		frame, err := t.port.Receive()
		if err != nil {
			return nil, diagstack.ErrTimeout
		}
		cfData, err := t.stripExtension(frame.Data)
		if err != nil {
			return nil, err
		}
		if len(cfData) < 1 || pciType(cfData[0]>>4) != pciConsecutiveFrame {
			return nil, isotpErr("unexpected PCI while receiving consecutive frame")
		}
		seq := cfData[0] & 0xF
		if seq != expectedSeq {
			return nil, isotpErr("consecutive frame sequence mismatch")
		}
		n += staging.Write(cfData[1:])
		expectedSeq = (expectedSeq + 1) & 0xF
		sinceBlock++

		if n >= totalLength {
			break
		}
		if t.cfg.BlockSize > 0 && sinceBlock == int(t.cfg.BlockSize) {
			if err := t.sendFlowControl(flowContinueToSend); err != nil {
				return nil, err
			}
			sinceBlock = 0
		}
	}

	buf := make([]byte, totalLength)
	staging.Read(buf)
	return buf, nil
}

func (t *Transport) sendFlowControl(status flowStatus) error {
	fc := []byte{byte(pciFlowControl)<<4 | byte(status), t.cfg.BlockSize, encodeSTmin(t.cfg.STmin)}
	return t.sendFrame(t.withExtension(fc))
}
