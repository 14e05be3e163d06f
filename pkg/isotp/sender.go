package isotp

import (
	"time"

	"github.com/diagstack/diagstack"
)

// Send segments payload into SF/FF/CF frames and drives it across the Port
// under FC-governed pacing: emit the header frame, wait for the peer's flow
// control, stream fixed-size chunks, honor the block-size window. It blocks
// until the transfer completes or a timeout/protocol fault aborts it.
func (t *Transport) Send(payload []byte) error {
	if len(payload) == 0 {
		return diagstack.NewError(diagstack.KindInvalidParameter, "payload must not be empty")
	}
	if len(payload) > 4095 {
		return diagstack.NewError(diagstack.KindInvalidParameter, "payload exceeds 4095 bytes")
	}

	sfBudget, ffBudget, cfBudget := t.cfg.Address.budgets()

	if len(payload) <= sfBudget {
		return t.sendSingleFrame(payload)
	}

	blockSize, stmin, err := t.sendFirstFrame(payload, ffBudget)
	if err != nil {
		return err
	}

	remaining := payload[ffBudget:]
	seq := byte(1)
	sentSinceFC := 0

	for len(remaining) > 0 {
		n := cfBudget
		if n > len(remaining) {
			n = len(remaining)
		}
		cf := append([]byte{byte(pciConsecutiveFrame)<<4 | (seq & 0xF)}, remaining[:n]...)
		if err := t.sendFrame(t.withExtension(cf)); err != nil {
			return err
		}
		remaining = remaining[n:]
		seq = (seq + 1) & 0xF
		sentSinceFC++

		if len(remaining) == 0 {
			break
		}

		if stmin > 0 {
			time.Sleep(stmin)
		}

		if blockSize > 0 && sentSinceFC == int(blockSize) {
			bs, st, err := t.waitFlowControl()
			if err != nil {
				return err
			}
			blockSize = bs
			stmin = st
			sentSinceFC = 0
		}
	}
	return nil
}

func (t *Transport) sendSingleFrame(payload []byte) error {
	sf := append([]byte{byte(pciSingleFrame)<<4 | byte(len(payload))}, payload...)
	return t.sendFrame(t.withExtension(sf))
}

func (t *Transport) sendFirstFrame(payload []byte, ffBudget int) (blockSize uint8, stmin time.Duration, err error) {
	hdr := encodeFF(len(payload))
	ff := append([]byte{hdr[0], hdr[1]}, payload[:ffBudget]...)
	if err := t.sendFrame(t.withExtension(ff)); err != nil {
		return 0, 0, err
	}
	return t.waitFlowControl()
}

// waitFlowControl blocks for an FC frame from rx_id. WAIT renews the N_Bs
// deadline; OVFL is a hard abort, retry is left to the caller.
func (t *Transport) waitFlowControl() (blockSize uint8, stmin time.Duration, err error) {
	deadline := time.Now().Add(t.cfg.Timing.NBs)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, 0, diagstack.ErrTimeout
		}
		t.port.SetTimeout(remaining)
		frame, err := t.port.Receive()
		if err != nil {
			return 0, 0, diagstack.ErrTimeout
		}
		if !isFlowControlWith(frame, t.cfg.Address.RxID) {
			continue
		}
		data, err := t.stripExtension(frame.Data)
		if err != nil {
			return 0, 0, err
		}
		if len(data) < 3 || pciType(data[0]>>4) != pciFlowControl {
			return 0, 0, isotpErr("expected flow control frame")
		}
		switch flowStatus(data[0] & 0xF) {
		case flowContinueToSend:
			return data[1], decodeSTmin(data[2]), nil
		case flowWait:
			deadline = time.Now().Add(t.cfg.Timing.NBs)
			continue
		case flowOverflow:
			return 0, 0, isotpErr("flow control overflow")
		default:
			return 0, 0, isotpErr("invalid flow status")
		}
	}
}
