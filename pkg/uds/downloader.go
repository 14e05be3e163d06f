package uds

import (
	"github.com/diagstack/diagstack"
	"github.com/diagstack/diagstack/internal/crc"
)

// BlockValidator is invoked after each TransferData block with the bytes
// just sent and the response tail (everything after blockSeq). Returning an
// error aborts the download with KindUds("validation").
type BlockValidator func(sent []byte, responseTail []byte) error

// Downloader drives a RequestDownload -> TransferData* -> RequestTransferExit
// sequence. It borrows the Engine for the lifetime of one download; it does
// not own it.
type Downloader struct {
	engine       *Engine
	maxBlockSize int
	blockSeq     byte
	done         bool
}

// RequestDownload opens a download of size bytes at the given memory
// address/format, returning a Downloader bound to max_block_size reported
// by the ECU.
func (e *Engine) RequestDownload(dataFormat, addrAndLenFmt byte, addr, size []byte) (*Downloader, error) {
	req := append([]byte{dataFormat, addrAndLenFmt}, addr...)
	req = append(req, size...)
	resp, err := e.request(SIDRequestDownload, req)
	if err != nil {
		return nil, err
	}
	if len(resp) < 2 {
		return nil, diagstack.NewError(diagstack.KindInvalidParameter, "short RequestDownload response")
	}
	lenFmt := resp[1] >> 4
	if len(resp) < int(2+lenFmt) {
		return nil, diagstack.NewError(diagstack.KindInvalidParameter, "truncated maxBlockLength")
	}
	maxBlockLen := beUint(resp[2 : 2+lenFmt])
	return &Downloader{engine: e, maxBlockSize: int(maxBlockLen), blockSeq: 1}, nil
}

func beUint(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}

// TransferData sends one block of data. Each block carries at most
// max_block_size-2 payload bytes (subtracting the SID and block sequence
// counter bytes). validate, if non-nil, is invoked with the bytes just sent
// and the response tail.
func (d *Downloader) TransferData(data []byte, validate BlockValidator) error {
	if d.done {
		return udsErr("downloader already finished")
	}
	maxPayload := d.maxBlockSize - 2
	if maxPayload < 1 {
		maxPayload = 1
	}
	if len(data) > maxPayload {
		data = data[:maxPayload]
	}
	req := append([]byte{d.blockSeq}, data...)
	resp, err := d.engine.request(SIDTransferData, req)
	if err != nil {
		return err
	}
	if len(resp) < 2 || resp[1] != d.blockSeq {
		return udsErr("block sequence mismatch")
	}
	if validate != nil {
		if err := validate(data, resp[2:]); err != nil {
			return diagstack.Wrap(diagstack.KindUds, "validation", err)
		}
	}
	d.blockSeq++
	return nil
}

// ChecksumValidator returns a BlockValidator that computes the CRC16-CCITT
// of the sent bytes and compares it against a big-endian checksum appended
// to the ECU's response tail, rejecting the block on mismatch.
func ChecksumValidator() BlockValidator {
	return func(sent []byte, responseTail []byte) error {
		if len(responseTail) < 2 {
			return diagstack.NewError(diagstack.KindChecksum, "missing block checksum")
		}
		got := uint16(responseTail[0])<<8 | uint16(responseTail[1])
		want := crc.Checksum(sent)
		if got != want {
			return diagstack.NewError(diagstack.KindChecksum, "block checksum mismatch")
		}
		return nil
	}
}

// RequestTransferExit terminates the download.
func (d *Downloader) RequestTransferExit() error {
	d.done = true
	_, err := d.engine.request(SIDRequestTransferExit, nil)
	return err
}

// MaxPayloadSize is the most data one TransferData call can carry.
func (d *Downloader) MaxPayloadSize() int {
	if d.maxBlockSize-2 < 1 {
		return 1
	}
	return d.maxBlockSize - 2
}

// DownloadAll chunks the full payload into MaxPayloadSize blocks, validating
// each with validate, and finishes with RequestTransferExit.
func (d *Downloader) DownloadAll(data []byte, validate BlockValidator) error {
	chunk := d.MaxPayloadSize()
	for len(data) > 0 {
		n := chunk
		if n > len(data) {
			n = len(data)
		}
		if err := d.TransferData(data[:n], validate); err != nil {
			return err
		}
		data = data[n:]
	}
	return d.RequestTransferExit()
}
