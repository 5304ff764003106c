// Package protocol implements the byte-level encoding of the mouse file
// transfer protocol: command frames, the 6-byte transfer header and the
// reassembly of a pulled file from notification frames.
//
// All multi-byte integers are little-endian and unsigned.
package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Command codes sent as the leading bytes of a request.
var (
	CmdMTU   = []byte("mtu")
	CmdRead  = []byte("rd")
	CmdWrite = []byte("wr")
)

// HeaderSize is the length of a transfer header: 2-byte magic + u32 size.
const HeaderSize = 6

var (
	ErrShortFrame      = errors.New("frame too short")
	ErrBadCommand      = errors.New("unexpected command bytes")
	ErrPayloadTooLarge = errors.New("payload exceeds 32-bit size field")
)

// FramingError reports a malformed or unexpected frame.
type FramingError struct {
	Op  string
	Err error
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("protocol: %s: %v", e.Op, e.Err)
}

func (e *FramingError) Unwrap() error { return e.Err }

// EncodeMTUQuery returns the request frame for an MTU query.
func EncodeMTUQuery() []byte {
	return append([]byte(nil), CmdMTU...)
}

// DecodeMTU decodes the response to an MTU query.
func DecodeMTU(frame []byte) (uint32, error) {
	if len(frame) < 4 {
		return 0, &FramingError{Op: "decode mtu", Err: fmt.Errorf("%w: got %d bytes, want 4", ErrShortFrame, len(frame))}
	}
	return binary.LittleEndian.Uint32(frame), nil
}

// EncodeReadRequest returns the request frame asking the device to send its file.
func EncodeReadRequest() []byte {
	return append([]byte(nil), CmdRead...)
}

// PutHeader writes a transfer header for magic and size into buf, which must
// be at least HeaderSize bytes.
func PutHeader(buf, magic []byte, size uint32) {
	copy(buf[:2], magic)
	binary.LittleEndian.PutUint32(buf[2:HeaderSize], size)
}

// EncodeWriteRequest returns the complete write payload: "wr", the content
// size and the content itself. The transport chunks it.
func EncodeWriteRequest(content []byte) ([]byte, error) {
	if uint64(len(content)) > math.MaxUint32 {
		return nil, &FramingError{Op: "encode write", Err: fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(content))}
	}
	buf := make([]byte, HeaderSize, HeaderSize+len(content))
	PutHeader(buf, CmdWrite, uint32(len(content)))
	return append(buf, content...), nil
}

// ParseTransferHeader decodes the first frame of a pull response. The device
// answers a read with its own write framing, so the magic must be "wr".
// Returns the announced size and the payload bytes carried after the header.
func ParseTransferHeader(frame []byte) (uint32, []byte, error) {
	if len(frame) < HeaderSize {
		return 0, nil, &FramingError{Op: "parse header", Err: fmt.Errorf("%w: got %d bytes, want %d", ErrShortFrame, len(frame), HeaderSize)}
	}
	if !bytes.Equal(frame[:2], CmdWrite) {
		return 0, nil, &FramingError{Op: "parse header", Err: fmt.Errorf("%w: %q", ErrBadCommand, frame[:2])}
	}
	return binary.LittleEndian.Uint32(frame[2:HeaderSize]), frame[HeaderSize:], nil
}

// maxPrealloc bounds the buffer reserved up front from an untrusted header.
const maxPrealloc = 1 << 20

// Reassembler accumulates pulled frames until the announced size is reached.
// Bytes beyond the announced size in the final frame are discarded.
type Reassembler struct {
	size uint32
	buf  []byte
}

// NewReassembler starts reassembly from a header frame.
func NewReassembler(header []byte) (*Reassembler, error) {
	size, first, err := ParseTransferHeader(header)
	if err != nil {
		return nil, err
	}
	capacity := size
	if capacity > maxPrealloc {
		capacity = maxPrealloc
	}
	r := &Reassembler{
		size: size,
		buf:  make([]byte, 0, capacity),
	}
	r.Feed(first)
	return r, nil
}

// Size returns the announced payload size.
func (r *Reassembler) Size() uint32 { return r.size }

// Len returns the number of payload bytes accumulated so far.
func (r *Reassembler) Len() int { return len(r.buf) }

// Done reports whether the announced size has been reached.
func (r *Reassembler) Done() bool { return uint64(len(r.buf)) >= uint64(r.size) }

// Feed appends a frame and reports whether reassembly is complete.
func (r *Reassembler) Feed(frame []byte) bool {
	if remaining := int64(r.size) - int64(len(r.buf)); int64(len(frame)) > remaining {
		frame = frame[:remaining]
	}
	r.buf = append(r.buf, frame...)
	return r.Done()
}

// Bytes returns the reassembled payload, at most Size bytes.
func (r *Reassembler) Bytes() []byte { return r.buf }
