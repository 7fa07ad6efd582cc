package metasocket

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/Zereker/metasocket/metadata"
)

// frameLengthSize is the size of the big-endian length prefix of a frame.
const frameLengthSize = 4

// ErrMalformedFrame is returned when a frame payload cannot be parsed.
var ErrMalformedFrame = errors.New("malformed frame")

// FrameCodec reads and writes Frames.
//
// Wire layout, after a 4-byte big-endian payload length:
//
//	uvarint pair count
//	repeated: uvarint name length, name, uvarint value length, value
//	body (rest of the payload)
//
// The header block is exactly what metadata.Serialize produces and what
// metadata.FromWire consumes. Messages that are not Frames are sent with an
// empty header block.
type FrameCodec struct {
	maxFrameSize int
}

// NewFrameCodec returns a FrameCodec rejecting payloads larger than
// maxFrameSize. A non-positive size selects the default of 1MB.
func NewFrameCodec(maxFrameSize int) *FrameCodec {
	if maxFrameSize <= 0 {
		maxFrameSize = defaultMaxPackageLength
	}
	return &FrameCodec{maxFrameSize: maxFrameSize}
}

// Decode reads one frame. The returned message is a *Frame with a Raw header.
func (c *FrameCodec) Decode(r io.Reader) (Message, error) {
	var prefix [frameLengthSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}

	size := binary.BigEndian.Uint32(prefix[:])
	if uint64(size) > uint64(c.maxFrameSize) {
		return nil, errors.Wrapf(ErrMessageTooLarge, "frame of %d bytes", size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errors.Wrap(err, "read frame payload")
	}

	f, err := parseFrame(payload)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func parseFrame(payload []byte) (*Frame, error) {
	count, n := binary.Uvarint(payload)
	if n <= 0 {
		return nil, errors.Wrap(ErrMalformedFrame, "pair count")
	}
	rest := payload[n:]

	// Each pair takes at least two bytes, which bounds count before allocating.
	if count > uint64(len(rest)/2) {
		return nil, errors.Wrapf(ErrMalformedFrame, "%d pairs in %d bytes", count, len(rest))
	}

	pairs := make([][]byte, 0, 2*count)
	for i := uint64(0); i < 2*count; i++ {
		field, tail, err := readField(rest)
		if err != nil {
			return nil, errors.Wrapf(err, "pair %d", i/2)
		}
		pairs = append(pairs, field)
		rest = tail
	}

	header, err := metadata.FromWire(pairs)
	if err != nil {
		return nil, err
	}
	return &Frame{Header: header, Payload: rest}, nil
}

func readField(b []byte) (field, rest []byte, err error) {
	l, n := binary.Uvarint(b)
	if n <= 0 {
		return nil, nil, errors.Wrap(ErrMalformedFrame, "field length")
	}
	b = b[n:]
	if l > uint64(len(b)) {
		return nil, nil, errors.Wrapf(ErrMalformedFrame, "field of %d bytes, %d left", l, len(b))
	}
	return b[:l:l], b[l:], nil
}

// Encode writes a message as a frame. A Frame whose header is Raw cannot be
// encoded and fails with an error matching metadata.ErrModeViolation.
func (c *FrameCodec) Encode(msg Message) ([]byte, error) {
	var pairs [][]byte
	if f, ok := msg.(*Frame); ok && f.Header != nil {
		var err error
		if pairs, err = f.Header.Serialize(); err != nil {
			return nil, errors.Wrap(err, "encode frame header")
		}
	}

	body := msg.Body()
	size := uvarintLen(uint64(len(pairs)/2)) + len(body)
	for _, p := range pairs {
		size += uvarintLen(uint64(len(p))) + len(p)
	}
	if size > c.maxFrameSize {
		return nil, errors.Wrapf(ErrMessageTooLarge, "frame of %d bytes", size)
	}

	buf := make([]byte, frameLengthSize, frameLengthSize+size)
	binary.BigEndian.PutUint32(buf, uint32(size))
	buf = binary.AppendUvarint(buf, uint64(len(pairs)/2))
	for _, p := range pairs {
		buf = binary.AppendUvarint(buf, uint64(len(p)))
		buf = append(buf, p...)
	}
	return append(buf, body...), nil
}

func uvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}
