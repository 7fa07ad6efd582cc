package metasocket

import (
	"io"

	"github.com/Zereker/metasocket/metadata"
)

// Message is the interface for messages transmitted over the connection.
type Message interface {
	// Length returns the length of the message body.
	Length() int
	// Body returns the raw message data.
	Body() []byte
}

// Codec is the interface for message encoding and decoding.
//
// Decode reads from an io.Reader so the codec decides how many bytes make up
// one message, which is how TCP stream reassembly is handled.
type Codec interface {
	// Decode reads and decodes a complete message from the reader.
	Decode(r io.Reader) (Message, error)
	// Encode encodes a Message into raw bytes for transmission.
	Encode(Message) ([]byte, error)
}

// Frame is a message carrying a metadata header block ahead of its payload.
//
// Frames read from a connection have a Raw header: values are decoded on
// first access and the header cannot be serialized again. To forward values,
// read them through their keys and put them on a new container.
type Frame struct {
	Header  *metadata.Metadata
	Payload []byte
}

// NewFrame returns a frame with the given header and payload. A nil header
// is sent as an empty header block.
func NewFrame(header *metadata.Metadata, payload []byte) *Frame {
	return &Frame{Header: header, Payload: payload}
}

// Length returns the payload length.
func (f *Frame) Length() int { return len(f.Payload) }

// Body returns the payload.
func (f *Frame) Body() []byte { return f.Payload }
