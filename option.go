package metasocket

import (
	"time"

	"github.com/pkg/errors"
)

// ErrorAction defines the action to take when an error occurs.
type ErrorAction int

const (
	// Disconnect closes the connection when an error occurs.
	Disconnect ErrorAction = iota
	// Continue suppresses the error and continues processing.
	Continue
)

// ErrNotFrame is returned by a frame handler when the codec produced a
// message that is not a *Frame.
var ErrNotFrame = errors.New("message is not a frame")

// options holds the configuration for a connection.
type options struct {
	codec  Codec
	logger Logger

	onMessage func(message Message) error
	// onError returns Disconnect to close the connection, Continue to suppress the error.
	onError func(error) ErrorAction

	bufferSize    int           // size of buffered channel
	maxReadLength int           // maximum size of a single message
	heartbeat     time.Duration // read/write deadlines are twice this
}

// Option is a function that configures connection options.
type Option func(*options)

// CustomCodecOption sets the message codec. Without it, connections use a
// FrameCodec sized to MessageMaxSize.
func CustomCodecOption(codec Codec) Option {
	return func(o *options) {
		o.codec = codec
	}
}

// BufferSizeOption sets the size of the send channel buffer.
func BufferSizeOption(size int) Option {
	return func(o *options) {
		o.bufferSize = size
	}
}

// HeartbeatOption sets the heartbeat interval. A connection with no traffic
// for twice the interval is closed.
func HeartbeatOption(heartbeat time.Duration) Option {
	return func(o *options) {
		o.heartbeat = heartbeat
	}
}

// MessageMaxSize sets the largest message, in bytes, a connection will read.
func MessageMaxSize(size int) Option {
	return func(o *options) {
		o.maxReadLength = size
	}
}

// OnErrorOption sets the error callback invoked on read/write errors.
// Return Disconnect to close the connection, or Continue to suppress the error.
func OnErrorOption(cb func(error) ErrorAction) Option {
	return func(o *options) {
		o.onError = cb
	}
}

// OnMessageOption sets the callback invoked for each received message.
// Either this or OnFrameOption is required.
func OnMessageOption(cb func(Message) error) Option {
	return func(o *options) {
		o.onMessage = cb
	}
}

// OnFrameOption sets a callback invoked for each received Frame. A message
// that is not a *Frame fails the read loop with ErrNotFrame.
func OnFrameOption(cb func(*Frame) error) Option {
	return OnMessageOption(func(m Message) error {
		f, ok := m.(*Frame)
		if !ok {
			return errors.Wrapf(ErrNotFrame, "got %T", m)
		}
		return cb(f)
	})
}

// LoggerOption sets the logger. If not set, slog.Default() is used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
