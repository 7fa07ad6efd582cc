// Package metasocket is a TCP transport for framed messages that carry a
// metadata header block.
//
// A Conn runs a read loop and a write loop over one TCP connection. Incoming
// bytes are cut into messages by a Codec, by default a FrameCodec, and each
// message is handed to the configured callback. Outgoing messages are encoded
// by the caller's goroutine and queued for the write loop.
package metasocket

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Zereker/metasocket/metadata"
)

// Errors returned by connection operations.
var (
	// ErrInvalidOnMessage is returned when no message handler is provided.
	ErrInvalidOnMessage = errors.New("invalid on message callback")
	// ErrMessageTooLarge is returned when a message exceeds the maximum allowed size.
	ErrMessageTooLarge = errors.New("message too large")
	// ErrConnectionClosed is returned when operating on a closed connection.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrBufferFull is returned by Write when the send queue is full. The
	// message was not queued; use WriteBlocking or WriteTimeout to wait.
	ErrBufferFull = errors.New("send buffer full")
)

// Default configuration values.
const (
	defaultBufferSize       = 1
	defaultMaxPackageLength = 1024 * 1024
	defaultHeartbeat        = 30 * time.Second
)

// limitedReader fails with ErrMessageTooLarge once more than the limit has
// been read since the last reset.
type limitedReader struct {
	r         io.Reader
	remaining int64
}

func newLimitedReader(r io.Reader, limit int64) *limitedReader {
	return &limitedReader{r: r, remaining: limit}
}

func (l *limitedReader) Read(p []byte) (n int, err error) {
	if l.remaining <= 0 {
		return 0, ErrMessageTooLarge
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err = l.r.Read(p)
	l.remaining -= int64(n)
	return
}

// reset only touches the counter; the buffered reader underneath keeps
// whatever it has already read ahead.
func (l *limitedReader) reset(limit int64) {
	l.remaining = limit
}

// Conn is one framed TCP connection.
type Conn struct {
	rawConn       *net.TCPConn
	reader        *bufio.Reader
	limitedReader *limitedReader
	logger        Logger

	opts options

	sendMsg chan []byte
	closed  atomic.Bool
	cancel  context.CancelFunc
}

// NewConn wraps conn. A message handler is required, set with
// OnMessageOption or OnFrameOption.
func NewConn(conn *net.TCPConn, opt ...Option) (*Conn, error) {
	var opts options
	for _, o := range opt {
		o(&opts)
	}

	if err := checkOptions(&opts); err != nil {
		return nil, err
	}

	return newConnWithOptions(conn, opts), nil
}

// checkOptions validates opts and fills in defaults.
func checkOptions(opts *options) error {
	if opts.onMessage == nil {
		return ErrInvalidOnMessage
	}
	if opts.bufferSize <= 0 {
		opts.bufferSize = defaultBufferSize
	}
	if opts.maxReadLength <= 0 {
		opts.maxReadLength = defaultMaxPackageLength
	}
	if opts.heartbeat <= 0 {
		opts.heartbeat = defaultHeartbeat
	}
	if opts.codec == nil {
		opts.codec = NewFrameCodec(opts.maxReadLength - frameLengthSize)
	}
	if opts.onError == nil {
		opts.onError = func(error) ErrorAction { return Disconnect }
	}
	if opts.logger == nil {
		opts.logger = defaultLogger()
	}
	return nil
}

func newConnWithOptions(c *net.TCPConn, opts options) *Conn {
	reader := bufio.NewReaderSize(c, opts.maxReadLength)
	return &Conn{
		rawConn:       c,
		reader:        reader,
		limitedReader: newLimitedReader(reader, int64(opts.maxReadLength)),
		logger:        opts.logger,
		opts:          opts,
		sendMsg:       make(chan []byte, opts.bufferSize),
	}
}

// Run starts the read and write loops and blocks until one of them fails or
// ctx is canceled. The connection is closed when Run returns.
func (c *Conn) Run(ctx context.Context) error {
	c.logger.Info("connection established", "addr", c.Addr())
	c.logger.Debug("connection options", "addr", c.Addr(),
		"buffer_size", c.opts.bufferSize,
		"max_read_length", c.opts.maxReadLength,
		"heartbeat", c.opts.heartbeat)

	ctx, c.cancel = context.WithCancel(ctx)
	group, child := errgroup.WithContext(ctx)

	group.Go(func() error {
		return c.readLoop(child)
	})
	group.Go(func() error {
		return c.writeLoop(child)
	})
	group.Go(func() error {
		// A blocked read only returns once the socket is closed.
		<-child.Done()
		c.closeConn()
		return nil
	})

	err := group.Wait()
	c.closeConn()

	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Info("connection closed with error", "addr", c.Addr(), "error", err)
	} else {
		c.logger.Info("connection closed", "addr", c.Addr())
	}
	return err
}

// Close cancels Run and closes the TCP connection. It is safe to call more
// than once.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	return c.rawConn.Close()
}

// IsClosed reports whether the connection has been closed.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// Addr returns the remote address.
func (c *Conn) Addr() net.Addr {
	return c.rawConn.RemoteAddr()
}

// Write encodes message and queues it without blocking. It returns
// ErrBufferFull if the queue is full.
func (c *Conn) Write(message Message) error {
	data, err := c.encode(message)
	if err != nil {
		return err
	}

	select {
	case c.sendMsg <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// WriteBlocking encodes message and waits until it is queued or ctx is done.
func (c *Conn) WriteBlocking(ctx context.Context, message Message) error {
	data, err := c.encode(message)
	if err != nil {
		return err
	}

	select {
	case c.sendMsg <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WriteTimeout encodes message and waits up to timeout for it to be queued,
// returning ErrBufferFull when the wait expires.
func (c *Conn) WriteTimeout(message Message, timeout time.Duration) error {
	data, err := c.encode(message)
	if err != nil {
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case c.sendMsg <- data:
		return nil
	case <-timer.C:
		return ErrBufferFull
	}
}

// WriteFrame sends payload with header, waiting until it is queued or ctx is
// done. header must be Typed or nil.
func (c *Conn) WriteFrame(ctx context.Context, header *metadata.Metadata, payload []byte) error {
	return c.WriteBlocking(ctx, NewFrame(header, payload))
}

func (c *Conn) encode(message Message) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrConnectionClosed
	}
	return c.opts.codec.Encode(message)
}

// readLoop decodes messages and hands them to the handler until ctx is done
// or an error is not suppressed by onError.
func (c *Conn) readLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_ = c.rawConn.SetReadDeadline(time.Now().Add(c.opts.heartbeat * 2))
		c.limitedReader.reset(int64(c.opts.maxReadLength))

		message, err := c.opts.codec.Decode(c.limitedReader)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Debug("read error", "addr", c.Addr(), "error", err)
			if c.opts.onError(err) == Disconnect {
				return err
			}
			continue
		}

		if f, ok := message.(*Frame); ok {
			c.logger.Debug("frame received", "addr", c.Addr(), "length", f.Length(), "header", f.Header)
		}

		if err = c.opts.onMessage(message); err != nil {
			return err
		}
	}
}

// writeLoop drains the send queue until ctx is done or a write fails.
func (c *Conn) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data := <-c.sendMsg:
			if err := c.write(data); err != nil {
				return err
			}
		}
	}
}

// write sends data with a deadline. Errors suppressed by onError are dropped.
func (c *Conn) write(data []byte) error {
	_ = c.rawConn.SetWriteDeadline(time.Now().Add(c.opts.heartbeat * 2))

	if _, err := c.rawConn.Write(data); err != nil {
		c.logger.Debug("write error", "addr", c.Addr(), "error", err)
		if c.opts.onError(err) == Disconnect {
			return err
		}
	}
	return nil
}

func (c *Conn) closeConn() {
	c.closed.Store(true)
	_ = c.rawConn.Close()
}
