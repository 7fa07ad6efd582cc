package metasocket

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Handler handles accepted TCP connections.
type Handler interface {
	// Handle is called on its own goroutine for each new connection and owns
	// it. ctx is canceled when the server stops.
	Handle(ctx context.Context, conn *net.TCPConn)
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(ctx context.Context, conn *net.TCPConn)

// Handle calls f(ctx, conn).
func (f HandlerFunc) Handle(ctx context.Context, conn *net.TCPConn) { f(ctx, conn) }

// FrameHandler runs a Conn on each accepted connection and calls onFrame for
// every frame it reads. The callback receives the Conn so it can reply.
func FrameHandler(onFrame func(c *Conn, f *Frame) error, opts ...Option) Handler {
	return HandlerFunc(func(ctx context.Context, tcpConn *net.TCPConn) {
		var c *Conn
		handler := OnFrameOption(func(f *Frame) error { return onFrame(c, f) })

		c, err := NewConn(tcpConn, append(opts[:len(opts):len(opts)], handler)...)
		if err != nil {
			_ = tcpConn.Close()
			return
		}
		_ = c.Run(ctx)
	})
}

// Server accepts TCP connections and dispatches them to a Handler.
type Server struct {
	listener        *net.TCPListener
	logger          Logger
	shutdownTimeout time.Duration

	mu          sync.Mutex
	shutdown    bool
	shutdownNow chan struct{} // skips the shutdown timeout
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// ServerLoggerOption sets the logger for the server.
func ServerLoggerOption(logger Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// ServerShutdownTimeoutOption sets how long Serve keeps the listener open
// after its context is canceled. Connections get the canceled context right
// away; the delay only postpones closing the listener. Default is 0.
func ServerShutdownTimeoutOption(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.shutdownTimeout = timeout
	}
}

// New creates a server bound to addr.
func New(addr *net.TCPAddr, opts ...ServerOption) (*Server, error) {
	listener, err := net.ListenTCP(addr.Network(), addr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		listener:    listener,
		logger:      slog.Default(),
		shutdownNow: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Serve accepts connections until ctx is canceled or Close is called, and
// returns ctx.Err() (nil after Close) or the accept error that stopped it.
func (s *Server) Serve(ctx context.Context, handler Handler) error {
	s.logger.Info("server started", "addr", s.listener.Addr())

	go func() {
		<-ctx.Done()

		if s.shutdownTimeout > 0 {
			s.logger.Info("graceful shutdown initiated", "timeout", s.shutdownTimeout)
			select {
			case <-time.After(s.shutdownTimeout):
			case <-s.shutdownNow:
				s.logger.Debug("shutdown timeout bypassed via Close()")
			}
		}

		s.setShutdown()
		// Unblocks Accept.
		_ = s.listener.SetDeadline(time.Now())
	}()

	for {
		conn, err := s.listener.AcceptTCP()
		if err != nil {
			if s.isShutdown() {
				s.logger.Info("server stopped", "addr", s.listener.Addr())
				return ctx.Err()
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			s.logger.Error("accept error", "error", err)
			return err
		}

		s.logger.Debug("accepted connection", "remote_addr", conn.RemoteAddr())
		_ = conn.SetNoDelay(true)
		go handler.Handle(ctx, conn)
	}
}

// Close stops the server, skipping any pending shutdown timeout.
func (s *Server) Close() error {
	s.setShutdown()

	select {
	case s.shutdownNow <- struct{}{}:
	default:
	}

	return s.listener.Close()
}

// Addr returns the listener's network address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *Server) setShutdown() {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
}

func (s *Server) isShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}
