package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/Zereker/metasocket"
	"github.com/Zereker/metasocket/internal/config"
	"github.com/Zereker/metasocket/metadata"
	"github.com/Zereker/metasocket/metadata/codecs"
	"go.opentelemetry.io/otel/trace"
)

var (
	requestIDKey = metadata.NewKey[string]("x-request-id", metadata.String{})
	traceKey     = metadata.NewKey[trace.SpanContext](codecs.TraceParentKey, codecs.TraceParent{})
	serverKey    = metadata.NewKey[string]("x-served-by", metadata.String{})
)

// echo replies with the request payload. Request ids and the trace parent
// are copied onto the reply header, followed by the server's own headers.
func echo(serverHeaders *metadata.Metadata) func(*metasocket.Conn, *metasocket.Frame) error {
	return func(c *metasocket.Conn, f *metasocket.Frame) error {
		reply := metadata.New()

		for id, err := range metadata.GetAll(f.Header, requestIDKey) {
			if err != nil {
				return err
			}
			metadata.Put(reply, requestIDKey, id)
		}

		sc, ok, err := metadata.Get(f.Header, traceKey)
		if err != nil {
			slog.Warn("dropping malformed traceparent", "addr", c.Addr(), "error", err)
		} else if ok {
			metadata.Put(reply, traceKey, sc)
		}

		if err := reply.Merge(serverHeaders); err != nil {
			return err
		}
		return c.Write(metasocket.NewFrame(reply, f.Body()))
	}
}

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	addr, err := net.ResolveTCPAddr("tcp", cfg.Addr)
	if err != nil {
		slog.Error("failed to resolve addr", "addr", cfg.Addr, "error", err)
		os.Exit(1)
	}

	server, err := metasocket.New(addr, metasocket.ServerShutdownTimeoutOption(cfg.ShutdownTimeout))
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	hostname, _ := os.Hostname()
	serverHeaders := metadata.New()
	metadata.Put(serverHeaders, serverKey, hostname)

	handler := metasocket.FrameHandler(echo(serverHeaders),
		metasocket.BufferSizeOption(cfg.BufferSize),
		metasocket.MessageMaxSize(cfg.MaxFrameSize),
		metasocket.HeartbeatOption(cfg.Heartbeat),
		metasocket.OnErrorOption(func(err error) metasocket.ErrorAction {
			slog.Error("connection error", "error", err)
			return metasocket.Disconnect
		}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Serve(ctx, handler); err != nil && ctx.Err() == nil {
		slog.Error("server error", "error", err)
	}
}
