package metasocket

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/Zereker/metasocket/metadata"
)

func TestNewConn(t *testing.T) {
	serverConn, _ := createTestTCPPair(t)

	conn, err := NewConn(serverConn, OnMessageOption(func(Message) error { return nil }))
	if err != nil {
		t.Fatalf("NewConn failed: %v", err)
	}
	if conn.rawConn != serverConn {
		t.Error("rawConn not set correctly")
	}
	if _, ok := conn.opts.codec.(*FrameCodec); !ok {
		t.Errorf("default codec = %T, want *FrameCodec", conn.opts.codec)
	}
}

func TestNewConn_MissingOnMessage(t *testing.T) {
	serverConn, _ := createTestTCPPair(t)

	_, err := NewConn(serverConn, CustomCodecOption(&mockCodec{}))
	if err != ErrInvalidOnMessage {
		t.Errorf("expected ErrInvalidOnMessage, got %v", err)
	}
}

func TestCheckOptions_DefaultValues(t *testing.T) {
	opts := options{onMessage: func(Message) error { return nil }}
	if err := checkOptions(&opts); err != nil {
		t.Fatalf("checkOptions failed: %v", err)
	}

	if opts.bufferSize != defaultBufferSize {
		t.Errorf("bufferSize = %d, want %d", opts.bufferSize, defaultBufferSize)
	}
	if opts.maxReadLength != defaultMaxPackageLength {
		t.Errorf("maxReadLength = %d, want %d", opts.maxReadLength, defaultMaxPackageLength)
	}
	if opts.heartbeat != defaultHeartbeat {
		t.Errorf("heartbeat = %v, want %v", opts.heartbeat, defaultHeartbeat)
	}
	if fc := opts.codec.(*FrameCodec); fc.maxFrameSize != defaultMaxPackageLength-frameLengthSize {
		t.Errorf("maxFrameSize = %d", fc.maxFrameSize)
	}
	if opts.onError(errors.New("x")) != Disconnect {
		t.Error("default onError should disconnect")
	}
	if opts.logger == nil {
		t.Error("logger is nil")
	}
}

func TestConn_Write(t *testing.T) {
	serverConn, _ := createTestTCPPair(t)

	conn, err := NewConn(serverConn,
		CustomCodecOption(&mockCodec{}),
		OnMessageOption(func(Message) error { return nil }),
	)
	if err != nil {
		t.Fatalf("NewConn failed: %v", err)
	}

	if err := conn.Write(rawMessage{body: []byte("a")}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	// The buffer holds one message and nothing drains it.
	if err := conn.Write(rawMessage{body: []byte("b")}); err != ErrBufferFull {
		t.Errorf("expected ErrBufferFull, got %v", err)
	}
	if err := conn.WriteTimeout(rawMessage{body: []byte("c")}, 10*time.Millisecond); err != ErrBufferFull {
		t.Errorf("expected ErrBufferFull, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := conn.WriteBlocking(ctx, rawMessage{body: []byte("d")}); err != context.DeadlineExceeded {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestConn_Write_EncodeError(t *testing.T) {
	serverConn, _ := createTestTCPPair(t)

	encodeErr := errors.New("encode error")
	conn, err := NewConn(serverConn,
		CustomCodecOption(&mockCodec{encodeFunc: func(Message) ([]byte, error) { return nil, encodeErr }}),
		OnMessageOption(func(Message) error { return nil }),
	)
	if err != nil {
		t.Fatalf("NewConn failed: %v", err)
	}

	if err := conn.Write(rawMessage{}); err != encodeErr {
		t.Errorf("expected encodeErr, got %v", err)
	}
}

func TestConn_WriteFrame_RawHeader(t *testing.T) {
	serverConn, _ := createTestTCPPair(t)

	conn, err := NewConn(serverConn, OnFrameOption(func(*Frame) error { return nil }))
	if err != nil {
		t.Fatalf("NewConn failed: %v", err)
	}

	raw, err := metadata.FromWire(nil)
	if err != nil {
		t.Fatalf("FromWire failed: %v", err)
	}
	err = conn.WriteFrame(context.Background(), raw, []byte("x"))
	if !errors.Is(err, metadata.ErrIllegalState) {
		t.Errorf("expected ErrIllegalState, got %v", err)
	}
}

func TestConn_Closed(t *testing.T) {
	serverConn, _ := createTestTCPPair(t)

	conn, err := NewConn(serverConn, OnMessageOption(func(Message) error { return nil }))
	if err != nil {
		t.Fatalf("NewConn failed: %v", err)
	}

	if err := conn.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}
	if !conn.IsClosed() {
		t.Error("IsClosed = false after Close")
	}
	if err := conn.Write(rawMessage{}); err != ErrConnectionClosed {
		t.Errorf("expected ErrConnectionClosed, got %v", err)
	}
}

func TestConn_Run_ContextCanceled(t *testing.T) {
	serverConn, _ := createTestTCPPair(t)

	conn, err := NewConn(serverConn, OnMessageOption(func(Message) error { return nil }))
	if err != nil {
		t.Fatalf("NewConn failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- conn.Run(ctx)
	}()
	cancel()

	if err := waitErr(t, done); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if !conn.IsClosed() {
		t.Error("connection not closed after Run")
	}
}

func TestConn_Run_Frames(t *testing.T) {
	serverConn, clientConn := createTestTCPPair(t)

	received := make(chan *Frame, 1)
	conn, err := NewConn(serverConn,
		OnFrameOption(func(f *Frame) error {
			received <- f
			return nil
		}),
		HeartbeatOption(5*time.Second),
	)
	if err != nil {
		t.Fatalf("NewConn failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- conn.Run(context.Background())
	}()

	header := metadata.New()
	metadata.Put(header, requestIDKey, "req-42")
	data, err := NewFrameCodec(0).Encode(NewFrame(header, []byte("hello")))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if _, err := clientConn.Write(data); err != nil {
		t.Fatalf("client write failed: %v", err)
	}

	select {
	case f := <-received:
		if string(f.Body()) != "hello" {
			t.Errorf("body = %q, want hello", f.Body())
		}
		id, ok, err := metadata.Get(f.Header, requestIDKey)
		if err != nil || !ok || id != "req-42" {
			t.Errorf("request id = %q, %v, %v", id, ok, err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for frame")
	}

	clientConn.Close()
	waitErr(t, done)
}

func TestConn_Run_WriteFrame(t *testing.T) {
	serverConn, clientConn := createTestTCPPair(t)

	conn, err := NewConn(serverConn, OnFrameOption(func(*Frame) error { return nil }))
	if err != nil {
		t.Fatalf("NewConn failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- conn.Run(ctx)
	}()

	header := metadata.New()
	metadata.Put(header, tokenKey, []byte{7})
	if err := conn.WriteFrame(ctx, header, []byte("pong")); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	_ = clientConn.SetReadDeadline(time.Now().Add(5 * time.Second))
	msg, err := NewFrameCodec(0).Decode(clientConn)
	if err != nil {
		t.Fatalf("client decode failed: %v", err)
	}
	f := msg.(*Frame)
	token, _, err := metadata.Get(f.Header, tokenKey)
	if err != nil || !bytes.Equal(token, []byte{7}) {
		t.Errorf("token = %v, %v", token, err)
	}
	if string(f.Body()) != "pong" {
		t.Errorf("body = %q, want pong", f.Body())
	}

	cancel()
	waitErr(t, done)
}

func TestConn_Run_NotFrame(t *testing.T) {
	serverConn, clientConn := createTestTCPPair(t)

	conn, err := NewConn(serverConn,
		CustomCodecOption(&mockCodec{}),
		OnFrameOption(func(*Frame) error { return nil }),
	)
	if err != nil {
		t.Fatalf("NewConn failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- conn.Run(context.Background())
	}()

	if _, err := clientConn.Write([]byte("plain")); err != nil {
		t.Fatalf("client write failed: %v", err)
	}
	if err := waitErr(t, done); !errors.Is(err, ErrNotFrame) {
		t.Errorf("expected ErrNotFrame, got %v", err)
	}
}

func TestConn_Run_DecodeErrorContinue(t *testing.T) {
	serverConn, clientConn := createTestTCPPair(t)

	decodeErr := errors.New("decode error")
	calls := 0
	codec := &mockCodec{decodeFunc: func(r io.Reader) (Message, error) {
		calls++
		buf := make([]byte, 1)
		if _, err := r.Read(buf); err != nil {
			return nil, err
		}
		if calls == 1 {
			return nil, decodeErr
		}
		return rawMessage{body: buf}, nil
	}}

	received := make(chan Message, 1)
	var seen []error
	conn, err := NewConn(serverConn,
		CustomCodecOption(codec),
		OnMessageOption(func(m Message) error {
			received <- m
			return nil
		}),
		OnErrorOption(func(err error) ErrorAction {
			seen = append(seen, err)
			if err == decodeErr {
				return Continue
			}
			return Disconnect
		}),
	)
	if err != nil {
		t.Fatalf("NewConn failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- conn.Run(context.Background())
	}()

	if _, err := clientConn.Write([]byte("ab")); err != nil {
		t.Fatalf("client write failed: %v", err)
	}

	select {
	case m := <-received:
		if string(m.Body()) != "b" {
			t.Errorf("body = %q, want b", m.Body())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
	}

	clientConn.Close()
	waitErr(t, done)
	if len(seen) == 0 || seen[0] != decodeErr {
		t.Errorf("onError saw %v", seen)
	}
}

func TestLimitedReader(t *testing.T) {
	lr := newLimitedReader(bytes.NewReader([]byte("abcdef")), 4)

	buf := make([]byte, 8)
	n, err := lr.Read(buf)
	if err != nil || n != 4 {
		t.Fatalf("Read = %d, %v", n, err)
	}
	if _, err := lr.Read(buf); err != ErrMessageTooLarge {
		t.Errorf("expected ErrMessageTooLarge, got %v", err)
	}

	lr.reset(4)
	n, err = lr.Read(buf)
	if err != nil || string(buf[:n]) != "ef" {
		t.Errorf("Read after reset = %q, %v", buf[:n], err)
	}
}
