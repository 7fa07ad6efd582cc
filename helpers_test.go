package metasocket

import (
	"io"
	"net"
	"testing"
	"time"
)

// rawMessage is a Message that is not a Frame.
type rawMessage struct {
	body []byte
}

func (m rawMessage) Length() int { return len(m.body) }
func (m rawMessage) Body() []byte { return m.body }

// mockCodec implements Codec for testing.
type mockCodec struct {
	decodeFunc func(io.Reader) (Message, error)
	encodeFunc func(Message) ([]byte, error)
}

func (c *mockCodec) Decode(r io.Reader) (Message, error) {
	if c.decodeFunc != nil {
		return c.decodeFunc(r)
	}
	buf := make([]byte, 1024)
	n, err := r.Read(buf)
	if err != nil {
		return nil, err
	}
	return rawMessage{body: buf[:n]}, nil
}

func (c *mockCodec) Encode(msg Message) ([]byte, error) {
	if c.encodeFunc != nil {
		return c.encodeFunc(msg)
	}
	return msg.Body(), nil
}

// createTestTCPPair returns the server and client ends of a loopback connection.
func createTestTCPPair(t *testing.T) (*net.TCPConn, *net.TCPConn) {
	t.Helper()

	listener, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	defer listener.Close()

	clientChan := make(chan *net.TCPConn, 1)
	errChan := make(chan error, 1)
	go func() {
		conn, err := net.DialTCP("tcp", nil, listener.Addr().(*net.TCPAddr))
		if err != nil {
			errChan <- err
			return
		}
		clientChan <- conn
	}()

	serverConn, err := listener.AcceptTCP()
	if err != nil {
		t.Fatalf("failed to accept: %v", err)
	}

	select {
	case clientConn := <-clientChan:
		t.Cleanup(func() {
			serverConn.Close()
			clientConn.Close()
		})
		return serverConn, clientConn
	case err := <-errChan:
		serverConn.Close()
		t.Fatalf("client dial failed: %v", err)
	case <-time.After(5 * time.Second):
		serverConn.Close()
		t.Fatal("timeout waiting for client connection")
	}
	return nil, nil
}

func waitErr(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for Run to complete")
		return nil
	}
}
