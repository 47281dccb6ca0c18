package ttesting

import (
	"net"
	"testing"
	"time"
)

// Pipe returns both ends of an in-memory connection, closed when the test
// ends.
func Pipe(t *testing.T) (server, client net.Conn) {
	t.Helper()
	server, client = net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return server, client
}

// ReadPacket performs a single read on conn, as the client would, and fails
// the test if nothing arrives within a second.
func ReadPacket(t *testing.T, conn net.Conn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	defer conn.SetReadDeadline(time.Time{})

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("reading packet: %v", err)
	}
	return buf[:n]
}

// WritePacket writes b to conn, failing the test if the peer does not take
// it within a second.
func WritePacket(t *testing.T, conn net.Conn, b []byte) {
	t.Helper()
	conn.SetWriteDeadline(time.Now().Add(time.Second))
	defer conn.SetWriteDeadline(time.Time{})

	if _, err := conn.Write(b); err != nil {
		t.Fatalf("writing packet: %v", err)
	}
}
