package routing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	tnet "badc0de.net/pkg/go-logon/net"
	"badc0de.net/pkg/go-logon/ttesting"
	"badc0de.net/pkg/go-logon/wire"
)

type pingPacket struct {
	Opcode Opcode
	Seq    uint32
	Note   string `wire:"conv=cstring"`
}

const opcodePing Opcode = 0x0100

type recorder struct {
	seqs  []uint32
	notes []string
}

func testRouter() *Router[*recorder] {
	return NewRouter(Handle(opcodePing, func(_ context.Context, p *pingPacket, r *recorder) error {
		r.seqs = append(r.seqs, p.Seq)
		r.notes = append(r.notes, p.Note)
		return nil
	}))
}

func TestHandlePacket(t *testing.T) {
	r := testRouter()
	rec := &recorder{}

	b, err := wire.Encode(pingPacket{Opcode: opcodePing, Seq: 7, Note: "hi"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := r.HandlePacket(context.Background(), tnet.NewEnvelope(b), rec); err != nil {
		t.Fatalf("HandlePacket: %v", err)
	}
	ttesting.AssertEqualInt(t, "calls", len(rec.seqs), 1)
	ttesting.AssertEqualUint32(t, "seq", rec.seqs[0], 7)
	ttesting.AssertEqualString(t, "note", rec.notes[0], "hi")
}

func TestHandlePacketErrors(t *testing.T) {
	r := testRouter()
	ctx := context.Background()

	tests := []struct {
		name    string
		payload []byte
		want    error
	}{
		{"unregistered", []byte{0x99, 0x00, 0x01}, ErrUnhandledOpcode},
		{"opcode is little endian", []byte{0x01, 0x00, 0, 0, 0, 0, 0}, ErrUnhandledOpcode},
		{"no opcode", []byte{0x00}, wire.ErrTruncatedPacket},
		{"short body", []byte{0x00, 0x01, 7, 0}, wire.ErrTruncatedPacket},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			err := r.HandlePacket(ctx, tnet.NewEnvelope(tt.payload), rec)
			ttesting.AssertErrorIs(t, tt.name, err, tt.want)
			ttesting.AssertEqualInt(t, "calls", len(rec.seqs), 0)
		})
	}
}

func TestDuplicateRoutePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("duplicate opcode accepted")
		}
	}()
	noop := func(context.Context, *pingPacket, *recorder) error { return nil }
	NewRouter(Handle(opcodePing, noop), Handle(opcodePing, noop))
}

func TestOpcodeString(t *testing.T) {
	ttesting.AssertEqualString(t, "begin", OpcodeClientHandshakeBegin.String(), "ClientHandshakeBegin")
	ttesting.AssertEqualString(t, "other", Opcode(0x1234).String(), "Opcode(0x1234)")
}

func runSession(s *tnet.Session) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	return done
}

func waitForID(t *testing.T, s *tnet.Session) uuid.UUID {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if id := s.ID(); id != uuid.Nil {
			return id
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("%s never got an id", s)
	return uuid.Nil
}

func TestHandshake(t *testing.T) {
	serverConn, clientConn := ttesting.Pipe(t)
	h := SessionHandler(NewHandshakeRouter())
	server := tnet.NewSession(serverConn, h, tnet.SessionConfig{})
	client := tnet.NewSession(clientConn, h, tnet.SessionConfig{})
	serverDone := runSession(server)
	clientDone := runSession(client)

	if err := BeginHandshake(context.Background(), client); err != nil {
		t.Fatalf("BeginHandshake: %v", err)
	}
	clientID := waitForID(t, client)
	if serverID := server.ID(); serverID != clientID {
		t.Errorf("server id %s; client id %s", serverID, clientID)
	}
	if client.State() != tnet.StateDispatching {
		t.Errorf("client state %v", client.State())
	}

	// A second handshake would reallocate the id.
	if err := BeginHandshake(context.Background(), client); err != nil {
		t.Fatalf("BeginHandshake: %v", err)
	}
	select {
	case err := <-serverDone:
		ttesting.AssertErrorIs(t, "second handshake", err, tnet.ErrInvalidSessionId)
	case <-time.After(2 * time.Second):
		t.Fatalf("server session survived a second handshake")
	}
	select {
	case <-clientDone:
	case <-time.After(2 * time.Second):
		t.Fatalf("client session did not end")
	}
}

func TestHandshakeVersionMismatch(t *testing.T) {
	serverConn, clientConn := ttesting.Pipe(t)
	server := tnet.NewSession(serverConn, SessionHandler(NewHandshakeRouter()), tnet.SessionConfig{})
	done := runSession(server)

	b, err := wire.Encode(ClientHandshakeBegin{Opcode: OpcodeClientHandshakeBegin, Version: ProtocolVersion + 1})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	ttesting.WritePacket(t, clientConn, b)

	result, err := wire.Decode[ServerHandshakeResult](ttesting.ReadPacket(t, clientConn))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if result.Accepted {
		t.Errorf("mismatched version accepted")
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not end")
	}
	if server.ID() != uuid.Nil {
		t.Errorf("rejected session got id %s", server.ID())
	}
}
