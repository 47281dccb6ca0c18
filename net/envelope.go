package net

import (
	"fmt"
)

// Envelope wraps the bytes of one packet in flight.
//
// An envelope belongs to a single session and a single pass through the
// pipelines; it is never shared.
type Envelope struct {
	Payload []byte

	// Handled is set once a processor has fully consumed the envelope. A
	// handled envelope is neither dispatched nor transmitted.
	Handled bool

	// TerminateConnection asks the session to close after the envelope
	// has been processed.
	TerminateConnection bool
}

func NewEnvelope(payload []byte) *Envelope {
	return &Envelope{Payload: payload}
}

func (e *Envelope) String() string {
	return fmt.Sprintf("<envelope %d bytes handled=%v terminate=%v>", len(e.Payload), e.Handled, e.TerminateConnection)
}

// Opcode returns the first payload byte, or false for an empty payload.
func (e *Envelope) Opcode() (byte, bool) {
	if len(e.Payload) == 0 {
		return 0, false
	}
	return e.Payload[0], true
}
