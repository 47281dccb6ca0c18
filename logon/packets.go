package logon

import (
	"fmt"
	gonet "net"

	"badc0de.net/pkg/go-logon/realms"
)

// Opcodes understood by the logon server.
const (
	OpcodeChallenge = 0x00
	OpcodeProof     = 0x01
	OpcodeRealmList = realms.Opcode
)

// ResultCode is the error byte of challenge and proof responses.
type ResultCode uint8

const (
	ResultSuccess              ResultCode = 0x00
	ResultIPBanned             ResultCode = 0x01
	ResultAccountClosed        ResultCode = 0x03
	ResultNoSuchAccount        ResultCode = 0x04
	ResultAccountInUse         ResultCode = 0x06
	ResultPreorderTimeLimit    ResultCode = 0x07
	ResultServerFull           ResultCode = 0x08
	ResultInvalidBuild         ResultCode = 0x09
	ResultClientUpdateRequired ResultCode = 0x0a
	ResultAccountFrozen        ResultCode = 0x0c

	// ResultInvalid marks a response whose result was never set. It is
	// never transmitted.
	ResultInvalid ResultCode = 0xff
)

var resultNames = map[ResultCode]string{
	ResultSuccess:              "success",
	ResultIPBanned:             "ip banned",
	ResultAccountClosed:        "account closed",
	ResultNoSuchAccount:        "no such account",
	ResultAccountInUse:         "account in use",
	ResultPreorderTimeLimit:    "preorder time limit",
	ResultServerFull:           "server full",
	ResultInvalidBuild:         "invalid build",
	ResultClientUpdateRequired: "client update required",
	ResultAccountFrozen:        "account frozen",
	ResultInvalid:              "invalid",
}

func (r ResultCode) String() string {
	if n, ok := resultNames[r]; ok {
		return n
	}
	return fmt.Sprintf("ResultCode(0x%02x)", uint8(r))
}

// ChallengeRequest is the first packet a client sends.
type ChallengeRequest struct {
	Opcode uint8
	Error  uint8
	// Size counts the bytes following it. It is informational only.
	Size         uint16
	Game         string `wire:"len=4"`
	Version      [3]byte
	Build        uint16
	Platform     string `wire:"len=4,conv=fourcc,transform=reverse"`
	OS           string `wire:"len=4,conv=fourcc,transform=reverse"`
	Locale       string `wire:"len=4,conv=fourcc,transform=reverse"`
	TimezoneBias uint32
	IP           [4]byte
	AccountName  string `wire:"conv=pstring"`
}

// ClientIP returns the address the client reports for itself.
func (r *ChallengeRequest) ClientIP() gonet.IP {
	return gonet.IPv4(r.IP[0], r.IP[1], r.IP[2], r.IP[3])
}

// challengeResponse is sent when the account exists and may log in. The
// integers are big-endian in the struct and little-endian on the wire.
type challengeResponse struct {
	Opcode          uint8
	Status          uint8
	Result          ResultCode
	B               []byte `wire:"len=32,transform=reverse"`
	GeneratorLength uint8
	Generator       []byte `wire:"len=1"`
	ModulusLength   uint8
	Modulus         []byte `wire:"len=32,transform=reverse"`
	Salt            []byte `wire:"len=32"`
	Filler          []byte `wire:"len=16"`
	Reserved        uint8
}

// challengeFailure carries only the result code.
type challengeFailure struct {
	Opcode uint8
	Status uint8
	Result ResultCode
}

// ProofRequest carries the client's ephemeral value and proof. Whatever
// follows M1 is not interpreted.
type ProofRequest struct {
	Opcode uint8
	A      []byte `wire:"len=32,transform=reverse"`
	M1     []byte `wire:"len=20"`
}

type proofResponse struct {
	Opcode       uint8
	Result       ResultCode
	M2           []byte `wire:"len=20"`
	AccountFlags uint32
	SurveyID     uint32
	LoginFlags   uint16
}

type proofFailure struct {
	Opcode uint8
	Result ResultCode
}
