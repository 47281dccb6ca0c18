package realms

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"badc0de.net/pkg/go-logon/wire"
)

const (
	// Opcode of the realm list request and response.
	Opcode = 0x10

	// characterCount is reported for every realm; the server does not
	// track characters per account.
	characterCount = 3

	// lengthOffset is where the length field sits; the length counts the
	// bytes after it, so it equals the total size minus lengthOffset+2.
	lengthOffset = 1
	lengthBias   = lengthOffset + 2
)

type listEntry struct {
	Type       uint8
	Locked     bool
	Flags      uint8
	Name       string `wire:"conv=cstring"`
	Address    string `wire:"conv=cstring"`
	Population float32
	Characters uint8
	Region     uint8
	Reserved   uint8
}

type listResponse struct {
	Opcode   uint8
	Length   uint16
	Reserved uint32
	Count    uint16
	Realms   []listEntry `wire:"count=Count"`
	Trailer  [2]byte
}

// ListResponse serializes the realm list response for list.
//
// The length field depends on the encoded size of every name and address,
// so it is written as a placeholder and patched once the whole body,
// trailer included, has been encoded.
func ListResponse(list []Realm) ([]byte, error) {
	if len(list) > math.MaxUint16 {
		return nil, errors.Errorf("realms: %d realms do not fit in a list", len(list))
	}
	resp := listResponse{
		Opcode:  Opcode,
		Count:   uint16(len(list)),
		Realms:  make([]listEntry, len(list)),
		Trailer: [2]byte{0x10, 0x00},
	}
	for i, r := range list {
		resp.Realms[i] = listEntry{
			Type:       uint8(r.Type),
			Locked:     r.Locked,
			Flags:      uint8(r.Flags),
			Name:       r.Name,
			Address:    r.Address,
			Population: r.Population,
			Characters: characterCount,
			Region:     uint8(r.Region),
		}
	}

	b, err := wire.Encode(&resp)
	if err != nil {
		return nil, errors.Wrap(err, "encoding realm list")
	}
	if len(b)-lengthBias > math.MaxUint16 {
		return nil, errors.Errorf("realms: list of %d bytes is too long", len(b))
	}
	binary.LittleEndian.PutUint16(b[lengthOffset:], uint16(len(b)-lengthBias))
	return b, nil
}

// ParseListResponse decodes a realm list response. It is the client's view
// of ListResponse.
func ParseListResponse(b []byte) ([]Realm, error) {
	resp, err := wire.Decode[listResponse](b)
	if err != nil {
		return nil, err
	}
	if int(resp.Length) != len(b)-lengthBias {
		return nil, errors.Wrapf(wire.ErrTruncatedPacket, "length field says %d, have %d", resp.Length, len(b)-lengthBias)
	}
	list := make([]Realm, len(resp.Realms))
	for i, e := range resp.Realms {
		list[i] = Realm{
			Type:       Type(e.Type),
			Locked:     e.Locked,
			Flags:      Flags(e.Flags),
			Name:       e.Name,
			Address:    e.Address,
			Population: e.Population,
			Region:     Region(e.Region),
		}
	}
	return list, nil
}
