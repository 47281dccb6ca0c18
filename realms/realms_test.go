package realms

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"badc0de.net/pkg/go-logon/ttesting"
	"badc0de.net/pkg/go-logon/wire"
)

const headerAndTrailer = 1 + 2 + 4 + 2 + 2

func TestEmptyList(t *testing.T) {
	b, err := ListResponse(nil)
	if err != nil {
		t.Fatalf("ListResponse: %v", err)
	}
	ttesting.AssertEqualBytes(t, "bytes", b, []byte{
		0x10,                   // opcode
		0x08, 0x00,             // length
		0x00, 0x00, 0x00, 0x00, // reserved
		0x00, 0x00,             // count
		0x10, 0x00,             // trailer
	})
	ttesting.AssertEqualInt(t, "length field", int(binary.LittleEndian.Uint16(b[1:])), headerAndTrailer-3)
}

func TestListLength(t *testing.T) {
	list := []Realm{
		{Type: TypePvP, Flags: FlagRecommended, Name: "Alpha", Address: "127.0.0.1:8085", Population: 1.5, Region: 1},
		{Type: TypeNormal, Locked: true, Name: "B", Address: "10.0.0.2:8086", Population: 0.5, Region: 2},
	}
	b, err := ListResponse(list)
	if err != nil {
		t.Fatalf("ListResponse: %v", err)
	}

	want := headerAndTrailer
	for _, r := range list {
		want += 3 + len(r.Name) + 1 + len(r.Address) + 1 + 4 + 3
	}
	ttesting.AssertEqualInt(t, "total", len(b), want)
	ttesting.AssertEqualInt(t, "length field", int(binary.LittleEndian.Uint16(b[1:])), want-3)
	ttesting.AssertEqualInt(t, "count", int(binary.LittleEndian.Uint16(b[7:])), 2)
	ttesting.AssertEqualBytes(t, "trailer", b[len(b)-2:], []byte{0x10, 0x00})

	// first realm: type, locked, flags, then the name
	ttesting.AssertEqualBytes(t, "first realm head", b[9:12], []byte{byte(TypePvP), 0, byte(FlagRecommended)})
	ttesting.AssertEqualString(t, "first realm name", string(b[12:17]), "Alpha")

	got, err := ParseListResponse(b)
	if err != nil {
		t.Fatalf("ParseListResponse: %v", err)
	}
	if !reflect.DeepEqual(got, list) {
		t.Errorf("got %+v; want %+v", got, list)
	}
}

func TestParseTruncated(t *testing.T) {
	b, err := ListResponse([]Realm{{Name: "Alpha", Address: "a:1"}})
	if err != nil {
		t.Fatalf("ListResponse: %v", err)
	}
	_, err = ParseListResponse(b[:len(b)-1])
	ttesting.AssertErrorIs(t, "missing trailer byte", err, wire.ErrTruncatedPacket)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "realms.toml")
	content := `
[[realm]]
name = "Alpha"
address = "127.0.0.1:8085"
type = 1
population = 0.5

[[realm]]
name = "Beta"
address = "127.0.0.1:8086"
locked = true
flags = 2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	d, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	list, err := d.ListRealms(context.Background())
	if err != nil {
		t.Fatalf("ListRealms: %v", err)
	}
	ttesting.AssertEqualInt(t, "count", len(list), 2)
	ttesting.AssertEqualString(t, "order kept", list[0].Name+","+list[1].Name, "Alpha,Beta")
	if list[1].Flags != FlagOffline || !list[1].Locked {
		t.Errorf("second realm: got %+v", list[1])
	}
}
