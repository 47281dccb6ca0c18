// Package realms describes the game worlds offered to authenticated clients
// and formats the realm list sent to them.
package realms

import (
	"context"
)

// Type is the ruleset of a realm.
type Type uint8

const (
	TypeNormal Type = 0
	TypePvP    Type = 1
	TypeRP     Type = 6
	TypeRPPvP  Type = 8
)

// Flags is the realm status bitmask.
type Flags uint8

const (
	FlagInvalid      Flags = 0x01
	FlagOffline      Flags = 0x02
	FlagSpecifyBuild Flags = 0x04
	FlagNewPlayers   Flags = 0x20
	FlagRecommended  Flags = 0x40
	FlagFull         Flags = 0x80
)

// Region is the realm's time zone / category as the client groups it.
type Region uint8

// Realm is a read-only snapshot of one game world.
type Realm struct {
	Type       Type
	Locked     bool
	Flags      Flags
	Name       string
	Address    string // host:port
	Population float32
	Region     Region
}

// Directory lists the known realms. The order returned is the order sent to
// clients. Implementations must be safe for concurrent use.
type Directory interface {
	ListRealms(ctx context.Context) ([]Realm, error)
}

// StaticDirectory is a Directory over a fixed list.
type StaticDirectory []Realm

func (d StaticDirectory) ListRealms(context.Context) ([]Realm, error) {
	return append([]Realm(nil), d...), nil
}
