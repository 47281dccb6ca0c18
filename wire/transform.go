package wire

import (
	"sync"
)

// Transform is a byte-level step applied to a fixed-length field. Encode
// runs after the converter; Decode undoes it before the converter sees the
// bytes. Both may modify their argument in place.
type Transform struct {
	Encode func([]byte) []byte
	Decode func([]byte) []byte
}

// SelfInverse builds a Transform whose encode and decode steps are the same
// function.
func SelfInverse(fn func([]byte) []byte) Transform {
	return Transform{Encode: fn, Decode: fn}
}

var (
	transformLock sync.RWMutex
	transforms    = map[string]Transform{
		"reverse": SelfInverse(reverseBytes),
	}
)

// RegisterTransform makes a transform available to `transform=name` tags.
// Like RegisterConverter, it has to happen before the first use of a type
// that refers to it.
func RegisterTransform(name string, t Transform) {
	transformLock.Lock()
	defer transformLock.Unlock()
	if _, dup := transforms[name]; dup {
		panic("wire: transform " + name + " registered twice")
	}
	transforms[name] = t
}

func lookupTransform(name string) (Transform, bool) {
	transformLock.RLock()
	defer transformLock.RUnlock()
	t, ok := transforms[name]
	return t, ok
}

// reverseBytes flips byte order, turning big-endian integers into the
// little-endian form used on the wire and back.
func reverseBytes(b []byte) []byte {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return b
}
