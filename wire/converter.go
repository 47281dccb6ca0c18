package wire

import (
	"bytes"
	"encoding/binary"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Layout holds the resolved per-field options passed to a Converter.
type Layout struct {
	// Len is the fixed byte length of the field, or 0 if the converter
	// determines the length itself.
	Len int

	// Order is used for multi-byte primitives.
	Order binary.ByteOrder
}

// Converter maps a field value to and from its wire bytes.
//
// For fixed-length fields Decode receives exactly Layout.Len bytes. For
// variable-length fields it receives the remainder of the buffer and reports
// how much of it was consumed.
type Converter interface {
	Encode(v reflect.Value, l Layout) ([]byte, error)
	Decode(b []byte, v reflect.Value, l Layout) (int, error)
}

// minSizer is implemented by variable-length converters which always
// consume at least some bytes.
type minSizer interface {
	MinSize(l Layout) int
}

var (
	convLock   sync.RWMutex
	converters = map[string]Converter{
		"cstring": cstringConverter{},
		"pstring": pstringConverter{},
		"fourcc":  fourccConverter{},
	}
)

// RegisterConverter makes a converter available to `conv=name` tags. It must
// be called before the first Encode or Decode of a type that refers to it,
// typically from an init function.
func RegisterConverter(name string, c Converter) {
	convLock.Lock()
	defer convLock.Unlock()
	if _, dup := converters[name]; dup {
		panic("wire: converter " + name + " registered twice")
	}
	converters[name] = c
}

func lookupConverter(name string) (Converter, bool) {
	convLock.RLock()
	defer convLock.RUnlock()
	c, ok := converters[name]
	return c, ok
}

// naturalSize returns the encoded size of types the default converter knows
// the length of, or 0.
func naturalSize(t reflect.Type) int {
	switch t.Kind() {
	case reflect.Bool, reflect.Uint8, reflect.Int8:
		return 1
	case reflect.Uint16, reflect.Int16:
		return 2
	case reflect.Uint32, reflect.Int32, reflect.Float32:
		return 4
	case reflect.Uint64, reflect.Int64, reflect.Float64:
		return 8
	case reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return t.Len()
		}
	}
	return 0
}

// defaultConverter handles primitives, booleans, byte arrays and fixed-length
// strings and byte slices.
type defaultConverter struct{}

func (defaultConverter) Encode(v reflect.Value, l Layout) ([]byte, error) {
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case reflect.Uint8:
		return []byte{uint8(v.Uint())}, nil
	case reflect.Int8:
		return []byte{uint8(v.Int())}, nil
	case reflect.Uint16, reflect.Int16:
		b := make([]byte, 2)
		l.Order.PutUint16(b, uint16(bits(v)))
		return b, nil
	case reflect.Uint32, reflect.Int32:
		b := make([]byte, 4)
		l.Order.PutUint32(b, uint32(bits(v)))
		return b, nil
	case reflect.Uint64, reflect.Int64:
		b := make([]byte, 8)
		l.Order.PutUint64(b, bits(v))
		return b, nil
	case reflect.Float32:
		b := make([]byte, 4)
		l.Order.PutUint32(b, math.Float32bits(float32(v.Float())))
		return b, nil
	case reflect.Float64:
		b := make([]byte, 8)
		l.Order.PutUint64(b, math.Float64bits(v.Float()))
		return b, nil
	case reflect.String:
		s := v.String()
		if len(s) > l.Len {
			return nil, errors.Wrapf(ErrUnsupportedFieldType, "string of %d bytes does not fit in %d", len(s), l.Len)
		}
		b := make([]byte, l.Len)
		copy(b, s)
		return b, nil
	case reflect.Array:
		b := make([]byte, v.Len())
		reflect.Copy(reflect.ValueOf(b), v)
		return b, nil
	case reflect.Slice:
		if v.Type().Elem().Kind() != reflect.Uint8 {
			break
		}
		if l.Len > 0 && v.Len() != l.Len {
			return nil, errors.Wrapf(ErrUnsupportedFieldType, "byte slice of %d bytes, want %d", v.Len(), l.Len)
		}
		return append([]byte(nil), v.Bytes()...), nil
	}
	return nil, errors.Wrapf(ErrUnsupportedFieldType, "%s", v.Type())
}

func (defaultConverter) Decode(b []byte, v reflect.Value, l Layout) (int, error) {
	n := l.Len
	if n == 0 {
		// Only byte slices tagged `rest` reach here.
		n = len(b)
	}
	if len(b) < n {
		return 0, errors.Wrapf(ErrTruncatedPacket, "need %d bytes, have %d", n, len(b))
	}
	switch v.Kind() {
	case reflect.Bool:
		v.SetBool(b[0] != 0)
	case reflect.Uint8:
		v.SetUint(uint64(b[0]))
	case reflect.Int8:
		v.SetInt(int64(int8(b[0])))
	case reflect.Uint16:
		v.SetUint(uint64(l.Order.Uint16(b)))
	case reflect.Int16:
		v.SetInt(int64(int16(l.Order.Uint16(b))))
	case reflect.Uint32:
		v.SetUint(uint64(l.Order.Uint32(b)))
	case reflect.Int32:
		v.SetInt(int64(int32(l.Order.Uint32(b))))
	case reflect.Uint64:
		v.SetUint(l.Order.Uint64(b))
	case reflect.Int64:
		v.SetInt(int64(l.Order.Uint64(b)))
	case reflect.Float32:
		v.SetFloat(float64(math.Float32frombits(l.Order.Uint32(b))))
	case reflect.Float64:
		v.SetFloat(math.Float64frombits(l.Order.Uint64(b)))
	case reflect.String:
		v.SetString(strings.TrimRight(string(b[:n]), "\x00"))
	case reflect.Array:
		reflect.Copy(v, reflect.ValueOf(b[:n]))
	case reflect.Slice:
		if v.Type().Elem().Kind() != reflect.Uint8 {
			return 0, errors.Wrapf(ErrUnsupportedFieldType, "%s", v.Type())
		}
		v.SetBytes(append([]byte(nil), b[:n]...))
	default:
		return 0, errors.Wrapf(ErrUnsupportedFieldType, "%s", v.Type())
	}
	return n, nil
}

func bits(v reflect.Value) uint64 {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return uint64(v.Int())
	}
	return v.Uint()
}

// cstringConverter encodes strings followed by a single NUL byte.
type cstringConverter struct{}

func (cstringConverter) Encode(v reflect.Value, _ Layout) ([]byte, error) {
	if v.Kind() != reflect.String {
		return nil, errors.Wrapf(ErrUnsupportedFieldType, "cstring on %s", v.Type())
	}
	s := v.String()
	if strings.IndexByte(s, 0) >= 0 {
		return nil, errors.Wrapf(ErrUnsupportedFieldType, "cstring %q contains NUL", s)
	}
	return append([]byte(s), 0), nil
}

func (cstringConverter) Decode(b []byte, v reflect.Value, _ Layout) (int, error) {
	if v.Kind() != reflect.String {
		return 0, errors.Wrapf(ErrUnsupportedFieldType, "cstring on %s", v.Type())
	}
	end := bytes.IndexByte(b, 0)
	if end < 0 {
		return 0, errors.Wrap(ErrTruncatedPacket, "unterminated cstring")
	}
	v.SetString(string(b[:end]))
	return end + 1, nil
}

func (cstringConverter) MinSize(Layout) int { return 1 }

// pstringConverter encodes strings prefixed with their length as one byte.
type pstringConverter struct{}

func (pstringConverter) Encode(v reflect.Value, _ Layout) ([]byte, error) {
	if v.Kind() != reflect.String {
		return nil, errors.Wrapf(ErrUnsupportedFieldType, "pstring on %s", v.Type())
	}
	s := v.String()
	if len(s) > math.MaxUint8 {
		return nil, errors.Wrapf(ErrUnsupportedFieldType, "pstring of %d bytes", len(s))
	}
	return append([]byte{byte(len(s))}, s...), nil
}

func (pstringConverter) Decode(b []byte, v reflect.Value, _ Layout) (int, error) {
	if v.Kind() != reflect.String {
		return 0, errors.Wrapf(ErrUnsupportedFieldType, "pstring on %s", v.Type())
	}
	if len(b) < 1 {
		return 0, errors.Wrap(ErrTruncatedPacket, "pstring length")
	}
	n := int(b[0])
	if len(b) < 1+n {
		return 0, errors.Wrapf(ErrTruncatedPacket, "pstring of %d bytes, have %d", n, len(b)-1)
	}
	v.SetString(string(b[1 : 1+n]))
	return 1 + n, nil
}

func (pstringConverter) MinSize(Layout) int { return 1 }

// fourccConverter encodes a multi-character constant such as "x86" or
// "enUS": right-aligned in a fixed-length field and padded with NULs on the
// left. Combined with the reverse transform it yields the little-endian
// layout the client sends.
type fourccConverter struct{}

func (fourccConverter) Encode(v reflect.Value, l Layout) ([]byte, error) {
	if v.Kind() != reflect.String || l.Len == 0 {
		return nil, errors.Wrapf(ErrUnsupportedFieldType, "fourcc on %s", v.Type())
	}
	s := v.String()
	if len(s) > l.Len {
		return nil, errors.Wrapf(ErrUnsupportedFieldType, "fourcc %q longer than %d", s, l.Len)
	}
	b := make([]byte, l.Len)
	copy(b[l.Len-len(s):], s)
	return b, nil
}

func (fourccConverter) Decode(b []byte, v reflect.Value, l Layout) (int, error) {
	if v.Kind() != reflect.String || l.Len == 0 {
		return 0, errors.Wrapf(ErrUnsupportedFieldType, "fourcc on %s", v.Type())
	}
	if len(b) < l.Len {
		return 0, errors.Wrapf(ErrTruncatedPacket, "fourcc needs %d bytes", l.Len)
	}
	v.SetString(strings.TrimLeft(string(b[:l.Len]), "\x00"))
	return l.Len, nil
}
