package wire

import (
	"reflect"

	"github.com/pkg/errors"
)

// Encode serializes the struct (or pointer to struct) v.
func Encode(v interface{}) ([]byte, error) {
	rv, err := structValue(v)
	if err != nil {
		return nil, err
	}
	d, err := descriptorOf(rv.Type())
	if err != nil {
		return nil, err
	}
	return d.encode(make([]byte, 0, d.minSize), rv)
}

// Decode deserializes b into a new T. Trailing bytes are ignored.
func Decode[T any](b []byte) (T, error) {
	var v T
	_, err := DecodeInto(b, &v)
	return v, err
}

// DecodeInto deserializes b into the struct pointed to by v and returns the
// number of bytes consumed.
func DecodeInto(b []byte, v interface{}) (int, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return 0, errors.Wrapf(ErrUnsupportedFieldType, "decode into %T", v)
	}
	rv = rv.Elem()
	d, err := descriptorOf(rv.Type())
	if err != nil {
		return 0, err
	}
	if len(b) < d.minSize {
		return 0, errors.Wrapf(ErrTruncatedPacket, "%s needs at least %d bytes, have %d", d.typ, d.minSize, len(b))
	}
	return d.decode(b, rv)
}

// MinSize returns the smallest number of bytes any encoding of v's type
// occupies.
func MinSize(v interface{}) (int, error) {
	rv, err := structValue(v)
	if err != nil {
		return 0, err
	}
	d, err := descriptorOf(rv.Type())
	if err != nil {
		return 0, err
	}
	return d.minSize, nil
}

func structValue(v interface{}) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return rv, errors.Wrapf(ErrUnsupportedFieldType, "nil %T", v)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return rv, errors.Wrapf(ErrUnsupportedFieldType, "%T is not a struct", v)
	}
	return rv, nil
}

// countFits reports whether n elements of at least minSize bytes each can
// come from avail bytes. Elements without a minimum still count as one byte
// so a hostile count cannot force a huge allocation.
func countFits(n, minSize, avail int) bool {
	if n < 0 {
		return false
	}
	if minSize < 1 {
		minSize = 1
	}
	return n <= avail/minSize
}

func count(v reflect.Value) int {
	switch v.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(v.Int())
	}
	return int(v.Uint())
}

func (d *descriptor) encode(buf []byte, v reflect.Value) ([]byte, error) {
	for i := range d.fields {
		f := &d.fields[i]
		fv := v.Field(f.index)

		switch f.kind {
		case kindStruct:
			var err error
			if buf, err = f.elem.encode(buf, fv); err != nil {
				return nil, err
			}

		case kindStructSlice:
			if n := count(v.Field(f.countIndex)); n != fv.Len() {
				return nil, errors.Wrapf(ErrUnsupportedFieldType, "%s.%s: count says %d, have %d elements", d.typ, f.name, n, fv.Len())
			}
			for j := 0; j < fv.Len(); j++ {
				var err error
				if buf, err = f.elem.encode(buf, fv.Index(j)); err != nil {
					return nil, errors.Wrapf(err, "%s.%s[%d]", d.typ, f.name, j)
				}
			}

		default:
			b, err := f.conv.Encode(fv, f.layout)
			if err != nil {
				return nil, errors.Wrapf(err, "%s.%s", d.typ, f.name)
			}
			if f.layout.Len > 0 && len(b) != f.layout.Len {
				return nil, errors.Wrapf(ErrUnsupportedFieldType, "%s.%s: encoded %d bytes, want %d", d.typ, f.name, len(b), f.layout.Len)
			}
			for _, t := range f.transforms {
				b = t.Encode(b)
			}
			if len(f.transforms) > 0 && len(b) != f.layout.Len {
				return nil, errors.Wrapf(ErrInvalidLayout, "%s.%s: transform changed length to %d", d.typ, f.name, len(b))
			}
			buf = append(buf, b...)
		}
	}
	return buf, nil
}

func (d *descriptor) decode(b []byte, v reflect.Value) (int, error) {
	off := 0
	for i := range d.fields {
		f := &d.fields[i]
		fv := v.Field(f.index)
		rem := b[off:]

		switch f.kind {
		case kindStruct:
			n, err := f.elem.decode(rem, fv)
			if err != nil {
				return 0, errors.Wrapf(err, "%s.%s", d.typ, f.name)
			}
			off += n

		case kindStructSlice:
			n := count(v.Field(f.countIndex))
			if !countFits(n, f.elem.minSize, len(rem)) {
				return 0, errors.Wrapf(ErrTruncatedPacket, "%s.%s: %d elements do not fit in %d bytes", d.typ, f.name, n, len(rem))
			}
			s := reflect.MakeSlice(fv.Type(), n, n)
			used := 0
			for j := 0; j < n; j++ {
				c, err := f.elem.decode(rem[used:], s.Index(j))
				if err != nil {
					return 0, errors.Wrapf(err, "%s.%s[%d]", d.typ, f.name, j)
				}
				used += c
			}
			fv.Set(s)
			off += used

		default:
			if f.layout.Len == 0 {
				n, err := f.conv.Decode(rem, fv, f.layout)
				if err != nil {
					return 0, errors.Wrapf(err, "%s.%s", d.typ, f.name)
				}
				off += n
				continue
			}
			if len(rem) < f.layout.Len {
				return 0, errors.Wrapf(ErrTruncatedPacket, "%s.%s: need %d bytes, have %d", d.typ, f.name, f.layout.Len, len(rem))
			}
			raw := rem[:f.layout.Len]
			if len(f.transforms) > 0 {
				raw = append([]byte(nil), raw...)
				for j := len(f.transforms) - 1; j >= 0; j-- {
					raw = f.transforms[j].Decode(raw)
				}
			}
			if _, err := f.conv.Decode(raw, fv, f.layout); err != nil {
				return 0, errors.Wrapf(err, "%s.%s", d.typ, f.name)
			}
			off += f.layout.Len
		}
	}
	return off, nil
}
