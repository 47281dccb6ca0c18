package wire

import (
	"encoding/binary"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

type fieldKind int

const (
	kindValue fieldKind = iota
	kindStruct
	kindStructSlice
)

// field is the resolved layout of one struct field.
type field struct {
	name       string
	index      int
	kind       fieldKind
	layout     Layout
	conv       Converter
	transforms []Transform

	// countIndex is the struct field holding the element count of a
	// kindStructSlice field.
	countIndex int

	// elem describes nested structs and slice elements.
	elem *descriptor
}

type descriptor struct {
	typ     reflect.Type
	fields  []field
	minSize int
}

// descriptors maps reflect.Type to *descriptor. Entries are never replaced.
var descriptors sync.Map

func descriptorOf(t reflect.Type) (*descriptor, error) {
	if d, ok := descriptors.Load(t); ok {
		return d.(*descriptor), nil
	}
	d, err := buildDescriptor(t)
	if err != nil {
		return nil, err
	}
	actual, _ := descriptors.LoadOrStore(t, d)
	return actual.(*descriptor), nil
}

type tagOptions struct {
	skip       bool
	length     int
	conv       string
	transforms []string
	count      string
	bigEndian  bool
	rest       bool
}

func parseTag(tag string) (tagOptions, error) {
	var opts tagOptions
	if tag == "" {
		return opts, nil
	}
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		key, val, hasVal := strings.Cut(part, "=")
		switch {
		case part == "":
		case part == "-":
			opts.skip = true
		case part == "be":
			opts.bigEndian = true
		case part == "rest":
			opts.rest = true
		case hasVal && key == "len":
			n, err := strconv.Atoi(val)
			if err != nil || n <= 0 {
				return opts, errors.Wrapf(ErrInvalidLayout, "bad len %q", val)
			}
			opts.length = n
		case hasVal && key == "conv":
			opts.conv = val
		case hasVal && key == "transform":
			opts.transforms = append(opts.transforms, val)
		case hasVal && key == "count":
			opts.count = val
		default:
			return opts, errors.Wrapf(ErrInvalidLayout, "unknown tag option %q", part)
		}
	}
	return opts, nil
}

func isInteger(k reflect.Kind) bool {
	switch k {
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func buildDescriptor(t reflect.Type) (*descriptor, error) {
	if t.Kind() != reflect.Struct {
		return nil, errors.Wrapf(ErrUnsupportedFieldType, "%s is not a struct", t)
	}

	d := &descriptor{typ: t}
	byName := map[string]int{}
	restSeen := false
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue
		}
		opts, err := parseTag(sf.Tag.Get("wire"))
		if err != nil {
			return nil, errors.Wrapf(err, "%s.%s", t, sf.Name)
		}
		if opts.skip {
			continue
		}
		if restSeen {
			return nil, errors.Wrapf(ErrInvalidLayout, "%s.%s follows a rest field", t, sf.Name)
		}
		restSeen = opts.rest

		f, err := resolveField(t, sf, opts, d.fields, byName)
		if err != nil {
			return nil, err
		}
		f.index = i
		byName[sf.Name] = len(d.fields)
		d.fields = append(d.fields, f)
	}

	for _, f := range d.fields {
		switch {
		case f.kind == kindStruct:
			d.minSize += f.elem.minSize
		case f.kind == kindStructSlice:
		case f.layout.Len > 0:
			d.minSize += f.layout.Len
		default:
			if ms, ok := f.conv.(minSizer); ok {
				d.minSize += ms.MinSize(f.layout)
			}
		}
	}
	return d, nil
}

func resolveField(t reflect.Type, sf reflect.StructField, opts tagOptions, prev []field, byName map[string]int) (field, error) {
	f := field{
		name:   sf.Name,
		layout: Layout{Len: opts.length, Order: binary.LittleEndian},
	}
	if opts.bigEndian {
		f.layout.Order = binary.BigEndian
	}
	ft := sf.Type
	where := t.String() + "." + sf.Name

	if opts.rest && (opts.length != 0 || opts.conv != "" || ft.Kind() != reflect.Slice || ft.Elem().Kind() != reflect.Uint8) {
		return f, errors.Wrapf(ErrInvalidLayout, "%s: rest applies only to plain byte slices", where)
	}

	if opts.count != "" {
		if ft.Kind() != reflect.Slice || ft.Elem().Kind() != reflect.Struct {
			return f, errors.Wrapf(ErrInvalidLayout, "%s: count on %s", where, ft)
		}
		idx, ok := byName[opts.count]
		if !ok || prev[idx].kind != kindValue || !isInteger(t.Field(prev[idx].index).Type.Kind()) {
			return f, errors.Wrapf(ErrInvalidLayout, "%s: count field %q must be an earlier integer field", where, opts.count)
		}
		elem, err := descriptorOf(ft.Elem())
		if err != nil {
			return f, errors.Wrapf(err, "%s", where)
		}
		f.kind = kindStructSlice
		f.countIndex = prev[idx].index
		f.elem = elem
		return f, nil
	}

	if ft.Kind() == reflect.Struct && opts.conv == "" {
		if len(opts.transforms) > 0 || opts.length != 0 {
			return f, errors.Wrapf(ErrInvalidLayout, "%s: nested struct takes no len or transform", where)
		}
		elem, err := descriptorOf(ft)
		if err != nil {
			return f, errors.Wrapf(err, "%s", where)
		}
		f.kind = kindStruct
		f.elem = elem
		return f, nil
	}

	f.kind = kindValue
	if opts.conv != "" {
		c, ok := lookupConverter(opts.conv)
		if !ok {
			return f, errors.Wrapf(ErrInvalidLayout, "%s: unknown converter %q", where, opts.conv)
		}
		f.conv = c
	} else {
		f.conv = defaultConverter{}
		if n := naturalSize(ft); n > 0 {
			if opts.length != 0 && opts.length != n {
				return f, errors.Wrapf(ErrInvalidLayout, "%s: len=%d but %s is %d bytes", where, opts.length, ft, n)
			}
			f.layout.Len = n
		} else {
			switch {
			case ft.Kind() == reflect.String:
				if opts.length == 0 {
					return f, errors.Wrapf(ErrInvalidLayout, "%s: string needs len or conv", where)
				}
			case ft.Kind() == reflect.Slice && ft.Elem().Kind() == reflect.Uint8:
				if opts.length == 0 && !opts.rest {
					return f, errors.Wrapf(ErrInvalidLayout, "%s: byte slice needs len or rest", where)
				}
			default:
				return f, errors.Wrapf(ErrUnsupportedFieldType, "%s: %s", where, ft)
			}
		}
	}

	for _, name := range opts.transforms {
		tr, ok := lookupTransform(name)
		if !ok {
			return f, errors.Wrapf(ErrInvalidLayout, "%s: unknown transform %q", where, name)
		}
		f.transforms = append(f.transforms, tr)
	}
	if len(f.transforms) > 0 && f.layout.Len == 0 {
		return f, errors.Wrapf(ErrInvalidLayout, "%s: transform on variable-length field", where)
	}
	return f, nil
}
