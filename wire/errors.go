package wire

import (
	"github.com/pkg/errors"
)

var (
	// ErrTruncatedPacket is returned when a buffer holds fewer bytes than
	// the record being decoded requires.
	ErrTruncatedPacket = errors.New("wire: truncated packet")

	// ErrUnsupportedFieldType is returned for values the codec cannot
	// represent: unknown kinds, oversized strings, slices of the wrong length.
	ErrUnsupportedFieldType = errors.New("wire: unsupported field type")

	// ErrInvalidLayout is returned for contradictory tags, such as a
	// transform on a variable-length field.
	ErrInvalidLayout = errors.New("wire: invalid layout")
)
