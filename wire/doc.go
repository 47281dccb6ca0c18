// Package wire implements a declarative binary codec for the logon protocol.
//
// A record is a plain Go struct. Each exported field is encoded in declaration
// order; its layout is taken from the natural size of its type and from the
// `wire` struct tag:
//
//	len=N         fixed byte length (strings are NUL padded)
//	conv=NAME     named Converter (cstring, pstring, fourcc, or registered)
//	transform=T   byte-level step applied after encoding, may repeat
//	count=FIELD   slice of structs, element count held by an earlier field
//	rest          byte slice consuming the remainder of the buffer
//	be            big-endian primitive (little-endian otherwise)
//	-             field is not part of the wire format
//
// Layouts are resolved once per type and cached for the life of the process.
package wire
