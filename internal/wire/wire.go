// Package wire implements the length-prefixed binary protocol: frame
// parsing on the request side, and tagged-value serialization on the
// response side.
package wire

import (
	"encoding/binary"
	"math"
)

// Protocol limits.
const (
	MaxMsg  = 32 << 20 // largest frame body, request or response
	MaxArgs = 200_000  // largest argv length in one request
)

// Tag identifies the shape of a response value.
type Tag = byte

const (
	TagNil Tag = 0
	TagErr Tag = 1
	TagStr Tag = 2
	TagInt Tag = 3
	TagDbl Tag = 4
	TagArr Tag = 5
)

// Error codes carried in a TAG_ERR payload.
const (
	ErrUnknown = 1
	ErrTooBig  = 2
	ErrBadType = 3
	ErrBadArg  = 4
)

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendI64(buf []byte, v int64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	return append(buf, b[:]...)
}

func appendF64(buf []byte, v float64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	return append(buf, b[:]...)
}

// AppendNil appends a TAG_NIL value.
func AppendNil(buf []byte) []byte {
	return append(buf, TagNil)
}

// AppendStr appends a TAG_STR value.
func AppendStr(buf []byte, s string) []byte {
	buf = append(buf, TagStr)
	buf = appendU32(buf, uint32(len(s)))
	return append(buf, s...)
}

// AppendInt appends a TAG_INT value.
func AppendInt(buf []byte, v int64) []byte {
	buf = append(buf, TagInt)
	return appendI64(buf, v)
}

// AppendDbl appends a TAG_DBL value.
func AppendDbl(buf []byte, v float64) []byte {
	buf = append(buf, TagDbl)
	return appendF64(buf, v)
}

// AppendErr appends a TAG_ERR value.
func AppendErr(buf []byte, code uint32, msg string) []byte {
	buf = append(buf, TagErr)
	buf = appendU32(buf, code)
	buf = appendU32(buf, uint32(len(msg)))
	return append(buf, msg...)
}

// AppendArr appends a TAG_ARR header for a known element count, for
// responses that don't stream their array.
func AppendArr(buf []byte, n uint32) []byte {
	buf = append(buf, TagArr)
	return appendU32(buf, n)
}

// BeginArr appends a TAG_ARR header with a placeholder count and
// returns the offset to patch once the element count is known, for
// responses (like ZQUERY) that stream elements as they're produced.
func BeginArr(buf []byte) (out []byte, ctx int) {
	buf = append(buf, TagArr)
	ctx = len(buf)
	buf = appendU32(buf, 0)
	return buf, ctx
}

// EndArr patches the element count reserved by BeginArr.
func EndArr(buf []byte, ctx int, n uint32) {
	binary.LittleEndian.PutUint32(buf[ctx:], n)
}

// BeginResponse reserves space for a response's length prefix and
// returns the header offset to pass to EndResponse.
func BeginResponse(buf []byte) (out []byte, header int) {
	header = len(buf)
	buf = appendU32(buf, 0)
	return buf, header
}

// EndResponse back-patches the length prefix reserved by
// BeginResponse. If the body exceeds MaxMsg it is discarded and
// replaced with a TAG_ERR(ErrTooBig) body before the length is
// written.
func EndResponse(buf []byte, header int) []byte {
	size := len(buf) - header - 4
	if size > MaxMsg {
		buf = buf[:header+4]
		buf = AppendErr(buf, ErrTooBig, "response is too big")
		size = len(buf) - header - 4
	}
	binary.LittleEndian.PutUint32(buf[header:header+4], uint32(size))
	return buf
}
