// Package coding contains the primitive encodings shared by the key codec,
// the memtable record format and the block format.
//
// Fixed-width integers are little-endian, variable-width integers use the
// LEB128-style encoding of encoding/binary.
package coding

import (
	"encoding/binary"
	"math"
)

// Maximum encoded lengths.
const (
	MaxVarintLen32 = 5
	MaxVarintLen64 = binary.MaxVarintLen64
)

// AppendVarint32 appends v as a varint.
func AppendVarint32(dst []byte, v uint32) []byte {
	return AppendVarint64(dst, uint64(v))
}

// AppendVarint64 appends v as a varint.
func AppendVarint64(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// Varint32 decodes a varint32 from the front of src and returns the value
// and the number of bytes consumed. A non-positive n signals a truncated
// or overflowing input.
func Varint32(src []byte) (uint32, int) {
	if len(src) > MaxVarintLen32 {
		src = src[:MaxVarintLen32]
	}
	v, n := binary.Uvarint(src)
	if n <= 0 {
		return 0, n
	}
	if v > math.MaxUint32 {
		return 0, -n
	}
	return uint32(v), n
}

// Varint64 decodes a varint64 from the front of src, see Varint32.
func Varint64(src []byte) (uint64, int) {
	return binary.Uvarint(src)
}

// VarintLen returns the number of bytes needed to encode v.
func VarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// AppendFixed32 appends v as 4 little-endian bytes.
func AppendFixed32(dst []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(dst, tmp[:]...)
}

// AppendFixed64 appends v as 8 little-endian bytes.
func AppendFixed64(dst []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(dst, tmp[:]...)
}

// Fixed32 decodes 4 little-endian bytes. src must hold at least 4 bytes.
func Fixed32(src []byte) uint32 { return binary.LittleEndian.Uint32(src) }

// Fixed64 decodes 8 little-endian bytes. src must hold at least 8 bytes.
func Fixed64(src []byte) uint64 { return binary.LittleEndian.Uint64(src) }

// AppendLengthPrefixed appends varint32(len(p)) followed by p.
func AppendLengthPrefixed(dst, p []byte) []byte {
	dst = AppendVarint32(dst, uint32(len(p)))
	return append(dst, p...)
}

// LengthPrefixed decodes a length-prefixed slice from the front of src.
// It returns the slice (aliasing src) and the total number of bytes
// consumed, or n <= 0 if src is truncated.
func LengthPrefixed(src []byte) (p []byte, n int) {
	sz, m := Varint32(src)
	if m <= 0 {
		return nil, m
	}
	end := uint64(m) + uint64(sz)
	if end > uint64(len(src)) {
		return nil, 0
	}
	return src[m:end:end], int(end)
}
