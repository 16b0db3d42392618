// Package leb128 encodes and decodes unsigned and signed LEB128 varints, the
// per-field integer encoding the columnar change/document format (spec §6)
// is built on. The per-byte continuation-bit loop mirrors the structure of
// the SQLite-style varint in the tur database example's internal/encoding
// package, adapted from that format's big-endian 7-bit grouping to LEB128's
// little-endian grouping.
package leb128

// PutUvarint appends the LEB128 encoding of v to buf and returns the result.
func PutUvarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

// Uvarint decodes a LEB128 unsigned varint from the front of buf, returning
// the value and the number of bytes consumed. n is 0 if buf does not contain
// a complete varint.
func Uvarint(buf []byte) (v uint64, n int) {
	var shift uint
	for i, b := range buf {
		if i == 10 {
			return 0, 0 // overflow guard: max 10 bytes for 64 bits
		}
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, i + 1
		}
		shift += 7
	}
	return 0, 0
}

// UvarintLen returns the number of bytes PutUvarint would emit for v.
func UvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// PutVarint appends the zigzag-LEB128 encoding of a signed value.
func PutVarint(buf []byte, v int64) []byte {
	uv := uint64(v) << 1
	if v < 0 {
		uv = ^uv
	}
	return PutUvarint(buf, uv)
}

// Varint decodes a zigzag-LEB128 signed varint.
func Varint(buf []byte) (v int64, n int) {
	uv, n := Uvarint(buf)
	if n == 0 {
		return 0, 0
	}
	v = int64(uv >> 1)
	if uv&1 != 0 {
		v = ^v
	}
	return v, n
}

// PutBytes appends a length-prefixed byte string: a LEB128 length followed
// by the raw bytes.
func PutBytes(buf []byte, b []byte) []byte {
	buf = PutUvarint(buf, uint64(len(b)))
	return append(buf, b...)
}

// Bytes decodes a length-prefixed byte string, returning a copy of the bytes
// and the number of bytes consumed including the length prefix.
func Bytes(buf []byte) ([]byte, int, bool) {
	l, n := Uvarint(buf)
	if n == 0 || n+int(l) > len(buf) {
		return nil, 0, false
	}
	out := make([]byte, l)
	copy(out, buf[n:n+int(l)])
	return out, n + int(l), true
}

// PutString appends a length-prefixed UTF-8 string.
func PutString(buf []byte, s string) []byte {
	return PutBytes(buf, []byte(s))
}

// String decodes a length-prefixed UTF-8 string.
func String(buf []byte) (string, int, bool) {
	b, n, ok := Bytes(buf)
	if !ok {
		return "", 0, false
	}
	return string(b), n, true
}
