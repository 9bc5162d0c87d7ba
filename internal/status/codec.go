package status

import (
	"math"
)

// Encoder builds one TLV packet. The zero value is ready to use; the
// packet grows as Encode* methods are called and is finished with Bytes
// (which appends the terminating EOL tag).
//
// Grounded on status.c's encode_int64/encode_float/.../encode_string: each
// entry is [tag byte][length byte][value], integers stored big-endian with
// leading zero bytes suppressed, floats/doubles stored as their raw
// IEEE754 bit pattern (also leading-zero-suppressed), strings copied
// unswapped.
type Encoder struct {
	buf []byte
}

// Bytes returns the encoded packet so far, followed by a terminating EOL.
func (e *Encoder) Bytes() []byte {
	return append(append([]byte(nil), e.buf...), byte(EOL))
}

// Int64 encodes x as a leading-zero-suppressed big-endian integer, 0 to 8
// bytes (an x of zero encodes as a zero-length value).
func (e *Encoder) Int64(tag Tag, x uint64) {
	var tmp [8]byte
	for i := 0; i < 8; i++ {
		tmp[i] = byte(x >> uint(56-8*i))
	}
	start := 0
	for start < 8 && tmp[start] == 0 {
		start++
	}
	e.buf = append(e.buf, byte(tag), byte(8-start))
	e.buf = append(e.buf, tmp[start:]...)
}

// Int encodes a signed int using Int64's unsigned representation (the wire
// format has no sign bit; negative values are never sent by this
// protocol).
func (e *Encoder) Int(tag Tag, x int) { e.Int64(tag, uint64(x)) }

// Byte encodes a single byte value with a fixed length-1 field, matching
// encode_byte (which never suppresses its single byte).
func (e *Encoder) Byte(tag Tag, x byte) {
	e.buf = append(e.buf, byte(tag), 1, x)
}

// Bool encodes a boolean as a single byte, 0 or 1.
func (e *Encoder) Bool(tag Tag, x bool) {
	if x {
		e.Byte(tag, 1)
	} else {
		e.Byte(tag, 0)
	}
}

// Float32 encodes x as its IEEE754 bit pattern, leading-zero-suppressed
// the same as an integer.
func (e *Encoder) Float32(tag Tag, x float32) {
	e.Int64(tag, uint64(math.Float32bits(x)))
}

// Float64 encodes x as its IEEE754 bit pattern, leading-zero-suppressed,
// matching encode_double's reuse of encode_int64.
func (e *Encoder) Float64(tag Tag, x float64) {
	e.Int64(tag, math.Float64bits(x))
}

// String encodes s verbatim (no byte-swap), truncated to 255 bytes.
func (e *Encoder) String(tag Tag, s string) {
	if len(s) > 255 {
		s = s[:255]
	}
	e.buf = append(e.buf, byte(tag), byte(len(s)))
	e.buf = append(e.buf, s...)
}

// Entry is one decoded tag/value pair.
type Entry struct {
	Tag   Tag
	Value []byte
}

// Decode splits a packet into its tag/value entries, stopping at the
// terminating EOL (or at a truncated trailing entry, which is silently
// dropped -- matching dump_radio_status's "invalid length" break).
func Decode(pkt []byte) []Entry {
	var entries []Entry
	i := 0
	for i < len(pkt) {
		tag := Tag(pkt[i])
		if tag == EOL {
			break
		}
		i++
		if i >= len(pkt) {
			break
		}
		length := int(pkt[i])
		i++
		if i+length > len(pkt) {
			break
		}
		entries = append(entries, Entry{Tag: tag, Value: pkt[i : i+length]})
		i += length
	}
	return entries
}

// DecodeUint interprets a decoded value as a big-endian unsigned integer,
// the inverse of Int64/Byte.
func DecodeUint(v []byte) uint64 {
	var result uint64
	for _, b := range v {
		result = (result << 8) | uint64(b)
	}
	return result
}

// DecodeInt interprets a decoded value as a plain integer.
func DecodeInt(v []byte) int { return int(DecodeUint(v)) }

// DecodeBool interprets a decoded value as a boolean (nonzero is true).
func DecodeBool(v []byte) bool { return DecodeUint(v) != 0 }

// DecodeFloat32 interprets a decoded value as a float32, matching
// decode_float: an 8-byte value is read back as a narrowed float64, a
// shorter one as the IEEE754 bit pattern.
func DecodeFloat32(v []byte) float32 {
	if len(v) == 8 {
		return float32(DecodeFloat64(v))
	}
	return math.Float32frombits(uint32(DecodeUint(v)))
}

// DecodeFloat64 interprets a decoded value as a float64, matching
// decode_double: a 4-byte value is read back as a widened float32.
func DecodeFloat64(v []byte) float64 {
	if len(v) == 4 {
		return float64(DecodeFloat32(v))
	}
	return math.Float64frombits(DecodeUint(v))
}

// DecodeString interprets a decoded value as a raw string (no byte-swap).
func DecodeString(v []byte) string { return string(v) }
