package binary

import "fmt"

// LEB128 signed/unsigned varint encode+decode, grounded on the
// teacher's internal/leb128 package (same function names and byte-slice
// based Load* signatures, confirmed against its leb128_test.go since the
// teacher's own leb128.go implementation was filtered out of the
// retrieval pack).

// EncodeUint32 appends a WASM unsigned LEB128 encoding of v.
func EncodeUint32(v uint32) []byte {
	return EncodeUint64(uint64(v))
}

// EncodeUint64 appends a WASM unsigned LEB128 encoding of v.
func EncodeUint64(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

// EncodeInt32 appends a WASM signed LEB128 encoding of v.
func EncodeInt32(v int32) []byte {
	return EncodeInt64(int64(v))
}

// EncodeInt64 appends a WASM signed LEB128 encoding of v.
func EncodeInt64(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			out = append(out, b)
			return out
		}
		out = append(out, b|0x80)
	}
}

// LoadUint32 decodes an unsigned LEB128 varint from the head of b,
// returning the value and the number of bytes consumed.
func LoadUint32(b []byte) (uint32, uint64, error) {
	v, n, err := LoadUint64(b)
	if err != nil {
		return 0, 0, err
	}
	if v > 0xffffffff {
		return 0, 0, fmt.Errorf("overflows uint32")
	}
	return uint32(v), n, nil
}

// LoadUint64 decodes an unsigned LEB128 varint from the head of b.
func LoadUint64(b []byte) (uint64, uint64, error) {
	var result uint64
	var shift uint
	for i := 0; i < len(b); i++ {
		c := b[i]
		if shift >= 64 {
			return 0, 0, fmt.Errorf("invalid LEB128 encoding: too many bytes")
		}
		result |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			if shift+7 < 64 && c&0x7f>>(64-shift) != 0 {
				return 0, 0, fmt.Errorf("invalid LEB128 encoding: overflow")
			}
			return result, uint64(i + 1), nil
		}
		shift += 7
	}
	return 0, 0, fmt.Errorf("invalid LEB128 encoding: unexpected end of input")
}

// LoadInt32 decodes a signed LEB128 varint from the head of b.
func LoadInt32(b []byte) (int32, uint64, error) {
	v, n, err := LoadInt64(b)
	if err != nil {
		return 0, 0, err
	}
	if v > 0x7fffffff || v < -0x80000000 {
		return 0, 0, fmt.Errorf("overflows int32")
	}
	return int32(v), n, nil
}

// LoadInt64 decodes a signed LEB128 varint from the head of b.
func LoadInt64(b []byte) (int64, uint64, error) {
	var result int64
	var shift uint
	var i int
	var c byte
	for i = 0; i < len(b); i++ {
		c = b[i]
		result |= int64(c&0x7f) << shift
		shift += 7
		if c&0x80 == 0 {
			break
		}
	}
	if i == len(b) && (c&0x80) != 0 {
		return 0, 0, fmt.Errorf("invalid LEB128 encoding: unexpected end of input")
	}
	if shift < 64 && c&0x40 != 0 {
		result |= -1 << shift
	}
	return result, uint64(i + 1), nil
}
