package binary

// Buffer is a growable byte buffer, grounded on the teacher's
// internal/wasm/binary section encoders, which build each section body
// into a []byte before prefixing it with its LEB128-encoded length
// (see encoder_test.go's expected byte layouts: section id, size,
// vector count, then the vector elements).
type Buffer struct {
	b []byte
}

const maxBufferBytes = 256 << 20

func (buf *Buffer) Bytes() []byte { return buf.b }

func (buf *Buffer) WriteByte(b byte) error {
	if len(buf.b)+1 > maxBufferBytes {
		panic("wasm/binary: buffer exceeds maximum capacity")
	}
	buf.b = append(buf.b, b)
	return nil
}

func (buf *Buffer) Write(p []byte) {
	if len(buf.b)+len(p) > maxBufferBytes {
		panic("wasm/binary: buffer exceeds maximum capacity")
	}
	buf.b = append(buf.b, p...)
}

func (buf *Buffer) WriteUint32(v uint32) { buf.Write(EncodeUint32(v)) }
func (buf *Buffer) WriteUint64(v uint64) { buf.Write(EncodeUint64(v)) }
func (buf *Buffer) WriteInt32(v int32)   { buf.Write(EncodeInt32(v)) }
func (buf *Buffer) WriteInt64(v int64)   { buf.Write(EncodeInt64(v)) }

// WriteName writes a length-prefixed UTF-8 string, the encoding WASM
// uses for import/export/name-section identifiers.
func (buf *Buffer) WriteName(s string) {
	buf.WriteUint32(uint32(len(s)))
	buf.Write([]byte(s))
}

// section wraps body with its section id and a LEB128 byte-length
// prefix, the shape every section in encoder_test.go's expected output
// follows (id byte, size varint, body bytes).
func section(id byte, body []byte) []byte {
	out := []byte{id}
	out = append(out, EncodeUint32(uint32(len(body)))...)
	out = append(out, body...)
	return out
}

// vector writes a LEB128 count followed by the concatenation of every
// item, the shape WASM uses for every section's top-level list.
func vector(count int, items []byte) []byte {
	out := EncodeUint32(uint32(count))
	out = append(out, items...)
	return out
}
