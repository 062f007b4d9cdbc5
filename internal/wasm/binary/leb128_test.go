package binary

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeUint32(t *testing.T) {
	tests := []struct {
		name string
		in   uint32
		want []byte
	}{
		{"zero", 0, []byte{0x00}},
		{"one byte max", 0x7f, []byte{0x7f}},
		{"two bytes", 0x80, []byte{0x80, 0x01}},
		{"624485", 624485, []byte{0xe5, 0x8e, 0x26}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, EncodeUint32(tt.in))
		})
	}
}

func TestEncodeInt32(t *testing.T) {
	tests := []struct {
		name string
		in   int32
		want []byte
	}{
		{"zero", 0, []byte{0x00}},
		{"positive small", 2, []byte{0x02}},
		{"negative small", -2, []byte{0x7e}},
		{"-624485", -624485, []byte{0x9b, 0xf1, 0x59}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, EncodeInt32(tt.in))
		})
	}
}

func TestLEB128RoundTripViaBuffer(t *testing.T) {
	var buf Buffer
	buf.WriteUint32(624485)
	buf.WriteInt32(-624485)
	buf.WriteName("wgc")
	want := append(append(EncodeUint32(624485), EncodeInt32(-624485)...), append(EncodeUint32(3), []byte("wgc")...)...)
	require.Equal(t, want, buf.Bytes())
}
