package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	k, ok := Lookup("class")
	require.True(t, ok)
	require.Equal(t, KwClass, k)

	k, ok = Lookup("notAKeyword")
	require.False(t, ok)
	require.Equal(t, Ident, k)
}

func TestSpanString(t *testing.T) {
	s := Span{StartLine: 3, StartCol: 7}
	require.Equal(t, "3:7", s.String())
}

func TestTokenString(t *testing.T) {
	tok := Token{Kind: Ident, Lexeme: "foo", Span: Span{StartLine: 1, StartCol: 1}}
	require.Equal(t, `Ident("foo")@1:1`, tok.String())
}

func TestKindStringUnknown(t *testing.T) {
	require.Equal(t, "UNKNOWN", Kind(9999).String())
}
