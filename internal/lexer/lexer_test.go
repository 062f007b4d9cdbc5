package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wgc-lang/wgc/internal/token"
)

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestTokenizeArrowFunction(t *testing.T) {
	toks, err := Tokenize("let f = (x) => x + 1;")
	require.NoError(t, err)
	require.Equal(t, []token.Kind{
		token.KwLet, token.Ident, token.Assign, token.LParen, token.Ident, token.RParen,
		token.Arrow, token.Ident, token.Plus, token.IntLit, token.Semicolon, token.EOF,
	}, kinds(toks))
}

func TestTokenizeSpansAreOneBased(t *testing.T) {
	toks, err := Tokenize("let")
	require.NoError(t, err)
	require.Equal(t, 1, toks[0].Span.StartLine)
	require.Equal(t, 1, toks[0].Span.StartCol)
	require.Equal(t, 4, toks[0].Span.EndCol)
}

func TestTokenizeTracksNewlines(t *testing.T) {
	toks, err := Tokenize("let\nvar")
	require.NoError(t, err)
	require.Equal(t, 1, toks[0].Span.StartLine)
	require.Equal(t, 2, toks[1].Span.StartLine)
}

func TestTokenizeStringLit(t *testing.T) {
	toks, err := Tokenize(`"hi\nthere"`)
	require.NoError(t, err)
	require.Equal(t, token.StringLit, toks[0].Kind)
	require.Equal(t, "hi\nthere", toks[0].Lexeme)
}

func TestTokenizeNumberLits(t *testing.T) {
	toks, err := Tokenize("42 3.14")
	require.NoError(t, err)
	require.Equal(t, token.IntLit, toks[0].Kind)
	require.Equal(t, token.FloatLit, toks[1].Kind)
}

func TestTokenizePrivateAndSymbolIdent(t *testing.T) {
	toks, err := Tokenize("#field :sym")
	require.NoError(t, err)
	require.Equal(t, token.PrivateIdent, toks[0].Kind)
	require.Equal(t, token.SymbolIdent, toks[1].Kind)
}

func TestTokenizeKeywordsVsIdents(t *testing.T) {
	toks, err := Tokenize("class Foo extends Bar")
	require.NoError(t, err)
	require.Equal(t, []token.Kind{token.KwClass, token.Ident, token.KwExtends, token.Ident, token.EOF}, kinds(toks))
}

func TestTokenizeUnterminatedStringErrors(t *testing.T) {
	_, err := Tokenize(`"unterminated`)
	require.Error(t, err)
}
