// Package lexer turns source text into a stream of tokens for the parser.
//
// It mirrors the single-pass, byte-offset-tracking style the teacher uses
// for its own binary decoders (internal/wasm/binary): no backtracking, an
// explicit (offset, line, column) cursor, and errors returned rather than
// panicked on the first malformed byte sequence.
package lexer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/wgc-lang/wgc/internal/token"
)

// Error is a lexical error with the span it occurred at.
type Error struct {
	Msg  string
	Span token.Span
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Span, e.Msg) }

// Lexer is a single-pass scanner over UTF-8 source text. It is not
// reentrant: create one Lexer per compilation unit, as with the checker
// and codegen (spec.md §5: "a new compiler value is required per
// compilation").
type Lexer struct {
	src         string
	offset      int
	line, col   int
	templateLvl []rune // stack of brace-nesting markers inside `${ }`
}

// New creates a Lexer over src.
func New(src string) *Lexer {
	return &Lexer{src: src, line: 1, col: 1}
}

func (l *Lexer) eof() bool { return l.offset >= len(l.src) }

func (l *Lexer) peek() byte {
	if l.eof() {
		return 0
	}
	return l.src[l.offset]
}

func (l *Lexer) peekAt(n int) byte {
	if l.offset+n >= len(l.src) {
		return 0
	}
	return l.src[l.offset+n]
}

func (l *Lexer) advance() byte {
	c := l.src[l.offset]
	l.offset++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

func (l *Lexer) mark() (int, int, int) { return l.offset, l.line, l.col }

func (l *Lexer) span(startOff, startLine, startCol int) token.Span {
	return token.Span{
		StartByte: startOff, EndByte: l.offset,
		StartLine: startLine, StartCol: startCol,
		EndLine: l.line, EndCol: l.col,
	}
}

// Tokenize scans the entire source and returns all tokens including a
// trailing EOF, or the first lexical error encountered (the parser's
// "fail fast" policy, spec.md §4.4, begins at the lexer).
//
// Pre-lexing the whole module flat (rather than interleaving with the
// parser) means Tokenize itself must resolve template interpolation:
// after a TemplateHead/TemplateMiddle, ordinary tokens follow until the
// `}` that closes the hole, at which point scanning must resume with
// ContinueTemplate rather than Next — a brace-depth stack tells a plain
// nested `{`/`}` (e.g. a record literal inside the interpolation) apart
// from the one that ends it.
func Tokenize(src string) ([]token.Token, error) {
	l := New(src)
	var toks []token.Token
	var templateDepths []int // one entry per currently-open interpolation hole
	for {
		var t token.Token
		var err error
		if len(templateDepths) > 0 && templateDepths[len(templateDepths)-1] == 0 && l.peek() == '}' {
			t, err = l.ContinueTemplate()
			templateDepths = templateDepths[:len(templateDepths)-1]
			if t.Kind == token.TemplateMiddle {
				templateDepths = append(templateDepths, 0)
			}
		} else {
			t, err = l.Next()
			switch t.Kind {
			case token.TemplateHead:
				templateDepths = append(templateDepths, 0)
			case token.LBrace:
				if len(templateDepths) > 0 {
					templateDepths[len(templateDepths)-1]++
				}
			case token.RBrace:
				if len(templateDepths) > 0 {
					templateDepths[len(templateDepths)-1]--
				}
			}
		}
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.Kind == token.EOF {
			return toks, nil
		}
	}
}

// Next scans and returns the next token.
func (l *Lexer) Next() (token.Token, error) {
	l.skipTrivia()

	startOff, startLine, startCol := l.mark()
	if l.eof() {
		return token.Token{Kind: token.EOF, Span: l.span(startOff, startLine, startCol)}, nil
	}

	c := l.peek()
	switch {
	case isIdentStart(c):
		return l.scanIdent(startOff, startLine, startCol)
	case c == '#':
		l.advance()
		return l.scanPrivateIdent(startOff, startLine, startCol)
	case c == ':' && isIdentStart(l.peekAt(1)):
		l.advance()
		return l.scanSymbolIdent(startOff, startLine, startCol)
	case isDigit(c):
		return l.scanNumber(startOff, startLine, startCol)
	case c == '"' || c == '\'':
		return l.scanString(startOff, startLine, startCol, c)
	case c == '`':
		l.advance()
		return l.scanTemplateSpan(startOff, startLine, startCol, token.NoSubstitutionTemplate, token.TemplateHead)
	default:
		return l.scanOperator(startOff, startLine, startCol)
	}
}

func (l *Lexer) skipTrivia() {
	for !l.eof() {
		c := l.peek()
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.advance()
		case c == '/' && l.peekAt(1) == '/':
			for !l.eof() && l.peek() != '\n' {
				l.advance()
			}
		case c == '/' && l.peekAt(1) == '*':
			l.advance()
			l.advance()
			for !l.eof() && !(l.peek() == '*' && l.peekAt(1) == '/') {
				l.advance()
			}
			// Unterminated block comments silently terminate at EOF (spec.md §4.3).
			if !l.eof() {
				l.advance()
				l.advance()
			}
		default:
			return
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= utf8.RuneSelf
}

func isIdentCont(c byte) bool { return isIdentStart(c) || isDigit(c) }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (l *Lexer) scanIdent(startOff, startLine, startCol int) (token.Token, error) {
	for !l.eof() && isIdentCont(l.peek()) {
		l.advance()
	}
	lexeme := l.src[startOff:l.offset]
	sp := l.span(startOff, startLine, startCol)
	switch lexeme {
	case "true", "false":
		return token.Token{Kind: token.BoolLit, Lexeme: lexeme, Span: sp}, nil
	case "null":
		return token.Token{Kind: token.NullLit, Lexeme: lexeme, Span: sp}, nil
	}
	if kw, ok := token.Lookup(lexeme); ok {
		return token.Token{Kind: kw, Lexeme: lexeme, Span: sp}, nil
	}
	return token.Token{Kind: token.Ident, Lexeme: lexeme, Span: sp}, nil
}

func (l *Lexer) scanPrivateIdent(startOff, startLine, startCol int) (token.Token, error) {
	for !l.eof() && isIdentCont(l.peek()) {
		l.advance()
	}
	return token.Token{Kind: token.PrivateIdent, Lexeme: l.src[startOff:l.offset], Span: l.span(startOff, startLine, startCol)}, nil
}

func (l *Lexer) scanSymbolIdent(startOff, startLine, startCol int) (token.Token, error) {
	for !l.eof() && isIdentCont(l.peek()) {
		l.advance()
	}
	return token.Token{Kind: token.SymbolIdent, Lexeme: l.src[startOff:l.offset], Span: l.span(startOff, startLine, startCol)}, nil
}

// scanNumber handles integer and floating literals, including type-suffix
// casts which are syntactic ("as i64") and therefore NOT lexed here
// (spec.md §4.3): the lexer only ever produces IntLit/FloatLit.
func (l *Lexer) scanNumber(startOff, startLine, startCol int) (token.Token, error) {
	isFloat := false
	for !l.eof() && isDigit(l.peek()) {
		l.advance()
	}
	if !l.eof() && l.peek() == '.' && isDigit(l.peekAt(1)) {
		isFloat = true
		l.advance()
		for !l.eof() && isDigit(l.peek()) {
			l.advance()
		}
	}
	if !l.eof() && (l.peek() == 'e' || l.peek() == 'E') {
		peekOff := 1
		if l.peekAt(peekOff) == '+' || l.peekAt(peekOff) == '-' {
			peekOff++
		}
		if isDigit(l.peekAt(peekOff)) {
			isFloat = true
			l.advance()
			if l.peek() == '+' || l.peek() == '-' {
				l.advance()
			}
			for !l.eof() && isDigit(l.peek()) {
				l.advance()
			}
		}
	}
	lexeme := l.src[startOff:l.offset]
	sp := l.span(startOff, startLine, startCol)
	if isFloat {
		return token.Token{Kind: token.FloatLit, Lexeme: lexeme, Span: sp}, nil
	}
	return token.Token{Kind: token.IntLit, Lexeme: lexeme, Span: sp}, nil
}

func (l *Lexer) scanString(startOff, startLine, startCol int, quote byte) (token.Token, error) {
	l.advance() // opening quote
	var b strings.Builder
	for {
		if l.eof() {
			return token.Token{}, &Error{Msg: "unterminated string literal", Span: l.span(startOff, startLine, startCol)}
		}
		c := l.peek()
		if c == quote {
			l.advance()
			break
		}
		if c == '\\' {
			l.advance()
			esc, err := l.scanEscape(startOff, startLine, startCol)
			if err != nil {
				return token.Token{}, err
			}
			b.WriteRune(esc)
			continue
		}
		if c == '\n' {
			return token.Token{}, &Error{Msg: "unterminated string literal", Span: l.span(startOff, startLine, startCol)}
		}
		b.WriteByte(l.advance())
	}
	sp := l.span(startOff, startLine, startCol)
	return token.Token{Kind: token.StringLit, Lexeme: b.String(), Span: sp}, nil
}

func (l *Lexer) scanEscape(startOff, startLine, startCol int) (rune, error) {
	if l.eof() {
		return 0, &Error{Msg: "unterminated escape sequence", Span: l.span(startOff, startLine, startCol)}
	}
	c := l.advance()
	switch c {
	case 'n':
		return '\n', nil
	case 't':
		return '\t', nil
	case 'r':
		return '\r', nil
	case '\\':
		return '\\', nil
	case '\'':
		return '\'', nil
	case '"':
		return '"', nil
	case '`':
		return '`', nil
	case '0':
		return 0, nil
	default:
		return rune(c), nil
	}
}

// scanTemplateSpan scans up to the next `${` (producing headKind) or the
// closing backtick (producing soleKind). After each `${expr}` the span
// is resumed through ContinueTemplate, producing TemplateMiddle or
// TemplateTail; Tokenize tracks interpolation nesting (templateDepths)
// to know when a `}` closes an interpolation.
func (l *Lexer) scanTemplateSpan(startOff, startLine, startCol int, soleKind, headKind token.Kind) (token.Token, error) {
	var b strings.Builder
	for {
		if l.eof() {
			return token.Token{}, &Error{Msg: "unterminated template literal", Span: l.span(startOff, startLine, startCol)}
		}
		c := l.peek()
		if c == '`' {
			l.advance()
			return token.Token{Kind: soleKind, Lexeme: b.String(), Span: l.span(startOff, startLine, startCol)}, nil
		}
		if c == '$' && l.peekAt(1) == '{' {
			l.advance()
			l.advance()
			return token.Token{Kind: headKind, Lexeme: b.String(), Span: l.span(startOff, startLine, startCol)}, nil
		}
		if c == '\\' {
			l.advance()
			esc, err := l.scanEscape(startOff, startLine, startCol)
			if err != nil {
				return token.Token{}, err
			}
			b.WriteRune(esc)
			continue
		}
		b.WriteByte(l.advance())
	}
}

// ContinueTemplate resumes scanning after a `}` that closed a `${expr}`
// interpolation hole, producing either TemplateMiddle (another `${`
// follows) or TemplateTail (the closing backtick follows).
func (l *Lexer) ContinueTemplate() (token.Token, error) {
	startOff, startLine, startCol := l.mark()
	return l.scanTemplateSpan(startOff, startLine, startCol, token.TemplateTail, token.TemplateMiddle)
}

var twoCharOps = map[string]token.Kind{
	"==": token.Eq, "!=": token.NotEq, "<=": token.LtEq, ">=": token.GtEq,
	"=>": token.Arrow, "..": token.DotDot, "**": token.StarStar,
	"&&": token.AndAnd, "||": token.OrOr, "<<": token.Shl, ">>": token.Shr,
}

var oneCharOps = map[byte]token.Kind{
	'(': token.LParen, ')': token.RParen, '{': token.LBrace, '}': token.RBrace,
	'[': token.LBracket, ']': token.RBracket, ',': token.Comma, ';': token.Semicolon,
	':': token.Colon, '.': token.Dot, '@': token.At, '?': token.Question,
	'=': token.Assign, '<': token.Lt, '>': token.Gt, '+': token.Plus,
	'-': token.Minus, '*': token.Star, '/': token.Slash, '%': token.Percent,
	'!': token.Bang, '&': token.Amp, '|': token.Pipe, '^': token.Caret,
}

func (l *Lexer) scanOperator(startOff, startLine, startCol int) (token.Token, error) {
	two := string(l.peek()) + string(l.peekAt(1))
	if kind, ok := twoCharOps[two]; ok {
		l.advance()
		l.advance()
		return token.Token{Kind: kind, Lexeme: two, Span: l.span(startOff, startLine, startCol)}, nil
	}
	c := l.peek()
	if kind, ok := oneCharOps[c]; ok {
		l.advance()
		return token.Token{Kind: kind, Lexeme: string(c), Span: l.span(startOff, startLine, startCol)}, nil
	}
	l.advance()
	return token.Token{}, &Error{Msg: fmt.Sprintf("unexpected character %q", c), Span: l.span(startOff, startLine, startCol)}
}
