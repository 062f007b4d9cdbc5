// Package token defines the lexical tokens produced by internal/lexer.
package token

import "fmt"

// Kind enumerates the categories of lexical tokens.
type Kind int

const (
	Invalid Kind = iota
	EOF

	// Identifiers and literals.
	Ident
	PrivateIdent  // #name
	SymbolIdent   // :name
	IntLit
	FloatLit
	StringLit
	BoolLit
	NullLit

	// Template pieces, split the way a `${expr}` interpolation requires.
	NoSubstitutionTemplate
	TemplateHead
	TemplateMiddle
	TemplateTail

	// Punctuation.
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Comma
	Semicolon
	Colon
	Dot
	DotDot     // ..
	Arrow      // =>
	At         // @ decorator
	Question

	// Operators.
	Assign
	Eq
	NotEq
	Lt
	LtEq
	Gt
	GtEq
	Plus
	Minus
	Star
	Slash
	Percent
	StarStar // **
	Bang
	AndAnd
	OrOr
	Amp
	Pipe
	Caret
	Shl
	Shr

	// Keywords.
	KwLet
	KwVar
	KwIf
	KwElse
	KwFor
	KwWhile
	KwReturn
	KwImport
	KwExport
	KwFrom
	KwClass
	KwInterface
	KwMixin
	KwFunction
	KwDeclare
	KwType
	KwDistinct
	KwSymbol
	KwEnum
	KwNew
	KwThis
	KwSuper
	KwMatch
	KwCase
	KwThrow
	KwAs
	KwIs
	KwExtends
	KwImplements
	KwIn
	KwTrue
	KwFalse
	KwNull
)

var keywords = map[string]Kind{
	"let": KwLet, "var": KwVar, "if": KwIf, "else": KwElse,
	"for": KwFor, "while": KwWhile, "return": KwReturn,
	"import": KwImport, "export": KwExport, "from": KwFrom,
	"class": KwClass, "interface": KwInterface, "mixin": KwMixin,
	"function": KwFunction, "declare": KwDeclare, "type": KwType,
	"distinct": KwDistinct, "symbol": KwSymbol, "enum": KwEnum,
	"new": KwNew, "this": KwThis, "super": KwSuper,
	"match": KwMatch, "case": KwCase, "throw": KwThrow,
	"as": KwAs, "is": KwIs, "extends": KwExtends,
	"implements": KwImplements, "in": KwIn,
	"true": KwTrue, "false": KwFalse, "null": KwNull,
}

// Lookup returns the keyword Kind for ident, or (Ident, false) if ident is
// not reserved.
func Lookup(ident string) (Kind, bool) {
	k, ok := keywords[ident]
	if !ok {
		return Ident, false
	}
	return k, true
}

// Span is a half-open source range, byte-offset based with line/column
// recorded for diagnostics. Both ends refer to the same source text.
type Span struct {
	StartByte, EndByte int
	StartLine, StartCol int
	EndLine, EndCol     int
}

// String renders a Span the way diagnostics print locations: "line:col".
func (s Span) String() string {
	return fmt.Sprintf("%d:%d", s.StartLine, s.StartCol)
}

// Token is one lexeme plus its classification and source span.
type Token struct {
	Kind   Kind
	Lexeme string
	Span   Span
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%s", t.Kind, t.Lexeme, t.Span)
}

//go:generate stringer -type=Kind
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "UNKNOWN"
}

var kindNames = map[Kind]string{
	Invalid: "Invalid", EOF: "EOF", Ident: "Ident", PrivateIdent: "PrivateIdent",
	SymbolIdent: "SymbolIdent", IntLit: "IntLit", FloatLit: "FloatLit",
	StringLit: "StringLit", BoolLit: "BoolLit", NullLit: "NullLit",
	NoSubstitutionTemplate: "NoSubstitutionTemplate", TemplateHead: "TemplateHead",
	TemplateMiddle: "TemplateMiddle", TemplateTail: "TemplateTail",
	LParen: "LParen", RParen: "RParen", LBrace: "LBrace", RBrace: "RBrace",
	LBracket: "LBracket", RBracket: "RBracket", Comma: "Comma", Semicolon: "Semicolon",
	Colon: "Colon", Dot: "Dot", DotDot: "DotDot", Arrow: "Arrow", At: "At",
	Question: "Question", Assign: "Assign", Eq: "Eq", NotEq: "NotEq", Lt: "Lt",
	LtEq: "LtEq", Gt: "Gt", GtEq: "GtEq", Plus: "Plus", Minus: "Minus", Star: "Star",
	Slash: "Slash", Percent: "Percent", StarStar: "StarStar", Bang: "Bang",
	AndAnd: "AndAnd", OrOr: "OrOr", Amp: "Amp", Pipe: "Pipe", Caret: "Caret",
	Shl: "Shl", Shr: "Shr",
}
