// Package parser implements a recursive-descent parser with Pratt-style
// binary-operator precedence (spec.md §4.4), producing an internal/ast
// tree. It fails fast: the first syntax error aborts parsing of that
// module, the same "accumulate nothing, abort" policy the teacher's own
// internal/wasm/binary decoders use for malformed sections (a single
// malformed length prefix aborts the whole decode rather than limping
// on with partial data).
package parser

import (
	"fmt"

	"github.com/wgc-lang/wgc/internal/ast"
	"github.com/wgc-lang/wgc/internal/lexer"
	"github.com/wgc-lang/wgc/internal/token"
)

// Error is a positioned syntax error.
type Error struct {
	Msg  string
	Span token.Span
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Span, e.Msg) }

// Parser consumes a pre-lexed token slice. Lexing the whole module
// up-front (rather than interleaving lex/parse) keeps lookahead simple,
// which matters for the `<` vs. generic-argument-list disambiguation in
// `new Foo<T>(...)` call sites (spec.md §4.4).
type Parser struct {
	toks []token.Token
	pos  int
	path string

	// lastArrowParams stashes the result of the most recent successful
	// tryParseArrowParams speculative parse.
	lastArrowParams []ast.Param
}

// Parse lexes and parses src as a module whose resolved specifier is
// path (used only for diagnostics and for the Module.Path field
// consumed by the compiler host's module graph).
func Parse(path, src string) (*ast.Module, error) {
	toks, err := lexer.Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks, path: path}
	return p.parseModule()
}

func (p *Parser) cur() token.Token     { return p.toks[p.pos] }
func (p *Parser) at(k token.Kind) bool { return p.cur().Kind == k }

func (p *Parser) peekAt(offset int) token.Token {
	idx := p.pos + offset
	if idx >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[idx]
}

func (p *Parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) expect(k token.Kind) (token.Token, error) {
	if !p.at(k) {
		return token.Token{}, &Error{
			Msg:  fmt.Sprintf("expected %s, got %s %q", k, p.cur().Kind, p.cur().Lexeme),
			Span: p.cur().Span,
		}
	}
	return p.advance(), nil
}

func (p *Parser) errf(format string, args ...any) error {
	return &Error{Msg: fmt.Sprintf(format, args...), Span: p.cur().Span}
}

func (p *Parser) consumeSemi() {
	if p.at(token.Semicolon) {
		p.advance()
	}
}

// spanFrom builds a Span covering [start, the token just consumed].
func (p *Parser) spanFrom(start token.Span) token.Span {
	end := start
	if p.pos > 0 {
		end = p.toks[p.pos-1].Span
	}
	return token.Span{
		StartByte: start.StartByte, EndByte: end.EndByte,
		StartLine: start.StartLine, StartCol: start.StartCol,
		EndLine: end.EndLine, EndCol: end.EndCol,
	}
}

func nb(sp token.Span) ast.NodeBase { return ast.NodeBase{Span: sp} }

// ---------------------------------------------------------------------
// Module / imports
// ---------------------------------------------------------------------

func (p *Parser) parseModule() (*ast.Module, error) {
	start := p.cur().Span
	m := &ast.Module{Path: p.path}

	for p.at(token.KwImport) || p.at(token.KwFrom) {
		imp, err := p.parseImport()
		if err != nil {
			return nil, err
		}
		m.Imports = append(m.Imports, imp)
	}

	for !p.at(token.EOF) {
		stmt, err := p.parseTopLevelStmt()
		if err != nil {
			return nil, err
		}
		m.Decls = append(m.Decls, stmt)
	}
	m.NodeBase = nb(p.spanFrom(start))
	return m, nil
}

func (p *Parser) parseImport() (*ast.ImportStmt, error) {
	start := p.cur().Span
	imp := &ast.ImportStmt{}
	if p.at(token.KwImport) {
		p.advance()
		specs, err := p.parseImportSpecifiers()
		if err != nil {
			return nil, err
		}
		imp.Specifiers = specs
		if _, err := p.expect(token.KwFrom); err != nil {
			return nil, err
		}
		src, err := p.expect(token.StringLit)
		if err != nil {
			return nil, err
		}
		imp.Source = src.Lexeme
	} else {
		p.advance() // from
		src, err := p.expect(token.StringLit)
		if err != nil {
			return nil, err
		}
		imp.Source = src.Lexeme
		if _, err := p.expect(token.KwImport); err != nil {
			return nil, err
		}
		specs, err := p.parseImportSpecifiers()
		if err != nil {
			return nil, err
		}
		imp.Specifiers = specs
	}
	p.consumeSemi()
	imp.NodeBase = nb(p.spanFrom(start))
	return imp, nil
}

func (p *Parser) parseImportSpecifiers() ([]ast.ImportSpecifier, error) {
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	var specs []ast.ImportSpecifier
	for !p.at(token.RBrace) {
		name, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		spec := ast.ImportSpecifier{Name: name.Lexeme, Alias: name.Lexeme}
		if p.at(token.KwAs) {
			p.advance()
			alias, err := p.expect(token.Ident)
			if err != nil {
				return nil, err
			}
			spec.Alias = alias.Lexeme
		}
		specs = append(specs, spec)
		if p.at(token.Comma) {
			p.advance()
		}
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	return specs, nil
}

// ---------------------------------------------------------------------
// Top-level statements / declarations
// ---------------------------------------------------------------------

func (p *Parser) parseTopLevelStmt() (ast.Stmt, error) {
	if p.at(token.KwExport) {
		start := p.cur().Span
		p.advance()
		decl, err := p.parseDecl()
		if err != nil {
			return nil, err
		}
		return &ast.ExportStmt{StmtBase: ast.StmtBase{NodeBase: nb(p.spanFrom(start))}, Decl: decl}, nil
	}
	return p.parseDecl()
}

func (p *Parser) parseDecorators() ([]ast.Decorator, error) {
	var decs []ast.Decorator
	for p.at(token.At) {
		p.advance()
		name, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		dec := ast.Decorator{Name: name.Lexeme}
		if p.at(token.LParen) {
			p.advance()
			for !p.at(token.RParen) {
				arg, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				dec.Args = append(dec.Args, arg)
				if p.at(token.Comma) {
					p.advance()
				}
			}
			if _, err := p.expect(token.RParen); err != nil {
				return nil, err
			}
		}
		decs = append(decs, dec)
	}
	return decs, nil
}

func (p *Parser) parseDecl() (ast.Decl, error) {
	decs, err := p.parseDecorators()
	if err != nil {
		return nil, err
	}
	switch p.cur().Kind {
	case token.KwClass:
		return p.parseClassDecl(decs)
	case token.KwInterface:
		return p.parseInterfaceDecl()
	case token.KwMixin:
		return p.parseMixinDecl()
	case token.KwFunction:
		return p.parseFuncDecl(decs)
	case token.KwDeclare:
		return p.parseDeclareFuncDecl()
	case token.KwType:
		return p.parseTypeAliasDecl()
	case token.KwSymbol:
		return p.parseSymbolDecl()
	case token.KwEnum:
		return p.parseEnumDecl()
	case token.KwLet, token.KwVar:
		return p.parseVarDeclAsDecl()
	default:
		return nil, p.errf("expected a declaration, got %s %q", p.cur().Kind, p.cur().Lexeme)
	}
}

// parseVarDeclAsDecl lets `export let x = ...;` at module scope reuse
// the statement-level VarDecl parser; the VarDecl is returned as is,
// since it already implements Decl.
func (p *Parser) parseVarDeclAsDecl() (ast.Decl, error) {
	vd, err := p.parseVarDecl()
	if err != nil {
		return nil, err
	}
	return vd, nil
}

func (p *Parser) parseTypeParams() ([]ast.TypeParam, error) {
	if !p.at(token.Lt) {
		return nil, nil
	}
	p.advance()
	var tps []ast.TypeParam
	for !p.at(token.Gt) {
		name, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		tp := ast.TypeParam{Name: name.Lexeme}
		if p.at(token.KwExtends) {
			p.advance()
			b, err := p.parseTypeAnnotation()
			if err != nil {
				return nil, err
			}
			tp.Bound = b
		}
		tps = append(tps, tp)
		if p.at(token.Comma) {
			p.advance()
		}
	}
	if _, err := p.expect(token.Gt); err != nil {
		return nil, err
	}
	return tps, nil
}

func (p *Parser) parseParams() ([]ast.Param, error) {
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	var params []ast.Param
	for !p.at(token.RParen) {
		name, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		param := ast.Param{Name: name.Lexeme}
		if p.at(token.Colon) {
			p.advance()
			typ, err := p.parseTypeAnnotation()
			if err != nil {
				return nil, err
			}
			param.Type = typ
		}
		params = append(params, param)
		if p.at(token.Comma) {
			p.advance()
		}
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	return params, nil
}

func (p *Parser) parseOptionalReturnType() (ast.TypeAnnotation, error) {
	if !p.at(token.Colon) {
		return nil, nil
	}
	p.advance()
	return p.parseTypeAnnotation()
}

func (p *Parser) parseFuncDecl(decs []ast.Decorator) (ast.Decl, error) {
	start := p.cur().Span
	p.advance() // function
	name, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	tps, err := p.parseTypeParams()
	if err != nil {
		return nil, err
	}
	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	ret, err := p.parseOptionalReturnType()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.FuncDecl{
		DeclBase:   ast.DeclBase{StmtBase: ast.StmtBase{NodeBase: nb(p.spanFrom(start))}},
		Decorators: decs, Name: name.Lexeme, TypeParams: tps, Params: params, ReturnType: ret, Body: body,
	}, nil
}

func (p *Parser) parseDeclareFuncDecl() (ast.Decl, error) {
	start := p.cur().Span
	p.advance() // declare
	if _, err := p.expect(token.KwFunction); err != nil {
		return nil, err
	}
	name, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	ret, err := p.parseOptionalReturnType()
	if err != nil {
		return nil, err
	}
	p.consumeSemi()
	return &ast.DeclareFuncDecl{
		DeclBase: ast.DeclBase{StmtBase: ast.StmtBase{NodeBase: nb(p.spanFrom(start))}},
		Name:     name.Lexeme, Params: params, ReturnType: ret,
	}, nil
}

func (p *Parser) parseTypeAliasDecl() (ast.Decl, error) {
	start := p.cur().Span
	p.advance() // type
	distinct := false
	if p.at(token.KwDistinct) {
		distinct = true
		p.advance()
	}
	name, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	tps, err := p.parseTypeParams()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Assign); err != nil {
		return nil, err
	}
	if p.at(token.KwDistinct) {
		distinct = true
		p.advance()
	}
	underlying, err := p.parseTypeAnnotation()
	if err != nil {
		return nil, err
	}
	p.consumeSemi()
	return &ast.TypeAliasDecl{
		DeclBase:   ast.DeclBase{StmtBase: ast.StmtBase{NodeBase: nb(p.spanFrom(start))}},
		Name:       name.Lexeme, TypeParams: tps, Distinct: distinct, Underlying: underlying,
	}, nil
}

func (p *Parser) parseSymbolDecl() (ast.Decl, error) {
	start := p.cur().Span
	p.advance() // symbol
	name, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	p.consumeSemi()
	return &ast.SymbolDecl{DeclBase: ast.DeclBase{StmtBase: ast.StmtBase{NodeBase: nb(p.spanFrom(start))}}, Name: name.Lexeme}, nil
}

func (p *Parser) parseEnumDecl() (ast.Decl, error) {
	start := p.cur().Span
	p.advance() // enum
	name, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	var members []ast.EnumMember
	for !p.at(token.RBrace) {
		mname, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		members = append(members, ast.EnumMember{Name: mname.Lexeme})
		if p.at(token.Comma) {
			p.advance()
		}
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	return &ast.EnumDecl{DeclBase: ast.DeclBase{StmtBase: ast.StmtBase{NodeBase: nb(p.spanFrom(start))}}, Name: name.Lexeme, Members: members}, nil
}
