package parser

import (
	"github.com/wgc-lang/wgc/internal/ast"
	"github.com/wgc-lang/wgc/internal/token"
)

// parseTypeAnnotation parses a type annotation, handling union types at
// the top (lowest-precedence) level: `A | B | C`.
func (p *Parser) parseTypeAnnotation() (ast.TypeAnnotation, error) {
	start := p.cur().Span
	first, err := p.parsePostfixTypeAnnotation()
	if err != nil {
		return nil, err
	}
	if !p.at(token.Pipe) {
		return first, nil
	}
	members := []ast.TypeAnnotation{first}
	for p.at(token.Pipe) {
		p.advance()
		next, err := p.parsePostfixTypeAnnotation()
		if err != nil {
			return nil, err
		}
		members = append(members, next)
	}
	return &ast.UnionTypeAnnotation{TypeAnnotationBase: ast.TypeAnnotationBase{NodeBase: nb(p.spanFrom(start))}, Members: members}, nil
}

func (p *Parser) parsePostfixTypeAnnotation() (ast.TypeAnnotation, error) {
	base, err := p.parsePrimaryTypeAnnotation()
	if err != nil {
		return nil, err
	}
	for p.at(token.LBracket) && p.peekAt(1).Kind == token.RBracket {
		start := base.Pos()
		p.advance()
		p.advance()
		base = &ast.GenericTypeAnnotation{
			TypeAnnotationBase: ast.TypeAnnotationBase{NodeBase: nb(p.spanFrom(start))},
			Base:               &ast.NamedTypeAnnotation{TypeAnnotationBase: ast.TypeAnnotationBase{NodeBase: nb(start)}, Name: "Array"},
			Args:                []ast.TypeAnnotation{base},
		}
	}
	return base, nil
}

func (p *Parser) parsePrimaryTypeAnnotation() (ast.TypeAnnotation, error) {
	start := p.cur().Span
	switch p.cur().Kind {
	case token.LParen:
		return p.parseTupleOrFuncTypeAnnotation()
	case token.LBrace:
		return p.parseRecordTypeAnnotation()
	case token.Ident, token.KwThis:
		name := p.advance().Lexeme
		base := ast.TypeAnnotation(&ast.NamedTypeAnnotation{TypeAnnotationBase: ast.TypeAnnotationBase{NodeBase: nb(p.spanFrom(start))}, Name: name})
		if p.at(token.Lt) {
			p.advance()
			var args []ast.TypeAnnotation
			for !p.at(token.Gt) {
				a, err := p.parseTypeAnnotation()
				if err != nil {
					return nil, err
				}
				args = append(args, a)
				if p.at(token.Comma) {
					p.advance()
				}
			}
			if _, err := p.expect(token.Gt); err != nil {
				return nil, err
			}
			base = &ast.GenericTypeAnnotation{TypeAnnotationBase: ast.TypeAnnotationBase{NodeBase: nb(p.spanFrom(start))}, Base: base, Args: args}
		}
		return base, nil
	default:
		return nil, p.errf("expected a type, got %s %q", p.cur().Kind, p.cur().Lexeme)
	}
}

// parseTupleOrFuncTypeAnnotation handles `(T1, T2)` tuple types and
// `(T1, T2) => R` function types, which share a parenthesized-list
// prefix.
func (p *Parser) parseTupleOrFuncTypeAnnotation() (ast.TypeAnnotation, error) {
	start := p.cur().Span
	p.advance() // (
	var elems []ast.TypeAnnotation
	for !p.at(token.RParen) {
		t, err := p.parseTypeAnnotation()
		if err != nil {
			return nil, err
		}
		elems = append(elems, t)
		if p.at(token.Comma) {
			p.advance()
		}
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	if p.at(token.Arrow) {
		p.advance()
		ret, err := p.parseTypeAnnotation()
		if err != nil {
			return nil, err
		}
		return &ast.FuncTypeAnnotation{TypeAnnotationBase: ast.TypeAnnotationBase{NodeBase: nb(p.spanFrom(start))}, Params: elems, Return: ret}, nil
	}
	return &ast.TupleTypeAnnotation{TypeAnnotationBase: ast.TypeAnnotationBase{NodeBase: nb(p.spanFrom(start))}, Elements: elems, Unboxed: true}, nil
}

func (p *Parser) parseRecordTypeAnnotation() (ast.TypeAnnotation, error) {
	start := p.cur().Span
	p.advance() // {
	var fields []ast.RecordTypeAnnotationField
	for !p.at(token.RBrace) {
		name, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Colon); err != nil {
			return nil, err
		}
		typ, err := p.parseTypeAnnotation()
		if err != nil {
			return nil, err
		}
		fields = append(fields, ast.RecordTypeAnnotationField{Name: name.Lexeme, Type: typ})
		if p.at(token.Comma) {
			p.advance()
		}
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	return &ast.RecordTypeAnnotation{TypeAnnotationBase: ast.TypeAnnotationBase{NodeBase: nb(p.spanFrom(start))}, Fields: fields}, nil
}
