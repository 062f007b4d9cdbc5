package parser

import (
	"github.com/wgc-lang/wgc/internal/ast"
	"github.com/wgc-lang/wgc/internal/token"
)

// parsePattern parses a full pattern including the logical OR/AND
// combinators, which are left-associative and lowest precedence
// (spec.md §4.4): `p1 | p2 & p3` would need explicit parens in practice,
// but we give AND (`&`) slightly tighter binding than OR (`|`), matching
// the source language's binary-operator precedence table where `&`
// binds tighter than boolean-ish combinators.
func (p *Parser) parsePattern() (ast.Pattern, error) {
	left, err := p.parseAndPattern()
	if err != nil {
		return nil, err
	}
	for p.at(token.Pipe) {
		start := left.Pos()
		p.advance()
		right, err := p.parseAndPattern()
		if err != nil {
			return nil, err
		}
		left = &ast.OrPattern{PatternBase: ast.PatternBase{NodeBase: nb(p.spanFrom(start))}, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAndPattern() (ast.Pattern, error) {
	left, err := p.parseAsPattern()
	if err != nil {
		return nil, err
	}
	for p.at(token.Amp) {
		start := left.Pos()
		p.advance()
		right, err := p.parseAsPattern()
		if err != nil {
			return nil, err
		}
		left = &ast.AndPattern{PatternBase: ast.PatternBase{NodeBase: nb(p.spanFrom(start))}, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAsPattern() (ast.Pattern, error) {
	inner, err := p.parsePrimaryPattern()
	if err != nil {
		return nil, err
	}
	if p.at(token.KwAs) {
		start := inner.Pos()
		p.advance()
		name, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		return &ast.AsPattern{PatternBase: ast.PatternBase{NodeBase: nb(p.spanFrom(start))}, Inner: inner, Name: name.Lexeme}, nil
	}
	return inner, nil
}

func (p *Parser) parsePrimaryPattern() (ast.Pattern, error) {
	start := p.cur().Span
	switch p.cur().Kind {
	case token.Ident:
		if p.cur().Lexeme == "_" {
			p.advance()
			return &ast.WildcardPattern{PatternBase: ast.PatternBase{NodeBase: nb(p.spanFrom(start))}}, nil
		}
		name := p.advance().Lexeme
		if p.at(token.Dot) {
			// Qualified literal pattern, e.g. `Color.Green` — represented
			// as a LiteralPattern over a MemberExpr so the checker can
			// resolve it against the enum/class value the same way it
			// resolves any other member access.
			p.advance()
			member, err := p.expect(token.Ident)
			if err != nil {
				return nil, err
			}
			expr := &ast.MemberExpr{
				ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))},
				Object:   &ast.Ident{ExprBase: ast.ExprBase{NodeBase: nb(start)}, Name: name},
				Name:     member.Lexeme,
			}
			return &ast.LiteralPattern{PatternBase: ast.PatternBase{NodeBase: nb(p.spanFrom(start))}, Value: expr}, nil
		}
		if p.at(token.LBrace) {
			return p.parseClassShapePattern(name, start)
		}
		return &ast.IdentPattern{PatternBase: ast.PatternBase{NodeBase: nb(p.spanFrom(start))}, Name: name}, nil
	case token.LParen:
		return p.parseTuplePattern()
	case token.LBrace:
		return p.parseRecordPattern()
	case token.IntLit, token.FloatLit, token.StringLit, token.BoolLit, token.NullLit:
		lit, err := p.parseLiteralExprForPattern()
		if err != nil {
			return nil, err
		}
		if p.at(token.DotDot) {
			return p.parseRangePatternFrom(lit, start)
		}
		return &ast.LiteralPattern{PatternBase: ast.PatternBase{NodeBase: nb(p.spanFrom(start))}, Value: lit}, nil
	case token.DotDot:
		return p.parseRangePatternFrom(nil, start)
	default:
		return nil, p.errf("expected a pattern, got %s %q", p.cur().Kind, p.cur().Lexeme)
	}
}

func (p *Parser) parseRangePatternFrom(startExpr ast.Expr, start token.Span) (ast.Pattern, error) {
	p.advance() // ..
	if startExpr == nil {
		if p.atPatternLiteralStart() {
			end, err := p.parseLiteralExprForPattern()
			if err != nil {
				return nil, err
			}
			return &ast.RangePattern{PatternBase: ast.PatternBase{NodeBase: nb(p.spanFrom(start))}, Kind: ast.RangeTo, End: end}, nil
		}
		return &ast.RangePattern{PatternBase: ast.PatternBase{NodeBase: nb(p.spanFrom(start))}, Kind: ast.RangeFull}, nil
	}
	if p.atPatternLiteralStart() {
		end, err := p.parseLiteralExprForPattern()
		if err != nil {
			return nil, err
		}
		return &ast.RangePattern{PatternBase: ast.PatternBase{NodeBase: nb(p.spanFrom(start))}, Kind: ast.RangeBounded, Start: startExpr, End: end}, nil
	}
	return &ast.RangePattern{PatternBase: ast.PatternBase{NodeBase: nb(p.spanFrom(start))}, Kind: ast.RangeFrom, Start: startExpr}, nil
}

func (p *Parser) atPatternLiteralStart() bool {
	switch p.cur().Kind {
	case token.IntLit, token.FloatLit, token.StringLit, token.BoolLit, token.NullLit:
		return true
	default:
		return false
	}
}

func (p *Parser) parseLiteralExprForPattern() (ast.Expr, error) {
	start := p.cur().Span
	t := p.advance()
	switch t.Kind {
	case token.IntLit:
		return &ast.NumberLit{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}, Raw: t.Lexeme}, nil
	case token.FloatLit:
		return &ast.NumberLit{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}, Raw: t.Lexeme, IsFloat: true}, nil
	case token.StringLit:
		return &ast.StringLit{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}, Value: t.Lexeme}, nil
	case token.BoolLit:
		return &ast.BoolLit{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}, Value: t.Lexeme == "true"}, nil
	case token.NullLit:
		return &ast.NullLit{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}}, nil
	default:
		return nil, p.errf("expected a literal, got %s %q", t.Kind, t.Lexeme)
	}
}

func (p *Parser) parseTuplePattern() (ast.Pattern, error) {
	start := p.cur().Span
	p.advance() // (
	var elems []ast.Pattern
	for !p.at(token.RParen) {
		e, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if p.at(token.Comma) {
			p.advance()
		}
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	return &ast.TuplePattern{PatternBase: ast.PatternBase{NodeBase: nb(p.spanFrom(start))}, Elements: elems}, nil
}

func (p *Parser) parseRecordPattern() (ast.Pattern, error) {
	start := p.cur().Span
	fields, err := p.parseRecordPatternFields()
	if err != nil {
		return nil, err
	}
	return &ast.RecordPattern{PatternBase: ast.PatternBase{NodeBase: nb(p.spanFrom(start))}, Fields: fields}, nil
}

func (p *Parser) parseClassShapePattern(className string, start token.Span) (ast.Pattern, error) {
	fields, err := p.parseRecordPatternFields()
	if err != nil {
		return nil, err
	}
	return &ast.ClassShapePattern{PatternBase: ast.PatternBase{NodeBase: nb(p.spanFrom(start))}, ClassName: className, Fields: fields}, nil
}

func (p *Parser) parseRecordPatternFields() ([]ast.RecordPatternField, error) {
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	var fields []ast.RecordPatternField
	for !p.at(token.RBrace) {
		name, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		f := ast.RecordPatternField{Name: name.Lexeme}
		if p.at(token.Colon) {
			p.advance()
			sub, err := p.parsePattern()
			if err != nil {
				return nil, err
			}
			f.Pattern = sub
		}
		fields = append(fields, f)
		if p.at(token.Comma) {
			p.advance()
		}
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	return fields, nil
}
