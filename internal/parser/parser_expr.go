package parser

import (
	"github.com/wgc-lang/wgc/internal/ast"
	"github.com/wgc-lang/wgc/internal/token"
)

// precedence levels, low to high, per spec.md §4.4. `is`/`as` share the
// relational level; equality binds tighter than `&` (bitwise), so
// `a & b == c` parses as `a & (b == c)`.
const (
	precNone = iota
	precOrOr
	precAndAnd
	precBitOr
	precBitXor
	precBitAnd
	precEquality
	precRelational
	precRange
	precShift
	precAdditive
	precMultiplicative
	precPower
	precUnary
	precPostfix
)

func binOpPrec(k token.Kind) (int, ast.BinaryOp, bool) {
	switch k {
	case token.OrOr:
		return precOrOr, ast.OpOrOr, true
	case token.AndAnd:
		return precAndAnd, ast.OpAndAnd, true
	case token.Pipe:
		return precBitOr, ast.OpBitOr, true
	case token.Caret:
		return precBitXor, ast.OpBitXor, true
	case token.Amp:
		return precBitAnd, ast.OpBitAnd, true
	case token.Eq:
		return precEquality, ast.OpEq, true
	case token.NotEq:
		return precEquality, ast.OpNotEq, true
	case token.Lt:
		return precRelational, ast.OpLt, true
	case token.LtEq:
		return precRelational, ast.OpLtEq, true
	case token.Gt:
		return precRelational, ast.OpGt, true
	case token.GtEq:
		return precRelational, ast.OpGtEq, true
	case token.Shl:
		return precShift, ast.OpShl, true
	case token.Shr:
		return precShift, ast.OpShr, true
	case token.Plus:
		return precAdditive, ast.OpAdd, true
	case token.Minus:
		return precAdditive, ast.OpSub, true
	case token.Star:
		return precMultiplicative, ast.OpMul, true
	case token.Slash:
		return precMultiplicative, ast.OpDiv, true
	case token.Percent:
		return precMultiplicative, ast.OpMod, true
	case token.StarStar:
		return precPower, ast.OpPow, true
	default:
		return precNone, 0, false
	}
}

// parseExpr is the entry point for a full expression.
func (p *Parser) parseExpr() (ast.Expr, error) {
	return p.parseBinary(precNone + 1)
}

func (p *Parser) parseBinary(minPrec int) (ast.Expr, error) {
	left, err := p.parseRangeOrUnary(minPrec)
	if err != nil {
		return nil, err
	}
	for {
		// is/as bind at the relational level and take a type RHS.
		if p.at(token.KwIs) && precRelational >= minPrec {
			start := left.Pos()
			p.advance()
			typ, err := p.parseTypeAnnotation()
			if err != nil {
				return nil, err
			}
			left = &ast.IsExpr{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}, Value: left, Type: typ}
			continue
		}
		if p.at(token.KwAs) && precRelational >= minPrec {
			start := left.Pos()
			p.advance()
			typ, err := p.parseTypeAnnotation()
			if err != nil {
				return nil, err
			}
			left = &ast.CastExpr{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}, Value: left, Type: typ}
			continue
		}
		prec, op, ok := binOpPrec(p.cur().Kind)
		if !ok || prec < minPrec {
			return left, nil
		}
		start := left.Pos()
		p.advance()
		nextMin := prec + 1
		var right ast.Expr
		if op == ast.OpPow {
			right, err = p.parseBinary(prec) // right-assoc: same prec on RHS
		} else {
			right, err = p.parseBinary(nextMin)
		}
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}, Op: op, Left: left, Right: right}
	}
}

// parseRangeOrUnary handles the range operator (spec.md's precedence
// table places `..` between relational and shift) by first parsing a
// shift-and-higher operand, then checking for `..` — but only consumes
// it when the calling precedence level (minPrec) is at or below
// precRange, so a range nested inside a tighter-binding operand (e.g.
// the RHS of `*`) is left for the enclosing call to see instead of
// being swallowed here.
func (p *Parser) parseRangeOrUnary(minPrec int) (ast.Expr, error) {
	if precRange < minPrec {
		return p.parseUnary()
	}
	if p.at(token.DotDot) {
		start := p.cur().Span
		p.advance()
		if p.atExprStart() {
			end, err := p.parseShiftAndHigher()
			if err != nil {
				return nil, err
			}
			return &ast.RangeExpr{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}, Kind: ast.RangeTo, End: end}, nil
		}
		return &ast.RangeExpr{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}, Kind: ast.RangeFull}, nil
	}
	left, err := p.parseShiftAndHigher()
	if err != nil {
		return nil, err
	}
	if precRange >= minPrec && p.at(token.DotDot) {
		start := left.Pos()
		p.advance()
		if p.atExprStart() {
			end, err := p.parseShiftAndHigher()
			if err != nil {
				return nil, err
			}
			return &ast.RangeExpr{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}, Kind: ast.RangeBounded, Start: left, End: end}, nil
		}
		return &ast.RangeExpr{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}, Kind: ast.RangeFrom, Start: left}, nil
	}
	return left, nil
}

func (p *Parser) atExprStart() bool {
	switch p.cur().Kind {
	case token.RParen, token.RBracket, token.RBrace, token.Comma, token.Semicolon, token.EOF:
		return false
	default:
		return true
	}
}

func (p *Parser) parseShiftAndHigher() (ast.Expr, error) {
	return p.parseBinary(precShift)
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	start := p.cur().Span
	switch p.cur().Kind {
	case token.Bang:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}, Op: ast.OpNot, Operand: operand}, nil
	case token.Minus:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}, Op: ast.OpNeg, Operand: operand}, nil
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		start := e.Pos()
		switch p.cur().Kind {
		case token.Dot:
			p.advance()
			name, err := p.expect(token.Ident)
			if err != nil {
				return nil, err
			}
			e = &ast.MemberExpr{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}, Object: e, Name: name.Lexeme}
		case token.Question:
			if p.peekAt(1).Kind != token.Dot {
				return e, nil
			}
			p.advance()
			p.advance()
			name, err := p.expect(token.Ident)
			if err != nil {
				return nil, err
			}
			e = &ast.MemberExpr{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}, Object: e, Name: name.Lexeme, Optional: true}
		case token.LBracket:
			p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RBracket); err != nil {
				return nil, err
			}
			e = &ast.IndexExpr{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}, Object: e, Index: idx}
		case token.LParen:
			args, err := p.parseArgList()
			if err != nil {
				return nil, err
			}
			e = &ast.CallExpr{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}, Callee: e, Args: args}
		default:
			return e, nil
		}
	}
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	start := p.cur().Span
	switch p.cur().Kind {
	case token.IntLit:
		t := p.advance()
		return &ast.NumberLit{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}, Raw: t.Lexeme}, nil
	case token.FloatLit:
		t := p.advance()
		return &ast.NumberLit{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}, Raw: t.Lexeme, IsFloat: true}, nil
	case token.StringLit:
		t := p.advance()
		return &ast.StringLit{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}, Value: t.Lexeme}, nil
	case token.BoolLit:
		t := p.advance()
		return &ast.BoolLit{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}, Value: t.Lexeme == "true"}, nil
	case token.NullLit:
		p.advance()
		return &ast.NullLit{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}}, nil
	case token.NoSubstitutionTemplate:
		t := p.advance()
		return &ast.TemplateLit{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}, Parts: []string{t.Lexeme}}, nil
	case token.TemplateHead:
		return p.parseTemplate(start)
	case token.SymbolIdent:
		t := p.advance()
		return &ast.SymbolRef{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}, Name: t.Lexeme[1:]}, nil
	case token.KwThis:
		p.advance()
		return &ast.ThisExpr{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}}, nil
	case token.KwSuper:
		p.advance()
		return &ast.SuperExpr{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}}, nil
	case token.KwThrow:
		p.advance()
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.ThrowExpr{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}, Value: v}, nil
	case token.KwNew:
		return p.parseNewExpr()
	case token.KwIf:
		return p.parseIfExpr()
	case token.KwMatch:
		return p.parseMatchExpr()
	case token.Ident:
		if p.cur().Lexeme == "_" && p.peekAt(1).Kind != token.Arrow {
			p.advance()
			return &ast.WildcardExpr{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}}, nil
		}
		return p.parseIdentOrArrow()
	case token.LParen:
		return p.parseParenOrArrowOrTuple()
	case token.LBracket:
		return p.parseArrayLit()
	case token.LBrace:
		return p.parseRecordLit()
	default:
		return nil, p.errf("unexpected token %s %q in expression", p.cur().Kind, p.cur().Lexeme)
	}
}

// parseTemplate parses a template literal. Tokenize has already resolved
// interpolation boundaries: a TemplateHead/TemplateMiddle span is
// followed directly by the hole's expression tokens, then by the next
// TemplateMiddle or TemplateTail (no separate RBrace token appears for
// the brace that closes the hole).
func (p *Parser) parseTemplate(start token.Span) (ast.Expr, error) {
	headTok := p.advance()
	tl := &ast.TemplateLit{Parts: []string{headTok.Lexeme}}
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		tl.Exprs = append(tl.Exprs, e)
		switch p.cur().Kind {
		case token.TemplateMiddle:
			t := p.advance()
			tl.Parts = append(tl.Parts, t.Lexeme)
			continue
		case token.TemplateTail:
			t := p.advance()
			tl.Parts = append(tl.Parts, t.Lexeme)
		default:
			return nil, p.errf("expected template continuation, got %s %q", p.cur().Kind, p.cur().Lexeme)
		}
		break
	}
	tl.NodeBase = nb(p.spanFrom(start))
	return tl, nil
}

func (p *Parser) parseNewExpr() (ast.Expr, error) {
	start := p.cur().Span
	p.advance() // new
	classType, err := p.parsePrimaryTypeAnnotationForNew()
	if err != nil {
		return nil, err
	}
	ne := &ast.NewExpr{Class: classType}
	args, err := p.parseArgList()
	if err != nil {
		return nil, err
	}
	ne.Args = args
	ne.NodeBase = nb(p.spanFrom(start))
	return ne, nil
}

// parsePrimaryTypeAnnotationForNew parses `Foo` or `Foo<T, U>` as used
// right after `new`, disambiguating `<` as a type-argument list rather
// than a `less-than` comparison by requiring it to be immediately
// followed eventually by `(` (spec.md §4.4's "parsed lookahead-safely").
func (p *Parser) parsePrimaryTypeAnnotationForNew() (ast.TypeAnnotation, error) {
	start := p.cur().Span
	name, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	base := ast.TypeAnnotation(&ast.NamedTypeAnnotation{TypeAnnotationBase: ast.TypeAnnotationBase{NodeBase: nb(p.spanFrom(start))}, Name: name.Lexeme})
	if p.at(token.Lt) && p.looksLikeTypeArgList() {
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
}

// looksLikeTypeArgList scans forward for a `<...>` that is immediately
// followed by `(`, without committing the parser position — the
// standard trick for disambiguating generic instantiation from a
// less-than comparison at `new` call sites.
func (p *Parser) looksLikeTypeArgList() bool {
	depth := 0
	i := 0
	for {
		t := p.peekAt(i)
		switch t.Kind {
		case token.Lt:
			depth++
		case token.Gt:
			depth--
			if depth == 0 {
				return p.peekAt(i + 1).Kind == token.LParen
			}
		case token.Semicolon, token.EOF, token.LBrace, token.RBrace:
			return false
		}
		i++
		if i > 64 {
			return false
		}
	}
}

func (p *Parser) parseIfExpr() (ast.Expr, error) {
	start := p.cur().Span
	p.advance() // if
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	then, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	ie := &ast.IfExpr{Cond: cond, Then: then}
	if p.at(token.KwElse) {
		p.advance()
		els, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		ie.Else = els
	}
	ie.NodeBase = nb(p.spanFrom(start))
	return ie, nil
}

func (p *Parser) parseMatchExpr() (ast.Expr, error) {
	start := p.cur().Span
	p.advance() // match
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	scrutinee, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	var arms []ast.MatchArm
	for p.at(token.KwCase) {
		p.advance()
		pat, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		arm := ast.MatchArm{Pattern: pat}
		if p.at(token.KwIf) {
			p.advance()
			g, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			arm.Guard = g
		}
		if _, err := p.expect(token.Colon); err != nil {
			return nil, err
		}
		body, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		arm.Body = body
		arms = append(arms, arm)
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	return &ast.MatchExpr{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}, Scrutinee: scrutinee, Arms: arms}, nil
}

// parseIdentOrArrow parses a bare identifier, which might turn out to be
// the sole parameter of a single-arg arrow function `x => expr`.
func (p *Parser) parseIdentOrArrow() (ast.Expr, error) {
	start := p.cur().Span
	name := p.advance().Lexeme
	if p.at(token.Arrow) {
		p.advance()
		return p.finishArrow(start, []ast.Param{{Name: name}}, nil)
	}
	return &ast.Ident{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}, Name: name}, nil
}

// parseParenOrArrowOrTuple disambiguates `(expr)`, `(a, b) => expr`, and
// `(a, b)` tuple literals by parsing a parenthesized list first and
// deciding based on what follows the closing `)`.
func (p *Parser) parseParenOrArrowOrTuple() (ast.Expr, error) {
	start := p.cur().Span
	p.advance() // (

	// Try arrow-function parameter list: `Ident (: Type)? , ...`
	if save := p.pos; p.tryParseArrowParams() {
		params := p.lastArrowParams
		var ret ast.TypeAnnotation
		if p.at(token.Colon) {
			p.advance()
			r, err := p.parseTypeAnnotation()
			if err != nil {
				return nil, err
			}
			ret = r
		}
		if p.at(token.Arrow) {
			p.advance()
			return p.finishArrow(start, params, ret)
		}
		p.pos = save
	}

	if p.at(token.RParen) {
		p.advance()
		if p.at(token.Arrow) {
			p.advance()
			return p.finishArrow(start, nil, nil)
		}
		return &ast.TupleLit{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}}, nil
	}

	first, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.at(token.Comma) {
		elems := []ast.Expr{first}
		for p.at(token.Comma) {
			p.advance()
			if p.at(token.RParen) {
				break
			}
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		return &ast.TupleLit{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}, Elements: elems}, nil
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	return first, nil
}

// tryParseArrowParams speculatively parses `(name: T, ...)` parameter
// syntax, restoring the cursor itself on failure; stores the parsed
// params in p.lastArrowParams on success.
func (p *Parser) tryParseArrowParams() bool {
	savePos := p.pos
	var params []ast.Param
	ok := func() bool {
		for !p.at(token.RParen) {
			if !p.at(token.Ident) {
				return false
			}
			name := p.advance().Lexeme
			param := ast.Param{Name: name}
			if p.at(token.Colon) {
				p.advance()
				typ, err := p.parseTypeAnnotation()
				if err != nil {
					return false
				}
				param.Type = typ
			}
			params = append(params, param)
			if p.at(token.Comma) {
				p.advance()
				continue
			}
			break
		}
		if !p.at(token.RParen) {
			return false
		}
		p.advance()
		return true
	}()
	if !ok {
		p.pos = savePos
		return false
	}
	p.lastArrowParams = params
	return true
}

func (p *Parser) finishArrow(start token.Span, params []ast.Param, ret ast.TypeAnnotation) (ast.Expr, error) {
	var body ast.Node
	if p.at(token.LBrace) {
		blk, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		body = blk
	} else {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		body = e
	}
	return &ast.FuncExpr{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}, Params: params, ReturnType: ret, Body: body}, nil
}

func (p *Parser) parseArrayLit() (ast.Expr, error) {
	start := p.cur().Span
	p.advance() // [
	var elems []ast.Expr
	for !p.at(token.RBracket) {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if p.at(token.Comma) {
			p.advance()
		}
	}
	if _, err := p.expect(token.RBracket); err != nil {
		return nil, err
	}
	return &ast.ArrayLit{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}, Elements: elems}, nil
}

func (p *Parser) parseRecordLit() (ast.Expr, error) {
	start := p.cur().Span
	p.advance() // {
	var fields []ast.RecordField
	for !p.at(token.RBrace) {
		name, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		f := ast.RecordField{Name: name.Lexeme}
		if p.at(token.Colon) {
			p.advance()
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			f.Value = v
		}
		fields = append(fields, f)
		if p.at(token.Comma) {
			p.advance()
		}
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	return &ast.RecordLit{ExprBase: ast.ExprBase{NodeBase: nb(p.spanFrom(start))}, Fields: fields}, nil
}
