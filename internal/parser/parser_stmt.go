package parser

import (
	"github.com/wgc-lang/wgc/internal/ast"
	"github.com/wgc-lang/wgc/internal/token"
)

func (p *Parser) parseBlock() (*ast.Block, error) {
	start := p.cur().Span
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	var stmts []ast.Stmt
	for !p.at(token.RBrace) {
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	return &ast.Block{StmtBase: ast.StmtBase{NodeBase: nb(p.spanFrom(start))}, Stmts: stmts}, nil
}

func (p *Parser) parseStmt() (ast.Stmt, error) {
	switch p.cur().Kind {
	case token.KwLet, token.KwVar:
		vd, err := p.parseVarDecl()
		if err != nil {
			return nil, err
		}
		return vd, nil
	case token.KwIf:
		return p.parseIfStmt()
	case token.KwFor:
		return p.parseForStmt()
	case token.KwWhile:
		return p.parseWhileStmt()
	case token.KwReturn:
		return p.parseReturnStmt()
	case token.LBrace:
		return p.parseBlock()
	case token.KwClass, token.KwInterface, token.KwMixin, token.KwFunction, token.KwType, token.KwEnum:
		decl, err := p.parseDecl()
		if err != nil {
			return nil, err
		}
		return &ast.DeclStmt{StmtBase: ast.StmtBase{NodeBase: nb(decl.Pos())}, Decl: decl}, nil
	default:
		return p.parseExprOrAssignStmt()
	}
}

func (p *Parser) parseVarDecl() (*ast.VarDecl, error) {
	start := p.cur().Span
	mutable := p.at(token.KwVar)
	p.advance() // let/var

	vd := &ast.VarDecl{Mutable: mutable}
	if p.at(token.LParen) {
		pat, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		vd.Pattern = pat
	} else {
		name, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		vd.Name = name.Lexeme
		if p.at(token.Colon) {
			p.advance()
			typ, err := p.parseTypeAnnotation()
			if err != nil {
				return nil, err
			}
			vd.Type = typ
		}
	}
	if p.at(token.Assign) {
		p.advance()
		init, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		vd.Init = init
	}
	p.consumeSemi()
	vd.NodeBase = nb(p.spanFrom(start))
	return vd, nil
}

func (p *Parser) parseIfStmt() (ast.Stmt, error) {
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
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	st := &ast.IfStmt{Cond: cond, Then: then}
	if p.at(token.KwElse) {
		p.advance()
		if p.at(token.KwIf) {
			elseIf, err := p.parseIfStmt()
			if err != nil {
				return nil, err
			}
			st.Else = elseIf
		} else {
			elseBlk, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			st.Else = elseBlk
		}
	}
	st.NodeBase = nb(p.spanFrom(start))
	return st, nil
}

func (p *Parser) parseForStmt() (ast.Stmt, error) {
	start := p.cur().Span
	p.advance() // for
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	st := &ast.ForStmt{}
	if !p.at(token.Semicolon) {
		if p.at(token.KwLet) || p.at(token.KwVar) {
			vd, err := p.parseVarDeclNoSemi()
			if err != nil {
				return nil, err
			}
			st.Init = vd
		} else {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			st.Init = &ast.ExprStmt{StmtBase: ast.StmtBase{NodeBase: nb(e.Pos())}, X: e}
		}
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return nil, err
	}
	if !p.at(token.Semicolon) {
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		st.Cond = cond
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return nil, err
	}
	if !p.at(token.RParen) {
		post, err := p.parseAssignOrExprStmtNoSemi()
		if err != nil {
			return nil, err
		}
		st.Post = post
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	st.Body = body
	st.NodeBase = nb(p.spanFrom(start))
	return st, nil
}

func (p *Parser) parseVarDeclNoSemi() (*ast.VarDecl, error) {
	start := p.cur().Span
	mutable := p.at(token.KwVar)
	p.advance()
	name, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	vd := &ast.VarDecl{Mutable: mutable, Name: name.Lexeme}
	if p.at(token.Assign) {
		p.advance()
		init, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		vd.Init = init
	}
	vd.NodeBase = nb(p.spanFrom(start))
	return vd, nil
}

func (p *Parser) parseWhileStmt() (ast.Stmt, error) {
	start := p.cur().Span
	p.advance() // while
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
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.WhileStmt{StmtBase: ast.StmtBase{NodeBase: nb(p.spanFrom(start))}, Cond: cond, Body: body}, nil
}

func (p *Parser) parseReturnStmt() (ast.Stmt, error) {
	start := p.cur().Span
	p.advance() // return
	st := &ast.ReturnStmt{}
	if !p.at(token.Semicolon) && !p.at(token.RBrace) {
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		st.Value = v
	}
	p.consumeSemi()
	st.NodeBase = nb(p.spanFrom(start))
	return st, nil
}

func (p *Parser) parseExprOrAssignStmt() (ast.Stmt, error) {
	start := p.cur().Span
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.at(token.Assign) {
		p.advance()
		rhs, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		p.consumeSemi()
		return &ast.AssignStmt{StmtBase: ast.StmtBase{NodeBase: nb(p.spanFrom(start))}, Target: e, Op: ast.AssignPlain, Value: rhs}, nil
	}
	p.consumeSemi()
	return &ast.ExprStmt{StmtBase: ast.StmtBase{NodeBase: nb(p.spanFrom(start))}, X: e}, nil
}

// parseAssignOrExprStmtNoSemi parses the `for(;;post)` clause, which is
// not semicolon-terminated.
func (p *Parser) parseAssignOrExprStmtNoSemi() (ast.Stmt, error) {
	start := p.cur().Span
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.at(token.Assign) {
		p.advance()
		rhs, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.AssignStmt{StmtBase: ast.StmtBase{NodeBase: nb(p.spanFrom(start))}, Target: e, Op: ast.AssignPlain, Value: rhs}, nil
	}
	return &ast.ExprStmt{StmtBase: ast.StmtBase{NodeBase: nb(p.spanFrom(start))}, X: e}, nil
}
