package check

import (
	"github.com/wgc-lang/wgc/internal/ast"
	"github.com/wgc-lang/wgc/internal/types"
)

func (c *Checker) checkBlock(parent *Scope, b *ast.Block) {
	scope := newScope(parent)
	for _, s := range b.Stmts {
		c.checkStmt(scope, s)
	}
}

func (c *Checker) checkStmt(scope *Scope, s ast.Stmt) {
	switch st := s.(type) {
	case *ast.ExprStmt:
		c.inferExpr(scope, st.X)
		if c.beforeSuper {
			if call, ok := st.X.(*ast.CallExpr); ok {
				if _, ok := call.Callee.(*ast.SuperExpr); ok {
					c.beforeSuper = false
				}
			}
		}
	case *ast.VarDecl:
		c.checkVarDecl(scope, st)
	case *ast.AssignStmt:
		targetTy := c.inferExpr(scope, st.Target)
		valTy := c.inferExpr(scope, st.Value)
		if ident, ok := st.Target.(*ast.Ident); ok {
			if b, found := scope.lookup(ident.Name); found && !b.Mutable {
				c.errorf(st.Pos(), CodeImmutableAssign, "cannot assign to immutable binding %q", ident.Name)
			}
		}
		if !types.AssignableTo(valTy, targetTy) {
			c.errorf(st.Value.Pos(), CodeTypeMismatch, "cannot assign %s to %s", types.Print(valTy), types.Print(targetTy))
		}
	case *ast.Block:
		c.checkBlock(scope, st)
	case *ast.IfStmt:
		condTy := c.inferExpr(scope, st.Cond)
		if !types.Equal(condTy, types.Boolean) {
			c.errorf(st.Cond.Pos(), CodeTypeMismatch, "if condition must be boolean, got %s", types.Print(condTy))
		}
		checkElse := func() {
			switch e := st.Else.(type) {
			case *ast.Block:
				c.checkBlock(scope, e)
			case ast.Stmt:
				c.checkStmt(scope, e)
			}
		}
		if name, thenTy, elseTy, ok := c.narrowingFromCond(scope, st.Cond); ok {
			c.withNarrow(name, thenTy, func() { c.checkBlock(scope, st.Then) })
			if st.Else != nil {
				c.withNarrow(name, elseTy, checkElse)
			}
		} else {
			c.checkBlock(scope, st.Then)
			if st.Else != nil {
				checkElse()
			}
		}
	case *ast.ForStmt:
		forScope := newScope(scope)
		if st.Init != nil {
			c.checkStmt(forScope, st.Init)
		}
		if st.Cond != nil {
			condTy := c.inferExpr(forScope, st.Cond)
			if !types.Equal(condTy, types.Boolean) {
				c.errorf(st.Cond.Pos(), CodeTypeMismatch, "for condition must be boolean, got %s", types.Print(condTy))
			}
		}
		if st.Post != nil {
			c.checkStmt(forScope, st.Post)
		}
		c.checkBlock(forScope, st.Body)
	case *ast.WhileStmt:
		condTy := c.inferExpr(scope, st.Cond)
		if !types.Equal(condTy, types.Boolean) {
			c.errorf(st.Cond.Pos(), CodeTypeMismatch, "while condition must be boolean, got %s", types.Print(condTy))
		}
		c.checkBlock(scope, st.Body)
	case *ast.ReturnStmt:
		if st.Value != nil {
			valTy := c.inferExpr(scope, st.Value)
			if c.currentRet != nil && !types.AssignableTo(valTy, *c.currentRet) {
				c.errorf(st.Value.Pos(), CodeTypeMismatch, "return type %s is not assignable to %s", types.Print(valTy), types.Print(*c.currentRet))
			}
		} else if c.currentRet != nil && c.currentRet.Kind != types.KindVoid {
			c.errorf(st.Pos(), CodeTypeMismatch, "missing return value, expected %s", types.Print(*c.currentRet))
		}
	case *ast.DeclStmt:
		switch d := st.Decl.(type) {
		case *ast.FuncDecl:
			c.funcs[d.Name] = d
			c.checkFuncBody(d)
		case *ast.ClassDecl:
			c.classes[d.Name] = d
			c.ctx.ClassInfo[d] = &types.ClassDecl{Name: d.Name}
			c.checkClassBody(d)
		}
	case *ast.ImportStmt, *ast.ExportStmt:
		// handled at module scope; never reached inside a block
	}
}

func (c *Checker) checkVarDecl(scope *Scope, vd *ast.VarDecl) {
	if vd.Pattern != nil {
		var initTy types.Type
		if vd.Init != nil {
			initTy = c.inferExpr(scope, vd.Init)
		}
		c.bindPattern(scope, vd.Pattern, initTy, vd.Mutable)
		return
	}
	declTy := c.resolveTypeOrInfer(vd.Type, vd.Init, scope)
	if vd.Init != nil && vd.Type != nil {
		initTy := c.inferExpr(scope, vd.Init)
		if !types.AssignableTo(initTy, declTy) {
			c.errorf(vd.Init.Pos(), CodeTypeMismatch, "cannot initialize %q of type %s with %s", vd.Name, types.Print(declTy), types.Print(initTy))
		}
	}
	if scope.declaredLocally(vd.Name) {
		c.errorf(vd.Pos(), CodeRedeclaredVariable, "%q is already declared in this scope", vd.Name)
	}
	scope.declare(&Binding{Name: vd.Name, Type: declTy, Mutable: vd.Mutable, Decl: vd})
}
