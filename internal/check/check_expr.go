package check

import (
	"github.com/wgc-lang/wgc/internal/ast"
	"github.com/wgc-lang/wgc/internal/types"
)

// inferExpr computes e's type, records it in the semantic context, and
// emits diagnostics for any mismatch found along the way. It is the
// single entry point every statement-level check funnels expressions
// through, so ctx.ExprTypes ends up total over every Expr node reachable
// from a checked declaration (spec.md §3.2: "every expression node has
// an entry once checking succeeds").
func (c *Checker) inferExpr(scope *Scope, e ast.Expr) types.Type {
	t := c.inferExprUncached(scope, e)
	c.ctx.ExprTypes[e] = t
	return t
}

func (c *Checker) inferExprUncached(scope *Scope, e ast.Expr) types.Type {
	switch x := e.(type) {
	case *ast.NumberLit:
		if x.IsFloat {
			return types.Number(types.WidthF64)
		}
		return types.Number(types.WidthI32)
	case *ast.StringLit:
		return types.String
	case *ast.BoolLit:
		return types.Boolean
	case *ast.NullLit:
		return types.Null
	case *ast.TemplateLit:
		for _, sub := range x.Exprs {
			c.inferExpr(scope, sub)
		}
		return types.String
	case *ast.WildcardExpr:
		return types.Any
	case *ast.SymbolRef:
		return types.Any
	case *ast.Ident:
		return c.inferIdent(scope, x)
	case *ast.ThisExpr:
		if c.beforeSuper {
			c.errorf(x.Pos(), CodeThisBeforeSuper, "'this' used before 'super(...)' in a derived constructor")
		}
		if b, ok := scope.lookup("this"); ok {
			return b.Type
		}
		c.errorf(x.Pos(), CodeUnresolvedName, "'this' used outside a method")
		return types.Any
	case *ast.SuperExpr:
		if c.currentClass != nil && c.currentClass.Super != nil {
			return c.resolveTypeAnnotation(c.currentClass.Super)
		}
		c.errorf(x.Pos(), CodeUnresolvedName, "'super' used without a superclass")
		return types.Any
	case *ast.BinaryExpr:
		return c.inferBinary(scope, x)
	case *ast.UnaryExpr:
		operandTy := c.inferExpr(scope, x.Operand)
		if x.Op == ast.OpNot {
			if !types.Equal(operandTy, types.Boolean) {
				c.errorf(x.Pos(), CodeTypeMismatch, "'!' requires boolean, got %s", types.Print(operandTy))
			}
			return types.Boolean
		}
		return operandTy
	case *ast.CallExpr:
		return c.inferCall(scope, x)
	case *ast.NewExpr:
		return c.inferNew(scope, x)
	case *ast.MemberExpr:
		return c.inferMember(scope, x)
	case *ast.IndexExpr:
		objTy := c.inferExpr(scope, x.Object)
		c.inferExpr(scope, x.Index)
		if objTy.Kind == types.KindArray {
			return *objTy.Elem
		}
		return types.Any
	case *ast.RecordLit:
		fields := make([]types.RecordField, 0, len(x.Fields))
		for _, f := range x.Fields {
			var ft types.Type
			if f.Value != nil {
				ft = c.inferExpr(scope, f.Value)
			} else if b, ok := scope.lookup(f.Name); ok {
				ft = b.Type
			}
			fields = append(fields, types.RecordField{Name: f.Name, Type: ft})
		}
		return types.Record(fields...)
	case *ast.TupleLit:
		elems := make([]types.Type, len(x.Elements))
		for i, el := range x.Elements {
			elems[i] = c.inferExpr(scope, el)
		}
		return types.Tuple(elems...)
	case *ast.ArrayLit:
		if len(x.Elements) == 0 {
			return types.Array(types.Any)
		}
		first := c.inferExpr(scope, x.Elements[0])
		for _, el := range x.Elements[1:] {
			c.inferExpr(scope, el)
		}
		return types.Array(first)
	case *ast.FuncExpr:
		return c.inferFuncExpr(scope, x)
	case *ast.IfExpr:
		condTy := c.inferExpr(scope, x.Cond)
		if !types.Equal(condTy, types.Boolean) {
			c.errorf(x.Cond.Pos(), CodeTypeMismatch, "if condition must be boolean, got %s", types.Print(condTy))
		}
		var thenTy, elseTy types.Type
		if name, tt, et, ok := c.narrowingFromCond(scope, x.Cond); ok {
			c.withNarrow(name, tt, func() { thenTy = c.inferExpr(scope, x.Then) })
			if x.Else != nil {
				c.withNarrow(name, et, func() { elseTy = c.inferExpr(scope, x.Else) })
			}
		} else {
			thenTy = c.inferExpr(scope, x.Then)
			if x.Else != nil {
				elseTy = c.inferExpr(scope, x.Else)
			}
		}
		if x.Else == nil {
			return types.Void
		}
		if types.Equal(thenTy, elseTy) {
			return thenTy
		}
		return types.Union(thenTy, elseTy)
	case *ast.MatchExpr:
		return c.inferMatch(scope, x)
	case *ast.ThrowExpr:
		c.inferExpr(scope, x.Value)
		return types.Never
	case *ast.CastExpr:
		c.inferExpr(scope, x.Value)
		return c.resolveTypeAnnotation(x.Type)
	case *ast.IsExpr:
		c.inferExpr(scope, x.Value)
		return types.Boolean
	case *ast.RangeExpr:
		if x.Start != nil {
			c.inferExpr(scope, x.Start)
		}
		if x.End != nil {
			c.inferExpr(scope, x.End)
		}
		return types.Range(types.RangeKind(x.Kind))
	case *ast.SpreadExpr:
		return c.inferExpr(scope, x.Value)
	default:
		return types.Any
	}
}

func (c *Checker) inferIdent(scope *Scope, id *ast.Ident) types.Type {
	if b, ok := scope.lookup(id.Name); ok {
		c.ctx.Resolved[id] = b
		if narrowed, ok := c.narrowActive[id.Name]; ok {
			c.ctx.Narrowed[id] = narrowed
			return narrowed
		}
		return b.Type
	}
	if cd, ok := c.classes[id.Name]; ok {
		return types.Class(c.ctx.ClassInfo[cd])
	}
	if _, ok := c.funcs[id.Name]; ok {
		return types.Any // function values are resolved structurally at call sites
	}
	if _, ok := c.enums[id.Name]; ok {
		return types.Any
	}
	if _, ok := intrinsicSignatures[id.Name]; ok && c.isStd {
		return types.Any
	}
	c.errorf(id.Pos(), CodeUnresolvedName, "unresolved name %q", id.Name)
	return types.Any
}

// intrinsicSignatures lists the compiler-known names callable only from
// stdlib modules (spec.md §4.5.8); the value is the call's result type.
var intrinsicSignatures = map[string]types.Type{
	"__array_new": types.Array(types.Any),
	"__array_get": types.Any,
	"__array_set": types.Void,
	"__array_len": types.Number(types.WidthI32),
	"unreachable": types.Never,
	"hash":        types.Number(types.WidthI32),
}

func (c *Checker) inferBinary(scope *Scope, x *ast.BinaryExpr) types.Type {
	lt := c.inferExpr(scope, x.Left)
	rt := c.inferExpr(scope, x.Right)
	switch x.Op {
	case ast.OpAndAnd, ast.OpOrOr:
		if !types.Equal(lt, types.Boolean) || !types.Equal(rt, types.Boolean) {
			c.errorf(x.Pos(), CodeTypeMismatch, "logical operator requires boolean operands")
		}
		return types.Boolean
	case ast.OpEq, ast.OpNotEq:
		return types.Boolean
	case ast.OpLt, ast.OpLtEq, ast.OpGt, ast.OpGtEq:
		return types.Boolean
	case ast.OpBitAnd, ast.OpBitOr, ast.OpBitXor, ast.OpShl, ast.OpShr:
		if isFloat(lt) || isFloat(rt) {
			c.errorf(x.Pos(), CodeTypeMismatch, "bitwise operator forbids float operands")
			return lt
		}
		if !types.Equal(lt, rt) {
			c.errorf(x.Pos(), CodeTypeMismatch, "bitwise operator requires matching operand types, got %s and %s", types.Print(lt), types.Print(rt))
		}
		return lt
	default: // + - * / % **
		if methodName, ok := operatorMethodName(x.Op); ok && lt.Kind == types.KindClass {
			if mt, ok := c.lookupOperatorMethod(lt, methodName); ok {
				return mt
			}
		}
		if lt.Kind == types.KindString && rt.Kind == types.KindString && x.Op == ast.OpAdd {
			return types.String
		}
		if types.Equal(lt, rt) {
			return lt
		}
		// Mixing an integer with a float widens to the float (spec.md
		// §4.5.2); i32/u32 and any other signedness mix stays an error.
		if widened, ok := widenArith(lt, rt); ok {
			return widened
		}
		c.errorf(x.Pos(), CodeTypeMismatch, "arithmetic operator requires matching operand types, got %s and %s", types.Print(lt), types.Print(rt))
		return lt
	}
}

func isFloat(t types.Type) bool {
	return t.Kind == types.KindNumber && t.Width.IsFloat()
}

func widenArith(lt, rt types.Type) (types.Type, bool) {
	if lt.Kind != types.KindNumber || rt.Kind != types.KindNumber {
		return types.Type{}, false
	}
	f, i := lt, rt
	if !f.Width.IsFloat() {
		f, i = rt, lt
	}
	if !f.Width.IsFloat() || i.Width.IsFloat() || i.Width != types.WidthI32 {
		return types.Type{}, false
	}
	return f, true
}

func operatorMethodName(op ast.BinaryOp) (string, bool) {
	switch op {
	case ast.OpAdd:
		return "operator+", true
	case ast.OpSub:
		return "operator-", true
	case ast.OpMul:
		return "operator*", true
	case ast.OpDiv:
		return "operator/", true
	default:
		return "", false
	}
}

func (c *Checker) lookupOperatorMethod(classTy types.Type, name string) (types.Type, bool) {
	cd := c.classByDecl(classTy.Class)
	if cd == nil {
		return types.Type{}, false
	}
	for cur := cd; cur != nil; {
		for i := range cur.Methods {
			m := &cur.Methods[i]
			if m.Name == name {
				if m.ReturnType != nil {
					return c.resolveTypeAnnotation(m.ReturnType), true
				}
				return types.Void, true
			}
		}
		if cur.Super == nil {
			break
		}
		superName, ok := simpleTypeName(cur.Super)
		if !ok {
			break
		}
		cur = c.classes[superName]
	}
	return types.Type{}, false
}

func (c *Checker) classByDecl(decl *types.ClassDecl) *ast.ClassDecl {
	for cd, info := range c.ctx.ClassInfo {
		if info == decl {
			return cd
		}
	}
	return nil
}

func (c *Checker) interfaceByDecl(decl *types.InterfaceDecl) *ast.InterfaceDecl {
	for id, info := range c.ctx.InterfaceInfo {
		if info == decl {
			return id
		}
	}
	return nil
}

// resolveSubst resolves a type annotation with an interface
// instantiation's type-parameter substitution applied (spec.md §4.5.7):
// a bare name matching a type parameter yields its argument.
func (c *Checker) resolveSubst(ta ast.TypeAnnotation, subst map[string]types.Type) types.Type {
	if ta == nil {
		return types.Any
	}
	if named, ok := ta.(*ast.NamedTypeAnnotation); ok {
		if t, ok := subst[named.Name]; ok {
			return t
		}
	}
	return c.resolveTypeAnnotation(ta)
}

func (c *Checker) inferCall(scope *Scope, x *ast.CallExpr) types.Type {
	calleeTy := c.inferExpr(scope, x.Callee)
	argTypes := make([]types.Type, len(x.Args))
	for i, a := range x.Args {
		argTypes[i] = c.inferExpr(scope, a)
	}
	if calleeTy.Kind == types.KindFunction {
		if len(x.Args) != len(calleeTy.Params) {
			c.errorf(x.Pos(), CodeArityMismatch, "expected %d arguments, got %d", len(calleeTy.Params), len(x.Args))
		}
		c.checkArgTypes(x.Args, argTypes, calleeTy.Params, "function")
		return *calleeTy.Return
	}
	if ident, ok := x.Callee.(*ast.Ident); ok {
		if ret, ok := intrinsicSignatures[ident.Name]; ok && c.isStd {
			// Non-std references already failed resolution in inferIdent.
			if _, shadowed := c.funcs[ident.Name]; !shadowed {
				return ret
			}
		}
		if fd, ok := c.funcs[ident.Name]; ok {
			if len(x.Args) != len(fd.Params) {
				c.errorf(x.Pos(), CodeArityMismatch, "function %q expects %d arguments, got %d", ident.Name, len(fd.Params), len(x.Args))
			}
			c.checkArgTypes(x.Args, argTypes, c.paramTypes(fd.Params), "function "+ident.Name)
			if fd.ReturnType != nil {
				return c.resolveTypeAnnotation(fd.ReturnType)
			}
			return types.Void
		}
		if dfd, ok := c.declareFns[ident.Name]; ok {
			if len(x.Args) != len(dfd.Params) {
				c.errorf(x.Pos(), CodeArityMismatch, "function %q expects %d arguments, got %d", ident.Name, len(dfd.Params), len(x.Args))
			}
			c.checkArgTypes(x.Args, argTypes, c.paramTypes(dfd.Params), "function "+ident.Name)
			if dfd.ReturnType != nil {
				return c.resolveTypeAnnotation(dfd.ReturnType)
			}
			return types.Void
		}
	}
	if mem, ok := x.Callee.(*ast.MemberExpr); ok {
		objTy := c.ctx.typeOf(mem.Object)
		if objTy.Kind == types.KindClass {
			if cd := c.classByDecl(objTy.Class); cd != nil {
				if m := c.findMethod(cd, mem.Name); m != nil {
					if len(x.Args) != len(m.Params) {
						c.errorf(x.Pos(), CodeArityMismatch, "method %q expects %d arguments, got %d", mem.Name, len(m.Params), len(x.Args))
					}
					c.checkArgTypes(x.Args, argTypes, c.paramTypes(m.Params), "method "+mem.Name)
					if m.ReturnType != nil {
						return c.resolveTypeAnnotation(m.ReturnType)
					}
					return types.Void
				}
			}
		}
	}
	if _, ok := x.Callee.(*ast.SuperExpr); ok {
		if c.currentClass != nil && c.currentClass.Super != nil {
			if superName, ok := simpleTypeName(c.currentClass.Super); ok {
				if superCD, ok := c.classes[superName]; ok {
					switch {
					case superCD.Ctor != nil:
						// super(args) must match the super constructor's
						// arity and parameter types (spec.md §4.5.5).
						if len(x.Args) != len(superCD.Ctor.Params) {
							c.errorf(x.Pos(), CodeArityMismatch, "super(...) expects %d arguments, got %d", len(superCD.Ctor.Params), len(x.Args))
						}
						c.checkArgTypes(x.Args, argTypes, c.paramTypes(superCD.Ctor.Params), "super(...)")
					case len(x.Args) != 0:
						// no explicit super constructor: inherited default
						// constructor takes no arguments (spec.md §4.5.5).
						c.errorf(x.Pos(), CodeArityMismatch, "super(...) expects 0 arguments, got %d", len(x.Args))
					}
				}
			}
		}
		return types.Void
	}
	if calleeTy.Kind != types.KindAny {
		c.errorf(x.Callee.Pos(), CodeNotCallable, "expression of type %s is not callable", types.Print(calleeTy))
	}
	return types.Any
}

// paramTypes resolves a declared parameter list to checker types; an
// unannotated parameter is Any (every argument is assignable to it).
func (c *Checker) paramTypes(params []ast.Param) []types.Type {
	out := make([]types.Type, len(params))
	for i, p := range params {
		out[i] = types.Any
		if p.Type != nil {
			out[i] = c.resolveTypeAnnotation(p.Type)
		}
	}
	return out
}

// checkArgTypes verifies each argument against its parameter type: the
// expected type flows from the parameter (spec.md §4.5.2), so an i32
// passed where u32 is declared, or a string where i32 is declared, is
// rejected. Surplus arguments are already covered by the arity
// diagnostic.
func (c *Checker) checkArgTypes(args []ast.Expr, argTypes, params []types.Type, what string) {
	for i, pt := range params {
		if i >= len(argTypes) {
			return
		}
		if !types.AssignableTo(argTypes[i], pt) {
			c.errorf(args[i].Pos(), CodeTypeMismatch, "argument %d of %s: %s is not assignable to %s", i+1, what, types.Print(argTypes[i]), types.Print(pt))
		}
	}
}

func (c *Checker) findMethod(cd *ast.ClassDecl, name string) *ast.MethodDecl {
	for cur := cd; cur != nil; {
		for i := range cur.Methods {
			if cur.Methods[i].Name == name {
				return &cur.Methods[i]
			}
		}
		if cur.Super == nil {
			return nil
		}
		superName, ok := simpleTypeName(cur.Super)
		if !ok {
			return nil
		}
		cur = c.classes[superName]
	}
	return nil
}

func (c *Checker) findField(cd *ast.ClassDecl, name string) *ast.FieldDecl {
	for cur := cd; cur != nil; {
		for i := range cur.Fields {
			if cur.Fields[i].Name == name {
				return &cur.Fields[i]
			}
		}
		if cur.Super == nil {
			return nil
		}
		superName, ok := simpleTypeName(cur.Super)
		if !ok {
			return nil
		}
		cur = c.classes[superName]
	}
	return nil
}

func (c *Checker) inferNew(scope *Scope, x *ast.NewExpr) types.Type {
	argTypes := make([]types.Type, len(x.Args))
	for i, a := range x.Args {
		argTypes[i] = c.inferExpr(scope, a)
	}
	name, ok := simpleTypeName(x.Class)
	if !ok {
		return types.Any
	}
	cd, ok := c.classes[name]
	if !ok {
		c.errorf(x.Pos(), CodeUnresolvedName, "unknown class %q", name)
		return types.Any
	}
	switch {
	case cd.Ctor != nil:
		if len(x.Args) != len(cd.Ctor.Params) {
			c.errorf(x.Pos(), CodeArityMismatch, "constructor of %q expects %d arguments, got %d", name, len(cd.Ctor.Params), len(x.Args))
		}
		c.checkArgTypes(x.Args, argTypes, c.paramTypes(cd.Ctor.Params), "new "+name)
	case len(x.Args) != 0:
		// implicit constructor: it only forwards super() with no
		// arguments (spec.md §4.5.5).
		c.errorf(x.Pos(), CodeArityMismatch, "constructor of %q expects 0 arguments, got %d", name, len(x.Args))
	}
	return types.Class(c.ctx.ClassInfo[cd])
}

func (c *Checker) inferMember(scope *Scope, x *ast.MemberExpr) types.Type {
	// Enum member access: the member is the i32 ordinal (spec.md §8
	// scenario 6), resolved before ordinary member inference so the enum
	// name itself never reads as an unresolved value.
	if obj, ok := x.Object.(*ast.Ident); ok {
		if ed, isEnum := c.enums[obj.Name]; isEnum {
			c.ctx.ExprTypes[obj] = types.Any
			for _, m := range ed.Members {
				if m.Name == x.Name {
					return types.Number(types.WidthI32)
				}
			}
			c.errorf(x.Pos(), CodeMissingMember, "enum %q has no member %q", obj.Name, x.Name)
			return types.Number(types.WidthI32)
		}
	}
	objTy := c.inferExpr(scope, x.Object)
	t := c.memberType(objTy, x)
	if x.Optional {
		return types.Union(t, types.Null)
	}
	return t
}

func (c *Checker) memberType(objTy types.Type, x *ast.MemberExpr) types.Type {
	switch objTy.Kind {
	case types.KindClass:
		cd := c.classByDecl(objTy.Class)
		if cd == nil {
			return types.Any
		}
		if f := c.findField(cd, x.Name); f != nil {
			return c.resolveTypeOrInfer(f.Type, f.Init, c.global)
		}
		if m := c.findMethod(cd, x.Name); m != nil {
			// Accessors read and write as plain properties (spec.md §1):
			// a getter's member type is its return type, a setter's the
			// type of its single parameter.
			switch m.Accessor {
			case ast.AccessorGet:
				if m.ReturnType != nil {
					return c.resolveTypeAnnotation(m.ReturnType)
				}
				return types.Any
			case ast.AccessorSet:
				if len(m.Params) == 1 && m.Params[0].Type != nil {
					return c.resolveTypeAnnotation(m.Params[0].Type)
				}
				return types.Any
			}
			params := make([]types.Type, len(m.Params))
			for i, p := range m.Params {
				if p.Type != nil {
					params[i] = c.resolveTypeAnnotation(p.Type)
				}
			}
			ret := types.Void
			if m.ReturnType != nil {
				ret = c.resolveTypeAnnotation(m.ReturnType)
			}
			return types.Function(nil, params, ret)
		}
		c.errorf(x.Pos(), CodeMissingMember, "class %q has no member %q", cd.Name, x.Name)
		return types.Any
	case types.KindInterface:
		id := c.interfaceByDecl(objTy.Interface)
		if id == nil {
			return types.Any
		}
		subst := make(map[string]types.Type)
		for i, tp := range id.TypeParams {
			if i < len(objTy.TypeArgs) {
				subst[tp.Name] = objTy.TypeArgs[i]
			}
		}
		for _, m := range id.Methods {
			if m.Name != x.Name {
				continue
			}
			params := make([]types.Type, len(m.Params))
			for i, p := range m.Params {
				params[i] = c.resolveSubst(p.Type, subst)
			}
			ret := types.Void
			if m.ReturnType != nil {
				ret = c.resolveSubst(m.ReturnType, subst)
			}
			return types.Function(nil, params, ret)
		}
		for i := range id.Fields {
			if id.Fields[i].Name == x.Name {
				return c.resolveSubst(id.Fields[i].Type, subst)
			}
		}
		c.errorf(x.Pos(), CodeMissingMember, "interface %q has no member %q", id.Name, x.Name)
		return types.Any
	case types.KindArray:
		if x.Name == "length" {
			return types.Number(types.WidthI32)
		}
		return types.Any
	case types.KindString:
		if x.Name == "length" {
			return types.Number(types.WidthI32)
		}
		return types.Any
	case types.KindRecord:
		for _, f := range objTy.Fields {
			if f.Name == x.Name {
				return f.Type
			}
		}
		c.errorf(x.Pos(), CodeMissingMember, "record has no field %q", x.Name)
		return types.Any
	default:
		return types.Any
	}
}

func (c *Checker) inferFuncExpr(scope *Scope, x *ast.FuncExpr) types.Type {
	inner := newScope(scope)
	params := make([]types.Type, len(x.Params))
	for i, p := range x.Params {
		pt := types.Any
		if p.Type != nil {
			pt = c.resolveTypeAnnotation(p.Type)
		}
		params[i] = pt
		inner.declare(&Binding{Name: p.Name, Type: pt})
	}
	var ret types.Type
	if x.ReturnType != nil {
		ret = c.resolveTypeAnnotation(x.ReturnType)
	}
	prevRet := c.currentRet
	if x.ReturnType != nil {
		c.currentRet = &ret
	}
	switch body := x.Body.(type) {
	case *ast.Block:
		c.checkBlock(inner, body)
		if x.ReturnType == nil {
			// Arrow block bodies yield their trailing expression
			// statement's value (spec.md §8 scenario 1); checkBlock has
			// already typed it.
			ret = types.Void
			if n := len(body.Stmts); n > 0 {
				if es, ok := body.Stmts[n-1].(*ast.ExprStmt); ok {
					ret = c.ctx.typeOf(es.X)
				}
			}
		}
	case ast.Expr:
		bodyTy := c.inferExpr(inner, body)
		if x.ReturnType == nil {
			ret = bodyTy
		}
	}
	c.currentRet = prevRet
	c.ctx.FuncCaptures[x] = computeCaptures(x, scope)
	return types.Function(nil, params, ret)
}

// computeCaptures is the closure-conversion pre-pass of spec.md §9: it
// collects every free identifier referenced in the function body that
// resolves in an enclosing scope rather than the function's own
// parameters, so codegen knows exactly what the generated environment
// struct must hold.
func computeCaptures(x *ast.FuncExpr, outer *Scope) []string {
	params := make(map[string]bool, len(x.Params))
	for _, p := range x.Params {
		params[p.Name] = true
	}
	seen := make(map[string]bool)
	var names []string
	var walk func(n ast.Node)
	visit := func(name string) {
		if params[name] || seen[name] {
			return
		}
		if _, ok := outer.lookup(name); ok {
			seen[name] = true
			names = append(names, name)
		}
	}
	walk = func(n ast.Node) {
		if n == nil {
			return
		}
		switch v := n.(type) {
		case *ast.Ident:
			visit(v.Name)
		case *ast.ThisExpr:
			visit("this")
		case *ast.BinaryExpr:
			walk(v.Left)
			walk(v.Right)
		case *ast.UnaryExpr:
			walk(v.Operand)
		case *ast.CallExpr:
			walk(v.Callee)
			for _, a := range v.Args {
				walk(a)
			}
		case *ast.NewExpr:
			for _, a := range v.Args {
				walk(a)
			}
		case *ast.MemberExpr:
			walk(v.Object)
		case *ast.IndexExpr:
			walk(v.Object)
			walk(v.Index)
		case *ast.TemplateLit:
			for _, e := range v.Exprs {
				walk(e)
			}
		case *ast.RecordLit:
			for _, f := range v.Fields {
				if f.Value != nil {
					walk(f.Value)
				} else {
					visit(f.Name)
				}
			}
		case *ast.TupleLit:
			for _, e := range v.Elements {
				walk(e)
			}
		case *ast.ArrayLit:
			for _, e := range v.Elements {
				walk(e)
			}
		case *ast.FuncExpr:
			// A nested closure's free names propagate up through the
			// enclosing function when it does not bind them either
			// (spec.md §9 "closure conversion over nested scopes").
			walk(v.Body)
		case *ast.IfExpr:
			walk(v.Cond)
			walk(v.Then)
			walk(v.Else)
		case *ast.MatchExpr:
			walk(v.Scrutinee)
			for i := range v.Arms {
				walk(v.Arms[i].Guard)
				walk(v.Arms[i].Body)
			}
		case *ast.ThrowExpr:
			walk(v.Value)
		case *ast.CastExpr:
			walk(v.Value)
		case *ast.IsExpr:
			walk(v.Value)
		case *ast.RangeExpr:
			walk(v.Start)
			walk(v.End)
		case *ast.SpreadExpr:
			walk(v.Value)
		case *ast.ExprStmt:
			walk(v.X)
		case *ast.Block:
			for _, s := range v.Stmts {
				walk(s)
			}
		case *ast.ReturnStmt:
			walk(v.Value)
		case *ast.IfStmt:
			walk(v.Cond)
			walk(v.Then)
			walk(v.Else)
		case *ast.ForStmt:
			walk(v.Init)
			walk(v.Cond)
			walk(v.Post)
			walk(v.Body)
		case *ast.WhileStmt:
			walk(v.Cond)
			walk(v.Body)
		case *ast.AssignStmt:
			walk(v.Target)
			walk(v.Value)
		case *ast.VarDecl:
			walk(v.Init)
		}
	}
	walk(x.Body)
	return names
}

// narrowingFromCond inspects a boolean condition for an `x is T` test
// or a null comparison on a scoped binding (spec.md §4.5.3) and returns
// the variable name plus the types it narrows to in the then/else
// branches.
func (c *Checker) narrowingFromCond(scope *Scope, cond ast.Expr) (name string, thenTy, elseTy types.Type, ok bool) {
	switch e := cond.(type) {
	case *ast.IsExpr:
		id, isIdent := e.Value.(*ast.Ident)
		if !isIdent {
			return
		}
		b, found := scope.lookup(id.Name)
		if !found {
			return
		}
		target := c.resolveTypeAnnotation(e.Type)
		return id.Name, target, typeSubtract(b.Type, target), true
	case *ast.BinaryExpr:
		if e.Op != ast.OpEq && e.Op != ast.OpNotEq {
			return
		}
		var id *ast.Ident
		if _, isNull := e.Right.(*ast.NullLit); isNull {
			id, _ = e.Left.(*ast.Ident)
		} else if _, isNull := e.Left.(*ast.NullLit); isNull {
			id, _ = e.Right.(*ast.Ident)
		}
		if id == nil {
			return
		}
		b, found := scope.lookup(id.Name)
		if !found {
			return
		}
		nonNull := typeSubtract(b.Type, types.Null)
		if e.Op == ast.OpEq {
			return id.Name, types.Null, nonNull, true
		}
		return id.Name, nonNull, types.Null, true
	}
	return
}

// typeSubtract computes U \ T for a union scrutinee; non-union types
// pass through unchanged (narrowing never widens).
func typeSubtract(from, removed types.Type) types.Type {
	if from.Kind != types.KindUnion {
		return from
	}
	var rest []types.Type
	for _, m := range from.Members {
		if !types.AssignableTo(m, removed) {
			rest = append(rest, m)
		}
	}
	if len(rest) == 0 {
		return types.Never
	}
	return types.Union(rest...)
}

func (c *Checker) withNarrow(name string, t types.Type, fn func()) {
	prev, had := c.narrowActive[name]
	c.narrowActive[name] = t
	fn()
	if had {
		c.narrowActive[name] = prev
	} else {
		delete(c.narrowActive, name)
	}
}

func (c *Checker) inferMatch(scope *Scope, x *ast.MatchExpr) types.Type {
	scrutTy := c.inferExpr(scope, x.Scrutinee)
	var armTypes []types.Type
	for i := range x.Arms {
		arm := &x.Arms[i]
		armScope := newScope(scope)
		c.bindPattern(armScope, arm.Pattern, scrutTy, false)
		if arm.Guard != nil {
			c.inferExpr(armScope, arm.Guard)
		}
		armTypes = append(armTypes, c.inferExpr(armScope, arm.Body))
	}
	c.checkExhaustiveness(x, scrutTy)
	if len(armTypes) == 0 {
		return types.Void
	}
	result := armTypes[0]
	for _, t := range armTypes[1:] {
		if !types.Equal(result, t) {
			result = types.Union(result, t)
		}
	}
	return result
}
