// Package check implements name resolution, type inference, subtyping
// and narrowing, interface conformance, and match exhaustiveness
// (spec.md §4.5). It never mutates the ast package's tree; every
// derived fact is recorded in a Context side-table keyed by node
// identity, the discipline documented in internal/ast's package
// comment and modeled on how the teacher's internal/wasm validation
// pass annotates a decoded Module without rewriting it.
package check

import (
	"strings"

	"github.com/wgc-lang/wgc/internal/ast"
	"github.com/wgc-lang/wgc/internal/token"
	"github.com/wgc-lang/wgc/internal/types"
)

// Checker holds the mutable state of one checking run. A new Checker is
// created per compilation, mirroring the teacher's "one Lexer per
// compilation unit" discipline.
type Checker struct {
	ctx   *Context
	diags []Diagnostic

	global *Scope

	classes     map[string]*ast.ClassDecl
	interfaces  map[string]*ast.InterfaceDecl
	mixins      map[string]*ast.MixinDecl
	funcs       map[string]*ast.FuncDecl
	declareFns  map[string]*ast.DeclareFuncDecl
	typeAliases map[string]*ast.TypeAliasDecl
	enums       map[string]*ast.EnumDecl

	currentClass *ast.ClassDecl // non-nil while checking a method/ctor body
	currentRet   *types.Type    // expected return type of the function being checked

	// distinctDecls caches the identity wrapper minted for each `distinct`
	// type alias, keyed by the alias declaration itself, so every
	// resolution of the same alias name produces the *same* DistinctDecl
	// pointer (spec.md §3.3: distinct types are identified by declaration
	// identity; minting a fresh wrapper per reference would make two uses
	// of the same alias nominally unequal to each other).
	distinctDecls map[*ast.TypeAliasDecl]*types.ClassDecl

	// isStd is true when the module under check lives under the stdlib
	// prefix, unlocking the compiler-known intrinsics (spec.md §4.5.8).
	isStd bool

	// narrowActive maps a variable name to its flow-narrowed type while
	// checking a branch dominated by an `x is T` or null test (spec.md
	// §4.5.3). inferIdent consults it per use site and records the
	// narrowed type in ctx.Narrowed.
	narrowActive map[string]types.Type

	// beforeSuper is true while checking a derived constructor's
	// statements that textually precede its super(...) call (spec.md
	// §4.5.5: "statements preceding super() may not mention this"). It is
	// a sequential approximation, not a full control-flow analysis: the
	// first top-level super(...) call statement in the constructor body
	// flips it off for everything that follows.
	beforeSuper bool
}

// Check type-checks a fully-parsed module (with all its transitive
// imports already merged into Decls by the caller — spec.md §5 treats
// the whole program as one compilation unit once module resolution
// completes) and returns the semantic context plus every diagnostic
// found. A non-empty error-severity diagnostic list means codegen must
// not run (spec.md §7).
func Check(mod *ast.Module) (*Context, []Diagnostic) {
	c := &Checker{
		ctx:           newContext(),
		global:        newScope(nil),
		classes:       make(map[string]*ast.ClassDecl),
		interfaces:    make(map[string]*ast.InterfaceDecl),
		mixins:        make(map[string]*ast.MixinDecl),
		funcs:         make(map[string]*ast.FuncDecl),
		declareFns:    make(map[string]*ast.DeclareFuncDecl),
		typeAliases:   make(map[string]*ast.TypeAliasDecl),
		enums:         make(map[string]*ast.EnumDecl),
		distinctDecls: make(map[*ast.TypeAliasDecl]*types.ClassDecl),
		isStd:         strings.HasPrefix(mod.Path, "std:"),
		narrowActive:  make(map[string]types.Type),
	}
	c.registerAll(mod.Decls)
	c.resolveHierarchies()
	c.checkAll(mod.Decls)
	return c.ctx, c.diags
}

func unwrapDecl(s ast.Stmt) ast.Decl {
	if exp, ok := s.(*ast.ExportStmt); ok {
		return exp.Decl
	}
	if d, ok := s.(ast.Decl); ok {
		return d
	}
	return nil
}

// registerAll performs spec.md §4.5.1's first pass: every top-level name
// is declared before any body is checked, so forward references between
// classes (mutually recursive types) and functions resolve.
func (c *Checker) registerAll(decls []ast.Stmt) {
	for _, s := range decls {
		d := unwrapDecl(s)
		if d == nil {
			continue
		}
		switch dd := d.(type) {
		case *ast.ClassDecl:
			if _, dup := c.classes[dd.Name]; dup {
				c.errorf(dd.Pos(), CodeDuplicateDecl, "class %q already declared", dd.Name)
				continue
			}
			c.classes[dd.Name] = dd
			c.ctx.ClassInfo[dd] = &types.ClassDecl{Name: dd.Name}
		case *ast.InterfaceDecl:
			if _, dup := c.interfaces[dd.Name]; dup {
				c.errorf(dd.Pos(), CodeDuplicateDecl, "interface %q already declared", dd.Name)
				continue
			}
			c.interfaces[dd.Name] = dd
			c.ctx.InterfaceInfo[dd] = &types.InterfaceDecl{Name: dd.Name}
		case *ast.MixinDecl:
			c.mixins[dd.Name] = dd
		case *ast.FuncDecl:
			if _, dup := c.funcs[dd.Name]; dup {
				c.errorf(dd.Pos(), CodeDuplicateDecl, "function %q already declared", dd.Name)
				continue
			}
			c.funcs[dd.Name] = dd
		case *ast.DeclareFuncDecl:
			c.declareFns[dd.Name] = dd
		case *ast.TypeAliasDecl:
			c.typeAliases[dd.Name] = dd
		case *ast.EnumDecl:
			c.enums[dd.Name] = dd
		case *ast.VarDecl:
			// handled in checkAll, once initializer types are inferable
		}
	}
}

// resolveHierarchies fills in Super/Implements on each registered class's
// types.ClassDecl now that every name is known, detecting inheritance
// cycles (spec.md §3.6 invariant: the class graph is acyclic) via a
// visited/visiting two-color walk.
func (c *Checker) resolveHierarchies() {
	visiting := make(map[string]bool)
	done := make(map[string]bool)
	var resolve func(name string) *types.ClassDecl
	resolve = func(name string) *types.ClassDecl {
		cd, ok := c.classes[name]
		if !ok {
			return nil
		}
		info := c.ctx.ClassInfo[cd]
		if done[name] {
			return info
		}
		if visiting[name] {
			c.errorf(cd.Pos(), CodeCyclicDecl, "class %q participates in an inheritance cycle", name)
			return info
		}
		visiting[name] = true
		if cd.Super != nil {
			if superName, ok := simpleTypeName(cd.Super); ok {
				if superCD, ok := c.classes[superName]; ok {
					resolve(superName)
					// info.Super set via a placeholder types.Type populated below
					_ = superCD
				}
			}
		}
		visiting[name] = false
		done[name] = true
		return info
	}
	for name := range c.classes {
		resolve(name)
	}
	// A second, simpler pass actually wires Super/Implements types.Type
	// pointers now that every class's types.ClassDecl exists.
	for name, cd := range c.classes {
		info := c.ctx.ClassInfo[cd]
		if cd.Super != nil {
			if superName, ok := simpleTypeName(cd.Super); ok {
				if superCD, ok := c.classes[superName]; ok {
					superInfo := c.ctx.ClassInfo[superCD]
					superType := types.Class(superInfo)
					info.Super = &superType
				} else {
					c.errorf(cd.Super.Pos(), CodeUnresolvedName, "unknown superclass %q", superName)
				}
			}
		}
		for _, impl := range cd.Implements {
			if ifaceName, ok := simpleTypeName(impl); ok {
				if ifaceDecl, ok := c.interfaces[ifaceName]; ok {
					info.Implements = append(info.Implements, c.ctx.InterfaceInfo[ifaceDecl])
				} else {
					c.errorf(impl.Pos(), CodeUnresolvedName, "unknown interface %q", ifaceName)
				}
			}
		}
		_ = name
	}
	for _, id := range c.interfaces {
		if id.Parent == nil {
			continue
		}
		if parentName, ok := simpleTypeName(id.Parent); ok {
			if parentDecl, ok := c.interfaces[parentName]; ok {
				c.ctx.InterfaceInfo[id].Parent = c.ctx.InterfaceInfo[parentDecl]
			} else {
				c.errorf(id.Parent.Pos(), CodeUnresolvedName, "unknown parent interface %q", parentName)
			}
		}
	}
	// Interface conformance: every implemented interface's methods and
	// fields must be satisfied by the class or one of its ancestors
	// (spec.md §4.5.4).
	for _, cd := range c.classes {
		for _, impl := range cd.Implements {
			ifaceName, ok := simpleTypeName(impl)
			if !ok {
				continue
			}
			iface, ok := c.interfaces[ifaceName]
			if !ok {
				continue
			}
			c.checkInterfaceConformance(cd, iface, c.implSubst(iface, impl))
		}
	}
}

// implSubst builds the type-parameter substitution an implements clause
// fixes, e.g. `implements Provider<i32>` maps Provider's T to i32, so
// conformance compares against the instantiated signatures (spec.md
// §4.5.7).
func (c *Checker) implSubst(iface *ast.InterfaceDecl, impl ast.TypeAnnotation) map[string]types.Type {
	subst := make(map[string]types.Type)
	gen, ok := impl.(*ast.GenericTypeAnnotation)
	if !ok {
		return subst
	}
	for i, tp := range iface.TypeParams {
		if i < len(gen.Args) {
			subst[tp.Name] = c.resolveTypeAnnotation(gen.Args[i])
		}
	}
	return subst
}

// accessorKey distinguishes a getter, setter, and plain method of the
// same name, since an interface's accessor requirements match "by name
// and declared get/set capability" (spec.md §4.5.4).
func accessorKey(name string, accessor ast.AccessorKind) string {
	switch accessor {
	case ast.AccessorGet:
		return "get:" + name
	case ast.AccessorSet:
		return "set:" + name
	default:
		return name
	}
}

// checkInterfaceConformance enforces spec.md §4.5.4: every interface
// method must be present with an exactly matching signature (parameter
// types and return type), every interface field present with a matching
// type, and accessors matched by name and get/set capability. At most
// one diagnostic is emitted per interface member (P4).
func (c *Checker) checkInterfaceConformance(cd *ast.ClassDecl, iface *ast.InterfaceDecl, subst map[string]types.Type) {
	methods := make(map[string]*ast.MethodDecl)
	for cur := cd; cur != nil; {
		for i := range cur.Methods {
			m := &cur.Methods[i]
			if m.IsStatic {
				continue // static methods never satisfy an interface
			}
			key := accessorKey(m.Name, m.Accessor)
			if _, seen := methods[key]; !seen {
				methods[key] = m
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

	for _, im := range iface.Methods {
		m, ok := methods[accessorKey(im.Name, im.Accessor)]
		if !ok {
			c.errorf(cd.Pos(), CodeInterfaceConformance, "class %q does not implement %s %q required by interface %q", cd.Name, memberNoun(im.Accessor), im.Name, iface.Name)
			continue
		}
		if len(m.Params) != len(im.Params) {
			c.errorf(m.Span, CodeInterfaceConformance, "method %q has %d parameters, interface %q requires %d", im.Name, len(m.Params), iface.Name, len(im.Params))
			continue
		}
		if !c.methodMatchesInterface(m, im, subst) {
			c.errorf(m.Span, CodeInterfaceConformance, "method %q does not match the signature required by interface %q", im.Name, iface.Name)
		}
	}

	for i := range iface.Fields {
		f := &iface.Fields[i]
		fd := c.findField(cd, f.Name)
		if fd == nil {
			c.errorf(cd.Pos(), CodeInterfaceConformance, "class %q is missing field %q required by interface %q", cd.Name, f.Name, iface.Name)
			continue
		}
		want := c.resolveSubst(f.Type, subst)
		got := c.resolveTypeOrInfer(fd.Type, fd.Init, c.global)
		if !types.Equal(got, want) {
			c.errorf(cd.Pos(), CodeInterfaceConformance, "field %q has type %s, interface %q requires %s", f.Name, types.Print(got), iface.Name, types.Print(want))
		}
	}
}

func memberNoun(accessor ast.AccessorKind) string {
	switch accessor {
	case ast.AccessorGet:
		return "getter"
	case ast.AccessorSet:
		return "setter"
	default:
		return "method"
	}
}

// methodMatchesInterface compares a class method's signature against an
// interface method's, exactly (types.Equal, not subtyping — spec.md
// §4.5.4 "exactly matching signature"), with the implements clause's
// type-argument substitution applied to the interface side.
func (c *Checker) methodMatchesInterface(m *ast.MethodDecl, im ast.InterfaceMethod, subst map[string]types.Type) bool {
	for i := range im.Params {
		want := c.resolveSubst(im.Params[i].Type, subst)
		got := types.Any
		if m.Params[i].Type != nil {
			got = c.resolveTypeAnnotation(m.Params[i].Type)
		}
		if !types.Equal(got, want) {
			return false
		}
	}
	want := types.Void
	if im.ReturnType != nil {
		want = c.resolveSubst(im.ReturnType, subst)
	}
	got := types.Void
	if m.ReturnType != nil {
		got = c.resolveTypeAnnotation(m.ReturnType)
	}
	return types.Equal(got, want)
}

// simpleTypeName extracts a bare identifier from a TypeAnnotation,
// stripping generic arguments (e.g. `Box<T>` -> "Box"), for the common
// case where hierarchy resolution only needs the declaration's name.
func simpleTypeName(t ast.TypeAnnotation) (string, bool) {
	switch tt := t.(type) {
	case *ast.NamedTypeAnnotation:
		return tt.Name, true
	case *ast.GenericTypeAnnotation:
		return simpleTypeName(tt.Base)
	default:
		return "", false
	}
}

// checkAll type-checks every top-level declaration's body.
func (c *Checker) checkAll(decls []ast.Stmt) {
	for _, s := range decls {
		d := unwrapDecl(s)
		if d == nil {
			if vd, ok := s.(*ast.VarDecl); ok {
				c.checkStmt(c.global, vd)
			}
			continue
		}
		switch dd := d.(type) {
		case *ast.ClassDecl:
			c.checkClassBody(dd)
		case *ast.FuncDecl:
			c.checkFuncBody(dd)
		case *ast.VarDecl:
			c.checkStmt(c.global, dd)
		}
	}
}

func (c *Checker) checkClassBody(cd *ast.ClassDecl) {
	info := c.ctx.ClassInfo[cd]
	selfType := types.Class(info)
	c.currentClass = cd
	defer func() { c.currentClass = nil }()

	classScope := newScope(c.global)
	for i := range cd.Fields {
		f := &cd.Fields[i]
		ft := c.resolveTypeOrInfer(f.Type, f.Init, classScope)
		classScope.declare(&Binding{Name: f.Name, Type: ft, Mutable: f.Mutable})
	}

	if cd.Ctor != nil {
		prevBeforeSuper := c.beforeSuper
		c.beforeSuper = cd.Super != nil
		c.checkFuncLike(cd.Ctor.Params, nil, cd.Ctor.Body, classScope, selfType)
		c.beforeSuper = prevBeforeSuper
	}
	for i := range cd.Methods {
		m := &cd.Methods[i]
		var ret types.Type
		if m.ReturnType != nil {
			ret = c.resolveTypeAnnotation(m.ReturnType)
		} else {
			ret = types.Void
		}
		c.checkFuncLike(m.Params, &ret, m.Body, classScope, selfType)
	}
}

func (c *Checker) checkFuncBody(fd *ast.FuncDecl) {
	var ret types.Type
	if fd.ReturnType != nil {
		ret = c.resolveTypeAnnotation(fd.ReturnType)
	} else {
		ret = types.Void
	}
	c.checkFuncLike(fd.Params, &ret, fd.Body, c.global, types.Type{})
}

// checkFuncLike type-checks one function-like body (method, ctor, free
// function) with its parameters bound in a fresh scope. selfType is the
// zero Type when there is no enclosing class (`this` is then an error to
// reference, caught as an unresolved name).
func (c *Checker) checkFuncLike(params []ast.Param, ret *types.Type, body *ast.Block, parent *Scope, selfType types.Type) {
	scope := newScope(parent)
	if selfType.Kind != types.KindInvalid {
		scope.declare(&Binding{Name: "this", Type: selfType})
	}
	for _, p := range params {
		pt := types.Type{Kind: types.KindAny}
		if p.Type != nil {
			pt = c.resolveTypeAnnotation(p.Type)
		}
		scope.declare(&Binding{Name: p.Name, Type: pt, Mutable: false})
	}
	prevRet := c.currentRet
	c.currentRet = ret
	if body != nil {
		c.checkBlock(scope, body)
	}
	c.currentRet = prevRet
}

func (c *Checker) resolveTypeOrInfer(ta ast.TypeAnnotation, init ast.Expr, scope *Scope) types.Type {
	if ta != nil {
		return c.resolveTypeAnnotation(ta)
	}
	if init != nil {
		return c.inferExpr(scope, init)
	}
	return types.Any
}

// ---------------------------------------------------------------------
// Type annotation resolution
// ---------------------------------------------------------------------

func (c *Checker) resolveTypeAnnotation(ta ast.TypeAnnotation) types.Type {
	switch t := ta.(type) {
	case *ast.NamedTypeAnnotation:
		return c.resolveNamedType(t.Name, t.Pos())
	case *ast.GenericTypeAnnotation:
		baseName, _ := simpleTypeName(t.Base)
		if baseName == "Array" && len(t.Args) == 1 {
			return types.Array(c.resolveTypeAnnotation(t.Args[0]))
		}
		if cd, ok := c.classes[baseName]; ok {
			args := make([]types.Type, len(t.Args))
			for i, a := range t.Args {
				args[i] = c.resolveTypeAnnotation(a)
			}
			return types.Class(c.ctx.ClassInfo[cd], args...)
		}
		if id, ok := c.interfaces[baseName]; ok {
			args := make([]types.Type, len(t.Args))
			for i, a := range t.Args {
				args[i] = c.resolveTypeAnnotation(a)
			}
			return types.Interface(c.ctx.InterfaceInfo[id], args...)
		}
		return types.Any
	case *ast.FuncTypeAnnotation:
		params := make([]types.Type, len(t.Params))
		for i, p := range t.Params {
			params[i] = c.resolveTypeAnnotation(p)
		}
		return types.Function(nil, params, c.resolveTypeAnnotation(t.Return))
	case *ast.TupleTypeAnnotation:
		elems := make([]types.Type, len(t.Elements))
		for i, e := range t.Elements {
			elems[i] = c.resolveTypeAnnotation(e)
		}
		if t.Unboxed {
			return types.UnboxedTuple(elems...)
		}
		return types.Tuple(elems...)
	case *ast.RecordTypeAnnotation:
		fields := make([]types.RecordField, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = types.RecordField{Name: f.Name, Type: c.resolveTypeAnnotation(f.Type)}
		}
		return types.Record(fields...)
	case *ast.UnionTypeAnnotation:
		members := make([]types.Type, len(t.Members))
		for i, m := range t.Members {
			members[i] = c.resolveTypeAnnotation(m)
		}
		c.validateUnion(t.Pos(), members)
		return types.Union(members...)
	default:
		return types.Any
	}
}

// validateUnion enforces spec.md §3.6 invariant 5: a union may not mix
// primitive with reference members (null excepted — nullable unions are
// the point of having it) and may not contain two different distinct
// aliases wrapping the same underlying reference type.
func (c *Checker) validateUnion(span token.Span, members []types.Type) {
	hasPrim, hasRef := false, false
	var distincts []types.Type
	for _, m := range members {
		switch m.Kind {
		case types.KindNever, types.KindNull, types.KindAny:
		case types.KindDistinct:
			distincts = append(distincts, m)
			if m.Underlying.IsReference() {
				hasRef = true
			} else {
				hasPrim = true
			}
		default:
			if m.IsReference() {
				hasRef = true
			} else {
				hasPrim = true
			}
		}
	}
	if hasPrim && hasRef {
		c.errorf(span, CodeInvalidUnion, "union mixes primitive and reference members")
	}
	for i := 0; i < len(distincts); i++ {
		for j := i + 1; j < len(distincts); j++ {
			a, b := distincts[i], distincts[j]
			if a.DistinctDecl != b.DistinctDecl && a.Underlying.IsReference() && types.Equal(*a.Underlying, *b.Underlying) {
				c.errorf(span, CodeInvalidUnion, "union mixes distinct aliases %q and %q of the same underlying type", a.DistinctName, b.DistinctName)
			}
		}
	}
}

func (c *Checker) resolveNamedType(name string, span token.Span) types.Type {
	switch name {
	case "i32":
		return types.Number(types.WidthI32)
	case "u32":
		return types.Number(types.WidthU32)
	case "i64":
		return types.Number(types.WidthI64)
	case "f32":
		return types.Number(types.WidthF32)
	case "f64":
		return types.Number(types.WidthF64)
	case "boolean":
		return types.Boolean
	case "string":
		return types.String
	case "void":
		return types.Void
	case "never":
		return types.Never
	case "null":
		return types.Null
	case "any":
		return types.Any
	case "this":
		if c.currentClass != nil {
			return types.Class(c.ctx.ClassInfo[c.currentClass])
		}
		return types.Any
	}
	if cd, ok := c.classes[name]; ok {
		return types.Class(c.ctx.ClassInfo[cd])
	}
	if id, ok := c.interfaces[name]; ok {
		return types.Interface(c.ctx.InterfaceInfo[id])
	}
	if alias, ok := c.typeAliases[name]; ok {
		underlying := c.resolveTypeAnnotation(alias.Underlying)
		if alias.Distinct {
			decl, ok := c.distinctDecls[alias]
			if !ok {
				decl = &types.ClassDecl{Name: name}
				c.distinctDecls[alias] = decl
			}
			return types.Distinct(decl, name, underlying)
		}
		return underlying
	}
	c.errorf(span, CodeUnknownType, "unknown type %q", name)
	return types.Any
}
