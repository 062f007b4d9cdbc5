package codegen

import (
	"strconv"

	"github.com/wgc-lang/wgc/internal/ast"
	"github.com/wgc-lang/wgc/internal/types"
	"github.com/wgc-lang/wgc/internal/wasm"
)

const blockTypeI32 = 0x7f

// blockTypeOf encodes a checker type as a WASM block type: void for
// void/never-typed constructs, the single value type otherwise.
func (fg *funcGen) blockTypeOf(t types.Type) byte {
	switch t.Kind {
	case types.KindVoid, types.KindNever, types.KindInvalid:
		return blockTypeVoid
	default:
		return byte(fg.g.valueTypeOf(t))
	}
}

// lowerExpr emits code leaving e's value on the stack (or nothing for a
// void-typed expression). Every case consults the checker's side-tables
// (ExprTypes, FuncCaptures) rather than re-deriving types — spec.md
// §3.4's contract that codegen runs against a frozen semantic context.
func (fg *funcGen) lowerExpr(e ast.Expr) {
	switch x := e.(type) {
	case *ast.NumberLit:
		fg.lowerNumberLit(x)
	case *ast.StringLit:
		fg.emitStringLit(x.Value)
	case *ast.BoolLit:
		fg.emitByte(opI32Const)
		if x.Value {
			fg.emitI32(1)
		} else {
			fg.emitI32(0)
		}
	case *ast.NullLit:
		fg.emitBytes(opRefNull, heapTypeAny)
	case *ast.TemplateLit:
		fg.lowerTemplate(x)
	case *ast.WildcardExpr:
		fg.emitZeroValue(fg.g.ctx.ExprTypes[x])
	case *ast.SymbolRef:
		fg.emitByte(opI32Const)
		fg.emitI32(fg.g.symbolID(x.Name))
		fg.emitBytes(gcPrefix, gcRefI31)
	case *ast.Ident:
		fg.lowerName(x.Name)
	case *ast.ThisExpr:
		fg.lowerThis()
	case *ast.SuperExpr:
		// `super` only appears as a call or member-call receiver, both
		// handled in lowerCall; a bare super in value position still
		// denotes the current instance.
		fg.lowerThis()
	case *ast.BinaryExpr:
		fg.lowerBinary(x)
	case *ast.UnaryExpr:
		fg.lowerUnary(x)
	case *ast.CallExpr:
		fg.lowerCall(x)
	case *ast.NewExpr:
		fg.lowerNew(x)
	case *ast.MemberExpr:
		fg.lowerMember(x)
	case *ast.IndexExpr:
		fg.lowerIndex(x)
	case *ast.RecordLit:
		fg.lowerRecordLit(x)
	case *ast.TupleLit:
		fg.lowerBoxedTupleLit(x)
	case *ast.ArrayLit:
		fg.lowerArrayLit(x)
	case *ast.FuncExpr:
		fg.lowerFuncExpr(x)
	case *ast.IfExpr:
		fg.lowerIfExpr(x)
	case *ast.MatchExpr:
		fg.lowerMatch(x)
	case *ast.ThrowExpr:
		// spec.md §4.6.10: a throw is a trap; the thrown value is
		// evaluated for its side effects first.
		fg.lowerExpr(x.Value)
		if !fg.exprVoid(x.Value) {
			fg.emitByte(opDrop)
		}
		fg.emitByte(opUnreachable)
	case *ast.CastExpr:
		fg.lowerCast(x)
	case *ast.IsExpr:
		fg.lowerIs(x)
	case *ast.RangeExpr:
		fg.lowerRange(x)
	case *ast.SpreadExpr:
		fg.lowerExpr(x.Value)
	default:
		fg.emitBytes(opRefNull, heapTypeAny)
	}
}

func (fg *funcGen) lowerNumberLit(x *ast.NumberLit) {
	t := fg.g.ctx.ExprTypes[x]
	width := types.WidthI32
	if t.Kind == types.KindNumber {
		width = t.Width
	} else if x.IsFloat {
		width = types.WidthF64
	}
	switch width {
	case types.WidthI64:
		v, _ := strconv.ParseInt(x.Raw, 0, 64)
		fg.emitByte(opI64Const)
		fg.emitI64(v)
	case types.WidthF32:
		v, _ := strconv.ParseFloat(x.Raw, 32)
		fg.emitByte(opF32Const)
		fg.emitF32(float32(v))
	case types.WidthF64:
		v, _ := strconv.ParseFloat(x.Raw, 64)
		fg.emitByte(opF64Const)
		fg.emitF64(v)
	default:
		v, _ := strconv.ParseInt(x.Raw, 0, 64)
		fg.emitByte(opI32Const)
		fg.emitI32(int32(v))
	}
}

// lowerName resolves a bare identifier: locals and parameters first,
// then captured names through the closure environment (spec.md §4.6.4),
// then module globals, then top-level functions referenced as values.
func (fg *funcGen) lowerName(name string) {
	if b, ok := fg.lookup(name); ok {
		fg.emitByte(opLocalGet)
		fg.emitU32(b.index)
		return
	}
	if fg.env != nil {
		if i := indexOf(fg.env.names, name); i >= 0 {
			fg.emitEnvRead(i)
			return
		}
	}
	if idx, ok := fg.g.globalByName[name]; ok {
		fg.emitByte(opGlobalGet)
		fg.emitU32(idx)
		return
	}
	if _, ok := fg.g.funcIdx[name]; ok {
		gidx := fg.g.funcValueGlobal(name)
		fg.emitByte(opGlobalGet)
		fg.emitU32(gidx)
		return
	}
	fg.emitBytes(opRefNull, heapTypeAny)
}

// nameType mirrors lowerName's resolution order but answers the static
// type of the binding, for call-convention decisions.
func (fg *funcGen) nameType(name string) (types.Type, bool) {
	if b, ok := fg.lookup(name); ok {
		return b.ty, true
	}
	if fg.env != nil {
		if i := indexOf(fg.env.names, name); i >= 0 {
			return fg.env.types[i], true
		}
	}
	if t, ok := fg.g.globalType[name]; ok {
		return t, true
	}
	return types.Type{}, false
}

// emitEnvRead loads the i'th captured value out of the closure
// environment struct (implicit parameter 0, spec.md §4.6.4).
func (fg *funcGen) emitEnvRead(i int) {
	fg.emitByte(opLocalGet)
	fg.emitU32(0)
	fg.emitCastToStruct(fg.env.structType)
	fg.emitBytes(gcPrefix, gcStructGet)
	fg.emitU32(fg.env.structType)
	fg.emitU32(uint32(i))
}

func (fg *funcGen) lowerThis() {
	if fg.selfClass != nil {
		fg.emitByte(opLocalGet)
		fg.emitU32(0)
		return
	}
	if fg.env != nil {
		if i := indexOf(fg.env.names, "this"); i >= 0 {
			fg.emitEnvRead(i)
			return
		}
	}
	fg.emitBytes(opRefNull, heapTypeAny)
}

func (fg *funcGen) emitCastToStruct(typeIdx uint32) {
	fg.emitBytes(gcPrefix, gcRefCastNull)
	fg.emitBytes(encodeHeapType(typeIdx)...)
}

func (fg *funcGen) emitCastToArrayType(typeIdx uint32) {
	fg.emitBytes(gcPrefix, gcRefCastNull)
	fg.emitBytes(encodeHeapType(typeIdx)...)
}

// emitZeroValue pushes t's zero value: numeric zero, false, or null —
// the `_` tuple-position placeholder of spec.md §4.6.6.
func (fg *funcGen) emitZeroValue(t types.Type) {
	switch fg.g.valueTypeOf(t) {
	case wasm.ValueTypeI32:
		fg.emitByte(opI32Const)
		fg.emitI32(0)
	case wasm.ValueTypeI64:
		fg.emitByte(opI64Const)
		fg.emitI64(0)
	case wasm.ValueTypeF32:
		fg.emitByte(opF32Const)
		fg.emitF32(0)
	case wasm.ValueTypeF64:
		fg.emitByte(opF64Const)
		fg.emitF64(0)
	default:
		fg.emitBytes(opRefNull, heapTypeAny)
	}
}

// ---------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------

func (fg *funcGen) lowerBinary(x *ast.BinaryExpr) {
	lt := fg.g.ctx.ExprTypes[x.Left]
	rt := fg.g.ctx.ExprTypes[x.Right]

	// Operator overloading resolves to a method on the left operand's
	// class (spec.md §4.6.8).
	if lt.Kind == types.KindClass {
		if ci := fg.g.classInfoOf(lt); ci != nil {
			if slot := indexOf(ci.MethodSlots, "operator"+binaryOpSource(x.Op)); slot >= 0 {
				fg.emitVirtualCall(ci, slot, x.Left, []ast.Expr{x.Right})
				return
			}
		}
	}

	switch x.Op {
	case ast.OpAndAnd:
		fg.lowerExpr(x.Left)
		fg.openBlock(opIf, blockTypeI32)
		fg.lowerExpr(x.Right)
		fg.emitByte(opElse)
		fg.emitByte(opI32Const)
		fg.emitI32(0)
		fg.closeBlock()
		return
	case ast.OpOrOr:
		fg.lowerExpr(x.Left)
		fg.openBlock(opIf, blockTypeI32)
		fg.emitByte(opI32Const)
		fg.emitI32(1)
		fg.emitByte(opElse)
		fg.lowerExpr(x.Right)
		fg.closeBlock()
		return
	}

	if lt.Kind == types.KindString || rt.Kind == types.KindString {
		fg.lowerExpr(x.Left)
		fg.lowerExpr(x.Right)
		switch x.Op {
		case ast.OpAdd:
			fg.emitByte(opCall)
			fg.emitU32(fg.g.stringConcatHelper())
		case ast.OpEq:
			fg.emitByte(opCall)
			fg.emitU32(fg.g.stringEqHelper())
		case ast.OpNotEq:
			fg.emitByte(opCall)
			fg.emitU32(fg.g.stringEqHelper())
			fg.emitByte(opI32Eqz)
		default:
			fg.emitByte(opDrop)
			fg.emitByte(opDrop)
			fg.emitBytes(opRefNull, heapTypeAny)
		}
		return
	}

	// Reference equality for non-numeric operands.
	if (x.Op == ast.OpEq || x.Op == ast.OpNotEq) && lt.IsReference() {
		fg.lowerExpr(x.Left)
		fg.lowerExpr(x.Right)
		fg.emitByte(opRefEq)
		if x.Op == ast.OpNotEq {
			fg.emitByte(opI32Eqz)
		}
		return
	}

	width := operandWidth(lt, rt)
	fg.lowerExpr(x.Left)
	fg.coerceNumeric(lt, width)
	fg.lowerExpr(x.Right)
	fg.coerceNumeric(rt, width)

	if x.Op == ast.OpPow {
		switch width {
		case types.WidthF32, types.WidthF64:
			fg.emitByte(opCall)
			fg.emitU32(fg.g.powF64Helper())
		default:
			fg.emitByte(opCall)
			fg.emitU32(fg.g.powI32Helper())
		}
		return
	}
	fg.emitNumericOp(x.Op, width)
}

// operandWidth picks the shared arithmetic width for a mixed pair:
// floats absorb ints (spec.md §4.5.2's i32+f32 widening).
func operandWidth(lt, rt types.Type) types.NumberWidth {
	lw, rw := types.WidthI32, types.WidthI32
	if lt.Kind == types.KindNumber {
		lw = lt.Width
	} else if lt.Kind == types.KindBoolean {
		lw = types.WidthI32
	}
	if rt.Kind == types.KindNumber {
		rw = rt.Width
	} else if rt.Kind == types.KindBoolean {
		rw = types.WidthI32
	}
	if lw == rw {
		return lw
	}
	if lw == types.WidthF64 || rw == types.WidthF64 {
		return types.WidthF64
	}
	if lw == types.WidthF32 || rw == types.WidthF32 {
		return types.WidthF32
	}
	if lw == types.WidthI64 || rw == types.WidthI64 {
		return types.WidthI64
	}
	return lw
}

// coerceNumeric widens the just-pushed operand of type t to width.
func (fg *funcGen) coerceNumeric(t types.Type, width types.NumberWidth) {
	from := types.WidthI32
	if t.Kind == types.KindNumber {
		from = t.Width
	} else if t.Kind != types.KindBoolean {
		return
	}
	if from == width {
		return
	}
	switch {
	case width == types.WidthF64 && from.IsInt() && from != types.WidthI64:
		if from == types.WidthU32 {
			fg.emitByte(opF64ConvertI32U)
		} else {
			fg.emitByte(opF64ConvertI32S)
		}
	case width == types.WidthF64 && from == types.WidthI64:
		fg.emitByte(opF64ConvertI64S)
	case width == types.WidthF64 && from == types.WidthF32:
		fg.emitByte(opF64PromoteF32)
	case width == types.WidthF32 && from.IsInt():
		if from == types.WidthU32 {
			fg.emitByte(opF32ConvertI32U)
		} else {
			fg.emitByte(opF32ConvertI32S)
		}
	case width == types.WidthI64 && from.IsInt():
		if from == types.WidthU32 {
			fg.emitByte(opI64ExtendI32U)
		} else {
			fg.emitByte(opI64ExtendI32S)
		}
	}
}

func (fg *funcGen) emitNumericOp(op ast.BinaryOp, width types.NumberWidth) {
	type ops struct{ i32, u32, i64, f32, f64 byte }
	table := map[ast.BinaryOp]ops{
		ast.OpAdd:    {opI32Add, opI32Add, opI64Add, opF32Add, opF64Add},
		ast.OpSub:    {opI32Sub, opI32Sub, opI64Sub, opF32Sub, opF64Sub},
		ast.OpMul:    {opI32Mul, opI32Mul, opI64Mul, opF32Mul, opF64Mul},
		ast.OpDiv:    {opI32DivS, opI32DivU, opI64DivS, opF32Div, opF64Div},
		ast.OpEq:     {opI32Eq, opI32Eq, opI64Eq, opF32Eq, opF64Eq},
		ast.OpNotEq:  {opI32Ne, opI32Ne, opI64Ne, opF32Ne, opF64Ne},
		ast.OpLt:     {opI32LtS, opI32LtU, opI64LtS, opF32Lt, opF64Lt},
		ast.OpLtEq:   {opI32LeS, opI32LeU, opI64LeS, opF32Le, opF64Le},
		ast.OpGt:     {opI32GtS, opI32GtU, opI64GtS, opF32Gt, opF64Gt},
		ast.OpGtEq:   {opI32GeS, opI32GeU, opI64GeS, opF32Ge, opF64Ge},
		ast.OpBitAnd: {opI32And, opI32And, opI64And, 0, 0},
		ast.OpBitOr:  {opI32Or, opI32Or, opI64Or, 0, 0},
		ast.OpBitXor: {opI32Xor, opI32Xor, opI64Xor, 0, 0},
		ast.OpShl:    {opI32Shl, opI32Shl, opI64Shl, 0, 0},
		ast.OpShr:    {opI32ShrS, opI32ShrU, opI64ShrS, 0, 0},
	}
	if op == ast.OpMod {
		fg.emitRem(width)
		return
	}
	entry, ok := table[op]
	if !ok {
		return
	}
	switch width {
	case types.WidthU32:
		fg.emitByte(entry.u32)
	case types.WidthI64:
		fg.emitByte(entry.i64)
	case types.WidthF32:
		fg.emitByte(entry.f32)
	case types.WidthF64:
		fg.emitByte(entry.f64)
	default:
		fg.emitByte(entry.i32)
	}
}

// emitRem lowers `%`: native rem for integers, a - trunc(a/b)*b for
// floats (WASM has no float remainder instruction).
func (fg *funcGen) emitRem(width types.NumberWidth) {
	switch width {
	case types.WidthU32:
		fg.emitByte(opI32RemU)
	case types.WidthI64:
		fg.emitByte(0x81) // i64.rem_s
	case types.WidthF32, types.WidthF64:
		aTy, op := types.Number(width), [4]byte{opF64Div, opF64Trunc, opF64Mul, opF64Sub}
		if width == types.WidthF32 {
			op = [4]byte{opF32Div, opF32Trunc, opF32Mul, opF32Sub}
		}
		b := fg.newTemp(aTy)
		a := fg.newTemp(aTy)
		fg.emitByte(opLocalSet)
		fg.emitU32(b)
		fg.emitByte(opLocalSet)
		fg.emitU32(a)
		fg.emitByte(opLocalGet)
		fg.emitU32(a)
		fg.emitByte(opLocalGet)
		fg.emitU32(a)
		fg.emitByte(opLocalGet)
		fg.emitU32(b)
		fg.emitByte(op[0])
		fg.emitByte(op[1])
		fg.emitByte(opLocalGet)
		fg.emitU32(b)
		fg.emitByte(op[2])
		fg.emitByte(op[3])
	default:
		fg.emitByte(opI32RemS)
	}
}

func binaryOpSource(op ast.BinaryOp) string {
	switch op {
	case ast.OpAdd:
		return "+"
	case ast.OpSub:
		return "-"
	case ast.OpMul:
		return "*"
	case ast.OpDiv:
		return "/"
	case ast.OpMod:
		return "%"
	case ast.OpEq:
		return "=="
	default:
		return "?"
	}
}

func (fg *funcGen) lowerUnary(x *ast.UnaryExpr) {
	t := fg.g.ctx.ExprTypes[x.Operand]
	switch x.Op {
	case ast.OpNot:
		fg.lowerExpr(x.Operand)
		fg.emitByte(opI32Eqz)
	case ast.OpNeg:
		switch {
		case t.Kind == types.KindNumber && t.Width == types.WidthF32:
			fg.lowerExpr(x.Operand)
			fg.emitByte(opF32Neg)
		case t.Kind == types.KindNumber && t.Width == types.WidthF64:
			fg.lowerExpr(x.Operand)
			fg.emitByte(opF64Neg)
		case t.Kind == types.KindNumber && t.Width == types.WidthI64:
			fg.emitByte(opI64Const)
			fg.emitI64(0)
			fg.lowerExpr(x.Operand)
			fg.emitByte(opI64Sub)
		default:
			fg.emitByte(opI32Const)
			fg.emitI32(0)
			fg.lowerExpr(x.Operand)
			fg.emitByte(opI32Sub)
		}
	}
}

// ---------------------------------------------------------------------
// Calls, construction, member access
// ---------------------------------------------------------------------

func (fg *funcGen) lowerCall(x *ast.CallExpr) {
	switch callee := x.Callee.(type) {
	case *ast.Ident:
		if fg.lowerIntrinsicCall(callee.Name, x.Args) {
			return
		}
		if t, ok := fg.nameType(callee.Name); ok && t.Kind == types.KindFunction {
			fg.lowerClosureCall(func() { fg.lowerName(callee.Name) }, t, x.Args)
			return
		}
		// A bare method name inside a method body implicitly targets
		// `this`.
		if fg.selfClass != nil {
			if slot := indexOf(fg.selfClass.MethodSlots, callee.Name); slot >= 0 {
				fg.emitVirtualCallOnThis(fg.selfClass, slot, x.Args)
				return
			}
		}
		if idx, ok := fg.g.funcIdx[callee.Name]; ok {
			for _, a := range x.Args {
				fg.lowerExpr(a)
			}
			fg.emitByte(opCall)
			fg.emitU32(idx)
			return
		}
	case *ast.MemberExpr:
		fg.lowerMethodCall(callee, x.Args)
		return
	case *ast.SuperExpr:
		// super(args): direct call of the superclass constructor with the
		// current instance (spec.md §4.5.5).
		if fg.selfClass != nil && fg.selfClass.Super != nil {
			fg.emitByte(opLocalGet)
			fg.emitU32(0)
			for _, a := range x.Args {
				fg.lowerExpr(a)
			}
			fg.emitByte(opCall)
			fg.emitU32(fg.selfClass.Super.CtorFuncIdx)
		}
		return
	}
	// Arbitrary callee expression of function type: evaluate once, call
	// through the closure carrier.
	t := fg.g.ctx.ExprTypes[x.Callee]
	if t.Kind == types.KindFunction {
		fg.lowerExpr(x.Callee)
		tmp := fg.newTemp(types.Any)
		fg.emitByte(opLocalSet)
		fg.emitU32(tmp)
		fg.lowerClosureCall(func() { fg.emitByte(opLocalGet); fg.emitU32(tmp) }, t, x.Args)
		return
	}
	fg.emitBytes(opRefNull, heapTypeAny)
}

// lowerClosureCall invokes a function value held as a {fn, env} carrier
// struct: env is the callee's implicit first argument (spec.md §4.6.4).
// push must push the carrier value and be free of side effects (it runs
// twice).
func (fg *funcGen) lowerClosureCall(push func(), fnTy types.Type, args []ast.Expr) {
	fnTypeIdx := fg.g.envFnType(fnTy)
	carrier := fg.g.carrierFor(fnTypeIdx)
	push()
	fg.emitCastToStruct(carrier)
	fg.emitBytes(gcPrefix, gcStructGet)
	fg.emitU32(carrier)
	fg.emitU32(1)
	for _, a := range args {
		fg.lowerExpr(a)
	}
	push()
	fg.emitCastToStruct(carrier)
	fg.emitBytes(gcPrefix, gcStructGet)
	fg.emitU32(carrier)
	fg.emitU32(0)
	fg.emitByte(opCallRef)
	fg.emitU32(fnTypeIdx)
}

func (fg *funcGen) lowerMethodCall(callee *ast.MemberExpr, args []ast.Expr) {
	// super.method(args): statically dispatched to the superclass's
	// implementation, bypassing the vtable.
	if _, ok := callee.Object.(*ast.SuperExpr); ok {
		if fg.selfClass != nil && fg.selfClass.Super != nil {
			sup := fg.selfClass.Super
			if slot := indexOf(sup.MethodSlots, callee.Name); slot >= 0 {
				fg.emitByte(opLocalGet)
				fg.emitU32(0)
				for _, a := range args {
					fg.lowerExpr(a)
				}
				fg.emitByte(opCall)
				fg.emitU32(sup.slotFunc[slot])
				return
			}
		}
		fg.emitBytes(opRefNull, heapTypeAny)
		return
	}
	// Static method: ClassName.method(args).
	if obj, ok := callee.Object.(*ast.Ident); ok {
		if _, isClass := fg.g.classASTByName[obj.Name]; isClass {
			if idx, ok := fg.g.staticMethodFunc[obj.Name+"."+callee.Name]; ok {
				for _, a := range args {
					fg.lowerExpr(a)
				}
				fg.emitByte(opCall)
				fg.emitU32(idx)
				return
			}
		}
	}
	objTy := fg.g.ctx.ExprTypes[callee.Object]
	if ci := fg.g.classInfoOf(objTy); ci != nil {
		if slot := indexOf(ci.MethodSlots, callee.Name); slot >= 0 {
			fg.emitVirtualCall(ci, slot, callee.Object, args)
			return
		}
		// A function-typed field called through the instance.
		if _, ok := ci.fieldIndex[callee.Name]; ok {
			ft := fieldDeclType(ci, callee.Name)
			if ft.Kind == types.KindFunction {
				fg.lowerExpr(callee.Object)
				tmp := fg.newTemp(types.Any)
				fg.emitByte(opLocalSet)
				fg.emitU32(tmp)
				fg.lowerClosureCall(func() {
					fg.emitByte(opLocalGet)
					fg.emitU32(tmp)
					fg.emitFieldGet(ci, ci.fieldIndex[callee.Name])
				}, ft, args)
				return
			}
		}
	}
	if ii := fg.g.interfaceInfoOf(objTy); ii != nil {
		if slot := indexOf(ii.MethodSlots, callee.Name); slot >= 0 {
			fg.emitInterfaceCall(ii, slot, callee.Object, args)
			return
		}
	}
	fg.emitBytes(opRefNull, heapTypeAny)
}

func fieldDeclType(ci *ClassInfo, name string) types.Type {
	if i, ok := ci.fieldIndex[name]; ok {
		return ci.Fields[i].Type
	}
	return types.Any
}

// lowerNew allocates an instance, wires its vtable, and runs the
// constructor (spec.md §4.6.2): the allocation site — not the
// constructor chain — owns the vtable write, so the most-derived
// class's table always wins.
func (fg *funcGen) lowerNew(x *ast.NewExpr) {
	name, ok := simpleAnnotationName(x.Class)
	if !ok {
		fg.emitBytes(opRefNull, heapTypeAny)
		return
	}
	ci := fg.g.classByName[name]
	if ci == nil {
		fg.emitBytes(opRefNull, heapTypeAny)
		return
	}
	tmp := fg.newTemp(types.Any)
	fg.emitBytes(gcPrefix, gcStructNewDefault)
	fg.emitU32(ci.StructType)
	fg.emitByte(opLocalSet)
	fg.emitU32(tmp)

	fg.emitByte(opLocalGet)
	fg.emitU32(tmp)
	fg.emitCastToClass(ci)
	fg.emitByte(opGlobalGet)
	fg.emitU32(ci.VtableGlobal)
	fg.emitCastToStruct(ci.VtableStructType)
	fg.emitBytes(gcPrefix, gcStructSet)
	fg.emitU32(ci.StructType)
	fg.emitU32(0)

	fg.emitByte(opLocalGet)
	fg.emitU32(tmp)
	for _, a := range x.Args {
		fg.lowerExpr(a)
	}
	fg.emitByte(opCall)
	fg.emitU32(ci.CtorFuncIdx)

	fg.emitByte(opLocalGet)
	fg.emitU32(tmp)
}

func (fg *funcGen) lowerMember(x *ast.MemberExpr) {
	if obj, ok := x.Object.(*ast.Ident); ok {
		if ord, isEnum := fg.g.enumOrdinal(obj.Name, x.Name); isEnum {
			fg.emitByte(opI32Const)
			fg.emitI32(ord)
			return
		}
	}
	objTy := fg.g.ctx.ExprTypes[x.Object]
	switch objTy.Kind {
	case types.KindArray:
		if x.Name == "length" {
			fg.lowerExpr(x.Object)
			fg.emitCastToArrayType(fg.g.arrayTypeFor(*objTy.Elem))
			fg.emitBytes(gcPrefix, gcArrayLen)
			return
		}
	case types.KindString:
		if x.Name == "length" {
			fg.lowerExpr(x.Object)
			fg.emitCastToStruct(fg.g.stringStructType)
			fg.emitBytes(gcPrefix, gcStructGet)
			fg.emitU32(fg.g.stringStructType)
			fg.emitU32(1)
			return
		}
	case types.KindClass:
		if ci := fg.g.classInfoOf(objTy); ci != nil {
			if idx, ok := ci.fieldIndex[x.Name]; ok {
				fg.lowerExpr(x.Object)
				fg.emitFieldGet(ci, idx)
				return
			}
			if slot := indexOf(ci.MethodSlots, "get:"+x.Name); slot >= 0 {
				fg.emitVirtualCall(ci, slot, x.Object, nil)
				return
			}
		}
	case types.KindRecord:
		structType := fg.g.recordTypeFor(objTy.Fields)
		for i, f := range objTy.Fields {
			if f.Name == x.Name {
				fg.lowerExpr(x.Object)
				fg.emitCastToStruct(structType)
				fg.emitBytes(gcPrefix, gcStructGet)
				fg.emitU32(structType)
				fg.emitU32(uint32(i))
				return
			}
		}
	}
	fg.emitBytes(opRefNull, heapTypeAny)
}

func (fg *funcGen) lowerIndex(x *ast.IndexExpr) {
	objTy := fg.g.ctx.ExprTypes[x.Object]
	if r, isRange := x.Index.(*ast.RangeExpr); isRange && objTy.Kind == types.KindArray {
		fg.lowerSlice(x.Object, r, *objTy.Elem)
		return
	}
	switch objTy.Kind {
	case types.KindArray:
		arrType := fg.g.arrayTypeFor(*objTy.Elem)
		fg.lowerExpr(x.Object)
		fg.emitCastToArrayType(arrType)
		fg.lowerExpr(x.Index)
		fg.emitBytes(gcPrefix, gcArrayGet)
		fg.emitU32(arrType)
	case types.KindString:
		fg.lowerExpr(x.Object)
		fg.emitCastToStruct(fg.g.stringStructType)
		fg.emitBytes(gcPrefix, gcStructGet)
		fg.emitU32(fg.g.stringStructType)
		fg.emitU32(0)
		fg.lowerExpr(x.Index)
		fg.emitBytes(gcPrefix, gcArrayGetU)
		fg.emitU32(fg.g.stringByteArrayType)
	case types.KindClass:
		if ci := fg.g.classInfoOf(objTy); ci != nil {
			if slot := indexOf(ci.MethodSlots, "operator[]"); slot >= 0 {
				fg.emitVirtualCall(ci, slot, x.Object, []ast.Expr{x.Index})
				return
			}
		}
		fg.emitBytes(opRefNull, heapTypeAny)
	default:
		fg.emitBytes(opRefNull, heapTypeAny)
	}
}

// lowerSlice compiles arr[a..b] to the bounds-checked slice helper
// (spec.md §4.6.7); the absent end of a FromRange defaults to the
// array's length, the absent start of a ToRange to zero.
func (fg *funcGen) lowerSlice(obj ast.Expr, r *ast.RangeExpr, elem types.Type) {
	arrType := fg.g.arrayTypeFor(elem)
	tmp := fg.newTemp(types.Any)
	fg.lowerExpr(obj)
	fg.emitByte(opLocalSet)
	fg.emitU32(tmp)

	fg.emitByte(opLocalGet)
	fg.emitU32(tmp)
	if r.Start != nil {
		fg.lowerExpr(r.Start)
	} else {
		fg.emitByte(opI32Const)
		fg.emitI32(0)
	}
	if r.End != nil {
		fg.lowerExpr(r.End)
	} else {
		fg.emitByte(opLocalGet)
		fg.emitU32(tmp)
		fg.emitCastToArrayType(arrType)
		fg.emitBytes(gcPrefix, gcArrayLen)
	}
	fg.emitByte(opCall)
	fg.emitU32(fg.g.sliceHelper(elem))
}

// ---------------------------------------------------------------------
// Literals of composite shape
// ---------------------------------------------------------------------

func (fg *funcGen) lowerRecordLit(x *ast.RecordLit) {
	t := fg.g.ctx.ExprTypes[x]
	if t.Kind != types.KindRecord {
		fg.emitBytes(opRefNull, heapTypeAny)
		return
	}
	structType := fg.g.recordTypeFor(t.Fields)
	// Push values in the record type's sorted field order, not source
	// order, to match the struct layout.
	bySource := make(map[string]ast.RecordField, len(x.Fields))
	for _, f := range x.Fields {
		bySource[f.Name] = f
	}
	for _, f := range t.Fields {
		src := bySource[f.Name]
		if src.Value != nil {
			fg.lowerExpr(src.Value)
		} else {
			fg.lowerName(f.Name)
		}
	}
	fg.emitBytes(gcPrefix, gcStructNew)
	fg.emitU32(structType)
}

func (fg *funcGen) lowerBoxedTupleLit(x *ast.TupleLit) {
	t := fg.g.ctx.ExprTypes[x]
	if t.Kind != types.KindTuple && t.Kind != types.KindUnboxedTuple {
		fg.emitBytes(opRefNull, heapTypeAny)
		return
	}
	structType := fg.g.tupleTypeFor(t.Elements)
	for i, el := range x.Elements {
		if _, wild := el.(*ast.WildcardExpr); wild && i < len(t.Elements) {
			fg.emitZeroValue(t.Elements[i])
			continue
		}
		fg.lowerExpr(el)
	}
	fg.emitBytes(gcPrefix, gcStructNew)
	fg.emitU32(structType)
}

// lowerUnboxedTupleLit pushes the tuple's elements as adjacent stack
// values for a multi-value return (spec.md §4.6.6); `_` positions take
// the expected element type's zero value, including ref.null for
// reference elements.
func (fg *funcGen) lowerUnboxedTupleLit(x *ast.TupleLit, expected types.Type) {
	for i, el := range x.Elements {
		if _, wild := el.(*ast.WildcardExpr); wild {
			et := types.Any
			if i < len(expected.Elements) {
				et = expected.Elements[i]
			}
			fg.emitZeroValue(et)
			continue
		}
		fg.lowerExpr(el)
	}
}

func (fg *funcGen) lowerArrayLit(x *ast.ArrayLit) {
	t := fg.g.ctx.ExprTypes[x]
	elem := types.Any
	if t.Kind == types.KindArray {
		elem = *t.Elem
	}
	arrType := fg.g.arrayTypeFor(elem)
	for _, el := range x.Elements {
		fg.lowerExpr(el)
	}
	fg.emitBytes(gcPrefix, gcArrayNewFixed)
	fg.emitU32(arrType)
	fg.emitU32(uint32(len(x.Elements)))
}

func (fg *funcGen) lowerRange(x *ast.RangeExpr) {
	structType := fg.g.rangeTypeFor(types.RangeKind(x.Kind))
	if x.Start != nil {
		fg.lowerExpr(x.Start)
	}
	if x.End != nil {
		fg.lowerExpr(x.End)
	}
	fg.emitBytes(gcPrefix, gcStructNew)
	fg.emitU32(structType)
}

// ---------------------------------------------------------------------
// Closures
// ---------------------------------------------------------------------

// lowerFuncExpr performs closure conversion (spec.md §4.6.4): the
// captured names become fields of a generated environment struct, the
// body compiles as a separate function taking the environment as its
// implicit first parameter, and the expression's value is a {fn, env}
// carrier struct.
func (fg *funcGen) lowerFuncExpr(x *ast.FuncExpr) {
	g := fg.g
	fnTy := g.ctx.ExprTypes[x]
	retTy := types.Void
	if fnTy.Kind == types.KindFunction {
		retTy = *fnTy.Return
	}

	var capNames []string
	var capTypes []types.Type
	for _, name := range g.ctx.FuncCaptures[x] {
		// Only names bound in this function (or its own captures) need a
		// slot; anything else resolves as a module global or top-level
		// function inside the body.
		if _, local := fg.lookup(name); !local && indexOf(envNames(fg.env), name) < 0 {
			continue
		}
		t, _ := fg.nameType(name)
		capNames = append(capNames, name)
		capTypes = append(capTypes, t)
	}

	envStruct := g.envStructFor(capTypes)
	fnTypeIdx := g.envFnType(fnTy)
	funcIdx := g.em.AddFunction(fnTypeIdx)
	g.em.SetFunctionName(funcIdx, "<closure>")

	job := bodyJob{
		funcIndex: funcIdx, params: x.Params, ret: retTy,
		name: "<closure>",
		env:  &closureEnv{structType: envStruct, names: capNames, types: capTypes},
	}
	if b, ok := x.Body.(*ast.Block); ok {
		job.body = b
	} else if e, ok := x.Body.(ast.Expr); ok {
		job.bodyExpr = e
	}
	g.pendingBodies = append(g.pendingBodies, job)

	// The function reference is routed through a funcref global rather
	// than an inline ref.func, which keeps the function "declared" for
	// validation without a declarative element segment.
	fnGlobal := g.em.AddGlobal(wasm.ValueTypeFuncRef, false, refFuncInit(funcIdx))
	carrier := g.carrierFor(fnTypeIdx)

	fg.emitByte(opGlobalGet)
	fg.emitU32(fnGlobal)
	fg.emitBytes(gcPrefix, gcRefCastNull)
	fg.emitBytes(encodeHeapType(fnTypeIdx)...)
	for _, name := range capNames {
		if name == "this" {
			fg.lowerThis()
		} else {
			fg.lowerName(name)
		}
	}
	fg.emitBytes(gcPrefix, gcStructNew)
	fg.emitU32(envStruct)
	fg.emitBytes(gcPrefix, gcStructNew)
	fg.emitU32(carrier)
}

func envNames(env *closureEnv) []string {
	if env == nil {
		return nil
	}
	return env.names
}

// ---------------------------------------------------------------------
// Conditionals, casts, tests
// ---------------------------------------------------------------------

func (fg *funcGen) lowerIfExpr(x *ast.IfExpr) {
	resTy := fg.g.ctx.ExprTypes[x]
	fg.lowerExpr(x.Cond)
	fg.openBlock(opIf, fg.blockTypeOf(resTy))
	fg.lowerExpr(x.Then)
	if resTy.Kind == types.KindVoid && !fg.exprVoid(x.Then) {
		fg.emitByte(opDrop)
	}
	if x.Else != nil {
		fg.emitByte(opElse)
		fg.lowerExpr(x.Else)
		if resTy.Kind == types.KindVoid && !fg.exprVoid(x.Else) {
			fg.emitByte(opDrop)
		}
	}
	fg.closeBlock()
}

func (fg *funcGen) lowerCast(x *ast.CastExpr) {
	from := fg.g.ctx.ExprTypes[x.Value]
	to := fg.g.ctx.ExprTypes[x]
	fg.lowerExpr(x.Value)

	// Distinct-type casts are representation no-ops (spec.md §3.6
	// invariant 6: the boundary is purely nominal).
	for from.Kind == types.KindDistinct {
		from = *from.Underlying
	}
	for to.Kind == types.KindDistinct {
		to = *to.Underlying
	}

	if from.Kind == types.KindNumber && to.Kind == types.KindNumber {
		fg.emitNumericConvert(from.Width, to.Width)
		return
	}
	if to.Kind == types.KindClass {
		if ci := fg.g.classInfoOf(to); ci != nil {
			if from.Kind == types.KindInterface {
				if ii := fg.g.interfaceInfoOf(from); ii != nil {
					fg.emitCastToInterface(ii)
					fg.emitBytes(gcPrefix, gcStructGet)
					fg.emitU32(ii.CarrierStructType)
					fg.emitU32(0)
				}
			}
			fg.emitCastToClass(ci)
		}
		return
	}
	if from.Kind == types.KindClass && to.Kind == types.KindInterface {
		ci := fg.g.classInfoOf(from)
		ii := fg.g.interfaceInfoOf(to)
		if ci != nil && ii != nil {
			fg.emitInterfaceUpcast(ci, ii)
		}
		return
	}
}

func (fg *funcGen) emitNumericConvert(from, to types.NumberWidth) {
	if from == to || (from.IsInt() && to.IsInt() && from != types.WidthI64 && to != types.WidthI64) {
		return // i32<->u32 reinterpretation is free
	}
	switch {
	case to == types.WidthI64 && from.IsInt():
		if from == types.WidthU32 {
			fg.emitByte(opI64ExtendI32U)
		} else {
			fg.emitByte(opI64ExtendI32S)
		}
	case from == types.WidthI64 && to.IsInt():
		fg.emitByte(opI32WrapI64)
	case to == types.WidthF64 && from == types.WidthF32:
		fg.emitByte(opF64PromoteF32)
	case to == types.WidthF32 && from == types.WidthF64:
		fg.emitByte(opF32DemoteF64)
	case to == types.WidthF64 && from.IsInt():
		if from == types.WidthU32 {
			fg.emitByte(opF64ConvertI32U)
		} else {
			fg.emitByte(opF64ConvertI32S)
		}
	case to == types.WidthF32 && from.IsInt():
		if from == types.WidthU32 {
			fg.emitByte(opF32ConvertI32U)
		} else {
			fg.emitByte(opF32ConvertI32S)
		}
	case to.IsInt() && from == types.WidthF64:
		fg.emitByte(opI32TruncF64S)
	case to.IsInt() && from == types.WidthF32:
		fg.emitByte(opI32TruncF32S)
	}
}

func (fg *funcGen) lowerIs(x *ast.IsExpr) {
	target := typeFromAnnotationBestEffort(x.Type, fg.g.classByName, fg.g.interfaceByName)
	if ci := fg.g.classInfoOf(target); ci != nil {
		fg.lowerExpr(x.Value)
		fg.emitBytes(gcPrefix, gcRefTest)
		fg.emitBytes(encodeHeapType(ci.StructType)...)
		return
	}
	if ii := fg.g.interfaceInfoOf(target); ii != nil {
		fg.lowerExpr(x.Value)
		fg.emitBytes(gcPrefix, gcRefTest)
		fg.emitBytes(encodeHeapType(ii.CarrierStructType)...)
		return
	}
	// Statically decidable for non-reference targets.
	from := fg.g.ctx.ExprTypes[x.Value]
	fg.lowerExpr(x.Value)
	if !fg.exprVoid(x.Value) {
		fg.emitByte(opDrop)
	}
	fg.emitByte(opI32Const)
	if types.Equal(from, target) {
		fg.emitI32(1)
	} else {
		fg.emitI32(0)
	}
}

// ---------------------------------------------------------------------
// Template literals
// ---------------------------------------------------------------------

func (fg *funcGen) lowerTemplate(x *ast.TemplateLit) {
	fg.emitStringLit(x.Parts[0])
	for i, sub := range x.Exprs {
		fg.lowerExpr(sub)
		fg.emitToString(fg.g.ctx.ExprTypes[sub])
		fg.emitByte(opCall)
		fg.emitU32(fg.g.stringConcatHelper())
		if i+1 < len(x.Parts) && x.Parts[i+1] != "" {
			fg.emitStringLit(x.Parts[i+1])
			fg.emitByte(opCall)
			fg.emitU32(fg.g.stringConcatHelper())
		}
	}
}

// emitToString converts the just-pushed value of type t to a string
// reference for template interpolation.
func (fg *funcGen) emitToString(t types.Type) {
	switch t.Kind {
	case types.KindString:
		return
	case types.KindBoolean:
		fg.openBlock(opIf, byte(wasm.ValueTypeAnyRef))
		fg.emitStringLit("true")
		fg.emitByte(opElse)
		fg.emitStringLit("false")
		fg.closeBlock()
	case types.KindNumber:
		switch t.Width {
		case types.WidthI64:
			fg.emitByte(opI32WrapI64)
		case types.WidthF32:
			fg.emitByte(opI32TruncF32S)
		case types.WidthF64:
			fg.emitByte(opI32TruncF64S)
		}
		fg.emitByte(opCall)
		fg.emitU32(fg.g.itoaHelper())
	default:
		fg.emitByte(opDrop)
		fg.emitStringLit("[object]")
	}
}

// emitStringLit materializes a literal as the runtime string struct:
// a packed byte array plus its length (spec.md §4.6.7).
func (fg *funcGen) emitStringLit(s string) {
	for i := 0; i < len(s); i++ {
		fg.emitByte(opI32Const)
		fg.emitI32(int32(s[i]))
	}
	fg.emitBytes(gcPrefix, gcArrayNewFixed)
	fg.emitU32(fg.g.stringByteArrayType)
	fg.emitU32(uint32(len(s)))
	fg.emitByte(opI32Const)
	fg.emitI32(int32(len(s)))
	fg.emitBytes(gcPrefix, gcStructNew)
	fg.emitU32(fg.g.stringStructType)
}

// ---------------------------------------------------------------------
// Intrinsics (spec.md §4.5.8) — the checker restricts these to stdlib
// modules; by the time codegen sees one, it is known-legitimate.
// ---------------------------------------------------------------------

func (fg *funcGen) lowerIntrinsicCall(name string, args []ast.Expr) bool {
	g := fg.g
	minArgs := map[string]int{
		"__array_new": 1, "__array_get": 2, "__array_set": 3, "__array_len": 1, "hash": 1,
	}
	if n, ok := minArgs[name]; ok && len(args) < n {
		return false
	}
	switch name {
	case "__array_new", "__array_get", "__array_set", "__array_len", "unreachable", "hash":
	default:
		return false
	}
	anyArr := g.arrayTypeFor(types.Any)
	switch name {
	case "__array_new":
		fg.lowerExpr(args[0])
		fg.emitBytes(gcPrefix, gcArrayNewDefault)
		fg.emitU32(anyArr)
	case "__array_get":
		fg.lowerExpr(args[0])
		fg.emitCastToArrayType(anyArr)
		fg.lowerExpr(args[1])
		fg.emitBytes(gcPrefix, gcArrayGet)
		fg.emitU32(anyArr)
	case "__array_set":
		fg.lowerExpr(args[0])
		fg.emitCastToArrayType(anyArr)
		fg.lowerExpr(args[1])
		fg.lowerExpr(args[2])
		fg.emitBytes(gcPrefix, gcArraySet)
		fg.emitU32(anyArr)
	case "__array_len":
		fg.lowerExpr(args[0])
		fg.emitCastToArrayType(anyArr)
		fg.emitBytes(gcPrefix, gcArrayLen)
	case "unreachable":
		fg.emitByte(opUnreachable)
	case "hash":
		t := fg.g.ctx.ExprTypes[args[0]]
		fg.lowerExpr(args[0])
		if t.Kind == types.KindString {
			fg.emitByte(opCall)
			fg.emitU32(g.stringHashHelper())
		} else if t.Kind != types.KindNumber || t.Width != types.WidthI32 {
			fg.emitByte(opDrop)
			fg.emitByte(opI32Const)
			fg.emitI32(0)
		}
	default:
		return false
	}
	return true
}
