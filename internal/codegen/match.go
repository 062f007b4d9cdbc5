package codegen

import (
	"strconv"

	"github.com/wgc-lang/wgc/internal/ast"
	"github.com/wgc-lang/wgc/internal/types"
)

// lowerMatch compiles a match expression to a decision tree (spec.md
// §4.6.5): the scrutinee is evaluated once into a temporary, then each
// arm runs a test that either falls through to the next arm or binds
// the pattern's names, evaluates its guard, and branches out with the
// arm body's value. A match with no surviving arm traps (spec.md §4.5.6:
// exhaustiveness is not required; the fall-through is a runtime trap).
func (fg *funcGen) lowerMatch(x *ast.MatchExpr) {
	scrutTy := fg.g.ctx.ExprTypes[x.Scrutinee]
	resTy := fg.g.ctx.ExprTypes[x]

	fg.lowerExpr(x.Scrutinee)
	scrut := fg.newTemp(scrutTy)
	fg.emitByte(opLocalSet)
	fg.emitU32(scrut)

	outer := fg.openBlock(opBlock, fg.blockTypeOf(resTy))
	for i := range x.Arms {
		arm := &x.Arms[i]
		if fg.g.ctx.MatchArmUnreachable[arm] {
			continue
		}
		armBlock := fg.openBlock(opBlock, blockTypeVoid)
		fg.emitPatternTest(arm.Pattern, scrut, scrutTy)
		fg.emitByte(opI32Eqz)
		fg.branchTo(opBrIf, armBlock)

		fg.pushScope()
		fg.emitPatternBind(arm.Pattern, scrut, scrutTy)
		if arm.Guard != nil {
			fg.lowerExpr(arm.Guard)
			fg.emitByte(opI32Eqz)
			fg.branchTo(opBrIf, armBlock)
		}
		fg.lowerExpr(arm.Body)
		if resTy.Kind == types.KindVoid && !fg.exprVoid(arm.Body) {
			fg.emitByte(opDrop)
		}
		fg.branchTo(opBr, outer)
		fg.popScope()
		fg.closeBlock()
	}
	fg.emitByte(opUnreachable)
	fg.closeBlock()
}

// emitPatternTest pushes an i32 truth value for "the value in local
// scrut matches p". Composite patterns short-circuit through typed if
// blocks so sub-pattern extraction never runs against a value that
// already failed the outer test.
func (fg *funcGen) emitPatternTest(p ast.Pattern, scrut uint32, scrutTy types.Type) {
	switch pat := p.(type) {
	case *ast.WildcardPattern, *ast.IdentPattern:
		fg.emitByte(opI32Const)
		fg.emitI32(1)
	case *ast.LiteralPattern:
		fg.emitLiteralTest(pat.Value, scrut, scrutTy)
	case *ast.AsPattern:
		fg.emitPatternTest(pat.Inner, scrut, scrutTy)
	case *ast.OrPattern:
		fg.emitPatternTest(pat.Left, scrut, scrutTy)
		fg.openBlock(opIf, blockTypeI32)
		fg.emitByte(opI32Const)
		fg.emitI32(1)
		fg.emitByte(opElse)
		fg.emitPatternTest(pat.Right, scrut, scrutTy)
		fg.closeBlock()
	case *ast.AndPattern:
		fg.emitPatternTest(pat.Left, scrut, scrutTy)
		fg.openBlock(opIf, blockTypeI32)
		fg.emitPatternTest(pat.Right, scrut, scrutTy)
		fg.emitByte(opElse)
		fg.emitByte(opI32Const)
		fg.emitI32(0)
		fg.closeBlock()
	case *ast.ClassShapePattern:
		fg.emitClassShapeTest(pat, scrut)
	case *ast.TuplePattern:
		fg.emitTupleTest(pat, scrut, scrutTy)
	case *ast.RecordPattern:
		fg.emitRecordTest(pat, scrut, scrutTy)
	case *ast.RangePattern:
		fg.emitRangeTest(pat, scrut)
	default:
		fg.emitByte(opI32Const)
		fg.emitI32(0)
	}
}

func (fg *funcGen) emitLiteralTest(lit ast.Expr, scrut uint32, scrutTy types.Type) {
	switch v := lit.(type) {
	case *ast.NumberLit:
		width := types.WidthI32
		if scrutTy.Kind == types.KindNumber {
			width = scrutTy.Width
		}
		fg.emitByte(opLocalGet)
		fg.emitU32(scrut)
		switch width {
		case types.WidthI64:
			n, _ := strconv.ParseInt(v.Raw, 0, 64)
			fg.emitByte(opI64Const)
			fg.emitI64(n)
			fg.emitByte(opI64Eq)
		case types.WidthF32:
			f, _ := strconv.ParseFloat(v.Raw, 32)
			fg.emitByte(opF32Const)
			fg.emitF32(float32(f))
			fg.emitByte(opF32Eq)
		case types.WidthF64:
			f, _ := strconv.ParseFloat(v.Raw, 64)
			fg.emitByte(opF64Const)
			fg.emitF64(f)
			fg.emitByte(opF64Eq)
		default:
			n, _ := strconv.ParseInt(v.Raw, 0, 64)
			fg.emitByte(opI32Const)
			fg.emitI32(int32(n))
			fg.emitByte(opI32Eq)
		}
	case *ast.BoolLit:
		fg.emitByte(opLocalGet)
		fg.emitU32(scrut)
		fg.emitByte(opI32Const)
		if v.Value {
			fg.emitI32(1)
		} else {
			fg.emitI32(0)
		}
		fg.emitByte(opI32Eq)
	case *ast.NullLit:
		fg.emitByte(opLocalGet)
		fg.emitU32(scrut)
		fg.emitByte(opRefIsNull)
	case *ast.StringLit:
		fg.emitByte(opLocalGet)
		fg.emitU32(scrut)
		fg.emitStringLit(v.Value)
		fg.emitByte(opCall)
		fg.emitU32(fg.g.stringEqHelper())
	case *ast.MemberExpr:
		// Qualified literal (enum member): the scrutinee is the member's
		// ordinal i32 (spec.md §8 scenario 6).
		if obj, ok := v.Object.(*ast.Ident); ok {
			if ord, isEnum := fg.g.enumOrdinal(obj.Name, v.Name); isEnum {
				fg.emitByte(opLocalGet)
				fg.emitU32(scrut)
				fg.emitByte(opI32Const)
				fg.emitI32(ord)
				fg.emitByte(opI32Eq)
				return
			}
		}
		fg.emitByte(opI32Const)
		fg.emitI32(0)
	default:
		fg.emitByte(opI32Const)
		fg.emitI32(0)
	}
}

func (fg *funcGen) emitClassShapeTest(pat *ast.ClassShapePattern, scrut uint32) {
	ci := fg.g.classByName[pat.ClassName]
	if ci == nil {
		fg.emitByte(opI32Const)
		fg.emitI32(0)
		return
	}
	fg.emitByte(opLocalGet)
	fg.emitU32(scrut)
	fg.emitBytes(gcPrefix, gcRefTest)
	fg.emitBytes(encodeHeapType(ci.StructType)...)

	sub := fieldsWithSubpatterns(pat.Fields)
	if len(sub) == 0 {
		return
	}
	fg.openBlock(opIf, blockTypeI32)
	for i, f := range sub {
		idx := ci.fieldIndex[f.Name]
		ft := ci.Fields[idx].Type
		tmp := fg.newTemp(ft)
		fg.emitByte(opLocalGet)
		fg.emitU32(scrut)
		fg.emitFieldGet(ci, idx)
		fg.emitByte(opLocalSet)
		fg.emitU32(tmp)
		fg.emitPatternTest(f.Pattern, tmp, ft)
		if i > 0 {
			fg.emitByte(opI32And)
		}
	}
	fg.emitByte(opElse)
	fg.emitByte(opI32Const)
	fg.emitI32(0)
	fg.closeBlock()
}

func fieldsWithSubpatterns(fields []ast.RecordPatternField) []ast.RecordPatternField {
	var out []ast.RecordPatternField
	for _, f := range fields {
		if f.Pattern != nil {
			out = append(out, f)
		}
	}
	return out
}

func (fg *funcGen) emitTupleTest(pat *ast.TuplePattern, scrut uint32, scrutTy types.Type) {
	if scrutTy.Kind != types.KindTuple {
		fg.emitByte(opI32Const)
		fg.emitI32(1)
		return
	}
	structType := fg.g.tupleTypeFor(scrutTy.Elements)
	first := true
	for i, el := range pat.Elements {
		if isBindOnly(el) || i >= len(scrutTy.Elements) {
			continue
		}
		et := scrutTy.Elements[i]
		tmp := fg.newTemp(et)
		fg.emitByte(opLocalGet)
		fg.emitU32(scrut)
		fg.emitCastToStruct(structType)
		fg.emitBytes(gcPrefix, gcStructGet)
		fg.emitU32(structType)
		fg.emitU32(uint32(i))
		fg.emitByte(opLocalSet)
		fg.emitU32(tmp)
		fg.emitPatternTest(el, tmp, et)
		if !first {
			fg.emitByte(opI32And)
		}
		first = false
	}
	if first {
		fg.emitByte(opI32Const)
		fg.emitI32(1)
	}
}

func (fg *funcGen) emitRecordTest(pat *ast.RecordPattern, scrut uint32, scrutTy types.Type) {
	if scrutTy.Kind != types.KindRecord {
		fg.emitByte(opI32Const)
		fg.emitI32(1)
		return
	}
	structType := fg.g.recordTypeFor(scrutTy.Fields)
	first := true
	for _, f := range fieldsWithSubpatterns(pat.Fields) {
		fi := recordFieldIndex(scrutTy.Fields, f.Name)
		if fi < 0 {
			continue
		}
		ft := scrutTy.Fields[fi].Type
		tmp := fg.newTemp(ft)
		fg.emitByte(opLocalGet)
		fg.emitU32(scrut)
		fg.emitCastToStruct(structType)
		fg.emitBytes(gcPrefix, gcStructGet)
		fg.emitU32(structType)
		fg.emitU32(uint32(fi))
		fg.emitByte(opLocalSet)
		fg.emitU32(tmp)
		fg.emitPatternTest(f.Pattern, tmp, ft)
		if !first {
			fg.emitByte(opI32And)
		}
		first = false
	}
	if first {
		fg.emitByte(opI32Const)
		fg.emitI32(1)
	}
}

func recordFieldIndex(fields []types.RecordField, name string) int {
	for i, f := range fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// emitRangeTest matches half-open ranges, consistent with slicing:
// `a..b` admits a <= v < b, `a..` admits a <= v, `..b` admits v < b,
// and `..` admits everything.
func (fg *funcGen) emitRangeTest(pat *ast.RangePattern, scrut uint32) {
	kind := types.RangeKind(pat.Kind)
	if kind == types.RangeFull {
		fg.emitByte(opI32Const)
		fg.emitI32(1)
		return
	}
	if pat.Start != nil {
		fg.emitByte(opLocalGet)
		fg.emitU32(scrut)
		fg.lowerExpr(pat.Start)
		fg.emitByte(opI32GeS)
	}
	if pat.End != nil {
		fg.emitByte(opLocalGet)
		fg.emitU32(scrut)
		fg.lowerExpr(pat.End)
		fg.emitByte(opI32LtS)
	}
	if pat.Start != nil && pat.End != nil {
		fg.emitByte(opI32And)
	}
}

func isBindOnly(p ast.Pattern) bool {
	switch p.(type) {
	case *ast.IdentPattern, *ast.WildcardPattern:
		return true
	default:
		return false
	}
}

// emitPatternBind declares and fills a local for every name the pattern
// introduces, reading out of the already-matched scrutinee. An OR
// pattern binds through its left side; the checker has verified both
// sides introduce the identical name set (spec.md §4.5.6).
func (fg *funcGen) emitPatternBind(p ast.Pattern, scrut uint32, scrutTy types.Type) {
	switch pat := p.(type) {
	case *ast.IdentPattern:
		idx := fg.declareLocal(pat.Name, scrutTy)
		fg.emitByte(opLocalGet)
		fg.emitU32(scrut)
		fg.emitByte(opLocalSet)
		fg.emitU32(idx)
	case *ast.AsPattern:
		fg.emitPatternBind(pat.Inner, scrut, scrutTy)
		idx := fg.declareLocal(pat.Name, scrutTy)
		fg.emitByte(opLocalGet)
		fg.emitU32(scrut)
		fg.emitByte(opLocalSet)
		fg.emitU32(idx)
	case *ast.OrPattern:
		fg.emitPatternBind(pat.Left, scrut, scrutTy)
	case *ast.AndPattern:
		fg.emitPatternBind(pat.Left, scrut, scrutTy)
		fg.emitPatternBind(pat.Right, scrut, scrutTy)
	case *ast.ClassShapePattern:
		ci := fg.g.classByName[pat.ClassName]
		if ci == nil {
			return
		}
		for _, f := range pat.Fields {
			idx, ok := ci.fieldIndex[f.Name]
			if !ok {
				continue
			}
			ft := ci.Fields[idx].Type
			tmp := fg.newTemp(ft)
			fg.emitByte(opLocalGet)
			fg.emitU32(scrut)
			fg.emitFieldGet(ci, idx)
			fg.emitByte(opLocalSet)
			fg.emitU32(tmp)
			if f.Pattern != nil {
				fg.emitPatternBind(f.Pattern, tmp, ft)
			} else {
				bind := fg.declareLocal(f.Name, ft)
				fg.emitByte(opLocalGet)
				fg.emitU32(tmp)
				fg.emitByte(opLocalSet)
				fg.emitU32(bind)
			}
		}
	case *ast.TuplePattern:
		if scrutTy.Kind != types.KindTuple {
			return
		}
		structType := fg.g.tupleTypeFor(scrutTy.Elements)
		for i, el := range pat.Elements {
			if i >= len(scrutTy.Elements) {
				break
			}
			et := scrutTy.Elements[i]
			tmp := fg.newTemp(et)
			fg.emitByte(opLocalGet)
			fg.emitU32(scrut)
			fg.emitCastToStruct(structType)
			fg.emitBytes(gcPrefix, gcStructGet)
			fg.emitU32(structType)
			fg.emitU32(uint32(i))
			fg.emitByte(opLocalSet)
			fg.emitU32(tmp)
			fg.emitPatternBind(el, tmp, et)
		}
	case *ast.RecordPattern:
		if scrutTy.Kind != types.KindRecord {
			return
		}
		structType := fg.g.recordTypeFor(scrutTy.Fields)
		for _, f := range pat.Fields {
			fi := recordFieldIndex(scrutTy.Fields, f.Name)
			if fi < 0 {
				continue
			}
			ft := scrutTy.Fields[fi].Type
			tmp := fg.newTemp(ft)
			fg.emitByte(opLocalGet)
			fg.emitU32(scrut)
			fg.emitCastToStruct(structType)
			fg.emitBytes(gcPrefix, gcStructGet)
			fg.emitU32(structType)
			fg.emitU32(uint32(fi))
			fg.emitByte(opLocalSet)
			fg.emitU32(tmp)
			if f.Pattern != nil {
				fg.emitPatternBind(f.Pattern, tmp, ft)
			} else {
				bind := fg.declareLocal(f.Name, ft)
				fg.emitByte(opLocalGet)
				fg.emitU32(tmp)
				fg.emitByte(opLocalSet)
				fg.emitU32(bind)
			}
		}
	}
}
