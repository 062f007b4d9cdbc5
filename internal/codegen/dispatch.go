package codegen

import (
	"github.com/wgc-lang/wgc/internal/ast"
	"github.com/wgc-lang/wgc/internal/types"
	"github.com/wgc-lang/wgc/internal/wasm/binary"
)

// Every class/interface-typed value crosses a function boundary (params,
// results, locals) as plain anyref — valueTypeOf coarsens every class and
// interface Kind to wasm.ValueTypeAnyRef so that one method signature
// works uniformly across every class implementing the same interface
// slot (spec.md §4.6.3). Struct layout itself stays precise: a field
// whose declared type is a class/interface keeps its concrete (ref null
// $T) storage type (storageTypeOf/refTypeOf), so reading a field already
// yields a concretely-typed reference. The two only meet at a struct
// operation: emitCastToClass/emitCastToInterface narrow an anyref value
// back down immediately before struct.get/struct.set/a vtable read.
func encodeHeapType(idx uint32) []byte { return binary.EncodeInt64(int64(idx)) }

func (fg *funcGen) emitCastToClass(ci *ClassInfo) {
	fg.emitBytes(gcPrefix, gcRefCast)
	fg.emitBytes(encodeHeapType(ci.StructType)...)
}

func (fg *funcGen) emitCastToInterface(ii *InterfaceInfo) {
	fg.emitBytes(gcPrefix, gcRefCast)
	fg.emitBytes(encodeHeapType(ii.CarrierStructType)...)
}

// emitFieldGet assumes an anyref receiver is on top of the stack and
// leaves the fieldIdx'th field's value (struct index fieldIdx+1, since
// field 0 of every instance struct is the vtable reference).
func (fg *funcGen) emitFieldGet(ci *ClassInfo, fieldIdx int) {
	fg.emitCastToClass(ci)
	fg.emitBytes(gcPrefix, gcStructGet)
	fg.emitU32(ci.StructType)
	fg.emitU32(uint32(fieldIdx + 1))
}

// emitFieldSet assumes an anyref receiver is on top of the stack;
// emitValue is called (pushing exactly one value of the field's type)
// after the receiver has been cast, matching struct.set's [obj, value]
// operand order.
func (fg *funcGen) emitFieldSet(ci *ClassInfo, fieldIdx int, emitValue func()) {
	fg.emitCastToClass(ci)
	emitValue()
	// Fields with a concrete (ref null $T) storage type receive their
	// value as anyref from expression lowering; narrow it here.
	if ref := fg.g.refTypeOf(ci.Fields[fieldIdx].Type); ref != nil {
		fg.emitBytes(gcPrefix, gcRefCastNull)
		fg.emitBytes(encodeHeapType(ref.TypeIndex)...)
	}
	fg.emitBytes(gcPrefix, gcStructSet)
	fg.emitU32(ci.StructType)
	fg.emitU32(uint32(fieldIdx + 1))
}

// emitVirtualCall lowers objExpr and args, then dispatches through the
// class's vtable: the callee is read via two struct.gets (the instance's
// vtable field, then the vtable's slot field) so overriding subclasses
// are honored at the point of the call, not the static receiver type
// (spec.md §4.6.2, §4.6.3). A final (non-overridable) slot still goes
// through the vtable — codegen does not special-case isFinal into a
// direct `call`, since nothing observes the difference at this layer and
// every vtable is already fully and correctly populated by resolveVtables.
func (fg *funcGen) emitVirtualCall(ci *ClassInfo, slot int, objExpr ast.Expr, args []ast.Expr) {
	fg.lowerExpr(objExpr)
	objTemp := fg.newTemp(types.Any)
	fg.emitByte(opLocalTee)
	fg.emitU32(objTemp)
	sig := ci.slotSig[slot]
	for i, a := range args {
		if i+1 < len(sig.Params) {
			fg.lowerExprCoerced(a, sig.Params[i+1])
		} else {
			fg.lowerExpr(a)
		}
	}
	fg.emitByte(opLocalGet)
	fg.emitU32(objTemp)
	fg.emitCastToClass(ci)
	fg.emitBytes(gcPrefix, gcStructGet)
	fg.emitU32(ci.StructType)
	fg.emitU32(0)
	fg.emitBytes(gcPrefix, gcStructGet)
	fg.emitU32(ci.VtableStructType)
	fg.emitU32(uint32(slot))
	fg.emitByte(opCallRef)
	fg.emitU32(ci.slotFuncType[slot])
}

// emitVirtualCallOnThis is emitVirtualCall's shortcut for a same-class
// call that implicitly targets `this` (a bare `method(args)` inside
// another method body, spec.md §4.5.4).
func (fg *funcGen) emitVirtualCallOnThis(ci *ClassInfo, slot int, args []ast.Expr) {
	fg.emitByte(opLocalGet)
	fg.emitU32(0)
	for _, a := range args {
		fg.lowerExpr(a)
	}
	fg.emitByte(opLocalGet)
	fg.emitU32(0)
	fg.emitCastToClass(ci)
	fg.emitBytes(gcPrefix, gcStructGet)
	fg.emitU32(ci.StructType)
	fg.emitU32(0)
	fg.emitBytes(gcPrefix, gcStructGet)
	fg.emitU32(ci.VtableStructType)
	fg.emitU32(uint32(slot))
	fg.emitByte(opCallRef)
	fg.emitU32(ci.slotFuncType[slot])
}

// emitInterfaceCall dispatches a call through an interface-typed
// receiver's carrier struct: field 0 holds the concrete object (anyref),
// field 1 the per-class vtable built for this exact interface (spec.md
// §4.6.3 Open Question decision — "a plain two-field carrier ... not a
// disposable per-call adapter struct").
func (fg *funcGen) emitInterfaceCall(ii *InterfaceInfo, slot int, objExpr ast.Expr, args []ast.Expr) {
	fg.lowerExpr(objExpr)
	carrierTemp := fg.newTemp(types.Any)
	fg.emitByte(opLocalTee)
	fg.emitU32(carrierTemp)
	fg.emitCastToInterface(ii)
	fg.emitBytes(gcPrefix, gcStructGet)
	fg.emitU32(ii.CarrierStructType)
	fg.emitU32(0) // concrete object, passed as the call's implicit `this`
	sig := ii.slotSig[slot]
	for i, a := range args {
		if i+1 < len(sig.Params) {
			fg.lowerExprCoerced(a, sig.Params[i+1])
		} else {
			fg.lowerExpr(a)
		}
	}
	fg.emitByte(opLocalGet)
	fg.emitU32(carrierTemp)
	fg.emitCastToInterface(ii)
	fg.emitBytes(gcPrefix, gcStructGet)
	fg.emitU32(ii.CarrierStructType)
	fg.emitU32(1)
	fg.emitBytes(gcPrefix, gcStructGet)
	fg.emitU32(ii.VtableStructType)
	fg.emitU32(uint32(slot))
	fg.emitByte(opCallRef)
	fg.emitU32(ii.slotFuncType[slot])
}

// emitInterfaceUpcast wraps an already-on-stack class-typed anyref value
// into its interface carrier: struct.new(obj, class's per-interface
// vtable global). Used wherever a class value flows into an
// interface-typed position (spec.md §4.6.3).
func (fg *funcGen) emitInterfaceUpcast(ci *ClassInfo, ii *InterfaceInfo) {
	var vtableGlobal uint32
	for _, e := range ci.Implements {
		if e.iface == ii {
			vtableGlobal = e.global
			break
		}
	}
	fg.emitByte(opGlobalGet)
	fg.emitU32(vtableGlobal)
	fg.emitBytes(gcPrefix, gcRefCastNull)
	fg.emitBytes(encodeHeapType(ii.VtableStructType)...)
	fg.emitBytes(gcPrefix, gcStructNew)
	fg.emitU32(ii.CarrierStructType)
}

// coerceTo adapts the value e just lowered (already on the stack, typed
// as the checker's ExprTypes[e]) to target's runtime representation: the
// only conversion codegen performs is the class -> interface upcast
// (wrapping into the two-field carrier); every other pair the checker
// allows already shares a runtime representation (e.g. every union
// member already travels as anyref).
func (fg *funcGen) coerceTo(e ast.Expr, target types.Type) {
	from := fg.g.ctx.ExprTypes[e]
	if from.Kind != types.KindClass || target.Kind != types.KindInterface {
		return
	}
	ci := fg.g.classInfoOf(from)
	ii := fg.g.interfaceInfoOf(target)
	if ci == nil || ii == nil {
		return
	}
	fg.emitInterfaceUpcast(ci, ii)
}

func (fg *funcGen) lowerExprCoerced(e ast.Expr, target types.Type) {
	fg.lowerExpr(e)
	fg.coerceTo(e, target)
}
