package codegen

import (
	"github.com/wgc-lang/wgc/internal/types"
	"github.com/wgc-lang/wgc/internal/wasm"
)

// refFuncInit is the constant-expression body of a funcref global:
// globals referencing a function keep it "declared" for validation, so
// function bodies can load the reference with global.get instead of a
// bare ref.func (which would additionally need a declarative element
// segment).
func refFuncInit(funcIdx uint32) []byte {
	return append([]byte{opRefFunc}, leb(funcIdx)...)
}

// ---------------------------------------------------------------------
// GC type caches (spec.md §3.5: per-module codegen context)
// ---------------------------------------------------------------------

// arrayTypeFor returns the GC array type backing Array<elem>, allocated
// once per element type. Elements are stored at their coarse value type
// (numerics precise, references as anyref) so stores never need a
// per-element cast.
func (g *Generator) arrayTypeFor(elem types.Type) uint32 {
	key := types.Print(elem)
	if idx, ok := g.arrayStructCache[key]; ok {
		return idx
	}
	idx := g.em.AddArrayType(wasm.StorageType{Value: g.valueTypeOf(elem)}, true)
	g.arrayStructCache[key] = idx
	return idx
}

// tupleTypeFor returns the struct type backing a boxed tuple with the
// given element types, interned structurally (spec.md §3.3).
func (g *Generator) tupleTypeFor(elems []types.Type) uint32 {
	key := ""
	for _, e := range elems {
		key += types.Print(e) + ";"
	}
	if idx, ok := g.tupleStructCache[key]; ok {
		return idx
	}
	fields := make([]wasm.StructField, len(elems))
	for i, e := range elems {
		fields[i] = wasm.StructField{Type: wasm.StorageType{Value: g.valueTypeOf(e)}}
	}
	idx := g.em.AddStructType(fields)
	g.tupleStructCache[key] = idx
	return idx
}

// recordTypeFor returns the struct type backing a record shape; fields
// arrive already sorted by name (types.Record sorts at construction),
// which fixes the struct layout deterministically.
func (g *Generator) recordTypeFor(fields []types.RecordField) uint32 {
	key := ""
	for _, f := range fields {
		key += f.Name + ":" + types.Print(f.Type) + ";"
	}
	if idx, ok := g.recordStructCache[key]; ok {
		return idx
	}
	sf := make([]wasm.StructField, len(fields))
	for i, f := range fields {
		sf[i] = wasm.StructField{Type: wasm.StorageType{Value: g.valueTypeOf(f.Type)}, Mutable: true}
	}
	idx := g.em.AddStructType(sf)
	g.recordStructCache[key] = idx
	return idx
}

// rangeTypeFor returns the struct for one of the four range shapes
// (spec.md §4.6.7: BoundedRange{start,end}, FromRange{start},
// ToRange{end}, FullRange{}).
func (g *Generator) rangeTypeFor(kind types.RangeKind) uint32 {
	if idx, ok := g.rangeStructCache[kind]; ok {
		return idx
	}
	i32Field := wasm.StructField{Type: wasm.StorageType{Value: wasm.ValueTypeI32}}
	var fields []wasm.StructField
	switch kind {
	case types.RangeBounded:
		fields = []wasm.StructField{i32Field, i32Field}
	case types.RangeFrom, types.RangeTo:
		fields = []wasm.StructField{i32Field}
	}
	idx := g.em.AddStructType(fields)
	g.rangeStructCache[kind] = idx
	return idx
}

// envStructFor allocates the environment struct for one closure: one
// field per captured name (spec.md §4.6.4). Never interned — each
// closure's environment is its own nominal type.
func (g *Generator) envStructFor(capTypes []types.Type) uint32 {
	fields := make([]wasm.StructField, len(capTypes))
	for i, t := range capTypes {
		fields[i] = wasm.StructField{Type: wasm.StorageType{Value: g.valueTypeOf(t)}}
	}
	return g.em.AddStructType(fields)
}

// envFnType returns the type-section index of a function value's
// calling-convention signature: the environment reference first, then
// the declared parameters.
func (g *Generator) envFnType(fnTy types.Type) uint32 {
	params := []wasm.ValueType{wasm.ValueTypeAnyRef}
	for _, p := range fnTy.Params {
		params = append(params, g.valueTypeOf(p))
	}
	var results []wasm.ValueType
	if fnTy.Return != nil {
		results = g.resultValueTypes(*fnTy.Return)
	}
	return g.em.AddType(params, results)
}

// carrierFor returns the {fn, env} carrier struct for a given
// signature, the uniform runtime shape of every function value.
func (g *Generator) carrierFor(fnTypeIdx uint32) uint32 {
	if idx, ok := g.carrierStructCache[fnTypeIdx]; ok {
		return idx
	}
	idx := g.em.AddStructType([]wasm.StructField{
		{Type: wasm.StorageType{Ref: &wasm.RefType{TypeIndex: fnTypeIdx, Nullable: true}}},
		{Type: wasm.StorageType{Value: wasm.ValueTypeAnyRef}},
	})
	g.carrierStructCache[fnTypeIdx] = idx
	return idx
}

// funcValueGlobal returns (building on first use) an immutable global
// holding a top-level function boxed as a {fn, env} carrier, for the
// rare case where a named function is referenced as a value rather than
// called. The boxed fn is a thin wrapper adding the ignored environment
// parameter so the value obeys the closure calling convention.
func (g *Generator) funcValueGlobal(name string) uint32 {
	if idx, ok := g.wrapperFunc[name]; ok {
		return idx
	}
	rawIdx := g.funcIdx[name]
	rawType := g.em.Module().Types[g.funcTypeIdx[name]].Func

	wrapParams := append([]wasm.ValueType{wasm.ValueTypeAnyRef}, rawType.Params...)
	wrapTypeIdx := g.em.AddType(wrapParams, rawType.Results)
	wrapIdx := g.em.AddFunction(wrapTypeIdx)
	g.em.SetFunctionName(wrapIdx, name+".boxed")

	var body []byte
	for i := range rawType.Params {
		body = append(body, opLocalGet)
		body = append(body, leb(uint32(i+1))...)
	}
	body = append(body, opCall)
	body = append(body, leb(rawIdx)...)
	g.em.AddCode(wrapIdx, nil, body)

	carrier := g.carrierFor(wrapTypeIdx)
	init := refFuncInit(wrapIdx)
	init = append(init, opRefNull, heapTypeAny)
	init = append(init, gcPrefix, gcStructNew)
	init = append(init, leb(carrier)...)
	gidx := g.em.AddGlobal(wasm.ValueTypeAnyRef, false, init)
	g.wrapperFunc[name] = gidx
	return gidx
}

func (g *Generator) symbolID(name string) int32 {
	if id, ok := g.symbolIDs[name]; ok {
		return id
	}
	id := int32(len(g.symbolIDs) + 1)
	g.symbolIDs[name] = id
	return id
}

func (g *Generator) enumOrdinal(enumName, member string) (int32, bool) {
	ed, ok := g.enumASTByName[enumName]
	if !ok {
		return 0, false
	}
	for i, m := range ed.Members {
		if m.Name == member {
			return int32(i), true
		}
	}
	return 0, false
}

// ---------------------------------------------------------------------
// Runtime helper functions (spec.md §4.6.1 step 4): queued on first
// request during body lowering, emitted once after every body.
// ---------------------------------------------------------------------

func (g *Generator) requestHelper(name string, params, results []wasm.ValueType, gen func(fg *funcGen)) uint32 {
	if idx, ok := g.helperFuncs[name]; ok {
		return idx
	}
	typeIdx := g.em.AddType(params, results)
	funcIdx := g.em.AddFunction(typeIdx)
	g.em.SetFunctionName(funcIdx, name)
	g.helperFuncs[name] = funcIdx
	g.helperPending = append(g.helperPending, helperJob{
		name: name, gen: gen, funcIndex: funcIdx, paramCount: uint32(len(params)),
	})
	return funcIdx
}

// emitPendingHelpers drains the helper queue; index-based because a
// helper's generator may itself request further helpers.
func (g *Generator) emitPendingHelpers() {
	for i := 0; i < len(g.helperPending); i++ {
		job := g.helperPending[i]
		fg := &funcGen{g: g, paramCount: job.paramCount}
		job.gen(fg)
		g.em.AddCode(job.funcIndex, fg.locals, fg.buf)
	}
}

var (
	i32Ty    = types.Number(types.WidthI32)
	f64Ty    = types.Number(types.WidthF64)
	anyRefVT = wasm.ValueTypeAnyRef
	i32VT    = wasm.ValueTypeI32
	f64VT    = wasm.ValueTypeF64
)

func (fg *funcGen) localGet(i uint32) { fg.emitByte(opLocalGet); fg.emitU32(i) }
func (fg *funcGen) localSet(i uint32) { fg.emitByte(opLocalSet); fg.emitU32(i) }
func (fg *funcGen) i32Const(v int32)  { fg.emitByte(opI32Const); fg.emitI32(v) }

func (fg *funcGen) stringLen(param uint32) {
	fg.localGet(param)
	fg.emitCastToStruct(fg.g.stringStructType)
	fg.emitBytes(gcPrefix, gcStructGet)
	fg.emitU32(fg.g.stringStructType)
	fg.emitU32(1)
}

func (fg *funcGen) stringBytes(param uint32) {
	fg.localGet(param)
	fg.emitCastToStruct(fg.g.stringStructType)
	fg.emitBytes(gcPrefix, gcStructGet)
	fg.emitU32(fg.g.stringStructType)
	fg.emitU32(0)
}

func (g *Generator) stringConcatHelper() uint32 {
	return g.requestHelper("wgc.string.concat", []wasm.ValueType{anyRefVT, anyRefVT}, []wasm.ValueType{anyRefVT}, func(fg *funcGen) {
		bytes := g.stringByteArrayType
		lenA := fg.newTemp(i32Ty)
		lenB := fg.newTemp(i32Ty)
		total := fg.newTemp(i32Ty)
		out := fg.newTemp(types.Any)

		fg.stringLen(0)
		fg.localSet(lenA)
		fg.stringLen(1)
		fg.localSet(lenB)
		fg.localGet(lenA)
		fg.localGet(lenB)
		fg.emitByte(opI32Add)
		fg.localSet(total)

		fg.localGet(total)
		fg.emitBytes(gcPrefix, gcArrayNewDefault)
		fg.emitU32(bytes)
		fg.localSet(out)

		fg.localGet(out)
		fg.emitCastToArrayType(bytes)
		fg.i32Const(0)
		fg.stringBytes(0)
		fg.i32Const(0)
		fg.localGet(lenA)
		fg.emitBytes(gcPrefix, gcArrayCopy)
		fg.emitU32(bytes)
		fg.emitU32(bytes)

		fg.localGet(out)
		fg.emitCastToArrayType(bytes)
		fg.localGet(lenA)
		fg.stringBytes(1)
		fg.i32Const(0)
		fg.localGet(lenB)
		fg.emitBytes(gcPrefix, gcArrayCopy)
		fg.emitU32(bytes)
		fg.emitU32(bytes)

		fg.localGet(out)
		fg.emitCastToArrayType(bytes)
		fg.localGet(total)
		fg.emitBytes(gcPrefix, gcStructNew)
		fg.emitU32(g.stringStructType)
	})
}

func (g *Generator) stringEqHelper() uint32 {
	return g.requestHelper("wgc.string.eq", []wasm.ValueType{anyRefVT, anyRefVT}, []wasm.ValueType{i32VT}, func(fg *funcGen) {
		bytes := g.stringByteArrayType
		length := fg.newTemp(i32Ty)
		i := fg.newTemp(i32Ty)

		fg.stringLen(0)
		fg.localSet(length)
		fg.stringLen(1)
		fg.localGet(length)
		fg.emitByte(opI32Ne)
		fg.openBlock(opIf, blockTypeVoid)
		fg.i32Const(0)
		fg.emitByte(opReturn)
		fg.closeBlock()

		done := fg.openBlock(opBlock, blockTypeVoid)
		loop := fg.openBlock(opLoop, blockTypeVoid)
		fg.localGet(i)
		fg.localGet(length)
		fg.emitByte(opI32GeS)
		fg.branchTo(opBrIf, done)

		fg.stringBytes(0)
		fg.localGet(i)
		fg.emitBytes(gcPrefix, gcArrayGetU)
		fg.emitU32(bytes)
		fg.stringBytes(1)
		fg.localGet(i)
		fg.emitBytes(gcPrefix, gcArrayGetU)
		fg.emitU32(bytes)
		fg.emitByte(opI32Ne)
		fg.openBlock(opIf, blockTypeVoid)
		fg.i32Const(0)
		fg.emitByte(opReturn)
		fg.closeBlock()

		fg.localGet(i)
		fg.i32Const(1)
		fg.emitByte(opI32Add)
		fg.localSet(i)
		fg.branchTo(opBr, loop)
		fg.closeBlock()
		fg.closeBlock()

		fg.i32Const(1)
	})
}

// stringHashHelper is FNV-1a over the string's bytes, backing the
// stdlib `hash` intrinsic (spec.md §4.5.8).
func (g *Generator) stringHashHelper() uint32 {
	return g.requestHelper("wgc.string.hash", []wasm.ValueType{anyRefVT}, []wasm.ValueType{i32VT}, func(fg *funcGen) {
		bytes := g.stringByteArrayType
		length := fg.newTemp(i32Ty)
		i := fg.newTemp(i32Ty)
		h := fg.newTemp(i32Ty)

		fg.stringLen(0)
		fg.localSet(length)
		fg.i32Const(-2128831035) // 2166136261 as i32
		fg.localSet(h)

		done := fg.openBlock(opBlock, blockTypeVoid)
		loop := fg.openBlock(opLoop, blockTypeVoid)
		fg.localGet(i)
		fg.localGet(length)
		fg.emitByte(opI32GeS)
		fg.branchTo(opBrIf, done)

		fg.localGet(h)
		fg.stringBytes(0)
		fg.localGet(i)
		fg.emitBytes(gcPrefix, gcArrayGetU)
		fg.emitU32(bytes)
		fg.emitByte(opI32Xor)
		fg.i32Const(16777619)
		fg.emitByte(opI32Mul)
		fg.localSet(h)

		fg.localGet(i)
		fg.i32Const(1)
		fg.emitByte(opI32Add)
		fg.localSet(i)
		fg.branchTo(opBr, loop)
		fg.closeBlock()
		fg.closeBlock()

		fg.localGet(h)
	})
}

func (g *Generator) itoaHelper() uint32 {
	return g.requestHelper("wgc.i32.to-string", []wasm.ValueType{i32VT}, []wasm.ValueType{anyRefVT}, func(fg *funcGen) {
		bytes := g.stringByteArrayType
		neg := fg.newTemp(i32Ty)
		tmp := fg.newTemp(i32Ty)
		digits := fg.newTemp(i32Ty)
		total := fg.newTemp(i32Ty)
		out := fg.newTemp(types.Any)
		pos := fg.newTemp(i32Ty)

		fg.localGet(0)
		fg.i32Const(0)
		fg.emitByte(opI32LtS)
		fg.localSet(neg)
		fg.localGet(neg)
		fg.openBlock(opIf, blockTypeVoid)
		fg.i32Const(0)
		fg.localGet(0)
		fg.emitByte(opI32Sub)
		fg.localSet(0)
		fg.closeBlock()

		fg.localGet(0)
		fg.localSet(tmp)
		fg.i32Const(1)
		fg.localSet(digits)
		done := fg.openBlock(opBlock, blockTypeVoid)
		loop := fg.openBlock(opLoop, blockTypeVoid)
		fg.localGet(tmp)
		fg.i32Const(10)
		fg.emitByte(opI32DivS)
		fg.localSet(tmp)
		fg.localGet(tmp)
		fg.emitByte(opI32Eqz)
		fg.branchTo(opBrIf, done)
		fg.localGet(digits)
		fg.i32Const(1)
		fg.emitByte(opI32Add)
		fg.localSet(digits)
		fg.branchTo(opBr, loop)
		fg.closeBlock()
		fg.closeBlock()

		fg.localGet(digits)
		fg.localGet(neg)
		fg.emitByte(opI32Add)
		fg.localSet(total)
		fg.localGet(total)
		fg.emitBytes(gcPrefix, gcArrayNewDefault)
		fg.emitU32(bytes)
		fg.localSet(out)

		fg.localGet(neg)
		fg.openBlock(opIf, blockTypeVoid)
		fg.localGet(out)
		fg.emitCastToArrayType(bytes)
		fg.i32Const(0)
		fg.i32Const('-')
		fg.emitBytes(gcPrefix, gcArraySet)
		fg.emitU32(bytes)
		fg.closeBlock()

		fg.localGet(total)
		fg.i32Const(1)
		fg.emitByte(opI32Sub)
		fg.localSet(pos)
		fg.localGet(0)
		fg.localSet(tmp)

		done2 := fg.openBlock(opBlock, blockTypeVoid)
		loop2 := fg.openBlock(opLoop, blockTypeVoid)
		fg.localGet(out)
		fg.emitCastToArrayType(bytes)
		fg.localGet(pos)
		fg.i32Const('0')
		fg.localGet(tmp)
		fg.i32Const(10)
		fg.emitByte(opI32RemS)
		fg.emitByte(opI32Add)
		fg.emitBytes(gcPrefix, gcArraySet)
		fg.emitU32(bytes)

		fg.localGet(tmp)
		fg.i32Const(10)
		fg.emitByte(opI32DivS)
		fg.localSet(tmp)
		fg.localGet(pos)
		fg.i32Const(1)
		fg.emitByte(opI32Sub)
		fg.localSet(pos)
		fg.localGet(tmp)
		fg.emitByte(opI32Eqz)
		fg.branchTo(opBrIf, done2)
		fg.branchTo(opBr, loop2)
		fg.closeBlock()
		fg.closeBlock()

		fg.localGet(out)
		fg.emitCastToArrayType(bytes)
		fg.localGet(total)
		fg.emitBytes(gcPrefix, gcStructNew)
		fg.emitU32(g.stringStructType)
	})
}

func (g *Generator) powI32Helper() uint32 {
	return g.requestHelper("wgc.i32.pow", []wasm.ValueType{i32VT, i32VT}, []wasm.ValueType{i32VT}, func(fg *funcGen) {
		res := fg.newTemp(i32Ty)
		fg.i32Const(1)
		fg.localSet(res)
		done := fg.openBlock(opBlock, blockTypeVoid)
		loop := fg.openBlock(opLoop, blockTypeVoid)
		fg.localGet(1)
		fg.i32Const(0)
		fg.emitByte(opI32LeS)
		fg.branchTo(opBrIf, done)
		fg.localGet(res)
		fg.localGet(0)
		fg.emitByte(opI32Mul)
		fg.localSet(res)
		fg.localGet(1)
		fg.i32Const(1)
		fg.emitByte(opI32Sub)
		fg.localSet(1)
		fg.branchTo(opBr, loop)
		fg.closeBlock()
		fg.closeBlock()
		fg.localGet(res)
	})
}

// powF64Helper raises base to a non-negative integral exponent by
// repeated multiplication; fractional exponents are truncated.
func (g *Generator) powF64Helper() uint32 {
	return g.requestHelper("wgc.f64.pow", []wasm.ValueType{f64VT, f64VT}, []wasm.ValueType{f64VT}, func(fg *funcGen) {
		res := fg.newTemp(f64Ty)
		n := fg.newTemp(i32Ty)
		fg.emitByte(opF64Const)
		fg.emitF64(1)
		fg.localSet(res)
		fg.localGet(1)
		fg.emitByte(opI32TruncF64S)
		fg.localSet(n)
		done := fg.openBlock(opBlock, blockTypeVoid)
		loop := fg.openBlock(opLoop, blockTypeVoid)
		fg.localGet(n)
		fg.i32Const(0)
		fg.emitByte(opI32LeS)
		fg.branchTo(opBrIf, done)
		fg.localGet(res)
		fg.localGet(0)
		fg.emitByte(opF64Mul)
		fg.localSet(res)
		fg.localGet(n)
		fg.i32Const(1)
		fg.emitByte(opI32Sub)
		fg.localSet(n)
		fg.branchTo(opBr, loop)
		fg.closeBlock()
		fg.closeBlock()
		fg.localGet(res)
	})
}

// sliceHelper implements arr[a..b] for one element type: bounds-check
// then copy into a fresh array (spec.md §4.6.7; an out-of-range slice
// traps).
func (g *Generator) sliceHelper(elem types.Type) uint32 {
	arrType := g.arrayTypeFor(elem)
	return g.requestHelper("wgc.array.slice:"+types.Print(elem), []wasm.ValueType{anyRefVT, i32VT, i32VT}, []wasm.ValueType{anyRefVT}, func(fg *funcGen) {
		length := fg.newTemp(i32Ty)
		n := fg.newTemp(i32Ty)
		out := fg.newTemp(types.Any)

		fg.localGet(0)
		fg.emitCastToArrayType(arrType)
		fg.emitBytes(gcPrefix, gcArrayLen)
		fg.localSet(length)

		fg.localGet(1)
		fg.i32Const(0)
		fg.emitByte(opI32LtS)
		fg.localGet(2)
		fg.localGet(length)
		fg.emitByte(opI32GtS)
		fg.emitByte(opI32Or)
		fg.localGet(1)
		fg.localGet(2)
		fg.emitByte(opI32GtS)
		fg.emitByte(opI32Or)
		fg.openBlock(opIf, blockTypeVoid)
		fg.emitByte(opUnreachable)
		fg.closeBlock()

		fg.localGet(2)
		fg.localGet(1)
		fg.emitByte(opI32Sub)
		fg.localSet(n)
		fg.localGet(n)
		fg.emitBytes(gcPrefix, gcArrayNewDefault)
		fg.emitU32(arrType)
		fg.localSet(out)

		fg.localGet(out)
		fg.emitCastToArrayType(arrType)
		fg.i32Const(0)
		fg.localGet(0)
		fg.emitCastToArrayType(arrType)
		fg.localGet(1)
		fg.localGet(n)
		fg.emitBytes(gcPrefix, gcArrayCopy)
		fg.emitU32(arrType)
		fg.emitU32(arrType)

		fg.localGet(out)
	})
}
