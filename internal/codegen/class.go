package codegen

import (
	"fmt"

	"github.com/wgc-lang/wgc/internal/ast"
	"github.com/wgc-lang/wgc/internal/types"
	"github.com/wgc-lang/wgc/internal/wasm"
	"github.com/wgc-lang/wgc/internal/wasm/binary"
)

// ClassInfo is codegen's own registry entry for one class declaration —
// distinct from types.ClassDecl (the checker's lightweight identity
// wrapper): this carries everything pass 2 needs to lay out an instance
// and dispatch a call (spec.md §3.7 "ClassInfo ... frozen before pass
// 2", §4.6.2).
type ClassInfo struct {
	AST       *ast.ClassDecl
	TypesDecl *types.ClassDecl
	Super     *ClassInfo

	StructType       uint32 // GC struct type index for instances of this class
	VtableStructType uint32 // GC struct type index for this class's vtable value
	VtableGlobal     uint32 // global index holding the one instance of the vtable

	// Fields are laid out inherited-first then own, in declaration order
	// (spec.md §4.6.2); index 0 of the underlying GC struct is always the
	// vtable reference, so a field's struct index is its position in this
	// slice plus one.
	Fields     []FieldInfo
	fieldIndex map[string]int

	// MethodSlots fixes dispatch-slot order: inherited slots keep their
	// position, new methods are appended and an overriding method reuses
	// the inherited slot (spec.md §3.6 invariant 4). slotFunc/slotSig
	// parallel MethodSlots.
	MethodSlots []string
	slotFunc    []uint32
	slotSig     []methodSig
	slotFuncType []uint32 // type-section index of each slot's function type, for call_ref's type immediate
	slotFinal   []bool // the slot method's isFinal flag; calls still read the slot through the vtable global (final slots are not dispatched statically)

	// Implements holds one entry per implemented interface
	// instantiation: the monomorphised InterfaceInfo plus the vtable
	// global carrying this class's dispatch table for it (spec.md
	// §4.6.3 "Open Question" decision: two-reference-pair representation
	// fixed in DESIGN.md).
	Implements []*implEntry

	CtorFuncIdx uint32
	structDefined bool // invariant 7 guard
}

type implEntry struct {
	iface  *InterfaceInfo
	global uint32
}

type methodSig struct {
	Params []types.Type
	Ret    types.Type
}

type FieldInfo struct {
	Name    string
	Type    types.Type
	Mutable bool
}

// InterfaceInfo is the interface-side counterpart: a fixed method slot
// order every implementing class's per-interface vtable must agree with
// (spec.md §4.6.3).
type InterfaceInfo struct {
	AST         *ast.InterfaceDecl
	TypesDecl   *types.InterfaceDecl
	TypeArgs    []types.Type // instantiation arguments, empty for the generic base
	MethodSlots []string
	slotSig     []methodSig
	slotFuncType []uint32
	VtableStructType uint32

	// CarrierStructType is the two-field {object anyref, vtable ref}
	// struct every value of this interface type is represented as
	// (spec.md §4.6.3 Open Question decision).
	CarrierStructType uint32
}

// registerClass registers cd's struct and vtable types, resolving its
// superclass first so inherited field/slot layout is available (forward
// references across the whole compilation unit, spec.md §3.6 invariant
// 3). Idempotent: a class already registered (by AST pointer) returns
// its existing ClassInfo without re-emitting a struct type, satisfying
// invariant 7 ("struct_defined" guard).
func (g *Generator) registerClass(cd *ast.ClassDecl) *ClassInfo {
	if ci, ok := g.classByAST[cd]; ok {
		return ci
	}
	typesDecl := g.ctx.ClassInfo[cd]
	ci := &ClassInfo{
		AST: cd, TypesDecl: typesDecl,
		fieldIndex: make(map[string]int),
	}
	g.classByAST[cd] = ci
	g.classes[typesDecl] = ci

	if cd.Super != nil {
		if superName, ok := simpleAnnotationName(cd.Super); ok {
			if superAST, ok := g.classASTByName[superName]; ok {
				ci.Super = g.registerClass(superAST)
				ci.Fields = append(ci.Fields, ci.Super.Fields...)
				ci.MethodSlots = append(ci.MethodSlots, ci.Super.MethodSlots...)
				ci.slotFunc = append(ci.slotFunc, ci.Super.slotFunc...)
				ci.slotSig = append(ci.slotSig, ci.Super.slotSig...)
				ci.slotFuncType = append(ci.slotFuncType, ci.Super.slotFuncType...)
				ci.slotFinal = append(ci.slotFinal, ci.Super.slotFinal...)
				for k, v := range ci.Super.fieldIndex {
					ci.fieldIndex[k] = v
				}
			}
		}
	}

	for _, f := range cd.Fields {
		ft := g.fieldTypeOf(f)
		idx := len(ci.Fields)
		ci.Fields = append(ci.Fields, FieldInfo{Name: f.Name, Type: ft, Mutable: f.Mutable})
		ci.fieldIndex[f.Name] = idx
	}

	for i := range cd.Methods {
		m := &cd.Methods[i]
		if m.IsStatic {
			continue // static methods are plain functions, never vtable slots
		}
		slot := slotName(m)
		sig := g.methodSigOf(ci, m)
		if existing := indexOf(ci.MethodSlots, slot); existing >= 0 {
			ci.slotSig[existing] = sig
			ci.slotFinal[existing] = m.IsFinal
		} else {
			ci.MethodSlots = append(ci.MethodSlots, slot)
			ci.slotFunc = append(ci.slotFunc, 0)
			ci.slotSig = append(ci.slotSig, sig)
			ci.slotFuncType = append(ci.slotFuncType, 0)
			ci.slotFinal = append(ci.slotFinal, m.IsFinal)
		}
	}

	// Vtable struct first (field 0 of the instance struct below points at
	// it, so its type index must exist before the instance struct is
	// registered): one (ref null $functype) field per slot, typed
	// functions so a call through the vtable needs no runtime signature
	// check (spec.md §4.6.2 "funcref values typed to each method's
	// signature").
	vtableFields := make([]wasm.StructField, len(ci.MethodSlots))
	for i, sig := range ci.slotSig {
		fnType := g.em.AddType(g.paramValueTypes(sig.Params), g.resultValueTypes(sig.Ret))
		ci.slotFuncType[i] = fnType
		vtableFields[i] = wasm.StructField{Type: wasm.StorageType{Ref: &wasm.RefType{TypeIndex: fnType, Nullable: true}}}
	}
	ci.VtableStructType = g.em.AddStructType(vtableFields)

	// Struct layout: field 0 is the vtable reference, then Fields in
	// order (spec.md §4.6.2 "A v_table reference is stored as the first
	// field of every class").
	structFields := make([]wasm.StructField, 0, len(ci.Fields)+1)
	structFields = append(structFields, wasm.StructField{
		Type:    wasm.StorageType{Ref: &wasm.RefType{TypeIndex: ci.VtableStructType, Nullable: true}},
		Mutable: true, // written once by the allocation site after struct.new_default
	})
	for _, f := range ci.Fields {
		structFields = append(structFields, wasm.StructField{Type: g.storageTypeOf(f.Type), Mutable: f.Mutable})
	}
	ci.StructType = g.em.AddStructType(structFields)
	ci.structDefined = true

	for _, impl := range cd.Implements {
		ifaceName, ok := simpleAnnotationName(impl)
		if !ok {
			continue
		}
		ifaceAST, ok := g.interfaceASTByName[ifaceName]
		if !ok {
			continue
		}
		var args []types.Type
		if gen, isGeneric := impl.(*ast.GenericTypeAnnotation); isGeneric {
			args = make([]types.Type, len(gen.Args))
			for i, a := range gen.Args {
				args[i] = typeFromAnnotationBestEffort(a, g.classByName, g.interfaceByName)
			}
		}
		ii := g.registerInterface(ifaceAST, args)
		// vtable global filled by resolveVtables once method bodies'
		// func indices exist.
		ci.Implements = append(ci.Implements, &implEntry{iface: ii})
	}

	ci.CtorFuncIdx = g.registerCtor(ci)

	return ci
}

// instKey identifies one interface instantiation: the declaration
// pointer plus the printed type arguments (structural identity for the
// argument tuple, nominal for the declaration — spec.md §3.3).
func instKey(decl *types.InterfaceDecl, args []types.Type) string {
	key := fmt.Sprintf("%p", decl)
	for _, a := range args {
		key += ";" + types.Print(a)
	}
	return key
}

func (g *Generator) registerInterface(id *ast.InterfaceDecl, args []types.Type) *InterfaceInfo {
	typesDecl := g.ctx.InterfaceInfo[id]
	key := instKey(typesDecl, args)
	if ii, ok := g.interfaces[key]; ok {
		return ii
	}
	ii := &InterfaceInfo{AST: id, TypesDecl: typesDecl, TypeArgs: args}
	g.interfaces[key] = ii

	// Monomorphise: method signatures resolve with the instantiation's
	// type-parameter substitution applied (spec.md §4.5.7), so the
	// per-class interface vtable fields carry the same function types
	// as the implementing class's own methods.
	subst := make(map[string]types.Type)
	for i, tp := range id.TypeParams {
		if i < len(args) {
			subst[tp.Name] = args[i]
		}
	}

	if id.Parent != nil {
		if parentName, ok := simpleAnnotationName(id.Parent); ok {
			if parentAST, ok := g.interfaceASTByName[parentName]; ok {
				parent := g.registerInterface(parentAST, nil)
				ii.MethodSlots = append(ii.MethodSlots, parent.MethodSlots...)
				ii.slotSig = append(ii.slotSig, parent.slotSig...)
			}
		}
	}
	for _, m := range id.Methods {
		slot := slotNameIface(m)
		params := make([]types.Type, 0, len(m.Params)+1)
		params = append(params, types.Interface(typesDecl, args...)) // implicit receiver, erased to the interface itself
		for _, p := range m.Params {
			params = append(params, g.typeWithSubst(p.Type, subst))
		}
		ret := types.Void
		if m.ReturnType != nil {
			ret = g.typeWithSubst(m.ReturnType, subst)
		}
		ii.MethodSlots = append(ii.MethodSlots, slot)
		ii.slotSig = append(ii.slotSig, methodSig{Params: params, Ret: ret})
	}
	vtableFields := make([]wasm.StructField, len(ii.MethodSlots))
	ii.slotFuncType = make([]uint32, len(ii.MethodSlots))
	for i, sig := range ii.slotSig {
		fnType := g.em.AddType(g.paramValueTypes(sig.Params), g.resultValueTypes(sig.Ret))
		ii.slotFuncType[i] = fnType
		vtableFields[i] = wasm.StructField{Type: wasm.StorageType{Ref: &wasm.RefType{TypeIndex: fnType, Nullable: true}}}
	}
	ii.VtableStructType = g.em.AddStructType(vtableFields)
	ii.CarrierStructType = g.em.AddStructType([]wasm.StructField{
		{Type: wasm.StorageType{Value: wasm.ValueTypeAnyRef}},
		{Type: wasm.StorageType{Ref: &wasm.RefType{TypeIndex: ii.VtableStructType, Nullable: true}}},
	})
	return ii
}

func slotName(m *ast.MethodDecl) string {
	switch m.Accessor {
	case ast.AccessorGet:
		return "get:" + m.Name
	case ast.AccessorSet:
		return "set:" + m.Name
	default:
		return m.Name
	}
}

func slotNameIface(m ast.InterfaceMethod) string {
	switch m.Accessor {
	case ast.AccessorGet:
		return "get:" + m.Name
	case ast.AccessorSet:
		return "set:" + m.Name
	default:
		return m.Name
	}
}

func indexOf(ss []string, s string) int {
	for i, v := range ss {
		if v == s {
			return i
		}
	}
	return -1
}

func (g *Generator) fieldTypeOf(f ast.FieldDecl) types.Type {
	if f.Type != nil {
		return typeFromAnnotationBestEffort(f.Type, g.classByName, g.interfaceByName)
	}
	if f.Init != nil {
		if t, ok := g.ctx.ExprTypes[f.Init]; ok {
			return t
		}
	}
	return types.Any
}

func (g *Generator) methodSigOf(ci *ClassInfo, m *ast.MethodDecl) methodSig {
	params := make([]types.Type, 0, len(m.Params)+1)
	params = append(params, types.Class(ci.TypesDecl)) // implicit `this` receiver, slot 0 of every method signature
	for _, p := range m.Params {
		params = append(params, typeFromAnnotationBestEffort(p.Type, g.classByName, g.interfaceByName))
	}
	ret := types.Void
	if m.ReturnType != nil {
		ret = typeFromAnnotationBestEffort(m.ReturnType, g.classByName, g.interfaceByName)
	} else if m.Accessor == ast.AccessorGet {
		ret = types.Any
	}
	return methodSig{Params: params, Ret: ret}
}

func (g *Generator) paramValueTypes(params []types.Type) []wasm.ValueType {
	out := make([]wasm.ValueType, len(params))
	for i, p := range params {
		out[i] = g.valueTypeOf(p)
	}
	return out
}

func (g *Generator) storageTypeOf(t types.Type) wasm.StorageType {
	if ref := g.refTypeOf(t); ref != nil {
		return wasm.StorageType{Ref: ref}
	}
	return wasm.StorageType{Value: g.valueTypeOf(t)}
}

// registerCtor allocates (but does not yet body-generate) the function
// implementing ci's constructor: `super(args)`-then-field-init-then-
// user-body, deferred to pass 2 like every other body (spec.md §4.5.5,
// §4.6.1 step 3).
func (g *Generator) registerCtor(ci *ClassInfo) uint32 {
	var params []ast.Param
	var body *ast.Block
	if ci.AST.Ctor != nil {
		params = ci.AST.Ctor.Params
		body = ci.AST.Ctor.Body
	}
	paramTypes := make([]wasm.ValueType, len(params)+1)
	paramTypes[0] = g.valueTypeOf(types.Class(ci.TypesDecl))
	for i, p := range params {
		paramTypes[i+1] = g.valueTypeOf(g.paramTypeOf(p))
	}
	typeIdx := g.em.AddType(paramTypes, nil)
	funcIdx := g.em.AddFunction(typeIdx)
	g.em.SetFunctionName(funcIdx, ci.AST.Name+".<ctor>")
	g.pendingBodies = append(g.pendingBodies, bodyJob{
		funcIndex: funcIdx, params: params, ret: types.Void, body: body,
		selfClass: ci, name: ci.AST.Name + ".<ctor>", isCtor: true,
	})
	return funcIdx
}

func (g *Generator) paramTypeOf(p ast.Param) types.Type {
	if p.Type == nil {
		return types.Any
	}
	return typeFromAnnotationBestEffort(p.Type, g.classByName, g.interfaceByName)
}

// registerClassMethodBodies allocates a function per method declared in
// ci (static methods via registerStaticMethod, the rest into their
// vtable slot) and queues its body; resolveVtables then fills in each
// vtable global's actual function-reference contents.
func (g *Generator) registerClassMethodBodies(ci *ClassInfo) {
	for i := range ci.AST.Methods {
		m := &ci.AST.Methods[i]
		if m.IsStatic {
			g.registerStaticMethod(ci, m)
			continue
		}
		sig := g.methodSigOf(ci, m)
		paramTypes := g.paramValueTypes(sig.Params)
		typeIdx := g.em.AddType(paramTypes, g.resultValueTypes(sig.Ret))
		funcIdx := g.em.AddFunction(typeIdx)
		g.em.SetFunctionName(funcIdx, ci.AST.Name+"."+m.Name)
		slot := indexOf(ci.MethodSlots, slotName(m))
		ci.slotFunc[slot] = funcIdx
		g.pendingBodies = append(g.pendingBodies, bodyJob{
			funcIndex: funcIdx, params: m.Params, ret: sig.Ret,
			body: m.Body, selfClass: ci, name: ci.AST.Name + "." + m.Name,
		})
	}
}

func (g *Generator) registerStaticMethod(ci *ClassInfo, m *ast.MethodDecl) {
	paramTypes := make([]wasm.ValueType, len(m.Params))
	for i, p := range m.Params {
		paramTypes[i] = g.valueTypeOf(g.paramTypeOf(p))
	}
	var ret types.Type = types.Void
	if m.ReturnType != nil {
		ret = typeFromAnnotationBestEffort(m.ReturnType, g.classByName, g.interfaceByName)
	}
	typeIdx := g.em.AddType(paramTypes, g.resultValueTypes(ret))
	funcIdx := g.em.AddFunction(typeIdx)
	name := ci.AST.Name + "." + m.Name
	g.em.SetFunctionName(funcIdx, name)
	g.staticMethodFunc[name] = funcIdx
	g.pendingBodies = append(g.pendingBodies, bodyJob{
		funcIndex: funcIdx, params: m.Params, ret: ret, body: m.Body, name: name,
	})
}

// resolveVtables first allocates every class's method functions,
// superclass before subclass, copying the superclass's slotFunc entries
// into the subclass so inherited, non-overridden slots hold the
// superclass's function; it then fills each class's vtable global with
// the concrete function references and each implemented interface's
// per-class vtable global similarly (spec.md §4.6.3).
func (g *Generator) resolveVtables() {
	done := make(map[*ClassInfo]bool)
	var register func(ci *ClassInfo)
	register = func(ci *ClassInfo) {
		if done[ci] {
			return
		}
		done[ci] = true
		if ci.Super != nil {
			register(ci.Super)
			copy(ci.slotFunc, ci.Super.slotFunc) // own methods overwrite their slots below
		}
		g.registerClassMethodBodies(ci)
	}
	for _, ci := range g.classByAST {
		register(ci)
	}
	for _, ci := range g.classByAST {
		g.emitClassVtableGlobal(ci)
	}
	for _, ci := range g.classByAST {
		for _, e := range ci.Implements {
			e.global = g.emitInterfaceVtableGlobal(ci, e.iface)
		}
	}
}

// typeWithSubst resolves a type annotation with an instantiation's
// type-parameter substitution: a bare name matching a parameter yields
// its argument, everything else resolves normally.
func (g *Generator) typeWithSubst(ta ast.TypeAnnotation, subst map[string]types.Type) types.Type {
	if named, ok := ta.(*ast.NamedTypeAnnotation); ok {
		if t, ok := subst[named.Name]; ok {
			return t
		}
	}
	return typeFromAnnotationBestEffort(ta, g.classByName, g.interfaceByName)
}

func (g *Generator) emitClassVtableGlobal(ci *ClassInfo) {
	init := []byte{}
	for _, fi := range ci.slotFunc {
		init = append(init, opRefFunc)
		init = append(init, leb(fi)...)
	}
	init = append(init, gcPrefix, gcStructNew)
	init = append(init, leb(ci.VtableStructType)...)
	ci.VtableGlobal = g.em.AddGlobal(wasm.ValueTypeAnyRef, false, init)
}

func (g *Generator) emitInterfaceVtableGlobal(ci *ClassInfo, ii *InterfaceInfo) uint32 {
	var init []byte
	for _, slot := range ii.MethodSlots {
		ciSlot := indexOf(ci.MethodSlots, slot)
		var fi uint32
		if ciSlot >= 0 {
			fi = ci.slotFunc[ciSlot]
		}
		init = append(init, opRefFunc)
		init = append(init, leb(fi)...)
	}
	init = append(init, gcPrefix, gcStructNew)
	init = append(init, leb(ii.VtableStructType)...)
	return g.em.AddGlobal(wasm.ValueTypeAnyRef, false, init)
}

// classInfoOf resolves t's ClassInfo when t is (or narrows to) a class
// type, or nil otherwise — the common lookup method-call and field-access
// lowering needs to find a receiver's struct/vtable layout.
func (g *Generator) classInfoOf(t types.Type) *ClassInfo {
	if t.Kind != types.KindClass {
		return nil
	}
	return g.classes[t.Class]
}

// interfaceInfoOf is classInfoOf's interface-side counterpart, keyed by
// instantiation; an instantiation first named by an annotation (rather
// than an implements clause) registers lazily.
func (g *Generator) interfaceInfoOf(t types.Type) *InterfaceInfo {
	if t.Kind != types.KindInterface {
		return nil
	}
	if ii, ok := g.interfaces[instKey(t.Interface, t.TypeArgs)]; ok {
		return ii
	}
	if astDecl, ok := g.interfaceASTByName[t.Interface.Name]; ok {
		return g.registerInterface(astDecl, t.TypeArgs)
	}
	return nil
}

func leb(v uint32) []byte { return binary.EncodeUint32(v) }
