// Package codegen lowers a checked AST (internal/ast plus the semantic
// side-tables in internal/check.Context) into a wasm.Module ready for
// internal/wasm/binary to serialize.
//
// The pipeline runs in the same two-pass shape the teacher's
// internal/engine/wazevo uses to go from wasm bytecode to machine code
// (frontend lowers to SSA in one pass over every function, backend
// lowers SSA to machine code in a second pass once every function's
// signature is known) — here, pass 1 registers every class struct type,
// vtable layout, and function signature (so forward references resolve
// regardless of declaration order, spec.md §3.6 invariant 3), and pass 2
// generates every function body against that already-frozen registry
// (spec.md §3.7 "ClassInfo ... frozen before pass 2").
package codegen

import (
	"fmt"

	"github.com/wgc-lang/wgc/internal/ast"
	"github.com/wgc-lang/wgc/internal/check"
	"github.com/wgc-lang/wgc/internal/types"
	"github.com/wgc-lang/wgc/internal/wasm"
	"github.com/wgc-lang/wgc/internal/wasm/binary"
)

// Generator holds state threaded across both passes: the emitter being
// built, the class/interface registries, and pending body generators
// deferred until every registration completes (spec.md §3.5 "Codegen
// Context").
type Generator struct {
	ctx *check.Context
	em  *binary.Emitter

	classes map[*types.ClassDecl]*ClassInfo

	// interfaces is keyed by instantiation (declaration identity plus
	// type-argument key): each distinct `I<Args>` an implements clause
	// or annotation names gets its own monomorphised InterfaceInfo
	// (spec.md §4.5.7).
	interfaces map[string]*InterfaceInfo

	classByAST map[*ast.ClassDecl]*ClassInfo

	classASTByName     map[string]*ast.ClassDecl
	interfaceASTByName map[string]*ast.InterfaceDecl

	// classByName/interfaceByName mirror classASTByName/interfaceASTByName
	// once a ClassInfo/InterfaceInfo exists, for typeFromAnnotationBestEffort
	// which only needs the registry entry, not the raw AST.
	classByName     map[string]*ClassInfo
	interfaceByName map[string]*InterfaceInfo

	funcTypeIdx map[string]uint32 // free-function name -> type index
	funcIdx     map[string]uint32 // free-function name -> func index
	declareIdx  map[string]uint32 // declare-function name -> imported func index

	staticMethodFunc map[string]uint32 // "ClassName.method" -> func index

	// pendingBodies is populated during pass 1 (one entry per function
	// needing a body) and drained during pass 2.
	pendingBodies []bodyJob

	// helperFuncs queues runtime helper bodies (string concat, structural
	// equality, hashing, integer-to-string, power, array slicing) requested during
	// pass 2 lowering and emitted once, deduplicated by name (spec.md
	// §4.6.1 step 4).
	helperFuncs   map[string]uint32
	helperPending []helperJob

	// Runtime GC types shared by every module regardless of source
	// content (spec.md §4.6.7).
	stringByteArrayType uint32 // packed-i8 array backing a string's UTF-8 bytes
	stringStructType    uint32 // {bytes: array ref, length: i32}
	arrayStructCache    map[string]uint32 // element-type key -> GC array type index (growable array backing)
	rangeStructCache    map[types.RangeKind]uint32
	tupleStructCache    map[string]uint32 // element-type key -> boxed tuple struct type
	recordStructCache   map[string]uint32 // sorted field key -> record struct type
	carrierStructCache  map[uint32]uint32 // closure fn-type index -> {fn, env} carrier struct type
	wrapperFunc         map[string]uint32 // top-level function name -> env-convention wrapper func index

	enumASTByName map[string]*ast.EnumDecl
	symbolIDs     map[string]int32 // symbol name -> interned i31 id, assigned in first-seen order

	// globalInits collects non-constant global initializers to run from
	// the synthesized start function, in declaration order (spec.md
	// §4.6.1 step 5 / SPEC_FULL.md §5 "start function synthesis").
	globalInits []globalInit

	globalByName map[string]uint32
	globalType   map[string]types.Type

	exports []ast.Decl
}

type globalInit struct {
	globalIndex uint32
	expr        ast.Expr
	ty          types.Type
}

type bodyJob struct {
	funcIndex uint32
	params    []ast.Param
	ret       types.Type
	body      *ast.Block
	bodyExpr  ast.Expr // set instead of body for expression-bodied arrows
	selfClass *ClassInfo
	isCtor    bool
	name      string
	env       *closureEnv // non-nil for a closure body (spec.md §4.6.4)
}

// closureEnv describes the generated environment struct backing one
// closure: one field per captured name, passed as the closure function's
// implicit first parameter (spec.md §4.6.4).
type closureEnv struct {
	structType uint32
	names      []string
	types      []types.Type
}

type helperJob struct {
	name       string
	gen        func(fg *funcGen)
	funcIndex  uint32
	paramCount uint32
}

// Generate runs both passes over mod and returns the finished wasm
// bytes, or an error if codegen hits an internal inconsistency (not a
// source error — those are caught by internal/check before codegen
// ever runs).
func Generate(mod *ast.Module, ctx *check.Context) ([]byte, error) {
	g := &Generator{
		ctx:                ctx,
		em:                 binary.NewEmitter(),
		classes:            make(map[*types.ClassDecl]*ClassInfo),
		interfaces:         make(map[string]*InterfaceInfo),
		classByAST:         make(map[*ast.ClassDecl]*ClassInfo),
		classASTByName:     make(map[string]*ast.ClassDecl),
		interfaceASTByName: make(map[string]*ast.InterfaceDecl),
		classByName:        make(map[string]*ClassInfo),
		interfaceByName:    make(map[string]*InterfaceInfo),
		funcTypeIdx:        make(map[string]uint32),
		funcIdx:            make(map[string]uint32),
		declareIdx:         make(map[string]uint32),
		staticMethodFunc:   make(map[string]uint32),
		helperFuncs:        make(map[string]uint32),
		arrayStructCache:   make(map[string]uint32),
		rangeStructCache:   make(map[types.RangeKind]uint32),
		tupleStructCache:   make(map[string]uint32),
		recordStructCache:  make(map[string]uint32),
		carrierStructCache: make(map[uint32]uint32),
		wrapperFunc:        make(map[string]uint32),
		enumASTByName:      make(map[string]*ast.EnumDecl),
		symbolIDs:          make(map[string]int32),
		globalByName:       make(map[string]uint32),
		globalType:         make(map[string]types.Type),
	}
	g.registerRuntimeTypes()

	// Collect every top-level name before registering anything so that
	// registerClass's superclass/interface lookups can forward-reference
	// regardless of textual order (spec.md §3.6 invariant 3).
	for _, s := range mod.Decls {
		d := unwrap(s)
		switch dd := d.(type) {
		case *ast.ClassDecl:
			g.classASTByName[dd.Name] = dd
		case *ast.InterfaceDecl:
			g.interfaceASTByName[dd.Name] = dd
		case *ast.EnumDecl:
			g.enumASTByName[dd.Name] = dd
		}
		if isExported(s) && d != nil {
			g.exports = append(g.exports, d)
		}
	}

	for _, s := range mod.Decls {
		g.registerTop(unwrap(s))
	}
	g.resolveVtables()

	// Now that every ClassInfo/InterfaceInfo exists, populate the
	// name-keyed registries typeFromAnnotationBestEffort consults.
	for name, decl := range g.classASTByName {
		g.classByName[name] = g.classByAST[decl]
	}
	for name, decl := range g.interfaceASTByName {
		g.interfaceByName[name] = g.registerInterface(decl, nil)
	}

	// Index-based, not range-based: lowering a closure expression appends
	// a fresh entry to g.pendingBodies mid-loop (spec.md §4.6.4), and this
	// must keep draining until no new bodies are queued.
	for i := 0; i < len(g.pendingBodies); i++ {
		if err := g.generateBody(g.pendingBodies[i]); err != nil {
			return nil, err
		}
	}
	// The start function's initializer expressions may request helpers,
	// so it is generated before the helper queue drains.
	g.emitStartFunction()
	g.emitPendingHelpers()
	g.emitExports()

	return g.em.ToBytes(), nil
}

func unwrap(s ast.Stmt) ast.Decl {
	switch d := s.(type) {
	case *ast.ExportStmt:
		return d.Decl
	case ast.Decl:
		return d
	default:
		return nil
	}
}

func isExported(s ast.Stmt) bool {
	_, ok := s.(*ast.ExportStmt)
	return ok
}

// registerRuntimeTypes allocates the small set of GC types every module
// needs regardless of source content: the packed-i8 array and struct
// backing `string` (spec.md §4.6.7).
func (g *Generator) registerRuntimeTypes() {
	g.stringByteArrayType = g.em.AddArrayType(wasm.StorageType{Packed: true, PackedTag: 0x7A}, false)
	g.stringStructType = g.em.AddStructType([]wasm.StructField{
		{Type: wasm.StorageType{Ref: &wasm.RefType{TypeIndex: g.stringByteArrayType, Nullable: false}}},
		{Type: wasm.StorageType{Value: wasm.ValueTypeI32}},
	})
}

func (g *Generator) registerTop(d ast.Decl) {
	switch decl := d.(type) {
	case *ast.ClassDecl:
		g.registerClass(decl)
	case *ast.InterfaceDecl:
		g.registerInterface(decl, nil)
	case *ast.FuncDecl:
		g.registerFunc(decl)
	case *ast.DeclareFuncDecl:
		g.registerDeclareFunc(decl)
	case *ast.TypeAliasDecl, *ast.EnumDecl, *ast.MixinDecl, *ast.SymbolDecl:
		// no runtime representation of their own; classes/functions that
		// reference them resolve through internal/check's side-tables.
	case *ast.VarDecl:
		if fe, ok := decl.Init.(*ast.FuncExpr); ok {
			// A top-level `let name = (args) => body` is a plain function
			// declaration in all but syntax: register it as one so it is
			// directly callable (and exportable as a function export,
			// spec.md §4.6.9) rather than boxed into a closure value.
			g.registerArrowFunc(decl.Name, fe)
			return
		}
		g.registerGlobal(decl)
	}
}

func (g *Generator) registerGlobal(vd *ast.VarDecl) {
	ty := types.Any
	if vd.Init != nil {
		if t, ok := g.ctx.ExprTypes[vd.Init]; ok {
			ty = t
		}
	}
	vt := g.valueTypeOf(ty)
	idx := g.em.AddGlobal(vt, true, zeroConst(vt))
	if vd.Init != nil {
		g.globalInits = append(g.globalInits, globalInit{globalIndex: idx, expr: vd.Init, ty: ty})
	}
	g.globalByName[vd.Name] = idx
	g.globalType[vd.Name] = ty
}

// registerArrowFunc registers a top-level arrow-bound function under its
// binding name, with its signature taken from the checker's inferred
// function type (annotations on the arrow's parameters/return are
// already folded in there).
func (g *Generator) registerArrowFunc(name string, fe *ast.FuncExpr) {
	fnTy := g.ctx.ExprTypes[fe]
	retTy := types.Void
	if fnTy.Kind == types.KindFunction {
		retTy = *fnTy.Return
	} else if fe.ReturnType != nil {
		retTy = g.resolveReturnType(fe.ReturnType)
	}
	paramTypes := make([]wasm.ValueType, len(fe.Params))
	for i, p := range fe.Params {
		if fnTy.Kind == types.KindFunction && i < len(fnTy.Params) {
			paramTypes[i] = g.valueTypeOf(fnTy.Params[i])
		} else {
			paramTypes[i] = g.valueTypeOf(g.resolveParamType(p))
		}
	}
	typeIdx := g.em.AddType(paramTypes, g.resultValueTypes(retTy))
	funcIdx := g.em.AddFunction(typeIdx)
	g.em.SetFunctionName(funcIdx, name)
	g.funcIdx[name] = funcIdx
	g.funcTypeIdx[name] = typeIdx
	job := bodyJob{funcIndex: funcIdx, params: fe.Params, ret: retTy, name: name}
	if b, ok := fe.Body.(*ast.Block); ok {
		job.body = b
	} else if e, ok := fe.Body.(ast.Expr); ok {
		job.bodyExpr = e
	}
	g.pendingBodies = append(g.pendingBodies, job)
}

func (g *Generator) registerFunc(fd *ast.FuncDecl) {
	paramTypes := make([]wasm.ValueType, len(fd.Params))
	for i, p := range fd.Params {
		paramTypes[i] = g.valueTypeOf(g.resolveParamType(p))
	}
	retTy := g.resolveReturnType(fd.ReturnType)
	results := g.resultValueTypes(retTy)
	typeIdx := g.em.AddType(paramTypes, results)
	funcIdx := g.em.AddFunction(typeIdx)
	g.em.SetFunctionName(funcIdx, fd.Name)
	g.funcIdx[fd.Name] = funcIdx
	g.funcTypeIdx[fd.Name] = typeIdx
	g.pendingBodies = append(g.pendingBodies, bodyJob{
		funcIndex: funcIdx, params: fd.Params, ret: retTy, body: fd.Body, name: fd.Name,
	})
}

func (g *Generator) registerDeclareFunc(fd *ast.DeclareFuncDecl) {
	paramTypes := make([]wasm.ValueType, len(fd.Params))
	for i, p := range fd.Params {
		paramTypes[i] = g.valueTypeOf(g.resolveParamType(p))
	}
	retTy := g.resolveReturnType(fd.ReturnType)
	typeIdx := g.em.AddType(paramTypes, g.resultValueTypes(retTy))
	idx := g.em.AddImport(wasm.Import{Module: "host", Name: fd.Name, Kind: wasm.ImportKindFunc, FuncType: typeIdx})
	g.declareIdx[fd.Name] = idx
	g.funcIdx[fd.Name] = idx
}

// resolveParamType/resolveReturnType fall back to types.Any when the
// checker left no annotation (inferred), matching how internal/check
// itself treats an absent annotation as "resolve from context" rather
// than an error.
func (g *Generator) resolveParamType(p ast.Param) types.Type {
	if p.Type == nil {
		return types.Any
	}
	return typeFromAnnotationBestEffort(p.Type, g.classByName, g.interfaceByName)
}

func (g *Generator) resolveReturnType(t ast.TypeAnnotation) types.Type {
	if t == nil {
		return types.Void
	}
	return typeFromAnnotationBestEffort(t, g.classByName, g.interfaceByName)
}

func (g *Generator) emitStartFunction() {
	if len(g.globalInits) == 0 {
		return
	}
	fg := newFuncGen(g, nil, types.Void, nil)
	for _, gi := range g.globalInits {
		fg.lowerExpr(gi.expr)
		fg.emitByte(opGlobalSet)
		fg.emitU32(gi.globalIndex)
	}
	typeIdx := g.em.AddType(nil, nil)
	funcIdx := g.em.AddFunction(typeIdx)
	g.em.SetFunctionName(funcIdx, "$start")
	g.em.AddCode(funcIdx, fg.locals, fg.buf)
	g.em.SetStart(funcIdx)
}

// emitExports exports every `export`-marked top-level declaration under
// its source name (spec.md §4.6.9): functions as function exports,
// classes as their constructor function (which takes an already
// allocated instance as its first parameter; no allocating factory is
// exported), globals as WASM globals.
func (g *Generator) emitExports() {
	for _, d := range g.exports {
		switch decl := d.(type) {
		case *ast.FuncDecl:
			g.em.AddExport(decl.Name, wasm.ExportKindFunc, g.funcIdx[decl.Name])
		case *ast.ClassDecl:
			if ci, ok := g.classByAST[decl]; ok {
				g.em.AddExport(decl.Name, wasm.ExportKindFunc, ci.CtorFuncIdx)
			}
		case *ast.VarDecl:
			if _, isArrow := decl.Init.(*ast.FuncExpr); isArrow {
				g.em.AddExport(decl.Name, wasm.ExportKindFunc, g.funcIdx[decl.Name])
			} else if idx, ok := g.globalByName[decl.Name]; ok {
				g.em.AddExport(decl.Name, wasm.ExportKindGlobal, idx)
			}
		}
	}
}

func errorf(format string, args ...interface{}) error {
	return fmt.Errorf("codegen: "+format, args...)
}
