package codegen

import (
	"math"

	"github.com/wgc-lang/wgc/internal/ast"
	"github.com/wgc-lang/wgc/internal/types"
	"github.com/wgc-lang/wgc/internal/wasm"
	"github.com/wgc-lang/wgc/internal/wasm/binary"
)

// funcGen lowers one function-like body (free function, method,
// constructor, closure, or the synthesized start function) to WASM
// bytes. It owns the local variable allocator and the lexical scope
// stack used to resolve names to local indices, params, fields, captures
// or module globals (spec.md §3.5 "Codegen Context").
type funcGen struct {
	g   *Generator
	buf []byte

	paramCount uint32
	locals     []wasm.ValueType // additional locals beyond params, in allocation order
	scopes     []map[string]localBinding

	selfClass *ClassInfo  // non-nil while lowering a method/ctor body
	env       *closureEnv // non-nil while lowering a closure body

	retType types.Type

	depth     int // number of currently-open block/loop/if constructs
	loopStack []loopCtx
}

type localBinding struct {
	index uint32
	ty    types.Type
}

type loopCtx struct {
	breakDepth    int // entryDepth of the enclosing `block` (break target)
	continueDepth int // entryDepth of the `loop` itself (continue target)
}

func newFuncGen(g *Generator, params []ast.Param, ret types.Type, selfClass *ClassInfo) *funcGen {
	fg := &funcGen{g: g, selfClass: selfClass, retType: ret}
	fg.pushScope()
	var idx uint32
	if selfClass != nil {
		fg.scopes[0]["this"] = localBinding{index: idx, ty: types.Class(selfClass.TypesDecl)}
		idx++
	}
	for _, p := range params {
		fg.scopes[0][p.Name] = localBinding{index: idx, ty: fg.g.paramTypeOf(p)}
		idx++
	}
	fg.paramCount = idx
	return fg
}

func newClosureFuncGen(g *Generator, params []ast.Param, ret types.Type, env *closureEnv) *funcGen {
	fg := &funcGen{g: g, env: env, retType: ret}
	fg.pushScope()
	idx := uint32(1) // local 0 is the environment struct reference
	for _, p := range params {
		fg.scopes[0][p.Name] = localBinding{index: idx, ty: fg.g.paramTypeOf(p)}
		idx++
	}
	fg.paramCount = idx
	return fg
}

func (fg *funcGen) pushScope() { fg.scopes = append(fg.scopes, make(map[string]localBinding)) }
func (fg *funcGen) popScope()  { fg.scopes = fg.scopes[:len(fg.scopes)-1] }

func (fg *funcGen) lookup(name string) (localBinding, bool) {
	for i := len(fg.scopes) - 1; i >= 0; i-- {
		if b, ok := fg.scopes[i][name]; ok {
			return b, true
		}
	}
	return localBinding{}, false
}

func (fg *funcGen) declareLocal(name string, ty types.Type) uint32 {
	idx := fg.paramCount + uint32(len(fg.locals))
	fg.locals = append(fg.locals, fg.g.valueTypeOf(ty))
	fg.scopes[len(fg.scopes)-1][name] = localBinding{index: idx, ty: ty}
	return idx
}

// newTemp allocates an unnamed local of ty's value type, for intermediate
// results codegen needs to stash mid-expression (e.g. the scrutinee of a
// match, or an array reference during a bounds check).
func (fg *funcGen) newTemp(ty types.Type) uint32 {
	idx := fg.paramCount + uint32(len(fg.locals))
	fg.locals = append(fg.locals, fg.g.valueTypeOf(ty))
	return idx
}

// ---------------------------------------------------------------------
// Raw byte emission
// ---------------------------------------------------------------------

func (fg *funcGen) emitByte(b byte)       { fg.buf = append(fg.buf, b) }
func (fg *funcGen) emitBytes(b ...byte)   { fg.buf = append(fg.buf, b...) }
func (fg *funcGen) emitU32(v uint32)      { fg.buf = append(fg.buf, binary.EncodeUint32(v)...) }
func (fg *funcGen) emitI32(v int32)       { fg.buf = append(fg.buf, binary.EncodeInt32(v)...) }
func (fg *funcGen) emitI64(v int64)       { fg.buf = append(fg.buf, binary.EncodeInt64(v)...) }

func (fg *funcGen) emitF32(v float32) {
	bits := math.Float32bits(v)
	fg.buf = append(fg.buf, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
}

func (fg *funcGen) emitF64(v float64) {
	bits := math.Float64bits(v)
	for i := 0; i < 8; i++ {
		fg.buf = append(fg.buf, byte(bits>>(8*i)))
	}
}

// ---------------------------------------------------------------------
// Block-nesting / branch-depth bookkeeping (spec.md §4.6 control flow)
// ---------------------------------------------------------------------

// openBlock emits `block` (or `loop`) with a fixed void or value-type
// signature and returns the entry depth later used to compute a `br`'s
// relative-depth operand.
func (fg *funcGen) openBlock(opcode byte, blockType byte) int {
	entry := fg.depth
	fg.emitByte(opcode)
	fg.emitByte(blockType)
	fg.depth++
	return entry
}

func (fg *funcGen) closeBlock() {
	fg.depth--
	fg.emitByte(opEnd)
}

// branchTo emits `br`/`br_if` targeting the construct opened at
// entryDepth, computing WASM's relative-depth operand from the current
// nesting depth.
func (fg *funcGen) branchTo(opcode byte, entryDepth int) {
	fg.emitByte(opcode)
	fg.emitU32(uint32(fg.depth - entryDepth - 1))
}

const blockTypeVoid = 0x40

// generateBody drains one queued bodyJob: allocates a funcGen against
// the already-registered function index, lowers the statements/expr,
// and hands the finished bytes + local declarations to the emitter
// (spec.md §4.6.1 step 3).
func (g *Generator) generateBody(job bodyJob) error {
	var fg *funcGen
	if job.env != nil {
		fg = newClosureFuncGen(g, job.params, job.ret, job.env)
	} else {
		fg = newFuncGen(g, job.params, job.ret, job.selfClass)
	}

	if job.isCtor {
		if err := fg.lowerCtor(job); err != nil {
			return err
		}
	} else if job.body != nil {
		fg.lowerFunctionBody(job.body)
	} else if job.bodyExpr != nil {
		if tl, ok := job.bodyExpr.(*ast.TupleLit); ok && job.ret.Kind == types.KindUnboxedTuple {
			fg.lowerUnboxedTupleLit(tl, job.ret)
		} else {
			fg.lowerExpr(job.bodyExpr)
		}
	}

	g.em.AddCode(job.funcIndex, fg.locals, fg.buf)
	return nil
}
