// Package wasm defines the in-memory representation of a WASM-GC module
// that internal/codegen builds and internal/wasm/binary serializes.
// Field names and the section/value-type vocabulary follow the
// teacher's own internal/wasm package (see ValueType, FunctionType,
// Module below), extended with the GC struct/array reference types and
// multi-value function results the source language's classes and tuple
// returns need (spec.md §4.1, §4.6).
package wasm

// ValueType is a byte-sized value type tag, the same representation the
// teacher uses (internal/wasm defines ValueType as a byte alias over
// fixed constants for i32/i64/f32/f64/funcref/externref).
type ValueType byte

const (
	ValueTypeI32 ValueType = 0x7F
	ValueTypeI64 ValueType = 0x7E
	ValueTypeF32 ValueType = 0x7D
	ValueTypeF64 ValueType = 0x7C

	// GC reference type tags (WASM-GC MVP encoding).
	ValueTypeFuncRef ValueType = 0x70
	ValueTypeExternRef ValueType = 0x6F
	ValueTypeAnyRef  ValueType = 0x6E
	ValueTypeNullRef ValueType = 0x71
	// RefNullConcrete is not a single byte value — struct/array refs are
	// encoded as (ref null $typeidx), a multi-byte form the encoder
	// handles specially rather than through this table (see
	// internal/wasm/binary's encodeValType).
)

// RefType is a reference to a concrete GC type, used for (ref $t) and
// (ref null $t) value types that `ValueType` alone cannot express.
type RefType struct {
	TypeIndex uint32
	Nullable  bool
}

// StorageType distinguishes a packed field (i8/i16; `string`'s backing
// array uses packed i8 bytes) from a full ValueType field, for GC struct/array
// field declarations (spec.md §4.6.7).
type StorageType struct {
	Packed    bool
	PackedTag byte // 0x7A = i8, 0x79 = i16, meaningful only when Packed
	Value     ValueType
	Ref       *RefType // non-nil when the field holds a GC reference
}

// FunctionType is a signature: zero or more parameter value types and
// zero or more result value types — WASM's multi-value proposal lets
// Results hold more than one entry, used here to compile the source
// language's unboxed tuple returns without boxing (spec.md §4.6.6).
type FunctionType struct {
	Params  []ValueType
	Results []ValueType
}

// StructField is one field of a GC struct type.
type StructField struct {
	Type    StorageType
	Mutable bool
}

// StructType declares a GC struct type: classes compile to one of
// these, with the vtable reference as field 0 (spec.md §4.6.2).
type StructType struct {
	Fields []StructField
}

// ArrayType declares a GC array type: the source language's Array<T> and
// the packed-byte backing of `string` both compile to one of these.
type ArrayType struct {
	Elem    StorageType
	Mutable bool
}

// TypeSectionEntry is one entry of the type section, tagging which kind
// of type definition it holds (func, struct, or array — the GC
// extensions to the original func-only type section).
type TypeSectionEntry struct {
	Func   *FunctionType
	Struct *StructType
	Array  *ArrayType
}

// Import describes one imported function, memory, global, or table.
type Import struct {
	Module string
	Name   string

	// Exactly one of the following is set, selected by Kind.
	Kind       ImportKind
	FuncType   uint32 // index into the type section
	MemMin     uint32
	MemMax     uint32
	HasMemMax  bool
	GlobalType ValueType
	GlobalMut  bool
	TableMin   uint32
}

type ImportKind byte

const (
	ImportKindFunc ImportKind = iota
	ImportKindMemory
	ImportKindGlobal
	ImportKindTable
)

// Function is one entry of the function+code sections: TypeIndex
// indexes the type section, Body is already-encoded instruction bytes
// (internal/codegen emits these via the wasm/binary Emitter), Locals
// describes the additional (beyond parameters) local slots the body
// declares.
type Function struct {
	TypeIndex uint32
	Locals    []ValueType
	Body      []byte
	Name      string // not encoded; the name section is written from Module.FunctionNames
}

// Global is one module-level global.
type Global struct {
	Type    ValueType
	Mutable bool
	Init    []byte // encoded constant-expression body
}

// Table declares a funcref table. The code generator emits none: the
// source language's vtables are GC struct globals (spec.md §4.6.2).
type Table struct {
	Min uint32
	Max uint32
	HasMax bool
}

// Element populates a table with function indices at a given offset;
// the code generator emits none.
type Element struct {
	TableIndex uint32
	Offset     []byte // encoded constant-expression body
	FuncIndices []uint32
}

type ExportKind byte

const (
	ExportKindFunc ExportKind = iota
	ExportKindMemory
	ExportKindGlobal
	ExportKindTable
)

// Export is one entry of the export section.
type Export struct {
	Name  string
	Kind  ExportKind
	Index uint32
}

// Data initializes a region of linear memory. The code generator emits
// none: string bytes live in GC arrays built at runtime (spec.md §4.6.7).
type Data struct {
	MemoryIndex uint32
	Offset      []byte
	Bytes       []byte
}

// Module is the complete in-memory WASM-GC module, laid out the same
// section-by-section shape as the teacher's own decoded
// internal/wasm.Module, but built by the code generator rather than
// decoded from bytes.
type Module struct {
	Types   []TypeSectionEntry
	Imports []Import
	Funcs   []Function // indices continue after imported functions
	Tables  []Table
	Memories []Memory
	Globals []Global
	Exports []Export
	Start   *uint32 // function index of the start function, if any
	Elements []Element
	Data    []Data

	// FunctionNames populates the custom "name" section (spec.md's
	// supplemented feature: function names surface in host stack traces
	// and debuggers) — separate from Function.Name so binary encoding
	// can skip it entirely when empty.
	FunctionNames map[uint32]string
}

// Memory declares one linear memory.
type Memory struct {
	Min    uint32
	Max    uint32
	HasMax bool
}
