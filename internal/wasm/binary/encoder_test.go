package binary

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wgc-lang/wgc/internal/wasm"
)

func TestEmitter_EmptyModule(t *testing.T) {
	e := NewEmitter()
	require.Equal(t, append([]byte{0x00, 0x61, 0x73, 0x6d}, 0x01, 0x00, 0x00, 0x00), e.ToBytes())
}

func TestEmitter_AddTypeDeduplicates(t *testing.T) {
	e := NewEmitter()
	i1 := e.AddType([]wasm.ValueType{wasm.ValueTypeI32}, []wasm.ValueType{wasm.ValueTypeI32})
	i2 := e.AddType([]wasm.ValueType{wasm.ValueTypeI32}, []wasm.ValueType{wasm.ValueTypeI32})
	require.Equal(t, i1, i2)
	require.Len(t, e.Module().Types, 1)

	i3 := e.AddType([]wasm.ValueType{wasm.ValueTypeI64}, []wasm.ValueType{wasm.ValueTypeI32})
	require.NotEqual(t, i1, i3)
}

func TestEmitter_AddStructTypeNeverDeduplicates(t *testing.T) {
	e := NewEmitter()
	fields := []wasm.StructField{{Type: wasm.StorageType{Value: wasm.ValueTypeI32}, Mutable: false}}
	i1 := e.AddStructType(fields)
	i2 := e.AddStructType(fields)
	require.NotEqual(t, i1, i2, "each class's struct type must keep a distinct nominal identity (spec.md §3.6 invariant 6)")
}

func TestEmitter_FunctionAndCode(t *testing.T) {
	e := NewEmitter()
	ty := e.AddType([]wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, []wasm.ValueType{wasm.ValueTypeI32})
	fn := e.AddFunction(ty)
	e.AddCode(fn, nil, []byte{0x20, 0x00, 0x20, 0x01, 0x6a}) // local.get 0; local.get 1; i32.add
	e.AddExport("add", wasm.ExportKindFunc, fn)

	out := e.ToBytes()
	require.Equal(t, []byte{0x00, 0x61, 0x73, 0x6d}, out[:4])
	require.Equal(t, []byte{0x01, 0x00, 0x00, 0x00}, out[4:8])
	// Every populated section must appear, each starting with its id byte.
	var ids []byte
	for rest := out[8:]; len(rest) > 0; {
		size, n, err := LoadUint32(rest[1:])
		require.NoError(t, err)
		ids = append(ids, rest[0])
		rest = rest[1+int(n)+int(size):]
	}
	require.Equal(t, []byte{sectionIDType, sectionIDFunction, sectionIDExport, sectionIDCode}, ids)
}

func TestEmitter_ImportsPrecedeLocalFunctions(t *testing.T) {
	e := NewEmitter()
	ty := e.AddType(nil, nil)
	impIdx := e.AddImport(wasm.Import{Module: "std", Name: "log", Kind: wasm.ImportKindFunc, FuncType: ty})
	require.Equal(t, uint32(0), impIdx)

	localIdx := e.AddFunction(ty)
	require.Equal(t, uint32(1), localIdx, "local function indices continue after imported functions (spec.md §4.2)")
}

func TestEmitter_Globals(t *testing.T) {
	e := NewEmitter()
	g := e.AddGlobal(wasm.ValueTypeI32, true, []byte{0x41, 0x2a}) // i32.const 42
	require.Equal(t, uint32(0), g)
	require.Len(t, e.Module().Globals, 1)
	require.True(t, e.Module().Globals[0].Mutable)
}

func TestEmitter_SetStart(t *testing.T) {
	e := NewEmitter()
	ty := e.AddType(nil, nil)
	fn := e.AddFunction(ty)
	e.AddCode(fn, nil, nil)
	e.SetStart(fn)
	require.NotNil(t, e.Module().Start)
	require.Equal(t, fn, *e.Module().Start)

	out := e.ToBytes()
	require.Contains(t, string(out), string([]byte{sectionIDStart}))
}

func TestEmitter_NameSectionOmittedWhenEmpty(t *testing.T) {
	e := NewEmitter()
	ty := e.AddType(nil, nil)
	fn := e.AddFunction(ty)
	e.AddCode(fn, nil, nil)
	out := e.ToBytes()
	require.NotContains(t, string(out), "name")
}

func TestEmitter_NameSectionPopulated(t *testing.T) {
	e := NewEmitter()
	ty := e.AddType(nil, nil)
	fn := e.AddFunction(ty)
	e.AddCode(fn, nil, nil)
	e.SetFunctionName(fn, "run")
	out := e.ToBytes()
	require.Contains(t, string(out), "name")
	require.Contains(t, string(out), "run")
}

func TestEncodeValType_GCReference(t *testing.T) {
	got := encodeValType(0, &wasm.RefType{TypeIndex: 5, Nullable: true})
	require.Equal(t, byte(0x63), got[0])

	got = encodeValType(0, &wasm.RefType{TypeIndex: 5, Nullable: false})
	require.Equal(t, byte(0x64), got[0])
}

func TestEncodeLocals_RunLengthEncoded(t *testing.T) {
	locals := []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32, wasm.ValueTypeF64}
	out := encodeLocals(locals)
	// 2 runs: (2 x i32), (1 x f64)
	require.Equal(t, EncodeUint32(2), out[:1])
}
