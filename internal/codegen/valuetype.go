package codegen

import (
	"github.com/wgc-lang/wgc/internal/ast"
	"github.com/wgc-lang/wgc/internal/types"
	"github.com/wgc-lang/wgc/internal/wasm"
)

// valueTypeOf maps a checker types.Type to the single WASM value type it
// occupies on the stack/in a local (spec.md §3.3 -> §4.1 lowering).
// Every reference kind maps to anyref here, in both passes; the concrete
// (ref $t) form is used only for struct field storage (see refTypeOf).
func (g *Generator) valueTypeOf(t types.Type) wasm.ValueType {
	switch t.Kind {
	case types.KindNumber:
		switch t.Width {
		case types.WidthI64:
			return wasm.ValueTypeI64
		case types.WidthF32:
			return wasm.ValueTypeF32
		case types.WidthF64:
			return wasm.ValueTypeF64
		default: // i32, u32
			return wasm.ValueTypeI32
		}
	case types.KindBoolean:
		return wasm.ValueTypeI32
	case types.KindVoid, types.KindNever:
		return wasm.ValueTypeI32 // never occupies no slot in practice; callers must not rely on this
	default:
		return wasm.ValueTypeAnyRef
	}
}

// valueTypeOf (package-level helper used during pass-1 registration,
// before a *Generator exists for a given function's signature) mirrors
// the method above for primitive kinds only; registerFunc/registerGlobal
// call the method form once the Generator can resolve class refs.
func valueTypeOf(t types.Type) wasm.ValueType {
	switch t.Kind {
	case types.KindNumber:
		switch t.Width {
		case types.WidthI64:
			return wasm.ValueTypeI64
		case types.WidthF32:
			return wasm.ValueTypeF32
		case types.WidthF64:
			return wasm.ValueTypeF64
		default:
			return wasm.ValueTypeI32
		}
	case types.KindBoolean:
		return wasm.ValueTypeI32
	default:
		return wasm.ValueTypeAnyRef
	}
}

// refTypeOf returns the concrete (ref $t)/(ref null $t) encoding for
// reference kinds whose class/interface/array registration has already
// happened, or nil when t is a primitive or an unregistered reference
// (falls back to anyref via valueTypeOf).
func (g *Generator) refTypeOf(t types.Type) *wasm.RefType {
	switch t.Kind {
	case types.KindClass:
		if ci := g.classes[t.Class]; ci != nil {
			return &wasm.RefType{TypeIndex: ci.StructType, Nullable: true}
		}
	case types.KindArray:
		return &wasm.RefType{TypeIndex: g.arrayTypeFor(*t.Elem), Nullable: true}
	case types.KindString:
		return &wasm.RefType{TypeIndex: g.stringStructType, Nullable: true}
	case types.KindInterface:
		if ii := g.interfaceInfoOf(t); ii != nil {
			return &wasm.RefType{TypeIndex: ii.CarrierStructType, Nullable: true}
		}
	}
	return nil
}

// resultValueTypes returns the WASM result signature for a return type:
// a single slot for everything except an unboxed tuple, which spreads
// across N result slots (spec.md §4.6.6 multi-value returns), and zero
// slots for void/never.
func resultValueTypes(t types.Type) []wasm.ValueType {
	switch t.Kind {
	case types.KindVoid, types.KindNever:
		return nil
	case types.KindUnboxedTuple:
		out := make([]wasm.ValueType, len(t.Elements))
		for i, e := range t.Elements {
			out[i] = valueTypeOf(e)
		}
		return out
	default:
		return []wasm.ValueType{valueTypeOf(t)}
	}
}

func (g *Generator) resultValueTypes(t types.Type) []wasm.ValueType {
	switch t.Kind {
	case types.KindVoid, types.KindNever:
		return nil
	case types.KindUnboxedTuple:
		out := make([]wasm.ValueType, len(t.Elements))
		for i, e := range t.Elements {
			out[i] = g.valueTypeOf(e)
		}
		return out
	default:
		return []wasm.ValueType{g.valueTypeOf(t)}
	}
}

// zeroConst returns the constant-expression bytes initializing a global
// of value type vt to its zero value (i32/i64/f32/f64 0, or ref.null for
// reference types) — used for global pre-declaration (actual value
// computed by the start function for non-constant initializers, spec.md
// §4.6.1 step 5).
func zeroConst(vt wasm.ValueType) []byte {
	switch vt {
	case wasm.ValueTypeI32:
		return []byte{opI32Const, 0x00}
	case wasm.ValueTypeI64:
		return []byte{opI64Const, 0x00}
	case wasm.ValueTypeF32:
		return []byte{opF32Const, 0x00, 0x00, 0x00, 0x00}
	case wasm.ValueTypeF64:
		return []byte{opF64Const, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	default:
		return []byte{opRefNull, 0x6e} // ref.null any
	}
}

// typeFromAnnotationBestEffort resolves a syntactic type annotation to a
// types.Type using only codegen's own class/interface registries —
// codegen runs after internal/check has already rejected any program
// whose annotations don't resolve, so this never needs to produce
// diagnostics; it exists because codegen's registration pass (class
// field/method signatures, function parameter types) needs concrete
// types.Type values and does not have access to the checker's
// resolveTypeAnnotation (an unexported method of a different package).
func typeFromAnnotationBestEffort(ta ast.TypeAnnotation, classByName map[string]*ClassInfo, interfaceByName map[string]*InterfaceInfo) types.Type {
	switch t := ta.(type) {
	case *ast.NamedTypeAnnotation:
		switch t.Name {
		case "i32":
			return types.Number(types.WidthI32)
		case "u32":
			return types.Number(types.WidthU32)
		case "i64":
			return types.Number(types.WidthI64)
		case "f32":
			return types.Number(types.WidthF32)
		case "f64":
			return types.Number(types.WidthF64)
		case "boolean":
			return types.Boolean
		case "string":
			return types.String
		case "void":
			return types.Void
		case "never":
			return types.Never
		case "null":
			return types.Null
		case "any", "this":
			return types.Any
		}
		if ci, ok := classByName[t.Name]; ok {
			return types.Class(ci.TypesDecl)
		}
		if ii, ok := interfaceByName[t.Name]; ok {
			return types.Interface(ii.TypesDecl)
		}
		return types.Any
	case *ast.GenericTypeAnnotation:
		baseName, _ := simpleAnnotationName(t.Base)
		if baseName == "Array" && len(t.Args) == 1 {
			return types.Array(typeFromAnnotationBestEffort(t.Args[0], classByName, interfaceByName))
		}
		if ci, ok := classByName[baseName]; ok {
			args := make([]types.Type, len(t.Args))
			for i, a := range t.Args {
				args[i] = typeFromAnnotationBestEffort(a, classByName, interfaceByName)
			}
			return types.Class(ci.TypesDecl, args...)
		}
		if ii, ok := interfaceByName[baseName]; ok {
			args := make([]types.Type, len(t.Args))
			for i, a := range t.Args {
				args[i] = typeFromAnnotationBestEffort(a, classByName, interfaceByName)
			}
			return types.Interface(ii.TypesDecl, args...)
		}
		return types.Any
	case *ast.FuncTypeAnnotation:
		params := make([]types.Type, len(t.Params))
		for i, p := range t.Params {
			params[i] = typeFromAnnotationBestEffort(p, classByName, interfaceByName)
		}
		return types.Function(nil, params, typeFromAnnotationBestEffort(t.Return, classByName, interfaceByName))
	case *ast.TupleTypeAnnotation:
		elems := make([]types.Type, len(t.Elements))
		for i, e := range t.Elements {
			elems[i] = typeFromAnnotationBestEffort(e, classByName, interfaceByName)
		}
		if t.Unboxed {
			return types.UnboxedTuple(elems...)
		}
		return types.Tuple(elems...)
	case *ast.RecordTypeAnnotation:
		fields := make([]types.RecordField, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = types.RecordField{Name: f.Name, Type: typeFromAnnotationBestEffort(f.Type, classByName, interfaceByName)}
		}
		return types.Record(fields...)
	case *ast.UnionTypeAnnotation:
		members := make([]types.Type, len(t.Members))
		for i, m := range t.Members {
			members[i] = typeFromAnnotationBestEffort(m, classByName, interfaceByName)
		}
		return types.Union(members...)
	default:
		return types.Any
	}
}

func simpleAnnotationName(t ast.TypeAnnotation) (string, bool) {
	switch tt := t.(type) {
	case *ast.NamedTypeAnnotation:
		return tt.Name, true
	case *ast.GenericTypeAnnotation:
		return simpleAnnotationName(tt.Base)
	default:
		return "", false
	}
}
