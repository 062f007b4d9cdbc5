package binary

import "github.com/wgc-lang/wgc/internal/wasm"

// encodeValType writes the byte encoding of t, widened to the
// multi-byte (ref null $idx) / (ref $idx) forms when t names a GC
// struct or array type rather than one of the fixed-width primitives.
func encodeValType(t wasm.ValueType, ref *wasm.RefType) []byte {
	if ref != nil {
		if ref.Nullable {
			out := []byte{0x63} // (ref null $t)
			out = append(out, EncodeInt32(int32(ref.TypeIndex))...)
			return out
		}
		out := []byte{0x64} // (ref $t)
		out = append(out, EncodeInt32(int32(ref.TypeIndex))...)
		return out
	}
	return []byte{byte(t)}
}

func encodeStorageType(s wasm.StorageType) []byte {
	if s.Packed {
		return []byte{s.PackedTag}
	}
	return encodeValType(s.Value, s.Ref)
}

func (e *Emitter) encodeTypeSection() []byte {
	var body []byte
	for _, t := range e.mod.Types {
		switch {
		case t.Func != nil:
			body = append(body, typeFormFunc)
			body = append(body, EncodeUint32(uint32(len(t.Func.Params)))...)
			for _, p := range t.Func.Params {
				body = append(body, byte(p))
			}
			body = append(body, EncodeUint32(uint32(len(t.Func.Results)))...)
			for _, r := range t.Func.Results {
				body = append(body, byte(r))
			}
		case t.Struct != nil:
			body = append(body, typeFormStruct)
			body = append(body, EncodeUint32(uint32(len(t.Struct.Fields)))...)
			for _, f := range t.Struct.Fields {
				body = append(body, encodeStorageType(f.Type)...)
				if f.Mutable {
					body = append(body, 0x01)
				} else {
					body = append(body, 0x00)
				}
			}
		case t.Array != nil:
			body = append(body, typeFormArray)
			body = append(body, encodeStorageType(t.Array.Elem)...)
			if t.Array.Mutable {
				body = append(body, 0x01)
			} else {
				body = append(body, 0x00)
			}
		}
	}
	return vector(len(e.mod.Types), body)
}

func (e *Emitter) encodeImportSection() []byte {
	var body []byte
	for _, imp := range e.mod.Imports {
		var b []byte
		b = appendName(b, imp.Module)
		b = appendName(b, imp.Name)
		b = append(b, byte(imp.Kind))
		switch imp.Kind {
		case wasm.ImportKindFunc:
			b = append(b, EncodeUint32(imp.FuncType)...)
		case wasm.ImportKindMemory:
			b = append(b, limitsBytes(imp.MemMin, imp.MemMax, imp.HasMemMax)...)
		case wasm.ImportKindGlobal:
			b = append(b, byte(imp.GlobalType))
			if imp.GlobalMut {
				b = append(b, 0x01)
			} else {
				b = append(b, 0x00)
			}
		case wasm.ImportKindTable:
			b = append(b, byte(wasm.ValueTypeFuncRef))
			b = append(b, limitsBytes(imp.TableMin, 0, false)...)
		}
		body = append(body, b...)
	}
	return vector(len(e.mod.Imports), body)
}

func appendName(b []byte, s string) []byte {
	b = append(b, EncodeUint32(uint32(len(s)))...)
	return append(b, []byte(s)...)
}

func limitsBytes(min, max uint32, hasMax bool) []byte {
	if hasMax {
		b := []byte{0x01}
		b = append(b, EncodeUint32(min)...)
		b = append(b, EncodeUint32(max)...)
		return b
	}
	b := []byte{0x00}
	b = append(b, EncodeUint32(min)...)
	return b
}

func (e *Emitter) encodeFunctionSection() []byte {
	var body []byte
	for _, f := range e.mod.Funcs {
		body = append(body, EncodeUint32(f.TypeIndex)...)
	}
	return vector(len(e.mod.Funcs), body)
}

func (e *Emitter) encodeTableSection() []byte {
	var body []byte
	for _, t := range e.mod.Tables {
		body = append(body, byte(wasm.ValueTypeFuncRef))
		body = append(body, limitsBytes(t.Min, t.Max, t.HasMax)...)
	}
	return vector(len(e.mod.Tables), body)
}

func (e *Emitter) encodeMemorySection() []byte {
	var body []byte
	for _, m := range e.mod.Memories {
		body = append(body, limitsBytes(m.Min, m.Max, m.HasMax)...)
	}
	return vector(len(e.mod.Memories), body)
}

func (e *Emitter) encodeGlobalSection() []byte {
	var body []byte
	for _, g := range e.mod.Globals {
		body = append(body, byte(g.Type))
		if g.Mutable {
			body = append(body, 0x01)
		} else {
			body = append(body, 0x00)
		}
		body = append(body, g.Init...)
		body = append(body, 0x0b) // end
	}
	return vector(len(e.mod.Globals), body)
}

func (e *Emitter) encodeExportSection() []byte {
	var body []byte
	for _, ex := range e.mod.Exports {
		body = appendName(body, ex.Name)
		body = append(body, byte(ex.Kind))
		body = append(body, EncodeUint32(ex.Index)...)
	}
	return vector(len(e.mod.Exports), body)
}

func (e *Emitter) encodeElementSection() []byte {
	var body []byte
	for _, el := range e.mod.Elements {
		body = append(body, EncodeUint32(el.TableIndex)...)
		body = append(body, el.Offset...)
		body = append(body, 0x0b) // end
		body = append(body, EncodeUint32(uint32(len(el.FuncIndices)))...)
		for _, idx := range el.FuncIndices {
			body = append(body, EncodeUint32(idx)...)
		}
	}
	return vector(len(e.mod.Elements), body)
}

func (e *Emitter) encodeCodeSection() []byte {
	var body []byte
	for _, f := range e.mod.Funcs {
		entry := encodeLocals(f.Locals)
		entry = append(entry, f.Body...)
		entry = append(entry, 0x0b) // end
		body = append(body, EncodeUint32(uint32(len(entry)))...)
		body = append(body, entry...)
	}
	return vector(len(e.mod.Funcs), body)
}

// encodeLocals groups consecutive identical local types into runs, the
// form the locals declaration list of a WASM function body uses.
func encodeLocals(locals []wasm.ValueType) []byte {
	if len(locals) == 0 {
		return EncodeUint32(0)
	}
	type run struct {
		t     wasm.ValueType
		count uint32
	}
	var runs []run
	for _, l := range locals {
		if len(runs) > 0 && runs[len(runs)-1].t == l {
			runs[len(runs)-1].count++
			continue
		}
		runs = append(runs, run{t: l, count: 1})
	}
	out := EncodeUint32(uint32(len(runs)))
	for _, r := range runs {
		out = append(out, EncodeUint32(r.count)...)
		out = append(out, byte(r.t))
	}
	return out
}

func (e *Emitter) encodeDataSection() []byte {
	var body []byte
	for _, d := range e.mod.Data {
		body = append(body, EncodeUint32(d.MemoryIndex)...)
		body = append(body, d.Offset...)
		body = append(body, 0x0b) // end
		body = append(body, EncodeUint32(uint32(len(d.Bytes)))...)
		body = append(body, d.Bytes...)
	}
	return vector(len(e.mod.Data), body)
}

const subsectionIDFuncNames = 0x01

// encodeNameSection writes the custom "name" section, function-names
// subsection only; module and local name subsections aren't populated
// since nothing in the codegen pipeline needs them yet.
func (e *Emitter) encodeNameSection() []byte {
	var funcNames []byte
	count := 0
	for idx := uint32(0); idx < e.importedFuncCount()+uint32(len(e.mod.Funcs)); idx++ {
		name, ok := e.mod.FunctionNames[idx]
		if !ok {
			continue
		}
		funcNames = append(funcNames, EncodeUint32(idx)...)
		funcNames = appendName(funcNames, name)
		count++
	}
	sub := []byte{subsectionIDFuncNames}
	subBody := vector(count, funcNames)
	sub = append(sub, EncodeUint32(uint32(len(subBody)))...)
	sub = append(sub, subBody...)

	var body []byte
	body = appendName(body, "name")
	body = append(body, sub...)
	return section(sectionIDCustom, body)
}
