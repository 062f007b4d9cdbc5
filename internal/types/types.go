// Package types implements the compiler's type representation and
// identity rules (spec.md §3.3, §3.6 invariant 2): classes and
// interfaces are identified by declaration identity, distinct types by
// declaration identity plus type arguments, and structural types
// (tuples, records, unions) by structural hashing with deterministic
// member ordering.
//
// This mirrors the way the teacher's own ssa.Type (a small closed byte
// enum, internal/engine/wazevo/ssa/type.go) and wasm.ValueType (a byte
// alias over fixed constants) model a fixed lattice of primitive kinds,
// extended here with the nominal/structural composite kinds the source
// language needs.
package types

import (
	"fmt"
	"sort"
	"strings"
)

// Kind tags the variant of a Type, the same closed-enum idea as
// ssa.Type in the teacher.
type Kind byte

const (
	KindInvalid Kind = iota
	KindNumber
	KindBoolean
	KindString
	KindVoid
	KindNever
	KindNull
	KindAny
	KindClass
	KindInterface
	KindFunction
	KindTypeParameter
	KindUnion
	KindDistinct
	KindTuple
	KindUnboxedTuple
	KindRecord
	KindArray
	KindRange
)

// NumberWidth enumerates the source language's numeric widths.
type NumberWidth byte

const (
	WidthI32 NumberWidth = iota
	WidthU32
	WidthI64
	WidthF32
	WidthF64
)

func (w NumberWidth) String() string {
	switch w {
	case WidthI32:
		return "i32"
	case WidthU32:
		return "u32"
	case WidthI64:
		return "i64"
	case WidthF32:
		return "f32"
	case WidthF64:
		return "f64"
	default:
		return "?"
	}
}

func (w NumberWidth) Signed() bool { return w != WidthU32 }
func (w NumberWidth) IsFloat() bool { return w == WidthF32 || w == WidthF64 }
func (w NumberWidth) IsInt() bool   { return !w.IsFloat() }

// RangeKind enumerates which ends of a range type are bounded.
type RangeKind byte

const (
	RangeBounded RangeKind = iota
	RangeFrom
	RangeTo
	RangeFull
)

// ClassDecl and InterfaceDecl are opaque declaration identities supplied
// by the checker (they wrap *ast.ClassDecl / *ast.InterfaceDecl without
// this package importing ast, to avoid a dependency cycle: the checker
// imports both ast and types). Declaration identity for nominal types is
// therefore Go pointer identity of these small wrapper values, allocated
// exactly once per declaration by the checker's registration pass.
type ClassDecl struct {
	Name string

	// Super and Implements are wired by the checker's hierarchy pass
	// once every declaration is registered, so subtype walks
	// (AssignableTo) traverse declaration identities rather than
	// re-resolving names.
	Super      *Type
	Implements []*InterfaceDecl
}

type InterfaceDecl struct {
	Name string

	// Parent is the extended interface's declaration, if any.
	Parent *InterfaceDecl
}

// Type is a tagged sum, as described in spec.md §3.3. Exactly one of
// the Kind-specific fields is meaningful for a given Kind; callers
// switch on Kind the way the teacher switches on ssa.Type / wasm.ValueType.
type Type struct {
	Kind Kind

	// KindNumber
	Width NumberWidth

	// KindClass
	Class    *ClassDecl
	TypeArgs []Type // instantiation arguments

	// KindInterface
	Interface *InterfaceDecl

	// KindFunction
	FuncTypeParams []string
	Params         []Type
	Return         *Type

	// KindTypeParameter
	ParamName string
	Bound     *Type

	// KindUnion
	Members []Type

	// KindDistinct
	DistinctName string
	DistinctDecl *ClassDecl // reuse ClassDecl as a generic declaration-identity holder
	Underlying   *Type

	// KindTuple / KindUnboxedTuple
	Elements []Type

	// KindRecord
	Fields []RecordField

	// KindArray
	Elem *Type

	// KindRange
	RKind RangeKind
}

// RecordField is one field of a Record type, kept in declaration order
// but compared for structural equality after sorting by Name (spec.md
// §3.3 "deterministic member ordering").
type RecordField struct {
	Name string
	Type Type
}

// Singletons for the primitive/sentinel kinds.
var (
	Boolean = Type{Kind: KindBoolean}
	String  = Type{Kind: KindString}
	Void    = Type{Kind: KindVoid}
	Never   = Type{Kind: KindNever}
	Null    = Type{Kind: KindNull}
	Any     = Type{Kind: KindAny}
)

func Number(w NumberWidth) Type { return Type{Kind: KindNumber, Width: w} }

func Array(elem Type) Type { return Type{Kind: KindArray, Elem: &elem} }

func Range(k RangeKind) Type { return Type{Kind: KindRange, RKind: k} }

func Tuple(elems ...Type) Type     { return Type{Kind: KindTuple, Elements: elems} }
func UnboxedTuple(elems ...Type) Type { return Type{Kind: KindUnboxedTuple, Elements: elems} }

func Record(fields ...RecordField) Type {
	sorted := append([]RecordField(nil), fields...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return Type{Kind: KindRecord, Fields: sorted}
}

func Function(typeParams []string, params []Type, ret Type) Type {
	return Type{Kind: KindFunction, FuncTypeParams: typeParams, Params: params, Return: &ret}
}

func TypeParameter(name string, bound *Type) Type {
	return Type{Kind: KindTypeParameter, ParamName: name, Bound: bound}
}

func Class(decl *ClassDecl, typeArgs ...Type) Type {
	return Type{Kind: KindClass, Class: decl, TypeArgs: typeArgs}
}

func Interface(decl *InterfaceDecl, typeArgs ...Type) Type {
	return Type{Kind: KindInterface, Interface: decl, TypeArgs: typeArgs}
}

func Distinct(decl *ClassDecl, name string, underlying Type) Type {
	return Type{Kind: KindDistinct, DistinctDecl: decl, DistinctName: name, Underlying: &underlying}
}

// Union constructs a union type, absorbing `never` members and
// collapsing duplicate members (spec.md §3.6 invariant 5). It does NOT
// validate the "no mixed primitive/reference" or "no multiple distinct
// wrappers" rules — that is the checker's job so it can attach a
// UnionInvalid diagnostic with a location; this constructor is used both
// by the checker (validated) and internally (e.g. narrowing) where the
// members are already known-valid.
func Union(members ...Type) Type {
	var flat []Type
	for _, m := range members {
		if m.Kind == KindNever {
			continue
		}
		if m.Kind == KindUnion {
			flat = append(flat, m.Members...)
			continue
		}
		flat = append(flat, m)
	}
	var deduped []Type
	for _, m := range flat {
		dup := false
		for _, d := range deduped {
			if Equal(d, m) {
				dup = true
				break
			}
		}
		if !dup {
			deduped = append(deduped, m)
		}
	}
	sort.Slice(deduped, func(i, j int) bool { return Print(deduped[i]) < Print(deduped[j]) })
	if len(deduped) == 1 {
		return deduped[0]
	}
	return Type{Kind: KindUnion, Members: deduped}
}

// IsReference reports whether a value of this type is a WASM-GC
// reference (anyref-family) as opposed to an unboxed numeric/boolean
// value. Used to validate generic bounds like `T extends anyref`
// (spec.md §4.5.7) and to choose ref.null as the `_` zero value
// (spec.md §4.6.6).
func (t Type) IsReference() bool {
	switch t.Kind {
	case KindString, KindClass, KindInterface, KindTuple, KindRecord,
		KindArray, KindRange, KindNull, KindAny, KindDistinct, KindUnboxedTuple:
		return true
	case KindNumber, KindBoolean, KindVoid, KindNever:
		return false
	case KindUnion:
		for _, m := range t.Members {
			if m.IsReference() {
				return true
			}
		}
		return false
	case KindTypeParameter:
		if t.Bound != nil {
			return t.Bound.IsReference()
		}
		return false
	default:
		return false
	}
}

// Equal implements type identity (spec.md §3.6 invariant 2): nominal
// types compare by declaration pointer identity (plus type arguments
// for classes, plus type arguments for distinct aliases), structural
// types by recursive structural comparison after Print normalizes
// member order.
func Equal(a, b Type) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNumber:
		return a.Width == b.Width
	case KindBoolean, KindString, KindVoid, KindNever, KindNull, KindAny:
		return true
	case KindClass:
		if a.Class != b.Class {
			return false
		}
		return equalSlice(a.TypeArgs, b.TypeArgs)
	case KindInterface:
		return a.Interface == b.Interface && equalSlice(a.TypeArgs, b.TypeArgs)
	case KindDistinct:
		if a.DistinctDecl != b.DistinctDecl {
			return false
		}
		return equalSlice(a.TypeArgs, b.TypeArgs)
	case KindFunction:
		if len(a.Params) != len(b.Params) || !equalSlice(a.Params, b.Params) {
			return false
		}
		return Equal(*a.Return, *b.Return)
	case KindTypeParameter:
		return a.ParamName == b.ParamName
	case KindUnion:
		return equalSetwise(a.Members, b.Members)
	case KindTuple, KindUnboxedTuple:
		return equalSlice(a.Elements, b.Elements)
	case KindRecord:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if a.Fields[i].Name != b.Fields[i].Name || !Equal(a.Fields[i].Type, b.Fields[i].Type) {
				return false
			}
		}
		return true
	case KindArray:
		return Equal(*a.Elem, *b.Elem)
	case KindRange:
		return a.RKind == b.RKind
	}
	return false
}

func equalSlice(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalSetwise(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
	for _, x := range a {
		found := false
		for j, y := range b {
			if !used[j] && Equal(x, y) {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// AssignableTo implements the subtyping lattice of spec.md §4.5.2.
func AssignableTo(from, to Type) bool {
	if from.Kind == KindNever {
		return true // never <: T for all T
	}
	if Equal(from, to) {
		return true
	}
	switch to.Kind {
	case KindAny:
		return true
	case KindUnion:
		for _, m := range to.Members {
			if AssignableTo(from, m) {
				return true
			}
		}
		return false
	}
	if from.Kind == KindUnion {
		for _, m := range from.Members {
			if !AssignableTo(m, to) {
				return false
			}
		}
		return true
	}
	switch from.Kind {
	case KindClass:
		if to.Kind == KindClass {
			for decl := from.Class.Super; decl != nil; {
				if decl.Class == to.Class {
					return true
				}
				if decl.Class == nil {
					break
				}
				decl = decl.Class.Super
			}
			return false
		}
		if to.Kind == KindInterface {
			for decl := from.Class; decl != nil; {
				for _, i := range decl.Implements {
					if interfaceExtends(i, to.Interface) {
						return true
					}
				}
				if decl.Super == nil {
					break
				}
				decl = decl.Super.Class
			}
			return false
		}
	case KindFunction:
		if to.Kind != KindFunction || len(from.Params) != len(to.Params) {
			return false
		}
		for i := range from.Params {
			// contravariant in parameters
			if !AssignableTo(to.Params[i], from.Params[i]) {
				return false
			}
		}
		// covariant in return
		return AssignableTo(*from.Return, *to.Return)
	case KindTuple, KindUnboxedTuple:
		if to.Kind != from.Kind || len(from.Elements) != len(to.Elements) {
			return false
		}
		for i := range from.Elements {
			if !AssignableTo(from.Elements[i], to.Elements[i]) {
				return false
			}
		}
		return true
	case KindNumber:
		// i32/u32 are not interchangeable (spec.md §4.5.2); all other
		// widths require exact match too (explicit cast elsewhere).
		return false
	}
	return false
}

// interfaceExtends reports whether i is target or transitively extends
// it through Parent links.
func interfaceExtends(i, target *InterfaceDecl) bool {
	for ; i != nil; i = i.Parent {
		if i == target {
			return true
		}
	}
	return false
}

// Print renders a Type deterministically for diagnostics and for
// structural-type hashing/sorting (never used for identity comparison,
// per spec.md §3.6 invariant 2: "Never compare by printed name").
func Print(t Type) string {
	switch t.Kind {
	case KindNumber:
		return t.Width.String()
	case KindBoolean:
		return "boolean"
	case KindString:
		return "string"
	case KindVoid:
		return "void"
	case KindNever:
		return "never"
	case KindNull:
		return "null"
	case KindAny:
		return "any"
	case KindClass:
		if len(t.TypeArgs) == 0 {
			return t.Class.Name
		}
		parts := make([]string, len(t.TypeArgs))
		for i, a := range t.TypeArgs {
			parts[i] = Print(a)
		}
		return fmt.Sprintf("%s<%s>", t.Class.Name, strings.Join(parts, ", "))
	case KindInterface:
		if len(t.TypeArgs) == 0 {
			return t.Interface.Name
		}
		parts := make([]string, len(t.TypeArgs))
		for i, a := range t.TypeArgs {
			parts[i] = Print(a)
		}
		return fmt.Sprintf("%s<%s>", t.Interface.Name, strings.Join(parts, ", "))
	case KindDistinct:
		return t.DistinctName
	case KindFunction:
		parts := make([]string, len(t.Params))
		for i, p := range t.Params {
			parts[i] = Print(p)
		}
		return fmt.Sprintf("(%s) => %s", strings.Join(parts, ", "), Print(*t.Return))
	case KindTypeParameter:
		return t.ParamName
	case KindUnion:
		parts := make([]string, len(t.Members))
		for i, m := range t.Members {
			parts[i] = Print(m)
		}
		return strings.Join(parts, " | ")
	case KindTuple, KindUnboxedTuple:
		parts := make([]string, len(t.Elements))
		for i, e := range t.Elements {
			parts[i] = Print(e)
		}
		return fmt.Sprintf("(%s)", strings.Join(parts, ", "))
	case KindRecord:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = fmt.Sprintf("%s: %s", f.Name, Print(f.Type))
		}
		return fmt.Sprintf("{%s}", strings.Join(parts, ", "))
	case KindArray:
		return fmt.Sprintf("%s[]", Print(*t.Elem))
	case KindRange:
		return "range"
	default:
		return "<invalid>"
	}
}
