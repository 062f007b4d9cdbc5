package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEqualPrimitives(t *testing.T) {
	require.True(t, Equal(Number(WidthI32), Number(WidthI32)))
	require.False(t, Equal(Number(WidthI32), Number(WidthU32)), "i32 and u32 are distinct numeric widths")
	require.True(t, Equal(Boolean, Boolean))
	require.False(t, Equal(Boolean, String))
}

func TestEqualClassByDeclIdentity(t *testing.T) {
	a := &ClassDecl{Name: "Point"}
	b := &ClassDecl{Name: "Point"}
	require.True(t, Equal(Class(a), Class(a)))
	require.False(t, Equal(Class(a), Class(b)), "two distinct declarations named alike must not compare equal")
}

func TestEqualDistinctIsolatesUnderlying(t *testing.T) {
	decl := &ClassDecl{Name: "UserId"}
	a := Distinct(decl, "UserId", Number(WidthI32))
	require.False(t, Equal(a, Number(WidthI32)), "a distinct wrapper is never equal to its underlying type")
	require.True(t, Equal(a, a))
}

func TestUnionFlattensAndDedupes(t *testing.T) {
	u := Union(Number(WidthI32), Union(String, Number(WidthI32)), Never)
	require.Equal(t, KindUnion, u.Kind)
	require.Len(t, u.Members, 2)
}

func TestUnionSingletonCollapses(t *testing.T) {
	u := Union(Number(WidthI32), Never)
	require.Equal(t, KindNumber, u.Kind)
}

func TestAssignableToNeverIsBottom(t *testing.T) {
	require.True(t, AssignableTo(Never, String))
	require.True(t, AssignableTo(Never, Number(WidthF64)))
}

func TestAssignableToAnyIsTop(t *testing.T) {
	require.True(t, AssignableTo(String, Any))
	require.True(t, AssignableTo(Number(WidthI32), Any))
}

func TestAssignableToUnionMember(t *testing.T) {
	u := Union(String, Number(WidthI32))
	require.True(t, AssignableTo(String, u))
	require.True(t, AssignableTo(Number(WidthI32), u))
	require.False(t, AssignableTo(Boolean, u))
}

func TestAssignableToClassHierarchy(t *testing.T) {
	base := &ClassDecl{Name: "A"}
	derived := &ClassDecl{Name: "B"}
	baseTy := Class(base)
	derived.Super = &baseTy
	derivedTy := Class(derived)

	require.True(t, AssignableTo(derivedTy, baseTy))
	require.False(t, AssignableTo(baseTy, derivedTy), "subtyping is not symmetric")
}

func TestAssignableToInterfaceViaImplements(t *testing.T) {
	iface := &InterfaceDecl{Name: "Speaker"}
	class := &ClassDecl{Name: "Dog", Implements: []*InterfaceDecl{iface}}
	require.True(t, AssignableTo(Class(class), Interface(iface)))
}

func TestAssignableToNumericWidthsNeverCoerce(t *testing.T) {
	require.False(t, AssignableTo(Number(WidthI32), Number(WidthI64)))
	require.False(t, AssignableTo(Number(WidthI32), Number(WidthU32)))
}

func TestAssignableToFunctionContravariantParamsCovariantReturn(t *testing.T) {
	base := &ClassDecl{Name: "Animal"}
	derived := &ClassDecl{Name: "Cat"}
	baseTy := Class(base)
	derived.Super = &baseTy
	derivedTy := Class(derived)

	// (Animal) -> Cat is assignable to (Cat) -> Animal: wider param, narrower return.
	wide := Function(nil, []Type{baseTy}, derivedTy)
	narrow := Function(nil, []Type{derivedTy}, baseTy)
	require.True(t, AssignableTo(wide, narrow))
	require.False(t, AssignableTo(narrow, wide))
}

func TestAssignableToTuplesElementwise(t *testing.T) {
	a := Tuple(Number(WidthI32), String)
	b := Tuple(Number(WidthI32), String)
	require.True(t, AssignableTo(a, b))

	c := UnboxedTuple(Number(WidthI32))
	require.False(t, AssignableTo(a, c), "boxed and unboxed tuples are distinct kinds")
}

func TestRecordFieldsSortedForStructuralEquality(t *testing.T) {
	a := Record(RecordField{Name: "b", Type: String}, RecordField{Name: "a", Type: Number(WidthI32)})
	b := Record(RecordField{Name: "a", Type: Number(WidthI32)}, RecordField{Name: "b", Type: String})
	require.True(t, Equal(a, b))
}

func TestIsReference(t *testing.T) {
	require.False(t, Number(WidthI32).IsReference())
	require.False(t, Boolean.IsReference())
	require.True(t, String.IsReference())
	require.True(t, Array(Number(WidthI32)).IsReference())
}
