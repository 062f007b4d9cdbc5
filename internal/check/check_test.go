package check

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wgc-lang/wgc/internal/ast"
	"github.com/wgc-lang/wgc/internal/parser"
	"github.com/wgc-lang/wgc/internal/types"
)

func mustParse(t *testing.T, src string) *ast.Module {
	t.Helper()
	mod, err := parser.Parse("main.wgc", src)
	require.NoError(t, err)
	return mod
}

func noErrors(t *testing.T, diags []Diagnostic) {
	t.Helper()
	for _, d := range diags {
		require.NotEqual(t, SeverityError, d.Severity, d.String())
	}
}

func TestCheckClosureCapture(t *testing.T) {
	mod := mustParse(t, `export let run = () => { let x = 10; let f = () => x + 1; f() };`)
	_, diags := Check(mod)
	noErrors(t, diags)
}

func TestCheckInheritanceAndOverride(t *testing.T) {
	mod := mustParse(t, `class A { speak(): i32 { 1 } }
class B extends A { speak(): i32 { 2 } }
export let run = () => new B().speak();`)
	_, diags := Check(mod)
	noErrors(t, diags)
}

func TestCheckInterfaceDispatchWithGenerics(t *testing.T) {
	mod := mustParse(t, `interface Provider<T> { get(): T }
class IP implements Provider<i32> { get(): i32 { 100 } }
export let run = () => { let p: Provider<i32> = new IP(); p.get() };`)
	_, diags := Check(mod)
	noErrors(t, diags)
}

func TestCheckForLoopSum(t *testing.T) {
	mod := mustParse(t, `export let sum = (n: i32) => { var s = 0; for (var i = 0; i < n; i = i + 1) { s = s + i; } s };`)
	_, diags := Check(mod)
	noErrors(t, diags)
}

func TestCheckUnboxedTupleDestructuring(t *testing.T) {
	mod := mustParse(t, `let pair = () => (10, 20);
export let run = () => { let (a,b) = pair(); a + b };`)
	_, diags := Check(mod)
	noErrors(t, diags)
}

func TestCheckMatchOnEnum(t *testing.T) {
	mod := mustParse(t, `enum Color { Red, Green, Blue }
export let run = () => match (Color.Green) {
	case Color.Red: 1
	case Color.Green: 2
	case Color.Blue: 3
};`)
	_, diags := Check(mod)
	noErrors(t, diags)
}

// TestCheckInterfaceConformance exercises spec.md P4: exactly one
// diagnostic per missing/mismatched interface member.
func TestCheckInterfaceConformance(t *testing.T) {
	mod := mustParse(t, `interface Provider<T> { get(): T }
class Broken implements Provider<i32> { }
export let run = () => new Broken();`)
	_, diags := Check(mod)

	var missing []Diagnostic
	for _, d := range diags {
		if d.Code == CodeInterfaceConformance || d.Code == CodeMissingMember {
			missing = append(missing, d)
		}
	}
	require.Len(t, missing, 1)
}

// TestCheckDistinctTypeNominalIsolation exercises P9: two distinct
// declarations over the same underlying type never unify, even with an
// explicit cast bridging the underlying type.
func TestCheckDistinctTypeNominalIsolation(t *testing.T) {
	mod := mustParse(t, `type IDA = distinct i32;
type IDB = distinct i32;
export let run = () => { let v: i32 = 1; let a: IDA = v as IDA; let b: IDB = a; };`)
	_, diags := Check(mod)

	found := false
	for _, d := range diags {
		if d.Severity == SeverityError {
			found = true
		}
	}
	require.True(t, found, "expected a type error assigning IDA to IDB")
}

func TestCheckThisBeforeSuper(t *testing.T) {
	mod := mustParse(t, `class A { x: i32; constructor(x: i32) { this.x = x; } }
class B extends A {
	constructor() {
		this.x;
		super(1);
	}
}`)
	_, diags := Check(mod)

	found := false
	for _, d := range diags {
		if d.Code == CodeThisBeforeSuper {
			found = true
		}
	}
	require.True(t, found)
}

// TestCheckAccumulatesManyDiagnostics exercises spec.md §7's
// "accumulate, do not abort" checker policy: multiple independent
// errors in one module all surface, not just the first.
func TestCheckAccumulatesManyDiagnostics(t *testing.T) {
	mod := mustParse(t, `export let a = () => undefinedOne();
export let b = () => undefinedTwo();`)
	_, diags := Check(mod)

	errCount := 0
	for _, d := range diags {
		if d.Severity == SeverityError {
			errCount++
		}
	}
	require.GreaterOrEqual(t, errCount, 2)
}

func TestCheckMixedIntFloatWidens(t *testing.T) {
	mod := mustParse(t, `export let run = () => { let x = 1 + 2.5; x };`)
	_, diags := Check(mod)
	noErrors(t, diags)
}

func TestCheckSignedUnsignedMixRejected(t *testing.T) {
	mod := mustParse(t, `export let run = () => { let a = 1; let b = 2 as u32; a + b };`)
	_, diags := Check(mod)

	found := false
	for _, d := range diags {
		if d.Code == CodeTypeMismatch {
			found = true
		}
	}
	require.True(t, found, "i32 + u32 must require an explicit cast")
}

func TestCheckBitwiseForbidsFloats(t *testing.T) {
	mod := mustParse(t, `export let run = () => 1.5 & 2.5;`)
	_, diags := Check(mod)

	found := false
	for _, d := range diags {
		if d.Code == CodeTypeMismatch {
			found = true
		}
	}
	require.True(t, found)
}

func TestCheckRedeclaredVariable(t *testing.T) {
	mod := mustParse(t, `export let run = () => { let x = 1; let x = 2; x };`)
	_, diags := Check(mod)

	found := false
	for _, d := range diags {
		if d.Code == CodeRedeclaredVariable {
			found = true
		}
	}
	require.True(t, found)
}

func TestCheckShadowingInInnerScopeAllowed(t *testing.T) {
	mod := mustParse(t, `export let run = () => { let x = 1; if (true) { let x = 2; x; } x };`)
	_, diags := Check(mod)
	noErrors(t, diags)
}

func TestCheckIsNarrowing(t *testing.T) {
	mod := mustParse(t, `class A { a(): i32 { 1 } }
class B { b(): i32 { 2 } }
export let run = (v: A | B) => { if (v is A) { v.a(); } 0 };`)
	ctx, diags := Check(mod)
	noErrors(t, diags)
	require.NotEmpty(t, ctx.Narrowed, "the use of v inside the is-guarded branch must be narrowed")
}

func TestCheckInvalidUnionMixesPrimitiveAndReference(t *testing.T) {
	mod := mustParse(t, `export let run = (v: i32 | string) => 0;`)
	_, diags := Check(mod)

	found := false
	for _, d := range diags {
		if d.Code == CodeInvalidUnion {
			found = true
		}
	}
	require.True(t, found)
}

func TestCheckOrPatternBindingSetsMustMatch(t *testing.T) {
	mod := mustParse(t, `export let run = (v: i32) => match (v) {
	case x | 1: 0
};`)
	_, diags := Check(mod)

	found := false
	for _, d := range diags {
		if d.Code == CodePatternBindings {
			found = true
		}
	}
	require.True(t, found, "an or-pattern binding a name on only one side must be rejected")
}

func countCode(diags []Diagnostic, code Code) int {
	n := 0
	for _, d := range diags {
		if d.Code == code {
			n++
		}
	}
	return n
}

func TestCheckArgumentTypeMismatch(t *testing.T) {
	mod := mustParse(t, `let f = (n: i32) => n;
export let run = () => f("oops");`)
	_, diags := Check(mod)
	require.NotZero(t, countCode(diags, CodeTypeMismatch), "a string argument for an i32 parameter must be rejected")
}

func TestCheckArgumentSignednessMismatch(t *testing.T) {
	mod := mustParse(t, `let g = (n: u32) => n;
export let run = () => g(1);`)
	_, diags := Check(mod)
	require.NotZero(t, countCode(diags, CodeTypeMismatch), "an i32 argument for a u32 parameter must require an explicit cast")
}

func TestCheckSuperArgumentTypeMismatch(t *testing.T) {
	mod := mustParse(t, `class A { x: i32; constructor(x: i32) { this.x = x; } }
class B extends A {
	constructor() {
		super("nope");
	}
}`)
	_, diags := Check(mod)
	require.NotZero(t, countCode(diags, CodeTypeMismatch), "super(...) arguments must match the super constructor's parameter types")
}

func TestCheckNewArgumentTypeMismatch(t *testing.T) {
	mod := mustParse(t, `class Point { x: i32; constructor(x: i32) { this.x = x; } }
export let run = () => new Point("far");`)
	_, diags := Check(mod)
	require.NotZero(t, countCode(diags, CodeTypeMismatch))
}

// TestCheckInterfaceSignatureMismatch exercises the "or has the wrong
// signature" half of spec.md §7's InterfaceMissingMember: the member is
// present but its return type differs, and P4 requires exactly one
// diagnostic for it.
func TestCheckInterfaceSignatureMismatch(t *testing.T) {
	mod := mustParse(t, `interface Speaker { speak(): i32 }
class Dog implements Speaker { speak(): string { "woof" } }`)
	_, diags := Check(mod)
	require.Equal(t, 1, countCode(diags, CodeInterfaceConformance))
}

func TestCheckInterfaceParamTypeMismatch(t *testing.T) {
	mod := mustParse(t, `interface Adder { add(n: i32): i32 }
class Acc implements Adder { add(n: f64): i32 { 0 } }`)
	_, diags := Check(mod)
	require.Equal(t, 1, countCode(diags, CodeInterfaceConformance))
}

func TestCheckInterfaceMissingField(t *testing.T) {
	mod := mustParse(t, `interface Named { name: string }
class Anon implements Named { }`)
	_, diags := Check(mod)
	require.Equal(t, 1, countCode(diags, CodeInterfaceConformance))
}

func TestCheckInterfaceFieldTypeMismatch(t *testing.T) {
	mod := mustParse(t, `interface Named { name: string }
class Misnamed implements Named { name: i32; }`)
	_, diags := Check(mod)
	require.Equal(t, 1, countCode(diags, CodeInterfaceConformance))
}

func TestCheckInterfaceAccessorCapability(t *testing.T) {
	// The interface requires a getter; a plain method of the same name
	// does not satisfy it (spec.md §4.5.4 "accessors match by name and
	// declared get/set capability").
	mod := mustParse(t, `interface Sized { get size(): i32 }
class Box implements Sized { size(): i32 { 1 } }`)
	_, diags := Check(mod)
	require.Equal(t, 1, countCode(diags, CodeInterfaceConformance))
}

// TestCheckIntrinsicsStdOnly exercises spec.md §4.5.8: the
// compiler-known names resolve only inside std:-prefixed modules.
func TestCheckIntrinsicsStdOnly(t *testing.T) {
	src := `export let f = () => __array_len(__array_new(3));`

	stdMod, err := parser.Parse("std:array", src)
	require.NoError(t, err)
	_, diags := Check(stdMod)
	noErrors(t, diags)

	userMod := mustParse(t, src)
	_, diags = Check(userMod)
	found := false
	for _, d := range diags {
		if d.Code == CodeUnresolvedName {
			found = true
		}
	}
	require.True(t, found, "intrinsics must not resolve outside std: modules")
}

// TestCheckASTImmutability exercises P2: checking the same AST twice
// agrees on node -> Type for every node.
func TestCheckASTImmutability(t *testing.T) {
	mod := mustParse(t, `export let run = () => { let x = 10; x + 1 };`)
	ctx1, diags1 := Check(mod)
	noErrors(t, diags1)
	ctx2, diags2 := Check(mod)
	noErrors(t, diags2)

	require.Equal(t, len(ctx1.ExprTypes), len(ctx2.ExprTypes))
	for node, ty1 := range ctx1.ExprTypes {
		ty2, ok := ctx2.ExprTypes[node]
		require.True(t, ok)
		require.True(t, types.Equal(ty1, ty2))
	}
}
