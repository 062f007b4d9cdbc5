package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wgc-lang/wgc/internal/ast"
)

func TestParseClosureCapture(t *testing.T) {
	src := `export let run = () => { let x = 10; let f = () => x + 1; f() };`
	mod, err := Parse("main.wgc", src)
	require.NoError(t, err)
	require.Len(t, mod.Decls, 1)
	exp, ok := mod.Decls[0].(*ast.ExportStmt)
	require.True(t, ok)
	vd, ok := exp.Decl.(*ast.VarDecl)
	require.True(t, ok)
	require.Equal(t, "run", vd.Name)
	require.IsType(t, &ast.FuncExpr{}, vd.Init)
}

func TestParseInheritanceAndOverride(t *testing.T) {
	src := `class A { speak(): i32 { 1 } }
class B extends A { speak(): i32 { 2 } }
export let run = () => new B().speak();`
	mod, err := Parse("main.wgc", src)
	require.NoError(t, err)
	require.Len(t, mod.Decls, 3)

	a := mod.Decls[0].(*ast.ClassDecl)
	require.Equal(t, "A", a.Name)
	require.Len(t, a.Methods, 1)
	require.Equal(t, "speak", a.Methods[0].Name)

	b := mod.Decls[1].(*ast.ClassDecl)
	require.Equal(t, "B", b.Name)
	require.NotNil(t, b.Super)
}

func TestParseInterfaceDispatchWithGenerics(t *testing.T) {
	src := `interface Provider<T> { get(): T }
class IP implements Provider<i32> { get(): i32 { 100 } }
export let run = () => { let p: Provider<i32> = new IP(); p.get() };`
	mod, err := Parse("main.wgc", src)
	require.NoError(t, err)
	require.Len(t, mod.Decls, 3)

	iface := mod.Decls[0].(*ast.InterfaceDecl)
	require.Equal(t, "Provider", iface.Name)
	require.Len(t, iface.TypeParams, 1)
	require.Equal(t, "T", iface.TypeParams[0].Name)

	cls := mod.Decls[1].(*ast.ClassDecl)
	require.Len(t, cls.Implements, 1)
}

func TestParseForLoopSum(t *testing.T) {
	src := `export let sum = (n: i32) => { var s = 0; for (var i = 0; i < n; i = i + 1) { s = s + i; } s };`
	mod, err := Parse("main.wgc", src)
	require.NoError(t, err)
	exp := mod.Decls[0].(*ast.ExportStmt)
	vd := exp.Decl.(*ast.VarDecl)
	fn := vd.Init.(*ast.FuncExpr)
	require.Len(t, fn.Params, 1)
	body := fn.Body.(*ast.Block)
	require.Len(t, body.Stmts, 3)
	require.IsType(t, &ast.ForStmt{}, body.Stmts[1])
}

func TestParseUnboxedTupleDestructuring(t *testing.T) {
	src := `let pair = () => (10, 20);
export let run = () => { let (a,b) = pair(); a + b };`
	mod, err := Parse("main.wgc", src)
	require.NoError(t, err)
	require.Len(t, mod.Decls, 2)

	exp := mod.Decls[1].(*ast.ExportStmt)
	vd := exp.Decl.(*ast.VarDecl)
	fn := vd.Init.(*ast.FuncExpr)
	body := fn.Body.(*ast.Block)
	destructure := body.Stmts[0].(*ast.VarDecl)
	require.NotNil(t, destructure.Pattern)
	require.IsType(t, &ast.TuplePattern{}, destructure.Pattern)
}

func TestParseMatchOnEnum(t *testing.T) {
	src := `enum Color { Red, Green, Blue }
export let run = () => match (Color.Green) {
	case Color.Red: 1
	case Color.Green: 2
	case Color.Blue: 3
};`
	mod, err := Parse("main.wgc", src)
	require.NoError(t, err)
	require.Len(t, mod.Decls, 2)

	enum := mod.Decls[0].(*ast.EnumDecl)
	require.Equal(t, "Color", enum.Name)
	require.Len(t, enum.Members, 3)

	exp := mod.Decls[1].(*ast.ExportStmt)
	vd := exp.Decl.(*ast.VarDecl)
	fn := vd.Init.(*ast.FuncExpr)
	match := fn.Body.(*ast.MatchExpr)
	require.Len(t, match.Arms, 3)
	for _, arm := range match.Arms {
		require.IsType(t, &ast.LiteralPattern{}, arm.Pattern)
	}
}

func TestParseSyntaxErrorReturnsPositionedError(t *testing.T) {
	_, err := Parse("main.wgc", `let x = ;`)
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
}

func TestParseImport(t *testing.T) {
	src := `import { helper } from "./util";
export let run = () => helper();`
	mod, err := Parse("main.wgc", src)
	require.NoError(t, err)
	require.Len(t, mod.Imports, 1)
	require.Equal(t, "./util", mod.Imports[0].Source)
	require.Equal(t, "helper", mod.Imports[0].Specifiers[0].Name)
}
