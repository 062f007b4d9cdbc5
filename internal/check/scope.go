package check

import (
	"github.com/wgc-lang/wgc/internal/ast"
	"github.com/wgc-lang/wgc/internal/types"
)

// Binding is one resolved name: a local, parameter, field, or top-level
// declaration.
type Binding struct {
	Name    string
	Type    types.Type
	Mutable bool
	Decl    ast.Node
}

// Scope is a lexical scope in the chain from a block up to module scope.
// Mirrors the teacher's use of plain parent-linked maps for its own
// label/local bookkeeping during function compilation rather than a
// flattened symbol table.
type Scope struct {
	parent *Scope
	names  map[string]*Binding
}

func newScope(parent *Scope) *Scope {
	return &Scope{parent: parent, names: make(map[string]*Binding)}
}

func (s *Scope) declare(b *Binding) {
	s.names[b.Name] = b
}

// declaredLocally reports whether name is bound in this exact scope,
// ignoring outer scopes — shadowing an outer binding is legal,
// re-declaring within the same scope is not (spec.md §4.5.1).
func (s *Scope) declaredLocally(name string) bool {
	_, ok := s.names[name]
	return ok
}

func (s *Scope) lookup(name string) (*Binding, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if b, ok := cur.names[name]; ok {
			return b, true
		}
	}
	return nil, false
}

// Context is the semantic side-table the checker builds instead of
// mutating the AST (spec.md §3.2, §3.6 invariant 1): every fact a later
// pass (codegen) needs is looked up here by node identity.
type Context struct {
	ExprTypes map[ast.Expr]types.Type
	Resolved  map[*ast.Ident]*Binding

	ClassInfo     map[*ast.ClassDecl]*types.ClassDecl
	InterfaceInfo map[*ast.InterfaceDecl]*types.InterfaceDecl

	// Narrowed records a narrowed type for an Ident node within the
	// lexical span where an `is`-guard or match arm applies (spec.md
	// §4.5.3). Keyed by the Ident use-site, not the declaration, since
	// narrowing is flow-sensitive per occurrence.
	Narrowed map[*ast.Ident]types.Type

	// FuncCaptures lists the free-variable names a closure's generated
	// environment struct must hold, computed by the capture pre-pass
	// (spec.md §9) and consumed by codegen's closure conversion.
	FuncCaptures map[*ast.FuncExpr][]string

	// MatchArmUnreachable flags arms proven unreachable by the exhaustiveness
	// pass (spec.md §4.5.6), so codegen can skip emitting dead arm bodies
	// and the CLI can surface a warning diagnostic for them.
	MatchArmUnreachable map[*ast.MatchArm]bool
}

func newContext() *Context {
	return &Context{
		ExprTypes:           make(map[ast.Expr]types.Type),
		Resolved:            make(map[*ast.Ident]*Binding),
		ClassInfo:           make(map[*ast.ClassDecl]*types.ClassDecl),
		InterfaceInfo:       make(map[*ast.InterfaceDecl]*types.InterfaceDecl),
		Narrowed:            make(map[*ast.Ident]types.Type),
		FuncCaptures:        make(map[*ast.FuncExpr][]string),
		MatchArmUnreachable: make(map[*ast.MatchArm]bool),
	}
}

func (c *Context) typeOf(e ast.Expr) types.Type {
	if t, ok := c.ExprTypes[e]; ok {
		return t
	}
	return types.Type{Kind: types.KindInvalid}
}
