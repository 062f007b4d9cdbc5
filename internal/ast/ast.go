// Package ast defines the immutable abstract syntax tree produced by
// internal/parser. Nodes are never mutated after construction — every
// derived fact (types, resolved symbols, struct/vtable indices) lives in
// side-tables keyed by node identity (spec.md §3.2, §3.6 invariant 1),
// the same discipline the teacher uses for its own immutable wasm.Module
// once decoded: downstream passes (validation, instantiation) annotate by
// building auxiliary maps, never by rewriting the decoded struct.
//
// Node identity is Go pointer identity: every concrete node is used
// exclusively as a pointer, so a Go map keyed by Node (an interface
// holding that pointer) already satisfies "compared by object identity,
// not structural equality" without an explicit integer id.
package ast

import "github.com/wgc-lang/wgc/internal/token"

// Node is implemented by every AST variant. node() is unexported so only
// this package may introduce new variants.
type Node interface {
	Pos() token.Span
	node()
}

type NodeBase struct{ Span token.Span }

func (b NodeBase) Pos() token.Span { return b.Span }
func (NodeBase) node()             {}

// Expr is any expression node.
type Expr interface {
	Node
	exprNode()
}

type ExprBase struct{ NodeBase }

func (ExprBase) exprNode() {}

// Stmt is any statement node.
type Stmt interface {
	Node
	stmtNode()
}

type StmtBase struct{ NodeBase }

func (StmtBase) stmtNode() {}

// Decl is any top-level or member declaration.
type Decl interface {
	Stmt
	declNode()
}

type DeclBase struct{ StmtBase }

func (DeclBase) declNode() {}

// Pattern is any pattern node usable in `match` arms, destructuring
// declarations, and function parameters.
type Pattern interface {
	Node
	patternNode()
}

type PatternBase struct{ NodeBase }

func (PatternBase) patternNode() {}

// TypeAnnotation is a syntactic type reference, distinct from the
// checker's resolved types.Type (spec.md §3.3): the same AnnotationNamed
// "Foo" might resolve to different types.Type values in different
// generic instantiations.
type TypeAnnotation interface {
	Node
	typeAnnotationNode()
}

type TypeAnnotationBase struct{ NodeBase }

func (TypeAnnotationBase) typeAnnotationNode() {}

// ---------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------

type NumberLit struct {
	ExprBase
	Raw    string
	IsFloat bool
}

type StringLit struct {
	ExprBase
	Value string
}

type BoolLit struct {
	ExprBase
	Value bool
}

type NullLit struct{ ExprBase }

// TemplateLit is a template literal split into literal Parts interleaved
// with Exprs: len(Parts) == len(Exprs)+1.
type TemplateLit struct {
	ExprBase
	Parts []string
	Exprs []Expr
}

type Ident struct {
	ExprBase
	Name string
}

// SymbolRef is a `:name` symbol-named-field reference (spec.md §1).
type SymbolRef struct {
	ExprBase
	Name string
}

type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpEq
	OpNotEq
	OpLt
	OpLtEq
	OpGt
	OpGtEq
	OpAndAnd
	OpOrOr
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr
)

type BinaryExpr struct {
	ExprBase
	Op          BinaryOp
	Left, Right Expr
}

type UnaryOp int

const (
	OpNeg UnaryOp = iota
	OpNot
)

type UnaryExpr struct {
	ExprBase
	Op      UnaryOp
	Operand Expr
}

type CallExpr struct {
	ExprBase
	Callee    Expr
	TypeArgs  []TypeAnnotation
	Args      []Expr
}

type NewExpr struct {
	ExprBase
	Class    TypeAnnotation
	TypeArgs []TypeAnnotation
	Args     []Expr
}

type MemberExpr struct {
	ExprBase
	Object Expr
	Name   string
	// Optional is true for `?.` accesses on nullable receivers.
	Optional bool
}

type IndexExpr struct {
	ExprBase
	Object Expr
	Index  Expr
}

type RecordField struct {
	Name  string
	Value Expr // nil for shorthand `{ name }`
}

type RecordLit struct {
	ExprBase
	Fields []RecordField
}

type TupleLit struct {
	ExprBase
	// Elements may contain a WildcardExpr placeholder for `_` positions,
	// whose zero value is resolved from the checker's expected element
	// type (spec.md §4.6.6, §9 "multi-value return plumbing").
	Elements []Expr
}

// WildcardExpr is the `_` placeholder usable inside tuple literals.
type WildcardExpr struct{ ExprBase }

type ArrayLit struct {
	ExprBase
	Elements []Expr
}

type Param struct {
	Name string
	Type TypeAnnotation
}

type FuncExpr struct {
	ExprBase
	TypeParams []TypeParam
	Params     []Param
	ReturnType TypeAnnotation // nil if inferred
	Body       Node           // *Block or an Expr (expression-bodied arrow)
	// Captures is filled by the checker's closure capture pre-pass
	// (spec.md §9) — NOT mutated on this node; stored in the semantic
	// context, mirrored here only as a doc pointer. Left unused by ast.
}

type IfExpr struct {
	ExprBase
	Cond Expr
	Then Expr
	Else Expr
}

type MatchArm struct {
	Pattern Pattern
	Guard   Expr // nil if none
	Body    Expr
}

type MatchExpr struct {
	ExprBase
	Scrutinee Expr
	Arms      []MatchArm
}

type ThrowExpr struct {
	ExprBase
	Value Expr
}

type SuperExpr struct{ ExprBase }
type ThisExpr struct{ ExprBase }

type CastExpr struct {
	ExprBase
	Value Expr
	Type  TypeAnnotation
}

type IsExpr struct {
	ExprBase
	Value Expr
	Type  TypeAnnotation
}

type RangeKind int

const (
	RangeBounded RangeKind = iota // a..b
	RangeFrom                     // a..
	RangeTo                       // ..b
	RangeFull                     // ..
)

type RangeExpr struct {
	ExprBase
	Kind       RangeKind
	Start, End Expr // nil where absent
}

type SpreadExpr struct {
	ExprBase
	Value Expr
}

// ---------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------

type ExprStmt struct {
	StmtBase
	X Expr
}

type VarDecl struct {
	StmtBase
	Mutable  bool // var vs let
	Name     string
	Pattern  Pattern // non-nil for destructuring `let (a, b) = ...`
	Type     TypeAnnotation
	Init     Expr
}

// declNode lets a top-level `let`/`var` double as a Decl (parseVarDeclAsDecl),
// so `export let x = ...;` can wrap it in an ExportStmt like any other
// declaration, while it remains usable as an ordinary Stmt inside a Block.
func (*VarDecl) declNode() {}

type AssignOp int

const (
	AssignPlain AssignOp = iota
	AssignAdd
	AssignSub
	AssignMul
	AssignDiv
)

type AssignStmt struct {
	StmtBase
	Target Expr
	Op     AssignOp
	Value  Expr
}

type Block struct {
	StmtBase
	Stmts []Stmt
}

type IfStmt struct {
	StmtBase
	Cond Expr
	Then *Block
	Else Node // *Block or *IfStmt, nil if absent
}

type ForStmt struct {
	StmtBase
	Init Stmt // *VarDecl or *ExprStmt, nil if absent
	Cond Expr
	Post Stmt
	Body *Block
}

type WhileStmt struct {
	StmtBase
	Cond Expr
	Body *Block
}

type ReturnStmt struct {
	StmtBase
	Value Expr // nil for bare `return`
}

type ImportSpecifier struct {
	Name  string
	Alias string // equal to Name if no `as`
}

type ImportStmt struct {
	StmtBase
	Specifiers []ImportSpecifier
	Source     string
}

type ExportStmt struct {
	StmtBase
	Decl Decl
}

// DeclStmt wraps a Decl so it can appear in statement position within a
// Block (e.g. a local class or function declaration).
type DeclStmt struct {
	StmtBase
	Decl Decl
}

// ---------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------

type Decorator struct {
	Name string
	Args []Expr
}

type TypeParam struct {
	Name  string
	Bound TypeAnnotation // nil if unbounded
}

type FieldDecl struct {
	Decorators []Decorator
	Name       string
	Type       TypeAnnotation
	Mutable    bool
	Init       Expr // nil if absent
}

type AccessorKind int

const (
	AccessorNone AccessorKind = iota
	AccessorGet
	AccessorSet
)

type MethodDecl struct {
	Decorators []Decorator
	Name       string // operator methods use names like "operator+", "operator[]"
	Accessor   AccessorKind
	IsStatic   bool
	IsFinal    bool
	TypeParams []TypeParam
	Params     []Param
	ReturnType TypeAnnotation
	Body       *Block
	Span       token.Span
}

type ClassDecl struct {
	DeclBase
	Decorators []Decorator
	Name       string
	TypeParams []TypeParam
	Super      TypeAnnotation // nil if none
	SuperArgs  []Expr
	Implements []TypeAnnotation
	Mixins     []TypeAnnotation
	IsFinal    bool
	Fields     []FieldDecl
	Methods    []MethodDecl
	// Ctor is nil if the class uses the implicit `super()`-only
	// constructor (spec.md §4.5.5).
	Ctor *MethodDecl
}

type InterfaceMethod struct {
	Name       string
	Accessor   AccessorKind
	TypeParams []TypeParam
	Params     []Param
	ReturnType TypeAnnotation
}

type InterfaceDecl struct {
	DeclBase
	Name       string
	TypeParams []TypeParam
	Parent     TypeAnnotation // nil if none
	Fields     []FieldDecl
	Methods    []InterfaceMethod
}

type MixinDecl struct {
	DeclBase
	Name    string
	Fields  []FieldDecl
	Methods []MethodDecl
}

type FuncDecl struct {
	DeclBase
	Decorators []Decorator
	Name       string
	TypeParams []TypeParam
	Params     []Param
	ReturnType TypeAnnotation
	Body       *Block
}

// DeclareFuncDecl is `declare function foo(...): T` — an imported
// (host-provided) function with no body (spec.md §3.2).
type DeclareFuncDecl struct {
	DeclBase
	Name       string
	Params     []Param
	ReturnType TypeAnnotation
}

type TypeAliasDecl struct {
	DeclBase
	Name       string
	TypeParams []TypeParam
	Distinct   bool
	Underlying TypeAnnotation
}

type SymbolDecl struct {
	DeclBase
	Name string
}

type EnumMember struct {
	Name string
}

type EnumDecl struct {
	DeclBase
	Name    string
	Members []EnumMember
}

// ---------------------------------------------------------------------
// Patterns
// ---------------------------------------------------------------------

type IdentPattern struct {
	PatternBase
	Name string
}

type WildcardPattern struct{ PatternBase }

type LiteralPattern struct {
	PatternBase
	Value Expr // NumberLit, StringLit, BoolLit, or NullLit
}

type TuplePattern struct {
	PatternBase
	Elements []Pattern
}

type RecordPatternField struct {
	Name    string
	Pattern Pattern // nil for shorthand `{ name }`
}

type RecordPattern struct {
	PatternBase
	Fields []RecordPatternField
}

// ClassShapePattern matches `ClassName { field, field: p, ... }`
// (spec.md §3.2); an empty Fields list still requires a `ref.test`.
type ClassShapePattern struct {
	PatternBase
	ClassName string
	Fields    []RecordPatternField
}

type OrPattern struct {
	PatternBase
	Left, Right Pattern
}

type AndPattern struct {
	PatternBase
	Left, Right Pattern
}

type AsPattern struct {
	PatternBase
	Inner Pattern
	Name  string
}

type RangePattern struct {
	PatternBase
	Kind       RangeKind
	Start, End Expr
}

// ---------------------------------------------------------------------
// Type annotations
// ---------------------------------------------------------------------

type NamedTypeAnnotation struct {
	TypeAnnotationBase
	Name string
}

type GenericTypeAnnotation struct {
	TypeAnnotationBase
	Base TypeAnnotation
	Args []TypeAnnotation
}

type FuncTypeAnnotation struct {
	TypeAnnotationBase
	TypeParams []TypeParam
	Params     []TypeAnnotation
	Return     TypeAnnotation
}

type TupleTypeAnnotation struct {
	TypeAnnotationBase
	Elements []TypeAnnotation
	// Unboxed marks a `(T1, ..., Tn)` return-position tuple type that
	// compiles to multi-value WASM results (spec.md §4.6.6), as opposed
	// to a heap-allocated tuple used elsewhere.
	Unboxed bool
}

type RecordTypeAnnotationField struct {
	Name string
	Type TypeAnnotation
}

type RecordTypeAnnotation struct {
	TypeAnnotationBase
	Fields []RecordTypeAnnotationField
}

type UnionTypeAnnotation struct {
	TypeAnnotationBase
	Members []TypeAnnotation
}

// ---------------------------------------------------------------------
// Module (root)
// ---------------------------------------------------------------------

// Module is the root node for one parsed source file. Imports must
// precede all other top-level statements (spec.md §4.4).
type Module struct {
	NodeBase
	Path    string
	Imports []*ImportStmt
	Decls   []Stmt // top-level Decl, ExportStmt, or VarDecl/statements allowed at module scope
}
