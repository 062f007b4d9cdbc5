package check

import (
	"fmt"

	"github.com/wgc-lang/wgc/internal/token"
)

// Code is the diagnostic taxonomy of spec.md §4.5.9 / §7. Each checker
// pass attaches one of these to every Diagnostic it emits so host
// tooling (and the CLI's `check` subcommand) can filter/format by class
// without string-matching messages.
type Code string

const (
	CodeUnresolvedName      Code = "unresolved-name"
	CodeDuplicateDecl       Code = "duplicate-decl"
	CodeTypeMismatch        Code = "type-mismatch"
	CodeNotCallable         Code = "not-callable"
	CodeArityMismatch       Code = "arity-mismatch"
	CodeMissingMember       Code = "missing-member"
	CodeInterfaceConformance Code = "interface-conformance"
	CodeInvalidUnion        Code = "invalid-union"
	CodeNonExhaustiveMatch  Code = "non-exhaustive-match"
	CodeUnreachableArm      Code = "unreachable-arm"
	CodeInvalidCast         Code = "invalid-cast"
	CodeImmutableAssign     Code = "immutable-assign"
	CodeUnknownType         Code = "unknown-type"
	CodeCyclicDecl          Code = "cyclic-decl"
	CodeGenericArityMismatch Code = "generic-arity-mismatch"
	CodeThisBeforeSuper     Code = "this-before-super"
	CodeRedeclaredVariable  Code = "redeclared-variable"
	CodePatternBindings     Code = "pattern-bindings"
)

// Severity mirrors the teacher's own notion of recoverable-vs-fatal
// feedback (internal/wasm validation returns a single error per failed
// module; this checker instead accumulates many, some of which are
// downgradable to warnings without aborting codegen).
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// Diagnostic is one checker finding, positioned and classified.
type Diagnostic struct {
	Code     Code
	Severity Severity
	Message  string
	Span     token.Span
}

func (d Diagnostic) String() string {
	sev := "error"
	if d.Severity == SeverityWarning {
		sev = "warning"
	}
	return fmt.Sprintf("%s: %s[%s]: %s", d.Span, sev, d.Code, d.Message)
}

func (c *Checker) errorf(span token.Span, code Code, format string, args ...any) {
	c.diags = append(c.diags, Diagnostic{Code: code, Severity: SeverityError, Message: fmt.Sprintf(format, args...), Span: span})
}

func (c *Checker) warnf(span token.Span, code Code, format string, args ...any) {
	c.diags = append(c.diags, Diagnostic{Code: code, Severity: SeverityWarning, Message: fmt.Sprintf(format, args...), Span: span})
}
