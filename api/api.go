// Package api is the public, embedder-facing surface of wgc, mirroring
// the teacher's own split between a root `api`/embedder package and the
// `internal/` packages that do the actual work (spec.md §1 keeps the
// lexer/parser/checker/codegen pipeline internal; this package is the
// thin façade SPEC_FULL.md §6 calls for).
//
// A caller never touches internal/compiler, internal/host, or
// internal/check directly: Compile is the one entry point, CompilerHost
// the one collaborator interface, and Diagnostic/Result the one output
// shape.
package api

import (
	"github.com/spf13/afero"

	"github.com/wgc-lang/wgc/internal/check"
	"github.com/wgc-lang/wgc/internal/compiler"
	"github.com/wgc-lang/wgc/internal/host"
)

// CompilerHost is the spec.md §6.1 collaborator: it resolves an import
// specifier to a canonical module name and loads that name's source
// text. Re-exported from internal/host so embedders implementing a
// custom host (a virtual in-memory project, a bundler plugin) never
// need an internal import.
type CompilerHost = host.CompilerHost

// Manifest is the stdlib manifest of spec.md §6.2.
type Manifest = host.Manifest

// Target selects which virtual mapping a FSHost's Resolve uses for
// std: specifiers.
type Target = host.Target

const (
	TargetHost = host.TargetHost
	TargetWASI = host.TargetWASI
)

// Severity classifies a Diagnostic as an error or a warning.
type Severity = check.Severity

const (
	SeverityError   = check.SeverityError
	SeverityWarning = check.SeverityWarning
)

// Code is the diagnostic taxonomy of spec.md §4.5.9 / §7.
type Code = check.Code

// Diagnostic is one file-attributed compiler finding (spec.md §7: code,
// severity, message, location).
type Diagnostic = compiler.Diagnostic

// Result is a successful compilation's output: the compiler's run
// identifier and the produced WASM-GC binary bytes.
type Result = compiler.Result

// NewFSHost returns the default CompilerHost, backed by an afero
// filesystem rooted at root and serving std: virtual modules out of
// stdDir per manifest (spec.md §6.1/§6.2).
func NewFSHost(fs afero.Fs, root string, manifest *Manifest, target Target, stdDir string) *host.FSHost {
	return host.NewFSHost(fs, root, manifest, target, stdDir)
}

// DefaultManifest returns the compiler's built-in stdlib manifest
// (std:string, std:array, std:console, std:math).
func DefaultManifest() (*Manifest, error) {
	return host.DefaultManifest()
}

// Compile resolves entry through h, bundles its transitive import
// graph, type-checks the bundled program and — if checking reports no
// error-severity diagnostic — generates a WASM-GC binary module. It
// always returns the full diagnostic list (warnings included) even on
// success; Result is nil when checking failed or when an error is
// returned (entry or one of its imports could not be resolved, loaded
// or parsed, or code generation failed).
//
// Per spec.md §5, a Compiler value is good for exactly one compilation;
// Compile mints a fresh one per call, so concurrent callers never share
// state.
func Compile(h CompilerHost, entry string) (*Result, []Diagnostic, error) {
	c := compiler.New(h)
	return c.Compile(entry)
}
