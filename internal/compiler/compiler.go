// Package compiler orchestrates module loading, bundling and the
// lexer/parser/checker/codegen pipeline (spec.md §2, §6.4's "compiler &
// host iface" component). A Compiler is not reentrant across
// compilations: spec.md §5 requires a fresh instance per compilation,
// mirrored here by New returning one ready to run Compile exactly once
// per entry module (loaded modules and the bundle order are kept on the
// Compiler, so a repeat call reuses them instead of starting fresh).
package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/wgc-lang/wgc/internal/ast"
	"github.com/wgc-lang/wgc/internal/check"
	"github.com/wgc-lang/wgc/internal/codegen"
	"github.com/wgc-lang/wgc/internal/host"
	"github.com/wgc-lang/wgc/internal/parser"
	"github.com/wgc-lang/wgc/internal/wasm/binary"
)

// Diagnostic is the public, file-attributed rendering of a
// check.Diagnostic. The checker itself only ever sees one bundled
// ast.Module (spec.md §2: "the compiler bundles imported modules into a
// single logical program before codegen"), so line numbers alone can't
// identify which source file produced a given diagnostic; Compiler
// recovers that by parsing each module against a leading run of blank
// lines equal to every earlier module's line count, so every module
// owns a disjoint, monotonically increasing line range in the bundled
// program (see fileForLine).
type Diagnostic struct {
	File     string
	Severity check.Severity
	Code     check.Code
	Message  string
	Line     int
	Col      int
}

func (d Diagnostic) String() string {
	sev := "error"
	if d.Severity == check.SeverityWarning {
		sev = "warning"
	}
	return fmt.Sprintf("%s:%d:%d: %s[%s]: %s", d.File, d.Line, d.Col, sev, d.Code, d.Message)
}

// Result is a successful compilation's output.
type Result struct {
	// ID is the Compiler's UUID, also burned into the module's
	// "producers" custom section for reproducibility tracing across a
	// build pipeline (SPEC_FULL.md §5).
	ID    string
	Bytes []byte
}

// Compiler drives one compilation: resolving and loading an entry
// module and its transitive imports through a host.CompilerHost,
// bundling them into one logical program, type-checking, and — if
// checking found no errors — generating WASM-GC bytes.
type Compiler struct {
	ID   string
	Host host.CompilerHost

	loaded   map[string]*ast.Module // resolved name -> parsed module
	order    []string               // resolved names in dependency-first order
	visiting map[string]bool        // cycle guard

	ranges []fileRange
	cursor int // cumulative line count consumed so far
}

type fileRange struct {
	file      string
	startLine int // inclusive
	endLine   int // inclusive
}

// New returns a Compiler that loads modules through h. Each Compiler
// value is good for exactly one Compile call (spec.md §5: "a new
// compiler value is required per compilation").
func New(h host.CompilerHost) *Compiler {
	return &Compiler{
		ID:       uuid.NewString(),
		Host:     h,
		loaded:   make(map[string]*ast.Module),
		visiting: make(map[string]bool),
	}
}

// Compile resolves entry, loads its transitive import graph (each
// resolved module loaded at most once, spec.md §5), bundles every
// module into one program, and type-checks it. If checking reports no
// error-severity diagnostic, it proceeds to code generation and returns
// a Result; otherwise it returns the diagnostics and a nil Result,
// exactly spec.md §7's "accumulate, do not abort at the checker stage,
// but never run codegen over a failed check" policy.
func (c *Compiler) Compile(entry string) (*Result, []Diagnostic, error) {
	if err := c.loadModule(entry, ""); err != nil {
		return nil, nil, err
	}

	merged := &ast.Module{Path: entry}
	for _, name := range c.order {
		m := c.loaded[name]
		merged.Imports = append(merged.Imports, m.Imports...)
		merged.Decls = append(merged.Decls, m.Decls...)
	}

	ctx, diags := check.Check(merged)
	pub := c.toPublicDiagnostics(diags)
	if hasError(pub) {
		return nil, pub, nil
	}

	bytes, err := codegen.Generate(merged, ctx)
	if err != nil {
		return nil, pub, fmt.Errorf("codegen: %w", err)
	}
	bytes = embedProducers(bytes, c.ID)
	return &Result{ID: c.ID, Bytes: bytes}, pub, nil
}

func hasError(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == check.SeverityError {
			return true
		}
	}
	return false
}

// loadModule resolves specifier against referrer, loads its source
// (memoized by resolved name) and parses it with a synthetic
// leading-newline pad so every module owns a disjoint line range within
// the bundled program (see Diagnostic's doc comment), then recurses
// into its own imports. A module is appended to the bundle order only
// after its imports, so its declarations follow theirs: classes,
// interfaces and functions resolve regardless of textual order, but a
// top-level `let` is only visible after its declaration.
func (c *Compiler) loadModule(specifier, referrer string) error {
	resolved, err := c.Host.Resolve(specifier, referrer)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", specifier, err)
	}
	if _, ok := c.loaded[resolved]; ok {
		return nil
	}
	if c.visiting[resolved] {
		return nil // import cycle; forward references resolve once both sides are bundled
	}
	c.visiting[resolved] = true
	defer delete(c.visiting, resolved)

	src, err := c.Host.Load(resolved)
	if err != nil {
		return fmt.Errorf("load %q: %w", resolved, err)
	}

	padded := strings.Repeat("\n", c.cursor) + src
	mod, err := parser.Parse(resolved, padded)
	if err != nil {
		return fmt.Errorf("parse %q: %w", resolved, err)
	}

	// Claim this module's virtual line range and register it before
	// recursing into its imports, so each import's own pad starts past
	// this module's range rather than overlapping it.
	lines := strings.Count(src, "\n") + 1
	c.ranges = append(c.ranges, fileRange{file: resolved, startLine: c.cursor + 1, endLine: c.cursor + lines})
	c.cursor += lines
	c.loaded[resolved] = mod

	for _, imp := range mod.Imports {
		if err := c.loadModule(imp.Source, resolved); err != nil {
			return err
		}
	}
	c.order = append(c.order, resolved)
	return nil
}

func (c *Compiler) toPublicDiagnostics(diags []check.Diagnostic) []Diagnostic {
	out := make([]Diagnostic, len(diags))
	for i, d := range diags {
		out[i] = Diagnostic{
			File:     c.fileForLine(d.Span.StartLine),
			Severity: d.Severity,
			Code:     d.Code,
			Message:  d.Message,
			Line:     d.Span.StartLine,
			Col:      d.Span.StartCol,
		}
	}
	return out
}

func (c *Compiler) fileForLine(line int) string {
	i := sort.Search(len(c.ranges), func(i int) bool { return c.ranges[i].endLine >= line })
	if i < len(c.ranges) {
		return c.ranges[i].file
	}
	if len(c.ranges) > 0 {
		return c.ranges[len(c.ranges)-1].file
	}
	return ""
}

// embedProducers appends a "producers" custom section carrying the
// compiler's id, the standard WASM extensibility mechanism for
// non-semantic metadata: a custom section is always valid appended
// after every standard section (SPEC_FULL.md §5 "Producers / name
// section"). Format: one field ("processed-by") naming one
// producer/version pair (wgc, id).
func embedProducers(moduleBytes []byte, id string) []byte {
	field := appendField(nil, "wgc", id)
	body := appendName(nil, "producers")
	body = append(body, binary.EncodeUint32(1)...) // one field
	body = appendName(body, "processed-by")
	body = append(body, binary.EncodeUint32(1)...) // one producer/version pair
	body = append(body, field...)

	out := append([]byte{}, moduleBytes...)
	out = append(out, 0x00) // custom section id
	out = append(out, binary.EncodeUint32(uint32(len(body)))...)
	out = append(out, body...)
	return out
}

func appendName(b []byte, s string) []byte {
	b = append(b, binary.EncodeUint32(uint32(len(s)))...)
	return append(b, []byte(s)...)
}

func appendField(b []byte, name, version string) []byte {
	b = appendName(b, name)
	return appendName(b, version)
}
