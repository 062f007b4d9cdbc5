package check

import (
	"github.com/wgc-lang/wgc/internal/ast"
	"github.com/wgc-lang/wgc/internal/types"
)

// bindPattern binds every name a pattern introduces into scope, using
// scrutTy (the matched value's static type) to type each binding where
// possible. It does not itself validate shape-compatibility with
// scrutTy beyond what's needed to type bindings — that's
// checkExhaustiveness's job, run once per MatchExpr rather than per arm.
func (c *Checker) bindPattern(scope *Scope, p ast.Pattern, scrutTy types.Type, mutable bool) {
	switch pat := p.(type) {
	case *ast.IdentPattern:
		scope.declare(&Binding{Name: pat.Name, Type: scrutTy, Mutable: mutable})
	case *ast.WildcardPattern:
		// binds nothing
	case *ast.LiteralPattern:
		c.inferExpr(scope, pat.Value)
	case *ast.TuplePattern:
		for i, el := range pat.Elements {
			elemTy := types.Any
			if scrutTy.Kind == types.KindTuple || scrutTy.Kind == types.KindUnboxedTuple {
				if i < len(scrutTy.Elements) {
					elemTy = scrutTy.Elements[i]
				}
			}
			c.bindPattern(scope, el, elemTy, mutable)
		}
	case *ast.RecordPattern:
		for _, f := range pat.Fields {
			fieldTy := fieldTypeIn(scrutTy, f.Name)
			if f.Pattern != nil {
				c.bindPattern(scope, f.Pattern, fieldTy, mutable)
			} else {
				scope.declare(&Binding{Name: f.Name, Type: fieldTy, Mutable: mutable})
			}
		}
	case *ast.ClassShapePattern:
		var classTy types.Type
		if cd, ok := c.classes[pat.ClassName]; ok {
			classTy = types.Class(c.ctx.ClassInfo[cd])
		} else {
			c.errorf(pat.Pos(), CodeUnresolvedName, "unknown class %q in pattern", pat.ClassName)
			classTy = types.Any
		}
		for _, f := range pat.Fields {
			fieldTy := fieldTypeIn(classTy, f.Name)
			if classTy.Kind == types.KindClass {
				if cd := c.classByDecl(classTy.Class); cd != nil {
					if fd := c.findField(cd, f.Name); fd != nil {
						fieldTy = c.resolveTypeOrInfer(fd.Type, fd.Init, c.global)
					}
				}
			}
			if f.Pattern != nil {
				c.bindPattern(scope, f.Pattern, fieldTy, mutable)
			} else {
				scope.declare(&Binding{Name: f.Name, Type: fieldTy, Mutable: mutable})
			}
		}
	case *ast.OrPattern:
		// Both sides must introduce the identical name set (spec.md
		// §4.5.6): one diagnostic per name missing from either side.
		left := patternBoundNames(pat.Left)
		right := patternBoundNames(pat.Right)
		for _, n := range left {
			if !containsName(right, n) {
				c.errorf(pat.Right.Pos(), CodePatternBindings, "or-pattern binding %q is missing on the right side", n)
			}
		}
		for _, n := range right {
			if !containsName(left, n) {
				c.errorf(pat.Left.Pos(), CodePatternBindings, "or-pattern binding %q is missing on the left side", n)
			}
		}
		c.bindPattern(scope, pat.Left, scrutTy, mutable)
		c.bindPattern(scope, pat.Right, scrutTy, mutable)
	case *ast.AndPattern:
		left := patternBoundNames(pat.Left)
		for _, n := range patternBoundNames(pat.Right) {
			if containsName(left, n) {
				c.errorf(pat.Right.Pos(), CodePatternBindings, "and-pattern binds %q on both sides", n)
			}
		}
		c.bindPattern(scope, pat.Left, scrutTy, mutable)
		c.bindPattern(scope, pat.Right, scrutTy, mutable)
	case *ast.AsPattern:
		c.bindPattern(scope, pat.Inner, scrutTy, mutable)
		scope.declare(&Binding{Name: pat.Name, Type: scrutTy, Mutable: mutable})
	case *ast.RangePattern:
		if pat.Start != nil {
			c.inferExpr(scope, pat.Start)
		}
		if pat.End != nil {
			c.inferExpr(scope, pat.End)
		}
	}
}

// patternBoundNames lists every name a pattern introduces, in
// encounter order.
func patternBoundNames(p ast.Pattern) []string {
	var out []string
	var walk func(p ast.Pattern)
	walk = func(p ast.Pattern) {
		switch pat := p.(type) {
		case *ast.IdentPattern:
			out = append(out, pat.Name)
		case *ast.TuplePattern:
			for _, el := range pat.Elements {
				walk(el)
			}
		case *ast.RecordPattern:
			for _, f := range pat.Fields {
				if f.Pattern != nil {
					walk(f.Pattern)
				} else {
					out = append(out, f.Name)
				}
			}
		case *ast.ClassShapePattern:
			for _, f := range pat.Fields {
				if f.Pattern != nil {
					walk(f.Pattern)
				} else {
					out = append(out, f.Name)
				}
			}
		case *ast.OrPattern:
			walk(pat.Left) // both sides bind identically once validated
		case *ast.AndPattern:
			walk(pat.Left)
			walk(pat.Right)
		case *ast.AsPattern:
			walk(pat.Inner)
			out = append(out, pat.Name)
		}
	}
	walk(p)
	return out
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func fieldTypeIn(t types.Type, name string) types.Type {
	if t.Kind == types.KindRecord {
		for _, f := range t.Fields {
			if f.Name == name {
				return f.Type
			}
		}
	}
	return types.Any
}

// isCatchAll reports whether p matches any value of its scrutinee type
// without further runtime test, making every arm after it unreachable
// (spec.md §4.5.6).
func isCatchAll(p ast.Pattern) bool {
	switch p.(type) {
	case *ast.WildcardPattern, *ast.IdentPattern:
		return true
	default:
		return false
	}
}

// checkExhaustiveness implements spec.md §4.5.6 precisely: "exhaustiveness
// is *not* required (a run-time trap is emitted for a fall-through,
// compatible with never-typed arms)". So this never raises an error —
// CodeNonExhaustiveMatch exists in the taxonomy only as a hook a future
// stricter mode could use, not something this checker emits (spec.md P8:
// "a match without `_` traps only on values not matching any arm", i.e.
// a missing wildcard is a valid, intentionally-partial match, not a
// checker error). The only thing this pass still does is flag arms made
// unreachable by an earlier catch-all, so codegen can skip their bodies
// and the CLI can surface a warning.
func (c *Checker) checkExhaustiveness(x *ast.MatchExpr, scrutTy types.Type) {
	_ = scrutTy
	seenCatchAll := false
	for i := range x.Arms {
		arm := &x.Arms[i]
		if seenCatchAll {
			c.ctx.MatchArmUnreachable[arm] = true
			c.warnf(arm.Pattern.Pos(), CodeUnreachableArm, "unreachable match arm")
			continue
		}
		if arm.Guard == nil && isCatchAll(arm.Pattern) {
			seenCatchAll = true
		}
	}
}
