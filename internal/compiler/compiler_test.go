package compiler

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/wgc-lang/wgc/internal/host"
)

func newMemHost(t *testing.T, files map[string]string) *host.FSHost {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, contents := range files {
		require.NoError(t, afero.WriteFile(fs, "/proj/"+name, []byte(contents), 0o644))
	}
	manifest, err := host.DefaultManifest()
	require.NoError(t, err)
	return host.NewFSHost(fs, "/proj", manifest, host.TargetHost, "std")
}

func errorDiags(diags []Diagnostic) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if hasError([]Diagnostic{d}) {
			out = append(out, d)
		}
	}
	return out
}

func TestCompileSucceeds(t *testing.T) {
	h := newMemHost(t, map[string]string{
		"main.wgc": `export let run = () => new B().speak();
class A { speak(): i32 { 1 } }
class B extends A { speak(): i32 { 2 } }`,
	})
	c := New(h)
	result, diags, err := c.Compile("main.wgc")
	require.NoError(t, err)
	require.Empty(t, errorDiags(diags))
	require.NotNil(t, result)
	require.NotEmpty(t, result.Bytes)
	require.NotEmpty(t, result.ID)
	require.Equal(t, []byte{0x00, 0x61, 0x73, 0x6d}, result.Bytes[0:4])
}

// TestCompileBundlesImports exercises spec.md §2/§5: transitive imports
// are loaded at most once and bundled into one checked program.
func TestCompileBundlesImports(t *testing.T) {
	h := newMemHost(t, map[string]string{
		"main.wgc": `import { helper } from "./util";
export let run = () => helper() + 1;`,
		"util.wgc": `export let helper = () => 41;`,
	})
	c := New(h)
	result, diags, err := c.Compile("main.wgc")
	require.NoError(t, err)
	require.Empty(t, errorDiags(diags))
	require.NotNil(t, result)
}

// TestCompileReportsFileAttributedDiagnostics checks that a type error
// in a bundled import is attributed to the file it actually came from.
func TestCompileReportsFileAttributedDiagnostics(t *testing.T) {
	h := newMemHost(t, map[string]string{
		"main.wgc": `import { helper } from "./util";
export let run = () => helper();`,
		"util.wgc": `export let helper = () => undefinedSymbol();`,
	})
	c := New(h)
	result, diags, err := c.Compile("main.wgc")
	require.NoError(t, err)
	require.Nil(t, result)

	errs := errorDiags(diags)
	require.NotEmpty(t, errs)
	found := false
	for _, d := range errs {
		if d.File == "util.wgc" {
			found = true
		}
	}
	require.True(t, found, "expected the diagnostic in util.wgc to be attributed to util.wgc, got %+v", diags)
}

func TestCompileUnresolvedImportFails(t *testing.T) {
	h := newMemHost(t, map[string]string{
		"main.wgc": `import { helper } from "./missing";
export let run = () => helper();`,
	})
	c := New(h)
	result, _, err := c.Compile("main.wgc")
	require.Error(t, err)
	require.Nil(t, result)
}
