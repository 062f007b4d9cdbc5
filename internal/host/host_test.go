package host

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestDefaultManifest(t *testing.T) {
	m, err := DefaultManifest()
	require.NoError(t, err)
	require.Contains(t, m.Modules, "std:string")
	require.Equal(t, "string-host", m.Modules["std:string"].Virtual.Host)
	require.Equal(t, "string-wasi", m.Modules["std:string"].Virtual.WASI)
	require.True(t, m.IsInternal("std:intrinsics"))
	require.False(t, m.IsInternal("std:string"))
}

func TestLoadManifestJSON(t *testing.T) {
	// YAML is a JSON superset; a hand-written JSON manifest must decode too.
	doc := []byte(`{"modules": {"std:math": {}}, "internal": []}`)
	m, err := LoadManifest(doc)
	require.NoError(t, err)
	require.Contains(t, m.Modules, "std:math")
	require.Nil(t, m.Modules["std:math"].Virtual)
}

func newMemHost(t *testing.T, target Target) *FSHost {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/main.wgc", []byte("export let run = () => 1;"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/proj/util.wgc", []byte("export let helper = () => 2;"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/proj/std/string-host.wgc", []byte("export class WgString {}"), 0o644))
	m, err := DefaultManifest()
	require.NoError(t, err)
	return NewFSHost(fs, "/proj", m, target, "std")
}

func TestFSHost_ResolveRelative(t *testing.T) {
	h := newMemHost(t, TargetHost)
	resolved, err := h.Resolve("./util", "main.wgc")
	require.NoError(t, err)
	require.Equal(t, "util.wgc", resolved)

	src, err := h.Load(resolved)
	require.NoError(t, err)
	require.Contains(t, src, "helper")
}

func TestFSHost_ResolveStdVirtualByTarget(t *testing.T) {
	hostTarget := newMemHost(t, TargetHost)
	resolved, err := hostTarget.Resolve("std:string", "main.wgc")
	require.NoError(t, err)
	require.Equal(t, "std:string-host", resolved)

	wasiTarget := newMemHost(t, TargetWASI)
	resolved, err = wasiTarget.Resolve("std:string", "main.wgc")
	require.NoError(t, err)
	require.Equal(t, "std:string-wasi", resolved)
}

func TestFSHost_ResolveStdNoVirtualMapping(t *testing.T) {
	h := newMemHost(t, TargetHost)
	resolved, err := h.Resolve("std:array", "main.wgc")
	require.NoError(t, err)
	require.Equal(t, "std:array", resolved)
}

func TestFSHost_UnknownStdModule(t *testing.T) {
	h := newMemHost(t, TargetHost)
	_, err := h.Resolve("std:networking", "main.wgc")
	require.ErrorContains(t, err, "module not found")
}

func TestFSHost_InternalModuleNotResolvable(t *testing.T) {
	h := newMemHost(t, TargetHost)
	_, err := h.Resolve("std:intrinsics", "main.wgc")
	require.ErrorContains(t, err, "module not found")
}

func TestFSHost_LoadStdVirtual(t *testing.T) {
	h := newMemHost(t, TargetHost)
	src, err := h.Load("std:string-host")
	require.NoError(t, err)
	require.Contains(t, src, "WgString")
}

func TestFSHost_BareSpecifierRejected(t *testing.T) {
	h := newMemHost(t, TargetHost)
	_, err := h.Resolve("util", "main.wgc")
	require.ErrorContains(t, err, "module not found")
}
