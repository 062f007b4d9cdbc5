package api_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/wgc-lang/wgc/api"
)

func TestCompileEndToEnd(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/main.wgc", []byte(
		`export let run = () => { let x = 10; let f = () => x + 1; f() };`,
	), 0o644))

	manifest, err := api.DefaultManifest()
	require.NoError(t, err)
	h := api.NewFSHost(fs, "/proj", manifest, api.TargetHost, "std")

	result, diags, err := api.Compile(h, "main.wgc")
	require.NoError(t, err)
	for _, d := range diags {
		require.NotEqual(t, api.SeverityError, d.Severity, d.String())
	}
	require.NotNil(t, result)
	require.Equal(t, []byte{0x00, 0x61, 0x73, 0x6d}, result.Bytes[0:4])
}

func TestCompileSurfacesTypeErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/main.wgc", []byte(
		`export let run = () => missingSymbol();`,
	), 0o644))

	manifest, err := api.DefaultManifest()
	require.NoError(t, err)
	h := api.NewFSHost(fs, "/proj", manifest, api.TargetHost, "std")

	result, diags, err := api.Compile(h, "main.wgc")
	require.NoError(t, err)
	require.Nil(t, result)

	hasError := false
	for _, d := range diags {
		if d.Severity == api.SeverityError {
			hasError = true
		}
	}
	require.True(t, hasError)
}
