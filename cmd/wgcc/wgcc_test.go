package main

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// resetFlags gives doMain a fresh flag.CommandLine, since it registers
// "-h" on the package-level flag set and flag.Parse refuses to
// redeclare a flag across repeated test invocations.
func resetFlags() {
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
}

func writeSource(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "main.wgc")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestDoCheckSucceeds(t *testing.T) {
	path := writeSource(t, `export let run = () => 42;`)
	stdErr := &bytes.Buffer{}
	code := doCheck([]string{path}, stdErr)
	require.Equal(t, 0, code)
	require.Empty(t, stdErr.String())
}

func TestDoCheckReportsErrors(t *testing.T) {
	path := writeSource(t, `export let run = () => missingSymbol();`)
	stdErr := &bytes.Buffer{}
	code := doCheck([]string{path}, stdErr)
	require.Equal(t, 1, code)
	require.NotEmpty(t, stdErr.String())
}

func TestDoCheckMissingFile(t *testing.T) {
	stdErr := &bytes.Buffer{}
	code := doCheck(nil, stdErr)
	require.Equal(t, 1, code)
	require.Contains(t, stdErr.String(), "missing path to source file")
}

func TestDoBuildWritesWasmFile(t *testing.T) {
	path := writeSource(t, `export let run = () => 42;`)
	out := filepath.Join(filepath.Dir(path), "out.wasm")
	stdErr := &bytes.Buffer{}
	code := doBuild([]string{"-o", out, path}, stdErr)
	require.Equal(t, 0, code)

	bytesOut, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, []byte{0x00, 0x61, 0x73, 0x6d}, bytesOut[0:4])
}

func TestDoBuildDefaultOutputPath(t *testing.T) {
	path := writeSource(t, `export let run = () => 42;`)
	stdErr := &bytes.Buffer{}
	code := doBuild([]string{path}, stdErr)
	require.Equal(t, 0, code)

	expected := filepath.Join(filepath.Dir(path), "main.wasm")
	_, err := os.Stat(expected)
	require.NoError(t, err)
}

func TestDoRunWritesBytesToStdout(t *testing.T) {
	path := writeSource(t, `export let run = () => 42;`)
	stdOut := &bytes.Buffer{}
	stdErr := &bytes.Buffer{}
	code := doRun([]string{path}, stdOut, stdErr)
	require.Equal(t, 0, code)
	require.Equal(t, []byte{0x00, 0x61, 0x73, 0x6d}, stdOut.Bytes()[0:4])
}

func TestDoMainHelp(t *testing.T) {
	oldArgs := os.Args
	t.Cleanup(func() { os.Args = oldArgs })
	os.Args = []string{"wgcc", "-h"}
	resetFlags()

	stdOut := &bytes.Buffer{}
	stdErr := &bytes.Buffer{}
	code := doMain(stdOut, stdErr)
	require.Equal(t, 0, code)
	require.Contains(t, stdErr.String(), "wgcc")
}

func TestDoMainInvalidCommand(t *testing.T) {
	oldArgs := os.Args
	t.Cleanup(func() { os.Args = oldArgs })
	os.Args = []string{"wgcc", "frobnicate"}
	resetFlags()

	stdOut := &bytes.Buffer{}
	stdErr := &bytes.Buffer{}
	code := doMain(stdOut, stdErr)
	require.Equal(t, 1, code)
	require.Contains(t, stdErr.String(), "invalid command")
}
