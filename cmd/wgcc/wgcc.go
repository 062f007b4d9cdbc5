// Command wgcc is the thin CLI collaborator of spec.md §6.4: build,
// check, run, help. It never contains compiler logic itself — every
// subcommand is a few lines gluing flag parsing to api.Compile, mirroring
// the teacher's own cmd/wazero/wazero.go: a top-level doMain(stdOut,
// stdErr) dispatching by flag.Arg(0) to a doX(args, stdErr) function per
// subcommand, each built on its own flag.NewFlagSet so -h scopes to the
// subcommand it's given on.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/wgc-lang/wgc/api"
)

func main() {
	os.Exit(doMain(os.Stdout, os.Stderr))
}

// doMain is separated out for unit testing, exactly as the teacher's own
// doMain split (cmd/wazero/wazero_test.go drives doMain directly rather
// than forking a process).
func doMain(stdOut, stdErr io.Writer) int {
	flag.CommandLine.SetOutput(stdErr)

	var help bool
	flag.BoolVar(&help, "h", false, "Prints usage.")
	flag.Parse()

	if help || flag.NArg() == 0 {
		printUsage(stdErr)
		return 0
	}

	switch flag.Arg(0) {
	case "help":
		printUsage(stdOut)
		return 0
	case "build":
		return doBuild(flag.Args()[1:], stdErr)
	case "check":
		return doCheck(flag.Args()[1:], stdErr)
	case "run":
		return doRun(flag.Args()[1:], stdOut, stdErr)
	default:
		fmt.Fprintf(stdErr, "invalid command: %s\n", flag.Arg(0))
		printUsage(stdErr)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "wgcc: a source-language-to-WASM-GC compiler")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  help                 Prints this usage text.")
	fmt.Fprintln(w, "  build <file> [-o out.wasm]  Compiles file, writing the WASM-GC binary to out.wasm.")
	fmt.Fprintln(w, "  check <file>         Type-checks file and prints diagnostics; writes no output file.")
	fmt.Fprintln(w, "  run <file>           Compiles file and writes the WASM-GC bytes to stdout for piping")
	fmt.Fprintln(w, "                       into an external engine; wgcc embeds no execution engine of its own")
	fmt.Fprintln(w, "                       (spec.md §1 Non-goals).")
}

// newHost resolves an entry file's directory as the project root and
// returns a CompilerHost rooted there, backed by the real filesystem.
// Every subcommand shares this so resolve/load behave identically
// across build/check/run.
func newHost(file string) (api.CompilerHost, string, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, "", err
	}
	root := filepath.Dir(abs)
	manifest, err := api.DefaultManifest()
	if err != nil {
		return nil, "", err
	}
	h := api.NewFSHost(afero.NewOsFs(), root, manifest, api.TargetHost, "std")
	return h, filepath.Base(abs), nil
}

func printDiagnostics(w io.Writer, diags []api.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintln(w, d.String())
	}
}

func hasError(diags []api.Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == api.SeverityError {
			return true
		}
	}
	return false
}

func doCheck(args []string, stdErr io.Writer) int {
	flags := flag.NewFlagSet("check", flag.ExitOnError)
	flags.SetOutput(stdErr)
	var help bool
	flags.BoolVar(&help, "h", false, "Prints usage.")
	_ = flags.Parse(args)

	if help {
		printUsage(stdErr)
		return 0
	}
	if flags.NArg() < 1 {
		fmt.Fprintln(stdErr, "missing path to source file")
		printUsage(stdErr)
		return 1
	}

	h, entry, err := newHost(flags.Arg(0))
	if err != nil {
		fmt.Fprintf(stdErr, "error resolving %q: %v\n", flags.Arg(0), err)
		return 1
	}

	_, diags, err := api.Compile(h, entry)
	if err != nil {
		fmt.Fprintf(stdErr, "error: %v\n", err)
		return 1
	}
	printDiagnostics(stdErr, diags)
	if hasError(diags) {
		return 1
	}
	return 0
}

func doBuild(args []string, stdErr io.Writer) int {
	flags := flag.NewFlagSet("build", flag.ExitOnError)
	flags.SetOutput(stdErr)
	var help bool
	flags.BoolVar(&help, "h", false, "Prints usage.")
	var out string
	flags.StringVar(&out, "o", "", "Output path for the compiled WASM-GC binary (defaults to <file> with a .wasm extension).")
	_ = flags.Parse(args)

	if help {
		printUsage(stdErr)
		return 0
	}
	if flags.NArg() < 1 {
		fmt.Fprintln(stdErr, "missing path to source file")
		printUsage(stdErr)
		return 1
	}

	h, entry, err := newHost(flags.Arg(0))
	if err != nil {
		fmt.Fprintf(stdErr, "error resolving %q: %v\n", flags.Arg(0), err)
		return 1
	}

	result, diags, err := api.Compile(h, entry)
	if err != nil {
		fmt.Fprintf(stdErr, "error: %v\n", err)
		return 1
	}
	printDiagnostics(stdErr, diags)
	if result == nil {
		return 1
	}

	if out == "" {
		ext := filepath.Ext(flags.Arg(0))
		out = flags.Arg(0)[:len(flags.Arg(0))-len(ext)] + ".wasm"
	}
	if err := os.WriteFile(out, result.Bytes, 0o644); err != nil {
		fmt.Fprintf(stdErr, "error writing %q: %v\n", out, err)
		return 1
	}
	return 0
}

func doRun(args []string, stdOut, stdErr io.Writer) int {
	flags := flag.NewFlagSet("run", flag.ExitOnError)
	flags.SetOutput(stdErr)
	var help bool
	flags.BoolVar(&help, "h", false, "Prints usage.")
	_ = flags.Parse(args)

	if help {
		printUsage(stdErr)
		return 0
	}
	if flags.NArg() < 1 {
		fmt.Fprintln(stdErr, "missing path to source file")
		printUsage(stdErr)
		return 1
	}

	h, entry, err := newHost(flags.Arg(0))
	if err != nil {
		fmt.Fprintf(stdErr, "error resolving %q: %v\n", flags.Arg(0), err)
		return 1
	}

	result, diags, err := api.Compile(h, entry)
	if err != nil {
		fmt.Fprintf(stdErr, "error: %v\n", err)
		return 1
	}
	printDiagnostics(stdErr, diags)
	if result == nil {
		return 1
	}

	if _, err := stdOut.Write(result.Bytes); err != nil {
		fmt.Fprintf(stdErr, "error writing wasm bytes to stdout: %v\n", err)
		return 1
	}
	return 0
}
