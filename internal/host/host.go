// Package host implements the compiler host collaborator of spec.md
// §6.1: the two operations (resolve, load) the compiler uses to turn an
// import specifier into source text, kept external to the compiler
// proper so the same internal/compiler pipeline can run against a real
// project directory, an in-memory test fixture, or a future virtual
// module resolver without the compiler package knowing the difference.
package host

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

// CompilerHost abstracts filesystem access per spec.md §6.1. A new
// Compiler (internal/compiler) holds exactly one of these for the
// lifetime of a compilation.
type CompilerHost interface {
	// Resolve turns an import specifier (as written in source, e.g.
	// "./util", "std:string") plus the path of the module doing the
	// importing into a canonical resolved module name. Resolution of
	// virtual std: specifiers is target-dependent (host vs. wasi); see
	// Manifest.
	Resolve(specifier, referrer string) (string, error)
	// Load returns the source text for a name already produced by
	// Resolve. It may perform blocking I/O; internal/compiler memoizes
	// calls so each resolved name is loaded at most once per
	// compilation (spec.md §5).
	Load(resolved string) (string, error)
}

// Target picks which virtual mapping Resolve uses for std: specifiers
// (spec.md §6.1's "std:string-host" vs. "std:string-wasi" example).
type Target int

const (
	TargetHost Target = iota
	TargetWASI
)

func (t Target) String() string {
	if t == TargetWASI {
		return "wasi"
	}
	return "host"
}

// FSHost is the default CompilerHost: relative specifiers resolve
// against an afero.Fs project root (so tests can run entirely against
// afero.NewMemMapFs(), never touching disk, the way the teacher's own
// sysfs package is exercised against fstest fixtures), and std:
// specifiers resolve through a Manifest.
type FSHost struct {
	FS       afero.Fs
	Root     string
	Manifest *Manifest
	Target   Target
	// StdDir is the root-relative directory holding override source
	// files for virtual modules, one file per resolved name with a
	// ".wgc" extension (e.g. StdDir/"string-host.wgc").
	StdDir string
}

// NewFSHost builds a host rooted at root within fs, serving virtual
// std: modules out of stdDir according to manifest.
func NewFSHost(fs afero.Fs, root string, manifest *Manifest, target Target, stdDir string) *FSHost {
	if stdDir == "" {
		stdDir = "std"
	}
	return &FSHost{FS: fs, Root: root, Manifest: manifest, Target: target, StdDir: stdDir}
}

// Resolve implements CompilerHost.
func (h *FSHost) Resolve(specifier, referrer string) (string, error) {
	if strings.HasPrefix(specifier, "std:") {
		mod, ok := h.Manifest.Modules[specifier]
		if !ok {
			return "", fmt.Errorf("module not found: %s", specifier)
		}
		if mod.Virtual != nil {
			switch h.Target {
			case TargetWASI:
				if mod.Virtual.WASI != "" {
					return "std:" + mod.Virtual.WASI, nil
				}
			default:
				if mod.Virtual.Host != "" {
					return "std:" + mod.Virtual.Host, nil
				}
			}
		}
		return specifier, nil
	}

	if !strings.HasPrefix(specifier, "./") && !strings.HasPrefix(specifier, "../") {
		if referrer == "" {
			// The driver's entry module arrives as a bare root-relative
			// name; only imports written in source must use ./ or ../.
			return specifier, nil
		}
		return "", fmt.Errorf("module not found: %s", specifier)
	}

	dir := "."
	if referrer != "" {
		dir = path.Dir(referrer)
	}
	joined := path.Clean(path.Join(dir, specifier))

	// A bare specifier without extension is matched against the
	// project root via a glob so "./util" resolves to "util.wgc"
	// without the importer spelling out the extension.
	if path.Ext(joined) == "" {
		candidates, err := doublestar.Glob(afero.NewIOFS(h.FS), path.Join(h.Root, joined+".wgc"))
		if err == nil && len(candidates) == 1 {
			rel := strings.TrimPrefix(candidates[0], h.Root)
			return strings.TrimPrefix(rel, "/"), nil
		}
		joined += ".wgc"
	}
	return joined, nil
}

// Load implements CompilerHost.
func (h *FSHost) Load(resolved string) (string, error) {
	var p string
	if strings.HasPrefix(resolved, "std:") {
		p = path.Join(h.Root, h.StdDir, strings.TrimPrefix(resolved, "std:")+".wgc")
	} else {
		p = path.Join(h.Root, resolved)
	}
	data, err := afero.ReadFile(h.FS, p)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", resolved, err)
	}
	return string(data), nil
}
