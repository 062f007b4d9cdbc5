package host

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// VirtualMapping names the host-target and wasi-target source files a
// virtual stdlib module maps to (spec.md §6.1: "std:string → std:string-host
// for the host target or std:string-wasi for WASI").
type VirtualMapping struct {
	Host string `yaml:"host" json:"host"`
	WASI string `yaml:"wasi" json:"wasi"`
}

// ManifestModule is one publicly importable stdlib module entry.
type ManifestModule struct {
	Virtual *VirtualMapping `yaml:"virtual,omitempty" json:"virtual,omitempty"`
}

// Manifest is the stdlib manifest of spec.md §6.2: the set of publicly
// importable module names (each optionally with a host/wasi virtual
// mapping) plus the internal names reachable only by the compiler's own
// prelude injection, never by a user import.
//
// Authored as YAML (a human-editable superset of JSON) and decoded with
// yaml.v3; since YAML 1.2 is a JSON superset, a manifest author who
// prefers to write plain JSON still satisfies spec.md's "a JSON
// document" wording.
type Manifest struct {
	Modules  map[string]ManifestModule `yaml:"modules" json:"modules"`
	Internal []string                  `yaml:"internal" json:"internal"`
}

//go:embed manifest.yaml
var defaultManifestYAML []byte

// DefaultManifest returns the compiler's built-in stdlib manifest
// (std:string, std:array, std:console, std:math), embedded at build
// time so a compilation never depends on a manifest file existing on
// disk unless the caller supplies one.
func DefaultManifest() (*Manifest, error) {
	return LoadManifest(defaultManifestYAML)
}

// LoadManifest decodes a stdlib manifest document. Accepts both YAML
// and (being a YAML superset) plain JSON.
func LoadManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse stdlib manifest: %w", err)
	}
	if m.Modules == nil {
		m.Modules = map[string]ManifestModule{}
	}
	return &m, nil
}

// IsInternal reports whether name is reserved for the compiler's own
// prelude injection and therefore must never resolve for a user import
// (spec.md §6.2).
func (m *Manifest) IsInternal(name string) bool {
	for _, n := range m.Internal {
		if n == name {
			return true
		}
	}
	return false
}
