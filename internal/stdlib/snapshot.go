// Package stdlib loads the embedded standard-library snapshot: the typed
// signatures of every std.* / support.* module the resolver and type
// checker may reference. The compiler never sees the Tea-language bodies
// of the standard library, only this opaque signature table; the bodies
// exist as runtime symbols the emitted code calls by name.
//
// The snapshot is a YAML manifest parsed with gopkg.in/yaml.v3 and
// embedded with embed.FS so the compiler needs no sidecar file to resolve
// std imports.
package stdlib

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"tea/internal/types"
)

//go:embed snapshot.yaml
var embedded embed.FS

// EnvOverride is the environment variable that points the snapshot loader
// at an on-disk manifest instead of the embedded one, for stdlib
// development.
const EnvOverride = "TEA_STDLIB_PATH"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// manifest is the YAML document shape.
type manifest struct {
	Modules map[string]struct {
		Functions map[string]struct {
			Params  []string `yaml:"params"`
			Returns string   `yaml:"returns"`
			Throws  []string `yaml:"throws"`
		} `yaml:"functions"`
	} `yaml:"modules"`
}

// Snapshot is the resolved, type-checked-ready view of the manifest: every
// exported function's signature as a *types.Type, keyed by module path then
// function name.
type Snapshot struct {
	exports map[string]map[string]*types.Type
}

// ---------------------
// ----- Functions -----
// ---------------------

// Load reads the snapshot. If TEA_STDLIB_PATH is set, it reads
// "<path>/snapshot.yaml" from disk (development override); otherwise it
// parses the embedded manifest.
func Load() (*Snapshot, error) {
	var raw []byte
	var err error
	if dir := os.Getenv(EnvOverride); dir != "" {
		raw, err = os.ReadFile(filepath.Join(dir, "snapshot.yaml"))
		if err != nil {
			return nil, fmt.Errorf("reading %s override: %w", EnvOverride, err)
		}
	} else {
		raw, err = embedded.ReadFile("snapshot.yaml")
		if err != nil {
			return nil, fmt.Errorf("reading embedded stdlib snapshot: %w", err)
		}
	}
	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parsing stdlib snapshot: %w", err)
	}

	snap := &Snapshot{exports: make(map[string]map[string]*types.Type, len(m.Modules))}
	for modPath, mod := range m.Modules {
		fns := make(map[string]*types.Type, len(mod.Functions))
		for name, sig := range mod.Functions {
			params := make([]*types.Type, len(sig.Params))
			for i1, p := range sig.Params {
				params[i1] = parseTypeSpelling(p)
			}
			throws := make([]types.ErrorVariantRef, 0, len(sig.Throws))
			for _, t := range sig.Throws {
				if ref, ok := splitVariant(t); ok {
					throws = append(throws, ref)
				}
			}
			fns[name] = types.Func(params, parseTypeSpelling(sig.Returns), throws)
		}
		snap.exports[modPath] = fns
	}
	return snap, nil
}

// Exports returns every exported function signature of modPath.
func (s *Snapshot) Exports(modPath string) (map[string]*types.Type, bool) {
	fns, ok := s.exports[modPath]
	return fns, ok
}

// Lookup returns the signature of one exported function.
func (s *Snapshot) Lookup(modPath, name string) (*types.Type, bool) {
	fns, ok := s.exports[modPath]
	if !ok {
		return nil, false
	}
	t, ok := fns[name]
	return t, ok
}

// parseTypeSpelling converts the small set of type spellings the snapshot
// manifest uses into a *types.Type. "Any" stands for an unchecked dynamic
// value accepted by intrinsics-like stdlib entry points.
func parseTypeSpelling(spelling string) *types.Type {
	optional := false
	if len(spelling) > 0 && spelling[len(spelling)-1] == '?' {
		optional = true
		spelling = spelling[:len(spelling)-1]
	}
	var t *types.Type
	switch {
	case spelling == "Bool":
		t = types.Bool
	case spelling == "Int":
		t = types.Int
	case spelling == "Float":
		t = types.Float
	case spelling == "String":
		t = types.String
	case spelling == "Void":
		t = types.Void
	case spelling == "Any":
		t = types.Unknown(0)
	case len(spelling) > 5 && spelling[:5] == "List(":
		t = types.List(parseTypeSpelling(spelling[5 : len(spelling)-1]))
	case len(spelling) > 5 && spelling[:5] == "Dict(":
		inner := spelling[5 : len(spelling)-1]
		for i1 := 0; i1 < len(inner); i1++ {
			if inner[i1] == ',' {
				return dictOf(inner[:i1], inner[i1+2:], optional)
			}
		}
		t = types.Dict(types.String, types.Unknown(0))
	default:
		t = types.Unknown(0)
	}
	if optional {
		return types.Optional(t)
	}
	return t
}

func dictOf(key, val string, optional bool) *types.Type {
	t := types.Dict(parseTypeSpelling(key), parseTypeSpelling(val))
	if optional {
		return types.Optional(t)
	}
	return t
}

// splitVariant parses "ErrorName.Variant" into an ErrorVariantRef.
func splitVariant(s string) (types.ErrorVariantRef, bool) {
	for i1 := 0; i1 < len(s); i1++ {
		if s[i1] == '.' {
			return types.ErrorVariantRef{ErrorName: s[:i1], VariantName: s[i1+1:]}, true
		}
	}
	return types.ErrorVariantRef{}, false
}
