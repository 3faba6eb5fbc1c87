package stdlib

import (
	"os"
	"path/filepath"
	"testing"

	"tea/internal/types"
)

// TestEmbeddedSnapshot verifies the compiled-in manifest exposes the fixed
// module set with plausible signatures.
func TestEmbeddedSnapshot(t *testing.T) {
	snap, err := Load()
	if err != nil {
		t.Fatalf("Load: %s", err)
	}
	for _, mod := range []string{
		"std.debug", "std.assert", "std.fs", "std.path",
		"std.env", "std.json", "std.yaml", "std.string",
	} {
		if _, ok := snap.Exports(mod); !ok {
			t.Errorf("embedded snapshot is missing %s", mod)
		}
	}

	read, ok := snap.Lookup("std.fs", "read")
	if !ok {
		t.Fatal("std.fs.read missing")
	}
	if read.Kind != types.KFunc || read.Ret.Kind != types.KString || len(read.Params) != 1 {
		t.Errorf("std.fs.read signature = %v", read)
	}
	if len(read.Throws) == 0 {
		t.Errorf("std.fs.read should declare throws, got none")
	}

	if _, ok := snap.Exports("std.nope"); ok {
		t.Error("unknown module should not resolve")
	}
}

// TestDiskOverride verifies TEA_STDLIB_PATH redirects loading to an
// on-disk manifest.
func TestDiskOverride(t *testing.T) {
	dir := t.TempDir()
	manifest := "modules:\n  std.debug:\n    functions:\n      dump:\n        params: [\"Any\"]\n        returns: \"Void\"\n"
	if err := os.WriteFile(filepath.Join(dir, "snapshot.yaml"), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvOverride, dir)

	snap, err := Load()
	if err != nil {
		t.Fatalf("Load with override: %s", err)
	}
	if _, ok := snap.Exports("std.debug"); !ok {
		t.Error("override manifest's module missing")
	}
	if _, ok := snap.Exports("std.fs"); ok {
		t.Error("override should fully replace the embedded manifest")
	}
}

// TestMissingOverride verifies a bad override path surfaces as an error
// rather than silently falling back.
func TestMissingOverride(t *testing.T) {
	t.Setenv(EnvOverride, filepath.Join(t.TempDir(), "does-not-exist"))
	if _, err := Load(); err == nil {
		t.Error("expected an error for a missing override manifest")
	}
}
