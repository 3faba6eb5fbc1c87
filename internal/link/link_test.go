package link

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestArgsOrder verifies the fixed linker input order: entry stub, user
// object, runtime library, system libs, output.
func TestArgsOrder(t *testing.T) {
	j := Job{
		EntryStub:  "lib/tea_entry.o",
		UserObject: "tmp/app.o",
		RuntimeLib: "lib/libtea_rt.a",
		SystemLibs: []string{"m"},
		Output:     "bin/app",
	}
	want := []string{"lib/tea_entry.o", "tmp/app.o", "lib/libtea_rt.a", "-lm", "-o", "bin/app"}
	if diff := cmp.Diff(want, j.Args()); diff != "" {
		t.Errorf("Args mismatch (-want +got):\n%s", diff)
	}
}

// TestRunMissingInput verifies a missing artifact fails before the linker
// is even invoked, naming the path.
func TestRunMissingInput(t *testing.T) {
	dir := t.TempDir()
	j := Job{
		EntryStub:  filepath.Join(dir, "missing_entry.o"),
		UserObject: filepath.Join(dir, "app.o"),
		RuntimeLib: filepath.Join(dir, "librt.a"),
		Output:     filepath.Join(dir, "bin", "app"),
	}
	err := j.Run()
	if err == nil {
		t.Fatal("expected an error for missing link inputs")
	}
	if !strings.Contains(err.Error(), "missing_entry.o") {
		t.Errorf("error should name the missing input, got: %s", err)
	}
}

// TestRunSurfacesLinkerStderr verifies a failing linker's stderr comes
// back verbatim in the error.
func TestRunSurfacesLinkerStderr(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"entry.o", "app.o", "librt.a"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("not a real object"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	fake := filepath.Join(dir, "fakeld")
	script := "#!/bin/sh\necho \"undefined reference to tea_main\" >&2\nexit 1\n"
	if err := os.WriteFile(fake, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	j := Job{
		EntryStub:  filepath.Join(dir, "entry.o"),
		UserObject: filepath.Join(dir, "app.o"),
		RuntimeLib: filepath.Join(dir, "librt.a"),
		Output:     filepath.Join(dir, "bin", "app"),
		Linker:     fake,
	}
	err := j.Run()
	if err == nil {
		t.Fatal("expected the fake linker's failure to propagate")
	}
	if !strings.Contains(err.Error(), "undefined reference to tea_main") {
		t.Errorf("child stderr not surfaced verbatim: %s", err)
	}
}

// TestDefaultJobOverride verifies TEA_RUNTIME_PATH redirects artifact
// lookup.
func TestDefaultJobOverride(t *testing.T) {
	t.Setenv(EnvRuntimePath, "/opt/tea/lib")
	j, err := DefaultJob("tmp/app.o", "bin/app")
	if err != nil {
		t.Fatal(err)
	}
	if j.EntryStub != "/opt/tea/lib/tea_entry.o" || j.RuntimeLib != "/opt/tea/lib/libtea_rt.a" {
		t.Errorf("runtime artifacts not resolved under override: %+v", j)
	}
}
