// Package link invokes the system linker to turn a compiled object file
// into an executable. The compiler never links anything itself; it shells
// out to the host C compiler driver, which knows the platform's crt
// objects and default library paths.
package link

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Job describes one link invocation. Inputs are passed to the linker in
// the order the fields are listed: the entry stub (which defines main and
// calls tea_main), the user's object, the runtime static library, then
// platform system libraries.
type Job struct {
	EntryStub  string   // Path to the entry stub object.
	UserObject string   // Path to the compiled user module object.
	RuntimeLib string   // Path to the runtime static library.
	SystemLibs []string // Extra -l flags, e.g. "m".
	Output     string   // Executable path, e.g. bin/<module>.
	Linker     string   // Linker driver binary; "" selects cc.
}

// ---------------------
// ----- Constants -----
// ---------------------

// EnvRuntimePath overrides the directory the runtime artifacts (entry
// stub object and static library) are looked up in.
const EnvRuntimePath = "TEA_RUNTIME_PATH"

const (
	entryStubName  = "tea_entry.o"
	runtimeLibName = "libtea_rt.a"
)

// ---------------------
// ----- Functions -----
// ---------------------

// DefaultJob fills a Job for userObject, locating the entry stub and
// runtime library next to the compiler executable (lib/ sibling of the
// binary's directory) unless TEA_RUNTIME_PATH points elsewhere.
func DefaultJob(userObject, output string) (Job, error) {
	dir := os.Getenv(EnvRuntimePath)
	if dir == "" {
		exe, err := os.Executable()
		if err != nil {
			return Job{}, fmt.Errorf("cannot locate compiler executable: %w", err)
		}
		dir = filepath.Join(filepath.Dir(exe), "..", "lib")
	}
	return Job{
		EntryStub:  filepath.Join(dir, entryStubName),
		UserObject: userObject,
		RuntimeLib: filepath.Join(dir, runtimeLibName),
		SystemLibs: []string{"m"},
		Output:     output,
	}, nil
}

// Args returns the full linker command line for j, excluding the linker
// binary itself. Input order is significant and fixed.
func (j Job) Args() []string {
	args := []string{j.EntryStub, j.UserObject, j.RuntimeLib}
	for _, l := range j.SystemLibs {
		args = append(args, "-l"+l)
	}
	return append(args, "-o", j.Output)
}

// Run checks that every input artifact exists, then executes the linker.
// A nonzero linker exit is returned with the child's stderr verbatim.
func (j Job) Run() error {
	for _, in := range []string{j.EntryStub, j.UserObject, j.RuntimeLib} {
		if _, err := os.Stat(in); err != nil {
			return fmt.Errorf("missing link input %s: %w", in, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(j.Output), 0755); err != nil {
		return err
	}

	linker := j.Linker
	if linker == "" {
		linker = "cc"
	}
	if _, err := exec.LookPath(linker); err != nil {
		return fmt.Errorf("system linker %s not found: %w", linker, err)
	}

	cmd := exec.Command(linker, j.Args()...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimRight(stderr.String(), "\n")
		if msg == "" {
			return fmt.Errorf("%s: %w", linker, err)
		}
		return fmt.Errorf("%s: %w\n%s", linker, err, msg)
	}
	return nil
}
