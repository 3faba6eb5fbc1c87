// Package driver runs the compilation pipeline end to end: it owns file
// I/O, the source map, the diagnostic sink, and the stage ordering
// Parsed → Resolved → Typed → Monomorphized → Lowered → Emitted → Linked.
// Each stage boundary checks whether any hard diagnostic was reported and
// stops the pipeline there; all collected diagnostics are rendered before
// the driver returns.
package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"tea/internal/ast"
	"tea/internal/check"
	"tea/internal/diag"
	irllvm "tea/internal/ir/llvm"
	"tea/internal/link"
	"tea/internal/lower"
	"tea/internal/mono"
	"tea/internal/parser"
	"tea/internal/resolve"
	"tea/internal/sourcemap"
	"tea/internal/stdlib"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Emit selects how far the pipeline runs and what it writes.
type Emit int

const (
	EmitExecutable Emit = iota // Full pipeline through the linker.
	EmitIR                     // Print textual IR to stdout and stop.
	EmitObject                 // Stop after writing the object file.
)

// Options configures one compilation.
type Options struct {
	Src     string // Path to the main .tea source file.
	Out     string // Output path override; "" selects the default.
	Emit    Emit
	Verbose bool
}

// Stage names the compilation state machine's states, in order. A stage
// is only entered when the previous one finished without hard errors.
type Stage int

const (
	StageParsed Stage = iota
	StageResolved
	StageTyped
	StageMonomorphized
	StageLowered
	StageEmitted
	StageLinked
)

var stageNames = [...]string{
	"parsed", "resolved", "typed", "monomorphized", "lowered", "emitted", "linked",
}

// String returns the stage's lowercase name for verbose output.
func (s Stage) String() string { return stageNames[s] }

// compilation bundles the per-run state every stage shares.
type compilation struct {
	opts  Options
	srcs  *sourcemap.Map
	sink  *diag.Sink
	start time.Time
}

// loader resolves relative `use` imports for the resolver. Paths are
// interpreted relative to the importing file's directory; the .tea
// extension may be omitted in source.
type loader struct {
	c *compilation
}

// ---------------------
// ----- Functions -----
// ---------------------

// Run compiles opts.Src. It renders every collected diagnostic to stderr
// and returns a non-nil error if compilation failed at any stage.
func Run(opts Options) error {
	c := &compilation{
		opts:  opts,
		srcs:  sourcemap.New(),
		sink:  diag.NewSink(),
		start: time.Now(),
	}
	err := c.run()
	c.sink.Stop()
	Render(os.Stderr, c.srcs, c.sink.Diagnostics())
	return err
}

func (c *compilation) run() error {
	text, err := os.ReadFile(c.opts.Src)
	if err != nil {
		return fmt.Errorf("could not read source code: %w", err)
	}
	file := c.srcs.AddFile(c.opts.Src, string(text))

	module := parser.Parse(file, string(text), c.sink)
	if err := c.barrier(StageParsed); err != nil {
		return err
	}

	std, err := stdlib.Load()
	if err != nil {
		return fmt.Errorf("could not load standard library snapshot: %w", err)
	}

	res := resolve.New(c.sink, loader{c}, std, file).Resolve(module)
	if err := c.barrier(StageResolved); err != nil {
		return err
	}

	chk := check.New(c.sink, std, res)
	chk.Check(module)
	if err := c.barrier(StageTyped); err != nil {
		return err
	}

	reg := mono.Build(module, chk)
	if err := c.barrier(StageMonomorphized); err != nil {
		return err
	}

	low := lower.Lower(c.sink, module, chk, reg, c.moduleName())
	defer low.Dispose()
	if err := c.barrier(StageLowered); err != nil {
		return err
	}
	if err := irllvm.Verify(low.Module()); err != nil {
		return err
	}

	if c.opts.Emit == EmitIR {
		fmt.Print(irllvm.IRText(low.Module()))
		return nil
	}

	objPath, err := c.objectPath()
	if err != nil {
		return err
	}
	if err := irllvm.EmitObject(low.Module(), objPath); err != nil {
		return fmt.Errorf("object emission failed: %w", err)
	}
	if err := c.barrier(StageEmitted); err != nil {
		return err
	}
	if c.opts.Emit == EmitObject {
		c.summary(objPath)
		return nil
	}

	exePath := c.opts.Out
	if exePath == "" {
		exePath = filepath.Join("bin", c.moduleName())
	}
	job, err := link.DefaultJob(objPath, exePath)
	if err != nil {
		return err
	}
	if err := job.Run(); err != nil {
		return fmt.Errorf("linking failed: %w", err)
	}
	if err := c.barrier(StageLinked); err != nil {
		return err
	}
	c.summary(exePath)
	return nil
}

// barrier is the stage-boundary cancellation check: it stops the pipeline
// as soon as any hard diagnostic has been reported.
func (c *compilation) barrier(done Stage) error {
	if c.opts.Verbose {
		fmt.Fprintf(os.Stderr, "teac: %s %s in %s\n",
			c.moduleName(), done, time.Since(c.start).Round(time.Millisecond))
	}
	if c.sink.HardFailed() {
		return fmt.Errorf("compilation failed after stage %s", done)
	}
	return nil
}

// moduleName derives the module name from the main source file's base
// name, e.g. "examples/hello.tea" -> "hello".
func (c *compilation) moduleName() string {
	base := filepath.Base(c.opts.Src)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// objectPath picks where the object file is written: the -o override when
// compilation stops at the object, otherwise a per-compilation temp
// directory the linker consumes from.
func (c *compilation) objectPath() (string, error) {
	if c.opts.Emit == EmitObject {
		if c.opts.Out != "" {
			return c.opts.Out, nil
		}
		return c.moduleName() + ".o", nil
	}
	dir, err := os.MkdirTemp("", "teac-*")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.moduleName()+".o"), nil
}

// summary reports the produced artifact and its size in verbose mode.
func (c *compilation) summary(path string) {
	if !c.opts.Verbose {
		return
	}
	size := "unknown size"
	if fi, err := os.Stat(path); err == nil {
		size = humanize.Bytes(uint64(fi.Size()))
	}
	fmt.Fprintf(os.Stderr, "teac: wrote %s (%s) in %s\n",
		path, size, time.Since(c.start).Round(time.Millisecond))
}

// LoadRelative implements resolve.Loader. It reads, registers and parses
// the referenced sibling module so the resolver can inline its
// declarations into the importer.
func (l loader) LoadRelative(fromFile sourcemap.FileID, path string) (*ast.Node, sourcemap.FileID, error) {
	rel := path
	if filepath.Ext(rel) == "" {
		rel += ".tea"
	}
	full := filepath.Join(filepath.Dir(l.c.srcs.Path(fromFile)), rel)
	text, err := os.ReadFile(full)
	if err != nil {
		return nil, sourcemap.NoFile, err
	}
	id := l.c.srcs.AddFile(full, string(text))
	return parser.Parse(id, string(text), l.c.sink), id, nil
}
