// Package llvm finishes the back half of the pipeline: it verifies the
// LLVM module the lowerer built and drives a TargetMachine to turn it into
// a native object file. The optimizer is the target machine's own pipeline
// at aggressive level; no external optimizer tool is involved.
package llvm

import (
	"errors"
	"fmt"
	"os"

	"tinygo.org/x/go-llvm"
)

// initDone guards the process-wide LLVM target registrations, which must
// run before the first TargetMachine is created. The driver is
// single-threaded through emission, so a plain flag suffices.
var initDone bool

func initTargets() {
	if initDone {
		return
	}
	llvm.InitializeAllTargetInfos()
	llvm.InitializeAllTargets()
	llvm.InitializeAllTargetMCs()
	llvm.InitializeAllAsmParsers()
	llvm.InitializeAllAsmPrinters()
	initDone = true
}

// Verify runs LLVM's module verifier. A verification failure here means
// the lowerer produced inconsistent IR (a block without a terminator, a
// call with mismatched operand types) and is an internal compiler error,
// fatal for the compilation.
func Verify(m llvm.Module) error {
	if err := llvm.VerifyModule(m, llvm.ReturnStatusAction); err != nil {
		return fmt.Errorf("internal error: IR verification failed: %w", err)
	}
	return nil
}

// IRText renders the module as textual LLVM IR for `build --emit ir`.
func IRText(m llvm.Module) string {
	return m.String()
}

// EmitObject configures a target machine for the host's default target
// triple and writes m as a native object file at out. The target machine
// uses the "generic" CPU model with no extra features, so code is not tuned
// for the particular host CPU. Relocations are position independent and
// code generation runs at aggressive optimization level.
func EmitObject(m llvm.Module, out string) (err error) {
	initTargets()

	triple := llvm.DefaultTargetTriple()
	target, terr := llvm.GetTargetFromTriple(triple)
	if terr != nil {
		return fmt.Errorf("no LLVM target for host triple %s: %w", triple, terr)
	}

	tm := target.CreateTargetMachine(triple, "generic", "",
		llvm.CodeGenLevelAggressive,
		llvm.RelocPIC,
		llvm.CodeModelDefault)
	defer tm.Dispose()

	td := tm.CreateTargetData()
	defer td.Dispose()
	m.SetDataLayout(td.String())
	m.SetTarget(tm.Triple())

	buf, eerr := tm.EmitToMemoryBuffer(m, llvm.ObjectFile)
	if eerr != nil {
		return eerr
	}
	defer buf.Dispose()
	if buf.IsNil() {
		return errors.New("could not emit compiled code to memory")
	}

	fd, oerr := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if oerr != nil {
		return oerr
	}
	defer func() {
		if cerr := fd.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if _, err = fd.Write(buf.Bytes()); err != nil {
		return err
	}
	return err
}
