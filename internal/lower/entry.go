package lower

import (
	"tinygo.org/x/go-llvm"

	"tea/internal/ast"
	"tea/internal/types"
)

// lowerTeaMain emits the implicit entry point, tea_main, from a module's
// top-level statements outside any function/struct/enum/error/use
// declaration. It returns Int: the entry stub's C main() calls tea_main
// and forwards its result to the OS as the process exit code.
func (l *Lowerer) lowerTeaMain(stmts []*ast.Node) {
	ftyp := llvm.FunctionType(llvm.Int64Type(), nil, false)
	fn := llvm.AddFunction(l.mod, "tea_main", ftyp)
	l.funcs["tea_main"] = fn

	bb := llvm.AddBasicBlock(fn, "")
	l.b.SetInsertPointAtEnd(bb)
	l.scopes.push()
	defer l.scopes.pop()

	prevThrows, prevErrOut, prevRet := l.curThrows, l.curErrOut, l.curRet
	l.curThrows = nil
	l.curErrOut = llvm.Value{}
	l.curRet = types.Int
	prevBoxed := l.curBoxed
	l.curBoxed = capturedVars(stmts)

	terminated := l.lowerBlockStmts(stmts)
	l.curBoxed = prevBoxed
	if !terminated {
		l.b.CreateRet(llvm.ConstInt(llvm.Int64Type(), 0, false))
	}
	l.curThrows, l.curErrOut, l.curRet = prevThrows, prevErrOut, prevRet
}
