package lower

import (
	"tinygo.org/x/go-llvm"

	"tea/internal/ast"
	"tea/internal/types"
)

// lowerBlockStmts lowers every statement of a block in order, stopping
// early if one of them terminates the current basic block (a Return or a
// Throw); emitting past a terminator would leave the block with two.
func (l *Lowerer) lowerBlockStmts(stmts []*ast.Node) (terminated bool) {
	for _, s := range stmts {
		if l.lowerStmt(s) {
			return true
		}
	}
	return false
}

// lowerStmt lowers one statement, returning true if it terminated the
// current basic block.
func (l *Lowerer) lowerStmt(n *ast.Node) bool {
	switch n.Typ {
	case ast.VarDecl, ast.ConstDecl:
		l.lowerLocalDecl(n)
	case ast.If:
		return l.lowerIfStmt(n)
	case ast.Unless:
		return l.lowerUnlessStmt(n)
	case ast.While:
		l.lowerWhile(n)
	case ast.Until:
		l.lowerUntil(n)
	case ast.For:
		l.lowerFor(n)
	case ast.Return:
		l.lowerReturn(n)
		return true
	case ast.Throw:
		l.lowerThrow(n)
		return true
	case ast.Block:
		return l.lowerBlockStmts(n.Children)
	default:
		l.lowerExpr(n)
	}
	return false
}

func (l *Lowerer) lowerLocalDecl(n *ast.Node) {
	d := n.Data.(ast.DeclData)
	t, _ := l.c.DeclTypeOf(n)
	initIdx := 0
	if d.HasType {
		initIdx = 1
	}
	var val llvm.Value
	if initIdx < len(n.Children) {
		init := n.Children[initIdx]
		val = l.lowerExpr(init)
		it, _ := l.c.ExprType(init.ID)
		val = l.coerce(t, it, val)
	} else {
		val = llvm.ConstNull(l.teaType(t))
	}
	if n.Typ == ast.VarDecl && l.curBoxed[d.Name] {
		// Some lambda below captures this var: give it a shared heap
		// cell instead of an alloca so mutation is seen on both sides.
		cell := l.callRT("rt_cell_new", l.asPtr(l.teaType(t), val))
		l.scopes.declareBoxed(d.Name, cell)
		return
	}
	slot := l.b.CreateAlloca(l.teaType(t), "")
	l.b.CreateStore(val, slot)
	l.scopes.declare(d.Name, slot)
}

// lowerIfStmt emits one conditional branch to a
// then-block and, if present, an else-block, converging on a shared
// continuation block (allocated lazily, only reached by a non-terminating
// branch).
func (l *Lowerer) lowerIfStmt(n *ast.Node) bool {
	cond := l.lowerExpr(n.Children[0])
	fn := l.b.GetInsertBlock().Parent()

	thenBB := llvm.AddBasicBlock(fn, "")
	var elseBB, contBB llvm.BasicBlock
	hasElse := len(n.Children) >= 3
	if hasElse {
		elseBB = llvm.AddBasicBlock(fn, "")
	}

	if hasElse {
		l.b.CreateCondBr(cond, thenBB, elseBB)
	} else {
		contBB = llvm.AddBasicBlock(fn, "")
		l.b.CreateCondBr(cond, thenBB, contBB)
	}

	l.b.SetInsertPointAtEnd(thenBB)
	l.scopes.push()
	thenTerm := l.lowerBlockStmts(n.Children[1].Children)
	l.scopes.pop()
	if !thenTerm {
		if contBB.IsNil() {
			contBB = llvm.AddBasicBlock(fn, "")
		}
		l.b.CreateBr(contBB)
	}

	elseTerm := false
	if hasElse {
		l.b.SetInsertPointAtEnd(elseBB)
		elseNode := n.Children[2]
		l.scopes.push()
		if elseNode.Typ == ast.If {
			elseTerm = l.lowerIfStmt(elseNode)
		} else {
			elseTerm = l.lowerBlockStmts(elseNode.Children)
		}
		l.scopes.pop()
		if !elseTerm {
			if contBB.IsNil() {
				contBB = llvm.AddBasicBlock(fn, "")
			}
			l.b.CreateBr(contBB)
		}
	}

	// Without an else the false edge always falls through to contBB, so
	// the statement only terminates when both explicit branches did.
	if hasElse && thenTerm && elseTerm {
		return true
	}
	l.b.SetInsertPointAtEnd(contBB)
	return false
}

// lowerUnlessStmt lowers `unless cond ... end`, the negated-condition
// sibling of `if` with no else clause.
func (l *Lowerer) lowerUnlessStmt(n *ast.Node) bool {
	cond := l.lowerExpr(n.Children[0])
	notCond := l.b.CreateICmp(llvm.IntEQ, cond, llvm.ConstInt(llvm.Int1Type(), 0, false), "")
	fn := l.b.GetInsertBlock().Parent()
	thenBB := llvm.AddBasicBlock(fn, "")
	contBB := llvm.AddBasicBlock(fn, "")
	l.b.CreateCondBr(notCond, thenBB, contBB)

	l.b.SetInsertPointAtEnd(thenBB)
	l.scopes.push()
	term := l.lowerBlockStmts(n.Children[1].Children)
	l.scopes.pop()
	if !term {
		l.b.CreateBr(contBB)
	}
	l.b.SetInsertPointAtEnd(contBB)
	return false
}

// lowerWhile emits a head block re-evaluating
// the condition, a body block branching back to head, and a convergence
// block reached once the condition is false.
func (l *Lowerer) lowerWhile(n *ast.Node) {
	fn := l.b.GetInsertBlock().Parent()
	head := llvm.AddBasicBlock(fn, "")
	body := llvm.AddBasicBlock(fn, "")
	cont := llvm.AddBasicBlock(fn, "")

	l.b.CreateBr(head)
	l.b.SetInsertPointAtEnd(head)
	cond := l.lowerExpr(n.Children[0])
	l.b.CreateCondBr(cond, body, cont)

	l.b.SetInsertPointAtEnd(body)
	l.scopes.push()
	term := l.lowerBlockStmts(n.Children[1].Children)
	l.scopes.pop()
	if !term {
		l.b.CreateBr(head)
	}
	l.b.SetInsertPointAtEnd(cont)
}

// lowerUntil lowers `until cond ... end`, looping while cond is false.
func (l *Lowerer) lowerUntil(n *ast.Node) {
	fn := l.b.GetInsertBlock().Parent()
	head := llvm.AddBasicBlock(fn, "")
	body := llvm.AddBasicBlock(fn, "")
	cont := llvm.AddBasicBlock(fn, "")

	l.b.CreateBr(head)
	l.b.SetInsertPointAtEnd(head)
	cond := l.lowerExpr(n.Children[0])
	l.b.CreateCondBr(cond, cont, body)

	l.b.SetInsertPointAtEnd(body)
	l.scopes.push()
	term := l.lowerBlockStmts(n.Children[1].Children)
	l.scopes.pop()
	if !term {
		l.b.CreateBr(head)
	}
	l.b.SetInsertPointAtEnd(cont)
}

// lowerFor lowers `for x of iterable` against an rt_list_t*,
// indexing by an internally generated counter since Tea's List has no
// native iterator protocol.
func (l *Lowerer) lowerFor(n *ast.Node) {
	iterName := n.Data.(string)
	iterable := l.lowerExpr(n.Children[0])
	elemT, _ := l.c.DeclTypeOf(n)

	idxSlot := l.b.CreateAlloca(llvm.Int64Type(), "")
	l.b.CreateStore(llvm.ConstInt(llvm.Int64Type(), 0, false), idxSlot)
	lenVal := l.callRT("rt_list_len", iterable)

	fn := l.b.GetInsertBlock().Parent()
	head := llvm.AddBasicBlock(fn, "")
	body := llvm.AddBasicBlock(fn, "")
	cont := llvm.AddBasicBlock(fn, "")

	l.b.CreateBr(head)
	l.b.SetInsertPointAtEnd(head)
	idx := l.b.CreateLoad(idxSlot, "")
	cond := l.b.CreateICmp(llvm.IntSLT, idx, lenVal, "")
	l.b.CreateCondBr(cond, body, cont)

	l.b.SetInsertPointAtEnd(body)
	l.scopes.push()
	elem := l.callRT("rt_list_get", iterable, idx)
	if elemT != nil && elemT.Kind == types.KInt {
		elem = l.callRT("rt_unbox_int", elem)
	} else if elemT != nil && elemT.Kind == types.KFloat {
		elem = l.callRT("rt_unbox_float", elem)
	}
	if l.curBoxed[iterName] {
		cell := l.callRT("rt_cell_new", l.asPtr(elem.Type(), elem))
		l.scopes.declareBoxed(iterName, cell)
	} else {
		elemSlot := l.b.CreateAlloca(elem.Type(), "")
		l.b.CreateStore(elem, elemSlot)
		l.scopes.declare(iterName, elemSlot)
	}

	term := l.lowerBlockStmts(n.Children[1].Children)
	l.scopes.pop()
	if !term {
		next := l.b.CreateAdd(idx, llvm.ConstInt(llvm.Int64Type(), 1, false), "")
		l.b.CreateStore(next, idxSlot)
		l.b.CreateBr(head)
	}
	l.b.SetInsertPointAtEnd(cont)
}

func (l *Lowerer) lowerReturn(n *ast.Node) {
	if len(n.Children) == 0 {
		l.b.CreateRetVoid()
		return
	}
	val := l.lowerExpr(n.Children[0])
	vt, _ := l.c.ExprType(n.Children[0].ID)
	l.b.CreateRet(l.coerce(l.curRet, vt, val))
}

// lowerThrow stores the thrown error's tag and payload into the enclosing
// function's out-parameter and returns the zero value of its declared
// return type; the caller tests the out-parameter's tag to detect the
// throw.
func (l *Lowerer) lowerThrow(n *ast.Node) {
	errVal := n.Children[0]
	t, ok := l.c.ExprType(errVal.ID)
	if !ok || l.curErrOut.IsNil() {
		l.callRT("rt_panic", l.b.CreateGlobalStringPtr("throw outside a throws-declared function", ""))
		l.b.CreateUnreachable()
		return
	}
	tag := l.errTag(t.Name, t.Variant)
	payload := l.lowerErrorPayload(errVal)

	tagSlot := l.b.CreateStructGEP(l.curErrOut, 0, "")
	l.b.CreateStore(llvm.ConstInt(llvm.Int64Type(), uint64(tag), true), tagSlot)
	payloadSlot := l.b.CreateStructGEP(l.curErrOut, 1, "")
	l.b.CreateStore(payload, payloadSlot)

	fn := l.b.GetInsertBlock().Parent()
	retTy := fn.Type().ElementType().ReturnType()
	if retTy.TypeKind() == llvm.VoidTypeKind {
		l.b.CreateRetVoid()
	} else {
		l.b.CreateRet(llvm.ConstNull(retTy))
	}
}
