package lower

import (
	"tinygo.org/x/go-llvm"

	"tea/internal/ast"
	"tea/internal/types"
)

// lowerExpr lowers one expression to its LLVM value.
func (l *Lowerer) lowerExpr(n *ast.Node) llvm.Value {
	switch n.Typ {
	case ast.Literal:
		return l.lowerLiteral(n)
	case ast.Ident:
		return l.lowerIdent(n)
	case ast.Binary:
		return l.lowerBinary(n)
	case ast.Unary:
		return l.lowerUnary(n)
	case ast.Call:
		return l.lowerCall(n)
	case ast.Member:
		return l.lowerMember(n)
	case ast.Index:
		return l.lowerIndex(n)
	case ast.Lambda:
		return l.lowerLambda(n)
	case ast.ListLit:
		return l.lowerListLit(n)
	case ast.DictLit:
		return l.lowerDictLit(n)
	case ast.TemplateString:
		return l.lowerTemplateString(n)
	case ast.CatchExpr:
		return l.lowerCatchExpr(n)
	case ast.Case:
		return l.lowerCaseExpr(n)
	case ast.Range:
		return l.lowerRange(n)
	case ast.If:
		return l.lowerIfExpr(n)
	default:
		l.errorf("internal: lowering not implemented for node kind %s", n.Typ)
		return llvm.ConstNull(l.ptrType())
	}
}

func (l *Lowerer) lowerLiteral(n *ast.Node) llvm.Value {
	switch v := n.Data.(type) {
	case int64:
		return llvm.ConstInt(llvm.Int64Type(), uint64(v), true)
	case float64:
		return llvm.ConstFloat(llvm.DoubleType(), v)
	case bool:
		if v {
			return llvm.ConstInt(llvm.Int1Type(), 1, false)
		}
		return llvm.ConstInt(llvm.Int1Type(), 0, false)
	case string:
		cstr := l.b.CreateGlobalStringPtr(v, "")
		return l.callRT("rt_string_from_cstr", cstr)
	case nil:
		return llvm.ConstNull(l.ptrType())
	default:
		l.errorf("internal: unrecognised literal payload %T", v)
		return llvm.ConstNull(l.ptrType())
	}
}

func (l *Lowerer) lowerIdent(n *ast.Node) llvm.Value {
	name, _ := n.Data.(string)
	if s, ok := l.scopes.lookup(name); ok {
		if s.boxed {
			t, _ := l.c.ExprType(n.ID)
			return l.fromPtr(l.teaType(t), l.callRT("rt_cell_get", s.ptr))
		}
		return l.b.CreateLoad(s.ptr, "")
	}
	if fn, ok := l.funcs[name]; ok {
		return fn
	}
	l.errorf("internal: unresolved identifier %q during lowering", name)
	return llvm.ConstNull(l.ptrType())
}

func (l *Lowerer) lowerBinary(n *ast.Node) llvm.Value {
	op, _ := n.Data.(string)
	switch op {
	case "=", "+=", "-=", "*=", "/=", "%=":
		return l.lowerAssign(op, n)
	case "and":
		return l.lowerShortCircuit(n, true)
	case "or":
		return l.lowerShortCircuit(n, false)
	}

	lt, _ := l.c.ExprType(n.Children[0].ID)
	a := l.lowerExpr(n.Children[0])
	b := l.lowerExpr(n.Children[1])

	switch op {
	case "+", "-", "*", "/", "%":
		return l.lowerArith(op, lt, a, b)
	case "==", "!=", "<", "<=", ">", ">=":
		return l.lowerCompare(op, lt, a, b)
	case "in":
		rt, _ := l.c.ExprType(n.Children[1].ID)
		if rt != nil && rt.Kind == types.KDict {
			return l.callRT("rt_dict_has", b, a)
		}
		et, _ := l.c.ExprType(n.Children[0].ID)
		return l.callRT("rt_list_has", b, l.boxIfScalar(et, a))
	case "??":
		return l.lowerNilCoalesce(n, a, b)
	default:
		l.errorf("internal: unsupported binary operator %q", op)
		return llvm.ConstNull(l.ptrType())
	}
}

func (l *Lowerer) lowerArith(op string, lt *types.Type, a, b llvm.Value) llvm.Value {
	isFloat := lt != nil && lt.Kind == types.KFloat
	isString := lt != nil && lt.Kind == types.KString
	switch {
	case isString && op == "+":
		return l.callRT("rt_string_concat", a, b)
	case isFloat:
		switch op {
		case "+":
			return l.b.CreateFAdd(a, b, "")
		case "-":
			return l.b.CreateFSub(a, b, "")
		case "*":
			return l.b.CreateFMul(a, b, "")
		case "/":
			return l.b.CreateFDiv(a, b, "")
		case "%":
			return l.b.CreateFRem(a, b, "")
		}
	default:
		switch op {
		case "+":
			return l.b.CreateAdd(a, b, "")
		case "-":
			return l.b.CreateSub(a, b, "")
		case "*":
			return l.b.CreateMul(a, b, "")
		case "/":
			return l.b.CreateSDiv(a, b, "")
		case "%":
			return l.b.CreateSRem(a, b, "")
		}
	}
	return llvm.ConstNull(l.ptrType())
}

func (l *Lowerer) lowerCompare(op string, lt *types.Type, a, b llvm.Value) llvm.Value {
	if lt != nil && lt.Kind == types.KString {
		eq := l.callRT("rt_string_eq", a, b)
		if op == "!=" {
			return l.b.CreateICmp(llvm.IntEQ, eq, llvm.ConstInt(llvm.Int1Type(), 0, false), "")
		}
		return eq
	}
	if lt != nil && lt.Kind == types.KFloat {
		pred := map[string]llvm.FloatPredicate{
			"==": llvm.FloatOEQ, "!=": llvm.FloatONE, "<": llvm.FloatOLT,
			"<=": llvm.FloatOLE, ">": llvm.FloatOGT, ">=": llvm.FloatOGE,
		}[op]
		return l.b.CreateFCmp(pred, a, b, "")
	}
	pred := map[string]llvm.IntPredicate{
		"==": llvm.IntEQ, "!=": llvm.IntNE, "<": llvm.IntSLT,
		"<=": llvm.IntSLE, ">": llvm.IntSGT, ">=": llvm.IntSGE,
	}[op]
	return l.b.CreateICmp(pred, a, b, "")
}

// lowerShortCircuit lowers `and`/`or`, branching around the right operand
// when the left one already decides the result, with a join-block phi
// converging the two paths.
func (l *Lowerer) lowerShortCircuit(n *ast.Node, isAnd bool) llvm.Value {
	lhs := l.lowerExpr(n.Children[0])
	fn := l.b.GetInsertBlock().Parent()
	rhsBB := llvm.AddBasicBlock(fn, "")
	joinBB := llvm.AddBasicBlock(fn, "")
	startBB := l.b.GetInsertBlock()

	if isAnd {
		l.b.CreateCondBr(lhs, rhsBB, joinBB)
	} else {
		l.b.CreateCondBr(lhs, joinBB, rhsBB)
	}

	l.b.SetInsertPointAtEnd(rhsBB)
	rhs := l.lowerExpr(n.Children[1])
	rhsEndBB := l.b.GetInsertBlock()
	l.b.CreateBr(joinBB)

	l.b.SetInsertPointAtEnd(joinBB)
	phi := l.b.CreatePHI(lhs.Type(), "")
	phi.AddIncoming([]llvm.Value{lhs, rhs}, []llvm.BasicBlock{startBB, rhsEndBB})
	return phi
}

// lowerNilCoalesce lowers `a ?? b`. The left operand arrives in its
// (possibly boxed optional) representation; whichever side the branch
// selects is coerced into the expression's unified result type before the
// join phi.
func (l *Lowerer) lowerNilCoalesce(n *ast.Node, a, b llvm.Value) llvm.Value {
	at, _ := l.c.ExprType(n.Children[0].ID)
	bt, _ := l.c.ExprType(n.Children[1].ID)
	rt, _ := l.c.ExprType(n.ID)
	resTy := l.teaType(rt)

	isNil := l.b.CreateICmp(llvm.IntEQ, a, llvm.ConstNull(a.Type()), "")
	fn := l.b.GetInsertBlock().Parent()
	useB := llvm.AddBasicBlock(fn, "")
	useA := llvm.AddBasicBlock(fn, "")
	joinBB := llvm.AddBasicBlock(fn, "")
	l.b.CreateCondBr(isNil, useB, useA)

	l.b.SetInsertPointAtEnd(useA)
	av := l.coerce(rt, at, a)
	aEnd := l.b.GetInsertBlock()
	l.b.CreateBr(joinBB)

	l.b.SetInsertPointAtEnd(useB)
	bv := l.coerce(rt, bt, b)
	bEnd := l.b.GetInsertBlock()
	l.b.CreateBr(joinBB)

	l.b.SetInsertPointAtEnd(joinBB)
	phi := l.b.CreatePHI(resTy, "")
	phi.AddIncoming([]llvm.Value{av, bv}, []llvm.BasicBlock{aEnd, bEnd})
	return phi
}

// lowerAssign lowers `lhs op= rhs`. A plain identifier target stores
// through its alloca; a Member or Index target instead calls the
// appropriate rt_*_set runtime helper, since structs/lists/dicts are
// opaque heap objects rather than addressable LLVM aggregates.
func (l *Lowerer) lowerAssign(op string, n *ast.Node) llvm.Value {
	lhs := n.Children[0]
	rhs := l.lowerExpr(n.Children[1])
	if op != "=" {
		lt, _ := l.c.ExprType(lhs.ID)
		cur := l.lowerExpr(lhs)
		rhs = l.lowerArith(op[:len(op)-1], lt, cur, rhs)
	}
	tt, _ := l.c.ExprType(lhs.ID)
	rt2, _ := l.c.ExprType(n.Children[1].ID)
	if op == "=" {
		rhs = l.coerce(tt, rt2, rhs)
	}

	switch lhs.Typ {
	case ast.Ident:
		name, _ := lhs.Data.(string)
		if s, ok := l.scopes.lookup(name); ok {
			if s.boxed {
				lt, _ := l.c.ExprType(lhs.ID)
				l.callRT("rt_cell_set", s.ptr, l.asPtr(l.teaType(lt), rhs))
			} else {
				l.b.CreateStore(rhs, s.ptr)
			}
		}
	case ast.Member:
		l.lowerMemberSet(lhs, rhs)
	case ast.Index:
		l.lowerIndexSet(lhs, rhs)
	default:
		l.errorf("internal: unsupported assignment target of kind %s", lhs.Typ)
	}
	return rhs
}

func (l *Lowerer) lowerMemberSet(n *ast.Node, val llvm.Value) {
	base := n.Children[0]
	field, _ := n.Data.(string)
	bt, _ := l.c.ExprType(base.ID)
	obj := l.lowerExpr(base)
	if bt == nil || bt.Kind != types.KStruct {
		l.errorf("internal: field assignment on a non-struct value")
		return
	}
	lay, ok := l.layoutForType(bt)
	if !ok {
		l.errorf("internal: no layout recorded for struct %q", bt.Name)
		return
	}
	idx := indexOf(lay.fields, field)
	l.callRT("rt_struct_set_field", obj, llvm.ConstInt(llvm.Int64Type(), uint64(idx), false), l.boxIfScalar(fieldType(lay, idx), val))
}

func (l *Lowerer) lowerIndexSet(n *ast.Node, val llvm.Value) {
	objT, _ := l.c.ExprType(n.Children[0].ID)
	obj := l.lowerExpr(n.Children[0])
	idx := l.lowerExpr(n.Children[1])
	if objT != nil && objT.Kind == types.KDict {
		l.callRT("rt_dict_set", obj, idx, l.boxIfScalar(objT.Val, val))
		return
	}
	var elemT *types.Type
	if objT != nil {
		elemT = objT.Elem
	}
	l.callRT("rt_list_set", obj, idx, l.boxIfScalar(elemT, val))
}

func indexOf(names []string, name string) int {
	for i1, n1 := range names {
		if n1 == name {
			return i1
		}
	}
	return -1
}

func fieldType(lay *layout, idx int) *types.Type {
	if idx < 0 || idx >= len(lay.types) {
		return nil
	}
	return lay.types[idx]
}

func (l *Lowerer) lowerUnary(n *ast.Node) llvm.Value {
	op, _ := n.Data.(string)
	t, _ := l.c.ExprType(n.Children[0].ID)
	v := l.lowerExpr(n.Children[0])
	switch op {
	case "not":
		return l.b.CreateICmp(llvm.IntEQ, v, llvm.ConstInt(llvm.Int1Type(), 0, false), "")
	case "-":
		if t != nil && t.Kind == types.KFloat {
			return l.b.CreateFSub(llvm.ConstFloat(llvm.DoubleType(), 0), v, "")
		}
		return l.b.CreateSub(llvm.ConstInt(llvm.Int64Type(), 0, false), v, "")
	default:
		l.errorf("internal: unsupported unary operator %q", op)
		return v
	}
}

func (l *Lowerer) lowerListLit(n *ast.Node) llvm.Value {
	list := l.callRT("rt_list_new")
	var elemT *types.Type
	if lt, _ := l.c.ExprType(n.ID); lt != nil {
		elemT = lt.Elem
	}
	for _, item := range n.Children {
		v := l.lowerExpr(item)
		it, _ := l.c.ExprType(item.ID)
		v = l.coerce(elemT, it, v)
		l.callRT("rt_list_push", list, l.boxIfScalar(elemT, v))
	}
	return list
}

func (l *Lowerer) lowerDictLit(n *ast.Node) llvm.Value {
	dict := l.callRT("rt_dict_new")
	dt, _ := l.c.ExprType(n.ID)
	var valT *types.Type
	if dt != nil {
		valT = dt.Val
	}
	for _, entry := range n.Children {
		k := l.lowerExpr(entry.Children[0])
		v := l.lowerExpr(entry.Children[1])
		vt, _ := l.c.ExprType(entry.Children[1].ID)
		v = l.coerce(valT, vt, v)
		l.callRT("rt_dict_set", dict, k, l.boxIfScalar(valT, v))
	}
	return dict
}

// boxIfScalar wraps a raw i64/double value in its rt_box_* object so it can
// live inside a container that only ever stores i8*. Optional primitives
// already carry the boxed representation and pass through.
func (l *Lowerer) boxIfScalar(t *types.Type, v llvm.Value) llvm.Value {
	if t == nil {
		return v
	}
	if t.Optional && isPrimKind(t.Kind) {
		return v
	}
	switch t.Kind {
	case types.KInt:
		return l.callRT("rt_box_int", v)
	case types.KFloat:
		return l.callRT("rt_box_float", v)
	default:
		return v
	}
}

func (l *Lowerer) lowerTemplateString(n *ast.Node) llvm.Value {
	result := l.callRT("rt_string_from_cstr", l.b.CreateGlobalStringPtr("", ""))
	for _, part := range n.Children {
		var piece llvm.Value
		if part.Typ == ast.TemplateChunk {
			text, _ := part.Data.(string)
			piece = l.callRT("rt_string_from_cstr", l.b.CreateGlobalStringPtr(text, ""))
		} else {
			t, _ := l.c.ExprType(part.ID)
			v := l.lowerExpr(part)
			piece = l.stringify(t, v)
		}
		result = l.callRT("rt_string_concat", result, piece)
	}
	return result
}

// stringify produces the rt_string_t* display form of an interpolated
// template-string value: Int and Float go through rt_int_to_string and
// rt_float_to_string, and a String is used as is. Values of any other type
// are returned unchanged, without conversion.
func (l *Lowerer) stringify(t *types.Type, v llvm.Value) llvm.Value {
	if t == nil {
		return v
	}
	switch t.Kind {
	case types.KInt:
		return l.callRT("rt_int_to_string", v)
	case types.KFloat:
		return l.callRT("rt_float_to_string", v)
	case types.KString:
		return v
	default:
		return v
	}
}

func (l *Lowerer) lowerRange(n *ast.Node) llvm.Value {
	lo := l.lowerExpr(n.Children[0])
	hi := l.lowerExpr(n.Children[1])
	list := l.callRT("rt_list_new")

	idxSlot := l.b.CreateAlloca(llvm.Int64Type(), "")
	l.b.CreateStore(lo, idxSlot)
	fn := l.b.GetInsertBlock().Parent()
	head := llvm.AddBasicBlock(fn, "")
	body := llvm.AddBasicBlock(fn, "")
	cont := llvm.AddBasicBlock(fn, "")
	l.b.CreateBr(head)

	l.b.SetInsertPointAtEnd(head)
	cur := l.b.CreateLoad(idxSlot, "")
	cond := l.b.CreateICmp(llvm.IntSLT, cur, hi, "")
	l.b.CreateCondBr(cond, body, cont)

	l.b.SetInsertPointAtEnd(body)
	l.callRT("rt_list_push", list, l.callRT("rt_box_int", cur))
	next := l.b.CreateAdd(cur, llvm.ConstInt(llvm.Int64Type(), 1, false), "")
	l.b.CreateStore(next, idxSlot)
	l.b.CreateBr(head)

	l.b.SetInsertPointAtEnd(cont)
	return list
}

func (l *Lowerer) lowerIfExpr(n *ast.Node) llvm.Value {
	cond := l.lowerExpr(n.Children[0])
	fn := l.b.GetInsertBlock().Parent()
	thenBB := llvm.AddBasicBlock(fn, "")
	elseBB := llvm.AddBasicBlock(fn, "")
	joinBB := llvm.AddBasicBlock(fn, "")
	l.b.CreateCondBr(cond, thenBB, elseBB)

	t, _ := l.c.ExprType(n.ID)
	resTy := l.teaType(t)

	var incoming []llvm.Value
	var incomingBB []llvm.BasicBlock

	l.b.SetInsertPointAtEnd(thenBB)
	l.scopes.push()
	thenVal := l.lowerBlockValue(n.Children[1])
	l.scopes.pop()
	if !l.blockTerminated() {
		incoming = append(incoming, thenVal)
		incomingBB = append(incomingBB, l.b.GetInsertBlock())
		l.b.CreateBr(joinBB)
	}

	l.b.SetInsertPointAtEnd(elseBB)
	var elseVal llvm.Value
	if len(n.Children) >= 3 {
		elseNode := n.Children[2]
		l.scopes.push()
		if elseNode.Typ == ast.If {
			elseVal = l.lowerIfExpr(elseNode)
		} else {
			elseVal = l.lowerBlockValue(elseNode)
		}
		l.scopes.pop()
	} else {
		elseVal = llvm.ConstNull(resTy)
	}
	if !l.blockTerminated() {
		incoming = append(incoming, elseVal)
		incomingBB = append(incomingBB, l.b.GetInsertBlock())
		l.b.CreateBr(joinBB)
	}

	l.b.SetInsertPointAtEnd(joinBB)
	if resTy.TypeKind() == llvm.VoidTypeKind {
		return llvm.Value{}
	}
	if len(incoming) == 0 {
		return llvm.ConstNull(resTy)
	}
	phi := l.b.CreatePHI(resTy, "")
	phi.AddIncoming(incoming, incomingBB)
	return phi
}

// lowerBlockValue lowers every statement of block but the last as plain
// statements, then treats a trailing bare expression as the block's value,
// mirroring the checker's checkBlockValue convention for if/case used in
// expression position.
func (l *Lowerer) lowerBlockValue(block *ast.Node) llvm.Value {
	if len(block.Children) == 0 {
		return llvm.Value{}
	}
	for _, s := range block.Children[:len(block.Children)-1] {
		l.lowerStmt(s)
	}
	last := block.Children[len(block.Children)-1]
	if isExprNode(last) {
		return l.lowerExpr(last)
	}
	l.lowerStmt(last)
	return llvm.Value{}
}

func isExprNode(n *ast.Node) bool {
	switch n.Typ {
	case ast.VarDecl, ast.ConstDecl, ast.If, ast.Unless, ast.While, ast.Until,
		ast.For, ast.Return, ast.Throw, ast.Block:
		return false
	default:
		return true
	}
}

func (l *Lowerer) lowerCaseExpr(n *ast.Node) llvm.Value {
	subjT, _ := l.c.ExprType(n.Children[0].ID)
	subj := l.lowerExpr(n.Children[0])
	t, _ := l.c.ExprType(n.ID)
	resTy := l.teaType(t)
	fn := l.b.GetInsertBlock().Parent()
	joinBB := llvm.AddBasicBlock(fn, "")

	var incoming []llvm.Value
	var incomingBB []llvm.BasicBlock
	arms := n.Children[1:]
	var nextTest llvm.BasicBlock
	sawWild := false

	for i1, arm := range arms {
		isWild, _ := arm.Data.(bool)
		bodyBB := llvm.AddBasicBlock(fn, "")
		last := i1 == len(arms)-1

		if isWild {
			l.b.CreateBr(bodyBB)
		} else {
			pat := l.lowerExpr(arm.Children[0])
			var eq llvm.Value
			if subjT != nil && subjT.Kind == types.KString {
				eq = l.callRT("rt_string_eq", subj, pat)
			} else {
				eq = l.b.CreateICmp(llvm.IntEQ, subj, pat, "")
			}
			if last {
				nextTest = llvm.AddBasicBlock(fn, "")
				l.b.CreateCondBr(eq, bodyBB, nextTest)
			} else {
				nextTest = llvm.AddBasicBlock(fn, "")
				l.b.CreateCondBr(eq, bodyBB, nextTest)
			}
		}

		l.b.SetInsertPointAtEnd(bodyBB)
		l.scopes.push()
		idx := 0
		if !isWild {
			idx = 1
		}
		val := l.lowerBlockValue(arm.Children[idx])
		l.scopes.pop()
		if !l.blockTerminated() {
			incoming = append(incoming, val)
			incomingBB = append(incomingBB, l.b.GetInsertBlock())
			l.b.CreateBr(joinBB)
		}

		if isWild {
			// Arms after a wildcard are unreachable; stop emitting.
			sawWild = true
			break
		}
		l.b.SetInsertPointAtEnd(nextTest)
	}

	if !sawWild {
		// No arm matched: fall through to the join with the zero value
		// of the result type.
		if resTy.TypeKind() != llvm.VoidTypeKind {
			incoming = append(incoming, llvm.ConstNull(resTy))
			incomingBB = append(incomingBB, l.b.GetInsertBlock())
		}
		l.b.CreateBr(joinBB)
	}

	l.b.SetInsertPointAtEnd(joinBB)
	if resTy.TypeKind() == llvm.VoidTypeKind {
		return llvm.Value{}
	}
	if len(incoming) == 0 {
		return llvm.ConstNull(resTy)
	}
	phi := l.b.CreatePHI(resTy, "")
	phi.AddIncoming(incoming, incomingBB)
	return phi
}
