package lower

import (
	"tinygo.org/x/go-llvm"

	"tea/internal/ast"
	"tea/internal/resolve"
	"tea/internal/types"
)

// lowerCall lowers every call-shaped expression: intrinsics, struct
// literal construction, error variant construction, plain and generic
// function calls, and calling a closure value held in a variable.
func (l *Lowerer) lowerCall(n *ast.Node) llvm.Value {
	if _, ok := n.Data.(ast.IntrinsicData); ok {
		return l.lowerIntrinsicCall(n)
	}

	callee, args := n.Children[0], n.Children[1:]

	if callee.Typ == ast.Ident {
		if name, ok := callee.Data.(string); ok {
			if _, ok := l.structLayouts[name]; ok {
				return l.lowerStructLit(name, args)
			}
		}
	}

	ct, _ := l.c.ExprType(callee.ID)
	if ct != nil && ct.Kind == types.KError && ct.Variant != "" {
		return l.lowerErrorConstruct(ct, args)
	}

	if callee.Typ == ast.Ident {
		name, _ := callee.Data.(string)
		if subst, ok := l.c.CallSubst(n.ID); ok {
			if decl, ok := l.c.FuncNode(name); ok {
				return l.lowerGenericCall(name, decl, subst, args)
			}
		}
		if fn, ok := l.funcs[name]; ok {
			return l.lowerDirectCall(fn, name, args)
		}
	}

	// Anything else is a closure value: a lambda literal, a parameter or
	// local variable holding one, or a member/index expression yielding
	// one.
	closure := l.lowerExpr(callee)
	return l.lowerIndirectCall(closure, ct, args)
}

func (l *Lowerer) lowerDirectCall(fn llvm.Value, name string, args []*ast.Node) llvm.Value {
	sig, _ := l.c.FuncSig(name)
	return l.emitCall(fn, sig, args)
}

func (l *Lowerer) lowerGenericCall(name string, decl *ast.Node, subst map[string]*types.Type, args []*ast.Node) llvm.Value {
	if l.curSubst != nil {
		// A generic call inside a generic body: resolve its bindings
		// through the instantiation being lowered so the registry lookup
		// sees the same concrete tuple the monomorphizer registered.
		composed := make(map[string]*types.Type, len(subst))
		for k, v := range subst {
			composed[k] = substGeneric(v, l.curSubst)
		}
		subst = composed
	}
	genericsNode := decl.Children[1]
	order := make([]string, len(genericsNode.Children))
	for i1, g := range genericsNode.Children {
		order[i1] = g.Data.(string)
	}
	typeArgs := make([]*types.Type, len(order))
	for i1, g := range order {
		if t, ok := subst[g]; ok {
			typeArgs[i1] = t
		} else {
			typeArgs[i1] = types.Unknown(0)
		}
	}
	spec, ok := l.reg.Lookup(name, typeArgs)
	if !ok {
		l.errorf("internal: no specialization registered for %s%v", name, typeArgs)
		return llvm.ConstNull(l.ptrType())
	}
	fn, ok := l.funcs[spec.MangledName]
	if !ok {
		sig, _ := l.c.FuncSig(name)
		concrete := types.Func(substList(sig.Params, subst), substGeneric(sig.Ret, subst), sig.Throws)
		fn = l.declareFuncSig(spec.MangledName, concrete)
	}
	sig, _ := l.c.FuncSig(name)
	concrete := types.Func(substList(sig.Params, subst), substGeneric(sig.Ret, subst), sig.Throws)
	return l.emitCall(fn, concrete, args)
}

// emitCall lowers args in order, appending an out-parameter slot for a
// throwing callee, and branches to a panic on an error that no wrapping
// catch absorbs.
func (l *Lowerer) emitCall(fn llvm.Value, sig *types.Type, args []*ast.Node) llvm.Value {
	argVals := l.lowerArgs(sig, args)
	l.lastCallErrSlot = llvm.Value{}
	l.lastCallThrows = nil

	if len(sig.Throws) == 0 {
		return l.b.CreateCall(fn, argVals, "")
	}

	errSlot := l.b.CreateAlloca(l.teaErrorTy, "")
	zero := llvm.ConstNull(l.teaErrorTy)
	l.b.CreateStore(zero, errSlot)
	argVals = append(argVals, errSlot)
	result := l.b.CreateCall(fn, argVals, "")

	l.lastCallErrSlot = errSlot
	l.lastCallThrows = sig.Throws
	return result
}

// lowerArgs evaluates a call's FieldInit argument list in declared
// parameter order, resolving named arguments against sig.ParamNames the
// same way the checker's checkCallArgs validated them.
func (l *Lowerer) lowerArgs(sig *types.Type, args []*ast.Node) []llvm.Value {
	named := false
	for _, a := range args {
		if a.Data.(ast.ArgData).Name != "" {
			named = true
			break
		}
	}
	out := make([]llvm.Value, len(sig.Params))
	if !named {
		for i1, a := range args {
			if i1 >= len(out) {
				continue
			}
			at, _ := l.c.ExprType(a.Children[0].ID)
			out[i1] = l.coerce(sig.Params[i1], at, l.lowerExpr(a.Children[0]))
		}
		return out
	}
	for _, a := range args {
		ad := a.Data.(ast.ArgData)
		idx := indexOf(sig.ParamNames, ad.Name)
		if idx < 0 {
			continue
		}
		at, _ := l.c.ExprType(a.Children[0].ID)
		out[idx] = l.coerce(sig.Params[idx], at, l.lowerExpr(a.Children[0]))
	}
	return out
}

func (l *Lowerer) lowerIndirectCall(closure llvm.Value, ct *types.Type, args []*ast.Node) llvm.Value {
	fnPtr := l.callRT("rt_struct_get_field", closure, llvm.ConstInt(llvm.Int64Type(), 0, false))
	env := l.callRT("rt_struct_get_field", closure, llvm.ConstInt(llvm.Int64Type(), 1, false))

	var sig *types.Type
	if ct != nil && ct.Kind == types.KFunc {
		sig = ct
	} else {
		sig = types.Func(nil, types.Unknown(0), nil)
	}
	paramTypes := make([]llvm.Type, 0, len(sig.Params)+1)
	paramTypes = append(paramTypes, l.ptrType())
	for _, p := range sig.Params {
		paramTypes = append(paramTypes, l.teaType(p))
	}
	fnType := llvm.FunctionType(l.teaType(sig.Ret), paramTypes, false)
	typed := l.b.CreateBitCast(fnPtr, llvm.PointerType(fnType, 0), "")

	argVals := make([]llvm.Value, 0, len(args)+1)
	argVals = append(argVals, env)
	for _, a := range args {
		argVals = append(argVals, l.lowerExpr(a.Children[0]))
	}
	return l.b.CreateCall(typed, argVals, "")
}

// lowerIntrinsicCall lowers the @name(...) builtins. Each one is
// type-directed: the checker already pinned the argument's type, so the
// runtime call (or bare instruction) can be selected statically here.
func (l *Lowerer) lowerIntrinsicCall(n *ast.Node) llvm.Value {
	d := n.Data.(ast.IntrinsicData)
	if len(n.Children) == 0 {
		l.errorf("internal: intrinsic @%s lowered with no argument", d.Name)
		return llvm.ConstNull(l.ptrType())
	}
	arg := n.Children[0].Children[0]
	at, _ := l.c.ExprType(arg.ID)
	v := l.lowerExpr(arg)

	switch d.Name {
	case "println":
		return l.callRT("rt_println", l.stringify(at, v))
	case "len":
		switch {
		case at != nil && at.Kind == types.KString:
			return l.callRT("rt_string_len", v)
		case at != nil && at.Kind == types.KDict:
			return l.callRT("rt_dict_len", v)
		default:
			return l.callRT("rt_list_len", v)
		}
	case "panic":
		return l.callRT("rt_panic", v)
	case "type_of":
		name := "Unknown"
		if at != nil {
			name = at.String()
		}
		cstr := l.b.CreateGlobalStringPtr(name, "")
		return l.callRT("rt_string_from_cstr", cstr)
	case "to_float":
		return l.b.CreateSIToFP(v, llvm.DoubleType(), "")
	case "parse_int":
		return l.callRT("rt_parse_int", v)
	default:
		l.errorf("internal: unknown intrinsic @%s", d.Name)
		return llvm.ConstNull(l.ptrType())
	}
}

// lowerStructLit allocates a struct instance and sets every declared field
// in order, resolving named and positional literals the same way
// checker's checkFieldArgs validated them.
func (l *Lowerer) lowerStructLit(name string, args []*ast.Node) llvm.Value {
	order, fields, ok := l.c.StructLayout(name)
	if !ok {
		l.errorf("internal: no layout recorded for struct %q", name)
		return llvm.ConstNull(l.ptrType())
	}
	obj := l.callRT("rt_struct_alloc", llvm.ConstInt(llvm.Int64Type(), uint64(len(order)), false))

	named := false
	for _, a := range args {
		if a.Data.(ast.ArgData).Name != "" {
			named = true
			break
		}
	}
	for i1, a := range args {
		ad := a.Data.(ast.ArgData)
		fname := ad.Name
		if !named && i1 < len(order) {
			fname = order[i1]
		}
		idx := indexOf(order, fname)
		if idx < 0 {
			continue
		}
		val := l.lowerExpr(a.Children[0])
		at, _ := l.c.ExprType(a.Children[0].ID)
		val = l.coerce(fields[fname], at, val)
		l.callRT("rt_struct_set_field", obj, llvm.ConstInt(llvm.Int64Type(), uint64(idx), false), l.boxIfScalar(fields[fname], val))
	}
	return obj
}

// lowerErrorConstruct builds a tagged (tag, payload) error value: the
// payload is a struct-shaped heap object holding the variant's fields in
// declaration order, so a later catch-case can read them back out with
// rt_struct_get_field. Keyword arguments resolve against the variant's
// field order the same way struct literals do.
func (l *Lowerer) lowerErrorConstruct(et *types.Type, args []*ast.Node) llvm.Value {
	order, fieldTypes, haveLayout := l.c.ErrVariantLayout(et.Name, et.Variant)
	payload := l.callRT("rt_struct_alloc", llvm.ConstInt(llvm.Int64Type(), uint64(len(args)), false))
	for i1, a := range args {
		idx := i1
		t, _ := l.c.ExprType(a.Children[0].ID)
		if haveLayout {
			fname := a.Data.(ast.ArgData).Name
			if fname == "" && i1 < len(order) {
				fname = order[i1]
			}
			if j := indexOf(order, fname); j >= 0 {
				idx = j
				if ft := fieldTypes[fname]; ft != nil {
					t = ft
				}
			}
		}
		val := l.lowerExpr(a.Children[0])
		at, _ := l.c.ExprType(a.Children[0].ID)
		val = l.coerce(t, at, val)
		l.callRT("rt_struct_set_field", payload, llvm.ConstInt(llvm.Int64Type(), uint64(idx), false), l.boxIfScalar(t, val))
	}
	tagged := l.callRT("rt_struct_alloc", llvm.ConstInt(llvm.Int64Type(), 2, false))
	tag := l.errTag(et.Name, et.Variant)
	l.callRT("rt_struct_set_field", tagged, llvm.ConstInt(llvm.Int64Type(), 0, false), l.callRT("rt_box_int", llvm.ConstInt(llvm.Int64Type(), uint64(tag), true)))
	l.callRT("rt_struct_set_field", tagged, llvm.ConstInt(llvm.Int64Type(), 1, false), payload)
	return tagged
}

// lowerErrorPayload lowers the value passed to `throw`, which checkThrow
// guarantees is an error-construction Call, returning just its payload
// object (the tag is recorded separately by lowerThrow into the caller's
// out-parameter).
func (l *Lowerer) lowerErrorPayload(n *ast.Node) llvm.Value {
	tagged := l.lowerExpr(n)
	return l.callRT("rt_struct_get_field", tagged, llvm.ConstInt(llvm.Int64Type(), 1, false))
}

func (l *Lowerer) lowerMember(n *ast.Node) llvm.Value {
	base := n.Children[0]
	field, _ := n.Data.(string)

	if base.Typ == ast.Ident {
		if sym, ok := l.c.Bindings()[base.ID]; ok {
			switch sym.Kind {
			case resolve.SymError:
				t, _ := l.c.ExprType(n.ID)
				return l.lowerBareErrorVariant(t)
			case resolve.SymEnum:
				t, _ := l.c.ExprType(n.ID)
				return llvm.ConstInt(llvm.Int64Type(), uint64(l.errTag(t.Name, field)), true)
			}
		}
	}

	bt, _ := l.c.ExprType(base.ID)
	obj := l.lowerExpr(base)
	if bt == nil {
		return obj
	}
	switch bt.Kind {
	case types.KStruct:
		lay, ok := l.layoutForType(bt)
		if !ok {
			l.errorf("internal: no layout recorded for struct %q", bt.Name)
			return obj
		}
		idx := indexOf(lay.fields, field)
		raw := l.callRT("rt_struct_get_field", obj, llvm.ConstInt(llvm.Int64Type(), uint64(idx), false))
		return l.unboxField(fieldType(lay, idx), raw)
	case types.KDict:
		raw := l.callRT("rt_dict_get", obj, l.b.CreateGlobalStringPtr(field, ""))
		return l.unboxField(bt.Val, raw)
	case types.KError:
		idx := 0
		var ft *types.Type
		if order, fieldTypes, ok := l.c.ErrVariantLayout(bt.Name, bt.Variant); ok {
			if i1 := indexOf(order, field); i1 >= 0 {
				idx = i1
				ft = fieldTypes[field]
			}
		}
		payload := l.callRT("rt_struct_get_field", obj, llvm.ConstInt(llvm.Int64Type(), 1, false))
		raw := l.callRT("rt_struct_get_field", payload, llvm.ConstInt(llvm.Int64Type(), uint64(idx), false))
		return l.unboxField(ft, raw)
	default:
		return obj
	}
}

func (l *Lowerer) lowerBareErrorVariant(t *types.Type) llvm.Value {
	tagged := l.callRT("rt_struct_alloc", llvm.ConstInt(llvm.Int64Type(), 2, false))
	tag := l.errTag(t.Name, t.Variant)
	l.callRT("rt_struct_set_field", tagged, llvm.ConstInt(llvm.Int64Type(), 0, false), l.callRT("rt_box_int", llvm.ConstInt(llvm.Int64Type(), uint64(tag), true)))
	l.callRT("rt_struct_set_field", tagged, llvm.ConstInt(llvm.Int64Type(), 1, false), llvm.ConstNull(l.ptrType()))
	return tagged
}

// unboxField reverses boxIfScalar for a value read back out of a runtime
// container. Optional primitives stay in their boxed form.
func (l *Lowerer) unboxField(t *types.Type, v llvm.Value) llvm.Value {
	if t == nil {
		return v
	}
	if t.Optional && isPrimKind(t.Kind) {
		return v
	}
	switch t.Kind {
	case types.KInt:
		return l.callRT("rt_unbox_int", v)
	case types.KFloat:
		return l.callRT("rt_unbox_float", v)
	default:
		return v
	}
}

func (l *Lowerer) lowerIndex(n *ast.Node) llvm.Value {
	objT, _ := l.c.ExprType(n.Children[0].ID)
	obj := l.lowerExpr(n.Children[0])
	idx := l.lowerExpr(n.Children[1])
	if objT == nil {
		return obj
	}
	switch objT.Kind {
	case types.KList:
		raw := l.callRT("rt_list_get", obj, idx)
		return l.unboxField(objT.Elem, raw)
	case types.KDict:
		raw := l.callRT("rt_dict_get", obj, idx)
		return l.unboxField(objT.Val, raw)
	case types.KString:
		return l.callRT("rt_string_index", obj, idx)
	default:
		return obj
	}
}

// lowerCatchExpr lowers `expr catch err case is E.V ... end`: the guarded call has already
// populated lastCallErrSlot via emitCall; this reads its tag back out and
// switches to the matching catch-case body, falling through to the try
// value when the tag is zero.
func (l *Lowerer) lowerCatchExpr(n *ast.Node) llvm.Value {
	binder, _ := n.Data.(string)
	tryVal := l.lowerExpr(n.Children[0])
	errSlot := l.lastCallErrSlot
	t, _ := l.c.ExprType(n.ID)
	resTy := l.teaType(t)

	fn := l.b.GetInsertBlock().Parent()

	if errSlot.IsNil() {
		// The guarded expression never throws; every catch-case is dead.
		return tryVal
	}

	joinBB := llvm.AddBasicBlock(fn, "")
	tagPtr := l.b.CreateStructGEP(errSlot, 0, "")
	tag := l.b.CreateLoad(tagPtr, "")
	payloadPtr := l.b.CreateStructGEP(errSlot, 1, "")
	payload := l.b.CreateLoad(payloadPtr, "")

	noErrBB := llvm.AddBasicBlock(fn, "")

	var wildcard *ast.Node
	var namedCases []*ast.Node
	for _, cc := range n.Children[1:] {
		pair := cc.Data.([2]string)
		if pair[0] == "_" {
			wildcard = cc
		} else {
			namedCases = append(namedCases, cc)
		}
	}

	defaultBB := noErrBB
	var wildcardBB llvm.BasicBlock
	if wildcard != nil {
		wildcardBB = llvm.AddBasicBlock(fn, "")
		defaultBB = wildcardBB
	}

	sw := l.b.CreateSwitch(tag, defaultBB, len(namedCases)+1)
	sw.AddCase(llvm.ConstInt(llvm.Int64Type(), 0, false), noErrBB)

	var incoming []llvm.Value
	var incomingBB []llvm.BasicBlock

	l.b.SetInsertPointAtEnd(noErrBB)
	incoming = append(incoming, tryVal)
	incomingBB = append(incomingBB, noErrBB)
	l.b.CreateBr(joinBB)

	for _, cc := range namedCases {
		pair := cc.Data.([2]string)
		caseBB := llvm.AddBasicBlock(fn, "")
		sw.AddCase(llvm.ConstInt(llvm.Int64Type(), uint64(l.errTag(pair[0], pair[1])), true), caseBB)

		l.b.SetInsertPointAtEnd(caseBB)
		l.scopes.push()
		if binder != "" {
			// The binder sees the same tagged-pair shape constructed
			// error values use, so member access unwraps uniformly.
			tagged := l.callRT("rt_struct_alloc", llvm.ConstInt(llvm.Int64Type(), 2, false))
			l.callRT("rt_struct_set_field", tagged, llvm.ConstInt(llvm.Int64Type(), 0, false), l.callRT("rt_box_int", tag))
			l.callRT("rt_struct_set_field", tagged, llvm.ConstInt(llvm.Int64Type(), 1, false), payload)
			slot := l.b.CreateAlloca(l.ptrType(), "")
			l.b.CreateStore(tagged, slot)
			l.scopes.declare(binder, slot)
		}
		body := cc.Children[len(cc.Children)-1]
		val := l.lowerBlockValue(body)
		l.scopes.pop()
		if !l.blockTerminated() {
			incoming = append(incoming, val)
			incomingBB = append(incomingBB, l.b.GetInsertBlock())
			l.b.CreateBr(joinBB)
		}
	}

	if wildcard != nil {
		l.b.SetInsertPointAtEnd(wildcardBB)
		l.scopes.push()
		if binder != "" {
			// The binder sees the same tagged-pair shape constructed
			// error values use, so member access unwraps uniformly.
			tagged := l.callRT("rt_struct_alloc", llvm.ConstInt(llvm.Int64Type(), 2, false))
			l.callRT("rt_struct_set_field", tagged, llvm.ConstInt(llvm.Int64Type(), 0, false), l.callRT("rt_box_int", tag))
			l.callRT("rt_struct_set_field", tagged, llvm.ConstInt(llvm.Int64Type(), 1, false), payload)
			slot := l.b.CreateAlloca(l.ptrType(), "")
			l.b.CreateStore(tagged, slot)
			l.scopes.declare(binder, slot)
		}
		body := wildcard.Children[len(wildcard.Children)-1]
		val := l.lowerBlockValue(body)
		l.scopes.pop()
		if !l.blockTerminated() {
			incoming = append(incoming, val)
			incomingBB = append(incomingBB, l.b.GetInsertBlock())
			l.b.CreateBr(joinBB)
		}
	}

	l.b.SetInsertPointAtEnd(joinBB)
	l.lastCallErrSlot = llvm.Value{}
	if resTy.TypeKind() == llvm.VoidTypeKind {
		return llvm.Value{}
	}
	phi := l.b.CreatePHI(resTy, "")
	phi.AddIncoming(incoming, incomingBB)
	return phi
}
