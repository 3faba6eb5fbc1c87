package lower

import (
	"tinygo.org/x/go-llvm"

	"tea/internal/ast"
	"tea/internal/mono"
	"tea/internal/types"
)

// structLayouts is keyed by struct name rather than types.DeclID: the type
// facts table already carries a DeclID on every KStruct *types.Type, but
// internal/check does not expose a DeclID->name reverse lookup, and names
// are unique at the top level (a duplicate is a hard resolve error), so a
// name keyed table is equally unambiguous here.
func (l *Lowerer) declareStruct(decl *ast.Node) {
	d := decl.Data.(ast.StructData)
	order, fields, ok := l.c.StructLayout(d.Name)
	if !ok {
		return
	}
	lay := &layout{name: d.Name, fields: order}
	for _, fname := range order {
		lay.types = append(lay.types, fields[fname])
	}
	l.structLayouts[d.Name] = lay
}

func (l *Lowerer) layoutForType(t *types.Type) (*layout, bool) {
	lay, ok := l.structLayouts[t.Name]
	return lay, ok
}

// declareFunc emits name's LLVM function header: its parameter types, a
// trailing out-parameter for throwing functions, and its return type.
func (l *Lowerer) declareFunc(name string, decl *ast.Node) llvm.Value {
	sig, ok := l.c.FuncSig(name)
	if !ok {
		sig = types.Func(nil, types.Void, nil)
	}
	return l.declareFuncSig(name, sig)
}

func (l *Lowerer) declareFuncSig(mangled string, sig *types.Type) llvm.Value {
	params := make([]llvm.Type, 0, len(sig.Params)+1)
	for _, p := range sig.Params {
		params = append(params, l.teaType(p))
	}
	if len(sig.Throws) > 0 {
		params = append(params, llvm.PointerType(l.teaErrorTy, 0))
	}
	ftyp := llvm.FunctionType(l.teaType(sig.Ret), params, false)
	fn := llvm.AddFunction(l.mod, mangled, ftyp)
	l.funcs[mangled] = fn
	return fn
}

// lowerFuncBody emits a plain (non-generic) top-level function's body.
func (l *Lowerer) lowerFuncBody(name string, decl *ast.Node) {
	fn, ok := l.funcs[name]
	if !ok {
		fn = l.declareFunc(name, decl)
	}
	sig, _ := l.c.FuncSig(name)
	body := decl.Children[len(decl.Children)-1]
	paramList := decl.Children[0]
	l.lowerFuncLike(fn, sig, paramList, body)
}

// lowerSpecialization emits one monomorphized generic function. Its
// parameter/return types come from substituting the specialization's type
// arguments into the generic signature captured at check time.
func (l *Lowerer) lowerSpecialization(spec *mono.FuncSpecialization) {
	sig, ok := l.c.FuncSig(spec.FuncName)
	if !ok {
		l.errorf("internal: no signature recorded for generic function %q", spec.FuncName)
		return
	}
	concrete := types.Func(substList(sig.Params, spec.Subst), substGeneric(sig.Ret, spec.Subst), sig.Throws)
	concrete.ParamNames = sig.ParamNames
	fn := l.declareFuncSig(spec.MangledName, concrete)
	paramList := spec.Decl.Children[0]
	body := spec.Decl.Children[len(spec.Decl.Children)-1]
	prevSubst := l.curSubst
	l.curSubst = spec.Subst
	l.lowerFuncLike(fn, concrete, paramList, body)
	l.curSubst = prevSubst
}

// lowerFuncLike lowers one function-shaped body (a FuncDecl's own, or a
// specialization's substituted body) given its already-declared llvm.Value,
// concrete signature, and parameter/body AST nodes.
func (l *Lowerer) lowerFuncLike(fn llvm.Value, sig *types.Type, paramList, body *ast.Node) {
	bb := llvm.AddBasicBlock(fn, "")
	l.b.SetInsertPointAtEnd(bb)
	l.scopes.push()
	defer l.scopes.pop()

	prevBoxed := l.curBoxed
	l.curBoxed = capturedVars(body.Children)
	defer func() { l.curBoxed = prevBoxed }()

	for i1, p := range paramList.Children {
		name := p.Data.(string)
		param := fn.Param(i1)
		slot := l.b.CreateAlloca(param.Type(), "")
		l.b.CreateStore(param, slot)
		l.scopes.declare(name, slot)
	}

	prevThrows, prevErrOut, prevRet := l.curThrows, l.curErrOut, l.curRet
	l.curThrows = sig.Throws
	l.curRet = sig.Ret
	if len(sig.Throws) > 0 {
		l.curErrOut = fn.Param(len(paramList.Children))
	} else {
		l.curErrOut = llvm.Value{}
	}

	terminated := l.lowerBlockStmts(body.Children)
	if !terminated {
		if sig.Ret.Kind == types.KVoid {
			l.b.CreateRetVoid()
		} else {
			l.b.CreateRet(llvm.ConstNull(l.teaType(sig.Ret)))
		}
	}
	l.curThrows, l.curErrOut, l.curRet = prevThrows, prevErrOut, prevRet
}

// substGeneric and substList re-derive check's unexported substGenerics
// over the concrete type arguments a specialization carries, since the
// lowerer lives in a separate package from the checker's internal
// substitution helper.
func substGeneric(t *types.Type, subst map[string]*types.Type) *types.Type {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case types.KGeneric:
		if bound, ok := subst[t.Name]; ok {
			return bound
		}
		return t
	case types.KList:
		return types.List(substGeneric(t.Elem, subst))
	case types.KDict:
		return types.Dict(substGeneric(t.Key, subst), substGeneric(t.Val, subst))
	case types.KStruct:
		if len(t.TypeArgs) == 0 {
			return t
		}
		args := make([]*types.Type, len(t.TypeArgs))
		for i1, a := range t.TypeArgs {
			args[i1] = substGeneric(a, subst)
		}
		return types.Struct(t.Decl, t.Name, args...)
	default:
		return t
	}
}

func substList(ts []*types.Type, subst map[string]*types.Type) []*types.Type {
	out := make([]*types.Type, len(ts))
	for i1, t := range ts {
		out[i1] = substGeneric(t, subst)
	}
	return out
}
