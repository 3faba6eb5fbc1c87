package lower

import (
	"fmt"

	"tinygo.org/x/go-llvm"

	"tea/internal/ast"
	"tea/internal/resolve"
	"tea/internal/types"
)

// capture is one free variable a lambda closes over. var bindings are
// captured by reference (the environment stores the var's shared heap
// cell); const bindings and parameters are captured by value.
type capture struct {
	name  string
	typ   llvm.Type
	byRef bool
}

// lowerLambda compiles a lambda expression to a standalone top-level LLVM
// function plus a heap-allocated environment record holding its captured
// variables, and returns an opaque closure value (fn pointer + env
// pointer) callable through lowerIndirectCall. const and parameter
// captures copy the value at closure-creation time; var captures store
// the var's shared heap cell, so a write on either side of the closure
// boundary is seen by both.
func (l *Lowerer) lowerLambda(n *ast.Node) llvm.Value {
	paramList, body := n.Children[0], n.Children[1]
	caps := l.freeVars(n, paramList)

	envFields := make([]llvm.Type, len(caps))
	for i1, c := range caps {
		envFields[i1] = c.typ
	}
	env := l.callRT("rt_closure_alloc", llvm.ConstInt(llvm.Int64Type(), uint64(len(caps)), false))
	for i1, c := range caps {
		s, _ := l.scopes.lookup(c.name)
		var v llvm.Value
		switch {
		case c.byRef:
			// The declaring scope boxed this var because of us; share
			// its cell.
			v = s.ptr
		case s.boxed:
			v = l.callRT("rt_cell_get", s.ptr)
		default:
			v = l.asPtr(c.typ, l.b.CreateLoad(s.ptr, ""))
		}
		l.callRT("rt_closure_set_capture", env, llvm.ConstInt(llvm.Int64Type(), uint64(i1), false), v)
	}

	sig, _ := l.c.ExprType(n.ID)
	fnType := llvm.FunctionType(l.teaType(sig.Ret), l.lambdaParamTypes(paramList), false)
	fn := llvm.AddFunction(l.mod, fmt.Sprintf("lambda_%d", n.ID), fnType)

	savedBB := l.b.GetInsertBlock()
	bb := llvm.AddBasicBlock(fn, "")
	l.b.SetInsertPointAtEnd(bb)
	l.scopes.push()

	envParam := fn.Param(0)
	for i1, c := range caps {
		raw := l.callRT("rt_closure_get_capture", envParam, llvm.ConstInt(llvm.Int64Type(), uint64(i1), false))
		if c.byRef {
			l.scopes.declareBoxed(c.name, raw)
			continue
		}
		slot := l.b.CreateAlloca(c.typ, "")
		l.b.CreateStore(l.fromPtr(c.typ, raw), slot)
		l.scopes.declare(c.name, slot)
	}
	for i1, p := range paramList.Children {
		name := p.Data.(string)
		param := fn.Param(i1 + 1)
		slot := l.b.CreateAlloca(param.Type(), "")
		l.b.CreateStore(param, slot)
		l.scopes.declare(name, slot)
	}

	prevBoxed, prevRet := l.curBoxed, l.curRet
	l.curBoxed = capturedVars(body.Children)
	l.curRet = sig.Ret
	var terminated bool
	if body.Typ == ast.Block {
		terminated = l.lowerBlockStmts(body.Children)
	} else {
		ret := l.lowerExpr(body)
		l.b.CreateRet(ret)
		terminated = true
	}
	if !terminated {
		l.b.CreateRet(llvm.ConstNull(l.teaType(sig.Ret)))
	}
	l.curBoxed, l.curRet = prevBoxed, prevRet
	l.scopes.pop()
	l.b.SetInsertPointAtEnd(savedBB)

	closureObj := l.callRT("rt_struct_alloc", llvm.ConstInt(llvm.Int64Type(), 2, false))
	l.callRT("rt_struct_set_field", closureObj, llvm.ConstInt(llvm.Int64Type(), 0, false), l.b.CreateBitCast(fn, l.ptrType(), ""))
	l.callRT("rt_struct_set_field", closureObj, llvm.ConstInt(llvm.Int64Type(), 1, false), env)
	return closureObj
}

func (l *Lowerer) lambdaParamTypes(paramList *ast.Node) []llvm.Type {
	params := make([]llvm.Type, 0, len(paramList.Children)+1)
	params = append(params, l.ptrType()) // Leading env parameter.
	for _, p := range paramList.Children {
		t, ok := l.c.DeclTypeOf(p)
		if !ok {
			t = types.Unknown(0)
		}
		params = append(params, l.teaType(t))
	}
	return params
}

// asPtr/fromPtr box a scalar through the same rt_box_*/rt_unbox_* helpers
// used for list and dict elements, so a closure environment — like every
// other Tea container — only ever stores i8*.
func (l *Lowerer) asPtr(t llvm.Type, v llvm.Value) llvm.Value {
	switch t {
	case llvm.Int64Type():
		return l.callRT("rt_box_int", v)
	case llvm.DoubleType():
		return l.callRT("rt_box_float", v)
	default:
		return v
	}
}

func (l *Lowerer) fromPtr(t llvm.Type, v llvm.Value) llvm.Value {
	switch t {
	case llvm.Int64Type():
		return l.callRT("rt_unbox_int", v)
	case llvm.DoubleType():
		return l.callRT("rt_unbox_float", v)
	default:
		return v
	}
}

// freeVars walks a lambda's body collecting every identifier that refers
// to a var/const/param binding declared outside the lambda itself. The
// resolver (internal/resolve) never records an explicit capture list — it
// only chains scope lookups — so the lowerer rediscovers the same set by
// checking each Ident's resolved Symbol against the lambda's own parameter
// and local-declaration names.
func (l *Lowerer) freeVars(lambda, paramList *ast.Node) []capture {
	local := make(map[string]bool, len(paramList.Children))
	for _, p := range paramList.Children {
		local[p.Data.(string)] = true
	}
	collectLocalDecls(lambda.Children[1], local)

	seen := make(map[string]bool, 4)
	var out []capture
	bindings := l.c.Bindings()
	var walk func(n *ast.Node)
	walk = func(n *ast.Node) {
		if n == nil {
			return
		}
		if n.Typ == ast.Ident {
			name, _ := n.Data.(string)
			if !local[name] && !seen[name] {
				if sym, ok := bindings[n.ID]; ok {
					switch sym.Kind {
					case resolve.SymVar, resolve.SymConst, resolve.SymParam:
						seen[name] = true
						t, _ := l.c.DeclTypeOf(sym.Node)
						byRef := false
						if sym.Kind == resolve.SymVar {
							// Only a var the declaring scope boxed can be
							// shared; anything else copies.
							if s, ok := l.scopes.lookup(name); ok && s.boxed {
								byRef = true
							}
						}
						out = append(out, capture{name: name, typ: l.teaType(t), byRef: byRef})
					}
				}
			}
		}
		for _, ch := range n.Children {
			walk(ch)
		}
	}
	walk(lambda.Children[1])
	return out
}

// collectLocalDecls records every name a VarDecl/ConstDecl/For introduces
// within body, without descending into nested lambdas (their own locals
// don't shadow this lambda's free-variable scan; nested lambdas resolve
// their own captures independently when lowered).
func collectLocalDecls(body *ast.Node, local map[string]bool) {
	var walk func(n *ast.Node)
	walk = func(n *ast.Node) {
		if n == nil || n.Typ == ast.Lambda {
			return
		}
		switch n.Typ {
		case ast.VarDecl, ast.ConstDecl:
			local[n.Data.(ast.DeclData).Name] = true
		case ast.For:
			local[n.Data.(string)] = true
		}
		for _, ch := range n.Children {
			walk(ch)
		}
	}
	walk(body)
}

// capturedVars scans stmts for lambdas and returns the names of every var
// binding some lambda captures; those vars are lowered to shared heap
// cells rather than allocas. The scan runs before any statement of the
// body is lowered, so a capture in a late lambda still boxes a var
// declared earlier.
func capturedVars(stmts []*ast.Node) map[string]bool {
	boxed := make(map[string]bool, 2)
	var walk func(n *ast.Node)
	walk = func(n *ast.Node) {
		if n == nil {
			return
		}
		if n.Typ == ast.Lambda {
			local := make(map[string]bool, 4)
			for _, p := range n.Children[0].Children {
				local[p.Data.(string)] = true
			}
			collectLocalDecls(n.Children[1], local)
			markFreeVars(n.Children[1], local, boxed)
		}
		for _, ch := range n.Children {
			walk(ch)
		}
	}
	for _, s := range stmts {
		walk(s)
	}
	return boxed
}

// markFreeVars records every identifier in n not declared in local; the
// lowering of the declaring scope decides whether the name is actually a
// var (and so needs a cell) when it consults the resolved symbol kind, so
// over-marking a const or parameter name here is harmless.
func markFreeVars(n *ast.Node, local, boxed map[string]bool) {
	if n == nil {
		return
	}
	if n.Typ == ast.Ident {
		if name, _ := n.Data.(string); name != "" && !local[name] {
			boxed[name] = true
		}
	}
	for _, ch := range n.Children {
		markFreeVars(ch, local, boxed)
	}
}
