package resolve

import (
	"fmt"
	"strings"

	"tea/internal/ast"
	"tea/internal/diag"
)

// resolveTopLevel implements pass two for one top-level declaration: it
// walks into bodies and binds every identifier reference, now that pass
// one has registered every top-level name.
func (r *Resolver) resolveTopLevel(top *Scope, decl *ast.Node) {
	switch decl.Typ {
	case ast.Use, ast.StructDecl, ast.EnumDecl, ast.ErrorDecl:
		// Nothing to walk: use-paths were expanded in pass one, and field
		// type references are the type checker's concern, not the resolver's.
	case ast.VarDecl, ast.ConstDecl:
		r.resolveDeclInit(top, decl)
	case ast.FuncDecl:
		r.resolveFunc(top, decl)
	case ast.TestDecl:
		r.resolveTestDecl(top, decl)
	default:
		// A bare top-level statement: part of the implicit tea_main body.
		r.resolveStmt(top, decl)
	}
}

// resolveDeclInit walks the initializer of a top-level var/const; the name
// itself was already declared into top by registerTopLevel.
func (r *Resolver) resolveDeclInit(sc *Scope, decl *ast.Node) {
	for _, c := range decl.Children {
		if c.Typ == ast.TypeRef {
			continue
		}
		r.resolveExpr(sc, c)
	}
}

// resolveFunc binds a function's parameters into a fresh function scope and
// walks its body.
func (r *Resolver) resolveFunc(parent *Scope, decl *ast.Node) {
	paramList := decl.Children[0]
	body := decl.Children[len(decl.Children)-1]

	fnScope := newScope(ScopeFunction, parent)
	r.declareParams(fnScope, paramList)

	for _, stmt := range body.Children {
		r.resolveStmt(fnScope, stmt)
	}
	r.checkUnused(fnScope)
}

func (r *Resolver) resolveTestDecl(parent *Scope, decl *ast.Node) {
	body := decl.Children[0]
	sc := newScope(ScopeFunction, parent)
	for _, stmt := range body.Children {
		r.resolveStmt(sc, stmt)
	}
	r.checkUnused(sc)
}

func (r *Resolver) declareParams(sc *Scope, paramList *ast.Node) {
	for _, p := range paramList.Children {
		name, _ := p.Data.(string)
		sym := &Symbol{Name: name, Kind: SymParam, DeclSpan: p.Span, Node: p}
		if prior, ok := sc.declareLocal(name, sym); !ok {
			r.sink.Report(diag.Diagnostic{
				Severity: diag.Error, Code: "E0205", Primary: p.Span,
				Message:   fmt.Sprintf("duplicate parameter %q", name),
				Secondary: []diag.SecondarySpan{{Span: prior.DeclSpan, Label: "previously declared here"}},
			})
		}
	}
}

// ---------------------------
// ----- Statement walk -----
// ---------------------------

// resolveStmt resolves one statement node, opening a nested scope for every
// construct that introduces one.
func (r *Resolver) resolveStmt(sc *Scope, n *ast.Node) {
	switch n.Typ {
	case ast.VarDecl, ast.ConstDecl:
		r.resolveLocalDecl(sc, n)
	case ast.If:
		r.resolveExpr(sc, n.Children[0])
		r.resolveBlock(sc, ScopeBlock, n.Children[1])
		if len(n.Children) > 2 {
			if n.Children[2].Typ == ast.If {
				// `else if` re-parses as a nested If child in the same
				// position; it manages its own scope when resolved.
				r.resolveStmt(sc, n.Children[2])
			} else {
				r.resolveBlock(sc, ScopeBlock, n.Children[2])
			}
		}
	case ast.Unless:
		r.resolveExpr(sc, n.Children[0])
		r.resolveBlock(sc, ScopeBlock, n.Children[1])
	case ast.While, ast.Until:
		r.resolveExpr(sc, n.Children[0])
		r.resolveBlock(sc, ScopeLoop, n.Children[1])
	case ast.For:
		r.resolveForStmt(sc, n)
	case ast.Return:
		if len(n.Children) > 0 {
			r.resolveExpr(sc, n.Children[0])
		}
	case ast.Throw:
		r.resolveExpr(sc, n.Children[0])
	case ast.Block:
		r.resolveBlock(sc, ScopeBlock, n)
	default:
		r.resolveExpr(sc, n)
	}
}

// resolveLocalDecl handles a var/const declaration used as a statement: the
// initializer resolves against the enclosing scope (so `var x = x` sees any
// outer `x`), then the name is declared into sc itself.
func (r *Resolver) resolveLocalDecl(sc *Scope, n *ast.Node) {
	d := n.Data.(ast.DeclData)
	for _, c := range n.Children {
		if c.Typ == ast.TypeRef {
			continue
		}
		r.resolveExpr(sc, c)
	}
	kind := SymVar
	if n.Typ == ast.ConstDecl {
		kind = SymConst
	}
	sym := &Symbol{Name: d.Name, Kind: kind, DeclSpan: n.Span, Mutable: kind == SymVar, Node: n}
	if prior, ok := sc.declareLocal(d.Name, sym); !ok {
		r.sink.Report(diag.Diagnostic{
			Severity: diag.Error, Code: "E0204", Primary: n.Span,
			Message:   fmt.Sprintf("%q is already declared in this scope", d.Name),
			Secondary: []diag.SecondarySpan{{Span: prior.DeclSpan, Label: "previously declared here"}},
		})
	}
}

// resolveForStmt resolves the iterable against the enclosing scope, then
// binds the loop variable into a fresh loop scope covering the body.
func (r *Resolver) resolveForStmt(sc *Scope, n *ast.Node) {
	name, _ := n.Data.(string)
	r.resolveExpr(sc, n.Children[0])

	loopScope := newScope(ScopeLoop, sc)
	sym := &Symbol{Name: name, Kind: SymVar, DeclSpan: n.Span, Node: n}
	loopScope.declareLocal(name, sym)

	body := n.Children[1]
	for _, stmt := range body.Children {
		r.resolveStmt(loopScope, stmt)
	}
	r.checkUnused(loopScope)
}

// resolveBlock opens a new scope of kind nested under parent and resolves
// every statement of block within it.
func (r *Resolver) resolveBlock(parent *Scope, kind ScopeKind, block *ast.Node) {
	sc := newScope(kind, parent)
	for _, stmt := range block.Children {
		r.resolveStmt(sc, stmt)
	}
	r.checkUnused(sc)
}

// ----------------------------
// ----- Expression walk -----
// ----------------------------

// resolveExpr binds every Ident found within n, recursing into subtrees
// that introduce no scope of their own and delegating to dedicated helpers
// for the ones that do (Lambda, CatchExpr, Case).
func (r *Resolver) resolveExpr(sc *Scope, n *ast.Node) {
	if n == nil {
		return
	}
	switch n.Typ {
	case ast.Literal, ast.TemplateChunk, ast.TypeRef:
		return
	case ast.Ident:
		r.resolveIdent(sc, n)
		for _, c := range n.Children {
			// Explicit generic instantiation arguments (id[T1, T2](...));
			// TypeRef children are already a no-op above, this just keeps
			// the walk uniform.
			r.resolveExpr(sc, c)
		}
	case ast.Binary:
		op, _ := n.Data.(string)
		if isAssignOp(op) {
			r.resolveAssignTarget(sc, n.Children[0])
			r.resolveExpr(sc, n.Children[1])
			return
		}
		for _, c := range n.Children {
			r.resolveExpr(sc, c)
		}
	case ast.Member:
		// n.Data is the field name, not a binding site.
		r.resolveExpr(sc, n.Children[0])
	case ast.Lambda:
		r.resolveLambda(sc, n)
	case ast.CatchExpr:
		r.resolveCatchExpr(sc, n)
	case ast.Case:
		r.resolveCaseExpr(sc, n)
	default:
		for _, c := range n.Children {
			r.resolveExpr(sc, c)
		}
	}
}

func (r *Resolver) resolveIdent(sc *Scope, n *ast.Node) {
	name, _ := n.Data.(string)
	sym := sc.lookupChain(name)
	if sym == nil {
		r.sink.Errorf("E0206", n.Span, "undefined name %q", name)
		return
	}
	sym.Used = true
	r.bindings[n.ID] = sym
}

// resolveAssignTarget resolves the left-hand side of an assignment,
// reporting an error if it names a const: const bindings admit no
// assignment after declaration.
func (r *Resolver) resolveAssignTarget(sc *Scope, n *ast.Node) {
	if n.Typ != ast.Ident {
		r.resolveExpr(sc, n)
		return
	}
	name, _ := n.Data.(string)
	sym := sc.lookupChain(name)
	if sym == nil {
		r.sink.Errorf("E0206", n.Span, "undefined name %q", name)
		return
	}
	sym.Used = true
	r.bindings[n.ID] = sym
	if sym.Kind == SymConst {
		r.sink.Errorf("E0207", n.Span, "cannot reassign const %q", name)
	}
}

var assignOpNames = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
}

func isAssignOp(op string) bool { return assignOpNames[op] }

// resolveLambda binds a lambda's parameters into a fresh lambda scope.
// Lookups inside still chain out through parent, which is how closures
// capture enclosing locals without any explicit capture list; the lowerer
// later turns those chained lookups into a captured environment.
func (r *Resolver) resolveLambda(sc *Scope, n *ast.Node) {
	paramList := n.Children[0]
	body := n.Children[1]

	lamScope := newScope(ScopeLambda, sc)
	r.declareParams(lamScope, paramList)

	if body.Typ == ast.Block {
		for _, stmt := range body.Children {
			r.resolveStmt(lamScope, stmt)
		}
	} else {
		r.resolveExpr(lamScope, body)
	}
	r.checkUnused(lamScope)
}

// resolveCatchExpr resolves the guarded expression, then each case body in
// its own scope with the error binder (if named) bound.
func (r *Resolver) resolveCatchExpr(sc *Scope, n *ast.Node) {
	binder, _ := n.Data.(string)
	r.resolveExpr(sc, n.Children[0])
	for _, cc := range n.Children[1:] {
		caseScope := newScope(ScopeBlock, sc)
		if binder != "" {
			sym := &Symbol{Name: binder, Kind: SymVar, DeclSpan: cc.Span, Node: cc}
			caseScope.declareLocal(binder, sym)
		}
		body := cc.Children[len(cc.Children)-1]
		for _, stmt := range body.Children {
			r.resolveStmt(caseScope, stmt)
		}
		r.checkUnused(caseScope)
	}
}

// resolveCaseExpr resolves the subject, then each arm's optional pattern
// (against the enclosing scope: patterns are value expressions, not
// destructuring binders) and its body in its own scope.
func (r *Resolver) resolveCaseExpr(sc *Scope, n *ast.Node) {
	r.resolveExpr(sc, n.Children[0])
	for _, arm := range n.Children[1:] {
		isWild, _ := arm.Data.(bool)
		idx := 0
		if !isWild {
			r.resolveExpr(sc, arm.Children[0])
			idx = 1
		}
		body := arm.Children[idx]
		armScope := newScope(ScopeBlock, sc)
		for _, stmt := range body.Children {
			r.resolveStmt(armScope, stmt)
		}
		r.checkUnused(armScope)
	}
}

// checkUnused warns about declared-but-unread vars and consts.
// Unused parameters are reported too, but only as warnings, since they are
// common in callback-shaped code. A leading underscore opts a name out
// entirely.
func (r *Resolver) checkUnused(sc *Scope) {
	for name, sym := range sc.names {
		if sym.Used || strings.HasPrefix(name, "_") {
			continue
		}
		if sym.Kind != SymVar && sym.Kind != SymConst && sym.Kind != SymParam {
			continue
		}
		r.sink.Warnf("W0001", sym.DeclSpan, "%q is declared but never used", name)
	}
}
