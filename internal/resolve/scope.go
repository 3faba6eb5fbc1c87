package resolve

import (
	"tea/internal/ast"
	"tea/internal/sourcemap"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// SymbolKind differentiates what a name in scope refers to: a var, const,
// parameter, function, struct, enum, error declaration or module alias.
type SymbolKind int

const (
	SymVar SymbolKind = iota
	SymConst
	SymParam
	SymFunc
	SymStruct
	SymEnum
	SymError
	SymModuleAlias
)

// Symbol is one scope-graph entry.
type Symbol struct {
	Name     string
	Kind     SymbolKind
	DeclSpan sourcemap.Span
	Mutable  bool
	Used     bool
	Node     *ast.Node // Declaring node (FuncDecl, StructDecl, Param, ...).
}

// ScopeKind differentiates the nesting levels of the scope tree.
type ScopeKind int

const (
	ScopeModule ScopeKind = iota
	ScopeFunction
	ScopeBlock
	ScopeLoop
	ScopeLambda
)

// Scope is one node of the scope graph: a flat map of locally declared
// names plus a link to its enclosing scope. Shadowing across this chain is
// disallowed; redeclaration within one Scope's own map is a
// hard error.
type Scope struct {
	kind   ScopeKind
	parent *Scope
	names  map[string]*Symbol
}

// ---------------------
// ----- Functions -----
// ---------------------

// newScope returns a fresh scope nested under parent.
func newScope(kind ScopeKind, parent *Scope) *Scope {
	return &Scope{kind: kind, parent: parent, names: make(map[string]*Symbol, 8)}
}

// declareLocal returns ok=false if name is already declared anywhere in
// this scope's lexical chain (same-scope redeclaration or shadowing),
// otherwise inserts sym into the innermost scope and returns ok=true.
func (s *Scope) declareLocal(name string, sym *Symbol) (prior *Symbol, ok bool) {
	if existing := s.lookupChain(name); existing != nil {
		return existing, false
	}
	s.names[name] = sym
	return nil, true
}

// lookupChain searches this scope and every enclosing scope for name.
func (s *Scope) lookupChain(name string) *Symbol {
	for sc := s; sc != nil; sc = sc.parent {
		if sym, ok := sc.names[name]; ok {
			return sym
		}
	}
	return nil
}

// lookupLocal searches only this scope's own map, without walking the
// enclosing scopes; Lookup exposes it to other packages.
func (s *Scope) lookupLocal(name string) (*Symbol, bool) {
	sym, ok := s.names[name]
	return sym, ok
}

// Lookup searches this scope's own map for name, exported so other
// packages can resolve `alias.member` against an imported module's
// top-level scope without reaching into Scope's private fields.
func (s *Scope) Lookup(name string) (*Symbol, bool) {
	return s.lookupLocal(name)
}

func (s *Scope) enclosingLoop() *Scope {
	for sc := s; sc != nil; sc = sc.parent {
		if sc.kind == ScopeLoop {
			return sc
		}
	}
	return nil
}

func (s *Scope) enclosingFunction() *Scope {
	for sc := s; sc != nil; sc = sc.parent {
		if sc.kind == ScopeFunction {
			return sc
		}
	}
	return nil
}
