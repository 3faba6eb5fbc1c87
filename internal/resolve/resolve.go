// Package resolve implements Tea's two-pass resolver: pass one
// registers every top-level name so forward references work, pass two
// walks bodies building the nested scope graph and binding every
// identifier reference to exactly one declaration site.
package resolve

import (
	"tea/internal/ast"
	"tea/internal/diag"
	"tea/internal/sourcemap"
	"tea/internal/stdlib"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// ModuleExports is what a `use alias = "..."` binds alias to: either an
// inlined sibling module's top-level scope (relative imports) or a
// snapshot of stdlib function signatures (std./support. imports).
type ModuleExports struct {
	Relative *Scope            // Non-nil for "./..." imports: the imported module's top-level scope.
	Stdlib   map[string]*Scope // unused placeholder to keep struct shape stable for future dict-typed exports.
	IsStd    bool
	StdPath  string
}

// Loader resolves a relative `use alias = "./path"` import to a parsed
// module. The driver supplies the implementation (it owns file I/O and the
// source map); the resolver only needs the resulting tree.
type Loader interface {
	LoadRelative(fromFile sourcemap.FileID, path string) (*ast.Node, sourcemap.FileID, error)
}

// Result is everything downstream phases need from resolution.
type Result struct {
	Bindings     map[ast.ID]*Symbol        // Ident node -> declaration Symbol.
	ModuleScope  *Scope                    // Top-level scope of the module being resolved.
	Imports      map[string]*ModuleExports // use alias -> what it refers to.
	InlinedDecls map[string][]*ast.Node    // alias -> top-level decls inlined from a relative import.
}

// Resolver carries the mutable state of one module's resolution pass.
type Resolver struct {
	sink     *diag.Sink
	loader   Loader
	std      *stdlib.Snapshot
	file     sourcemap.FileID
	bindings map[ast.ID]*Symbol
	imports  map[string]*ModuleExports
	inlined  map[string][]*ast.Node
}

// ---------------------
// ----- Functions -----
// ---------------------

// New returns a Resolver for a module parsed from file.
func New(sink *diag.Sink, loader Loader, std *stdlib.Snapshot, file sourcemap.FileID) *Resolver {
	return &Resolver{
		sink: sink, loader: loader, std: std, file: file,
		bindings: make(map[ast.ID]*Symbol, 64),
		imports:  make(map[string]*ModuleExports, 8),
		inlined:  make(map[string][]*ast.Node, 8),
	}
}

// Resolve runs both passes over module and returns the scope graph plus
// the identifier bindings. It does not stop early on errors: every
// diagnostic is reported and checking continues with the offending node
// unresolved.
func (r *Resolver) Resolve(module *ast.Node) *Result {
	top := newScope(ScopeModule, nil)

	// Pass 1: register every top-level name and expand `use` declarations.
	for _, decl := range module.Children {
		r.registerTopLevel(top, decl)
	}

	// Pass 2: walk bodies.
	for _, decl := range module.Children {
		r.resolveTopLevel(top, decl)
	}

	return &Result{
		Bindings:     r.bindings,
		ModuleScope:  top,
		Imports:      r.imports,
		InlinedDecls: r.inlined,
	}
}

// registerTopLevel implements pass 1: it only looks at the declaration's
// own name, never its body, so that mutually-recursive top-level
// definitions resolve regardless of source order.
func (r *Resolver) registerTopLevel(top *Scope, decl *ast.Node) {
	switch decl.Typ {
	case ast.Use:
		pair := decl.Data.(ast.UseData)
		alias, path := pair[0], pair[1]
		r.declareTop(top, alias, SymModuleAlias, decl.Span, decl)
		r.expandUse(alias, path, decl.Span)
	case ast.FuncDecl:
		d := decl.Data.(ast.FuncData)
		r.declareTop(top, d.Name, SymFunc, decl.Span, decl)
	case ast.StructDecl:
		d := decl.Data.(ast.StructData)
		r.declareTop(top, d.Name, SymStruct, decl.Span, decl)
	case ast.EnumDecl:
		d := decl.Data.(ast.StructData)
		r.declareTop(top, d.Name, SymEnum, decl.Span, decl)
	case ast.ErrorDecl:
		d := decl.Data.(ast.StructData)
		r.declareTop(top, d.Name, SymError, decl.Span, decl)
	case ast.ConstDecl:
		d := decl.Data.(ast.DeclData)
		r.declareTop(top, d.Name, SymConst, decl.Span, decl)
	case ast.VarDecl:
		d := decl.Data.(ast.DeclData)
		r.declareTop(top, d.Name, SymVar, decl.Span, decl)
	}
}

func (r *Resolver) declareTop(top *Scope, name string, kind SymbolKind, span sourcemap.Span, node *ast.Node) {
	sym := &Symbol{Name: name, Kind: kind, DeclSpan: span, Mutable: kind == SymVar, Node: node}
	if prior, ok := top.declareLocal(name, sym); !ok {
		r.sink.Report(diag.Diagnostic{
			Severity: diag.Error, Code: "E0200", Primary: span,
			Message:   "duplicate top-level declaration of \"" + name + "\"",
			Secondary: []diag.SecondarySpan{{Span: prior.DeclSpan, Label: "previously declared here"}},
		})
	}
}

// expandUse resolves one `use` declaration: std./support.-prefixed paths
// bind against the embedded snapshot, everything else is treated as a
// relative path and inlined into the importer's top-level scope (spec
// §4.3, §9 "Relative module inlining").
func (r *Resolver) expandUse(alias, path string, span sourcemap.Span) {
	if isStdPath(path) {
		if _, ok := r.std.Exports(path); !ok {
			r.sink.Errorf("E0201", span, "unknown standard library module %q", path)
			return
		}
		r.imports[alias] = &ModuleExports{IsStd: true, StdPath: path}
		return
	}
	if r.loader == nil {
		r.sink.Errorf("E0202", span, "cannot resolve relative import %q: no module loader configured", path)
		return
	}
	mod, file, err := r.loader.LoadRelative(r.file, path)
	if err != nil {
		r.sink.Errorf("E0203", span, "could not load module %q: %s", path, err)
		return
	}
	sub := New(r.sink, r.loader, r.std, file)
	subResult := sub.Resolve(mod)
	r.imports[alias] = &ModuleExports{Relative: subResult.ModuleScope}
	r.inlined[alias] = mod.Children
	for id, sym := range subResult.Bindings {
		r.bindings[id] = sym
	}
}

func isStdPath(path string) bool {
	return len(path) >= 4 && (path[:4] == "std." || (len(path) >= 8 && path[:8] == "support."))
}
