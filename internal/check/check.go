// Package check implements Tea's type checker: Hindley-Milner
// style inference restricted by explicit annotations. It runs after the
// resolver and consumes its bindings; like the resolver it never aborts on
// the first error, instead assigning Unknown to the offending expression so
// later diagnostics keep surfacing.
package check

import (
	"tea/internal/ast"
	"tea/internal/diag"
	"tea/internal/resolve"
	"tea/internal/stdlib"
	"tea/internal/types"
)

// Bindings exposes the resolver's identifier-to-declaration-site table, read
// by the lowerer's free-variable scan when building a closure's captured
// environment.
func (c *Checker) Bindings() map[ast.ID]*resolve.Symbol {
	return c.result.Bindings
}

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// structInfo is a module's own view of one struct declaration: its
// declaration id, generic parameters and field types in source order.
type structInfo struct {
	id         types.DeclID
	name       string
	generics   []string
	fieldOrder []string
	fields     map[string]*types.Type
}

// enumInfo is a module's own view of one enum declaration.
type enumInfo struct {
	id    types.DeclID
	name  string
	cases map[string]bool
}

// errVariant is one named, fielded case of an error declaration.
type errVariant struct {
	order  []string
	fields map[string]*types.Type
}

// errInfo is a module's own view of one error declaration.
type errInfo struct {
	id       types.DeclID
	name     string
	variants map[string]*errVariant
}

// Checker carries the mutable state of one module's type-checking pass.
type Checker struct {
	sink   *diag.Sink
	std    *stdlib.Snapshot
	result *resolve.Result

	declTypes map[*ast.Node]*types.Type // declaring node (VarDecl/ConstDecl/Param/For/CatchCase) -> its type.
	exprTypes map[ast.ID]*types.Type    // every checked expression node -> its type.
	callSubst   map[ast.ID]map[string]*types.Type // generic Call node -> its inferred type-parameter bindings, read by the monomorphizer.
	funcNodes   map[string]*ast.Node              // top-level function name -> its FuncDecl node.
	funcDeclIDs map[string]types.DeclID           // top-level function name -> its declaration id.

	structs       map[string]*structInfo
	structsByID   map[types.DeclID]*structInfo
	enums         map[string]*enumInfo
	errs          map[string]*errInfo
	funcs         map[string]*types.Type            // local top-level function name -> signature.
	importedFuncs map[string]map[string]*types.Type  // use-alias -> exported function name -> signature.

	curThrows      []types.ErrorVariantRef // throws set of the function/test presently being checked.
	lastCallThrows []types.ErrorVariantRef // throws of the most recently checked Call, read by a wrapping CatchExpr.
	guardedCall    bool                    // set by a CatchExpr while its guarded expression is being checked.

	nextDeclID types.DeclID
}

// ---------------------
// ----- Functions -----
// ---------------------

// New returns a Checker for a module whose resolution result is result.
func New(sink *diag.Sink, std *stdlib.Snapshot, result *resolve.Result) *Checker {
	return &Checker{
		sink: sink, std: std, result: result,
		declTypes:     make(map[*ast.Node]*types.Type, 64),
		exprTypes:     make(map[ast.ID]*types.Type, 256),
		callSubst:     make(map[ast.ID]map[string]*types.Type, 16),
		funcNodes:     make(map[string]*ast.Node, 16),
		funcDeclIDs:   make(map[string]types.DeclID, 16),
		structs:       make(map[string]*structInfo, 8),
		structsByID:   make(map[types.DeclID]*structInfo, 8),
		enums:         make(map[string]*enumInfo, 8),
		errs:          make(map[string]*errInfo, 8),
		funcs:         make(map[string]*types.Type, 16),
		importedFuncs: make(map[string]map[string]*types.Type, 4),
	}
}

// Check type-checks every top-level declaration of module, reporting
// diagnostics into the sink. It returns the expression-type side table for
// the monomorphizer and lowerer to consult.
func (c *Checker) Check(module *ast.Node) map[ast.ID]*types.Type {
	c.collectTypeDecls(module)
	c.collectImportedFuncs()
	c.collectFuncSigs(module)
	for _, decl := range module.Children {
		c.checkTopLevel(decl)
	}
	return c.exprTypes
}

// DeclTypeOf returns the checked type of a declaring node (a VarDecl,
// ConstDecl, Param, For loop, or CatchCase), used by the lowerer to size
// stack slots and closure environments.
func (c *Checker) DeclTypeOf(n *ast.Node) (*types.Type, bool) {
	t, ok := c.declTypes[n]
	return t, ok
}

// ExprType returns the checked type of any expression node, read back by
// the monomorphizer and lowerer from the exclusive type facts table this
// Checker owns.
func (c *Checker) ExprType(id ast.ID) (*types.Type, bool) {
	t, ok := c.exprTypes[id]
	return t, ok
}

// CallSubst returns the generic-parameter bindings inferred at a Call node,
// if that call targeted a generic function. The monomorphizer uses this
// instead of re-deriving unification at specialization time.
func (c *Checker) CallSubst(id ast.ID) (map[string]*types.Type, bool) {
	s, ok := c.callSubst[id]
	return s, ok
}

// FuncNode returns the FuncDecl node declaring the named top-level
// function, used by the monomorphizer to read its generic parameter list
// and by the lowerer to find its body.
func (c *Checker) FuncNode(name string) (*ast.Node, bool) {
	n, ok := c.funcNodes[name]
	return n, ok
}

// FuncSig returns the checked signature of a top-level function.
func (c *Checker) FuncSig(name string) (*types.Type, bool) {
	t, ok := c.funcs[name]
	return t, ok
}

// FuncDeclID returns the declaration id assigned to a top-level function,
// the first half of the monomorphization registry key.
func (c *Checker) FuncDeclID(name string) (types.DeclID, bool) {
	id, ok := c.funcDeclIDs[name]
	return id, ok
}

// StructLayout returns a struct's field names in declaration order and
// their checked types, read by the lowerer to translate field access into
// numeric rt_struct_get_field/set_field indices.
func (c *Checker) StructLayout(name string) (fieldOrder []string, fields map[string]*types.Type, ok bool) {
	info, ok := c.structs[name]
	if !ok {
		return nil, nil, false
	}
	return info.fieldOrder, info.fields, true
}

// ErrVariantLayout returns an error variant's payload field names in
// declaration order and their checked types, read by the lowerer to
// translate catch-binder field access into numeric payload indices.
func (c *Checker) ErrVariantLayout(errName, variant string) (fieldOrder []string, fields map[string]*types.Type, ok bool) {
	info, ok := c.errs[errName]
	if !ok {
		return nil, nil, false
	}
	v, ok := info.variants[variant]
	if !ok || v == nil {
		return nil, nil, false
	}
	return v.order, v.fields, true
}

func (c *Checker) allocDeclID() types.DeclID {
	c.nextDeclID++
	return c.nextDeclID
}

func (c *Checker) checkTopLevel(decl *ast.Node) {
	switch decl.Typ {
	case ast.Use, ast.StructDecl, ast.EnumDecl, ast.ErrorDecl:
		// Already fully handled by collectTypeDecls/collectImportedFuncs.
	case ast.VarDecl, ast.ConstDecl:
		c.checkStmt(decl, nil)
	case ast.FuncDecl:
		c.checkFuncBody(decl)
	case ast.TestDecl:
		c.checkTestBody(decl)
	default:
		// Part of the implicit tea_main body; no throws set
		// and no required return type.
		c.checkStmt(decl, nil)
	}
}

func (c *Checker) checkFuncBody(decl *ast.Node) {
	d := decl.Data.(ast.FuncData)
	sig := c.funcs[d.Name]
	if sig == nil {
		sig = types.Func(nil, types.Void, nil)
	}
	body := decl.Children[len(decl.Children)-1]

	prevThrows := c.curThrows
	c.curThrows = sig.Throws
	for _, stmt := range body.Children {
		c.checkStmt(stmt, sig.Ret)
	}
	c.curThrows = prevThrows
}

func (c *Checker) checkTestBody(decl *ast.Node) {
	body := decl.Children[0]
	prevThrows := c.curThrows
	c.curThrows = nil
	for _, stmt := range body.Children {
		c.checkStmt(stmt, types.Void)
	}
	c.curThrows = prevThrows
}

func throwsContains(set []types.ErrorVariantRef, errName, variant string) bool {
	for _, ref := range set {
		if ref.ErrorName == errName && ref.VariantName == variant {
			return true
		}
	}
	return false
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// isExprNode reports whether n is an expression (as opposed to a statement
// or declaration), used by the implicit last-expression value rule that
// checkBlockValue applies to if/case branches in expression position.
func isExprNode(n *ast.Node) bool {
	switch n.Typ {
	case ast.VarDecl, ast.ConstDecl, ast.If, ast.Unless, ast.While, ast.Until,
		ast.For, ast.Return, ast.Throw, ast.Block:
		return false
	default:
		return true
	}
}
