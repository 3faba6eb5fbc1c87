// Package mono implements Tea's monomorphizer: a worklist
// walker that starts from concrete entry points (tea_main's implicit body,
// pub functions, and test declarations) and, for every generic call or
// struct construction it finds, synthesizes a distinct specialization keyed
// by the declaration and a canonical type-argument tuple, deduplicated
// across call sites. Because every AST node shares one
// Node{Children} shape (internal/ast), a single untyped recursive walk
// finds every Call site regardless of the statement or expression form it
// sits inside, without a node-kind switch.
//
// Specialization ids are content-derived: google/uuid's NewSHA1 hashes the
// canonical registry key under a fixed namespace, so identical inputs
// always produce identical specialization names.
package mono

import (
	"strings"

	"github.com/google/uuid"

	"tea/internal/ast"
	"tea/internal/check"
	"tea/internal/types"
)

// namespace is the fixed UUID namespace every specialization id is hashed
// under. Its value is arbitrary; it must simply never change between
// builds so identical specializations keep identical ids.
var namespace = uuid.MustParse("6f1f1a2e-6b3d-4a6f-9a9d-9f6f9b2c7a11")

// FuncSpecialization is one concrete instantiation of a generic function.
// Decl still points at the shared, generic FuncDecl node
// lowerer reads Decl's body once per specialization, substituting Subst in
// place of re-checking a cloned tree (spec's "clones the generic body"
// achieved here without a literal AST copy, since Node values are
// immutable and every later phase keys off Subst + the shared node id
// rather than node identity alone).
type FuncSpecialization struct {
	ID          string // Stable, content-derived specialization id.
	MangledName string // Link-time symbol name: "<name>__<id>".
	FuncName    string
	Decl        *ast.Node
	TypeArgs    []*types.Type // In declared generic-parameter order.
	Subst       map[string]*types.Type
}

// StructSpecialization is one concrete instantiation of a generic struct,
// yielding a distinct nominal type for the lowerer and code generator.
type StructSpecialization struct {
	ID       string
	Name     string
	DeclID   types.DeclID
	TypeArgs []*types.Type
}

// Registry is the monomorphizer's output: every distinct specialization
// reached from the module's entry points, deduplicated by declaration and
// type tuple.
type Registry struct {
	Funcs   map[string]*FuncSpecialization
	Structs map[string]*StructSpecialization

	funcKeys   map[string]*FuncSpecialization
	structKeys map[string]*StructSpecialization
	queue      []*FuncSpecialization // Specializations whose bodies still await scanning.
}

func newRegistry() *Registry {
	return &Registry{
		Funcs:      make(map[string]*FuncSpecialization, 8),
		Structs:    make(map[string]*StructSpecialization, 8),
		funcKeys:   make(map[string]*FuncSpecialization, 8),
		structKeys: make(map[string]*StructSpecialization, 8),
	}
}

// Build walks module's concrete entry points — tea_main's top-level
// statements, every pub function's body, and every test body — then runs
// the worklist to a fixed point: every newly registered specialization's
// body is rescanned under its own substitution, so generic calls nested
// inside generic bodies still resolve to concrete instantiations.
func Build(module *ast.Node, c *check.Checker) *Registry {
	reg := newRegistry()
	var mainBody []*ast.Node
	for _, decl := range module.Children {
		switch decl.Typ {
		case ast.FuncDecl:
			d := decl.Data.(ast.FuncData)
			if d.Pub {
				body := decl.Children[len(decl.Children)-1]
				reg.scanStmts(body.Children, c, nil)
			}
		case ast.TestDecl:
			body := decl.Children[0]
			reg.scanStmts(body.Children, c, nil)
		case ast.Use, ast.StructDecl, ast.EnumDecl, ast.ErrorDecl:
			// Not executable entry points.
		default:
			// Top-level VarDecl/ConstDecl and bare statements make up
			// tea_main's implicit body.
			mainBody = append(mainBody, decl)
		}
	}
	reg.scanStmts(mainBody, c, nil)

	for len(reg.queue) > 0 {
		spec := reg.queue[0]
		reg.queue = reg.queue[1:]
		body := spec.Decl.Children[len(spec.Decl.Children)-1]
		reg.scanStmts(body.Children, c, spec.Subst)
	}
	return reg
}

func (reg *Registry) scanStmts(stmts []*ast.Node, c *check.Checker, outer map[string]*types.Type) {
	for _, s := range stmts {
		reg.scan(s, c, outer)
	}
}

// scan walks n and every descendant looking for generic call or
// construction sites. outer is the substitution of the enclosing
// specialization, nil when scanning from a concrete entry point.
func (reg *Registry) scan(n *ast.Node, c *check.Checker, outer map[string]*types.Type) {
	if n == nil {
		return
	}
	if n.Typ == ast.Call {
		reg.scanCall(n, c, outer)
	}
	for _, ch := range n.Children {
		reg.scan(ch, c, outer)
	}
}

func (reg *Registry) scanCall(n *ast.Node, c *check.Checker, outer map[string]*types.Type) {
	if subst, ok := c.CallSubst(n.ID); ok {
		if callee := n.Children[0]; callee.Typ == ast.Ident {
			if name, ok := callee.Data.(string); ok {
				if decl, ok := c.FuncNode(name); ok {
					composed := composeSubst(subst, outer)
					// A binding still naming a generic parameter means
					// this call sits inside a generic body scanned as an
					// entry point; its concrete instantiations arrive via
					// the worklist instead.
					if !anyGeneric(composed) {
						reg.addFunc(name, decl, composed)
					}
				}
			}
		}
	}
	if t, ok := c.ExprType(n.ID); ok && t.Kind == types.KStruct && len(t.TypeArgs) > 0 {
		concrete := t
		if outer != nil {
			cp := *t
			cp.TypeArgs = make([]*types.Type, len(t.TypeArgs))
			for i1, a := range t.TypeArgs {
				cp.TypeArgs[i1] = substType(a, outer)
			}
			concrete = &cp
		}
		for _, a := range concrete.TypeArgs {
			if containsGeneric(a) {
				return
			}
		}
		reg.addStruct(concrete)
	}
}

// composeSubst resolves a call site's recorded bindings through the
// enclosing specialization's substitution, turning Generic(T)-valued
// bindings inside a generic body into the concrete types of the enclosing
// instantiation.
func composeSubst(subst, outer map[string]*types.Type) map[string]*types.Type {
	if outer == nil {
		return subst
	}
	composed := make(map[string]*types.Type, len(subst))
	for k, v := range subst {
		composed[k] = substType(v, outer)
	}
	return composed
}

// anyGeneric reports whether any binding still contains an unresolved
// generic parameter.
func anyGeneric(subst map[string]*types.Type) bool {
	for _, t := range subst {
		if containsGeneric(t) {
			return true
		}
	}
	return false
}

func containsGeneric(t *types.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case types.KGeneric:
		return true
	case types.KList:
		return containsGeneric(t.Elem)
	case types.KDict:
		return containsGeneric(t.Key) || containsGeneric(t.Val)
	default:
		return false
	}
}

// substType replaces every Generic occurrence in t with its binding.
func substType(t *types.Type, subst map[string]*types.Type) *types.Type {
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
		return types.List(substType(t.Elem, subst))
	case types.KDict:
		return types.Dict(substType(t.Key, subst), substType(t.Val, subst))
	default:
		return t
	}
}

// Lookup finds the specialization previously registered for name
// instantiated at the generic-parameter-ordered type tuple args, read by
// the lowerer at a generic call site instead of recomputing unification.
func (reg *Registry) Lookup(name string, args []*types.Type) (*FuncSpecialization, bool) {
	key := name + "|" + canonicalTuple(args)
	spec, ok := reg.funcKeys[key]
	return spec, ok
}

func (reg *Registry) addFunc(name string, decl *ast.Node, subst map[string]*types.Type) *FuncSpecialization {
	genericsNode := decl.Children[1]
	order := make([]string, len(genericsNode.Children))
	for i1, g := range genericsNode.Children {
		order[i1] = g.Data.(string)
	}
	args := make([]*types.Type, len(order))
	for i1, g := range order {
		if t, ok := subst[g]; ok {
			args[i1] = t
		} else {
			args[i1] = types.Unknown(0)
		}
	}
	key := name + "|" + canonicalTuple(args)
	if existing, ok := reg.funcKeys[key]; ok {
		return existing
	}
	id := specializationID(key)
	spec := &FuncSpecialization{
		ID:          id,
		MangledName: name + "__" + id,
		FuncName:    name,
		Decl:        decl,
		TypeArgs:    args,
		Subst:       subst,
	}
	reg.funcKeys[key] = spec
	reg.Funcs[spec.ID] = spec
	reg.queue = append(reg.queue, spec)
	return spec
}

func (reg *Registry) addStruct(t *types.Type) *StructSpecialization {
	key := t.Name + "|" + canonicalTuple(t.TypeArgs)
	if existing, ok := reg.structKeys[key]; ok {
		return existing
	}
	spec := &StructSpecialization{
		ID:       specializationID(key),
		Name:     t.Name,
		DeclID:   t.Decl,
		TypeArgs: t.TypeArgs,
	}
	reg.structKeys[key] = spec
	reg.Structs[spec.ID] = spec
	return spec
}

// canonicalTuple renders a type-argument list as a stable string so that
// identical instantiations always map to the same registry key.
func canonicalTuple(args []*types.Type) string {
	parts := make([]string, len(args))
	for i1, a := range args {
		parts[i1] = types.CanonicalKey(a)
	}
	return strings.Join(parts, ",")
}

// specializationID derives a short, stable, human-inspectable name for a
// specialization by hashing its canonical key under a fixed namespace.
func specializationID(key string) string {
	sum := uuid.NewSHA1(namespace, []byte(key))
	return "s" + strings.ReplaceAll(sum.String(), "-", "")[:12]
}
