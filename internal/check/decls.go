package check

import (
	"tea/internal/ast"
	"tea/internal/types"
)

// collectTypeDecls registers every struct, enum and error declared in
// module, assigning each a DeclID before resolving field types, so that
// mutually-referencing declarations see every name already registered.
func (c *Checker) collectTypeDecls(module *ast.Node) {
	for _, decl := range module.Children {
		switch decl.Typ {
		case ast.StructDecl:
			d := decl.Data.(ast.StructData)
			info := &structInfo{id: c.allocDeclID(), name: d.Name, generics: d.Generics}
			c.structs[d.Name] = info
			c.structsByID[info.id] = info
		case ast.EnumDecl:
			d := decl.Data.(ast.StructData)
			cases := make(map[string]bool, len(decl.Children))
			for _, f := range decl.Children {
				cases[f.Data.(string)] = true
			}
			c.enums[d.Name] = &enumInfo{id: c.allocDeclID(), name: d.Name, cases: cases}
		case ast.ErrorDecl:
			d := decl.Data.(ast.StructData)
			info := &errInfo{id: c.allocDeclID(), name: d.Name, variants: make(map[string]*errVariant, len(decl.Children))}
			for _, v := range decl.Children {
				info.variants[v.Data.(string)] = nil // names only; fields resolved below.
			}
			c.errs[d.Name] = info
		}
	}

	for _, decl := range module.Children {
		switch decl.Typ {
		case ast.StructDecl:
			d := decl.Data.(ast.StructData)
			info := c.structs[d.Name]
			generics := toSet(info.generics)
			info.fields = make(map[string]*types.Type, len(decl.Children))
			for _, f := range decl.Children {
				name := f.Data.(string)
				info.fieldOrder = append(info.fieldOrder, name)
				info.fields[name] = c.resolveTypeRef(f.Children[0], generics, false)
			}
		case ast.ErrorDecl:
			d := decl.Data.(ast.StructData)
			info := c.errs[d.Name]
			for _, v := range decl.Children {
				vname := v.Data.(string)
				ev := &errVariant{fields: make(map[string]*types.Type, len(v.Children))}
				for _, f := range v.Children {
					fname := f.Data.(string)
					ev.order = append(ev.order, fname)
					ev.fields[fname] = c.resolveTypeRef(f.Children[0], nil, false)
				}
				info.variants[vname] = ev
			}
		}
	}
}

// collectFuncSigs computes every top-level function's signature, now that
// struct/enum/error names are all known to resolveTypeRef.
func (c *Checker) collectFuncSigs(module *ast.Node) {
	for _, decl := range module.Children {
		if decl.Typ != ast.FuncDecl {
			continue
		}
		d := decl.Data.(ast.FuncData)
		paramList, genericsNode, retNode, throwsNode := decl.Children[0], decl.Children[1], decl.Children[2], decl.Children[3]

		generics := make(map[string]bool, len(genericsNode.Children))
		for _, g := range genericsNode.Children {
			generics[g.Data.(string)] = true
		}

		params := make([]*types.Type, 0, len(paramList.Children))
		names := make([]string, 0, len(paramList.Children))
		for _, p := range paramList.Children {
			pt := c.resolveTypeRef(p.Children[0], generics, false)
			c.declTypes[p] = pt
			params = append(params, pt)
			names = append(names, p.Data.(string))
		}

		ret := c.resolveTypeRef(retNode, generics, false)

		var throws []types.ErrorVariantRef
		for _, tv := range throwsNode.Children {
			pair := tv.Data.([2]string)
			if !c.validErrorVariant(pair[0], pair[1]) {
				c.sink.Errorf("E0301", tv.Span, "unknown error variant %s.%s", pair[0], pair[1])
			}
			throws = append(throws, types.ErrorVariantRef{ErrorName: pair[0], VariantName: pair[1]})
		}

		sig := types.Func(params, ret, throws)
		sig.ParamNames = names
		c.funcs[d.Name] = sig
		c.funcNodes[d.Name] = decl
		c.funcDeclIDs[d.Name] = c.allocDeclID()
		c.declTypes[decl] = sig
	}
}

// collectImportedFuncs computes signatures for the public functions of
// every relatively-imported module (`use alias = "./path"`), so member
// access `alias.fn(...)` type-checks the call. Struct, enum and error types
// declared only inside the imported module are not registered in this
// Checker's own namespace; a parameter or return type naming one resolves
// to Unknown rather than a hard error, since the imported module is
// type-checked as its own compilation unit elsewhere.
func (c *Checker) collectImportedFuncs() {
	for alias, exp := range c.result.Imports {
		if exp.Relative == nil {
			continue
		}
		sigs := make(map[string]*types.Type, len(c.result.InlinedDecls[alias]))
		for _, decl := range c.result.InlinedDecls[alias] {
			if decl.Typ != ast.FuncDecl {
				continue
			}
			d := decl.Data.(ast.FuncData)
			if !d.Pub {
				continue
			}
			paramList, _, retNode := decl.Children[0], decl.Children[1], decl.Children[2]
			params := make([]*types.Type, 0, len(paramList.Children))
			for _, p := range paramList.Children {
				params = append(params, c.resolveTypeRef(p.Children[0], nil, true))
			}
			sigs[d.Name] = types.Func(params, c.resolveTypeRef(retNode, nil, true), nil)
		}
		c.importedFuncs[alias] = sigs
	}
}

func (c *Checker) validErrorVariant(errName, variant string) bool {
	if errName == "_" {
		return true
	}
	info, ok := c.errs[errName]
	if !ok {
		return false
	}
	_, ok = info.variants[variant]
	return ok
}

// resolveTypeRef converts a parsed TypeRef node into a *types.Type. generics
// names the type parameters in scope (function/struct generics); it may be
// nil. When quiet is true, an unresolvable name yields Unknown silently
// instead of a diagnostic, used for signatures borrowed from another
// module's namespace (see collectImportedFuncs).
func (c *Checker) resolveTypeRef(n *ast.Node, generics map[string]bool, quiet bool) *types.Type {
	d := n.Data.(ast.TypeRefData)
	base := c.resolveTypeRefBase(d, n, generics, quiet)
	if d.Optional {
		return types.Optional(base)
	}
	return base
}

func (c *Checker) resolveTypeRefBase(d ast.TypeRefData, n *ast.Node, generics map[string]bool, quiet bool) *types.Type {
	switch d.Name {
	case "Int":
		return types.Int
	case "Float":
		return types.Float
	case "Bool":
		return types.Bool
	case "String":
		return types.String
	case "Void":
		return types.Void
	case "Nil":
		return types.Nil
	case "Unknown":
		return types.Unknown(0)
	case "List":
		elem := types.Unknown(0)
		if len(n.Children) > 0 {
			elem = c.resolveTypeRef(n.Children[0], generics, quiet)
		}
		return types.List(elem)
	case "Dict":
		key, val := types.String, types.Unknown(0)
		if len(n.Children) > 0 {
			key = c.resolveTypeRef(n.Children[0], generics, quiet)
		}
		if len(n.Children) > 1 {
			val = c.resolveTypeRef(n.Children[1], generics, quiet)
		}
		return types.Dict(key, val)
	}
	if generics != nil && generics[d.Name] {
		return types.Generic(d.Name)
	}
	if info, ok := c.structs[d.Name]; ok {
		args := make([]*types.Type, len(n.Children))
		for i, a := range n.Children {
			args[i] = c.resolveTypeRef(a, generics, quiet)
		}
		return types.Struct(info.id, info.name, args...)
	}
	if info, ok := c.enums[d.Name]; ok {
		return types.Struct(info.id, info.name)
	}
	if info, ok := c.errs[d.Name]; ok {
		return types.Error(info.id, info.name, "")
	}
	if !quiet {
		c.sink.Errorf("E0300", n.Span, "unknown type %q", d.Name)
	}
	return types.Unknown(0)
}

func toSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	s := make(map[string]bool, len(names))
	for _, n := range names {
		s[n] = true
	}
	return s
}
