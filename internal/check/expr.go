package check

import (
	"tea/internal/ast"
	"tea/internal/resolve"
	"tea/internal/sourcemap"
	"tea/internal/types"
)

// checkExpr type-checks one expression node, recording its type in the side
// table and returning it. It never returns nil: an unresolvable expression
// checks as Unknown so the caller can keep going.
func (c *Checker) checkExpr(n *ast.Node) *types.Type {
	if n == nil {
		return types.Void
	}
	var t *types.Type
	switch n.Typ {
	case ast.Literal:
		t = checkLiteral(n)
	case ast.Ident:
		t = c.checkIdent(n)
	case ast.Binary:
		t = c.checkBinary(n)
	case ast.Unary:
		t = c.checkUnary(n)
	case ast.Call:
		t = c.checkCall(n)
	case ast.Member:
		t = c.checkMember(n)
	case ast.Index:
		t = c.checkIndex(n)
	case ast.Lambda:
		t = c.checkLambda(n)
	case ast.ListLit:
		t = c.checkListLit(n)
	case ast.DictLit:
		t = c.checkDictLit(n)
	case ast.TemplateString:
		t = c.checkTemplateString(n)
	case ast.CatchExpr:
		t = c.checkCatchExpr(n)
	case ast.Case:
		t = c.checkCaseExpr(n)
	case ast.Range:
		t = c.checkRange(n)
	case ast.If:
		t = c.checkIfExpr(n)
	default:
		t = types.Unknown(0)
	}
	c.exprTypes[n.ID] = t
	return t
}

func checkLiteral(n *ast.Node) *types.Type {
	switch n.Data.(type) {
	case int64:
		return types.Int
	case float64:
		return types.Float
	case bool:
		return types.Bool
	case string:
		return types.String
	case nil:
		return types.Nil
	default:
		return types.Unknown(0)
	}
}

func (c *Checker) checkIdent(n *ast.Node) *types.Type {
	sym, ok := c.result.Bindings[n.ID]
	if !ok {
		// The resolver already reported an undefined-name diagnostic.
		return types.Unknown(0)
	}
	if t, ok := c.declTypes[sym.Node]; ok {
		return t
	}
	switch sym.Kind {
	case resolve.SymStruct:
		if info, ok := c.structs[sym.Name]; ok {
			return types.Struct(info.id, info.name)
		}
	case resolve.SymEnum:
		if info, ok := c.enums[sym.Name]; ok {
			return types.Struct(info.id, info.name)
		}
	case resolve.SymError:
		if info, ok := c.errs[sym.Name]; ok {
			return types.Error(info.id, info.name, "")
		}
	}
	return types.Unknown(0)
}

var assignOpNames = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
}

func (c *Checker) checkBinary(n *ast.Node) *types.Type {
	op, _ := n.Data.(string)
	if assignOpNames[op] {
		return c.checkAssign(op, n)
	}
	lt := c.checkExpr(n.Children[0])
	rt := c.checkExpr(n.Children[1])
	switch op {
	case "+", "-", "*", "/", "%":
		return c.checkArith(op, lt, rt, n.Span)
	case "==", "!=", "<", "<=", ">", ">=":
		return types.Bool
	case "in":
		if rt.Kind != types.KList && rt.Kind != types.KDict && rt.Kind != types.KUnknown {
			c.sink.Errorf("E0340", n.Span, "%q requires a list or dict on the right, got %s", "in", rt)
		}
		return types.Bool
	case "and", "or":
		if u := types.Unify(lt, rt); u != nil {
			return u
		}
		return types.Unknown(0)
	case "??":
		base := lt
		if lt.Optional {
			unwrapped := *lt
			unwrapped.Optional = false
			base = &unwrapped
		}
		if u := types.Unify(base, rt); u != nil {
			return u
		}
		c.sink.Errorf("E0341", n.Span, "?? operands have incompatible types %s and %s", lt, rt)
		return types.Unknown(0)
	default:
		return types.Unknown(0)
	}
}

func (c *Checker) checkArith(op string, lt, rt *types.Type, span sourcemap.Span) *types.Type {
	if lt.Kind == types.KUnknown || rt.Kind == types.KUnknown {
		return types.Unknown(0)
	}
	if lt.Kind == types.KInt && rt.Kind == types.KInt {
		return types.Int
	}
	numeric := func(t *types.Type) bool { return t.Kind == types.KInt || t.Kind == types.KFloat }
	if numeric(lt) && numeric(rt) {
		return types.Float
	}
	if op == "+" && lt.Kind == types.KString && rt.Kind == types.KString {
		return types.String
	}
	c.sink.Errorf("E0342", span, "operator %q is not defined for %s and %s", op, lt, rt)
	return types.Unknown(0)
}

func (c *Checker) checkAssign(op string, n *ast.Node) *types.Type {
	lhs, rhs := n.Children[0], n.Children[1]
	lt := c.checkAssignTarget(lhs)
	rt := c.checkExpr(rhs)
	if op == "=" {
		if lt.Kind != types.KUnknown && rt.Kind != types.KUnknown && types.Unify(lt, rt) == nil {
			c.sink.Errorf("E0343", n.Span, "cannot assign %s to %s", rt, lt)
		}
		return lt
	}
	arith := op[:len(op)-1] // "+=" -> "+"
	c.checkArith(arith, lt, rt, n.Span)
	return lt
}

// checkAssignTarget types the left-hand side of an assignment without
// re-reporting the resolver's own undefined-name/const-assignment
// diagnostics; it only needs the target's declared type.
func (c *Checker) checkAssignTarget(n *ast.Node) *types.Type {
	if n.Typ == ast.Ident {
		return c.checkIdent(n)
	}
	return c.checkExpr(n)
}

func (c *Checker) checkUnary(n *ast.Node) *types.Type {
	op, _ := n.Data.(string)
	t := c.checkExpr(n.Children[0])
	if op == "not" {
		return types.Bool
	}
	switch t.Kind {
	case types.KInt:
		return types.Int
	case types.KFloat:
		return types.Float
	case types.KUnknown:
		return types.Unknown(0)
	default:
		c.sink.Errorf("E0344", n.Span, "unary %q is not defined for %s", op, t)
		return types.Unknown(0)
	}
}

func argValue(fieldInit *ast.Node) *ast.Node { return fieldInit.Children[0] }

// intrinsicArgKinds constrains each builtin's single argument; an empty
// set accepts any type.
var intrinsicArgKinds = map[string][]types.Kind{
	"println":   nil,
	"len":       {types.KString, types.KList, types.KDict},
	"panic":     {types.KString},
	"type_of":   nil,
	"to_float":  {types.KInt},
	"parse_int": {types.KString},
}

// intrinsicRets gives each builtin's result type.
var intrinsicRets = map[string]*types.Type{
	"println":   types.Void,
	"len":       types.Int,
	"panic":     types.Void,
	"type_of":   types.String,
	"to_float":  types.Float,
	"parse_int": types.Int,
}

// checkIntrinsic enforces the fixed arity and signature of an @name(...)
// builtin and yields its result type.
func (c *Checker) checkIntrinsic(name string, n *ast.Node) *types.Type {
	for _, a := range n.Children {
		c.checkExpr(argValue(a))
	}
	ret, known := intrinsicRets[name]
	if !known {
		c.sink.Errorf("E0350", n.Span, "unknown intrinsic @%s", name)
		return types.Unknown(0)
	}
	if len(n.Children) != 1 {
		c.sink.Errorf("E0351", n.Span, "@%s expects 1 argument, got %d", name, len(n.Children))
		return ret
	}
	allowed := intrinsicArgKinds[name]
	if len(allowed) == 0 {
		return ret
	}
	at, ok := c.exprTypes[argValue(n.Children[0]).ID]
	if !ok || at.Kind == types.KUnknown {
		return ret
	}
	for _, k := range allowed {
		if at.Kind == k {
			return ret
		}
	}
	c.sink.Errorf("E0352", n.Children[0].Span, "@%s cannot accept a %s argument", name, at)
	return ret
}

func (c *Checker) checkCall(n *ast.Node) *types.Type {
	guarded := c.guardedCall
	c.guardedCall = false
	c.lastCallThrows = nil
	if d, ok := n.Data.(ast.IntrinsicData); ok {
		return c.checkIntrinsic(d.Name, n)
	}

	callee, args := n.Children[0], n.Children[1:]

	if callee.Typ == ast.Ident {
		if name, ok := callee.Data.(string); ok {
			if info, ok := c.structs[name]; ok {
				c.checkExpr(callee)
				return c.checkStructLit(info, args, n.Span)
			}
		}
	}

	ft := c.checkExpr(callee)
	if ft.Kind == types.KError && ft.Variant != "" {
		return c.checkErrorConstruct(ft, args, n.Span)
	}
	if ft.Kind != types.KFunc {
		if ft.Kind != types.KUnknown {
			c.sink.Errorf("E0310", n.Span, "cannot call a value of type %s", ft)
		}
		for _, a := range args {
			c.checkExpr(argValue(a))
		}
		return types.Unknown(0)
	}
	c.lastCallThrows = ft.Throws
	if !guarded {
		// An unguarded call to a throwing function must propagate: every
		// variant it may raise has to appear in the enclosing throws set.
		for _, ref := range ft.Throws {
			if !throwsContains(c.curThrows, ref.ErrorName, ref.VariantName) {
				c.sink.Errorf("E0337", n.Span,
					"call may throw %s.%s, which is neither caught nor declared by the enclosing function",
					ref.ErrorName, ref.VariantName)
			}
		}
	}
	return c.checkCallArgs(ft, args, n.ID, n.Span)
}

func (c *Checker) checkCallArgs(ft *types.Type, args []*ast.Node, callID ast.ID, span sourcemap.Span) *types.Type {
	subst := map[string]*types.Type{}
	named := false
	for _, a := range args {
		if a.Data.(ast.ArgData).Name != "" {
			named = true
			break
		}
	}

	if named {
		if len(args) != len(ft.Params) {
			c.sink.Errorf("E0316", span, "expected %d arguments, got %d", len(ft.Params), len(args))
		}
		for _, a := range args {
			ad := a.Data.(ast.ArgData)
			vt := c.checkExpr(argValue(a))
			if ad.Name == "" {
				c.sink.Errorf("E0317", a.Span, "cannot mix positional and keyword arguments")
				continue
			}
			idx := indexOf(ft.ParamNames, ad.Name)
			if idx < 0 {
				c.sink.Errorf("E0318", a.Span, "no parameter named %q", ad.Name)
				continue
			}
			if vt.Kind != types.KUnknown && !bindGeneric(ft.Params[idx], vt, subst) {
				c.sink.Errorf("E0319", a.Span, "argument %q expects %s, got %s", ad.Name, ft.Params[idx], vt)
			}
		}
		c.recordCallSubst(callID, subst)
		return substGenerics(ft.Ret, subst)
	}

	if len(args) != len(ft.Params) {
		c.sink.Errorf("E0316", span, "expected %d arguments, got %d", len(ft.Params), len(args))
	}
	for i, a := range args {
		vt := c.checkExpr(argValue(a))
		if i >= len(ft.Params) {
			continue
		}
		if vt.Kind != types.KUnknown && !bindGeneric(ft.Params[i], vt, subst) {
			c.sink.Errorf("E0319", a.Span, "argument %d expects %s, got %s", i+1, ft.Params[i], vt)
		}
	}
	c.recordCallSubst(callID, subst)
	return substGenerics(ft.Ret, subst)
}

// recordCallSubst saves a non-empty generic-parameter binding for a Call
// node so the monomorphizer can later look it up without re-running
// unification.
func (c *Checker) recordCallSubst(callID ast.ID, subst map[string]*types.Type) {
	if len(subst) > 0 {
		c.callSubst[callID] = subst
	}
}

// checkFieldArgs validates a struct- or error-literal's field arguments
// against its declared field order and types, enforcing that a literal is
// either fully positional or fully named, never mixed.
func (c *Checker) checkFieldArgs(order []string, fields map[string]*types.Type, args []*ast.Node, ownerName string, span sourcemap.Span) {
	sawNamed, sawPositional := false, false
	provided := make(map[string]*types.Type, len(args))
	for i, a := range args {
		ad := a.Data.(ast.ArgData)
		vt := c.checkExpr(argValue(a))
		if ad.Name == "" {
			sawPositional = true
			if i >= len(order) {
				c.sink.Errorf("E0311", a.Span, "too many positional fields for %s", ownerName)
				continue
			}
			provided[order[i]] = vt
		} else {
			sawNamed = true
			if _, ok := fields[ad.Name]; !ok {
				c.sink.Errorf("E0312", a.Span, "%s has no field %q", ownerName, ad.Name)
				continue
			}
			provided[ad.Name] = vt
		}
	}
	if sawNamed && sawPositional {
		c.sink.Errorf("E0315", span, "%s literal mixes positional and named fields", ownerName)
	}
	for _, fname := range order {
		pv, ok := provided[fname]
		if !ok {
			c.sink.Errorf("E0313", span, "missing field %q in %s literal", fname, ownerName)
			continue
		}
		if pv.Kind != types.KUnknown && types.Unify(fields[fname], pv) == nil {
			c.sink.Errorf("E0314", span, "field %q expects %s, got %s", fname, fields[fname], pv)
		}
	}
}

func (c *Checker) checkStructLit(info *structInfo, args []*ast.Node, span sourcemap.Span) *types.Type {
	c.checkFieldArgs(info.fieldOrder, info.fields, args, info.name, span)
	if len(info.generics) == 0 {
		return types.Struct(info.id, info.name)
	}
	return types.Struct(info.id, info.name, c.inferStructTypeArgs(info, args)...)
}

// inferStructTypeArgs binds info's generic parameters from the already
// type-checked field arguments of a construction site, producing a distinct
// nominal type per instantiation for the monomorphizer.
func (c *Checker) inferStructTypeArgs(info *structInfo, args []*ast.Node) []*types.Type {
	named := false
	for _, a := range args {
		if a.Data.(ast.ArgData).Name != "" {
			named = true
			break
		}
	}
	subst := map[string]*types.Type{}
	for i1, a := range args {
		ad := a.Data.(ast.ArgData)
		fname := ad.Name
		if !named && i1 < len(info.fieldOrder) {
			fname = info.fieldOrder[i1]
		}
		declared, ok := info.fields[fname]
		if !ok {
			continue
		}
		vt, ok := c.exprTypes[argValue(a).ID]
		if !ok || vt.Kind == types.KUnknown {
			continue
		}
		bindGeneric(declared, vt, subst)
	}
	out := make([]*types.Type, len(info.generics))
	for i1, g := range info.generics {
		if t, ok := subst[g]; ok {
			out[i1] = t
		} else {
			out[i1] = types.Unknown(0)
		}
	}
	return out
}

func (c *Checker) checkErrorConstruct(et *types.Type, args []*ast.Node, span sourcemap.Span) *types.Type {
	info, ok := c.errs[et.Name]
	if !ok {
		return et
	}
	ev, ok := info.variants[et.Variant]
	if !ok {
		return et
	}
	c.checkFieldArgs(ev.order, ev.fields, args, et.Name+"."+et.Variant, span)
	return et
}

func (c *Checker) checkMember(n *ast.Node) *types.Type {
	base := n.Children[0]
	field, _ := n.Data.(string)

	if base.Typ == ast.Ident {
		if sym, ok := c.result.Bindings[base.ID]; ok {
			switch sym.Kind {
			case resolve.SymModuleAlias:
				return c.checkAliasMember(sym.Name, field, n.Span)
			case resolve.SymError:
				return c.checkErrorVariantRef(sym.Name, field, n.Span)
			case resolve.SymEnum:
				return c.checkEnumCaseRef(sym.Name, field, n.Span)
			}
		}
	}

	bt := c.checkExpr(base)
	switch bt.Kind {
	case types.KStruct:
		info, ok := c.structsByID[bt.Decl]
		if !ok {
			return types.Unknown(0)
		}
		ft, ok := info.fields[field]
		if !ok {
			c.sink.Errorf("E0320", n.Span, "%s has no field %q", info.name, field)
			return types.Unknown(0)
		}
		return ft
	case types.KDict:
		return bt.Val
	case types.KError:
		info, ok := c.errs[bt.Name]
		if !ok || bt.Variant == "" {
			return types.Unknown(0)
		}
		ev, ok := info.variants[bt.Variant]
		if !ok {
			return types.Unknown(0)
		}
		ft, ok := ev.fields[field]
		if !ok {
			c.sink.Errorf("E0320", n.Span, "%s.%s has no field %q", bt.Name, bt.Variant, field)
			return types.Unknown(0)
		}
		return ft
	case types.KUnknown:
		return types.Unknown(0)
	default:
		c.sink.Errorf("E0321", n.Span, "cannot access field %q on %s", field, bt)
		return types.Unknown(0)
	}
}

func (c *Checker) checkAliasMember(alias, field string, span sourcemap.Span) *types.Type {
	exp, ok := c.result.Imports[alias]
	if !ok {
		return types.Unknown(0)
	}
	if exp.IsStd {
		sig, ok := c.std.Lookup(exp.StdPath, field)
		if !ok {
			c.sink.Errorf("E0322", span, "%s has no member %q", exp.StdPath, field)
			return types.Unknown(0)
		}
		return sig
	}
	if sigs, ok := c.importedFuncs[alias]; ok {
		if sig, ok := sigs[field]; ok {
			return sig
		}
	}
	c.sink.Errorf("E0322", span, "module %q has no member %q", alias, field)
	return types.Unknown(0)
}

func (c *Checker) checkErrorVariantRef(errName, variant string, span sourcemap.Span) *types.Type {
	info, ok := c.errs[errName]
	if !ok {
		return types.Unknown(0)
	}
	if _, ok := info.variants[variant]; !ok {
		c.sink.Errorf("E0301", span, "unknown error variant %s.%s", errName, variant)
		return types.Unknown(0)
	}
	return types.Error(info.id, info.name, variant)
}

func (c *Checker) checkEnumCaseRef(enumName, caseName string, span sourcemap.Span) *types.Type {
	info, ok := c.enums[enumName]
	if !ok {
		return types.Unknown(0)
	}
	if !info.cases[caseName] {
		c.sink.Errorf("E0301", span, "%s has no case %q", enumName, caseName)
		return types.Unknown(0)
	}
	return &types.Type{Kind: types.KStruct, Decl: info.id, Name: info.name, Variant: caseName}
}

func (c *Checker) checkIndex(n *ast.Node) *types.Type {
	obj := c.checkExpr(n.Children[0])
	idx := c.checkExpr(n.Children[1])
	switch obj.Kind {
	case types.KList:
		if idx.Kind != types.KInt && idx.Kind != types.KUnknown {
			c.sink.Errorf("E0345", n.Span, "list index must be Int, got %s", idx)
		}
		return obj.Elem
	case types.KDict:
		if idx.Kind != types.KUnknown && types.Unify(obj.Key, idx) == nil {
			c.sink.Errorf("E0345", n.Span, "dict key expects %s, got %s", obj.Key, idx)
		}
		return obj.Val
	case types.KString:
		if idx.Kind != types.KInt && idx.Kind != types.KUnknown {
			c.sink.Errorf("E0345", n.Span, "string index must be Int, got %s", idx)
		}
		return types.String
	case types.KUnknown:
		return types.Unknown(0)
	default:
		c.sink.Errorf("E0346", n.Span, "cannot index into %s", obj)
		return types.Unknown(0)
	}
}

func (c *Checker) checkLambda(n *ast.Node) *types.Type {
	paramList, body := n.Children[0], n.Children[1]
	params := make([]*types.Type, 0, len(paramList.Children))
	names := make([]string, 0, len(paramList.Children))
	for _, p := range paramList.Children {
		pt := c.resolveTypeRef(p.Children[0], nil, false)
		c.declTypes[p] = pt
		params = append(params, pt)
		names = append(names, p.Data.(string))
	}

	prevThrows := c.curThrows
	c.curThrows = nil

	var ret *types.Type
	if body.Typ == ast.Block {
		ret = c.checkBlockValue(body, types.Void)
	} else {
		ret = c.checkExpr(body)
	}

	c.curThrows = prevThrows
	sig := types.Func(params, ret, nil)
	sig.ParamNames = names
	return sig
}

func (c *Checker) checkListLit(n *ast.Node) *types.Type {
	if len(n.Children) == 0 {
		return types.List(types.Unknown(0))
	}
	elem := c.checkExpr(n.Children[0])
	for _, item := range n.Children[1:] {
		t := c.checkExpr(item)
		if u := types.Unify(elem, t); u != nil {
			elem = u
		} else if elem.Kind != types.KUnknown && t.Kind != types.KUnknown {
			c.sink.Errorf("E0330", item.Span, "list element type mismatch: expected %s, got %s", elem, t)
		}
	}
	return types.List(elem)
}

func (c *Checker) checkDictLit(n *ast.Node) *types.Type {
	if len(n.Children) == 0 {
		return types.Dict(types.String, types.Unknown(0))
	}
	keyT, valT := types.String, types.Unknown(0)
	first := true
	for _, entry := range n.Children {
		k := c.checkExpr(entry.Children[0])
		v := c.checkExpr(entry.Children[1])
		if k.Kind != types.KString && k.Kind != types.KUnknown {
			c.sink.Errorf("E0331", entry.Span, "dict keys must be String, got %s", k)
		}
		if first {
			valT = v
			first = false
		} else if u := types.Unify(valT, v); u != nil {
			valT = u
		} else if valT.Kind != types.KUnknown && v.Kind != types.KUnknown {
			c.sink.Errorf("E0330", entry.Span, "dict value type mismatch: expected %s, got %s", valT, v)
		}
	}
	return types.Dict(keyT, valT)
}

func (c *Checker) checkTemplateString(n *ast.Node) *types.Type {
	for _, part := range n.Children {
		if part.Typ == ast.TemplateChunk {
			continue
		}
		c.checkExpr(part)
	}
	return types.String
}

func (c *Checker) checkRange(n *ast.Node) *types.Type {
	lo := c.checkExpr(n.Children[0])
	hi := c.checkExpr(n.Children[1])
	if lo.Kind != types.KInt && lo.Kind != types.KUnknown {
		c.sink.Errorf("E0347", n.Span, "range bound must be Int, got %s", lo)
	}
	if hi.Kind != types.KInt && hi.Kind != types.KUnknown {
		c.sink.Errorf("E0347", n.Span, "range bound must be Int, got %s", hi)
	}
	return types.List(types.Int)
}

func (c *Checker) checkCatchExpr(n *ast.Node) *types.Type {
	c.guardedCall = true
	tryT := c.checkExpr(n.Children[0])
	c.guardedCall = false
	throws := c.lastCallThrows

	for _, cc := range n.Children[1:] {
		pair := cc.Data.([2]string)
		if pair[0] == "_" {
			c.declTypes[cc] = types.Unknown(0)
		} else if info, ok := c.errs[pair[0]]; !ok {
			c.sink.Errorf("E0301", cc.Span, "unknown error type %q", pair[0])
		} else if _, ok := info.variants[pair[1]]; !ok {
			c.sink.Errorf("E0301", cc.Span, "unknown error variant %s.%s", pair[0], pair[1])
		} else if !throwsContains(throws, pair[0], pair[1]) && len(throws) > 0 {
			c.sink.Errorf("E0348", cc.Span, "%s.%s is not among the throws of the guarded call", pair[0], pair[1])
			c.declTypes[cc] = types.Error(info.id, info.name, pair[1])
		} else {
			c.declTypes[cc] = types.Error(info.id, info.name, pair[1])
		}
		body := cc.Children[len(cc.Children)-1]
		for _, stmt := range body.Children {
			c.checkStmt(stmt, nil)
		}
	}
	return tryT
}

func (c *Checker) checkCaseExpr(n *ast.Node) *types.Type {
	subject := c.checkExpr(n.Children[0])
	var result *types.Type
	for _, arm := range n.Children[1:] {
		isWild, _ := arm.Data.(bool)
		idx := 0
		if !isWild {
			pat := c.checkExpr(arm.Children[0])
			if pat.Kind != types.KUnknown && subject.Kind != types.KUnknown && types.Unify(subject, pat) == nil {
				c.sink.Errorf("E0332", arm.Span, "case pattern type %s does not match subject type %s", pat, subject)
			}
			idx = 1
		}
		body := arm.Children[idx]
		armT := c.checkBlockValue(body, types.Void)
		if result == nil {
			result = armT
		} else if u := types.Unify(result, armT); u != nil {
			result = u
		}
	}
	if result == nil {
		return types.Void
	}
	return result
}

func (c *Checker) checkIfExpr(n *ast.Node) *types.Type {
	c.checkExpr(n.Children[0])
	thenT := c.checkBlockValue(n.Children[1], types.Void)
	if len(n.Children) < 3 {
		return types.Void
	}
	elseNode := n.Children[2]
	var elseT *types.Type
	if elseNode.Typ == ast.If {
		elseT = c.checkIfExpr(elseNode)
	} else {
		elseT = c.checkBlockValue(elseNode, types.Void)
	}
	if u := types.Unify(thenT, elseT); u != nil {
		return u
	}
	return types.Unknown(0)
}

// checkBlockValue type-checks every statement of block, treating a trailing
// bare expression as the block's value (the convention used when `if` and
// `case` appear in expression position). expectedRet flows through to any
// Return statements nested in the block.
func (c *Checker) checkBlockValue(block *ast.Node, expectedRet *types.Type) *types.Type {
	if len(block.Children) == 0 {
		return types.Void
	}
	for _, s := range block.Children[:len(block.Children)-1] {
		c.checkStmt(s, expectedRet)
	}
	last := block.Children[len(block.Children)-1]
	if isExprNode(last) {
		return c.checkExpr(last)
	}
	c.checkStmt(last, expectedRet)
	return types.Void
}
