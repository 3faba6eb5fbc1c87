package check

import "tea/internal/types"

// substGenerics replaces every Generic(name) occurring in t with its
// binding in subst, leaving unbound generics as-is; the monomorphizer
// turns these per-call-site bindings into distinct specializations.
func substGenerics(t *types.Type, subst map[string]*types.Type) *types.Type {
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
		return types.List(substGenerics(t.Elem, subst))
	case types.KDict:
		return types.Dict(substGenerics(t.Key, subst), substGenerics(t.Val, subst))
	case types.KStruct:
		if len(t.TypeArgs) == 0 {
			return t
		}
		args := make([]*types.Type, len(t.TypeArgs))
		for i, a := range t.TypeArgs {
			args[i] = substGenerics(a, subst)
		}
		return types.Struct(t.Decl, t.Name, args...)
	default:
		return t
	}
}

// bindGeneric unifies a declared (possibly generic) parameter type against
// an argument's actual type, recording the first binding seen for each
// generic name and reporting a conflict if a later argument disagrees.
func bindGeneric(declared, actual *types.Type, subst map[string]*types.Type) bool {
	if declared.Kind == types.KGeneric {
		if prior, ok := subst[declared.Name]; ok {
			if types.Unify(prior, actual) == nil {
				return false
			}
			return true
		}
		subst[declared.Name] = actual
		return true
	}
	if declared.Kind == types.KList && actual.Kind == types.KList {
		return bindGeneric(declared.Elem, actual.Elem, subst)
	}
	if declared.Kind == types.KDict && actual.Kind == types.KDict {
		return bindGeneric(declared.Key, actual.Key, subst) && bindGeneric(declared.Val, actual.Val, subst)
	}
	return types.Unify(declared, actual) != nil
}
