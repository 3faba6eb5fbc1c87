// Package types defines Tea's type sum and the unification used by the
// type checker. Struct and error types are nominal: two declarations with
// identical fields are still distinct types, interned by declaration id.
package types

import "fmt"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Kind tags which case of the Type sum a value represents.
type Kind int

const (
	KBool Kind = iota
	KInt
	KFloat
	KString
	KNil
	KVoid
	KList
	KDict
	KFunc
	KStruct
	KError
	KGeneric
	KUnknown
)

// DeclID identifies the declaration site of a nominal (struct or error)
// type, making structurally-identical-but-differently-named types distinct
// "nominal and interned by declaration site".
type DeclID uint32

// Type is Tea's closed type sum. Only the fields relevant to Kind are
// meaningful; zero values elsewhere are ignored.
type Type struct {
	Kind       Kind
	Elem       *Type   // List(T): element type.
	Key        *Type   // Dict(K,V): key type.
	Val        *Type   // Dict(K,V) or optional-unwrapped value type.
	Params     []*Type // Func: parameter types.
	ParamNames []string // Func: parameter names, for keyword-argument call sites.
	Ret        *Type    // Func: return type.
	Throws     []ErrorVariantRef
	Decl       DeclID  // Struct/Error: declaration id.
	Name       string  // Struct/Error/Generic: display name.
	Variant    string  // Error: specific variant name, "" if unresolved to one.
	TypeArgs   []*Type // Struct: concrete args after monomorphization.
	Infer      *int    // Unknown: inference variable id, for diagnostics only.
	Optional   bool    // T? : Nil unifies with any optional type.
}

// ErrorVariantRef names one declared error variant, e.g. "E.NotFound".
type ErrorVariantRef struct {
	ErrorName   string
	VariantName string
}

// ---------------------
// ----- Constructors ---
// ---------------------

var (
	Bool   = &Type{Kind: KBool}
	Int    = &Type{Kind: KInt}
	Float  = &Type{Kind: KFloat}
	String = &Type{Kind: KString}
	Nil    = &Type{Kind: KNil}
	Void   = &Type{Kind: KVoid}
)

// List returns the List(elem) type.
func List(elem *Type) *Type { return &Type{Kind: KList, Elem: elem} }

// Dict returns the Dict(key,val) type.
func Dict(key, val *Type) *Type { return &Type{Kind: KDict, Key: key, Val: val} }

// Func returns a function type.
func Func(params []*Type, ret *Type, throws []ErrorVariantRef) *Type {
	return &Type{Kind: KFunc, Params: params, Ret: ret, Throws: throws}
}

// Struct returns the nominal struct type declared at decl, with optional
// concrete type arguments for a monomorphized instantiation.
func Struct(decl DeclID, name string, args ...*Type) *Type {
	return &Type{Kind: KStruct, Decl: decl, Name: name, TypeArgs: args}
}

// Error returns the nominal error type declared at decl, optionally
// narrowed to one variant (e.g. by a catch clause).
func Error(decl DeclID, name, variant string) *Type {
	return &Type{Kind: KError, Decl: decl, Name: name, Variant: variant}
}

// Generic returns an unbound generic parameter type, eliminated by the
// monomorphizer before lowering.
func Generic(name string) *Type { return &Type{Kind: KGeneric, Name: name} }

// Optional returns T? : the union of t with Nil.
func Optional(t *Type) *Type {
	c := *t
	c.Optional = true
	return &c
}

// Unknown returns a placeholder type for an expression the checker could
// not type, letting downstream checking continue.
func Unknown(inferVar int) *Type {
	v := inferVar
	return &Type{Kind: KUnknown, Infer: &v}
}

// ---------------------
// ----- Functions -----
// ---------------------

// String renders a type for diagnostics.
func (t *Type) String() string {
	if t == nil {
		return "<nil type>"
	}
	suffix := ""
	if t.Optional {
		suffix = "?"
	}
	switch t.Kind {
	case KBool:
		return "Bool" + suffix
	case KInt:
		return "Int" + suffix
	case KFloat:
		return "Float" + suffix
	case KString:
		return "String" + suffix
	case KNil:
		return "Nil"
	case KVoid:
		return "Void"
	case KList:
		return fmt.Sprintf("List(%s)%s", t.Elem, suffix)
	case KDict:
		return fmt.Sprintf("Dict(%s, %s)%s", t.Key, t.Val, suffix)
	case KFunc:
		return fmt.Sprintf("Func(%v) -> %s%s", t.Params, t.Ret, suffix)
	case KStruct:
		if len(t.TypeArgs) > 0 {
			return fmt.Sprintf("%s%v%s", t.Name, t.TypeArgs, suffix)
		}
		return t.Name + suffix
	case KError:
		if t.Variant != "" {
			return fmt.Sprintf("%s.%s%s", t.Name, t.Variant, suffix)
		}
		return t.Name + suffix
	case KGeneric:
		return t.Name
	case KUnknown:
		return "Unknown"
	default:
		return "?"
	}
}

// IsFalsy reports whether every value of type t is falsy in a boolean
// context. Tea treats only nil and false as falsy, so only the Nil type
// qualifies; whether a Bool is false is known only at run time.
func IsFalsy(t *Type) bool {
	return t.Kind == KNil
}

// Equal reports whether two concrete (post-monomorphization) types are
// identical. Optional-ness and variant narrowing are part of identity.
func Equal(a, b *Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind || a.Optional != b.Optional {
		return false
	}
	switch a.Kind {
	case KList:
		return Equal(a.Elem, b.Elem)
	case KDict:
		return Equal(a.Key, b.Key) && Equal(a.Val, b.Val)
	case KFunc:
		if len(a.Params) != len(b.Params) || !Equal(a.Ret, b.Ret) {
			return false
		}
		for i1 := range a.Params {
			if !Equal(a.Params[i1], b.Params[i1]) {
				return false
			}
		}
		return true
	case KStruct:
		if a.Decl != b.Decl || len(a.TypeArgs) != len(b.TypeArgs) {
			return false
		}
		for i1 := range a.TypeArgs {
			if !Equal(a.TypeArgs[i1], b.TypeArgs[i1]) {
				return false
			}
		}
		return true
	case KError:
		return a.Decl == b.Decl && a.Variant == b.Variant
	case KGeneric:
		return a.Name == b.Name
	default:
		return true
	}
}

// Unify attempts to merge a and b, resolving Unknown/Nil-optional cases and
// returning the concrete result type, or nil if the two types conflict.
// Inference is Hindley-Milner restricted by explicit annotations: callers
// always have one side carrying an annotation or literal type, so the only
// free variables are Unknown placeholders left by a prior error.
func Unify(a, b *Type) *Type {
	if a == nil || b == nil {
		return nil
	}
	if a.Kind == KUnknown {
		return b
	}
	if b.Kind == KUnknown {
		return a
	}
	if a.Kind == KNil && b.Optional {
		return b
	}
	if b.Kind == KNil && a.Optional {
		return a
	}
	if a.Kind == KNil && b.Kind == KNil {
		return Nil
	}
	if Equal(a, b) {
		return a
	}
	// T? absorbs a plain T: assigning a concrete value into an optional
	// binding widens rather than conflicts.
	if a.Optional && !b.Optional {
		base := *a
		base.Optional = false
		if Equal(&base, b) {
			return a
		}
	}
	if b.Optional && !a.Optional {
		base := *b
		base.Optional = false
		if Equal(&base, a) {
			return b
		}
	}
	if a.Kind == KList && b.Kind == KList {
		if e := Unify(a.Elem, b.Elem); e != nil {
			return List(e)
		}
	}
	return nil
}

// CanonicalKey renders a type as a stable string suitable for keying the
// monomorphization registry.
func CanonicalKey(t *Type) string {
	return t.String()
}
