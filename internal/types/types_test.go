package types

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestUnify covers the merge rules: Unknown absorbs, Nil unifies into
// optionals, lists unify elementwise, and conflicts yield nil.
func TestUnify(t *testing.T) {
	tests := []struct {
		name string
		a, b *Type
		want *Type
	}{
		{"identical primitives", Int, Int, Int},
		{"unknown absorbs left", Unknown(0), String, String},
		{"unknown absorbs right", Float, Unknown(1), Float},
		{"nil into optional", Nil, Optional(Int), Optional(Int)},
		{"optional with nil", Optional(String), Nil, Optional(String)},
		{"lists unify elementwise", List(Int), List(Int), List(Int)},
		{"optional absorbs plain left", Optional(Int), Int, Optional(Int)},
		{"optional absorbs plain right", Float, Optional(Float), Optional(Float)},
		{"conflict", Int, String, nil},
		{"list conflict", List(Int), List(String), nil},
		{"nil with nil", Nil, Nil, Nil},
	}
	for _, tc := range tests {
		got := Unify(tc.a, tc.b)
		if tc.want == nil {
			if got != nil {
				t.Errorf("%s: Unify = %v, want conflict", tc.name, got)
			}
			continue
		}
		if got == nil || !Equal(got, tc.want) || got.Optional != tc.want.Optional {
			t.Errorf("%s: Unify = %v, want %v", tc.name, got, tc.want)
		}
	}
}

// TestNominalEquality verifies two struct types are distinct unless their
// declaration ids match.
func TestNominalEquality(t *testing.T) {
	a := Struct(1, "P")
	b := Struct(2, "P")
	c := Struct(1, "P")
	if Equal(a, b) {
		t.Error("struct types with different declaration ids must differ")
	}
	if !Equal(a, c) {
		t.Error("struct types with the same declaration id must match")
	}
	if Equal(Struct(1, "Box", Int), Struct(1, "Box", String)) {
		t.Error("distinct type arguments must make distinct instantiations")
	}
}

// TestCanonicalKey verifies key stability and injectivity across the
// instantiations the monomorphization registry must keep apart.
func TestCanonicalKey(t *testing.T) {
	if CanonicalKey(List(Int)) != CanonicalKey(List(Int)) {
		t.Error("canonical keys must be stable")
	}
	distinct := []*Type{
		Int, Float, String, List(Int), List(String),
		Dict(String, Int), Struct(1, "Box", Int), Struct(1, "Box", String),
	}
	seen := map[string]*Type{}
	for _, typ := range distinct {
		k := CanonicalKey(typ)
		if prior, ok := seen[k]; ok {
			t.Errorf("key %q collides: %v and %v", k, prior, typ)
		}
		seen[k] = typ
	}
}

// TestFalsy verifies only a Nil-typed expression is statically falsy; a
// Bool's truth value is a runtime matter.
func TestFalsy(t *testing.T) {
	if !IsFalsy(Nil) {
		t.Error("a Nil-typed expression is always falsy")
	}
	if IsFalsy(Bool) || IsFalsy(Int) || IsFalsy(String) {
		t.Error("non-Nil types are not statically falsy")
	}
}

// TestFuncType verifies constructor plumbing survives a round trip through
// the struct, guarding against field mixups as the sum grows.
func TestFuncType(t *testing.T) {
	sig := Func([]*Type{Int, String}, Bool, []ErrorVariantRef{{ErrorName: "E", VariantName: "Bad"}})
	want := &Type{
		Kind:   KFunc,
		Params: []*Type{Int, String},
		Ret:    Bool,
		Throws: []ErrorVariantRef{{ErrorName: "E", VariantName: "Bad"}},
	}
	if diff := cmp.Diff(want, sig); diff != "" {
		t.Errorf("Func() mismatch (-want +got):\n%s", diff)
	}
}
