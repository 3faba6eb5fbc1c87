package check

import (
	"testing"

	"tea/internal/ast"
	"tea/internal/diag"
	"tea/internal/parser"
	"tea/internal/resolve"
	"tea/internal/stdlib"
	"tea/internal/types"
)

func checkSrc(t *testing.T, src string) (*Checker, *ast.Node, []diag.Diagnostic) {
	t.Helper()
	sink := diag.NewSink()
	mod := parser.Parse(0, src, sink)
	std, err := stdlib.Load()
	if err != nil {
		t.Fatalf("loading stdlib snapshot: %s", err)
	}
	res := resolve.New(sink, nil, std, 0).Resolve(mod)
	c := New(sink, std, res)
	c.Check(mod)
	sink.Stop()
	return c, mod, sink.Diagnostics()
}

func errCodes(ds []diag.Diagnostic) []string {
	var out []string
	for _, d := range ds {
		if d.Severity >= diag.Error {
			out = append(out, d.Code)
		}
	}
	return out
}

func hasCode(ds []diag.Diagnostic, code string) bool {
	for _, d := range ds {
		if d.Code == code {
			return true
		}
	}
	return false
}

// firstOfKind returns the first descendant node of the given type, in a
// preorder walk.
func firstOfKind(n *ast.Node, typ ast.NodeType) *ast.Node {
	if n == nil {
		return nil
	}
	if n.Typ == typ {
		return n
	}
	for _, c := range n.Children {
		if got := firstOfKind(c, typ); got != nil {
			return got
		}
	}
	return nil
}

// TestLiteralInference verifies the literal typing rules.
func TestLiteralInference(t *testing.T) {
	tests := []struct {
		src  string
		want types.Kind
	}{
		{"var v = 1\n@println(v)\n", types.KInt},
		{"var v = 1.5\n@println(v)\n", types.KFloat},
		{"var v = \"s\"\n@println(v)\n", types.KString},
		{"var v = true\n@println(v)\n", types.KBool},
	}
	for _, tc := range tests {
		c, mod, ds := checkSrc(t, tc.src)
		if len(errCodes(ds)) > 0 {
			t.Fatalf("%q: unexpected errors %v", tc.src, errCodes(ds))
		}
		decl := firstOfKind(mod, ast.VarDecl)
		got, ok := c.DeclTypeOf(decl)
		if !ok || got.Kind != tc.want {
			t.Errorf("%q: declared type = %v, want kind %v", tc.src, got, tc.want)
		}
	}
}

// TestArithTyping verifies Int/Int stays Int, any Float operand floats the
// result, and mismatches report.
func TestArithTyping(t *testing.T) {
	c, mod, ds := checkSrc(t, "var v = 1 + 2 * 3\n@println(v)\n")
	if len(errCodes(ds)) > 0 {
		t.Fatalf("unexpected errors %v", errCodes(ds))
	}
	bin := firstOfKind(mod, ast.Binary)
	if got, _ := c.ExprType(bin.ID); got.Kind != types.KInt {
		t.Errorf("1 + 2 * 3 typed %v, want Int", got)
	}

	c, mod, _ = checkSrc(t, "var v = 1 + 2.5\n@println(v)\n")
	bin = firstOfKind(mod, ast.Binary)
	if got, _ := c.ExprType(bin.ID); got.Kind != types.KFloat {
		t.Errorf("1 + 2.5 typed %v, want Float", got)
	}

	_, _, ds = checkSrc(t, "var v = 1 + \"s\"\n@println(v)\n")
	if !hasCode(ds, "E0342") {
		t.Errorf("expected E0342 for Int + String, got %v", errCodes(ds))
	}
}

// TestListUnification verifies element unification and the mixed-element
// diagnostic.
func TestListUnification(t *testing.T) {
	c, mod, ds := checkSrc(t, "var v = [1, 2, 3]\n@println(v)\n")
	if len(errCodes(ds)) > 0 {
		t.Fatalf("unexpected errors %v", errCodes(ds))
	}
	lst := firstOfKind(mod, ast.ListLit)
	got, _ := c.ExprType(lst.ID)
	if got.Kind != types.KList || got.Elem.Kind != types.KInt {
		t.Errorf("[1,2,3] typed %v, want List(Int)", got)
	}

	_, _, ds = checkSrc(t, "var v = [1, \"two\"]\n@println(v)\n")
	if len(errCodes(ds)) == 0 {
		t.Error("expected a diagnostic for a mixed-type list literal")
	}
}

// TestStructConstruction verifies field coverage rules: every declared
// field required, extras rejected.
func TestStructConstruction(t *testing.T) {
	base := "struct P { x: Int, y: Int }\n"
	if _, _, ds := checkSrc(t, base+"var p = P(x: 3, y: 4)\n@println(p.x)\n"); len(errCodes(ds)) > 0 {
		t.Fatalf("valid construction reported %v", errCodes(ds))
	}
	if _, _, ds := checkSrc(t, base+"var p = P(x: 3)\n@println(p.x)\n"); len(errCodes(ds)) == 0 {
		t.Error("missing field should report")
	}
	if _, _, ds := checkSrc(t, base+"var p = P(x: 3, y: 4, z: 5)\n@println(p.x)\n"); len(errCodes(ds)) == 0 {
		t.Error("extra field should report")
	}
	if _, _, ds := checkSrc(t, base+"var p = P(x: 3, y: 4)\n@println(p.z)\n"); len(errCodes(ds)) == 0 {
		t.Error("unknown member should report")
	}
}

// TestCallArity verifies arity and argument type checking.
func TestCallArity(t *testing.T) {
	base := "def add(a: Int, b: Int) -> Int\n  return a + b\nend\n"
	if _, _, ds := checkSrc(t, base+"@println(add(1, 2))\n"); len(errCodes(ds)) > 0 {
		t.Fatalf("valid call reported %v", errCodes(ds))
	}
	if _, _, ds := checkSrc(t, base+"@println(add(1))\n"); len(errCodes(ds)) == 0 {
		t.Error("arity mismatch should report")
	}
	if _, _, ds := checkSrc(t, base+"@println(add(1, \"x\"))\n"); len(errCodes(ds)) == 0 {
		t.Error("argument type mismatch should report")
	}
}

// TestThrowChecking verifies a throw outside the declared throws set
// reports E0336 and a declared one passes.
func TestThrowChecking(t *testing.T) {
	base := "error E { NotFound(k: String) }\n"
	ok := base + "def f(k: String) -> Int ! E.NotFound\n  throw E.NotFound(k)\nend\n@println(f(\"x\") catch err\ncase _\n  0\nend)\n"
	if _, _, ds := checkSrc(t, ok); len(errCodes(ds)) > 0 {
		t.Fatalf("declared throw reported %v", errCodes(ds))
	}
	bad := base + "def g(k: String) -> Int\n  throw E.NotFound(k)\nend\n@println(g(\"x\"))\n"
	if _, _, ds := checkSrc(t, bad); !hasCode(ds, "E0336") {
		t.Error("undeclared throw should report E0336")
	}
}

// TestGenericCallSubst verifies each generic call site records a concrete
// binding for every type parameter.
func TestGenericCallSubst(t *testing.T) {
	src := "def id[T](v: T) -> T\n  return v\nend\n@println(id(42))\n@println(id(\"tea\"))\n"
	c, mod, ds := checkSrc(t, src)
	if len(errCodes(ds)) > 0 {
		t.Fatalf("unexpected errors %v", errCodes(ds))
	}
	var kinds []types.Kind
	var walk func(n *ast.Node)
	walk = func(n *ast.Node) {
		if n == nil {
			return
		}
		if n.Typ == ast.Call {
			if subst, ok := c.CallSubst(n.ID); ok {
				kinds = append(kinds, subst["T"].Kind)
			}
		}
		for _, ch := range n.Children {
			walk(ch)
		}
	}
	walk(mod)
	if len(kinds) != 2 || kinds[0] != types.KInt || kinds[1] != types.KString {
		t.Fatalf("generic bindings = %v, want [Int, String]", kinds)
	}
}

// TestRecoveryAssignsUnknown verifies a failed expression still records a
// type so downstream phases keep walking.
func TestRecoveryAssignsUnknown(t *testing.T) {
	c, mod, ds := checkSrc(t, "var v = 1 + \"s\"\n@println(v)\n")
	if len(errCodes(ds)) == 0 {
		t.Fatal("expected a type error")
	}
	bin := firstOfKind(mod, ast.Binary)
	got, ok := c.ExprType(bin.ID)
	if !ok || got.Kind != types.KUnknown {
		t.Errorf("failed expression typed %v, want Unknown", got)
	}
}

// TestIntrinsicSignatures verifies fixed arity and typing of the @name
// builtins.
func TestIntrinsicSignatures(t *testing.T) {
	c, mod, ds := checkSrc(t, "var n = @len([1, 2, 3])\n@println(n)\n")
	if len(errCodes(ds)) > 0 {
		t.Fatalf("unexpected errors %v", errCodes(ds))
	}
	decl := firstOfKind(mod, ast.VarDecl)
	if got, _ := c.DeclTypeOf(decl); got.Kind != types.KInt {
		t.Errorf("@len typed %v, want Int", got)
	}

	if _, _, ds := checkSrc(t, "@to_float(\"nope\")\n"); !hasCode(ds, "E0352") {
		t.Error("@to_float(String) should report E0352")
	}
	if _, _, ds := checkSrc(t, "@println(1, 2)\n"); !hasCode(ds, "E0351") {
		t.Error("wrong intrinsic arity should report E0351")
	}
	if _, _, ds := checkSrc(t, "@frobnicate(1)\n"); !hasCode(ds, "E0350") {
		t.Error("unknown intrinsic should report E0350")
	}
}

// TestUnhandledThrowingCall verifies an unguarded call to a throwing
// function must either catch or redeclare the variants.
func TestUnhandledThrowingCall(t *testing.T) {
	base := "error E { NotFound(k: String) }\n" +
		"def f(k: String) -> Int ! E.NotFound\n  throw E.NotFound(k)\nend\n"

	if _, _, ds := checkSrc(t, base+"def g() -> Int\n  return f(\"x\")\nend\n@println(g())\n"); !hasCode(ds, "E0337") {
		t.Error("unguarded call without declared throws should report E0337")
	}
	ok := base + "def g() -> Int ! E.NotFound\n  return f(\"x\")\nend\n" +
		"@println(g() catch err\ncase _\n  0\nend)\n"
	if _, _, ds := checkSrc(t, ok); len(errCodes(ds)) > 0 {
		t.Errorf("propagating call reported %v", errCodes(ds))
	}
}

// TestErrVariantLayout verifies the lowerer-facing view of an error
// variant's payload fields.
func TestErrVariantLayout(t *testing.T) {
	c, _, ds := checkSrc(t, "error E { Bad(code: Int, msg: String) }\n@println(1)\n")
	if len(errCodes(ds)) > 0 {
		t.Fatalf("unexpected errors %v", errCodes(ds))
	}
	order, fields, ok := c.ErrVariantLayout("E", "Bad")
	if !ok {
		t.Fatal("E.Bad layout not found")
	}
	if len(order) != 2 || order[0] != "code" || order[1] != "msg" {
		t.Fatalf("field order = %v", order)
	}
	if fields["code"].Kind != types.KInt || fields["msg"].Kind != types.KString {
		t.Fatalf("field types = %v", fields)
	}
	if _, _, ok := c.ErrVariantLayout("E", "Nope"); ok {
		t.Error("unknown variant should not resolve")
	}
	if _, _, ok := c.ErrVariantLayout("F", "Bad"); ok {
		t.Error("unknown error type should not resolve")
	}
}
