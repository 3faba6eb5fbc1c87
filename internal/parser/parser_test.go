package parser

import (
	"testing"

	"tea/internal/ast"
	"tea/internal/diag"
)

func parse(t *testing.T, src string) (*ast.Node, []diag.Diagnostic) {
	t.Helper()
	sink := diag.NewSink()
	mod := Parse(0, src, sink)
	sink.Stop()
	return mod, sink.Diagnostics()
}

func parseClean(t *testing.T, src string) *ast.Node {
	t.Helper()
	mod, ds := parse(t, src)
	for _, d := range ds {
		if d.Severity >= diag.Error {
			t.Fatalf("unexpected diagnostic: [%s] %s", d.Code, d.Message)
		}
	}
	return mod
}

func wantNode(t *testing.T, n *ast.Node, typ ast.NodeType) *ast.Node {
	t.Helper()
	if n == nil {
		t.Fatalf("expected %s node, got nil", typ)
	}
	if n.Typ != typ {
		t.Fatalf("expected %s node, got %s", typ, n)
	}
	return n
}

// TestPrecedence verifies `*` binds tighter than `+`, which binds tighter
// than comparison, which binds tighter than `and`.
func TestPrecedence(t *testing.T) {
	mod := parseClean(t, "a + b * c < d and e\n")
	and := wantNode(t, mod.Children[0], ast.Binary)
	if and.Data.(string) != "and" {
		t.Fatalf("top operator = %v, want and", and.Data)
	}
	lt := wantNode(t, and.Children[0], ast.Binary)
	if lt.Data.(string) != "<" {
		t.Fatalf("left of and = %v, want <", lt.Data)
	}
	plus := wantNode(t, lt.Children[0], ast.Binary)
	if plus.Data.(string) != "+" {
		t.Fatalf("left of < = %v, want +", plus.Data)
	}
	mul := wantNode(t, plus.Children[1], ast.Binary)
	if mul.Data.(string) != "*" {
		t.Fatalf("right of + = %v, want *", mul.Data)
	}
}

// TestFuncDecl verifies the fixed child layout of a FuncDecl: ParamList,
// GenericParamList, return TypeRef, ThrowsList, Block.
func TestFuncDecl(t *testing.T) {
	mod := parseClean(t, "def add(a: Int, b: Int) -> Int\n  return a + b\nend\n")
	fn := wantNode(t, mod.Children[0], ast.FuncDecl)
	d := fn.Data.(ast.FuncData)
	if d.Name != "add" || d.Pub {
		t.Fatalf("FuncData = %+v", d)
	}
	params := wantNode(t, fn.Children[0], ast.ParamList)
	if len(params.Children) != 2 || params.Children[0].Data.(string) != "a" {
		t.Fatalf("params = %v", params.Children)
	}
	generics := wantNode(t, fn.Children[1], ast.GenericParamList)
	if len(generics.Children) != 0 {
		t.Fatalf("expected no generic params, got %d", len(generics.Children))
	}
	ret := wantNode(t, fn.Children[2], ast.TypeRef)
	if ret.Data.(ast.TypeRefData).Name != "Int" {
		t.Fatalf("return type = %v", ret.Data)
	}
	wantNode(t, fn.Children[3], ast.ThrowsList)
	body := wantNode(t, fn.Children[4], ast.Block)
	wantNode(t, body.Children[0], ast.Return)
}

// TestGenericFuncAndThrows verifies `def f[T](v: T) -> T ! E.NotFound`.
func TestGenericFuncAndThrows(t *testing.T) {
	mod := parseClean(t, "def f[T](v: T) -> T ! E.NotFound\n  v\nend\n")
	fn := wantNode(t, mod.Children[0], ast.FuncDecl)
	generics := wantNode(t, fn.Children[1], ast.GenericParamList)
	if len(generics.Children) != 1 || generics.Children[0].Data.(string) != "T" {
		t.Fatalf("generics = %v", generics.Children)
	}
	throws := wantNode(t, fn.Children[3], ast.ThrowsList)
	if len(throws.Children) != 1 {
		t.Fatalf("throws = %v", throws.Children)
	}
	ref := throws.Children[0].Data.(ast.ErrorRefData)
	if ref[0] != "E" || ref[1] != "NotFound" {
		t.Fatalf("throws ref = %v", ref)
	}
}

// TestUsePathUnquoted verifies the use path is stored without its quote
// delimiters so the resolver's std. prefix check sees the real path.
func TestUsePathUnquoted(t *testing.T) {
	mod := parseClean(t, "use fs = \"std.fs\"\n")
	use := wantNode(t, mod.Children[0], ast.Use)
	pair := use.Data.(ast.UseData)
	if pair[0] != "fs" || pair[1] != "std.fs" {
		t.Fatalf("UseData = %v", pair)
	}
}

// TestStructLitAndMember verifies `P(x: 3, y: 4)` keyword construction and
// member access parse into Call/FieldInit/Member shapes.
func TestStructLitAndMember(t *testing.T) {
	mod := parseClean(t, "var p = P(x: 3, y: 4)\np.x\n")
	decl := wantNode(t, mod.Children[0], ast.VarDecl)
	call := wantNode(t, decl.Children[0], ast.Call)
	wantNode(t, call.Children[0], ast.Ident)
	arg := wantNode(t, call.Children[1], ast.FieldInit)
	if arg.Data.(ast.ArgData).Name != "x" {
		t.Fatalf("first arg = %v", arg.Data)
	}
	member := wantNode(t, mod.Children[1], ast.Member)
	if member.Data.(string) != "x" {
		t.Fatalf("member = %v", member.Data)
	}
}

// TestIntrinsicCall verifies @println(...) parses as a Call carrying
// IntrinsicData rather than an Ident callee.
func TestIntrinsicCall(t *testing.T) {
	mod := parseClean(t, "@println(1 + 2)\n")
	call := wantNode(t, mod.Children[0], ast.Call)
	if call.Data.(ast.IntrinsicData).Name != "println" {
		t.Fatalf("intrinsic = %v", call.Data)
	}
}

// TestLambda verifies `|x: Int| => x * 2` parses with a typed parameter
// list and an expression body.
func TestLambda(t *testing.T) {
	mod := parseClean(t, "const f = |x: Int| => x * 2\n")
	decl := wantNode(t, mod.Children[0], ast.ConstDecl)
	lam := wantNode(t, decl.Children[0], ast.Lambda)
	params := wantNode(t, lam.Children[0], ast.ParamList)
	if len(params.Children) != 1 {
		t.Fatalf("lambda params = %v", params.Children)
	}
}

// TestCatchExpr verifies the catch suffix: binder, variant case, wildcard
// case.
func TestCatchExpr(t *testing.T) {
	src := "var r = f(1) catch err\ncase is E.NotFound\n  0\ncase _\n  1\nend\n"
	mod := parseClean(t, src)
	decl := wantNode(t, mod.Children[0], ast.VarDecl)
	catch := wantNode(t, decl.Children[0], ast.CatchExpr)
	if catch.Data.(string) != "err" {
		t.Fatalf("catch binder = %v", catch.Data)
	}
	wantNode(t, catch.Children[0], ast.Call)
	first := wantNode(t, catch.Children[1], ast.CatchCase)
	if cc := first.Data.(ast.CatchCaseData); cc[0] != "E" || cc[1] != "NotFound" {
		t.Fatalf("first case = %v", cc)
	}
	second := wantNode(t, catch.Children[2], ast.CatchCase)
	if cc := second.Data.(ast.CatchCaseData); cc[0] != "_" {
		t.Fatalf("second case = %v", cc)
	}
}

// TestErrorRecovery verifies a malformed statement reports and the parser
// keeps going with the next line.
func TestErrorRecovery(t *testing.T) {
	mod, ds := parse(t, "var = 3\nvar ok = 1\n")
	if len(ds) == 0 {
		t.Fatal("expected at least one syntax diagnostic")
	}
	found := false
	for _, n := range mod.Children {
		if n.Typ == ast.VarDecl && n.Data.(ast.DeclData).Name == "ok" {
			found = true
		}
	}
	if !found {
		t.Fatal("parser did not recover to parse the following declaration")
	}
}

// TestDocAttachment verifies ## trivia lands on the next declaration.
func TestDocAttachment(t *testing.T) {
	mod := parseClean(t, "## Adds one.\ndef inc(n: Int) -> Int\n  n + 1\nend\n")
	fn := wantNode(t, mod.Children[0], ast.FuncDecl)
	if fn.Doc != "Adds one." {
		t.Fatalf("doc = %q", fn.Doc)
	}
}
