package resolve

import (
	"testing"

	"tea/internal/ast"
	"tea/internal/diag"
	"tea/internal/parser"
	"tea/internal/stdlib"
)

func resolveSrc(t *testing.T, src string) (*Result, []diag.Diagnostic) {
	t.Helper()
	sink := diag.NewSink()
	mod := parser.Parse(0, src, sink)
	std, err := stdlib.Load()
	if err != nil {
		t.Fatalf("loading stdlib snapshot: %s", err)
	}
	res := New(sink, nil, std, 0).Resolve(mod)
	sink.Stop()
	return res, sink.Diagnostics()
}

func codes(ds []diag.Diagnostic) []string {
	out := make([]string, len(ds))
	for i1, d := range ds {
		out[i1] = d.Code
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

// TestForwardReference verifies pass one makes later declarations visible
// to earlier bodies.
func TestForwardReference(t *testing.T) {
	_, ds := resolveSrc(t, "def a() -> Int\n  return b()\nend\ndef b() -> Int\n  return 1\nend\n")
	for _, d := range ds {
		if d.Severity >= diag.Error {
			t.Fatalf("unexpected diagnostics: %v", codes(ds))
		}
	}
}

// TestUndefinedName verifies an unresolved identifier reports E0206 and
// resolution continues.
func TestUndefinedName(t *testing.T) {
	_, ds := resolveSrc(t, "var x = missing\nvar y = also_missing\n@println(x + y)\n")
	n := 0
	for _, d := range ds {
		if d.Code == "E0206" {
			n++
		}
	}
	if n != 2 {
		t.Fatalf("expected 2 undefined-name diagnostics, got %d (%v)", n, codes(ds))
	}
}

// TestDuplicateAndShadowing verifies redeclaration in one scope and
// shadowing across nested scopes both report, with the prior site as a
// secondary span.
func TestDuplicateAndShadowing(t *testing.T) {
	_, ds := resolveSrc(t, "def f(n: Int) -> Int\n  var n = 2\n  return n\nend\n")
	if !hasCode(ds, "E0204") {
		t.Fatalf("expected E0204 for shadowing a parameter, got %v", codes(ds))
	}

	_, ds = resolveSrc(t, "var x = 1\nvar x = 2\n@println(x)\n")
	found := false
	for _, d := range ds {
		if d.Code == "E0200" {
			found = true
			if len(d.Secondary) == 0 || d.Secondary[0].Label != "previously declared here" {
				t.Errorf("duplicate diagnostic missing prior-declaration span")
			}
		}
	}
	if !found {
		t.Fatalf("expected E0200 for duplicate top-level var, got %v", codes(ds))
	}
}

// TestConstReassignment verifies assignment to a const reports E0207.
func TestConstReassignment(t *testing.T) {
	_, ds := resolveSrc(t, "const k = 1\nk = 2\n")
	if !hasCode(ds, "E0207") {
		t.Fatalf("expected E0207, got %v", codes(ds))
	}
}

// TestUnusedWarning verifies unread locals warn (not error) and a leading
// underscore opts out.
func TestUnusedWarning(t *testing.T) {
	_, ds := resolveSrc(t, "def f() -> Int\n  var unread = 1\n  var _scratch = 2\n  return 3\nend\n")
	warned := 0
	for _, d := range ds {
		if d.Code == "W0001" {
			warned++
			if d.Severity != diag.Warning {
				t.Errorf("unused local should be a warning, got severity %s", d.Severity)
			}
		}
	}
	if warned != 1 {
		t.Fatalf("expected exactly one unused warning, got %d (%v)", warned, codes(ds))
	}

	_, ds = resolveSrc(t, "def g(a: Int, _b: Int) -> Int\n  return 1\nend\n")
	warned = 0
	for _, d := range ds {
		if d.Code == "W0001" {
			warned++
		}
	}
	if warned != 1 {
		t.Fatalf("expected one unused-parameter warning, got %d (%v)", warned, codes(ds))
	}
}

// TestStdImport verifies a std. path binds a module alias and an unknown
// one reports E0201.
func TestStdImport(t *testing.T) {
	res, ds := resolveSrc(t, "use fs = \"std.fs\"\n@println(fs.exists(\"x\"))\n")
	for _, d := range ds {
		if d.Severity >= diag.Error {
			t.Fatalf("unexpected diagnostics: %v", codes(ds))
		}
	}
	imp, ok := res.Imports["fs"]
	if !ok || !imp.IsStd || imp.StdPath != "std.fs" {
		t.Fatalf("fs alias not bound to std.fs: %+v", imp)
	}

	_, ds = resolveSrc(t, "use nope = \"std.nope\"\n")
	if !hasCode(ds, "E0201") {
		t.Fatalf("expected E0201 for unknown stdlib module, got %v", codes(ds))
	}
}

// TestBindings verifies every resolved Ident maps to its declaration site.
func TestBindings(t *testing.T) {
	res, _ := resolveSrc(t, "var a = 1\n@println(a)\n")
	found := false
	for _, sym := range res.Bindings {
		if sym.Name == "a" && sym.Kind == SymVar {
			found = true
			if sym.Node == nil || sym.Node.Typ != ast.VarDecl {
				t.Errorf("binding for a should point at its VarDecl, got %v", sym.Node)
			}
		}
	}
	if !found {
		t.Fatal("no binding recorded for a")
	}
}
