// Tests the scanner against hand-tokenized Tea fragments: token kinds and
// lexemes in source order, the significant-newline suppression rules, and
// template string segmentation.

package lexer

import (
	"testing"

	"tea/internal/diag"
)

// tok pairs an expected kind with its expected lexeme ("" skips the
// lexeme comparison, useful for zero-width segment markers).
type tok struct {
	kind Kind
	val  string
}

func scan(t *testing.T, src string) ([]Token, []diag.Diagnostic) {
	t.Helper()
	sink := diag.NewSink()
	toks := Scan(0, src, sink)
	sink.Stop()
	return toks, sink.Diagnostics()
}

func expectTokens(t *testing.T, src string, exp []tok) {
	t.Helper()
	toks, _ := scan(t, src)
	for i1, e1 := range exp {
		if i1 >= len(toks) {
			t.Fatalf("expected %d tokens, got %d", len(exp), len(toks))
		}
		got := toks[i1]
		if got.Kind != e1.kind {
			t.Errorf("(token %d): expected kind %s, got %s", i1+1, e1.kind, got)
			continue
		}
		if e1.val != "" && got.Lexeme != e1.val {
			t.Errorf("(token %d): expected lexeme %q, got %q", i1+1, e1.val, got.Lexeme)
		}
	}
	if len(toks) != len(exp) {
		t.Errorf("expected %d tokens, got %d", len(exp), len(toks))
	}
}

func TestScanFuncDecl(t *testing.T) {
	src := "def add(a: Int, b: Int) -> Int\n  a + b\nend\n"
	expectTokens(t, src, []tok{
		{KwDef, "def"}, {Ident, "add"}, {LParen, "("},
		{Ident, "a"}, {Colon, ":"}, {Ident, "Int"}, {Comma, ","},
		{Ident, "b"}, {Colon, ":"}, {Ident, "Int"}, {RParen, ")"},
		{Arrow, "->"}, {Ident, "Int"}, {Newline, "\n"},
		{Ident, "a"}, {Plus, "+"}, {Ident, "b"}, {Newline, "\n"},
		{KwEnd, "end"}, {Newline, "\n"},
		{EOF, ""},
	})
}

func TestScanLiterals(t *testing.T) {
	expectTokens(t, "1_000 3.14 2e10 \"hi\\n\" true nil\n", []tok{
		{IntLit, "1_000"}, {FloatLit, "3.14"}, {FloatLit, "2e10"},
		{StringLit, `"hi\n"`}, {BoolLit, "true"}, {NilLit, "nil"},
		{Newline, "\n"}, {EOF, ""},
	})
}

// TestNewlineSuppression covers the two suppression rules: a newline after
// a trailing binary operator, and newlines at bracket depth > 0.
func TestNewlineSuppression(t *testing.T) {
	expectTokens(t, "1 +\n2\n", []tok{
		{IntLit, "1"}, {Plus, "+"}, {IntLit, "2"}, {Newline, "\n"}, {EOF, ""},
	})
	expectTokens(t, "f(\n1,\n2\n)\n", []tok{
		{Ident, "f"}, {LParen, "("}, {IntLit, "1"}, {Comma, ","},
		{IntLit, "2"}, {RParen, ")"}, {Newline, "\n"}, {EOF, ""},
	})
}

// TestTemplateString verifies the segment protocol: open, chunks,
// interpolation delimiters around ordinary expression tokens, close.
func TestTemplateString(t *testing.T) {
	expectTokens(t, "`a\\(x)b`\n", []tok{
		{TStrOpen, "`"}, {TStrChunk, "a"}, {TStrInterpOpen, ""},
		{Ident, "x"}, {TStrInterpClose, ""}, {TStrChunk, "b"},
		{TStrClose, "`"}, {Newline, "\n"}, {EOF, ""},
	})
}

// TestUnterminatedString verifies the scanner reports, inserts an error
// token and keeps scanning the next line.
func TestUnterminatedString(t *testing.T) {
	toks, ds := scan(t, "\"abc\nvar x = 1\n")
	if len(ds) != 1 || ds[0].Code != "E0001" {
		t.Fatalf("expected one E0001 diagnostic, got %v", ds)
	}
	if toks[0].Kind != Invalid {
		t.Errorf("expected leading Invalid token, got %s", toks[0])
	}
	// The next line still scans normally.
	rest := []tok{{KwVar, "var"}, {Ident, "x"}, {Assign, "="}, {IntLit, "1"}, {Newline, "\n"}, {EOF, ""}}
	for i1, e1 := range rest {
		got := toks[i1+1]
		if got.Kind != e1.kind {
			t.Errorf("(token %d after recovery): expected %s, got %s", i1+1, e1.kind, got)
		}
	}
}

// TestStrayCharacter verifies an unknown rune produces a diagnostic
// without derailing the rest of the file.
func TestStrayCharacter(t *testing.T) {
	_, ds := scan(t, "var x = 1 $\nvar y = 2\n")
	if len(ds) != 1 || ds[0].Code != "E0001" {
		t.Fatalf("expected one E0001 diagnostic, got %v", ds)
	}
}

// TestDocCommentTrivia verifies ## comments surface as trivia while plain
// comments vanish entirely.
func TestDocCommentTrivia(t *testing.T) {
	toks, _ := scan(t, "# plain\n## documented\ndef f()\nend\n")
	var docs []string
	for _, tk := range toks {
		if tk.Kind == Comment_ {
			docs = append(docs, tk.Lexeme)
		}
	}
	if len(docs) != 1 || docs[0] != "documented" {
		t.Errorf("expected one doc trivia %q, got %v", "documented", docs)
	}
}
