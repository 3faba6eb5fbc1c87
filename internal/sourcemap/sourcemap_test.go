package sourcemap

import "testing"

// TestPosOf verifies byte offsets translate to 1-indexed line:column pairs
// across line boundaries.
func TestPosOf(t *testing.T) {
	m := New()
	id := m.AddFile("a.tea", "var x = 1\nvar y = 2\n\nx + y\n")

	tests := []struct {
		offset uint32
		line   int
		col    int
	}{
		{0, 1, 1},   // 'v' of the first var.
		{4, 1, 5},   // 'x'.
		{10, 2, 1},  // 'v' of the second var.
		{14, 2, 5},  // 'y'.
		{20, 3, 1},  // The blank line.
		{21, 4, 1},  // 'x' of the sum.
		{25, 4, 5},  // 'y' of the sum.
	}
	for _, tc := range tests {
		got := m.PosOf(id, tc.offset)
		if got.Line != tc.line || got.Col != tc.col {
			t.Errorf("PosOf(%d) = %d:%d, want %d:%d", tc.offset, got.Line, got.Col, tc.line, tc.col)
		}
	}
}

// TestSnippetAndLineText verifies span slicing and whole-line extraction.
func TestSnippetAndLineText(t *testing.T) {
	m := New()
	id := m.AddFile("b.tea", "const greeting = \"hi\"\nvar n = 10\n")

	sp := Span{File: id, Start: 6, End: 14}
	if got := m.Snippet(sp); got != "greeting" {
		t.Errorf("Snippet = %q, want %q", got, "greeting")
	}
	if got := m.LineText(Span{File: id, Start: 26, End: 27}); got != "var n = 10" {
		t.Errorf("LineText = %q, want %q", got, "var n = 10")
	}
	if got := m.String(sp); got != "b.tea:1:7" {
		t.Errorf("String = %q, want %q", got, "b.tea:1:7")
	}
}

// TestMultipleFiles verifies ids are assigned in registration order and
// lookups stay per-file.
func TestMultipleFiles(t *testing.T) {
	m := New()
	a := m.AddFile("a.tea", "aaa")
	b := m.AddFile("b.tea", "bbb")
	if a == b {
		t.Fatalf("expected distinct file ids, got %d twice", a)
	}
	if m.Path(a) != "a.tea" || m.Path(b) != "b.tea" {
		t.Errorf("paths mixed up: %q / %q", m.Path(a), m.Path(b))
	}
	if m.Text(b) != "bbb" {
		t.Errorf("Text(b) = %q", m.Text(b))
	}
	if m.Path(FileID(99)) != "" {
		t.Errorf("unknown id should yield empty path")
	}
	if got := m.String(Span{File: NoFile}); got != "<generated>" {
		t.Errorf("NoFile span renders as %q", got)
	}
}
