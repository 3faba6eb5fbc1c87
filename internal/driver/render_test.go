package driver

import (
	"strings"
	"testing"

	"tea/internal/diag"
	"tea/internal/sourcemap"
)

// TestRender verifies the plain-text diagnostic format: location, severity
// with code, message, offending line, and secondary notes.
func TestRender(t *testing.T) {
	srcs := sourcemap.New()
	id := srcs.AddFile("m.tea", "const k = 1\nk = 2\n")

	ds := []diag.Diagnostic{{
		Severity: diag.Error,
		Code:     "E0207",
		Message:  `cannot reassign const "k"`,
		Primary:  sourcemap.Span{File: id, Start: 12, End: 13},
		Secondary: []diag.SecondarySpan{
			{Span: sourcemap.Span{File: id, Start: 0, End: 11}, Label: "previously declared here"},
		},
	}}

	var sb strings.Builder
	Render(&sb, srcs, ds)
	got := sb.String()

	for _, want := range []string{
		"m.tea:2:1: error[E0207]: cannot reassign const \"k\"",
		"    k = 2",
		"m.tea:1:1: note: previously declared here",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("rendered output missing %q:\n%s", want, got)
		}
	}
}

// TestStageNames pins the state machine's reporting order.
func TestStageNames(t *testing.T) {
	want := []string{"parsed", "resolved", "typed", "monomorphized", "lowered", "emitted", "linked"}
	for i1, w := range want {
		if got := Stage(i1).String(); got != w {
			t.Errorf("Stage(%d) = %q, want %q", i1, got, w)
		}
	}
}
