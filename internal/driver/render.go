package driver

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"tea/internal/diag"
	"tea/internal/sourcemap"
)

// severityColors maps each severity label to its terminal color. Colors
// are only applied when the destination is a terminal.
var severityColors = map[diag.Severity]*color.Color{
	diag.Note:    color.New(color.FgCyan),
	diag.Warning: color.New(color.FgYellow),
	diag.Error:   color.New(color.FgRed, color.Bold),
	diag.Fatal:   color.New(color.FgRed, color.Bold),
}

// Render writes every diagnostic to w in the collected (sorted) order:
//
//	path:line:col: error[E0200]: duplicate top-level declaration of "x"
//	    var x = 2
//	path:line:col: note: previously declared here
func Render(w io.Writer, srcs *sourcemap.Map, ds []diag.Diagnostic) {
	colored := false
	if f, ok := w.(*os.File); ok {
		colored = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	for _, d := range ds {
		renderOne(w, srcs, d, colored)
	}
}

func renderOne(w io.Writer, srcs *sourcemap.Map, d diag.Diagnostic, colored bool) {
	label := d.Severity.String()
	if colored {
		label = severityColors[d.Severity].Sprint(label)
	}
	code := ""
	if d.Code != "" {
		code = "[" + d.Code + "]"
	}
	fmt.Fprintf(w, "%s: %s%s: %s\n", srcs.String(d.Primary), label, code, d.Message)
	if line := srcs.LineText(d.Primary); line != "" {
		fmt.Fprintf(w, "    %s\n", line)
	}
	for _, sec := range d.Secondary {
		note := "note"
		if colored {
			note = severityColors[diag.Note].Sprint(note)
		}
		fmt.Fprintf(w, "%s: %s: %s\n", srcs.String(sec.Span), note, sec.Label)
	}
}
