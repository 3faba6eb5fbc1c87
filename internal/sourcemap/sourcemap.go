// Package sourcemap provides the compilation-scoped registry mapping file
// ids to source text, and the Span type diagnostics and the AST use to
// reference a range of bytes in that text.
package sourcemap

import (
	"fmt"
	"strings"
	"sync"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// FileID identifies a source file within a single compilation. Ids are
// assigned in the order files are added and never reused.
type FileID int32

// Span is a byte range (Start inclusive, End exclusive) within the file
// identified by File. A Span whose File is NoFile denotes "no location",
// used for synthesized nodes that carry no source position; the zero-value
// Span refers to file 0.
type Span struct {
	File  FileID
	Start uint32
	End   uint32
}

// NoFile is the FileID of a Span with no source location.
const NoFile FileID = -1

// Pos is a human readable 1-indexed line:column location.
type Pos struct {
	Line, Col int
}

// fileEntry holds the text of one registered file and the byte offset of
// the start of each line, used to translate byte offsets into Pos values
// without rescanning the text on every diagnostic.
type fileEntry struct {
	path        string
	text        string
	lineOffsets []uint32 // lineOffsets[i] is the byte offset of line i+1.
}

// Map is the process-wide-per-compilation registry of source files. It is
// append-only while parsing is in progress and immutable once the driver
// finishes reading source modules (spec: "Created once per compilation;
// immutable afterward").
type Map struct {
	mx    sync.Mutex
	files []fileEntry
}

// ---------------------
// ----- Functions -----
// ---------------------

// New returns an empty source map ready to accept files.
func New() *Map {
	return &Map{files: make([]fileEntry, 0, 8)}
}

// AddFile registers path/text under a freshly assigned FileID.
func (m *Map) AddFile(path, text string) FileID {
	m.mx.Lock()
	defer m.mx.Unlock()
	id := FileID(len(m.files))
	m.files = append(m.files, fileEntry{
		path:        path,
		text:        text,
		lineOffsets: computeLineOffsets(text),
	})
	return id
}

// computeLineOffsets records the byte offset of the first byte of every
// line in text, with line 1 starting at offset 0.
func computeLineOffsets(text string) []uint32 {
	offsets := make([]uint32, 1, 16)
	offsets[0] = 0
	for i1 := 0; i1 < len(text); i1++ {
		if text[i1] == '\n' {
			offsets = append(offsets, uint32(i1+1))
		}
	}
	return offsets
}

// Path returns the registered path for id, or "" if id is unknown.
func (m *Map) Path(id FileID) string {
	m.mx.Lock()
	defer m.mx.Unlock()
	if id < 0 || int(id) >= len(m.files) {
		return ""
	}
	return m.files[id].path
}

// Text returns the full source text registered for id.
func (m *Map) Text(id FileID) string {
	m.mx.Lock()
	defer m.mx.Unlock()
	if id < 0 || int(id) >= len(m.files) {
		return ""
	}
	return m.files[id].text
}

// Snippet returns the substring of the file's text covered by span.
func (m *Map) Snippet(span Span) string {
	m.mx.Lock()
	defer m.mx.Unlock()
	if span.File < 0 || int(span.File) >= len(m.files) {
		return ""
	}
	f := m.files[span.File]
	if int(span.End) > len(f.text) || span.Start > span.End {
		return ""
	}
	return f.text[span.Start:span.End]
}

// PosOf converts a byte offset within file id into a 1-indexed line:column.
func (m *Map) PosOf(id FileID, offset uint32) Pos {
	m.mx.Lock()
	defer m.mx.Unlock()
	if id < 0 || int(id) >= len(m.files) {
		return Pos{}
	}
	f := m.files[id]
	// Binary search for the line containing offset.
	lo, hi := 0, len(f.lineOffsets)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if f.lineOffsets[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	line := lo + 1
	col := int(offset-f.lineOffsets[lo]) + 1
	return Pos{Line: line, Col: col}
}

// String renders a span as "path:line:col" for diagnostic messages.
func (m *Map) String(span Span) string {
	if span.File == NoFile {
		return "<generated>"
	}
	p := m.PosOf(span.File, span.Start)
	return fmt.Sprintf("%s:%d:%d", m.Path(span.File), p.Line, p.Col)
}

// LineText returns the full text of the line containing span.Start, with
// trailing newline stripped, for caret-style diagnostic rendering.
func (m *Map) LineText(span Span) string {
	m.mx.Lock()
	text, offsets := "", []uint32(nil)
	if span.File >= 0 && int(span.File) < len(m.files) {
		f := m.files[span.File]
		text, offsets = f.text, f.lineOffsets
	}
	m.mx.Unlock()
	if text == "" {
		return ""
	}
	p := m.PosOf(span.File, span.Start)
	start := offsets[p.Line-1]
	end := uint32(len(text))
	if p.Line < len(offsets) {
		end = offsets[p.Line] - 1
	}
	return strings.TrimRight(text[start:end], "\r")
}
