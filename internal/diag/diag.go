// Package diag provides the compiler's diagnostic accumulator: a single
// channel-fed sink every phase reports into, holding full Diagnostic
// values carrying severity, a stable code and source spans.
package diag

import (
	"fmt"
	"sort"
	"sync"

	"tea/internal/sourcemap"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Severity orders diagnostics from informational to fatal.
type Severity int

const (
	Note Severity = iota
	Warning
	Error
	Fatal
)

// String returns a lowercase label for the severity, used as the severity
// label when diagnostics are rendered.
func (s Severity) String() string {
	switch s {
	case Note:
		return "note"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Diagnostic is one compiler-emitted message. Code is a stable string
// (e.g. "E0203") so tests can assert on classes of failure without
// matching full message text.
type Diagnostic struct {
	Severity  Severity
	Code      string
	Message   string
	Primary   sourcemap.Span
	Secondary []SecondarySpan
}

// SecondarySpan annotates a Diagnostic with a related location, such as a
// prior declaration site for a "duplicate declaration" error.
type SecondarySpan struct {
	Span  sourcemap.Span
	Label string
}

// Sink is the single mutable cross-phase resource of a compilation (spec
// §5 "Shared resources"). It is append-only; every phase receives the same
// *Sink and reports into it rather than returning per-call error lists.
type Sink struct {
	listen chan Diagnostic
	stop   chan struct{}
	done   chan struct{}
	mx     sync.Mutex
	items  []Diagnostic
	failed bool
}

// ---------------------
// ----- Functions -----
// ---------------------

// NewSink returns a running Sink. Stop must be called exactly once when the
// compilation finishes, successfully or not.
func NewSink() *Sink {
	s := &Sink{
		listen: make(chan Diagnostic),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		items:  make([]Diagnostic, 0, 16),
	}
	go s.run()
	return s
}

// run is the sink's single accumulator goroutine; it is the only writer of
// s.items, so readers only need the mutex to guard concurrent Report calls
// racing a Diagnostics snapshot.
func (s *Sink) run() {
	defer close(s.done)
	for {
		select {
		case d := <-s.listen:
			s.mx.Lock()
			s.items = append(s.items, d)
			if d.Severity >= Error {
				s.failed = true
			}
			s.mx.Unlock()
		case <-s.stop:
			return
		}
	}
}

// Report sends a diagnostic to the sink. Safe to call from multiple
// worker goroutines concurrently (spec: per-function lowering may run in
// parallel).
func (s *Sink) Report(d Diagnostic) {
	if d.Severity >= Error {
		s.mx.Lock()
		s.failed = true
		s.mx.Unlock()
	}
	s.listen <- d
}

// Errorf reports an Error-severity diagnostic built from a format string.
func (s *Sink) Errorf(code string, span sourcemap.Span, format string, args ...interface{}) {
	s.Report(Diagnostic{Severity: Error, Code: code, Message: fmt.Sprintf(format, args...), Primary: span})
}

// Warnf reports a Warning-severity diagnostic.
func (s *Sink) Warnf(code string, span sourcemap.Span, format string, args ...interface{}) {
	s.Report(Diagnostic{Severity: Warning, Code: code, Message: fmt.Sprintf(format, args...), Primary: span})
}

// HardFailed reports whether any Error-or-worse diagnostic has been
// reported so far. Every phase checks this at its boundary and returns
// early rather than proceeding on a tree known to be broken.
func (s *Sink) HardFailed() bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.failed
}

// Stop terminates the accumulator goroutine. Must only be called once.
func (s *Sink) Stop() {
	close(s.stop)
	<-s.done
}

// Diagnostics returns all accumulated diagnostics sorted by primary file id
// and then by start offset within each file. Diagnostics with equal keys
// keep the order in which they were reported.
func (s *Sink) Diagnostics() []Diagnostic {
	s.mx.Lock()
	out := make([]Diagnostic, len(s.items))
	copy(out, s.items)
	s.mx.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Primary.File != out[j].Primary.File {
			return out[i].Primary.File < out[j].Primary.File
		}
		return out[i].Primary.Start < out[j].Primary.Start
	})
	return out
}
