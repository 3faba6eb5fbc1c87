package lower

import "tinygo.org/x/go-llvm"

// slot is one lowered local binding. Most locals live in an alloca and are
// read/written with plain loads and stores. A var that some lambda
// captures is boxed instead: ptr holds an rt_cell_t* shared between the
// declaring function and every capturing closure, so writes on either
// side are seen by both.
type slot struct {
	ptr   llvm.Value
	boxed bool
}

// varScope is one nesting level's local symbol table.
type varScope struct {
	m map[string]slot
}

// scopeStack is a stack of varScope: function parameters sit at the
// bottom, nested block/lambda scopes above.
type scopeStack struct {
	frames []*varScope
}

func newScopeStack() *scopeStack {
	return &scopeStack{frames: make([]*varScope, 0, 8)}
}

// push opens a new nested scope, e.g. entering a function body, if/while
// block, or lambda body.
func (s *scopeStack) push() {
	s.frames = append(s.frames, &varScope{m: make(map[string]slot, 8)})
}

// pop closes the innermost scope.
func (s *scopeStack) pop() {
	s.frames = s.frames[:len(s.frames)-1]
}

// declare binds name to an alloca in the innermost scope.
func (s *scopeStack) declare(name string, val llvm.Value) {
	s.frames[len(s.frames)-1].m[name] = slot{ptr: val}
}

// declareBoxed binds name to a shared heap cell in the innermost scope.
func (s *scopeStack) declareBoxed(name string, cell llvm.Value) {
	s.frames[len(s.frames)-1].m[name] = slot{ptr: cell, boxed: true}
}

// lookup searches from the innermost scope outward.
func (s *scopeStack) lookup(name string) (slot, bool) {
	for i1 := len(s.frames) - 1; i1 >= 0; i1-- {
		if v, ok := s.frames[i1].m[name]; ok {
			return v, true
		}
	}
	return slot{}, false
}
