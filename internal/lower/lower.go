// Package lower translates a checked, monomorphized Tea module directly
// into LLVM IR using the tinygo.org/x/go-llvm bindings: one llvm.Context,
// one llvm.Builder reused across a function body, and no intermediate
// custom IR representation. The AST is walked once and lowered straight
// to builder calls.
//
// Int, Float and Bool are unboxed SSA values. Everything else (String,
// List, Dict, user structs, closures, errors) is an opaque heap-allocated
// runtime object behind an i8* (rt_string_t*, rt_list_t*, ...) crossing a
// flat C ABI. The runtime itself is not this package's concern: every
// rt_* symbol is declared as an external function and resolved at link
// time against the runtime static library (internal/link).
package lower

import (
	"fmt"

	"tinygo.org/x/go-llvm"

	"tea/internal/ast"
	"tea/internal/check"
	"tea/internal/diag"
	"tea/internal/mono"
	"tea/internal/types"
)

// Lowerer carries the mutable state of lowering one module to one LLVM
// module.
type Lowerer struct {
	sink *diag.Sink
	c    *check.Checker
	reg  *mono.Registry

	ctx llvm.Context
	mod llvm.Module
	b   llvm.Builder

	// Runtime ABI externs, declared lazily and cached so repeated call
	// sites share one llvm.Value.
	rt map[string]llvm.Value

	// teaErrorTy is the flat (tag, payload) pair every throwing call
	// returns out-of-band through.
	teaErrorTy llvm.Type

	funcs         map[string]llvm.Value // mangled name -> defined llvm.Value.
	structLayouts map[string]*layout    // struct name -> field layout.
	errTags       map[string]int64      // "ErrorName.Variant" -> stable numeric tag.
	nextErrTag    int64

	scopes *scopeStack

	// curBoxed names the vars of the function presently being lowered that
	// some lambda captures; lowerLocalDecl gives those a shared heap cell
	// rather than an alloca.
	curBoxed map[string]bool

	curThrows []types.ErrorVariantRef // throws set of the function presently being lowered.
	curRet    *types.Type             // its declared return type, consulted by lowerReturn's optional coercion.
	curSubst  map[string]*types.Type  // substitution of the specialization presently being lowered, nil in concrete code.
	curErrOut llvm.Value              // its out-parameter for thrown errors, zero Value if it throws nothing.

	lastCallErrSlot llvm.Value              // out-param slot of the most recently emitted throwing call, read by a wrapping CatchExpr.
	lastCallThrows  []types.ErrorVariantRef // its throws set.
}

// layout is one struct declaration's field order and LLVM type, used to
// translate Member/FieldInit access into rt_struct_get_field/set_field
// calls by numeric index: structs are heap objects, not LLVM aggregates,
// so every instance crosses the same opaque-pointer ABI as strings and
// lists.
type layout struct {
	name   string
	fields []string
	types  []*types.Type
}

// New returns a Lowerer ready to translate module, given the completed
// checker (for the type-facts and declaration tables) and the
// monomorphizer's registry of concrete specializations.
func New(sink *diag.Sink, c *check.Checker, reg *mono.Registry, moduleName string) *Lowerer {
	// The global context, not a fresh one: the type shorthands used
	// throughout (llvm.Int64Type and friends) live there, and a module
	// must share its context with every type built into it.
	ctx := llvm.GlobalContext()
	l := &Lowerer{
		sink:          sink,
		c:             c,
		reg:           reg,
		ctx:           ctx,
		mod:           ctx.NewModule(moduleName),
		b:             ctx.NewBuilder(),
		rt:            make(map[string]llvm.Value, 32),
		funcs:         make(map[string]llvm.Value, 32),
		structLayouts: make(map[string]*layout, 8),
		errTags:       make(map[string]int64, 8),
		scopes:        newScopeStack(),
	}
	l.teaErrorTy = ctx.StructCreateNamed("tea.Error")
	l.teaErrorTy.StructSetBody([]llvm.Type{llvm.Int64Type(), l.ptrType()}, false)
	l.declareRuntime()
	return l
}

// Dispose releases the builder and module once the caller (internal/ir/
// llvm) is done reading l.Module(). The context is the process-global one
// and is never disposed.
func (l *Lowerer) Dispose() {
	l.b.Dispose()
	l.mod.Dispose()
}

// Module returns the LLVM module built so far, read by internal/ir/llvm
// to render textual IR or emit an object file.
func (l *Lowerer) Module() llvm.Module { return l.mod }

// isPrimKind reports whether k is one of the unboxed scalar kinds.
func isPrimKind(k types.Kind) bool {
	return k == types.KInt || k == types.KFloat || k == types.KBool
}

// coerce adapts v (checked as got) to the representation want expects at
// an optional boundary: a bare primitive boxes when flowing into a T?,
// and a T? unboxes when a concrete primitive is required. Every other
// pairing already shares a representation and passes through untouched.
func (l *Lowerer) coerce(want, got *types.Type, v llvm.Value) llvm.Value {
	if want == nil || got == nil || v.IsNil() {
		return v
	}
	wantBoxed := want.Optional && isPrimKind(want.Kind)
	gotBoxed := got.Optional && isPrimKind(got.Kind)
	switch {
	case wantBoxed && !gotBoxed && isPrimKind(got.Kind):
		return l.boxPrim(got.Kind, v)
	case !wantBoxed && gotBoxed && isPrimKind(want.Kind):
		return l.unboxPrim(want.Kind, v)
	default:
		return v
	}
}

func (l *Lowerer) boxPrim(k types.Kind, v llvm.Value) llvm.Value {
	switch k {
	case types.KInt:
		return l.callRT("rt_box_int", v)
	case types.KFloat:
		return l.callRT("rt_box_float", v)
	default:
		return l.callRT("rt_box_bool", v)
	}
}

func (l *Lowerer) unboxPrim(k types.Kind, v llvm.Value) llvm.Value {
	switch k {
	case types.KInt:
		return l.callRT("rt_unbox_int", v)
	case types.KFloat:
		return l.callRT("rt_unbox_float", v)
	default:
		return l.callRT("rt_unbox_bool", v)
	}
}

// blockTerminated reports whether the builder's current block already
// ends in a terminator, in which case no fall-through branch may be
// appended.
func (l *Lowerer) blockTerminated() bool {
	last := l.b.GetInsertBlock().LastInstruction()
	return !last.IsNil() && !last.IsATerminatorInst().IsNil()
}

// ptrType is the opaque-object pointer every non-scalar Tea value uses.
func (l *Lowerer) ptrType() llvm.Type { return llvm.PointerType(llvm.Int8Type(), 0) }

// teaType maps a checked *types.Type to its LLVM representation. An
// optional primitive (Int?, Float?, Bool?) is a boxed runtime object, not
// a bare scalar: nil must be representable, so the value lives behind the
// same i8* every other nullable value uses.
func (l *Lowerer) teaType(t *types.Type) llvm.Type {
	if t == nil {
		return llvm.VoidType()
	}
	if t.Optional && isPrimKind(t.Kind) {
		return l.ptrType()
	}
	switch t.Kind {
	case types.KInt:
		return llvm.Int64Type()
	case types.KFloat:
		return llvm.DoubleType()
	case types.KBool:
		return llvm.Int1Type()
	case types.KVoid:
		return llvm.VoidType()
	case types.KString, types.KList, types.KDict, types.KStruct, types.KError, types.KNil, types.KFunc:
		return l.ptrType()
	default:
		return l.ptrType()
	}
}

// Lower runs the whole pipeline: runtime declarations, every non-generic
// top-level function, every monomorphized specialization, and the
// implicit tea_main entry point built from the module's top-level
// statements.
func Lower(sink *diag.Sink, module *ast.Node, c *check.Checker, reg *mono.Registry, moduleName string) *Lowerer {
	l := New(sink, c, reg, moduleName)

	var mainBody []*ast.Node
	for _, decl := range module.Children {
		switch decl.Typ {
		case ast.FuncDecl:
			d := decl.Data.(ast.FuncData)
			if generics := decl.Children[1]; len(generics.Children) == 0 {
				l.declareFunc(d.Name, decl)
			}
		case ast.StructDecl:
			l.declareStruct(decl)
		case ast.Use, ast.EnumDecl, ast.ErrorDecl, ast.TestDecl:
			// Enums/errors carry no runtime layout of their own (tag +
			// rt_struct fields suffice); tests are a separate harness
			// entry point, not part of tea_main.
		default:
			mainBody = append(mainBody, decl)
		}
	}

	for _, decl := range module.Children {
		if decl.Typ == ast.FuncDecl {
			d := decl.Data.(ast.FuncData)
			if generics := decl.Children[1]; len(generics.Children) == 0 {
				l.lowerFuncBody(d.Name, decl)
			}
		}
	}
	for _, spec := range l.reg.Funcs {
		l.lowerSpecialization(spec)
	}

	l.lowerTeaMain(mainBody)
	return l
}

func (l *Lowerer) errTag(errName, variant string) int64 {
	key := errName + "." + variant
	if tag, ok := l.errTags[key]; ok {
		return tag
	}
	l.nextErrTag++
	l.errTags[key] = l.nextErrTag
	return l.nextErrTag
}

func mangleSpecialized(base string, typeArgs []*types.Type) string {
	s := base
	for _, a := range typeArgs {
		s += "_" + sanitizeTypeName(a)
	}
	return s
}

func sanitizeTypeName(t *types.Type) string {
	s := t.String()
	out := make([]byte, 0, len(s))
	for i1 := 0; i1 < len(s); i1++ {
		c := s[i1]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

func (l *Lowerer) errorf(format string, args ...interface{}) {
	l.sink.Report(diag.Diagnostic{
		Severity: diag.Error,
		Code:     "E0900",
		Message:  fmt.Sprintf(format, args...),
	})
}
