package lower

import "tinygo.org/x/go-llvm"

// declareRuntime declares every runtime-support symbol the lowered code
// may call as an external function. Tea links against its own small
// runtime rather than libc directly; the symbols resolve at link time
// against the runtime static library.
func (l *Lowerer) declareRuntime() {
	i8p := l.ptrType()
	i64 := llvm.Int64Type()
	f64 := llvm.DoubleType()
	voidT := llvm.VoidType()

	decl := func(name string, ret llvm.Type, params ...llvm.Type) {
		ftyp := llvm.FunctionType(ret, params, false)
		l.rt[name] = llvm.AddFunction(l.mod, name, ftyp)
	}

	decl("rt_string_from_cstr", i8p, i8p)
	decl("rt_string_concat", i8p, i8p, i8p)
	decl("rt_string_eq", llvm.Int1Type(), i8p, i8p)
	decl("rt_string_len", i64, i8p)
	decl("rt_int_to_string", i8p, i64)
	decl("rt_float_to_string", i8p, f64)
	decl("rt_string_index", i8p, i8p, i64)

	decl("rt_cell_new", i8p, i8p)
	decl("rt_cell_get", i8p, i8p)
	decl("rt_cell_set", voidT, i8p, i8p)

	decl("rt_list_new", i8p)
	decl("rt_list_push", voidT, i8p, i8p)
	decl("rt_list_get", i8p, i8p, i64)
	decl("rt_list_set", voidT, i8p, i64, i8p)
	decl("rt_list_len", i64, i8p)

	decl("rt_dict_new", i8p)
	decl("rt_dict_set", voidT, i8p, i8p, i8p)
	decl("rt_dict_get", i8p, i8p, i8p)
	decl("rt_dict_has", llvm.Int1Type(), i8p, i8p)

	decl("rt_struct_alloc", i8p, i64) // field count.
	decl("rt_struct_get_field", i8p, i8p, i64)
	decl("rt_struct_set_field", voidT, i8p, i64, i8p)

	decl("rt_box_int", i8p, i64)
	decl("rt_box_float", i8p, f64)
	decl("rt_box_bool", i8p, llvm.Int1Type())
	decl("rt_unbox_int", i64, i8p)
	decl("rt_unbox_float", f64, i8p)
	decl("rt_unbox_bool", llvm.Int1Type(), i8p)

	decl("rt_closure_alloc", i8p, i64) // captured-variable count.
	decl("rt_closure_set_capture", voidT, i8p, i64, i8p)
	decl("rt_closure_get_capture", i8p, i8p, i64)

	decl("rt_list_has", llvm.Int1Type(), i8p, i8p)
	decl("rt_dict_len", i64, i8p)
	decl("rt_parse_int", i64, i8p)

	decl("rt_panic", voidT, i8p)
	decl("rt_print", voidT, i8p)
	decl("rt_println", voidT, i8p)
}

// callRT emits a call to a runtime symbol declared by declareRuntime.
func (l *Lowerer) callRT(name string, args ...llvm.Value) llvm.Value {
	fn, ok := l.rt[name]
	if !ok {
		l.errorf("internal: unknown runtime symbol %q", name)
		return llvm.Value{}
	}
	return l.b.CreateCall(fn, args, "")
}
