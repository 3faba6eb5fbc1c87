package ast

// This file collects every typed Data payload a Node can carry, so that
// the parser (which constructs nodes) and every later phase (which reads
// them back out of Data) agree on one concrete Go type per NodeType. A
// node's Data field is `interface{}`; Go type assertions require an exact
// dynamic type match, so these shapes must live in one shared package
// rather than being redeclared per-consumer.

// UseData is the Data payload of a Use node: [alias, path].
type UseData = [2]string

// DeclData is the Data payload of VarDecl and ConstDecl nodes.
type DeclData struct {
	Name    string
	Pub     bool
	HasType bool
}

// FuncData is the Data payload of a FuncDecl node. Children are, in order:
// ParamList, GenericParamList, return TypeRef, ThrowsList, Block.
type FuncData struct {
	Name string
	Pub  bool
}

// StructData is the Data payload of StructDecl, EnumDecl and ErrorDecl
// nodes (the latter two leave Generics empty).
type StructData struct {
	Name     string
	Pub      bool
	Generics []string
}

// TypeRefData is the Data payload of a TypeRef node.
type TypeRefData struct {
	Name     string
	Optional bool
}

// ArgData labels a Call argument (held in a FieldInit child) as positional
// ("" Name) or a named/keyword argument.
type ArgData struct {
	Name string
}

// IntrinsicData is the Data payload of a Call node invoking @name(...).
type IntrinsicData struct {
	Name string
}

// ErrorRefData names one declared error variant referenced in a throws
// list or a throw expression target, e.g. "E.NotFound".
type ErrorRefData = [2]string

// CatchCaseData names the error type and variant (or "_","_" for a
// catch-all) a CatchCase node handles.
type CatchCaseData = [2]string
