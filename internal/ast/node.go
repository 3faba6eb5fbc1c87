// Package ast defines the Tea abstract syntax tree: a single Node struct
// tagged by a NodeType enum with a Data payload and a Children slice.
// Nodes are immutable once the parser returns them; later phases attach
// side tables keyed by node identity rather than mutating nodes directly.
package ast

import (
	"fmt"

	"tea/internal/sourcemap"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// NodeType differentiates the kinds of node held in the syntax tree.
type NodeType int

// ID is a process-unique identity assigned to every Node at construction,
// used as the key into the resolver's and type checker's side tables so
// that phases never need pointer identity on *Node to stay stable across
// the module's lifetime (several phases pass nodes by value internally).
type ID uint32

// Node is the single representation for every AST construct: declarations,
// statements and expressions alike. Which fields are meaningful is
// determined by Typ; data.go defines the typed payloads carried in Data
// and documents the child layout of the structured node types.
type Node struct {
	ID       ID
	Typ      NodeType
	Span     sourcemap.Span
	Data     interface{} // Literal value, identifier name, operator, etc.
	Children []*Node
	Doc      string // Attached ## doc comment trivia, if any.
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	// Top level.
	Module NodeType = iota
	Use
	VarDecl
	ConstDecl
	FuncDecl
	GenericParamList
	ParamList
	Param
	ThrowsList
	StructDecl
	EnumDecl
	ErrorDecl
	ErrorVariant
	Field
	TestDecl

	// Statements / blocks.
	Block
	If
	Unless
	While
	Until
	For
	Return
	Throw

	// Expressions.
	Literal
	Ident
	Binary
	Unary
	Call
	Member
	Index
	Lambda
	ListLit
	DictLit
	DictEntry
	StructLit
	FieldInit
	TemplateString
	TemplateChunk
	CatchExpr
	CatchCase
	Case
	CaseArm
	Range

	// Type annotations (parsed, consumed by the type checker).
	TypeRef
)

// nt names every NodeType for diagnostics and debug printing.
var nt = [...]string{
	"Module", "Use", "VarDecl", "ConstDecl", "FuncDecl", "GenericParamList",
	"ParamList", "Param", "ThrowsList", "StructDecl", "EnumDecl", "ErrorDecl",
	"ErrorVariant", "Field", "TestDecl",
	"Block", "If", "Unless", "While", "Until", "For", "Return", "Throw",
	"Literal", "Ident", "Binary", "Unary", "Call", "Member", "Index",
	"Lambda", "ListLit", "DictLit", "DictEntry", "StructLit", "FieldInit",
	"TemplateString", "TemplateChunk", "CatchExpr", "CatchCase", "Case",
	"CaseArm", "Range",
	"TypeRef",
}

// String returns the node type's name, or a placeholder if out of range.
func (t NodeType) String() string {
	if int(t) < 0 || int(t) >= len(nt) {
		return fmt.Sprintf("NodeType(%d)", t)
	}
	return nt[t]
}

// -------------------
// ----- Globals -----
// -------------------

// nextID hands out Node identities. The lexer/parser run single-threaded
// per module, so a plain counter suffices.
var nextID ID

// ---------------------
// ----- Functions -----
// ---------------------

// New allocates a Node of the given type at span with the given children.
func New(typ NodeType, span sourcemap.Span, data interface{}, children ...*Node) *Node {
	nextID++
	return &Node{ID: nextID, Typ: typ, Span: span, Data: data, Children: children}
}

// String gives a print-friendly one-line summary, used in test failure
// messages and by Print.
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	if n.Data != nil {
		return fmt.Sprintf("%s(%v)", n.Typ, n.Data)
	}
	return n.Typ.String()
}

// Print writes an indented tree dump of n and its descendants to stdout,
// for debugging.
func (n *Node) Print(depth int, last bool) {
	for i1 := 0; i1 < depth; i1++ {
		fmt.Print("  ")
	}
	fmt.Println(n.String())
	for i1, c := range n.Children {
		if c != nil {
			c.Print(depth+1, i1 == len(n.Children)-1)
		}
	}
}
