package check

import (
	"tea/internal/ast"
	"tea/internal/types"
)

// checkStmt type-checks one statement. expectedRet is the enclosing
// function/lambda/test's declared return type, consulted by Return; it is
// nil for contexts with no meaningful return type (top-level statements).
func (c *Checker) checkStmt(n *ast.Node, expectedRet *types.Type) {
	if n == nil {
		return
	}
	switch n.Typ {
	case ast.VarDecl, ast.ConstDecl:
		c.checkLocalDecl(n)
	case ast.If:
		c.checkIfStmt(n, expectedRet)
	case ast.Unless:
		c.checkUnlessStmt(n, expectedRet)
	case ast.While, ast.Until:
		c.checkExpr(n.Children[0])
		c.checkStmtBlock(n.Children[1], expectedRet)
	case ast.For:
		c.checkForStmt(n, expectedRet)
	case ast.Return:
		c.checkReturn(n, expectedRet)
	case ast.Throw:
		c.checkThrow(n)
	case ast.Block:
		c.checkStmtBlock(n, expectedRet)
	default:
		c.checkExpr(n)
	}
}

// checkStmtBlock checks every statement of block with no implicit
// trailing-value rule, the form used for if/while/for bodies in statement
// position.
func (c *Checker) checkStmtBlock(block *ast.Node, expectedRet *types.Type) {
	for _, s := range block.Children {
		c.checkStmt(s, expectedRet)
	}
}

func (c *Checker) checkLocalDecl(n *ast.Node) {
	d := n.Data.(ast.DeclData)
	var declared *types.Type
	if d.HasType {
		declared = c.resolveTypeRef(n.Children[0], nil, false)
	}
	var init *types.Type
	initIdx := 0
	if d.HasType {
		initIdx = 1
	}
	if initIdx < len(n.Children) {
		init = c.checkExpr(n.Children[initIdx])
	} else {
		init = types.Unknown(0)
	}

	switch {
	case declared != nil && init.Kind != types.KUnknown:
		if types.Unify(declared, init) == nil {
			c.sink.Errorf("E0333", n.Span, "declared type %s does not match initializer type %s", declared, init)
		}
		c.declTypes[n] = declared
	case declared != nil:
		c.declTypes[n] = declared
	default:
		c.declTypes[n] = init
	}
}

func (c *Checker) checkIfStmt(n *ast.Node, expectedRet *types.Type) {
	c.checkExpr(n.Children[0])
	c.checkStmtBlock(n.Children[1], expectedRet)
	if len(n.Children) < 3 {
		return
	}
	elseNode := n.Children[2]
	if elseNode.Typ == ast.If {
		c.checkIfStmt(elseNode, expectedRet)
		return
	}
	c.checkStmtBlock(elseNode, expectedRet)
}

func (c *Checker) checkUnlessStmt(n *ast.Node, expectedRet *types.Type) {
	c.checkExpr(n.Children[0])
	c.checkStmtBlock(n.Children[1], expectedRet)
}

func (c *Checker) checkForStmt(n *ast.Node, expectedRet *types.Type) {
	iterName := n.Data.(string)
	iterable := c.checkExpr(n.Children[0])
	var elemT *types.Type
	switch iterable.Kind {
	case types.KList:
		elemT = iterable.Elem
	case types.KUnknown:
		elemT = types.Unknown(0)
	default:
		c.sink.Errorf("E0334", n.Span, "cannot iterate over %s", iterable)
		elemT = types.Unknown(0)
	}
	_ = iterName
	c.declTypes[n] = elemT
	c.checkStmtBlock(n.Children[1], expectedRet)
}

func (c *Checker) checkReturn(n *ast.Node, expectedRet *types.Type) {
	var got *types.Type
	if len(n.Children) > 0 {
		got = c.checkExpr(n.Children[0])
	} else {
		got = types.Void
	}
	if expectedRet == nil {
		return
	}
	if got.Kind != types.KUnknown && types.Unify(expectedRet, got) == nil {
		c.sink.Errorf("E0334", n.Span, "return type %s does not match declared %s", got, expectedRet)
	}
}

func (c *Checker) checkThrow(n *ast.Node) {
	t := c.checkExpr(n.Children[0])
	if t.Kind != types.KError || t.Variant == "" {
		if t.Kind != types.KUnknown {
			c.sink.Errorf("E0335", n.Span, "throw requires a constructed error variant, got %s", t)
		}
		return
	}
	if !throwsContains(c.curThrows, t.Name, t.Variant) {
		c.sink.Errorf("E0336", n.Span, "%s.%s is not declared in this function's throws list", t.Name, t.Variant)
	}
}
