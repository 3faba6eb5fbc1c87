package parser

import (
	"tea/internal/ast"
	"tea/internal/lexer"
)

// parseBlockUntil parses statements until the current token is one of the
// stop kinds (not consumed), skipping blank lines between statements.
func (p *Parser) parseBlockUntil(stop ...lexer.Kind) *ast.Node {
	start := p.cur()
	var stmts []*ast.Node
	p.skipNewlines()
	for !p.at(lexer.EOF) && !p.atAny(stop...) {
		n := p.parseStatement()
		if n != nil {
			stmts = append(stmts, n)
		}
		p.skipNewlines()
	}
	return ast.New(ast.Block, p.spanFrom(start), nil, stmts...)
}

// parseStatement parses one statement, terminated by a significant
// newline or the 'end' that closes its enclosing block.
func (p *Parser) parseStatement() *ast.Node {
	switch p.cur().Kind {
	case lexer.KwVar:
		return p.parseVarDecl(false)
	case lexer.KwConst:
		return p.parseConstDecl(false)
	case lexer.KwIf:
		return p.parseIf()
	case lexer.KwUnless:
		return p.parseUnless()
	case lexer.KwWhile:
		return p.parseWhile()
	case lexer.KwUntil:
		return p.parseUntilStmt()
	case lexer.KwFor:
		return p.parseFor()
	case lexer.KwReturn:
		return p.parseReturn()
	case lexer.KwThrow:
		return p.parseThrow()
	default:
		expr := p.parseExpression()
		if expr == nil {
			p.resync()
			return nil
		}
		return expr
	}
}

func (p *Parser) parseIf() *ast.Node {
	start := p.advance() // 'if'
	cond := p.parseExpression()
	p.skipNewlines()
	then := p.parseBlockUntil(lexer.KwElse, lexer.KwEnd)
	var els *ast.Node
	if p.at(lexer.KwElse) {
		p.advance()
		if p.at(lexer.KwIf) {
			els = p.parseIf()
			return ast.New(ast.If, p.spanFrom(start), nil, cond, then, els)
		}
		p.skipNewlines()
		els = p.parseBlockUntil(lexer.KwEnd)
	}
	p.expect(lexer.KwEnd)
	kids := []*ast.Node{cond, then}
	if els != nil {
		kids = append(kids, els)
	}
	return ast.New(ast.If, p.spanFrom(start), nil, kids...)
}

func (p *Parser) parseUnless() *ast.Node {
	start := p.advance() // 'unless'
	cond := p.parseExpression()
	p.skipNewlines()
	body := p.parseBlockUntil(lexer.KwEnd)
	p.expect(lexer.KwEnd)
	return ast.New(ast.Unless, p.spanFrom(start), nil, cond, body)
}

func (p *Parser) parseWhile() *ast.Node {
	start := p.advance() // 'while'
	cond := p.parseExpression()
	p.skipNewlines()
	body := p.parseBlockUntil(lexer.KwEnd)
	p.expect(lexer.KwEnd)
	return ast.New(ast.While, p.spanFrom(start), nil, cond, body)
}

func (p *Parser) parseUntilStmt() *ast.Node {
	start := p.advance() // 'until'
	cond := p.parseExpression()
	p.skipNewlines()
	body := p.parseBlockUntil(lexer.KwEnd)
	p.expect(lexer.KwEnd)
	return ast.New(ast.Until, p.spanFrom(start), nil, cond, body)
}

func (p *Parser) parseFor() *ast.Node {
	start := p.advance() // 'for'
	name := p.expect(lexer.Ident).Lexeme
	p.expect(lexer.KwOf)
	iter := p.parseExpression()
	p.skipNewlines()
	body := p.parseBlockUntil(lexer.KwEnd)
	p.expect(lexer.KwEnd)
	return ast.New(ast.For, p.spanFrom(start), name, iter, body)
}

func (p *Parser) parseReturn() *ast.Node {
	start := p.advance() // 'return'
	if p.atAny(lexer.Newline, lexer.KwEnd, lexer.EOF) {
		return ast.New(ast.Return, p.spanFrom(start), nil)
	}
	val := p.parseExpression()
	return ast.New(ast.Return, p.spanFrom(start), nil, val)
}

func (p *Parser) parseThrow() *ast.Node {
	start := p.advance() // 'throw'
	val := p.parseExpression()
	return ast.New(ast.Throw, p.spanFrom(start), nil, val)
}
