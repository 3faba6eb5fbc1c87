package parser

import (
	"strconv"
	"strings"

	"tea/internal/ast"
	"tea/internal/lexer"
)

// parseExpression parses a full expression at the lowest precedence level
// (assignment)'s precedence table.
func (p *Parser) parseExpression() *ast.Node {
	return p.parseAssignment()
}

var assignOps = map[lexer.Kind]string{
	lexer.Assign: "=", lexer.PlusEq: "+=", lexer.MinusEq: "-=",
	lexer.StarEq: "*=", lexer.SlashEq: "/=", lexer.PercentEq: "%=",
}

func (p *Parser) parseAssignment() *ast.Node {
	lhs := p.parseNullCoalesce()
	if op, ok := assignOps[p.cur().Kind]; ok {
		start := p.advance()
		rhs := p.parseAssignment()
		return ast.New(ast.Binary, p.spanFrom(start), op, lhs, rhs)
	}
	return lhs
}

func (p *Parser) parseNullCoalesce() *ast.Node {
	lhs := p.parseOr()
	for p.at(lexer.DQuestion) {
		start := p.advance()
		rhs := p.parseOr()
		lhs = ast.New(ast.Binary, p.spanFrom(start), "??", lhs, rhs)
	}
	return lhs
}

func (p *Parser) parseOr() *ast.Node {
	lhs := p.parseAnd()
	for p.at(lexer.KwOr) {
		start := p.advance()
		rhs := p.parseAnd()
		lhs = ast.New(ast.Binary, p.spanFrom(start), "or", lhs, rhs)
	}
	return lhs
}

func (p *Parser) parseAnd() *ast.Node {
	lhs := p.parseComparison()
	for p.at(lexer.KwAnd) {
		start := p.advance()
		rhs := p.parseComparison()
		lhs = ast.New(ast.Binary, p.spanFrom(start), "and", lhs, rhs)
	}
	return lhs
}

var comparisonOps = map[lexer.Kind]string{
	lexer.EqEq: "==", lexer.NotEq: "!=", lexer.Lt: "<", lexer.LtEq: "<=",
	lexer.Gt: ">", lexer.GtEq: ">=", lexer.KwIn: "in",
}

func (p *Parser) parseComparison() *ast.Node {
	lhs := p.parseRange()
	for {
		op, ok := comparisonOps[p.cur().Kind]
		if !ok {
			return lhs
		}
		start := p.advance()
		rhs := p.parseRange()
		lhs = ast.New(ast.Binary, p.spanFrom(start), op, lhs, rhs)
	}
}

func (p *Parser) parseRange() *ast.Node {
	lhs := p.parseAddSub()
	if p.at(lexer.DotDot) {
		start := p.advance()
		rhs := p.parseAddSub()
		return ast.New(ast.Range, p.spanFrom(start), nil, lhs, rhs)
	}
	return lhs
}

func (p *Parser) parseAddSub() *ast.Node {
	lhs := p.parseMulDiv()
	for p.atAny(lexer.Plus, lexer.Minus) {
		op := "+"
		if p.at(lexer.Minus) {
			op = "-"
		}
		start := p.advance()
		rhs := p.parseMulDiv()
		lhs = ast.New(ast.Binary, p.spanFrom(start), op, lhs, rhs)
	}
	return lhs
}

var mulDivOps = map[lexer.Kind]string{lexer.Star: "*", lexer.Slash: "/", lexer.Percent: "%"}

func (p *Parser) parseMulDiv() *ast.Node {
	lhs := p.parseUnary()
	for {
		op, ok := mulDivOps[p.cur().Kind]
		if !ok {
			return lhs
		}
		start := p.advance()
		rhs := p.parseUnary()
		lhs = ast.New(ast.Binary, p.spanFrom(start), op, lhs, rhs)
	}
}

func (p *Parser) parseUnary() *ast.Node {
	if p.atAny(lexer.KwNot, lexer.Minus) {
		op := "not"
		if p.at(lexer.Minus) {
			op = "-"
		}
		start := p.advance()
		operand := p.parseUnary()
		return ast.New(ast.Unary, p.spanFrom(start), op, operand)
	}
	return p.parsePostfix()
}

// parsePostfix parses a primary expression followed by any chain of call,
// member-access and index-access suffixes, and the catch-expr suffix.
func (p *Parser) parsePostfix() *ast.Node {
	start := p.cur()
	n := p.parsePrimary()
	for {
		switch p.cur().Kind {
		case lexer.LParen:
			p.advance()
			args := p.parseArgs()
			p.expect(lexer.RParen)
			n = ast.New(ast.Call, p.spanFrom(start), nil, append([]*ast.Node{n}, args...)...)
		case lexer.Dot:
			p.advance()
			name := p.expect(lexer.Ident).Lexeme
			n = ast.New(ast.Member, p.spanFrom(start), name, n)
		case lexer.LBracket:
			p.advance()
			idx := p.parseExpression()
			p.expect(lexer.RBracket)
			n = ast.New(ast.Index, p.spanFrom(start), nil, n, idx)
		case lexer.KwCatch:
			p.advance()
			n = p.parseCatch(start, n)
		default:
			return n
		}
	}
}

func (p *Parser) parseArgs() []*ast.Node {
	var args []*ast.Node
	for !p.at(lexer.RParen) && !p.at(lexer.EOF) {
		start := p.cur()
		name := ""
		if p.at(lexer.Ident) && p.peekNextIsColonArg() {
			name = p.advance().Lexeme
			p.advance() // ':'
		}
		val := p.parseExpression()
		args = append(args, ast.New(ast.FieldInit, p.spanFrom(start), ast.ArgData{Name: name}, val))
		if p.at(lexer.Comma) {
			p.advance()
		}
	}
	return args
}

// peekNextIsColonArg reports whether the token after the current Ident is a
// Colon, distinguishing "name: expr" keyword arguments from a bare
// expression starting with an identifier.
func (p *Parser) peekNextIsColonArg() bool {
	if p.pos+1 >= len(p.toks) {
		return false
	}
	return p.toks[p.pos+1].Kind == lexer.Colon
}

// parseCatch parses the "catch err \n case is E.V \n ... end" suffix that
// follows a throwing call expression.
func (p *Parser) parseCatch(start lexer.Token, try *ast.Node) *ast.Node {
	binder := ""
	if p.at(lexer.Ident) {
		binder = p.advance().Lexeme
	}
	p.skipNewlines()
	var cases []*ast.Node
	for p.at(lexer.KwCase) {
		cstart := p.advance()
		if p.at(lexer.Ident) && p.cur().Lexeme == "_" {
			p.advance()
			p.skipNewlines()
			body := p.parseBlockUntil(lexer.KwCase, lexer.KwEnd)
			cases = append(cases, ast.New(ast.CatchCase, p.spanFrom(cstart), [2]string{"_", "_"}, body))
			p.skipNewlines()
			continue
		}
		p.expect(lexer.KwIs)
		errName := p.expect(lexer.Ident).Lexeme
		p.expect(lexer.Dot)
		variant := p.expect(lexer.Ident).Lexeme
		p.skipNewlines()
		body := p.parseBlockUntil(lexer.KwCase, lexer.KwEnd)
		cases = append(cases, ast.New(ast.CatchCase, p.spanFrom(cstart), [2]string{errName, variant}, body))
		p.skipNewlines()
	}
	p.expect(lexer.KwEnd)
	return ast.New(ast.CatchExpr, p.spanFrom(start), binder, append([]*ast.Node{try}, cases...)...)
}

func (p *Parser) parsePrimary() *ast.Node {
	start := p.cur()
	switch p.cur().Kind {
	case lexer.IntLit:
		t := p.advance()
		v, _ := strconv.ParseInt(strings.ReplaceAll(t.Lexeme, "_", ""), 10, 64)
		return ast.New(ast.Literal, p.span(t), v)
	case lexer.FloatLit:
		t := p.advance()
		v, _ := strconv.ParseFloat(strings.ReplaceAll(t.Lexeme, "_", ""), 64)
		return ast.New(ast.Literal, p.span(t), v)
	case lexer.StringLit:
		t := p.advance()
		return ast.New(ast.Literal, p.span(t), unescape(t.Lexeme))
	case lexer.BoolLit:
		t := p.advance()
		return ast.New(ast.Literal, p.span(t), t.Lexeme == "true")
	case lexer.NilLit:
		t := p.advance()
		return ast.New(ast.Literal, p.span(t), nil)
	case lexer.Ident:
		t := p.advance()
		id := ast.New(ast.Ident, p.span(t), t.Lexeme)
		if p.at(lexer.LBracket) && p.looksLikeTypeArgs() {
			// Explicit generic instantiation at a call site: id[T1, T2](...)
			p.advance()
			var targs []*ast.Node
			for !p.at(lexer.RBracket) && !p.at(lexer.EOF) {
				targs = append(targs, p.parseTypeRef())
				if p.at(lexer.Comma) {
					p.advance()
				}
			}
			p.expect(lexer.RBracket)
			return ast.New(ast.Ident, p.spanFrom(start), t.Lexeme, targs...)
		}
		return id
	case lexer.At:
		p.advance()
		name := p.expect(lexer.Ident).Lexeme
		p.expect(lexer.LParen)
		args := p.parseArgs()
		p.expect(lexer.RParen)
		return ast.New(ast.Call, p.spanFrom(start), ast.IntrinsicData{Name: name}, args...)
	case lexer.LParen:
		p.advance()
		e := p.parseExpression()
		p.expect(lexer.RParen)
		return e
	case lexer.LBracket:
		return p.parseListLit()
	case lexer.LBrace:
		return p.parseDictLit()
	case lexer.Pipe:
		return p.parseLambda()
	case lexer.TStrOpen:
		return p.parseTemplateString()
	case lexer.KwCase:
		return p.parseCase()
	case lexer.KwIf:
		// `if` doubles as an expression when both its branches yield a
		// value; parseIf builds the same If node used for
		// if-statements, and the type checker decides which role applies.
		return p.parseIf()
	default:
		p.errorf("E0102", "unexpected token %s in expression", p.cur().Kind)
		p.advance()
		return ast.New(ast.Literal, p.span(start), nil)
	}
}

// looksLikeTypeArgs heuristically distinguishes `id[T](...)` generic
// instantiation from `id[expr]` indexing by requiring the bracketed list to
// contain only type-syntax tokens (identifiers, commas, nested brackets,
// braces and colons) and be followed directly by '('.
func (p *Parser) looksLikeTypeArgs() bool {
	depth := 0
	for i1 := p.pos; i1 < len(p.toks); i1++ {
		switch p.toks[i1].Kind {
		case lexer.LBracket:
			depth++
		case lexer.RBracket:
			depth--
			if depth == 0 {
				return i1+1 < len(p.toks) && p.toks[i1+1].Kind == lexer.LParen
			}
		case lexer.Ident, lexer.Comma, lexer.LBrace, lexer.RBrace, lexer.Colon:
			// Permitted inside a type argument list.
		default:
			return false
		}
	}
	return false
}

func (p *Parser) parseListLit() *ast.Node {
	start := p.advance() // '['
	p.skipNewlines()
	var items []*ast.Node
	for !p.at(lexer.RBracket) && !p.at(lexer.EOF) {
		items = append(items, p.parseExpression())
		if p.at(lexer.Comma) {
			p.advance()
			p.skipNewlines()
		}
	}
	p.expect(lexer.RBracket)
	return ast.New(ast.ListLit, p.spanFrom(start), nil, items...)
}

func (p *Parser) parseDictLit() *ast.Node {
	start := p.advance() // '{'
	p.skipNewlines()
	var entries []*ast.Node
	// Disambiguate struct literal `Name { field: val }` is handled at call
	// sites via Call on an Ident; a bare `{ ... }` is always a dict here.
	for !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
		estart := p.cur()
		key := p.parseExpression()
		p.expect(lexer.Colon)
		val := p.parseExpression()
		entries = append(entries, ast.New(ast.DictEntry, p.spanFrom(estart), nil, key, val))
		if p.at(lexer.Comma) {
			p.advance()
			p.skipNewlines()
		}
	}
	p.expect(lexer.RBrace)
	return ast.New(ast.DictLit, p.spanFrom(start), nil, entries...)
}

func (p *Parser) parseLambda() *ast.Node {
	start := p.advance() // '|'
	var params []*ast.Node
	for !p.at(lexer.Pipe) && !p.at(lexer.EOF) {
		pstart := p.cur()
		name := p.expect(lexer.Ident).Lexeme
		p.expect(lexer.Colon)
		typ := p.parseTypeRef()
		params = append(params, ast.New(ast.Param, p.spanFrom(pstart), name, typ))
		if p.at(lexer.Comma) {
			p.advance()
		}
	}
	p.expect(lexer.Pipe)
	p.expect(lexer.FatArrow)
	paramList := ast.New(ast.ParamList, p.spanFrom(start), nil, params...)
	if p.at(lexer.LBrace) {
		p.advance()
		p.skipNewlines()
		body := p.parseBlockUntil(lexer.RBrace)
		p.expect(lexer.RBrace)
		return ast.New(ast.Lambda, p.spanFrom(start), nil, paramList, body)
	}
	expr := p.parseExpression()
	return ast.New(ast.Lambda, p.spanFrom(start), nil, paramList, expr)
}

// parseTemplateString parses a backtick template string: an open token,
// alternating text chunks and interpolated expressions, and a close token.
func (p *Parser) parseTemplateString() *ast.Node {
	start := p.advance() // TStrOpen
	var parts []*ast.Node
	for !p.at(lexer.TStrClose) && !p.at(lexer.EOF) {
		switch p.cur().Kind {
		case lexer.TStrChunk:
			t := p.advance()
			parts = append(parts, ast.New(ast.TemplateChunk, p.span(t), unescape(t.Lexeme)))
		case lexer.TStrInterpOpen:
			p.advance()
			e := p.parseExpression()
			p.expect(lexer.TStrInterpClose)
			parts = append(parts, e)
		default:
			p.errorf("E0103", "malformed template string")
			p.advance()
		}
	}
	p.expect(lexer.TStrClose)
	return ast.New(ast.TemplateString, p.spanFrom(start), nil, parts...)
}

// parseCase parses a standalone "case expr \n case val1 \n body \n case _ \n
// body \n end" match expression.
func (p *Parser) parseCase() *ast.Node {
	start := p.advance() // 'case'
	subject := p.parseExpression()
	p.skipNewlines()
	var arms []*ast.Node
	for p.at(lexer.KwCase) {
		astart := p.advance()
		var pattern *ast.Node
		if p.at(lexer.Ident) && p.cur().Lexeme == "_" {
			p.advance()
			pattern = nil
		} else {
			pattern = p.parseExpression()
		}
		p.skipNewlines()
		body := p.parseBlockUntil(lexer.KwCase, lexer.KwEnd)
		kids := []*ast.Node{}
		if pattern != nil {
			kids = append(kids, pattern)
		}
		kids = append(kids, body)
		arms = append(arms, ast.New(ast.CaseArm, p.spanFrom(astart), pattern == nil, kids...))
		p.skipNewlines()
	}
	p.expect(lexer.KwEnd)
	return ast.New(ast.Case, p.spanFrom(start), nil, append([]*ast.Node{subject}, arms...)...)
}

// unescape resolves the standard backslash escapes in a lexeme, first
// stripping the surrounding '"' or '`' delimiters when the lexeme has them.
func unescape(lexeme string) string {
	s := lexeme
	if len(s) >= 2 && (s[0] == '"' || s[0] == '`') {
		s = s[1 : len(s)-1]
	}
	var b strings.Builder
	for i1 := 0; i1 < len(s); i1++ {
		if s[i1] == '\\' && i1+1 < len(s) {
			i1++
			switch s[i1] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			case '`':
				b.WriteByte('`')
			default:
				b.WriteByte(s[i1])
			}
			continue
		}
		b.WriteByte(s[i1])
	}
	return b.String()
}
