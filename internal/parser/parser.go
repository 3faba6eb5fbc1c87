// Package parser implements Tea's recursive-descent parser. Statements
// and declarations are parsed by dedicated productions; expressions use
// Pratt-style precedence climbing rather than a generated LALR table,
// which keeps error recovery and the significant-newline rules in one
// place. Every node carries the span of the tokens that produced it.
package parser

import (
	"tea/internal/ast"
	"tea/internal/diag"
	"tea/internal/lexer"
	"tea/internal/sourcemap"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Parser holds the token stream for a single file and the diagnostic sink
// shared across the whole compilation.
type Parser struct {
	file sourcemap.FileID
	toks []lexer.Token
	pos  int
	sink *diag.Sink
	docs map[int]string // filtered-token index -> attached doc comment text.
}

// ---------------------
// ----- Functions -----
// ---------------------

// Parse scans and parses src (registered as file) into a Module node. It
// never returns a nil node: on unrecoverable grammar errors it still
// returns the partial tree built so far, with diagnostics reported into
// sink; after a syntax error parsing carries on with the following tokens
// rather than aborting the file.
func Parse(file sourcemap.FileID, src string, sink *diag.Sink) *ast.Node {
	toks := lexer.Scan(file, src, sink)
	filtered := make([]lexer.Token, 0, len(toks))
	docs := make(map[int]string)
	var pending string
	for _, t := range toks {
		if t.Kind == lexer.Comment_ {
			if pending != "" {
				pending += "\n"
			}
			pending += t.Lexeme
			continue
		}
		if pending != "" && t.Kind != lexer.Newline {
			docs[len(filtered)] = pending
			pending = ""
		}
		filtered = append(filtered, t)
	}
	p := &Parser{file: file, toks: filtered, sink: sink, docs: docs}
	return p.parseModule()
}

// --------------------------
// ----- Token plumbing -----
// --------------------------

func (p *Parser) cur() lexer.Token {
	if p.pos >= len(p.toks) {
		return lexer.Token{Kind: lexer.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) at(k lexer.Kind) bool { return p.cur().Kind == k }

func (p *Parser) atAny(ks ...lexer.Kind) bool {
	c := p.cur().Kind
	for _, k := range ks {
		if c == k {
			return true
		}
	}
	return false
}

func (p *Parser) advance() lexer.Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *Parser) span(t lexer.Token) sourcemap.Span {
	return sourcemap.Span{File: p.file, Start: t.Start, End: t.End}
}

func (p *Parser) spanFrom(start lexer.Token) sourcemap.Span {
	end := start
	if p.pos > 0 {
		end = p.toks[p.pos-1]
	}
	return sourcemap.Span{File: p.file, Start: start.Start, End: end.End}
}

// expect consumes the current token if it matches k, otherwise reports a
// syntax diagnostic and returns the current token without consuming it.
func (p *Parser) expect(k lexer.Kind) lexer.Token {
	if p.at(k) {
		return p.advance()
	}
	p.errorf("E0100", "expected %s, got %s", k, p.cur().Kind)
	return p.cur()
}

func (p *Parser) errorf(code, format string, args ...interface{}) {
	p.sink.Errorf(code, p.span(p.cur()), format, args...)
}

// skipNewlines consumes zero or more Newline tokens, used liberally
// between list elements and around block delimiters since blank lines are
// not significant there.
func (p *Parser) skipNewlines() {
	for p.at(lexer.Newline) {
		p.advance()
	}
}

// resync skips tokens until a Newline, 'end' or EOF, used to recover from a
// malformed statement without losing the rest of the file.
func (p *Parser) resync() {
	for !p.atAny(lexer.Newline, lexer.KwEnd, lexer.EOF) {
		p.advance()
	}
	p.skipNewlines()
}

// -----------------------
// ----- Module/decls -----
// -----------------------

func (p *Parser) parseModule() *ast.Node {
	start := p.cur()
	p.skipNewlines()
	children := make([]*ast.Node, 0, 16)
	for !p.at(lexer.EOF) {
		n := p.parseTopLevel()
		if n != nil {
			children = append(children, n)
		}
		p.skipNewlines()
	}
	mod := ast.New(ast.Module, p.spanFrom(start), nil, children...)
	return mod
}

func (p *Parser) parseTopLevel() *ast.Node {
	doc := p.takeDoc()
	var n *ast.Node
	pub := false
	if p.at(lexer.KwPub) {
		pub = true
		p.advance()
	}
	switch p.cur().Kind {
	case lexer.KwUse:
		n = p.parseUse()
	case lexer.KwVar:
		n = p.parseVarDecl(pub)
	case lexer.KwConst:
		n = p.parseConstDecl(pub)
	case lexer.KwDef:
		n = p.parseFuncDecl(pub)
	case lexer.KwStruct:
		n = p.parseStructDecl(pub)
	case lexer.KwEnum:
		n = p.parseEnumDecl(pub)
	case lexer.KwError:
		n = p.parseErrorDecl(pub)
	case lexer.KwTest:
		n = p.parseTestDecl()
	default:
		// Top-level executable statements are allowed; the main source
		// file's top-level block becomes tea_main.
		n = p.parseStatement()
	}
	if n != nil {
		n.Doc = doc
	}
	return n
}

func (p *Parser) takeDoc() string {
	return p.docs[p.pos]
}

func (p *Parser) parseUse() *ast.Node {
	start := p.advance() // 'use'
	alias := p.expect(lexer.Ident).Lexeme
	p.expect(lexer.Assign)
	path := unescape(p.expect(lexer.StringLit).Lexeme)
	return ast.New(ast.Use, p.spanFrom(start), [2]string{alias, path})
}

func (p *Parser) parseTypeRef() *ast.Node {
	start := p.cur()
	switch {
	case p.at(lexer.Ident):
		name := p.advance().Lexeme
		var args []*ast.Node
		if p.at(lexer.LBracket) {
			p.advance()
			for !p.at(lexer.RBracket) && !p.at(lexer.EOF) {
				args = append(args, p.parseTypeRef())
				if p.at(lexer.Comma) {
					p.advance()
				}
			}
			p.expect(lexer.RBracket)
		}
		optional := false
		if p.at(lexer.Question) {
			p.advance()
			optional = true
		}
		return ast.New(ast.TypeRef, p.spanFrom(start), ast.TypeRefData{Name: name, Optional: optional}, args...)
	case p.at(lexer.LBracket):
		// List(T): [T]
		p.advance()
		elem := p.parseTypeRef()
		p.expect(lexer.RBracket)
		return ast.New(ast.TypeRef, p.spanFrom(start), ast.TypeRefData{Name: "List"}, elem)
	case p.at(lexer.LBrace):
		// Dict(K, V): {K: V}
		p.advance()
		key := p.parseTypeRef()
		p.expect(lexer.Colon)
		val := p.parseTypeRef()
		p.expect(lexer.RBrace)
		return ast.New(ast.TypeRef, p.spanFrom(start), ast.TypeRefData{Name: "Dict"}, key, val)
	default:
		p.errorf("E0101", "expected a type, got %s", p.cur().Kind)
		p.advance()
		return ast.New(ast.TypeRef, p.span(start), ast.TypeRefData{Name: "Unknown"})
	}
}

func (p *Parser) parseVarDecl(pub bool) *ast.Node {
	start := p.advance() // 'var'
	name := p.expect(lexer.Ident).Lexeme
	var typ *ast.Node
	if p.at(lexer.Colon) {
		p.advance()
		typ = p.parseTypeRef()
	}
	var init *ast.Node
	if p.at(lexer.Assign) {
		p.advance()
		init = p.parseExpression()
	}
	kids := []*ast.Node{}
	if typ != nil {
		kids = append(kids, typ)
	}
	if init != nil {
		kids = append(kids, init)
	}
	return ast.New(ast.VarDecl, p.spanFrom(start), ast.DeclData{Name: name, Pub: pub, HasType: typ != nil}, kids...)
}

func (p *Parser) parseConstDecl(pub bool) *ast.Node {
	start := p.advance() // 'const'
	name := p.expect(lexer.Ident).Lexeme
	var typ *ast.Node
	if p.at(lexer.Colon) {
		p.advance()
		typ = p.parseTypeRef()
	}
	p.expect(lexer.Assign)
	init := p.parseExpression()
	kids := []*ast.Node{}
	if typ != nil {
		kids = append(kids, typ)
	}
	kids = append(kids, init)
	return ast.New(ast.ConstDecl, p.spanFrom(start), ast.DeclData{Name: name, Pub: pub, HasType: typ != nil}, kids...)
}

func (p *Parser) parseFuncDecl(pub bool) *ast.Node {
	start := p.advance() // 'def'
	name := p.expect(lexer.Ident).Lexeme

	var generics *ast.Node
	if p.at(lexer.LBracket) {
		gstart := p.advance()
		var names []*ast.Node
		for !p.at(lexer.RBracket) && !p.at(lexer.EOF) {
			id := p.expect(lexer.Ident)
			names = append(names, ast.New(ast.Param, p.span(id), id.Lexeme))
			if p.at(lexer.Comma) {
				p.advance()
			}
		}
		p.expect(lexer.RBracket)
		generics = ast.New(ast.GenericParamList, p.spanFrom(gstart), nil, names...)
	}

	p.expect(lexer.LParen)
	var params []*ast.Node
	for !p.at(lexer.RParen) && !p.at(lexer.EOF) {
		pstart := p.cur()
		pname := p.expect(lexer.Ident).Lexeme
		p.expect(lexer.Colon)
		ptyp := p.parseTypeRef()
		params = append(params, ast.New(ast.Param, p.spanFrom(pstart), pname, ptyp))
		if p.at(lexer.Comma) {
			p.advance()
		}
	}
	p.expect(lexer.RParen)
	paramList := ast.New(ast.ParamList, p.spanFrom(start), nil, params...)

	var ret *ast.Node
	if p.at(lexer.Arrow) {
		p.advance()
		ret = p.parseTypeRef()
	}

	var throws *ast.Node
	if p.at(lexer.Bang) {
		tstart := p.advance()
		var variants []*ast.Node
		for {
			vstart := p.cur()
			errName := p.expect(lexer.Ident).Lexeme
			p.expect(lexer.Dot)
			variant := p.expect(lexer.Ident).Lexeme
			variants = append(variants, ast.New(ast.Ident, p.spanFrom(vstart), [2]string{errName, variant}))
			if p.at(lexer.Comma) {
				p.advance()
				continue
			}
			break
		}
		throws = ast.New(ast.ThrowsList, p.spanFrom(tstart), nil, variants...)
	}

	p.skipNewlines()
	body := p.parseBlockUntil(lexer.KwEnd)
	p.expect(lexer.KwEnd)

	kids := []*ast.Node{paramList}
	if generics != nil {
		kids = append(kids, generics)
	} else {
		kids = append(kids, ast.New(ast.GenericParamList, p.spanFrom(start), nil))
	}
	if ret != nil {
		kids = append(kids, ret)
	} else {
		kids = append(kids, ast.New(ast.TypeRef, p.spanFrom(start), ast.TypeRefData{Name: "Void"}))
	}
	if throws != nil {
		kids = append(kids, throws)
	} else {
		kids = append(kids, ast.New(ast.ThrowsList, p.spanFrom(start), nil))
	}
	kids = append(kids, body)
	return ast.New(ast.FuncDecl, p.spanFrom(start), ast.FuncData{Name: name, Pub: pub}, kids...)
}

func (p *Parser) parseStructDecl(pub bool) *ast.Node {
	start := p.advance() // 'struct'
	name := p.expect(lexer.Ident).Lexeme
	var generics []string
	if p.at(lexer.LBracket) {
		p.advance()
		for !p.at(lexer.RBracket) && !p.at(lexer.EOF) {
			generics = append(generics, p.expect(lexer.Ident).Lexeme)
			if p.at(lexer.Comma) {
				p.advance()
			}
		}
		p.expect(lexer.RBracket)
	}
	p.expect(lexer.LBrace)
	p.skipNewlines()
	var fields []*ast.Node
	for !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
		fstart := p.cur()
		fname := p.expect(lexer.Ident).Lexeme
		p.expect(lexer.Colon)
		ftyp := p.parseTypeRef()
		fields = append(fields, ast.New(ast.Field, p.spanFrom(fstart), fname, ftyp))
		if p.at(lexer.Comma) {
			p.advance()
		}
		p.skipNewlines()
	}
	p.expect(lexer.RBrace)
	return ast.New(ast.StructDecl, p.spanFrom(start), ast.StructData{Name: name, Pub: pub, Generics: generics}, fields...)
}

func (p *Parser) parseEnumDecl(pub bool) *ast.Node {
	start := p.advance() // 'enum'
	name := p.expect(lexer.Ident).Lexeme
	p.skipNewlines()
	var cases []*ast.Node
	for !p.at(lexer.KwEnd) && !p.at(lexer.EOF) {
		cstart := p.cur()
		cname := p.expect(lexer.Ident).Lexeme
		cases = append(cases, ast.New(ast.Field, p.spanFrom(cstart), cname))
		p.skipNewlines()
	}
	p.expect(lexer.KwEnd)
	return ast.New(ast.EnumDecl, p.spanFrom(start), ast.StructData{Name: name, Pub: pub}, cases...)
}

func (p *Parser) parseErrorDecl(pub bool) *ast.Node {
	start := p.advance() // 'error'
	name := p.expect(lexer.Ident).Lexeme
	p.expect(lexer.LBrace)
	p.skipNewlines()
	var variants []*ast.Node
	for !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
		vstart := p.cur()
		vname := p.expect(lexer.Ident).Lexeme
		var fields []*ast.Node
		if p.at(lexer.LParen) {
			p.advance()
			for !p.at(lexer.RParen) && !p.at(lexer.EOF) {
				fstart := p.cur()
				fname := p.expect(lexer.Ident).Lexeme
				p.expect(lexer.Colon)
				ftyp := p.parseTypeRef()
				fields = append(fields, ast.New(ast.Field, p.spanFrom(fstart), fname, ftyp))
				if p.at(lexer.Comma) {
					p.advance()
				}
			}
			p.expect(lexer.RParen)
		}
		variants = append(variants, ast.New(ast.ErrorVariant, p.spanFrom(vstart), vname, fields...))
		if p.at(lexer.Comma) {
			p.advance()
		}
		p.skipNewlines()
	}
	p.expect(lexer.RBrace)
	return ast.New(ast.ErrorDecl, p.spanFrom(start), ast.StructData{Name: name, Pub: pub}, variants...)
}

func (p *Parser) parseTestDecl() *ast.Node {
	start := p.advance() // 'test'
	name := p.expect(lexer.StringLit).Lexeme
	p.skipNewlines()
	body := p.parseBlockUntil(lexer.KwEnd)
	p.expect(lexer.KwEnd)
	return ast.New(ast.TestDecl, p.spanFrom(start), name, body)
}
