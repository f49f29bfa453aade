// Package parser reads emitted conversion code back into an AST
package parser

import (
	"fmt"

	"github.com/xplshn/layoutc/pkg/ast"
	"github.com/xplshn/layoutc/pkg/lexer"
	"github.com/xplshn/layoutc/pkg/token"
)

// Parser holds the state for the parsing process
type Parser struct {
	tokens   []token.Token
	pos      int
	current  token.Token
	previous token.Token
}

// NewParser creates and initializes a new Parser from a token stream ending in EOF
func NewParser(tokens []token.Token) *Parser {
	p := &Parser{tokens: tokens, pos: 0}
	if len(tokens) > 0 {
		p.current = p.tokens[0]
	}
	return p
}

// Parse tokenizes and parses a whole program, returning its use and fn declarations
func Parse(src string) ([]*ast.Node, error) {
	toks, err := lexer.NewLexer([]rune(src), 0).All()
	if err != nil {
		return nil, err
	}
	return NewParser(toks).Parse()
}

type parseError struct{ err *lexer.Error }

func (p *Parser) Parse() (decls []*ast.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			pe, ok := r.(parseError)
			if !ok {
				panic(r)
			}
			decls, err = nil, pe.err
		}
	}()
	for !p.check(token.EOF) {
		if p.check(token.Use) {
			decls = append(decls, p.parseUse())
			continue
		}
		decls = append(decls, p.parseFuncDecl())
	}
	return decls, nil
}

// Parser helpers
func (p *Parser) errorf(tok token.Token, format string, args ...interface{}) {
	panic(parseError{&lexer.Error{Tok: tok, Msg: fmt.Sprintf(format, args...)}})
}

func (p *Parser) advance() {
	if p.pos < len(p.tokens) {
		p.previous = p.current
		p.pos++
		if p.pos < len(p.tokens) {
			p.current = p.tokens[p.pos]
		}
	}
}

func (p *Parser) check(tokType token.Type) bool { return p.current.Type == tokType }

func (p *Parser) match(tokType token.Type) bool {
	if !p.check(tokType) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) expect(tokType token.Type, message string) token.Token {
	if p.check(tokType) {
		p.advance()
		return p.previous
	}
	p.errorf(p.current, "%s", message)
	return token.Token{}
}

func (p *Parser) parseUse() *ast.Node {
	tok := p.expect(token.Use, "Expected 'use'.")
	path := []string{p.expect(token.Ident, "Expected a path after 'use'.").Value}
	for p.match(token.PathSep) {
		path = append(path, p.expect(token.Ident, "Expected a path segment after '::'.").Value)
	}
	p.expect(token.Semi, "Expected ';' after use declaration.")
	return ast.NewUse(tok, path)
}

func (p *Parser) parseTypeName() string {
	name := p.expect(token.Ident, "Expected a type name.").Value
	for p.match(token.PathSep) {
		name += "::" + p.expect(token.Ident, "Expected a type name segment after '::'.").Value
	}
	return name
}

func (p *Parser) parseFuncDecl() *ast.Node {
	var attrs []string
	for p.match(token.Attribute) {
		attrs = append(attrs, p.previous.Value)
	}
	tok := p.expect(token.Fn, "Expected 'fn'.")
	name := p.expect(token.Ident, "Expected a function name.").Value
	p.expect(token.LParen, "Expected '(' after function name.")
	var params []ast.Param
	for !p.check(token.RParen) {
		paramName := p.expect(token.Ident, "Expected a parameter name.").Value
		p.expect(token.Colon, "Expected ':' after parameter name.")
		params = append(params, ast.Param{Name: paramName, TypeName: p.parseTypeName()})
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RParen, "Expected ')' after parameters.")
	returnType := ""
	if p.match(token.Arrow) {
		returnType = p.parseTypeName()
	}
	return ast.NewFuncDecl(tok, name, attrs, params, returnType, p.parseBlock())
}

func (p *Parser) parseBlock() *ast.Node {
	tok := p.expect(token.LBrace, "Expected '{' to start a block.")
	var stmts []*ast.Node
	var tail *ast.Node
	for !p.check(token.RBrace) && !p.check(token.EOF) {
		switch {
		case p.check(token.Let):
			stmts = append(stmts, p.parseLet())
		case p.check(token.If):
			stmts = append(stmts, p.parseIf())
		case p.match(token.Return):
			retTok := p.previous
			var expr *ast.Node
			if !p.check(token.Semi) {
				expr = p.parseExpr()
			}
			p.expect(token.Semi, "Expected ';' after return.")
			stmts = append(stmts, ast.NewReturn(retTok, expr))
		default:
			expr := p.parseExpr()
			if p.match(token.Semi) {
				stmts = append(stmts, expr)
				continue
			}
			if !p.check(token.RBrace) {
				p.errorf(p.current, "Expected ';' or '}' after expression.")
			}
			tail = expr
		}
	}
	p.expect(token.RBrace, "Expected '}' after block.")
	return ast.NewBlock(tok, stmts, tail)
}

func (p *Parser) parseLet() *ast.Node {
	tok := p.expect(token.Let, "Expected 'let'.")
	name := p.expect(token.Ident, "Expected a name after 'let'.").Value
	typeName := ""
	if p.match(token.Colon) {
		typeName = p.parseTypeName()
	}
	p.expect(token.Eq, "Expected '=' in let binding.")
	init := p.parseExpr()
	p.expect(token.Semi, "Expected ';' after let binding.")
	return ast.NewLet(tok, name, typeName, init)
}

func (p *Parser) parseIf() *ast.Node {
	tok := p.expect(token.If, "Expected 'if'.")
	cond := p.parseExpr()
	thenBody := p.parseBlock()
	var elseBody *ast.Node
	if p.match(token.Else) {
		if p.check(token.If) {
			elseBody = p.parseIf()
		} else {
			elseBody = p.parseBlock()
		}
	}
	return ast.NewIf(tok, cond, thenBody, elseBody)
}

// Expression Parsing
func getBinaryOpPrecedence(op token.Type) int {
	switch op {
	case token.Star:
		return 3
	case token.Plus, token.Minus:
		return 2
	case token.EqEq, token.Neq, token.Lt, token.Gt:
		return 1
	default:
		return -1
	}
}

func (p *Parser) parseExpr() *ast.Node { return p.parseBinaryExpr(1) }

func (p *Parser) parseBinaryExpr(minPrec int) *ast.Node {
	left := p.parsePostfixExpr()
	for {
		op := p.current.Type
		prec := getBinaryOpPrecedence(op)
		if prec < minPrec {
			break
		}
		opTok := p.current
		p.advance()
		right := p.parseBinaryExpr(prec + 1)
		left = ast.NewBinaryOp(opTok, op, left, right)
	}
	return left
}

func (p *Parser) parsePostfixExpr() *ast.Node {
	expr := p.parsePrimaryExpr()
	for {
		tok := p.current
		switch {
		case p.match(token.LParen):
			expr = ast.NewFuncCall(tok, expr, p.parseArgs())
		case p.match(token.Dot):
			method := p.expect(token.Ident, "Expected a method name after '.'.").Value
			p.expect(token.LParen, "Expected '(' after method name.")
			expr = ast.NewMethodCall(tok, expr, method, p.parseArgs())
		default:
			return expr
		}
	}
}

// parseArgs reads call arguments after the opening parenthesis
func (p *Parser) parseArgs() []*ast.Node {
	var args []*ast.Node
	for !p.check(token.RParen) {
		args = append(args, p.parseExpr())
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RParen, "Expected ')' after arguments.")
	return args
}

func (p *Parser) parsePrimaryExpr() *ast.Node {
	tok := p.current
	switch {
	case p.match(token.Number):
		return ast.NewNumber(tok, p.previous.Value)
	case p.match(token.Ident):
		name := p.previous.Value
		for p.match(token.PathSep) {
			name += "::" + p.expect(token.Ident, "Expected a path segment after '::'.").Value
		}
		return ast.NewIdent(tok, name)
	case p.match(token.LParen):
		if p.match(token.RParen) {
			return ast.NewUnit(tok)
		}
		expr := p.parseExpr()
		p.expect(token.RParen, "Expected ')' after expression.")
		return expr
	}
	p.errorf(tok, "Expected an expression, found %s.", tok.Type)
	return nil
}
