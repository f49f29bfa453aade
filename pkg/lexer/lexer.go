// Package lexer tokenizes emitted conversion code so it can be parsed back and executed.
package lexer

import (
	"fmt"
	"unicode"

	"github.com/xplshn/layoutc/pkg/token"
)

type Lexer struct {
	source    []rune
	fileIndex int
	pos       int
	line      int
	column    int
}

func NewLexer(source []rune, fileIndex int) *Lexer {
	return &Lexer{source: source, fileIndex: fileIndex, line: 1, column: 1}
}

// Error carries the offending token so callers can point at it
type Error struct {
	Tok token.Token
	Msg string
}

func (e *Error) Error() string { return fmt.Sprintf("%d:%d: %s", e.Tok.Line, e.Tok.Column, e.Msg) }

func (l *Lexer) Next() (token.Token, error) {
	if err := l.skipWhitespaceAndComments(); err != nil {
		return token.Token{}, err
	}
	startPos, startCol, startLine := l.pos, l.column, l.line

	if l.isAtEnd() {
		return l.makeToken(token.EOF, "", startPos, startCol, startLine), nil
	}

	ch := l.peek()
	if unicode.IsLetter(ch) || ch == '_' {
		l.advance()
		return l.identifierOrKeyword(startPos, startCol, startLine), nil
	}
	if unicode.IsDigit(ch) {
		return l.numberLiteral(startPos, startCol, startLine), nil
	}

	l.advance()
	switch ch {
	case '(': return l.makeToken(token.LParen, "", startPos, startCol, startLine), nil
	case ')': return l.makeToken(token.RParen, "", startPos, startCol, startLine), nil
	case '{': return l.makeToken(token.LBrace, "", startPos, startCol, startLine), nil
	case '}': return l.makeToken(token.RBrace, "", startPos, startCol, startLine), nil
	case ';': return l.makeToken(token.Semi, "", startPos, startCol, startLine), nil
	case ',': return l.makeToken(token.Comma, "", startPos, startCol, startLine), nil
	case '.': return l.makeToken(token.Dot, "", startPos, startCol, startLine), nil
	case '+': return l.makeToken(token.Plus, "", startPos, startCol, startLine), nil
	case '*': return l.makeToken(token.Star, "", startPos, startCol, startLine), nil
	case '<': return l.makeToken(token.Lt, "", startPos, startCol, startLine), nil
	case '>': return l.makeToken(token.Gt, "", startPos, startCol, startLine), nil
	case ':': return l.matchThen(':', token.PathSep, token.Colon, startPos, startCol, startLine), nil
	case '-': return l.matchThen('>', token.Arrow, token.Minus, startPos, startCol, startLine), nil
	case '=': return l.matchThen('=', token.EqEq, token.Eq, startPos, startCol, startLine), nil
	case '!':
		if l.match('=') {
			return l.makeToken(token.Neq, "", startPos, startCol, startLine), nil
		}
	case '#':
		if l.match('[') {
			return l.attribute(startPos, startCol, startLine)
		}
	}

	tok := l.makeToken(token.EOF, "", startPos, startCol, startLine)
	return tok, &Error{Tok: tok, Msg: fmt.Sprintf("unexpected character: '%c'", ch)}
}

// All tokenizes the whole source, ending with an EOF token
func (l *Lexer) All() ([]token.Token, error) {
	var toks []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks, nil
		}
	}
}

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekNext() rune {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	return l.source[l.pos+1]
}

func (l *Lexer) advance() rune {
	if l.isAtEnd() {
		return 0
	}
	ch := l.source[l.pos]
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
	return ch
}

func (l *Lexer) match(expected rune) bool {
	if l.isAtEnd() || l.source[l.pos] != expected {
		return false
	}
	l.advance()
	return true
}

func (l *Lexer) isAtEnd() bool { return l.pos >= len(l.source) }

func (l *Lexer) makeToken(tokType token.Type, value string, startPos, startCol, startLine int) token.Token {
	return token.Token{
		Type: tokType, Value: value, FileIndex: l.fileIndex,
		Line: startLine, Column: startCol, Len: l.pos - startPos,
	}
}

func (l *Lexer) skipWhitespaceAndComments() error {
	for {
		switch l.peek() {
		case ' ', '\t', '\n', '\r':
			l.advance()
		case '/':
			if l.peekNext() != '/' {
				return nil
			}
			for !l.isAtEnd() && l.peek() != '\n' {
				l.advance()
			}
		default:
			return nil
		}
	}
}

// attribute consumes the body of a "#[...]" attribute, keeping its raw text
func (l *Lexer) attribute(startPos, startCol, startLine int) (token.Token, error) {
	bodyStart := l.pos
	depth := 1
	for !l.isAtEnd() {
		switch l.peek() {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				body := string(l.source[bodyStart:l.pos])
				l.advance()
				return l.makeToken(token.Attribute, body, startPos, startCol, startLine), nil
			}
		}
		l.advance()
	}
	tok := l.makeToken(token.Attribute, "", startPos, startCol, startLine)
	return tok, &Error{Tok: tok, Msg: "unterminated attribute"}
}

func (l *Lexer) identifierOrKeyword(startPos, startCol, startLine int) token.Token {
	for unicode.IsLetter(l.peek()) || unicode.IsDigit(l.peek()) || l.peek() == '_' {
		l.advance()
	}
	value := string(l.source[startPos:l.pos])
	tok := l.makeToken(token.Ident, value, startPos, startCol, startLine)
	if tokType, isKeyword := token.KeywordMap[value]; isKeyword {
		tok.Type = tokType
		tok.Value = ""
	}
	return tok
}

func (l *Lexer) numberLiteral(startPos, startCol, startLine int) token.Token {
	if l.peek() == '0' && (l.peekNext() == 'x' || l.peekNext() == 'X') {
		l.advance()
		l.advance()
		for isHexDigit(l.peek()) {
			l.advance()
		}
	} else {
		for unicode.IsDigit(l.peek()) {
			l.advance()
		}
	}
	return l.makeToken(token.Number, string(l.source[startPos:l.pos]), startPos, startCol, startLine)
}

func isHexDigit(r rune) bool {
	return unicode.IsDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func (l *Lexer) matchThen(expected rune, thenType, elseType token.Type, sPos, sCol, sLine int) token.Token {
	if l.match(expected) {
		return l.makeToken(thenType, "", sPos, sCol, sLine)
	}
	return l.makeToken(elseType, "", sPos, sCol, sLine)
}
