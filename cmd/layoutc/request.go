package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/xplshn/layoutc/pkg/ast"
	"github.com/xplshn/layoutc/pkg/token"
	"github.com/xplshn/layoutc/pkg/types"
	"github.com/xplshn/layoutc/pkg/util"
)

// Request is one conversion site read from an input file
type Request struct {
	Kind   string `json:"kind"` // implicit, storage-copy or cast
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`
	// Value is the operand of a literal cast: digits for int_const, text for literal_string
	Value string `json:"value,omitempty"`
	// Hex overrides the byte encoding of a literal_string operand
	Hex string `json:"hex,omitempty"`

	// tok locates the request object in its input file
	tok token.Token
}

func (r Request) String() string {
	switch r.Kind {
	case "storage-copy":
		return fmt.Sprintf("%s %s", r.Kind, r.Source)
	case "cast":
		if r.Value != "" || r.Hex != "" {
			return fmt.Sprintf("%s %s(%s %q)", r.Kind, r.Target, r.Source, r.Value)
		}
	}
	return fmt.Sprintf("%s %s -> %s", r.Kind, r.Source, r.Target)
}

// readRequests decodes the request list in path. Each request is located at its
// opening brace in the file registered under fileIndex.
func readRequests(path string, fileIndex int) ([]Request, util.SourceFileRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, util.SourceFileRecord{}, fmt.Errorf("could not read '%s': %w", path, err)
	}
	record := util.SourceFileRecord{Name: path, Content: []rune(string(data))}

	dec := json.NewDecoder(bytes.NewReader(data))
	if delim, err := dec.Token(); err != nil || delim != json.Delim('[') {
		return nil, record, fmt.Errorf("malformed requests in '%s': expected a list of requests", path)
	}
	var reqs []Request
	for dec.More() {
		start := int(dec.InputOffset())
		for start < len(data) && (data[start] == ',' || isSpace(data[start])) {
			start++
		}
		var r Request
		if err := dec.Decode(&r); err != nil {
			return nil, record, fmt.Errorf("malformed requests in '%s': %w", path, err)
		}
		r.tok = position(data, start, int(dec.InputOffset()))
		r.tok.FileIndex = fileIndex
		reqs = append(reqs, r)
	}
	if _, err := dec.Token(); err != nil {
		return nil, record, fmt.Errorf("malformed requests in '%s': %w", path, err)
	}
	return reqs, record, nil
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

// position turns the byte span [start, end) into a 1-based line and rune column.
// The span length is kept only when the object fits on its first line.
func position(data []byte, start, end int) token.Token {
	line := 1 + bytes.Count(data[:start], []byte("\n"))
	lineStart := bytes.LastIndexByte(data[:start], '\n') + 1
	tok := token.Token{Line: line, Column: utf8.RuneCount(data[lineStart:start]) + 1, Len: 1}
	if end > start && bytes.IndexByte(data[start:end], '\n') < 0 {
		tok.Len = utf8.RuneCount(data[start:end])
	}
	return tok
}

func variable(tok token.Token, name string, typ types.Type, loc ast.Location) *ast.Node {
	tok.Type, tok.Value = token.Ident, name
	n := ast.NewIdent(tok, name)
	n.Typ, n.Loc = typ, loc
	return n
}

// Build turns the request into the tree the passes rewrite
func (r Request) Build() (*ast.Node, error) {
	source, err := types.Parse(r.Source)
	if err != nil {
		return nil, fmt.Errorf("source type: %w", err)
	}

	switch r.Kind {
	case "storage-copy":
		return ast.NewAssign(r.tok, variable(r.tok, "dst", source, ast.LocMemory), variable(r.tok, "src", source, ast.LocStorage)), nil
	case "implicit", "cast":
	default:
		return nil, fmt.Errorf("unknown request kind %q", r.Kind)
	}

	target, err := types.Parse(r.Target)
	if err != nil {
		return nil, fmt.Errorf("target type: %w", err)
	}
	if r.Kind == "implicit" {
		return ast.NewAssign(r.tok, variable(r.tok, "dst", target, ast.LocMemory), variable(r.tok, "src", source, ast.LocMemory)), nil
	}

	var operand *ast.Node
	switch source.(type) {
	case *types.IntLiteralType:
		if r.Value == "" {
			return nil, fmt.Errorf("int_const operand needs a value")
		}
		tok := r.tok
		tok.Type, tok.Value = token.Number, r.Value
		operand = ast.NewNumber(tok, r.Value)
	case *types.StringLiteralType:
		encoded := r.Hex
		if encoded == "" {
			encoded = hex.EncodeToString([]byte(r.Value))
		}
		tok := r.tok
		tok.Value = r.Value
		operand = ast.NewLiteral(tok, ast.KindString, r.Value, encoded)
	default:
		loc := ast.LocNone
		if types.IsReferenceType(source) {
			loc = ast.LocMemory
		}
		operand = variable(r.tok, "x", source, loc)
	}
	operand.Typ = source
	return ast.NewTypeCast(r.tok, operand, target), nil
}
