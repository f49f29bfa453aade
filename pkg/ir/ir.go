// Package ir holds generated functions and the program they are emitted into.
package ir

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Callee is anything a generated function or a rewritten expression can call
type Callee interface {
	CalleeName() string
	isCallee()
}

// Function is one synthesized unit of target code. Code may define helper functions
// next to the entry point, all prefixed with Name. Functions are immutable once stored.
type Function struct {
	Name    string
	Family  string
	Code    string
	Callees []Callee
}

// Import is a library symbol made available with a use line
type Import struct {
	Path []string
	Name string
}

func (f *Function) CalleeName() string { return f.Name }
func (i *Import) CalleeName() string   { return i.Name }
func (*Function) isCallee()            {}
func (*Import) isCallee()              {}

// QualifiedName is the full use path, e.g. warplib::memory::WarpMemoryTrait
func (i *Import) QualifiedName() string {
	return strings.Join(append(append([]string(nil), i.Path...), i.Name), "::")
}

func NewImport(qualified string) *Import {
	parts := strings.Split(qualified, "::")
	return &Import{Path: parts[:len(parts)-1], Name: parts[len(parts)-1]}
}

// Program is the emitted unit: imports first, then functions with callees before callers
type Program struct {
	Imports []*Import
	Funcs   []*Function
}

func (p *Program) String() string {
	var sb strings.Builder
	for _, imp := range p.Imports {
		sb.WriteString("use ")
		sb.WriteString(imp.QualifiedName())
		sb.WriteString(";\n")
	}
	for _, f := range p.Funcs {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(f.Code)
		if !strings.HasSuffix(f.Code, "\n") {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// Fingerprint identifies the emitted text
func (p *Program) Fingerprint() uint64 { return xxhash.Sum64String(p.String()) }

func (p *Program) FindFunc(name string) *Function {
	for _, f := range p.Funcs {
		if f.Name == name { return f }
	}
	return nil
}

func (p *Program) FindImport(name string) *Import {
	for _, imp := range p.Imports {
		if imp.Name == name { return imp }
	}
	return nil
}

// TransitiveCallees lists every function reachable from fn, callees before callers, fn excluded
func TransitiveCallees(fn *Function) []*Function {
	seen := map[*Function]bool{fn: true}
	var out []*Function
	var visit func(f *Function)
	visit = func(f *Function) {
		for _, c := range f.Callees {
			g, ok := c.(*Function)
			if !ok || seen[g] {
				continue
			}
			seen[g] = true
			visit(g)
			out = append(out, g)
		}
	}
	visit(fn)
	return out
}

// TransitiveImports lists every library symbol reachable from fn
func TransitiveImports(fn *Function) []*Import {
	seen := make(map[*Import]bool)
	var out []*Import
	for _, f := range append([]*Function{fn}, TransitiveCallees(fn)...) {
		for _, c := range f.Callees {
			if imp, ok := c.(*Import); ok && !seen[imp] {
				seen[imp] = true
				out = append(out, imp)
			}
		}
	}
	return out
}
