package codegen

import (
	"fmt"
	"strings"

	"github.com/xplshn/layoutc/pkg/ir"
)

// offset addresses element index of a block at base, skipping the multiplication for one-word elements
func offset(base, index string, width int) string {
	switch width {
	case 0: return base
	case 1: return fmt.Sprintf("%s + %s", base, index)
	}
	return fmt.Sprintf("%s + %s*%d", base, index, width)
}

// add renders base + n, or base alone when n is zero
func add(base string, n int) string {
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s + %d", base, n)
}

// fnText accumulates the text of one synthesized function with four-space indentation
type fnText struct {
	sb    strings.Builder
	depth int
}

func (s *fnText) line(format string, args ...interface{}) {
	s.sb.WriteString(strings.Repeat("    ", s.depth))
	fmt.Fprintf(&s.sb, format, args...)
	s.sb.WriteString("\n")
}

// lines writes a multi-line fragment at the current depth
func (s *fnText) lines(fragment string) {
	for _, l := range strings.Split(strings.TrimRight(fragment, "\n"), "\n") {
		if l == "" {
			continue
		}
		s.line("%s", l)
	}
}

// open writes a line ending with an opening brace and indents what follows
func (s *fnText) open(format string, args ...interface{}) {
	s.line(format+" {", args...)
	s.depth++
}

func (s *fnText) close() {
	s.depth--
	s.line("}")
}

func (s *fnText) blank() { s.sb.WriteString("\n") }

func (s *fnText) String() string { return s.sb.String() }

// callees joins callee lists, dropping nils and repeats while keeping first-seen order
func callees(groups ...[]ir.Callee) []ir.Callee {
	seen := make(map[ir.Callee]bool)
	var out []ir.Callee
	for _, g := range groups {
		for _, c := range g {
			if c == nil || seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
