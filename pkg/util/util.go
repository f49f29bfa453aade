package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xplshn/layoutc/pkg/config"
	"github.com/xplshn/layoutc/pkg/token"
)

// NotSupportedYetError is a conversion that is legal but not implemented
type NotSupportedYetError struct{ Msg string }

// TranspileFailedError is a violated invariant, usually a front-end or type-system bug
type TranspileFailedError struct{ Msg string }

func (e *NotSupportedYetError) Error() string { return "not supported yet: " + e.Msg }
func (e *TranspileFailedError) Error() string { return "transpile failed: " + e.Msg }

func NotSupportedYet(format string, args ...interface{}) error {
	return &NotSupportedYetError{Msg: fmt.Sprintf(format, args...)}
}

func TranspileFailed(format string, args ...interface{}) error {
	return &TranspileFailedError{Msg: fmt.Sprintf(format, args...)}
}

func IsNotSupportedYet(err error) bool {
	var target *NotSupportedYetError
	return errors.As(err, &target)
}

func IsTranspileFailed(err error) bool {
	var target *TranspileFailedError
	return errors.As(err, &target)
}

// SourceFileRecord tracks the name and content of a single input file
type SourceFileRecord struct {
	Name    string
	Content []rune
}

var (
	sourceFiles []SourceFileRecord
	diagOut     io.Writer = os.Stderr
	exit                  = os.Exit
)

// SetSourceFiles stores the inputs for rich error messages
func SetSourceFiles(files []SourceFileRecord) { sourceFiles = files }

// SetOutput redirects diagnostics, returning the previous writer
func SetOutput(w io.Writer) io.Writer {
	prev := diagOut
	diagOut = w
	return prev
}

func findFileAndLine(tok token.Token) (filename string, line, col int) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(sourceFiles) {
		return "unknown", tok.Line, tok.Column
	}
	return sourceFiles[tok.FileIndex].Name, tok.Line, tok.Column
}

// printErrorLine prints the source line and a caret indicating the error position
func printErrorLine(w io.Writer, tok token.Token) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(sourceFiles) || tok.Line == 0 {
		return
	}
	lines := strings.Split(string(sourceFiles[tok.FileIndex].Content), "\n")
	if tok.Line > len(lines) {
		return
	}
	fmt.Fprintf(w, "  %s\n", lines[tok.Line-1])
	fmt.Fprintf(w, "  %s\033[32m^", strings.Repeat(" ", max(tok.Column-1, 0)))
	if tok.Len > 1 {
		fmt.Fprintf(w, "%s", strings.Repeat("~", tok.Len-1))
	}
	fmt.Fprintln(w, "\033[0m")
}

// Error prints a formatted error message and exits the program
func Error(tok token.Token, format string, args ...interface{}) {
	filename, line, col := findFileAndLine(tok)
	fmt.Fprintf(diagOut, "%s:%d:%d: \033[31merror:\033[0m ", filename, line, col)
	fmt.Fprintf(diagOut, format, args...)
	fmt.Fprintln(diagOut)
	printErrorLine(diagOut, tok)
	exit(1)
}

// Warn prints a formatted warning message if the corresponding warning is enabled
func Warn(cfg *config.Config, wt config.Warning, tok token.Token, format string, args ...interface{}) {
	if !cfg.IsWarningEnabled(wt) {
		return
	}
	filename, line, col := findFileAndLine(tok)
	fmt.Fprintf(diagOut, "%s:%d:%d: \033[33mwarning:\033[0m ", filename, line, col)
	fmt.Fprintf(diagOut, format, args...)
	fmt.Fprintf(diagOut, " [-W%s]\n", cfg.Warnings[wt].Name)
	printErrorLine(diagOut, tok)
}
