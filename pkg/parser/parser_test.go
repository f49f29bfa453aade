package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xplshn/layoutc/pkg/ast"
	"github.com/xplshn/layoutc/pkg/lexer"
	"github.com/xplshn/layoutc/pkg/token"
)

const loop = `use warplib::memory::WarpMemoryTrait;

#[implicit(warp_memory: WarpMemory)]
fn copy_loop(src: felt252, dst: felt252, index: felt252, len: felt252) -> felt252 {
    if index == len {
        return ();
    }
    let v = warp_memory.unsafe_read(src + index * 2);
    warp_memory.unsafe_write(dst, v);
    copy_loop(src, dst, index + 1, len)
}
`

func TestParseDecls(t *testing.T) {
	decls, err := Parse(loop)
	require.NoError(t, err)
	require.Len(t, decls, 2)

	require.Equal(t, []string{"warplib", "memory", "WarpMemoryTrait"}, decls[0].Data.(ast.UseNode).Path)

	fn := decls[1].Data.(ast.FuncDeclNode)
	require.Equal(t, "copy_loop", fn.Name)
	require.Equal(t, []string{"implicit(warp_memory: WarpMemory)"}, fn.Attrs)
	require.Len(t, fn.Params, 4)
	require.Equal(t, "felt252", fn.ReturnType)

	body := fn.Body.Data.(ast.BlockNode)
	require.Len(t, body.Stmts, 3)
	require.Equal(t, ast.If, body.Stmts[0].Type)
	require.Equal(t, ast.Let, body.Stmts[1].Type)
	require.Equal(t, ast.MethodCall, body.Stmts[2].Type)
	require.Equal(t, ast.FuncCall, body.Tail.Type)
}

func TestPrecedence(t *testing.T) {
	decls, err := Parse("fn f(a: felt252) -> felt252 { a + 1 * 2 == 3 }")
	require.NoError(t, err)
	tail := decls[0].Data.(ast.FuncDeclNode).Body.Data.(ast.BlockNode).Tail

	eq := tail.Data.(ast.BinaryOpNode)
	require.Equal(t, token.EqEq, eq.Op)
	add := eq.Left.Data.(ast.BinaryOpNode)
	require.Equal(t, token.Plus, add.Op)
	require.Equal(t, token.Star, add.Right.Data.(ast.BinaryOpNode).Op)
}

func TestPrintRoundTrip(t *testing.T) {
	src := "fn f(a: felt252) -> felt252 {\n    let b: felt252 = (a - 1) * 2;\n    if b == 0 {\n        return 1;\n    } else {\n        WARP_STORAGE::write(a, b);\n    }\n    b\n}"
	decls, err := Parse(src)
	require.NoError(t, err)
	printed := ast.Print(decls[0])

	again, err := Parse(printed)
	require.NoError(t, err)
	require.Equal(t, printed, ast.Print(again[0]))
	require.Contains(t, printed, "WARP_STORAGE::write(a, b);")
	require.Contains(t, printed, "let b: felt252 = (a - 1) * 2;")
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{
		"fn f( {",
		"fn f() { let = 1; }",
		"fn f() { a b }",
		"use a::;",
		"let x = 1;",
		"fn f() { (1 }",
	} {
		_, err := Parse(src)
		var perr *lexer.Error
		require.True(t, errors.As(err, &perr), src)
	}
}
