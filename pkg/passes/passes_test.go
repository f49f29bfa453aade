package passes

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xplshn/layoutc/pkg/ast"
	"github.com/xplshn/layoutc/pkg/codegen"
	"github.com/xplshn/layoutc/pkg/ir"
	"github.com/xplshn/layoutc/pkg/token"
	"github.com/xplshn/layoutc/pkg/types"
	"github.com/xplshn/layoutc/pkg/util"
)

var tok = token.Token{Type: token.Ident, Line: 1, Column: 1}

func num(v string) *ast.Node {
	n := ast.NewNumber(tok, v)
	n.Typ = types.IntLiteral
	return n
}

func str(s string) *ast.Node {
	n := ast.NewLiteral(tok, ast.KindString, s, hexOf(s))
	n.Typ = types.StringLiteral
	return n
}

func hexOf(s string) string {
	const digits = "0123456789abcdef"
	out := make([]byte, 0, 2*len(s))
	for i := 0; i < len(s); i++ {
		out = append(out, digits[s[i]>>4], digits[s[i]&0xf])
	}
	return string(out)
}

func ident(name, sig string, loc ast.Location) *ast.Node {
	n := ast.NewIdent(tok, name)
	n.Typ, n.Loc = types.MustParse(sig), loc
	return n
}

func cast(expr *ast.Node, sig string) *ast.Node {
	return ast.NewTypeCast(tok, expr, types.MustParse(sig))
}

func literal(t *testing.T, n *ast.Node) ast.LiteralNode {
	t.Helper()
	require.Equal(t, ast.Literal, n.Type)
	return n.Data.(ast.LiteralNode)
}

func callee(t *testing.T, n *ast.Node) ir.Callee {
	t.Helper()
	require.Equal(t, ast.FuncCall, n.Type)
	c := n.Data.(ast.FuncCallNode).Callee
	require.NotNil(t, c)
	return c
}

func captureDiagnostics(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := util.SetOutput(&buf)
	t.Cleanup(func() { util.SetOutput(prev) })
	return &buf
}

func TestIntegerLiteralTruncation(t *testing.T) {
	tcs := []struct {
		value, target, want string
		warns               bool
	}{
		{"300", "uint8", "44", true},
		{"-1", "uint8", "255", true},
		{"-1", "int8", "255", false},
		{"-129", "int8", "127", true},
		{"255", "uint8", "255", false},
		{"0x1ff", "uint8", "255", true},
		{"5", "uint256", "5", false},
	}
	for _, tc := range tcs {
		diag := captureDiagnostics(t)
		out, err := ExplicitConversion(codegen.NewContext(nil), cast(num(tc.value), tc.target))
		require.NoError(t, err)
		require.Equal(t, tc.want, literal(t, out).Value, "%s as %s", tc.value, tc.target)
		require.True(t, types.Equal(types.MustParse(tc.target), out.Typ))
		require.Nil(t, out.Parent)
		require.Equal(t, tc.warns, bytes.Contains(diag.Bytes(), []byte("[-Wtruncation]")), "%s as %s", tc.value, tc.target)
	}
}

func TestRelabels(t *testing.T) {
	tcs := []struct{ source, target string }{
		{"address", "contract Token"},
		{"bytes4", "uint32"},
		{"uint8", "int8"},
		{"address", "address"},
		{"bytes", "string"},
		{"string", "bytes"},
		{"bytes8", "bytes8"},
		{"uint64", "bytes8"},
		{"uint8", "bytes4"},
	}
	for _, tc := range tcs {
		diag := captureDiagnostics(t)
		operand := ident("x", tc.source, ast.LocNone)
		block := ast.NewBlock(tok, []*ast.Node{cast(operand, tc.target)}, nil)
		out, err := ExplicitConversion(codegen.NewContext(nil), block)
		require.NoError(t, err, "%s to %s", tc.source, tc.target)
		require.Equal(t, tc.source == tc.target, bytes.Contains(diag.Bytes(), []byte("[-Wextra]")), "%s to %s", tc.source, tc.target)

		stmts := out.Data.(ast.BlockNode).Stmts
		require.Equal(t, ast.Ident, stmts[0].Type, "%s to %s", tc.source, tc.target)
		require.True(t, types.Equal(types.MustParse(tc.target), stmts[0].Typ))
		require.Same(t, out, stmts[0].Parent)
		require.True(t, types.Equal(types.MustParse(tc.source), operand.Typ), "input tree was modified")
	}
}

func TestLoweredCalls(t *testing.T) {
	tcs := []struct {
		operand *ast.Node
		target  string
		fn      string
		args    int
	}{
		{ident("x", "uint8", ast.LocNone), "uint16", "warp_uint8_to_uint16", 1},
		{ident("x", "int16", ast.LocNone), "int8", "warp_int16_to_int8", 1},
		{ident("x", "address", ast.LocNone), "uint256", "felt_to_uint256", 1},
		{ident("x", "uint256", ast.LocNone), "address", "unsafe_contract_address_from_u256", 1},
		{ident("x", "bytes32", ast.LocNone), "address", "unsafe_contract_address_from_u256", 1},
		{ident("x", "address", ast.LocNone), "bytes32", "felt_to_uint256", 1},
		{ident("x", "bytes", ast.LocMemory), "bytes4", "wm_bytes_to_fixed4", 1},
		{ident("x", "string", ast.LocMemory), "bytes2", "wm_bytes_to_fixed2", 1},
		{ident("x", "bytes2", ast.LocNone), "bytes4", "warp_bytes_widen", 2},
		{ident("x", "bytes2", ast.LocNone), "bytes32", "warp_bytes_widen_256", 2},
		{ident("x", "bytes4", ast.LocNone), "bytes1", "warp_bytes_narrow", 2},
	}
	for _, tc := range tcs {
		ctx := codegen.NewContext(nil)
		out, err := ExplicitConversion(ctx, cast(tc.operand, tc.target))
		require.NoError(t, err, "%s to %s", tc.operand.Typ, tc.target)

		imp, ok := callee(t, out).(*ir.Import)
		require.True(t, ok)
		require.Equal(t, tc.fn, imp.Name)
		require.Same(t, imp, ctx.Program().FindImport(tc.fn))
		require.True(t, types.Equal(types.MustParse(tc.target), out.Typ))
		require.Len(t, out.Data.(ast.FuncCallNode).Args, tc.args)
	}
}

func TestBytesShiftAmounts(t *testing.T) {
	out, err := ExplicitConversion(codegen.NewContext(nil), cast(ident("x", "bytes4", ast.LocNone), "bytes1"))
	require.NoError(t, err)
	require.Equal(t, "24", literal(t, out.Data.(ast.FuncCallNode).Args[1]).Value)

	out, err = ExplicitConversion(codegen.NewContext(nil), cast(ident("x", "bytes2", ast.LocNone), "bytes32"))
	require.NoError(t, err)
	require.Equal(t, "240", literal(t, out.Data.(ast.FuncCallNode).Args[1]).Value)
}

func TestFixedBytesLiterals(t *testing.T) {
	out, err := ExplicitConversion(codegen.NewContext(nil), cast(str("ab"), "bytes4"))
	require.NoError(t, err)
	d := literal(t, out)
	require.Equal(t, ast.KindHexString, d.Kind)
	require.Equal(t, "61620000", d.HexValue)
	require.Equal(t, "1633812480", d.Value)
	require.True(t, types.Equal(types.FixedBytes(4), out.Typ))

	out, err = ExplicitConversion(codegen.NewContext(nil), cast(num("0x1234"), "bytes2"))
	require.NoError(t, err)
	require.Equal(t, "0x1234", literal(t, out).Value)

	_, err = ExplicitConversion(codegen.NewContext(nil), cast(str("hello"), "bytes4"))
	require.True(t, util.IsTranspileFailed(err))
	_, err = ExplicitConversion(codegen.NewContext(nil), cast(num("0x123456"), "bytes2"))
	require.True(t, util.IsTranspileFailed(err))
}

func TestFailedLoweringLeavesTreeUntouched(t *testing.T) {
	ok := cast(num("300"), "uint8")
	bad := cast(ident("s", "struct S{a:uint8}", ast.LocMemory), "uint8")
	root := ast.NewBlock(tok, []*ast.Node{
		ast.NewAssign(tok, ident("a", "uint8", ast.LocNone), ok),
		ast.NewAssign(tok, ident("b", "uint8", ast.LocNone), bad),
	}, nil)
	before := ast.Print(root)

	out, err := ExplicitConversion(codegen.NewContext(nil), root)
	require.True(t, util.IsTranspileFailed(err), "%v", err)
	require.ErrorContains(t, err, "struct S{a:uint8}")
	require.ErrorContains(t, err, "uint8")
	require.Same(t, root, out)
	require.Equal(t, before, ast.Print(root))
	require.Equal(t, ast.TypeCast, root.Data.(ast.BlockNode).Stmts[0].Data.(ast.AssignNode).Rhs.Type)
}

func TestUnsupportedExplicitPairs(t *testing.T) {
	tcs := []struct{ source, target string }{
		{"struct S{a:uint8}", "uint8"},
		{"bytes4", "uint16"},
		{"uint16", "bytes1"},
		{"uint128", "address"},
		{"bytes4", "address"},
		{"uint8[2]", "uint8[3]"},
		{"uint8", "bytes"},
		{"enum E", "uint8"},
		{"bytes", "uint8"},
		{"uint8", "enum E"},
		{"enum E", "enum E"},
		{"struct S{a:uint8}", "struct S{a:uint8}"},
		{"uint8", "struct S{a:uint8}"},
		{"bytes", "struct S{a:uint8}"},
	}
	for _, tc := range tcs {
		_, err := ExplicitConversion(codegen.NewContext(nil), cast(ident("x", tc.source, ast.LocNone), tc.target))
		require.True(t, util.IsTranspileFailed(err), "%s to %s: %v", tc.source, tc.target, err)
	}
}

func TestNestedCasts(t *testing.T) {
	ctx := codegen.NewContext(nil)
	out, err := ExplicitConversion(ctx, cast(cast(ident("x", "uint8", ast.LocNone), "uint16"), "int16"))
	require.NoError(t, err)

	inner := out
	require.Equal(t, ast.FuncCall, inner.Type)
	require.True(t, types.Equal(types.Int16, inner.Typ))
	require.Equal(t, "warp_uint8_to_uint16", callee(t, inner).CalleeName())
}

func TestRunCopiesAndWidens(t *testing.T) {
	ctx := codegen.NewContext(nil)
	stored := ident("s", "uint8[3]", ast.LocStorage)
	root := ast.NewBlock(tok, []*ast.Node{
		ast.NewAssign(tok, ident("m", "uint256[3]", ast.LocMemory), stored),
		ast.NewAssign(tok, ident("n", "uint8[3]", ast.LocMemory), ident("k", "uint8[3]", ast.LocMemory)),
		ast.NewAssign(tok, ident("v", "uint8", ast.LocNone), cast(num("300"), "uint8")),
	}, nil)
	before := ast.Print(root)

	out, err := Run(ctx, root)
	require.NoError(t, err)
	require.Equal(t, before, ast.Print(root))

	stmts := out.Data.(ast.BlockNode).Stmts
	widen := stmts[0].Data.(ast.AssignNode).Rhs
	widenFn := callee(t, widen).(*ir.Function)
	require.Equal(t, "memory_conversion", widenFn.Family)

	copied := widen.Data.(ast.FuncCallNode).Args[0]
	copyFn := callee(t, copied).(*ir.Function)
	require.Equal(t, "ws_to_memory", copyFn.Family)
	require.Equal(t, ast.LocMemory, copied.Loc)
	require.Equal(t, "s", copied.Data.(ast.FuncCallNode).Args[0].Data.(ast.IdentNode).Name)

	require.Equal(t, ast.Ident, stmts[1].Data.(ast.AssignNode).Rhs.Type)
	require.Equal(t, "44", literal(t, stmts[2].Data.(ast.AssignNode).Rhs).Value)

	prog := ctx.Program()
	require.NotNil(t, prog.FindFunc(copyFn.Name))
	require.NotNil(t, prog.FindFunc(widenFn.Name))
}

func TestRunFailureReturnsInput(t *testing.T) {
	root := ast.NewBlock(tok, []*ast.Node{
		ast.NewAssign(tok, ident("m", "uint8[2]", ast.LocMemory), ident("k", "uint8[]", ast.LocMemory)),
	}, nil)
	out, err := Run(codegen.NewContext(nil), root)
	require.True(t, util.IsTranspileFailed(err))
	require.Same(t, root, out)
}
