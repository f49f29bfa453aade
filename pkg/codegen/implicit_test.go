package codegen

import (
	"math/big"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/layoutc/pkg/ast"
	"github.com/xplshn/layoutc/pkg/config"
	"github.com/xplshn/layoutc/pkg/ir"
	"github.com/xplshn/layoutc/pkg/token"
	"github.com/xplshn/layoutc/pkg/types"
	"github.com/xplshn/layoutc/pkg/util"
	"github.com/xplshn/layoutc/pkg/vm"
)

var bigCmp = cmp.Comparer(func(a, b *big.Int) bool { return a.Cmp(b) == 0 })

func words(vs ...int64) []*big.Int {
	out := make([]*big.Int, len(vs))
	for i, v := range vs {
		out[i] = big.NewInt(v)
	}
	return out
}

func machine(t *testing.T, ctx *Context) *vm.Machine {
	t.Helper()
	m, err := vm.New(ctx.Program())
	require.NoError(t, err, ctx.Program().String())
	return m
}

func call(t *testing.T, m *vm.Machine, fn *ir.Function, args ...*big.Int) int {
	t.Helper()
	v, err := m.Call(fn.Name, args...)
	require.NoError(t, err)
	return int(v.Int64())
}

func memoryExpr(sig string) *ast.Node {
	n := ast.NewIdent(token.Token{Type: token.Ident, Value: "x"}, "x")
	n.Typ, n.Loc = types.MustParse(sig), ast.LocMemory
	return n
}

func TestRequiresConversion(t *testing.T) {
	ctx := NewContext(nil)
	tcs := []struct {
		target, source string
		want           bool
	}{
		{"uint256[3]", "uint8[3]", true},
		{"uint16[]", "uint8[4]", true},
		{"uint8[5]", "uint8[3]", true},
		{"int16[2]", "int8[2]", true},
		{"bytes4[2]", "bytes2[2]", true},
		{"bytes32[]", "bytes31[]", true},
		{"uint8[3]", "uint8[3]", false},
		{"uint40[]", "uint8[]", false},
		{"int16[2]", "uint8[2]", true},
		{"uint8[3][]", "uint8[3][]", false},
		{"uint8[][2]", "uint8[][1]", true},
	}
	for _, tc := range tcs {
		got, err := ctx.RequiresConversion(types.MustParse(tc.target), types.MustParse(tc.source))
		require.NoError(t, err, "%s <- %s", tc.target, tc.source)
		require.Equal(t, tc.want, got, "%s <- %s", tc.target, tc.source)
	}

	_, err := ctx.RequiresConversion(types.MustParse("uint8[3]"), types.MustParse("uint8[]"))
	require.True(t, util.IsTranspileFailed(err))
}

func TestGenIfNecessaryLeavesMatchingExpr(t *testing.T) {
	ctx := NewContext(nil)
	expr := memoryExpr("uint8[3]")
	got, changed, err := ctx.GenIfNecessary(expr, types.MustParse("uint8[3]"))
	require.NoError(t, err)
	require.False(t, changed)
	require.Same(t, expr, got)
	require.Zero(t, ctx.Registry().Len())
}

func TestGenIfNecessaryWrapsExpr(t *testing.T) {
	ctx := NewContext(nil)
	expr := memoryExpr("uint8[3]")
	target := types.MustParse("uint256[3]")
	got, changed, err := ctx.GenIfNecessary(expr, target)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, ast.FuncCall, got.Type)
	require.True(t, types.Equal(target, got.Typ))
	require.Equal(t, ast.LocMemory, got.Loc)

	d := got.Data.(ast.FuncCallNode)
	require.Len(t, d.Args, 1)
	require.Same(t, expr, d.Args[0])
	require.Same(t, got, expr.Parent)
	fn, ok := ctx.Registry().Lookup(Key{Family: "memory_conversion", Target: "uint256[3]", Source: "uint8[3]"})
	require.True(t, ok)
	require.Same(t, fn, d.Callee)

	again, _, err := ctx.GenIfNecessary(memoryExpr("uint8[3]"), target)
	require.NoError(t, err)
	require.Same(t, fn, again.Data.(ast.FuncCallNode).Callee)
}

func TestStaticToStaticWidening(t *testing.T) {
	ctx := NewContext(nil)
	fn, err := ctx.ImplicitConversionFunc(types.MustParse("uint256[3]"), types.MustParse("uint8[3]"))
	require.NoError(t, err)
	require.Contains(t, fn.Code, "warp_memory.unsafe_alloc(6)")

	m := machine(t, ctx)
	src := m.Memory.Store(words(7, 200, 255)...)
	dst := call(t, m, fn, big.NewInt(int64(src)))
	got, err := m.Memory.Load(dst, 6)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(words(7, 0, 200, 0, 255, 0), got, bigCmp))
	require.Equal(t, 3, m.Calls["into"])
}

func TestStaticToDynamic(t *testing.T) {
	ctx := NewContext(nil)
	fn, err := ctx.ImplicitConversionFunc(types.MustParse("uint16[]"), types.MustParse("uint8[4]"))
	require.NoError(t, err)

	m := machine(t, ctx)
	src := m.Memory.Store(words(1, 2, 3, 4)...)
	dst := call(t, m, fn, big.NewInt(int64(src)))
	length, err := m.Memory.LengthDyn(dst)
	require.NoError(t, err)
	require.Equal(t, 4, length)
	got, err := m.Memory.LoadDynamic(dst, 1)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(words(1, 2, 3, 4), got, bigCmp))
}

func TestDynamicToDynamic(t *testing.T) {
	for _, n := range []int{0, 1, 5} {
		ctx := NewContext(nil)
		fn, err := ctx.ImplicitConversionFunc(types.MustParse("uint40[]"), types.MustParse("uint8[]"))
		require.NoError(t, err)
		read, ok := ctx.Registry().Lookup(Key{Family: "wm_read", Target: "u8"})
		require.True(t, ok)

		m := machine(t, ctx)
		values := make([]*big.Int, n)
		for i := range values {
			values[i] = big.NewInt(int64(10 * (i + 1)))
		}
		src := m.Memory.StoreDynamic(1, values...)
		dst := call(t, m, fn, big.NewInt(int64(src)))

		got, err := m.Memory.LoadDynamic(dst, 1)
		require.NoError(t, err)
		require.Empty(t, cmp.Diff(values, got, bigCmp), "n=%d", n)
		require.Equal(t, n, m.Calls[read.Name], "n=%d", n)
	}
}

func TestNestedSignedWidening(t *testing.T) {
	ctx := NewContext(nil)
	fn, err := ctx.ImplicitConversionFunc(types.MustParse("int16[2][2]"), types.MustParse("int8[2][2]"))
	require.NoError(t, err)
	prog := ctx.Program()
	require.NotNil(t, prog.FindImport("warp_int8_to_int16"))
	require.Contains(t, fn.Code, "get_or_create_id(source + index, 2)")

	m := machine(t, ctx)
	a := m.Memory.Store(words(0xff, 1)...)
	b := m.Memory.Store(words(2, 0x80)...)
	src := m.Memory.Store(words(int64(a), int64(b))...)
	dst := call(t, m, fn, big.NewInt(int64(src)))

	outer, err := m.Memory.Load(dst, 2)
	require.NoError(t, err)
	first, err := m.Memory.Load(int(outer[0].Int64()), 2)
	require.NoError(t, err)
	second, err := m.Memory.Load(int(outer[1].Int64()), 2)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(words(0xffff, 1), first, bigCmp))
	require.Empty(t, cmp.Diff(words(2, 0xff80), second, bigCmp))
}

func TestUnsignedToSignedZeroExtends(t *testing.T) {
	ctx := NewContext(nil)
	fn, err := ctx.ImplicitConversionFunc(types.MustParse("int16[1]"), types.MustParse("uint8[1]"))
	require.NoError(t, err)
	require.NotNil(t, ctx.Program().FindImport("warp_uint8_to_int16"))

	m := machine(t, ctx)
	src := m.Memory.Store(words(0xff)...)
	got, err := m.Memory.Load(call(t, m, fn, big.NewInt(int64(src))), 1)
	require.NoError(t, err)
	require.Equal(t, int64(0xff), got[0].Int64())
}

func TestFixedBytesWidening(t *testing.T) {
	ctx := NewContext(nil)
	fn, err := ctx.ImplicitConversionFunc(types.MustParse("bytes32[]"), types.MustParse("bytes2[2]"))
	require.NoError(t, err)
	require.NotNil(t, ctx.Program().FindImport("warp_bytes_widen_256"))
	require.NotNil(t, ctx.Program().FindImport("u256_low"))

	m := machine(t, ctx)
	src := m.Memory.Store(words(0xabcd, 0x0102)...)
	dst := call(t, m, fn, big.NewInt(int64(src)))
	got, err := m.Memory.LoadDynamic(dst, 2)
	require.NoError(t, err)

	shifted := func(v int64) *big.Int { return new(big.Int).Lsh(big.NewInt(v), 240) }
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	var want []*big.Int
	for _, v := range []int64{0xabcd, 0x0102} {
		s := shifted(v)
		want = append(want, new(big.Int).And(s, mask), new(big.Int).Rsh(s, 128))
	}
	require.Empty(t, cmp.Diff(want, got, bigCmp))
}

func TestDynamicElementsAreIndirect(t *testing.T) {
	ctx := NewContext(nil)
	fn, err := ctx.ImplicitConversionFunc(types.MustParse("uint256[][]"), types.MustParse("uint8[][2]"))
	require.NoError(t, err)

	m := machine(t, ctx)
	inner := m.Memory.StoreDynamic(1, words(3, 4, 5)...)
	src := m.Memory.Store(big.NewInt(int64(inner)), new(big.Int))
	dst := call(t, m, fn, big.NewInt(int64(src)))

	outer, err := m.Memory.LoadDynamic(dst, 1)
	require.NoError(t, err)
	require.Len(t, outer, 2)
	got, err := m.Memory.LoadDynamic(int(outer[0].Int64()), 2)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(words(3, 0, 4, 0, 5, 0), got, bigCmp))

	// the unset source slot gets an empty array behind a fresh id
	empty, err := m.Memory.LoadDynamic(int(outer[1].Int64()), 2)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestStructElements(t *testing.T) {
	sig := "struct P{x:uint8}[2]"
	target := "struct P{x:uint8}[]"

	ctx := NewContext(nil)
	_, err := ctx.ImplicitConversionFunc(types.MustParse(target), types.MustParse(sig))
	require.True(t, util.IsNotSupportedYet(err), "%v", err)
	_, ok := ctx.Registry().Lookup(Key{Family: "memory_conversion", Target: target, Source: sig})
	require.False(t, ok)

	_, err = ctx.ImplicitConversionFunc(types.MustParse("struct P{x:uint8}[2]"), types.MustParse("struct P{x:uint8}[]"))
	require.True(t, util.IsNotSupportedYet(err), "%v", err)

	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatShareStructs, true)
	ctx = NewContext(cfg)
	_, err = ctx.ImplicitConversionFunc(types.MustParse(target), types.MustParse(sig))
	require.NoError(t, err)

	_, err = ctx.ImplicitConversionFunc(types.MustParse("struct Q{x:uint8}[]"), types.MustParse(sig))
	require.True(t, util.IsNotSupportedYet(err))
}

func TestImplicitConversionErrors(t *testing.T) {
	tcs := []struct {
		target, source string
		unsupported    bool
	}{
		{"uint256", "uint8", true},
		{"uint8[2]", "uint8[3]", false},
		{"uint8[2]", "uint8[]", false},
		{"bytes2[2]", "bytes4[2]", true},
		{"uint8[2]", "address[2]", false},
		{"uint8[2]", "uint8", false},
	}
	for _, tc := range tcs {
		ctx := NewContext(nil)
		_, err := ctx.ImplicitConversionFunc(types.MustParse(tc.target), types.MustParse(tc.source))
		require.Error(t, err, "%s <- %s", tc.target, tc.source)
		if tc.unsupported {
			require.True(t, util.IsNotSupportedYet(err), "%s <- %s: %v", tc.target, tc.source, err)
		} else {
			require.True(t, util.IsTranspileFailed(err), "%s <- %s: %v", tc.target, tc.source, err)
		}
		_, ok := ctx.Registry().Lookup(Key{Family: "memory_conversion", Target: tc.target, Source: tc.source})
		require.False(t, ok)
	}
}

func TestEmittedProgramOrdersCalleesFirst(t *testing.T) {
	ctx := NewContext(nil)
	_, err := ctx.ImplicitConversionFunc(types.MustParse("int16[2][]"), types.MustParse("int8[2][]"))
	require.NoError(t, err)

	prog := ctx.Program()
	text := prog.String()
	require.True(t, strings.HasPrefix(text, "use "))
	pos := make(map[string]int)
	for _, fn := range prog.Funcs {
		pos[fn.Name] = strings.Index(text, "fn "+fn.Name+"(")
		require.GreaterOrEqual(t, pos[fn.Name], 0, fn.Name)
	}
	for _, fn := range prog.Funcs {
		for _, c := range fn.Callees {
			if g, ok := c.(*ir.Function); ok {
				require.Less(t, pos[g.Name], pos[fn.Name], "%s before %s", g.Name, fn.Name)
			}
		}
	}
	require.Equal(t, prog.Fingerprint(), ctx.Program().Fingerprint())
}
