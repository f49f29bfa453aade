package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignatures(t *testing.T) {
	s := NewStruct("S",
		Field{Name: "a", Type: Uint8},
		Field{Name: "b", Type: NewArray(Uint256, 3)},
		Field{Name: "c", Type: NewDynArray(FixedBytes(4))},
	)
	tcs := []struct {
		typ  Type
		want string
	}{
		{Uint8, "uint8"},
		{Int256, "int256"},
		{Bytes32, "bytes32"},
		{Address, "address"},
		{NewEnum("E"), "enum E"},
		{Bytes, "bytes"},
		{String, "string"},
		{NewArray(Uint8, 3), "uint8[3]"},
		{NewDynArray(NewArray(Uint8, 3)), "uint8[3][]"},
		{NewArray(NewDynArray(Uint8), 2), "uint8[][2]"},
		{s, "struct S{a:uint8,b:uint256[3],c:bytes4[]}"},
		{IntLiteral, "int_const"},
		{NewContract("Token"), "contract Token"},
	}
	for _, tc := range tcs {
		require.Equal(t, tc.want, tc.typ.String())
		parsed, err := Parse(tc.want)
		require.NoError(t, err, tc.want)
		require.True(t, Equal(tc.typ, parsed), "%s reparsed as %s", tc.want, parsed)
	}
}

func TestParseAliasesAndErrors(t *testing.T) {
	require.True(t, Equal(Uint256, MustParse("uint")))
	require.True(t, Equal(Int256, MustParse("int")))
	require.True(t, Equal(NewStruct("Empty"), MustParse("struct Empty{}")))

	for _, bad := range []string{"", "uint7", "uint264", "bytes0", "bytes33", "foo", "uint8[", "uint8[x]", "struct S{a uint8}", "uint8 extra"} {
		_, err := Parse(bad)
		require.Error(t, err, bad)
	}
}

func TestPredicates(t *testing.T) {
	dyn := NewDynArray(Uint8)
	static := NewArray(Uint8, 2)
	st := NewStruct("S", Field{Name: "x", Type: Uint8})

	require.True(t, IsDynamicArray(dyn))
	require.True(t, IsDynamicArray(Bytes))
	require.True(t, IsDynamicArray(String))
	require.False(t, IsDynamicArray(static))

	require.True(t, IsStaticArrayOrStruct(static))
	require.True(t, IsStaticArrayOrStruct(st))
	require.False(t, IsStaticArrayOrStruct(dyn))

	for _, ref := range []Type{dyn, static, st, Bytes, String} {
		require.True(t, IsReferenceType(ref), ref.String())
	}
	for _, val := range []Type{Uint8, Bytes32, Address, NewEnum("E"), IntLiteral} {
		require.False(t, IsReferenceType(val), val.String())
	}

	require.Equal(t, Bytes1, ElementType(String))
	require.Equal(t, Type(Uint8), ElementType(static))
	require.Nil(t, ElementType(Uint8))
}

