package layout

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xplshn/layoutc/pkg/types"
	"github.com/xplshn/layoutc/pkg/util"
)

func TestWidth(t *testing.T) {
	tcs := []struct {
		sig                        string
		byRef, scratch, persistent int
	}{
		{"uint8", 1, 1, 1},
		{"uint256", 2, 2, 2},
		{"int256", 2, 2, 2},
		{"bytes31", 1, 1, 1},
		{"bytes32", 2, 2, 2},
		{"address", 1, 1, 1},
		{"enum E", 1, 1, 1},
		{"bytes", 1, 1, 1},
		{"string", 1, 1, 1},
		{"uint256[]", 1, 1, 1},
		{"uint8[3]", 1, 3, 3},
		{"uint256[3]", 1, 6, 6},
		{"uint8[2][3]", 1, 3, 6},
		{"uint256[][4]", 1, 4, 4},
		{"struct S{a:uint8,b:uint256,c:uint8[3],d:uint8[]}", 1, 5, 7},
		{"struct T{s:struct S{x:uint256,y:uint256[2]},z:bytes32}", 1, 3, 8},
	}
	for _, tc := range tcs {
		typ := types.MustParse(tc.sig)
		require.Equal(t, tc.byRef, MustWidth(typ, ByReference), "%s by reference", tc.sig)
		require.Equal(t, tc.scratch, MustWidth(typ, ScratchAllocation), "%s scratch", tc.sig)
		require.Equal(t, tc.persistent, MustWidth(typ, PersistentAllocation), "%s persistent", tc.sig)
	}
}

func TestWidthRejectsLiterals(t *testing.T) {
	for _, typ := range []types.Type{types.IntLiteral, types.StringLiteral, types.NewArray(types.IntLiteral, 2)} {
		_, err := Width(typ, PersistentAllocation)
		require.Error(t, err)
		require.True(t, util.IsTranspileFailed(err), err.Error())
	}
}

func TestBaseElementType(t *testing.T) {
	require.Equal(t, "uint8", BaseElementType(types.MustParse("uint8[2][][3]")).String())
	require.Equal(t, "struct S{a:uint8[]}", BaseElementType(types.MustParse("struct S{a:uint8[]}[4]")).String())
	require.Equal(t, "bytes", BaseElementType(types.Bytes).String())
}

func TestTargetTypeName(t *testing.T) {
	tcs := map[string]string{
		"uint8": "u8", "int16": "u16", "uint24": "u32", "uint64": "u64", "int128": "u128", "uint256": "u256",
		"bytes4": "u32", "bytes32": "u256", "address": "ContractAddress", "contract C": "ContractAddress",
		"enum E": "felt252", "uint8[]": "felt252", "struct S{}": "felt252",
	}
	for sig, want := range tcs {
		require.Equal(t, want, TargetTypeName(types.MustParse(sig)), sig)
	}
}
