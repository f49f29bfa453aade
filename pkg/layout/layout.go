// Package layout computes how many physical words a logical type occupies.
//
// The same type is laid out three ways. Passed by reference, every array and struct is
// a single indirection word. Allocated in the scratch region, a fixed array or struct
// is a block of its members' reference widths, so nested reference members stay behind
// indirections. Allocated in the persistent region, nested fixed-size data is stored in
// place and only dynamic arrays remain one-word indirections.
package layout

import (
	"github.com/xplshn/layoutc/pkg/types"
	"github.com/xplshn/layoutc/pkg/util"
)

type Context int

const (
	ByReference Context = iota
	ScratchAllocation
	PersistentAllocation
)

func (c Context) String() string {
	switch c {
	case ByReference: return "by-reference"
	case ScratchAllocation: return "scratch-allocation"
	case PersistentAllocation: return "persistent-allocation"
	}
	return "unknown"
}

// UnrollThreshold is the default largest fixed array length copied with straight-line code
const UnrollThreshold = 5

// Width returns the number of words t occupies under ctx
func Width(t types.Type, ctx Context) (int, error) {
	switch t := t.(type) {
	case *types.IntType:
		if t.Bits == 256 {
			return 2, nil
		}
		return 1, nil
	case *types.FixedBytesType:
		if t.Size == 32 {
			return 2, nil
		}
		return 1, nil
	case *types.AddressType, *types.EnumType, *types.ContractType:
		return 1, nil
	case *types.BytesType, *types.StringType:
		return 1, nil
	case *types.ArrayType:
		if t.IsDynamic() || ctx == ByReference {
			return 1, nil
		}
		elem, err := Width(t.Elem, memberContext(ctx))
		if err != nil {
			return 0, err
		}
		return t.Size * elem, nil
	case *types.StructType:
		if ctx == ByReference {
			return 1, nil
		}
		total := 0
		for _, f := range t.Fields {
			w, err := Width(f.Type, memberContext(ctx))
			if err != nil {
				return 0, err
			}
			total += w
		}
		return total, nil
	case *types.IntLiteralType, *types.StringLiteralType:
		return 0, util.TranspileFailed("%s has no physical layout", t)
	}
	return 0, util.TranspileFailed("width of unknown type %v", t)
}

// MustWidth is Width for types that are known to have a layout
func MustWidth(t types.Type, ctx Context) int {
	w, err := Width(t, ctx)
	if err != nil {
		panic(err)
	}
	return w
}

// memberContext is the context a container's members are measured in
func memberContext(ctx Context) Context {
	if ctx == PersistentAllocation {
		return PersistentAllocation
	}
	return ByReference
}

// BaseElementType unwraps array layers to the innermost element
func BaseElementType(t types.Type) types.Type {
	for {
		arr, ok := t.(*types.ArrayType)
		if !ok {
			return t
		}
		t = arr.Elem
	}
}

// TargetTypeName is the name of t in emitted signatures
func TargetTypeName(t types.Type) string {
	switch t := t.(type) {
	case *types.IntType:
		return uintName(t.Bits)
	case *types.FixedBytesType:
		return uintName(t.Size * 8)
	case *types.AddressType, *types.ContractType:
		return "ContractAddress"
	}
	return "felt252"
}

func uintName(bits int) string {
	switch {
	case bits <= 8: return "u8"
	case bits <= 16: return "u16"
	case bits <= 32: return "u32"
	case bits <= 64: return "u64"
	case bits <= 128: return "u128"
	}
	return "u256"
}
