package codegen

import (
	"fmt"

	"github.com/xplshn/layoutc/pkg/ir"
	"github.com/xplshn/layoutc/pkg/types"
)

// Library symbols the generated code depends on
const (
	WarpMemoryTrait       = "warplib::memory::WarpMemoryTrait"
	WarpMemoryArraysTrait = "warplib::memory::WarpMemoryArraysTrait"
	WarpStorage           = "warplib::storage::WARP_STORAGE"
	IntoTrait             = "core::traits::Into"
	U256FromFelts         = "warplib::maths::utils::u256_from_felts"
	U256Low               = "warplib::maths::utils::u256_low"
	U256High              = "warplib::maths::utils::u256_high"
	FeltToUint256         = "warplib::maths::utils::felt_to_uint256"
	UnsafeAddressFromU256 = "warplib::conversions::address::unsafe_contract_address_from_u256"

	IntConversions   = "warplib::conversions::integer_conversions"
	BytesConversions = "warplib::conversions::bytes_conversions"
	DynBytesToFixed  = "warplib::conversions::dyn_bytes_to_fixed"
)

// memoryAttr marks functions that use the scratch region
const memoryAttr = "#[implicit(warp_memory: WarpMemory)]"

func (ctx *Context) RequireImport(qualified string) *ir.Import { return ctx.reg.RequireImport(qualified) }

// IntConversionName names the helper converting between two integer types, e.g.
// warp_uint8_to_int16. The source signedness decides between sign and zero extension.
func IntConversionName(source, target *types.IntType) string {
	return fmt.Sprintf("warp_%s_to_%s", source, target)
}

// IntConversion returns the library helper converting source to target
func (ctx *Context) IntConversion(source, target *types.IntType) *ir.Import {
	return ctx.RequireImport(IntConversions + "::" + IntConversionName(source, target))
}

// BytesWidening returns the helper shifting a fixed bytes value into a wider one
func (ctx *Context) BytesWidening(target *types.FixedBytesType) *ir.Import {
	if target.Size == 32 {
		return ctx.RequireImport(BytesConversions + "::warp_bytes_widen_256")
	}
	return ctx.RequireImport(BytesConversions + "::warp_bytes_widen")
}

func (ctx *Context) BytesNarrowing() *ir.Import {
	return ctx.RequireImport(BytesConversions + "::warp_bytes_narrow")
}

// BytesToFixed returns the helper packing the head of a scratch byte array into bytesN
func (ctx *Context) BytesToFixed(target *types.FixedBytesType) *ir.Import {
	return ctx.RequireImport(fmt.Sprintf("%s::wm_bytes_to_fixed%d", DynBytesToFixed, target.Size))
}
