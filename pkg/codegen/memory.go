package codegen

import (
	"github.com/xplshn/layoutc/pkg/ir"
	"github.com/xplshn/layoutc/pkg/layout"
	"github.com/xplshn/layoutc/pkg/types"
)

// MemoryRead returns the helper reading a value of t out of the scratch region.
// Reference types read their indirection word.
func (ctx *Context) MemoryRead(t types.Type) (*ir.Function, error) {
	typeName := layout.TargetTypeName(t)
	width, err := layout.Width(t, layout.ByReference)
	if err != nil {
		return nil, err
	}
	key := Key{Family: "wm_read", Target: typeName}
	return ctx.reg.GetOrCreate(key, func() (*ir.Function, error) {
		name, err := ctx.reg.NewName("wm_read_" + typeName + "_")
		if err != nil {
			return nil, err
		}
		mem := ctx.RequireImport(WarpMemoryTrait)

		var s fnText
		s.line(memoryAttr)
		s.open("fn %s(loc: felt252) -> %s", name, typeName)
		if width == 1 {
			s.line("warp_memory.read(loc)")
			s.close()
			return &ir.Function{Name: name, Code: s.String(), Callees: []ir.Callee{mem}}, nil
		}
		s.line("let low = warp_memory.read(loc);")
		s.line("let high = warp_memory.read(loc + 1);")
		s.line("u256_from_felts(low, high)")
		s.close()
		return &ir.Function{Name: name, Code: s.String(), Callees: []ir.Callee{mem, ctx.RequireImport(U256FromFelts)}}, nil
	})
}

// MemoryWrite returns the helper storing a value of t into the scratch region
func (ctx *Context) MemoryWrite(t types.Type) (*ir.Function, error) {
	typeName := layout.TargetTypeName(t)
	width, err := layout.Width(t, layout.ByReference)
	if err != nil {
		return nil, err
	}
	key := Key{Family: "wm_write", Target: typeName}
	return ctx.reg.GetOrCreate(key, func() (*ir.Function, error) {
		name, err := ctx.reg.NewName("wm_write_" + typeName + "_")
		if err != nil {
			return nil, err
		}
		mem := ctx.RequireImport(WarpMemoryTrait)

		var s fnText
		s.line(memoryAttr)
		s.open("fn %s(loc: felt252, value: %s)", name, typeName)
		if width == 1 {
			s.line("warp_memory.write(loc, value);")
			s.close()
			return &ir.Function{Name: name, Code: s.String(), Callees: []ir.Callee{mem}}, nil
		}
		s.line("warp_memory.write(loc, u256_low(value));")
		s.line("warp_memory.write(loc + 1, u256_high(value));")
		s.close()
		return &ir.Function{
			Name: name, Code: s.String(),
			Callees: []ir.Callee{mem, ctx.RequireImport(U256Low), ctx.RequireImport(U256High)},
		}, nil
	})
}
