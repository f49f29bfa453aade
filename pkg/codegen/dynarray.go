package codegen

import (
	"github.com/xplshn/layoutc/pkg/ir"
	"github.com/xplshn/layoutc/pkg/layout"
	"github.com/xplshn/layoutc/pkg/types"
)

// StorageDynArray returns the accessors of persistent dynamic arrays holding elem.
// The function defines NAME(name, index), the location of an element, and
// NAME_length(name), the stored length.
func (ctx *Context) StorageDynArray(elem types.Type) (*ir.Function, error) {
	width, err := layout.Width(elem, layout.PersistentAllocation)
	if err != nil {
		return nil, err
	}
	key := Key{Family: "ws_dyn_array", Target: elem.String()}
	return ctx.reg.GetOrCreate(key, func() (*ir.Function, error) {
		name, err := ctx.reg.NewName("ws_dyn_array")
		if err != nil {
			return nil, err
		}
		var s fnText
		s.open("fn %s(name: felt252, index: felt252) -> felt252", name)
		s.line("WARP_STORAGE::dyn_index(name, index, %d)", width)
		s.close()
		s.blank()
		s.open("fn %s(name: felt252) -> felt252", DynArrayLength(name))
		s.line("WARP_STORAGE::dyn_length(name)")
		s.close()
		return &ir.Function{Name: name, Code: s.String(), Callees: []ir.Callee{ctx.RequireImport(WarpStorage)}}, nil
	})
}

// DynArrayLength names the length accessor defined next to a dynamic array accessor
func DynArrayLength(accessor string) string { return accessor + "_length" }
