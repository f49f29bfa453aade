package codegen

import (
	"fmt"

	"github.com/xplshn/layoutc/pkg/ast"
	"github.com/xplshn/layoutc/pkg/ir"
	"github.com/xplshn/layoutc/pkg/layout"
	"github.com/xplshn/layoutc/pkg/types"
	"github.com/xplshn/layoutc/pkg/util"
)

// CopyInstruction is one step of copying a struct or fixed array out of storage.
// A nil CopyType copies the single word at StorageOffset; otherwise the whole member
// of that type is copied and stored behind an indirection.
type CopyInstruction struct {
	StorageOffset int
	CopyType      types.Type
}

// CopyInstructions walks the members of a struct or fixed array in declaration order
func CopyInstructions(t types.Type) ([]CopyInstruction, error) {
	var members []types.Type
	switch t := t.(type) {
	case *types.StructType:
		for _, f := range t.Fields {
			members = append(members, f.Type)
		}
	case *types.ArrayType:
		if t.IsDynamic() {
			return nil, util.NotSupportedYet("copy instructions for dynamic array %s", t)
		}
		for i := 0; i < t.Size; i++ {
			members = append(members, t.Elem)
		}
	default:
		return nil, util.NotSupportedYet("copying %s from storage to memory", t)
	}

	var out []CopyInstruction
	storageOffset := 0
	for _, m := range members {
		switch {
		case types.IsStaticArrayOrStruct(m):
			w, err := layout.Width(m, layout.PersistentAllocation)
			if err != nil {
				return nil, err
			}
			out = append(out, CopyInstruction{StorageOffset: storageOffset, CopyType: m})
			storageOffset += w
		case types.IsDynamicArray(m):
			out = append(out, CopyInstruction{StorageOffset: storageOffset, CopyType: m})
			storageOffset++
		default:
			w, err := layout.Width(m, layout.PersistentAllocation)
			if err != nil {
				return nil, err
			}
			for i := 0; i < w; i++ {
				out = append(out, CopyInstruction{StorageOffset: storageOffset})
				storageOffset++
			}
		}
	}
	return out, nil
}

// GenStorageToMemory wraps a storage expression in a call copying it into scratch memory
func (ctx *Context) GenStorageToMemory(expr *ast.Node) (*ast.Node, error) {
	fn, err := ctx.StorageToMemoryFunc(expr.Typ)
	if err != nil {
		return nil, err
	}
	return ast.NewCallTo(expr.Tok, fn, []*ast.Node{expr}, expr.Typ, ast.LocMemory), nil
}

// StorageToMemoryFunc returns the function copying a stored value of type t into a fresh
// scratch block, replacing in-place nesting with indirections
func (ctx *Context) StorageToMemoryFunc(t types.Type) (*ir.Function, error) {
	key := Key{Family: "ws_to_memory", Target: t.String()}
	return ctx.reg.GetOrCreate(key, func() (*ir.Function, error) {
		switch t := t.(type) {
		case *types.StructType:
			return ctx.unrolledCopy(t, "ws_to_memory_struct_"+t.Name+"_")
		case *types.ArrayType:
			if t.IsDynamic() {
				return ctx.dynamicArrayCopy(t.Elem)
			}
			if ctx.cfg.Unrolled(t.Size) {
				return ctx.unrolledCopy(t, "ws_to_memory_small_static_array")
			}
			return ctx.largeStaticArrayCopy(t)
		case *types.BytesType, *types.StringType:
			return ctx.dynamicArrayCopy(types.ElementType(t))
		}
		return nil, util.NotSupportedYet("copying %s from storage to memory", t)
	})
}

// unrolledCopy copies a struct or small fixed array with one read and write per instruction
func (ctx *Context) unrolledCopy(t types.Type, tag string) (*ir.Function, error) {
	instrs, err := CopyInstructions(t)
	if err != nil {
		return nil, err
	}
	width, err := layout.Width(t, layout.ScratchAllocation)
	if err != nil {
		return nil, err
	}
	if width != len(instrs) {
		return nil, util.TranspileFailed("%s has scratch width %d but %d copy instructions", t, width, len(instrs))
	}

	var body fnText
	body.depth = 1
	calls := []ir.Callee{ctx.RequireImport(WarpMemoryTrait)}
	for i, instr := range instrs {
		code, instrCalls, err := ctx.iterCopyCode(instr, i)
		if err != nil {
			return nil, err
		}
		body.lines(code)
		body.line("warp_memory.unsafe_write(%s, copy%d);", add("mem_start", i), i)
		calls = append(calls, instrCalls...)
	}

	name, err := ctx.reg.NewName(tag)
	if err != nil {
		return nil, err
	}
	var s fnText
	s.line(memoryAttr)
	s.open("fn %s(loc: felt252) -> felt252", name)
	s.line("let mem_start = warp_memory.alloc(%d);", width)
	s.sb.WriteString(body.String())
	s.line("mem_start")
	s.close()
	return &ir.Function{Name: name, Code: s.String(), Callees: callees(calls)}, nil
}

// iterCopyCode binds copyN for one unrolled instruction
func (ctx *Context) iterCopyCode(instr CopyInstruction, n int) (string, []ir.Callee, error) {
	loc := add("loc", instr.StorageOffset)
	if instr.CopyType == nil {
		return fmt.Sprintf("let copy%d = WARP_STORAGE::read(%s);", n, loc), []ir.Callee{ctx.RequireImport(WarpStorage)}, nil
	}
	fn, err := ctx.StorageToMemoryFunc(instr.CopyType)
	if err != nil {
		return "", nil, err
	}
	if types.IsDynamicArray(instr.CopyType) {
		code := fmt.Sprintf("let dyn_loc%d = WARP_STORAGE::read(%s);\nlet copy%d = %s(dyn_loc%d);", n, loc, n, fn.Name, n)
		return code, []ir.Callee{ctx.RequireImport(WarpStorage), fn}, nil
	}
	return fmt.Sprintf("let copy%d = %s(%s);", n, fn.Name, loc), []ir.Callee{fn}, nil
}

// recursiveCopyCode copies one element from storageLoc to memLoc inside a recursive helper
func (ctx *Context) recursiveCopyCode(elem types.Type, storageLoc, memLoc string) (string, []ir.Callee, error) {
	storage := ctx.RequireImport(WarpStorage)
	if types.IsReferenceType(elem) {
		fn, err := ctx.StorageToMemoryFunc(elem)
		if err != nil {
			return "", nil, err
		}
		switch {
		case types.IsStaticArrayOrStruct(elem):
			return fmt.Sprintf("let copy = %s(%s);\nwarp_memory.unsafe_write(%s, copy);", fn.Name, storageLoc, memLoc),
				[]ir.Callee{fn}, nil
		case types.IsDynamicArray(elem):
			return fmt.Sprintf("let dyn_loc = WARP_STORAGE::read(%s);\nlet copy = %s(dyn_loc);\nwarp_memory.unsafe_write(%s, copy);", storageLoc, fn.Name, memLoc),
				[]ir.Callee{storage, fn}, nil
		}
		return "", nil, util.TranspileFailed("recursive copy of unsupported reference type %s", elem)
	}

	width, err := layout.Width(elem, layout.ByReference)
	if err != nil {
		return "", nil, err
	}
	var s fnText
	for i := 0; i < width; i++ {
		s.line("let copy%d = WARP_STORAGE::read(%s);", i, add(storageLoc, i))
		s.line("warp_memory.unsafe_write(%s, copy%d);", add(memLoc, i), i)
	}
	return s.String(), []ir.Callee{storage}, nil
}

// largeStaticArrayCopy walks the array with a helper carrying (mem_start, loc, length)
func (ctx *Context) largeStaticArrayCopy(t *types.ArrayType) (*ir.Function, error) {
	memWidth, err := layout.Width(t.Elem, layout.ByReference)
	if err != nil {
		return nil, err
	}
	storageWidth, err := layout.Width(t.Elem, layout.PersistentAllocation)
	if err != nil {
		return nil, err
	}
	code, copyCalls, err := ctx.recursiveCopyCode(t.Elem, "loc", "mem_start")
	if err != nil {
		return nil, err
	}
	name, err := ctx.reg.NewName("ws_to_memory_large_static_array")
	if err != nil {
		return nil, err
	}

	var s fnText
	s.line(memoryAttr)
	s.open("fn %s_elem(mem_start: felt252, loc: felt252, length: felt252)", name)
	s.open("if length == 0")
	s.line("return ();")
	s.close()
	s.lines(code)
	s.line("%s_elem(%s, %s, length - 1)", name, add("mem_start", memWidth), add("loc", storageWidth))
	s.close()
	s.blank()
	s.line(memoryAttr)
	s.open("fn %s(loc: felt252) -> felt252", name)
	s.line("let mem_start = warp_memory.alloc(%d);", t.Size*memWidth)
	s.line("%s_elem(mem_start, loc, %d);", name, t.Size)
	s.line("mem_start")
	s.close()

	return &ir.Function{
		Name: name, Code: s.String(),
		Callees: callees([]ir.Callee{ctx.RequireImport(WarpMemoryTrait)}, copyCalls),
	}, nil
}

// dynamicArrayCopy copies a stored dynamic array, counting the index down from length - 1
func (ctx *Context) dynamicArrayCopy(elem types.Type) (*ir.Function, error) {
	memWidth, err := layout.Width(elem, layout.ByReference)
	if err != nil {
		return nil, err
	}
	accessor, err := ctx.StorageDynArray(elem)
	if err != nil {
		return nil, err
	}
	code, copyCalls, err := ctx.recursiveCopyCode(elem, "element_storage_loc", "mem_loc")
	if err != nil {
		return nil, err
	}
	name, err := ctx.reg.NewName("ws_to_memory_dynamic_array")
	if err != nil {
		return nil, err
	}

	var s fnText
	s.line(memoryAttr)
	s.open("fn %s_elem(storage_name: felt252, mem_start: felt252, length: felt252)", name)
	s.open("if length == 0")
	s.line("return ();")
	s.close()
	s.line("let index = length - 1;")
	s.line("let mem_loc = warp_memory.index_dyn(mem_start, index, %d);", memWidth)
	s.line("let element_storage_loc = %s(storage_name, index);", accessor.Name)
	s.lines(code)
	s.line("%s_elem(storage_name, mem_start, index)", name)
	s.close()
	s.blank()
	s.line(memoryAttr)
	s.open("fn %s(loc: felt252) -> felt252", name)
	s.line("let length = %s(loc);", DynArrayLength(accessor.Name))
	s.line("let mem_start = warp_memory.new_dynamic_array(length, %d);", memWidth)
	s.line("%s_elem(loc, mem_start, length);", name)
	s.line("mem_start")
	s.close()

	return &ir.Function{
		Name: name, Code: s.String(),
		Callees: callees([]ir.Callee{ctx.RequireImport(WarpMemoryTrait), ctx.RequireImport(WarpMemoryArraysTrait), accessor}, copyCalls),
	}, nil
}
