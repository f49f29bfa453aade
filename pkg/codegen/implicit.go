package codegen

import (
	"fmt"

	"github.com/xplshn/layoutc/pkg/ast"
	"github.com/xplshn/layoutc/pkg/config"
	"github.com/xplshn/layoutc/pkg/ir"
	"github.com/xplshn/layoutc/pkg/layout"
	"github.com/xplshn/layoutc/pkg/types"
	"github.com/xplshn/layoutc/pkg/util"
)

// RequiresConversion reports whether a scratch value of type source has to be rebuilt
// before it can be used where target is expected
func (ctx *Context) RequiresConversion(target, source types.Type) (bool, error) {
	differ, err := differentSizeArrays(target, source)
	if err != nil || differ {
		return differ, err
	}

	targetBase, sourceBase := layout.BaseElementType(target), layout.BaseElementType(source)
	if ti, ok := targetBase.(*types.IntType); ok {
		if si, ok := sourceBase.(*types.IntType); ok && ti.Signed && ti.Bits > si.Bits {
			return true, nil
		}
	}
	if tb, ok := targetBase.(*types.FixedBytesType); ok {
		if sb, ok := sourceBase.(*types.FixedBytesType); ok && tb.Size > sb.Size {
			return true, nil
		}
	}

	targetWidth, err := layout.Width(targetBase, layout.ByReference)
	if err != nil {
		return false, err
	}
	sourceWidth, err := layout.Width(sourceBase, layout.ByReference)
	if err != nil {
		return false, err
	}
	return targetWidth > sourceWidth, nil
}

// differentSizeArrays walks both array nestings looking for a level where the target
// is dynamic while the source is static, or where the target is the longer static array
func differentSizeArrays(target, source types.Type) (bool, error) {
	t, ok := target.(*types.ArrayType)
	if !ok {
		return false, nil
	}
	s, ok := source.(*types.ArrayType)
	if !ok {
		return false, nil
	}
	switch {
	case t.IsDynamic() && s.IsDynamic():
		return differentSizeArrays(t.Elem, s.Elem)
	case t.IsDynamic():
		return true, nil
	case s.IsDynamic():
		return false, util.TranspileFailed("dynamic array %s cannot convert implicitly to static %s", source, target)
	case t.Size > s.Size:
		return true, nil
	}
	return differentSizeArrays(t.Elem, s.Elem)
}

// GenIfNecessary returns expr wrapped in a conversion to target when one is needed,
// and expr itself with false otherwise
func (ctx *Context) GenIfNecessary(expr *ast.Node, target types.Type) (*ast.Node, bool, error) {
	required, err := ctx.RequiresConversion(target, expr.Typ)
	if err != nil || !required {
		return expr, false, err
	}
	conv, err := ctx.Gen(expr, target)
	if err != nil {
		return expr, false, err
	}
	return conv, true, nil
}

// Gen wraps expr in a call to the conversion from its type to target
func (ctx *Context) Gen(expr *ast.Node, target types.Type) (*ast.Node, error) {
	fn, err := ctx.ImplicitConversionFunc(target, expr.Typ)
	if err != nil {
		return nil, err
	}
	util.Warn(ctx.cfg, config.WarnWidening, expr.Tok, "converting %s to %s through %s", expr.Typ, target, fn.Name)
	return ast.NewCallTo(expr.Tok, fn, []*ast.Node{expr}, target, ast.LocMemory), nil
}

// ImplicitConversionFunc returns the function rebuilding a scratch array of type source as target
func (ctx *Context) ImplicitConversionFunc(target, source types.Type) (*ir.Function, error) {
	key := Key{Family: "memory_conversion", Target: target.String(), Source: source.String()}
	return ctx.reg.GetOrCreate(key, func() (*ir.Function, error) {
		t, ok := target.(*types.ArrayType)
		if !ok {
			return nil, util.NotSupportedYet("scaling %s to %s in memory", source, target)
		}
		s, ok := source.(*types.ArrayType)
		if !ok {
			return nil, util.TranspileFailed("implicit conversion to array %s from non-array %s", target, source)
		}
		switch {
		case t.IsDynamic() && s.IsDynamic():
			return ctx.dynamicToDynamic(t, s)
		case t.IsDynamic():
			return ctx.staticToDynamic(t, s)
		case s.IsDynamic():
			return nil, util.TranspileFailed("dynamic array %s cannot convert implicitly to static %s", source, target)
		case t.Size < s.Size:
			return nil, util.TranspileFailed("static array %s does not fit in %s", source, target)
		}
		return ctx.staticToStatic(t, s)
	})
}

// elementParts is everything a copy helper needs to move one element
type elementParts struct {
	read, scale, write string
	targetWidth        int
	sourceWidth        int
	calls              []ir.Callee
}

// elementCopy prepares the read of a source element at srcLoc, its scaling, and the
// write to dstLoc. Reference elements are read as indirection ids, allocated on demand.
func (ctx *Context) elementCopy(target, source *types.ArrayType, srcLoc, dstLoc func(width int) string) (*elementParts, error) {
	targetWidth, err := layout.Width(target.Elem, layout.ByReference)
	if err != nil {
		return nil, err
	}
	sourceWidth, err := layout.Width(source.Elem, layout.ByReference)
	if err != nil {
		return nil, err
	}
	p := &elementParts{targetWidth: targetWidth, sourceWidth: sourceWidth}

	var readCalls []ir.Callee
	if types.IsReferenceType(source.Elem) {
		size := 1
		if !types.IsDynamicArray(source.Elem) {
			if size, err = layout.Width(source.Elem, layout.ScratchAllocation); err != nil {
				return nil, err
			}
		}
		p.read = fmt.Sprintf("let %s = warp_memory.get_or_create_id(%s, %d);", sourceVar, srcLoc(sourceWidth), size)
		readCalls = []ir.Callee{ctx.RequireImport(WarpMemoryTrait)}
	} else {
		readFn, err := ctx.MemoryRead(source.Elem)
		if err != nil {
			return nil, err
		}
		p.read = fmt.Sprintf("let %s = %s(%s);", sourceVar, readFn.Name, srcLoc(sourceWidth))
		readCalls = []ir.Callee{readFn}
	}

	code, scaleCalls, err := ctx.scale(target.Elem, source.Elem)
	if err != nil {
		return nil, err
	}
	p.scale = code

	writeFn, err := ctx.MemoryWrite(target.Elem)
	if err != nil {
		return nil, err
	}
	p.write = fmt.Sprintf("%s(%s, %s);", writeFn.Name, dstLoc(targetWidth), targetVar)
	p.calls = callees(readCalls, scaleCalls, []ir.Callee{writeFn})
	return p, nil
}

func (ctx *Context) staticToStatic(target, source *types.ArrayType) (*ir.Function, error) {
	p, err := ctx.elementCopy(target, source,
		func(w int) string { return offset("source", "index", w) },
		func(w int) string { return offset("target", "index", w) },
	)
	if err != nil {
		return nil, err
	}
	name, err := ctx.reg.NewName("memory_conversion_static_to_static")
	if err != nil {
		return nil, err
	}

	var s fnText
	s.line(memoryAttr)
	s.open("fn %s_copy(source: felt252, target: felt252, index: felt252)", name)
	s.open("if index == %d", source.Size)
	s.line("return ();")
	s.close()
	s.line("%s", p.read)
	s.line("%s", p.scale)
	s.line("%s", p.write)
	s.line("%s_copy(source, target, index + 1)", name)
	s.close()
	s.blank()
	s.line(memoryAttr)
	s.open("fn %s(source: felt252) -> felt252", name)
	s.line("let target = warp_memory.unsafe_alloc(%d);", target.Size*p.targetWidth)
	s.line("%s_copy(source, target, 0);", name)
	s.line("target")
	s.close()

	return &ir.Function{
		Name: name, Code: s.String(),
		Callees: callees([]ir.Callee{ctx.RequireImport(WarpMemoryTrait)}, p.calls),
	}, nil
}

func (ctx *Context) staticToDynamic(target, source *types.ArrayType) (*ir.Function, error) {
	p, err := ctx.elementCopy(target, source,
		func(w int) string { return offset("source", "index", w) },
		func(int) string { return "target_elem_loc" },
	)
	if err != nil {
		return nil, err
	}
	name, err := ctx.reg.NewName("memory_conversion_static_to_dynamic")
	if err != nil {
		return nil, err
	}

	var s fnText
	s.line(memoryAttr)
	s.open("fn %s_copy(source: felt252, target: felt252, index: felt252, len: felt252)", name)
	s.open("if index == len")
	s.line("return ();")
	s.close()
	s.line("%s", p.read)
	s.line("%s", p.scale)
	s.line("let target_elem_loc = warp_memory.index_dyn(target, index, %d);", p.targetWidth)
	s.line("%s", p.write)
	s.line("%s_copy(source, target, index + 1, len)", name)
	s.close()
	s.blank()
	s.line(memoryAttr)
	s.open("fn %s(source: felt252) -> felt252", name)
	s.line("let target = warp_memory.new_dynamic_array(%d, %d);", source.Size, p.targetWidth)
	s.line("%s_copy(source, target, 0, %d);", name, source.Size)
	s.line("target")
	s.close()

	return &ir.Function{
		Name: name, Code: s.String(),
		Callees: callees([]ir.Callee{ctx.RequireImport(WarpMemoryArraysTrait)}, p.calls),
	}, nil
}

func (ctx *Context) dynamicToDynamic(target, source *types.ArrayType) (*ir.Function, error) {
	p, err := ctx.elementCopy(target, source,
		func(int) string { return "source_elem_loc" },
		func(int) string { return "target_elem_loc" },
	)
	if err != nil {
		return nil, err
	}
	name, err := ctx.reg.NewName("memory_conversion_dynamic_to_dynamic")
	if err != nil {
		return nil, err
	}

	var s fnText
	s.line(memoryAttr)
	s.open("fn %s_copy(source: felt252, target: felt252, index: felt252, len: felt252)", name)
	s.open("if index == len")
	s.line("return ();")
	s.close()
	s.line("let source_elem_loc = warp_memory.index_dyn(source, index, %d);", p.sourceWidth)
	s.line("%s", p.read)
	s.line("%s", p.scale)
	s.line("let target_elem_loc = warp_memory.index_dyn(target, index, %d);", p.targetWidth)
	s.line("%s", p.write)
	s.line("%s_copy(source, target, index + 1, len)", name)
	s.close()
	s.blank()
	s.line(memoryAttr)
	s.open("fn %s(source: felt252) -> felt252", name)
	s.line("let len = warp_memory.length_dyn(source);")
	s.line("let target = warp_memory.new_dynamic_array(len, %d);", p.targetWidth)
	s.line("%s_copy(source, target, 0, len);", name)
	s.line("target")
	s.close()

	return &ir.Function{
		Name: name, Code: s.String(),
		Callees: callees([]ir.Callee{ctx.RequireImport(WarpMemoryArraysTrait)}, p.calls),
	}, nil
}
