package codegen

import (
	"fmt"

	"github.com/xplshn/layoutc/pkg/config"
	"github.com/xplshn/layoutc/pkg/ir"
	"github.com/xplshn/layoutc/pkg/types"
	"github.com/xplshn/layoutc/pkg/util"
)

const (
	sourceVar = "source_elem"
	targetVar = "target_elem"
)

// scale returns the statement binding target_elem to source_elem converted from the
// source element type to the target element type, and the functions it calls
func (ctx *Context) scale(target, source types.Type) (string, []ir.Callee, error) {
	identity := fmt.Sprintf("let %s = %s;", targetVar, sourceVar)
	mismatch := func() error {
		return util.TranspileFailed("cannot scale %s into %s", source, target)
	}

	switch t := target.(type) {
	case *types.IntType:
		s, ok := source.(*types.IntType)
		if !ok {
			return "", nil, mismatch()
		}
		return ctx.scaleInteger(t, s)
	case *types.FixedBytesType:
		s, ok := source.(*types.FixedBytesType)
		if !ok {
			return "", nil, mismatch()
		}
		return ctx.scaleFixedBytes(t, s)
	case *types.AddressType:
		if _, ok := source.(*types.AddressType); !ok {
			return "", nil, mismatch()
		}
		return identity, nil, nil
	case *types.EnumType, *types.ContractType:
		if !types.Equal(target, source) {
			return "", nil, mismatch()
		}
		return identity, nil, nil
	case *types.BytesType, *types.StringType:
		switch source.(type) {
		case *types.BytesType, *types.StringType:
			return identity, nil, nil
		}
		return "", nil, mismatch()
	case *types.ArrayType:
		if _, ok := source.(*types.ArrayType); !ok {
			return "", nil, mismatch()
		}
		fn, err := ctx.ImplicitConversionFunc(target, source)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("let %s = %s(%s);", targetVar, fn.Name, sourceVar), []ir.Callee{fn}, nil
	case *types.StructType:
		if _, ok := source.(*types.StructType); !ok {
			return "", nil, mismatch()
		}
		if !types.Equal(target, source) || !ctx.cfg.IsFeatureEnabled(config.FeatShareStructs) {
			return "", nil, util.NotSupportedYet("scaling %s to %s in memory", source, target)
		}
		return identity, nil, nil
	case *types.IntLiteralType, *types.StringLiteralType:
		return "", nil, util.TranspileFailed("literal type %s cannot be an array element", target)
	}
	return "", nil, mismatch()
}

func (ctx *Context) scaleInteger(target, source *types.IntType) (string, []ir.Callee, error) {
	switch {
	case target.Signed && target.Bits != source.Bits:
		imp := ctx.IntConversion(source, target)
		return fmt.Sprintf("let %s = %s(%s);", targetVar, imp.Name, sourceVar), []ir.Callee{imp}, nil
	case !target.Signed && target.Bits == 256 && source.Bits < 256:
		return fmt.Sprintf("let %s: u256 = %s.into();", targetVar, sourceVar), []ir.Callee{ctx.RequireImport(IntoTrait)}, nil
	}
	return fmt.Sprintf("let %s = %s;", targetVar, sourceVar), nil, nil
}

func (ctx *Context) scaleFixedBytes(target, source *types.FixedBytesType) (string, []ir.Callee, error) {
	diff := target.Size - source.Size
	switch {
	case diff == 0:
		return fmt.Sprintf("let %s = %s;", targetVar, sourceVar), nil, nil
	case diff < 0:
		return "", nil, util.NotSupportedYet("narrowing %s to %s in an implicit conversion", source, target)
	}
	imp := ctx.BytesWidening(target)
	return fmt.Sprintf("let %s = %s(%s, %d);", targetVar, imp.Name, sourceVar, diff*8), []ir.Callee{imp}, nil
}
