// Package passes rewrites typed trees ahead of emission. Explicit casts are lowered into
// relabels, literal rewrites and library calls, storage values assigned into memory are
// copied out, and memory arrays are rebuilt where their destination is wider.
package passes

import (
	"math/big"
	"strings"

	"go.uber.org/zap"

	"github.com/xplshn/layoutc/pkg/ast"
	"github.com/xplshn/layoutc/pkg/codegen"
	"github.com/xplshn/layoutc/pkg/config"
	"github.com/xplshn/layoutc/pkg/ir"
	"github.com/xplshn/layoutc/pkg/types"
	"github.com/xplshn/layoutc/pkg/util"
)

// ExplicitConversion lowers every cast under root and returns the rewritten tree.
// The work happens on a copy, so root is left as it was when any cast fails.
func ExplicitConversion(ctx *codegen.Context, root *ast.Node) (*ast.Node, error) {
	out := ast.Clone(root)
	casts := ast.Collect(out, ast.TypeCast)
	// innermost first, so an outer cast sees its operand already lowered
	for i := len(casts) - 1; i >= 0; i-- {
		cast := casts[i]
		parent := cast.Parent
		repl, err := lowerCast(ctx, cast)
		if err != nil {
			return root, err
		}
		codegen.Logger().Debug("lowered cast",
			zap.Stringer("target", cast.Typ),
			zap.String("result", ast.Print(repl)),
		)
		if parent == nil {
			repl.Parent = nil
			out = repl
			continue
		}
		ast.ReplaceIn(parent, cast, repl)
	}
	return out, nil
}

func lowerCast(ctx *codegen.Context, cast *ast.Node) (*ast.Node, error) {
	d := cast.Data.(ast.TypeCastNode)
	expr, target := d.Expr, d.Target
	if expr.Typ == nil {
		return nil, util.TranspileFailed("operand of the cast to %s has no type", target)
	}
	if types.Equal(expr.Typ, target) {
		util.Warn(ctx.Config(), config.WarnExtra, cast.Tok, "redundant cast to %s", target)
	}

	switch t := target.(type) {
	case *types.ContractType:
		return relabel(expr, target), nil
	case *types.IntType:
		return toInt(ctx, cast, t, expr)
	case *types.AddressType:
		return toAddress(ctx, t, expr)
	case *types.FixedBytesType:
		return toFixedBytes(ctx, t, expr)
	case *types.BytesType, *types.StringType:
		switch expr.Typ.(type) {
		case *types.BytesType, *types.StringType:
			return relabel(expr, target), nil
		}
	case *types.StructType, *types.EnumType, *types.ArrayType, *types.IntLiteralType, *types.StringLiteralType:
	}
	return nil, noConversion(expr.Typ, target)
}

func noConversion(source, target types.Type) error {
	return util.TranspileFailed("no explicit conversion from %s to %s", source, target)
}

// relabel keeps the operand and only changes its static type
func relabel(expr *ast.Node, target types.Type) *ast.Node {
	expr.Typ = target
	return expr
}

func callTo(callee ir.Callee, target types.Type, args ...*ast.Node) *ast.Node {
	return ast.NewCallTo(args[0].Tok, callee, args, target, ast.LocNone)
}

func number(expr *ast.Node, value int64) *ast.Node {
	n := ast.NewNumber(expr.Tok, big.NewInt(value).String())
	n.Typ = types.IntLiteral
	return n
}

func toInt(ctx *codegen.Context, cast *ast.Node, t *types.IntType, expr *ast.Node) (*ast.Node, error) {
	switch s := expr.Typ.(type) {
	case *types.FixedBytesType:
		if s.Size*8 != t.Bits {
			return nil, util.TranspileFailed("%s and %s differ in width", s, t)
		}
		return relabel(expr, t), nil
	case *types.IntLiteralType:
		return truncateLiteral(ctx, cast, t, expr)
	case *types.IntType:
		if s.Bits == t.Bits {
			return relabel(expr, t), nil
		}
		return callTo(ctx.IntConversion(s, t), t, expr), nil
	case *types.AddressType:
		return callTo(ctx.RequireImport(codegen.FeltToUint256), t, expr), nil
	}
	return nil, noConversion(expr.Typ, t)
}

// literalValue reads the integer held by a number literal
func literalValue(expr *ast.Node) (*big.Int, error) {
	if expr.Type != ast.Literal {
		return nil, util.TranspileFailed("operand of type %s is not a literal", expr.Typ)
	}
	d := expr.Data.(ast.LiteralNode)
	if d.Kind != ast.KindNumber {
		return nil, util.TranspileFailed("literal %q is not a number", d.Value)
	}
	v, ok := new(big.Int).SetString(d.Value, 0)
	if !ok {
		return nil, util.TranspileFailed("malformed number literal %q", d.Value)
	}
	return v, nil
}

// truncateLiteral keeps the low t.Bits bits of the two's complement encoding
func truncateLiteral(ctx *codegen.Context, cast *ast.Node, t *types.IntType, expr *ast.Node) (*ast.Node, error) {
	v, err := literalValue(expr)
	if err != nil {
		return nil, err
	}
	modulus := new(big.Int).Lsh(big.NewInt(1), uint(t.Bits))
	lo, hi := new(big.Int), modulus
	if t.Signed {
		half := new(big.Int).Rsh(modulus, 1)
		lo, hi = new(big.Int).Neg(half), half
	}
	if v.Cmp(lo) < 0 || v.Cmp(hi) >= 0 {
		util.Warn(ctx.Config(), config.WarnTruncation, cast.Tok, "literal %s does not fit in %s and is truncated", v, t)
	}
	n := ast.NewNumber(expr.Tok, new(big.Int).Mod(v, modulus).String())
	n.Typ = t
	return n, nil
}

func toAddress(ctx *codegen.Context, t *types.AddressType, expr *ast.Node) (*ast.Node, error) {
	switch s := expr.Typ.(type) {
	case *types.AddressType, *types.IntLiteralType:
		return relabel(expr, t), nil
	case *types.IntType:
		if s.Bits == 256 {
			return callTo(ctx.RequireImport(codegen.UnsafeAddressFromU256), t, expr), nil
		}
	case *types.FixedBytesType:
		if s.Size == 32 {
			return callTo(ctx.RequireImport(codegen.UnsafeAddressFromU256), t, expr), nil
		}
	}
	return nil, noConversion(expr.Typ, t)
}

func toFixedBytes(ctx *codegen.Context, t *types.FixedBytesType, expr *ast.Node) (*ast.Node, error) {
	switch s := expr.Typ.(type) {
	case *types.AddressType:
		return callTo(ctx.RequireImport(codegen.FeltToUint256), t, expr), nil
	case *types.BytesType, *types.StringType:
		return callTo(ctx.BytesToFixed(t), t, expr), nil
	case *types.FixedBytesType:
		diff := t.Size - s.Size
		switch {
		case diff == 0:
			return relabel(expr, t), nil
		case diff > 0:
			return callTo(ctx.BytesWidening(t), t, expr, number(expr, int64(diff*8))), nil
		}
		return callTo(ctx.BytesNarrowing(), t, expr, number(expr, int64(-diff*8))), nil
	case *types.IntLiteralType:
		v, err := literalValue(expr)
		if err != nil {
			return nil, err
		}
		if v.Sign() < 0 || v.BitLen() > t.Size*8 {
			return nil, util.TranspileFailed("literal %s does not fit in %s", v, t)
		}
		return relabel(expr, t), nil
	case *types.StringLiteralType:
		return padLiteral(t, expr)
	case *types.IntType:
		if t.Size*8 < s.Bits {
			return nil, util.TranspileFailed("%s cannot hold %s without narrowing", t, s)
		}
		return relabel(expr, t), nil
	}
	return nil, noConversion(expr.Typ, t)
}

// padLiteral right-pads the bytes of a string or hex literal with zeros up to t.Size
func padLiteral(t *types.FixedBytesType, expr *ast.Node) (*ast.Node, error) {
	if expr.Type != ast.Literal {
		return nil, util.TranspileFailed("operand of type %s is not a literal", expr.Typ)
	}
	d := expr.Data.(ast.LiteralNode)
	hex := strings.ToLower(d.HexValue)
	if d.Kind == ast.KindNumber || len(hex)%2 != 0 {
		return nil, util.TranspileFailed("literal %q has no byte encoding", d.Value)
	}
	if len(hex)/2 > t.Size {
		return nil, util.TranspileFailed("literal of %d bytes does not fit in %s", len(hex)/2, t)
	}
	hex += strings.Repeat("0", t.Size*2-len(hex))
	v, ok := new(big.Int).SetString(hex, 16)
	if !ok {
		return nil, util.TranspileFailed("malformed hex literal %q", d.HexValue)
	}
	n := ast.NewLiteral(expr.Tok, ast.KindHexString, v.String(), hex)
	n.Typ = t
	return n, nil
}
