package passes

import (
	"go.uber.org/zap"

	"github.com/xplshn/layoutc/pkg/ast"
	"github.com/xplshn/layoutc/pkg/codegen"
	"github.com/xplshn/layoutc/pkg/types"
)

// StorageCopy wraps every stored reference value assigned into memory in a copy out
// of storage. It rewrites root in place.
func StorageCopy(ctx *codegen.Context, root *ast.Node) error {
	for _, assign := range ast.Collect(root, ast.Assign) {
		d := assign.Data.(ast.AssignNode)
		if d.Lhs.Loc != ast.LocMemory || d.Rhs.Loc != ast.LocStorage || !types.IsReferenceType(d.Rhs.Typ) {
			continue
		}
		conv, err := ctx.GenStorageToMemory(d.Rhs)
		if err != nil {
			return err
		}
		ast.ReplaceIn(assign, d.Rhs, conv)
		codegen.Logger().Debug("copying storage value into memory", zap.Stringer("type", conv.Typ))
	}
	return nil
}

// ImplicitConversion rebuilds memory arrays assigned to a memory destination of a
// wider array type. It rewrites root in place.
func ImplicitConversion(ctx *codegen.Context, root *ast.Node) error {
	for _, assign := range ast.Collect(root, ast.Assign) {
		d := assign.Data.(ast.AssignNode)
		if d.Lhs.Loc != ast.LocMemory || d.Rhs.Loc != ast.LocMemory {
			continue
		}
		if _, ok := d.Lhs.Typ.(*types.ArrayType); !ok {
			continue
		}
		if _, ok := d.Rhs.Typ.(*types.ArrayType); !ok {
			continue
		}
		conv, changed, err := ctx.GenIfNecessary(d.Rhs, d.Lhs.Typ)
		if err != nil {
			return err
		}
		if changed {
			ast.ReplaceIn(assign, d.Rhs, conv)
		}
	}
	return nil
}

// Run applies explicit cast lowering, storage copies and implicit array conversions,
// in that order, to a copy of root. On failure root is returned unchanged with the error.
func Run(ctx *codegen.Context, root *ast.Node) (*ast.Node, error) {
	out, err := ExplicitConversion(ctx, root)
	if err != nil {
		return root, err
	}
	for _, pass := range []func(*codegen.Context, *ast.Node) error{StorageCopy, ImplicitConversion} {
		if err := pass(ctx, out); err != nil {
			return root, err
		}
	}
	return out, nil
}
