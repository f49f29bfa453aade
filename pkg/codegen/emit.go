package codegen

import (
	"go.uber.org/zap"

	"github.com/xplshn/layoutc/pkg/ir"
)

// Program collects every synthesized function and library import of this run.
// Functions come in creation order, so callees precede their callers.
func (ctx *Context) Program() *ir.Program {
	prog := &ir.Program{Imports: ctx.reg.Imports(), Funcs: ctx.reg.Functions()}
	if ce := Logger().Check(zap.DebugLevel, "emitting program"); ce != nil {
		ce.Write(
			zap.Int("functions", len(prog.Funcs)),
			zap.Int("imports", len(prog.Imports)),
			zap.Uint64("fingerprint", prog.Fingerprint()),
		)
	}
	return prog
}
