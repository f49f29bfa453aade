// Package codegen synthesizes the target functions that convert values between layouts:
// widening array conversions in scratch memory and copies out of persistent storage.
// All synthesis for one compilation run goes through a single Context.
package codegen

import (
	"github.com/xplshn/layoutc/pkg/config"
)

type Context struct {
	cfg *config.Config
	reg *Registry
}

func NewContext(cfg *config.Config) *Context {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Context{cfg: cfg, reg: NewRegistry()}
}

func (ctx *Context) Config() *config.Config { return ctx.cfg }
func (ctx *Context) Registry() *Registry     { return ctx.reg }
