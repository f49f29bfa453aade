package codegen

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xplshn/layoutc/pkg/ir"
	"github.com/xplshn/layoutc/pkg/util"
)

// Key identifies one synthesis request. Source is empty for single-type families.
type Key struct {
	Family string
	Target string
	Source string
}

func (k Key) String() string {
	if k.Source == "" {
		return fmt.Sprintf("%s(%s)", k.Family, k.Target)
	}
	return fmt.Sprintf("%s(%s <- %s)", k.Family, k.Target, k.Source)
}

// Registry is an insert-if-absent table of synthesized functions and the library
// symbols they use. Entries are never updated or removed.
type Registry struct {
	funcs   []*ir.Function
	byKey   map[Key]*ir.Function
	names   map[string]bool
	pending map[Key]bool
	counter int

	imports  []*ir.Import
	byImport map[string]*ir.Import
}

func NewRegistry() *Registry {
	return &Registry{
		byKey:    make(map[Key]*ir.Function),
		names:    make(map[string]bool),
		pending:  make(map[Key]bool),
		byImport: make(map[string]*ir.Import),
	}
}

// GetOrCreate returns the function stored for key, running synthesize at most once to
// create it. A failed synthesis stores nothing. Requesting a key while it is still
// being synthesized means the type refers to itself and is reported as an error.
func (r *Registry) GetOrCreate(key Key, synthesize func() (*ir.Function, error)) (*ir.Function, error) {
	if fn, ok := r.byKey[key]; ok {
		return fn, nil
	}
	if r.pending[key] {
		return nil, util.TranspileFailed("cyclic conversion request for %s", key)
	}
	r.pending[key] = true
	defer delete(r.pending, key)

	fn, err := synthesize()
	if err != nil {
		return nil, err
	}
	if !r.names[fn.Name] {
		return nil, util.TranspileFailed("function %s for %s was not named by the registry", fn.Name, key)
	}
	fn.Family = key.Family
	r.byKey[key] = fn
	r.funcs = append(r.funcs, fn)
	Logger().Debug("synthesized function",
		zap.String("name", fn.Name),
		zap.String("family", key.Family),
		zap.String("target", key.Target),
		zap.String("source", key.Source),
		zap.Int("callees", len(fn.Callees)),
	)
	return fn, nil
}

// NewName derives a unique function name from tag and a monotonically increasing counter.
// Synthesizers call it after their nested requests, so the counter matches the table size.
func (r *Registry) NewName(tag string) (string, error) {
	name := fmt.Sprintf("%s%d", tag, r.counter)
	r.counter++
	if r.names[name] {
		return "", util.TranspileFailed("duplicate generated function name %s", name)
	}
	r.names[name] = true
	return name, nil
}

// RequireImport returns the shared reference to a library symbol such as
// "warplib::memory::WarpMemoryTrait"
func (r *Registry) RequireImport(qualified string) *ir.Import {
	if imp, ok := r.byImport[qualified]; ok {
		return imp
	}
	imp := ir.NewImport(qualified)
	r.byImport[qualified] = imp
	r.imports = append(r.imports, imp)
	return imp
}

func (r *Registry) Lookup(key Key) (*ir.Function, bool) {
	fn, ok := r.byKey[key]
	return fn, ok
}

// Functions returns the stored functions in creation order, so callees precede callers
func (r *Registry) Functions() []*ir.Function { return append([]*ir.Function(nil), r.funcs...) }
func (r *Registry) Imports() []*ir.Import     { return append([]*ir.Import(nil), r.imports...) }
func (r *Registry) Len() int                  { return len(r.funcs) }
