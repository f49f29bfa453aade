// Package vm executes emitted conversion programs against a model of scratch memory and
// persistent storage, so synthesized code can be checked by what it does rather than
// by how it reads. It also enforces that every function only calls what it declares.
package vm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/xplshn/layoutc/pkg/ast"
	"github.com/xplshn/layoutc/pkg/ir"
	"github.com/xplshn/layoutc/pkg/parser"
	"github.com/xplshn/layoutc/pkg/token"
)

const DefaultMaxDepth = 10000

// memoryMethods maps each warp_memory method to the trait that provides it
var memoryMethods = map[string]string{
	"read":              "WarpMemoryTrait",
	"write":             "WarpMemoryTrait",
	"unsafe_write":      "WarpMemoryTrait",
	"alloc":             "WarpMemoryTrait",
	"unsafe_alloc":      "WarpMemoryTrait",
	"get_or_create_id":  "WarpMemoryTrait",
	"new_dynamic_array": "WarpMemoryArraysTrait",
	"index_dyn":         "WarpMemoryArraysTrait",
	"length_dyn":        "WarpMemoryArraysTrait",
}

// Error reports a failure inside a running function
type Error struct {
	Func string
	Tok  token.Token
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Func, e.Tok.Line, e.Tok.Column, e.Msg)
}

type function struct {
	data   ast.FuncDeclNode
	owner  string
	memory bool
}

// Machine runs one program. Calls counts invocations by name: generated functions by
// their own name, library functions by import name, storage operations as
// "WARP_STORAGE::op" and scratch operations as "warp_memory.op".
type Machine struct {
	Memory   *Memory
	Storage  *Storage
	MaxDepth int
	Calls    map[string]int

	funcs   map[string]*function
	allowed map[string]map[string]bool
	depth   int
}

type frame struct {
	fn   *function
	vars map[string]*big.Int
}

// New parses the emitted text of prog and checks that every function it declares
// belongs to a generated unit and every import a unit relies on is emitted
func New(prog *ir.Program) (*Machine, error) {
	decls, err := parser.Parse(prog.String())
	if err != nil {
		return nil, fmt.Errorf("parsing emitted program: %w", err)
	}
	m := &Machine{
		Memory:   NewMemory(),
		Storage:  NewStorage(),
		MaxDepth: DefaultMaxDepth,
		Calls:    make(map[string]int),
		funcs:    make(map[string]*function),
		allowed:  make(map[string]map[string]bool),
	}

	imported := make(map[string]bool)
	for _, d := range decls {
		switch d.Type {
		case ast.Use:
			path := d.Data.(ast.UseNode).Path
			imported[path[len(path)-1]] = true
		case ast.FuncDecl:
			data := d.Data.(ast.FuncDeclNode)
			if _, dup := m.funcs[data.Name]; dup {
				return nil, fmt.Errorf("function %s is defined twice", data.Name)
			}
			owner := ownerOf(prog, data.Name)
			if owner == "" {
				return nil, fmt.Errorf("function %s does not belong to any generated unit", data.Name)
			}
			m.funcs[data.Name] = &function{data: data, owner: owner, memory: usesMemory(data.Attrs)}
		}
	}

	for _, f := range prog.Funcs {
		if m.funcs[f.Name] == nil {
			return nil, fmt.Errorf("generated unit %s does not define its entry point", f.Name)
		}
		allowed := map[string]bool{f.Name: true}
		for _, c := range f.Callees {
			switch c := c.(type) {
			case *ir.Import:
				if !imported[c.Name] {
					return nil, fmt.Errorf("%s relies on %s, which is not imported", f.Name, c.QualifiedName())
				}
			case *ir.Function:
				if prog.FindFunc(c.Name) == nil {
					return nil, fmt.Errorf("%s calls %s, which is not emitted", f.Name, c.Name)
				}
			}
			allowed[c.CalleeName()] = true
		}
		m.allowed[f.Name] = allowed
	}
	return m, nil
}

// ownerOf finds the unit whose name prefixes a declared function name
func ownerOf(prog *ir.Program, name string) string {
	owner := ""
	for _, f := range prog.Funcs {
		if (name == f.Name || strings.HasPrefix(name, f.Name+"_")) && len(f.Name) > len(owner) {
			owner = f.Name
		}
	}
	return owner
}

func usesMemory(attrs []string) bool {
	for _, a := range attrs {
		if strings.HasPrefix(a, "implicit(") && strings.Contains(a, "warp_memory") {
			return true
		}
	}
	return false
}

// Call runs the function name with args and returns its value, nil for unit
func (m *Machine) Call(name string, args ...*big.Int) (*big.Int, error) {
	f, ok := m.funcs[name]
	if !ok {
		return nil, fmt.Errorf("no function named %s", name)
	}
	m.depth = 0
	return m.invoke(f, token.Token{}, args)
}

func (m *Machine) invoke(f *function, tok token.Token, args []*big.Int) (*big.Int, error) {
	if len(args) != len(f.data.Params) {
		return nil, &Error{Func: f.data.Name, Tok: tok, Msg: fmt.Sprintf("expected %d arguments, got %d", len(f.data.Params), len(args))}
	}
	m.depth++
	defer func() { m.depth-- }()
	if m.depth > m.MaxDepth {
		return nil, &Error{Func: f.data.Name, Tok: tok, Msg: fmt.Sprintf("call depth exceeds %d", m.MaxDepth)}
	}
	m.Calls[f.data.Name]++

	fr := &frame{fn: f, vars: make(map[string]*big.Int, len(args))}
	for i, p := range f.data.Params {
		fr.vars[p.Name] = args[i]
	}
	v, _, err := m.execBlock(fr, f.data.Body)
	return v, err
}

func (m *Machine) errorf(fr *frame, tok token.Token, format string, args ...interface{}) error {
	return &Error{Func: fr.fn.data.Name, Tok: tok, Msg: fmt.Sprintf(format, args...)}
}

// execBlock runs a block, reporting whether a return statement ended it
func (m *Machine) execBlock(fr *frame, node *ast.Node) (*big.Int, bool, error) {
	d := node.Data.(ast.BlockNode)
	for _, stmt := range d.Stmts {
		switch stmt.Type {
		case ast.Let:
			let := stmt.Data.(ast.LetNode)
			v, err := m.eval(fr, let.Init)
			if err != nil {
				return nil, false, err
			}
			fr.vars[let.Name] = v
		case ast.If:
			v, returned, err := m.execIf(fr, stmt)
			if err != nil || returned {
				return v, returned, err
			}
		case ast.Return:
			ret := stmt.Data.(ast.ReturnNode)
			if ret.Expr == nil {
				return nil, true, nil
			}
			v, err := m.eval(fr, ret.Expr)
			return v, true, err
		default:
			if _, err := m.eval(fr, stmt); err != nil {
				return nil, false, err
			}
		}
	}
	if d.Tail == nil {
		return nil, false, nil
	}
	v, err := m.eval(fr, d.Tail)
	return v, false, err
}

func (m *Machine) execIf(fr *frame, node *ast.Node) (*big.Int, bool, error) {
	d := node.Data.(ast.IfNode)
	cond, err := m.value(fr, d.Cond)
	if err != nil {
		return nil, false, err
	}
	switch {
	case cond.Sign() != 0:
		return m.execBlock(fr, d.ThenBody)
	case d.ElseBody == nil:
		return nil, false, nil
	case d.ElseBody.Type == ast.If:
		return m.execIf(fr, d.ElseBody)
	}
	return m.execBlock(fr, d.ElseBody)
}

// value evaluates an expression that must produce a word
func (m *Machine) value(fr *frame, node *ast.Node) (*big.Int, error) {
	v, err := m.eval(fr, node)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, m.errorf(fr, node.Tok, "unit used as a value")
	}
	return v, nil
}

func (m *Machine) values(fr *frame, nodes []*ast.Node) ([]*big.Int, error) {
	out := make([]*big.Int, len(nodes))
	for i, n := range nodes {
		v, err := m.value(fr, n)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *Machine) eval(fr *frame, node *ast.Node) (*big.Int, error) {
	switch node.Type {
	case ast.Literal:
		d := node.Data.(ast.LiteralNode)
		v, ok := new(big.Int).SetString(d.Value, 0)
		if !ok {
			return nil, m.errorf(fr, node.Tok, "invalid number %q", d.Value)
		}
		return v, nil
	case ast.Ident:
		name := node.Data.(ast.IdentNode).Name
		v, ok := fr.vars[name]
		if !ok {
			return nil, m.errorf(fr, node.Tok, "undefined variable %s", name)
		}
		return v, nil
	case ast.Unit:
		return nil, nil
	case ast.BinaryOp:
		return m.binaryOp(fr, node)
	case ast.FuncCall:
		return m.call(fr, node)
	case ast.MethodCall:
		return m.method(fr, node)
	}
	return nil, m.errorf(fr, node.Tok, "cannot evaluate node kind %d", node.Type)
}

func (m *Machine) binaryOp(fr *frame, node *ast.Node) (*big.Int, error) {
	d := node.Data.(ast.BinaryOpNode)
	l, err := m.value(fr, d.Left)
	if err != nil {
		return nil, err
	}
	r, err := m.value(fr, d.Right)
	if err != nil {
		return nil, err
	}
	boolean := func(b bool) (*big.Int, error) {
		if b {
			return big.NewInt(1), nil
		}
		return new(big.Int), nil
	}
	switch d.Op {
	case token.Plus:
		return new(big.Int).Mod(new(big.Int).Add(l, r), FieldPrime), nil
	case token.Minus:
		return new(big.Int).Mod(new(big.Int).Sub(l, r), FieldPrime), nil
	case token.Star:
		return new(big.Int).Mod(new(big.Int).Mul(l, r), FieldPrime), nil
	case token.EqEq:
		return boolean(l.Cmp(r) == 0)
	case token.Neq:
		return boolean(l.Cmp(r) != 0)
	case token.Lt:
		return boolean(l.Cmp(r) < 0)
	case token.Gt:
		return boolean(l.Cmp(r) > 0)
	}
	return nil, m.errorf(fr, node.Tok, "unsupported operator %s", d.Op)
}

func (m *Machine) permitted(fr *frame, name string) bool { return m.allowed[fr.fn.owner][name] }

func (m *Machine) call(fr *frame, node *ast.Node) (*big.Int, error) {
	d := node.Data.(ast.FuncCallNode)
	if d.FuncExpr.Type != ast.Ident {
		return nil, m.errorf(fr, node.Tok, "call through a non-name expression")
	}
	name := d.FuncExpr.Data.(ast.IdentNode).Name
	args, err := m.values(fr, d.Args)
	if err != nil {
		return nil, err
	}

	if strings.Contains(name, "::") {
		return m.storageCall(fr, node.Tok, name, args)
	}
	if target, ok := m.funcs[name]; ok {
		if !m.permitted(fr, target.owner) {
			return nil, m.errorf(fr, node.Tok, "calls %s, which is not among its callees", name)
		}
		if target.memory && !fr.fn.memory {
			return nil, m.errorf(fr, node.Tok, "calls %s without the warp_memory implicit", name)
		}
		return m.invoke(target, node.Tok, args)
	}

	fn, arity, ok := lookupNative(name)
	if !ok {
		return nil, m.errorf(fr, node.Tok, "unknown function %s", name)
	}
	if !m.permitted(fr, name) {
		return nil, m.errorf(fr, node.Tok, "calls %s without importing it", name)
	}
	if len(args) != arity {
		return nil, m.errorf(fr, node.Tok, "%s expects %d arguments, got %d", name, arity, len(args))
	}
	m.Calls[name]++
	v, err := fn(m, args)
	if err != nil {
		return nil, m.errorf(fr, node.Tok, "%s: %v", name, err)
	}
	return v, nil
}

func (m *Machine) storageCall(fr *frame, tok token.Token, name string, args []*big.Int) (*big.Int, error) {
	parts := strings.SplitN(name, "::", 2)
	if parts[0] != "WARP_STORAGE" {
		return nil, m.errorf(fr, tok, "unknown function %s", name)
	}
	if !m.permitted(fr, "WARP_STORAGE") {
		return nil, m.errorf(fr, tok, "calls %s without importing WARP_STORAGE", name)
	}
	arity := map[string]int{"read": 1, "write": 2, "dyn_index": 3, "dyn_length": 1}
	n, ok := arity[parts[1]]
	if !ok {
		return nil, m.errorf(fr, tok, "unknown storage operation %s", parts[1])
	}
	if len(args) != n {
		return nil, m.errorf(fr, tok, "%s expects %d arguments, got %d", name, n, len(args))
	}
	m.Calls[name]++

	switch parts[1] {
	case "read":
		return m.Storage.Read(args[0]), nil
	case "write":
		m.Storage.Write(args[0], args[1])
		return nil, nil
	case "dyn_index":
		width, err := toAddr(args[2])
		if err != nil {
			return nil, m.errorf(fr, tok, "%v", err)
		}
		return m.Storage.DynIndex(args[0], args[1], width), nil
	}
	return m.Storage.DynLength(args[0]), nil
}

func (m *Machine) method(fr *frame, node *ast.Node) (*big.Int, error) {
	d := node.Data.(ast.MethodCallNode)
	if d.Method == "into" {
		if !m.permitted(fr, "Into") {
			return nil, m.errorf(fr, node.Tok, "calls into without importing Into")
		}
		if len(d.Args) != 0 {
			return nil, m.errorf(fr, node.Tok, "into takes no arguments")
		}
		m.Calls["into"]++
		return m.value(fr, d.Recv)
	}

	if d.Recv.Type != ast.Ident || d.Recv.Data.(ast.IdentNode).Name != "warp_memory" {
		return nil, m.errorf(fr, node.Tok, "unknown method %s", d.Method)
	}
	trait, ok := memoryMethods[d.Method]
	if !ok {
		return nil, m.errorf(fr, node.Tok, "warp_memory has no method %s", d.Method)
	}
	if !fr.fn.memory {
		return nil, m.errorf(fr, node.Tok, "uses warp_memory without the warp_memory implicit")
	}
	if !m.permitted(fr, trait) {
		return nil, m.errorf(fr, node.Tok, "calls warp_memory.%s without importing %s", d.Method, trait)
	}
	args, err := m.values(fr, d.Args)
	if err != nil {
		return nil, err
	}
	m.Calls["warp_memory."+d.Method]++

	v, err := m.memoryOp(d.Method, args)
	if err != nil {
		return nil, m.errorf(fr, node.Tok, "warp_memory.%s: %v", d.Method, err)
	}
	return v, nil
}

func (m *Machine) memoryOp(method string, args []*big.Int) (*big.Int, error) {
	arity := map[string]int{
		"read": 1, "write": 2, "unsafe_write": 2, "alloc": 1, "unsafe_alloc": 1,
		"get_or_create_id": 2, "new_dynamic_array": 2, "index_dyn": 3, "length_dyn": 1,
	}
	if len(args) != arity[method] {
		return nil, fmt.Errorf("expected %d arguments, got %d", arity[method], len(args))
	}
	ints := make([]int, len(args))
	for i, a := range args {
		if (method == "write" || method == "unsafe_write") && i == 1 {
			continue
		}
		n, err := toAddr(a)
		if err != nil {
			return nil, err
		}
		ints[i] = n
	}
	addr := func(n int, err error) (*big.Int, error) {
		if err != nil {
			return nil, err
		}
		return big.NewInt(int64(n)), nil
	}

	switch method {
	case "read":
		return m.Memory.Read(ints[0])
	case "write", "unsafe_write":
		return nil, m.Memory.Write(ints[0], args[1])
	case "alloc", "unsafe_alloc":
		return big.NewInt(int64(m.Memory.Alloc(ints[0]))), nil
	case "get_or_create_id":
		return addr(m.Memory.GetOrCreateID(ints[0], ints[1]))
	case "new_dynamic_array":
		return big.NewInt(int64(m.Memory.NewDynamicArray(ints[0], ints[1]))), nil
	case "index_dyn":
		return addr(m.Memory.IndexDyn(ints[0], ints[1], ints[2]))
	}
	return addr(m.Memory.LengthDyn(ints[0]))
}
