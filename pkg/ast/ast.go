// Package ast defines the tree shared by the rewrite passes and the target code parser.
// Expression nodes carry a logical type and a data location when they come from the
// front end; nodes parsed back from emitted code leave both unset.
package ast

import (
	"github.com/xplshn/layoutc/pkg/ir"
	"github.com/xplshn/layoutc/pkg/token"
	"github.com/xplshn/layoutc/pkg/types"
)

// NodeType defines the kind of a node in the AST
type NodeType int

const (
	// Expressions
	Literal NodeType = iota
	Ident
	Unit
	BinaryOp
	FuncCall
	MethodCall
	TypeCast
	Assign

	// Statements
	FuncDecl
	Let
	If
	Return
	Block
	Use
)

// Location is the data location of an expression's value
type Location int

const (
	LocNone Location = iota
	LocMemory
	LocStorage
)

func (l Location) String() string {
	switch l {
	case LocMemory: return "memory"
	case LocStorage: return "storage"
	}
	return ""
}

type LiteralKind int

const (
	KindNumber LiteralKind = iota
	KindString
	KindHexString
)

// Node represents a node in the tree
type Node struct {
	Type   NodeType
	Tok    token.Token
	Parent *Node
	Data   interface{}
	Typ    types.Type
	Loc    Location
}

// --- Node Data Structs ---

// LiteralNode keeps the decimal text of numbers in Value and the hex encoding of
// string and hex literals in HexValue, without a 0x prefix
type LiteralNode struct {
	Kind     LiteralKind
	Value    string
	HexValue string
}
type IdentNode struct{ Name string }
type UnitNode struct{}
type BinaryOpNode struct{ Op token.Type; Left, Right *Node }
type TypeCastNode struct{ Expr *Node; Target types.Type }
type AssignNode struct{ Lhs, Rhs *Node }

// FuncCallNode calls FuncExpr. Callee is set when the call targets generated or library code.
type FuncCallNode struct {
	FuncExpr *Node
	Args     []*Node
	Callee   ir.Callee
}
type MethodCallNode struct {
	Recv   *Node
	Method string
	Args   []*Node
}

type Param struct{ Name, TypeName string }
type FuncDeclNode struct {
	Name       string
	Attrs      []string
	Params     []Param
	ReturnType string
	Body       *Node
}
type LetNode struct {
	Name     string
	TypeName string
	Init     *Node
}
type IfNode struct{ Cond, ThenBody, ElseBody *Node }
type ReturnNode struct{ Expr *Node }

// BlockNode ends with an optional Tail expression that is the value of the block
type BlockNode struct {
	Stmts []*Node
	Tail  *Node
}
type UseNode struct{ Path []string }

// --- Node Constructors ---

func newNode(tok token.Token, nodeType NodeType, data interface{}, children ...*Node) *Node {
	node := &Node{Type: nodeType, Tok: tok, Data: data}
	for _, child := range children {
		if child != nil {
			child.Parent = node
		}
	}
	return node
}

func NewLiteral(tok token.Token, kind LiteralKind, value, hexValue string) *Node {
	return newNode(tok, Literal, LiteralNode{Kind: kind, Value: value, HexValue: hexValue})
}
func NewNumber(tok token.Token, value string) *Node {
	return NewLiteral(tok, KindNumber, value, "")
}
func NewIdent(tok token.Token, name string) *Node {
	return newNode(tok, Ident, IdentNode{Name: name})
}
func NewUnit(tok token.Token) *Node {
	return newNode(tok, Unit, UnitNode{})
}
func NewBinaryOp(tok token.Token, op token.Type, left, right *Node) *Node {
	return newNode(tok, BinaryOp, BinaryOpNode{Op: op, Left: left, Right: right}, left, right)
}
func NewTypeCast(tok token.Token, expr *Node, target types.Type) *Node {
	node := newNode(tok, TypeCast, TypeCastNode{Expr: expr, Target: target}, expr)
	node.Typ = target
	return node
}
func NewAssign(tok token.Token, lhs, rhs *Node) *Node {
	node := newNode(tok, Assign, AssignNode{Lhs: lhs, Rhs: rhs}, lhs, rhs)
	node.Typ = lhs.Typ
	return node
}
func NewFuncCall(tok token.Token, funcExpr *Node, args []*Node) *Node {
	node := newNode(tok, FuncCall, FuncCallNode{FuncExpr: funcExpr, Args: args}, funcExpr)
	for _, arg := range args {
		arg.Parent = node
	}
	return node
}

// NewCallTo builds a typed call to generated or library code
func NewCallTo(tok token.Token, callee ir.Callee, args []*Node, typ types.Type, loc Location) *Node {
	node := NewFuncCall(tok, NewIdent(tok, callee.CalleeName()), args)
	d := node.Data.(FuncCallNode)
	d.Callee = callee
	node.Data = d
	node.Typ, node.Loc = typ, loc
	return node
}
func NewMethodCall(tok token.Token, recv *Node, method string, args []*Node) *Node {
	node := newNode(tok, MethodCall, MethodCallNode{Recv: recv, Method: method, Args: args}, recv)
	for _, arg := range args {
		arg.Parent = node
	}
	return node
}
func NewFuncDecl(tok token.Token, name string, attrs []string, params []Param, returnType string, body *Node) *Node {
	return newNode(tok, FuncDecl, FuncDeclNode{
		Name: name, Attrs: attrs, Params: params, ReturnType: returnType, Body: body,
	}, body)
}
func NewLet(tok token.Token, name, typeName string, init *Node) *Node {
	return newNode(tok, Let, LetNode{Name: name, TypeName: typeName, Init: init}, init)
}
func NewIf(tok token.Token, cond, thenBody, elseBody *Node) *Node {
	return newNode(tok, If, IfNode{Cond: cond, ThenBody: thenBody, ElseBody: elseBody}, cond, thenBody, elseBody)
}
func NewReturn(tok token.Token, expr *Node) *Node {
	return newNode(tok, Return, ReturnNode{Expr: expr}, expr)
}
func NewBlock(tok token.Token, stmts []*Node, tail *Node) *Node {
	node := newNode(tok, Block, BlockNode{Stmts: stmts, Tail: tail}, tail)
	for _, s := range stmts {
		if s != nil {
			s.Parent = node
		}
	}
	return node
}
func NewUse(tok token.Token, path []string) *Node {
	return newNode(tok, Use, UseNode{Path: path})
}
