package ast

import (
	"fmt"
	"strings"
)

// Children returns the direct children of node in evaluation order
func Children(node *Node) []*Node {
	if node == nil {
		return nil
	}
	var out []*Node
	add := func(ns ...*Node) {
		for _, n := range ns {
			if n != nil {
				out = append(out, n)
			}
		}
	}
	switch d := node.Data.(type) {
	case BinaryOpNode: add(d.Left, d.Right)
	case TypeCastNode: add(d.Expr)
	case AssignNode: add(d.Lhs, d.Rhs)
	case FuncCallNode: add(d.FuncExpr); add(d.Args...)
	case MethodCallNode: add(d.Recv); add(d.Args...)
	case FuncDeclNode: add(d.Body)
	case LetNode: add(d.Init)
	case IfNode: add(d.Cond, d.ThenBody, d.ElseBody)
	case ReturnNode: add(d.Expr)
	case BlockNode: add(d.Stmts...); add(d.Tail)
	}
	return out
}

// Walk visits node and its descendants in pre-order. Returning false skips the children.
func Walk(node *Node, visit func(*Node) bool) {
	if node == nil || !visit(node) {
		return
	}
	for _, child := range Children(node) {
		Walk(child, visit)
	}
}

// Collect returns every node of the given type in pre-order
func Collect(root *Node, nodeType NodeType) []*Node {
	var found []*Node
	Walk(root, func(n *Node) bool {
		if n.Type == nodeType {
			found = append(found, n)
		}
		return true
	})
	return found
}

// Replace swaps old for repl inside old's parent. It reports false when old is a root.
func Replace(old, repl *Node) bool { return ReplaceIn(old.Parent, old, repl) }

// ReplaceIn swaps old for repl inside parent. Use it when building repl has already
// re-parented old, as wrapping old in a call does.
func ReplaceIn(parent, old, repl *Node) bool {
	if parent == nil {
		return false
	}
	swap := func(n *Node) *Node {
		if n == old {
			return repl
		}
		return n
	}
	swapAll := func(ns []*Node) {
		for i := range ns {
			ns[i] = swap(ns[i])
		}
	}
	switch d := parent.Data.(type) {
	case BinaryOpNode:
		d.Left, d.Right = swap(d.Left), swap(d.Right)
		parent.Data = d
	case TypeCastNode:
		d.Expr = swap(d.Expr)
		parent.Data = d
	case AssignNode:
		d.Lhs, d.Rhs = swap(d.Lhs), swap(d.Rhs)
		parent.Data = d
	case FuncCallNode:
		d.FuncExpr = swap(d.FuncExpr)
		swapAll(d.Args)
		parent.Data = d
	case MethodCallNode:
		d.Recv = swap(d.Recv)
		swapAll(d.Args)
		parent.Data = d
	case FuncDeclNode:
		d.Body = swap(d.Body)
		parent.Data = d
	case LetNode:
		d.Init = swap(d.Init)
		parent.Data = d
	case IfNode:
		d.Cond, d.ThenBody, d.ElseBody = swap(d.Cond), swap(d.ThenBody), swap(d.ElseBody)
		parent.Data = d
	case ReturnNode:
		d.Expr = swap(d.Expr)
		parent.Data = d
	case BlockNode:
		swapAll(d.Stmts)
		d.Tail = swap(d.Tail)
		parent.Data = d
	default:
		return false
	}
	repl.Parent = parent
	if old.Parent == parent {
		old.Parent = nil
	}
	return true
}

// Clone deep-copies a tree. Types and callees are immutable and stay shared.
func Clone(node *Node) *Node {
	if node == nil {
		return nil
	}
	c := &Node{Type: node.Type, Tok: node.Tok, Typ: node.Typ, Loc: node.Loc}
	cloneAll := func(ns []*Node) []*Node {
		if ns == nil {
			return nil
		}
		out := make([]*Node, len(ns))
		for i, n := range ns {
			out[i] = Clone(n)
		}
		return out
	}
	switch d := node.Data.(type) {
	case BinaryOpNode:
		d.Left, d.Right = Clone(d.Left), Clone(d.Right)
		c.Data = d
	case TypeCastNode:
		d.Expr = Clone(d.Expr)
		c.Data = d
	case AssignNode:
		d.Lhs, d.Rhs = Clone(d.Lhs), Clone(d.Rhs)
		c.Data = d
	case FuncCallNode:
		d.FuncExpr, d.Args = Clone(d.FuncExpr), cloneAll(d.Args)
		c.Data = d
	case MethodCallNode:
		d.Recv, d.Args = Clone(d.Recv), cloneAll(d.Args)
		c.Data = d
	case FuncDeclNode:
		d.Body = Clone(d.Body)
		d.Attrs = append([]string(nil), d.Attrs...)
		d.Params = append([]Param(nil), d.Params...)
		c.Data = d
	case LetNode:
		d.Init = Clone(d.Init)
		c.Data = d
	case IfNode:
		d.Cond, d.ThenBody, d.ElseBody = Clone(d.Cond), Clone(d.ThenBody), Clone(d.ElseBody)
		c.Data = d
	case ReturnNode:
		d.Expr = Clone(d.Expr)
		c.Data = d
	case BlockNode:
		d.Stmts, d.Tail = cloneAll(d.Stmts), Clone(d.Tail)
		c.Data = d
	case UseNode:
		d.Path = append([]string(nil), d.Path...)
		c.Data = d
	default:
		c.Data = node.Data
	}
	for _, child := range Children(c) {
		child.Parent = c
	}
	return c
}

// Print renders a tree back as target-style source text
func Print(node *Node) string {
	var sb strings.Builder
	printNode(&sb, node, 0)
	return sb.String()
}

func printNode(sb *strings.Builder, node *Node, indent int) {
	if node == nil {
		return
	}
	pad := strings.Repeat("    ", indent)
	switch d := node.Data.(type) {
	case LiteralNode:
		switch d.Kind {
		case KindNumber: sb.WriteString(d.Value)
		case KindHexString: fmt.Fprintf(sb, "hex\"%s\"", d.HexValue)
		case KindString: fmt.Fprintf(sb, "%q", d.Value)
		}
	case IdentNode:
		sb.WriteString(d.Name)
	case UnitNode:
		sb.WriteString("()")
	case BinaryOpNode:
		printOperand(sb, d.Left, indent)
		fmt.Fprintf(sb, " %s ", d.Op)
		printOperand(sb, d.Right, indent)
	case TypeCastNode:
		fmt.Fprintf(sb, "%s(", d.Target)
		printNode(sb, d.Expr, indent)
		sb.WriteString(")")
	case AssignNode:
		printNode(sb, d.Lhs, indent)
		sb.WriteString(" = ")
		printNode(sb, d.Rhs, indent)
	case FuncCallNode:
		printNode(sb, d.FuncExpr, indent)
		printArgs(sb, d.Args, indent)
	case MethodCallNode:
		printNode(sb, d.Recv, indent)
		fmt.Fprintf(sb, ".%s", d.Method)
		printArgs(sb, d.Args, indent)
	case FuncDeclNode:
		for _, attr := range d.Attrs {
			fmt.Fprintf(sb, "%s#[%s]\n", pad, attr)
		}
		params := make([]string, len(d.Params))
		for i, p := range d.Params {
			params[i] = p.Name + ": " + p.TypeName
		}
		fmt.Fprintf(sb, "%sfn %s(%s)", pad, d.Name, strings.Join(params, ", "))
		if d.ReturnType != "" {
			fmt.Fprintf(sb, " -> %s", d.ReturnType)
		}
		sb.WriteString(" ")
		printNode(sb, d.Body, indent)
	case LetNode:
		fmt.Fprintf(sb, "let %s", d.Name)
		if d.TypeName != "" {
			fmt.Fprintf(sb, ": %s", d.TypeName)
		}
		sb.WriteString(" = ")
		printNode(sb, d.Init, indent)
		sb.WriteString(";")
	case IfNode:
		sb.WriteString("if ")
		printNode(sb, d.Cond, indent)
		sb.WriteString(" ")
		printNode(sb, d.ThenBody, indent)
		if d.ElseBody != nil {
			sb.WriteString(" else ")
			printNode(sb, d.ElseBody, indent)
		}
	case ReturnNode:
		sb.WriteString("return")
		if d.Expr != nil {
			sb.WriteString(" ")
			printNode(sb, d.Expr, indent)
		}
		sb.WriteString(";")
	case BlockNode:
		sb.WriteString("{\n")
		inner := strings.Repeat("    ", indent+1)
		for _, s := range d.Stmts {
			sb.WriteString(inner)
			printNode(sb, s, indent+1)
			if s.Type != Let && s.Type != Return && s.Type != If {
				sb.WriteString(";")
			}
			sb.WriteString("\n")
		}
		if d.Tail != nil {
			sb.WriteString(inner)
			printNode(sb, d.Tail, indent+1)
			sb.WriteString("\n")
		}
		fmt.Fprintf(sb, "%s}", pad)
	case UseNode:
		fmt.Fprintf(sb, "use %s;", strings.Join(d.Path, "::"))
	}
}

// printOperand parenthesizes nested binary operations
func printOperand(sb *strings.Builder, node *Node, indent int) {
	if node != nil && node.Type == BinaryOp {
		sb.WriteString("(")
		printNode(sb, node, indent)
		sb.WriteString(")")
		return
	}
	printNode(sb, node, indent)
}

func printArgs(sb *strings.Builder, args []*Node, indent int) {
	sb.WriteString("(")
	for i, arg := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		printNode(sb, arg, indent)
	}
	sb.WriteString(")")
}
