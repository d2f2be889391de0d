// Package flow implements Pass 1: lowering a lang.Block into a
// labelled control-flow graph of Node values addressed by dense
// integer ID.
package flow

import "eventvm/internal/lang"

// Node is the tagged variant of one CFG vertex. Every reachable,
// non-Block node carries a unique, densely-assigned ID; a Block node's
// ID aliases its first contained node's ID.
type Node interface {
	NodeID() int
	IsMergeable() bool
	setID(int)
}

type base struct {
	id        int
	mergeable bool
}

func (b *base) NodeID() int       { return b.id }
func (b *base) IsMergeable() bool { return b.mergeable }
func (b *base) setID(id int)      { b.id = id }

// NormalNode wraps a single expression or built-in call statement.
type NormalNode struct {
	base
	Stmt lang.Stmt // *lang.ExpressionStmt or a built-in *lang.CallStmt
	Next Node
}

// ExternCallNode calls a named global function. It is never mergeable:
// it is the interpreter's serialisation point.
type ExternCallNode struct {
	base
	Call *lang.CallStmt
	Next Node
}

// CondBranch pairs a condition with the CFG for its body.
type CondBranch struct {
	Cond Expr
	Body *BlockNode
}

// Expr aliases lang.Expr for readability inside this package.
type Expr = lang.Expr

// IfNode evaluates Branches in order, running the body of the first
// truthy one, else Else, else falling through to Next.
type IfNode struct {
	base
	Branches []CondBranch
	Else     *BlockNode
	Next     Node
}

// SwitchNode evaluates Pattern once, then compares Branches' Cond
// values against it for strict equality; first match wins.
type SwitchNode struct {
	base
	Pattern  Expr
	Branches []CondBranch
	Else     *BlockNode
	Next     Node
}

// LoopNode is the loop head: it evaluates Iter (if present), then Cond
// (absent means true), branching to Body or Next.
type LoopNode struct {
	base
	Cond             Expr
	Iter             Expr
	Body             *BlockNode
	Next             Node
	SkipInitialCheck bool
	Label            string
}

// LoopInitNode wraps a LoopNode when the source loop statement carries
// an initialiser or skips its initial check; Init is nil when there is
// no initialiser. It is always mergeable; its own step is pure
// desugaring.
type LoopInitNode struct {
	base
	Init Expr
	Main *LoopNode
}

// JumpNode is the lowering of a break or continue statement.
// TargetLoop identifies the loop being broken or continued for use by
// the node-generation pass's in-run signal matching. Next is the
// node's successor when this Jump is compiled as a standalone step:
// the loop head for continue, the loop's outer successor for break.
type JumpNode struct {
	base
	IsBreak    bool
	TargetLoop *LoopNode
	Next       Node
}

// ReturnNode is terminal; it optionally carries a value to evaluate.
type ReturnNode struct {
	base
	Value *lang.CallValue
}

// ExitNode is terminal.
type ExitNode struct {
	base
}

// BlockNode is an ordered sequence of CFG nodes. Its own ID aliases
// Children[0]'s ID; an empty Block's ID aliases Next's.
type BlockNode struct {
	base
	Children []Node
	Next     Node
}

func init() {
	// Compile-time assertions that every node kind implements Node.
	var (
		_ Node = (*NormalNode)(nil)
		_ Node = (*ExternCallNode)(nil)
		_ Node = (*IfNode)(nil)
		_ Node = (*SwitchNode)(nil)
		_ Node = (*LoopNode)(nil)
		_ Node = (*LoopInitNode)(nil)
		_ Node = (*JumpNode)(nil)
		_ Node = (*ReturnNode)(nil)
		_ Node = (*ExitNode)(nil)
		_ Node = (*BlockNode)(nil)
	)
}
