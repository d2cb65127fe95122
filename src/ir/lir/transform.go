// transform.go lowers the syntax tree into the basic block representation.
//
// Lowering is two passes over the declarations. The first pass registers
// every user function with an empty body, so calls resolve regardless of
// declaration order. The second pass lowers each body.
//
// Virtual registers are numbered per function: parameters take 0..N-1, and a
// statement appended at index i of a block whose starting register count is
// rc produces register rc+i. When lowering moves past a block, the register
// count advances by that block's statement count, which keeps register ids
// unique across the whole function even though allocation is block local.

package lir

import (
	"fmt"

	"tslc/src/ir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// builder holds the per-function lowering state. Statement bodies nested
// under an if are lowered by a child builder into a fresh block vector and
// spliced into the parent with their successor indices rebased.
type builder struct {
	prog     *Program
	scope    map[string]int
	blocks   []BasicBlock
	regcount int // Starting register id of the current block.
}

// ---------------------
// ----- Functions -----
// ---------------------

// Transform lowers the parsed syntax tree into a Program. The five builtins
// are pre-registered; their names cannot be redeclared.
func Transform(root *ir.Node) (*Program, error) {
	if root == nil || root.Op != ir.Declare {
		return nil, fmt.Errorf("%w: expected Declare root", ErrMalformedTree)
	}
	prog := NewProgram()
	for _, e1 := range root.Children {
		if e1.Op != ir.FunctionDeclare {
			return nil, fmt.Errorf("%w: expected FunctionDeclare, got %s", ErrMalformedTree, e1.Op)
		}
		if _, ok := prog.Funcs[e1.Name]; ok {
			return nil, fmt.Errorf("%w: function %q", ErrDuplicateBinding, e1.Name)
		}
		if e1.Name == "main" && e1.Retnum != 0 {
			return nil, fmt.Errorf("%w: main must declare zero return values, got %d", ErrArityMismatch, e1.Retnum)
		}
		prog.Funcs[e1.Name] = &Function{Name: e1.Name, Params: e1.Params, Retnum: e1.Retnum}
	}
	for _, e1 := range root.Children {
		if err := lowerFunction(prog, e1); err != nil {
			return nil, fmt.Errorf("function %q: %w", e1.Name, err)
		}
	}
	return prog, nil
}

// lowerFunction lowers one function body into its pre-registered Function.
func lowerFunction(prog *Program, decl *ir.Node) error {
	b := &builder{
		prog:     prog,
		scope:    make(map[string]int, len(decl.Params)+8),
		blocks:   []BasicBlock{{}},
		regcount: len(decl.Params),
	}
	for i1, e1 := range decl.Params {
		if _, ok := b.scope[e1]; ok {
			return fmt.Errorf("%w: parameter %q", ErrDuplicateBinding, e1)
		}
		b.scope[e1] = i1
	}
	if len(decl.Children) != 1 {
		return fmt.Errorf("%w: FunctionDeclare must hold one statement list", ErrMalformedTree)
	}
	if err := b.statements(decl.Children[0]); err != nil {
		return err
	}
	fn := prog.Funcs[decl.Name]
	if fn.Retnum == 0 && fn.Name != "main" && !b.cur().Terminated() {
		b.push(Statement{Op: ir.Return, Ret: NoRegister})
	}
	fn.Blocks = b.blocks
	return nil
}

// cur returns the block statements are currently appended to.
func (b *builder) cur() *BasicBlock {
	return &b.blocks[len(b.blocks)-1]
}

// alloc returns the register id the next appended statement will produce.
func (b *builder) alloc() int {
	return b.regcount + len(b.cur().Statements)
}

// push appends a statement to the current block.
func (b *builder) push(s Statement) {
	cur := b.cur()
	cur.Statements = append(cur.Statements, s)
}

// newBlock seals the current block and opens an empty one after it.
func (b *builder) newBlock() {
	b.regcount += len(b.cur().Statements)
	b.blocks = append(b.blocks, BasicBlock{})
}

// child returns a builder for a nested statement body. It shares the scope
// and program but lowers into its own block vector starting at register base.
func (b *builder) child(base int) *builder {
	return &builder{prog: b.prog, scope: b.scope, blocks: []BasicBlock{{}}, regcount: base}
}

// appendBlocks splices a child builder's blocks onto the block vector,
// rebasing their successor indices by the splice offset, and returns the
// index of the last spliced block.
func (b *builder) appendBlocks(bs []BasicBlock) int {
	offset := len(b.blocks)
	for _, e1 := range bs {
		b.regcount += len(b.cur().Statements)
		nexts := make([]int, len(e1.Nexts))
		for i1, n := range e1.Nexts {
			nexts[i1] = n + offset
		}
		e1.Nexts = nexts
		b.blocks = append(b.blocks, e1)
	}
	return len(b.blocks) - 1
}

// statements lowers a Statement list node.
func (b *builder) statements(n *ir.Node) error {
	if n.Op != ir.Statement {
		return fmt.Errorf("%w: expected Statement, got %s", ErrMalformedTree, n.Op)
	}
	for _, e1 := range n.Children {
		if err := b.statement(e1); err != nil {
			return err
		}
	}
	return nil
}

// statement lowers a single statement node.
func (b *builder) statement(n *ir.Node) error {
	switch n.Op {
	case ir.Substitute:
		return b.substitute(n)
	case ir.Call:
		// Statement level call; the result register is allocated and
		// discarded.
		_, err := b.expression(n)
		return err
	case ir.If:
		return b.ifStmt(n)
	case ir.Return:
		return b.returnStmt(n)
	}
	return fmt.Errorf("%w: %s is not a statement", ErrMalformedTree, n.Op)
}

// substitute lowers an assignment. Each name binds exactly once per function.
func (b *builder) substitute(n *ir.Node) error {
	if len(n.Children) != 2 || n.Children[0].Op != ir.Identifier {
		return fmt.Errorf("%w: Substitute must bind an identifier", ErrMalformedTree)
	}
	name := n.Children[0].Name
	if _, ok := b.scope[name]; ok {
		return fmt.Errorf("%w: variable %q", ErrDuplicateBinding, name)
	}
	v, err := b.expression(n.Children[1])
	if err != nil {
		return err
	}
	id := b.alloc()
	b.push(Statement{Op: ir.Substitute, Ret: id, Args: []Value{v}})
	b.scope[name] = id
	return nil
}

// returnStmt lowers a return statement.
func (b *builder) returnStmt(n *ir.Node) error {
	args := make([]Value, 0, len(n.Children))
	for _, e1 := range n.Children {
		v, err := b.expression(e1)
		if err != nil {
			return err
		}
		args = append(args, v)
	}
	b.push(Statement{Op: ir.Return, Ret: NoRegister, Args: args})
	return nil
}

// ifStmt lowers a conditional. The condition and the If terminator stay in
// the current block, whose first successor falls through into the THEN body;
// the second successor is the branch taken when the condition is zero: the
// ELSE body if present, otherwise the join block. Bodies that do not end in
// a control transfer link forward to the join.
func (b *builder) ifStmt(n *ir.Node) error {
	if len(n.Children) != 2 && len(n.Children) != 3 {
		return fmt.Errorf("%w: If takes 2 or 3 children, got %d", ErrMalformedTree, len(n.Children))
	}
	cond, err := b.expression(n.Children[0])
	if err != nil {
		return err
	}
	base := b.regcount + len(b.cur().Statements)
	condIdx := len(b.blocks) - 1
	b.push(Statement{Op: ir.If, Ret: NoRegister, Args: []Value{cond}})
	b.blocks[condIdx].Nexts = append(b.blocks[condIdx].Nexts, len(b.blocks))

	tb := b.child(base)
	if err := tb.statements(n.Children[1]); err != nil {
		return err
	}
	hasElse := len(n.Children) == 3
	jumped := false
	if hasElse && !tb.cur().Terminated() {
		tb.push(Statement{Op: ir.Jump, Ret: NoRegister})
		jumped = true
	}
	lastThen := b.appendBlocks(tb.blocks)

	var taken int
	if hasElse {
		eb := b.child(tb.regcount + len(tb.cur().Statements))
		if err := eb.statements(n.Children[2]); err != nil {
			return err
		}
		taken = len(b.blocks)
		lastElse := b.appendBlocks(eb.blocks)
		join := len(b.blocks)
		if jumped {
			b.blocks[lastThen].Nexts = append(b.blocks[lastThen].Nexts, join)
		}
		if !b.blocks[lastElse].Terminated() {
			b.blocks[lastElse].Nexts = append(b.blocks[lastElse].Nexts, join)
		}
	} else {
		taken = len(b.blocks)
		if !b.blocks[lastThen].Terminated() {
			b.blocks[lastThen].Nexts = append(b.blocks[lastThen].Nexts, taken)
		}
	}
	b.blocks[condIdx].Nexts = append(b.blocks[condIdx].Nexts, taken)
	b.newBlock()
	return nil
}

// expression lowers an expression subtree and returns the Value holding its
// result: a scope register for identifiers, an immediate for constants, and
// a freshly allocated register for operator nodes.
func (b *builder) expression(n *ir.Node) (Value, error) {
	switch n.Op {
	case ir.Identifier:
		id, ok := b.scope[n.Name]
		if !ok {
			return Value{}, fmt.Errorf("%w: %q", ErrUndefinedVariable, n.Name)
		}
		return Reg(id), nil
	case ir.Constant:
		return Imm(n.Value), nil
	case ir.Call:
		callee, ok := b.prog.Funcs[n.Name]
		if !ok {
			return Value{}, fmt.Errorf("%w: %q", ErrUndefinedFunction, n.Name)
		}
		if len(n.Children) != len(callee.Params) {
			return Value{}, fmt.Errorf("%w: function %q expects %d arguments, got %d",
				ErrArityMismatch, n.Name, len(callee.Params), len(n.Children))
		}
	default:
		if !n.Op.Binary() {
			return Value{}, fmt.Errorf("%w: %s cannot appear in an expression", ErrMalformedTree, n.Op)
		}
		if len(n.Children) != 2 {
			return Value{}, fmt.Errorf("%w: %s takes 2 operands, got %d", ErrMalformedTree, n.Op, len(n.Children))
		}
	}
	args := make([]Value, 0, len(n.Children))
	for _, e1 := range n.Children {
		v, err := b.expression(e1)
		if err != nil {
			return Value{}, err
		}
		args = append(args, v)
	}
	id := b.alloc()
	b.push(Statement{Op: n.Op, Ret: id, Args: args, Name: n.Name})
	return Reg(id), nil
}
