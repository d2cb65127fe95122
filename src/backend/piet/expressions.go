// expressions.go emits the value producing statements: copying registers to
// the stack top, binary arithmetic and comparisons, and function calls.

package piet

import (
	"fmt"

	"tslc/src/ir"
	"tslc/src/ir/lir"
	"tslc/src/util"
)

// binaryOps maps each binary operator to its opcode sequence. LessThan and
// Greater share GREATER; LessThan gets its operands emitted in reverse.
// Equality subtracts and tests the difference for zero.
var binaryOps = map[ir.Operator][]string{
	ir.Add:      {"ADD"},
	ir.Sub:      {"SUB"},
	ir.Multiply: {"MUL"},
	ir.Division: {"DIV"},
	ir.Modulo:   {"MOD"},
	ir.Greater:  {"GREATER"},
	ir.LessThan: {"GREATER"},
	ir.Equal:    {"SUB", "NOT"},
}

// pullup copies the stack slot holding register reg to the top of the stack
// without disturbing the slots in between: the slot is rolled to the top,
// duplicated, and the original is rolled back into place.
func pullup(regs *util.RegStack, reg int, wr *util.Writer) {
	idx := regs.Find(reg)
	if idx < 0 {
		idx = 0
	}
	depth := int32(regs.Depth() - idx)
	wr.Push(depth)
	wr.Push(-1)
	wr.Ins("ROLL")
	wr.Ins("DUP")
	wr.Push(depth + 1)
	wr.Push(1)
	wr.Ins("ROLL")
}

// substitute materializes the value v on top of the stack and records the
// new slot as register ret in the stack model.
func substitute(v lir.Value, ret int, regs *util.RegStack, wr *util.Writer) {
	switch v.Kind {
	case lir.Register:
		pullup(regs, v.Reg, wr)
	case lir.Immediate:
		wr.Push(v.Imm)
	}
	regs.Push(ret)
}

// genBinary emits a two-operand statement: both operands are materialized on
// top of the stack, then the opcode sequence consumes them.
func genBinary(st *lir.Statement, regs *util.RegStack, wr *util.Writer) error {
	ops, ok := binaryOps[st.Op]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidOperator, st.Op)
	}
	if st.Op == ir.LessThan {
		substitute(st.Args[1], util.Hole, regs, wr)
		substitute(st.Args[0], util.Hole, regs, wr)
	} else {
		substitute(st.Args[0], util.Hole, regs, wr)
		substitute(st.Args[1], util.Hole, regs, wr)
	}
	for _, e1 := range ops {
		wr.Ins(e1)
	}
	regs.Pop()
	regs.Pop()
	regs.Push(st.Ret)
	return nil
}

// genCall emits a function call. The caller pushes the return token for this
// site, then the arguments, and jumps to the callee; the resume label follows
// immediately and discards the decoded token the trampoline leaves on top.
func genCall(st *lir.Statement, prog *lir.Program, regs *util.RegStack, wr *util.Writer, token int) error {
	callee, ok := prog.Funcs[st.Name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUndefinedFunction, st.Name)
	}
	wr.Push(int32(token))
	regs.Push(util.Hole)
	for _, e1 := range st.Args {
		substitute(e1, util.Hole, regs, wr)
	}
	wr.Jump("JMP", util.FuncLabel(st.Name))
	wr.Label(util.ControlLabel(token))
	wr.Ins("POP")
	for i1 := 0; i1 <= len(st.Args); i1++ {
		regs.Pop()
	}
	for i1 := 0; i1 < callee.Retnum; i1++ {
		regs.Push(st.Ret)
	}
	return nil
}
