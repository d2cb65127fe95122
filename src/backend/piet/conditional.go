// conditional.go emits the control transfer statements. Branch targets are
// block indices already present in the IR, so no backpatching is needed.

package piet

import (
	"tslc/src/ir/lir"
	"tslc/src/util"
)

// genIf emits a conditional branch. The condition is materialized on top,
// every slot between it and the parameters is collapsed so both branch
// targets see the same stack shape, and JEZ takes the branch when the
// condition is zero. The fall-through path is the first successor.
func genIf(st *lir.Statement, fn *lir.Function, blk *lir.BasicBlock, regs *util.RegStack, wr *util.Writer) {
	substitute(st.Args[0], util.Hole, regs, wr)
	n := regs.Depth() - 1 - len(fn.Params)
	for i1 := 0; i1 < n; i1++ {
		wr.Ins("SWAP")
		wr.Ins("POP")
	}
	wr.Jump("JEZ", util.BlockLabel(fn.Name, blk.Nexts[1]))
	regs.Pop()
}

// genJump emits an unconditional branch to the block's single successor.
func genJump(fn *lir.Function, blk *lir.BasicBlock, wr *util.Writer) {
	wr.Jump("JMP", util.BlockLabel(fn.Name, blk.Nexts[0]))
}

// genReturn emits the return protocol. With a value, the value is
// materialized, everything below it is collapsed, and a final SWAP leaves
// the caller's return token on top for the trampoline. Without a value,
// every live slot is dropped, which exposes the token directly.
func genReturn(st *lir.Statement, regs *util.RegStack, wr *util.Writer) {
	if len(st.Args) > 0 {
		substitute(st.Args[0], util.Hole, regs, wr)
		n := regs.Depth() - 1
		for i1 := 0; i1 < n; i1++ {
			wr.Ins("SWAP")
			wr.Ins("POP")
		}
		wr.Ins("SWAP")
	} else {
		for i1 := 0; i1 < regs.Depth(); i1++ {
			wr.Ins("POP")
		}
	}
	wr.Jump("JMP", util.ReturnLabel)
}
