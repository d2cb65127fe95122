package piet

import (
	"fmt"

	"tslc/src/ir"
	"tslc/src/ir/lir"
	"tslc/src/util"
)

// genFunction emits one function and returns the number of call sites it
// contains. start is the program wide call counter, so the function's call
// sites are numbered start, start+1, and so on.
//
// The register stack models the runtime stack for the whole body. It starts
// holding the parameters and is restored to the snapshot taken at block
// entry after each block, so every block is emitted against the same stack
// shape its predecessors leave behind.
func genFunction(fn *lir.Function, start int, prog *lir.Program, wr *util.Writer) (int, error) {
	wr.Label(util.FuncLabel(fn.Name))
	if fn.Builtin() {
		return 0, genBuiltin(fn.Name, wr)
	}
	count := 0
	regs := &util.RegStack{}
	for i1 := range fn.Params {
		regs.Push(i1)
	}
	for i1 := range fn.Blocks {
		blk := &fn.Blocks[i1]
		snap := regs.Snapshot()
		wr.Label(util.BlockLabel(fn.Name, i1))
		for j1 := range blk.Statements {
			st := &blk.Statements[j1]
			switch st.Op {
			case ir.Call:
				if err := genCall(st, prog, regs, wr, start+count); err != nil {
					return 0, err
				}
				count++
			case ir.If:
				genIf(st, fn, blk, regs, wr)
			case ir.Jump:
				genJump(fn, blk, wr)
			case ir.Return:
				genReturn(st, regs, wr)
			case ir.Substitute:
				substitute(st.Args[0], st.Ret, regs, wr)
			default:
				if err := genBinary(st, regs, wr); err != nil {
					return 0, err
				}
			}
		}
		regs.Restore(snap)
	}
	if fn.Name == "main" {
		wr.Ins("HALT")
	}
	return count, nil
}

// genBuiltin emits the canned body of a built-in function. Builtins enter
// with the caller's return token below their argument, so the input builtins
// swap their freshly read value under the token before jumping back.
func genBuiltin(name string, wr *util.Writer) error {
	switch name {
	case "getnum":
		wr.Ins("INN")
		wr.Ins("SWAP")
		wr.Jump("JMP", util.ReturnLabel)
	case "getchar":
		wr.Ins("INC")
		wr.Ins("SWAP")
		wr.Jump("JMP", util.ReturnLabel)
	case "putnum":
		wr.Ins("OUTN")
		wr.Jump("JMP", util.ReturnLabel)
	case "putchar":
		wr.Ins("OUTC")
		wr.Jump("JMP", util.ReturnLabel)
	case "halt":
		wr.Ins("HALT")
	default:
		return fmt.Errorf("%w: builtin %q", ErrUndefinedFunction, name)
	}
	return nil
}
