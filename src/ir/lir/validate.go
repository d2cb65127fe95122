// validate.go checks the structural invariants of a lowered Program before
// code generation: successor indices stay inside the function, control flow
// edges only point forward, terminators carry the right successor count, and
// register definitions dominate their uses.

package lir

import (
	"fmt"

	"tslc/src/ir"
)

// Validate checks every function of the program and returns the first
// violated invariant.
func (p *Program) Validate() error {
	for _, name := range p.Names() {
		if err := p.Funcs[name].validate(); err != nil {
			return fmt.Errorf("function %q: %w", name, err)
		}
	}
	return nil
}

func (f *Function) validate() error {
	if f.Builtin() {
		return nil
	}
	for i1, e1 := range f.Blocks {
		for _, nx := range e1.Nexts {
			if nx <= i1 || nx >= len(f.Blocks) {
				return fmt.Errorf("block %d: successor %d out of range", i1, nx)
			}
		}
		prev := NoRegister
		for j1 := range e1.Statements {
			st := &e1.Statements[j1]
			if st.Ret != NoRegister {
				if st.Ret < len(f.Params) || (prev != NoRegister && st.Ret <= prev) {
					return fmt.Errorf("block %d: statement %d writes r%d out of order", i1, j1, st.Ret)
				}
				prev = st.Ret
				for _, a := range st.Args {
					if a.Kind == Register && (a.Reg < 0 || a.Reg >= st.Ret) {
						return fmt.Errorf("block %d: statement %d reads r%d before definition", i1, j1, a.Reg)
					}
				}
			}
			switch st.Op {
			case ir.If:
				if len(e1.Nexts) != 2 {
					return fmt.Errorf("block %d: If terminator needs 2 successors, got %d", i1, len(e1.Nexts))
				}
			case ir.Jump:
				if len(e1.Nexts) != 1 {
					return fmt.Errorf("block %d: Jump terminator needs 1 successor, got %d", i1, len(e1.Nexts))
				}
			}
		}
	}
	return nil
}
