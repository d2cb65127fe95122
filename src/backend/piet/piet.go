// Package piet generates assembly for the stack machine target. The machine
// has one integer stack; calls and returns are not native, so every call site
// pushes a unique return token and callees jump to a shared dispatch
// trampoline that decodes the token and resumes the matching call site.
package piet

import (
	"errors"
	"fmt"

	"tslc/src/ir/lir"
	"tslc/src/util"
)

// ---------------------
// ----- Constants -----
// ---------------------

// Emitter failure kinds.
var (
	ErrUndefinedFunction = errors.New("undefined function")
	ErrInvalidOperator   = errors.New("operator is not emittable")
)

// ---------------------
// ----- Functions -----
// ---------------------

// Generate emits the whole program: a jump to main, every function sorted by
// name, and finally the dispatch trampoline. Sorting fixes the numbering of
// return tokens, which must agree between call sites and the trampoline.
func Generate(prog *lir.Program, wr *util.Writer) error {
	if _, ok := prog.Funcs["main"]; !ok {
		return fmt.Errorf("%w: %q", ErrUndefinedFunction, "main")
	}
	wr.Jump("JMP", util.FuncLabel("main"))
	start := 0
	for _, name := range prog.Names() {
		count, err := genFunction(prog.Funcs[name], start, prog, wr)
		if err != nil {
			return err
		}
		start += count
	}
	wr.Label(util.ReturnLabel)
	for i1 := 0; i1 < start; i1++ {
		wr.Ins("DUP")
		wr.Jump("JEZ", util.ControlLabel(i1))
		wr.Push(1)
		wr.Ins("SUB")
	}
	return nil
}
