package backend

import (
	"fmt"

	"tslc/src/backend/piet"
	"tslc/src/ir/lir"
	"tslc/src/util"
)

// GenerateAssembler writes output assembler for the lowered program into the
// writer, based on the target architecture defined by opt.
func GenerateAssembler(opt util.Options, prog *lir.Program, wr *util.Writer) error {
	switch opt.TargetArch {
	case util.Piet:
		return piet.Generate(prog, wr)
	}
	return fmt.Errorf("unsupported target architecture identifier %d", opt.TargetArch)
}
