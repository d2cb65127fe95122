package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tslc/src/backend"
	"tslc/src/frontend"
	"tslc/src/ir/lir"
	ll "tslc/src/ir/llvm"
	"tslc/src/util"
)

// run reads source code and executes the compiler stages. Behaviour is
// defined by the util.Options structure. The first failing stage aborts the
// run; nothing is written to the output on failure.
func run(opt util.Options) error {
	src, err := util.ReadSource(opt)
	if err != nil {
		return fmt.Errorf("could not read source code: %w", err)
	}

	// If the token stream flag was passed: output token stream and exit.
	if opt.TokenStream {
		return frontend.TokenStream(opt, src)
	}

	tokens, err := frontend.Tokenize(src)
	if err != nil {
		return fmt.Errorf("syntax error: %w", err)
	}
	logrus.Debugf("tokenized %d tokens", len(tokens))

	root, err := frontend.Parse(tokens)
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	logrus.Debugf("parsed %d declarations", len(root.Children))

	// Generate through LLVM and exit, if the flag is passed.
	if opt.LLVM {
		return ll.GenLLVM(opt, root)
	}

	prog, err := lir.Transform(root)
	if err != nil {
		return fmt.Errorf("lowering error: %w", err)
	}
	if err := prog.Validate(); err != nil {
		return fmt.Errorf("lowering error: %w", err)
	}
	logrus.Debugf("lowered %d functions", len(prog.Funcs))
	if opt.Verbose {
		logrus.Debugf("IR:\n%s", prog.String())
	}

	wr := &util.Writer{}
	if err := backend.GenerateAssembler(opt, prog, wr); err != nil {
		return fmt.Errorf("code generation error: %w", err)
	}
	logrus.Debugf("emitted %d instructions", wr.Count())
	return util.WriteOutput(opt, wr.String())
}

func main() {
	opt := util.Options{TargetArch: util.Piet}
	cmd := &cobra.Command{
		Use:           "tslc [flags] source [output]",
		Short:         "tslc compiles TSL source code into stack machine assembly",
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opt.Src = args[0]
			if len(args) == 2 {
				opt.Out = args[1]
			}
			if opt.Verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
			return run(opt)
		},
	}
	cmd.Flags().StringVarP(&opt.Out, "out", "o", "", "path of the output file (default stdout)")
	cmd.Flags().BoolVarP(&opt.Verbose, "verbose", "v", false, "log phase statistics to stderr")
	cmd.Flags().BoolVarP(&opt.TokenStream, "tokens", "t", false, "output the token stream and exit")
	cmd.Flags().BoolVarP(&opt.LLVM, "llvm", "l", false, "use LLVM to compile a host object file")

	if err := cmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("error:"), err)
		os.Exit(1)
	}
}
