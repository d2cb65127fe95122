// Package llvm transforms the syntax tree into LLVM IR for the system
// installed LLVM runtime and compiles it to a target object file. Calls are
// native on this path, so the return token protocol of the stack machine
// backend does not apply; the builtins map onto libc.
package llvm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"tinygo.org/x/go-llvm"

	ast "tslc/src/ir"
	"tslc/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// generator carries the LLVM handles and the libc declarations through the
// recursive transformation.
type generator struct {
	b       llvm.Builder
	m       llvm.Module
	printf  llvm.Value
	scanf   llvm.Value
	getchar llvm.Value
	putchar llvm.Value
	exit    llvm.Value
}

// scope maps TSL variables to their stack slots within one function.
type scope map[string]llvm.Value

// ---------------------
// ----- Constants -----
// ---------------------

const stringPrefix = "L_STR" // Prefix for global format string constants.

// -------------------
// ----- globals -----
// -------------------

// i32 defines the integer type of every TSL value.
var i32 = llvm.Int32Type()

// reservedFunctionNames lists the names that cannot be assigned to TSL
// functions on this path: the builtins and the libc symbols they lower to.
var reservedFunctionNames = []string{
	"getnum",
	"getchar",
	"putnum",
	"putchar",
	"halt",
	"printf",
	"scanf",
	"exit",
}

// ---------------------
// ----- functions -----
// ---------------------

// GenLLVM generates LLVM IR from the root node of the syntax tree and writes
// a compiled object file to the output path.
func GenLLVM(opt util.Options, root *ast.Node) error {
	if root == nil || root.Op != ast.Declare {
		return errors.New("syntax tree root is not a declaration list")
	}

	ctx := llvm.NewContext()
	defer ctx.Dispose()

	// Builder constructs LLVM IR instructions on basic block level.
	b := ctx.NewBuilder()
	defer b.Dispose()

	// Set module name equal file name without file extension.
	m := ctx.NewModule(filepath.Base(opt.Src))
	defer m.Dispose()

	g := &generator{b: b, m: m}
	g.declareRuntime()

	// Declare every function before generating bodies, so that calls
	// resolve regardless of declaration order.
	funcs := make([]llvm.Value, len(root.Children))
	for i1, e1 := range root.Children {
		fun, err := g.declareFunction(e1)
		if err != nil {
			return err
		}
		funcs[i1] = fun
	}
	for i1, e1 := range root.Children {
		if err := g.genBody(funcs[i1], e1); err != nil {
			return err
		}
	}

	if opt.Verbose {
		logrus.Debugf("LLVM IR:\n%s", m.String())
	}

	// Initialise LLVM code generation for the host target.
	llvm.InitializeAllTargetInfos()
	llvm.InitializeAllTargetMCs()
	llvm.InitializeAllAsmParsers()
	llvm.InitializeAllAsmPrinters()

	triple := llvm.DefaultTargetTriple()
	t, err := llvm.GetTargetFromTriple(triple)
	if err != nil {
		return err
	}
	tm := t.CreateTargetMachine(triple, "generic", "",
		llvm.CodeGenLevelNone,
		llvm.RelocDefault,
		llvm.CodeModelDefault)
	defer tm.Dispose()

	td := tm.CreateTargetData()
	defer td.Dispose()

	m.SetDataLayout(td.String())
	m.SetTarget(tm.Triple())

	buf, err := tm.EmitToMemoryBuffer(m, llvm.ObjectFile)
	if err != nil {
		return err
	} else if buf.IsNil() {
		return errors.New("could not emit compiled code to memory")
	}

	out := opt.Out
	if len(out) == 0 {
		out = fmt.Sprintf("./%s.o", strings.TrimSuffix(filepath.Base(opt.Src), filepath.Ext(opt.Src)))
	}
	return os.WriteFile(out, buf.Bytes(), 0644)
}

// declareRuntime declares the libc functions the builtins lower to.
func (g *generator) declareRuntime() {
	i8p := llvm.PointerType(llvm.Int8Type(), 0)
	g.printf = llvm.AddFunction(g.m, "printf", llvm.FunctionType(i32, []llvm.Type{i8p}, true))
	g.scanf = llvm.AddFunction(g.m, "scanf", llvm.FunctionType(i32, []llvm.Type{i8p}, true))
	g.getchar = llvm.AddFunction(g.m, "getchar", llvm.FunctionType(i32, []llvm.Type{}, false))
	g.putchar = llvm.AddFunction(g.m, "putchar", llvm.FunctionType(i32, []llvm.Type{i32}, false))
	g.exit = llvm.AddFunction(g.m, "exit", llvm.FunctionType(llvm.VoidType(), []llvm.Type{i32}, false))
}

// declareFunction adds the LLVM declaration for one TSL function. main keeps
// its name and returns i32 so the module links as a host executable.
func (g *generator) declareFunction(n *ast.Node) (llvm.Value, error) {
	if n.Op != ast.FunctionDeclare {
		return llvm.Value{}, fmt.Errorf("expected function declaration, got %s", n.Op)
	}
	if n.Retnum > 1 {
		return llvm.Value{}, fmt.Errorf("function %q: multiple return values are not supported by the LLVM backend", n.Name)
	}
	for _, e1 := range reservedFunctionNames {
		if n.Name == e1 {
			return llvm.Value{}, fmt.Errorf("function name %q is reserved", n.Name)
		}
	}
	if fun := g.m.NamedFunction(n.Name); !fun.IsNil() {
		return llvm.Value{}, fmt.Errorf("duplicate declaration, function %q already declared", n.Name)
	}
	ret := i32
	if n.Retnum == 0 && n.Name != "main" {
		ret = llvm.VoidType()
	}
	atyp := make([]llvm.Type, len(n.Params))
	for i1 := range n.Params {
		atyp[i1] = i32
	}
	ftyp := llvm.FunctionType(ret, atyp, false)
	return llvm.AddFunction(g.m, n.Name, ftyp), nil
}

// genBody generates the body of one TSL function.
func (g *generator) genBody(fun llvm.Value, n *ast.Node) error {
	bb := llvm.AddBasicBlock(fun, "")
	g.b.SetInsertPointAtEnd(bb)

	// Allocate stack slots for the parameters.
	sc := make(scope, len(n.Params)+8)
	for i1, e1 := range fun.Params() {
		alloc := g.b.CreateAlloca(e1.Type(), "")
		g.b.CreateStore(e1, alloc)
		sc[n.Params[i1]] = alloc
	}

	term, err := g.genStatements(fun, n.Children[0], sc)
	if err != nil {
		return err
	}
	if !term {
		switch {
		case n.Name == "main":
			g.b.CreateRet(llvm.ConstInt(i32, 0, false))
		case n.Retnum == 0:
			g.b.CreateRetVoid()
		default:
			g.b.CreateUnreachable()
		}
	}
	return nil
}

// genStatements generates a statement list. It returns true if the list ended
// in a statement that terminated the current basic block.
func (g *generator) genStatements(fun llvm.Value, n *ast.Node, sc scope) (bool, error) {
	if n.Op != ast.Statement {
		return false, fmt.Errorf("expected statement list, got %s", n.Op)
	}
	for _, e1 := range n.Children {
		switch e1.Op {
		case ast.Substitute:
			name := e1.Children[0].Name
			if _, ok := sc[name]; ok {
				return false, fmt.Errorf("variable %q is already defined", name)
			}
			val, err := g.genExpression(e1.Children[1], sc)
			if err != nil {
				return false, err
			}
			alloc := g.b.CreateAlloca(i32, name)
			g.b.CreateStore(val, alloc)
			sc[name] = alloc
		case ast.Call:
			if e1.Name == "halt" {
				g.b.CreateCall(g.exit, []llvm.Value{llvm.ConstInt(i32, 0, false)}, "")
				g.b.CreateUnreachable()
				return true, nil
			}
			if _, err := g.genExpression(e1, sc); err != nil {
				return false, err
			}
		case ast.If:
			term, err := g.genIf(fun, e1, sc)
			if err != nil {
				return false, err
			}
			if term {
				return true, nil
			}
		case ast.Return:
			val, err := g.genExpression(e1.Children[0], sc)
			if err != nil {
				return false, err
			}
			g.b.CreateRet(val)
			return true, nil
		default:
			return false, fmt.Errorf("%s is not a statement", e1.Op)
		}
	}
	return false, nil
}

// genIf generates an IF-THEN or IF-THEN-ELSE statement. The THEN branch is
// taken when the condition is non-zero. It returns true if both branches
// terminated, leaving no converging basic block to continue in.
func (g *generator) genIf(fun llvm.Value, n *ast.Node, sc scope) (bool, error) {
	cond, err := g.genExpression(n.Children[0], sc)
	if err != nil {
		return false, err
	}
	nz := g.b.CreateICmp(llvm.IntNE, cond, llvm.ConstInt(i32, 0, false), "")

	thn := llvm.AddBasicBlock(fun, "")
	if len(n.Children) == 2 {
		// IF-THEN.
		conv := llvm.AddBasicBlock(fun, "")
		g.b.CreateCondBr(nz, thn, conv)
		g.b.SetInsertPointAtEnd(thn)
		term, err := g.genStatements(fun, n.Children[1], sc)
		if err != nil {
			return false, err
		}
		if !term {
			g.b.CreateBr(conv)
		}
		g.b.SetInsertPointAtEnd(conv)
		return false, nil
	}

	// IF-THEN-ELSE.
	var conv llvm.BasicBlock
	els := llvm.AddBasicBlock(fun, "")
	g.b.CreateCondBr(nz, thn, els)

	g.b.SetInsertPointAtEnd(thn)
	termA, err := g.genStatements(fun, n.Children[1], sc)
	if err != nil {
		return false, err
	}
	if !termA {
		conv = llvm.AddBasicBlock(fun, "")
		g.b.CreateBr(conv)
	}

	g.b.SetInsertPointAtEnd(els)
	termB, err := g.genStatements(fun, n.Children[2], sc)
	if err != nil {
		return false, err
	}
	if !termB {
		if conv.IsNil() {
			conv = llvm.AddBasicBlock(fun, "")
		}
		g.b.CreateBr(conv)
	}

	if conv.IsNil() {
		return true, nil
	}
	g.b.SetInsertPointAtEnd(conv)
	return false, nil
}

// genExpression generates one expression subtree and returns its i32 value.
func (g *generator) genExpression(n *ast.Node, sc scope) (llvm.Value, error) {
	switch n.Op {
	case ast.Constant:
		return llvm.ConstInt(i32, uint64(uint32(n.Value)), true), nil
	case ast.Identifier:
		alloc, ok := sc[n.Name]
		if !ok {
			return llvm.Value{}, fmt.Errorf("undefined variable %q", n.Name)
		}
		return g.b.CreateLoad(alloc, ""), nil
	case ast.Call:
		return g.genCall(n, sc)
	}

	if !n.Op.Binary() || len(n.Children) != 2 {
		return llvm.Value{}, fmt.Errorf("%s cannot appear in an expression", n.Op)
	}
	op1, err := g.genExpression(n.Children[0], sc)
	if err != nil {
		return llvm.Value{}, err
	}
	op2, err := g.genExpression(n.Children[1], sc)
	if err != nil {
		return llvm.Value{}, err
	}
	switch n.Op {
	case ast.Add:
		return g.b.CreateAdd(op1, op2, ""), nil
	case ast.Sub:
		return g.b.CreateSub(op1, op2, ""), nil
	case ast.Multiply:
		return g.b.CreateMul(op1, op2, ""), nil
	case ast.Division:
		return g.b.CreateSDiv(op1, op2, ""), nil
	case ast.Modulo:
		return g.b.CreateSRem(op1, op2, ""), nil
	case ast.Equal:
		return g.b.CreateZExt(g.b.CreateICmp(llvm.IntEQ, op1, op2, ""), i32, ""), nil
	case ast.LessThan:
		return g.b.CreateZExt(g.b.CreateICmp(llvm.IntSLT, op1, op2, ""), i32, ""), nil
	case ast.Greater:
		return g.b.CreateZExt(g.b.CreateICmp(llvm.IntSGT, op1, op2, ""), i32, ""), nil
	}
	return llvm.Value{}, fmt.Errorf("operator %s not defined for TSL", n.Op)
}

// genCall generates a call expression. The builtins lower to libc calls; user
// functions are called directly.
func (g *generator) genCall(n *ast.Node, sc scope) (llvm.Value, error) {
	switch n.Name {
	case "getnum":
		tmp := g.b.CreateAlloca(i32, "")
		frmt := g.b.CreateGlobalStringPtr("%d", stringPrefix)
		g.b.CreateCall(g.scanf, []llvm.Value{frmt, tmp}, "")
		return g.b.CreateLoad(tmp, ""), nil
	case "getchar":
		return g.b.CreateCall(g.getchar, []llvm.Value{}, ""), nil
	case "putnum":
		arg, err := g.genExpression(n.Children[0], sc)
		if err != nil {
			return llvm.Value{}, err
		}
		frmt := g.b.CreateGlobalStringPtr("%d", stringPrefix)
		return g.b.CreateCall(g.printf, []llvm.Value{frmt, arg}, ""), nil
	case "putchar":
		arg, err := g.genExpression(n.Children[0], sc)
		if err != nil {
			return llvm.Value{}, err
		}
		return g.b.CreateCall(g.putchar, []llvm.Value{arg}, ""), nil
	case "halt":
		g.b.CreateCall(g.exit, []llvm.Value{llvm.ConstInt(i32, 0, false)}, "")
		return llvm.ConstInt(i32, 0, false), nil
	}

	target := g.m.NamedFunction(n.Name)
	if target.IsNil() {
		return llvm.Value{}, fmt.Errorf("undeclared function %q", n.Name)
	}
	params := target.Params()
	if len(params) != len(n.Children) {
		return llvm.Value{}, fmt.Errorf("function %q expects %d parameters, got %d",
			n.Name, len(params), len(n.Children))
	}
	args := make([]llvm.Value, len(n.Children))
	for i1, e1 := range n.Children {
		arg, err := g.genExpression(e1, sc)
		if err != nil {
			return llvm.Value{}, err
		}
		args[i1] = arg
	}
	return g.b.CreateCall(target, args, ""), nil
}
