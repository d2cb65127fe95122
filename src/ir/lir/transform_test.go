package lir

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tslc/src/frontend"
	"tslc/src/ir"
)

// lower tokenizes, parses and lowers a source string.
func lower(t *testing.T, src string) *Program {
	t.Helper()
	tokens, err := frontend.Tokenize(src)
	require.NoError(t, err)
	root, err := frontend.Parse(tokens)
	require.NoError(t, err)
	prog, err := Transform(root)
	require.NoError(t, err)
	return prog
}

// TestTransformBuiltins verifies that the five builtins are pre-registered
// with empty bodies.
func TestTransformBuiltins(t *testing.T) {
	prog := lower(t, "fn[0] main() { halt(); }")
	for _, e1 := range []struct {
		name   string
		params int
		retnum int
	}{
		{"getnum", 0, 1},
		{"getchar", 0, 1},
		{"putnum", 1, 0},
		{"putchar", 1, 0},
		{"halt", 0, 0},
	} {
		fn, ok := prog.Funcs[e1.name]
		require.True(t, ok, e1.name)
		assert.True(t, fn.Builtin(), e1.name)
		assert.Len(t, fn.Params, e1.params, e1.name)
		assert.Equal(t, e1.retnum, fn.Retnum, e1.name)
	}
}

// TestTransformFactorial verifies the exact block graph and register
// numbering lowered from a recursive function.
func TestTransformFactorial(t *testing.T) {
	prog := lower(t, "fn[1] f(n) { if n == 0 { return 1; } return n * f(n - 1); } fn[0] main() { putnum(f(5)); halt(); }")

	f := prog.Funcs["f"]
	require.NotNil(t, f)
	require.Len(t, f.Blocks, 3)

	require.Equal(t, []Statement{
		{Op: ir.Equal, Ret: 1, Args: []Value{Reg(0), Imm(0)}},
		{Op: ir.If, Ret: NoRegister, Args: []Value{Reg(1)}},
	}, f.Blocks[0].Statements)
	assert.Equal(t, []int{1, 2}, f.Blocks[0].Nexts)

	require.Equal(t, []Statement{
		{Op: ir.Return, Ret: NoRegister, Args: []Value{Imm(1)}},
	}, f.Blocks[1].Statements)
	assert.Empty(t, f.Blocks[1].Nexts)

	require.Equal(t, []Statement{
		{Op: ir.Sub, Ret: 4, Args: []Value{Reg(0), Imm(1)}},
		{Op: ir.Call, Ret: 5, Args: []Value{Reg(4)}, Name: "f"},
		{Op: ir.Multiply, Ret: 6, Args: []Value{Reg(0), Reg(5)}},
		{Op: ir.Return, Ret: NoRegister, Args: []Value{Reg(6)}},
	}, f.Blocks[2].Statements)
	assert.Empty(t, f.Blocks[2].Nexts)

	m := prog.Funcs["main"]
	require.NotNil(t, m)
	require.Len(t, m.Blocks, 1)
	require.Equal(t, []Statement{
		{Op: ir.Call, Ret: 0, Args: []Value{Imm(5)}, Name: "f"},
		{Op: ir.Call, Ret: 1, Args: []Value{Reg(0)}, Name: "putnum"},
		{Op: ir.Call, Ret: 2, Args: []Value{}, Name: "halt"},
	}, m.Blocks[0].Statements)
}

// TestTransformIfElse verifies the branch linkage of an if/else: the
// condition block falls through into THEN and branches to ELSE, THEN ends in
// a Jump to the join, ELSE falls through into the join.
func TestTransformIfElse(t *testing.T) {
	prog := lower(t, "fn[0] main() { x = getnum(); if x { putnum(1); } else { putnum(0); } halt(); }")
	m := prog.Funcs["main"]
	require.Len(t, m.Blocks, 4)

	require.Equal(t, []Statement{
		{Op: ir.Call, Ret: 0, Args: []Value{}, Name: "getnum"},
		{Op: ir.Substitute, Ret: 1, Args: []Value{Reg(0)}},
		{Op: ir.If, Ret: NoRegister, Args: []Value{Reg(1)}},
	}, m.Blocks[0].Statements)
	assert.Equal(t, []int{1, 2}, m.Blocks[0].Nexts)

	require.Equal(t, []Statement{
		{Op: ir.Call, Ret: 2, Args: []Value{Imm(1)}, Name: "putnum"},
		{Op: ir.Jump, Ret: NoRegister},
	}, m.Blocks[1].Statements)
	assert.Equal(t, []int{3}, m.Blocks[1].Nexts)

	require.Equal(t, []Statement{
		{Op: ir.Call, Ret: 4, Args: []Value{Imm(0)}, Name: "putnum"},
	}, m.Blocks[2].Statements)
	assert.Equal(t, []int{3}, m.Blocks[2].Nexts)

	require.Equal(t, []Statement{
		{Op: ir.Call, Ret: 6, Args: []Value{}, Name: "halt"},
	}, m.Blocks[3].Statements)
}

// TestTransformSyntheticReturn verifies that functions declaring zero return
// values end in a synthesized Return, while main does not.
func TestTransformSyntheticReturn(t *testing.T) {
	prog := lower(t, "fn[0] g(x) { putnum(x); } fn[0] main() { g(1); halt(); }")

	g := prog.Funcs["g"]
	last := g.Blocks[len(g.Blocks)-1]
	require.NotEmpty(t, last.Statements)
	assert.Equal(t, Statement{Op: ir.Return, Ret: NoRegister}, last.Statements[len(last.Statements)-1])

	m := prog.Funcs["main"]
	mlast := m.Blocks[len(m.Blocks)-1]
	assert.NotEqual(t, ir.Return, mlast.Statements[len(mlast.Statements)-1].Op)
}

// TestTransformForwardReference verifies that mutual recursion resolves, with
// both orders of declaration.
func TestTransformForwardReference(t *testing.T) {
	srcs := []string{
		"fn[1] even(n) { if n == 0 { return 1; } return odd(n - 1); } fn[1] odd(n) { if n == 0 { return 0; } return even(n - 1); } fn[0] main() { putnum(even(7)); halt(); }",
		"fn[1] odd(n) { if n == 0 { return 0; } return even(n - 1); } fn[1] even(n) { if n == 0 { return 1; } return odd(n - 1); } fn[0] main() { putnum(even(7)); halt(); }",
	}
	for _, e1 := range srcs {
		prog := lower(t, e1)
		require.NoError(t, prog.Validate())
	}
}

// TestTransformProperties validates the lowering invariants over the
// end-to-end sample programs: successor indices stay in range, every block is
// reachable from the entry by forward edges, and register definitions
// dominate uses.
func TestTransformProperties(t *testing.T) {
	sources := []string{
		"fn[0] main() { halt(); }",
		"fn[0] main() { x = getnum(); putnum(x); halt(); }",
		"fn[0] main() { x = 2 + 3 * 4; putnum(x); halt(); }",
		"fn[0] main() { x = getnum(); if x { putnum(1); } else { putnum(0); } halt(); }",
		"fn[1] f(n) { if n == 0 { return 1; } return n * f(n - 1); } fn[0] main() { putnum(f(5)); halt(); }",
		"fn[0] main() { x = getnum(); if x > 2 { if x > 4 { putnum(2); } else { putnum(1); } } else { putnum(0); } halt(); }",
	}
	for _, e1 := range sources {
		prog := lower(t, e1)
		require.NoError(t, prog.Validate(), e1)

		for name, fn := range prog.Funcs {
			if fn.Builtin() {
				continue
			}
			reach := make([]bool, len(fn.Blocks))
			reach[0] = true
			for i1 := range fn.Blocks {
				if !reach[i1] {
					continue
				}
				for _, nx := range fn.Blocks[i1].Nexts {
					require.Greater(t, nx, i1, "%s: %s block %d", e1, name, i1)
					require.Less(t, nx, len(fn.Blocks), "%s: %s block %d", e1, name, i1)
					reach[nx] = true
				}
			}
			for i1, r := range reach {
				assert.True(t, r, "%s: %s block %d unreachable", e1, name, i1)
			}
		}
	}
}

// TestTransformErrors verifies the lowering failure kinds.
func TestTransformErrors(t *testing.T) {
	tests := []struct {
		src string
		exp error
	}{
		{"fn[0] main() { putnum(x); halt(); }", ErrUndefinedVariable},
		{"fn[0] main() { foo(); halt(); }", ErrUndefinedFunction},
		{"fn[0] main() { x = foo(); halt(); }", ErrUndefinedFunction},
		{"fn[0] main() { putnum(); halt(); }", ErrArityMismatch},
		{"fn[0] main() { putnum(1, 2); halt(); }", ErrArityMismatch},
		{"fn[1] main() { return 1; }", ErrArityMismatch},
		{"fn[0] main() { x = 1; x = 2; halt(); }", ErrDuplicateBinding},
		{"fn[0] main(a, a) { halt(); }", ErrDuplicateBinding},
		{"fn[0] main() { halt(); } fn[0] main() { halt(); }", ErrDuplicateBinding},
		{"fn[0] halt() { } fn[0] main() { halt(); }", ErrDuplicateBinding},
	}
	for _, e1 := range tests {
		tokens, err := frontend.Tokenize(e1.src)
		require.NoError(t, err, e1.src)
		root, err := frontend.Parse(tokens)
		require.NoError(t, err, e1.src)
		_, err = Transform(root)
		if !errors.Is(err, e1.exp) {
			t.Errorf("%q: expected %v, got %v", e1.src, e1.exp, err)
		}
	}
}
