package lir

import "errors"

// Lowering failure kinds, wrapped with context by the transformation.
var (
	ErrUndefinedVariable = errors.New("undefined variable")
	ErrUndefinedFunction = errors.New("undefined function")
	ErrArityMismatch     = errors.New("arity mismatch")
	ErrDuplicateBinding  = errors.New("duplicate binding")
	ErrMalformedTree     = errors.New("malformed syntax tree")
)
