// label.go provides the naming scheme for assembly labels. Every label in the
// output is produced by one of these functions, which keeps the backend and
// its tests agreeing on the exact spelling.

package util

import "fmt"

// ---------------------
// ----- Constants -----
// ---------------------

// ReturnLabel is the label of the dispatch trampoline that resumes callers
// from their return tokens.
const ReturnLabel = "return"

// ---------------------
// ----- Functions -----
// ---------------------

// FuncLabel returns the entry label of the named function.
func FuncLabel(name string) string {
	return "func_" + name
}

// BlockLabel returns the label of basic block i of the named function.
func BlockLabel(name string, i int) string {
	return fmt.Sprintf("block_%s_%d", name, i)
}

// ControlLabel returns the resume label of call site i. Call sites are
// numbered across the whole program in the order functions are emitted.
func ControlLabel(i int) string {
	return fmt.Sprintf("control_%d", i)
}
