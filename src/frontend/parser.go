// The parser is a recursive descent over the token vector. Every production
// takes the remaining tokens and returns the parsed subtree together with the
// number of tokens it consumed, so no production holds mutable cursor state.

package frontend

import (
	"fmt"

	"tslc/src/ir"
)

// ---------------------
// ----- Functions -----
// ---------------------

// Parse parses the token vector into a Declare root node holding one
// FunctionDeclare child per function in source order.
func Parse(tokens []Token) (*ir.Node, error) {
	root := &ir.Node{Op: ir.Declare}
	for len(tokens) > 0 {
		n, seek, err := parseDeclaration(tokens)
		if err != nil {
			return nil, err
		}
		root.Children = append(root.Children, n)
		tokens = tokens[seek:]
	}
	return root, nil
}

// parseDeclaration parses 'fn' '[' constant ']' identifier '(' params ')'
// '{' statements '}'.
func parseDeclaration(ts []Token) (*ir.Node, int, error) {
	if err := expectKeyword(ts, 0, KwFn); err != nil {
		return nil, 0, err
	}
	if err := expectPunct(ts, 1, LBracket); err != nil {
		return nil, 0, err
	}
	if len(ts) < 3 {
		return nil, 0, eofErr("return count")
	}
	if ts[2].Kind != KindConstant {
		return nil, 0, tokenErr(ts[2], "return count")
	}
	retnum := int(ts[2].Value)
	if err := expectPunct(ts, 3, RBracket); err != nil {
		return nil, 0, err
	}
	if len(ts) < 5 {
		return nil, 0, eofErr("function name")
	}
	if ts[4].Kind != KindIdentifier {
		return nil, 0, tokenErr(ts[4], "function name")
	}
	name := ts[4].Ident
	params, seek, err := parseParams(ts[5:])
	if err != nil {
		return nil, 0, err
	}
	off := 5 + seek
	if err := expectPunct(ts, off, LBrace); err != nil {
		return nil, 0, err
	}
	off++
	body, seek2, err := parseStatements(ts[off:])
	if err != nil {
		return nil, 0, err
	}
	off += seek2
	if err := expectPunct(ts, off, RBrace); err != nil {
		return nil, 0, err
	}
	return &ir.Node{
		Op:       ir.FunctionDeclare,
		Name:     name,
		Params:   params,
		Retnum:   retnum,
		Children: []*ir.Node{body},
	}, off + 1, nil
}

// parseParams parses '(' (identifier (',' identifier)*)? ')' and returns the
// parameter names.
func parseParams(ts []Token) ([]string, int, error) {
	if err := expectPunct(ts, 0, LParen); err != nil {
		return nil, 0, err
	}
	params := make([]string, 0, 4)
	off := 1
	if off < len(ts) && ts[off].IsPunct(RParen) {
		return params, off + 1, nil
	}
	for {
		if off >= len(ts) {
			return nil, 0, eofErr("parameter name")
		}
		if ts[off].Kind != KindIdentifier {
			return nil, 0, tokenErr(ts[off], "parameter name")
		}
		params = append(params, ts[off].Ident)
		off++
		if off >= len(ts) {
			return nil, 0, eofErr("\",\" or \")\"")
		}
		if ts[off].IsPunct(RParen) {
			return params, off + 1, nil
		}
		if !ts[off].IsPunct(Comma) {
			return nil, 0, tokenErr(ts[off], "\",\" or \")\"")
		}
		off++
	}
}

// parseStatements parses statements until the closing brace of the enclosing
// block, which is left unconsumed.
func parseStatements(ts []Token) (*ir.Node, int, error) {
	list := &ir.Node{Op: ir.Statement}
	off := 0
	for {
		if off < len(ts) && ts[off].IsPunct(RBrace) {
			return list, off, nil
		}
		n, seek, err := parseStatement(ts[off:])
		if err != nil {
			return nil, 0, err
		}
		list.Children = append(list.Children, n)
		off += seek
	}
}

// parseStatement parses a single assignment, call, if or return statement.
func parseStatement(ts []Token) (*ir.Node, int, error) {
	if len(ts) == 0 {
		return nil, 0, eofErr("statement")
	}
	switch {
	case ts[0].IsKeyword(KwIf):
		return parseIf(ts)
	case ts[0].IsKeyword(KwReturn):
		return parseReturn(ts)
	}
	if ts[0].Kind != KindIdentifier {
		return nil, 0, tokenErr(ts[0], "statement")
	}
	if len(ts) < 2 {
		return nil, 0, eofErr("\"=\" or \"(\"")
	}
	switch {
	case ts[1].IsPunct(Assign):
		rhs, seek, err := parseExpression(ts[2:])
		if err != nil {
			return nil, 0, err
		}
		off := 2 + seek
		if err := expectPunct(ts, off, Semicolon); err != nil {
			return nil, 0, err
		}
		lhs := &ir.Node{Op: ir.Identifier, Name: ts[0].Ident}
		return &ir.Node{Op: ir.Substitute, Children: []*ir.Node{lhs, rhs}}, off + 1, nil
	case ts[1].IsPunct(LParen):
		call, seek, err := parseCall(ts)
		if err != nil {
			return nil, 0, err
		}
		if err := expectPunct(ts, seek, Semicolon); err != nil {
			return nil, 0, err
		}
		return call, seek + 1, nil
	}
	return nil, 0, tokenErr(ts[1], "\"=\" or \"(\"")
}

// parseIf parses 'if' expression '{' statements '}' with an optional
// 'else' '{' statements '}' arm. The reserved 'elsif' keyword is rejected.
func parseIf(ts []Token) (*ir.Node, int, error) {
	cond, seek, err := parseExpression(ts[1:])
	if err != nil {
		return nil, 0, err
	}
	off := 1 + seek
	if err := expectPunct(ts, off, LBrace); err != nil {
		return nil, 0, err
	}
	off++
	then, seek2, err := parseStatements(ts[off:])
	if err != nil {
		return nil, 0, err
	}
	off += seek2
	if err := expectPunct(ts, off, RBrace); err != nil {
		return nil, 0, err
	}
	off++
	n := &ir.Node{Op: ir.If, Children: []*ir.Node{cond, then}}
	if off < len(ts) && ts[off].IsKeyword(KwElsif) {
		return nil, 0, fmt.Errorf("%w: elsif at %s", ErrUnsupportedConstruct, ts[off].Pos.String())
	}
	if off >= len(ts) || !ts[off].IsKeyword(KwElse) {
		return n, off, nil
	}
	off++
	if err := expectPunct(ts, off, LBrace); err != nil {
		return nil, 0, err
	}
	off++
	els, seek3, err := parseStatements(ts[off:])
	if err != nil {
		return nil, 0, err
	}
	off += seek3
	if err := expectPunct(ts, off, RBrace); err != nil {
		return nil, 0, err
	}
	n.Children = append(n.Children, els)
	return n, off + 1, nil
}

// parseReturn parses 'return' expression ';'.
func parseReturn(ts []Token) (*ir.Node, int, error) {
	e, seek, err := parseExpression(ts[1:])
	if err != nil {
		return nil, 0, err
	}
	off := 1 + seek
	if err := expectPunct(ts, off, Semicolon); err != nil {
		return nil, 0, err
	}
	return &ir.Node{Op: ir.Return, Children: []*ir.Node{e}}, off + 1, nil
}

// Binary operator tables, one per precedence tier. All tiers associate left.
var (
	eqOps  = map[Punct]ir.Operator{DoubleEqual: ir.Equal}
	cmpOps = map[Punct]ir.Operator{Less: ir.LessThan, Greater: ir.Greater}
	addOps = map[Punct]ir.Operator{Plus: ir.Add, Minus: ir.Sub}
	mulOps = map[Punct]ir.Operator{Star: ir.Multiply, Slash: ir.Division, Percent: ir.Modulo}
)

// parseExpression parses the lowest precedence tier, equality.
func parseExpression(ts []Token) (*ir.Node, int, error) {
	return parseBinary(ts, eqOps, parseCmp)
}

func parseCmp(ts []Token) (*ir.Node, int, error) {
	return parseBinary(ts, cmpOps, parseAdd)
}

func parseAdd(ts []Token) (*ir.Node, int, error) {
	return parseBinary(ts, addOps, parseMul)
}

func parseMul(ts []Token) (*ir.Node, int, error) {
	return parseBinary(ts, mulOps, parsePrimary)
}

// parseBinary parses next (op next)* for the operators of one tier, folding
// the operands left associatively.
func parseBinary(ts []Token, ops map[Punct]ir.Operator, next func([]Token) (*ir.Node, int, error)) (*ir.Node, int, error) {
	lhs, seek, err := next(ts)
	if err != nil {
		return nil, 0, err
	}
	for seek < len(ts) && ts[seek].Kind == KindPunctuator {
		op, ok := ops[ts[seek].Punct]
		if !ok {
			break
		}
		rhs, seek2, err := next(ts[seek+1:])
		if err != nil {
			return nil, 0, err
		}
		lhs = &ir.Node{Op: op, Children: []*ir.Node{lhs, rhs}}
		seek += 1 + seek2
	}
	return lhs, seek, nil
}

// parsePrimary parses a call, identifier, constant or parenthesized
// expression.
func parsePrimary(ts []Token) (*ir.Node, int, error) {
	if len(ts) == 0 {
		return nil, 0, eofErr("expression")
	}
	switch ts[0].Kind {
	case KindConstant:
		return &ir.Node{Op: ir.Constant, Value: ts[0].Value}, 1, nil
	case KindIdentifier:
		if len(ts) >= 2 && ts[1].IsPunct(LParen) {
			return parseCall(ts)
		}
		return &ir.Node{Op: ir.Identifier, Name: ts[0].Ident}, 1, nil
	}
	if ts[0].IsPunct(LParen) {
		e, seek, err := parseExpression(ts[1:])
		if err != nil {
			return nil, 0, err
		}
		if err := expectPunct(ts, 1+seek, RParen); err != nil {
			return nil, 0, err
		}
		return e, 1 + seek + 1, nil
	}
	return nil, 0, tokenErr(ts[0], "expression")
}

// parseCall parses identifier '(' expressions ')' starting at the callee
// name.
func parseCall(ts []Token) (*ir.Node, int, error) {
	args, seek, err := parseExprList(ts[2:])
	if err != nil {
		return nil, 0, err
	}
	off := 2 + seek
	if err := expectPunct(ts, off, RParen); err != nil {
		return nil, 0, err
	}
	return &ir.Node{Op: ir.Call, Name: ts[0].Ident, Children: args}, off + 1, nil
}

// parseExprList parses a possibly empty comma separated expression list. The
// closing parenthesis is left unconsumed.
func parseExprList(ts []Token) ([]*ir.Node, int, error) {
	res := make([]*ir.Node, 0, 4)
	if len(ts) > 0 && ts[0].IsPunct(RParen) {
		return res, 0, nil
	}
	off := 0
	for {
		e, seek, err := parseExpression(ts[off:])
		if err != nil {
			return nil, 0, err
		}
		res = append(res, e)
		off += seek
		if off >= len(ts) {
			return nil, 0, eofErr("\",\" or \")\"")
		}
		if ts[off].IsPunct(RParen) {
			return res, off, nil
		}
		if !ts[off].IsPunct(Comma) {
			return nil, 0, tokenErr(ts[off], "\",\" or \")\"")
		}
		off++
	}
}

// expectPunct verifies that token i is the given punctuator.
func expectPunct(ts []Token, i int, p Punct) error {
	if i >= len(ts) {
		return eofErr(fmt.Sprintf("%q", p.String()))
	}
	if !ts[i].IsPunct(p) {
		return tokenErr(ts[i], fmt.Sprintf("%q", p.String()))
	}
	return nil
}

// expectKeyword verifies that token i is the given keyword.
func expectKeyword(ts []Token, i int, k Keyword) error {
	if i >= len(ts) {
		return eofErr(fmt.Sprintf("%q", k.String()))
	}
	if !ts[i].IsKeyword(k) {
		return tokenErr(ts[i], fmt.Sprintf("%q", k.String()))
	}
	return nil
}

func eofErr(expected string) error {
	return fmt.Errorf("%w, expected %s", ErrUnexpectedEOF, expected)
}

func tokenErr(t Token, expected string) error {
	return fmt.Errorf("%w %s at %s, expected %s", ErrUnexpectedToken, t.String(), t.Pos.String(), expected)
}
