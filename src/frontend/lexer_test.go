// Tests the lexer by verifying that a sample TSL program is tokenized
// properly. The expected slice was written out by hand from the source
// snippet; the lexer must produce the same tokens in the same order.

package frontend

import (
	"errors"
	"testing"
)

// TestTokenize verifies tokens and positions for a small program.
func TestTokenize(t *testing.T) {
	src := "fn[1] add(a, b) {\n    return a + b;\n}\n"

	exp := []Token{
		{Kind: KindKeyword, Keyword: KwFn, Pos: Pos{Line: 0, Block: 0, Char: 0}},
		{Kind: KindPunctuator, Punct: LBracket, Pos: Pos{Line: 0, Block: 0, Char: 2}},
		{Kind: KindConstant, Value: 1, Pos: Pos{Line: 0, Block: 0, Char: 3}},
		{Kind: KindPunctuator, Punct: RBracket, Pos: Pos{Line: 0, Block: 0, Char: 4}},
		{Kind: KindIdentifier, Ident: "add", Pos: Pos{Line: 0, Block: 1, Char: 0}},
		{Kind: KindPunctuator, Punct: LParen, Pos: Pos{Line: 0, Block: 1, Char: 3}},
		{Kind: KindIdentifier, Ident: "a", Pos: Pos{Line: 0, Block: 1, Char: 4}},
		{Kind: KindPunctuator, Punct: Comma, Pos: Pos{Line: 0, Block: 1, Char: 5}},
		{Kind: KindIdentifier, Ident: "b", Pos: Pos{Line: 0, Block: 2, Char: 0}},
		{Kind: KindPunctuator, Punct: RParen, Pos: Pos{Line: 0, Block: 2, Char: 1}},
		{Kind: KindPunctuator, Punct: LBrace, Pos: Pos{Line: 0, Block: 3, Char: 0}},
		{Kind: KindKeyword, Keyword: KwReturn, Pos: Pos{Line: 1, Block: 0, Char: 0}},
		{Kind: KindIdentifier, Ident: "a", Pos: Pos{Line: 1, Block: 1, Char: 0}},
		{Kind: KindPunctuator, Punct: Plus, Pos: Pos{Line: 1, Block: 2, Char: 0}},
		{Kind: KindIdentifier, Ident: "b", Pos: Pos{Line: 1, Block: 3, Char: 0}},
		{Kind: KindPunctuator, Punct: Semicolon, Pos: Pos{Line: 1, Block: 3, Char: 1}},
		{Kind: KindPunctuator, Punct: RBrace, Pos: Pos{Line: 2, Block: 0, Char: 0}},
	}

	tokens, err := Tokenize(src)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(tokens) != len(exp) {
		t.Fatalf("expected %d tokens, got %d", len(exp), len(tokens))
	}
	for i1, e1 := range exp {
		if tokens[i1] != e1 {
			t.Errorf("token %d: expected %+v, got %+v", i1, e1, tokens[i1])
		}
	}
}

// TestTokenizeOperators verifies the punctuator table and the one character
// lookahead that separates "=" from "==".
func TestTokenizeOperators(t *testing.T) {
	tests := []struct {
		src string
		exp []Punct
	}{
		{"= ==", []Punct{Assign, DoubleEqual}},
		{"===", []Punct{DoubleEqual, Assign}},
		{"+-*/%", []Punct{Plus, Minus, Star, Slash, Percent}},
		{"<>", []Punct{Less, Greater}},
		{"{}()[],;", []Punct{LBrace, RBrace, LParen, RParen, LBracket, RBracket, Comma, Semicolon}},
	}
	for _, e1 := range tests {
		tokens, err := Tokenize(e1.src)
		if err != nil {
			t.Fatalf("%q: unexpected error: %s", e1.src, err)
		}
		if len(tokens) != len(e1.exp) {
			t.Fatalf("%q: expected %d tokens, got %d", e1.src, len(e1.exp), len(tokens))
		}
		for i1, p := range e1.exp {
			if !tokens[i1].IsPunct(p) {
				t.Errorf("%q: token %d: expected %s, got %s", e1.src, i1, p, tokens[i1])
			}
		}
	}
}

// TestTokenizeCharLiterals verifies character literals and their escapes.
func TestTokenizeCharLiterals(t *testing.T) {
	tests := []struct {
		src string
		exp int32
	}{
		{"'a'", 'a'},
		{"'0'", '0'},
		{`'\\'`, '\\'},
		{`'\''`, '\''},
	}
	for _, e1 := range tests {
		tokens, err := Tokenize(e1.src)
		if err != nil {
			t.Fatalf("%q: unexpected error: %s", e1.src, err)
		}
		if len(tokens) != 1 || tokens[0].Kind != KindConstant || tokens[0].Value != e1.exp {
			t.Errorf("%q: expected constant %d, got %v", e1.src, e1.exp, tokens)
		}
	}
}

// TestTokenizeErrors verifies that bogus input fails with the right kind.
func TestTokenizeErrors(t *testing.T) {
	tests := []struct {
		src string
		exp error
	}{
		{"x = $;", ErrUnrecognizedCharacter},
		{"x = #1;", ErrUnrecognizedCharacter},
		{"'a", ErrMalformedCharLiteral},
		{"'ab'", ErrMalformedCharLiteral},
		{`'\n'`, ErrMalformedCharLiteral},
	}
	for _, e1 := range tests {
		if _, err := Tokenize(e1.src); !errors.Is(err, e1.exp) {
			t.Errorf("%q: expected %v, got %v", e1.src, e1.exp, err)
		}
	}
}
