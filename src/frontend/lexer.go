// The lexer splits the source into lines and whitespace separated blocks,
// then consumes each block left to right with the longest-match rule:
// identifier or keyword, integer literal, character literal, punctuator.
// Token positions are (line, block, char-offset-in-block), all zero indexed.

package frontend

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"tslc/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// scanner consumes a single whitespace separated block.
type scanner struct {
	block string
	pos   Pos
	off   int // Current character offset within the block.
}

// ---------------------
// ----- Functions -----
// ---------------------

// Tokenize scans the whole source text and returns its token vector.
func Tokenize(src string) ([]Token, error) {
	tokens := make([]Token, 0, 256)
	for i1, line := range strings.Split(src, "\n") {
		for j1, block := range strings.Fields(line) {
			s := scanner{block: block, pos: Pos{Line: i1, Block: j1}}
			if err := s.run(&tokens); err != nil {
				return nil, err
			}
		}
	}
	return tokens, nil
}

// TokenStream writes a table of the source's tokens to the output writer.
func TokenStream(opt util.Options, src string) error {
	tokens, err := Tokenize(src)
	if err != nil {
		return err
	}
	sb := strings.Builder{}
	tw := tabwriter.NewWriter(&sb, 10, 20, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Token\tPosition\n")
	for _, e1 := range tokens {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", e1.String(), e1.Pos.String())
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return util.WriteOutput(opt, sb.String())
}

// run scans the scanner's block from start to finish, appending tokens.
func (s *scanner) run(tokens *[]Token) error {
	for s.off < len(s.block) {
		s.pos.Char = s.off
		t, err := s.next()
		if err != nil {
			return err
		}
		*tokens = append(*tokens, t)
	}
	return nil
}

// next scans a single token at the current offset.
func (s *scanner) next() (Token, error) {
	c := s.block[s.off]
	switch {
	case isIdentifierStart(c):
		return s.identifier(), nil
	case isDigit(c):
		return s.constant(), nil
	case c == '\'':
		return s.charLiteral()
	}
	if p, ok := punctuators[c]; ok {
		s.off++
		if p == Assign && s.off < len(s.block) && s.block[s.off] == '=' {
			s.off++
			return Token{Kind: KindPunctuator, Punct: DoubleEqual, Pos: s.pos}, nil
		}
		return Token{Kind: KindPunctuator, Punct: p, Pos: s.pos}, nil
	}
	return Token{}, fmt.Errorf("%w %q at %s", ErrUnrecognizedCharacter, c, s.pos.String())
}

// identifier scans an identifier and resolves it against the keyword table.
func (s *scanner) identifier() Token {
	start := s.off
	for s.off < len(s.block) && isIdentifierChar(s.block[s.off]) {
		s.off++
	}
	word := s.block[start:s.off]
	if k, ok := keywords[word]; ok {
		return Token{Kind: KindKeyword, Keyword: k, Pos: s.pos}
	}
	return Token{Kind: KindIdentifier, Ident: word, Pos: s.pos}
}

// constant scans a decimal integer literal.
func (s *scanner) constant() Token {
	var imm int32
	for s.off < len(s.block) && isDigit(s.block[s.off]) {
		imm = imm*10 + int32(s.block[s.off]-'0')
		s.off++
	}
	return Token{Kind: KindConstant, Value: imm, Pos: s.pos}
}

// charLiteral scans 'c' with the two escapes '\\' and '\''. Character
// literals cannot contain whitespace, since blocks are split on it.
func (s *scanner) charLiteral() (Token, error) {
	rest := s.block[s.off:]
	fail := func() (Token, error) {
		return Token{}, fmt.Errorf("%w %q at %s", ErrMalformedCharLiteral, rest, s.pos.String())
	}
	if len(rest) < 3 {
		return fail()
	}
	if rest[1] == '\\' {
		if len(rest) < 4 || rest[3] != '\'' || (rest[2] != '\\' && rest[2] != '\'') {
			return fail()
		}
		s.off += 4
		return Token{Kind: KindConstant, Value: int32(rest[2]), Pos: s.pos}, nil
	}
	if rest[2] != '\'' {
		return fail()
	}
	s.off += 3
	return Token{Kind: KindConstant, Value: int32(rest[1]), Pos: s.pos}, nil
}

func isIdentifierStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentifierChar(c byte) bool {
	return isIdentifierStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
