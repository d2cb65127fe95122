package frontend

import "errors"

// Lexer and parser failure kinds. Phase errors wrap one of these, so callers
// can test the kind with errors.Is while the message carries the position.
var (
	ErrUnrecognizedCharacter = errors.New("unrecognized character")
	ErrMalformedCharLiteral  = errors.New("malformed character literal")
	ErrUnexpectedToken       = errors.New("unexpected token")
	ErrUnexpectedEOF         = errors.New("unexpected end of input")
	ErrUnsupportedConstruct  = errors.New("unsupported construct")
)
