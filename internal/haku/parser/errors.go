package parser

import "github.com/liquidev/rakugaki/internal/haku/token"

// ParseError is a rich, user-facing parse diagnostic: where it happened,
// what went wrong, and what would have been valid instead.
type ParseError struct {
	Span       token.Span
	Message    string
	Context    string      // what the parser was parsing, e.g. "lambda parameters"
	Expected   []token.Kind
	Got        token.Kind
	Suggestion string
}

func (e ParseError) Error() string { return e.Message }
