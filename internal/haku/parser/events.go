package parser

// EventKind is the type of a single entry in a parse's Event stream. The
// parser does not build the AST directly; it emits a flat, replayable
// stream of open/close/token events, and a separate pass (build.go)
// materializes that stream into an *ast.Expr tree. Keeping the two passes
// separate is what lets the parser bound its output independently
// (max_parser_events) from the tree it eventually builds (ast_capacity).
type EventKind uint8

const (
	EventOpen EventKind = iota
	EventClose
	EventToken
)

// NodeKind identifies which syntax construct an EventOpen/EventClose pair
// brackets.
//
// Append new kinds at the end: event streams reference NodeKind by numeric
// value, and inserting in the middle would shift every later value.
type NodeKind uint32

const (
	NodeProgram NodeKind = iota
	NodeDef
	NodeLambda
	NodeParamList
	NodeIf
	NodeApp
	NodeList
	NodeBinary
	NodeParen
	NodeNumber
	NodeColor
	NodeIdent
	NodeTag
)

// Event is one entry in the parse event stream. For EventOpen/EventClose,
// Data holds the NodeKind. For EventToken, Data holds the index into the
// Tokens slice of the token that was consumed.
type Event struct {
	Kind EventKind
	Data uint32
}
