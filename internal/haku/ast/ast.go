// Package ast defines the haku abstract syntax tree produced by the parser
// and consumed by the compiler.
package ast

import "github.com/liquidev/rakugaki/internal/haku/token"

// Kind identifies the variant of an Expr node.
type Kind uint32

const (
	Number Kind = iota // numeric literal
	ColorLit           // color literal, #RGB family
	VecLit             // vector literal; neither the parser nor the compiler
	// produces it (the grammar has no vector literal syntax), and the
	// compiler rejects it as an unsupported expression.
	Ident    // identifier reference
	Lambda   // \params -> body
	App      // function application by juxtaposition
	List     // [a b c]
	If       // if cond then else else
	DefGroup // top-level def* followed by a body expr
	Tag      // True / False
)

// Param is a single lambda parameter: just a name with its own span.
type Param struct {
	Name string
	Span token.Span
}

// Def is one top-level name = value binding.
type Def struct {
	Name  string
	Value *Expr
	Span  token.Span
}

// Expr is a single AST node. All nodes carry their source Span; the fields
// populated depend on Kind.
type Expr struct {
	Kind Kind
	Span token.Span

	// Number
	NumberValue float64

	// ColorLit
	ColorValue [4]float64

	// VecLit
	VecValues []float64

	// Ident
	Name string

	// Lambda
	Params []Param
	Body   *Expr

	// App
	Func *Expr
	Args []*Expr

	// List
	Items []*Expr

	// If
	Cond *Expr
	Then *Expr
	Else *Expr

	// DefGroup
	Defs []Def
	Rest *Expr

	// Tag
	TagValue bool
}
