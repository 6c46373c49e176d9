// Package parser turns a haku token stream into a flat Event stream and,
// from that, an AST. It never stops at the first error: it records a
// diagnostic and resynchronizes so later errors in the same source are
// still reported in a single pass.
package parser

import (
	"github.com/liquidev/rakugaki/internal/haku/lexer"
	"github.com/liquidev/rakugaki/internal/haku/token"
)

// Limits bounds the parser's output so a pathological brush cannot exhaust
// host memory before the VM ever gets to meter fuel.
type Limits struct {
	MaxTokens       int
	MaxParserEvents int
	ASTCapacity     int
}

// DefaultLimits mirrors the haku_limits defaults documented in spec.md §6.
var DefaultLimits = Limits{
	MaxTokens:       1 << 16,
	MaxParserEvents: 1 << 18,
	ASTCapacity:     1 << 15,
}

// Tree is the result of a parse: the token stream, the event stream, and
// any diagnostics. Call Build to materialize the AST.
type Tree struct {
	Source string
	Tokens []token.Token
	Events []Event
	Errors []ParseError
}

// Binary operator precedence, lowest to highest. Binary expressions lower
// to applications of intrinsics: `a + b` becomes the application
// `(add a b)`, matching the "syntactic sugar" rule in spec.md §4.B.
var binOpIntrinsic = map[token.Kind]string{
	token.Lt:    "lt",
	token.Gt:    "gt",
	token.Plus:  "add",
	token.Minus: "sub",
	token.Star:  "mul",
	token.Slash: "div",
}

var precedence = map[token.Kind]int{
	token.Lt: 1, token.Gt: 1,
	token.Plus: 2, token.Minus: 2,
	token.Star: 3, token.Slash: 3,
}

type parser struct {
	limits Limits
	tokens []token.Token
	pos    int
	events []Event
	errors []ParseError
}

// Parse lexes and parses src, producing a Tree. The Tree may carry
// diagnostics even when it also carries a usable Events stream. The
// compiler does not look at Tree.Errors; whether a tree with diagnostics
// is compiled is up to the caller (Build's returned errors include them).
func Parse(src string, limits Limits) *Tree {
	lx := lexer.New(src)
	var tokens []token.Token
	for {
		tok := lx.Next()
		tokens = append(tokens, tok)
		if tok.Kind == token.EOF || len(tokens) >= limits.MaxTokens {
			break
		}
	}

	p := &parser{limits: limits, tokens: tokens}
	for _, d := range lx.Diagnostics() {
		p.errors = append(p.errors, ParseError{Span: d.Span, Message: d.Message})
	}

	p.open(NodeProgram)
	p.parseProgram()
	p.close(NodeProgram)

	return &Tree{Source: src, Tokens: tokens, Events: p.events, Errors: p.errors}
}

func (p *parser) cur() token.Token  { return p.tokens[p.pos] }
func (p *parser) curKind() token.Kind { return p.tokens[p.pos].Kind }

func (p *parser) peekKind(offset int) token.Kind {
	idx := p.pos + offset
	if idx >= len(p.tokens) {
		return token.EOF
	}
	return p.tokens[idx].Kind
}

func (p *parser) atEnd() bool { return p.curKind() == token.EOF }

func (p *parser) bump() uint32 {
	idx := uint32(p.pos)
	p.emit(Event{Kind: EventToken, Data: idx})
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return idx
}

func (p *parser) emit(e Event) {
	if len(p.events) >= p.limits.MaxParserEvents {
		return
	}
	p.events = append(p.events, e)
}

func (p *parser) open(kind NodeKind) { p.emit(Event{Kind: EventOpen, Data: uint32(kind)}) }
func (p *parser) close(kind NodeKind) { p.emit(Event{Kind: EventClose, Data: uint32(kind)}) }

func (p *parser) errorHere(msg, context string, expected ...token.Kind) {
	p.errors = append(p.errors, ParseError{
		Span:     p.cur().Span,
		Message:  msg,
		Context:  context,
		Expected: expected,
		Got:      p.curKind(),
	})
}

// expect consumes the current token if it matches kind, otherwise records a
// diagnostic and resynchronizes without consuming (so the caller's own
// recovery logic, or the top-level loop, can decide what to skip).
func (p *parser) expect(kind token.Kind, context string) bool {
	if p.curKind() == kind {
		p.bump()
		return true
	}
	p.errorHere("expected "+kind.String(), context, kind)
	return false
}

// parseProgram implements `program := def* expr`.
func (p *parser) parseProgram() {
	for !p.atEnd() && p.curKind() == token.Ident && p.peekKind(1) == token.Equals {
		p.parseDef()
	}
	if p.atEnd() {
		p.errorHere("expected a final expression", "program")
		return
	}
	p.parseExpr()
	if !p.atEnd() {
		// Extra trailing input: report it once and stop; the remaining
		// tokens are not parsed.
		p.errorHere("unexpected trailing input after program's final expression", "program")
	}
}

func (p *parser) parseDef() {
	p.open(NodeDef)
	p.bump() // ident
	p.expect(token.Equals, "def")
	p.parseExpr()
	p.close(NodeDef)
}

// parseExpr implements `expr := lambda | if | binary`.
func (p *parser) parseExpr() {
	switch p.curKind() {
	case token.Backslash:
		p.parseLambda()
	case token.If:
		p.parseIf()
	default:
		p.parseBinary(0)
	}
}

func (p *parser) parseLambda() {
	p.open(NodeLambda)
	p.bump() // backslash
	p.open(NodeParamList)
	for p.curKind() == token.Ident {
		p.bump()
		if p.curKind() == token.Comma {
			p.bump()
			continue
		}
		break
	}
	p.close(NodeParamList)
	p.expect(token.Arrow, "lambda")
	p.parseExpr()
	p.close(NodeLambda)
}

func (p *parser) parseIf() {
	p.open(NodeIf)
	p.bump() // if
	p.parseConditionBinary(0) // condition: a single primary, optionally
	// extended by binary operators, but never by juxtaposition — otherwise
	// the then-branch's leading primary gets folded into the condition as
	// an application (e.g. `if (1 < 2) 10 else 20` parsing as `(1<2) 10`).
	p.parseExpr() // then
	if !p.expect(token.Else, "if") {
		p.close(NodeIf)
		return
	}
	p.parseExpr() // else
	p.close(NodeIf)
}

// parseBinary implements left-associative binary operators over `app`,
// using precedence climbing, then lowers each level into a NodeBinary
// event pair that the builder turns into an App of the operator intrinsic.
func (p *parser) parseBinary(minPrec int) {
	left := p.startMark()
	p.parseApp()
	for {
		opKind := p.curKind()
		prec, isOp := precedence[opKind]
		if !isOp || prec < minPrec {
			break
		}
		p.reopenAt(left, NodeBinary)
		p.bump() // operator token
		p.parseBinary(prec + 1)
		p.close(NodeBinary)
	}
}

// parseConditionBinary is parseBinary restricted to a single `primary` at
// the leaves instead of `app`, so an if condition can still use
// comparison/arithmetic operators but never swallows the following
// then-branch via juxtaposition the way parseApp would.
func (p *parser) parseConditionBinary(minPrec int) {
	left := p.startMark()
	p.parsePrimary()
	for {
		opKind := p.curKind()
		prec, isOp := precedence[opKind]
		if !isOp || prec < minPrec {
			break
		}
		p.reopenAt(left, NodeBinary)
		p.bump() // operator token
		p.parseConditionBinary(prec + 1)
		p.close(NodeBinary)
	}
}

// parseApp implements `app := primary primary*`.
func (p *parser) parseApp() {
	mark := p.startMark()
	p.parsePrimary()
	count := 0
	for p.startsPrimary() {
		if count == 0 {
			p.reopenAt(mark, NodeApp)
		}
		p.parsePrimary()
		count++
	}
	if count > 0 {
		p.close(NodeApp)
	}
}

func (p *parser) startsPrimary() bool {
	switch p.curKind() {
	case token.Number, token.Color, token.Ident, token.True, token.False, token.LParen, token.LSquare:
		return true
	default:
		return false
	}
}

// parsePrimary implements
// `primary := literal | ident | "(" expr ")" | "[" expr* "]"`.
func (p *parser) parsePrimary() {
	switch p.curKind() {
	case token.Number:
		p.open(NodeNumber)
		p.bump()
		p.close(NodeNumber)
	case token.Color:
		p.open(NodeColor)
		p.bump()
		p.close(NodeColor)
	case token.True, token.False:
		p.open(NodeTag)
		p.bump()
		p.close(NodeTag)
	case token.Ident:
		p.open(NodeIdent)
		p.bump()
		p.close(NodeIdent)
	case token.LParen:
		p.open(NodeParen)
		p.bump()
		p.parseExpr()
		p.expect(token.RParen, "parenthesized expression")
		p.close(NodeParen)
	case token.LSquare:
		p.open(NodeList)
		p.bump()
		for p.startsPrimary() || p.curKind() == token.Backslash || p.curKind() == token.If {
			p.parseExpr()
		}
		p.expect(token.RSquare, "list")
		p.close(NodeList)
	default:
		p.errorHere("expected an expression", "primary",
			token.Number, token.Color, token.Ident, token.LParen, token.LSquare)
		// Resynchronize by consuming exactly one token so the parser makes
		// forward progress and can still report later errors.
		if !p.atEnd() {
			p.bump()
		}
		p.open(NodeNumber)
		p.close(NodeNumber) // placeholder node keeps the tree well-formed
	}
}

// mark records a position in the event stream so a later construct can be
// "reopened": precedence climbing and juxtaposition both need to wrap
// already-emitted events in a new enclosing node without having known in
// advance that the wrapper would be needed.
type mark int

func (p *parser) startMark() mark { return mark(len(p.events)) }

// reopenAt inserts an EventOpen for kind at the recorded mark position,
// shifting later events down by one slot.
func (p *parser) reopenAt(m mark, kind NodeKind) {
	if int(m) > p.limits.MaxParserEvents {
		return
	}
	idx := int(m)
	if idx > len(p.events) {
		idx = len(p.events)
	}
	p.events = append(p.events, Event{})
	copy(p.events[idx+1:], p.events[idx:])
	p.events[idx] = Event{Kind: EventOpen, Data: uint32(kind)}
}
