package parser

import (
	"github.com/liquidev/rakugaki/internal/haku/ast"
	"github.com/liquidev/rakugaki/internal/haku/token"
)

// builder replays an Event stream into an *ast.Expr tree, refusing to
// allocate more than ASTCapacity nodes so a crafted event stream (or a
// pathological brush) cannot grow the AST without bound even though the
// event stream itself is already capped.
type builder struct {
	tokens    []token.Token
	events    []Event
	pos       int
	cap       int
	nodeCount int
	errors    []ParseError
}

// Build materializes t's event stream into an AST. It returns the program's
// final expression with any top-level defs folded into a DefGroup node, and
// any capacity-exceeded diagnostics appended to the returned slice (which
// already contains t.Errors).
func (t *Tree) Build(limits Limits) (*ast.Expr, []ParseError) {
	b := &builder{tokens: t.Tokens, events: t.Events, cap: limits.ASTCapacity}
	errs := append([]ParseError{}, t.Errors...)

	if !b.expectOpen(NodeProgram) {
		return nil, append(errs, b.errors...)
	}

	var defs []ast.Def
	for b.peekIsOpen(NodeDef) {
		d, ok := b.buildDef()
		if ok {
			defs = append(defs, d)
		}
	}

	var rest *ast.Expr
	if !b.peekIsClose(NodeProgram) {
		rest = b.buildExpr()
	}
	b.expectClose(NodeProgram)

	errs = append(errs, b.errors...)
	if rest == nil {
		return nil, errs
	}
	if len(defs) == 0 {
		return rest, errs
	}
	return &ast.Expr{Kind: ast.DefGroup, Span: rest.Span, Defs: defs, Rest: rest}, errs
}

func (b *builder) newNode(kind ast.Kind, span token.Span) *ast.Expr {
	b.nodeCount++
	if b.nodeCount > b.cap {
		b.errors = append(b.errors, ParseError{Span: span, Message: "AST exceeds node capacity"})
	}
	return &ast.Expr{Kind: kind, Span: span}
}

func (b *builder) peek() (Event, bool) {
	if b.pos >= len(b.events) {
		return Event{}, false
	}
	return b.events[b.pos], true
}

func (b *builder) peekIsOpen(kind NodeKind) bool {
	ev, ok := b.peek()
	return ok && ev.Kind == EventOpen && NodeKind(ev.Data) == kind
}

func (b *builder) peekIsClose(kind NodeKind) bool {
	ev, ok := b.peek()
	return ok && ev.Kind == EventClose && NodeKind(ev.Data) == kind
}

func (b *builder) expectOpen(kind NodeKind) bool {
	ev, ok := b.peek()
	if !ok || ev.Kind != EventOpen || NodeKind(ev.Data) != kind {
		return false
	}
	b.pos++
	return true
}

func (b *builder) expectClose(kind NodeKind) bool {
	ev, ok := b.peek()
	if !ok || ev.Kind != EventClose || NodeKind(ev.Data) != kind {
		return false
	}
	b.pos++
	return true
}

// takeToken consumes the current event if it is an EventToken, returning
// the underlying token. It is a no-op (returning ok=false) otherwise, since
// error recovery can omit optional tokens (e.g. a missing `->`).
func (b *builder) takeToken() (token.Token, bool) {
	ev, ok := b.peek()
	if !ok || ev.Kind != EventToken {
		return token.Token{}, false
	}
	b.pos++
	idx := int(ev.Data)
	if idx < 0 || idx >= len(b.tokens) {
		return token.Token{}, false
	}
	return b.tokens[idx], true
}

// takeTokenKind consumes the current token only if it has the given kind.
func (b *builder) takeTokenKind(kind token.Kind) (token.Token, bool) {
	ev, ok := b.peek()
	if !ok || ev.Kind != EventToken {
		return token.Token{}, false
	}
	idx := int(ev.Data)
	if idx < 0 || idx >= len(b.tokens) || b.tokens[idx].Kind != kind {
		return token.Token{}, false
	}
	b.pos++
	return b.tokens[idx], true
}

func (b *builder) buildDef() (ast.Def, bool) {
	if !b.expectOpen(NodeDef) {
		return ast.Def{}, false
	}
	nameTok, ok := b.takeToken()
	b.takeTokenKind(token.Equals)
	value := b.buildExpr()
	b.expectClose(NodeDef)
	if !ok || value == nil {
		return ast.Def{}, false
	}
	return ast.Def{Name: nameTok.Text, Value: value, Span: token.Join(nameTok.Span, value.Span)}, true
}

// buildExpr dispatches on the next open event's NodeKind. It assumes the
// caller has already verified an EventOpen is next (all parser productions
// that call into an expression position are guaranteed to emit one).
func (b *builder) buildExpr() *ast.Expr {
	ev, ok := b.peek()
	if !ok || ev.Kind != EventOpen {
		return nil
	}
	switch NodeKind(ev.Data) {
	case NodeNumber:
		return b.buildLeaf(NodeNumber, ast.Number)
	case NodeColor:
		return b.buildLeaf(NodeColor, ast.ColorLit)
	case NodeTag:
		return b.buildLeaf(NodeTag, ast.Tag)
	case NodeIdent:
		return b.buildLeaf(NodeIdent, ast.Ident)
	case NodeParen:
		return b.buildParen()
	case NodeList:
		return b.buildList()
	case NodeLambda:
		return b.buildLambda()
	case NodeIf:
		return b.buildIf()
	case NodeBinary:
		return b.buildBinary()
	case NodeApp:
		return b.buildApp()
	default:
		return nil
	}
}

func (b *builder) buildLeaf(kind NodeKind, exprKind ast.Kind) *ast.Expr {
	b.expectOpen(kind)
	tok, _ := b.takeToken()
	b.expectClose(kind)
	n := b.newNode(exprKind, tok.Span)
	switch exprKind {
	case ast.Number:
		n.NumberValue = tok.Num
	case ast.ColorLit:
		n.ColorValue = tok.Color
	case ast.Tag:
		n.TagValue = tok.Kind == token.True
	case ast.Ident:
		n.Name = tok.Text
	}
	return n
}

func (b *builder) buildParen() *ast.Expr {
	b.expectOpen(NodeParen)
	b.takeTokenKind(token.LParen)
	inner := b.buildExpr()
	b.takeTokenKind(token.RParen)
	b.expectClose(NodeParen)
	return inner
}

func (b *builder) buildList() *ast.Expr {
	b.expectOpen(NodeList)
	b.takeTokenKind(token.LSquare)
	var items []*ast.Expr
	for !b.peekIsClose(NodeList) {
		e := b.buildExpr()
		if e == nil {
			break
		}
		items = append(items, e)
	}
	b.takeTokenKind(token.RSquare)
	b.expectClose(NodeList)
	span := token.Span{}
	if len(items) > 0 {
		span = token.Join(items[0].Span, items[len(items)-1].Span)
	}
	n := b.newNode(ast.List, span)
	n.Items = items
	return n
}

func (b *builder) buildLambda() *ast.Expr {
	b.expectOpen(NodeLambda)
	bs, _ := b.takeTokenKind(token.Backslash)
	b.expectOpen(NodeParamList)
	var params []ast.Param
	for {
		tok, ok := b.takeTokenKind(token.Ident)
		if !ok {
			break
		}
		params = append(params, ast.Param{Name: tok.Text, Span: tok.Span})
		if _, ok := b.takeTokenKind(token.Comma); !ok {
			break
		}
	}
	b.expectClose(NodeParamList)
	b.takeTokenKind(token.Arrow)
	body := b.buildExpr()
	b.expectClose(NodeLambda)
	span := bs.Span
	if body != nil {
		span = token.Join(bs.Span, body.Span)
	}
	n := b.newNode(ast.Lambda, span)
	n.Params = params
	n.Body = body
	return n
}

func (b *builder) buildIf() *ast.Expr {
	b.expectOpen(NodeIf)
	ifTok, _ := b.takeTokenKind(token.If)
	cond := b.buildExpr()
	then := b.buildExpr()
	b.takeTokenKind(token.Else)
	elseExpr := b.buildExpr()
	b.expectClose(NodeIf)
	n := b.newNode(ast.If, ifTok.Span)
	n.Cond, n.Then, n.Else = cond, then, elseExpr
	return n
}

func (b *builder) buildBinary() *ast.Expr {
	b.expectOpen(NodeBinary)
	left := b.buildExpr()
	opTok, _ := b.takeToken()
	right := b.buildExpr()
	b.expectClose(NodeBinary)
	if left == nil || right == nil {
		return left
	}
	name, ok := binOpIntrinsic[opTok.Kind]
	if !ok {
		name = "add"
	}
	fn := b.newNode(ast.Ident, opTok.Span)
	fn.Name = name
	n := b.newNode(ast.App, token.Join(left.Span, right.Span))
	n.Func = fn
	n.Args = []*ast.Expr{left, right}
	return n
}

func (b *builder) buildApp() *ast.Expr {
	b.expectOpen(NodeApp)
	fn := b.buildExpr()
	var args []*ast.Expr
	for !b.peekIsClose(NodeApp) {
		a := b.buildExpr()
		if a == nil {
			break
		}
		args = append(args, a)
	}
	b.expectClose(NodeApp)
	if fn == nil {
		return nil
	}
	span := fn.Span
	if len(args) > 0 {
		span = token.Join(fn.Span, args[len(args)-1].Span)
	}
	n := b.newNode(ast.App, span)
	n.Func = fn
	n.Args = args
	return n
}
