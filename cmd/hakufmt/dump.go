package main

import (
	"fmt"
	"strings"

	"github.com/liquidev/rakugaki/internal/haku/ast"
	"github.com/liquidev/rakugaki/internal/haku/token"
)

func dumpTokens(tokens []token.Token) string {
	var b strings.Builder
	for _, t := range tokens {
		fmt.Fprintf(&b, "%-12s %4d..%-4d %q\n", t.Kind, t.Span.Start, t.Span.End, t.Text)
	}
	return b.String()
}

func dumpAST(e *ast.Expr) string {
	var b strings.Builder
	dumpExpr(&b, e, 0)
	return b.String()
}

func dumpExpr(b *strings.Builder, e *ast.Expr, depth int) {
	if e == nil {
		return
	}
	indent := strings.Repeat("  ", depth)
	switch e.Kind {
	case ast.Number:
		fmt.Fprintf(b, "%snumber %g\n", indent, e.NumberValue)
	case ast.ColorLit:
		fmt.Fprintf(b, "%scolor %v\n", indent, e.ColorValue)
	case ast.VecLit:
		fmt.Fprintf(b, "%svec %v\n", indent, e.VecValues)
	case ast.Ident:
		fmt.Fprintf(b, "%sident %s\n", indent, e.Name)
	case ast.Tag:
		fmt.Fprintf(b, "%stag %v\n", indent, e.TagValue)
	case ast.Lambda:
		fmt.Fprintf(b, "%slambda\n", indent)
		for _, p := range e.Params {
			fmt.Fprintf(b, "%s  param %s\n", indent, p.Name)
		}
		dumpExpr(b, e.Body, depth+1)
	case ast.App:
		fmt.Fprintf(b, "%sapp\n", indent)
		dumpExpr(b, e.Func, depth+1)
		for _, a := range e.Args {
			dumpExpr(b, a, depth+1)
		}
	case ast.List:
		fmt.Fprintf(b, "%slist\n", indent)
		for _, it := range e.Items {
			dumpExpr(b, it, depth+1)
		}
	case ast.If:
		fmt.Fprintf(b, "%sif\n", indent)
		dumpExpr(b, e.Cond, depth+1)
		dumpExpr(b, e.Then, depth+1)
		dumpExpr(b, e.Else, depth+1)
	case ast.DefGroup:
		fmt.Fprintf(b, "%sdefgroup\n", indent)
		for _, d := range e.Defs {
			fmt.Fprintf(b, "%s  def %s\n", indent, d.Name)
			dumpExpr(b, d.Value, depth+2)
		}
		dumpExpr(b, e.Rest, depth+1)
	default:
		fmt.Fprintf(b, "%s<unknown kind %d>\n", indent, e.Kind)
	}
}
