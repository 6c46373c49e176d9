package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/liquidev/rakugaki/internal/haku/ast"
)

// TestParseEventStream asserts the raw Event stream for a handful of small
// programs, the same way the underlying event/build split is tested
// upstream: each open/close/token is listed explicitly so a change to
// parseApp/parseBinary/parseIf's shape shows up as an obvious diff instead
// of an opaque end-to-end failure.
func TestParseEventStream(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		events []Event
	}{
		{
			name: "number literal",
			src:  "1",
			events: []Event{
				{EventOpen, uint32(NodeProgram)},
				{EventOpen, uint32(NodeNumber)},
				{EventToken, 0},
				{EventClose, uint32(NodeNumber)},
				{EventClose, uint32(NodeProgram)},
			},
		},
		{
			name: "juxtaposition application",
			src:  "f x",
			events: []Event{
				{EventOpen, uint32(NodeProgram)},
				{EventOpen, uint32(NodeApp)},
				{EventOpen, uint32(NodeIdent)},
				{EventToken, 0}, // f
				{EventClose, uint32(NodeIdent)},
				{EventOpen, uint32(NodeIdent)},
				{EventToken, 1}, // x
				{EventClose, uint32(NodeIdent)},
				{EventClose, uint32(NodeApp)},
				{EventClose, uint32(NodeProgram)},
			},
		},
		{
			name: "list literal",
			src:  "[1 2]",
			events: []Event{
				{EventOpen, uint32(NodeProgram)},
				{EventOpen, uint32(NodeList)},
				{EventToken, 0}, // [
				{EventOpen, uint32(NodeNumber)},
				{EventToken, 1}, // 1
				{EventClose, uint32(NodeNumber)},
				{EventOpen, uint32(NodeNumber)},
				{EventToken, 2}, // 2
				{EventClose, uint32(NodeNumber)},
				{EventToken, 3}, // ]
				{EventClose, uint32(NodeList)},
				{EventClose, uint32(NodeProgram)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := Parse(tt.src, DefaultLimits)
			require.Empty(t, tree.Errors, "parse errors for %q: %v", tt.src, tree.Errors)
			if diff := cmp.Diff(tt.events, tree.Events); diff != "" {
				t.Errorf("event stream mismatch for %q (-want +got):\n%s", tt.src, diff)
			}
		})
	}
}

// buildAST parses and builds src, failing the test if either stage reports
// diagnostics.
func buildAST(t *testing.T, src string) *ast.Expr {
	t.Helper()
	tree := Parse(src, DefaultLimits)
	require.Empty(t, tree.Errors, "parse errors for %q: %v", src, tree.Errors)
	root, errs := tree.Build(DefaultLimits)
	require.Empty(t, errs, "build errors for %q: %v", src, errs)
	return root
}

// render flattens an *ast.Expr into a compact s-expression so table tests
// can assert tree shape without hand-writing every Span.
func render(e *ast.Expr) string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case ast.Number:
		return fmt.Sprintf("%g", e.NumberValue)
	case ast.ColorLit:
		return fmt.Sprintf("%v", e.ColorValue)
	case ast.Ident:
		return e.Name
	case ast.Tag:
		if e.TagValue {
			return "true"
		}
		return "false"
	case ast.Lambda:
		names := make([]string, len(e.Params))
		for i, p := range e.Params {
			names[i] = p.Name
		}
		return fmt.Sprintf("(lambda (%s) %s)", strings.Join(names, " "), render(e.Body))
	case ast.App:
		parts := make([]string, 0, len(e.Args)+1)
		parts = append(parts, render(e.Func))
		for _, a := range e.Args {
			parts = append(parts, render(a))
		}
		return "(" + strings.Join(parts, " ") + ")"
	case ast.List:
		parts := make([]string, len(e.Items))
		for i, it := range e.Items {
			parts[i] = render(it)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case ast.If:
		return fmt.Sprintf("(if %s %s %s)", render(e.Cond), render(e.Then), render(e.Else))
	case ast.DefGroup:
		defs := make([]string, len(e.Defs))
		for i, d := range e.Defs {
			defs[i] = fmt.Sprintf("(%s = %s)", d.Name, render(d.Value))
		}
		return fmt.Sprintf("(defs (%s) %s)", strings.Join(defs, " "), render(e.Rest))
	default:
		return "?"
	}
}

func TestParseIf(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "parenthesized condition, bare then/else",
			src:  "if (1 < 2) 10 else 20",
			want: "(if (lt 1 2) 10 20)",
		},
		{
			name: "list literal then/else, unparenthesized juxtaposition after",
			src:  "if (n > 0) [1] else []",
			want: "(if (gt n 0) [1] [])",
		},
		{
			name: "application as else branch",
			src:  "if (n < 1) 0 else count (n - 1)",
			want: "(if (lt n 1) 0 (count (sub n 1)))",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := render(buildAST(t, tt.src))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("AST mismatch for %q (-want +got):\n%s", tt.src, diff)
			}
		})
	}
}

// TestParseIfConditionDoesNotSwallowThenBranch guards against parseIf
// parsing its condition as a greedy app, which would fold the then branch's
// leading primary into the condition instead of leaving it for "then".
func TestParseIfConditionDoesNotSwallowThenBranch(t *testing.T) {
	root := buildAST(t, "if (1 < 2) 10 else 20")
	require.Equal(t, ast.If, root.Kind)
	require.NotNil(t, root.Then)
	require.Equal(t, ast.Number, root.Then.Kind)
	require.Equal(t, 10.0, root.Then.NumberValue)
	require.NotNil(t, root.Else)
	require.Equal(t, ast.Number, root.Else.Kind)
	require.Equal(t, 20.0, root.Else.NumberValue)
}

func TestParseLambda(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"no params", `\-> 1`, "(lambda () 1)"},
		{"one param", `\x -> x`, "(lambda (x) x)"},
		{"multiple params", `\x, y -> x + y`, "(lambda (x y) (add x y))"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := render(buildAST(t, tt.src))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("AST mismatch for %q (-want +got):\n%s", tt.src, diff)
			}
		})
	}
}

func TestParseJuxtapositionApplication(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"single argument", "f x", "(f x)"},
		{"multiple arguments", "f x y z", "(f x y z)"},
		{"nested application", "f (g x)", "(f (g x))"},
		{"no arguments stays a bare ident", "f", "f"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := render(buildAST(t, tt.src))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("AST mismatch for %q (-want +got):\n%s", tt.src, diff)
			}
		})
	}
}

func TestParseListLiteral(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"empty list", "[]", "[]"},
		{"numbers", "[1 2 3]", "[1 2 3]"},
		{"nested application inside a list", "[f x]", "[(f x)]"},
		{"if inside a list", "[if true 1 else 2]", "[(if true 1 2)]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := render(buildAST(t, tt.src))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("AST mismatch for %q (-want +got):\n%s", tt.src, diff)
			}
		})
	}
}
