package compiler_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/liquidev/rakugaki/internal/haku/compiler"
	"github.com/liquidev/rakugaki/internal/haku/parser"
	"github.com/liquidev/rakugaki/internal/haku/value"
	"github.com/liquidev/rakugaki/internal/haku/vm"
)

// compileAndRun lexes, parses, compiles and executes src end to end,
// returning the top-level expression's result.
func compileAndRun(t *testing.T, src string) (value.Value, *value.Exception) {
	t.Helper()
	tree := parser.Parse(src, parser.DefaultLimits)
	require.Empty(t, tree.Errors, "parse errors for %q", src)

	root, buildErrs := tree.Build(parser.DefaultLimits)
	require.Empty(t, buildErrs, "build errors for %q", src)

	result, diags := compiler.Compile(root, compiler.DefaultLimits)
	require.Empty(t, diags, "compile diagnostics for %q", src)

	m := vm.New(vm.DefaultLimits)
	return m.Run(result.Main, nil, &vm.Defs{Chunks: result.DefChunks})
}

func TestCompileArithmetic(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want float64
	}{
		{"addition", "1 + 2", 3},
		{"precedence", "1 + 2 * 3", 7},
		{"subtraction lowers to sub", "10 - 4", 6},
		{"division", "9 / 3", 3},
		{"comparison true", "2 < 3", 1}, // checked separately below
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, exc := compileAndRun(t, tt.src)
			require.Nil(t, exc)
			if tt.name == "comparison true" {
				require.Equal(t, value.Bool, result.Kind)
				require.True(t, result.Bool)
				return
			}
			require.Equal(t, value.Number, result.Kind)
			if diff := cmp.Diff(tt.want, result.Num); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompileIf(t *testing.T) {
	result, exc := compileAndRun(t, "if (1 < 2) 10 else 20")
	require.Nil(t, exc)
	require.Equal(t, value.Number, result.Kind)
	require.Equal(t, 10.0, result.Num)
}

func TestCompileLambdaApplication(t *testing.T) {
	result, exc := compileAndRun(t, `(\x -> x + 1) 41`)
	require.Nil(t, exc)
	require.Equal(t, value.Number, result.Kind)
	require.Equal(t, 42.0, result.Num)
}

func TestCompileTopLevelDefDirectCall(t *testing.T) {
	// A zero-parameter top-level def should compile to OpCallDef, never
	// allocating a closure on the heap.
	result, exc := compileAndRun(t, "answer = 42\nanswer")
	require.Nil(t, exc)
	require.Equal(t, 42.0, result.Num)
}

func TestCompileRecursiveDefTailCalls(t *testing.T) {
	// Deep tail recursion through a top-level def must not overflow the
	// call stack, since OpTailCallDef reuses the current frame.
	src := "count = \\n -> if (n < 1) 0 else count (n - 1)\ncount 1000"
	result, exc := compileAndRun(t, src)
	require.Nil(t, exc)
	require.Equal(t, value.Number, result.Kind)
	require.Equal(t, 0.0, result.Num)
}

func TestCompileNonTailRecursionBoundedByCallStack(t *testing.T) {
	// Non-tail recursion (the recursive call isn't in tail position, since
	// its result feeds "add") consumes call-stack depth per spec.md §4.C
	// ("non-tail recursion remains possible up to call_stack_capacity").
	src := "sum = \\n -> if (n < 1) 0 else n + sum (n - 1)\nsum 100000"
	_, exc := compileAndRun(t, src)
	require.NotNil(t, exc)
	require.Equal(t, value.TooMuchRecursion, exc.Kind)
}

func TestCompileUndefinedNameIsDiagnostic(t *testing.T) {
	tree := parser.Parse("doesNotExist", parser.DefaultLimits)
	require.Empty(t, tree.Errors)
	root, buildErrs := tree.Build(parser.DefaultLimits)
	require.Empty(t, buildErrs)

	_, diags := compiler.Compile(root, compiler.DefaultLimits)
	require.Len(t, diags, 1)
	require.Contains(t, diags[0].Message, "undefined name")
}

func TestCompileClosureCapturesOuterLocal(t *testing.T) {
	// The inner lambda captures the outer lambda's parameter x as an upvalue.
	src := `(\x -> (\y -> x + y) 5) 10`
	result, exc := compileAndRun(t, src)
	require.Nil(t, exc)
	require.Equal(t, 15.0, result.Num)
}

func TestCompileIntrinsicStrokeProducesRef(t *testing.T) {
	result, exc := compileAndRun(t, "stroke 2 (rgba 1 0 0) (circle 0 0 5)")
	require.Nil(t, exc)
	require.Equal(t, value.Ref, result.Kind)
}

func TestCompileDivisionByZero(t *testing.T) {
	_, exc := compileAndRun(t, "1 / 0")
	require.NotNil(t, exc)
	require.Equal(t, value.DivisionByZero, exc.Kind)
}
