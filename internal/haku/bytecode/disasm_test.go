package bytecode_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/liquidev/rakugaki/internal/haku/bytecode"
)

func TestDisassembleRendersConstAndReturn(t *testing.T) {
	c := &bytecode.Chunk{}
	idx, ok := c.AddConst(bytecode.Const{Kind: bytecode.ConstNumber, Number: 42})
	require.True(t, ok)
	require.True(t, c.EmitOpU16(bytecode.OpConst, idx))
	require.True(t, c.EmitOp(bytecode.OpReturn))

	out := bytecode.Disassemble(c)
	require.Contains(t, out, "const")
	require.Contains(t, out, "return")
}

func TestDisassembleRecursesIntoNestedChunks(t *testing.T) {
	inner := &bytecode.Chunk{Name: "lambda"}
	inner.EmitOp(bytecode.OpReturn)

	outer := &bytecode.Chunk{}
	idx, ok := outer.AddConst(bytecode.Const{Kind: bytecode.ConstChunk, Chunk: inner})
	require.True(t, ok)
	require.True(t, outer.EmitMakeClosure(idx, nil))

	out := bytecode.Disassemble(outer)
	require.Contains(t, out, "makeclosure")
	require.Contains(t, out, "lambda")
}
