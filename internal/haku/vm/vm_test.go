package vm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/liquidev/rakugaki/internal/haku/bytecode"
	"github.com/liquidev/rakugaki/internal/haku/value"
	"github.com/liquidev/rakugaki/internal/haku/vm"
)

func TestRunReturnsConstant(t *testing.T) {
	chunk := &bytecode.Chunk{Name: "main"}
	idx, ok := chunk.AddConst(bytecode.Const{Kind: bytecode.ConstNumber, Number: 7})
	require.True(t, ok)
	chunk.EmitOpU16(bytecode.OpConst, idx)
	chunk.EmitOp(bytecode.OpReturn)

	m := vm.New(vm.DefaultLimits)
	result, exc := m.Run(chunk, nil, nil)
	require.Nil(t, exc)
	require.Equal(t, value.Number, result.Kind)
	require.Equal(t, 7.0, result.Num)
}

func TestRunFuelExhaustionRaisesOutOfFuel(t *testing.T) {
	// A tight tail-recursive loop with no base case: count = \n -> count n.
	chunk := &bytecode.Chunk{Name: "count", NumLocals: 1}
	// local 0, tail-call def 0 with 1 arg, forever.
	chunk.EmitOpU8(bytecode.OpLocal, 0)
	chunk.EmitOpU16U8(bytecode.OpTailCallDef, 0, 1)
	chunk.EmitOp(bytecode.OpReturn)

	limits := vm.DefaultLimits
	limits.Fuel = 64

	m := vm.New(limits)
	args := []value.Value{value.NumberValue(1)}
	_, exc := m.Run(chunk, args, &vm.Defs{Chunks: []*bytecode.Chunk{chunk}})
	require.NotNil(t, exc)
	require.Equal(t, value.OutOfFuel, exc.Kind)
}

func TestRunCallStackCapacityRaisesTooMuchRecursion(t *testing.T) {
	// Non-tail self-call (OpCallDef, not OpTailCallDef) with no base case
	// must exhaust call_stack_capacity rather than fuel first.
	chunk := &bytecode.Chunk{Name: "loop", NumLocals: 1}
	chunk.EmitOpU8(bytecode.OpLocal, 0)
	chunk.EmitOpU16U8(bytecode.OpCallDef, 0, 1)
	chunk.EmitOp(bytecode.OpReturn)

	limits := vm.DefaultLimits
	limits.CallStackCapacity = 8
	limits.Fuel = 1 << 20

	m := vm.New(limits)
	_, exc := m.Run(chunk, []value.Value{value.NumberValue(1)}, &vm.Defs{Chunks: []*bytecode.Chunk{chunk}})
	require.NotNil(t, exc)
	require.Equal(t, value.TooMuchRecursion, exc.Kind)
}

func TestRunMemoryBudgetRaisesOutOfMemory(t *testing.T) {
	// Build a list of 1000 number constants; with a tiny memory budget this
	// must raise OutOfMemory rather than silently succeeding.
	chunk := &bytecode.Chunk{Name: "main"}
	idx, ok := chunk.AddConst(bytecode.Const{Kind: bytecode.ConstNumber, Number: 1})
	require.True(t, ok)
	const n = 1000
	for i := 0; i < n; i++ {
		chunk.EmitOpU16(bytecode.OpConst, idx)
	}
	chunk.EmitOpU16(bytecode.OpMakeList, n)
	chunk.EmitOp(bytecode.OpReturn)

	limits := vm.DefaultLimits
	limits.Memory = 64

	m := vm.New(limits)
	_, exc := m.Run(chunk, nil, nil)
	require.NotNil(t, exc)
	require.Equal(t, value.OutOfMemory, exc.Kind)
}

func TestRunOperandStackCapacityRaisesStackOverflow(t *testing.T) {
	chunk := &bytecode.Chunk{Name: "main"}
	idx, ok := chunk.AddConst(bytecode.Const{Kind: bytecode.ConstNumber, Number: 1})
	require.True(t, ok)
	for i := 0; i < 32; i++ {
		chunk.EmitOpU16(bytecode.OpConst, idx)
	}
	chunk.EmitOp(bytecode.OpReturn)

	limits := vm.DefaultLimits
	limits.StackCapacity = 8

	m := vm.New(limits)
	_, exc := m.Run(chunk, nil, nil)
	require.NotNil(t, exc)
	require.Equal(t, value.StackOverflow, exc.Kind)
}
