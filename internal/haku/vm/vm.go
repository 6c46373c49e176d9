// Package vm executes compiled haku bytecode: a fuel-metered stack machine
// with a bounded operand stack, call stack, and ref heap (spec.md §4.D).
package vm

import (
	"github.com/liquidev/rakugaki/internal/haku/bytecode"
	"github.com/liquidev/rakugaki/internal/haku/intrinsics"
	"github.com/liquidev/rakugaki/internal/haku/value"
)

// Limits bounds a single VM run, named directly after the haku limits
// table's fields (spec.md §6).
type Limits struct {
	StackCapacity     int
	CallStackCapacity int
	RefCapacity       int
	Fuel              int
	Memory            int
}

var DefaultLimits = Limits{
	StackCapacity:     1024,
	CallStackCapacity: 256,
	RefCapacity:       4096,
	Fuel:              65536,
	Memory:            1 << 20,
}

// Defs resolves a def-table index to its compiled chunk, for OpCallDef and
// OpMakeClosure of def references produced by the compiler.
type Defs struct {
	Chunks []*bytecode.Chunk
}

// frame is one activation record on the call stack.
type frame struct {
	chunk    *bytecode.Chunk
	ip       int
	base     int // index into the VM's operand stack of this frame's slot 0
	upvalues []value.Upvalue
}

// VM executes one compiled brush to completion. It never suspends: Run
// either returns a Value, returns an Exception, or is interrupted by fuel
// exhaustion - there is no partial/resumable state (spec.md §5,
// "the haku VM is single-threaded and never suspends").
type VM struct {
	limits Limits
	heap   *value.Heap

	stack []value.Value
	calls []frame
	fuel  int
}

// New creates a VM with its own heap sized to limits.Memory.
func New(limits Limits) *VM {
	return &VM{
		limits: limits,
		heap:   value.NewHeap(limits.Memory),
		stack:  make([]value.Value, 0, limits.StackCapacity),
	}
}

// Heap exposes the VM's ref heap, e.g. for the rasterizer to resolve a
// result Scribble's nested refs.
func (m *VM) Heap() *value.Heap { return m.heap }

// Reset wholesale-clears the VM's heap and stacks between independent runs
// (spec.md: "deallocation is wholesale on VM reset").
func (m *VM) Reset() {
	m.heap.Reset()
	m.stack = m.stack[:0]
	m.calls = m.calls[:0]
}

func (m *VM) push(v value.Value) *value.Exception {
	if len(m.stack) >= m.limits.StackCapacity {
		return value.NewException(value.StackOverflow, "operand stack exhausted")
	}
	m.stack = append(m.stack, v)
	return nil
}

func (m *VM) pop() value.Value {
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v
}

func (m *VM) consumeFuel(n int) *value.Exception {
	m.fuel -= n
	if m.fuel <= 0 {
		return value.NewException(value.OutOfFuel, "fuel exhausted")
	}
	return nil
}

// Run executes chunk with args bound as its initial locals, against the
// def table defs for OpCallDef/OpTailCallDef/def-valued OpMakeClosure
// targets. It returns a single Value, or an Exception raised by a type
// error, resource exhaustion, or explicit failure.
func (m *VM) Run(chunk *bytecode.Chunk, args []value.Value, defs *Defs) (value.Value, *value.Exception) {
	m.fuel = m.limits.Fuel
	m.stack = m.stack[:0]
	m.calls = m.calls[:0]

	base := len(m.stack)
	for _, a := range args {
		if exc := m.push(a); exc != nil {
			return value.Value{}, exc
		}
	}
	m.calls = append(m.calls, frame{chunk: chunk, base: base})

	return m.loop(defs)
}

// loop is the main fetch-decode-execute cycle. It runs until the call stack
// empties (the outermost frame returns) or an exception is raised.
func (m *VM) loop(defs *Defs) (value.Value, *value.Exception) {
	for {
		if len(m.calls) == 0 {
			// Shouldn't happen: the outermost OpReturn exits via the
			// explicit return below. Defensive only.
			return value.Value{}, value.NewException(value.Panic, "call stack underflow")
		}
		fr := &m.calls[len(m.calls)-1]
		code := fr.chunk.Code

		if exc := m.consumeFuel(1); exc != nil {
			return value.Value{}, exc
		}

		if fr.ip >= len(code) {
			return value.Value{}, value.NewException(value.Panic, "instruction pointer ran off chunk")
		}

		op := bytecode.Op(code[fr.ip])
		fr.ip++

		switch op {
		case bytecode.OpConst:
			idx := bytecode.ReadU16(code, fr.ip)
			fr.ip += 2
			v, exc := m.loadConst(fr.chunk, idx)
			if exc != nil {
				return value.Value{}, exc
			}
			if exc := m.push(v); exc != nil {
				return value.Value{}, exc
			}

		case bytecode.OpLocal:
			slot := int(code[fr.ip])
			fr.ip++
			if fr.base+slot >= len(m.stack) {
				return value.Value{}, value.NewException(value.Panic, "local slot out of range")
			}
			if exc := m.push(m.stack[fr.base+slot]); exc != nil {
				return value.Value{}, exc
			}

		case bytecode.OpUpvalue:
			idx := int(code[fr.ip])
			fr.ip++
			if idx >= len(fr.upvalues) {
				return value.Value{}, value.NewException(value.Panic, "upvalue index out of range")
			}
			if exc := m.push(fr.upvalues[idx].Value); exc != nil {
				return value.Value{}, exc
			}

		case bytecode.OpPop:
			m.pop()

		case bytecode.OpJump:
			target := bytecode.ReadU16(code, fr.ip)
			fr.ip = int(target)

		case bytecode.OpJumpIfFalse:
			target := bytecode.ReadU16(code, fr.ip)
			fr.ip += 2
			cond := m.pop()
			if !cond.IsTruthy() {
				fr.ip = int(target)
			}

		case bytecode.OpMakeList:
			n := int(bytecode.ReadU16(code, fr.ip))
			fr.ip += 2
			if exc := m.consumeFuel(n); exc != nil {
				return value.Value{}, exc
			}
			if len(m.stack) < n {
				return value.Value{}, value.NewException(value.Panic, "operand stack underflow building list")
			}
			items := make([]value.Value, n)
			copy(items, m.stack[len(m.stack)-n:])
			m.stack = m.stack[:len(m.stack)-n]
			idx, ok := m.heap.Alloc(value.Obj{Kind: value.ObjList, List: items, Size: value.ListSize(n)})
			if !ok {
				return value.Value{}, value.NewException(value.OutOfMemory, "list allocation exceeded memory budget")
			}
			if exc := m.push(value.RefValue(idx)); exc != nil {
				return value.Value{}, exc
			}

		case bytecode.OpMakeClosure:
			v, exc := m.execMakeClosure(fr, code)
			if exc != nil {
				return value.Value{}, exc
			}
			if exc := m.push(v); exc != nil {
				return value.Value{}, exc
			}

		case bytecode.OpSysCall:
			id := bytecode.ReadU16(code, fr.ip)
			fr.ip += 2
			argc := int(code[fr.ip])
			fr.ip++
			if len(m.stack) < argc {
				return value.Value{}, value.NewException(value.Panic, "operand stack underflow calling intrinsic")
			}
			args := append([]value.Value(nil), m.stack[len(m.stack)-argc:]...)
			m.stack = m.stack[:len(m.stack)-argc]
			result, exc := intrinsics.Global.Call(id, args, m.heap)
			if exc != nil {
				return value.Value{}, exc
			}
			if exc := m.consumeFuel(1); exc != nil {
				return value.Value{}, exc
			}
			if exc := m.push(result); exc != nil {
				return value.Value{}, exc
			}

		case bytecode.OpCallDef, bytecode.OpTailCallDef:
			defIdx := int(bytecode.ReadU16(code, fr.ip))
			fr.ip += 2
			argc := int(code[fr.ip])
			fr.ip++
			if defs == nil || defIdx >= len(defs.Chunks) {
				return value.Value{}, value.NewException(value.Panic, "undefined def index")
			}
			callee := defs.Chunks[defIdx]
			if exc := m.enterCall(callee, nil, argc, op == bytecode.OpTailCallDef); exc != nil {
				return value.Value{}, exc
			}

		case bytecode.OpCall, bytecode.OpTailCall:
			argc := int(code[fr.ip])
			fr.ip++
			if len(m.stack) < argc+1 {
				return value.Value{}, value.NewException(value.Panic, "operand stack underflow calling closure")
			}
			calleeVal := m.stack[len(m.stack)-argc-1]
			if calleeVal.Kind != value.Ref {
				return value.Value{}, value.NewException(value.TypeMismatch, "cannot call a "+calleeVal.TypeName())
			}
			obj := m.heap.Get(calleeVal.RefIndex)
			if obj.Kind != value.ObjClosure {
				return value.Value{}, value.NewException(value.TypeMismatch, "cannot call a "+calleeVal.TypeName())
			}
			closure := obj.Closure
			if closure.Chunk.NumLocals != argc {
				return value.Value{}, value.NewException(value.ArityMismatch, "closure expects a different number of arguments")
			}
			// Drop the callee from under the args before entering the call.
			copy(m.stack[len(m.stack)-argc-1:], m.stack[len(m.stack)-argc:])
			m.stack = m.stack[:len(m.stack)-1]
			if exc := m.enterCall(closure.Chunk, closure.Upvalues, argc, op == bytecode.OpTailCall); exc != nil {
				return value.Value{}, exc
			}

		case bytecode.OpReturn:
			result := m.pop()
			m.stack = m.stack[:fr.base]
			m.calls = m.calls[:len(m.calls)-1]
			if len(m.calls) == 0 {
				return result, nil
			}
			if exc := m.push(result); exc != nil {
				return value.Value{}, exc
			}

		case bytecode.OpHalt:
			if len(m.stack) == 0 {
				return value.NilValue(), nil
			}
			return m.pop(), nil

		default:
			return value.Value{}, value.NewException(value.Panic, "unknown opcode")
		}
	}
}

func (m *VM) loadConst(chunk *bytecode.Chunk, idx uint16) (value.Value, *value.Exception) {
	if int(idx) >= len(chunk.Constants) {
		return value.Value{}, value.NewException(value.Panic, "constant index out of range")
	}
	c := chunk.Constants[idx]
	switch c.Kind {
	case bytecode.ConstNumber:
		return value.NumberValue(c.Number), nil
	case bytecode.ConstColor:
		return value.RGBAValue(c.Color), nil
	case bytecode.ConstBool:
		return value.BoolValue(c.Bool), nil
	case bytecode.ConstChunk:
		// The compiler builds closures with OpMakeClosure and never emits
		// OpConst for a chunk constant; if one is reached anyway, build it
		// as a closure with no captures.
		return m.makeClosureValue(c.Chunk, nil)
	default:
		return value.Value{}, value.NewException(value.Panic, "unknown constant kind")
	}
}

// execMakeClosure decodes and executes one OpMakeClosure instruction,
// resolving its capture list against the current frame.
func (m *VM) execMakeClosure(fr *frame, code []byte) (value.Value, *value.Exception) {
	constIdx := bytecode.ReadU16(code, fr.ip)
	fr.ip += 2
	numCaptures := int(code[fr.ip])
	fr.ip++

	ups := make([]value.Upvalue, numCaptures)
	for i := 0; i < numCaptures; i++ {
		fromUpvalue := code[fr.ip] == 1
		idx := int(code[fr.ip+1])
		fr.ip += 2
		if fromUpvalue {
			if idx >= len(fr.upvalues) {
				return value.Value{}, value.NewException(value.Panic, "upvalue capture index out of range")
			}
			ups[i] = fr.upvalues[idx]
		} else {
			if fr.base+idx >= len(m.stack) {
				return value.Value{}, value.NewException(value.Panic, "local capture index out of range")
			}
			ups[i] = value.Upvalue{Value: m.stack[fr.base+idx]}
		}
	}

	if int(constIdx) >= len(fr.chunk.Constants) {
		return value.Value{}, value.NewException(value.Panic, "constant index out of range")
	}
	c := fr.chunk.Constants[constIdx]
	if c.Kind != bytecode.ConstChunk {
		return value.Value{}, value.NewException(value.Panic, "OpMakeClosure constant is not a chunk")
	}
	return m.makeClosureValue(c.Chunk, ups)
}

func (m *VM) makeClosureValue(chunk *bytecode.Chunk, ups []value.Upvalue) (value.Value, *value.Exception) {
	idx, ok := m.heap.Alloc(value.Obj{
		Kind:    value.ObjClosure,
		Closure: &value.Closure{Chunk: chunk, Upvalues: ups},
		Size:    value.ClosureSize(len(ups)),
	})
	if !ok {
		return value.Value{}, value.NewException(value.OutOfMemory, "closure allocation exceeded memory budget")
	}
	return value.RefValue(idx), nil
}

// enterCall pushes a new activation frame for callee, taking its argc
// arguments from the top of the operand stack as the new frame's locals.
// If tail is true, the current frame is replaced instead of growing the
// call stack, whichever chunk callee is (spec.md §4.C: "must use the tail-call opcode to bound call-stack
// depth for simple recursion").
func (m *VM) enterCall(callee *bytecode.Chunk, upvalues []value.Upvalue, argc int, tail bool) *value.Exception {
	if callee.NumLocals != argc {
		return value.NewException(value.ArityMismatch, "wrong number of arguments")
	}
	newBase := len(m.stack) - argc

	if tail {
		cur := &m.calls[len(m.calls)-1]
		// Slide the new frame's arguments down to the current frame's base,
		// discarding the caller's own locals, then reuse the frame slot.
		copy(m.stack[cur.base:cur.base+argc], m.stack[newBase:newBase+argc])
		m.stack = m.stack[:cur.base+argc]
		*cur = frame{chunk: callee, base: cur.base, upvalues: upvalues}
		return nil
	}

	if len(m.calls) >= m.limits.CallStackCapacity {
		return value.NewException(value.TooMuchRecursion, "call stack exceeded call_stack_capacity")
	}
	m.calls = append(m.calls, frame{chunk: callee, base: newBase, upvalues: upvalues})
	return nil
}
