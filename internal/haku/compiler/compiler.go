// Package compiler lowers a haku AST into bytecode chunks plus a def
// table, resolving every identifier to a local slot, a captured upvalue, a
// top-level def, or a system intrinsic (spec.md §4.C).
package compiler

import (
	"github.com/liquidev/rakugaki/internal/haku/ast"
	"github.com/liquidev/rakugaki/internal/haku/bytecode"
	"github.com/liquidev/rakugaki/internal/haku/intrinsics"
	"github.com/liquidev/rakugaki/internal/haku/token"
)

// Diagnostic is a compile-time error carrying a source span, as required by
// spec.md §4.C: "compile errors carry source spans; a compile returning
// any diagnostic yields a diagnostics-emitted status; the brush is
// unusable."
type Diagnostic struct {
	Span    token.Span
	Message string
}

// Limits bounds the compiler's output.
type Limits struct {
	MaxDefs       int
	ChunkCapacity int
}

var DefaultLimits = Limits{MaxDefs: 256, ChunkCapacity: bytecode.MaxChunkBytes}

// Result is a fully compiled brush: the top-level body chunk plus the def
// table every OpCallDef/OpTailCallDef/OpMakeClosure instruction in it (and
// in def bodies) may reference.
type Result struct {
	Main      *bytecode.Chunk
	DefChunks []*bytecode.Chunk
	DefNames  []string
	DefIndex  map[string]int
}

type compiler struct {
	limits        Limits
	diags         []Diagnostic
	defIndex      map[string]int
	defParamCount []int
	defChunks     []*bytecode.Chunk
}

func (c *compiler) errorf(span token.Span, msg string) {
	c.diags = append(c.diags, Diagnostic{Span: span, Message: msg})
}

// upvalDesc is one entry of a funcCompiler's upvalue list: the name it was
// resolved under, and how to capture it from the enclosing frame.
type upvalDesc struct {
	Name string
	Cap  bytecode.Capture
}

// funcCompiler compiles exactly one Chunk: a def body, a lambda body, or
// the top-level brush body. Its locals are a flat list because haku has no
// reassignment - a slot, once resolved, always holds the same value for
// the lifetime of the frame.
type funcCompiler struct {
	parent   *funcCompiler
	chunk    *bytecode.Chunk
	locals   []string
	upvalues []upvalDesc
}

func (fc *funcCompiler) resolveLocal(name string) (int, bool) {
	for i := len(fc.locals) - 1; i >= 0; i-- {
		if fc.locals[i] == name {
			return i, true
		}
	}
	return 0, false
}

func (fc *funcCompiler) addUpvalue(name string, cap bytecode.Capture) int {
	for i, u := range fc.upvalues {
		if u.Name == name {
			return i
		}
	}
	fc.upvalues = append(fc.upvalues, upvalDesc{Name: name, Cap: cap})
	return len(fc.upvalues) - 1
}

func (fc *funcCompiler) resolveUpvalue(name string) (int, bool) {
	if fc.parent == nil {
		return 0, false
	}
	if slot, ok := fc.parent.resolveLocal(name); ok {
		return fc.addUpvalue(name, bytecode.Capture{FromUpvalue: false, Index: uint8(slot)}), true
	}
	if idx, ok := fc.parent.resolveUpvalue(name); ok {
		return fc.addUpvalue(name, bytecode.Capture{FromUpvalue: true, Index: uint8(idx)}), true
	}
	return 0, false
}

// Compile lowers root (the program's final expression, with any top-level
// defs already folded into an ast.DefGroup by parser.Tree.Build) into a
// Result, along with any diagnostics. A non-empty diagnostic list means the
// brush is unusable, per spec.md §4.C.
func Compile(root *ast.Expr, limits Limits) (*Result, []Diagnostic) {
	c := &compiler{limits: limits, defIndex: make(map[string]int)}

	var defs []ast.Def
	var rest *ast.Expr
	if root != nil && root.Kind == ast.DefGroup {
		defs, rest = root.Defs, root.Rest
	} else {
		rest = root
	}

	if len(defs) > limits.MaxDefs {
		c.errorf(token.Span{}, "brush defines too many top-level names")
		defs = defs[:limits.MaxDefs]
	}

	c.defChunks = make([]*bytecode.Chunk, len(defs))
	c.defParamCount = make([]int, len(defs))
	for i, d := range defs {
		if _, dup := c.defIndex[d.Name]; dup {
			c.errorf(d.Span, "duplicate top-level definition of \""+d.Name+"\"")
		}
		c.defIndex[d.Name] = i
		params := 0
		if d.Value != nil && d.Value.Kind == ast.Lambda {
			params = len(d.Value.Params)
		}
		c.defParamCount[i] = params
		c.defChunks[i] = &bytecode.Chunk{Name: d.Name}
	}

	for i, d := range defs {
		fc := &funcCompiler{chunk: c.defChunks[i]}
		body := d.Value
		if d.Value != nil && d.Value.Kind == ast.Lambda {
			for _, p := range d.Value.Params {
				fc.locals = append(fc.locals, p.Name)
			}
			fc.chunk.NumLocals = len(d.Value.Params)
			body = d.Value.Body
		}
		c.compileValue(fc, body, true)
		fc.chunk.EmitOp(bytecode.OpReturn)
		c.checkCapacity(fc.chunk)
	}

	main := &bytecode.Chunk{Name: ""}
	mfc := &funcCompiler{chunk: main}
	if rest == nil {
		c.errorf(token.Span{}, "brush has no final expression")
	} else {
		c.compileValue(mfc, rest, true)
	}
	main.EmitOp(bytecode.OpReturn)
	c.checkCapacity(main)

	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}

	return &Result{Main: main, DefChunks: c.defChunks, DefNames: names, DefIndex: c.defIndex}, c.diags
}

func (c *compiler) checkCapacity(chunk *bytecode.Chunk) {
	if len(chunk.Code) > c.limits.ChunkCapacity {
		c.errorf(token.Span{}, "compiled chunk exceeds chunk_capacity")
	}
}

// compileValue emits code that leaves exactly one value on the operand
// stack. isTail marks whether e's value is returned directly from the
// enclosing chunk without further computation, which matters only for
// calls (App): a tail call uses OpTailCall/OpTailCallDef so simple
// recursion doesn't grow the call stack (spec.md §4.C).
func (c *compiler) compileValue(fc *funcCompiler, e *ast.Expr, isTail bool) {
	if e == nil {
		c.pushPlaceholder(fc)
		return
	}
	switch e.Kind {
	case ast.Number:
		idx, ok := fc.chunk.AddConst(bytecode.Const{Kind: bytecode.ConstNumber, Number: e.NumberValue})
		if !ok {
			c.errorf(e.Span, "too many constants in chunk")
			return
		}
		fc.chunk.EmitOpU16(bytecode.OpConst, idx)
	case ast.ColorLit:
		idx, ok := fc.chunk.AddConst(bytecode.Const{Kind: bytecode.ConstColor, Color: e.ColorValue})
		if !ok {
			c.errorf(e.Span, "too many constants in chunk")
			return
		}
		fc.chunk.EmitOpU16(bytecode.OpConst, idx)
	case ast.Tag:
		idx, ok := fc.chunk.AddConst(bytecode.Const{Kind: bytecode.ConstBool, Bool: e.TagValue})
		if !ok {
			c.errorf(e.Span, "too many constants in chunk")
			return
		}
		fc.chunk.EmitOpU16(bytecode.OpConst, idx)
	case ast.Ident:
		c.compileIdentValue(fc, e.Name, e.Span)
	case ast.App:
		c.compileApp(fc, e, isTail)
	case ast.Lambda:
		c.compileLambda(fc, e)
	case ast.If:
		c.compileIf(fc, e, isTail)
	case ast.List:
		for _, item := range e.Items {
			c.compileValue(fc, item, false)
		}
		if len(e.Items) > 0xFFFF {
			c.errorf(e.Span, "list literal too large")
			return
		}
		fc.chunk.EmitOpU16(bytecode.OpMakeList, uint16(len(e.Items)))
	default:
		c.errorf(e.Span, "unsupported expression in this position")
		c.pushPlaceholder(fc)
	}
}

func (c *compiler) pushPlaceholder(fc *funcCompiler) {
	idx, ok := fc.chunk.AddConst(bytecode.Const{Kind: bytecode.ConstNumber, Number: 0})
	if ok {
		fc.chunk.EmitOpU16(bytecode.OpConst, idx)
	}
}

func (c *compiler) compileIdentValue(fc *funcCompiler, name string, span token.Span) {
	if slot, ok := fc.resolveLocal(name); ok {
		fc.chunk.EmitOpU8(bytecode.OpLocal, uint8(slot))
		return
	}
	if idx, ok := fc.resolveUpvalue(name); ok {
		fc.chunk.EmitOpU8(bytecode.OpUpvalue, uint8(idx))
		return
	}
	if defIdx, ok := c.defIndex[name]; ok {
		if c.defParamCount[defIdx] == 0 {
			fc.chunk.EmitOpU16U8(bytecode.OpCallDef, uint16(defIdx), 0)
			return
		}
		constIdx, ok := fc.chunk.AddConst(bytecode.Const{Kind: bytecode.ConstChunk, Chunk: c.defChunks[defIdx]})
		if !ok {
			c.errorf(span, "too many constants in chunk")
			return
		}
		fc.chunk.EmitMakeClosure(constIdx, nil)
		return
	}
	if _, ok := intrinsics.Global.ID(name); ok {
		c.errorf(span, "\""+name+"\" is a built-in and must be applied to arguments, not used as a value")
		c.pushPlaceholder(fc)
		return
	}
	c.errorf(span, "undefined name \""+name+"\"")
	c.pushPlaceholder(fc)
}

func (c *compiler) compileApp(fc *funcCompiler, e *ast.Expr, isTail bool) {
	if e.Func != nil && e.Func.Kind == ast.Ident {
		name := e.Func.Name
		if _, ok := fc.resolveLocal(name); !ok {
			if _, ok := fc.resolveUpvalue(name); !ok {
				if defIdx, defOK := c.defIndex[name]; defOK {
					c.compileCallArgs(fc, e.Args)
					if len(e.Args) > 255 {
						c.errorf(e.Span, "too many arguments")
						return
					}
					if c.defParamCount[defIdx] != len(e.Args) {
						c.errorf(e.Span, "wrong number of arguments to \""+name+"\"")
					}
					op := bytecode.OpCallDef
					if isTail {
						op = bytecode.OpTailCallDef
					}
					fc.chunk.EmitOpU16U8(op, uint16(defIdx), uint8(len(e.Args)))
					return
				}
				if id, ok := intrinsics.Global.ID(name); ok {
					c.compileCallArgs(fc, e.Args)
					if len(e.Args) > 255 {
						c.errorf(e.Span, "too many arguments")
						return
					}
					fc.chunk.EmitOpU16U8(bytecode.OpSysCall, id, uint8(len(e.Args)))
					return
				}
				c.errorf(e.Func.Span, "undefined name \""+name+"\"")
				c.pushPlaceholder(fc)
				return
			}
		}
	}

	// Generic closure call: push the function value, then the arguments.
	c.compileValue(fc, e.Func, false)
	c.compileCallArgs(fc, e.Args)
	if len(e.Args) > 255 {
		c.errorf(e.Span, "too many arguments")
		return
	}
	op := bytecode.OpCall
	if isTail {
		op = bytecode.OpTailCall
	}
	fc.chunk.EmitOpU8(op, uint8(len(e.Args)))
}

func (c *compiler) compileCallArgs(fc *funcCompiler, args []*ast.Expr) {
	for _, a := range args {
		c.compileValue(fc, a, false)
	}
}

func (c *compiler) compileLambda(fc *funcCompiler, e *ast.Expr) {
	child := &funcCompiler{parent: fc, chunk: &bytecode.Chunk{Name: "lambda"}}
	for _, p := range e.Params {
		child.locals = append(child.locals, p.Name)
	}
	child.chunk.NumLocals = len(e.Params)

	c.compileValue(child, e.Body, true)
	child.chunk.EmitOp(bytecode.OpReturn)
	c.checkCapacity(child.chunk)
	child.chunk.NumUpvalues = len(child.upvalues)

	constIdx, ok := fc.chunk.AddConst(bytecode.Const{Kind: bytecode.ConstChunk, Chunk: child.chunk})
	if !ok {
		c.errorf(e.Span, "too many constants in chunk")
		return
	}
	caps := make([]bytecode.Capture, len(child.upvalues))
	for i, u := range child.upvalues {
		caps[i] = u.Cap
	}
	if !fc.chunk.EmitMakeClosure(constIdx, caps) {
		c.errorf(e.Span, "closure captures too many upvalues")
	}
}

func (c *compiler) compileIf(fc *funcCompiler, e *ast.Expr, isTail bool) {
	c.compileValue(fc, e.Cond, false)
	elseJump, ok := fc.chunk.EmitJump(bytecode.OpJumpIfFalse)
	if !ok {
		c.errorf(e.Span, "chunk too large")
		return
	}
	c.compileValue(fc, e.Then, isTail)
	endJump, ok := fc.chunk.EmitJump(bytecode.OpJump)
	if !ok {
		c.errorf(e.Span, "chunk too large")
		return
	}
	fc.chunk.PatchJump(elseJump)
	c.compileValue(fc, e.Else, isTail)
	fc.chunk.PatchJump(endJump)
}
