package bytecode

import (
	"fmt"
	"strings"
)

func (op Op) String() string {
	switch op {
	case OpConst:
		return "const"
	case OpLocal:
		return "local"
	case OpUpvalue:
		return "upvalue"
	case OpCall:
		return "call"
	case OpTailCall:
		return "tailcall"
	case OpCallDef:
		return "calldef"
	case OpTailCallDef:
		return "tailcalldef"
	case OpReturn:
		return "return"
	case OpJump:
		return "jump"
	case OpJumpIfFalse:
		return "jumpiffalse"
	case OpMakeClosure:
		return "makeclosure"
	case OpMakeList:
		return "makelist"
	case OpSysCall:
		return "syscall"
	case OpPop:
		return "pop"
	case OpHalt:
		return "halt"
	default:
		return fmt.Sprintf("op(%d)", byte(op))
	}
}

// Disassemble renders c as human-readable text, recursing into any nested
// chunk referenced by a ConstChunk constant. Intended for the hakufmt dev
// CLI, not for anything the VM itself reads.
func Disassemble(c *Chunk) string {
	var b strings.Builder
	disassemble(&b, c, 0)
	return b.String()
}

func disassemble(b *strings.Builder, c *Chunk, depth int) {
	indent := strings.Repeat("  ", depth)
	name := c.Name
	if name == "" {
		name = "<main>"
	}
	fmt.Fprintf(b, "%schunk %s (%d locals, %d upvalues)\n", indent, name, c.NumLocals, c.NumUpvalues)

	offset := 0
	for offset < len(c.Code) {
		op := Op(c.Code[offset])
		fmt.Fprintf(b, "%s  %04d %s", indent, offset, op)
		switch op {
		case OpConst, OpJump, OpJumpIfFalse:
			arg := u16At(c.Code, offset+1)
			fmt.Fprintf(b, " %d", arg)
			offset += 3
		case OpLocal, OpUpvalue, OpCall, OpTailCall, OpPop:
			if op == OpPop {
				offset++
			} else {
				fmt.Fprintf(b, " %d", c.Code[offset+1])
				offset += 2
			}
		case OpCallDef, OpTailCallDef:
			defIdx := u16At(c.Code, offset+1)
			argc := c.Code[offset+3]
			fmt.Fprintf(b, " def=%d argc=%d", defIdx, argc)
			offset += 4
		case OpMakeClosure:
			constIdx := u16At(c.Code, offset+1)
			captures := c.Code[offset+3]
			fmt.Fprintf(b, " const=%d captures=%d", constIdx, captures)
			offset += 4 + int(captures)*2
		case OpMakeList:
			fmt.Fprintf(b, " %d", u16At(c.Code, offset+1))
			offset += 3
		case OpSysCall:
			fmt.Fprintf(b, " intrinsic=%d argc=%d", u16At(c.Code, offset+1), c.Code[offset+3])
			offset += 4
		case OpReturn, OpHalt:
			offset++
		default:
			offset++
		}
		b.WriteByte('\n')
	}

	for _, k := range c.Constants {
		if k.Kind == ConstChunk && k.Chunk != nil {
			disassemble(b, k.Chunk, depth+1)
		}
	}
}

func u16At(code []byte, i int) uint16 {
	return uint16(code[i])<<8 | uint16(code[i+1])
}
