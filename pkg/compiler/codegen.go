package compiler

import (
	"fmt"
	"strings"
)

// paramRegisters is the SysV AMD64 integer argument order. Functions with
// more parameters than registers are rejected.
var paramRegisters = [...]string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}

// codeGenerator translates linear IR to NASM x86-64 assembly. Every IR
// operand lives in memory (a global, a frame slot, or a pooled string), so
// each instruction loads into scratch registers, operates, and stores back.
// rax and r11 are the scratch pair; rdx is clobbered only by division.
type codeGenerator struct {
	prog *IRProgram
	syms *SymbolTable
	sb   strings.Builder

	// frameSize is the named-slot size of the function being generated;
	// temporaries sit below it.
	frameSize int
}

// Generate renders an IR program as a NASM source text. Output is fully
// deterministic: the same program always yields byte-identical assembly.
func Generate(prog *IRProgram, syms *SymbolTable) (string, error) {
	g := &codeGenerator{prog: prog, syms: syms}
	return g.run()
}

func (g *codeGenerator) run() (string, error) {
	g.line("bits 64")
	g.blank()

	if err := g.writeData(); err != nil {
		return "", err
	}

	g.line("section .text")
	g.line("global _start")
	g.blank()

	for _, fn := range g.prog.Funcs {
		if err := g.writeFunction(fn); err != nil {
			return "", err
		}
	}
	if err := g.writeEntry(); err != nil {
		return "", err
	}
	return g.sb.String(), nil
}

func (g *codeGenerator) line(s string)               { g.sb.WriteString("  " + s + "\n") }
func (g *codeGenerator) linef(f string, args ...any) { g.line(fmt.Sprintf(f, args...)) }
func (g *codeGenerator) label(s string)              { g.sb.WriteString(s + ":\n") }
func (g *codeGenerator) blank()                      { g.sb.WriteString("\n") }

func (g *codeGenerator) comment(f string, args ...any) {
	g.sb.WriteString("; " + fmt.Sprintf(f, args...) + "\n")
}

// writeData lays out the globals and the string pool. Scalar globals get a
// zeroed quadword; struct instances get one quadword per field.
func (g *codeGenerator) writeData() error {
	globals := g.syms.Globals()
	if len(globals) == 0 && len(g.prog.Strings) == 0 {
		return nil
	}
	g.line("section .data")
	for _, sym := range globals {
		if sym.Size > slotSize {
			g.linef("%s times %d dq 0", sym.Name, sym.Size/slotSize)
		} else {
			g.linef("%s dq 0", sym.Name)
		}
	}
	for _, sc := range g.prog.Strings {
		g.linef("%s db %s, 0", sc.Label, nasmString(sc.Value))
	}
	g.blank()
	return nil
}

func (g *codeGenerator) writeFunction(fn *IRFunction) error {
	if len(fn.Params) > len(paramRegisters) {
		return errorf(ErrFrameLayout, 0, 0,
			"function %q has %d parameters; at most %d are supported", fn.Name, len(fn.Params), len(paramRegisters))
	}
	frame, ok := g.syms.Frame(fn.Name)
	if !ok {
		return errorf(ErrFrameLayout, 0, 0, "no frame recorded for function %q", fn.Name)
	}
	g.frameSize = frame.Size()
	stack := roundUp16(g.frameSize + slotSize*fn.Temps)

	g.comment("%s(%s)", fn.Name, strings.Join(fn.Params, ", "))
	g.label(fn.Name)
	g.line("push rbp")
	g.line("mov rbp, rsp")
	if stack > 0 {
		g.linef("sub rsp, %d", stack)
	}
	slots := frame.Slots()
	for i := range fn.Params {
		g.linef("mov [rbp%d], %s", slots[i].Offset, paramRegisters[i])
	}

	for _, in := range fn.Instrs {
		if err := g.writeInstr(in); err != nil {
			return err
		}
	}

	// Single exit point; RETURN jumps here after loading rax.
	g.label(".ret")
	g.line("mov rsp, rbp")
	g.line("pop rbp")
	g.line("ret")
	g.blank()
	return nil
}

// writeEntry renders the top-level statement sequence as _start, ending in
// the exit system call.
func (g *codeGenerator) writeEntry() error {
	g.frameSize = 0
	g.comment("entry point")
	g.label("_start")
	g.line("mov rbp, rsp")
	if g.prog.Main != nil {
		if stack := roundUp16(slotSize * g.prog.Main.Temps); stack > 0 {
			g.linef("sub rsp, %d", stack)
		}
		for _, in := range g.prog.Main.Instrs {
			if err := g.writeInstr(in); err != nil {
				return err
			}
		}
	}
	g.line("mov rax, 60")
	g.line("xor rdi, rdi")
	g.line("syscall")
	return nil
}

func (g *codeGenerator) writeInstr(in Instr) error {
	switch in.Op {
	case OpStore, OpLoad:
		if err := g.loadInto("rax", in.Args[0]); err != nil {
			return err
		}
		return g.storeFrom("rax", in.Dst)

	case OpAdd, OpSub, OpMul, OpXor, OpAnd, OpOr:
		if err := g.loadPair(in.Args); err != nil {
			return err
		}
		g.linef("%s rax, r11", arithMnemonics[in.Op])
		return g.storeFrom("rax", in.Dst)

	case OpDiv, OpMod:
		if err := g.loadPair(in.Args); err != nil {
			return err
		}
		g.line("cqo")
		g.line("idiv r11")
		if in.Op == OpMod {
			g.line("mov rax, rdx")
		}
		return g.storeFrom("rax", in.Dst)

	case OpCmp:
		if err := g.loadPair(in.Args); err != nil {
			return err
		}
		g.line("cmp rax, r11")
		g.linef("%s al", setMnemonics[in.Cmp])
		g.line("movzx rax, al")
		return g.storeFrom("rax", in.Dst)

	case OpJumpIfZero, OpJumpIfNotZero:
		if err := g.loadInto("rax", in.Args[0]); err != nil {
			return err
		}
		g.line("test rax, rax")
		if in.Op == OpJumpIfZero {
			g.linef("jz .%s", in.Label)
		} else {
			g.linef("jnz .%s", in.Label)
		}
		return nil

	case OpJump:
		g.linef("jmp .%s", in.Label)
		return nil

	case OpLabel:
		g.label("." + in.Label)
		return nil

	case OpCall:
		if len(in.Args) > len(paramRegisters) {
			return errorf(ErrFrameLayout, 0, 0,
				"call to %q passes %d arguments; at most %d are supported", in.Label, len(in.Args), len(paramRegisters))
		}
		for i, a := range in.Args {
			if err := g.loadInto(paramRegisters[i], a); err != nil {
				return err
			}
		}
		g.linef("call %s", in.Label)
		return g.storeFrom("rax", in.Dst)

	case OpReturn:
		if len(in.Args) > 0 {
			if err := g.loadInto("rax", in.Args[0]); err != nil {
				return err
			}
		}
		g.line("jmp .ret")
		return nil
	}
	return errorf(ErrFrameLayout, 0, 0, "unknown IR opcode %s", in.Op)
}

var arithMnemonics = map[Opcode]string{
	OpAdd: "add",
	OpSub: "sub",
	OpMul: "imul",
	OpXor: "xor",
	OpAnd: "and",
	OpOr:  "or",
}

var setMnemonics = map[CmpOp]string{
	CmpEQ: "sete",
	CmpNE: "setne",
	CmpLT: "setl",
	CmpLE: "setle",
	CmpGT: "setg",
	CmpGE: "setge",
}

// loadPair loads a binary instruction's operands into rax and r11.
func (g *codeGenerator) loadPair(args []Operand) error {
	if err := g.loadInto("rax", args[0]); err != nil {
		return err
	}
	return g.loadInto("r11", args[1])
}

func (g *codeGenerator) loadInto(reg string, op Operand) error {
	switch op.Kind {
	case OpdNum:
		g.linef("mov %s, %d", reg, op.Num)
		return nil
	case OpdStr:
		g.linef("mov %s, %s", reg, op.Name)
		return nil
	default:
		addr, err := g.address(op)
		if err != nil {
			return err
		}
		g.linef("mov %s, %s", reg, addr)
		return nil
	}
}

func (g *codeGenerator) storeFrom(reg string, dst Operand) error {
	addr, err := g.address(dst)
	if err != nil {
		return err
	}
	g.linef("mov %s, %s", addr, reg)
	return nil
}

// address renders the memory operand for a variable, temporary, or field.
// Locals are rbp-relative; globals are addressed by name.
func (g *codeGenerator) address(op Operand) (string, error) {
	switch op.Kind {
	case OpdRef:
		if op.sym.Global {
			return fmt.Sprintf("[%s]", op.Name), nil
		}
		return fmt.Sprintf("[rbp%d]", op.sym.Offset), nil
	case OpdTmp:
		return fmt.Sprintf("[rbp%d]", -(g.frameSize + slotSize*(op.Tmp+1))), nil
	case OpdField:
		if op.sym.Global {
			return fmt.Sprintf("[%s+%d]", op.Name, op.Offset), nil
		}
		return fmt.Sprintf("[rbp%d]", op.sym.Offset+op.Offset), nil
	default:
		return "", errorf(ErrFrameLayout, 0, 0, "operand %s is not addressable", op)
	}
}

func roundUp16(n int) int {
	return (n + 15) &^ 15
}

// nasmString renders a decoded string literal as a NASM backquoted string,
// which honors C-style escapes.
func nasmString(s string) string {
	var b strings.Builder
	b.WriteByte('`')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '`':
			b.WriteString("\\`")
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case 0:
			b.WriteString(`\0`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('`')
	return b.String()
}
