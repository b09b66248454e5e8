package compiler

import (
	"fmt"
	"strings"
)

// Opcode is one IR operation. The set is deliberately small: the emitter is
// a mechanical, non-optimizing lowering and the code generator translates
// each opcode independently.
type Opcode int

const (
	OpStore Opcode = iota // dst <- operand
	OpLoad                // dst <- field slot
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpXor
	OpAnd
	OpOr
	OpCmp           // dst <- comparison of two operands
	OpJumpIfZero    // conditional jump on a zero operand
	OpJumpIfNotZero // conditional jump on a non-zero operand
	OpJump
	OpLabel
	OpCall // dst <- call result
	OpReturn
)

var opcodeNames = [...]string{
	OpStore:         "STORE",
	OpLoad:          "LOAD",
	OpAdd:           "ADD",
	OpSub:           "SUB",
	OpMul:           "MUL",
	OpDiv:           "DIV",
	OpMod:           "MOD",
	OpXor:           "XOR",
	OpAnd:           "AND",
	OpOr:            "OR",
	OpCmp:           "CMP",
	OpJumpIfZero:    "JUMP_IF_ZERO",
	OpJumpIfNotZero: "JUMP_IF_NOT_ZERO",
	OpJump:          "JUMP",
	OpLabel:         "LABEL",
	OpCall:          "CALL",
	OpReturn:        "RETURN",
}

func (op Opcode) String() string {
	if int(op) >= 0 && int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", int(op))
}

// CmpOp selects the comparison a CMP instruction performs.
type CmpOp string

const (
	CmpEQ CmpOp = "EQ"
	CmpNE CmpOp = "NE"
	CmpLT CmpOp = "LT"
	CmpLE CmpOp = "LE"
	CmpGT CmpOp = "GT"
	CmpGE CmpOp = "GE"
)

// OperandKind identifies what an IR operand refers to.
type OperandKind int

const (
	OpdNone OperandKind = iota
	OpdNum              // integer constant
	OpdRef              // named variable
	OpdTmp              // per-function temporary
	OpdStr              // pooled string constant, by label
	OpdField            // struct field: base variable plus byte offset
)

// Operand is one IR value reference. sym carries the resolved symbol for
// OpdRef and OpdField so the code generator never repeats name lookup.
type Operand struct {
	Kind   OperandKind
	Num    int64  // OpdNum
	Name   string // OpdRef, OpdField: base variable; OpdStr: label
	Offset int    // OpdField
	Tmp    int    // OpdTmp

	sym *Symbol
}

func NumOperand(n int64) Operand      { return Operand{Kind: OpdNum, Num: n} }
func TmpOperand(i int) Operand        { return Operand{Kind: OpdTmp, Tmp: i} }
func StrOperand(label string) Operand { return Operand{Kind: OpdStr, Name: label} }

func refOperand(sym *Symbol) Operand {
	return Operand{Kind: OpdRef, Name: sym.Name, sym: sym}
}

func fieldOperand(base *Symbol, offset int) Operand {
	return Operand{Kind: OpdField, Name: base.Name, Offset: offset, sym: base}
}

func (o Operand) String() string {
	switch o.Kind {
	case OpdNum:
		return fmt.Sprintf("NUM(%d)", o.Num)
	case OpdRef:
		return fmt.Sprintf("REF(%s)", o.Name)
	case OpdTmp:
		return fmt.Sprintf("TMP(%d)", o.Tmp)
	case OpdStr:
		return fmt.Sprintf("STR(%s)", o.Name)
	case OpdField:
		return fmt.Sprintf("FIELD(%s, %d)", o.Name, o.Offset)
	default:
		return "NONE"
	}
}

// dstString renders an operand in destination position: variables print
// bare, matching the listing format `STORE x <- NUM(5)`.
func (o Operand) dstString() string {
	switch o.Kind {
	case OpdRef:
		return o.Name
	case OpdTmp:
		return fmt.Sprintf("t%d", o.Tmp)
	default:
		return o.String()
	}
}

// Instr is one IR instruction. Dst receives the result where the opcode
// produces one; Label is the jump/label name or the callee for CALL.
type Instr struct {
	Op    Opcode
	Dst   Operand
	Args  []Operand
	Cmp   CmpOp
	Label string
}

func (in Instr) String() string {
	switch in.Op {
	case OpStore:
		return fmt.Sprintf("STORE %s <- %s", in.Dst.dstString(), in.Args[0])
	case OpLoad:
		return fmt.Sprintf("LOAD %s <- %s", in.Dst.dstString(), in.Args[0])
	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpXor, OpAnd, OpOr:
		return fmt.Sprintf("STORE %s <- %s(%s, %s)", in.Dst.dstString(), in.Op, in.Args[0], in.Args[1])
	case OpCmp:
		return fmt.Sprintf("CMP %s <- %s(%s, %s)", in.Dst.dstString(), in.Cmp, in.Args[0], in.Args[1])
	case OpJumpIfZero, OpJumpIfNotZero:
		return fmt.Sprintf("%s %s, %s", in.Op, in.Args[0], in.Label)
	case OpJump:
		return fmt.Sprintf("JUMP %s", in.Label)
	case OpLabel:
		return fmt.Sprintf("LABEL %s", in.Label)
	case OpCall:
		parts := make([]string, len(in.Args))
		for i, a := range in.Args {
			parts[i] = a.String()
		}
		return fmt.Sprintf("CALL %s <- %s(%s)", in.Dst.dstString(), in.Label, strings.Join(parts, ", "))
	case OpReturn:
		if len(in.Args) == 0 {
			return "RETURN"
		}
		return fmt.Sprintf("RETURN %s", in.Args[0])
	default:
		return in.Op.String()
	}
}

// IRFunction is the flat ordered instruction sequence of one function.
// Temps counts the temporaries the sequence uses; the code generator gives
// each its own frame slot below the named locals.
type IRFunction struct {
	Name   string
	Params []string
	Instrs []Instr
	Temps  int
}

// StringConst is one pooled string literal.
type StringConst struct {
	Label string
	Value string
}

// IRProgram is the lowered form of a whole compilation unit. Main holds the
// free-standing top-level statements that become the program entry point.
type IRProgram struct {
	Funcs   []*IRFunction
	Main    *IRFunction
	Strings []StringConst
}

// Listing renders the program as human-readable linear IR grouped by
// function, the `.fir` output of the driver.
func (p *IRProgram) Listing() string {
	var sb strings.Builder
	for _, fn := range p.Funcs {
		writeListing(&sb, fn)
	}
	if p.Main != nil && len(p.Main.Instrs) > 0 {
		writeListing(&sb, p.Main)
	}
	return sb.String()
}

func writeListing(sb *strings.Builder, fn *IRFunction) {
	fmt.Fprintf(sb, "%s:\n", fn.Name)
	for _, in := range fn.Instrs {
		fmt.Fprintf(sb, "  %s\n", in)
	}
}

// entryName labels the instruction sequence built from free-standing
// top-level statements.
const entryName = "_start"

// irEmitter lowers an analyzed AST. The label counter is monotonic across
// the whole run and starts at zero for every run, so identical input yields
// an identical instruction stream.
type irEmitter struct {
	syms       *SymbolTable
	trace      Tracer
	fn         *IRFunction
	labelCount int
	strings    map[string]string // literal value -> pooled label
	prog       *IRProgram
}

// EmitIR lowers a semantically valid program to linear IR.
func EmitIR(prog []Stmt, syms *SymbolTable, trace Tracer) (*IRProgram, error) {
	if trace == nil {
		trace = nopTracer{}
	}
	e := &irEmitter{
		syms:    syms,
		trace:   trace,
		strings: make(map[string]string),
		prog:    &IRProgram{Main: &IRFunction{Name: entryName}},
	}

	for _, s := range prog {
		switch n := s.(type) {
		case *FunctionDef:
			fn := &IRFunction{Name: n.Name, Params: n.Params}
			e.prog.Funcs = append(e.prog.Funcs, fn)
			e.fn = fn
			for _, st := range n.Body {
				if err := e.emitStmt(st); err != nil {
					return nil, err
				}
			}
		case *StructDef, *EnumDef:
			// Pure declarations, nothing to lower.
		default:
			e.fn = e.prog.Main
			if err := e.emitStmt(s); err != nil {
				return nil, err
			}
		}
	}
	return e.prog, nil
}

func (e *irEmitter) emit(in Instr) {
	e.fn.Instrs = append(e.fn.Instrs, in)
	e.trace.InstrEmitted(e.fn.Name, in)
}

func (e *irEmitter) newTmp() Operand {
	t := e.fn.Temps
	e.fn.Temps++
	return TmpOperand(t)
}

func (e *irEmitter) newLabel() string {
	l := fmt.Sprintf("L%d", e.labelCount)
	e.labelCount++
	return l
}

func (e *irEmitter) stringLabel(value string) string {
	if label, ok := e.strings[value]; ok {
		return label
	}
	label := fmt.Sprintf("S%d", len(e.prog.Strings))
	e.strings[value] = label
	e.prog.Strings = append(e.prog.Strings, StringConst{Label: label, Value: value})
	return label
}

func (e *irEmitter) emitStmt(s Stmt) error {
	switch n := s.(type) {
	case *Assignment:
		return e.emitAssignment(n)

	case *IfStatement:
		cond, err := e.emitExpr(n.Cond)
		if err != nil {
			return err
		}
		if n.Else == nil {
			end := e.newLabel()
			e.emit(Instr{Op: OpJumpIfZero, Args: []Operand{cond}, Label: end})
			if err := e.emitBody(n.Then); err != nil {
				return err
			}
			e.emit(Instr{Op: OpLabel, Label: end})
			return nil
		}
		elseL := e.newLabel()
		end := e.newLabel()
		e.emit(Instr{Op: OpJumpIfZero, Args: []Operand{cond}, Label: elseL})
		if err := e.emitBody(n.Then); err != nil {
			return err
		}
		e.emit(Instr{Op: OpJump, Label: end})
		e.emit(Instr{Op: OpLabel, Label: elseL})
		if err := e.emitBody(n.Else); err != nil {
			return err
		}
		e.emit(Instr{Op: OpLabel, Label: end})
		return nil

	case *WhileLoop:
		head := e.newLabel()
		end := e.newLabel()
		e.emit(Instr{Op: OpLabel, Label: head})
		cond, err := e.emitExpr(n.Cond)
		if err != nil {
			return err
		}
		e.emit(Instr{Op: OpJumpIfZero, Args: []Operand{cond}, Label: end})
		if err := e.emitBody(n.Body); err != nil {
			return err
		}
		e.emit(Instr{Op: OpJump, Label: head})
		e.emit(Instr{Op: OpLabel, Label: end})
		return nil

	case *ForLoop:
		if err := e.emitAssignment(n.Init); err != nil {
			return err
		}
		head := e.newLabel()
		end := e.newLabel()
		e.emit(Instr{Op: OpLabel, Label: head})
		cond, err := e.emitExpr(n.Cond)
		if err != nil {
			return err
		}
		e.emit(Instr{Op: OpJumpIfZero, Args: []Operand{cond}, Label: end})
		if err := e.emitBody(n.Body); err != nil {
			return err
		}
		if err := e.emitAssignment(n.Post); err != nil {
			return err
		}
		e.emit(Instr{Op: OpJump, Label: head})
		e.emit(Instr{Op: OpLabel, Label: end})
		return nil

	case *ReturnStatement:
		if n.Value == nil {
			e.emit(Instr{Op: OpReturn})
			return nil
		}
		value, err := e.emitExpr(n.Value)
		if err != nil {
			return err
		}
		e.emit(Instr{Op: OpReturn, Args: []Operand{value}})
		return nil

	case *ExprStatement:
		_, err := e.emitExpr(n.X)
		return err

	case *FunctionDef, *StructDef, *EnumDef:
		return errorf(ErrFrameLayout, 0, 0, "definition survived below top level")
	}
	return nil
}

func (e *irEmitter) emitBody(body []Stmt) error {
	for _, s := range body {
		if err := e.emitStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (e *irEmitter) emitAssignment(n *Assignment) error {
	dst, err := e.lvalue(n.Target)
	if err != nil {
		return err
	}

	// Struct instantiation zeroes every field of the instance.
	if inst, ok := n.Value.(*StructInstantiation); ok {
		st, ok := e.syms.GetStruct(inst.TypeName)
		if !ok {
			return errorf(ErrFrameLayout, inst.Line, inst.Col, "unresolved struct type %q at IR emission", inst.TypeName)
		}
		base := n.Target.(*IdentifierExpr).sym
		for _, field := range st.Fields {
			off, _ := st.FieldOffset(field)
			e.emit(Instr{Op: OpStore, Dst: fieldOperand(base, off), Args: []Operand{NumOperand(0)}})
		}
		return nil
	}
	return e.emitInto(dst, n.Value)
}

func (e *irEmitter) lvalue(target Expr) (Operand, error) {
	switch t := target.(type) {
	case *IdentifierExpr:
		return refOperand(t.sym), nil
	case *FieldAccess:
		return fieldOperand(t.base, t.offset), nil
	default:
		return Operand{}, errorf(ErrFrameLayout, 0, 0, "invalid assignment target survived analysis")
	}
}

var binaryOpcodes = map[string]Opcode{
	"+": OpAdd,
	"-": OpSub,
	"*": OpMul,
	"/": OpDiv,
	"%": OpMod,
	"^": OpXor,
}

var cmpOps = map[string]CmpOp{
	"==": CmpEQ,
	"!=": CmpNE,
	"<":  CmpLT,
	"<=": CmpLE,
	">":  CmpGT,
	">=": CmpGE,
}

// emitInto lowers value so its result lands in dst without an intermediate
// temporary; a binary expression of two leaves therefore lowers to the
// single instruction `STORE dst <- OP(a, b)`.
func (e *irEmitter) emitInto(dst Operand, value Expr) error {
	switch v := value.(type) {
	case *BinaryExpr:
		if op, ok := binaryOpcodes[v.Op]; ok {
			a, err := e.emitExpr(v.Left)
			if err != nil {
				return err
			}
			b, err := e.emitExpr(v.Right)
			if err != nil {
				return err
			}
			e.emit(Instr{Op: op, Dst: dst, Args: []Operand{a, b}})
			return nil
		}
		if cmp, ok := cmpOps[v.Op]; ok {
			a, err := e.emitExpr(v.Left)
			if err != nil {
				return err
			}
			b, err := e.emitExpr(v.Right)
			if err != nil {
				return err
			}
			e.emit(Instr{Op: OpCmp, Cmp: cmp, Dst: dst, Args: []Operand{a, b}})
			return nil
		}
		// "and" / "or": operands normalized to 0/1, then combined bitwise.
		// There is no short-circuit; both sides always evaluate.
		a, err := e.emitNormalized(v.Left)
		if err != nil {
			return err
		}
		b, err := e.emitNormalized(v.Right)
		if err != nil {
			return err
		}
		op := OpAnd
		if v.Op == "or" {
			op = OpOr
		}
		e.emit(Instr{Op: op, Dst: dst, Args: []Operand{a, b}})
		return nil

	case *UnaryExpr:
		a, err := e.emitExpr(v.Operand)
		if err != nil {
			return err
		}
		if v.Op == "-" {
			e.emit(Instr{Op: OpSub, Dst: dst, Args: []Operand{NumOperand(0), a}})
		} else {
			e.emit(Instr{Op: OpCmp, Cmp: CmpEQ, Dst: dst, Args: []Operand{a, NumOperand(0)}})
		}
		return nil

	case *TernaryExpr:
		// Both arms bind the same destination, the shared result slot.
		cond, err := e.emitExpr(v.Cond)
		if err != nil {
			return err
		}
		elseL := e.newLabel()
		end := e.newLabel()
		e.emit(Instr{Op: OpJumpIfZero, Args: []Operand{cond}, Label: elseL})
		if err := e.emitInto(dst, v.Then); err != nil {
			return err
		}
		e.emit(Instr{Op: OpJump, Label: end})
		e.emit(Instr{Op: OpLabel, Label: elseL})
		if err := e.emitInto(dst, v.Else); err != nil {
			return err
		}
		e.emit(Instr{Op: OpLabel, Label: end})
		return nil

	case *FunctionCall:
		args := make([]Operand, len(v.Args))
		for i, arg := range v.Args {
			a, err := e.emitExpr(arg)
			if err != nil {
				return err
			}
			args[i] = a
		}
		e.emit(Instr{Op: OpCall, Dst: dst, Args: args, Label: v.Name})
		return nil

	case *FieldAccess:
		e.emit(Instr{Op: OpLoad, Dst: dst, Args: []Operand{fieldOperand(v.base, v.offset)}})
		return nil

	default:
		leaf, err := e.leafOperand(value)
		if err != nil {
			return err
		}
		e.emit(Instr{Op: OpStore, Dst: dst, Args: []Operand{leaf}})
		return nil
	}
}

// emitExpr lowers value and returns the operand holding its result. Leaves
// produce no instructions; anything else lands in a fresh temporary.
func (e *irEmitter) emitExpr(value Expr) (Operand, error) {
	switch value.(type) {
	case *NumberLiteral, *StringLiteral, *BoolLiteral, *IdentifierExpr, *EnumVariantAccess:
		return e.leafOperand(value)
	}
	t := e.newTmp()
	if err := e.emitInto(t, value); err != nil {
		return Operand{}, err
	}
	return t, nil
}

// emitNormalized lowers value and coerces the result to 0 or 1.
func (e *irEmitter) emitNormalized(value Expr) (Operand, error) {
	a, err := e.emitExpr(value)
	if err != nil {
		return Operand{}, err
	}
	t := e.newTmp()
	e.emit(Instr{Op: OpCmp, Cmp: CmpNE, Dst: t, Args: []Operand{a, NumOperand(0)}})
	return t, nil
}

func (e *irEmitter) leafOperand(value Expr) (Operand, error) {
	switch v := value.(type) {
	case *NumberLiteral:
		return NumOperand(v.Value), nil
	case *BoolLiteral:
		if v.Value {
			return NumOperand(1), nil
		}
		return NumOperand(0), nil
	case *StringLiteral:
		return StrOperand(e.stringLabel(v.Value)), nil
	case *IdentifierExpr:
		return refOperand(v.sym), nil
	case *EnumVariantAccess:
		return NumOperand(int64(v.ordinal)), nil
	default:
		return Operand{}, errorf(ErrFrameLayout, 0, 0, "expression %s is not a leaf operand", value)
	}
}
