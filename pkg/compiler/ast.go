package compiler

import (
	"fmt"
	"strings"
)

//  Statement nodes

// Stmt is implemented by every statement form. The statement set is closed:
// every consumer switches exhaustively over these types.
type Stmt interface {
	stmtNode()
	String() string
}

// Assignment is `target = value;` where target is a variable or a field
// access. The first assignment to a name in a scope declares it. Compound
// assignments are desugared by the parser, so `x += e` arrives here as
// `x = x + (e)`.
type Assignment struct {
	Target Expr // *IdentifierExpr or *FieldAccess
	Value  Expr
	Line   int
	Col    int
}

func (*Assignment) stmtNode() {}
func (a *Assignment) String() string {
	return fmt.Sprintf("%s = %s;", a.Target, a.Value)
}

// FunctionDef is `Start name(a, b) { body }`.
type FunctionDef struct {
	Name   string
	Params []string
	Body   []Stmt
	Line   int
	Col    int
}

func (*FunctionDef) stmtNode() {}
func (f *FunctionDef) String() string {
	return fmt.Sprintf("Start %s(%s) { %d stmt(s) }", f.Name, strings.Join(f.Params, ", "), len(f.Body))
}

// StructDef is `Init Name { field; field; }`.
type StructDef struct {
	Name   string
	Fields []string
	Line   int
	Col    int
}

func (*StructDef) stmtNode() {}
func (s *StructDef) String() string {
	return fmt.Sprintf("Init %s { %s }", s.Name, strings.Join(s.Fields, "; "))
}

// EnumDef is `Enum Name { Variant; Variant; }`.
type EnumDef struct {
	Name     string
	Variants []string
	Line     int
	Col      int
}

func (*EnumDef) stmtNode() {}
func (e *EnumDef) String() string {
	return fmt.Sprintf("Enum %s { %s }", e.Name, strings.Join(e.Variants, "; "))
}

type IfStatement struct {
	Cond Expr
	Then []Stmt
	Else []Stmt // nil when no else branch
	Line int
	Col  int
}

func (*IfStatement) stmtNode() {}
func (s *IfStatement) String() string {
	if s.Else == nil {
		return fmt.Sprintf("if (%s) { %d stmt(s) }", s.Cond, len(s.Then))
	}
	return fmt.Sprintf("if (%s) { %d stmt(s) } else { %d stmt(s) }", s.Cond, len(s.Then), len(s.Else))
}

type WhileLoop struct {
	Cond Expr
	Body []Stmt
	Line int
	Col  int
}

func (*WhileLoop) stmtNode() {}
func (s *WhileLoop) String() string {
	return fmt.Sprintf("while (%s) { %d stmt(s) }", s.Cond, len(s.Body))
}

// ForLoop is `for (init; cond; post) { body }`; all three clauses are
// mandatory.
type ForLoop struct {
	Init *Assignment
	Cond Expr
	Post *Assignment
	Body []Stmt
	Line int
	Col  int
}

func (*ForLoop) stmtNode() {}
func (s *ForLoop) String() string {
	return fmt.Sprintf("for (%s %s; %s) { %d stmt(s) }", s.Init, s.Cond, s.Post, len(s.Body))
}

// ReturnStatement carries an optional value; Value is nil for a bare return.
type ReturnStatement struct {
	Value Expr
	Line  int
	Col   int
}

func (*ReturnStatement) stmtNode() {}
func (s *ReturnStatement) String() string {
	if s.Value == nil {
		return "return;"
	}
	return fmt.Sprintf("return %s;", s.Value)
}

// ExprStatement is a bare expression used as a statement, i.e. a call whose
// result is discarded.
type ExprStatement struct {
	X    Expr
	Line int
	Col  int
}

func (*ExprStatement) stmtNode() {}
func (s *ExprStatement) String() string {
	return fmt.Sprintf("%s;", s.X)
}

//  Expression nodes

// Expr is implemented by every node that produces a value.
type Expr interface {
	exprNode()
	String() string
}

type NumberLiteral struct {
	Value int64
}

func (*NumberLiteral) exprNode()        {}
func (n *NumberLiteral) String() string { return fmt.Sprintf("%d", n.Value) }

type StringLiteral struct {
	Value string
}

func (*StringLiteral) exprNode()        {}
func (s *StringLiteral) String() string { return fmt.Sprintf("%q", s.Value) }

type BoolLiteral struct {
	Value bool
}

func (*BoolLiteral) exprNode()        {}
func (b *BoolLiteral) String() string { return fmt.Sprintf("%t", b.Value) }

// IdentifierExpr is a read of a named variable. sym is filled in by semantic
// analysis.
type IdentifierExpr struct {
	Name string
	Line int
	Col  int

	sym *Symbol
}

func (*IdentifierExpr) exprNode()        {}
func (e *IdentifierExpr) String() string { return e.Name }

// BinaryExpr is Left Op Right; Op is the operator lexeme ("+", "==", "and").
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
}

func (*BinaryExpr) exprNode() {}
func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
}

type UnaryExpr struct {
	Op      string // "-" or "!"
	Operand Expr
}

func (*UnaryExpr) exprNode()        {}
func (u *UnaryExpr) String() string { return fmt.Sprintf("(%s%s)", u.Op, u.Operand) }

// TernaryExpr is `Cond ? Then : Else`, right-associative.
type TernaryExpr struct {
	Cond Expr
	Then Expr
	Else Expr
}

func (*TernaryExpr) exprNode() {}
func (t *TernaryExpr) String() string {
	return fmt.Sprintf("(%s ? %s : %s)", t.Cond, t.Then, t.Else)
}

// FunctionCall is name(args). sym is the callee, filled in by semantic
// analysis.
type FunctionCall struct {
	Name string
	Args []Expr
	Line int
	Col  int

	sym *Symbol
}

func (*FunctionCall) exprNode() {}
func (c *FunctionCall) String() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.Name, strings.Join(parts, ", "))
}

// FieldAccess is Object.Field. Semantic analysis resolves the base variable
// and the field's byte offset within its struct descriptor.
type FieldAccess struct {
	Object Expr
	Field  string
	Line   int
	Col    int

	base   *Symbol
	offset int
}

func (*FieldAccess) exprNode()        {}
func (f *FieldAccess) String() string { return fmt.Sprintf("%s.%s", f.Object, f.Field) }

// StructInstantiation is `TypeName()`, producing a zeroed instance. It is
// only legal as the direct right-hand side of an assignment to a variable.
type StructInstantiation struct {
	TypeName string
	Line     int
	Col      int
}

func (*StructInstantiation) exprNode()        {}
func (s *StructInstantiation) String() string { return s.TypeName + "()" }

// EnumVariantAccess is `EnumName.Variant`. The parser produces it directly
// when the receiver names an already-declared enum type; semantic analysis
// resolves the ordinal.
type EnumVariantAccess struct {
	EnumName string
	Variant  string
	Line     int
	Col      int

	ordinal int
}

func (*EnumVariantAccess) exprNode()        {}
func (e *EnumVariantAccess) String() string { return e.EnumName + "." + e.Variant }
