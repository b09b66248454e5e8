package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser consumes the flat token slice produced by Lex and builds an AST.
//
// Grammar:
//
//	program    = (functionDef | structDef | enumDef | statement)* EOF
//	functionDef = "Start" IDENTIFIER "(" (IDENTIFIER ("," IDENTIFIER)*)? ")" block
//	structDef  = "Init" IDENTIFIER "{" (IDENTIFIER ";")* "}"
//	enumDef    = "Enum" IDENTIFIER "{" (IDENTIFIER ";")* "}"
//	statement  = assignment | ifStmt | whileStmt | forStmt | returnStmt | exprStmt
//	assignment = target ("=" | "+=" | "-=" | "*=" | "/=" | "%=") expression ";"
//	target     = IDENTIFIER ("." IDENTIFIER)*
//	ifStmt     = "if" "(" expression ")" block ("else" block)?
//	whileStmt  = "while" "(" expression ")" block
//	forStmt    = "for" "(" assignment expression ";" postAssign ")" block
//	returnStmt = "return" expression? ";"
//	exprStmt   = call ";"
//	block      = "{" statement* "}"
//
//	expression = ternary
//	ternary    = logical ("?" ternary ":" ternary)?          (right-assoc)
//	logical    = relational (("and" | "or") relational)*
//	relational = additive (("=="|"!="|"<"|"<="|">"|">=") additive)*
//	additive   = multiplicative (("+" | "-") multiplicative)*
//	multiplicative = unary (("*" | "/" | "%" | "^") unary)*
//	unary      = ("-" | "!") unary | postfix
//	postfix    = primary ("(" args ")" | "." IDENTIFIER)*
//	primary    = NUMBER | STRING | "true" | "false" | IDENTIFIER | "(" expression ")"
//
// Assignment binds loosest: the entire right-hand side, ternaries included,
// is parsed before it is bound to the target, and binary operators are
// left-associative. Parsing aborts on the first malformed construct; there
// is no error recovery.
type Parser struct {
	tokens      []Token
	pos         int
	syms        *SymbolTable
	trace       Tracer
	sourceLines []string
}

// Parse builds the statement list for a whole program. Function, struct and
// enum definitions are registered in the global scope of syms as they are
// parsed, so later constructs (struct instantiation, enum variant access)
// can be classified immediately.
func Parse(tokens []Token, src string, syms *SymbolTable, trace Tracer) ([]Stmt, error) {
	if trace == nil {
		trace = nopTracer{}
	}
	p := &Parser{
		tokens:      tokens,
		syms:        syms,
		trace:       trace,
		sourceLines: strings.Split(src, "\n"),
	}

	var stmts []Stmt
	for p.peek().Kind != EndOfFile {
		s, err := p.parseTopLevel()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

// fmtError wraps a parse diagnostic with the source line where the token
// appears.
func (p *Parser) fmtError(tok Token, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	lineIdx := tok.Line - 1
	if lineIdx >= 0 && lineIdx < len(p.sourceLines) {
		snippet := strings.TrimSpace(p.sourceLines[lineIdx])
		if snippet != "" {
			msg = fmt.Sprintf("%s\n  |> %s", msg, snippet)
		}
	}
	return errorf(ErrParse, tok.Line, tok.Col, "%s", msg)
}

// peek returns the current token without consuming it.
func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Kind: EndOfFile}
	}
	return p.tokens[p.pos]
}

// advance consumes and returns the current token.
func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) describe(tok Token) string {
	if tok.Kind == EndOfFile {
		return "end of file"
	}
	return fmt.Sprintf("%q", tok.Lexeme)
}

// expectSymbol consumes the current token if it is the given symbol.
func (p *Parser) expectSymbol(sym string) (Token, error) {
	tok := p.advance()
	if !tok.IsOp(sym) {
		return tok, p.fmtError(tok, "expected %q, found %s", sym, p.describe(tok))
	}
	return tok, nil
}

// expectEnd consumes the statement terminator.
func (p *Parser) expectEnd() error {
	tok := p.advance()
	if tok.Kind != EndOfLine {
		return p.fmtError(tok, "expected \";\", found %s", p.describe(tok))
	}
	return nil
}

func (p *Parser) expectIdentifier(what string) (Token, error) {
	tok := p.advance()
	if tok.Kind != Identifier {
		return tok, p.fmtError(tok, "expected %s, found %s", what, p.describe(tok))
	}
	return tok, nil
}

// positioned fills in the location of an *Error that was raised without one,
// e.g. by the symbol table.
func (p *Parser) positioned(err error, tok Token) error {
	if cerr, ok := err.(*Error); ok && cerr.Line == 0 {
		cerr.Line = tok.Line
		cerr.Col = tok.Col
	}
	return err
}

func (p *Parser) parseTopLevel() (Stmt, error) {
	switch tok := p.peek(); {
	case tok.IsKeyword("Start"):
		return p.parseFunctionDef()
	case tok.IsKeyword("Init"):
		return p.parseStructDef()
	case tok.IsKeyword("Enum"):
		return p.parseEnumDef()
	default:
		return p.parseStatement()
	}
}

func (p *Parser) parseStatement() (Stmt, error) {
	s, err := p.parseStatementInner()
	if err != nil {
		return nil, err
	}
	p.trace.StatementParsed(s)
	return s, nil
}

func (p *Parser) parseStatementInner() (Stmt, error) {
	switch tok := p.peek(); {
	case tok.IsKeyword("Start"), tok.IsKeyword("Init"), tok.IsKeyword("Enum"):
		return nil, p.fmtError(tok, "%q definitions are only allowed at the top level", tok.Lexeme)
	case tok.IsKeyword("if"):
		return p.parseIf()
	case tok.IsKeyword("while"):
		return p.parseWhile()
	case tok.IsKeyword("for"):
		return p.parseFor()
	case tok.IsKeyword("return"):
		return p.parseReturn()
	default:
		return p.parseSimpleStatement(true)
	}
}

func (p *Parser) parseBlock() ([]Stmt, error) {
	if _, err := p.expectSymbol("{"); err != nil {
		return nil, err
	}
	var stmts []Stmt
	for !p.peek().IsOp("}") {
		if p.peek().Kind == EndOfFile {
			return nil, p.fmtError(p.peek(), "unclosed block, expected \"}\"")
		}
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	p.advance() // }
	return stmts, nil
}

func (p *Parser) parseFunctionDef() (Stmt, error) {
	start := p.advance() // Start
	name, err := p.expectIdentifier("function name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectSymbol("("); err != nil {
		return nil, err
	}

	var params []string
	for !p.peek().IsOp(")") {
		param, err := p.expectIdentifier("parameter name")
		if err != nil {
			return nil, err
		}
		params = append(params, param.Lexeme)
		if p.peek().IsOp(",") {
			p.advance()
		} else if !p.peek().IsOp(")") {
			return nil, p.fmtError(p.peek(), "expected \",\" or \")\" in parameter list, found %s", p.describe(p.peek()))
		}
	}
	p.advance() // )

	if err := p.syms.DefineFunction(name.Lexeme, len(params)); err != nil {
		return nil, p.positioned(err, name)
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	fn := &FunctionDef{Name: name.Lexeme, Params: params, Body: body, Line: start.Line, Col: start.Col}
	p.trace.StatementParsed(fn)
	return fn, nil
}

// parseMemberList parses `IDENTIFIER { member; member; }` shared by struct
// and enum definitions.
func (p *Parser) parseMemberList(what string) (Token, []string, error) {
	name, err := p.expectIdentifier(what + " name")
	if err != nil {
		return Token{}, nil, err
	}
	if _, err := p.expectSymbol("{"); err != nil {
		return Token{}, nil, err
	}
	var members []string
	for !p.peek().IsOp("}") {
		member, err := p.expectIdentifier(what + " member name")
		if err != nil {
			return Token{}, nil, err
		}
		members = append(members, member.Lexeme)
		if err := p.expectEnd(); err != nil {
			return Token{}, nil, err
		}
	}
	p.advance() // }
	return name, members, nil
}

func (p *Parser) parseStructDef() (Stmt, error) {
	start := p.advance() // Init
	name, fields, err := p.parseMemberList("struct")
	if err != nil {
		return nil, err
	}
	if err := p.syms.DefineStruct(name.Lexeme, fields); err != nil {
		return nil, p.positioned(err, name)
	}
	def := &StructDef{Name: name.Lexeme, Fields: fields, Line: start.Line, Col: start.Col}
	p.trace.StatementParsed(def)
	return def, nil
}

func (p *Parser) parseEnumDef() (Stmt, error) {
	start := p.advance() // Enum
	name, variants, err := p.parseMemberList("enum")
	if err != nil {
		return nil, err
	}
	if err := p.syms.DefineEnum(name.Lexeme, variants); err != nil {
		return nil, p.positioned(err, name)
	}
	def := &EnumDef{Name: name.Lexeme, Variants: variants, Line: start.Line, Col: start.Col}
	p.trace.StatementParsed(def)
	return def, nil
}

func (p *Parser) parseIf() (Stmt, error) {
	start := p.advance() // if
	if _, err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	var elseBranch []Stmt
	if p.peek().IsKeyword("else") {
		p.advance()
		elseBranch, err = p.parseBlock()
		if err != nil {
			return nil, err
		}
		if elseBranch == nil {
			elseBranch = []Stmt{}
		}
	}
	return &IfStatement{Cond: cond, Then: then, Else: elseBranch, Line: start.Line, Col: start.Col}, nil
}

func (p *Parser) parseWhile() (Stmt, error) {
	start := p.advance() // while
	if _, err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &WhileLoop{Cond: cond, Body: body, Line: start.Line, Col: start.Col}, nil
}

// parseFor parses `for (init; cond; post) { body }`. All three clauses are
// mandatory; init and post must be assignments.
func (p *Parser) parseFor() (Stmt, error) {
	start := p.advance() // for
	if _, err := p.expectSymbol("("); err != nil {
		return nil, err
	}

	init, err := p.parseSimpleStatement(true) // consumes the first ';'
	if err != nil {
		return nil, err
	}
	initAssign, ok := init.(*Assignment)
	if !ok {
		return nil, p.fmtError(start, "for initializer must be an assignment")
	}

	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expectEnd(); err != nil {
		return nil, err
	}

	post, err := p.parseSimpleStatement(false)
	if err != nil {
		return nil, err
	}
	postAssign, ok := post.(*Assignment)
	if !ok {
		return nil, p.fmtError(start, "for post clause must be an assignment")
	}
	if _, err := p.expectSymbol(")"); err != nil {
		return nil, err
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ForLoop{Init: initAssign, Cond: cond, Post: postAssign, Body: body, Line: start.Line, Col: start.Col}, nil
}

func (p *Parser) parseReturn() (Stmt, error) {
	start := p.advance() // return
	if p.peek().Kind == EndOfLine {
		p.advance()
		return &ReturnStatement{Line: start.Line, Col: start.Col}, nil
	}
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expectEnd(); err != nil {
		return nil, err
	}
	return &ReturnStatement{Value: value, Line: start.Line, Col: start.Col}, nil
}

// compoundOps maps a compound assignment symbol to the binary operator the
// parser desugars it with: `x op= e` becomes `x = x op (e)`.
var compoundOps = map[string]string{
	"+=": "+",
	"-=": "-",
	"*=": "*",
	"/=": "/",
	"%=": "%",
}

// parseSimpleStatement parses an assignment or a bare call. When consumeSemi
// is false the trailing ';' is left in place (for-loop post clause).
func (p *Parser) parseSimpleStatement(consumeSemi bool) (Stmt, error) {
	start := p.peek()
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	tok := p.peek()
	op := ""
	switch {
	case tok.IsOp("="):
		op = "="
	case tok.Kind == Operator && compoundOps[tok.Lexeme] != "":
		op = tok.Lexeme
	default:
		// Not an assignment: only a call may stand alone as a statement.
		if _, ok := expr.(*FunctionCall); !ok {
			return nil, p.fmtError(start, "expected assignment or call statement")
		}
		if consumeSemi {
			if err := p.expectEnd(); err != nil {
				return nil, err
			}
		}
		return &ExprStatement{X: expr, Line: start.Line, Col: start.Col}, nil
	}
	p.advance() // the assignment operator

	switch expr.(type) {
	case *IdentifierExpr, *FieldAccess:
		// assignable
	default:
		return nil, p.fmtError(tok, "cannot assign to %s", expr)
	}

	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if binOp, ok := compoundOps[op]; ok {
		value = &BinaryExpr{Op: binOp, Left: cloneTarget(expr), Right: value}
	}
	if consumeSemi {
		if err := p.expectEnd(); err != nil {
			return nil, err
		}
	}
	return &Assignment{Target: expr, Value: value, Line: start.Line, Col: start.Col}, nil
}

// cloneTarget duplicates an assignment target for compound desugaring so the
// read and the write are distinct nodes.
func cloneTarget(e Expr) Expr {
	switch t := e.(type) {
	case *IdentifierExpr:
		c := *t
		c.sym = nil
		return &c
	case *FieldAccess:
		c := *t
		c.Object = cloneTarget(t.Object)
		c.base = nil
		return &c
	default:
		return e
	}
}

//  Expression parsing: precedence climbing, tightest binding last.

func (p *Parser) parseExpression() (Expr, error) {
	return p.parseTernary()
}

// parseTernary handles `cond ? a : b`, right-associative.
func (p *Parser) parseTernary() (Expr, error) {
	cond, err := p.parseLogical()
	if err != nil {
		return nil, err
	}
	if !p.peek().IsOp("?") {
		return cond, nil
	}
	p.advance() // ?
	then, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectSymbol(":"); err != nil {
		return nil, err
	}
	elseExpr, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	return &TernaryExpr{Cond: cond, Then: then, Else: elseExpr}, nil
}

// parseLogical handles `and` and `or`.
func (p *Parser) parseLogical() (Expr, error) {
	expr, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.peek().IsKeyword("and") || p.peek().IsKeyword("or") {
		op := p.advance().Lexeme
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Op: op, Left: expr, Right: right}
	}
	return expr, nil
}

var relationalOps = map[string]bool{
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
}

func (p *Parser) parseRelational() (Expr, error) {
	expr, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == Operator && relationalOps[p.peek().Lexeme] {
		op := p.advance().Lexeme
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Op: op, Left: expr, Right: right}
	}
	return expr, nil
}

func (p *Parser) parseAdditive() (Expr, error) {
	expr, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.peek().IsOp("+") || p.peek().IsOp("-") {
		op := p.advance().Lexeme
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Op: op, Left: expr, Right: right}
	}
	return expr, nil
}

func (p *Parser) parseMultiplicative() (Expr, error) {
	expr, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().IsOp("*") || p.peek().IsOp("/") || p.peek().IsOp("%") || p.peek().IsOp("^") {
		op := p.advance().Lexeme
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Op: op, Left: expr, Right: right}
	}
	return expr, nil
}

func (p *Parser) parseUnary() (Expr, error) {
	if p.peek().IsOp("-") || p.peek().IsOp("!") {
		op := p.advance().Lexeme
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: op, Operand: operand}, nil
	}
	return p.parsePostfix()
}

// parsePostfix handles calls, struct instantiations and member access, all
// chainable after a primary expression.
func (p *Parser) parsePostfix() (Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.peek().IsOp("("):
			expr, err = p.parseCall(expr)
			if err != nil {
				return nil, err
			}
		case p.peek().IsOp("."):
			expr, err = p.parseMember(expr)
			if err != nil {
				return nil, err
			}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parseCall(callee Expr) (Expr, error) {
	open := p.advance() // (
	id, ok := callee.(*IdentifierExpr)
	if !ok {
		return nil, p.fmtError(open, "%s is not callable", callee)
	}

	var args []Expr
	for !p.peek().IsOp(")") {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.peek().IsOp(",") {
			p.advance()
		} else if !p.peek().IsOp(")") {
			return nil, p.fmtError(p.peek(), "expected \",\" or \")\" in argument list, found %s", p.describe(p.peek()))
		}
	}
	p.advance() // )

	// A call of a declared struct type name is an instantiation.
	if sym, ok := p.syms.Global.Lookup(id.Name); ok && sym.Kind == SymStructType {
		if len(args) != 0 {
			return nil, p.fmtError(open, "struct instantiation %s() takes no arguments", id.Name)
		}
		return &StructInstantiation{TypeName: id.Name, Line: id.Line, Col: id.Col}, nil
	}
	return &FunctionCall{Name: id.Name, Args: args, Line: id.Line, Col: id.Col}, nil
}

func (p *Parser) parseMember(object Expr) (Expr, error) {
	p.advance() // .
	field, err := p.expectIdentifier("member name")
	if err != nil {
		return nil, err
	}
	// Member access on a declared enum type name is a variant access.
	if id, ok := object.(*IdentifierExpr); ok {
		if sym, ok := p.syms.Global.Lookup(id.Name); ok && sym.Kind == SymEnumType {
			return &EnumVariantAccess{EnumName: id.Name, Variant: field.Lexeme, Line: id.Line, Col: id.Col}, nil
		}
	}
	return &FieldAccess{Object: object, Field: field.Lexeme, Line: field.Line, Col: field.Col}, nil
}

func (p *Parser) parsePrimary() (Expr, error) {
	switch tok := p.peek(); {
	case tok.Kind == Number:
		p.advance()
		value, err := strconv.ParseInt(tok.Lexeme, 10, 64)
		if err != nil {
			return nil, p.fmtError(tok, "number literal %q out of range", tok.Lexeme)
		}
		return &NumberLiteral{Value: value}, nil
	case tok.Kind == String:
		p.advance()
		return &StringLiteral{Value: tok.Lexeme}, nil
	case tok.IsKeyword("true"), tok.IsKeyword("false"):
		p.advance()
		return &BoolLiteral{Value: tok.Lexeme == "true"}, nil
	case tok.Kind == Identifier:
		p.advance()
		return &IdentifierExpr{Name: tok.Lexeme, Line: tok.Line, Col: tok.Col}, nil
	case tok.IsOp("("):
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return expr, nil
	default:
		return nil, p.fmtError(tok, "expected expression, found %s", p.describe(tok))
	}
}
