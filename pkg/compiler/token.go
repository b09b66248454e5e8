package compiler

import "fmt"

// TokenKind identifies the category of a lexed token.
type TokenKind int

const (
	EndOfFile TokenKind = iota // sentinel: end of input
	EndOfLine                  // statement terminator ';'
	Identifier
	Number // decimal integer literal
	String // string literal "..."
	Keyword
	Operator // operator or punctuation, possibly multi-rune
)

var kindNames = [...]string{
	EndOfFile:  "EndOfFile",
	EndOfLine:  "EndOfLine",
	Identifier: "Identifier",
	Number:     "Number",
	String:     "String",
	Keyword:    "Keyword",
	Operator:   "Operator",
}

func (k TokenKind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token is a single lexical unit produced by Lex.
type Token struct {
	Kind   TokenKind
	Lexeme string // the exact source text that was matched
	Line   int    // 1-based source line
	Col    int    // 1-based source column
}

// IsKeyword reports whether t is the given keyword.
func (t Token) IsKeyword(kw string) bool {
	return t.Kind == Keyword && t.Lexeme == kw
}

// IsOp reports whether t is the given operator or punctuation symbol.
func (t Token) IsOp(sym string) bool {
	return t.Kind == Operator && t.Lexeme == sym
}

func (t Token) String() string {
	return fmt.Sprintf("%-10s %-14q  line %d:%d", t.Kind, t.Lexeme, t.Line, t.Col)
}
