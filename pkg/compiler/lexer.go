package compiler

import "unicode"

// keywords is the reserved-word set; classification as a keyword always wins
// over classification as an identifier.
var keywords = map[string]bool{
	"Start":  true, // function definition
	"Init":   true, // struct definition
	"Enum":   true, // enum definition
	"if":     true,
	"else":   true,
	"while":  true,
	"for":    true,
	"return": true,
	"and":    true,
	"or":     true,
	"true":   true,
	"false":  true,
}

// twoRuneSymbols are matched before any single-rune symbol (longest match
// first). Order within the slice is irrelevant; all entries are length two.
var twoRuneSymbols = []string{
	"==", "!=", "<=", ">=", "+=", "-=", "*=", "/=", "%=",
}

const singleRuneSymbols = "+-*/%^=<>!?:(){},.|"

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src  []rune
	pos  int // index of the next rune to consume
	line int // current 1-based source line
	col  int // current 1-based source column
}

// Lex converts fully macro-expanded source text into a token sequence ending
// in exactly one EndOfFile token.
func Lex(src string) ([]Token, error) {
	l := &Lexer{src: []rune(src), line: 1, col: 1}
	var tokens []Token
	for {
		tok, err := l.scan()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == EndOfFile {
			return tokens, nil
		}
	}
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peek2() rune {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

// advance consumes one rune and returns it.
func (l *Lexer) advance() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.src) && unicode.IsSpace(l.peek()) {
		l.advance()
	}
}

// skipLineComment discards everything up to end-of-line. The opening "//"
// must already have been consumed.
func (l *Lexer) skipLineComment() {
	for l.pos < len(l.src) && l.peek() != '\n' {
		l.advance()
	}
}

// skipBlockComment discards everything up to and including the closing "*/".
// The opening "/*" must already have been consumed.
func (l *Lexer) skipBlockComment() error {
	startLine, startCol := l.line, l.col
	for l.pos < len(l.src) {
		if l.peek() == '*' && l.peek2() == '/' {
			l.advance()
			l.advance()
			return nil
		}
		l.advance()
	}
	return errorf(ErrLex, startLine, startCol, "unterminated block comment")
}

// scan produces the next token, skipping whitespace and comments first.
func (l *Lexer) scan() (Token, error) {
	for {
		l.skipWhitespace()
		if l.peek() == '/' && l.peek2() == '/' {
			l.advance()
			l.advance()
			l.skipLineComment()
			continue
		}
		if l.peek() == '/' && l.peek2() == '*' {
			l.advance()
			l.advance()
			if err := l.skipBlockComment(); err != nil {
				return Token{}, err
			}
			continue
		}
		break
	}

	line, col := l.line, l.col
	r := l.peek()
	switch {
	case r == 0:
		return Token{Kind: EndOfFile, Line: line, Col: col}, nil
	case r == ';':
		l.advance()
		return Token{Kind: EndOfLine, Lexeme: ";", Line: line, Col: col}, nil
	case unicode.IsDigit(r):
		return l.scanNumber(), nil
	case r == '"':
		return l.scanString()
	case unicode.IsLetter(r) || r == '_':
		return l.scanIdent(), nil
	default:
		return l.scanSymbol()
	}
}

func (l *Lexer) scanNumber() Token {
	line, col := l.line, l.col
	start := l.pos
	for l.pos < len(l.src) && unicode.IsDigit(l.peek()) {
		l.advance()
	}
	return Token{Kind: Number, Lexeme: string(l.src[start:l.pos]), Line: line, Col: col}
}

// scanString collects a double-quoted literal, decoding the escape sequences
// \n \t \\ \" and \0. The stored lexeme is the decoded value.
func (l *Lexer) scanString() (Token, error) {
	line, col := l.line, l.col
	l.advance() // opening quote
	var value []rune
	for {
		if l.pos >= len(l.src) || l.peek() == '\n' {
			return Token{}, errorf(ErrLex, line, col, "unterminated string literal")
		}
		r := l.advance()
		if r == '"' {
			return Token{Kind: String, Lexeme: string(value), Line: line, Col: col}, nil
		}
		if r != '\\' {
			value = append(value, r)
			continue
		}
		esc := l.advance()
		switch esc {
		case 'n':
			value = append(value, '\n')
		case 't':
			value = append(value, '\t')
		case '\\':
			value = append(value, '\\')
		case '"':
			value = append(value, '"')
		case '0':
			value = append(value, 0)
		default:
			return Token{}, errorf(ErrLex, l.line, l.col-1, "unknown escape sequence '\\%c'", esc)
		}
	}
}

// scanIdent collects an identifier or keyword token.
func (l *Lexer) scanIdent() Token {
	line, col := l.line, l.col
	start := l.pos
	for l.pos < len(l.src) {
		r := l.peek()
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			break
		}
		l.advance()
	}
	lexeme := string(l.src[start:l.pos])
	kind := Identifier
	if keywords[lexeme] {
		kind = Keyword
	}
	return Token{Kind: kind, Lexeme: lexeme, Line: line, Col: col}
}

// scanSymbol matches the longest operator at the current position: the
// two-rune table first, then the single-rune set.
func (l *Lexer) scanSymbol() (Token, error) {
	line, col := l.line, l.col
	pair := string([]rune{l.peek(), l.peek2()})
	for _, sym := range twoRuneSymbols {
		if pair == sym {
			l.advance()
			l.advance()
			return Token{Kind: Operator, Lexeme: sym, Line: line, Col: col}, nil
		}
	}
	r := l.peek()
	for _, s := range singleRuneSymbols {
		if r == s {
			l.advance()
			return Token{Kind: Operator, Lexeme: string(r), Line: line, Col: col}, nil
		}
	}
	return Token{}, errorf(ErrLex, line, col, "unrecognized character %q", r)
}
