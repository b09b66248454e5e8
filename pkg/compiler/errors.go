package compiler

import "fmt"

// ErrorKind classifies a compilation diagnostic.
type ErrorKind int

const (
	ErrMacroExpansion ErrorKind = iota
	ErrMacroRedefinition
	ErrLex
	ErrParse
	ErrDuplicateDeclaration
	ErrUndeclaredVariable
	ErrReturnOutsideFunction
	ErrUnknownMember
	ErrArityMismatch
	ErrFrameLayout // internal invariant violation, never expected from valid input
)

var errKindNames = [...]string{
	ErrMacroExpansion:        "MacroExpansionError",
	ErrMacroRedefinition:     "MacroRedefinitionError",
	ErrLex:                   "LexError",
	ErrParse:                 "ParseError",
	ErrDuplicateDeclaration:  "DuplicateDeclarationError",
	ErrUndeclaredVariable:    "UndeclaredVariableError",
	ErrReturnOutsideFunction: "ReturnOutsideFunctionError",
	ErrUnknownMember:         "UnknownMemberError",
	ErrArityMismatch:         "ArityMismatchError",
	ErrFrameLayout:           "FrameLayoutError",
}

func (k ErrorKind) String() string {
	if int(k) >= 0 && int(k) < len(errKindNames) {
		return errKindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is the single structured diagnostic produced by any stage of the
// pipeline. Line and Col are 1-based and zero when no position applies.
type Error struct {
	Kind    ErrorKind
	Message string
	Line    int
	Col     int
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d:%d: %s", e.Kind, e.Line, e.Col, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func errorf(kind ErrorKind, line, col int, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Line:    line,
		Col:     col,
	}
}
