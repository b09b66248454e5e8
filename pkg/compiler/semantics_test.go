package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// analyze runs the front end through the semantic pass.
func analyze(t *testing.T, src string) ([]Stmt, *SymbolTable, error) {
	t.Helper()
	toks, err := Lex(src)
	require.NoError(t, err)
	syms := NewSymbolTable()
	stmts, err := Parse(toks, src, syms, nil)
	require.NoError(t, err)
	return stmts, syms, Analyze(stmts, syms, nil)
}

func analyzeErr(t *testing.T, src string) *Error {
	t.Helper()
	_, _, err := analyze(t, src)
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	return cerr
}

func TestAnalyzeValidProgram(t *testing.T) {
	_, _, err := analyze(t, `
Init Vec2 { x; y; }
Enum Color { Red; Green; }

Start add(a, b) {
	return a + b;
}

v = Vec2();
v.x = 3;
c = Color.Green;
r = add(v.x, c);
if (r > 0) {
	r = r - 1;
}
`)
	require.NoError(t, err)
}

func TestAnalyzeUndeclaredVariable(t *testing.T) {
	cerr := analyzeErr(t, "y = x;")
	require.Equal(t, ErrUndeclaredVariable, cerr.Kind)
	require.Contains(t, cerr.Message, `use of undeclared variable "x"`)
}

func TestAnalyzeSelfReferenceInFirstAssignment(t *testing.T) {
	// The right-hand side is resolved before the target is declared, so a
	// first assignment may not mention its own variable.
	cerr := analyzeErr(t, "x = x + 1;")
	require.Equal(t, ErrUndeclaredVariable, cerr.Kind)
}

func TestAnalyzeReturnPlacement(t *testing.T) {
	cerr := analyzeErr(t, "return 5;")
	require.Equal(t, ErrReturnOutsideFunction, cerr.Kind)

	cerr = analyzeErr(t, "x = 1; if (x) { return; }")
	require.Equal(t, ErrReturnOutsideFunction, cerr.Kind)

	_, _, err := analyze(t, "Start f(a) { if (a) { return 1; } return 0; }")
	require.NoError(t, err)
}

func TestAnalyzeCallErrors(t *testing.T) {
	cerr := analyzeErr(t, "x = missing(1);")
	require.Equal(t, ErrUndeclaredVariable, cerr.Kind)
	require.Contains(t, cerr.Message, `call to undeclared function "missing"`)

	cerr = analyzeErr(t, "Start f(a, b) { return a + b; } x = f(1);")
	require.Equal(t, ErrArityMismatch, cerr.Kind)
	require.Contains(t, cerr.Message, `expects 2 argument(s), got 1`)
}

func TestAnalyzeMemberErrors(t *testing.T) {
	cerr := analyzeErr(t, "Init Vec2 { x; y; } v = Vec2(); z = v.z;")
	require.Equal(t, ErrUnknownMember, cerr.Kind)
	require.Contains(t, cerr.Message, `struct "Vec2" has no field "z"`)

	cerr = analyzeErr(t, "x = 1; y = x.f;")
	require.Equal(t, ErrUnknownMember, cerr.Kind)

	cerr = analyzeErr(t, "Enum Color { Red; } c = Color.Teal;")
	require.Equal(t, ErrUnknownMember, cerr.Kind)
	require.Contains(t, cerr.Message, `enum "Color" has no variant "Teal"`)
}

func TestAnalyzeStructInstantiationPlacement(t *testing.T) {
	cerr := analyzeErr(t, "Init V { x; } y = 1 + V();")
	require.Equal(t, ErrParse, cerr.Kind)
	require.Contains(t, cerr.Message, "right-hand side of an assignment")

	cerr = analyzeErr(t, "Init V { x; } v = V(); v.x = V();")
	require.Equal(t, ErrParse, cerr.Kind)
	require.Contains(t, cerr.Message, "cannot assign")

	cerr = analyzeErr(t, "Init V { x; } y = 1; y = V();")
	require.Equal(t, ErrParse, cerr.Kind)
	require.Contains(t, cerr.Message, "not a V instance")
}

func TestAnalyzeBlockScopeEndsAtBrace(t *testing.T) {
	cerr := analyzeErr(t, "Start f(a) { if (a) { tmp = 1; } return tmp; }")
	require.Equal(t, ErrUndeclaredVariable, cerr.Kind)
	require.Contains(t, cerr.Message, `"tmp"`)
}

func TestAnalyzeFrameLayout(t *testing.T) {
	_, syms, err := analyze(t, "Start f(a) { x = 1; y = 2; }")
	require.NoError(t, err)

	frame, ok := syms.Frame("f")
	require.True(t, ok)
	slots := frame.Slots()
	require.Len(t, slots, 3)
	require.Equal(t, "a", slots[0].Name)
	require.Equal(t, -8, slots[0].Offset)
	require.Equal(t, "x", slots[1].Name)
	require.Equal(t, -16, slots[1].Offset)
	require.Equal(t, "y", slots[2].Name)
	require.Equal(t, -24, slots[2].Offset)
	require.Equal(t, 24, frame.Size())
}

func TestAnalyzeStructVariableSpansItsFields(t *testing.T) {
	_, syms, err := analyze(t, "Init Vec2 { x; y; } Start f() { v = Vec2(); n = 1; }")
	require.NoError(t, err)

	frame, ok := syms.Frame("f")
	require.True(t, ok)
	slots := frame.Slots()
	require.Len(t, slots, 2)
	require.Equal(t, -16, slots[0].Offset)
	require.Equal(t, 16, slots[0].Size)
	require.Equal(t, "Vec2", slots[0].Type)
	require.Equal(t, -24, slots[1].Offset)
}

func TestAnalyzeGlobalsVisibleInFunctions(t *testing.T) {
	_, syms, err := analyze(t, "g = 10; Start f() { return g + 1; }")
	require.NoError(t, err)

	globals := syms.Globals()
	require.Len(t, globals, 1)
	require.Equal(t, "g", globals[0].Name)
	require.True(t, globals[0].Global)
}

func TestAnalyzeGlobalAssignedInNestedBlockGetsStorage(t *testing.T) {
	// First assignment inside a top-level block still creates global storage,
	// even though the name goes out of scope at the closing brace.
	_, syms, err := analyze(t, "x = 1; if (x) { hidden = 2; }")
	require.NoError(t, err)

	globals := syms.Globals()
	require.Len(t, globals, 2)
	require.Equal(t, "hidden", globals[1].Name)
}
