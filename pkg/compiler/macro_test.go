package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpandBuiltinMacro(t *testing.T) {
	out, err := ExpandMacros("|inc|", Builtins(), nil)
	require.NoError(t, err)
	require.Equal(t, "x = x + 1;", out)
}

func TestExpandTwiceDuplicatesBody(t *testing.T) {
	// Two invocations on one line must yield two independent copies.
	out, err := ExpandMacros("|inc| |inc|", Builtins(), nil)
	require.NoError(t, err)
	require.Equal(t, "x = x + 1; x = x + 1;", out)
}

func TestExpandUserDefinedMacro(t *testing.T) {
	src := "macro |triple| y = y * 3;\n|triple|"
	out, err := ExpandMacros(src, NewMacroTable(), nil)
	require.NoError(t, err)
	require.Equal(t, "\ny = y * 3;", out)
}

func TestExpandMacroWithArguments(t *testing.T) {
	src := "macro |add(a, b)| r = a + b;\n|add(1, 2)|"
	out, err := ExpandMacros(src, NewMacroTable(), nil)
	require.NoError(t, err)
	require.Equal(t, "\nr = 1 + 2;", out)
}

func TestExpandArgumentsOnIdentifierBoundaries(t *testing.T) {
	// The parameter `a` must not match inside `apple` or `area51`.
	src := "macro |set(a)| apple = a; area51 = a;\n|set(9)|"
	out, err := ExpandMacros(src, NewMacroTable(), nil)
	require.NoError(t, err)
	require.Equal(t, "\napple = 9; area51 = 9;", out)
}

func TestExpandNestedParensInArgument(t *testing.T) {
	src := "macro |sq(v)| r = v * v;\n|sq((1 + 2))|"
	out, err := ExpandMacros(src, NewMacroTable(), nil)
	require.NoError(t, err)
	require.Equal(t, "\nr = (1 + 2) * (1 + 2);", out)
}

func TestExpandReachesFixedPointAcrossPasses(t *testing.T) {
	// bump expands to an invocation of inc, which resolves on the next pass.
	src := "macro |bump| |inc|\n|bump|"
	out, err := ExpandMacros(src, Builtins(), nil)
	require.NoError(t, err)
	require.Equal(t, "\nx = x + 1;", out)
}

func TestExpandPreservesLineNumbers(t *testing.T) {
	src := "macro |one| a = 1;\nmacro |two| b = 2;\n|one|\n|two|"
	out, err := ExpandMacros(src, NewMacroTable(), nil)
	require.NoError(t, err)
	require.Equal(t, len(strings.Split(src, "\n")), len(strings.Split(out, "\n")))
	require.Equal(t, "\n\na = 1;\nb = 2;", out)
}

func TestExpandLeavesStringLiteralsAlone(t *testing.T) {
	out, err := ExpandMacros(`s = "|inc|";`, Builtins(), nil)
	require.NoError(t, err)
	require.Equal(t, `s = "|inc|";`, out)
}

func TestExpandRedefinitionFails(t *testing.T) {
	_, err := ExpandMacros("macro |inc| y = 1;", Builtins(), nil)
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, ErrMacroRedefinition, cerr.Kind)
	require.Equal(t, 1, cerr.Line)
}

func TestExpandUnresolvedMacroFails(t *testing.T) {
	_, err := ExpandMacros("|nope|", NewMacroTable(), nil)
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, ErrMacroExpansion, cerr.Kind)
	require.Contains(t, err.Error(), `unresolved macro "nope"`)
}

func TestExpandArityMismatchFails(t *testing.T) {
	src := "macro |pair(a, b)| r = a + b;\n|pair(1)|"
	_, err := ExpandMacros(src, NewMacroTable(), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "expects 2 argument(s), got 1")
}

func TestExpandCyclicMacroHitsPassLimit(t *testing.T) {
	// grow rewrites to a strictly larger text every pass, so the rewrite can
	// never converge and must stop at the pass bound.
	src := "macro |grow| 1 + |grow|\n|grow|"
	_, err := ExpandMacros(src, NewMacroTable(), nil)
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, ErrMacroExpansion, cerr.Kind)
	require.Contains(t, err.Error(), "fixed point")
}

func TestExpandSelfExpandingMacroFails(t *testing.T) {
	// echo rewrites to its own invocation, so the text converges with the
	// invocation still present. That is a cycle, not a success.
	src := "macro |echo| |echo|\n|echo|"
	_, err := ExpandMacros(src, NewMacroTable(), nil)
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, ErrMacroExpansion, cerr.Kind)
	require.Contains(t, err.Error(), `macro "echo" expands to itself`)
	require.Equal(t, 2, cerr.Line)
}

func TestExpandLeavesCommentsAlone(t *testing.T) {
	src := "// a | b\nx = 1;\n/* pipe | inside */\n|inc|"
	out, err := ExpandMacros(src, Builtins(), nil)
	require.NoError(t, err)
	require.Equal(t, "// a | b\nx = 1;\n/* pipe | inside */\nx = x + 1;", out)
}

func TestExpandDoesNotMutateCallerTable(t *testing.T) {
	table := NewMacroTable()
	_, err := ExpandMacros("macro |local| a = 1;\n|local|", table, nil)
	require.NoError(t, err)
	_, ok := table.lookup("local")
	require.False(t, ok, "definitions must stay in the expansion's private copy")
}

func TestDefineRejectsDuplicate(t *testing.T) {
	table := NewMacroTable()
	require.NoError(t, table.Define(Macro{Name: "m", Body: "a = 1;"}))
	err := table.Define(Macro{Name: "m", Body: "a = 2;"})
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, ErrMacroRedefinition, cerr.Kind)
}
