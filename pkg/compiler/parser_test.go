package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) ([]Stmt, *SymbolTable) {
	t.Helper()
	toks, err := Lex(src)
	require.NoError(t, err)
	syms := NewSymbolTable()
	stmts, err := Parse(toks, src, syms, nil)
	require.NoError(t, err)
	return stmts, syms
}

func parseErr(t *testing.T, src string) *Error {
	t.Helper()
	toks, err := Lex(src)
	require.NoError(t, err)
	_, err = Parse(toks, src, NewSymbolTable(), nil)
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	return cerr
}

func TestParseAssignmentSequence(t *testing.T) {
	stmts, _ := mustParse(t, "x = 5; y = x; z = x + y;")
	require.Len(t, stmts, 3)
	for _, s := range stmts {
		require.IsType(t, &Assignment{}, s)
	}
	require.Equal(t, "z = (x + y);", stmts[2].String())
}

func TestParsePrecedence(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{"r = 2 + 3 * 4;", "r = (2 + (3 * 4));"},
		{"r = (2 + 3) * 4;", "r = ((2 + 3) * 4);"},
		{"r = 1 + 2 - 3;", "r = ((1 + 2) - 3);"},
		{"r = a < b + 1;", "r = (a < (b + 1));"},
		{"r = a < b and b < c;", "r = ((a < b) and (b < c));"},
		{"r = x ^ 3 + 1;", "r = ((x ^ 3) + 1);"},
		{"r = -a * b;", "r = ((-a) * b);"},
		{"r = !a or b;", "r = ((!a) or b);"},
		{"r = a ? b : c ? d : e;", "r = (a ? b : (c ? d : e));"},
		{"r = a or b ? 1 : 2;", "r = ((a or b) ? 1 : 2);"},
	}
	for _, c := range cases {
		stmts, _ := mustParse(t, c.src)
		require.Len(t, stmts, 1, c.src)
		require.Equal(t, c.want, stmts[0].String(), c.src)
	}
}

func TestParseCompoundAssignmentDesugars(t *testing.T) {
	stmts, _ := mustParse(t, "x += 2 + 1;")
	require.Len(t, stmts, 1)
	// The whole right-hand side is grouped before the desugared operator
	// applies: x = x + (2 + 1).
	require.Equal(t, "x = (x + (2 + 1));", stmts[0].String())

	stmts, _ = mustParse(t, "x *= y;")
	require.Equal(t, "x = (x * y);", stmts[0].String())
}

func TestParseFunctionDef(t *testing.T) {
	stmts, syms := mustParse(t, "Start add(a, b) { return a + b; }")
	require.Len(t, stmts, 1)
	fn, ok := stmts[0].(*FunctionDef)
	require.True(t, ok)
	require.Equal(t, "add", fn.Name)
	require.Equal(t, []string{"a", "b"}, fn.Params)
	require.Len(t, fn.Body, 1)
	require.IsType(t, &ReturnStatement{}, fn.Body[0])

	sym, ok := syms.Global.Lookup("add")
	require.True(t, ok)
	require.Equal(t, SymFunction, sym.Kind)
	require.Equal(t, 2, sym.Arity)
}

func TestParseStructAndEnumDefs(t *testing.T) {
	stmts, syms := mustParse(t, "Init Vec2 { x; y; } Enum Color { Red; Green; Blue; }")
	require.Len(t, stmts, 2)

	st, ok := stmts[0].(*StructDef)
	require.True(t, ok)
	require.Equal(t, []string{"x", "y"}, st.Fields)

	en, ok := stmts[1].(*EnumDef)
	require.True(t, ok)
	require.Equal(t, []string{"Red", "Green", "Blue"}, en.Variants)

	desc, ok := syms.GetStruct("Vec2")
	require.True(t, ok)
	require.Equal(t, 16, desc.Size)
}

func TestParseStructInstantiationAndFieldAccess(t *testing.T) {
	stmts, _ := mustParse(t, "Init Vec2 { x; y; } v = Vec2(); v.x = 3;")
	require.Len(t, stmts, 3)

	asn := stmts[1].(*Assignment)
	require.IsType(t, &StructInstantiation{}, asn.Value)

	asn = stmts[2].(*Assignment)
	fa, ok := asn.Target.(*FieldAccess)
	require.True(t, ok)
	require.Equal(t, "x", fa.Field)
}

func TestParseEnumVariantAccess(t *testing.T) {
	stmts, _ := mustParse(t, "Enum Color { Red; Green; } c = Color.Green;")
	asn := stmts[1].(*Assignment)
	ev, ok := asn.Value.(*EnumVariantAccess)
	require.True(t, ok)
	require.Equal(t, "Color", ev.EnumName)
	require.Equal(t, "Green", ev.Variant)
}

func TestParseIfElse(t *testing.T) {
	stmts, _ := mustParse(t, "x = 1; if (x > 0) { x = 2; } else { x = 3; }")
	ifs := stmts[1].(*IfStatement)
	require.Len(t, ifs.Then, 1)
	require.NotNil(t, ifs.Else)
	require.Len(t, ifs.Else, 1)

	stmts, _ = mustParse(t, "x = 1; if (x > 0) { x = 2; }")
	ifs = stmts[1].(*IfStatement)
	require.Nil(t, ifs.Else)
}

func TestParseForLoop(t *testing.T) {
	stmts, _ := mustParse(t, "for (i = 0; i < 10; i += 1) { x = i; }")
	loop := stmts[0].(*ForLoop)
	require.Equal(t, "i = 0;", loop.Init.String())
	require.Equal(t, "(i < 10)", loop.Cond.String())
	require.Equal(t, "i = (i + 1);", loop.Post.String())
	require.Len(t, loop.Body, 1)
}

func TestParseBareReturn(t *testing.T) {
	stmts, _ := mustParse(t, "Start f() { return; }")
	fn := stmts[0].(*FunctionDef)
	ret := fn.Body[0].(*ReturnStatement)
	require.Nil(t, ret.Value)
}

func TestParseCallStatement(t *testing.T) {
	stmts, _ := mustParse(t, "Start f(a) { return a; } f(1);")
	es, ok := stmts[1].(*ExprStatement)
	require.True(t, ok)
	require.IsType(t, &FunctionCall{}, es.X)
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"nested function def", "Start f() { Start g() { } }", "only allowed at the top level"},
		{"nested struct def", "if (1) { Init V { x; } }", "only allowed at the top level"},
		{"missing semicolon", "x = 5", `expected ";"`},
		{"bare expression statement", "1 + 2;", "expected assignment or call statement"},
		{"assign to literal", "5 = x;", "cannot assign to"},
		{"unclosed block", "Start f() { x = 1;", "unclosed block"},
		{"for without assignment init", "Start f(a) { } for (f(1); 1; i = 1) { }", "for initializer must be an assignment"},
		{"struct instantiation with args", "Init V { x; } v = V(1);", "takes no arguments"},
		{"calling a literal", "x = 5(); ", "is not callable"},
		{"missing ternary colon", "x = 1 ? 2; ", `expected ":"`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cerr := parseErr(t, c.src)
			require.Equal(t, ErrParse, cerr.Kind)
			require.Contains(t, cerr.Message, c.want)
		})
	}
}

func TestParseErrorCarriesSourceSnippet(t *testing.T) {
	cerr := parseErr(t, "x = 1;\ny = ;\n")
	require.Equal(t, 2, cerr.Line)
	require.Contains(t, cerr.Message, "|> y = ;")
}

func TestParseDuplicateFunctionName(t *testing.T) {
	cerr := parseErr(t, "Start f() { } Start f() { }")
	require.Equal(t, ErrDuplicateDeclaration, cerr.Kind)
}
