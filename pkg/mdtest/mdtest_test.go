package mdtest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractCases(t *testing.T) {
	doc := "# Examples\n" +
		"\n" +
		"## Test: straight line\n" +
		"\n" +
		"```hyperlace\n" +
		"x = 5;\n" +
		"```\n" +
		"\n" +
		"```ir\n" +
		"_start:\n" +
		"  STORE x <- NUM(5)\n" +
		"```\n" +
		"\n" +
		"## Test: bad program\n" +
		"\n" +
		"```hyperlace\n" +
		"y = x;\n" +
		"```\n" +
		"\n" +
		"```error\n" +
		"use of undeclared variable\n" +
		"```\n"

	cases, err := Extract(doc)
	require.NoError(t, err)
	require.Len(t, cases, 2)

	require.Equal(t, "straight line", cases[0].Name)
	require.Equal(t, "x = 5;", cases[0].Input)
	require.Len(t, cases[0].Checks, 1)
	require.Equal(t, CheckIR, cases[0].Checks[0].Kind)
	require.Equal(t, "_start:\n  STORE x <- NUM(5)", cases[0].Checks[0].Content)

	require.Equal(t, "bad program", cases[1].Name)
	require.Equal(t, CheckError, cases[1].Checks[0].Kind)
}

func TestExtractIgnoresPlainFences(t *testing.T) {
	doc := "Intro prose.\n\n```\njust an illustration\n```\n\n" +
		"## Test: one\n\n```hyperlace\nx = 1;\n```\n\n```asm\nx dq 0\n```\n"
	cases, err := Extract(doc)
	require.NoError(t, err)
	require.Len(t, cases, 1)
}

func TestExtractErrors(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{
			"fence before heading",
			"```hyperlace\nx = 1;\n```\n",
			"before the first case heading",
		},
		{
			"missing input",
			"## Test: no input\n\n```ir\n_start:\n```\n",
			"has no hyperlace input fence",
		},
		{
			"missing checks",
			"## Test: no checks\n\n```hyperlace\nx = 1;\n```\n",
			"has no check fences",
		},
		{
			"duplicate input",
			"## Test: dup\n\n```hyperlace\nx = 1;\n```\n\n```hyperlace\ny = 2;\n```\n",
			"more than one input fence",
		},
		{
			"unknown language",
			"## Test: u\n\n```hyperlace\nx = 1;\n```\n\n```wat\n?\n```\n",
			`unknown fence language "wat"`,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Extract(c.doc)
			require.Error(t, err)
			require.Contains(t, err.Error(), c.want)
		})
	}
}
