package compiler

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"hyperlace/pkg/mdtest"
)

// TestDocumentedExamples compiles every case in docs/examples.md and checks
// its fences against the real pipeline output, so the document cannot drift
// from the implementation.
func TestDocumentedExamples(t *testing.T) {
	doc, err := os.ReadFile("../../docs/examples.md")
	require.NoError(t, err)

	cases, err := mdtest.Extract(string(doc))
	require.NoError(t, err)
	require.NotEmpty(t, cases)

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			res, cerr := Compile(c.Input, Options{})
			for _, check := range c.Checks {
				switch check.Kind {
				case mdtest.CheckError:
					require.Error(t, cerr)
					require.Contains(t, cerr.Error(), check.Content)
				case mdtest.CheckIR:
					require.NoError(t, cerr)
					require.Equal(t, check.Content,
						strings.TrimRight(res.Program.Listing(), "\n"))
				case mdtest.CheckAsm:
					require.NoError(t, cerr)
					for _, line := range strings.Split(check.Content, "\n") {
						line = strings.TrimSpace(line)
						if line == "" {
							continue
						}
						require.Contains(t, res.Assembly, line)
					}
				case mdtest.CheckExpanded:
					require.NoError(t, cerr)
					require.Equal(t, strings.TrimRight(check.Content, "\n"),
						strings.TrimRight(res.Expanded, "\n"))
				}
			}
		})
	}
}
