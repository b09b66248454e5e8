// Package mdtest extracts executable language examples from Markdown
// documents. A document holds cases introduced by a heading of the form
// `Test: <name>`, followed by one `hyperlace` input fence and one or more
// check fences asserting on a compilation artifact.
package mdtest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// inputFence is the fence language carrying the source under test.
const inputFence = "hyperlace"

// CheckKind identifies what a check fence asserts on.
type CheckKind string

const (
	// CheckIR matches the linear IR listing of the compiled input.
	CheckIR CheckKind = "ir"
	// CheckAsm requires each of its lines to appear in the assembly output.
	CheckAsm CheckKind = "asm"
	// CheckError requires compilation to fail with the given message fragment.
	CheckError CheckKind = "error"
	// CheckExpanded matches the macro-expanded source text.
	CheckExpanded CheckKind = "expanded"
)

var checkKinds = map[string]CheckKind{
	string(CheckIR):       CheckIR,
	string(CheckAsm):      CheckAsm,
	string(CheckError):    CheckError,
	string(CheckExpanded): CheckExpanded,
}

// Check is one assertion fence of a case.
type Check struct {
	Kind    CheckKind
	Content string
}

// Case is one extracted example: a name, the source input, and its checks.
type Case struct {
	Name   string
	Input  string
	Checks []Check
}

// Extract parses doc as Markdown and returns its cases in document order.
// A case without an input fence, a case without checks, a fence with an
// unknown language, and a second input fence within one case are all errors.
func Extract(doc string) ([]Case, error) {
	source := []byte(doc)
	root := goldmark.New().Parser().Parse(text.NewReader(source))

	var cases []Case
	var cur *Case
	seal := func() error {
		if cur == nil {
			return nil
		}
		if cur.Input == "" {
			return fmt.Errorf("case %q has no %s input fence", cur.Name, inputFence)
		}
		if len(cur.Checks) == 0 {
			return fmt.Errorf("case %q has no check fences", cur.Name)
		}
		cases = append(cases, *cur)
		cur = nil
		return nil
	}

	err := ast.Walk(root, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := node.(type) {
		case *ast.Heading:
			title := nodeText(n, source)
			name, ok := strings.CutPrefix(title, "Test: ")
			if !ok {
				return ast.WalkContinue, nil
			}
			if err := seal(); err != nil {
				return ast.WalkStop, err
			}
			cur = &Case{Name: name}

		case *ast.FencedCodeBlock:
			lang := string(n.Language(source))
			if lang == "" {
				// Plain code blocks are illustration, not assertions.
				return ast.WalkContinue, nil
			}
			body := strings.TrimRight(fenceText(n, source), "\n")
			if cur == nil {
				return ast.WalkStop, fmt.Errorf("%s fence appears before the first case heading", lang)
			}
			if lang == inputFence {
				if cur.Input != "" {
					return ast.WalkStop, fmt.Errorf("case %q has more than one input fence", cur.Name)
				}
				cur.Input = body
				return ast.WalkContinue, nil
			}
			kind, ok := checkKinds[lang]
			if !ok {
				return ast.WalkStop, fmt.Errorf("case %q: unknown fence language %q", cur.Name, lang)
			}
			cur.Checks = append(cur.Checks, Check{Kind: kind, Content: body})
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	if err := seal(); err != nil {
		return nil, err
	}
	return cases, nil
}

// nodeText collects the plain text under a node.
func nodeText(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if t, ok := n.(*ast.Text); ok {
				buf.Write(t.Segment.Value(source))
			}
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

// fenceText collects the raw body of a fenced code block.
func fenceText(block *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer
	for i := 0; i < block.Lines().Len(); i++ {
		seg := block.Lines().At(i)
		buf.Write(seg.Value(source))
	}
	return buf.String()
}
