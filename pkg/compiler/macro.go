package compiler

import "strings"

// maxExpansionPasses bounds the fixed-point rewrite. A well-formed macro set
// converges in a handful of passes; hitting the bound means a cycle.
const maxExpansionPasses = 64

// Macro is one textual rewrite rule. Invocations look like |name| or
// |name(arg, arg)|; Params is empty for the zero-argument form.
type Macro struct {
	Name   string
	Params []string
	Body   string
}

// MacroTable maps macro names to their definitions. It is an explicit value
// threaded through expansion, never package state, so independent
// compilations cannot observe each other's definitions.
type MacroTable struct {
	defs map[string]Macro
}

func NewMacroTable() *MacroTable {
	return &MacroTable{defs: make(map[string]Macro)}
}

// Builtins returns the default macro set the driver installs when the caller
// supplies none.
func Builtins() *MacroTable {
	t := NewMacroTable()
	t.defs["inc"] = Macro{Name: "inc", Body: "x = x + 1;"}
	t.defs["dec"] = Macro{Name: "dec", Body: "x = x - 1;"}
	t.defs["reset"] = Macro{Name: "reset", Body: "x = 0;"}
	return t
}

// Define adds m to the table. Defining a name twice is an error.
func (t *MacroTable) Define(m Macro) error {
	if _, ok := t.defs[m.Name]; ok {
		return errorf(ErrMacroRedefinition, 0, 0, "macro %q is already defined", m.Name)
	}
	t.defs[m.Name] = m
	return nil
}

func (t *MacroTable) lookup(name string) (Macro, bool) {
	m, ok := t.defs[name]
	return m, ok
}

func (t *MacroTable) clone() *MacroTable {
	c := NewMacroTable()
	for name, m := range t.defs {
		c.defs[name] = m
	}
	return c
}

// ExpandMacros rewrites src until it contains no macro invocation syntax.
// Definition lines of the form
//
//	macro |name| template...
//	macro |name(a, b)| template...
//
// are collected into a copy of table (so the caller's table is untouched) and
// replaced by blank lines to keep line numbers stable. Expansion then repeats
// until a pass changes nothing; exceeding maxExpansionPasses means a macro
// cycle and is reported against the macro expanded on the final pass. A
// macro that expands to itself reaches a fixed point with invocation syntax
// still present, which is reported as a cycle too.
func ExpandMacros(src string, table *MacroTable, trace Tracer) (string, error) {
	if table == nil {
		table = NewMacroTable()
	} else {
		table = table.clone()
	}
	if trace == nil {
		trace = nopTracer{}
	}

	src, err := collectDefinitions(src, table)
	if err != nil {
		return "", err
	}

	last := ""
	for pass := 1; pass <= maxExpansionPasses; pass++ {
		out, expanded, err := expandOnce(src, table, trace, pass)
		if err != nil {
			return "", err
		}
		if out == src {
			if name, line, ok := findResidualInvocation(out); ok {
				return "", errorf(ErrMacroExpansion, line, 0, "macro %q expands to itself", name)
			}
			return out, nil
		}
		src = out
		last = expanded
	}
	return "", errorf(ErrMacroExpansion, 0, 0,
		"macro %q did not reach a fixed point after %d passes (cyclic expansion?)", last, maxExpansionPasses)
}

// collectDefinitions strips `macro |...| template` lines, adding each to
// table. The template runs to the end of the line.
func collectDefinitions(src string, table *MacroTable) (string, error) {
	lines := strings.Split(src, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "macro ") && !strings.HasPrefix(trimmed, "macro\t") {
			continue
		}
		rest := strings.TrimSpace(trimmed[len("macro"):])
		m, body, err := parseDefinitionHead(rest, i+1)
		if err != nil {
			return "", err
		}
		m.Body = strings.TrimSpace(body)
		if err := table.Define(m); err != nil {
			cerr := err.(*Error)
			cerr.Line = i + 1
			cerr.Col = 1
			return "", cerr
		}
		lines[i] = "" // keep line numbering of the remaining source intact
	}
	return strings.Join(lines, "\n"), nil
}

// parseDefinitionHead parses `|name| rest` or `|name(a, b)| rest`.
func parseDefinitionHead(s string, line int) (Macro, string, error) {
	if !strings.HasPrefix(s, "|") {
		return Macro{}, "", errorf(ErrMacroExpansion, line, 1, "malformed macro definition: expected '|' after 'macro'")
	}
	end := strings.Index(s[1:], "|")
	if end < 0 {
		return Macro{}, "", errorf(ErrMacroExpansion, line, 1, "malformed macro definition: missing closing '|'")
	}
	head := s[1 : 1+end]
	body := s[end+2:]

	name := head
	var params []string
	if open := strings.Index(head, "("); open >= 0 {
		if !strings.HasSuffix(head, ")") {
			return Macro{}, "", errorf(ErrMacroExpansion, line, 1, "malformed macro parameter list in %q", head)
		}
		name = head[:open]
		inner := head[open+1 : len(head)-1]
		if strings.TrimSpace(inner) != "" {
			for _, p := range strings.Split(inner, ",") {
				params = append(params, strings.TrimSpace(p))
			}
		}
	}
	if name == "" || !isIdentText(name) {
		return Macro{}, "", errorf(ErrMacroExpansion, line, 1, "invalid macro name %q", name)
	}
	return Macro{Name: name, Params: params}, body, nil
}

// expandOnce performs one left-to-right pass over src, replacing every
// |name| / |name(args)| invocation with its expansion. String literals and
// comments are copied untouched so bars inside them are never treated as
// invocation syntax. Returns the rewritten text and the name of the last
// macro expanded.
func expandOnce(src string, table *MacroTable, trace Tracer, pass int) (string, string, error) {
	var sb strings.Builder
	expanded := ""
	runes := []rune(src)
	n := len(runes)
	line := 1
	i := 0

	for i < n {
		r := runes[i]
		switch {
		case r == '\n':
			line++
			sb.WriteRune(r)
			i++
		case r == '"':
			j := skipStringLiteral(runes, i)
			sb.WriteString(string(runes[i:j]))
			i = j
		case r == '/' && i+1 < n && (runes[i+1] == '/' || runes[i+1] == '*'):
			j, crossed := skipComment(runes, i)
			sb.WriteString(string(runes[i:j]))
			line += crossed
			i = j
		case r == '|':
			name, args, next, err := parseInvocation(runes, i, line)
			if err != nil {
				return "", "", err
			}
			m, ok := table.lookup(name)
			if !ok {
				return "", "", errorf(ErrMacroExpansion, line, 0, "unresolved macro %q", name)
			}
			if len(args) != len(m.Params) {
				return "", "", errorf(ErrMacroExpansion, line, 0,
					"macro %q expects %d argument(s), got %d", name, len(m.Params), len(args))
			}
			sb.WriteString(bindArguments(m, args))
			trace.MacroExpanded(name, pass)
			expanded = name
			i = next
		default:
			sb.WriteRune(r)
			i++
		}
	}
	return sb.String(), expanded, nil
}

// parseInvocation reads |name| or |name(arg, ...)| starting at the opening
// bar and returns the index just past the closing bar. Arguments may contain
// nested parentheses; commas split only at depth one.
func parseInvocation(runes []rune, start, line int) (string, []string, int, error) {
	i := start + 1
	n := len(runes)

	nameStart := i
	for i < n && isIdentRune(runes[i]) {
		i++
	}
	name := string(runes[nameStart:i])
	if name == "" {
		return "", nil, 0, errorf(ErrMacroExpansion, line, 0, "malformed macro invocation: expected name after '|'")
	}

	var args []string
	if i < n && runes[i] == '(' {
		i++
		depth := 1
		var cur strings.Builder
		for i < n && depth > 0 {
			switch runes[i] {
			case '(':
				depth++
				cur.WriteRune(runes[i])
			case ')':
				depth--
				if depth > 0 {
					cur.WriteRune(runes[i])
				}
			case ',':
				if depth == 1 {
					args = append(args, strings.TrimSpace(cur.String()))
					cur.Reset()
				} else {
					cur.WriteRune(runes[i])
				}
			default:
				cur.WriteRune(runes[i])
			}
			i++
		}
		if depth != 0 {
			return "", nil, 0, errorf(ErrMacroExpansion, line, 0, "unterminated argument list in macro %q", name)
		}
		args = append(args, strings.TrimSpace(cur.String()))
		if len(args) == 1 && args[0] == "" {
			args = nil
		}
	}

	if i >= n || runes[i] != '|' {
		return "", nil, 0, errorf(ErrMacroExpansion, line, 0, "unterminated invocation of macro %q", name)
	}
	return name, args, i + 1, nil
}

// bindArguments substitutes the invocation arguments into the macro body on
// identifier boundaries. All parameters are substituted in a single pass so
// an earlier substitution can never be re-matched by a later parameter name.
func bindArguments(m Macro, args []string) string {
	if len(m.Params) == 0 {
		return m.Body
	}
	byName := make(map[string]string, len(m.Params))
	for i, p := range m.Params {
		byName[p] = args[i]
	}

	var sb strings.Builder
	runes := []rune(m.Body)
	n := len(runes)
	i := 0
	for i < n {
		r := runes[i]
		if r == '"' {
			j := skipStringLiteral(runes, i)
			sb.WriteString(string(runes[i:j]))
			i = j
			continue
		}
		if isIdentStartRune(r) {
			start := i
			for i < n && isIdentRune(runes[i]) {
				i++
			}
			word := string(runes[start:i])
			if repl, ok := byName[word]; ok {
				sb.WriteString(repl)
			} else {
				sb.WriteString(word)
			}
			continue
		}
		sb.WriteRune(r)
		i++
	}
	return sb.String()
}

// findResidualInvocation scans for invocation syntax still present after the
// rewrite reached a fixed point, which happens when a macro expands to
// itself. Strings and comments are skipped the same way expansion skips them.
func findResidualInvocation(src string) (string, int, bool) {
	runes := []rune(src)
	n := len(runes)
	line := 1
	i := 0
	for i < n {
		r := runes[i]
		switch {
		case r == '\n':
			line++
			i++
		case r == '"':
			i = skipStringLiteral(runes, i)
		case r == '/' && i+1 < n && (runes[i+1] == '/' || runes[i+1] == '*'):
			j, crossed := skipComment(runes, i)
			line += crossed
			i = j
		case r == '|':
			name, _, _, err := parseInvocation(runes, i, line)
			if err != nil {
				return "", line, true
			}
			return name, line, true
		default:
			i++
		}
	}
	return "", 0, false
}

// skipComment returns the index just past a // or /* */ comment starting at
// i, plus the number of newlines crossed. A line comment stops before its
// terminating newline; an unterminated block comment runs to the end of the
// input and is left for the lexer to report.
func skipComment(runes []rune, i int) (int, int) {
	n := len(runes)
	if runes[i+1] == '/' {
		for i < n && runes[i] != '\n' {
			i++
		}
		return i, 0
	}
	i += 2
	crossed := 0
	for i < n {
		if runes[i] == '\n' {
			crossed++
		}
		if runes[i] == '*' && i+1 < n && runes[i+1] == '/' {
			return i + 2, crossed
		}
		i++
	}
	return n, crossed
}

// skipStringLiteral returns the index just past a double-quoted literal
// starting at i, honouring backslash escapes.
func skipStringLiteral(runes []rune, i int) int {
	n := len(runes)
	i++ // opening quote
	for i < n {
		if runes[i] == '\\' && i+1 < n {
			i += 2
			continue
		}
		if runes[i] == '"' {
			return i + 1
		}
		i++
	}
	return n
}

func isIdentStartRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentRune(r rune) bool {
	return isIdentStartRune(r) || (r >= '0' && r <= '9')
}

func isIdentText(s string) bool {
	for i, r := range s {
		if i == 0 && !isIdentStartRune(r) {
			return false
		}
		if !isIdentRune(r) {
			return false
		}
	}
	return s != ""
}
