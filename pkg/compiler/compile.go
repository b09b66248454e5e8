package compiler

// Options configures a compilation run. The zero value compiles with the
// built-in macro set and no tracing.
type Options struct {
	// Macros seeds the macro table; nil means the built-in set only.
	Macros *MacroTable
	// Trace receives stage-boundary events; nil disables tracing.
	Trace Tracer
}

// Result holds every artifact of a successful compilation.
type Result struct {
	// Expanded is the source text after macro expansion.
	Expanded string
	// Statements is the analyzed program, top-level statement order preserved.
	Statements []Stmt
	// Symbols is the populated symbol table.
	Symbols *SymbolTable
	// Program is the linear IR.
	Program *IRProgram
	// Assembly is the NASM x86-64 rendering of Program.
	Assembly string
}

// Compile runs the full pipeline over one source text: macro expansion,
// lexing, parsing, semantic analysis, IR emission, and code generation.
// The first failing stage aborts the run and its error is returned as-is.
func Compile(src string, opts Options) (*Result, error) {
	trace := opts.Trace
	if trace == nil {
		trace = nopTracer{}
	}
	macros := opts.Macros
	if macros == nil {
		macros = Builtins()
	}

	expanded, err := ExpandMacros(src, macros, trace)
	if err != nil {
		return nil, err
	}

	tokens, err := Lex(expanded)
	if err != nil {
		return nil, err
	}
	for _, tok := range tokens {
		trace.TokenProduced(tok)
	}

	syms := NewSymbolTable()
	stmts, err := Parse(tokens, expanded, syms, trace)
	if err != nil {
		return nil, err
	}

	if err := Analyze(stmts, syms, trace); err != nil {
		return nil, err
	}

	prog, err := EmitIR(stmts, syms, trace)
	if err != nil {
		return nil, err
	}

	assembly, err := Generate(prog, syms)
	if err != nil {
		return nil, err
	}

	return &Result{
		Expanded:   expanded,
		Statements: stmts,
		Symbols:    syms,
		Program:    prog,
		Assembly:   assembly,
	}, nil
}
