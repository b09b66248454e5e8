package compiler

// Tracer receives stage-boundary events as the pipeline runs. Implementations
// decide what, if anything, to do with them; the compiler itself never writes
// to any output stream. The zero-value behaviour of the pipeline is no
// tracing at all.
type Tracer interface {
	MacroExpanded(name string, pass int)
	TokenProduced(tok Token)
	StatementParsed(s Stmt)
	SymbolResolved(name string, sym *Symbol)
	InstrEmitted(fn string, in Instr)
}

type nopTracer struct{}

func (nopTracer) MacroExpanded(string, int)      {}
func (nopTracer) TokenProduced(Token)            {}
func (nopTracer) StatementParsed(Stmt)           {}
func (nopTracer) SymbolResolved(string, *Symbol) {}
func (nopTracer) InstrEmitted(string, Instr)     {}
