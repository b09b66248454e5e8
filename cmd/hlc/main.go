package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"hyperlace/pkg/compiler"
)

// stderrTracer prints every stage-boundary event as it happens.
type stderrTracer struct {
	w io.Writer
}

func (t stderrTracer) MacroExpanded(name string, pass int) {
	fmt.Fprintf(t.w, "macro   pass %d: %s\n", pass, name)
}

func (t stderrTracer) TokenProduced(tok compiler.Token) {
	fmt.Fprintf(t.w, "token   %s\n", tok)
}

func (t stderrTracer) StatementParsed(s compiler.Stmt) {
	fmt.Fprintf(t.w, "parse   %s\n", s)
}

func (t stderrTracer) SymbolResolved(name string, sym *compiler.Symbol) {
	fmt.Fprintf(t.w, "resolve %s -> %s offset %d\n", name, sym.Kind, sym.Offset)
}

func (t stderrTracer) InstrEmitted(fn string, in compiler.Instr) {
	fmt.Fprintf(t.w, "emit    [%s] %s\n", fn, in)
}

func main() {
	trace := flag.Bool("trace", false, "print stage-boundary events to stderr")
	outDir := flag.String("o", "", "output directory (defaults to the source file's directory)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: hlc [-trace] [-o dir] file.hl\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	srcPath := flag.Arg(0)

	data, err := os.ReadFile(srcPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read error:", err)
		os.Exit(1)
	}

	opts := compiler.Options{}
	if *trace {
		opts.Trace = stderrTracer{w: os.Stderr}
	}

	res, err := compiler.Compile(string(data), opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	dir := *outDir
	if dir == "" {
		dir = filepath.Dir(srcPath)
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "output error:", err)
		os.Exit(1)
	}
	base := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))

	irPath := filepath.Join(dir, base+".fir")
	if err := os.WriteFile(irPath, []byte(res.Program.Listing()), 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "write error:", err)
		os.Exit(1)
	}
	asmPath := filepath.Join(dir, base+".asm")
	if err := os.WriteFile(asmPath, []byte(res.Assembly), 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "write error:", err)
		os.Exit(1)
	}

	fmt.Printf("wrote %s\n", irPath)
	fmt.Printf("wrote %s\n", asmPath)
}
