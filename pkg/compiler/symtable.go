package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// slotSize is the storage unit for one scalar local: everything is a 64-bit
// integer or a pointer-sized value.
const slotSize = 8

// SymbolKind distinguishes what a name denotes.
type SymbolKind int

const (
	SymVariable SymbolKind = iota
	SymFunction
	SymStructType
	SymEnumType
)

var symKindNames = [...]string{
	SymVariable:   "variable",
	SymFunction:   "function",
	SymStructType: "struct",
	SymEnumType:   "enum",
}

func (k SymbolKind) String() string {
	if int(k) >= 0 && int(k) < len(symKindNames) {
		return symKindNames[k]
	}
	return fmt.Sprintf("SymbolKind(%d)", int(k))
}

// Symbol is one named entity. For local variables Offset is the negative
// rbp-relative frame offset of the slot base; for globals it is unused and
// Global is set. Type names the struct type for struct-instance variables
// and is empty for plain integer variables. Arity is meaningful for
// functions only.
type Symbol struct {
	Name   string
	Kind   SymbolKind
	Type   string
	Offset int
	Size   int
	Arity  int
	Global bool
}

// Scope maps names to symbols and links back to its parent. The chain runs
// global -> function -> nested block; lookup walks innermost to outermost and
// the first match wins, so inner declarations shadow outer ones.
type Scope struct {
	parent *Scope
	names  map[string]*Symbol
	order  []string // declaration order, for deterministic iteration
}

func NewScope(parent *Scope) *Scope {
	return &Scope{parent: parent, names: make(map[string]*Symbol)}
}

// Declare binds sym in this scope. Redeclaring a name already present in the
// same scope is an error; shadowing an outer scope is not.
func (s *Scope) Declare(sym *Symbol) error {
	if _, ok := s.names[sym.Name]; ok {
		return errorf(ErrDuplicateDeclaration, 0, 0, "%s %q is already declared in this scope", sym.Kind, sym.Name)
	}
	s.names[sym.Name] = sym
	s.order = append(s.order, sym.Name)
	return nil
}

// Lookup walks the scope chain innermost-first.
func (s *Scope) Lookup(name string) (*Symbol, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if sym, ok := sc.names[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// LookupLocal checks this scope only.
func (s *Scope) LookupLocal(name string) (*Symbol, bool) {
	sym, ok := s.names[name]
	return sym, ok
}

// Symbols returns this scope's symbols in declaration order.
func (s *Scope) Symbols() []*Symbol {
	out := make([]*Symbol, len(s.order))
	for i, name := range s.order {
		out[i] = s.names[name]
	}
	return out
}

// StructType is the fixed descriptor of a struct declaration: each field
// occupies one slot at a byte offset assigned in declaration order.
type StructType struct {
	Name   string
	Fields []string
	Size   int

	offsets map[string]int
}

func newStructType(name string, fields []string) (*StructType, error) {
	st := &StructType{Name: name, Fields: fields, offsets: make(map[string]int, len(fields))}
	for i, f := range fields {
		if _, ok := st.offsets[f]; ok {
			return nil, errorf(ErrDuplicateDeclaration, 0, 0, "field %q is declared twice in struct %q", f, name)
		}
		st.offsets[f] = i * slotSize
	}
	st.Size = len(fields) * slotSize
	return st, nil
}

// FieldOffset returns the byte offset of a field within an instance.
func (st *StructType) FieldOffset(field string) (int, bool) {
	off, ok := st.offsets[field]
	return off, ok
}

// EnumType is the fixed descriptor of an enum declaration: variants get
// zero-based ordinals in declaration order.
type EnumType struct {
	Name     string
	Variants []string

	ordinals map[string]int
}

func newEnumType(name string, variants []string) (*EnumType, error) {
	et := &EnumType{Name: name, Variants: variants, ordinals: make(map[string]int, len(variants))}
	for i, v := range variants {
		if _, ok := et.ordinals[v]; ok {
			return nil, errorf(ErrDuplicateDeclaration, 0, 0, "variant %q is declared twice in enum %q", v, name)
		}
		et.ordinals[v] = i
	}
	return et, nil
}

// Ordinal returns the declaration-ordered zero-based ordinal of a variant.
func (et *EnumType) Ordinal(variant string) (int, bool) {
	ord, ok := et.ordinals[variant]
	return ord, ok
}

// Frame is the stack layout of one function: slots are handed out in
// declaration order from the frame base, growing toward lower addresses to
// mirror the downward-growing stack. After Seal the layout is immutable.
type Frame struct {
	Fn     string
	size   int
	slots  []*Symbol
	sealed bool
}

func NewFrame(fn string) *Frame {
	return &Frame{Fn: fn}
}

// Alloc reserves size bytes for sym and assigns its offset. Sizes are
// rounded up to the slot alignment.
func (f *Frame) Alloc(sym *Symbol, size int) error {
	if f.sealed {
		return errorf(ErrFrameLayout, 0, 0, "frame of %q is sealed, cannot allocate %q", f.Fn, sym.Name)
	}
	if size <= 0 {
		size = slotSize
	}
	if rem := size % slotSize; rem != 0 {
		size += slotSize - rem
	}
	f.size += size
	sym.Offset = -f.size
	sym.Size = size
	f.slots = append(f.slots, sym)
	return nil
}

// Seal finalizes the layout and verifies the slot invariants: offsets unique
// and strictly decreasing in declaration order. A violation is an internal
// error, never the result of valid input.
func (f *Frame) Seal() error {
	prev := 0
	for _, sym := range f.slots {
		if sym.Offset >= prev {
			return errorf(ErrFrameLayout, 0, 0, "frame of %q: offset %d of %q does not decrease", f.Fn, sym.Offset, sym.Name)
		}
		prev = sym.Offset
	}
	f.sealed = true
	return nil
}

// Size is the total slot bytes below the frame base, excluding temporaries.
func (f *Frame) Size() int { return f.size }

// Slots returns the frame's variables in declaration order.
func (f *Frame) Slots() []*Symbol { return f.slots }

// SymbolTable bundles the global scope, the type descriptors, and the
// per-function frames. It is an explicit value created per compilation run;
// the global scope persists for the whole run while block scopes come and go
// during analysis.
type SymbolTable struct {
	Global *Scope

	structs     map[string]*StructType
	enums       map[string]*EnumType
	frames      map[string]*Frame
	frameOrder  []string
	globalVars  map[string]*Symbol
	globalOrder []string
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		Global:     NewScope(nil),
		structs:    make(map[string]*StructType),
		enums:      make(map[string]*EnumType),
		frames:     make(map[string]*Frame),
		globalVars: make(map[string]*Symbol),
	}
}

// DefineStruct registers a struct declaration: a global type symbol plus its
// field-offset descriptor.
func (t *SymbolTable) DefineStruct(name string, fields []string) error {
	st, err := newStructType(name, fields)
	if err != nil {
		return err
	}
	if err := t.Global.Declare(&Symbol{Name: name, Kind: SymStructType, Size: st.Size}); err != nil {
		return err
	}
	t.structs[name] = st
	return nil
}

// GetStruct returns the descriptor for a declared struct type.
func (t *SymbolTable) GetStruct(name string) (*StructType, bool) {
	st, ok := t.structs[name]
	return st, ok
}

// DefineEnum registers an enum declaration: a global type symbol plus its
// variant-ordinal descriptor.
func (t *SymbolTable) DefineEnum(name string, variants []string) error {
	et, err := newEnumType(name, variants)
	if err != nil {
		return err
	}
	if err := t.Global.Declare(&Symbol{Name: name, Kind: SymEnumType}); err != nil {
		return err
	}
	t.enums[name] = et
	return nil
}

// GetEnum returns the descriptor for a declared enum type.
func (t *SymbolTable) GetEnum(name string) (*EnumType, bool) {
	et, ok := t.enums[name]
	return et, ok
}

// DefineFunction registers a global function symbol.
func (t *SymbolTable) DefineFunction(name string, arity int) error {
	return t.Global.Declare(&Symbol{Name: name, Kind: SymFunction, Arity: arity, Global: true})
}

// AddFrame creates the frame for a function, in definition order.
func (t *SymbolTable) AddFrame(fn string) *Frame {
	f := NewFrame(fn)
	t.frames[fn] = f
	t.frameOrder = append(t.frameOrder, fn)
	return f
}

// Frame returns the finalized frame of a function.
func (t *SymbolTable) Frame(fn string) (*Frame, bool) {
	f, ok := t.frames[fn]
	return f, ok
}

// DeclareGlobalVar binds a global variable. Top-level variables share one
// namespace even when first assigned inside a nested top-level block, so a
// name already known globally is reused rather than redeclared.
func (t *SymbolTable) DeclareGlobalVar(scope *Scope, name, typ string, size int) (*Symbol, error) {
	if sym, ok := t.globalVars[name]; ok {
		if _, visible := scope.Lookup(name); !visible {
			if err := scope.Declare(sym); err != nil {
				return nil, err
			}
		}
		return sym, nil
	}
	sym := &Symbol{Name: name, Kind: SymVariable, Type: typ, Size: size, Global: true}
	if err := scope.Declare(sym); err != nil {
		return nil, err
	}
	t.globalVars[name] = sym
	t.globalOrder = append(t.globalOrder, name)
	return sym, nil
}

// Globals returns the global variables in declaration order.
func (t *SymbolTable) Globals() []*Symbol {
	out := make([]*Symbol, len(t.globalOrder))
	for i, name := range t.globalOrder {
		out[i] = t.globalVars[name]
	}
	return out
}

// String returns a deterministically ordered dump of the table.
func (t *SymbolTable) String() string {
	var sb strings.Builder
	sb.WriteString("Globals:\n")
	for _, sym := range t.Global.Symbols() {
		fmt.Fprintf(&sb, "  %-20s %s\n", sym.Name, sym.Kind)
	}
	if len(t.structs) > 0 {
		sb.WriteString("Structs:\n")
		names := make([]string, 0, len(t.structs))
		for name := range t.structs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			st := t.structs[name]
			fmt.Fprintf(&sb, "  %s (size %d): %v\n", name, st.Size, st.Fields)
		}
	}
	if len(t.enums) > 0 {
		sb.WriteString("Enums:\n")
		names := make([]string, 0, len(t.enums))
		for name := range t.enums {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&sb, "  %s: %v\n", name, t.enums[name].Variants)
		}
	}
	for _, fn := range t.frameOrder {
		f := t.frames[fn]
		fmt.Fprintf(&sb, "Frame %s (%d bytes):\n", fn, f.size)
		for _, sym := range f.slots {
			fmt.Fprintf(&sb, "  %-20s offset %d (size %d)\n", sym.Name, sym.Offset, sym.Size)
		}
	}
	return sb.String()
}
