package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameOffsetsAreDistinctAndDecreasing(t *testing.T) {
	f := NewFrame("f")
	names := []string{"a", "b", "c", "d"}
	for _, n := range names {
		require.NoError(t, f.Alloc(&Symbol{Name: n, Kind: SymVariable}, slotSize))
	}
	require.NoError(t, f.Seal())

	slots := f.Slots()
	require.Len(t, slots, 4)
	require.Equal(t, -8, slots[0].Offset)
	require.Equal(t, -16, slots[1].Offset)
	require.Equal(t, -24, slots[2].Offset)
	require.Equal(t, -32, slots[3].Offset)
	require.Equal(t, 32, f.Size())
}

func TestFrameStructSlotSpansAllFields(t *testing.T) {
	f := NewFrame("f")
	v := &Symbol{Name: "v", Kind: SymVariable, Type: "Vec2"}
	require.NoError(t, f.Alloc(v, 16))
	after := &Symbol{Name: "n", Kind: SymVariable}
	require.NoError(t, f.Alloc(after, slotSize))
	require.NoError(t, f.Seal())

	require.Equal(t, -16, v.Offset)
	require.Equal(t, 16, v.Size)
	require.Equal(t, -24, after.Offset)
}

func TestFrameRejectsAllocAfterSeal(t *testing.T) {
	f := NewFrame("f")
	require.NoError(t, f.Seal())
	err := f.Alloc(&Symbol{Name: "x"}, slotSize)
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, ErrFrameLayout, cerr.Kind)
}

func TestScopeShadowing(t *testing.T) {
	outer := NewScope(nil)
	require.NoError(t, outer.Declare(&Symbol{Name: "x", Kind: SymVariable, Offset: -8}))

	inner := NewScope(outer)
	sym, ok := inner.Lookup("x")
	require.True(t, ok)
	require.Equal(t, -8, sym.Offset)

	// An inner declaration shadows without disturbing the outer binding.
	require.NoError(t, inner.Declare(&Symbol{Name: "x", Kind: SymVariable, Offset: -16}))
	sym, ok = inner.Lookup("x")
	require.True(t, ok)
	require.Equal(t, -16, sym.Offset)

	sym, ok = outer.Lookup("x")
	require.True(t, ok)
	require.Equal(t, -8, sym.Offset)
}

func TestScopeRejectsDuplicateInSameScope(t *testing.T) {
	s := NewScope(nil)
	require.NoError(t, s.Declare(&Symbol{Name: "x", Kind: SymVariable}))
	err := s.Declare(&Symbol{Name: "x", Kind: SymVariable})
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, ErrDuplicateDeclaration, cerr.Kind)
}

func TestStructTypeOffsets(t *testing.T) {
	st, err := newStructType("Vec2", []string{"x", "y"})
	require.NoError(t, err)
	require.Equal(t, 16, st.Size)

	off, ok := st.FieldOffset("x")
	require.True(t, ok)
	require.Equal(t, 0, off)
	off, ok = st.FieldOffset("y")
	require.True(t, ok)
	require.Equal(t, 8, off)

	_, ok = st.FieldOffset("z")
	require.False(t, ok)
}

func TestStructTypeRejectsDuplicateField(t *testing.T) {
	_, err := newStructType("V", []string{"x", "x"})
	require.Error(t, err)
}

func TestEnumOrdinals(t *testing.T) {
	et, err := newEnumType("Color", []string{"Red", "Green", "Blue"})
	require.NoError(t, err)
	for i, v := range []string{"Red", "Green", "Blue"} {
		ord, ok := et.Ordinal(v)
		require.True(t, ok)
		require.Equal(t, i, ord)
	}
	_, ok := et.Ordinal("Mauve")
	require.False(t, ok)
}

func TestGlobalVarsKeepDeclarationOrder(t *testing.T) {
	syms := NewSymbolTable()
	for _, n := range []string{"c", "a", "b"} {
		_, err := syms.DeclareGlobalVar(syms.Global, n, "", slotSize)
		require.NoError(t, err)
	}
	// Redeclaring reuses the existing binding.
	sym, err := syms.DeclareGlobalVar(syms.Global, "a", "", slotSize)
	require.NoError(t, err)

	globals := syms.Globals()
	require.Len(t, globals, 3)
	require.Equal(t, "c", globals[0].Name)
	require.Equal(t, "a", globals[1].Name)
	require.Equal(t, "b", globals[2].Name)
	require.Same(t, globals[1], sym)
}
