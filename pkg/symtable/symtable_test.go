package symtable_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxgio92/pyflame/pkg/symtable"
)

func TestFindSymbolBeforeLoad(t *testing.T) {
	tab := symtable.NewELFSymTab()

	_, err := tab.FindSymbol("main.main")
	require.Error(t, err)
	require.ErrorIs(t, err, symtable.ErrNotLoaded)
}

func TestLoadNonexistentFile(t *testing.T) {
	tab := symtable.NewELFSymTab()

	err := tab.Load("nonexistent-elf-file")
	require.Error(t, err)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestFindSymbol(t *testing.T) {
	exe, err := os.Executable()
	require.NoError(t, err)

	tab := symtable.NewELFSymTab()
	require.NoError(t, tab.Load(exe))
	defer tab.Close()

	// The test binary carries a symbol table with the Go runtime in it.
	sym, err := tab.FindSymbol("runtime.main")
	require.NoError(t, err)
	require.NotZero(t, sym.Value)

	// Lookups are memoized; a second one must agree with the first.
	again, err := tab.FindSymbol("runtime.main")
	require.NoError(t, err)
	require.Equal(t, sym, again)
}

func TestFindSymbolNotFound(t *testing.T) {
	exe, err := os.Executable()
	require.NoError(t, err)

	tab := symtable.NewELFSymTab()
	require.NoError(t, tab.Load(exe))
	defer tab.Close()

	_, err = tab.FindSymbol("_PyThreadState_DoesNotExist")
	require.Error(t, err)
	require.ErrorIs(t, err, symtable.ErrSymNotFound)
}

func TestLoadBias(t *testing.T) {
	tab := symtable.NewELFSymTab()

	// Without a loaded file the map start is the best guess.
	require.Equal(t, uint64(0x7f0000000000), tab.LoadBias(0x7f0000000000))
}
