package symtable

import (
	"debug/elf"

	"github.com/pkg/errors"
)

var (
	ErrSymNotFound = errors.New("symbol not found")
	ErrNotLoaded   = errors.New("no ELF file loaded")
)

// ELFSymTab is one of the possible abstractions around executable
// file symbol tables, for ELF files.
type ELFSymTab struct {
	file  *elf.File
	cache map[string]elf.Symbol
}

func NewELFSymTab() *ELFSymTab {
	tab := new(ELFSymTab)
	tab.cache = make(map[string]elf.Symbol)

	return tab
}

// Load opens the ELF file with debug/elf.Open and stores it in the
// ELFSymTab struct. Loading twice is a no-op.
func (e *ELFSymTab) Load(pathname string) error {
	if e.file != nil {
		return nil
	}

	file, err := elf.Open(pathname)
	if err != nil {
		return errors.Wrap(err, "error opening ELF file")
	}
	e.file = file

	return nil
}

// FindSymbol looks a symbol up by exact name, preferring the dynamic
// symbol table and falling back to the full one. Results are memoized.
func (e *ELFSymTab) FindSymbol(name string) (elf.Symbol, error) {
	if sym, ok := e.cache[name]; ok {
		return sym, nil
	}
	if e.file == nil {
		return elf.Symbol{}, ErrNotLoaded
	}

	dynsyms, err := e.file.DynamicSymbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return elf.Symbol{}, errors.Wrap(err, "error reading ELF dynsym section")
	}
	if sym, ok := lookup(dynsyms, name); ok {
		e.cache[name] = sym
		return sym, nil
	}

	syms, err := e.file.Symbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return elf.Symbol{}, errors.Wrap(err, "error reading ELF symtable section")
	}
	if sym, ok := lookup(syms, name); ok {
		e.cache[name] = sym
		return sym, nil
	}

	return elf.Symbol{}, errors.Wrapf(ErrSymNotFound, "%s", name)
}

// LoadBias computes the difference between where the image is mapped and
// where its text segment asked to be loaded. For position-independent
// images this is the map start; for fixed-load images it is zero.
func (e *ELFSymTab) LoadBias(mapStart uint64) uint64 {
	if e.file == nil {
		return mapStart
	}
	header := textProgHeader(e.file)
	if header == nil {
		return mapStart
	}
	if header.Vaddr > mapStart {
		return 0
	}

	return mapStart - header.Vaddr
}

func (e *ELFSymTab) Close() error {
	if e.file == nil {
		return nil
	}
	err := e.file.Close()
	e.file = nil

	return err
}

func lookup(syms []elf.Symbol, name string) (elf.Symbol, bool) {
	for _, s := range syms {
		if s.Name == name {
			return s, true
		}
	}

	return elf.Symbol{}, false
}

func textProgHeader(f *elf.File) *elf.ProgHeader {
	for i := range f.Progs {
		p := f.Progs[i]
		if p.Type == elf.PT_LOAD && p.Flags&elf.PF_X != 0 {
			return &p.ProgHeader
		}
	}

	return nil
}
