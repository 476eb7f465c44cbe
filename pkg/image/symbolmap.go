package image

import (
	"sort"

	"github.com/macsym/macsym/pkg/addr"
)

// Symbol is one symbol-table entry
type Symbol struct {
	Addr addr.Addr
	Name string
}

// SymbolMap is an address-sorted view of the symbol table supporting
// greatest-entry-at-or-below lookups
type SymbolMap struct {
	symbols []Symbol
}

// NewSymbolMap sorts the given symbols by address, dropping unnamed entries
func NewSymbolMap(symbols []Symbol) *SymbolMap {
	named := make([]Symbol, 0, len(symbols))
	for _, sym := range symbols {
		if sym.Name != "" {
			named = append(named, sym)
		}
	}

	sort.SliceStable(named, func(i, j int) bool {
		return named[i].Addr < named[j].Addr
	})

	return &SymbolMap{symbols: named}
}

// Len returns the number of named symbols in the map
func (m *SymbolMap) Len() int {
	return len(m.symbols)
}

// Lookup returns the symbol with the greatest address not above a
func (m *SymbolMap) Lookup(a addr.Addr) (Symbol, bool) {
	idx := sort.Search(len(m.symbols), func(i int) bool {
		return m.symbols[i].Addr > a
	})

	if idx == 0 {
		return Symbol{}, false
	}

	return m.symbols[idx-1], true
}
