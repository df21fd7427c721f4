package types

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// SymbolTable holds named series and variables. Names are case-insensitive.
// Lookups fall through to Parent.
type SymbolTable struct {
	mu       sync.RWMutex
	Symbols  map[string]any
	ReadOnly bool
	Parent   *SymbolTable
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		Symbols: map[string]any{},
	}
}

func NewSymbolTableWith(symbols map[string]any, parent *SymbolTable) *SymbolTable {
	st := &SymbolTable{
		Symbols: make(map[string]any, len(symbols)),
		Parent:  parent,
	}
	for key, value := range symbols {
		st.Symbols[normalizeSymbol(key)] = value
	}
	return st
}

func normalizeSymbol(key string) string {
	return strings.ToLower(key)
}

func (st *SymbolTable) Get(key string) (any, bool) {
	if st == nil {
		return nil, false
	}

	st.mu.RLock()
	v, ok := st.Symbols[normalizeSymbol(key)]
	st.mu.RUnlock()
	if ok {
		return v, true
	}
	if st.Parent != nil {
		return st.Parent.Get(key)
	}
	return nil, false
}

func (st *SymbolTable) Set(key string, value any) {
	key = normalizeSymbol(key)
	if updated := st.set(key, value); updated {
		return
	}
	if st.ReadOnly {
		panic(fmt.Sprintf("Cannot assign %q=%+v to read only symbol table", key, value))
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.Symbols == nil {
		st.Symbols = map[string]any{}
	}
	st.Symbols[key] = value
}

func (st *SymbolTable) set(key string, value any) bool {
	if !st.ReadOnly {
		st.mu.Lock()
		_, ok := st.Symbols[key]
		if ok {
			st.Symbols[key] = value
		}
		st.mu.Unlock()
		if ok {
			return true
		}
	}
	if st.Parent != nil {
		return st.Parent.set(key, value)
	}
	return false
}

// Keys lists every visible name, sorted, without duplicates.
func (st *SymbolTable) Keys() []string {
	if st == nil {
		return nil
	}

	var keys []string
	for t := st; t != nil; t = t.Parent {
		t.mu.RLock()
		keys = append(keys, lo.Keys(t.Symbols)...)
		t.mu.RUnlock()
	}
	keys = lo.Uniq(keys)
	sort.Strings(keys)
	return keys
}

func (st *SymbolTable) ShallowClone() *SymbolTable {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return &SymbolTable{
		Symbols:  lo.Assign(map[string]any{}, st.Symbols),
		ReadOnly: st.ReadOnly,
		Parent:   st.Parent,
	}
}
