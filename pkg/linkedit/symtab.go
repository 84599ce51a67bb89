package linkedit

import (
	"sort"

	"github.com/appsworld/ld64core/pkg/state"
	"github.com/appsworld/ld64core/types"
)

// NlistEntry is one symbol-table record, independent of 32/64-bit nlist
// on-disk width (the writer collaborator picks the concrete encoding).
type NlistEntry struct {
	StringIndex uint32
	Type        uint8 // N_* bits: N_EXT, N_SECT, N_UNDF, ...
	Section     uint8 // atom.MachoSection()
	Desc        uint16
	Value       uint64
	Name        string
}

// N_* type byte bits the symbol table partition below relies on.
const (
	nExt  = 0x01
	nSect = 0x0e
	nUndf = 0x00
	nType = 0x0e
)

// SymbolTable is the partitioned (locals, globals, undefineds) result
// spec.md §4.7 describes, plus the backing string pool.
type SymbolTable struct {
	Locals     []NlistEntry
	Globals    []NlistEntry
	Undefineds []NlistEntry
	Strings    []byte
}

// BuildSymbolTable partitions every atom eligible for the symbol table (by
// SymbolTableInclusion) into the three index ranges spec.md §4.7
// describes, each sorted alphabetically, and assigns each atom's
// MachoSection before returning. undefinedNames supplies names with no
// surviving atom (still-undefined proxies under a tolerant output kind).
func BuildSymbolTable(in *state.Internal, undefinedNames []string) *SymbolTable {
	st := &SymbolTable{}
	pool := newStringPool()

	for _, sec := range in.Sections {
		for _, atom := range sec.Atoms {
			if atom.SymbolTableInclusion == types.SymbolTableNotIn || atom.SymbolTableInclusion == types.SymbolTableNotInFinal {
				continue
			}
			atom.SetMachoSection(sec.Index)
			entry := NlistEntry{
				StringIndex: pool.intern(atom.Name),
				Name:        atom.Name,
				Section:     uint8(sec.Index),
				Value:       safeAddr(atom),
			}
			entry.Type = nSect
			if atom.Definition == types.DefinitionAbsolute {
				entry.Type = 0x02 // N_ABS
			}
			if atom.Scope != types.ScopeTranslationUnit {
				entry.Type |= nExt
			}
			if atom.Scope == types.ScopeGlobal {
				st.Globals = append(st.Globals, entry)
			} else {
				st.Locals = append(st.Locals, entry)
			}
		}
	}
	for _, name := range undefinedNames {
		st.Undefineds = append(st.Undefineds, NlistEntry{
			StringIndex: pool.intern(name),
			Name:        name,
			Type:        nExt | nUndf,
		})
	}

	sortByName(st.Locals)
	sortByName(st.Globals)
	sortByName(st.Undefineds)
	st.Strings = pool.bytes()
	return st
}

func safeAddr(a *types.Atom) uint64 {
	if a.HasFinalAddress() {
		return a.FinalAddress()
	}
	return 0
}

func sortByName(entries []NlistEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
}

type stringPool struct {
	buf    []byte
	interned map[string]uint32
}

func newStringPool() *stringPool {
	// index 0 is reserved for the empty/no-name string by convention.
	return &stringPool{buf: []byte{0}, interned: map[string]uint32{"": 0}}
}

func (p *stringPool) intern(s string) uint32 {
	if idx, ok := p.interned[s]; ok {
		return idx
	}
	idx := uint32(len(p.buf))
	p.buf = append(p.buf, s...)
	p.buf = append(p.buf, 0)
	p.interned[s] = idx
	return idx
}

func (p *stringPool) bytes() []byte { return p.buf }
