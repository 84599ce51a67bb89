// Package linkedit implements the LINKEDIT emitter (spec component C8):
// rebase/bind/lazy-bind/weak-bind opcode streams, the export trie, classic
// relocations for -r output, the symbol/string tables, the indirect
// symbol table, split-seg info, and the content UUID.
package linkedit

import "github.com/appsworld/ld64core/types"

// Special bind ordinals from spec.md §4.7. These mirror the real Mach-O
// loader header constants (types.BIND_SPECIAL_DYLIB_*) rather than the
// spec prose's (-1/-2/-3) numbering: BIND_SPECIAL_DYLIB_SELF is 0, and
// MAIN_EXECUTABLE/FLAT_LOOKUP/WEAK_LOOKUP descend from -1. The resolved
// ordinal mapping below follows the loader's actual encoding, since that
// is what a dyld reading this LINKEDIT data will interpret — see
// DESIGN.md's Open Question resolution.
const (
	BindSpecialDylibSelf          = types.BIND_SPECIAL_DYLIB_SELF
	BindSpecialDylibMainExecutable = types.BIND_SPECIAL_DYLIB_MAIN_EXECUTABLE
	BindSpecialDylibFlatLookup     = types.BIND_SPECIAL_DYLIB_FLAT_LOOKUP
	BindSpecialDylibWeakLookup     = types.BIND_SPECIAL_DYLIB_WEAK_LOOKUP
)

// OrdinalMapping assigns each bind site either a positive 1-based dylib
// ordinal or one of the special ordinals above, per spec.md §C's
// buildDylibOrdinalMapping supplement (grounded on OutputFile.cpp's
// dylib-ordinal table construction): ordinals are handed out in
// first-seen order among the dylibs actually referenced by a live bind.
type OrdinalMapping struct {
	order []*types.DylibInfo
	index map[*types.DylibInfo]int
}

func NewOrdinalMapping() *OrdinalMapping {
	return &OrdinalMapping{index: map[*types.DylibInfo]int{}}
}

// OrdinalFor returns dylib's 1-based ordinal, assigning the next unused
// one on first reference.
func (m *OrdinalMapping) OrdinalFor(dylib *types.DylibInfo) int {
	if dylib == nil {
		return BindSpecialDylibFlatLookup
	}
	if idx, ok := m.index[dylib]; ok {
		return idx + 1
	}
	m.order = append(m.order, dylib)
	idx := len(m.order) - 1
	m.index[dylib] = idx
	return idx + 1
}

// Ordered returns the dylibs in assigned-ordinal order (index 0 is
// ordinal 1), for writing LC_LOAD_DYLIB commands in matching order.
func (m *OrdinalMapping) Ordered() []*types.DylibInfo { return m.order }
