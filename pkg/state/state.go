// Package state owns the Internal record (spec component C4): the final
// section list, dylib ordinal table, indirect binding table snapshot,
// entry point, synthesized helper atoms, and stabs vector that the
// resolver hands off to layout, fixup application, and LINKEDIT emission.
package state

import (
	"sort"

	"github.com/appsworld/ld64core/types"
)

// HelperKind enumerates the synthesized helper atoms the dynamic loader
// needs for lazy binding (spec.md §3.6).
type HelperKind uint8

const (
	HelperStubBinder HelperKind = iota
	HelperLazyBinder
	HelperClassicBinder
	HelperCompressedFastBinder
)

// Stab is one aggregated debugging-symbol-table entry (spec.md §4.7's
// "stabs vector"), built from a RelocatableFile's own stabs plus the
// linker's synthesized SO/OSO/function boundary entries.
type Stab struct {
	Name    string
	Type    uint8 // N_* stab type byte
	Section uint8
	Desc    int16
	Value   uint64
}

// Internal is the structure described in spec.md §3.6: everything the
// layout engine, fixup applier, and LINKEDIT emitter need that is not
// itself an atom.
type Internal struct {
	Options *types.Options

	Sections []*types.FinalSection
	Segments []*types.SegmentLayout

	Dylibs       []*types.DylibInfo // in assigned-ordinal order, index 0 unused
	EntryPoint   *types.Atom
	Helpers      map[HelperKind]*types.Atom
	Stabs        []Stab

	IndirectBindingNames []string // slot index -> name, for unresolved slots
	IndirectBindingAtoms []*types.Atom

	ObjCVersion   uint32
	ObjCConstraint uint32
	SwiftVersion  uint32

	UUID types.UUID
}

// NewInternal creates an empty Internal bound to opts.
func NewInternal(opts *types.Options) *Internal {
	return &Internal{Options: opts, Helpers: map[HelperKind]*types.Atom{}}
}

// AddDylib assigns the next ordinal (1-based; ordinal 0 is reserved for
// "self") to info and records it, per spec.md §4.7's "first-seen order"
// ordinal-mapping rule.
func (in *Internal) AddDylib(info *types.DylibInfo) int {
	if len(in.Dylibs) == 0 {
		in.Dylibs = append(in.Dylibs, nil) // ordinal 0 placeholder
	}
	info.Ordinal = len(in.Dylibs)
	in.Dylibs = append(in.Dylibs, info)
	return info.Ordinal
}

// DylibByOrdinal returns the dylib assigned the given ordinal, or nil.
func (in *Internal) DylibByOrdinal(ordinal int) *types.DylibInfo {
	if ordinal <= 0 || ordinal >= len(in.Dylibs) {
		return nil
	}
	return in.Dylibs[ordinal]
}

// SectionFor returns the final section matching key, creating and
// appending it (in first-seen order; the classifier/sorter reorders
// afterward) if absent.
func (in *Internal) SectionFor(key types.SectionKey) *types.FinalSection {
	for _, s := range in.Sections {
		if s.Segment == key.Segment && s.Section == key.Section {
			return s
		}
	}
	s := &types.FinalSection{Segment: key.Segment, Section: key.Section, Type: key.Type}
	in.Sections = append(in.Sections, s)
	return s
}

// AppendAtom places atom at the end of its already-classified final
// section's atom list — spec.md §4.2 phase 13, fillInInternalState.
func (in *Internal) AppendAtom(sec *types.FinalSection, atom *types.Atom) {
	sec.Atoms = append(sec.Atoms, atom)
}

// InsertBeforeSectionEnd implements the "insertion contract" of spec.md
// §4.4: an atom added to a section whose last atom is a synthesized
// section-end marker is placed immediately before that marker, never
// after.
func (in *Internal) InsertBeforeSectionEnd(sec *types.FinalSection, atom *types.Atom) {
	n := len(sec.Atoms)
	if n > 0 && sec.Atoms[n-1].ContentType == types.ContentSectionEnd {
		sec.Atoms = append(sec.Atoms, nil)
		copy(sec.Atoms[n:], sec.Atoms[n-1:n])
		sec.Atoms[n-1] = atom
		return
	}
	sec.Atoms = append(sec.Atoms, atom)
}

// FreezeIndirectBindingTable snapshots the symbol table's slot contents
// into the Internal record. Per spec.md §5, the table is append-only
// during resolution and frozen thereafter; this is that freeze point.
func (in *Internal) FreezeIndirectBindingTable(names []string, atoms []*types.Atom) {
	in.IndirectBindingNames = names
	in.IndirectBindingAtoms = atoms
}

// AllLiveAtoms returns every atom across every final section, in section
// then in-section order — the order the layout engine and fixup applier
// both walk in.
func (in *Internal) AllLiveAtoms() []*types.Atom {
	var out []*types.Atom
	for _, s := range in.Sections {
		out = append(out, s.Atoms...)
	}
	return out
}

// SortDylibsByOrdinal is a defensive re-sort used by tests and by the
// LINKEDIT emitter before it trusts Dylibs' index order.
func (in *Internal) SortDylibsByOrdinal() {
	sort.SliceStable(in.Dylibs, func(i, j int) bool {
		if in.Dylibs[i] == nil {
			return true
		}
		if in.Dylibs[j] == nil {
			return false
		}
		return in.Dylibs[i].Ordinal < in.Dylibs[j].Ordinal
	})
}
