package linkedit

import (
	"github.com/appsworld/ld64core/pkg/state"
	"github.com/appsworld/ld64core/types"
)

// Special indirect-symbol-table sentinel values (real Mach-O constants:
// dyld treats these as "no symbol, resolved locally" / "resolved to an
// absolute address" rather than an index into the symbol table).
const (
	IndirectSymbolLocal uint32 = 0x80000000
	IndirectSymbolAbs   uint32 = 0x40000000
)

var indirectTableSectionTypes = map[types.SectionType]bool{
	types.SectionSymbolStubs:           true,
	types.SectionLazySymbolPointers:    true,
	types.SectionNonLazySymbolPointers: true,
}

// BuildIndirectSymbolTable emits one 32-bit word per slot across every
// section of a type requiring indirect symbol entries (stubs, lazy/non-
// lazy pointers), in section order (spec.md §4.7). symbolIndex maps an
// atom's target symbol name to its final index in the combined nlist
// array the writer will produce.
func BuildIndirectSymbolTable(in *state.Internal, symbolIndex func(name string) (uint32, bool)) []uint32 {
	var out []uint32
	for _, sec := range in.Sections {
		if !indirectTableSectionTypes[sec.Type] {
			continue
		}
		for _, atom := range sec.Atoms {
			target := indirectTargetName(atom)
			if target == "" {
				out = append(out, IndirectSymbolLocal)
				continue
			}
			if atom.Definition == types.DefinitionAbsolute {
				out = append(out, IndirectSymbolAbs)
				continue
			}
			if idx, ok := symbolIndex(target); ok {
				out = append(out, idx)
			} else {
				out = append(out, IndirectSymbolLocal)
			}
		}
	}
	return out
}

// indirectTargetName returns the symbol name a stub/pointer atom
// ultimately indirects to, found via its single fixup's target.
func indirectTargetName(atom *types.Atom) string {
	for _, f := range atom.Fixups() {
		if f.Target.Atom != nil {
			return f.Target.Atom.Name
		}
		if f.Target.Name != "" {
			return f.Target.Name
		}
	}
	return ""
}
