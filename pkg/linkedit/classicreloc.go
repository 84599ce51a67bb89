package linkedit

import "github.com/appsworld/ld64core/types"

// ClassicReloc is one -r mode section relocation entry, the universal
// (non-scattered) form; the writer collaborator narrows this to the
// architecture-specific on-disk bit layout.
type ClassicReloc struct {
	Address  uint32 // offset of the fixup within its atom
	SymbolOrSection uint32 // either a nlist index (external) or a 1-based section index (local)
	PCRelative bool
	Length     uint8 // 0=byte,1=word,2=long,3=quad
	External   bool
	Type       uint8
}

// ExternalRequired reports whether a relocation's target must be encoded
// as external (symbol-relative) rather than local (section-relative),
// per spec.md §4.7's per-architecture rules: x86_64 always requires
// external for named targets; arm requires external when a PC-relative
// branch crosses a thumb/arm mode boundary; i386 requires external for
// TLV references.
func ExternalRequired(arch types.CPU, crossesThumbArmBoundary, isTLV bool) bool {
	switch arch {
	case types.CPUAmd64:
		return true
	case types.CPUArm:
		return crossesThumbArmBoundary
	case types.CPU386:
		return isTLV
	}
	return false
}

// BuildClassicRelocations converts every atom fixup that produces a
// runtime-visible address difference into a ClassicReloc, for -r output
// (spec.md §4.7's "Object file (-r)" emission mode).
func BuildClassicRelocations(arch types.CPU, atoms []*types.Atom, symbolIndex func(name string) (uint32, bool)) []ClassicReloc {
	var out []ClassicReloc
	for _, atom := range atoms {
		for _, f := range atom.Fixups() {
			if !f.Kind.IsStore() && !f.Kind.IsBinding() {
				continue
			}
			name, isTLV := "", false
			if f.Target.Atom != nil {
				name = f.Target.Atom.Name
				isTLV = f.Target.Atom.ContentType == types.ContentTLVDefs
			} else {
				name = f.Target.Name
			}
			ext := ExternalRequired(arch, false, isTLV)
			reloc := ClassicReloc{
				Address:    uint32(f.OffsetInAtom),
				PCRelative: isPCRelative(f.Kind),
				Length:     lengthFor(f.Kind),
				External:   ext,
			}
			if ext {
				if idx, ok := symbolIndex(name); ok {
					reloc.SymbolOrSection = idx
				}
			} else {
				reloc.SymbolOrSection = uint32(atom.MachoSection())
			}
			out = append(out, reloc)
		}
	}
	return out
}

func isPCRelative(k types.FixupKind) bool {
	switch k {
	case types.FixupStoreARMBranch24, types.FixupStoreThumbBranch22, types.FixupStoreARM64Branch26, types.FixupStoreARM64Page21:
		return true
	}
	return false
}

func lengthFor(k types.FixupKind) uint8 {
	switch k {
	case types.FixupStorePointer64, types.FixupStoreLittleEndian64, types.FixupStoreTargetAddressLittleEndian64:
		return 3
	case types.FixupStorePointer32, types.FixupStoreLittleEndian32, types.FixupStoreBigEndian32,
		types.FixupStoreTargetAddressLittleEndian32, types.FixupStoreARMBranch24, types.FixupStoreARM64Branch26:
		return 2
	default:
		return 2
	}
}
