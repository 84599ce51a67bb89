package linkedit

import (
	"github.com/appsworld/ld64core/pkg/state"
	"github.com/appsworld/ld64core/types"
)

// SplitSegRecord is one cross-segment __TEXT fixup recorded for the
// shared-cache split-seg info stream (spec.md §4.7, "only when
// sharedRegionEligible"). Kind mirrors the classic DYLD_CACHE_ADJ_*
// encodings: 32-bit pointer, 64-bit pointer, or (for ARM hi/lo16 pairs) a
// carry-bearing instruction pair.
type SplitSegRecord struct {
	FromSectionOffset uint64
	Kind              uint8
	Carry             bool // set for ARM hi16/lo16 pairs whose lo16 addition carries into hi16
}

const (
	splitSegKindPointer32 uint8 = 1
	splitSegKindPointer64 uint8 = 2
	splitSegKindARMHiLo   uint8 = 3
)

// BuildSplitSegInfo scans every live __TEXT atom's fixups for references
// that cross into a different segment, recording each as required by
// spec.md §4.7. Only emitted when opts.SharedRegionEligible().
func BuildSplitSegInfo(opts *types.Options, in *state.Internal) []SplitSegRecord {
	if !opts.SharedRegionEligible() {
		return nil
	}
	var out []SplitSegRecord
	for _, sec := range in.Sections {
		if sec.Segment != "__TEXT" {
			continue
		}
		for _, atom := range sec.Atoms {
			recordCrossSegmentFixups(atom, &out)
		}
	}
	return out
}

func recordCrossSegmentFixups(atom *types.Atom, out *[]SplitSegRecord) {
	for _, f := range atom.Fixups() {
		if f.Target.Atom == nil || f.Target.Atom.Section.Segment == atom.Section.Segment {
			continue
		}
		rec := SplitSegRecord{FromSectionOffset: atom.SectionOffset() + f.OffsetInAtom}
		switch f.Kind {
		case types.FixupStorePointer64, types.FixupStoreLittleEndian64:
			rec.Kind = splitSegKindPointer64
		case types.FixupStorePointer32, types.FixupStoreLittleEndian32:
			rec.Kind = splitSegKindPointer32
		case types.FixupStoreARMHi16, types.FixupStoreARMLo16:
			rec.Kind = splitSegKindARMHiLo
			rec.Carry = hiLoCarries(atom, f)
		default:
			continue
		}
		*out = append(*out, rec)
	}
}

// hiLoCarries reports whether the low-16 addition in an ARM movw/movt
// pair would carry into the high half, which the shared-cache slider
// needs to know to adjust the movt instruction correctly.
func hiLoCarries(atom *types.Atom, f types.Fixup) bool {
	if f.Target.Atom == nil || !f.Target.Atom.HasFinalAddress() {
		return false
	}
	return f.Target.Atom.FinalAddress()&0xffff+uint64(f.Addend)&0xffff > 0xffff
}
