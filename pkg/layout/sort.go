package layout

import (
	"golang.org/x/exp/slices"

	"github.com/appsworld/ld64core/pkg/state"
	"github.com/appsworld/ld64core/types"
)

// segmentRank implements spec.md §4.4's fixed segment order:
// __PAGEZERO(0), __TEXT(1), __DATA(2, or 5 under -r), __OBJC(3),
// __IMPORT(4), then user-defined segments in first-seen order starting
// at 10.
func segmentRank(mode Mode, name string, firstSeen map[string]int) int {
	switch name {
	case "__PAGEZERO":
		return 0
	case "__TEXT":
		return 1
	case "__DATA":
		if mode == ModeObjectFile {
			return 5
		}
		return 2
	case "__OBJC":
		return 3
	case "__IMPORT":
		return 4
	default:
		return 10 + firstSeen[name]
	}
}

// sectionTag assigns the per-segment ordering rank described in spec.md
// §4.4: Mach header first, code before stubs before helpers, CFI/LSDA/
// unwind pushed toward the segment end, __huge last, __objc_* packed
// tightly after __const.
func sectionTag(seg, sect string, typ types.SectionType) int {
	switch {
	case sect == "__text":
		return 0
	case sect == "__stubs":
		return 1
	case sect == "__stub_helper":
		return 2
	case sect == "__const" && seg == "__TEXT":
		return 3
	case sect == "__cstring":
		return 4
	case sect == "__objc_methname", sect == "__objc_classname", sect == "__objc_methtype":
		return 5
	case sect == "__const" && seg == "__DATA":
		return 3
	case sect == "__data":
		return 4
	case sect == "__common":
		return 50
	case sect == "__bss", typ == types.SectionZeroFill:
		return 60
	case sect == "__eh_frame", sect == "__unwind_info", sect == "__gcc_except_tab", sect == "__ld_trap":
		return 80
	case sect == "__huge":
		return 1000
	default:
		return 20
	}
}

// SortSections reorders in.Sections in place according to the segment and
// section tag ranks, stably preserving input order within equal rank
// (spec.md §4.4's "stable sort preserves input order within equal ranks").
func SortSections(mode Mode, in *state.Internal) {
	firstSeen := map[string]int{}
	for _, s := range in.Sections {
		if _, ok := firstSeen[s.Segment]; !ok {
			firstSeen[s.Segment] = len(firstSeen)
		}
	}
	slices.SortStableFunc(in.Sections, func(a, b *types.FinalSection) int {
		ra, rb := segmentRank(mode, a.Segment, firstSeen), segmentRank(mode, b.Segment, firstSeen)
		if ra != rb {
			return ra - rb
		}
		ta, tb := sectionTag(a.Segment, a.Section, a.Type), sectionTag(b.Segment, b.Section, b.Type)
		return ta - tb
	})
	for i, s := range in.Sections {
		s.Index = i + 1
	}
}

// GroupSegments partitions the already-sorted section list into segment
// layout records, one per distinct segment, in the order sections appear.
func GroupSegments(in *state.Internal) []*types.SegmentLayout {
	var segs []*types.SegmentLayout
	byName := map[string]*types.SegmentLayout{}
	for _, sec := range in.Sections {
		seg, ok := byName[sec.Segment]
		if !ok {
			seg = &types.SegmentLayout{Name: sec.Segment}
			byName[sec.Segment] = seg
			segs = append(segs, seg)
		}
		seg.Sections = append(seg.Sections, sec)
	}
	in.Segments = segs
	return segs
}
