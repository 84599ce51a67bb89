package layout

import (
	"fmt"

	"github.com/appsworld/ld64core/pkg/state"
	"github.com/appsworld/ld64core/types"
)

const defaultPageSize = 0x1000

// objcPackedSections hold together tightly (no per-atom re-alignment
// bump) even under -page_align_data_atoms, per spec.md §4.5 pass 1.
var objcPackedSections = map[string]bool{
	"__objc_methname": true, "__objc_classname": true, "__objc_methtype": true,
	"__objc_const": true, "__objc_selrefs": true, "__objc_classrefs": true,
}

// SizeAndAlign is layout pass 1 (spec.md §4.5): walks every final
// section's atoms in order, assigns each a section-relative offset
// satisfying its alignment, and stamps the section's own alignment as the
// maximum of its atoms'.
func SizeAndAlign(opts *types.Options, in *state.Internal) error {
	for _, sec := range in.Sections {
		if sec.Type == types.SectionThreadLocalVariables && sec.Segment == "__ABSOLUTE" {
			// typeAbsoluteSymbols: atoms keep their pre-assigned absolute
			// "section offsets"; nothing to compute.
			continue
		}
		var offset uint64
		var maxAlign types.Alignment
		for _, atom := range sec.Atoms {
			align := atom.Alignment
			if power, ok := opts.CustomSectionAlignment(sec.Segment, sec.Section); ok {
				align = types.Alignment{PowerOf2: power}
			} else if opts.PageAlignDataAtoms() && sec.Segment == "__DATA" && !objcPackedSections[sec.Section] {
				align = align.Max(types.Alignment{PowerOf2: 12})
			}
			offset = align.Align(offset)
			atom.SetSectionOffset(offset)
			offset += atom.Size()
			maxAlign = maxAlign.Max(align)
		}
		if sec.Type == types.SectionRegular && isCFISection(sec.Section) {
			maxAlign = maxAlign.Max(types.Alignment{PowerOf2: 3})
		}
		sec.Alignment = maxAlign
		sec.Size = offset
	}
	return nil
}

func isCFISection(name string) bool {
	return name == "__eh_frame" || name == "__unwind_info" || name == "__cfi"
}

// AssignAddresses is layout pass 2: sections whose segment has a
// user-specified -segaddr are placed first (the "fixed" sub-pass);
// everything else flows afterward from the end of __TEXT, page-aligning
// at segment boundaries (spec.md §4.5).
func AssignAddresses(opts *types.Options, in *state.Internal) error {
	pageSize := opts.SegmentAlignment()
	if pageSize == 0 {
		pageSize = defaultPageSize
	}

	fixed := map[string]bool{}
	for _, seg := range in.Segments {
		if addr, ok := opts.CustomSegmentAddress(seg.Name); ok {
			seg.Address = addr
			placeSegment(seg)
			fixed[seg.Name] = true
		}
	}

	addr := opts.BaseAddress()
	for _, seg := range in.Segments {
		if fixed[seg.Name] && seg.Name == "__TEXT" {
			addr = seg.Address + seg.Size
		}
	}
	for _, seg := range in.Segments {
		if fixed[seg.Name] {
			continue
		}
		addr = types.RoundUp(addr, pageSize)
		seg.Address = addr
		placeSegment(seg)
		addr = seg.Address + seg.Size
	}

	if max := opts.MaxAddress(); max != 0 {
		for _, seg := range in.Segments {
			if seg.Address+seg.Size > max {
				return fmt.Errorf("layout: segment %s exceeds max address %#x", seg.Name, max)
			}
		}
	}
	return checkOverlap(in.Segments)
}

// placeSegment lays out one segment's sections sequentially from the
// segment's own (already assigned) address, stamping each atom's final
// address from its section offset.
func placeSegment(seg *types.SegmentLayout) {
	addr := seg.Address
	for _, sec := range seg.Sections {
		addr = sec.Alignment.Align(addr)
		sec.Address = addr
		for _, atom := range sec.Atoms {
			atom.SetFinalAddress(sec.Address + atom.SectionOffset())
		}
		addr += sec.Size
	}
	seg.Size = addr - seg.Address
}

func checkOverlap(segs []*types.SegmentLayout) error {
	for i := 1; i < len(segs); i++ {
		prev, cur := segs[i-1], segs[i]
		if cur.Address < prev.Address+prev.Size {
			return fmt.Errorf("layout: segment %s [%#x,%#x) overlaps segment %s [%#x,%#x)",
				cur.Name, cur.Address, cur.Address+cur.Size,
				prev.Name, prev.Address, prev.Address+prev.Size)
		}
	}
	return nil
}

func isZeroFillLike(sec *types.FinalSection) bool {
	return sec.IsZeroFill() || sec.Segment == "__PAGEZERO"
}

// AssignFileOffsets is layout pass 3: walks sections in final order,
// zero-fill-like sections absorb no file space, everything else
// page-aligns at segment transitions and advances by size (spec.md §4.5).
func AssignFileOffsets(opts *types.Options, in *state.Internal) (totalFileSize uint64, err error) {
	pageSize := opts.SegmentAlignment()
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	var fileOff uint64
	for _, seg := range in.Segments {
		segStart := fileOff
		if !isZeroFillLike(seg.Sections[0]) {
			fileOff = types.RoundUp(fileOff, pageSize)
			segStart = fileOff
		}
		for _, sec := range seg.Sections {
			if isZeroFillLike(sec) {
				sec.FileOffset = 0
				continue
			}
			pad := (sec.Address - seg.Address) - (fileOff - segStart)
			fileOff += pad
			sec.FileOffset = fileOff
			fileOff += sec.Size
		}
		seg.FileOffset = segStart
		seg.FileSize = fileOff - segStart
		if isZeroFillLike(seg.Sections[0]) {
			seg.FileSize = 0
		}
	}
	return fileOff, nil
}

// Run drives all three passes plus the prerequisite sort, matching the
// fixed order spec.md §4.5 mandates. It is safe to call twice with no
// atom mutations between calls (P5, idempotence of layout).
func Run(mode Mode, opts *types.Options, in *state.Internal) (totalFileSize uint64, err error) {
	SortSections(mode, in)
	GroupSegments(in)
	if err := SizeAndAlign(opts, in); err != nil {
		return 0, err
	}
	if err := AssignAddresses(opts, in); err != nil {
		return 0, err
	}
	return AssignFileOffsets(opts, in)
}

// DumpSections renders the current section table for diagnostic output.
// Callers print this to their own logger when Run returns a layout error,
// per spec.md §7's "dumps the full section table to stderr on layout
// errors."

func DumpSections(in *state.Internal) []string {
	lines := make([]string, 0, len(in.Sections))
	for _, s := range in.Sections {
		lines = append(lines, fmt.Sprintf("%-8s %-16s addr=%#010x size=%#x fileoff=%#x align=2^%d",
			s.Segment, s.Section, s.Address, s.Size, s.FileOffset, s.Alignment.PowerOf2))
	}
	return lines
}
