package linkedit

import "github.com/appsworld/ld64core/types"

// RebaseEntry is one slidable pointer location, before RLE encoding.
type RebaseEntry struct {
	Type      uint8 // types.REBASE_TYPE_*
	SegIndex  int
	SegOffset uint64
}

func uleb128(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			break
		}
	}
	return out
}

// EncodeRebaseInfo RLE-encodes entries into the dyld rebase-opcode stream
// (spec.md §4.7). Entries must already be sorted by (segIndex, segOffset);
// callers build them by scanning every fixup targeting a slidable
// pointer location.
func EncodeRebaseInfo(entries []RebaseEntry, pointerSize uint64) []byte {
	var out []byte
	if len(entries) == 0 {
		return out
	}
	emit := func(opcode, imm byte) { out = append(out, opcode|(imm&0x0f)) }
	emitULEB := func(opcode byte, v uint64) {
		out = append(out, opcode)
		out = append(out, uleb128(v)...)
	}

	curType := uint8(0)
	curSeg := -1
	var curOffset uint64

	i := 0
	for i < len(entries) {
		e := entries[i]
		if uint8(e.Type) != curType {
			emit(byte(types.REBASE_OPCODE_SET_TYPE_IMM), byte(e.Type))
			curType = uint8(e.Type)
		}
		if e.SegIndex != curSeg || i == 0 || e.SegOffset < curOffset {
			out = append(out, byte(types.REBASE_OPCODE_SET_SEGMENT_AND_OFFSET_ULEB)|byte(e.SegIndex&0x0f))
			out = append(out, uleb128(e.SegOffset)...)
			curSeg, curOffset = e.SegIndex, e.SegOffset
		} else if e.SegOffset != curOffset {
			emitULEB(byte(types.REBASE_OPCODE_ADD_ADDR_ULEB), e.SegOffset-curOffset)
			curOffset = e.SegOffset
		}

		// count consecutive same-stride entries and fold into one
		// DO_REBASE_ULEB_TIMES_SKIPPING_ULEB when possible.
		run := 1
		for i+run < len(entries) &&
			entries[i+run].SegIndex == curSeg &&
			uint8(entries[i+run].Type) == curType &&
			entries[i+run].SegOffset == curOffset+uint64(run)*pointerSize {
			run++
		}
		if run > 1 {
			out = append(out, byte(types.REBASE_OPCODE_DO_REBASE_ULEB_TIMES_SKIPPING_ULEB))
			out = append(out, uleb128(uint64(run))...)
			out = append(out, uleb128(0)...)
			curOffset += uint64(run-1) * pointerSize
		} else {
			out = append(out, byte(types.REBASE_OPCODE_DO_REBASE_IMM_TIMES)|0x01)
		}
		curOffset += pointerSize
		i += run
	}
	out = append(out, byte(types.REBASE_OPCODE_DONE))
	return out
}
