package linkedit

import "github.com/appsworld/ld64core/types"

// BindKind selects which of the three independent opcode streams a
// BindEntry belongs to (spec.md §4.7).
type BindKind uint8

const (
	BindRegular BindKind = iota
	BindLazy
	BindWeak
)

// BindEntry is one (dylib ordinal, symbol name, addend, flags) bind site,
// keyed by its segment/offset location.
type BindEntry struct {
	SegIndex  int
	SegOffset uint64
	Type      uint8 // types.BIND_TYPE_*
	Ordinal   int
	Name      string
	WeakImport bool
	Addend    int64
}

func sleb128(v int64) []byte {
	var out []byte
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

func encodeOrdinal(out []byte, ordinal int) []byte {
	switch {
	case ordinal <= 0:
		return append(out, byte(types.BIND_OPCODE_SET_DYLIB_SPECIAL_IMM)|byte(uint8(int8(ordinal))&0x0f))
	case ordinal <= 0x0f:
		return append(out, byte(types.BIND_OPCODE_SET_DYLIB_ORDINAL_IMM)|byte(ordinal))
	default:
		out = append(out, byte(types.BIND_OPCODE_SET_DYLIB_ORDINAL_ULEB))
		return append(out, uleb128(uint64(ordinal))...)
	}
}

// EncodeBindInfo encodes entries into a single dyld bind-opcode stream
// (spec.md §4.7). It takes no stream kind and encodes every entry the
// same way, whichever of the regular, lazy or weak streams it is. Entries
// should be pre-sorted by (segIndex, segOffset) for compact encoding, but
// correctness does not depend on it.
func EncodeBindInfo(entries []BindEntry) []byte {
	var out []byte
	curOrdinal := int(^uint(0) >> 1) // sentinel: force first SET_DYLIB
	curType := uint8(0)
	curName := ""
	curAddend := int64(0)

	for _, e := range entries {
		if e.Ordinal != curOrdinal {
			out = encodeOrdinal(out, e.Ordinal)
			curOrdinal = e.Ordinal
		}
		if e.Name != curName {
			flags := byte(0)
			if e.WeakImport {
				flags |= types.BIND_SYMBOL_FLAGS_WEAK_IMPORT
			}
			out = append(out, byte(types.BIND_OPCODE_SET_SYMBOL_TRAILING_FLAGS_IMM)|flags)
			out = append(out, []byte(e.Name)...)
			out = append(out, 0)
			curName = e.Name
		}
		if e.Type != curType {
			out = append(out, byte(types.BIND_OPCODE_SET_TYPE_IMM)|byte(e.Type))
			curType = e.Type
		}
		if e.Addend != curAddend {
			out = append(out, byte(types.BIND_OPCODE_SET_ADDEND_SLEB))
			out = append(out, sleb128(e.Addend)...)
			curAddend = e.Addend
		}
		out = append(out, byte(types.BIND_OPCODE_SET_SEGMENT_AND_OFFSET_ULEB)|byte(e.SegIndex&0x0f))
		out = append(out, uleb128(e.SegOffset)...)
		out = append(out, byte(types.BIND_OPCODE_DO_BIND))
	}
	out = append(out, byte(types.BIND_OPCODE_DONE))
	return out
}

// ClassifiedBind pairs a BindEntry with the stream it belongs to, the unit
// PartitionBinds fans a flat fixup-derived bind list out into three
// independent streams from.
type ClassifiedBind struct {
	Entry BindEntry
	Kind  BindKind
}

// PartitionBinds splits a flat fixup-derived bind list into the three
// streams the emitter writes independently (spec.md §4.7).
func PartitionBinds(all []ClassifiedBind) (regular, lazy, weak []BindEntry) {
	for _, b := range all {
		switch b.Kind {
		case BindLazy:
			lazy = append(lazy, b.Entry)
		case BindWeak:
			weak = append(weak, b.Entry)
		default:
			regular = append(regular, b.Entry)
		}
	}
	return
}
