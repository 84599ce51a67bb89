// Package fixup implements the fixup applier (spec component C7): walking
// each atom's fixup clusters to compute an accumulator value and write
// encoded bytes, including ARM hi/lo16 bit-packing and range-checked
// pointer/branch stores.
package fixup

import (
	"fmt"

	"github.com/appsworld/ld64core/types"
)

// RangeError is raised when a computed displacement exceeds its fixup
// kind's window (spec.md §4.6, P8: no silent truncation).
type RangeError struct {
	SrcAtom, DstAtom         string
	SrcAddr, DstAddr         uint64
	Kind                     types.FixupKind
	Displacement             int64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: out of range storing into %s (addr %#x) from %s (addr %#x): displacement %#x",
		e.Kind, e.SrcAtom, e.SrcAddr, e.DstAtom, e.DstAddr, e.Displacement)
}

// Applier walks an atom's fixup stream and mutates its raw content buffer
// in place. It holds no state across atoms; callers invoke ApplyAtom once
// per live atom in any order, since clusters only ever reference other
// atoms' already-assigned final addresses.
type Applier struct {
	header uint64 // Mach-O header's own final address, for SetTargetImageOffset
}

func NewApplier(headerAddress uint64) *Applier { return &Applier{header: headerAddress} }

// ApplyAtom writes atom's fixed-up bytes into buf, which must already
// contain atom's raw, unfixed content (e.g. from atom.CopyRawContent) and
// be exactly atom.Size() bytes long. It returns the list of fixups that
// still require a LINKEDIT bind/rebase record (IsBinding() == true),
// unmodified by the store step, for the emitter to consume.
func (ap *Applier) ApplyAtom(atom *types.Atom, buf []byte) ([]types.Fixup, error) {
	var bindings []types.Fixup
	for _, cluster := range types.ClustersOf(atom.Fixups()) {
		var acc int64
		var thumbTarget bool
		for _, f := range cluster.Fixups {
			switch {
			case f.Kind.IsBinding():
				bindings = append(bindings, f)
				continue
			case f.Kind.IsStore():
				if err := ap.store(atom, buf, f, acc, thumbTarget); err != nil {
					return nil, err
				}
			default:
				var err error
				acc, thumbTarget, err = ap.accumulate(atom, f, acc, thumbTarget)
				if err != nil {
					return nil, err
				}
			}
		}
	}
	return bindings, nil
}

// accumulate applies one value-forming fixup kind to the running cluster
// accumulator (spec.md §4.6).
func (ap *Applier) accumulate(atom *types.Atom, f types.Fixup, acc int64, thumb bool) (int64, bool, error) {
	switch f.Kind {
	case types.FixupSetTargetAddress:
		if f.Target.Atom == nil {
			return acc, thumb, fmt.Errorf("fixup: SetTargetAddress with unbound target in atom %s", atom.Name)
		}
		return int64(f.Target.Atom.FinalAddress()), f.Target.Atom.Thumb, nil
	case types.FixupSubtractTargetAddress:
		if f.Target.Atom == nil {
			return acc, thumb, fmt.Errorf("fixup: SubtractTargetAddress with unbound target in atom %s", atom.Name)
		}
		return acc - int64(f.Target.Atom.FinalAddress()), thumb, nil
	case types.FixupAddAddend:
		return acc + f.Addend, thumb, nil
	case types.FixupSubtractAddend:
		return acc - f.Addend, thumb, nil
	case types.FixupSetTargetImageOffset:
		if f.Target.Atom == nil {
			return acc, thumb, fmt.Errorf("fixup: SetTargetImageOffset with unbound target in atom %s", atom.Name)
		}
		return int64(f.Target.Atom.FinalAddress() - ap.header), thumb, nil
	case types.FixupSetTargetSectionOffset:
		if f.Target.Atom == nil {
			return acc, thumb, fmt.Errorf("fixup: SetTargetSectionOffset with unbound target in atom %s", atom.Name)
		}
		return int64(f.Target.Atom.SectionOffset()), thumb, nil
	case types.FixupSetTargetTLVTemplateOffset:
		if f.Target.Atom == nil {
			return acc, thumb, fmt.Errorf("fixup: SetTargetTLVTemplateOffset with unbound target in atom %s", atom.Name)
		}
		return int64(f.Target.Atom.SectionOffset()), thumb, nil
	case types.FixupLazyTarget:
		if f.Target.Atom == nil {
			return acc, thumb, fmt.Errorf("fixup: LazyTarget with unbound target in atom %s", atom.Name)
		}
		return int64(f.Target.Atom.FinalAddress()), f.Target.Atom.Thumb, nil
	case types.FixupSetLazyOffset:
		return f.Addend, thumb, nil
	}
	return acc, thumb, fmt.Errorf("fixup: unexpected value-forming kind %s in atom %s", f.Kind, atom.Name)
}

func checkSigned(v int64, bits uint) bool {
	lo := -(int64(1) << (bits - 1))
	hi := (int64(1) << (bits - 1)) - 1
	return v >= lo && v <= hi
}

func checkUnsigned(v int64, bits uint) bool {
	if v < 0 {
		return false
	}
	return uint64(v) < (uint64(1) << bits)
}

// store writes the accumulated value for a cluster's terminal fixup kind,
// range-checking per spec.md §4.6.
func (ap *Applier) store(atom *types.Atom, buf []byte, f types.Fixup, acc int64, thumbTarget bool) error {
	off := f.OffsetInAtom
	dstName, dstAddr := targetDesc(f)

	rangeErr := func() error {
		return &RangeError{
			SrcAtom: atom.Name, DstAtom: dstName,
			SrcAddr: safeFinalAddr(atom), DstAddr: dstAddr,
			Kind: f.Kind, Displacement: acc,
		}
	}

	switch f.Kind {
	case types.FixupStorePointer32, types.FixupStoreLittleEndian32, types.FixupStoreTargetAddressLittleEndian32:
		if !checkUnsigned(acc, 32) && !checkSigned(acc, 32) {
			return rangeErr()
		}
		if f.WasInstructionRewritten {
			if err := ap.rewriteInstruction(f, buf, off); err != nil {
				return err
			}
		}
		putLE32(buf, off, uint32(acc))
	case types.FixupStorePointer64, types.FixupStoreLittleEndian64, types.FixupStoreTargetAddressLittleEndian64:
		if f.WasInstructionRewritten {
			if err := ap.rewriteInstruction(f, buf, off); err != nil {
				return err
			}
		}
		putLE64(buf, off, uint64(acc))
	case types.FixupStoreBigEndian32:
		if !checkUnsigned(acc, 32) && !checkSigned(acc, 32) {
			return rangeErr()
		}
		putBE32(buf, off, uint32(acc))
	case types.FixupStoreBigEndian64:
		putBE64(buf, off, uint64(acc))
	case types.FixupStore8:
		if !checkUnsigned(acc, 8) && !checkSigned(acc, 8) {
			return rangeErr()
		}
		put8(buf, off, uint8(acc))
	case types.FixupStoreLE16:
		if !checkUnsigned(acc, 16) && !checkSigned(acc, 16) {
			return rangeErr()
		}
		putLE16(buf, off, uint16(acc))
	case types.FixupStoreBE16:
		if !checkUnsigned(acc, 16) && !checkSigned(acc, 16) {
			return rangeErr()
		}
		putBE16(buf, off, uint16(acc))
	case types.FixupStoreLE24:
		if !checkUnsigned(acc, 24) && !checkSigned(acc, 24) {
			return rangeErr()
		}
		putLE24(buf, off, uint32(acc))
	case types.FixupStoreBE24:
		if !checkUnsigned(acc, 24) && !checkSigned(acc, 24) {
			return rangeErr()
		}
		putBE24(buf, off, uint32(acc))
	case types.FixupStoreX86BranchPCRel8:
		disp := acc - int64(atom.FinalAddress()+off+1)
		if !checkSigned(disp, 8) {
			return rangeErr()
		}
		put8(buf, off, uint8(int8(disp)))
	case types.FixupStoreX86BranchPCRel32:
		disp := acc - int64(atom.FinalAddress()+off+4)
		if !checkSigned(disp, 32) {
			return rangeErr()
		}
		putLE32(buf, off, uint32(disp))
	case types.FixupStoreARMBranch24:
		disp := acc - int64(atom.FinalAddress()+off)
		if !checkSigned(disp>>2, 24) {
			return rangeErr()
		}
		storeARMBranch24(buf, off, disp, atom.Thumb, thumbTarget)
	case types.FixupStoreThumbBranch22:
		disp := acc - int64(atom.FinalAddress()+off)
		if !checkSigned(disp>>1, 22) {
			return rangeErr()
		}
		storeThumbBranch22(buf, off, disp, thumbTarget)
	case types.FixupStoreARM64Branch26:
		disp := acc - int64(atom.FinalAddress()+off)
		if !checkSigned(disp>>2, 26) {
			return rangeErr()
		}
		storeARM64Branch26(buf, off, disp)
	case types.FixupStoreARMHi16:
		storeARMHiLo16(buf, off, uint32(acc), true)
	case types.FixupStoreARMLo16:
		storeARMHiLo16(buf, off, uint32(acc), false)
	case types.FixupStoreThumbHi16:
		storeThumbHiLo16(buf, off, uint32(acc), true)
	case types.FixupStoreThumbLo16:
		storeThumbHiLo16(buf, off, uint32(acc), false)
	case types.FixupStoreARM64Page21:
		page := (uint64(acc) &^ 0xfff) - (atom.FinalAddress() &^ 0xfff)
		storeARM64Page21(buf, off, int64(page))
	case types.FixupStoreARM64PageOff12:
		storeARM64PageOff12(buf, off, uint32(acc)&0xfff)
	default:
		return fmt.Errorf("fixup: unhandled store kind %s in atom %s", f.Kind, atom.Name)
	}
	return nil
}

// rewriteInstruction performs the byte-level GOT-load-to-LEA or
// TLV-load-to-mov-immediate optimization GOTPass flagged by setting
// WasInstructionRewritten on the cluster's terminal store (spec.md §4.6
// "Instruction-rewriting optimizations").
func (ap *Applier) rewriteInstruction(f types.Fixup, buf []byte, off uint64) error {
	if f.Target.Atom != nil && f.Target.Atom.ContentType == types.ContentTLVDefs {
		return RewriteTLVAbsToLEA(buf, off)
	}
	return RewriteGOTLoadToLEA(buf, off)
}

func targetDesc(f types.Fixup) (string, uint64) {
	if f.Target.Atom != nil {
		addr := uint64(0)
		if f.Target.Atom.HasFinalAddress() {
			addr = f.Target.Atom.FinalAddress()
		}
		return f.Target.Atom.Name, addr
	}
	return f.Target.Name, 0
}

func safeFinalAddr(a *types.Atom) uint64 {
	if a.HasFinalAddress() {
		return a.FinalAddress()
	}
	return 0
}
