package fixup_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/appsworld/ld64core/internal/testatom"
	"github.com/appsworld/ld64core/pkg/fixup"
	"github.com/appsworld/ld64core/types"
)

func withAddr(name string, size uint64, addr uint64) *types.Atom {
	a := types.NewAtom(name, testatom.Zeros(size), nil)
	a.SetFinalAddress(addr)
	return a
}

func TestApplyAtomStoresPointer64(t *testing.T) {
	target := withAddr("_target", 4, 0x1000)
	src := withAddr("_src", 8, 0x2000)
	src.SetFixups([]types.Fixup{
		{ClusterID: 0, Kind: types.FixupSetTargetAddress, Target: types.TargetRef{Atom: target, Name: "_target"}},
		{ClusterID: 0, Kind: types.FixupStorePointer64, OffsetInAtom: 0},
	})

	buf := make([]byte, 8)
	ap := fixup.NewApplier(0)
	bindings, err := ap.ApplyAtom(src, buf)

	require.NoError(t, err)
	require.Empty(t, bindings)
	require.Equal(t, uint64(0x1000), binary.LittleEndian.Uint64(buf))
}

func TestApplyAtomAddAddend(t *testing.T) {
	target := withAddr("_target", 4, 0x1000)
	src := withAddr("_src", 4, 0x2000)
	src.SetFixups([]types.Fixup{
		{ClusterID: 0, Kind: types.FixupSetTargetAddress, Target: types.TargetRef{Atom: target, Name: "_target"}},
		{ClusterID: 0, Kind: types.FixupAddAddend, Addend: 4},
		{ClusterID: 0, Kind: types.FixupStorePointer32, OffsetInAtom: 0},
	})

	buf := make([]byte, 4)
	ap := fixup.NewApplier(0)
	_, err := ap.ApplyAtom(src, buf)

	require.NoError(t, err)
	require.Equal(t, uint32(0x1004), binary.LittleEndian.Uint32(buf))
}

func TestApplyAtomReturnsUnresolvedBindings(t *testing.T) {
	src := withAddr("_src", 8, 0x2000)
	src.SetFixups([]types.Fixup{
		{ClusterID: 0, Kind: types.FixupBindByNameUnbound, Target: types.TargetRef{Name: "_extern"}},
	})

	buf := make([]byte, 8)
	ap := fixup.NewApplier(0)
	bindings, err := ap.ApplyAtom(src, buf)

	require.NoError(t, err)
	require.Len(t, bindings, 1)
	require.Equal(t, "_extern", bindings[0].Target.Name)
}

func TestApplyAtomStorePointer32OutOfRangeErrors(t *testing.T) {
	target := withAddr("_target", 4, 0x1_0000_1000) // doesn't fit in 32 bits
	src := withAddr("_src", 4, 0x2000)
	src.SetFixups([]types.Fixup{
		{ClusterID: 0, Kind: types.FixupSetTargetAddress, Target: types.TargetRef{Atom: target, Name: "_target"}},
		{ClusterID: 0, Kind: types.FixupStorePointer32, OffsetInAtom: 0},
	})

	buf := make([]byte, 4)
	ap := fixup.NewApplier(0)
	_, err := ap.ApplyAtom(src, buf)

	require.Error(t, err)
	var rangeErr *fixup.RangeError
	require.ErrorAs(t, err, &rangeErr)
}

func TestApplyAtomBranch24OutOfRangeErrors(t *testing.T) {
	target := withAddr("_target", 4, 0x10_000_000) // far beyond a 24-bit << 2 branch window
	src := withAddr("_src", 4, 0x1000)
	src.SetFixups([]types.Fixup{
		{ClusterID: 0, Kind: types.FixupSetTargetAddress, Target: types.TargetRef{Atom: target, Name: "_target"}},
		{ClusterID: 0, Kind: types.FixupStoreARMBranch24, OffsetInAtom: 0},
	})

	buf := make([]byte, 4)
	ap := fixup.NewApplier(0)
	_, err := ap.ApplyAtom(src, buf)

	require.Error(t, err)
}

func TestApplyAtomX86BranchPCRel32ComputesDisplacement(t *testing.T) {
	target := withAddr("_target", 4, 0x2010)
	src := withAddr("_src", 8, 0x2000)
	src.SetFixups([]types.Fixup{
		{ClusterID: 0, Kind: types.FixupSetTargetAddress, Target: types.TargetRef{Atom: target, Name: "_target"}},
		{ClusterID: 0, Kind: types.FixupStoreX86BranchPCRel32, OffsetInAtom: 4},
	})

	buf := make([]byte, 8)
	ap := fixup.NewApplier(0)
	_, err := ap.ApplyAtom(src, buf)

	require.NoError(t, err)
	// target(0x2010) - (src(0x2000) + off(4) + insnLen(4)) == 0x08
	require.Equal(t, int32(0x08), int32(binary.LittleEndian.Uint32(buf[4:])))
}

func TestApplyAtomX86BranchPCRel8OutOfRangeErrors(t *testing.T) {
	target := withAddr("_target", 4, 0x3000)
	src := withAddr("_src", 4, 0x1000)
	src.SetFixups([]types.Fixup{
		{ClusterID: 0, Kind: types.FixupSetTargetAddress, Target: types.TargetRef{Atom: target, Name: "_target"}},
		{ClusterID: 0, Kind: types.FixupStoreX86BranchPCRel8, OffsetInAtom: 0},
	})

	buf := make([]byte, 4)
	ap := fixup.NewApplier(0)
	_, err := ap.ApplyAtom(src, buf)

	require.Error(t, err)
}

func TestApplyAtomStoreWidths(t *testing.T) {
	target := withAddr("_target", 4, 0x7E)
	src := withAddr("_src", 16, 0x1000)
	src.SetFixups([]types.Fixup{
		{ClusterID: 0, Kind: types.FixupSetTargetAddress, Target: types.TargetRef{Atom: target, Name: "_target"}},
		{ClusterID: 0, Kind: types.FixupStore8, OffsetInAtom: 0},
		{ClusterID: 1, Kind: types.FixupSetTargetAddress, Target: types.TargetRef{Atom: target, Name: "_target"}},
		{ClusterID: 1, Kind: types.FixupStoreLE16, OffsetInAtom: 1},
		{ClusterID: 2, Kind: types.FixupSetTargetAddress, Target: types.TargetRef{Atom: target, Name: "_target"}},
		{ClusterID: 2, Kind: types.FixupStoreBE16, OffsetInAtom: 3},
		{ClusterID: 3, Kind: types.FixupSetTargetAddress, Target: types.TargetRef{Atom: target, Name: "_target"}},
		{ClusterID: 3, Kind: types.FixupStoreLE24, OffsetInAtom: 5},
		{ClusterID: 4, Kind: types.FixupSetTargetAddress, Target: types.TargetRef{Atom: target, Name: "_target"}},
		{ClusterID: 4, Kind: types.FixupStoreBE24, OffsetInAtom: 8},
		{ClusterID: 5, Kind: types.FixupSetTargetAddress, Target: types.TargetRef{Atom: target, Name: "_target"}},
		{ClusterID: 5, Kind: types.FixupStoreBigEndian64, OffsetInAtom: 8},
	})

	buf := make([]byte, 16)
	ap := fixup.NewApplier(0)
	_, err := ap.ApplyAtom(src, buf)

	require.NoError(t, err)
	require.Equal(t, byte(0x7E), buf[0])
	require.Equal(t, uint16(0x7E), binary.LittleEndian.Uint16(buf[1:]))
	require.Equal(t, uint16(0x7E), binary.BigEndian.Uint16(buf[3:]))
}

func TestApplyAtomSubtractAddendAndLazyOffset(t *testing.T) {
	src := withAddr("_src", 4, 0x1000)
	src.SetFixups([]types.Fixup{
		{ClusterID: 0, Kind: types.FixupSetLazyOffset, Addend: 0x40},
		{ClusterID: 0, Kind: types.FixupSubtractAddend, Addend: 0x10},
		{ClusterID: 0, Kind: types.FixupStoreLittleEndian32, OffsetInAtom: 0},
	})

	buf := make([]byte, 4)
	ap := fixup.NewApplier(0)
	_, err := ap.ApplyAtom(src, buf)

	require.NoError(t, err)
	require.Equal(t, uint32(0x30), binary.LittleEndian.Uint32(buf))
}

func TestApplyAtomSetTargetSectionOffsetUsesAtomSectionOffset(t *testing.T) {
	target := types.NewAtom("_target", testatom.Zeros(4), nil)
	target.SetSectionOffset(0x20)
	target.SetFinalAddress(0x9000)
	src := withAddr("_src", 4, 0x1000)
	src.SetFixups([]types.Fixup{
		{ClusterID: 0, Kind: types.FixupSetTargetSectionOffset, Target: types.TargetRef{Atom: target, Name: "_target"}},
		{ClusterID: 0, Kind: types.FixupStoreLittleEndian32, OffsetInAtom: 0},
	})

	buf := make([]byte, 4)
	ap := fixup.NewApplier(0)
	_, err := ap.ApplyAtom(src, buf)

	require.NoError(t, err)
	require.Equal(t, uint32(0x20), binary.LittleEndian.Uint32(buf))
}

func TestApplyAtomThumbHiLo16PacksImmediateFields(t *testing.T) {
	target := withAddr("_target", 4, 0x12345678)
	src := withAddr("_src", 8, 0x1000)
	src.Thumb = true
	src.SetFixups([]types.Fixup{
		{ClusterID: 0, Kind: types.FixupSetTargetAddress, Target: types.TargetRef{Atom: target, Name: "_target"}},
		{ClusterID: 0, Kind: types.FixupStoreThumbHi16, OffsetInAtom: 0},
		{ClusterID: 1, Kind: types.FixupSetTargetAddress, Target: types.TargetRef{Atom: target, Name: "_target"}},
		{ClusterID: 1, Kind: types.FixupStoreThumbLo16, OffsetInAtom: 4},
	})

	buf := make([]byte, 8)
	ap := fixup.NewApplier(0)
	_, err := ap.ApplyAtom(src, buf)

	require.NoError(t, err)
	// Hi16 half is 0x1234: imm4=1, i=0, imm3=2, imm8=0x34.
	require.Equal(t, byte(0x01), buf[0]&0x0f)
	require.Equal(t, byte(0x34), buf[2])
}

func TestApplyAtomSetTargetImageOffsetUsesHeaderAddress(t *testing.T) {
	target := withAddr("_target", 4, 0x3000)
	src := withAddr("_src", 8, 0x4000)
	src.SetFixups([]types.Fixup{
		{ClusterID: 0, Kind: types.FixupSetTargetImageOffset, Target: types.TargetRef{Atom: target, Name: "_target"}},
		{ClusterID: 0, Kind: types.FixupStorePointer64, OffsetInAtom: 0},
	})

	buf := make([]byte, 8)
	ap := fixup.NewApplier(0x1000)
	_, err := ap.ApplyAtom(src, buf)

	require.NoError(t, err)
	require.Equal(t, uint64(0x2000), binary.LittleEndian.Uint64(buf))
}
