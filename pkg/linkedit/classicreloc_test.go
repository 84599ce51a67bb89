package linkedit_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/appsworld/ld64core/internal/testatom"
	"github.com/appsworld/ld64core/pkg/linkedit"
	"github.com/appsworld/ld64core/types"
)

func TestExternalRequiredPerArchitectureRules(t *testing.T) {
	require.True(t, linkedit.ExternalRequired(types.CPUAmd64, false, false))
	require.True(t, linkedit.ExternalRequired(types.CPUAmd64, true, true))

	require.False(t, linkedit.ExternalRequired(types.CPUArm, false, false))
	require.True(t, linkedit.ExternalRequired(types.CPUArm, true, false))

	require.False(t, linkedit.ExternalRequired(types.CPU386, false, false))
	require.True(t, linkedit.ExternalRequired(types.CPU386, false, true))

	require.False(t, linkedit.ExternalRequired(types.CPUArm64, true, true))
}

func TestBuildClassicRelocationsExternalUsesSymbolIndex(t *testing.T) {
	target := types.NewAtom("_target", testatom.Zeros(4), nil)
	atom := types.NewAtom("_caller", testatom.Zeros(8), []types.Fixup{{
		Kind:         types.FixupStorePointer64,
		OffsetInAtom: 4,
		Target:       types.TargetRef{Atom: target, Name: "_target"},
	}})

	index := map[string]uint32{"_target": 7}
	relocs := linkedit.BuildClassicRelocations(types.CPUAmd64, []*types.Atom{atom}, func(name string) (uint32, bool) {
		i, ok := index[name]
		return i, ok
	})

	require.Len(t, relocs, 1)
	require.True(t, relocs[0].External)
	require.Equal(t, uint32(4), relocs[0].Address)
	require.Equal(t, uint32(7), relocs[0].SymbolOrSection)
	require.Equal(t, uint8(3), relocs[0].Length) // 64-bit store -> length 3
}

func TestBuildClassicRelocationsLocalUsesSectionIndex(t *testing.T) {
	target := types.NewAtom("_target", testatom.Zeros(4), nil)
	atom := types.NewAtom("_caller", testatom.Zeros(8), []types.Fixup{{
		Kind:         types.FixupStorePointer64,
		OffsetInAtom: 0,
		Target:       types.TargetRef{Atom: target, Name: "_target"},
	}})

	relocs := linkedit.BuildClassicRelocations(types.CPUArm, []*types.Atom{atom}, func(string) (uint32, bool) {
		return 0, false
	})

	require.Len(t, relocs, 1)
	require.False(t, relocs[0].External)
	require.Equal(t, uint32(atom.MachoSection()), relocs[0].SymbolOrSection)
}

func TestBuildClassicRelocationsSkipsNonStoreNonBindFixups(t *testing.T) {
	atom := types.NewAtom("_a", testatom.Zeros(8), []types.Fixup{{
		Kind: types.FixupAddAddend,
	}})

	relocs := linkedit.BuildClassicRelocations(types.CPUAmd64, []*types.Atom{atom}, func(string) (uint32, bool) {
		return 0, false
	})
	require.Empty(t, relocs)
}

func TestBuildClassicRelocationsIsStableAcrossEquivalentRuns(t *testing.T) {
	target := types.NewAtom("_target", testatom.Zeros(4), nil)
	newCaller := func() *types.Atom {
		return types.NewAtom("_caller", testatom.Zeros(8), []types.Fixup{{
			Kind:         types.FixupStorePointer64,
			OffsetInAtom: 4,
			Target:       types.TargetRef{Atom: target, Name: "_target"},
		}})
	}
	index := func(string) (uint32, bool) { return 7, true }

	first := linkedit.BuildClassicRelocations(types.CPUAmd64, []*types.Atom{newCaller()}, index)
	second := linkedit.BuildClassicRelocations(types.CPUAmd64, []*types.Atom{newCaller()}, index)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("relocation list differs across equivalent inputs (-first +second):\n%s", diff)
	}
}

func TestBuildClassicRelocationsPCRelativeBranchIsDetected(t *testing.T) {
	target := types.NewAtom("_target", testatom.Zeros(4), nil)
	atom := types.NewAtom("_caller", testatom.Zeros(8), []types.Fixup{{
		Kind:         types.FixupStoreARMBranch24,
		OffsetInAtom: 0,
		Target:       types.TargetRef{Atom: target, Name: "_target"},
	}})

	relocs := linkedit.BuildClassicRelocations(types.CPUArm, []*types.Atom{atom}, func(string) (uint32, bool) {
		return 0, false
	})

	require.Len(t, relocs, 1)
	require.True(t, relocs[0].PCRelative)
}
