package state_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/appsworld/ld64core/internal/testatom"
	"github.com/appsworld/ld64core/pkg/state"
	"github.com/appsworld/ld64core/types"
)

func TestAddDylibAssignsSequentialOrdinalsStartingAt1(t *testing.T) {
	in := state.NewInternal(types.NewOptions())

	o1 := in.AddDylib(&types.DylibInfo{InstallName: "/usr/lib/libSystem.B.dylib"})
	o2 := in.AddDylib(&types.DylibInfo{InstallName: "/usr/lib/libfoo.dylib"})

	require.Equal(t, 1, o1)
	require.Equal(t, 2, o2)
	require.Equal(t, "/usr/lib/libSystem.B.dylib", in.DylibByOrdinal(1).InstallName)
	require.Equal(t, "/usr/lib/libfoo.dylib", in.DylibByOrdinal(2).InstallName)
	require.Nil(t, in.DylibByOrdinal(0))
	require.Nil(t, in.DylibByOrdinal(99))
}

func TestSectionForCreatesThenReuses(t *testing.T) {
	in := state.NewInternal(types.NewOptions())
	key := types.SectionKey{Segment: "__TEXT", Section: "__text", Type: types.SectionRegular}

	sec1 := in.SectionFor(key)
	sec2 := in.SectionFor(key)

	require.Same(t, sec1, sec2)
	require.Len(t, in.Sections, 1)
}

func TestInsertBeforeSectionEndKeepsEndMarkerLast(t *testing.T) {
	in := state.NewInternal(types.NewOptions())
	key := types.SectionKey{Segment: "__TEXT", Section: "__text", Type: types.SectionRegular}
	sec := in.SectionFor(key)

	endMarker := types.NewAtom("section$end$__TEXT$__text", testatom.Zeros(0), nil)
	endMarker.ContentType = types.ContentSectionEnd
	in.AppendAtom(sec, endMarker)

	body := types.NewAtom("_f", testatom.Zeros(4), nil)
	in.InsertBeforeSectionEnd(sec, body)

	require.Len(t, sec.Atoms, 2)
	require.Equal(t, body, sec.Atoms[0])
	require.Equal(t, endMarker, sec.Atoms[1])
}

func TestAllLiveAtomsWalksSectionsInOrder(t *testing.T) {
	in := state.NewInternal(types.NewOptions())
	textKey := types.SectionKey{Segment: "__TEXT", Section: "__text", Type: types.SectionRegular}
	dataKey := types.SectionKey{Segment: "__DATA", Section: "__data", Type: types.SectionRegular}

	a1 := types.NewAtom("_a", testatom.Zeros(4), nil)
	a2 := types.NewAtom("_b", testatom.Zeros(4), nil)
	in.AppendAtom(in.SectionFor(textKey), a1)
	in.AppendAtom(in.SectionFor(dataKey), a2)

	require.Equal(t, []*types.Atom{a1, a2}, in.AllLiveAtoms())
}

func TestFreezeIndirectBindingTable(t *testing.T) {
	in := state.NewInternal(types.NewOptions())
	atom := types.NewAtom("_x", testatom.Zeros(4), nil)

	in.FreezeIndirectBindingTable([]string{"_x"}, []*types.Atom{atom})

	require.Equal(t, []string{"_x"}, in.IndirectBindingNames)
	require.Equal(t, []*types.Atom{atom}, in.IndirectBindingAtoms)
}

func TestSortDylibsByOrdinalPutsPlaceholderFirst(t *testing.T) {
	in := state.NewInternal(types.NewOptions())
	in.AddDylib(&types.DylibInfo{InstallName: "/usr/lib/libb.dylib"})
	in.AddDylib(&types.DylibInfo{InstallName: "/usr/lib/liba.dylib"})

	// scramble order, keep ordinals intact
	in.Dylibs[1], in.Dylibs[2] = in.Dylibs[2], in.Dylibs[1]
	in.SortDylibsByOrdinal()

	require.Nil(t, in.Dylibs[0])
	require.Equal(t, 1, in.Dylibs[1].Ordinal)
	require.Equal(t, 2, in.Dylibs[2].Ordinal)
}
