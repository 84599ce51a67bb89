package linkedit_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/appsworld/ld64core/internal/testatom"
	"github.com/appsworld/ld64core/pkg/linkedit"
	"github.com/appsworld/ld64core/pkg/state"
	"github.com/appsworld/ld64core/pkg/trie"
	"github.com/appsworld/ld64core/types"
)

func TestBuildContentUUIDIsDeterministicAndStampsRFC4122Bits(t *testing.T) {
	image := []byte("some link image bytes")

	u1 := linkedit.BuildContentUUID(image)
	u2 := linkedit.BuildContentUUID(image)

	require.Equal(t, u1, u2)
	require.Equal(t, byte(0x30), u1[6]&0xf0)
	require.Equal(t, byte(0x80), u1[8]&0xc0)

	other := linkedit.BuildContentUUID([]byte("different bytes"))
	require.NotEqual(t, u1, other)
}

func TestBuildSplitSegInfoOnlyWhenSharedRegionEligible(t *testing.T) {
	opts := types.NewOptions()
	in := state.NewInternal(opts)
	require.Nil(t, linkedit.BuildSplitSegInfo(opts, in))
}

func TestBuildSplitSegInfoRecordsCrossSegmentPointer(t *testing.T) {
	opts := types.NewOptions(types.SharedRegionEligible())
	in := state.NewInternal(opts)

	dataKey := types.SectionKey{Segment: "__DATA", Section: "__data", Type: types.SectionRegular}
	textKey := types.SectionKey{Segment: "__TEXT", Section: "__text", Type: types.SectionRegular}
	target := types.NewAtom("_g", testatom.Zeros(8), nil)
	target.Section = dataKey
	target.SetFinalAddress(0x4000)

	src := types.NewAtom("_f", testatom.Zeros(8), nil)
	src.Section = textKey
	src.SetFixups([]types.Fixup{{
		Kind:         types.FixupStorePointer64,
		OffsetInAtom: 0,
		Target:       types.TargetRef{Atom: target, Name: "_g"},
	}})
	src.SetSectionOffset(0)

	in.AppendAtom(in.SectionFor(textKey), src)
	in.AppendAtom(in.SectionFor(dataKey), target)

	recs := linkedit.BuildSplitSegInfo(opts, in)
	require.Len(t, recs, 1)
	require.Equal(t, uint64(0), recs[0].FromSectionOffset)
}

func liveGlobalAtom(name string, addr uint64) *types.Atom {
	a := types.NewAtom(name, testatom.Zeros(4), nil)
	a.Definition = types.DefinitionRegular
	a.Scope = types.ScopeGlobal
	a.SymbolTableInclusion = types.SymbolTableIn
	a.SetLive(true)
	a.SetFinalAddress(addr)
	return a
}

func TestBuildSymbolTablePartitionsLocalsGlobalsAndUndefineds(t *testing.T) {
	opts := types.NewOptions()
	in := state.NewInternal(opts)
	key := types.SectionKey{Segment: "__TEXT", Section: "__text", Type: types.SectionRegular}
	sec := in.SectionFor(key)

	global := liveGlobalAtom("_global", 0x1000)
	local := liveGlobalAtom("_local", 0x1010)
	local.Scope = types.ScopeTranslationUnit

	sec.Atoms = []*types.Atom{global, local}
	sec.Index = 1

	st := linkedit.BuildSymbolTable(in, []string{"_undef"})

	require.Len(t, st.Globals, 1)
	require.Equal(t, "_global", st.Globals[0].Name)
	require.Len(t, st.Locals, 1)
	require.Equal(t, "_local", st.Locals[0].Name)
	require.Len(t, st.Undefineds, 1)
	require.Equal(t, "_undef", st.Undefineds[0].Name)
	require.Equal(t, 1, int(global.MachoSection()))
}

func TestBuildIndirectSymbolTableResolvesStubTargets(t *testing.T) {
	opts := types.NewOptions()
	in := state.NewInternal(opts)
	key := types.SectionKey{Segment: "__TEXT", Section: "__stubs", Type: types.SectionSymbolStubs}
	sec := in.SectionFor(key)

	stub := types.NewAtom("_stub_to_foo", testatom.Zeros(4), nil)
	stub.SetFixups([]types.Fixup{{Kind: types.FixupBindIndirectlyBound, Target: types.TargetRef{Name: "_foo"}}})
	sec.Atoms = []*types.Atom{stub}

	out := linkedit.BuildIndirectSymbolTable(in, func(name string) (uint32, bool) {
		if name == "_foo" {
			return 7, true
		}
		return 0, false
	})

	require.Equal(t, []uint32{7}, out)
}

func TestBuildIndirectSymbolTableUnresolvedIsLocal(t *testing.T) {
	opts := types.NewOptions()
	in := state.NewInternal(opts)
	key := types.SectionKey{Segment: "__DATA", Section: "__nl_symbol_ptr", Type: types.SectionNonLazySymbolPointers}
	sec := in.SectionFor(key)

	ptr := types.NewAtom("_ptr", testatom.Zeros(8), nil)
	sec.Atoms = []*types.Atom{ptr}

	out := linkedit.BuildIndirectSymbolTable(in, func(string) (uint32, bool) { return 0, false })

	require.Equal(t, []uint32{linkedit.IndirectSymbolLocal}, out)
}

func TestEncodeRebaseInfoEndsWithDoneOpcode(t *testing.T) {
	entries := []linkedit.RebaseEntry{
		{Type: 1, SegIndex: 1, SegOffset: 0x10},
		{Type: 1, SegIndex: 1, SegOffset: 0x18},
	}
	out := linkedit.EncodeRebaseInfo(entries, 8)

	require.NotEmpty(t, out)
	require.Equal(t, byte(types.REBASE_OPCODE_DONE), out[len(out)-1])
}

func TestEncodeRebaseInfoEmptyIsEmpty(t *testing.T) {
	require.Empty(t, linkedit.EncodeRebaseInfo(nil, 8))
}

func TestOrdinalMappingAssignsFirstSeenOrder(t *testing.T) {
	m := linkedit.NewOrdinalMapping()
	a := &types.DylibInfo{InstallName: "/usr/lib/liba.dylib"}
	b := &types.DylibInfo{InstallName: "/usr/lib/libb.dylib"}

	require.Equal(t, 1, m.OrdinalFor(a))
	require.Equal(t, 2, m.OrdinalFor(b))
	require.Equal(t, 1, m.OrdinalFor(a)) // stable on repeat
	require.Equal(t, []*types.DylibInfo{a, b}, m.Ordered())
}

func TestOrdinalMappingNilDylibIsFlatLookup(t *testing.T) {
	m := linkedit.NewOrdinalMapping()
	require.Equal(t, linkedit.BindSpecialDylibFlatLookup, m.OrdinalFor(nil))
}

func TestEncodeBindInfoEndsWithDoneAndContainsName(t *testing.T) {
	entries := []linkedit.BindEntry{
		{SegIndex: 1, SegOffset: 0x10, Ordinal: 2, Name: "_foo", Type: 1},
	}
	out := linkedit.EncodeBindInfo(entries)

	require.NotEmpty(t, out)
	require.Equal(t, byte(types.BIND_OPCODE_DONE), out[len(out)-1])
	require.Contains(t, string(out), "_foo")
}

func TestPartitionBindsSplitsByKind(t *testing.T) {
	all := []linkedit.ClassifiedBind{
		{Entry: linkedit.BindEntry{Name: "_a"}, Kind: linkedit.BindRegular},
		{Entry: linkedit.BindEntry{Name: "_b"}, Kind: linkedit.BindLazy},
		{Entry: linkedit.BindEntry{Name: "_c"}, Kind: linkedit.BindWeak},
	}
	regular, lazy, weak := linkedit.PartitionBinds(all)

	require.Equal(t, "_a", regular[0].Name)
	require.Equal(t, "_b", lazy[0].Name)
	require.Equal(t, "_c", weak[0].Name)
}

func TestBuildExportTrieIncludesOnlyExportedLiveAtoms(t *testing.T) {
	opts := types.NewOptions()
	in := state.NewInternal(opts)
	key := types.SectionKey{Segment: "__TEXT", Section: "__text", Type: types.SectionRegular}
	sec := in.SectionFor(key)

	exported := liveGlobalAtom("_exported", 0x2000)
	notExported := liveGlobalAtom("_hidden", 0x2010)
	notExported.SymbolTableInclusion = types.SymbolTableNotIn
	dead := liveGlobalAtom("_dead", 0x2020)
	dead.SetLive(false)

	sec.Atoms = []*types.Atom{exported, notExported, dead}

	data := linkedit.BuildExportTrie(in, linkedit.NewOrdinalMapping(), nil)
	entries, err := trie.ParseTrie(data, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "_exported", entries[0].Name)
}
