package linkedit_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/appsworld/ld64core/internal/testatom"
	"github.com/appsworld/ld64core/pkg/linkedit"
	"github.com/appsworld/ld64core/pkg/state"
	"github.com/appsworld/ld64core/types"
)

func newInternalWithOneSegment(t *testing.T) *state.Internal {
	t.Helper()
	opts := types.NewOptions(types.Architecture(types.CPUArm64, 0), types.OutputKindOpt(types.OutputDynamicExecutable))
	in := state.NewInternal(opts)
	sec := in.SectionFor(types.SectionKey{Segment: "__TEXT", Section: "__text", Type: types.SectionRegular})
	sec.Index = 1
	sec.Address = 0x1000
	sec.FileOffset = 0x1000

	entry := types.NewAtom("_main", testatom.Zeros(16), nil)
	entry.SymbolTableInclusion = types.SymbolTableIn
	entry.Scope = types.ScopeGlobal
	entry.SetFinalAddress(0x1000)
	in.AppendAtom(sec, entry)
	in.EntryPoint = entry

	in.Segments = []*types.SegmentLayout{{
		Name:       "__TEXT",
		Protection: 5,
		MaxProt:    7,
		Address:    0x1000,
		Size:       0x1000,
		FileOffset: 0,
		FileSize:   0x1000,
		Sections:   []*types.FinalSection{sec},
	}}
	return in
}

func TestAssembleLoadCommandsMapsSegmentFields(t *testing.T) {
	in := newInternalWithOneSegment(t)
	st := linkedit.BuildSymbolTable(in, nil)

	lc := linkedit.AssembleLoadCommands(in, st, 0x2000)

	require.Len(t, lc.Segments, 1)
	require.Equal(t, uint64(0x1000), lc.Segments[0].Addr)
	require.Equal(t, uint64(0x1000), lc.Segments[0].Memsz)
	require.Equal(t, uint32(1), lc.Segments[0].Nsect)
}

func TestAssembleLoadCommandsComputesSymtabAndDysymtabRanges(t *testing.T) {
	in := newInternalWithOneSegment(t)
	st := linkedit.BuildSymbolTable(in, nil)

	lc := linkedit.AssembleLoadCommands(in, st, 0x2000)

	require.Equal(t, uint32(0x2000), lc.Symtab.Symoff)
	require.Equal(t, uint32(len(st.Locals)+len(st.Globals)+len(st.Undefineds)), lc.Symtab.Nsyms)
	require.Equal(t, uint32(len(st.Locals)), lc.Dysymtab.Nlocalsym)
	require.Equal(t, uint32(len(st.Locals)), lc.Dysymtab.Iextdefsym)
	require.Equal(t, uint32(len(st.Globals)), lc.Dysymtab.Nextdefsym)
	require.Equal(t, uint32(len(st.Locals)+len(st.Globals)), lc.Dysymtab.Iundefsym)
}

func TestAssembleLoadCommandsSelectsDylibKindByFlags(t *testing.T) {
	in := newInternalWithOneSegment(t)
	in.AddDylib(&types.DylibInfo{InstallName: "/usr/lib/libnormal.dylib"})
	in.AddDylib(&types.DylibInfo{InstallName: "/usr/lib/libup.dylib", IsUpward: true})
	in.AddDylib(&types.DylibInfo{InstallName: "/usr/lib/libreexport.dylib", ReExport: true})
	st := linkedit.BuildSymbolTable(in, nil)

	lc := linkedit.AssembleLoadCommands(in, st, 0x2000)

	require.Len(t, lc.Dylibs, 3)
	require.Equal(t, types.LC_LOAD_DYLIB, lc.Dylibs[0].Command())
	require.Equal(t, types.LC_LOAD_UPWARD_DYLIB, lc.Dylibs[1].Command())
	require.Equal(t, types.LC_REEXPORT_DYLIB, lc.Dylibs[2].Command())
}

func TestAssembleLoadCommandsComputesEntryPointFileOffset(t *testing.T) {
	in := newInternalWithOneSegment(t)
	st := linkedit.BuildSymbolTable(in, nil)

	lc := linkedit.AssembleLoadCommands(in, st, 0x2000)

	require.NotNil(t, lc.EntryPoint)
	require.Equal(t, uint64(0x1000), lc.EntryPoint.Offset)
}

func TestAssembleLoadCommandsCountsCommandsAndSizes(t *testing.T) {
	in := newInternalWithOneSegment(t)
	st := linkedit.BuildSymbolTable(in, nil)

	lc := linkedit.AssembleLoadCommands(in, st, 0x2000)

	// segment + symtab + dysymtab + uuid + entrypoint, no dylibs
	require.Equal(t, uint32(5), lc.Header.NCommands)
	require.True(t, lc.Header.SizeCommands > 0)
}
