package linkedit

import (
	"github.com/appsworld/ld64core/pkg/state"
	"github.com/appsworld/ld64core/types"
)

// Fixed on-disk sizes of the 64-bit load commands this core assembles.
// section_64 entries (80 bytes each) are not modeled here — laying out
// and writing a segment's section table is the external writer's job,
// per spec.md's "C8 reads fixup semantics to emit LINKEDIT streams. A
// single-pass writer (external) then concatenates headers, section
// bytes, and LINKEDIT."
const (
	segmentCommand64Size = 72
	section64Size        = 80
	symtabCommandSize    = 24
	dysymtabCommandSize  = 80
	dylibCommandSize     = 24 // fixed part; the install name string follows
	uuidCommandSize      = 24
	entryPointCommandSize = 24
	nlist64Size          = 16
)

// LoadCommands is the computed set of Mach-O header and load-command field
// values describing the linked image's segments, symbol table, and linked
// dylibs, built entirely from facts the core already knows (layout
// results, the partitioned symbol table, dylib ordinals). Turning this
// into on-disk bytes next to section content and LINKEDIT streams is left
// to the external single-pass writer.
type LoadCommands struct {
	Header     types.FileHeader
	Segments   []types.Segment64
	Symtab     types.SymtabCmd
	Dysymtab   types.DysymtabCmd
	Dylibs     []types.DylibCmd
	DylibNames []string // InstallName per entry in Dylibs, parallel slice
	UUID       types.UUIDCmd
	EntryPoint *types.EntryPointCmd
}

// AssembleLoadCommands computes the header and load commands for a fully
// laid-out Internal (layout.Run must have already run), given its built
// symbol table and the file offset LINKEDIT's own tables start at
// (layout.Run's returned totalFileSize).
func AssembleLoadCommands(in *state.Internal, st *SymbolTable, linkeditFileOffset uint64) LoadCommands {
	lc := LoadCommands{UUID: types.UUIDCmd{LoadCmd: types.LC_UUID, Len: uuidCommandSize, UUID: in.UUID}}

	for _, seg := range in.Segments {
		lc.Segments = append(lc.Segments, types.Segment64{
			LoadCmd: types.LC_SEGMENT_64,
			Len:     segmentCommand64Size + section64Size*uint32(len(seg.Sections)),
			Name:    segName(seg.Name),
			Addr:    seg.Address,
			Memsz:   seg.Size,
			Offset:  seg.FileOffset,
			Filesz:  seg.FileSize,
			Maxprot: seg.MaxProt,
			Prot:    seg.Protection,
			Nsect:   uint32(len(seg.Sections)),
		})
	}

	nsyms := uint32(len(st.Locals) + len(st.Globals) + len(st.Undefineds))
	symoff := uint32(linkeditFileOffset)
	stroff := symoff + nsyms*nlist64Size
	lc.Symtab = types.SymtabCmd{
		LoadCmd: types.LC_SYMTAB,
		Len:     symtabCommandSize,
		Symoff:  symoff,
		Nsyms:   nsyms,
		Stroff:  stroff,
		Strsize: uint32(len(st.Strings)),
	}

	lc.Dysymtab = types.DysymtabCmd{
		LoadCmd:       types.LC_DYSYMTAB,
		Len:           dysymtabCommandSize,
		Nlocalsym:     uint32(len(st.Locals)),
		Iextdefsym:    uint32(len(st.Locals)),
		Nextdefsym:    uint32(len(st.Globals)),
		Iundefsym:     uint32(len(st.Locals) + len(st.Globals)),
		Nundefsym:     uint32(len(st.Undefineds)),
		Nindirectsyms: uint32(len(in.IndirectBindingAtoms)),
	}

	for _, d := range in.Dylibs {
		if d == nil {
			continue
		}
		nameLen := uint64(len(d.InstallName) + 1) // + NUL
		lc.Dylibs = append(lc.Dylibs, types.DylibCmd{
			LoadCmd:        dylibLoadCmd(d),
			Len:            uint32(types.RoundUp(dylibCommandSize+nameLen, 8)),
			Name:           dylibCommandSize,
			CurrentVersion: d.CurrentVersion,
			CompatVersion:  d.CompatVersion,
		})
		lc.DylibNames = append(lc.DylibNames, d.InstallName)
	}

	if in.EntryPoint != nil && in.EntryPoint.HasFinalAddress() {
		if off, ok := fileOffsetOf(in, in.EntryPoint); ok {
			lc.EntryPoint = &types.EntryPointCmd{LoadCmd: types.LC_MAIN, Len: entryPointCommandSize, Offset: off}
		}
	}

	ncmds := uint32(len(lc.Segments)) + 1 /*symtab*/ + 1 /*dysymtab*/ + 1 /*uuid*/ + uint32(len(lc.Dylibs))
	var sizeofcmds uint32
	for _, seg := range lc.Segments {
		sizeofcmds += seg.Len
	}
	sizeofcmds += lc.Symtab.Len + lc.Dysymtab.Len + lc.UUID.Len
	for _, d := range lc.Dylibs {
		sizeofcmds += d.Len
	}
	if lc.EntryPoint != nil {
		ncmds++
		sizeofcmds += lc.EntryPoint.Len
	}

	lc.Header = types.FileHeader{
		Magic:        types.Magic64,
		CPU:          in.Options.Architecture(),
		SubCPU:       in.Options.SubArchitecture(),
		Type:         headerFileType(in.Options.OutputKind()),
		NCommands:    ncmds,
		SizeCommands: sizeofcmds,
		Flags:        headerFlags(in.Options),
	}
	return lc
}

func headerFileType(k types.OutputKind) types.HeaderFileType {
	switch k {
	case types.OutputStaticExecutable, types.OutputDynamicExecutable:
		return types.MH_EXECUTE
	case types.OutputDynamicLibrary:
		return types.MH_DYLIB
	case types.OutputDynamicBundle:
		return types.MH_BUNDLE
	case types.OutputObjectFile:
		return types.MH_OBJECT
	case types.OutputDyld:
		return types.MH_DYLINKER
	case types.OutputPreload:
		return types.MH_PRELOAD
	case types.OutputKextBundle:
		return types.MH_KEXT_BUNDLE
	}
	return types.MH_EXECUTE
}

func headerFlags(opts *types.Options) types.HeaderFlag {
	var f types.HeaderFlag
	f.Set(types.TwoLevel, true)
	f.Set(types.NoUndefs, opts.UndefinedTreatment() == types.UndefinedError)
	f.Set(types.PIE, opts.PositionIndependentExecutable())
	f.Set(types.SubsectionsViaSymbols, true)
	return f
}

func dylibLoadCmd(d *types.DylibInfo) types.LoadCmd {
	switch {
	case d.ReExport:
		return types.LC_REEXPORT_DYLIB
	case d.IsUpward:
		return types.LC_LOAD_UPWARD_DYLIB
	default:
		return types.LC_LOAD_DYLIB
	}
}

func segName(name string) [16]byte {
	var out [16]byte
	copy(out[:], name)
	return out
}

// fileOffsetOf finds the file offset of atom by locating its containing
// final section and translating the atom's final address into that
// section's file-relative position.
func fileOffsetOf(in *state.Internal, atom *types.Atom) (uint64, bool) {
	for _, sec := range in.Sections {
		for _, a := range sec.Atoms {
			if a == atom {
				return sec.FileOffset + (atom.FinalAddress() - sec.Address), true
			}
		}
	}
	return 0, false
}
