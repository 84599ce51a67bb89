package types

//go:generate stringer -type=LoadCmd -output commands_string.go

import (
	"encoding/binary"
	"fmt"
)

// A LoadCmd is a Mach-O load command.
type LoadCmd uint32

func (c LoadCmd) Command() LoadCmd { return c }

func (c LoadCmd) Put(b []byte, o binary.ByteOrder) int {
	panic(fmt.Sprintf("Put not implemented for %s", c.String()))
}

var loadCmdStrings = []IntName{
	{uint32(LC_SEGMENT_64), "SEGMENT_64"},
	{uint32(LC_SYMTAB), "SYMTAB"},
	{uint32(LC_DYSYMTAB), "DYSYMTAB"},
	{uint32(LC_LOAD_DYLIB), "LOAD_DYLIB"},
	{uint32(LC_ID_DYLIB), "ID_DYLIB"},
	{uint32(LC_UUID), "UUID"},
	{uint32(LC_MAIN), "MAIN"},
	{uint32(LC_LOAD_WEAK_DYLIB), "LOAD_WEAK_DYLIB"},
	{uint32(LC_REEXPORT_DYLIB), "REEXPORT_DYLIB"},
	{uint32(LC_LOAD_UPWARD_DYLIB), "LOAD_UPWARD_DYLIB"},
}

func (c LoadCmd) String() string { return StringName(uint32(c), loadCmdStrings, false) }

// Only the load commands this core's output path (pkg/linkedit's command
// assembler) actually populates are enumerated here; the rest of the
// Mach-O load command space belongs to the external single-pass writer's
// input-parsing concerns, not this static linker core's.
const (
	LC_REQ_DYLD          LoadCmd = 0x80000000
	LC_SEGMENT_64        LoadCmd = 0x19 // 64-bit segment of this file to be mapped
	LC_SYMTAB            LoadCmd = 0x2  // link-edit stab symbol table info
	LC_DYSYMTAB          LoadCmd = 0xb  // dynamic link-edit symbol table info
	LC_LOAD_DYLIB        LoadCmd = 0xc  // load dylib command
	LC_ID_DYLIB          LoadCmd = 0xd  // id dylib command
	LC_UUID              LoadCmd = 0x1b // the uuid
	LC_LOAD_WEAK_DYLIB   LoadCmd = 0x18 | LC_REQ_DYLD
	LC_REEXPORT_DYLIB    LoadCmd = 0x1f | LC_REQ_DYLD
	LC_LOAD_UPWARD_DYLIB LoadCmd = 0x23 | LC_REQ_DYLD
	LC_MAIN              LoadCmd = 0x28 | LC_REQ_DYLD // replacement for LC_UNIXTHREAD
)

type SegFlag uint32

/* Constants for the flags field of the segment_command */
const (
	HighVM SegFlag = 0x1 /* the file contents for this segment is for
	   the high part of the VM space, the low part
	   is zero filled (for stacks in core files) */
	FvmLib SegFlag = 0x2 /* this segment is the VM that is allocated by
	   a fixed VM library, for overlap checking in
	   the link editor */
	NoReLoc SegFlag = 0x4 /* this segment has nothing that was relocated
	   in it and nothing relocated to it, that is
	   it maybe safely replaced without relocation*/
	ProtectedVersion1 SegFlag = 0x8 /* This segment is protected.  If the
	   segment starts at file offset 0, the
	   first page of the segment is not
	   protected.  All other pages of the
	   segment are protected. */
	ReadOnly SegFlag = 0x10 /* This segment is made read-only after fixups */
)

// A Segment64 is a 64-bit Mach-O segment load command, sized and addressed
// by the layout engine's SegmentLayout and turned into one of these per
// output segment by the command assembler.
type Segment64 struct {
	LoadCmd              /* LC_SEGMENT_64 */
	Len     uint32       /* includes sizeof section_64 structs */
	Name    [16]byte     /* segment name */
	Addr    uint64       /* memory address of this segment */
	Memsz   uint64       /* memory size of this segment */
	Offset  uint64       /* file offset of this segment */
	Filesz  uint64       /* amount to map from the file */
	Maxprot VmProtection /* maximum VM protection */
	Prot    VmProtection /* initial VM protection */
	Nsect   uint32       /* number of sections in segment */
	Flag    SegFlag      /* flags */
}

// A SymtabCmd is a Mach-O symbol table command, filled in from the
// partitioned SymbolTable the symbol table builder produces.
type SymtabCmd struct {
	LoadCmd // LC_SYMTAB
	Len     uint32
	Symoff  uint32
	Nsyms   uint32
	Stroff  uint32
	Strsize uint32
}

// A DysymtabCmd is a Mach-O dynamic symbol table command, giving the
// locals/externs/undefineds index ranges within the symbol table the
// SymbolTable builder already partitioned by construction.
type DysymtabCmd struct {
	LoadCmd        // LC_DYSYMTAB
	Len            uint32
	Ilocalsym      uint32
	Nlocalsym      uint32
	Iextdefsym     uint32
	Nextdefsym     uint32
	Iundefsym      uint32
	Nundefsym      uint32
	Tocoffset      uint32
	Ntoc           uint32
	Modtaboff      uint32
	Nmodtab        uint32
	Extrefsymoff   uint32
	Nextrefsyms    uint32
	Indirectsymoff uint32
	Nindirectsyms  uint32
	Extreloff      uint32
	Nextrel        uint32
	Locreloff      uint32
	Nlocrel        uint32
}

// A DylibCmd is a Mach-O load dynamic library command. The command
// assembler selects LC_LOAD_DYLIB, LC_LOAD_UPWARD_DYLIB, or
// LC_REEXPORT_DYLIB per types.DylibInfo's flags; LC_ID_DYLIB (this
// image's own identity, for OutputDynamicLibrary) is not yet wired and
// uses the same struct shape when it is.
type DylibCmd struct {
	LoadCmd        // LC_LOAD_DYLIB
	Len            uint32
	Name           uint32
	Time           uint32
	CurrentVersion Version
	CompatVersion  Version
}

// A UUIDCmd is a Mach-O uuid load command contains a single
// 128-bit unique random number that identifies an object produced
// by the static link editor.
type UUIDCmd struct {
	LoadCmd // LC_UUID
	Len     uint32
	UUID    UUID
}

// A EntryPointCmd is a Mach-O main command, locating the entry atom's
// position in the output file (LC_MAIN only, used in MH_EXECUTE filetypes
// — this core targets the modern entry-point convention, not the legacy
// LC_UNIXTHREAD register-state form).
type EntryPointCmd struct {
	LoadCmd          // LC_MAIN
	Len       uint32 // 24
	Offset    uint64 // file (__TEXT) offset of main()
	StackSize uint64 // if not zero, initial stack size
}
