// Command ldcore is a demonstration driver: it assembles a synthetic
// two-object program in memory and runs it through symbol resolution,
// layout, and fixup application, printing the resulting section table.
// It exists to exercise the core end to end the way the teacher's
// cmd/dtest exercises FileTOC.String() against a parsed file; it is not
// a replacement for a real object-file/archive/dylib front end, which
// stays an external collaborator per the core's own contract.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/appsworld/ld64core/internal/testatom"
	"github.com/appsworld/ld64core/pkg/fixup"
	"github.com/appsworld/ld64core/pkg/layout"
	"github.com/appsworld/ld64core/pkg/linkedit"
	"github.com/appsworld/ld64core/pkg/resolver"
	"github.com/appsworld/ld64core/types"
)

var (
	entrySymbol string
	deadStrip   bool
	archName    string
)

func main() {
	root := &cobra.Command{
		Use:   "ldcore",
		Short: "run a synthetic link to exercise the resolver/layout/fixup/linkedit core",
		RunE:  run,
	}
	root.Flags().StringVar(&entrySymbol, "entry", "_main", "entry point symbol name")
	root.Flags().BoolVar(&deadStrip, "dead-strip", true, "enable mark-and-sweep dead code stripping")
	root.Flags().StringVar(&archName, "arch", "arm64", "target architecture: arm64 or amd64")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	arch, err := parseArch(archName)
	if err != nil {
		return err
	}

	fileMain := testatom.NewFile("main.o", 0)
	fileHelper := testatom.NewFile("helper.o", 1)
	fileUnused := testatom.NewFile("unused.o", 2)

	helper := textAtom("_helper", fileHelper, 16, nil)
	mainAtom := textAtom(entrySymbol, fileMain, 32, []types.Fixup{{
		Kind:         types.FixupBindByNameUnbound,
		OffsetInAtom: 8,
		Target:       types.TargetRef{Name: "_helper"},
	}})
	// never referenced by anything reachable from the entry point; survives
	// only when dead-strip is off, demonstrating the mark-and-sweep pass.
	deadweight := textAtom("_unused", fileUnused, 16, nil)

	opts := types.NewOptions(
		types.Architecture(arch, 0),
		types.OutputKindOpt(types.OutputDynamicExecutable),
		optIf(deadStrip, types.DeadCodeStrip()),
	)

	driver := resolver.NewDriver(opts, nil)
	parsers := []resolver.Parser{
		staticParser{file: fileMain, atoms: []*types.Atom{mainAtom}},
		staticParser{file: fileHelper, atoms: []*types.Atom{helper}},
		staticParser{file: fileUnused, atoms: []*types.Atom{deadweight}},
	}

	internal, err := driver.Link(parsers, entrySymbol)
	if err != nil {
		color.Red("link failed: %v", err)
		return err
	}

	if n := fixup.GOTPass(internal.AllLiveAtoms(), func(string) bool { return false }); n > 0 {
		fmt.Println(color.CyanString("GOT pass rewrote %d load(s) to direct address computation", n))
	}

	totalFileSize, err := layout.Run(layout.ModeFinalImage, opts, internal)
	if err != nil {
		color.Red("layout failed: %v", err)
		for _, line := range layout.DumpSections(internal) {
			fmt.Println(line)
		}
		return err
	}

	applier := fixup.NewApplier(opts.BaseAddress())
	for _, sec := range internal.Sections {
		for _, atom := range sec.Atoms {
			buf := make([]byte, atom.Size())
			if _, err := applier.ApplyAtom(atom, buf); err != nil {
				color.Yellow("warning: %v", err)
			}
		}
	}

	symtab := linkedit.BuildSymbolTable(internal, nil)
	commands := linkedit.AssembleLoadCommands(internal, symtab, totalFileSize)

	fmt.Println(color.GreenString("link succeeded, entry=%s", entrySymbol))
	for _, line := range layout.DumpSections(internal) {
		fmt.Println(line)
	}
	fmt.Printf("header: magic=%#x cputype=%v filetype=%v ncmds=%d sizeofcmds=%d flags=%v\n",
		uint32(commands.Header.Magic), commands.Header.CPU, commands.Header.Type, commands.Header.NCommands, commands.Header.SizeCommands, commands.Header.Flags)
	if commands.EntryPoint != nil {
		fmt.Printf("entry point file offset: 0x%x\n", commands.EntryPoint.Offset)
	}
	if !deadStrip {
		fmt.Println(color.YellowString("note: --dead-strip=false kept _unused live"))
	}
	return nil
}

func optIf(cond bool, opt types.Option) types.Option {
	if cond {
		return opt
	}
	return func(*types.Options) {}
}

func parseArch(name string) (types.CPU, error) {
	switch name {
	case "arm64":
		return types.CPUArm64, nil
	case "amd64":
		return types.CPUAmd64, nil
	default:
		return 0, fmt.Errorf("unknown --arch %q (want arm64 or amd64)", name)
	}
}

func textAtom(name string, file types.File, size uint64, fixups []types.Fixup) *types.Atom {
	a := types.NewAtom(name, testatom.Zeros(size), fixups)
	a.File = file
	a.Definition = types.DefinitionRegular
	a.Combine = types.CombineNever
	a.Scope = types.ScopeGlobal
	a.SymbolTableInclusion = types.SymbolTableIn
	a.Section = types.SectionKey{Segment: "__TEXT", Section: "__text", Type: types.SectionRegular}
	return a
}

type staticParser struct {
	file  types.File
	atoms []*types.Atom
}

func (p staticParser) File() types.File     { return p.file }
func (p staticParser) Atoms() []*types.Atom { return p.atoms }
