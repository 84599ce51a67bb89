package resolver

import (
	"strings"

	"github.com/appsworld/ld64core/pkg/state"
	"github.com/appsworld/ld64core/pkg/symtab"
	"github.com/appsworld/ld64core/types"
)

// DeadStripRoots collects the atoms a reachability sweep must start from
// (spec.md §4.3's "Roots" list).
func DeadStripRoots(in *state.Internal, st *symtab.Table, entry *types.Atom, exported, initialUndefines []string) []*types.Atom {
	var roots []*types.Atom
	seen := map[*types.Atom]bool{}
	add := func(a *types.Atom) {
		if a != nil && !seen[a] {
			seen[a] = true
			roots = append(roots, a)
		}
	}

	add(entry)
	for _, name := range exported {
		add(st.AtomForName(name))
	}
	for _, name := range initialUndefines {
		add(st.AtomForName(name))
	}
	for _, helper := range in.Helpers {
		add(helper)
	}
	for _, a := range in.AllLiveAtoms() {
		if a.DontDeadStrip {
			add(a)
		}
	}
	if allGlobalsAreDeadStripRoots(in.Options) {
		for _, a := range in.AllLiveAtoms() {
			if a.Scope == types.ScopeGlobal && isExportableUnderPolicy(in.Options, a.Name) {
				add(a)
			}
		}
	}
	return roots
}

// allGlobalsAreDeadStripRoots mirrors ld64's rule that -dynamiclib and
// -bundle outputs keep every exportable global alive unless an explicit
// export list narrows that policy (spec.md §4.3).
func allGlobalsAreDeadStripRoots(opts *types.Options) bool {
	switch opts.OutputKind() {
	case types.OutputDynamicLibrary, types.OutputDynamicBundle:
		return opts.ExportMode() == types.ExportModeDefault
	}
	return false
}

func isExportableUnderPolicy(opts *types.Options, name string) bool {
	switch opts.ExportMode() {
	case types.ExportModeSome:
		return symtab.NewNameMatcher(opts.ExportList()).Match(name)
	case types.ExportModeDontExportSome:
		return !symtab.NewNameMatcher(opts.DontExportList()).Match(name)
	default:
		return true
	}
}

// MarkLive runs the two-pass BFS reachability sweep spec.md §4.3 describes:
// a first pass follows every fixup target from the root set, then a second
// pass revisits dontDeadStripIfReferencesLive atoms and marks them live iff
// any one of their targets turned out live in the first pass.
func MarkLive(roots []*types.Atom, allAtoms []*types.Atom) {
	queue := append([]*types.Atom{}, roots...)
	for len(queue) > 0 {
		a := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		if a.Live() {
			continue
		}
		a.SetLive(true)
		for _, f := range a.Fixups() {
			if f.Target.Atom != nil && !f.Target.Atom.Live() {
				queue = append(queue, f.Target.Atom)
			}
		}
	}

	for _, a := range allAtoms {
		if a.Live() || !a.DontDeadStripIfRefsLive {
			continue
		}
		for _, f := range a.Fixups() {
			if f.Target.Atom != nil && f.Target.Atom.Live() {
				a.SetLive(true)
				break
			}
		}
	}
}

// Sweep removes every non-live atom from in's sections and from st,
// returning the count removed (spec.md §4.3's "Result").
func Sweep(in *state.Internal, st *symtab.Table) int {
	removed := 0
	for _, sec := range in.Sections {
		kept := sec.Atoms[:0]
		for _, a := range sec.Atoms {
			if a.Live() {
				kept = append(kept, a)
			} else {
				removed++
			}
		}
		sec.Atoms = kept
	}
	st.RemoveDeadAtoms()
	return removed
}

// isCompilerSupportLibrary is the compiler-support-library path heuristic
// of spec.md §4.3: it reports whether an object path names a
// libclang_rt/libgcc/compiler-rt style library. Nothing calls it;
// DeadStripRoots does not consult it, so atoms from such libraries survive
// stripping only when they are reachable from a root.
func isCompilerSupportLibrary(path string) bool {
	base := strings.ToLower(path)
	return strings.Contains(base, "libclang_rt") || strings.Contains(base, "libgcc") || strings.Contains(base, "compiler-rt")
}
