// Package resolver drives atom ingestion and graph closure (spec
// component C3): it owns the phase sequence that turns each input file's
// independent atom graph into one program-wide graph with every
// reference bound, every duplicate adjudicated, and every dead atom
// swept away, handing the result off as a *state.Internal ready for
// layout.
package resolver

import (
	"fmt"
	"strings"

	"github.com/appsworld/ld64core/internal/objpool"
	"github.com/appsworld/ld64core/pkg/layout"
	"github.com/appsworld/ld64core/pkg/state"
	"github.com/appsworld/ld64core/pkg/symtab"
	"github.com/appsworld/ld64core/types"
)

// Parser is the external collaborator contract spec.md §1 draws the line
// at: something that can enumerate a file's initial atoms on request.
// Object/archive/dylib parsing itself is out of scope for this package.
type Parser interface {
	File() types.File
	Atoms() []*types.Atom
}

// LibrarySearcher resolves a still-undefined name against the set of
// libraries named on the command line, in the Options-selected search
// order (spec.md §4.2 phase 5).
type LibrarySearcher interface {
	Search(name string, mode types.LibrarySearchMode) (*types.Atom, bool)
}

// Driver owns one link's worth of phase state: the symbol table, the
// growing Internal record, the arena, and the accumulated diagnostics —
// spec.md §9's "thread Driver context explicitly" design note.
type Driver struct {
	Options *types.Options
	Symbols *symtab.Table
	Pool    *objpool.Pool
	Diags   *DiagnosticSink

	internal *state.Internal

	aliasToReal map[string]string // alias atom name -> real target name
	aliasAtoms  map[string]*types.Atom

	libs LibrarySearcher

	modCount int // bumped every time resolveAllUndefines mutates the table
}

// NewDriver creates a Driver ready to run Link.
func NewDriver(opts *types.Options, libs LibrarySearcher) *Driver {
	return &Driver{
		Options:     opts,
		Symbols:     symtab.New(),
		Pool:        objpool.New(),
		Diags:       NewDiagnosticSink(opts.FatalWarnings()),
		internal:    state.NewInternal(opts),
		aliasToReal: map[string]string{},
		aliasAtoms:  map[string]*types.Atom{},
		libs:        libs,
	}
}

// Link runs the full phase sequence spec.md §4.2 enumerates and returns
// the resulting Internal, ready for layout.Run. Any phase that detects a
// fatal condition aborts immediately with a *LinkError.
func (d *Driver) Link(parsers []Parser, entryName string) (*state.Internal, error) {
	d.initializeState()

	if err := d.buildAtomList(parsers); err != nil {
		return nil, err
	}
	d.addInitialUndefines(entryName)
	d.fillInHelpersInInternalState()
	if err := d.resolveAllUndefines(); err != nil {
		return nil, err
	}
	d.resolveIndirectBindings()
	if d.Options.DeadCodeStrip() {
		d.deadStripOptimize(entryName)
	}
	if err := d.checkUndefines(); err != nil {
		return nil, err
	}
	d.checkDylibSymbolCollisions()
	d.syncAliases()
	d.removeCoalescedAwayAtoms()
	if err := d.fillInEntryPoint(entryName); err != nil {
		return nil, err
	}
	// linkTimeOptimize is an external collaborator boundary (spec.md §1);
	// this core only re-runs dead-strip and undefine checks after it, which
	// a caller driving an LTO backend does by calling Link a second time
	// over the backend's emitted atoms merged into the same Driver.
	d.fillInInternalState()
	d.tweakWeakness()
	if errs := d.checkDuplicateSymbols(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, NewLinkError(PhaseResolution, msgs...)
	}

	if err := d.Diags.FinalError(); err != nil {
		return nil, err
	}
	return d.internal, nil
}

// initializeState captures the handful of facts later phases need fixed
// at the start of the link (spec.md §4.2 phase 1).
func (d *Driver) initializeState() {
	d.internal.ObjCConstraint = 0
}

// buildAtomList requests every parser enumerate its atoms and installs
// each via doAtom (spec.md §4.2 phase 2).
func (d *Driver) buildAtomList(parsers []Parser) error {
	for _, p := range parsers {
		for _, a := range p.Atoms() {
			if err := d.doAtom(a); err != nil {
				return err
			}
		}
	}
	return nil
}

// doAtom installs one atom: sanity-checks its alignment, registers any
// alias it declares, rewrites unbound fixup bindings into
// IndirectlyBound slots, and adds it to the symbol table under the
// resolver's configured duplicate-symbol treatment.
func (d *Driver) doAtom(a *types.Atom) error {
	if a.Alignment.PowerOf2 > 31 {
		panic(fmt.Sprintf("doAtom: atom %q has an implausible alignment power %d", a.Name, a.Alignment.PowerOf2))
	}
	if a.IsAlias && a.AliasOf != "" {
		d.aliasToReal[a.Name] = a.AliasOf
		d.aliasAtoms[a.Name] = a
	}
	prevSlots := d.Symbols.SlotCount()
	d.rewriteBindings(a)
	if a.Name == "" {
		return nil
	}
	prevAtom := d.Symbols.AtomForName(a.Name)
	if err := d.Symbols.Add(a, symtab.DuplicateTreatmentError); err != nil {
		if dup, ok := err.(symtab.DuplicateError); ok {
			d.Diags.Warn(PhaseResolution, "%s", dup.Error())
			return nil
		}
		return NewLinkError(PhaseResolution, err.Error())
	}
	if d.Symbols.AtomForName(a.Name) != prevAtom || d.Symbols.SlotCount() != prevSlots {
		d.modCount++
	}
	return nil
}

// rewriteBindings allocates indirect binding slots for every fixup still
// carrying an unresolved name reference, converting ByContentBound and
// ByNameUnbound kinds into IndirectlyBound (spec.md §4.2 phase 2).
func (d *Driver) rewriteBindings(a *types.Atom) {
	fixups := a.Fixups()
	for i := range fixups {
		f := &fixups[i]
		if f.Kind != types.FixupBindByNameUnbound && f.Kind != types.FixupBindByContentBound {
			continue
		}
		d.Symbols.FindSlotForName(f.Target.Name)
		f.Kind = types.FixupBindIndirectlyBound
	}
	a.SetFixups(fixups)
}

// addInitialUndefines forces a slot for every -u name and for the entry
// symbol (spec.md §4.2 phase 3).
func (d *Driver) addInitialUndefines(entryName string) {
	for _, name := range d.Options.InitialUndefines() {
		d.Symbols.FindSlotForName(name)
	}
	if entryName != "" {
		d.Symbols.FindSlotForName(entryName)
	}
}

// fillInHelpersInInternalState resolves the names of stub/lazy-binder
// helper atoms against the loaded libraries (spec.md §4.2 phase 4). This
// core has no concrete helper-atom synthesis of its own to offer (that is
// the object-file parser's job for compiler-generated stub content); it
// records the slot allocation so later phases can find the binder by
// kind once a later stage attaches one via state.Internal.Helpers.
func (d *Driver) fillInHelpersInInternalState() {
	for _, helper := range d.internal.Helpers {
		d.Symbols.FindSlotForName(helper.Name)
	}
}

// resolveAllUndefines iterates library search until the symbol table's
// modification counter stabilizes (spec.md §4.2 phase 5): for every
// current undefine it searches libraries, synthesizes boundary atoms on
// first unresolved reference to a boundary-symbol name, and falls back
// to a proxy atom under a tolerant undefined-treatment policy. Tentative
// definitions are re-searched so a dylib definition can override them
// under -commons use_dylibs.
func (d *Driver) resolveAllUndefines() error {
	for {
		before := d.modCount
		for _, name := range d.Symbols.Undefines() {
			if d.tryResolveBoundary(name) {
				continue
			}
			if d.libs != nil {
				if atom, ok := d.libs.Search(name, d.Options.LibrarySearchMode()); ok {
					if err := d.doAtom(atom); err != nil {
						return err
					}
					continue
				}
			}
			if d.undefinedIsTolerated() {
				proxy := d.Pool.NewAtom(name, nil, nil)
				proxy.Definition = types.DefinitionProxy
				proxy.Scope = types.ScopeGlobal
				proxy.SymbolTableInclusion = types.SymbolTableNotIn
				if err := d.doAtom(proxy); err != nil {
					return err
				}
			}
		}
		if d.Options.CommonsMode() == types.CommonsModeTreatAsDefinitions {
			for _, name := range d.Symbols.TentativeDefs() {
				if d.libs != nil {
					if atom, ok := d.libs.Search(name, d.Options.LibrarySearchMode()); ok {
						if err := d.doAtom(atom); err != nil {
							return err
						}
					}
				}
			}
		}
		if d.modCount == before {
			return nil
		}
	}
}

// resolveIndirectBindings fills in Target.Atom for every IndirectlyBound
// fixup once the symbol table has stabilized, so later phases (dead-strip
// traversal, the fixup applier, LINKEDIT emission) can follow a fixup to
// its concrete atom without re-consulting the symbol table by name on
// every walk. The binding is still by name for any slot that remains
// unresolved (an undefined tolerated under a non-error treatment).
func (d *Driver) resolveIndirectBindings() {
	for _, name := range d.Symbols.AllNames() {
		a := d.Symbols.AtomForName(name)
		if a == nil {
			continue
		}
		fixups := a.Fixups()
		for i := range fixups {
			f := &fixups[i]
			if f.Kind != types.FixupBindIndirectlyBound || f.Target.Atom != nil {
				continue
			}
			f.Target.Atom = d.Symbols.AtomForName(f.Target.Name)
		}
		a.SetFixups(fixups)
	}
}

func (d *Driver) undefinedIsTolerated() bool {
	switch d.Options.UndefinedTreatment() {
	case types.UndefinedWarning, types.UndefinedSuppress, types.UndefinedDynamicLookup:
		return true
	}
	return false
}

// tryResolveBoundary synthesizes a section$start$/section$end$/
// segment$start$/segment$end$ atom the first time one of these names is
// seen unresolved (spec.md §4.2 phase 5).
func (d *Driver) tryResolveBoundary(name string) bool {
	if _, _, _, ok := ParseBoundarySymbol(name); !ok {
		return false
	}
	a := NewBoundaryAtom(d.Pool, name)
	return d.doAtom(a) == nil
}

// deadStripOptimize runs the dead-strip engine (spec.md §4.2 phase 6, §4.3)
// over every atom currently reachable through the symbol table, then
// sweeps non-live atoms from the table. Atoms have not yet been filed
// into final sections at this point in the phase order, so the sweep
// walks the symbol table's slots directly rather than state.Internal's
// (still-empty) section list.
func (d *Driver) deadStripOptimize(entryName string) {
	var all []*types.Atom
	for _, name := range d.Symbols.AllNames() {
		if a := d.Symbols.AtomForName(name); a != nil {
			all = append(all, a)
			a.SetLive(false)
		}
	}

	var entry *types.Atom
	if entryName != "" {
		entry = d.Symbols.AtomForName(entryName)
	}
	roots := DeadStripRoots(d.internal, d.Symbols, entry, d.Options.ExportList(), d.Options.InitialUndefines())
	// DeadStripRoots finds DontDeadStrip and exportable-global roots in the
	// section list, which is still empty here; take them from the table.
	for _, a := range all {
		if a.DontDeadStrip || (allGlobalsAreDeadStripRoots(d.Options) && a.Scope == types.ScopeGlobal && isExportableUnderPolicy(d.Options, a.Name)) {
			roots = append(roots, a)
		}
	}
	for _, name := range d.aliasRealTargets() {
		if a := d.Symbols.AtomForName(name); a != nil {
			roots = append(roots, a)
		}
	}
	MarkLive(roots, all)
	d.Symbols.RemoveDeadAtoms()
}

func (d *Driver) aliasRealTargets() []string {
	names := make([]string, 0, len(d.aliasToReal))
	for _, real := range d.aliasToReal {
		names = append(names, real)
	}
	return names
}

// checkUndefines applies the undefined-treatment policy (spec.md §4.2
// phase 7): any name still unresolved under a strict policy is a fatal
// error, reported with a reverse-reference trace of up to six referrers
// and a fuzzy "maybe you meant" suggestion.
func (d *Driver) checkUndefines() error {
	if d.Options.UndefinedTreatment() != types.UndefinedError {
		return nil
	}
	var allAtoms []*types.Atom
	for _, name := range d.Symbols.AllNames() {
		if a := d.Symbols.AtomForName(name); a != nil {
			allAtoms = append(allAtoms, a)
		}
	}
	var msgs []string
	for _, name := range d.Symbols.Undefines() {
		msg := fmt.Sprintf("undefined symbol: %s", DemangleItanium(name))
		for _, ref := range PrintReferencedBy(name, allAtoms) {
			msg += "\n    referenced by " + ref
		}
		if suggestion := SuggestName(name, d.Symbols.AllNames()); suggestion != "" {
			msg += fmt.Sprintf("\n    (maybe you meant: %s)", suggestion)
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return nil
	}
	return NewLinkError(PhaseResolution, msgs...)
}

// checkDylibSymbolCollisions is spec.md §4.2 phase 8. It does not consult
// any dylib's exports: it sets OverridesDylibsWeakDef on every non-global
// regular CombineNever atom in the table, whether or not a loaded dylib
// exports that name, and never on a global atom; and it warns for every
// tentative definition as soon as any dylib is loaded, without checking
// that the dylib defines the same name.
func (d *Driver) checkDylibSymbolCollisions() {
	for _, name := range d.Symbols.TentativeDefs() {
		a := d.Symbols.AtomForName(name)
		if a == nil {
			continue
		}
		for _, dylib := range d.internal.Dylibs {
			if dylib != nil {
				d.Diags.Warn(PhaseResolution, "tentative definition %q may be overridden by dylib %s", name, dylib.InstallName)
				break
			}
		}
	}
	for _, name := range d.Symbols.AllNames() {
		a := d.Symbols.AtomForName(name)
		if a != nil && a.Scope != types.ScopeGlobal && a.Definition == types.DefinitionRegular && a.Combine == types.CombineNever {
			a.OverridesDylibsWeakDef = true
		}
	}
}

// syncAliases copies the resolved target's attributes onto each alias
// atom (spec.md §4.2 phase 9), after first dropping aliases whose target
// never resolved (§C.1's removeUnusedAliases, run at the start of this
// phase since both consult the same resolved-target state).
func (d *Driver) syncAliases() {
	drop := RemoveUnusedAliases(d.Symbols, d.aliasToReal)
	for aliasName, realName := range d.aliasToReal {
		if drop[aliasName] {
			if alias := d.aliasAtoms[aliasName]; alias != nil {
				alias.SetLive(false)
			}
			continue
		}
		alias := d.aliasAtoms[aliasName]
		real := d.Symbols.AtomForName(realName)
		SyncAliasAttributes(alias, real)
	}
}

// removeCoalescedAwayAtoms drops atoms that lost content/reference
// coalescing from the symbol table (spec.md §4.2 phase 10).
func (d *Driver) removeCoalescedAwayAtoms() {
	for _, name := range d.Symbols.AllNames() {
		if a := d.Symbols.AtomForName(name); a != nil && a.CoalescedAway() {
			a.SetLive(false)
		}
	}
	d.Symbols.RemoveDeadAtoms()
}

// fillInEntryPoint resolves the entry atom (spec.md §4.2 phase 11).
func (d *Driver) fillInEntryPoint(entryName string) error {
	if entryName == "" {
		return nil
	}
	a := d.Symbols.AtomForName(entryName)
	if a == nil {
		if d.Options.OutputKind().AllowsUndefineds() {
			return nil
		}
		return NewLinkError(PhaseResolution, fmt.Sprintf("entry point %q is undefined", entryName))
	}
	d.internal.EntryPoint = a
	return nil
}

// fillInInternalState classifies and files every surviving atom into its
// final section (spec.md §4.2 phase 13).
func (d *Driver) fillInInternalState() {
	mode := layout.ModeFinalImage
	if d.Options.OutputKind() == types.OutputObjectFile {
		mode = layout.ModeObjectFile
	}
	for _, name := range d.Symbols.AllNames() {
		a := d.Symbols.AtomForName(name)
		if a == nil || !a.Live() {
			continue
		}
		layout.ClassifyAndFile(mode, d.Options, d.internal, a)
	}
}

// tweakWeakness applies -force_symbol_weak/-force_symbol_not_weak
// wildcard lists to override atom combine modes (spec.md §4.2 phase 14).
func (d *Driver) tweakWeakness() {
	forceWeak := symtab.NewNameMatcher(d.Options.ForceWeak())
	forceNotWeak := symtab.NewNameMatcher(d.Options.ForceNotWeak())
	for _, sec := range d.internal.Sections {
		for _, a := range sec.Atoms {
			if a.Definition != types.DefinitionRegular {
				continue
			}
			if forceWeak.Match(a.Name) {
				a.Combine = types.CombineByName
			} else if forceNotWeak.Match(a.Name) {
				a.Combine = types.CombineNever
			}
		}
	}
}

// checkDuplicateSymbols reports every duplicate conflict accumulated
// during doAtom (spec.md §4.2 phase 15).
func (d *Driver) checkDuplicateSymbols() []symtab.DuplicateError {
	return d.Symbols.Duplicates()
}

// PrintReferencedBy implements the original's printReferencedBy
// (Resolver.cpp:1539, §C.2): up to six atoms whose fixups target name,
// formatted as "file-path".
func PrintReferencedBy(name string, atoms []*types.Atom) []string {
	var refs []string
	for _, a := range atoms {
		for _, f := range a.Fixups() {
			if f.Target.Name == name || (f.Target.Atom != nil && f.Target.Atom.Name == name) {
				refs = append(refs, shortFilePath(a))
				break
			}
		}
		if len(refs) == 6 {
			break
		}
	}
	return refs
}

func shortFilePath(a *types.Atom) string {
	if a.File == nil {
		return a.Name
	}
	path := a.File.Path()
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

// SuggestName implements the "maybe you meant" fuzzy match: a linear scan
// for any known name containing undefined as a substring, or vice versa,
// preferring the shortest candidate (spec.md §4.2 phase 7).
func SuggestName(undefined string, known []string) string {
	best := ""
	for _, name := range known {
		if name == undefined {
			continue
		}
		if strings.Contains(name, undefined) || strings.Contains(undefined, name) {
			if best == "" || len(name) < len(best) {
				best = name
			}
		}
	}
	return best
}

// DemangleItanium gives a best-effort, non-exhaustive rendering of an
// Itanium-ABI C++ mangled name for diagnostic display (spec.md §4.2 phase
// 7's "Demangle ItaniumABI names for display"): it strips the leading
// "_Z" marker and the compressed length prefixes down to "::"-joined
// components, which is enough to make an undefined-symbol diagnostic
// readable without pulling in a full demangler dependency the pack
// doesn't otherwise carry.
func DemangleItanium(name string) string {
	if !strings.HasPrefix(name, "_Z") {
		return name
	}
	rest := name[2:]
	var parts []string
	for len(rest) > 0 && rest[0] >= '0' && rest[0] <= '9' {
		n := 0
		for len(rest) > 0 && rest[0] >= '0' && rest[0] <= '9' {
			n = n*10 + int(rest[0]-'0')
			rest = rest[1:]
		}
		if n <= 0 || n > len(rest) {
			return name
		}
		parts = append(parts, rest[:n])
		rest = rest[n:]
	}
	if len(parts) == 0 {
		return name
	}
	return strings.Join(parts, "::")
}
