// Package symtab implements the linker's global symbol table (spec
// component C2): a name-to-slot map enforcing the best-current-definition
// priority rule, plus the indirect binding slot allocator every fixup's
// IndirectlyBound target ultimately resolves through.
package symtab

import (
	"fmt"
	"sort"
	"sync"

	"github.com/appsworld/ld64core/types"
)

// DuplicateTreatment controls what Add does when a stronger-or-equal
// regular definition already occupies a name's slot.
type DuplicateTreatment uint8

const (
	DuplicateTreatmentError DuplicateTreatment = iota
	DuplicateWarning
	DuplicateSuppress
)

// slot is one entry in the table: the current best atom for a name (or nil
// if only ever requested, never defined) plus its indirect-binding index.
type slot struct {
	name  string
	index uint32
	atom  *types.Atom
}

// Table is the symbol table and indirect binding slot allocator described
// in spec.md §4.1 and §3.5. It is single-writer per phase; callers outside
// the resolver must not mutate it concurrently.
type Table struct {
	mu      sync.Mutex
	byName  map[string]*slot
	slots   []*slot // index == indirect binding slot number
	unnamed []string

	duplicates []DuplicateError
}

// DuplicateError records one duplicate-symbol conflict detected by Add,
// for later formatting by the resolver's diagnostics stage.
type DuplicateError struct {
	Name     string
	Existing *types.Atom
	New      *types.Atom
}

func (e DuplicateError) Error() string {
	return fmt.Sprintf("duplicate symbol %q: %s and %s",
		e.Name, fileOf(e.Existing), fileOf(e.New))
}

func fileOf(a *types.Atom) string {
	if a == nil || a.File == nil {
		return "<unknown>"
	}
	return a.File.Path()
}

// New returns an empty table.
func New() *Table {
	return &Table{byName: make(map[string]*slot)}
}

// FindSlotForName returns the (creating if absent) indirect binding slot
// index for name. Idempotent: repeated calls with the same name return the
// same index.
func (t *Table) FindSlotForName(name string) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.findSlotLocked(name).index
}

func (t *Table) findSlotLocked(name string) *slot {
	if s, ok := t.byName[name]; ok {
		return s
	}
	s := &slot{name: name, index: uint32(len(t.slots))}
	t.slots = append(t.slots, s)
	t.byName[name] = s
	return s
}

// AtomForSlot returns the atom currently occupying an indirect binding
// slot, or nil if the slot is still unresolved.
func (t *Table) AtomForSlot(index uint32) *types.Atom {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(index) >= len(t.slots) {
		return nil
	}
	return t.slots[index].atom
}

// SlotCount returns the number of allocated indirect binding slots.
func (t *Table) SlotCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}

// rank implements the strength order from spec.md §4.1, strongest first as
// the smallest integer so sort/compare reads naturally.
func rank(a *types.Atom) int {
	switch a.Definition {
	case types.DefinitionAbsolute:
		return 0
	case types.DefinitionRegular:
		if a.Combine == types.CombineNever {
			return 1
		}
		return 2 // weak (combineByName)
	case types.DefinitionTentative:
		return 3
	case types.DefinitionProxy:
		return 4
	}
	return 5
}

func ordinalOf(a *types.Atom) int {
	if a.File == nil {
		return 1 << 30
	}
	return a.File.Ordinal()
}

// Add installs atom at its name's slot, applying the priority rule: the
// stronger definition wins; ties break on lower file ordinal. Reports a
// DuplicateError through dt when two non-weak regular definitions collide.
func (t *Table) Add(atom *types.Atom, dt DuplicateTreatment) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.findSlotLocked(atom.Name)
	if s.atom == nil {
		s.atom = atom
		return nil
	}
	existing := s.atom
	if existing == atom {
		return nil
	}
	existingRank, newRank := rank(existing), rank(atom)

	switch {
	case existingRank < newRank:
		// existing strictly stronger: new definition is ignored, unless
		// both are regular (rank 1 vs 1 handled below) — nothing to do.
		return nil
	case existingRank > newRank:
		s.atom = atom
		return nil
	}

	// Equal rank: tentative defs merge by size/alignment; regular-non-weak
	// vs regular-non-weak is a true duplicate; everything else breaks ties
	// on ordinal.
	if atom.Definition == types.DefinitionTentative {
		if atom.Size() > existing.Size() ||
			(atom.Size() == existing.Size() && atom.Alignment.PowerOf2 > existing.Alignment.PowerOf2) {
			s.atom = atom
		}
		return nil
	}

	if existingRank == 1 { // both regular, non-weak: duplicate
		if dt == DuplicateSuppress {
			if ordinalOf(atom) < ordinalOf(existing) {
				s.atom = atom
			}
			return nil
		}
		err := DuplicateError{Name: atom.Name, Existing: existing, New: atom}
		t.duplicates = append(t.duplicates, err)
		if ordinalOf(atom) < ordinalOf(existing) {
			s.atom = atom
		}
		if dt == DuplicateTreatmentError {
			return err
		}
		return nil
	}

	// both weak, or both proxy: lower ordinal wins.
	if ordinalOf(atom) < ordinalOf(existing) {
		s.atom = atom
	}
	return nil
}

// Duplicates returns every duplicate-symbol conflict recorded by Add so
// far, in detection order.
func (t *Table) Duplicates() []DuplicateError {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]DuplicateError(nil), t.duplicates...)
}

// AtomForName returns the atom currently bound to name, or nil.
func (t *Table) AtomForName(name string) *types.Atom {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.byName[name]; ok {
		return s.atom
	}
	return nil
}

func (t *Table) HasName(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.byName[name]
	return ok
}

// Undefines returns the names of every slot with no current atom, sorted.
func (t *Table) Undefines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var names []string
	for _, s := range t.slots {
		if s.atom == nil {
			names = append(names, s.name)
		}
	}
	sort.Strings(names)
	return names
}

// TentativeDefs returns the names whose current best atom is still a
// tentative (common) definition, sorted.
func (t *Table) TentativeDefs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var names []string
	for _, s := range t.slots {
		if s.atom != nil && s.atom.Definition == types.DefinitionTentative {
			names = append(names, s.name)
		}
	}
	sort.Strings(names)
	return names
}

// RemoveDeadUndefs clears the atom pointer of every slot whose name is not
// in keep and which currently holds no defined atom (a proxy inserted for
// an undefined symbol that turned out to be unreferenced after dead-strip).
func (t *Table) RemoveDeadUndefs(keep map[string]bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.slots {
		if s.atom != nil && s.atom.Definition == types.DefinitionProxy && !s.atom.Live() && !keep[s.name] {
			s.atom = nil
		}
	}
}

// RemoveDeadAtoms drops the atom reference from every slot whose atom is
// no longer live, leaving the slot present (so IndirectlyBound indices
// remain stable) but unresolved.
func (t *Table) RemoveDeadAtoms() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.slots {
		if s.atom != nil && !s.atom.Live() {
			s.atom = nil
		}
	}
}

// CheckDuplicateSymbols re-scans every name-keyed slot for lingering
// ambiguity after coalescing settles; in this table duplicates are
// detected eagerly by Add, so this simply surfaces the recorded list.
func (t *Table) CheckDuplicateSymbols() []DuplicateError {
	return t.Duplicates()
}

// AllNames returns every name with an allocated slot, sorted.
func (t *Table) AllNames() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.slots))
	for _, s := range t.slots {
		names = append(names, s.name)
	}
	sort.Strings(names)
	return names
}
