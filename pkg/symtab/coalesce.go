package symtab

import (
	"sync"

	"github.com/appsworld/ld64core/types"
)

// contentKey and refKey tables implement the content- and reference-keyed
// coalescing described in spec.md §4.1 for literal pools, CFI records, and
// ICF-like merges. They are separate from the name-keyed Table because
// candidates are anonymous: a cstring literal has no symbol name, only a
// hash of its bytes (or, for reference-keyed merges, the shape of its
// fixups) to coalesce on.
type coalesceTables struct {
	mu      sync.Mutex
	byContent map[contentKey]*types.Atom
	byRefs    map[string][]*types.Atom // bucketed by (section,size) to limit comparisons
}

type contentKey struct {
	section types.SectionKey
	hash    uint64
	size    uint64
}

// ContentCoalescer groups atoms by identical raw content within a section,
// used for literal pools (cstring/4-byte/8-byte/16-byte literals).
type ContentCoalescer struct {
	t coalesceTables
}

func NewContentCoalescer() *ContentCoalescer {
	return &ContentCoalescer{t: coalesceTables{byContent: map[contentKey]*types.Atom{}}}
}

// FindSlotForContent returns the canonical atom for atom's (section,
// content-hash, size) triple, registering atom as canonical if none
// exists yet. The bool reports whether an existing atom was found (in
// which case the caller should mark atom CoalescedAway).
func (c *ContentCoalescer) FindSlotForContent(atom *types.Atom) (*types.Atom, bool) {
	key := contentKey{section: atom.Section, hash: atom.ContentHash(), size: atom.Size()}
	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	if existing, ok := c.t.byContent[key]; ok {
		return existing, true
	}
	c.t.byContent[key] = atom
	return atom, false
}

// ReferenceCoalescer groups same-named atoms whose fixup shapes
// (offset+kind sequence) are identical — the CombineByNameAndReferences
// mode used for folding identical exception-handling/CFI blobs.
type ReferenceCoalescer struct {
	mu      sync.Mutex
	byName  map[string][]*types.Atom
}

func NewReferenceCoalescer() *ReferenceCoalescer {
	return &ReferenceCoalescer{byName: map[string][]*types.Atom{}}
}

// FindSlotForReferences returns the canonical atom whose fixup shape
// matches atom's, among previously registered atoms sharing its name. If
// none match, atom becomes the new canonical entry for its name.
func (r *ReferenceCoalescer) FindSlotForReferences(atom *types.Atom) (*types.Atom, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cand := range r.byName[atom.Name] {
		if cand.CanCoalesceWith(atom) {
			return cand, true
		}
	}
	r.byName[atom.Name] = append(r.byName[atom.Name], atom)
	return atom, false
}
