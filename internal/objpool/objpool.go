// Package objpool provides the long-lived arena spec.md §5 describes:
// atoms, fixup slices, and interned symbol-name strings all outlive a
// single phase and are never freed before the link completes, so rather
// than track individual lifetimes this package hands out batches from a
// small number of large backing slices.
package objpool

import "github.com/appsworld/ld64core/types"

const (
	atomBatchSize   = 4096
	fixupBatchSize  = 16384
	stringArenaSize = 1 << 20
)

// Pool owns every atom, fixup, and interned string allocated for one link.
// It is not safe for concurrent use from multiple goroutines without
// external synchronization — per spec.md §5 the symbol table has a single
// writer per phase, and atom creation funnels through that same writer.
type Pool struct {
	atoms      []types.Atom
	fixups     []types.Fixup
	interned   map[string]string
	stringArena []byte
}

// New creates an empty arena.
func New() *Pool {
	return &Pool{interned: make(map[string]string)}
}

// NewAtom allocates an Atom from the arena and initializes it exactly as
// types.NewAtom would, without a separate heap allocation per atom once a
// batch has been reserved.
func (p *Pool) NewAtom(name string, content types.Content, fixups []types.Fixup) *types.Atom {
	if len(p.atoms) == cap(p.atoms) {
		p.atoms = make([]types.Atom, 0, atomBatchSize)
	}
	name = p.Intern(name)
	*p.nextAtomSlot() = *types.NewAtom(name, content, fixups)
	return p.lastAtom()
}

func (p *Pool) nextAtomSlot() *types.Atom {
	p.atoms = append(p.atoms, types.Atom{})
	return &p.atoms[len(p.atoms)-1]
}

func (p *Pool) lastAtom() *types.Atom {
	return &p.atoms[len(p.atoms)-1]
}

// NewFixups reserves room for n fixups from the shared backing array and
// returns a slice into it, so a large link's fixup clusters don't each
// incur their own small allocation.
func (p *Pool) NewFixups(n int) []types.Fixup {
	if n == 0 {
		return nil
	}
	if cap(p.fixups)-len(p.fixups) < n {
		p.fixups = make([]types.Fixup, 0, max(fixupBatchSize, n))
	}
	start := len(p.fixups)
	p.fixups = p.fixups[:start+n]
	return p.fixups[start : start+n : start+n]
}

// Intern returns a canonical copy of s so repeated atom/symbol names
// across many files share one backing string, per spec.md §5's "Atom
// names are interned into the string pool arena" note.
func (p *Pool) Intern(s string) string {
	if existing, ok := p.interned[s]; ok {
		return existing
	}
	if len(p.stringArena)+len(s) > cap(p.stringArena) {
		p.stringArena = make([]byte, 0, stringArenaSize)
	}
	start := len(p.stringArena)
	p.stringArena = append(p.stringArena, s...)
	interned := string(p.stringArena[start : start+len(s)])
	p.interned[s] = interned
	return interned
}
