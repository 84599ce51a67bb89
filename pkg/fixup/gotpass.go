package fixup

import "github.com/appsworld/ld64core/types"

// GOTPass rewrites GOT-indirected loads into direct address computations
// wherever the target turned out to be statically resolvable, grounded on
// the original ld64 GOT pass that runs between resolution and layout. A
// first scan finds non-lazy-pointer atoms whose single fixup cluster
// targets something that does not need runtime interposition — those
// pointer atoms are redundant. A second scan then walks every atom's
// fixup clusters looking for the FixupSetTargetAddress + store pair that
// loads through one of those pointer atoms, retargets the
// FixupSetTargetAddress at the real underlying atom, and flags the
// cluster's terminal store fixup with WasInstructionRewritten so the
// applier substitutes a direct-address computation (lea/mov) for the
// memory load (spec.md §4.6's X86PCRel32GOTLoadNowLEA /
// X86Abs32TLVLoadNowLEA).
//
// isExternallyInterposable reports whether a name must keep its
// indirection (exported from a dylib, so the dynamic linker might
// override it at load time).
func GOTPass(atoms []*types.Atom, isExternallyInterposable func(name string) bool) (rewritten int) {
	eligible := map[*types.Atom]*types.Atom{}
	for _, atom := range atoms {
		if atom.ContentType != types.ContentNonLazyPointer {
			continue
		}
		fixups := atom.Fixups()
		if len(types.ClustersOf(fixups)) != 1 {
			continue
		}
		target := fixups[0].Target
		if target.Atom == nil || isExternallyInterposable(target.Atom.Name) {
			continue
		}
		eligible[atom] = target.Atom
	}
	if len(eligible) == 0 {
		return 0
	}

	used := map[*types.Atom]bool{}
	for _, atom := range atoms {
		fixups := atom.Fixups()
		if len(fixups) == 0 {
			continue
		}
		touched := false
		for _, cluster := range types.ClustersOf(fixups) {
			if len(cluster.Fixups) < 2 {
				continue
			}
			head := cluster.Fixups[0]
			tail := cluster.Fixups[len(cluster.Fixups)-1]
			if head.Kind != types.FixupSetTargetAddress || !tail.Kind.IsStore() {
				continue
			}
			real, ok := eligible[head.Target.Atom]
			if !ok {
				continue
			}
			for i := range fixups {
				if fixups[i].ClusterID != cluster.ID {
					continue
				}
				switch {
				case fixups[i].Kind == types.FixupSetTargetAddress:
					fixups[i].Target = types.TargetRef{Atom: real, Name: real.Name}
				case fixups[i].Kind.IsStore():
					fixups[i].Target = types.TargetRef{Atom: real, Name: real.Name}
					fixups[i].WasInstructionRewritten = true
				}
			}
			used[head.Target.Atom] = true
			touched = true
			rewritten++
		}
		if touched {
			atom.SetFixups(fixups)
		}
	}

	// Every GOT pointer atom that had at least one referencing load
	// rewritten no longer needs to survive dead-stripping on its own.
	for got := range used {
		got.DontDeadStrip = false
	}
	return rewritten
}
