package fixup

import "github.com/appsworld/ld64core/types"

// zeroContent is Content for synthesized atoms with no meaningful input
// bytes of their own (branch islands, boundary markers): the applier
// overwrites every byte before the atom is ever read.
type zeroContent struct{ size uint64 }

func (z zeroContent) Size() uint64              { return z.size }
func (z zeroContent) ObjectAddress() uint64      { return 0 }
func (z zeroContent) CopyRawContent(buf []byte) {}
func (z zeroContent) ContentHash() uint64        { return 0 }

// Architecture-specific __text size limits and insertion slack before
// which a branch island must be inserted (spec.md §4.6).
const (
	armBranchLimit       = 32 * 1024 * 1024
	thumb2BranchLimit    = 16 * 1024 * 1024
	thumb1BranchLimit    = 4 * 1024 * 1024
	islandInsertionSlack = 1 * 1024 * 1024
)

// IslandKind selects the trampoline body a branch island synthesizes.
type IslandKind uint8

const (
	IslandARMToARM IslandKind = iota
	IslandARMToThumb1
	IslandThumb2ToThumb
)

// NeedsBranchIslands reports whether a __text section of the given size,
// built for the given architecture mode, exceeds the reach of a direct
// branch and therefore needs islands inserted (spec.md §4.6).
func NeedsBranchIslands(sectionSize uint64, thumb2 bool, thumb1Only bool) bool {
	limit := uint64(armBranchLimit)
	if thumb1Only {
		limit = thumb1BranchLimit
	} else if thumb2 {
		limit = thumb2BranchLimit
	}
	return sectionSize > limit
}

// PlanIslands computes insertion points for a __text section: one island
// slot at each (limit - slack) byte boundary, matching spec.md §4.6's "at
// the last safe insertion point before each (limit - slack) byte region."
func PlanIslands(sectionSize uint64, thumb2, thumb1Only bool) []uint64 {
	limit := uint64(armBranchLimit)
	if thumb1Only {
		limit = thumb1BranchLimit
	} else if thumb2 {
		limit = thumb2BranchLimit
	}
	step := limit - islandInsertionSlack
	var points []uint64
	for p := step; p < sectionSize; p += step {
		points = append(points, p)
	}
	return points
}

// NewIsland synthesizes a branch-island atom of the given kind, targeting
// target. Its content is a placeholder of the correct fixed size; the
// actual branch-encoding bytes are produced later by the fixup applier
// via the same Store* paths as any other branch, once the island has a
// final address.
func NewIsland(kind IslandKind, name string, target *types.Atom) *types.Atom {
	size := uint64(4)
	if kind == IslandARMToThumb1 {
		size = 16 // 4 ARM words: ldr+bx sequence
	}
	content := zeroContent{size: size}
	island := types.NewAtom(name, content, []types.Fixup{
		{OffsetInAtom: 0, Kind: types.FixupSetTargetAddress, ClusterID: 0, Target: types.TargetRef{Atom: target}},
		{OffsetInAtom: 0, Kind: branchKindFor(kind), ClusterID: 0, Target: types.TargetRef{Atom: target}},
	})
	island.ContentType = types.ContentBranchIsland
	island.Scope = types.ScopeTranslationUnit
	island.SymbolTableInclusion = types.SymbolTableNotIn
	island.DontDeadStrip = true
	return island
}

func branchKindFor(kind IslandKind) types.FixupKind {
	switch kind {
	case IslandARMToARM:
		return types.FixupStoreARMBranch24
	case IslandThumb2ToThumb:
		return types.FixupStoreThumbBranch22
	default:
		return types.FixupStoreARMBranch24
	}
}

// CollapseChain implements "when a branch island's target is itself an
// island, the applier tries to skip through to the final target first if
// range permits" (spec.md §4.6): it walks a chain of islands and returns
// the first target reachable from src within maxDisp bytes, or the next
// island in the chain if none is directly reachable.
func CollapseChain(src *types.Atom, chain []*types.Atom, maxDisp int64) *types.Atom {
	if !src.HasFinalAddress() {
		return chain[0]
	}
	for i := len(chain) - 1; i >= 0; i-- {
		t := chain[i]
		if !t.HasFinalAddress() {
			continue
		}
		disp := int64(t.FinalAddress()) - int64(src.FinalAddress())
		if disp < 0 {
			disp = -disp
		}
		if disp <= maxDisp {
			return t
		}
	}
	return chain[0]
}
