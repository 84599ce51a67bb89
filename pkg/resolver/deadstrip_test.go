package resolver_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/appsworld/ld64core/internal/testatom"
	"github.com/appsworld/ld64core/pkg/resolver"
	"github.com/appsworld/ld64core/types"
)

// plainAtom starts not-live, mirroring deadStripOptimize's reset-before-mark
// step: MarkLive's own precondition is that every candidate atom begins
// unmarked, with only roots (and liveness reachable from them) ending live.
func plainAtom(name string) *types.Atom {
	a := types.NewAtom(name, testatom.Zeros(4), nil)
	a.Definition = types.DefinitionRegular
	a.Scope = types.ScopeTranslationUnit
	a.SetLive(false)
	return a
}

// scenario 5 of spec.md §8: A is a root; B (dontDeadStripIfReferencesLive)
// references C with no fixup back from A to B. B and C should die. Adding
// a fixup A->B makes all three live.
func TestDeadStripReferencesLive(t *testing.T) {
	a := plainAtom("a")
	b := plainAtom("b")
	c := plainAtom("c")
	b.DontDeadStripIfRefsLive = true
	b.SetFixups([]types.Fixup{{Kind: types.FixupBindIndirectlyBound, Target: types.TargetRef{Atom: c, Name: "c"}}})

	roots := []*types.Atom{a}
	resolver.MarkLive(roots, []*types.Atom{a, b, c})

	require.True(t, a.Live())
	require.False(t, b.Live())
	require.False(t, c.Live())

	a2 := plainAtom("a")
	b2 := plainAtom("b")
	c2 := plainAtom("c")
	b2.DontDeadStripIfRefsLive = true
	b2.SetFixups([]types.Fixup{{Kind: types.FixupBindIndirectlyBound, Target: types.TargetRef{Atom: c2, Name: "c"}}})
	a2.SetFixups([]types.Fixup{{Kind: types.FixupBindIndirectlyBound, Target: types.TargetRef{Atom: b2, Name: "b"}}})

	resolver.MarkLive([]*types.Atom{a2}, []*types.Atom{a2, b2, c2})

	require.True(t, a2.Live())
	require.True(t, b2.Live())
	require.True(t, c2.Live())
}
