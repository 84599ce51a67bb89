package resolver_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/appsworld/ld64core/internal/objpool"
	"github.com/appsworld/ld64core/pkg/resolver"
	"github.com/appsworld/ld64core/types"
)

func TestParseBoundarySymbolRecognizesAllFourKinds(t *testing.T) {
	cases := []struct {
		name                      string
		wantKind, wantSeg, wantSect string
	}{
		{"section$start$__DATA$__data", "section$start", "__DATA", "__data"},
		{"section$end$__DATA$__data", "section$end", "__DATA", "__data"},
		{"segment$start$__TEXT", "segment$start", "__TEXT", ""},
		{"segment$end$__TEXT", "segment$end", "__TEXT", ""},
	}
	for _, c := range cases {
		kind, seg, sect, ok := resolver.ParseBoundarySymbol(c.name)
		require.True(t, ok, c.name)
		require.Equal(t, c.wantKind, kind)
		require.Equal(t, c.wantSeg, seg)
		require.Equal(t, c.wantSect, sect)
	}
}

func TestParseBoundarySymbolRejectsOrdinaryNames(t *testing.T) {
	_, _, _, ok := resolver.ParseBoundarySymbol("_main")
	require.False(t, ok)
}

func TestNewBoundaryAtomIsHiddenAndUndeadStrippable(t *testing.T) {
	pool := objpool.New()
	a := resolver.NewBoundaryAtom(pool, "section$start$__DATA$__data")

	require.Equal(t, types.ScopeLinkageUnit, a.Scope)
	require.Equal(t, types.SymbolTableNotIn, a.SymbolTableInclusion)
	require.True(t, a.DontDeadStrip)
}

func TestBoundaryAtomNameRoundTrips(t *testing.T) {
	name := resolver.BoundaryAtomName("section$start", "__DATA", "__data")
	kind, seg, sect, ok := resolver.ParseBoundarySymbol(name)

	require.True(t, ok)
	require.Equal(t, "section$start", kind)
	require.Equal(t, "__DATA", seg)
	require.Equal(t, "__data", sect)
}
