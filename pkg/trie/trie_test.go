package trie_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/appsworld/ld64core/pkg/trie"
)

func TestBuildTrieRoundTripsThroughParseTrie(t *testing.T) {
	symbols := []trie.ExportedSymbol{
		{Name: "_foo", Address: 0x1000},
		{Name: "_foobar", Address: 0x1010},
		{Name: "_bar", Address: 0x2000},
		{Name: "_baz", Address: 0x2010},
	}

	data := trie.BuildTrie(symbols)
	require.NotEmpty(t, data)

	entries, err := trie.ParseTrie(data, 0)
	require.NoError(t, err)
	require.Len(t, entries, len(symbols))

	got := map[string]uint64{}
	for _, e := range entries {
		got[e.Name] = e.Address
	}
	for _, s := range symbols {
		require.Equal(t, s.Address, got[s.Name], "symbol %s", s.Name)
	}
}

func TestBuildTrieRoundTripsWithLoadAddress(t *testing.T) {
	symbols := []trie.ExportedSymbol{
		{Name: "_a", Address: 0x100},
		{Name: "_ab", Address: 0x200},
	}
	data := trie.BuildTrie(symbols)

	const loadAddr = 0x4000
	entries, err := trie.ParseTrie(data, loadAddr)
	require.NoError(t, err)

	got := map[string]uint64{}
	for _, e := range entries {
		got[e.Name] = e.Address
	}
	require.Equal(t, uint64(0x100+loadAddr), got["_a"])
	require.Equal(t, uint64(0x200+loadAddr), got["_ab"])
}

func TestBuildTrieIsDeterministicRegardlessOfInputOrder(t *testing.T) {
	a := []trie.ExportedSymbol{
		{Name: "_z", Address: 1},
		{Name: "_a", Address: 2},
		{Name: "_m", Address: 3},
	}
	b := append([]trie.ExportedSymbol(nil), a...)
	sort.Slice(b, func(i, j int) bool { return b[i].Name > b[j].Name })

	require.Equal(t, trie.BuildTrie(a), trie.BuildTrie(b))
}

func TestWalkTrieFindsInsertedSymbol(t *testing.T) {
	symbols := []trie.ExportedSymbol{
		{Name: "_foo", Address: 0x1000},
		{Name: "_foobar", Address: 0x1010},
	}
	data := trie.BuildTrie(symbols)

	_, err := trie.WalkTrie(data, "_foo")
	require.NoError(t, err)

	_, err = trie.WalkTrie(data, "_missing")
	require.Error(t, err)
}
