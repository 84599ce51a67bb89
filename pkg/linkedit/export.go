package linkedit

import (
	"github.com/appsworld/ld64core/pkg/trie"
	"github.com/appsworld/ld64core/pkg/state"
	"github.com/appsworld/ld64core/types"
)

// BuildExportTrie walks every live, exported atom in in and produces the
// export-trie byte stream (spec.md §4.7). Re-exported symbols (atoms
// marked as proxies whose home dylib is itself re-exported) look up their
// origin dylib's ordinal through ordinals.
func BuildExportTrie(in *state.Internal, ordinals *OrdinalMapping, reExports map[string]*types.DylibInfo) []byte {
	var symbols []trie.ExportedSymbol
	for _, atom := range in.AllLiveAtoms() {
		if !isExported(atom) {
			continue
		}
		sym := trie.ExportedSymbol{Name: atom.Name}
		switch {
		case atom.ContentType == types.ContentResolver:
			sym.Flags = int(types.EXPORT_SYMBOL_FLAGS_STUB_AND_RESOLVER)
			sym.Address = atom.FinalAddress()
		case atom.ContentType == types.ContentTLVDefs:
			sym.Flags = int(types.EXPORT_SYMBOL_FLAGS_KIND_THREAD_LOCAL)
			sym.Address = atom.FinalAddress()
		default:
			sym.Address = atom.FinalAddress()
		}
		if dylib, ok := reExports[atom.Name]; ok {
			sym.Flags |= int(types.EXPORT_SYMBOL_FLAGS_REEXPORT)
			sym.ReExportFrom = ordinals.OrdinalFor(dylib)
			sym.ReExportName = atom.Name
		}
		symbols = append(symbols, sym)
	}
	return trie.BuildTrie(symbols)
}

func isExported(a *types.Atom) bool {
	if a.Scope != types.ScopeGlobal {
		return false
	}
	if !a.Live() || a.CoalescedAway() {
		return false
	}
	switch a.SymbolTableInclusion {
	case types.SymbolTableIn, types.SymbolTableInAndNeverStrip, types.SymbolTableInWithRandomAutoStripLabel:
		return true
	}
	return false
}
