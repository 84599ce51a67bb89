package resolver

import (
	"github.com/appsworld/ld64core/pkg/symtab"
	"github.com/appsworld/ld64core/types"
)

// NewAliasAtom builds the synthetic atom a command-line `-alias real new`
// pair produces: a global atom named new, grounded on spec.md §4.1's
// "Alias atoms" rule. The atom is created with no content and no fixups;
// it carries no binding to real until the caller resolves realName
// through the symbol table and runs SyncAliasAttributes, which gives it a
// single FixupSetTargetAddress fixup targeting real.
func NewAliasAtom(newName, realName string) *types.Atom {
	a := types.NewAtom(newName, nil, nil)
	a.Definition = types.DefinitionRegular
	a.Combine = types.CombineNever
	a.Scope = types.ScopeGlobal
	a.SymbolTableInclusion = types.SymbolTableIn
	a.IsAlias = true
	a.AliasOf = realName
	return a
}

// SyncAliasAttributes implements resolver phase 9, syncAliases
// (spec.md §4.2 step 9): once real is resolved, copy its content-bearing
// attributes onto the alias atom, leaving the alias's own Scope (global)
// intact so it is still visible to external callers under its own name.
func SyncAliasAttributes(alias, real *types.Atom) {
	if alias == nil || real == nil {
		return
	}
	alias.SetFixups([]types.Fixup{{
		Kind:   types.FixupSetTargetAddress,
		Target: types.TargetRef{Atom: real, Name: real.Name},
	}})
	alias.Section = real.Section
	alias.SetLive(real.Live())
}

// RemoveUnusedAliases implements the removeUnusedAliases pass (original
// Resolver.cpp:1573, §C.1): it returns the set of aliases whose target
// name never resolved to a surviving definition. syncAliases, which runs
// after checkUndefines, marks each of them dead so the following
// removeCoalescedAwayAtoms sweep drops it from the symbol table, rather
// than it being reported as its own undefined reference — the missing
// name is already reported once, under the real target's name.
func RemoveUnusedAliases(st *symtab.Table, aliasToReal map[string]string) map[string]bool {
	drop := map[string]bool{}
	for aliasName, realName := range aliasToReal {
		if st.AtomForName(realName) == nil {
			// real target itself never resolved: the alias carries no
			// information checkUndefines doesn't already have via realName.
			drop[aliasName] = true
		}
	}
	return drop
}
