package types

import "fmt"

// FixupKind enumerates the ways a fixup site is rewritten during
// application (spec.md §3.2, §4.7).
type FixupKind uint8

const (
	FixupNone FixupKind = iota

	// Value-forming kinds: compute a 64-bit value, no store.
	FixupSetTargetAddress
	FixupSubtractTargetAddress
	FixupAddAddend
	FixupSubtractAddend
	FixupSetTargetImageOffset
	FixupSetTargetSectionOffset
	FixupSetTargetTLVTemplateOffset
	FixupLazyTarget
	FixupSetLazyOffset

	// Store kinds: take the accumulated value and write it at OffsetInAtom.
	FixupStorePointer32
	FixupStorePointer64
	FixupStore8
	FixupStoreLE16
	FixupStoreBE16
	FixupStoreLE24
	FixupStoreBE24
	FixupStoreLittleEndian32
	FixupStoreLittleEndian64
	FixupStoreBigEndian32
	FixupStoreBigEndian64
	FixupStoreARMBranch24
	FixupStoreThumbBranch22
	FixupStoreARM64Branch26
	FixupStoreX86BranchPCRel8
	FixupStoreX86BranchPCRel32
	FixupStoreARMHi16
	FixupStoreARMLo16
	FixupStoreThumbHi16
	FixupStoreThumbLo16
	FixupStoreARM64Page21
	FixupStoreARM64PageOff12
	FixupStoreTargetAddressLittleEndian32
	FixupStoreTargetAddressLittleEndian64

	// Binding kinds: record that this slot needs a dyld bind/rebase entry
	// rather than (or in addition to) a concrete store.
	FixupBindByNameUnbound
	FixupBindByContentBound
	FixupBindIndirectlyBound
	FixupBindDirectlyBound

	// Lazy-binding helper markers.
	FixupLazyBindOpcodeStart
	FixupLazyBindOpcodeEnd

	// Clustering markers.
	FixupClusterEnd
)

func (k FixupKind) String() string {
	names := [...]string{
		"none",
		"setTargetAddress", "subtractTargetAddress", "addAddend", "subtractAddend",
		"setTargetImageOffset", "setTargetSectionOffset", "setTargetTLVTemplateOffset",
		"lazyTarget", "setLazyOffset",
		"storePointer32", "storePointer64", "store8", "storeLE16", "storeBE16", "storeLE24", "storeBE24",
		"storeLittleEndian32", "storeLittleEndian64",
		"storeBigEndian32", "storeBigEndian64",
		"storeARMBranch24", "storeThumbBranch22", "storeARM64Branch26",
		"storeX86BranchPCRel8", "storeX86BranchPCRel32",
		"storeARMHi16", "storeARMLo16", "storeThumbHi16", "storeThumbLo16",
		"storeARM64Page21", "storeARM64PageOff12",
		"storeTargetAddressLE32", "storeTargetAddressLE64",
		"bindByNameUnbound", "bindByContentBound", "bindIndirectlyBound", "bindDirectlyBound",
		"lazyBindOpcodeStart", "lazyBindOpcodeEnd", "clusterEnd",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return fmt.Sprintf("FixupKind(%d)", uint8(k))
}

// IsStore reports whether applying this fixup writes bytes into the atom.
func (k FixupKind) IsStore() bool {
	switch k {
	case FixupStorePointer32, FixupStorePointer64,
		FixupStore8, FixupStoreLE16, FixupStoreBE16, FixupStoreLE24, FixupStoreBE24,
		FixupStoreLittleEndian32, FixupStoreLittleEndian64, FixupStoreBigEndian32, FixupStoreBigEndian64,
		FixupStoreARMBranch24, FixupStoreThumbBranch22, FixupStoreARM64Branch26,
		FixupStoreX86BranchPCRel8, FixupStoreX86BranchPCRel32,
		FixupStoreARMHi16, FixupStoreARMLo16, FixupStoreThumbHi16, FixupStoreThumbLo16,
		FixupStoreARM64Page21, FixupStoreARM64PageOff12,
		FixupStoreTargetAddressLittleEndian32, FixupStoreTargetAddressLittleEndian64:
		return true
	}
	return false
}

// IsBinding reports whether this fixup still needs dyld rebase/bind info
// emitted for it rather than (or in addition to) a concrete store.
func (k FixupKind) IsBinding() bool {
	switch k {
	case FixupBindByNameUnbound, FixupBindByContentBound, FixupBindIndirectlyBound, FixupBindDirectlyBound:
		return true
	}
	return false
}

// TargetRef names the other atom (or external symbol) a fixup refers to.
// Exactly one of Atom/Name is meaningful, selected by Kind.
type TargetRef struct {
	Atom *Atom  // set once the resolver has bound the reference
	Name string // original, possibly still-unbound, symbol name
}

// Fixup is one entry in an atom's fixup stream (spec.md §3.2). Fixups for a
// single logical reference are grouped into a cluster sharing ClusterID;
// value-forming kinds accumulate into a running value which the final store
// kind in the cluster consumes.
type Fixup struct {
	OffsetInAtom uint64
	Kind         FixupKind
	ClusterID    uint32
	Target       TargetRef
	Addend       int64

	// WasInstructionRewritten records that the fixup applier, when it
	// substituted a B/BL with a short-branch form or avoided a GOT
	// indirection, altered bytes outside the raw store (spec.md §4.7).
	WasInstructionRewritten bool
}

// Cluster groups the fixups sharing a ClusterID, in stream order, for the
// fixup applier's single accumulate-then-store walk.
type Cluster struct {
	ID     uint32
	Fixups []Fixup
}

// ClustersOf splits an atom's fixup stream into clusters in first-seen
// order. A cluster's final element is always a store or binding kind.
func ClustersOf(fixups []Fixup) []Cluster {
	order := []uint32{}
	byID := map[uint32][]Fixup{}
	for _, f := range fixups {
		if _, seen := byID[f.ClusterID]; !seen {
			order = append(order, f.ClusterID)
		}
		byID[f.ClusterID] = append(byID[f.ClusterID], f)
	}
	out := make([]Cluster, 0, len(order))
	for _, id := range order {
		out = append(out, Cluster{ID: id, Fixups: byID[id]})
	}
	return out
}
