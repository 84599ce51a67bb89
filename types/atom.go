package types

import "fmt"

// Definition classifies how an Atom's storage came to exist.
type Definition uint8

const (
	// DefinitionRegular is a normal, fully-formed definition.
	DefinitionRegular Definition = iota
	// DefinitionTentative is a common-block ("tentative") definition whose
	// size/alignment may be merged against other tentative definitions of
	// the same name.
	DefinitionTentative
	// DefinitionAbsolute atoms have a fixed address set by the user and
	// never coalesce or move during layout.
	DefinitionAbsolute
	// DefinitionProxy atoms stand in for a symbol defined in a dylib.
	DefinitionProxy
)

func (d Definition) String() string {
	switch d {
	case DefinitionRegular:
		return "regular"
	case DefinitionTentative:
		return "tentative"
	case DefinitionAbsolute:
		return "absolute"
	case DefinitionProxy:
		return "proxy"
	default:
		return fmt.Sprintf("Definition(%d)", uint8(d))
	}
}

// Combine describes how same-named or same-content atoms may be coalesced.
type Combine uint8

const (
	CombineNever Combine = iota
	CombineByName
	CombineByNameAndContent
	CombineByNameAndReferences
)

func (c Combine) String() string {
	switch c {
	case CombineNever:
		return "never"
	case CombineByName:
		return "byName"
	case CombineByNameAndContent:
		return "byNameAndContent"
	case CombineByNameAndReferences:
		return "byNameAndReferences"
	default:
		return fmt.Sprintf("Combine(%d)", uint8(c))
	}
}

// Scope controls symbol visibility outside the translation unit.
type Scope uint8

const (
	ScopeTranslationUnit Scope = iota
	ScopeLinkageUnit
	ScopeGlobal
)

func (s Scope) String() string {
	switch s {
	case ScopeTranslationUnit:
		return "translationUnit"
	case ScopeLinkageUnit:
		return "linkageUnit"
	case ScopeGlobal:
		return "global"
	default:
		return fmt.Sprintf("Scope(%d)", uint8(s))
	}
}

// ContentType further classifies atoms beyond their output section, for
// atoms the linker synthesizes or treats specially during layout/fixups.
type ContentType uint8

const (
	ContentUnclassified ContentType = iota
	ContentCString
	ContentCFI
	ContentLSDA
	ContentStub
	ContentLazyPointer
	ContentNonLazyPointer
	ContentResolver
	ContentTLVDefs
	ContentTLVZeroFill
	ContentTLVInitialValues
	ContentTLVInitializerPointers
	ContentBranchIsland
	ContentSectionStart
	ContentSectionEnd
	ContentLTOTemporary
)

// SymbolTableInclusion controls whether, and how, an atom appears in the
// final symbol table (spec.md §3.1).
type SymbolTableInclusion uint8

const (
	SymbolTableNotIn SymbolTableInclusion = iota
	SymbolTableNotInFinal
	SymbolTableIn
	SymbolTableInAndNeverStrip
	SymbolTableInAsAbsolute
	SymbolTableInWithRandomAutoStripLabel
)

// WeakImportState captures the tri-state weak-import flag carried only by
// proxy atoms.
type WeakImportState uint8

const (
	WeakImportUnset WeakImportState = iota
	WeakImportTrue
	WeakImportFalse
)

// Alignment is a (powerOf2, modulus) pair: an atom's address must satisfy
// addr mod 2^PowerOf2 == Modulus.
type Alignment struct {
	PowerOf2 uint8
	Modulus  uint8
}

// Align rounds up addr to satisfy a, honoring the modulus.
func (a Alignment) Align(addr uint64) uint64 {
	if a.PowerOf2 == 0 {
		return addr
	}
	mod := uint64(1) << a.PowerOf2
	rem := addr % mod
	target := uint64(a.Modulus) % mod
	if rem == target {
		return addr
	}
	if rem < target {
		return addr + (target - rem)
	}
	return addr + (mod - rem + target)
}

// Satisfies reports whether addr already satisfies the alignment constraint.
func (a Alignment) Satisfies(addr uint64) bool {
	if a.PowerOf2 == 0 {
		return true
	}
	mod := uint64(1) << a.PowerOf2
	return addr%mod == uint64(a.Modulus)%mod
}

// Max returns the stricter (larger power-of-2) of two alignments.
func (a Alignment) Max(b Alignment) Alignment {
	if b.PowerOf2 > a.PowerOf2 {
		return b
	}
	return a
}

// addressState records which half of the Atom address state machine
// (spec.md §3.1) is currently valid.
type addressState uint8

const (
	addressUnassigned addressState = iota
	addressSectionOffset
	addressFinal
)

// Content supplies an atom's raw bytes and identity to the linker. Parsers
// implement this directly; the resolver and layout engine never mutate it.
type Content interface {
	Size() uint64
	ObjectAddress() uint64
	CopyRawContent(buf []byte)
	ContentHash() uint64
}

// Atom is the linker's indivisible unit of input/output (spec.md §3.1). The
// fields a parser fills in are immutable after ingestion; fields the
// resolver/layout engine assign (Live, MachoSection, address) live in the
// mutable tail and are only ever written once per phase, per the
// one-way-transition invariant.
type Atom struct {
	Name    string
	File    File
	Section SectionKey

	Definition  Definition
	Combine     Combine
	Scope       Scope
	ContentType ContentType

	SymbolTableInclusion SymbolTableInclusion
	WeakImportState      WeakImportState

	DontDeadStrip               bool
	DontDeadStripIfRefsLive     bool
	Thumb                       bool
	IsAlias                     bool
	AutoHide                    bool
	OverridesDylibsWeakDef      bool
	CanBeHidden                 bool
	SharedRegionEligible        bool

	Alignment Alignment
	AliasOf   string // for IsAlias atoms, the name of the aliased symbol

	content Content
	fixups  []Fixup

	// mutable layout state, written by exactly one phase each
	live          bool
	coalescedAway bool
	addrState     addressState
	sectionOffset uint64
	finalAddress  uint64
	machoSection  int // 1-based; 0 means unassigned
}

// NewAtom constructs an Atom bound to its source Content and fixup stream.
func NewAtom(name string, content Content, fixups []Fixup) *Atom {
	return &Atom{
		Name:    name,
		content: content,
		fixups:  fixups,
		live:    true, // dead-strip, if enabled, marks down from "all live"
	}
}

func (a *Atom) Size() uint64 {
	if a.Definition == DefinitionProxy {
		return 0
	}
	if a.content == nil {
		return 0
	}
	return a.content.Size()
}

// ObjectAddress returns the atom's address in its originating file, used
// only to order atoms stably when no other ordering is requested.
func (a *Atom) ObjectAddress() uint64 {
	if a.content == nil {
		return 0
	}
	return a.content.ObjectAddress()
}

func (a *Atom) CopyRawContent(buf []byte) {
	if a.content != nil {
		a.content.CopyRawContent(buf)
	}
}

func (a *Atom) ContentHash() uint64 {
	if a.content == nil {
		return 0
	}
	return a.content.ContentHash()
}

// Fixups returns the atom's fixup stream in source order.
func (a *Atom) Fixups() []Fixup { return a.fixups }

// SetFixups replaces the atom's fixup stream; used by the resolver when
// rewriting bindings from ByContentBound/ByNameUnbound to IndirectlyBound.
func (a *Atom) SetFixups(f []Fixup) { a.fixups = f }

func (a *Atom) Live() bool     { return a.live }
func (a *Atom) SetLive(v bool) { a.live = v }

func (a *Atom) CoalescedAway() bool     { return a.coalescedAway }
func (a *Atom) SetCoalescedAway(v bool) { a.coalescedAway = v }

// SetSectionOffset assigns the atom's offset within its final section. It
// may be called again while the offset is still section-relative; a call
// after SetFinalAddress panics, enforcing the spec's one-way address-state
// transition.
func (a *Atom) SetSectionOffset(off uint64) {
	if a.addrState == addressFinal {
		panic(fmt.Sprintf("atom %s: SetSectionOffset after SetFinalAddress", a.Name))
	}
	a.sectionOffset = off
	a.addrState = addressSectionOffset
}

func (a *Atom) SectionOffset() uint64 {
	if a.addrState == addressUnassigned {
		panic(fmt.Sprintf("atom %s: SectionOffset read before layout", a.Name))
	}
	return a.sectionOffset
}

// SetFinalAddress assigns the atom's final virtual address. Idempotent once
// set to the same value (layout pass 2 may run more than once while
// converging fixed-segment placement).
func (a *Atom) SetFinalAddress(addr uint64) {
	if a.addrState == addressFinal && a.finalAddress != addr {
		panic(fmt.Sprintf("atom %s: address reassigned from %#x to %#x", a.Name, a.finalAddress, addr))
	}
	a.finalAddress = addr
	a.addrState = addressFinal
}

func (a *Atom) FinalAddress() uint64 {
	if a.addrState != addressFinal {
		panic(fmt.Sprintf("atom %s: FinalAddress read before address assignment", a.Name))
	}
	return a.finalAddress
}

func (a *Atom) HasFinalAddress() bool { return a.addrState == addressFinal }

func (a *Atom) MachoSection() int     { return a.machoSection }
func (a *Atom) SetMachoSection(i int) { a.machoSection = i }

// CanCoalesceWith reports whether a and b may be merged under their shared
// Combine mode (content- or reference-keyed coalescing, spec.md §4.1).
func (a *Atom) CanCoalesceWith(b *Atom) bool {
	if a.Combine != b.Combine || a.Combine == CombineNever {
		return false
	}
	switch a.Combine {
	case CombineByName:
		return a.Name == b.Name
	case CombineByNameAndContent:
		return a.Name == b.Name && a.ContentHash() == b.ContentHash()
	case CombineByNameAndReferences:
		return a.Name == b.Name && sameFixupShape(a.fixups, b.fixups)
	}
	return false
}

func sameFixupShape(a, b []Fixup) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].OffsetInAtom != b[i].OffsetInAtom || a[i].Kind != b[i].Kind {
			return false
		}
	}
	return true
}
