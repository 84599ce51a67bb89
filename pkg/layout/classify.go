// Package layout implements the section classifier/sorter (spec component
// C5) and the three-pass layout engine (component C6).
package layout

import (
	"github.com/appsworld/ld64core/pkg/state"
	"github.com/appsworld/ld64core/types"
)

// Mode selects between the two classification rule sets spec.md §4.4
// describes.
type Mode uint8

const (
	ModeFinalImage Mode = iota // producing an executable/dylib/bundle
	ModeObjectFile              // -r: relocatable output, most sections pass through
)

// coalesceRule maps an input (segment,section) pair to its final image
// destination, grounded on spec.md §4.4's enumerated coalescing table.
type coalesceRule struct {
	fromSeg, fromSect string
	toSeg, toSect     string
}

var finalImageCoalesceRules = []coalesceRule{
	{"__DATA", "__datacoal_nt", "__DATA", "__data"},
	{"__DATA", "__const_coal", "__DATA", "__const"},
	{"__TEXT", "__textcoal_nt", "__TEXT", "__text"},
	{"__TEXT", "__StaticInit", "__TEXT", "__text"},
	{"__IMPORT", "__pointers", "__DATA", "__nl_symbol_ptr"},
}

var literalToConst = map[types.SectionType]bool{
	types.SectionFourByteLiterals:    true,
	types.SectionEightByteLiterals:   true,
	types.SectionSixteenByteLiterals: true,
}

// Classify assigns atom's final SectionKey under mode, applying the
// coalescing rules of spec.md §4.4. It does not mutate atom; callers use
// the returned key to look up (or create) the FinalSection in Internal.
func Classify(mode Mode, opts *types.Options, atom *types.Atom) types.SectionKey {
	key := atom.Section

	if atom.Definition == types.DefinitionTentative {
		return classifyTentative(mode, opts, key)
	}

	if mode == ModeObjectFile {
		return key // object-file mode: pass through unchanged (renames applied by caller before this)
	}

	for _, r := range finalImageCoalesceRules {
		if key.Segment == r.fromSeg && key.Section == r.fromSect {
			return types.SectionKey{Segment: r.toSeg, Section: r.toSect, Type: resolvedType(r.toSeg, r.toSect)}
		}
	}
	if literalToConst[key.Type] {
		if key.Segment == "__TEXT" {
			return types.SectionKey{Segment: "__TEXT", Section: "__const", Type: types.SectionRegular}
		}
		return types.SectionKey{Segment: "__DATA", Section: "__const", Type: types.SectionRegular}
	}
	return key
}

func classifyTentative(mode Mode, opts *types.Options, key types.SectionKey) types.SectionKey {
	if mode == ModeObjectFile && opts.CommonsMode() != types.CommonsModeTreatAsTentativeDefinitions {
		return key
	}
	if opts.MergeZeroFill() {
		return types.SectionKey{Segment: "__DATA", Section: "__zerofill", Type: types.SectionGBZeroFill}
	}
	return types.SectionKey{Segment: "__DATA", Section: "__common", Type: types.SectionZeroFill}
}

func resolvedType(seg, sect string) types.SectionType {
	if seg == "__DATA" && sect == "__nl_symbol_ptr" {
		return types.SectionNonLazySymbolPointers
	}
	return types.SectionRegular
}

// ClassifyAndFile classifies atom and places it in its final section
// within in, creating the section on first use.
func ClassifyAndFile(mode Mode, opts *types.Options, in *state.Internal, atom *types.Atom) *types.FinalSection {
	key := Classify(mode, opts, atom)
	sec := in.SectionFor(key)
	if atom.ContentType != types.ContentSectionEnd {
		in.InsertBeforeSectionEnd(sec, atom)
	} else {
		in.AppendAtom(sec, atom)
	}
	return sec
}
