package layout_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/appsworld/ld64core/internal/testatom"
	"github.com/appsworld/ld64core/pkg/layout"
	"github.com/appsworld/ld64core/pkg/state"
	"github.com/appsworld/ld64core/types"
)

func sizedAtom(name string, size uint64, power uint8, key types.SectionKey) *types.Atom {
	a := types.NewAtom(name, testatom.Zeros(size), nil)
	a.Definition = types.DefinitionRegular
	a.Section = key
	a.Alignment = types.Alignment{PowerOf2: power}
	return a
}

func TestClassifyCoalescesTextCoalToText(t *testing.T) {
	opts := types.NewOptions()
	a := sizedAtom("_f", 4, 0, types.SectionKey{Segment: "__TEXT", Section: "__textcoal_nt", Type: types.SectionRegular})

	key := layout.Classify(layout.ModeFinalImage, opts, a)

	require.Equal(t, "__TEXT", key.Segment)
	require.Equal(t, "__text", key.Section)
}

func TestClassifyObjectFileModePassesThrough(t *testing.T) {
	opts := types.NewOptions()
	a := sizedAtom("_f", 4, 0, types.SectionKey{Segment: "__TEXT", Section: "__textcoal_nt", Type: types.SectionRegular})

	key := layout.Classify(layout.ModeObjectFile, opts, a)

	require.Equal(t, "__textcoal_nt", key.Section)
}

func TestClassifyLiteralsCoalesceToConst(t *testing.T) {
	opts := types.NewOptions()
	a := sizedAtom("_lit", 4, 0, types.SectionKey{Segment: "__TEXT", Section: "__literal4", Type: types.SectionFourByteLiterals})

	key := layout.Classify(layout.ModeFinalImage, opts, a)

	require.Equal(t, types.SectionKey{Segment: "__TEXT", Section: "__const", Type: types.SectionRegular}, key)
}

func TestClassifyTentativeUnderMergeZeroFill(t *testing.T) {
	opts := types.NewOptions(types.MergeZeroFill())
	a := sizedAtom("_common", 8, 0, types.SectionKey{Segment: "__DATA", Section: "__common", Type: types.SectionRegular})
	a.Definition = types.DefinitionTentative

	key := layout.Classify(layout.ModeFinalImage, opts, a)

	require.Equal(t, types.SectionKey{Segment: "__DATA", Section: "__zerofill", Type: types.SectionGBZeroFill}, key)
}

func TestSizeAndAlignRespectsAlignmentAndSumsSize(t *testing.T) {
	opts := types.NewOptions()
	in := state.NewInternal(opts)

	key := types.SectionKey{Segment: "__TEXT", Section: "__text", Type: types.SectionRegular}
	sec := in.SectionFor(key)
	a1 := sizedAtom("_a", 3, 0, key)
	a2 := sizedAtom("_b", 4, 2, key) // align 2^2 = 4
	sec.Atoms = []*types.Atom{a1, a2}

	require.NoError(t, layout.SizeAndAlign(opts, in))

	require.Equal(t, uint64(0), a1.SectionOffset())
	require.Equal(t, uint64(4), a2.SectionOffset()) // padded up from 3 to 4
	require.Equal(t, uint64(8), sec.Size)
	require.Equal(t, uint8(2), sec.Alignment.PowerOf2)
}

func TestRunProducesNonOverlappingSegmentsAndIsIdempotent(t *testing.T) {
	opts := types.NewOptions()
	in := state.NewInternal(opts)

	textKey := types.SectionKey{Segment: "__TEXT", Section: "__text", Type: types.SectionRegular}
	dataKey := types.SectionKey{Segment: "__DATA", Section: "__data", Type: types.SectionRegular}
	textSec := in.SectionFor(textKey)
	dataSec := in.SectionFor(dataKey)
	textSec.Atoms = []*types.Atom{sizedAtom("_main", 16, 0, textKey)}
	dataSec.Atoms = []*types.Atom{sizedAtom("_g", 8, 3, dataKey)}

	size1, err := layout.Run(layout.ModeFinalImage, opts, in)
	require.NoError(t, err)
	require.Greater(t, size1, uint64(0))

	textAddr1, dataAddr1 := textSec.Address, dataSec.Address

	size2, err := layout.Run(layout.ModeFinalImage, opts, in)
	require.NoError(t, err)
	require.Equal(t, size1, size2)
	require.Equal(t, textAddr1, textSec.Address)
	require.Equal(t, dataAddr1, dataSec.Address)

	require.Less(t, textSec.Address+textSec.Size-1, dataSec.Address)
}

func TestDumpSectionsListsEverySection(t *testing.T) {
	opts := types.NewOptions()
	in := state.NewInternal(opts)
	in.SectionFor(types.SectionKey{Segment: "__TEXT", Section: "__text", Type: types.SectionRegular})

	lines := layout.DumpSections(in)
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], "__TEXT")
	require.Contains(t, lines[0], "__text")
}
