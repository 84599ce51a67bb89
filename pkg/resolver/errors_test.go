package resolver_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/appsworld/ld64core/pkg/resolver"
)

func TestLinkErrorFormatsSingleAndMultipleMessages(t *testing.T) {
	single := resolver.NewLinkError(resolver.PhaseResolution, "boom")
	require.EqualError(t, single, "resolution: boom")

	multi := resolver.NewLinkError(resolver.PhaseLayout, "a", "b")
	require.ErrorContains(t, multi, "2 errors")
	require.ErrorContains(t, multi, "a")
	require.ErrorContains(t, multi, "b")
}

func TestNewLinkErrorEmptyIsNil(t *testing.T) {
	require.Nil(t, resolver.NewLinkError(resolver.PhaseFixup))
}

func TestDiagnosticSinkFatalWarningsPromotion(t *testing.T) {
	sink := resolver.NewDiagnosticSink(true)
	require.NoError(t, sink.FinalError())

	sink.Warn(resolver.PhaseResolution, "careful: %s", "thing")
	require.Equal(t, 1, sink.WarningCount())
	require.Error(t, sink.FinalError())
}

func TestDiagnosticSinkNonFatalWarningsDontError(t *testing.T) {
	sink := resolver.NewDiagnosticSink(false)
	sink.Warn(resolver.PhaseResolution, "careful")
	sink.Note(resolver.PhaseResolution, "fyi")

	require.NoError(t, sink.FinalError())
	require.Len(t, sink.All(), 2)
	require.Equal(t, 1, sink.WarningCount())
}
