package resolver

import (
	"errors"
	"fmt"
	"strings"
)

// Phase names the resolver stage (or any later stage reusing this error
// type) in which a LinkError was raised, for the "dump context" behavior
// spec.md §7 describes per error class.
type Phase string

const (
	PhaseResolution Phase = "resolution"
	PhaseLayout     Phase = "layout"
	PhaseFixup      Phase = "fixup"
	PhaseLinkedit   Phase = "linkedit"
)

// LinkError is a fatal, phase-tagged failure that aborts the link. Multiple
// independent failures detected in the same phase (e.g. several duplicate
// symbols found by checkDuplicateSymbols) are carried together in Messages
// and Error prints them one per line, so the caller sees every one, not
// just the first.
type LinkError struct {
	Phase    Phase
	Messages []string
}

func (e *LinkError) Error() string {
	if len(e.Messages) == 1 {
		return fmt.Sprintf("%s: %s", e.Phase, e.Messages[0])
	}
	return fmt.Sprintf("%s: %d errors:\n  %s", e.Phase, len(e.Messages), strings.Join(e.Messages, "\n  "))
}

// NewLinkError joins one or more messages detected in the same phase into
// a single LinkError, or returns nil if messages is empty.
func NewLinkError(phase Phase, messages ...string) error {
	if len(messages) == 0 {
		return nil
	}
	return &LinkError{Phase: phase, Messages: messages}
}

// Diagnostic is one warning or note accumulated during the link, counted
// toward -fatal_warnings promotion (spec.md §7).
type Diagnostic struct {
	Phase   Phase
	Message string
	IsWarning bool
}

// DiagnosticSink collects warnings/notes across every phase of a single
// link, standing in for the source's global sEmitWarnings/sWarningsCount
// per spec.md §9's "thread state through a Driver context" guidance.
type DiagnosticSink struct {
	diags         []Diagnostic
	fatalWarnings bool
}

func NewDiagnosticSink(fatalWarnings bool) *DiagnosticSink {
	return &DiagnosticSink{fatalWarnings: fatalWarnings}
}

func (d *DiagnosticSink) Warn(phase Phase, format string, args ...any) {
	d.diags = append(d.diags, Diagnostic{Phase: phase, Message: fmt.Sprintf(format, args...), IsWarning: true})
}

func (d *DiagnosticSink) Note(phase Phase, format string, args ...any) {
	d.diags = append(d.diags, Diagnostic{Phase: phase, Message: fmt.Sprintf(format, args...)})
}

func (d *DiagnosticSink) All() []Diagnostic { return d.diags }

func (d *DiagnosticSink) WarningCount() int {
	n := 0
	for _, diag := range d.diags {
		if diag.IsWarning {
			n++
		}
	}
	return n
}

// FinalError returns a LinkError if -fatal_warnings is set and any
// warnings were recorded, else nil.
func (d *DiagnosticSink) FinalError() error {
	if d.fatalWarnings && d.WarningCount() > 0 {
		return NewLinkError(PhaseResolution, fmt.Sprintf("%d warnings treated as errors (-fatal_warnings)", d.WarningCount()))
	}
	return nil
}

// JoinPhaseErrors is a thin errors.Join wrapper. No phase in this package
// calls it; multi-message failures are reported through NewLinkError.
func JoinPhaseErrors(errs ...error) error {
	return errors.Join(errs...)
}
