package resolver

import (
	"github.com/appsworld/ld64core/types"
)

// cpuArch64Bit mirrors types' unexported cpuArch64 mask (0x01000000) used
// to flag 64-bit CPU variants in the Mach-O cpu_type_t encoding.
const cpuArch64Bit = 0x01000000

// pointerSizeFor reports the natural pointer width in bytes for arch.
func pointerSizeFor(arch types.CPU) uint64 {
	if uint32(arch)&cpuArch64Bit != 0 {
		return 8
	}
	return 4
}

// DiagnoseUnalignedPointers ports Resolver.cpp:1837's
// diagnoseAtomsWithUnalignedPointers (§C.4): a pointer-typed atom (one
// with a Store{Pointer32,Pointer64} fixup writing at any offset) whose
// declared alignment modulus cannot guarantee natural pointer alignment
// is reported, since a misaligned pointer store is technically valid on
// most Mach-O targets but defeats atomic/lock-free access patterns the
// runtime may rely on.
func DiagnoseUnalignedPointers(arch types.CPU, atoms []*types.Atom, sink *DiagnosticSink) {
	want := pointerSizeFor(arch)
	for _, a := range atoms {
		if !hasPointerStore(a) {
			continue
		}
		mod := uint64(1) << a.Alignment.PowerOf2
		if a.Alignment.PowerOf2 == 0 || mod%want != 0 || uint64(a.Alignment.Modulus)%want != 0 {
			sink.Warn(PhaseResolution, "pointer atom %q has alignment insufficient for a %d-byte pointer store", a.Name, want)
		}
	}
}

func hasPointerStore(a *types.Atom) bool {
	for _, f := range a.Fixups() {
		if f.Kind == types.FixupStorePointer32 || f.Kind == types.FixupStorePointer64 {
			return true
		}
	}
	return false
}
