package resolver

import (
	"fmt"
	"strings"

	"github.com/appsworld/ld64core/internal/objpool"
	"github.com/appsworld/ld64core/types"
)

// boundaryContent is a zero-size Content implementation backing the four
// synthetic boundary-atom families spec.md §4.2 step 5 describes
// (section$start$, section$end$, segment$start$, segment$end$): the atom
// exists purely to carry a final address, never to contribute bytes.
type boundaryContent struct{}

func (boundaryContent) Size() uint64          { return 0 }
func (boundaryContent) ObjectAddress() uint64 { return 0 }
func (boundaryContent) CopyRawContent([]byte) {}
func (boundaryContent) ContentHash() uint64   { return 0 }

// ParseBoundarySymbol recognizes the four synthetic boundary-symbol name
// forms and reports which section/segment they bracket. ok is false for
// any name that isn't one of these forms.
func ParseBoundarySymbol(name string) (kind string, segment, section string, ok bool) {
	switch {
	case strings.HasPrefix(name, "section$start$"):
		seg, sect, good := splitSegSect(name[len("section$start$"):])
		return "section$start", seg, sect, good
	case strings.HasPrefix(name, "section$end$"):
		seg, sect, good := splitSegSect(name[len("section$end$"):])
		return "section$end", seg, sect, good
	case strings.HasPrefix(name, "segment$start$"):
		return "segment$start", name[len("segment$start$"):], "", true
	case strings.HasPrefix(name, "segment$end$"):
		return "segment$end", name[len("segment$end$"):], "", true
	}
	return "", "", "", false
}

func splitSegSect(rest string) (segment, section string, ok bool) {
	idx := strings.IndexByte(rest, '$')
	if idx < 0 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}

// NewBoundaryAtom synthesizes an atom for one of the four boundary-symbol
// forms, pulled from pool so it shares the link's arena lifetime with
// every other atom (spec.md §5's "long-lived arena" memory model).
func NewBoundaryAtom(pool *objpool.Pool, name string) *types.Atom {
	a := pool.NewAtom(name, boundaryContent{}, nil)
	a.Definition = types.DefinitionRegular
	a.Combine = types.CombineNever
	a.Scope = types.ScopeLinkageUnit
	a.SymbolTableInclusion = types.SymbolTableNotIn
	a.DontDeadStrip = true
	return a
}

// BoundaryAtomName formats the canonical name for a generated boundary
// symbol, the inverse of ParseBoundarySymbol.
func BoundaryAtomName(kind, segment, section string) string {
	if section == "" {
		return fmt.Sprintf("%s$%s", kind, segment)
	}
	return fmt.Sprintf("%s$%s$%s", kind, segment, section)
}
