package trie

import (
	"bytes"
	"sort"
)

// ExportedSymbol is one entry to encode into an export trie: either a
// regular/absolute/thread-local/resolver definition (Address, Other for a
// resolver stub) or a re-export (ReExportFrom ordinal + optional
// ReExportName when it differs from Name).
type ExportedSymbol struct {
	Name         string
	Flags        int // bitwise-composed EXPORT_SYMBOL_FLAGS_*
	Address      uint64
	ResolverAddr uint64 // valid when Flags has STUB_AND_RESOLVER set
	ReExportFrom int    // dylib ordinal; valid when Flags has REEXPORT set
	ReExportName string
}

type buildNode struct {
	prefix   string
	term     *ExportedSymbol
	children []*buildEdge
	offset   uint64
	size     int
}

type buildEdge struct {
	label string
	node  *buildNode
}

// BuildTrie encodes symbols into the compact export-trie byte format dyld
// reads at load time (spec.md §4.7: "a prefix tree of exported symbol name
// suffixes"). Input order does not matter; the output is deterministic
// given the same symbol set.
func BuildTrie(symbols []ExportedSymbol) []byte {
	sorted := append([]ExportedSymbol(nil), symbols...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	root := &buildNode{}
	for i := range sorted {
		insert(root, sorted[i].Name, &sorted[i])
	}

	for {
		changed := assignOffsets(root)
		if !changed {
			break
		}
	}
	var buf bytes.Buffer
	emit(root, &buf)
	return buf.Bytes()
}

func insert(n *buildNode, name string, sym *ExportedSymbol) {
	if name == "" {
		n.term = sym
		return
	}
	for _, e := range n.children {
		common := commonPrefixLen(e.label, name)
		if common == 0 {
			continue
		}
		if common == len(e.label) {
			insert(e.node, name[common:], sym)
			return
		}
		// split edge e at common
		mid := &buildNode{children: []*buildEdge{{label: e.label[common:], node: e.node}}}
		e.label = e.label[:common]
		e.node = mid
		insert(mid, name[common:], sym)
		return
	}
	n.children = append(n.children, &buildEdge{label: name, node: &buildNode{term: nil}})
	leaf := n.children[len(n.children)-1].node
	leaf.term = sym
}

func commonPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func uleb128(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			break
		}
	}
	return out
}

func terminalBytes(sym *ExportedSymbol) []byte {
	var buf bytes.Buffer
	buf.Write(uleb128(uint64(sym.Flags)))
	const reexportBit = 0x08
	const stubResolverBit = 0x10
	switch {
	case sym.Flags&reexportBit != 0:
		buf.Write(uleb128(uint64(sym.ReExportFrom)))
		buf.WriteString(sym.ReExportName)
		buf.WriteByte(0)
	case sym.Flags&stubResolverBit != 0:
		buf.Write(uleb128(sym.ResolverAddr))
		buf.Write(uleb128(sym.Address))
	default:
		buf.Write(uleb128(sym.Address))
	}
	return buf.Bytes()
}

// nodeSize returns the encoded byte length of n's own record (terminal +
// child count + child edges), given that every child's offset is already
// known.
func nodeSize(n *buildNode) int {
	size := 0
	if n.term != nil {
		tb := terminalBytes(n.term)
		size += len(uleb128(uint64(len(tb)))) + len(tb)
	} else {
		size += 1 // terminalSize == 0, one byte
	}
	size += 1 // child count
	for _, e := range n.children {
		size += len(e.label) + 1 // label + NUL
		size += uleb128Len(e.node.offset)
	}
	return size
}

func uleb128Len(v uint64) int {
	n := 1
	for v >>= 7; v != 0; v >>= 7 {
		n++
	}
	return n
}

// assignOffsets iterates fixed-point style (offsets depend on sizes which
// depend on other nodes' offsets once emitted) until stable, exactly like
// the reference encoder's converge-then-emit strategy for ULEB128-sized
// offsets whose own width can grow the total size.
func assignOffsets(root *buildNode) (changed bool) {
	var nodes []*buildNode
	var collect func(n *buildNode)
	collect = func(n *buildNode) {
		nodes = append(nodes, n)
		for _, e := range n.children {
			collect(e.node)
		}
	}
	collect(root)

	for pass := 0; pass < len(nodes)+1; pass++ {
		changed = false
		var offset uint64
		for _, n := range nodes {
			if n.offset != offset {
				changed = true
			}
			n.offset = offset
			offset += uint64(nodeSize(n))
		}
		if !changed {
			break
		}
	}
	return changed
}

func emit(n *buildNode, buf *bytes.Buffer) {
	if n.term != nil {
		tb := terminalBytes(n.term)
		buf.Write(uleb128(uint64(len(tb))))
		buf.Write(tb)
	} else {
		buf.WriteByte(0)
	}
	buf.WriteByte(byte(len(n.children)))
	for _, e := range n.children {
		buf.WriteString(e.label)
		buf.WriteByte(0)
		buf.Write(uleb128(e.node.offset))
	}
	for _, e := range n.children {
		emit(e.node, buf)
	}
}
