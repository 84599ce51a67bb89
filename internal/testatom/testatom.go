// Package testatom provides a minimal in-memory Content/File
// implementation so unit tests across the module can build atom graphs
// without a real object-file parser, mirroring the role the teacher
// package's synthetic fixtures play in its own tests.
package testatom

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/appsworld/ld64core/types"
)

// Bytes is a Content implementation backed by a fixed byte slice.
type Bytes struct {
	Data      []byte
	ObjAddr   uint64
}

func (b Bytes) Size() uint64          { return uint64(len(b.Data)) }
func (b Bytes) ObjectAddress() uint64 { return b.ObjAddr }
func (b Bytes) CopyRawContent(dst []byte) { copy(dst, b.Data) }
func (b Bytes) ContentHash() uint64 {
	h := fnv.New64a()
	h.Write(b.Data)
	return h.Sum64()
}

// Zeros constructs Content of the given size backed by that many zero bytes.
func Zeros(size uint64) Bytes { return Bytes{Data: make([]byte, size)} }

// File is a minimal types.File implementation for tests and the demo CLI.
type File struct {
	PathVal    string
	KindVal    types.FileKind
	OrdinalVal int
}

func (f *File) Path() string        { return f.PathVal }
func (f *File) Kind() types.FileKind { return f.KindVal }
func (f *File) Ordinal() int        { return f.OrdinalVal }

// NewFile builds a File with an ordinal packed the way spec.md §3.4
// describes for argv-ordered inputs: partition 0 (ArgList), major ==
// argvIndex, minor/counter zero.
func NewFile(path string, argvIndex int) *File {
	return &File{PathVal: path, KindVal: types.FileKindObject, OrdinalVal: PackOrdinal(0, argvIndex, 0, 0)}
}

// PackOrdinal builds the 64-bit lexicographic ordinal key from spec.md
// §3.4: partition(16) | major(16) | minor(16) | counter(16).
func PackOrdinal(partition, major, minor, counter int) int {
	var buf [8]byte
	binary.BigEndian.PutUint16(buf[0:2], uint16(partition))
	binary.BigEndian.PutUint16(buf[2:4], uint16(major))
	binary.BigEndian.PutUint16(buf[4:6], uint16(minor))
	binary.BigEndian.PutUint16(buf[6:8], uint16(counter))
	return int(binary.BigEndian.Uint64(buf[:]))
}
