package mesh

import (
	"encoding/binary"
	"fmt"
	"io"

	gomath "math"

	"github.com/printbed/vitrine/server/core"
	"github.com/printbed/vitrine/server/math"
	"github.com/printbed/vitrine/server/storage"
)

// Binary STL layout: an 80-byte header, a little-endian uint32 triangle
// count, then one 50-byte record per triangle (normal, 3 vertices, 2
// attribute bytes).
const (
	HeaderSize = 80
	CountSize  = 4
	DataOffset = HeaderSize + CountSize
	RecordSize = 50

	// Extension is the mesh file extension the server manages.
	Extension = ".stl"
	// MeshDir is the canonical mesh directory in the logical namespace.
	MeshDir = "/meshes"
	// ThumbDir is where generated previews live.
	ThumbDir = "/thumbs"
)

// Triangle is one decoded mesh record.
type Triangle struct {
	Normal   math.Vec3
	Vertices [3]math.Vec3
}

// ValidBinarySize reports whether a file of the given size holds exactly
// count records.
func ValidBinarySize(size int64, count uint32) bool {
	return size == DataOffset+int64(count)*RecordSize
}

func putVec3(buf []byte, v math.Vec3) {
	binary.LittleEndian.PutUint32(buf[0:], gomath.Float32bits(v.X))
	binary.LittleEndian.PutUint32(buf[4:], gomath.Float32bits(v.Y))
	binary.LittleEndian.PutUint32(buf[8:], gomath.Float32bits(v.Z))
}

func getVec3(buf []byte) math.Vec3 {
	return math.Vec3{
		X: gomath.Float32frombits(binary.LittleEndian.Uint32(buf[0:])),
		Y: gomath.Float32frombits(binary.LittleEndian.Uint32(buf[4:])),
		Z: gomath.Float32frombits(binary.LittleEndian.Uint32(buf[8:])),
	}
}

// Encode serializes the triangle into a 50-byte record. buf must hold at
// least RecordSize bytes; the attribute bytes are zeroed.
func (t Triangle) Encode(buf []byte) {
	putVec3(buf[0:], t.Normal)
	putVec3(buf[12:], t.Vertices[0])
	putVec3(buf[24:], t.Vertices[1])
	putVec3(buf[36:], t.Vertices[2])
	buf[48] = 0
	buf[49] = 0
}

// DecodeTriangle reads a 50-byte record back into a triangle.
func DecodeTriangle(buf []byte) Triangle {
	return Triangle{
		Normal: getVec3(buf[0:]),
		Vertices: [3]math.Vec3{
			getVec3(buf[12:]),
			getVec3(buf[24:]),
			getVec3(buf[36:]),
		},
	}
}

// Reader streams triangles out of a binary mesh without holding more than
// one record in memory.
type Reader struct {
	f     storage.File
	count uint32
	index uint32
	buf   [RecordSize]byte
}

// OpenReader opens a mesh already in binary layout and positions the stream
// at the first record. The size invariant is re-checked here so truncated or
// stale files fail before any geometry is read.
func OpenReader(vol storage.Volume, path string) (*Reader, error) {
	size, err := vol.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	f, err := vol.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	var header [DataOffset]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("read header of %s: %w", path, core.ErrTruncatedRead)
	}
	count := binary.LittleEndian.Uint32(header[HeaderSize:])
	if !ValidBinarySize(size, count) {
		f.Close()
		return nil, fmt.Errorf("mesh %s: size %d does not match %d records: %w",
			path, size, count, core.ErrTruncatedRead)
	}

	return &Reader{f: f, count: count}, nil
}

// Count returns the number of records in the file.
func (r *Reader) Count() uint32 {
	return r.count
}

// Next returns the next triangle, or io.EOF after the last one.
func (r *Reader) Next() (Triangle, error) {
	if r.index >= r.count {
		return Triangle{}, io.EOF
	}
	if _, err := io.ReadFull(r.f, r.buf[:]); err != nil {
		return Triangle{}, fmt.Errorf("record %d: %w", r.index, core.ErrTruncatedRead)
	}
	r.index++
	return DecodeTriangle(r.buf[:]), nil
}

func (r *Reader) Close() error {
	return r.f.Close()
}
