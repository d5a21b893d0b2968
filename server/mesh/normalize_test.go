package mesh

import (
	"encoding/binary"
	"errors"
	"io"
	"strconv"
	"testing"

	"github.com/printbed/vitrine/server/core"
	"github.com/printbed/vitrine/server/math"
	"github.com/printbed/vitrine/server/storage"
)

func newTestVolume(t *testing.T) *storage.DiskVolume {
	t.Helper()
	vol, err := storage.NewDiskVolume(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return vol
}

func writeFile(t *testing.T, vol storage.Volume, path string, data []byte) {
	t.Helper()
	f, err := vol.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, vol storage.Volume, path string) []byte {
	t.Helper()
	f, err := vol.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func noYield() {}

func binaryMesh(tris []Triangle) []byte {
	data := make([]byte, DataOffset+len(tris)*RecordSize)
	binary.LittleEndian.PutUint32(data[HeaderSize:], uint32(len(tris)))
	for i, tri := range tris {
		tri.Encode(data[DataOffset+i*RecordSize:])
	}
	return data
}

const singleTriangleASCII = `solid tri
  facet normal 0.0 0.0 1.0
    outer loop
      vertex 0.1 0.2 0.3
      vertex 1.5 -2.25 0.0
      vertex -0.375 4.0 1e-3
    endloop
  endfacet
endsolid tri
`

func TestNormalizeASCIIRoundTrip(t *testing.T) {
	vol := newTestVolume(t)
	const path = "/meshes/tri.stl"
	writeFile(t, vol, path, []byte(singleTriangleASCII))

	if err := Normalize(vol, path, noYield); err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	data := readFile(t, vol, path)
	if len(data) != DataOffset+RecordSize {
		t.Fatalf("normalized size = %d; want %d", len(data), DataOffset+RecordSize)
	}
	count := binary.LittleEndian.Uint32(data[HeaderSize:])
	if count != 1 {
		t.Fatalf("count = %d; want 1", count)
	}

	tri := DecodeTriangle(data[DataOffset:])

	// Values must pass through the parser bit-exact.
	parse := func(s string) float32 {
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			t.Fatal(err)
		}
		return float32(f)
	}
	wantNormal := math.Vec3{X: parse("0.0"), Y: parse("0.0"), Z: parse("1.0")}
	wantVerts := [3]math.Vec3{
		{X: parse("0.1"), Y: parse("0.2"), Z: parse("0.3")},
		{X: parse("1.5"), Y: parse("-2.25"), Z: parse("0.0")},
		{X: parse("-0.375"), Y: parse("4.0"), Z: parse("1e-3")},
	}
	if tri.Normal != wantNormal {
		t.Errorf("normal = %+v; want %+v", tri.Normal, wantNormal)
	}
	for i := range wantVerts {
		if tri.Vertices[i] != wantVerts[i] {
			t.Errorf("vertex %d = %+v; want %+v", i, tri.Vertices[i], wantVerts[i])
		}
	}

	// Running it again must be a no-op.
	if err := Normalize(vol, path, noYield); err != nil {
		t.Fatalf("second Normalize: %v", err)
	}
	if again := readFile(t, vol, path); len(again) != len(data) {
		t.Fatalf("second Normalize changed the file: %d -> %d bytes", len(data), len(again))
	}
}

func TestNormalizeBinaryUntouched(t *testing.T) {
	vol := newTestVolume(t)
	const path = "/meshes/bin.stl"
	orig := binaryMesh([]Triangle{{
		Normal:   math.Vec3{Z: 1},
		Vertices: [3]math.Vec3{{X: 1}, {Y: 1}, {Z: 1}},
	}})
	writeFile(t, vol, path, orig)

	if err := Normalize(vol, path, noYield); err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	after := readFile(t, vol, path)
	if string(after) != string(orig) {
		t.Fatal("binary mesh was rewritten")
	}
}

func TestNormalizeUnrecognized(t *testing.T) {
	vol := newTestVolume(t)
	const path = "/meshes/junk.stl"
	junk := make([]byte, 200)
	for i := range junk {
		junk[i] = byte(i)
	}
	writeFile(t, vol, path, junk)

	err := Normalize(vol, path, noYield)
	if !errors.Is(err, core.ErrUnrecognizedFormat) {
		t.Fatalf("err = %v; want ErrUnrecognizedFormat", err)
	}
	if string(readFile(t, vol, path)) != string(junk) {
		t.Fatal("unrecognized file was modified")
	}
	if vol.Exists(path + ".tmp") {
		t.Fatal("temporary output left behind")
	}
}

func TestNormalizeEmptyMesh(t *testing.T) {
	vol := newTestVolume(t)
	const path = "/meshes/empty.stl"
	writeFile(t, vol, path, []byte("solid nothing\nendsolid nothing\n"))

	err := Normalize(vol, path, noYield)
	if !errors.Is(err, core.ErrEmptyMesh) {
		t.Fatalf("err = %v; want ErrEmptyMesh", err)
	}
	if vol.Exists(path + ".tmp") {
		t.Fatal("temporary output left behind")
	}
	if !vol.Exists(path) {
		t.Fatal("original file removed on failure")
	}
}

func TestNormalizeSizeInvariant(t *testing.T) {
	vol := newTestVolume(t)
	const path = "/meshes/many.stl"
	tris := make([]Triangle, 7)
	for i := range tris {
		tris[i].Vertices[0].X = float32(i)
	}
	ascii := "solid many\n"
	for _, tri := range tris {
		ascii += "facet normal 0 0 1\nouter loop\n"
		ascii += "vertex " + strconv.Itoa(int(tri.Vertices[0].X)) + " 0 0\n"
		ascii += "vertex 1 1 0\nvertex 0 1 1\nendloop\nendfacet\n"
	}
	ascii += "endsolid many\n"
	writeFile(t, vol, path, []byte(ascii))

	if err := Normalize(vol, path, noYield); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	size, err := vol.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	data := readFile(t, vol, path)
	count := binary.LittleEndian.Uint32(data[HeaderSize:])
	if count != 7 {
		t.Fatalf("count = %d; want 7", count)
	}
	if !ValidBinarySize(size, count) {
		t.Fatalf("size %d violates invariant for %d records", size, count)
	}
}
