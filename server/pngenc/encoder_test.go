package pngenc

import (
	"bytes"
	"encoding/binary"
	"image/color"
	"image/png"
	"testing"

	"github.com/printbed/vitrine/server/raster"
	"github.com/printbed/vitrine/server/storage"
)

func testFrame() *raster.FrameBuffer {
	fb := raster.NewFrameBuffer()
	fb.Clear(10, 20, 30, 255)
	// Poke a few recognizable pixels.
	row := fb.Row(5)
	row[7*4+0], row[7*4+1], row[7*4+2], row[7*4+3] = 200, 100, 50, 255
	last := fb.Row(raster.Height - 1)
	last[(raster.Width-1)*4+0] = 255
	return fb
}

func TestEncodeDecodes(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, testFrame()); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// png.Decode verifies chunk CRCs and the zlib Adler-32 trailer.
	img, err := png.Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != raster.Width || b.Dy() != raster.Height {
		t.Fatalf("decoded size = %dx%d; want %dx%d", b.Dx(), b.Dy(), raster.Width, raster.Height)
	}

	at := func(x, y int) color.NRGBA {
		return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	}
	if got := at(0, 0); got != (color.NRGBA{10, 20, 30, 255}) {
		t.Errorf("pixel (0,0) = %+v", got)
	}
	if got := at(7, 5); got != (color.NRGBA{200, 100, 50, 255}) {
		t.Errorf("pixel (7,5) = %+v", got)
	}
	if got := at(raster.Width-1, raster.Height-1); got != (color.NRGBA{255, 20, 30, 255}) {
		t.Errorf("bottom-right pixel = %+v", got)
	}
}

// TestEncodeStructure walks the chunk layout directly: IHDR with the right
// fields, exactly one IDAT carrying stored blocks, then IEND.
func TestEncodeStructure(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, testFrame()); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	data := buf.Bytes()

	if !bytes.HasPrefix(data, pngSignature[:]) {
		t.Fatal("missing PNG signature")
	}

	var types []string
	off := len(pngSignature)
	for off < len(data) {
		if off+8 > len(data) {
			t.Fatalf("truncated chunk header at %d", off)
		}
		length := int(binary.BigEndian.Uint32(data[off:]))
		typ := string(data[off+4 : off+8])
		types = append(types, typ)

		if typ == "IHDR" {
			ihdr := data[off+8 : off+8+length]
			if w := binary.BigEndian.Uint32(ihdr[0:]); w != raster.Width {
				t.Errorf("IHDR width = %d", w)
			}
			if h := binary.BigEndian.Uint32(ihdr[4:]); h != raster.Height {
				t.Errorf("IHDR height = %d", h)
			}
			if ihdr[8] != 8 || ihdr[9] != 6 || ihdr[12] != 0 {
				t.Errorf("IHDR depth/color/interlace = %d/%d/%d; want 8/6/0", ihdr[8], ihdr[9], ihdr[12])
			}
		}
		if typ == "IDAT" {
			idat := data[off+8 : off+8+length]
			if idat[0] != 0x78 || idat[1] != 0x01 {
				t.Errorf("zlib header = %02x %02x; want 78 01", idat[0], idat[1])
			}
			// First stored block: not final, length complement intact.
			if idat[2]&0x06 != 0 {
				t.Errorf("first block is not stored type: %02x", idat[2])
			}
			blockLen := binary.LittleEndian.Uint16(idat[3:])
			nlen := binary.LittleEndian.Uint16(idat[5:])
			if nlen != ^blockLen {
				t.Errorf("stored length complement mismatch: %04x vs %04x", blockLen, nlen)
			}
			if blockLen%rawScanlineSize != 0 {
				t.Errorf("block length %d not a whole number of scanlines", blockLen)
			}
		}

		off += 8 + length + 4
	}
	if off != len(data) {
		t.Fatalf("trailing bytes after IEND: %d", len(data)-off)
	}

	want := []string{"IHDR", "IDAT", "IEND"}
	if len(types) != len(want) {
		t.Fatalf("chunks = %v; want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("chunks = %v; want %v", types, want)
		}
	}
}

func TestEncodeFileAtomic(t *testing.T) {
	vol, err := storage.NewDiskVolume(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	const path = "/thumbs/out.png"
	if err := EncodeFile(vol, path, testFrame()); err != nil {
		t.Fatalf("EncodeFile: %v", err)
	}
	if !vol.Exists(path) {
		t.Fatal("output missing")
	}
	if vol.Exists(path + ".tmp") {
		t.Fatal("temporary file left behind")
	}

	f, err := vol.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := png.Decode(f); err != nil {
		t.Fatalf("stored image does not decode: %v", err)
	}
}
