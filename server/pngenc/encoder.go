// Package pngenc serializes the framebuffer as a structurally valid PNG in
// one pass: a single IDAT whose zlib stream holds only stored (uncompressed)
// deflate blocks, so nothing larger than one scanline is ever buffered.
package pngenc

import (
	"encoding/binary"
	"fmt"
	"hash/adler32"
	"hash/crc32"
	"io"

	"github.com/printbed/vitrine/server/raster"
	"github.com/printbed/vitrine/server/storage"
)

var pngSignature = [8]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

const (
	// Whole scanlines per stored block; 64 * (1 + 160*4) stays well under
	// the 65535-byte stored-block limit.
	scanlinesPerBlock = 64
	// One filter byte plus RGBA for each pixel.
	rawScanlineSize = 1 + raster.Width*4
)

// Encode streams the framebuffer to w as an 8-bit RGBA PNG.
func Encode(w io.Writer, fb *raster.FrameBuffer) error {
	if _, err := w.Write(pngSignature[:]); err != nil {
		return err
	}

	var ihdr [13]byte
	binary.BigEndian.PutUint32(ihdr[0:], raster.Width)
	binary.BigEndian.PutUint32(ihdr[4:], raster.Height)
	ihdr[8] = 8  // bit depth
	ihdr[9] = 6  // color type: RGBA
	ihdr[10] = 0 // compression
	ihdr[11] = 0 // filter
	ihdr[12] = 0 // interlace
	if err := writeChunk(w, "IHDR", ihdr[:]); err != nil {
		return err
	}

	if err := writeImageData(w, fb); err != nil {
		return err
	}

	return writeChunk(w, "IEND", nil)
}

// writeImageData emits the single IDAT chunk. Its length is computable up
// front, so the chunk streams block by block while the CRC and Adler sums
// accumulate on the fly.
func writeImageData(w io.Writer, fb *raster.FrameBuffer) error {
	totalRaw := raster.Height * rawScanlineSize
	blocks := (raster.Height + scanlinesPerBlock - 1) / scanlinesPerBlock
	idatLen := 2 + blocks*5 + totalRaw + 4

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(idatLen))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}

	crc := crc32.NewIEEE()
	crc.Write([]byte("IDAT"))
	if _, err := w.Write([]byte("IDAT")); err != nil {
		return err
	}
	body := io.MultiWriter(w, crc)

	// zlib header: deflate, 32K window, no preset dictionary.
	if _, err := body.Write([]byte{0x78, 0x01}); err != nil {
		return err
	}

	adler := adler32.New()
	row := make([]byte, rawScanlineSize)
	for y0 := 0; y0 < raster.Height; y0 += scanlinesPerBlock {
		lines := scanlinesPerBlock
		if y0+lines > raster.Height {
			lines = raster.Height - y0
		}
		if err := writeStoredHeader(body, lines*rawScanlineSize, y0+lines == raster.Height); err != nil {
			return err
		}
		for y := y0; y < y0+lines; y++ {
			row[0] = 0 // filter: none
			copy(row[1:], fb.Row(y))
			if _, err := body.Write(row); err != nil {
				return err
			}
			adler.Write(row)
		}
	}

	var sumBuf [4]byte
	binary.BigEndian.PutUint32(sumBuf[:], adler.Sum32())
	if _, err := body.Write(sumBuf[:]); err != nil {
		return err
	}

	binary.BigEndian.PutUint32(sumBuf[:], crc.Sum32())
	_, err := w.Write(sumBuf[:])
	return err
}

// writeStoredHeader emits one stored-block header: final flag, then the
// little-endian length and its complement.
func writeStoredHeader(w io.Writer, length int, final bool) error {
	if length > 0xFFFF {
		return fmt.Errorf("stored block of %d bytes exceeds limit", length)
	}
	var hdr [5]byte
	if final {
		hdr[0] = 1
	}
	binary.LittleEndian.PutUint16(hdr[1:], uint16(length))
	binary.LittleEndian.PutUint16(hdr[3:], ^uint16(length))
	_, err := w.Write(hdr[:])
	return err
}

func writeChunk(w io.Writer, typ string, data []byte) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(len(data)))
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	if _, err := io.WriteString(w, typ); err != nil {
		return err
	}
	if len(data) > 0 {
		crc.Write(data)
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	binary.BigEndian.PutUint32(buf[:], crc.Sum32())
	_, err := w.Write(buf[:])
	return err
}

// EncodeFile writes the framebuffer to the volume at path, going through a
// temporary file and an atomic rename so a failed encode never leaves a
// corrupt image where a valid one used to be.
func EncodeFile(vol storage.Volume, path string, fb *raster.FrameBuffer) error {
	tmpPath := path + ".tmp"
	f, err := vol.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmpPath, err)
	}
	if err := Encode(f, fb); err != nil {
		f.Close()
		vol.Remove(tmpPath)
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		vol.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := vol.Rename(tmpPath, path); err != nil {
		vol.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", tmpPath, err)
	}
	return nil
}
