package mesh

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/printbed/vitrine/server/core"
	"github.com/printbed/vitrine/server/math"
	"github.com/printbed/vitrine/server/storage"
)

const (
	// Sniff window for telling ASCII meshes from garbage.
	sniffWindow = 512
	// Maximum non-text bytes tolerated inside a "solid"-prefixed window.
	sniffBinaryBudget = 10
	// Lines processed between cooperative yields during conversion.
	normalizeYieldLines = 256
)

// headerTag fills the 80-byte header of converted files. Decoders ignore it.
const headerTag = "vitrine: converted from ascii"

// Normalize ensures the mesh at path is in binary layout, converting an
// ASCII mesh in place when needed. On success the file satisfies
// ValidBinarySize; on failure the file is left untouched and any temporary
// output is removed.
func Normalize(vol storage.Volume, path string, yield core.YieldFunc) error {
	size, err := vol.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	f, err := vol.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	window := make([]byte, sniffWindow)
	n, err := io.ReadFull(f, window)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		window = window[:n]
	} else if err != nil {
		f.Close()
		return fmt.Errorf("sniff %s: %w", path, err)
	}

	// Fast path: already valid binary.
	if size >= DataOffset {
		count := binary.LittleEndian.Uint32(window[HeaderSize:])
		if ValidBinarySize(size, count) {
			f.Close()
			return nil
		}
	}

	if !sniffASCII(window) {
		f.Close()
		return fmt.Errorf("mesh %s: %w", path, core.ErrUnrecognizedFormat)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return fmt.Errorf("rewind %s: %w", path, err)
	}
	count, convErr := convert(vol, f, path, yield)
	f.Close()
	if convErr != nil {
		return convErr
	}

	core.LogDebug("normalized %s: %d triangles", path, count)
	return nil
}

// sniffASCII applies the text-detection rule to the first bytes of a file:
// a case-sensitive "solid" prefix with fewer than sniffBinaryBudget bytes
// outside tab/CR/LF/printable ASCII, or a literal "facet" token anywhere in
// the window.
func sniffASCII(window []byte) bool {
	if strings.HasPrefix(string(window), "solid") {
		binaryBytes := 0
		for _, c := range window {
			if c == '\t' || c == '\r' || c == '\n' {
				continue
			}
			if c < 0x20 || c > 0x7E {
				binaryBytes++
			}
		}
		if binaryBytes < sniffBinaryBudget {
			return true
		}
	}
	return strings.Contains(string(window), "facet")
}

// convert streams the ASCII form into a fresh temporary binary file, then
// atomically replaces the original.
func convert(vol storage.Volume, in io.Reader, path string, yield core.YieldFunc) (uint32, error) {
	tmpPath := path + ".tmp"
	out, err := vol.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", tmpPath, err)
	}

	fail := func(e error) (uint32, error) {
		out.Close()
		vol.Remove(tmpPath)
		return 0, e
	}

	// Placeholder header; the count at offset 80 is patched afterwards.
	var header [DataOffset]byte
	copy(header[:], headerTag)
	if _, err := out.Write(header[:]); err != nil {
		return fail(fmt.Errorf("write header: %w", err))
	}

	var (
		tri    Triangle
		nverts int
		count  uint32
		lines  int
		record [RecordSize]byte
	)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lines++
		if lines%normalizeYieldLines == 0 {
			yield()
		}
		if line == "" {
			continue
		}

		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "facet normal"):
			v, err := parseVec3(line, 2)
			if err != nil {
				return fail(fmt.Errorf("mesh %s line %d: %s: %w", path, lines, err, core.ErrUnrecognizedFormat))
			}
			tri.Normal = v
			nverts = 0
		case strings.HasPrefix(lower, "vertex"):
			v, err := parseVec3(line, 1)
			if err != nil {
				return fail(fmt.Errorf("mesh %s line %d: %s: %w", path, lines, err, core.ErrUnrecognizedFormat))
			}
			if nverts < 3 {
				tri.Vertices[nverts] = v
			}
			nverts++
			if nverts == 3 {
				tri.Encode(record[:])
				if _, err := out.Write(record[:]); err != nil {
					return fail(fmt.Errorf("write record: %w", err))
				}
				count++
				nverts = 0
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fail(fmt.Errorf("read %s: %w", path, err))
	}

	if count == 0 {
		return fail(fmt.Errorf("mesh %s: %w", path, core.ErrEmptyMesh))
	}

	// Patch the record count at offset 80.
	if _, err := out.Seek(HeaderSize, io.SeekStart); err != nil {
		return fail(fmt.Errorf("seek count field: %w", err))
	}
	var countBuf [CountSize]byte
	binary.LittleEndian.PutUint32(countBuf[:], count)
	if _, err := out.Write(countBuf[:]); err != nil {
		return fail(fmt.Errorf("write count: %w", err))
	}
	if err := out.Close(); err != nil {
		vol.Remove(tmpPath)
		return 0, fmt.Errorf("close %s: %w", tmpPath, err)
	}

	if err := vol.Remove(path); err != nil {
		vol.Remove(tmpPath)
		return 0, fmt.Errorf("replace %s: %w", path, err)
	}
	if err := vol.Rename(tmpPath, path); err != nil {
		return 0, fmt.Errorf("rename %s: %w", tmpPath, err)
	}
	return count, nil
}

// parseVec3 extracts three floats from a whitespace-split statement,
// skipping the leading keyword fields.
func parseVec3(line string, skip int) (math.Vec3, error) {
	fields := strings.Fields(line)
	if len(fields) < skip+3 {
		return math.Vec3{}, fmt.Errorf("expected 3 coordinates in %q", line)
	}
	var out [3]float32
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(fields[skip+i], 32)
		if err != nil {
			return math.Vec3{}, fmt.Errorf("bad coordinate %q", fields[skip+i])
		}
		out[i] = float32(f)
	}
	return math.Vec3{X: out[0], Y: out[1], Z: out[2]}, nil
}
