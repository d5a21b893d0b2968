package mesh

import (
	"fmt"
	"hash/crc32"
	"path"
	"strings"
)

// CanonicalPath normalizes a user-decorated mesh path into the one form the
// rest of the server keys on: a single leading separator, no repeated
// separators, and mesh files always rooted under MeshDir. Pure and
// idempotent.
func CanonicalPath(p string) string {
	var b strings.Builder
	b.Grow(len(p) + 1)
	b.WriteByte('/')
	prevSlash := true
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	out := b.String()
	if len(out) > 1 && strings.HasSuffix(out, "/") {
		out = out[:len(out)-1]
	}

	if strings.EqualFold(path.Ext(out), Extension) && !strings.HasPrefix(out, MeshDir+"/") {
		out = MeshDir + out
	}
	return out
}

// ThumbnailPath derives the deterministic preview filename for a mesh path:
// the sanitized base name plus the CRC-32 of the canonical path, so two
// differently decorated references to the same mesh always land on the same
// cached file.
func ThumbnailPath(p string) string {
	canon := CanonicalPath(p)
	base := path.Base(canon)
	base = strings.TrimSuffix(base, path.Ext(base))

	sanitized := []byte(base)
	for i, c := range sanitized {
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '-':
		default:
			sanitized[i] = '_'
		}
	}

	sum := crc32.ChecksumIEEE([]byte(canon))
	return fmt.Sprintf("%s/%s_%08X.png", ThumbDir, sanitized, sum)
}
