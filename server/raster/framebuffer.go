package raster

// Fixed preview resolution.
const (
	Width  = 160
	Height = 120
)

// FarDepth is the depth buffer clear value; any projected depth code
// compares strictly below it.
const FarDepth = 0xFFFF

// FrameBuffer is the single RGBA + depth target the rasterizer draws into.
// One instance is reused across jobs; the scheduler guarantees at most one
// job touches it at a time.
type FrameBuffer struct {
	color []byte
	depth []uint16
}

func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{
		color: make([]byte, Width*Height*4),
		depth: make([]uint16, Width*Height),
	}
}

// Clear fills the color planes and resets every depth to FarDepth.
func (fb *FrameBuffer) Clear(r, g, b, a byte) {
	for i := 0; i < len(fb.color); i += 4 {
		fb.color[i+0] = r
		fb.color[i+1] = g
		fb.color[i+2] = b
		fb.color[i+3] = a
	}
	for i := range fb.depth {
		fb.depth[i] = FarDepth
	}
}

// RGBA returns the color at (x, y).
func (fb *FrameBuffer) RGBA(x, y int) (r, g, b, a byte) {
	i := (y*Width + x) * 4
	return fb.color[i], fb.color[i+1], fb.color[i+2], fb.color[i+3]
}

// DepthAt returns the depth code at (x, y).
func (fb *FrameBuffer) DepthAt(x, y int) uint16 {
	return fb.depth[y*Width+x]
}

// Row returns the RGBA bytes of one scanline, for streaming encoders.
func (fb *FrameBuffer) Row(y int) []byte {
	return fb.color[y*Width*4 : (y+1)*Width*4]
}

// set writes color and depth at (x, y) without any test; callers decide
// visibility.
func (fb *FrameBuffer) set(x, y int, r, g, b byte, depth uint16) {
	i := y*Width + x
	fb.depth[i] = depth
	i *= 4
	fb.color[i+0] = r
	fb.color[i+1] = g
	fb.color[i+2] = b
	fb.color[i+3] = 0xFF
}
