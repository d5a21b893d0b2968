package raster

import (
	"io"

	gomath "math"

	"github.com/printbed/vitrine/server/core"
	"github.com/printbed/vitrine/server/mesh"
	"github.com/printbed/vitrine/server/math"
	"github.com/printbed/vitrine/server/storage"
)

// Isometric camera: 45° about the vertical axis, then the classic 35.264°
// tilt. The rotated z is the visibility depth; the camera looks down +Z.
const (
	yawAngle  = float32(45.0 * gomath.Pi / 180.0)
	tiltAngle = float32(35.264 * gomath.Pi / 180.0)
	fitFactor = 0.78

	specularExponent = 42
	triangleBatch    = 64
)

// Shading constants. One fixed light, headlight-style view vector.
var (
	lightDir = math.Vec3{X: 0.577, Y: 0.577, Z: 0.577}
	viewDir  = math.Vec3{X: 0, Y: 0, Z: 1}
)

// Base material tint, scaled by the shade term per channel.
var baseTint = [3]float32{0.80, 0.83, 0.90}

// Background fill.
const (
	backgroundR = 0xEB
	backgroundG = 0xEB
	backgroundB = 0xEE
)

// Shadow under the drawn geometry.
const (
	shadowAlpha   = 0.45
	shadowDropPx  = 4
	shadowAspect  = 0.30
	shadowSpread  = 1.15
	shadowMinRadi = 3.0
)

// ProgressFunc receives the rasterizer's own completion in percent (0-100);
// the job driver maps it into the overall scale.
type ProgressFunc func(percent int)

// Render streams the binary mesh at path into the framebuffer: isometric
// projection framed by the given bounds, per-triangle shading, back-face
// cull, barycentric fill behind a strictly-nearer depth test, and a soft
// drop shadow painted last.
func Render(vol storage.Volume, path string, b mesh.Bounds, fb *FrameBuffer, progress ProgressFunc, yield core.YieldFunc) error {
	fb.Clear(backgroundR, backgroundG, backgroundB, 0xFF)

	r, err := mesh.OpenReader(vol, path)
	if err != nil {
		return err
	}
	defer r.Close()

	total := int(r.Count())
	scale := float32(fitFactor) * float32(minInt(Width, Height))

	// Bounding box of everything actually written, for the shadow.
	drawnMinX, drawnMinY := Width, Height
	drawnMaxX, drawnMaxY := -1, -1

	for i := 0; ; i++ {
		tri, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		var pts [3]math.Vec2
		var depths [3]float32
		for j, v := range tri.Vertices {
			p := project(v, b)
			pts[j] = math.Vec2{
				X: float32(Width)/2 + p.X*scale,
				Y: float32(Height)/2 - p.Y*scale,
			}
			depths[j] = p.Z
		}

		// Back-face cull on the signed screen-space area (shoelace).
		area := pts[1].Sub(pts[0]).Cross(pts[2].Sub(pts[0]))
		if area <= 0 {
			continue
		}

		cr, cg, cb := shadeTriangle(tri.Normal)

		minX := math.Clamp(int(minF(pts[0].X, pts[1].X, pts[2].X)), 0, Width-1)
		maxX := math.Clamp(int(maxF(pts[0].X, pts[1].X, pts[2].X))+1, 0, Width-1)
		minY := math.Clamp(int(minF(pts[0].Y, pts[1].Y, pts[2].Y)), 0, Height-1)
		maxY := math.Clamp(int(maxF(pts[0].Y, pts[1].Y, pts[2].Y))+1, 0, Height-1)

		for y := minY; y <= maxY; y++ {
			for x := minX; x <= maxX; x++ {
				p := math.Vec2{X: float32(x) + 0.5, Y: float32(y) + 0.5}
				w0 := pts[2].Sub(pts[1]).Cross(p.Sub(pts[1]))
				w1 := pts[0].Sub(pts[2]).Cross(p.Sub(pts[2]))
				w2 := pts[1].Sub(pts[0]).Cross(p.Sub(pts[0]))
				if w0 < 0 || w1 < 0 || w2 < 0 {
					continue
				}
				z := (w0*depths[0] + w1*depths[1] + w2*depths[2]) / area
				code := depthCode(z)
				idx := y*Width + x
				if code < fb.depth[idx] {
					fb.set(x, y, cr, cg, cb, code)
					if x < drawnMinX {
						drawnMinX = x
					}
					if x > drawnMaxX {
						drawnMaxX = x
					}
					if y < drawnMinY {
						drawnMinY = y
					}
					if y > drawnMaxY {
						drawnMaxY = y
					}
				}
			}
		}

		if (i+1)%triangleBatch == 0 {
			if progress != nil && total > 0 {
				progress((i + 1) * 100 / total)
			}
			yield()
		}
	}

	if drawnMaxX >= drawnMinX {
		drawShadow(fb, drawnMinX, drawnMinY, drawnMaxX, drawnMaxY)
	}

	if progress != nil {
		progress(100)
	}
	return nil
}

// project normalizes a vertex by the mesh bounds and applies the fixed
// isometric rotation. X/Y are screen-plane coordinates before scaling; Z is
// the depth.
func project(v math.Vec3, b mesh.Bounds) math.Vec3 {
	p := v.Sub(b.Center).DivScalar(b.Scale)
	return p.RotateZ(yawAngle).RotateX(tiltAngle)
}

// depthCode maps a rotated z in [-2, +2] onto the 16-bit depth range.
func depthCode(z float32) uint16 {
	n := math.Clamp((z+2.0)/4.0, 0.0, 1.0)
	return uint16(n * 65535.0)
}

// shadeTriangle evaluates the fixed-light shading model for a face normal.
func shadeTriangle(normal math.Vec3) (r, g, b byte) {
	n := normal.RotateZ(yawAngle).RotateX(tiltAngle).Normalize()

	diffuse := n.Dot(lightDir)
	if diffuse < 0 {
		diffuse = 0
	}

	half := lightDir.Add(viewDir).Normalize()
	specular := n.Dot(half)
	if specular < 0 {
		specular = 0
	}
	specular = math.Pow(specular, specularExponent)

	rim := math.Pow(1.0-math.Abs(n.Z), 1.5)

	shade := math.Clamp(0.10+0.88*diffuse+0.70*specular+0.22*rim, 0.0, 1.0)

	return byte(baseTint[0] * 255.0 * shade),
		byte(baseTint[1] * 255.0 * shade),
		byte(baseTint[2] * 255.0 * shade)
}

// drawShadow paints a soft ellipse under the drawn bounding box with a
// quadratic alpha falloff. It runs after all geometry, so it skips the depth
// test entirely.
func drawShadow(fb *FrameBuffer, minX, minY, maxX, maxY int) {
	cx := float32(minX+maxX) / 2.0
	cy := float32(maxY + shadowDropPx)

	rx := float32(maxX-minX)/2.0*shadowSpread + shadowMinRadi
	ry := rx * shadowAspect

	y0 := math.Clamp(int(cy-ry), 0, Height-1)
	y1 := math.Clamp(int(cy+ry)+1, 0, Height-1)
	x0 := math.Clamp(int(cx-rx), 0, Width-1)
	x1 := math.Clamp(int(cx+rx)+1, 0, Width-1)

	for y := y0; y <= y1; y++ {
		dy := (float32(y) + 0.5 - cy) / ry
		for x := x0; x <= x1; x++ {
			dx := (float32(x) + 0.5 - cx) / rx
			d2 := dx*dx + dy*dy
			if d2 >= 1 {
				continue
			}
			a := shadowAlpha * (1 - d2)
			i := (y*Width + x) * 4
			fb.color[i+0] = byte(float32(fb.color[i+0]) * (1 - a))
			fb.color[i+1] = byte(float32(fb.color[i+1]) * (1 - a))
			fb.color[i+2] = byte(float32(fb.color[i+2]) * (1 - a))
		}
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func minF(a, b, c float32) float32 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func maxF(a, b, c float32) float32 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
