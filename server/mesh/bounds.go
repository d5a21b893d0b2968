package mesh

import (
	"io"

	"github.com/printbed/vitrine/server/core"
	"github.com/printbed/vitrine/server/math"
	"github.com/printbed/vitrine/server/storage"
)

// Records scanned between cooperative yields.
const boundsYieldRecords = 512

// Bounds is the axis-aligned summary the rasterizer frames a mesh with.
type Bounds struct {
	// Center of the bounding box.
	Center math.Vec3
	// Scale is the largest per-axis extent, floored at 1.0 so degenerate
	// meshes still project to a finite view.
	Scale float32
}

// ScanBounds streams a binary mesh and folds every vertex into a running
// min/max. Nothing beyond the current record is retained.
func ScanBounds(vol storage.Volume, path string, yield core.YieldFunc) (Bounds, error) {
	r, err := OpenReader(vol, path)
	if err != nil {
		return Bounds{}, err
	}
	defer r.Close()

	var (
		ext    math.Extents3D
		seeded bool
	)
	for i := 0; ; i++ {
		tri, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Bounds{}, err
		}
		for _, v := range tri.Vertices {
			if !seeded {
				ext.Min, ext.Max = v, v
				seeded = true
				continue
			}
			ext.Min = math.Min(ext.Min, v)
			ext.Max = math.Max(ext.Max, v)
		}
		if (i+1)%boundsYieldRecords == 0 {
			yield()
		}
	}

	b := Bounds{Center: ext.Center(), Scale: 1.0}
	size := ext.Size()
	for _, s := range [3]float32{size.X, size.Y, size.Z} {
		if s > b.Scale {
			b.Scale = s
		}
	}
	return b, nil
}
