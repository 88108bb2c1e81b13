package vision

import (
	"image"

	"poolmind/internal/geom"
)

// ColorPatchFinder is the built-in FiducialFinder. Each marker is a solid
// patch of a distinctive reference color; the finder reports the centroid
// of the matching pixels for every marker whose patch covers at least
// MinArea pixels. Patches that are occluded or out of frame are simply
// absent from the result.
type ColorPatchFinder struct {
	Patches map[int]HSVRange
	MinArea int
}

// NewColorPatchFinder builds a finder for the given marker color ranges.
func NewColorPatchFinder(patches map[int]HSVRange, minArea int) *ColorPatchFinder {
	if minArea <= 0 {
		minArea = 16
	}
	return &ColorPatchFinder{Patches: patches, MinArea: minArea}
}

type patchAccum struct {
	sumX, sumY float64
	count      int
}

// FindFiducials scans the frame once and accumulates a centroid per marker
// color.
func (f *ColorPatchFinder) FindFiducials(img *image.RGBA) map[int]geom.Point {
	acc := make(map[int]*patchAccum, len(f.Patches))
	for id := range f.Patches {
		acc[id] = &patchAccum{}
	}

	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			c := RGBToHSV(img.Pix[row], img.Pix[row+1], img.Pix[row+2])
			for id, rng := range f.Patches {
				if rng.Contains(c) {
					a := acc[id]
					a.sumX += float64(x)
					a.sumY += float64(y)
					a.count++
				}
			}
			row += 4
		}
	}

	found := make(map[int]geom.Point)
	for id, a := range acc {
		if a.count >= f.MinArea {
			found[id] = geom.Point{X: a.sumX / float64(a.count), Y: a.sumY / float64(a.count)}
		}
	}
	return found
}
