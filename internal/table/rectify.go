package table

import (
	"image"

	"poolmind/internal/geom"
)

// Rectify produces the canonical top-down view of a raw frame by inverse
// mapping: each canonical pixel samples the raw frame at the point the
// inverse transform names. Pixels that map outside the raw frame stay
// black. inv must be the inverse of the camera-to-canonical transform.
func (t *Table) Rectify(src *image.RGBA, inv geom.Homography) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, t.cfg.Width, t.cfg.Height))
	b := src.Bounds()

	for y := 0; y < t.cfg.Height; y++ {
		row := dst.PixOffset(0, y)
		for x := 0; x < t.cfg.Width; x++ {
			p := inv.Apply(geom.Point{X: float64(x), Y: float64(y)})
			sx := int(p.X + 0.5)
			sy := int(p.Y + 0.5)
			if sx >= b.Min.X && sx < b.Max.X && sy >= b.Min.Y && sy < b.Max.Y {
				so := src.PixOffset(sx, sy)
				dst.Pix[row] = src.Pix[so]
				dst.Pix[row+1] = src.Pix[so+1]
				dst.Pix[row+2] = src.Pix[so+2]
				dst.Pix[row+3] = 0xFF
			} else {
				dst.Pix[row+3] = 0xFF
			}
			row += 4
		}
	}
	return dst
}
