package vision

import "image"

// Mask is a binary foreground bitmap. A non-zero byte marks a foreground
// pixel.
type Mask struct {
	W, H int
	Pix  []uint8
}

// NewMask returns an all-background mask of the given size.
func NewMask(w, h int) *Mask {
	return &Mask{W: w, H: h, Pix: make([]uint8, w*h)}
}

// Set marks the pixel at (x, y) as foreground.
func (m *Mask) Set(x, y int) {
	if x >= 0 && x < m.W && y >= 0 && y < m.H {
		m.Pix[y*m.W+x] = 1
	}
}

// At reports whether the pixel at (x, y) is foreground. Out-of-bounds
// coordinates are background.
func (m *Mask) At(x, y int) bool {
	if x < 0 || x >= m.W || y < 0 || y >= m.H {
		return false
	}
	return m.Pix[y*m.W+x] != 0
}

// MaskNotInRange builds a foreground mask of every pixel whose color falls
// outside the given range. Used to remove the playing-surface cloth so only
// objects on it remain.
func MaskNotInRange(img *image.RGBA, background HSVRange) *Mask {
	b := img.Bounds()
	m := NewMask(b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			c := RGBToHSV(img.Pix[row], img.Pix[row+1], img.Pix[row+2])
			if !background.Contains(c) {
				m.Pix[(y-b.Min.Y)*m.W+(x-b.Min.X)] = 1
			}
			row += 4
		}
	}
	return m
}
