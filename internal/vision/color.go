package vision

import (
	"image"
	"math"
)

// HSV is a color in hue-saturation-value space. Hue is in degrees [0,360),
// saturation and value in [0,1].
type HSV struct {
	H float64
	S float64
	V float64
}

// RGBToHSV converts 8-bit RGB channels to HSV.
func RGBToHSV(r, g, b uint8) HSV {
	rf := float64(r) / 255
	gf := float64(g) / 255
	bf := float64(b) / 255

	max := math.Max(rf, math.Max(gf, bf))
	min := math.Min(rf, math.Min(gf, bf))
	d := max - min

	var h float64
	switch {
	case d == 0:
		h = 0
	case max == rf:
		h = 60 * math.Mod((gf-bf)/d, 6)
	case max == gf:
		h = 60 * ((bf-rf)/d + 2)
	default:
		h = 60 * ((rf-gf)/d + 4)
	}
	if h < 0 {
		h += 360
	}

	var s float64
	if max > 0 {
		s = d / max
	}
	return HSV{H: h, S: s, V: max}
}

// HSVRange is an inclusive box in HSV space. A range with HMin > HMax wraps
// around the 0/360 hue seam (e.g. red: HMin=340, HMax=20).
type HSVRange struct {
	HMin float64 `json:"h_min"`
	HMax float64 `json:"h_max"`
	SMin float64 `json:"s_min"`
	SMax float64 `json:"s_max"`
	VMin float64 `json:"v_min"`
	VMax float64 `json:"v_max"`
}

// Contains reports whether c falls inside the range.
func (r HSVRange) Contains(c HSV) bool {
	if c.S < r.SMin || c.S > r.SMax || c.V < r.VMin || c.V > r.VMax {
		return false
	}
	if r.HMin <= r.HMax {
		return c.H >= r.HMin && c.H <= r.HMax
	}
	return c.H >= r.HMin || c.H <= r.HMax
}

// MeanHSV samples the mean color of a rectangular region, clamped to the
// image bounds. Returns the zero HSV when the region is empty.
func MeanHSV(img *image.RGBA, rect image.Rectangle) HSV {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return HSV{}
	}
	var sr, sg, sb uint64
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		row := img.PixOffset(rect.Min.X, y)
		for x := rect.Min.X; x < rect.Max.X; x++ {
			sr += uint64(img.Pix[row])
			sg += uint64(img.Pix[row+1])
			sb += uint64(img.Pix[row+2])
			row += 4
		}
	}
	n := uint64(rect.Dx() * rect.Dy())
	return RGBToHSV(uint8(sr/n), uint8(sg/n), uint8(sb/n))
}
