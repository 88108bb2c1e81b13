// Package overlay draws the tracker's view of the table onto rectified
// frames: ball circles with identity labels, pocket zones and a status
// line with the game phase.
package overlay

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"poolmind/internal/detect"
	"poolmind/internal/game"
	"poolmind/internal/geom"
	"poolmind/internal/table"
	"poolmind/internal/track"
)

var classColors = map[detect.BallClass]color.RGBA{
	detect.ClassCue:     {255, 255, 255, 255},
	detect.ClassSolid:   {255, 200, 0, 255},
	detect.ClassStripe:  {0, 160, 255, 255},
	detect.ClassEight:   {200, 60, 200, 255},
	detect.ClassUnknown: {128, 128, 128, 255},
}

var pocketColor = color.RGBA{60, 60, 60, 255}

// Renderer annotates rectified frames in place.
type Renderer struct {
	tbl *table.Table
}

// NewRenderer builds a renderer for the given table geometry.
func NewRenderer(tbl *table.Table) *Renderer {
	return &Renderer{tbl: tbl}
}

// Render draws pockets, tracks and the HUD onto img.
func (r *Renderer) Render(img *image.RGBA, tracks []track.Track, agg game.Aggregate, fps float64) {
	for _, z := range r.tbl.Pockets() {
		drawCircle(img, int(z.Center.X), int(z.Center.Y), int(z.Radius), pocketColor, 1)
	}

	for _, tr := range tracks {
		c, ok := classColors[tr.Class]
		if !ok {
			c = classColors[detect.ClassUnknown]
		}
		x, y := int(tr.LastPosition.X), int(tr.LastPosition.Y)
		radius := int(tr.Radius)
		if radius < 3 {
			radius = 3
		}
		drawCircle(img, x, y, radius, c, 2)
		drawTrail(img, tr.History, c)
		drawLabel(img, x+radius+2, y-radius, fmt.Sprintf("#%d %s", tr.ID, tr.Class), c)
	}

	status := fmt.Sprintf("phase=%s player=%d potted=%d fps=%.1f", agg.Phase, agg.Player, agg.TotalPotted, fps)
	if agg.Winner != 0 {
		status = fmt.Sprintf("phase=%s winner=player %d", agg.Phase, agg.Winner)
	}
	drawLabel(img, 4, 4, status, color.RGBA{255, 255, 255, 255})
}

// drawCircle draws a circle outline by scanning the bounding square.
func drawCircle(img *image.RGBA, cx, cy, radius int, c color.RGBA, thickness int) {
	if radius <= 0 {
		return
	}
	bounds := img.Bounds()
	r2out := (radius + thickness) * (radius + thickness)
	r2in := radius * radius
	for y := cy - radius - thickness; y <= cy+radius+thickness; y++ {
		if y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}
		for x := cx - radius - thickness; x <= cx+radius+thickness; x++ {
			if x < bounds.Min.X || x >= bounds.Max.X {
				continue
			}
			d2 := (x-cx)*(x-cx) + (y-cy)*(y-cy)
			if d2 >= r2in && d2 <= r2out {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

// drawTrail plots the recent path as single pixels.
func drawTrail(img *image.RGBA, history []geom.Point, c color.RGBA) {
	bounds := img.Bounds()
	for _, p := range history {
		x, y := int(p.X), int(p.Y)
		if x >= bounds.Min.X && x < bounds.Max.X && y >= bounds.Min.Y && y < bounds.Max.Y {
			img.SetRGBA(x, y, c)
		}
	}
}

// drawLabel draws text with a dark backing box so it stays readable on
// the cloth.
func drawLabel(img *image.RGBA, x, y int, label string, c color.RGBA) {
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}

	bg := color.RGBA{0, 0, 0, 180}
	textWidth := len(label) * 7
	bounds := img.Bounds()
	for dy := -2; dy < 12; dy++ {
		for dx := -2; dx < textWidth+2; dx++ {
			px, py := x+dx, y+dy
			if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
				img.Set(px, py, bg)
			}
		}
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y + 10)},
	}
	d.DrawString(label)
}
