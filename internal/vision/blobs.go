package vision

import (
	"math"
	"sort"

	"poolmind/internal/geom"
)

// BlobCircleFinder is the built-in CircleFinder. It extracts 4-connected
// foreground components, estimates an equivalent circle for each (centroid
// plus radius from the component area), keeps those inside the configured
// radius band, and suppresses candidates closer than MinSeparation to a
// higher-scoring one.
type BlobCircleFinder struct {
	MinRadius     float64
	MaxRadius     float64
	MinSeparation float64
}

type blob struct {
	sumX, sumY             float64
	area                   int
	minX, minY, maxX, maxY int
}

// FindCircles labels the mask's connected components and converts them to
// circle candidates.
func (f *BlobCircleFinder) FindCircles(mask *Mask) []Circle {
	visited := make([]bool, len(mask.Pix))
	var circles []Circle

	// Reused scratch stack for the component flood fill.
	stack := make([][2]int, 0, 256)

	for y := 0; y < mask.H; y++ {
		for x := 0; x < mask.W; x++ {
			idx := y*mask.W + x
			if visited[idx] || mask.Pix[idx] == 0 {
				continue
			}

			b := blob{minX: x, minY: y, maxX: x, maxY: y}
			stack = append(stack[:0], [2]int{x, y})
			visited[idx] = true
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				px, py := p[0], p[1]

				b.sumX += float64(px)
				b.sumY += float64(py)
				b.area++
				if px < b.minX {
					b.minX = px
				}
				if px > b.maxX {
					b.maxX = px
				}
				if py < b.minY {
					b.minY = py
				}
				if py > b.maxY {
					b.maxY = py
				}

				for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
					nx, ny := px+d[0], py+d[1]
					if nx < 0 || nx >= mask.W || ny < 0 || ny >= mask.H {
						continue
					}
					nidx := ny*mask.W + nx
					if !visited[nidx] && mask.Pix[nidx] != 0 {
						visited[nidx] = true
						stack = append(stack, [2]int{nx, ny})
					}
				}
			}

			if c, ok := f.toCircle(b); ok {
				circles = append(circles, c)
			}
		}
	}

	return f.suppress(circles)
}

// toCircle converts a component to an equivalent circle and applies the
// radius band filter.
func (f *BlobCircleFinder) toCircle(b blob) (Circle, bool) {
	r := math.Sqrt(float64(b.area) / math.Pi)
	if r < f.MinRadius || r > f.MaxRadius {
		return Circle{}, false
	}

	// Score by how well the component fills the circle circumscribing its
	// bounding box. A perfect disc scores near 1, elongated noise lower.
	halfDiag := math.Hypot(float64(b.maxX-b.minX+1), float64(b.maxY-b.minY+1)) / 2
	score := 1.0
	if halfDiag > 0 {
		score = float64(b.area) / (math.Pi * halfDiag * halfDiag)
		if score > 1 {
			score = 1
		}
	}

	return Circle{
		Center: geom.Point{X: b.sumX / float64(b.area), Y: b.sumY / float64(b.area)},
		Radius: r,
		Score:  score,
	}, true
}

// suppress drops candidates closer than MinSeparation to a better one,
// keeping the higher score. Ordering is stable for equal scores so results
// are reproducible.
func (f *BlobCircleFinder) suppress(circles []Circle) []Circle {
	if f.MinSeparation <= 0 || len(circles) < 2 {
		return circles
	}
	sort.SliceStable(circles, func(i, j int) bool {
		return circles[i].Score > circles[j].Score
	})

	kept := circles[:0]
	for _, c := range circles {
		ok := true
		for _, k := range kept {
			if geom.Dist(c.Center, k.Center) < f.MinSeparation {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, c)
		}
	}
	return kept
}
