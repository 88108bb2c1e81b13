package geom

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrDegenerate is returned when the point correspondences are too
	// close to collinear to support a stable projective solve.
	ErrDegenerate = errors.New("degenerate point configuration")
	// ErrSingular is returned when a homography cannot be inverted.
	ErrSingular = errors.New("singular homography")
)

// minTriangleArea2 is the minimum twice-area any triple of source points
// must span. Below this the solve is rejected rather than blended into the
// smoothed estimate.
const minTriangleArea2 = 1e-3

// Homography is a 3x3 projective transform in row-major order mapping
// camera coordinates to canonical table coordinates.
type Homography [9]float64

// Identity returns the identity transform.
func Identity() Homography {
	return Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Apply maps a point through the transform.
func (h Homography) Apply(p Point) Point {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if math.Abs(w) < 1e-12 {
		w = 1e-12
	}
	return Point{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}
}

// Inverse returns the inverse transform.
func (h Homography) Inverse() (Homography, error) {
	var inv mat.Dense
	if err := inv.Inverse(mat.NewDense(3, 3, h[:])); err != nil {
		return Homography{}, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	var out Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = inv.At(r, c)
		}
	}
	return out.Normalized(), nil
}

// Normalized scales the matrix so the bottom-right coefficient is 1.
// Smoothing blends matrices elementwise and is only meaningful between
// matrices in this normal form.
func (h Homography) Normalized() Homography {
	s := h[8]
	if math.Abs(s) < 1e-12 {
		return h
	}
	var out Homography
	for i := range h {
		out[i] = h[i] / s
	}
	return out
}

// Blend returns the exponential moving average of the previous smoothed
// transform and a new raw estimate: alpha*raw + (1-alpha)*prev, applied
// elementwise after normalization.
func (h Homography) Blend(raw Homography, alpha float64) Homography {
	p := h.Normalized()
	n := raw.Normalized()
	var out Homography
	for i := range out {
		out[i] = (1-alpha)*p[i] + alpha*n[i]
	}
	return out
}

// Solve computes the homography mapping src[i] to dst[i] from at least four
// correspondences using a direct linear transform with the bottom-right
// coefficient fixed at 1. More than four pairs are solved in the least
// squares sense.
func Solve(src, dst []Point) (Homography, error) {
	if len(src) != len(dst) {
		return Homography{}, fmt.Errorf("point count mismatch: %d vs %d", len(src), len(dst))
	}
	if len(src) < 4 {
		return Homography{}, fmt.Errorf("need at least 4 correspondences, got %d", len(src))
	}
	if err := checkSpread(src); err != nil {
		return Homography{}, err
	}

	rows := 2 * len(src)
	a := mat.NewDense(rows, 8, nil)
	b := mat.NewVecDense(rows, nil)
	for i, s := range src {
		d := dst[i]
		a.SetRow(2*i, []float64{s.X, s.Y, 1, 0, 0, 0, -s.X * d.X, -s.Y * d.X})
		a.SetRow(2*i+1, []float64{0, 0, 0, s.X, s.Y, 1, -s.X * d.Y, -s.Y * d.Y})
		b.SetVec(2*i, d.X)
		b.SetVec(2*i+1, d.Y)
	}

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return Homography{}, fmt.Errorf("%w: %v", ErrDegenerate, err)
	}

	var h Homography
	for i := 0; i < 8; i++ {
		h[i] = x.AtVec(i)
	}
	h[8] = 1
	return h, nil
}

// checkSpread rejects source configurations where any three points are
// nearly collinear. A homography solved from such a set is ill-conditioned
// and would poison the smoothed estimate.
func checkSpread(pts []Point) error {
	n := len(pts)
	for i := 0; i < n-2; i++ {
		for j := i + 1; j < n-1; j++ {
			for k := j + 1; k < n; k++ {
				if math.Abs(triangleArea2(pts[i], pts[j], pts[k])) < minTriangleArea2 {
					return ErrDegenerate
				}
			}
		}
	}
	return nil
}
