package geometry

import (
	"fmt"
	"math"
)

// MaxControlOffset caps the horizontal pull of connection control points.
const MaxControlOffset = 100.0

// Bezier is a cubic curve from P0 to P3 with control points C1 and C2.
type Bezier struct {
	P0 Point `json:"p0"`
	C1 Point `json:"c1"`
	C2 Point `json:"c2"`
	P3 Point `json:"p3"`
}

// ConnectionPath builds the S-curve between two entity rectangles, leaving the
// right edge of from and entering the left edge of to.
func ConnectionPath(from, to Rect) Bezier {
	start := Point{X: from.X + from.Width, Y: from.Y + from.Height/2}
	end := Point{X: to.X, Y: to.Y + to.Height/2}

	offset := math.Min(math.Abs(end.X-start.X)/2, MaxControlOffset)
	return Bezier{
		P0: start,
		C1: Point{X: start.X + offset, Y: start.Y},
		C2: Point{X: end.X - offset, Y: end.Y},
		P3: end,
	}
}

// At evaluates the curve at t in [0,1].
func (b Bezier) At(t float64) Point {
	t = math.Max(0, math.Min(1, t))
	u := 1 - t
	w0 := u * u * u
	w1 := 3 * u * u * t
	w2 := 3 * u * t * t
	w3 := t * t * t
	return Point{
		X: w0*b.P0.X + w1*b.C1.X + w2*b.C2.X + w3*b.P3.X,
		Y: w0*b.P0.Y + w1*b.C1.Y + w2*b.C2.Y + w3*b.P3.Y,
	}
}

// Midpoint is where connection labels are anchored.
func (b Bezier) Midpoint() Point { return b.At(0.5) }

// Map applies fn to every point of the curve. Affine maps such as
// WorldToScreen preserve the curve shape.
func (b Bezier) Map(fn func(Point) Point) Bezier {
	return Bezier{P0: fn(b.P0), C1: fn(b.C1), C2: fn(b.C2), P3: fn(b.P3)}
}

// Sample returns n+1 evenly spaced points along the curve.
func (b Bezier) Sample(n int) []Point {
	if n < 1 {
		n = 1
	}
	pts := make([]Point, 0, n+1)
	for i := 0; i <= n; i++ {
		pts = append(pts, b.At(float64(i)/float64(n)))
	}
	return pts
}

// SVG returns the curve as SVG path data.
func (b Bezier) SVG() string {
	return fmt.Sprintf("M %.2f %.2f C %.2f %.2f, %.2f %.2f, %.2f %.2f",
		b.P0.X, b.P0.Y, b.C1.X, b.C1.Y, b.C2.X, b.C2.Y, b.P3.X, b.P3.Y)
}
