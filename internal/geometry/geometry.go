package geometry

import "math"

// Default zoom limits for the canvas.
const (
	DefaultMinZoom = 0.1
	DefaultMaxZoom = 3.0
)

// Point is a 2D coordinate. Whether it is in world or screen space depends on
// where it came from.
type Point struct {
	X float64 `json:"x" yaml:"x" bson:"x"`
	Y float64 `json:"y" yaml:"y" bson:"y"`
}

// Add returns p+q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Scale returns p*k.
func (p Point) Scale(k float64) Point { return Point{X: p.X * k, Y: p.Y * k} }

// Size is a width/height pair.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is an axis-aligned rectangle anchored at its top-left corner.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Contains reports whether p lies inside r (edges inclusive).
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Center returns the midpoint of r.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Inset grows (negative d) or shrinks (positive d) r on every side.
func (r Rect) Inset(d float64) Rect {
	return Rect{X: r.X + d, Y: r.Y + d, Width: r.Width - 2*d, Height: r.Height - 2*d}
}

// Union returns the bounding box of all rects. Empty rects are ignored; the
// result is the zero Rect when nothing remains.
func Union(rects ...Rect) Rect {
	var (
		out   Rect
		found bool
	)
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, r := range rects {
		if r.Empty() {
			continue
		}
		found = true
		minX = math.Min(minX, r.X)
		minY = math.Min(minY, r.Y)
		maxX = math.Max(maxX, r.X+r.Width)
		maxY = math.Max(maxY, r.Y+r.Height)
	}
	if found {
		out = Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
	}
	return out
}

// Bounds limits the zoom scalar.
type Bounds struct {
	MinZoom float64 `json:"min_zoom"`
	MaxZoom float64 `json:"max_zoom"`
}

// DefaultBounds returns the [0.1, 3.0] zoom range.
func DefaultBounds() Bounds {
	return Bounds{MinZoom: DefaultMinZoom, MaxZoom: DefaultMaxZoom}
}

// Clamp restricts z to the bounds. Invalid bounds fall back to the defaults.
func (b Bounds) Clamp(z float64) float64 {
	if b.MinZoom <= 0 || b.MaxZoom < b.MinZoom {
		b = DefaultBounds()
	}
	return math.Max(b.MinZoom, math.Min(b.MaxZoom, z))
}

// Transform maps world space to screen space: screen = world*Zoom + Pan.
type Transform struct {
	Zoom float64 `json:"zoom"`
	Pan  Point   `json:"pan"`
}

// Identity is the unscaled, unpanned view.
func Identity() Transform {
	return Transform{Zoom: 1}
}

func (t Transform) zoom() float64 {
	if t.Zoom <= 0 || math.IsNaN(t.Zoom) {
		return 1
	}
	return t.Zoom
}

// ScreenToWorld converts a pointer position to world coordinates.
func ScreenToWorld(p Point, t Transform) Point {
	z := t.zoom()
	return Point{X: (p.X - t.Pan.X) / z, Y: (p.Y - t.Pan.Y) / z}
}

// WorldToScreen converts a world coordinate to viewport pixels.
func WorldToScreen(p Point, t Transform) Point {
	z := t.zoom()
	return Point{X: p.X*z + t.Pan.X, Y: p.Y*z + t.Pan.Y}
}

// RectToScreen projects a world rectangle into screen space.
func RectToScreen(r Rect, t Transform) Rect {
	z := t.zoom()
	o := WorldToScreen(Point{X: r.X, Y: r.Y}, t)
	return Rect{X: o.X, Y: o.Y, Width: r.Width * z, Height: r.Height * z}
}

// ZoomBy scales the zoom by factor and clamps it to b. Pan is unchanged, so
// the scale is uniform about the world origin.
func ZoomBy(factor float64, t Transform, b Bounds) Transform {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return t
	}
	t.Zoom = b.Clamp(t.zoom() * factor)
	return t
}

// FitToContent returns a transform that shows content centred in the viewport,
// never magnifying beyond 1.
func FitToContent(content Rect, viewport Size, b Bounds) Transform {
	if content.Empty() || viewport.Width <= 0 || viewport.Height <= 0 {
		return Identity()
	}
	scale := math.Min(viewport.Width/content.Width, viewport.Height/content.Height)
	scale = b.Clamp(math.Min(scale, 1))

	c := content.Center()
	return Transform{
		Zoom: scale,
		Pan: Point{
			X: viewport.Width/2 - c.X*scale,
			Y: viewport.Height/2 - c.Y*scale,
		},
	}
}
