// Package geometry provides the rectangle and polygon math used by the
// selection overlay and by recognition results. Everything here is pure:
// no platform calls, no globals.
package geometry

import (
	"fmt"
	"image"
	"math"
)

// Point is a pixel position in virtual-screen coordinates.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Rect is a normalized rectangle: W and H are never negative, the right
// and bottom edges are exclusive.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"width"`
	H int `json:"height"`
}

// FromCorners normalizes any two drag corners into a Rect.
func FromCorners(a, b Point) Rect {
	return Rect{
		X: min(a.X, b.X),
		Y: min(a.Y, b.Y),
		W: abs(a.X - b.X),
		H: abs(a.Y - b.Y),
	}
}

// Right returns the exclusive right edge.
func (r Rect) Right() int { return r.X + r.W }

// Bottom returns the exclusive bottom edge.
func (r Rect) Bottom() int { return r.Y + r.H }

// Empty reports whether the rectangle covers no pixels.
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.Right() && p.Y >= r.Y && p.Y < r.Bottom()
}

// Translate moves the rectangle by (dx, dy) without resizing it.
func (r Rect) Translate(dx, dy int) Rect {
	r.X += dx
	r.Y += dy
	return r
}

// ExtendCorner moves the bottom-right corner by (dx, dy). Spans never
// drop below one pixel.
func (r Rect) ExtendCorner(dx, dy int) Rect {
	r.W = max(1, r.W+dx)
	r.H = max(1, r.H+dy)
	return r
}

// ClampTo forces every edge of r inside bounds: first the rectangle is
// shifted, then trimmed if it is larger than bounds on an axis. Clamping
// an already-clamped rectangle is a no-op.
func (r Rect) ClampTo(bounds Rect) Rect {
	if r.W > bounds.W {
		r.W = bounds.W
	}
	if r.H > bounds.H {
		r.H = bounds.H
	}
	if r.X < bounds.X {
		r.X = bounds.X
	}
	if r.Right() > bounds.Right() {
		r.X = bounds.Right() - r.W
	}
	if r.Y < bounds.Y {
		r.Y = bounds.Y
	}
	if r.Bottom() > bounds.Bottom() {
		r.Y = bounds.Bottom() - r.H
	}
	return r
}

// ImageRect converts r to the stdlib image rectangle form.
func (r Rect) ImageRect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.Right(), r.Bottom())
}

// String renders "WxH at (X,Y)" for logs.
func (r Rect) String() string {
	return fmt.Sprintf("%dx%d at (%d,%d)", r.W, r.H, r.X, r.Y)
}

// NudgeStep returns the arrow-key step: 1 pixel, 10 with the fast
// modifier held.
func NudgeStep(fast bool) int {
	if fast {
		return 10
	}
	return 1
}

// PolygonBounds returns the axis-aligned bounding rectangle of points.
// The zero Rect is returned for an empty slice.
func PolygonBounds(points []Point) Rect {
	if len(points) == 0 {
		return Rect{}
	}

	minX, maxX := points[0].X, points[0].X
	minY, maxY := points[0].Y, points[0].Y
	for _, p := range points[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}

	return Rect{X: minX, Y: minY, W: maxX - minX + 1, H: maxY - minY + 1}
}

// PointInPolygon reports whether (px, py) lies inside polygon using a ray
// cast. Points on an edge count as inside.
func PointInPolygon(px, py float64, polygon []Point) bool {
	if len(polygon) < 3 {
		return false
	}

	inside := false
	for i, j := 0, len(polygon)-1; i < len(polygon); j, i = i, i+1 {
		xi := float64(polygon[i].X)
		yi := float64(polygon[i].Y)
		xj := float64(polygon[j].X)
		yj := float64(polygon[j].Y)

		if pointOnSegment(px, py, xi, yi, xj, yj) {
			return true
		}

		intersects := ((yi > py) != (yj > py)) &&
			(px < (xj-xi)*(py-yi)/(yj-yi)+xi)
		if intersects {
			inside = !inside
		}
	}

	return inside
}

func pointOnSegment(px, py, x1, y1, x2, y2 float64) bool {
	const epsilon = 0.5
	cross := (px-x1)*(y2-y1) - (py-y1)*(x2-x1)
	if math.Abs(cross) > epsilon {
		return false
	}

	minX := math.Min(x1, x2) - epsilon
	maxX := math.Max(x1, x2) + epsilon
	minY := math.Min(y1, y2) - epsilon
	maxY := math.Max(y1, y2) + epsilon
	return px >= minX && px <= maxX && py >= minY && py <= maxY
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
