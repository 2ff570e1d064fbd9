// Package screenshot captures the desktop into an immutable Surface that
// the selection overlay draws on and crops from. All coordinates are
// virtual-screen coordinates: with multiple monitors the canvas is the
// union of the display bounds and secondary displays may sit at negative
// origins.
package screenshot

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"github.com/kbinani/screenshot"

	"screenocr/src/geometry"
)

// Region is a selected screen region in virtual-screen coordinates.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Rect converts the region to its geometry form.
func (r Region) Rect() geometry.Rect {
	return geometry.Rect{X: r.X, Y: r.Y, W: r.Width, H: r.Height}
}

// RegionFromRect converts a geometry rectangle back to a Region.
func RegionFromRect(r geometry.Rect) Region {
	return Region{X: r.X, Y: r.Y, Width: r.W, Height: r.H}
}

// Surface is a frozen snapshot of the whole desktop, captured once when a
// selection session starts. It never changes afterwards, so the overlay,
// the magnifier and the final crop all see the same pixels.
type Surface struct {
	img    *image.RGBA
	bounds geometry.Rect
}

// Capture grabs every active display and composites the grabs into one
// canvas covering the union of the display bounds.
func Capture() (*Surface, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, fmt.Errorf("no active displays found")
	}

	union := screenshot.GetDisplayBounds(0)
	for i := 1; i < n; i++ {
		union = union.Union(screenshot.GetDisplayBounds(i))
	}

	canvas := image.NewRGBA(union)
	for i := 0; i < n; i++ {
		b := screenshot.GetDisplayBounds(i)
		grab, err := screenshot.CaptureRect(b)
		if err != nil {
			return nil, fmt.Errorf("capture display %d: %w", i, err)
		}
		draw.Draw(canvas, b, grab, grab.Bounds().Min, draw.Src)
	}

	return NewSurface(canvas), nil
}

// NewSurface wraps an existing image as a capture surface. The image
// bounds, including any non-zero origin, become the surface bounds.
func NewSurface(img *image.RGBA) *Surface {
	b := img.Bounds()
	return &Surface{
		img:    img,
		bounds: geometry.Rect{X: b.Min.X, Y: b.Min.Y, W: b.Dx(), H: b.Dy()},
	}
}

// Bounds returns the surface extent in virtual-screen coordinates.
func (s *Surface) Bounds() geometry.Rect { return s.bounds }

// Image exposes the backing pixels for drawing. Callers must not mutate it.
func (s *Surface) Image() *image.RGBA { return s.img }

// Crop copies the given rectangle out of the surface into a standalone
// image anchored at (0,0). The rectangle is clamped to the surface first;
// a rectangle entirely outside the surface is an error.
func (s *Surface) Crop(r geometry.Rect) (*image.RGBA, error) {
	clamped := r.ClampTo(s.bounds)
	if clamped.Empty() {
		return nil, fmt.Errorf("crop %s is outside surface %s", r, s.bounds)
	}

	out := image.NewRGBA(image.Rect(0, 0, clamped.W, clamped.H))
	draw.Draw(out, out.Bounds(), s.img, image.Pt(clamped.X, clamped.Y), draw.Src)
	return out, nil
}

// EncodePNG serializes an image to PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image as PNG: %v", err)
	}
	return buf.Bytes(), nil
}

// VirtualBounds returns the union of all active display bounds without
// capturing any pixels.
func VirtualBounds() (geometry.Rect, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return geometry.Rect{}, fmt.Errorf("no active displays found")
	}

	union := screenshot.GetDisplayBounds(0)
	for i := 1; i < n; i++ {
		union = union.Union(screenshot.GetDisplayBounds(i))
	}
	return geometry.Rect{X: union.Min.X, Y: union.Min.Y, W: union.Dx(), H: union.Dy()}, nil
}

// PrimaryBounds returns the bounds of the primary display.
func PrimaryBounds() (geometry.Rect, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return geometry.Rect{}, fmt.Errorf("no active displays found")
	}
	b := screenshot.GetDisplayBounds(0)
	return geometry.Rect{X: b.Min.X, Y: b.Min.Y, W: b.Dx(), H: b.Dy()}, nil
}
