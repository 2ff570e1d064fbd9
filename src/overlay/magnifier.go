package overlay

import (
	"fmt"
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"

	"screenocr/src/geometry"
	"screenocr/src/screenshot"
)

// Magnifier geometry. The tile is a square zoom view that trails the
// cursor at a fixed offset, flips to the opposite side near screen edges
// and always keeps a margin from them.
const (
	MagnifierSize   = 120
	MagnifierZoom   = 2.0
	MagnifierOffset = 20
	MagnifierMargin = 10
)

// Magnifier is one rendered magnifier frame.
type Magnifier struct {
	// Tile is the zoomed pixel view with crosshair and border, always
	// MagnifierSize x MagnifierSize.
	Tile *image.RGBA
	// Pos is the top-left corner to draw the tile at, in virtual-screen
	// coordinates.
	Pos geometry.Point
	// Src is the surface patch the tile shows.
	Src geometry.Rect
	// CoordText is the "(x, y)" cursor readout drawn under the tile.
	CoordText string
}

func magnifierSource(cursor geometry.Point, bounds geometry.Rect) geometry.Rect {
	srcSize := int(MagnifierSize / MagnifierZoom)

	// Centered on the cursor, shifted inward near edges so the patch
	// never leaves the surface.
	x := cursor.X - srcSize/2
	y := cursor.Y - srcSize/2
	x = max(bounds.X, min(x, bounds.Right()-srcSize))
	y = max(bounds.Y, min(y, bounds.Bottom()-srcSize))
	return geometry.Rect{X: x, Y: y, W: srcSize, H: srcSize}
}

func magnifierPlacement(cursor geometry.Point, bounds geometry.Rect) geometry.Point {
	x := cursor.X + MagnifierOffset
	y := cursor.Y + MagnifierOffset

	// Flip per axis when the default lower-right placement overflows.
	if x+MagnifierSize > bounds.Right() {
		x = cursor.X - MagnifierSize - MagnifierOffset
	}
	if y+MagnifierSize > bounds.Bottom() {
		y = cursor.Y - MagnifierSize - MagnifierOffset
	}

	x = max(bounds.X+MagnifierMargin, min(x, bounds.Right()-MagnifierSize-MagnifierMargin))
	y = max(bounds.Y+MagnifierMargin, min(y, bounds.Bottom()-MagnifierSize-MagnifierMargin))
	return geometry.Point{X: x, Y: y}
}

// RenderMagnifier builds the magnifier frame for the cursor position.
func RenderMagnifier(surface *screenshot.Surface, cursor geometry.Point) Magnifier {
	src := magnifierSource(cursor, surface.Bounds())

	tile := image.NewRGBA(image.Rect(0, 0, MagnifierSize, MagnifierSize))
	xdraw.NearestNeighbor.Scale(tile, tile.Bounds(), surface.Image(), src.ImageRect(), xdraw.Src, nil)

	crosshair := color.RGBA{R: 255, A: 255}
	center := MagnifierSize / 2
	for i := 0; i < MagnifierSize; i++ {
		tile.SetRGBA(center, i, crosshair)
		tile.SetRGBA(i, center, crosshair)
	}

	border := color.RGBA{R: 0, G: 120, B: 215, A: 255}
	for i := 0; i < MagnifierSize; i++ {
		tile.SetRGBA(i, 0, border)
		tile.SetRGBA(i, MagnifierSize-1, border)
		tile.SetRGBA(0, i, border)
		tile.SetRGBA(MagnifierSize-1, i, border)
	}

	return Magnifier{
		Tile:      tile,
		Pos:       magnifierPlacement(cursor, surface.Bounds()),
		Src:       src,
		CoordText: fmt.Sprintf("(%d, %d)", cursor.X, cursor.Y),
	}
}

// SizeLabelPos places the "W x H" readout: right-aligned under the
// selection, flipped above it near the bottom edge, pulled back to the
// left edge of the selection when it would leave the surface.
func SizeLabelPos(rect geometry.Rect, labelW, labelH int, bounds geometry.Rect) geometry.Point {
	x := rect.Right() - labelW
	y := rect.Bottom() + 5
	if y+labelH > bounds.Bottom() {
		y = rect.Y - labelH - 5
	}
	if x < bounds.X {
		x = rect.X
	}
	return geometry.Point{X: x, Y: y}
}

// CoordLabelPos places the cursor-coordinate readout beside the cursor,
// flipping to the other side near edges.
func CoordLabelPos(cursor geometry.Point, labelW, labelH int, bounds geometry.Rect) geometry.Point {
	x := cursor.X + 15
	y := cursor.Y + 15
	if x+labelW > bounds.Right() {
		x = cursor.X - labelW - 15
	}
	if y+labelH > bounds.Bottom() {
		y = cursor.Y - labelH - 15
	}
	return geometry.Point{X: x, Y: y}
}
