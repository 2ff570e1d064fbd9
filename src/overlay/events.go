package overlay

import "screenocr/src/geometry"

// Direction is an arrow-key nudge direction.
type Direction int

const (
	DirLeft Direction = iota
	DirRight
	DirUp
	DirDown
)

func (d Direction) delta(step int) (dx, dy int) {
	switch d {
	case DirLeft:
		return -step, 0
	case DirRight:
		return step, 0
	case DirUp:
		return 0, -step
	case DirDown:
		return 0, step
	}
	return 0, 0
}

// Event is the closed set of inputs a selection session understands. The
// platform driver translates native messages into these and nothing else.
type Event interface {
	isEvent()
}

// PointerDown starts a drag at Pos.
type PointerDown struct {
	Pos geometry.Point
}

// PointerMove reports the cursor at Pos, dragging or not.
type PointerMove struct {
	Pos geometry.Point
}

// PointerUp ends a drag. The selection keeps the rectangle produced by the
// last move or nudge; the release position itself does not reshape it.
type PointerUp struct {
	Pos geometry.Point
}

// Nudge adjusts the selection with an arrow key. Fast is the held Shift
// modifier and widens the step from 1 to 10 pixels.
type Nudge struct {
	Dir  Direction
	Fast bool
}

// Cancel aborts the session (Escape).
type Cancel struct{}

func (PointerDown) isEvent() {}
func (PointerMove) isEvent() {}
func (PointerUp) isEvent()   {}
func (Nudge) isEvent()       {}
func (Cancel) isEvent()      {}
