package overlay

import (
	"fmt"

	"screenocr/src/geometry"
	"screenocr/src/screenshot"
)

// MinSelectionSpan is the smallest selection edge that still captures.
// Releases below it on either axis discard the selection and the session
// keeps waiting for another drag.
const MinSelectionSpan = 10

// Session is one selection run over a frozen surface: press, drag, arrow
// nudges, then exactly one of a captured region or a cancellation. Events
// arriving after the terminal transition are ignored, which is what makes
// a cancel racing a release safe: whichever lands first decides.
//
// Session is not goroutine safe; the driver owns it on one thread.
type Session struct {
	surface *screenshot.Surface
	bounds  geometry.Rect
	grab    InputGrab

	state    State
	anchor   geometry.Point
	cursor   geometry.Point
	rect     geometry.Rect
	hasRect  bool
	result   geometry.Rect
	released bool
}

// NewSession starts a session over surface and takes the keyboard grab.
// A nil grab is valid and means the driver handles input ownership itself.
func NewSession(surface *screenshot.Surface, grab InputGrab) *Session {
	if grab == nil {
		grab = nopGrab{}
	}
	s := &Session{
		surface: surface,
		bounds:  surface.Bounds(),
		grab:    grab,
		state:   StateIdle,
	}
	s.grab.AcquireKeyboard()
	return s
}

// Handle feeds one input event through the state machine.
func (s *Session) Handle(ev Event) Outcome {
	if s.state.Terminal() {
		return OutcomeNone
	}

	switch e := ev.(type) {
	case PointerDown:
		return s.pointerDown(e.Pos)
	case PointerMove:
		return s.pointerMove(e.Pos)
	case PointerUp:
		return s.pointerUp()
	case Nudge:
		return s.nudge(e.Dir, e.Fast)
	case Cancel:
		return s.cancel()
	}
	return OutcomeNone
}

func (s *Session) pointerDown(pos geometry.Point) Outcome {
	if s.state != StateIdle {
		return OutcomeNone
	}
	s.grab.AcquirePointer()
	s.state = StateSelecting
	s.anchor = pos
	s.cursor = pos
	s.rect = geometry.Rect{X: pos.X, Y: pos.Y}
	s.hasRect = true
	return OutcomeNone
}

func (s *Session) pointerMove(pos geometry.Point) Outcome {
	s.cursor = pos
	if s.state == StateSelecting {
		s.rect = geometry.FromCorners(s.anchor, pos)
	}
	return OutcomeNone
}

func (s *Session) pointerUp() Outcome {
	if s.state != StateSelecting {
		return OutcomeNone
	}
	s.grab.ReleasePointer()

	if s.rect.W >= MinSelectionSpan && s.rect.H >= MinSelectionSpan {
		s.result = s.rect.ClampTo(s.bounds)
		s.state = StateCaptured
		s.releaseKeyboard()
		return OutcomeCaptured
	}

	// Too small: back to waiting for a fresh drag.
	s.state = StateIdle
	s.rect = geometry.Rect{}
	s.hasRect = false
	return OutcomeDiscarded
}

func (s *Session) nudge(dir Direction, fast bool) Outcome {
	if !s.hasRect || s.rect.Empty() {
		return OutcomeNone
	}

	dx, dy := dir.delta(geometry.NudgeStep(fast))
	if s.state == StateSelecting {
		// Mid-drag the arrow keys walk the far corner.
		s.rect = s.rect.ExtendCorner(dx, dy).ClampTo(s.bounds)
	} else {
		// After the drag the whole selection slides.
		s.rect = s.rect.Translate(dx, dy).ClampTo(s.bounds)
		s.anchor = geometry.Point{X: s.rect.X, Y: s.rect.Y}
	}
	return OutcomeNone
}

func (s *Session) cancel() Outcome {
	if s.state == StateSelecting {
		s.grab.ReleasePointer()
	}
	s.state = StateCancelled
	s.rect = geometry.Rect{}
	s.hasRect = false
	s.releaseKeyboard()
	return OutcomeCancelled
}

func (s *Session) releaseKeyboard() {
	if s.released {
		return
	}
	s.released = true
	s.grab.ReleaseKeyboard()
}

// State returns the current machine state.
func (s *Session) State() State { return s.state }

// Rect returns the live selection and whether one exists.
func (s *Session) Rect() (geometry.Rect, bool) { return s.rect, s.hasRect }

// Cursor returns the last pointer position the session saw.
func (s *Session) Cursor() geometry.Point { return s.cursor }

// Result returns the captured region. Valid only after OutcomeCaptured.
func (s *Session) Result() screenshot.Region {
	return screenshot.RegionFromRect(s.result)
}

// HintVisible reports whether the awaiting-first-drag hint should show.
func (s *Session) HintVisible() bool { return s.state == StateIdle }

// SizeText renders the live "W x H" readout, empty when nothing is selected.
func (s *Session) SizeText() string {
	if !s.hasRect || s.rect.Empty() {
		return ""
	}
	return fmt.Sprintf("%d x %d", s.rect.W, s.rect.H)
}

// Magnify renders the magnifier tile for the current cursor position.
func (s *Session) Magnify() Magnifier {
	return RenderMagnifier(s.surface, s.cursor)
}
