package overlay

import (
	"image"
	"testing"

	"screenocr/src/geometry"
	"screenocr/src/screenshot"
)

type recordGrab struct {
	pointerAcquired  int
	pointerReleased  int
	keyboardAcquired int
	keyboardReleased int
}

func (g *recordGrab) AcquirePointer()  { g.pointerAcquired++ }
func (g *recordGrab) ReleasePointer()  { g.pointerReleased++ }
func (g *recordGrab) AcquireKeyboard() { g.keyboardAcquired++ }
func (g *recordGrab) ReleaseKeyboard() { g.keyboardReleased++ }

func testSurface(w, h int) *screenshot.Surface {
	return screenshot.NewSurface(image.NewRGBA(image.Rect(0, 0, w, h)))
}

func pt(x, y int) geometry.Point { return geometry.Point{X: x, Y: y} }

func TestDragCaptures(t *testing.T) {
	grab := &recordGrab{}
	s := NewSession(testSurface(1000, 800), grab)

	if got := s.Handle(PointerDown{Pos: pt(100, 100)}); got != OutcomeNone {
		t.Fatalf("press outcome = %v", got)
	}
	if s.State() != StateSelecting {
		t.Fatalf("state after press = %v", s.State())
	}
	s.Handle(PointerMove{Pos: pt(260, 180)})

	got := s.Handle(PointerUp{Pos: pt(260, 180)})
	if got != OutcomeCaptured {
		t.Fatalf("release outcome = %v, want captured", got)
	}
	if s.State() != StateCaptured {
		t.Fatalf("state after release = %v", s.State())
	}

	region := s.Result()
	want := screenshot.Region{X: 100, Y: 100, Width: 160, Height: 80}
	if region != want {
		t.Errorf("Result = %+v, want %+v", region, want)
	}
	if grab.keyboardAcquired != 1 || grab.keyboardReleased != 1 {
		t.Errorf("keyboard grab acquire/release = %d/%d, want 1/1",
			grab.keyboardAcquired, grab.keyboardReleased)
	}
	if grab.pointerAcquired != 1 || grab.pointerReleased != 1 {
		t.Errorf("pointer grab acquire/release = %d/%d, want 1/1",
			grab.pointerAcquired, grab.pointerReleased)
	}
}

func TestReleaseBelowMinimumDiscardsAndContinues(t *testing.T) {
	grab := &recordGrab{}
	s := NewSession(testSurface(1000, 800), grab)

	s.Handle(PointerDown{Pos: pt(10, 10)})
	s.Handle(PointerMove{Pos: pt(15, 200)})
	if got := s.Handle(PointerUp{Pos: pt(15, 200)}); got != OutcomeDiscarded {
		t.Fatalf("narrow release outcome = %v, want discarded", got)
	}
	if s.State() != StateIdle {
		t.Fatalf("state after discard = %v, want idle", s.State())
	}
	if !s.HintVisible() {
		t.Error("hint should reappear after a discarded selection")
	}
	if grab.keyboardReleased != 0 {
		t.Error("keyboard grab must be held while the session continues")
	}
	if grab.pointerReleased != 1 {
		t.Error("pointer grab must be released when the drag ends")
	}

	// The session stays usable: a second drag captures.
	s.Handle(PointerDown{Pos: pt(50, 50)})
	s.Handle(PointerMove{Pos: pt(200, 200)})
	if got := s.Handle(PointerUp{Pos: pt(200, 200)}); got != OutcomeCaptured {
		t.Fatalf("second drag outcome = %v, want captured", got)
	}
	if grab.keyboardReleased != 1 {
		t.Errorf("keyboard released %d times, want exactly 1", grab.keyboardReleased)
	}
}

func TestMinimumSizeBoundary(t *testing.T) {
	cases := []struct {
		w, h int
		want Outcome
	}{
		{10, 10, OutcomeCaptured},
		{9, 10, OutcomeDiscarded},
		{10, 9, OutcomeDiscarded},
		{9, 9, OutcomeDiscarded},
		{200, 10, OutcomeCaptured},
	}

	for _, tc := range cases {
		s := NewSession(testSurface(1000, 800), nil)
		s.Handle(PointerDown{Pos: pt(0, 0)})
		s.Handle(PointerMove{Pos: pt(tc.w, tc.h)})
		if got := s.Handle(PointerUp{Pos: pt(tc.w, tc.h)}); got != tc.want {
			t.Errorf("%dx%d release outcome = %v, want %v", tc.w, tc.h, got, tc.want)
		}
	}
}

func TestEscapeCancels(t *testing.T) {
	grab := &recordGrab{}
	s := NewSession(testSurface(1000, 800), grab)

	s.Handle(PointerDown{Pos: pt(100, 100)})
	s.Handle(PointerMove{Pos: pt(400, 400)})
	if got := s.Handle(Cancel{}); got != OutcomeCancelled {
		t.Fatalf("cancel outcome = %v", got)
	}
	if s.State() != StateCancelled {
		t.Fatalf("state after cancel = %v", s.State())
	}
	if grab.pointerReleased != 1 || grab.keyboardReleased != 1 {
		t.Errorf("grabs released pointer=%d keyboard=%d, want 1/1",
			grab.pointerReleased, grab.keyboardReleased)
	}
}

func TestCancelWinsRaceWithRelease(t *testing.T) {
	s := NewSession(testSurface(1000, 800), nil)

	s.Handle(PointerDown{Pos: pt(0, 0)})
	s.Handle(PointerMove{Pos: pt(300, 300)})

	// Escape arrives first, the queued release must not capture.
	if got := s.Handle(Cancel{}); got != OutcomeCancelled {
		t.Fatalf("cancel outcome = %v", got)
	}
	if got := s.Handle(PointerUp{Pos: pt(300, 300)}); got != OutcomeNone {
		t.Errorf("release after cancel = %v, want none", got)
	}
	if s.State() != StateCancelled {
		t.Errorf("state = %v, want cancelled", s.State())
	}
}

func TestExactlyOneEmissionPerSession(t *testing.T) {
	grab := &recordGrab{}
	s := NewSession(testSurface(1000, 800), grab)

	s.Handle(PointerDown{Pos: pt(0, 0)})
	s.Handle(PointerMove{Pos: pt(100, 100)})
	if got := s.Handle(PointerUp{Pos: pt(100, 100)}); got != OutcomeCaptured {
		t.Fatalf("first release = %v", got)
	}

	// Everything after the terminal transition is inert.
	for _, ev := range []Event{
		PointerDown{Pos: pt(1, 1)},
		PointerMove{Pos: pt(2, 2)},
		PointerUp{Pos: pt(2, 2)},
		Nudge{Dir: DirLeft},
		Cancel{},
	} {
		if got := s.Handle(ev); got != OutcomeNone {
			t.Errorf("post-terminal %T outcome = %v, want none", ev, got)
		}
	}
	if grab.keyboardReleased != 1 {
		t.Errorf("keyboard released %d times, want exactly 1", grab.keyboardReleased)
	}
}

func TestNudgeExtendsDuringDrag(t *testing.T) {
	s := NewSession(testSurface(1000, 800), nil)

	s.Handle(PointerDown{Pos: pt(0, 0)})
	s.Handle(PointerMove{Pos: pt(30, 30)})
	s.Handle(Nudge{Dir: DirRight, Fast: true})
	s.Handle(Nudge{Dir: DirDown})

	rect, ok := s.Rect()
	if !ok {
		t.Fatal("expected a live rect")
	}
	want := geometry.Rect{X: 0, Y: 0, W: 40, H: 31}
	if rect != want {
		t.Errorf("rect after mid-drag nudges = %v, want %v", rect, want)
	}

	if got := s.Handle(PointerUp{Pos: pt(30, 30)}); got != OutcomeCaptured {
		t.Fatalf("release outcome = %v", got)
	}
	if region := s.Result(); region.Width != 40 || region.Height != 31 {
		t.Errorf("captured region = %+v, want 40x31", region)
	}
}

func TestNudgeTranslatesPersistedSelection(t *testing.T) {
	s := NewSession(testSurface(1000, 800), nil)
	s.state = StateIdle
	s.rect = geometry.Rect{X: 100, Y: 100, W: 50, H: 40}
	s.hasRect = true

	s.Handle(Nudge{Dir: DirLeft, Fast: true})
	s.Handle(Nudge{Dir: DirDown})

	rect, _ := s.Rect()
	want := geometry.Rect{X: 90, Y: 101, W: 50, H: 40}
	if rect != want {
		t.Errorf("translated rect = %v, want %v", rect, want)
	}
	if s.anchor != pt(90, 101) {
		t.Errorf("anchor not synced after translate: %v", s.anchor)
	}

	// Round trip returns to the start.
	s.Handle(Nudge{Dir: DirRight, Fast: true})
	s.Handle(Nudge{Dir: DirUp})
	rect, _ = s.Rect()
	if (rect != geometry.Rect{X: 100, Y: 100, W: 50, H: 40}) {
		t.Errorf("nudge round trip drifted: %v", rect)
	}
}

func TestNudgeClampsAtSurfaceEdge(t *testing.T) {
	s := NewSession(testSurface(1000, 800), nil)
	s.state = StateIdle
	s.rect = geometry.Rect{X: 0, Y: 0, W: 50, H: 40}
	s.hasRect = true

	s.Handle(Nudge{Dir: DirLeft, Fast: true})
	rect, _ := s.Rect()
	if rect.X != 0 {
		t.Errorf("nudge pushed selection past the left edge: %v", rect)
	}
	if rect.W != 50 || rect.H != 40 {
		t.Errorf("clamping a translate must preserve size: %v", rect)
	}
}

func TestNudgeBeforeAnyDragIsNoop(t *testing.T) {
	s := NewSession(testSurface(1000, 800), nil)

	if got := s.Handle(Nudge{Dir: DirRight}); got != OutcomeNone {
		t.Errorf("nudge outcome = %v, want none", got)
	}
	if _, ok := s.Rect(); ok {
		t.Error("nudge must not conjure a selection")
	}
}

func TestPointerMoveTracksCursorWhileIdle(t *testing.T) {
	s := NewSession(testSurface(1000, 800), nil)

	s.Handle(PointerMove{Pos: pt(333, 444)})
	if s.Cursor() != pt(333, 444) {
		t.Errorf("cursor = %v", s.Cursor())
	}
	if _, ok := s.Rect(); ok {
		t.Error("idle move must not start a selection")
	}
}

func TestSizeText(t *testing.T) {
	s := NewSession(testSurface(1000, 800), nil)
	if s.SizeText() != "" {
		t.Errorf("empty session SizeText = %q", s.SizeText())
	}

	s.Handle(PointerDown{Pos: pt(10, 10)})
	s.Handle(PointerMove{Pos: pt(110, 60)})
	if got := s.SizeText(); got != "100 x 50" {
		t.Errorf("SizeText = %q, want %q", got, "100 x 50")
	}
}

func TestCapturedRegionClampedToSurface(t *testing.T) {
	s := NewSession(testSurface(200, 200), nil)

	s.Handle(PointerDown{Pos: pt(150, 150)})
	// Drivers may report positions past the last pixel row.
	s.Handle(PointerMove{Pos: pt(260, 230)})
	if got := s.Handle(PointerUp{Pos: pt(260, 230)}); got != OutcomeCaptured {
		t.Fatalf("release outcome = %v", got)
	}

	region := s.Result()
	if region.X+region.Width > 200 || region.Y+region.Height > 200 {
		t.Errorf("captured region leaves the surface: %+v", region)
	}
}
