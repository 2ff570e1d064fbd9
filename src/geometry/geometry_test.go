package geometry

import "testing"

func TestFromCornersNormalizesAnyOrder(t *testing.T) {
	a := Point{X: 100, Y: 80}
	b := Point{X: 40, Y: 200}

	want := Rect{X: 40, Y: 80, W: 60, H: 120}
	for _, pair := range [][2]Point{{a, b}, {b, a}} {
		got := FromCorners(pair[0], pair[1])
		if got != want {
			t.Errorf("FromCorners(%v, %v) = %v, want %v", pair[0], pair[1], got, want)
		}
	}

	same := FromCorners(a, a)
	if same.W != 0 || same.H != 0 {
		t.Errorf("expected zero spans for identical corners, got %v", same)
	}
	if !same.Empty() {
		t.Error("zero-span rect should be empty")
	}
}

func TestClampToKeepsEdgesInsideBounds(t *testing.T) {
	bounds := Rect{X: 0, Y: 0, W: 1920, H: 1080}

	cases := []struct {
		name string
		in   Rect
		want Rect
	}{
		{"already inside", Rect{X: 10, Y: 10, W: 100, H: 50}, Rect{X: 10, Y: 10, W: 100, H: 50}},
		{"past left top", Rect{X: -30, Y: -5, W: 100, H: 50}, Rect{X: 0, Y: 0, W: 100, H: 50}},
		{"past right bottom", Rect{X: 1900, Y: 1070, W: 100, H: 50}, Rect{X: 1820, Y: 1030, W: 100, H: 50}},
		{"wider than bounds", Rect{X: -10, Y: 0, W: 4000, H: 50}, Rect{X: 0, Y: 0, W: 1920, H: 50}},
	}

	for _, tc := range cases {
		got := tc.in.ClampTo(bounds)
		if got != tc.want {
			t.Errorf("%s: ClampTo = %v, want %v", tc.name, got, tc.want)
		}
		if again := got.ClampTo(bounds); again != got {
			t.Errorf("%s: clamping is not idempotent: %v then %v", tc.name, got, again)
		}
	}
}

func TestClampToVirtualScreenOrigin(t *testing.T) {
	// Secondary monitor left of the primary gives a negative origin.
	bounds := Rect{X: -1920, Y: 0, W: 3840, H: 1080}

	got := Rect{X: -2000, Y: -40, W: 300, H: 200}.ClampTo(bounds)
	want := Rect{X: -1920, Y: 0, W: 300, H: 200}
	if got != want {
		t.Errorf("ClampTo = %v, want %v", got, want)
	}
}

func TestTranslateRoundTrip(t *testing.T) {
	r := Rect{X: 500, Y: 400, W: 120, H: 90}
	got := r.Translate(37, -12).Translate(-37, 12)
	if got != r {
		t.Errorf("translate round trip changed rect: %v -> %v", r, got)
	}
}

func TestExtendCornerKeepsMinimumSpan(t *testing.T) {
	r := Rect{X: 0, Y: 0, W: 5, H: 5}

	grown := r.ExtendCorner(10, 10)
	if grown.W != 15 || grown.H != 15 {
		t.Errorf("ExtendCorner grow = %v", grown)
	}

	shrunk := r.ExtendCorner(-100, -100)
	if shrunk.W != 1 || shrunk.H != 1 {
		t.Errorf("ExtendCorner should floor spans at 1, got %v", shrunk)
	}
}

func TestNudgeStep(t *testing.T) {
	if NudgeStep(false) != 1 {
		t.Errorf("NudgeStep(false) = %d, want 1", NudgeStep(false))
	}
	if NudgeStep(true) != 10 {
		t.Errorf("NudgeStep(true) = %d, want 10", NudgeStep(true))
	}
}

func TestPolygonBounds(t *testing.T) {
	poly := []Point{{X: 10, Y: 30}, {X: 50, Y: 5}, {X: 25, Y: 60}}
	got := PolygonBounds(poly)
	want := Rect{X: 10, Y: 5, W: 41, H: 56}
	if got != want {
		t.Errorf("PolygonBounds = %v, want %v", got, want)
	}

	if z := PolygonBounds(nil); z != (Rect{}) {
		t.Errorf("PolygonBounds(nil) = %v, want zero", z)
	}
}

func TestPointInPolygon(t *testing.T) {
	square := []Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}

	if !PointInPolygon(5, 5, square) {
		t.Error("center point should be inside")
	}
	if PointInPolygon(15, 5, square) {
		t.Error("point right of square should be outside")
	}
	if !PointInPolygon(10, 5, square) {
		t.Error("point on an edge should count as inside")
	}
	if PointInPolygon(5, 5, square[:2]) {
		t.Error("degenerate polygon should contain nothing")
	}
}

func TestContains(t *testing.T) {
	r := Rect{X: 10, Y: 10, W: 20, H: 20}
	if !r.Contains(Point{X: 10, Y: 10}) {
		t.Error("top-left corner should be inside")
	}
	if r.Contains(Point{X: 30, Y: 30}) {
		t.Error("exclusive bottom-right corner should be outside")
	}
}
