package screenshot

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"screenocr/src/geometry"
)

func fillRGBA(img *image.RGBA, c color.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func TestSurfaceBoundsKeepVirtualOrigin(t *testing.T) {
	img := image.NewRGBA(image.Rect(-1920, 0, 1920, 1080))
	s := NewSurface(img)

	want := geometry.Rect{X: -1920, Y: 0, W: 3840, H: 1080}
	if s.Bounds() != want {
		t.Errorf("Bounds() = %v, want %v", s.Bounds(), want)
	}
}

func TestSurfaceCrop(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	fillRGBA(img, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	img.SetRGBA(40, 40, color.RGBA{R: 200, G: 0, B: 0, A: 255})
	s := NewSurface(img)

	crop, err := s.Crop(geometry.Rect{X: 40, Y: 40, W: 20, H: 10})
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if got := crop.Bounds(); got.Dx() != 20 || got.Dy() != 10 || got.Min != image.Pt(0, 0) {
		t.Fatalf("crop bounds = %v, want 20x10 at origin", got)
	}
	if got := crop.RGBAAt(0, 0); got.R != 200 {
		t.Errorf("crop (0,0) = %v, want marker pixel", got)
	}
	if got := crop.RGBAAt(1, 0); got.R != 10 {
		t.Errorf("crop (1,0) = %v, want fill pixel", got)
	}
}

func TestSurfaceCropClampsOverflow(t *testing.T) {
	s := NewSurface(image.NewRGBA(image.Rect(0, 0, 50, 50)))

	crop, err := s.Crop(geometry.Rect{X: 40, Y: 40, W: 100, H: 100})
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if b := crop.Bounds(); b.Dx() != 50 || b.Dy() != 50 {
		t.Errorf("overflowing crop should clamp to surface, got %v", b)
	}
}

func TestSurfaceCropOutsideFails(t *testing.T) {
	s := NewSurface(image.NewRGBA(image.Rect(0, 0, 50, 50)))

	if _, err := s.Crop(geometry.Rect{X: 10, Y: 10, W: 0, H: 0}); err == nil {
		t.Error("expected error for empty crop rectangle")
	}
}

func TestEncodePNGRoundTrip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	fillRGBA(img, color.RGBA{R: 1, G: 2, B: 3, A: 255})

	data, err := EncodePNG(img)
	if err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}

	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding produced PNG failed: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 8 || b.Dy() != 4 {
		t.Errorf("decoded bounds = %v, want 8x4", b)
	}
}

func TestCapture(t *testing.T) {
	// Needs a display; in headless environments just make sure the error
	// path is clean.
	s, err := Capture()
	if err != nil {
		t.Logf("Capture failed (expected in headless environment): %v", err)
		return
	}
	if s.Bounds().Empty() {
		t.Error("captured surface has empty bounds")
	}
}
