package engine

import (
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
	"github.com/anthonynsimon/bild/transform"
)

// Small captures recognize poorly at native size; anything under this
// span on either axis gets upscaled before recognition.
const (
	minRecognitionSpan = 100
	upscaleFactor      = 3
)

// prepareForRecognition upscales small crops and optionally binarizes
// them with an Otsu threshold. The input is returned untouched when no
// step applies.
func prepareForRecognition(img image.Image, binarize bool) image.Image {
	out := img

	b := img.Bounds()
	if b.Dx() < minRecognitionSpan || b.Dy() < minRecognitionSpan {
		out = transform.Resize(out, b.Dx()*upscaleFactor, b.Dy()*upscaleFactor, transform.Linear)
	}

	if binarize {
		gray := effect.Grayscale(out)
		out = segment.Threshold(gray, otsuLevel(gray))
	}

	return out
}

// otsuLevel picks the threshold that maximizes between-class variance of
// the luminance histogram.
func otsuLevel(img image.Image) uint8 {
	var hist [256]int
	total := 0

	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			hist[g.Y]++
			total++
		}
	}
	if total == 0 {
		return 128
	}

	var sum float64
	for i, n := range hist {
		sum += float64(i) * float64(n)
	}

	var sumBack, weightBack float64
	bestLevel, bestVariance := 0, -1.0
	for level := 0; level < 256; level++ {
		weightBack += float64(hist[level])
		if weightBack == 0 {
			continue
		}
		weightFore := float64(total) - weightBack
		if weightFore == 0 {
			break
		}
		sumBack += float64(level) * float64(hist[level])

		meanBack := sumBack / weightBack
		meanFore := (sum - sumBack) / weightFore
		variance := weightBack * weightFore * (meanBack - meanFore) * (meanBack - meanFore)
		if variance > bestVariance {
			bestVariance = variance
			bestLevel = level
		}
	}

	return uint8(bestLevel)
}
