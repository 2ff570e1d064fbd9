package engine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"screenocr/src/geometry"
)

// tesseractEngine runs a local tesseract client. The client is stateful
// and not goroutine safe, so calls are serialized; the worker pool only
// ever runs one recognition at a time anyway.
type tesseractEngine struct {
	mu       sync.Mutex
	client   *gosseract.Client
	binarize bool
}

// tessLang maps the user-facing language selector onto tesseract
// traineddata names. Unknown values pass through so full tesseract codes
// keep working.
func tessLang(lang string) string {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "", "en":
		return "eng"
	case "ch", "zh":
		return "chi_sim"
	default:
		return lang
	}
}

func newTesseract(cfg Config) (Engine, error) {
	client := gosseract.NewClient()

	lang := tessLang(cfg.Language)
	if err := client.SetLanguage(lang); err != nil {
		client.Close()
		return nil, &UnavailableError{
			Engine: KindTesseract,
			Hint:   fmt.Sprintf("install tesseract and the %q language data", lang),
			Err:    err,
		}
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		client.Close()
		return nil, &UnavailableError{Engine: KindTesseract, Hint: "tesseract rejected page segmentation setup", Err: err}
	}

	// Screen captures are full of UI words missing from dictionaries.
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")

	return &tesseractEngine{client: client, binarize: cfg.Binarize}, nil
}

func (t *tesseractEngine) Name() string { return KindTesseract }

func (t *tesseractEngine) Recognize(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := loadRequestImage(req)
	if err != nil {
		return nil, err
	}
	if data, err = t.preprocess(data); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("tesseract rejected image: %w", err)
	}

	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("tesseract recognition failed: %w", err)
	}

	var lines []Line
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if text == "" {
			continue
		}
		lines = append(lines, Line{
			Text:       text,
			Confidence: box.Confidence / 100.0,
			Polygon:    rectPolygon(box.Box),
		})
	}

	return finalize(lines), nil
}

// preprocess decodes, cleans up and re-encodes the capture before
// recognition. Failures fall back to the original bytes: tesseract may
// still cope with what we could not decode.
func (t *tesseractEngine) preprocess(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, nil
	}

	processed := prepareForRecognition(img, t.binarize)
	if processed == img {
		return data, nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, processed); err != nil {
		return data, nil
	}
	return buf.Bytes(), nil
}

func (t *tesseractEngine) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client.Close()
}

func rectPolygon(r image.Rectangle) []geometry.Point {
	return []geometry.Point{
		{X: r.Min.X, Y: r.Min.Y},
		{X: r.Max.X, Y: r.Min.Y},
		{X: r.Max.X, Y: r.Max.Y},
		{X: r.Min.X, Y: r.Max.Y},
	}
}
