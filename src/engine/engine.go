// Package engine wraps the OCR backends behind one adapter interface.
// The variant is resolved once at startup (or when settings change) by
// New; callers never branch on engine kind per call. Backends differ in
// what they return — plain text, (text, confidence) pairs, full
// (polygon, text, confidence) lines, or a structured document — and the
// adapters normalize all of it into Result.
package engine

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gonum.org/v1/gonum/stat"

	"screenocr/src/geometry"
)

// Engine kinds accepted by New and by the ocr_engine setting.
const (
	KindTesseract = "tesseract"
	KindPaddle    = "paddle"
	KindVision    = "vision"
)

// DocOptions are the structured-document toggles forwarded to engines
// that support document mode.
type DocOptions struct {
	TableRecognition   bool
	FormulaRecognition bool
	SealRecognition    bool
	ChartRecognition   bool
	DocOrientation     bool
	DocUnwarping       bool
}

// Request is one recognition call. Exactly one of Path and PNG is set:
// interactive captures hand over the temp file they own, batch items and
// the CLI pass file paths, tests may pass raw PNG bytes.
type Request struct {
	Path     string
	PNG      []byte
	Language string
	Document bool
	Doc      DocOptions
}

// Line is one recognized text line. Confidence is normalized to [0,1];
// Polygon, when the backend reports geometry, is in image coordinates.
type Line struct {
	Text       string           `json:"text"`
	Confidence float64          `json:"confidence"`
	Polygon    []geometry.Point `json:"polygon,omitempty"`
}

// Result is the normalized recognition output. Text is always the
// top-to-bottom join of the lines in the order the backend returned
// them; Markdown is filled only in document mode by backends that
// produce it.
type Result struct {
	Text          string  `json:"text"`
	Lines         []Line  `json:"lines,omitempty"`
	Markdown      string  `json:"markdown,omitempty"`
	AvgConfidence float64 `json:"avg_confidence,omitempty"`
}

// Engine is one resolved OCR backend.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, req Request) (*Result, error)
	Close() error
}

// UnavailableError means the backend cannot be constructed or reached at
// all, as opposed to a single recognition failing. Hint tells the user
// how to fix it.
type UnavailableError struct {
	Engine string
	Hint   string
	Err    error
}

func (e *UnavailableError) Error() string {
	msg := fmt.Sprintf("ocr engine %q unavailable", e.Engine)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Config selects and parameterizes the backend.
type Config struct {
	Kind     string
	Language string

	// Binarize turns on Otsu thresholding before local recognition.
	Binarize bool

	// Paddle server endpoint.
	Endpoint string

	// Vision model access.
	APIKey    string
	Model     string
	Providers []string
}

// New resolves the adapter for cfg.Kind. This happens once at startup and
// again only when the engine or language setting changes.
func New(cfg Config) (Engine, error) {
	switch cfg.Kind {
	case "", KindTesseract:
		return newTesseract(cfg)
	case KindPaddle:
		return newPaddle(cfg)
	case KindVision:
		return newVision(cfg)
	}
	return nil, fmt.Errorf("unknown ocr engine %q", cfg.Kind)
}

// loadRequestImage returns the image bytes for a request. A missing input
// file wraps the underlying fs error so callers can errors.Is it.
func loadRequestImage(req Request) ([]byte, error) {
	if req.Path != "" {
		data, err := os.ReadFile(req.Path)
		if err != nil {
			return nil, fmt.Errorf("read image: %w", err)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("image file %s is empty", req.Path)
		}
		return data, nil
	}
	if len(req.PNG) > 0 {
		return req.PNG, nil
	}
	return nil, fmt.Errorf("recognition request carries no image")
}

// finalize assembles a Result from normalized lines.
func finalize(lines []Line) *Result {
	texts := make([]string, len(lines))
	var confidences []float64
	for i, l := range lines {
		texts[i] = l.Text
		if l.Confidence > 0 {
			confidences = append(confidences, l.Confidence)
		}
	}

	res := &Result{
		Text:  strings.Join(texts, "\n"),
		Lines: lines,
	}
	if len(confidences) > 0 {
		res.AvgConfidence = stat.Mean(confidences, nil)
	}
	return res
}
